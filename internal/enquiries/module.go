// Package enquiries provides the admission enquiry bounded context module.
// This file defines the module that encapsulates all enquiries setup and
// route registration.
package enquiries

import (
	"admissions_backend/internal/enquiries/handler"
	"admissions_backend/internal/enquiries/ports"
	"admissions_backend/internal/enquiries/repository"
	"admissions_backend/internal/enquiries/service"
	"admissions_backend/internal/events"
	apphttp "admissions_backend/internal/http"
	"admissions_backend/platform/config"
	"admissions_backend/platform/logger"
	"admissions_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Dependencies carries the outbound collaborators the enquiry service talks
// to. The composition root builds the concrete clients and adapters; any of
// them may be nil and the corresponding behavior is skipped.
type Dependencies struct {
	Finance    ports.FinanceGateway
	MasterData ports.MasterData
	AdminPanel ports.AdminPanel
	FollowUps  ports.FollowUpScheduler
	Storage    ports.ObjectStore
	Locker     service.Locker
}

// Module is the enquiries bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the enquiries module with all its
// dependencies.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, cfg *config.Config, log *logger.Logger, deps Dependencies) *Module {
	repo := repository.New(pool)

	svc := service.New(repo, eventBus, log, service.Options{
		Finance:              deps.Finance,
		MasterData:           deps.MasterData,
		AdminPanel:           deps.AdminPanel,
		FollowUps:            deps.FollowUps,
		Storage:              deps.Storage,
		Locker:               deps.Locker,
		DeEnrollReasonID:     cfg.GetDeEnrollReasonID(),
		PaymentWebhookSecret: cfg.GetPaymentWebhookSecret(),
	})

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "enquiries"
}

// Service returns the enquiry service for external use (scheduler workers,
// adapters for other modules).
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts enquiries routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// CRUD, workflows and documents require authentication.
	m.handler.RegisterRoutes(ctx.Protected.Group("/enquiries"))
	m.handler.RegisterAdminRoutes(ctx.Admin)

	// The payment gateway calls back without a JWT; the HMAC signature on the
	// payload authenticates the request instead.
	ctx.V1.POST("/payments/webhook", ctx.WebhookRateLimiter.RateLimit(), m.handler.PaymentWebhook)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
