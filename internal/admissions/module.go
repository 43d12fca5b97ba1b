// Package admissions provides the admission record bounded context module.
package admissions

import (
	"context"

	"admissions_backend/internal/admissions/handler"
	"admissions_backend/internal/admissions/repository"
	"admissions_backend/internal/admissions/service"
	"admissions_backend/internal/events"
	apphttp "admissions_backend/internal/http"
	"admissions_backend/platform/logger"
	"admissions_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the admissions bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the admissions module with all its
// dependencies. The enquiry reader is an adapter over the enquiries context.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, log *logger.Logger, enquiries service.EnquiryReader) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, enquiries, eventBus, log)

	// Materialize the admission record as soon as the pipeline reaches the
	// payment/admission stages.
	eventBus.Subscribe(events.EnquiryStageChanged{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.EnquiryStageChanged)
		if !ok {
			return nil
		}
		return svc.HandleStageChanged(ctx, e)
	}))

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "admissions"
}

// Service returns the admission service for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts admission routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/admissions"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
