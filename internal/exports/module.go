package exports

import (
	"admissions_backend/internal/adapters/storage"
	"admissions_backend/internal/events"
	apphttp "admissions_backend/internal/http"
	"admissions_backend/platform/logger"
	"admissions_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the exports bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
}

// NewModule creates and initializes the exports module. The source adapter
// and enqueuer are built in the composition root.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, log *logger.Logger, source Source, store storage.Service, bucket string, enqueuer Enqueuer) *Module {
	repo := NewRepository(pool)
	svc := NewService(repo, source, store, bucket, enqueuer, eventBus, log)

	return &Module{
		handler: NewHandler(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "exports"
}

// Service returns the export service for the scheduler worker.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts export routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/exports")
	group.POST("/enquiries", m.handler.RequestEnquiryExport)
	group.GET("/:id", m.handler.GetExport)
}

var _ apphttp.Module = (*Module)(nil)
