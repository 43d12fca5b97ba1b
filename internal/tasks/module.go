// Package tasks provides the counsellor follow-up task bounded context
// module.
package tasks

import (
	"context"

	"admissions_backend/internal/events"
	apphttp "admissions_backend/internal/http"
	"admissions_backend/internal/tasks/handler"
	"admissions_backend/internal/tasks/repository"
	"admissions_backend/internal/tasks/service"
	"admissions_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the tasks bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the tasks module with all its
// dependencies.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, eventBus, log)

	// A closed enquiry needs no follow-up; drop its open tasks.
	eventBus.Subscribe(events.EnquiryClosed{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.EnquiryClosed)
		if !ok {
			return nil
		}
		return svc.CancelForEnquiry(ctx, e.EnquiryID)
	}))

	return &Module{
		handler: handler.New(svc),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "tasks"
}

// Service returns the task service for external use (the follow-up adapter
// and the scheduler worker).
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts task routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/tasks"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
