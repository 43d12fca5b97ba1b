// Package handler exposes the follow-up tasks bounded context over HTTP.
package handler

import (
	"context"
	"net/http"
	"strconv"

	"admissions_backend/internal/tasks/repository"
	"admissions_backend/internal/tasks/service"
	"admissions_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const msgInvalidRequest = "invalid request"

type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the authenticated task routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.ListMine)
	rg.POST("/:id/complete", h.Complete)
	rg.POST("/:id/cancel", h.Cancel)
}

// ListMine returns the calling counsellor's follow-up tasks.
func (h *Handler) ListMine(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	tasks, err := h.svc.ListForAssignee(c.Request.Context(), identity.UserID(), c.Query("status"), limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": tasks})
}

func (h *Handler) Complete(c *gin.Context) {
	h.finish(c, h.svc.Complete)
}

func (h *Handler) Cancel(c *gin.Context) {
	h.finish(c, h.svc.Cancel)
}

func (h *Handler) finish(c *gin.Context, fn func(ctx context.Context, id, actorID uuid.UUID) (repository.FollowUpTask, error)) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	task, err := fn(c.Request.Context(), id, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, task)
}
