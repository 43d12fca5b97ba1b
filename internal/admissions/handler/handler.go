// Package handler exposes the admissions bounded context over HTTP.
package handler

import (
	"net/http"
	"strconv"

	"admissions_backend/internal/admissions/repository"
	"admissions_backend/internal/admissions/service"
	"admissions_backend/platform/httpkit"
	"admissions_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts the authenticated admission routes. Approval changes
// are restricted to admins.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:enquiryId", h.Get)
	rg.PATCH("/:enquiryId/approval", httpkit.RequireRole("admin"), h.SetApproval)
}

func (h *Handler) List(c *gin.Context) {
	params := repository.ListParams{
		ApprovalStatus: c.Query("approvalStatus"),
	}
	params.SchoolID, _ = strconv.ParseInt(c.Query("schoolId"), 10, 64)
	params.AcademicYearID, _ = strconv.ParseInt(c.Query("academicYearId"), 10, 64)
	params.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	params.Offset, _ = strconv.Atoi(c.Query("offset"))

	// Counsellor accounts are scoped to their school.
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	if scoped := identity.SchoolID(); scoped > 0 && !identity.HasRole("admin") {
		params.SchoolID = scoped
	}

	admissions, err := h.svc.List(c.Request.Context(), params)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": admissions})
}

func (h *Handler) Get(c *gin.Context) {
	enquiryID, err := uuid.Parse(c.Param("enquiryId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	admission, err := h.svc.Get(c.Request.Context(), enquiryID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, admission)
}

func (h *Handler) SetApproval(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	enquiryID, err := uuid.Parse(c.Param("enquiryId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req struct {
		Status string `json:"status" validate:"required,max=30"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	admission, err := h.svc.SetApproval(c.Request.Context(), enquiryID, req.Status, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, admission)
}
