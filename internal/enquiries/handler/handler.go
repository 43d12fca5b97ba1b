// Package handler exposes the enquiries bounded context over HTTP.
package handler

import (
	"net/http"
	"strconv"

	"admissions_backend/internal/enquiries/repository"
	"admissions_backend/internal/enquiries/service"
	"admissions_backend/internal/enquiries/transport"
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

// RegisterRoutes mounts the authenticated enquiry routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/check-duplicate", h.CheckDuplicate)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.POST("/:id/close", h.Close)
	rg.GET("/:id/logs", h.ListLogs)
	rg.GET("/:id/fee-requests", h.ListFeeRequests)
	rg.POST("/:id/referral/verify", h.VerifyReferral)
	rg.POST("/:id/referral/manual", h.ManualReferral)
	rg.POST("/:id/merge", h.Merge)
	rg.POST("/transfer", h.Transfer)
	rg.POST("/reassign", h.Reassign)
	rg.POST("/reopen", h.Reopen)
	rg.GET("/:id/documents", h.ListDocuments)
	rg.POST("/:id/documents", h.UploadDocument)
	rg.GET("/documents/:docId", h.GetDocument)
	rg.PATCH("/documents/:docId/verify", h.VerifyDocument)
	rg.DELETE("/documents/:docId", h.DeleteDocument)
}

// RegisterAdminRoutes mounts the admin-only enquiry routes.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.DELETE("/enquiries/logs/:logId", h.DeleteLog)
}

func (h *Handler) Create(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.CreateEnquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	enquiry, err := h.svc.Create(c.Request.Context(), req, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, enquiry)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	enquiry, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, enquiry)
}

func (h *Handler) List(c *gin.Context) {
	params := repository.ListParams{
		Status:      c.Query("status"),
		EnquiryType: c.Query("enquiryType"),
		Search:      c.Query("search"),
	}
	params.SchoolID, _ = strconv.ParseInt(c.Query("schoolId"), 10, 64)
	params.AcademicYearID, _ = strconv.ParseInt(c.Query("academicYearId"), 10, 64)
	params.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	params.Offset, _ = strconv.Atoi(c.Query("offset"))
	if raw := c.Query("assignedTo"); raw != "" {
		assignee, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		params.AssignedTo = &assignee
	}

	// Counsellor accounts are scoped to their school.
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	if scoped := identity.SchoolID(); scoped > 0 && !identity.HasRole("admin") {
		params.SchoolID = scoped
	}

	result, err := h.svc.List(c.Request.Context(), params)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Update(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.UpdateEnquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	enquiry, err := h.svc.Update(c.Request.Context(), id, req, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, enquiry)
}

func (h *Handler) Close(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.CloseEnquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	if err := h.svc.Close(c.Request.Context(), id, req, identity.UserID()); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "closed"})
}

func (h *Handler) CheckDuplicate(c *gin.Context) {
	schoolID, _ := strconv.ParseInt(c.Query("schoolId"), 10, 64)
	result, err := h.svc.CheckDuplicate(c.Request.Context(),
		c.Query("firstName"), c.Query("lastName"), c.Query("dob"),
		c.Query("enquiryType"), schoolID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) ListLogs(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	logs, err := h.svc.ListLogs(c.Request.Context(), id, limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": logs})
}

func (h *Handler) DeleteLog(c *gin.Context) {
	logID, err := uuid.Parse(c.Param("logId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if err := h.svc.DeleteLog(c.Request.Context(), logID); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "deleted"})
}

func (h *Handler) ListFeeRequests(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	requests, err := h.svc.ListFeeRequests(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": requests})
}

func (h *Handler) VerifyReferral(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.VerifyReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	message, err := h.svc.VerifyReferral(c.Request.Context(), id, req, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"message": message})
}

func (h *Handler) ManualReferral(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.ManualReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	if err := h.svc.ManualReferral(c.Request.Context(), id, req, identity.UserID()); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "recorded"})
}
