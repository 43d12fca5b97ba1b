package exports

import (
	"net/http"

	"admissions_backend/platform/httpkit"
	"admissions_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles export requests.
type Handler struct {
	svc *Service
	val *validator.Validator
}

// NewHandler creates a new export handler.
func NewHandler(svc *Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RequestExportRequest is the report request body.
type RequestExportRequest struct {
	Format         string `json:"format" validate:"required,oneof=csv xlsx"`
	SchoolID       int64  `json:"schoolId,omitempty" validate:"omitempty,min=1"`
	AcademicYearID int64  `json:"academicYearId,omitempty" validate:"omitempty,min=1"`
	EnquiryStatus  string `json:"enquiryStatus,omitempty" validate:"omitempty,max=20"`
}

// RequestEnquiryExport creates an export job and returns it immediately;
// the file is built in the background.
func (h *Handler) RequestEnquiryExport(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req RequestExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	// Counsellor accounts are scoped to their school.
	if scoped := identity.SchoolID(); scoped > 0 && !identity.HasRole("admin") {
		req.SchoolID = scoped
	}

	job, err := h.svc.Request(c.Request.Context(), RequestParams{
		Format:         req.Format,
		SchoolID:       req.SchoolID,
		AcademicYearID: req.AcademicYearID,
		EnquiryStatus:  req.EnquiryStatus,
	}, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusAccepted, job)
}

// GetExport returns the job status and a download link once completed.
func (h *Handler) GetExport(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	status, err := h.svc.Get(c.Request.Context(), id, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, status)
}
