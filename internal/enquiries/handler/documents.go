package handler

import (
	"net/http"
	"strconv"

	"admissions_backend/internal/enquiries/service"
	"admissions_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxDocumentSize caps a single uploaded file at 10 MiB.
const maxDocumentSize = 10 << 20

func (h *Handler) UploadDocument(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	enquiryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "file is required", nil)
		return
	}
	if fileHeader.Size > maxDocumentSize {
		httpkit.Error(c, http.StatusRequestEntityTooLarge, "file exceeds the 10MB limit", nil)
		return
	}
	documentID, _ := strconv.ParseInt(c.PostForm("documentId"), 10, 64)

	file, err := fileHeader.Open()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "failed to read uploaded file", nil)
		return
	}
	defer file.Close()

	doc, err := h.svc.UploadDocument(c.Request.Context(), enquiryID, service.UploadDocumentParams{
		DocumentID:  documentID,
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Reader:      file,
	}, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, doc)
}

func (h *Handler) ListDocuments(c *gin.Context) {
	enquiryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	docs, err := h.svc.ListDocuments(c.Request.Context(), enquiryID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": docs})
}

func (h *Handler) GetDocument(c *gin.Context) {
	docID, err := uuid.Parse(c.Param("docId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	doc, err := h.svc.GetDocument(c.Request.Context(), docID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, doc)
}

func (h *Handler) VerifyDocument(c *gin.Context) {
	docID, err := uuid.Parse(c.Param("docId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req struct {
		Verified bool `json:"verified"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if err := h.svc.VerifyDocument(c.Request.Context(), docID, req.Verified); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "updated"})
}

func (h *Handler) DeleteDocument(c *gin.Context) {
	docID, err := uuid.Parse(c.Param("docId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if err := h.svc.DeleteDocument(c.Request.Context(), docID); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "deleted"})
}
