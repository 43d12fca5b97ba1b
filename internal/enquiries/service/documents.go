package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"admissions_backend/internal/enquiries/repository"
	"admissions_backend/internal/enquiries/transport"
	"admissions_backend/platform/apperr"

	"github.com/google/uuid"
)

// signedURLExpiry bounds how long a document download link stays valid.
const signedURLExpiry = 15 * time.Minute

var allowedDocumentExtensions = map[string]struct{}{
	".pdf":  {},
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

// UploadDocumentParams carries one inbound file for an enquiry.
type UploadDocumentParams struct {
	DocumentID  int64
	FileName    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// UploadDocument stores the file bytes in object storage and records the
// document row. The storage key embeds the enquiry id so keys never collide
// across enquiries.
func (s *Service) UploadDocument(ctx context.Context, enquiryID uuid.UUID, params UploadDocumentParams, actorID uuid.UUID) (transport.DocumentResponse, error) {
	if s.storage == nil {
		return transport.DocumentResponse{}, apperr.Internal("document storage is not configured", nil)
	}

	ext := strings.ToLower(path.Ext(params.FileName))
	if _, ok := allowedDocumentExtensions[ext]; !ok {
		return transport.DocumentResponse{}, apperr.Validation(fmt.Sprintf("file type %q is not allowed", ext))
	}

	enquiry, err := s.repo.GetByID(ctx, enquiryID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.DocumentResponse{}, apperr.NotFound("enquiry not found")
		}
		return transport.DocumentResponse{}, apperr.Internal("failed to load enquiry", err)
	}

	key := fmt.Sprintf("enquiries/%s/%s%s", enquiryID, uuid.New(), ext)
	if err := s.storage.Upload(ctx, key, params.Reader, params.Size, params.ContentType); err != nil {
		return transport.DocumentResponse{}, apperr.Internal("failed to store document", err)
	}

	doc, err := s.repo.AddDocument(ctx, repository.AddDocumentParams{
		EnquiryID:  enquiryID,
		DocumentID: params.DocumentID,
		FileName:   params.FileName,
		FileKey:    key,
		UploadedBy: actorID,
	})
	if err != nil {
		return transport.DocumentResponse{}, apperr.Internal("failed to record document", err)
	}

	if _, err := s.repo.AppendLog(ctx, repository.AppendLogParams{
		EnquiryID: enquiryID,
		EventType: repository.LogEventDocumentUploaded,
		Event:     "Document uploaded: " + params.FileName,
		LogData:   map[string]any{"documentId": params.DocumentID, "fileName": params.FileName},
		CreatedBy: actorID,
	}); err != nil {
		s.log.Error("failed to write document upload log", "enquiryId", enquiry.ID, "error", err)
	}

	return transport.ToDocumentResponse(doc), nil
}

// ListDocuments returns an enquiry's live documents, without download URLs.
func (s *Service) ListDocuments(ctx context.Context, enquiryID uuid.UUID) ([]transport.DocumentResponse, error) {
	docs, err := s.repo.ListDocuments(ctx, enquiryID)
	if err != nil {
		return nil, apperr.Internal("failed to list documents", err)
	}
	out := make([]transport.DocumentResponse, len(docs))
	for i, doc := range docs {
		out[i] = transport.ToDocumentResponse(doc)
	}
	return out, nil
}

// GetDocument returns one document with a short-lived signed download URL.
func (s *Service) GetDocument(ctx context.Context, id uuid.UUID) (transport.DocumentResponse, error) {
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return transport.DocumentResponse{}, apperr.NotFound("document not found")
		}
		return transport.DocumentResponse{}, apperr.Internal("failed to load document", err)
	}
	if doc.IsDeleted {
		return transport.DocumentResponse{}, apperr.NotFound("document not found")
	}

	out := transport.ToDocumentResponse(doc)
	if s.storage != nil {
		url, err := s.storage.SignedURL(ctx, doc.FileKey, signedURLExpiry)
		if err != nil {
			s.log.Error("failed to sign document url", "documentId", id, "error", err)
		} else {
			out.DownloadURL = url
		}
	}
	return out, nil
}

// VerifyDocument flags a document as checked by staff.
func (s *Service) VerifyDocument(ctx context.Context, id uuid.UUID, verified bool) error {
	if err := s.repo.SetDocumentVerified(ctx, id, verified); err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return apperr.NotFound("document not found")
		}
		return apperr.Internal("failed to update document", err)
	}
	return nil
}

// DeleteDocument soft-deletes a document; the stored object is retained.
func (s *Service) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SoftDeleteDocument(ctx, id); err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return apperr.NotFound("document not found")
		}
		return apperr.Internal("failed to delete document", err)
	}
	return nil
}
