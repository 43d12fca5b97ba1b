// Package adapters wires module ports to their concrete implementations.
// Each adapter is a thin translation layer; anything with behavior of its
// own lives in the module that owns it.
package adapters

import (
	"context"
	"io"
	"time"

	"admissions_backend/internal/adapters/storage"
	"admissions_backend/internal/enquiries/ports"
)

// EnquiryDocumentStore adapts the shared storage service to the enquiries
// object-store port, pinning the enquiry-documents bucket.
type EnquiryDocumentStore struct {
	storage storage.Service
	bucket  string
}

// NewEnquiryDocumentStore creates a new enquiry document store adapter.
func NewEnquiryDocumentStore(svc storage.Service, bucket string) *EnquiryDocumentStore {
	return &EnquiryDocumentStore{storage: svc, bucket: bucket}
}

// Upload stores a document under the given key.
func (a *EnquiryDocumentStore) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	return a.storage.UploadFile(ctx, a.bucket, key, reader, size, contentType)
}

// SignedURL returns a presigned download URL for the stored document.
func (a *EnquiryDocumentStore) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	presigned, err := a.storage.GenerateDownloadURL(ctx, a.bucket, key, expiry)
	if err != nil {
		return "", err
	}
	return presigned.URL, nil
}

// Compile-time check.
var _ ports.ObjectStore = (*EnquiryDocumentStore)(nil)
