// Package storage provides a domain-agnostic interface for S3-compatible
// object storage. The enquiries document store and the exports module both
// sit on top of it, each with their own bucket.
package storage

import (
	"context"
	"io"
	"time"
)

// PresignedURL contains the URL and metadata for a presigned download.
type PresignedURL struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service defines the object storage operations the modules need.
type Service interface {
	// UploadFile uploads a file from an io.Reader under the given key.
	UploadFile(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) error

	// GenerateDownloadURL creates a presigned URL for downloading a file.
	GenerateDownloadURL(ctx context.Context, bucket, key string, expiry time.Duration) (*PresignedURL, error)

	// DownloadFile streams a stored object. The caller closes the reader.
	DownloadFile(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// DeleteObject removes an object from storage.
	DeleteObject(ctx context.Context, bucket, key string) error

	// EnsureBucketExists creates the bucket if it doesn't exist.
	EnsureBucketExists(ctx context.Context, bucket string) error

	// ValidateFileSize checks if the file size is within limits.
	ValidateFileSize(sizeBytes int64) error
}

// Config defines the configuration interface for storage.
type Config interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	IsMinIOEnabled() bool
}
