package ports

import (
	"context"
	"io"
	"time"
)

// ObjectStore abstracts the document/object storage used for enquiry
// document uploads. Implemented by the MinIO adapter.
type ObjectStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}
