package adapters

import (
	"context"

	"admissions_backend/internal/enquiries/service"
	"admissions_backend/platform/redislock"
)

// EnquiryLocker adapts the redis-backed distributed lock to the enquiry
// service's Locker interface.
type EnquiryLocker struct {
	locker *redislock.Locker
}

// NewEnquiryLocker creates a new enquiry locker adapter.
func NewEnquiryLocker(locker *redislock.Locker) *EnquiryLocker {
	return &EnquiryLocker{locker: locker}
}

// Acquire takes the lock for key, blocking until acquired or ctx is done.
func (a *EnquiryLocker) Acquire(ctx context.Context, key string) (service.Lock, error) {
	lock, err := a.locker.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// Compile-time check.
var _ service.Locker = (*EnquiryLocker)(nil)
