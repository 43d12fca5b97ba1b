package redislock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, 5*time.Second), mr
}

func TestTryAcquireSecondHolderRejected(t *testing.T) {
	locker, _ := newTestLocker(t)
	ctx := context.Background()

	first, err := locker.TryAcquire(ctx, "enquiry:123")
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	if _, err := locker.TryAcquire(ctx, "enquiry:123"); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	if _, err := locker.TryAcquire(ctx, "enquiry:123"); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
}

func TestAcquireWaitsForRelease(t *testing.T) {
	locker, _ := newTestLocker(t)
	ctx := context.Background()

	held, err := locker.TryAcquire(ctx, "enquiry:wait")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		lock, err := locker.Acquire(ctx, "enquiry:wait")
		if err == nil {
			_ = lock.Release(ctx)
		}
		done <- err
	}()

	time.Sleep(100 * time.Millisecond)
	if err := held.Release(ctx); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("waiting acquire failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiting acquire did not complete after release")
	}
}

func TestAcquireHonoursContextCancellation(t *testing.T) {
	locker, _ := newTestLocker(t)
	ctx := context.Background()

	if _, err := locker.TryAcquire(ctx, "enquiry:ctx"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	cancelCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()

	if _, err := locker.Acquire(cancelCtx, "enquiry:ctx"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestStaleOwnerCannotReleaseReacquiredLock(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	stale, err := locker.TryAcquire(ctx, "enquiry:stale")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	// Simulate TTL expiry and reacquisition by another holder.
	mr.FastForward(10 * time.Second)
	fresh, err := locker.TryAcquire(ctx, "enquiry:stale")
	if err != nil {
		t.Fatalf("reacquire after expiry failed: %v", err)
	}

	if err := stale.Release(ctx); err != nil {
		t.Fatalf("stale release errored: %v", err)
	}

	// The fresh holder's lock must survive the stale release.
	if _, err := locker.TryAcquire(ctx, "enquiry:stale"); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("fresh lock was lost to a stale release: %v", err)
	}
	_ = fresh.Release(ctx)
}
