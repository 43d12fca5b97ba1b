// Package redislock provides a best-effort distributed mutex keyed by resource
// id, backed by redis SET NX. It serializes the read-modify-write sequences on
// a single enquiry (duplicate closure, fee triggering) across API instances.
// This is part of the platform layer and contains no business logic.
package redislock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock is held by another owner.
var ErrNotAcquired = errors.New("redislock: lock not acquired")

// releaseScript deletes the key only when the caller still owns it, so an
// expired-and-reacquired lock is never released by the stale owner.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// Locker acquires per-key mutexes on a redis instance.
type Locker struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// Lock is a held mutex. Release must be called exactly once.
type Lock struct {
	locker *Locker
	key    string
	token  string
}

// New creates a Locker. ttl bounds how long a crashed holder can block others.
func New(client redis.UniversalClient, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{client: client, ttl: ttl}
}

// Acquire takes the lock for key, retrying until the context is done.
func (l *Locker) Acquire(ctx context.Context, key string) (*Lock, error) {
	token, err := randomToken()
	if err != nil {
		return nil, err
	}

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return &Lock{locker: l, key: key, token: token}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// TryAcquire takes the lock or fails immediately with ErrNotAcquired.
func (l *Locker) TryAcquire(ctx context.Context, key string) (*Lock, error) {
	token, err := randomToken()
	if err != nil {
		return nil, err
	}

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return &Lock{locker: l, key: key, token: token}, nil
}

// Release frees the lock if still owned by this holder.
func (k *Lock) Release(ctx context.Context) error {
	if k == nil || k.locker == nil {
		return nil
	}
	return k.locker.client.Eval(ctx, releaseScript, []string{k.key}, k.token).Err()
}

func randomToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
