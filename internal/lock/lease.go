package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lease is currently held elsewhere.
var ErrNotAcquired = errors.New("lease not acquired")

// Lease is a time-bound exclusive claim on a key. It auto-expires after its
// TTL, so a crashed holder cannot block the key permanently.
type Lease struct {
	Key       string
	Token     string
	ExpiresAt time.Time
}

// releaseScript deletes the key only when it still holds our token. A plain
// DEL could remove a successor's lease after ours expired.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker grants and releases leases backed by Redis SET NX PX.
type Locker struct {
	client *redis.Client
}

// NewLocker constructs a Locker.
func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: client}
}

// Acquire attempts a single grab of the keyed lease. It does not wait or
// retry: a held lease yields ErrNotAcquired immediately so the caller can
// surface a retryable outcome.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return &Lease{Key: key, Token: token, ExpiresAt: time.Now().Add(ttl)}, nil
}

// Release gives up the lease. Releasing an expired or already-released lease
// is a no-op, so Release is safe to defer unconditionally.
func (l *Locker) Release(ctx context.Context, lease *Lease) error {
	if lease == nil {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{lease.Key}, lease.Token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release lease %s: %w", lease.Key, err)
	}
	return nil
}
