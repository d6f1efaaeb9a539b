package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Release only deletes the key while it still holds the lease token, so
// an expired lock re-acquired by another holder is never clobbered.
const leaseReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker hands out single-holder leases backed by SET NX.
type Locker struct {
	client  *redis.Client
	release *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client:  client,
		release: redis.NewScript(leaseReleaseScript),
	}
}

// Lease is a held lock. It expires on its own after the TTL; releasing
// earlier frees the document for the next poster immediately.
type Lease struct {
	locker *Locker
	key    string
	token  string
}

// Acquire claims key for ttl. A nil lease with nil error means another
// holder has it.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	switch {
	case l == nil || l.client == nil:
		return nil, errors.New("lock client not configured")
	case key == "":
		return nil, errors.New("lock key is empty")
	case ttl <= 0:
		return nil, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &Lease{locker: l, key: key, token: token}, nil
}

func (le *Lease) Release(ctx context.Context) error {
	if le == nil || le.locker == nil {
		return nil
	}
	return le.locker.release.Run(ctx, le.locker.client, []string{le.key}, le.token).Err()
}
