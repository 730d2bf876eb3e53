package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const (
	keyPromiseLock = "collections:lock:promise:%d:%d"

	// PromiseLockTTL bounds how long a crashed replica can block a promise.
	PromiseLockTTL = 5 * time.Second
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// PromiseLockKey scopes the resolution lease to one tenant's promise.
func PromiseLockKey(orgID, promiseID snowflake.ID) string {
	return fmt.Sprintf(keyPromiseLock, int64(orgID), int64(promiseID))
}

// Locker hands out short-lived exclusive leases keyed in Redis.
type Locker struct {
	client redis.UniversalClient
	script *redis.Script
}

func NewLocker(client redis.UniversalClient) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

// PromiseLease is held while one replica resolves a promise.
type PromiseLease struct {
	locker *Locker
	key    string
	token  string
}

// LeasePromise takes the resolution lease for one promise. ok is false when
// another resolution already holds it.
func (l *Locker) LeasePromise(ctx context.Context, orgID, promiseID snowflake.ID) (*PromiseLease, bool, error) {
	key := PromiseLockKey(orgID, promiseID)
	token, ok, err := l.TryLock(ctx, key, PromiseLockTTL)
	if err != nil || !ok {
		return nil, false, err
	}
	return &PromiseLease{locker: l, key: key, token: token}, true, nil
}

// Release gives the lease back unless it already expired and moved on.
func (p *PromiseLease) Release(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.locker.Release(ctx, p.key, p.token)
}

// TryLock returns a release token when the lease was acquired.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if key == "" {
		return "", false, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *Locker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}
