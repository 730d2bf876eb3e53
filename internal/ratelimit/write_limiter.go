package ratelimit

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/collections/internal/config"
)

const (
	keyWriteOrg       = "collections:ratelimit:write:%d"
	defaultWriteBurst = 20
)

// WriteLimiter budgets promise and action writes per tenant.
type WriteLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

// NewWriteLimiter returns nil when Redis or a positive write rate is missing.
func NewWriteLimiter(cfg config.Config, client *redis.Client) *WriteLimiter {
	if client == nil || cfg.WriteRate <= 0 {
		return nil
	}
	burst := cfg.WriteBurst
	if burst <= 0 {
		burst = defaultWriteBurst
	}
	return &WriteLimiter{
		bucket: NewTokenBucket(client),
		rate:   cfg.WriteRate,
		burst:  burst,
	}
}

func (l *WriteLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *WriteLimiter) AllowWrite(ctx context.Context, orgID snowflake.ID) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyWriteOrg, int64(orgID)), l.rate, l.burst)
}

func provideLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return NewLocker(client)
}
