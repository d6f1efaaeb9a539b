package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kudibooks/kudibooks/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const (
	keyPostingCompany = "posting:company:%s"
	keyPostingDoc     = "posting:lock:%s:%s:%s"
)

// PostingLimiter throttles journal-producing writes per company and
// serializes concurrent posting of the same document across replicas.
// A nil limiter means rate limiting is disabled and everything passes.
type PostingLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker

	rate    float64
	burst   int
	lockTTL time.Duration
}

func NewPostingLimiter(cfg config.Config) (*PostingLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.PostingRate <= 0 || limitCfg.PostingBurst <= 0 {
		return nil, errors.New("posting rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &PostingLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		locker:  NewLocker(client),
		rate:    limitCfg.PostingRate,
		burst:   limitCfg.PostingBurst,
		lockTTL: time.Duration(limitCfg.PostingLockTTLSeconds) * time.Second,
	}, nil
}

func (l *PostingLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *PostingLimiter) AllowCompany(ctx context.Context, companyID string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyPostingCompany, strings.TrimSpace(companyID)), l.rate, l.burst)
}

// LockDocument claims a posting lock for one sale or expense so two
// replicas cannot race the unposted check. On success the returned
// release func frees the lock; when limiting is disabled it is a no-op.
func (l *PostingLimiter) LockDocument(ctx context.Context, companyID, docType, docID string) (release func(context.Context), acquired bool, err error) {
	if !l.Enabled() {
		return func(context.Context) {}, true, nil
	}
	key := fmt.Sprintf(keyPostingDoc,
		strings.TrimSpace(companyID),
		strings.TrimSpace(docType),
		strings.TrimSpace(docID),
	)
	lease, err := l.locker.Acquire(ctx, key, l.lockTTL)
	if err != nil {
		return nil, false, err
	}
	if lease == nil {
		return nil, false, nil
	}
	return func(ctx context.Context) { _ = lease.Release(ctx) }, true, nil
}
