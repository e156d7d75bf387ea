package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/parleylabs/parley/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const keyMessageAccount = "chat:message:account:%s"

// MessageLimiter bounds how fast a single account can post messages. A nil
// limiter (rate limiting disabled) allows everything.
type MessageLimiter struct {
	enabled bool

	bucket *TokenBucket

	rate  float64
	burst int
}

func NewMessageLimiter(cfg config.Config) (*MessageLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.MessageRate <= 0 || limitCfg.MessageBurst <= 0 {
		return nil, errors.New("message rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &MessageLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    limitCfg.MessageRate,
		burst:   limitCfg.MessageBurst,
	}, nil
}

func (l *MessageLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *MessageLimiter) AllowAccount(ctx context.Context, externalID string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyMessageAccount, strings.TrimSpace(externalID))
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}
