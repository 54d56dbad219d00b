package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/redis/go-redis/v9"

	"github.com/appetiteclub/tableside/pkg/orders"
)

const (
	defaultRedisRetries = 3
	retryBaseDelay      = 100 * time.Millisecond
	retryMaxDelay       = 2 * time.Second
)

// RedisOptions configures the Redis client backing RedisPersister.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisPersister stores each cart as a JSON array of lines under
// StorageKey(tableID).
type RedisPersister struct {
	client     redis.Cmdable
	ttl        time.Duration
	maxRetries int
	logger     aqm.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewRedisClient builds a pooled client for opts.
func NewRedisClient(opts RedisOptions) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}

func NewRedisPersister(client redis.Cmdable, ttl time.Duration, logger aqm.Logger) *RedisPersister {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	return &RedisPersister{
		client:     client,
		ttl:        ttl,
		maxRetries: defaultRedisRetries,
		logger:     logger,
		sleep:      sleepContext,
	}
}

func (p *RedisPersister) Load(ctx context.Context, tableID string) ([]orders.Line, error) {
	var raw string
	err := p.withRetry(ctx, func() error {
		val, err := p.client.Get(ctx, StorageKey(tableID)).Result()
		if errors.Is(err, redis.Nil) {
			raw = ""
			return nil
		}
		if err != nil {
			return err
		}
		raw = val
		return nil
	})
	if err != nil {
		return nil, err
	}

	if raw == "" {
		return nil, nil
	}

	var lines []orders.Line
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		p.logger.Error("discarding unreadable cart", "table_id", tableID, "error", err)
		return nil, nil
	}

	return lines, nil
}

func (p *RedisPersister) Save(ctx context.Context, tableID string, lines []orders.Line) error {
	if len(lines) == 0 {
		return p.Delete(ctx, tableID)
	}

	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("cannot encode cart: %w", err)
	}

	return p.withRetry(ctx, func() error {
		return p.client.Set(ctx, StorageKey(tableID), data, p.ttl).Err()
	})
}

func (p *RedisPersister) Delete(ctx context.Context, tableID string) error {
	return p.withRetry(ctx, func() error {
		return p.client.Del(ctx, StorageKey(tableID)).Err()
	})
}

// withRetry runs op, retrying connection class failures with exponential
// backoff and jitter.
func (p *RedisPersister) withRetry(ctx context.Context, op func() error) error {
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == p.maxRetries || !isRetryableError(err) {
			break
		}

		p.logger.Debug("retrying redis operation", "attempt", attempt+1, "error", err)
		if err := p.sleep(ctx, retryDelay(attempt)); err != nil {
			return err
		}
	}

	return fmt.Errorf("redis operation failed: %w", lastErr)
}

func retryDelay(attempt int) time.Duration {
	backoff := min(retryBaseDelay*time.Duration(1<<attempt), retryMaxDelay)
	half := backoff / 2
	return half + time.Duration(rand.Int64N(int64(half)+1))
}

func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	msg := err.Error()
	for _, s := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"broken pipe",
		"no such host",
		"network is unreachable",
		"EOF",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
