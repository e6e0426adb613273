package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Backend is the shared counter store, implemented by redis.RateLimiter.
type Backend interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*redis.RateLimitResult, error)
	BlockFor(ctx context.Context, key string, d time.Duration) error
	IsBlocked(ctx context.Context, key string) (bool, time.Duration, error)
}

// Limit describes one outbound budget, shared by every process using the same key.
type Limit struct {
	Name     string
	Requests int
	Window   time.Duration
	// MaxWait bounds how long Wait blocks before giving up.
	MaxWait time.Duration
}

// Manager throttles calls to an external provider.
type Manager struct {
	backend Backend
	limit   Limit
	logger  ectologger.Logger
}

func NewManager(backend Backend, limit Limit, logger ectologger.Logger) *Manager {
	if limit.MaxWait <= 0 {
		limit.MaxWait = 30 * time.Second
	}
	return &Manager{
		backend: backend,
		limit:   limit,
		logger:  logger,
	}
}

// Wait blocks until the budget admits one request. Backend failures fail open.
func (m *Manager) Wait(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "RateLimitManager.Wait")
	defer span.End()

	if m.limit.Requests <= 0 {
		return nil
	}

	deadline := time.Now().Add(m.limit.MaxWait)
	for {
		retryIn, err := m.check(ctx)
		if err != nil {
			m.logger.WithContext(ctx).WithError(err).Errorf("Rate limit check failed for %s", m.limit.Name)
			return nil
		}
		if retryIn == 0 {
			return nil
		}

		if time.Now().Add(retryIn).After(deadline) {
			return fmt.Errorf("rate limit %s would exceed max wait time of %v", m.limit.Name, m.limit.MaxWait)
		}

		m.logger.WithContext(ctx).Infof("Rate limited by %s, waiting %v", m.limit.Name, retryIn)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryIn):
		}
	}
}

// check returns zero when the request is admitted, otherwise how long to wait.
func (m *Manager) check(ctx context.Context) (time.Duration, error) {
	if blocked, ttl, err := m.backend.IsBlocked(ctx, m.limit.Name); err == nil && blocked {
		return ttl, nil
	}

	result, err := m.backend.Allow(ctx, m.limit.Name, int64(m.limit.Requests), m.limit.Window)
	if err != nil {
		return 0, err
	}
	if result.Allowed {
		m.logger.WithContext(ctx).Debugf("Rate limit %s: %d remaining", m.limit.Name, result.Remaining)
		return 0, nil
	}

	retryIn := result.RetryIn
	if retryIn <= 0 {
		retryIn = 200 * time.Millisecond
	}
	return retryIn, nil
}

// Backoff pauses every caller of this budget for d, typically from a
// provider Retry-After header.
func (m *Manager) Backoff(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	if err := m.backend.BlockFor(ctx, m.limit.Name, d); err != nil {
		m.logger.WithContext(ctx).WithError(err).Warnf("failed to apply backoff for %s", m.limit.Name)
		return
	}
	m.logger.WithContext(ctx).Warnf("Provider asked %s to back off for %v", m.limit.Name, d)
}

// ParseRetryAfter parses a Retry-After header value in seconds or RFC 1123 form.
func ParseRetryAfter(value string) (time.Duration, error) {
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	if t, err := time.Parse(time.RFC1123, value); err == nil {
		return time.Until(t), nil
	}

	return 0, fmt.Errorf("invalid Retry-After value: %s", value)
}
