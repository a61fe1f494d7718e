// Package presignlimiter bounds how many presigned URLs a single
// workspace/user pair can mint per window, backed by Redis so the limit
// holds across every instance of the service.
package presignlimiter

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apperrors "github.com/vaultspace/artifactd/internal/errors"
)

// Limiter enforces a fixed-window token bucket per key, implemented as a
// single INCR+EXPIRE pair so the limit is correct even under concurrent
// requests across processes.
type Limiter struct {
	client    *redis.Client
	logger    *zap.Logger
	limit     int64
	window    time.Duration
	connected atomic.Bool
}

// New builds a Limiter against a Redis endpoint. The connection is lazy:
// the client is constructed but not dialed until the first Allow call.
func New(opts *redis.Options, limit int64, window time.Duration, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		client: redis.NewClient(opts),
		logger: logger,
		limit:  limit,
		window: window,
	}
}

// ensureConnection pings lazily and skips the ping once one has succeeded.
// The flag is a plain Load/Store, so concurrent callers arriving before
// the first success each ping; failures are not cached so a later call
// can retry once Redis recovers.
func (l *Limiter) ensureConnection(ctx context.Context) error {
	if l.connected.Load() {
		return nil
	}
	if err := l.client.Ping(ctx).Err(); err != nil {
		return apperrors.NewBackendError("presign limiter", err).WithDetails("redis unavailable")
	}
	l.connected.Store(true)
	return nil
}

// Allow increments key's counter in its current window and reports
// whether the caller is still under limit. Redis being unavailable is
// treated as an open gate: presign minting degrades to unlimited rather
// than failing every request.
func (l *Limiter) Allow(ctx context.Context, workspace, userID string) (bool, error) {
	if err := l.ensureConnection(ctx); err != nil {
		l.logger.Warn("presign limiter degraded, allowing request", zap.Error(err))
		return true, nil
	}

	key := fmt.Sprintf("presign:%s:%s", workspace, userID)
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		l.connected.Store(false)
		l.logger.Warn("presign limiter degraded, allowing request", zap.Error(err))
		return true, nil
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			l.logger.Warn("presign limiter failed to set window expiry", zap.Error(err))
		}
	}
	return count <= l.limit, nil
}

// Close releases the underlying Redis connection.
func (l *Limiter) Close() error {
	return l.client.Close()
}
