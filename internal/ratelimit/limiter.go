// Package ratelimit implements fixed-window attempt counters backed by
// Redis. Counters are keyed by a hash of scope and identifier and expire
// passively once the window elapses.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/platform/httpx"
)

// Scopes accepted by Reset and used for counter keys.
const (
	ScopeRegistration = "registration"
	ScopeLogin        = "login"
)

// Config carries the per-scope ceilings and windows.
type Config struct {
	RegistrationLimit  int
	RegistrationWindow time.Duration
	LoginLimit         int
	LoginWindow        time.Duration
	IPLimit            int
	IPWindow           time.Duration

	// DebugBypass disables all checks. Development escape hatch, not a
	// security boundary.
	DebugBypass bool
}

// DefaultConfig mirrors the documented product defaults.
func DefaultConfig() Config {
	return Config{
		RegistrationLimit:  3,
		RegistrationWindow: time.Hour,
		LoginLimit:         5,
		LoginWindow:        15 * time.Minute,
		IPLimit:            10,
		IPWindow:           time.Hour,
	}
}

// Limiter enforces attempt ceilings per email or IP.
type Limiter struct {
	client *redis.Client
	config Config
	logger *slog.Logger
}

// NewLimiter constructs a Limiter.
func NewLimiter(client *redis.Client, config Config, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{client: client, config: config, logger: logger}
}

// CheckRegistration counts a registration attempt for the email.
func (l *Limiter) CheckRegistration(ctx context.Context, email string) error {
	return l.check(ctx, ScopeRegistration, email, l.config.RegistrationLimit, l.config.RegistrationWindow)
}

// CheckLogin counts a login attempt for the email.
func (l *Limiter) CheckLogin(ctx context.Context, email string) error {
	return l.check(ctx, ScopeLogin, email, l.config.LoginLimit, l.config.LoginWindow)
}

// CheckIP counts an attempt for an arbitrary action keyed by client IP.
// Zero limit or window fall back to the configured IP defaults.
func (l *Limiter) CheckIP(ctx context.Context, action, ip string, limit int, window time.Duration) error {
	if ip == "" {
		return nil
	}
	if limit <= 0 {
		limit = l.config.IPLimit
	}
	if window <= 0 {
		window = l.config.IPWindow
	}
	return l.check(ctx, "ip:"+action, ip, limit, window)
}

// Reset clears the counter for an identifier ahead of its expiry. Used
// after manual admin intervention.
func (l *Limiter) Reset(ctx context.Context, identifier, scope string) error {
	if err := l.client.Del(ctx, counterKey(scope, identifier)).Err(); err != nil {
		return fmt.Errorf("ratelimit: reset %s: %w", scope, err)
	}
	return nil
}

// check increments the window counter and fails once the ceiling is hit.
// The ceiling-th attempt is still allowed; the one after it is not.
func (l *Limiter) check(ctx context.Context, scope, identifier string, limit int, window time.Duration) error {
	if l.config.DebugBypass {
		return nil
	}

	// INCR and EXPIRE travel in one pipeline so the counter can never be
	// created without a TTL; NX leaves an existing window untouched.
	key := counterKey(scope, identifier)
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ratelimit: incr %s: %w", scope, err)
	}
	count := incr.Val()
	if count > int64(limit) {
		l.logger.Warn("rate limit exceeded",
			slog.String("scope", scope),
			slog.Int64("attempts", count),
			slog.Int("limit", limit))
		return fmt.Errorf("%s: %w", scope, httpx.ErrRateLimited)
	}
	return nil
}

func counterKey(scope, identifier string) string {
	sum := sha256.Sum256([]byte(scope + ":" + identifier))
	return "ratelimit:" + hex.EncodeToString(sum[:])
}
