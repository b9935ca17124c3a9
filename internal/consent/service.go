package consent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/observability"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/registration"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/shared"
)

const statsCacheKey = "consent:stats"

// Service wraps consent business rules: tri-state reads, audited writes
// and cached aggregates.
type Service struct {
	repo     RepositoryPort
	audit    shared.Recorder
	metrics  *observability.Metrics
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *slog.Logger
	group    singleflight.Group
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, audit shared.Recorder, metrics *observability.Metrics, cache *redis.Client, cacheTTL time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Service{repo: repo, audit: audit, metrics: metrics, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// Update records a consent decision and emits an audit event naming the
// actor. actorID is the user making the change, usually the subject.
func (s *Service) Update(ctx context.Context, userID int64, granted bool, actorID int64) error {
	if err := s.repo.SetConsent(ctx, userID, granted); err != nil {
		return err
	}
	s.metrics.ConsentUpdate(granted)
	s.invalidateStats(ctx)

	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   shared.AuditActionConsentUpdate,
			Entity:   "user",
			EntityID: fmt.Sprintf("%d", userID),
			Meta:     map[string]any{"granted": granted},
		}); err != nil {
			s.logger.Warn("audit consent update", slog.Any("error", err))
		}
	}
	return nil
}

// Get returns the stored decision: true, false, or nil for never asked.
func (s *Service) Get(ctx context.Context, userID int64) (*bool, error) {
	return s.repo.GetConsent(ctx, userID)
}

// Has reports whether the user explicitly granted consent.
func (s *Service) Has(ctx context.Context, userID int64) bool {
	decision, err := s.repo.GetConsent(ctx, userID)
	if err != nil {
		s.logger.Warn("consent lookup", slog.Int64("user_id", userID), slog.Any("error", err))
		return false
	}
	return decision != nil && *decision
}

// ConsentedUsers lists accounts that opted in. The page size is clamped
// before it reaches storage.
func (s *Service) ConsentedUsers(ctx context.Context, limit, offset int) ([]ConsentedUser, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return s.repo.ConsentedUsers(ctx, limit, offset)
}

// Statistics aggregates consent totals. Concurrent callers share one
// computation and results are cached briefly in Redis.
func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, statsCacheKey).Bytes(); err == nil {
			var cached Statistics
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	value, err, _ := s.group.Do(statsCacheKey, func() (any, error) {
		total, consented, declined, err := s.repo.CountConsent(ctx)
		if err != nil {
			return Statistics{}, err
		}
		stats := Statistics{
			TotalUsers: total,
			Consented:  consented,
			Declined:   declined,
			Pending:    total - consented - declined,
		}
		if total > 0 {
			stats.Rate = float64(consented) / float64(total) * 100
		}
		if s.cache != nil {
			if data, err := json.Marshal(stats); err == nil {
				if err := s.cache.Set(ctx, statsCacheKey, data, s.cacheTTL).Err(); err != nil {
					s.logger.Warn("consent stats cache write", slog.Any("error", err))
				}
			}
		}
		return stats, nil
	})
	if err != nil {
		return Statistics{}, err
	}
	return value.(Statistics), nil
}

// UserRegistering implements registration.Observer. Nothing to validate:
// consent never gates a registration.
func (s *Service) UserRegistering(ctx context.Context, event *registration.Event) error {
	return nil
}

// UserRegistered persists the opt-in supplied at signup, if any.
func (s *Service) UserRegistered(ctx context.Context, event *registration.Event) error {
	if event.Consent == nil || event.UserID == 0 {
		return nil
	}
	return s.Update(ctx, event.UserID, *event.Consent, event.UserID)
}

var _ registration.Observer = (*Service)(nil)

func (s *Service) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, statsCacheKey).Err(); err != nil {
		s.logger.Warn("consent stats cache invalidate", slog.Any("error", err))
	}
}
