// Package settings stores the dynamic options administrators can change
// at runtime: the registration toggle, the default role and guest
// preview behaviour.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/shared"
)

const cacheKey = "settings:current"

// Settings is the full option set served to admins and consulted by the
// registration flow.
type Settings struct {
	RegistrationEnabled bool           `json:"registration_enabled"`
	DefaultRole         string         `json:"default_role" validate:"omitempty,oneof=subscriber contributor"`
	GuestPreviewEnabled bool           `json:"guest_preview_enabled"`
	GuestPreviewLengths map[string]int `json:"guest_preview_lengths"`
}

// Defaults returns the seed values used until an admin saves changes.
// Preview lengths are configuration, not constants baked into handlers.
func Defaults() Settings {
	return Settings{
		RegistrationEnabled: true,
		DefaultRole:         "subscriber",
		GuestPreviewEnabled: true,
		GuestPreviewLengths: map[string]int{
			"instagram": 125,
			"tiktok":    150,
			"twitter":   200,
		},
	}
}

// StorePort persists the serialized option set.
type StorePort interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// PGStore keeps settings in the app_settings table.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PostgreSQL backed store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Load reads the stored option set, shared.ErrNotFound when unset.
func (s *PGStore) Load(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM app_settings WHERE key = 'creator_suite'`).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("settings: load: %w", err)
	}
	return data, nil
}

// Save upserts the stored option set.
func (s *PGStore) Save(ctx context.Context, data []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO app_settings (key, value, updated_at) VALUES ('creator_suite', $1, NOW())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`, data)
	if err != nil {
		return fmt.Errorf("settings: save: %w", err)
	}
	return nil
}

var _ StorePort = (*PGStore)(nil)

// Service reads and writes settings with a Redis read-through cache.
type Service struct {
	store    StorePort
	cache    *redis.Client
	cacheTTL time.Duration
	defaults Settings
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(store StorePort, cache *redis.Client, cacheTTL time.Duration, defaults Settings, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &Service{store: store, cache: cache, cacheTTL: cacheTTL, defaults: defaults, logger: logger}
}

// Get returns the current settings, falling back to defaults when no row
// has been written yet.
func (s *Service) Get(ctx context.Context) (Settings, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached Settings
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	data, err := s.store.Load(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Cache the defaults too, so reads before the first admin save
			// do not hit Postgres on every call.
			s.fillCache(ctx, s.defaults)
			return s.defaults, nil
		}
		return s.defaults, err
	}

	current := s.defaults
	if err := json.Unmarshal(data, &current); err != nil {
		return s.defaults, fmt.Errorf("settings: decode: %w", err)
	}
	s.fillCache(ctx, current)
	return current, nil
}

// Update persists new settings and refreshes the cache.
func (s *Service) Update(ctx context.Context, updated Settings) error {
	data, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}
	if err := s.store.Save(ctx, data); err != nil {
		return err
	}
	s.fillCache(ctx, updated)
	return nil
}

// RegistrationEnabled reports whether self-registration is open. Storage
// failures fall back to the seeded default so an outage cannot flip the
// toggle.
func (s *Service) RegistrationEnabled(ctx context.Context) bool {
	current, err := s.Get(ctx)
	if err != nil {
		s.logger.Warn("settings lookup failed, using defaults", slog.Any("error", err))
		return s.defaults.RegistrationEnabled
	}
	return current.RegistrationEnabled
}

// DefaultRole returns the role granted to self-registered accounts.
func (s *Service) DefaultRole(ctx context.Context) string {
	current, err := s.Get(ctx)
	if err != nil {
		return s.defaults.DefaultRole
	}
	return current.DefaultRole
}

func (s *Service) fillCache(ctx context.Context, current Settings) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(current)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey, data, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("settings cache write", slog.Any("error", err))
	}
}
