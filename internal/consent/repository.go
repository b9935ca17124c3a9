package consent

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/users"
)

// RepositoryPort defines consent persistence over user metadata.
type RepositoryPort interface {
	SetConsent(ctx context.Context, userID int64, granted bool) error
	GetConsent(ctx context.Context, userID int64) (*bool, error)
	ConsentedUsers(ctx context.Context, limit, offset int) ([]ConsentedUser, error)
	CountConsent(ctx context.Context) (total, consented, declined int64, err error)
}

// Repository provides PostgreSQL backed persistence on user_meta.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ RepositoryPort = (*Repository)(nil)

// SetConsent upserts the consent flag for the user.
func (r *Repository) SetConsent(ctx context.Context, userID int64, granted bool) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_meta (user_id, meta_key, meta_value, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (user_id, meta_key) DO UPDATE SET meta_value = EXCLUDED.meta_value, updated_at = NOW()`,
		userID, users.MetaAdvancedConsent, strconv.FormatBool(granted))
	if err != nil {
		return fmt.Errorf("consent: set: %w", err)
	}
	return nil
}

// GetConsent returns the stored decision, nil when never answered.
func (r *Repository) GetConsent(ctx context.Context, userID int64) (*bool, error) {
	var value string
	err := r.pool.QueryRow(ctx,
		`SELECT meta_value FROM user_meta WHERE user_id = $1 AND meta_key = $2`,
		userID, users.MetaAdvancedConsent).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("consent: get: %w", err)
	}
	granted := value == "true"
	return &granted, nil
}

// Page size bounds for the consented-user listing.
const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// ConsentedUsers lists accounts that opted in, newest first.
func (r *Repository) ConsentedUsers(ctx context.Context, limit, offset int) ([]ConsentedUser, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.email, u.username, m.updated_at
		 FROM users u
		 JOIN user_meta m ON m.user_id = u.id AND m.meta_key = $1
		 WHERE m.meta_value = 'true'
		 ORDER BY m.updated_at DESC
		 LIMIT $2 OFFSET $3`,
		users.MetaAdvancedConsent, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("consent: list: %w", err)
	}
	defer rows.Close()

	var out []ConsentedUser
	for rows.Next() {
		var row ConsentedUser
		if err := rows.Scan(&row.UserID, &row.Email, &row.Username, &row.GrantedAt); err != nil {
			return nil, fmt.Errorf("consent: scan: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("consent: rows: %w", err)
	}
	return out, nil
}

// CountConsent aggregates totals for the statistics endpoint.
func (r *Repository) CountConsent(ctx context.Context) (total, consented, declined int64, err error) {
	err = r.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM users),
			COUNT(*) FILTER (WHERE m.meta_value = 'true'),
			COUNT(*) FILTER (WHERE m.meta_value = 'false')
		 FROM user_meta m
		 WHERE m.meta_key = $1`,
		users.MetaAdvancedConsent).Scan(&total, &consented, &declined)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("consent: count: %w", err)
	}
	return total, consented, declined, nil
}
