// Package auth serves the account endpoints: registration, login,
// session status and post-login redirects.
package auth

import (
	"context"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/shared"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/users"
)

// LoginLimiter throttles credential checks per email.
type LoginLimiter interface {
	CheckLogin(ctx context.Context, email string) error
}

// Service wraps authentication business rules.
type Service struct {
	repo    users.RepositoryPort
	limiter LoginLimiter
	logger  *slog.Logger
}

// NewService constructs a Service.
func NewService(repo users.RepositoryPort, limiter LoginLimiter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, limiter: limiter, logger: logger}
}

// Authenticate validates email/password credentials. Lookup failures and
// bad passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*users.User, error) {
	if err := s.limiter.CheckLogin(ctx, email); err != nil {
		return nil, err
	}
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// User loads an account by ID.
func (s *Service) User(ctx context.Context, id int64) (*users.User, error) {
	return s.repo.FindByID(ctx, id)
}

// RedirectURL resolves the post-login destination: the session value
// wins, then the original_url metadata, then the caller's fallback.
func (s *Service) RedirectURL(ctx context.Context, userID int64, sessionValue, fallback string) string {
	if sessionValue != "" {
		return sessionValue
	}
	if userID != 0 {
		if value, ok, err := s.repo.GetMeta(ctx, userID, users.MetaOriginalURL); err == nil && ok && value != "" {
			return value
		}
	}
	if fallback != "" {
		return fallback
	}
	return "/"
}
