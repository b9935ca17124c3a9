package registration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/observability"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/platform/httpx"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/shared"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/users"
)

// RateLimiter throttles registration attempts.
type RateLimiter interface {
	CheckRegistration(ctx context.Context, email string) error
	CheckIP(ctx context.Context, action, ip string, limit int, window time.Duration) error
}

// SettingsPort exposes the dynamic options the orchestrator consults.
type SettingsPort interface {
	RegistrationEnabled(ctx context.Context) bool
	DefaultRole(ctx context.Context) string
}

// SessionBinder establishes a login session for a freshly created user.
// A nil binder or a binder error degrades the result to partial success.
type SessionBinder interface {
	AutoLogin(ctx context.Context, user *users.User) error
}

// Service orchestrates the registration flow.
type Service struct {
	repo      users.RepositoryPort
	limiter   RateLimiter
	settings  SettingsPort
	audit     shared.Recorder
	metrics   *observability.Metrics
	logger    *slog.Logger
	observers []Observer
}

// NewService constructs a Service.
func NewService(repo users.RepositoryPort, limiter RateLimiter, settings SettingsPort, audit shared.Recorder, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		limiter:  limiter,
		settings: settings,
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
	}
}

// Subscribe appends an observer. Not safe for use after the service
// started serving requests.
func (s *Service) Subscribe(obs Observer) {
	s.observers = append(s.observers, obs)
}

// Register runs the signup flow. Failures before account creation leave
// no trace; a failed auto-login after creation is reported as partial
// success carrying the new user ID, never rolled back.
func (s *Service) Register(ctx context.Context, req Request, binder SessionBinder) (*Result, error) {
	email := NormalizeEmail(req.Email)
	if !ValidEmail(email) {
		s.metrics.RegistrationOutcome("invalid_email")
		return nil, fmt.Errorf("registration: invalid email: %w", httpx.ErrValidation)
	}

	if err := s.limiter.CheckRegistration(ctx, email); err != nil {
		s.metrics.RegistrationOutcome("rate_limited")
		s.logger.Warn("registration throttled",
			slog.String("email", email),
			slog.String("ip", req.ClientIP),
			slog.String("user_agent", req.UserAgent))
		return nil, err
	}
	if req.ClientIP != "" {
		if err := s.limiter.CheckIP(ctx, "register", req.ClientIP, 0, 0); err != nil {
			s.metrics.RegistrationOutcome("rate_limited")
			return nil, err
		}
	}

	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		s.metrics.RegistrationOutcome("email_exists")
		return nil, fmt.Errorf("registration: %s already registered: %w", email, httpx.ErrConflict)
	}

	if !s.settings.RegistrationEnabled(ctx) {
		s.metrics.RegistrationOutcome("disabled")
		return nil, fmt.Errorf("registration is currently disabled: %w", httpx.ErrForbidden)
	}

	username, err := UsernameFromEmail(email)
	if err != nil {
		return nil, err
	}

	event := &Event{
		Email:      email,
		Username:   username,
		RedirectTo: req.RedirectTo,
		Consent:    req.Consent,
		ClientIP:   req.ClientIP,
	}
	s.notifyRegistering(ctx, event)

	// The password is random and never surfaced; accounts log in via the
	// established session or a later password reset.
	hash, err := bcrypt.GenerateFromPassword([]byte(randomPassword()), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("registration: hash password: %w", err)
	}

	role := s.settings.DefaultRole(ctx)
	if role == "" {
		role = users.DefaultRole
	}
	user, err := s.repo.Create(ctx, email, username, string(hash), role)
	if err != nil {
		s.metrics.RegistrationOutcome("store_failure")
		return nil, err
	}
	event.UserID = user.ID

	s.writeMeta(ctx, user.ID, users.MetaRegistrationMethod, MethodEmailOnly)
	s.writeMeta(ctx, user.ID, users.MetaAutoLogin, "true")
	if req.RedirectTo != "" {
		s.writeMeta(ctx, user.ID, users.MetaOriginalURL, req.RedirectTo)
	}

	s.notifyRegistered(ctx, event)

	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  user.ID,
			Action:   shared.AuditActionRegister,
			Entity:   "user",
			EntityID: fmt.Sprintf("%d", user.ID),
			Meta:     map[string]any{"email": email, "method": MethodEmailOnly, "ip": req.ClientIP},
		}); err != nil {
			s.logger.Warn("audit registration", slog.Any("error", err))
		}
	}

	result := &Result{
		State:      StateRoleAssigned,
		UserID:     user.ID,
		Username:   user.Username,
		Email:      user.Email,
		RedirectTo: req.RedirectTo,
	}

	if binder == nil {
		s.metrics.RegistrationOutcome("partial")
		result.State = StatePartial
		return result, nil
	}
	if err := binder.AutoLogin(ctx, user); err != nil {
		s.metrics.RegistrationOutcome("partial")
		s.logger.Warn("auto login failed",
			slog.Int64("user_id", user.ID),
			slog.Any("error", err))
		result.State = StatePartial
		return result, nil
	}

	s.metrics.RegistrationOutcome("complete")
	result.State = StateComplete
	result.LoggedIn = true
	return result, nil
}

func (s *Service) writeMeta(ctx context.Context, userID int64, key, value string) {
	if err := s.repo.SetMeta(ctx, userID, key, value); err != nil {
		s.logger.Warn("write registration meta",
			slog.Int64("user_id", userID),
			slog.String("key", key),
			slog.Any("error", err))
	}
}

func randomPassword() string {
	return uuid.NewString() + uuid.NewString()
}
