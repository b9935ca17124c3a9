package registration

import (
	"context"
	"log/slog"
)

// Event is the payload delivered to registration observers.
type Event struct {
	UserID     int64
	Email      string
	Username   string
	RedirectTo string
	Consent    *bool
	ClientIP   string
}

// Observer receives registration lifecycle notifications. Observer
// failures are logged and never abort the registration itself.
type Observer interface {
	// UserRegistering fires after validation, before the account exists.
	UserRegistering(ctx context.Context, event *Event) error
	// UserRegistered fires once the account and its metadata are written.
	UserRegistered(ctx context.Context, event *Event) error
}

func (s *Service) notifyRegistering(ctx context.Context, event *Event) {
	for _, obs := range s.observers {
		if err := obs.UserRegistering(ctx, event); err != nil {
			s.logger.Warn("registration observer failed",
				slog.String("stage", "registering"),
				slog.Any("error", err))
		}
	}
}

func (s *Service) notifyRegistered(ctx context.Context, event *Event) {
	for _, obs := range s.observers {
		if err := obs.UserRegistered(ctx, event); err != nil {
			s.logger.Warn("registration observer failed",
				slog.String("stage", "registered"),
				slog.Any("error", err))
		}
	}
}
