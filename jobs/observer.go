package jobs

import (
	"context"
	"log/slog"

	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/registration"
)

// RegistrationObserver enqueues follow-up work for new accounts.
type RegistrationObserver struct {
	client *Client
	logger *slog.Logger
}

// NewRegistrationObserver constructs the observer.
func NewRegistrationObserver(client *Client, logger *slog.Logger) *RegistrationObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegistrationObserver{client: client, logger: logger}
}

// UserRegistering implements registration.Observer.
func (o *RegistrationObserver) UserRegistering(ctx context.Context, event *registration.Event) error {
	return nil
}

// UserRegistered enqueues the welcome email for the new account.
func (o *RegistrationObserver) UserRegistered(ctx context.Context, event *registration.Event) error {
	if o.client == nil || event.UserID == 0 {
		return nil
	}
	_, err := o.client.EnqueueWelcomeEmail(ctx, WelcomeEmailPayload{
		UserID:   event.UserID,
		Email:    event.Email,
		Username: event.Username,
	})
	return err
}

var _ registration.Observer = (*RegistrationObserver)(nil)
