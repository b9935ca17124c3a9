// Package registration implements the email-only signup flow: validation,
// throttling, account creation and auto-login.
package registration

// State identifies how far a registration attempt progressed.
type State string

const (
	StateReceived     State = "received"
	StateValidated    State = "validated"
	StateRateChecked  State = "rate_checked"
	StateCreated      State = "created"
	StateRoleAssigned State = "role_assigned"
	StateAutoLoggedIn State = "auto_logged_in"
	StateComplete     State = "complete"
	// StatePartial marks a created account whose auto-login failed. The
	// caller receives the user ID and can recover via manual login.
	StatePartial State = "partial_success"
)

// MethodEmailOnly is the registration method recorded in user metadata.
const MethodEmailOnly = "email_only"

// Request carries a registration attempt.
type Request struct {
	Email      string
	RedirectTo string
	Consent    *bool
	ClientIP   string
	UserAgent  string
}

// Result reports the outcome of a completed registration.
type Result struct {
	State      State
	UserID     int64
	Username   string
	Email      string
	LoggedIn   bool
	RedirectTo string
}
