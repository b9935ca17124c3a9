// Package users is the identity store for creator accounts.
package users

import "time"

// DefaultRole is assigned to every self-registered account.
const DefaultRole = "subscriber"

// Metadata keys written by the registration flow.
const (
	MetaRegistrationMethod = "registration_method"
	MetaAutoLogin          = "auto_login"
	MetaOriginalURL        = "original_url"
	MetaAdvancedConsent    = "advanced_features_consent"
)

// User represents a creator account.
type User struct {
	ID           int64
	Email        string
	Username     string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the account carries the administrator role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == "administrator"
}
