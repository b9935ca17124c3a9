// Package consent tracks the advanced-features opt-in per user. Consent
// is tri-state: granted, declined, or never answered. It is always
// optional and never blocks registration.
package consent

import "time"

// ConsentedUser is a row returned when listing opted-in accounts.
type ConsentedUser struct {
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	GrantedAt time.Time `json:"granted_at"`
}

// Statistics aggregates consent decisions across all accounts.
type Statistics struct {
	TotalUsers int64   `json:"total_users"`
	Consented  int64   `json:"consented"`
	Declined   int64   `json:"declined"`
	Pending    int64   `json:"pending"`
	Rate       float64 `json:"rate"`
}
