package registration

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/platform/httpx"
)

const minUsernameLength = 3

// foldDiacritics decomposes accented characters and drops the combining
// marks, so "josé" becomes "jose" before charset filtering.
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether the address is syntactically valid.
func ValidEmail(email string) bool {
	if email == "" || strings.Count(email, "@") != 1 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// UsernameFromEmail derives a login name from an email address. The full
// address is embedded with separators stripped, so uniqueness follows
// from the email uniqueness constraint and no collision probe is needed.
func UsernameFromEmail(email string) (string, error) {
	email = NormalizeEmail(email)
	if !ValidEmail(email) {
		return "", fmt.Errorf("registration: %q is not a valid email: %w", email, httpx.ErrValidation)
	}

	candidate := strings.NewReplacer("@", "", ".", "").Replace(email)
	if folded, _, err := transform.String(foldDiacritics, candidate); err == nil {
		candidate = folded
	}
	candidate = sanitizeUsername(candidate)

	if len([]rune(candidate)) < minUsernameLength {
		candidate = "user_" + candidate
	}
	return candidate, nil
}

// sanitizeUsername keeps only the characters the identity store allows.
func sanitizeUsername(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
