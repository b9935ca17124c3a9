package registration

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/platform/httpx"
)

func TestUsernameFromEmail(t *testing.T) {
	cases := []struct {
		email string
		want  string
	}{
		{"john.doe@example.com", "johndoeexamplecom"},
		{"a.b+c@example.com", "abcexamplecom"},
		{"JOHN@EXAMPLE.COM", "johnexamplecom"},
		{"  mary@example.org  ", "maryexampleorg"},
		{"user_name-1@example.io", "user_name-1exampleio"},
	}
	for _, tc := range cases {
		got, err := UsernameFromEmail(tc.email)
		require.NoError(t, err, tc.email)
		require.Equal(t, tc.want, got, tc.email)
	}
}

func TestUsernameFromEmailFoldsDiacritics(t *testing.T) {
	got, err := UsernameFromEmail("josé@café.fr")
	require.NoError(t, err)
	require.Equal(t, "josecafefr", got)
}

func TestUsernameFromEmailCharset(t *testing.T) {
	got, err := UsernameFromEmail("weird!#$%@example.com")
	require.NoError(t, err)
	for _, r := range got {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-'
		require.True(t, ok, "unexpected rune %q in %q", r, got)
	}
}

func TestUsernameFromEmailShortResultGetsPrefix(t *testing.T) {
	// Everything except "co" sanitizes away, so the fallback prefix kicks in.
	got, err := UsernameFromEmail("~~@~.co")
	require.NoError(t, err)
	require.Equal(t, "user_co", got)
}

func TestUsernameMinimumLength(t *testing.T) {
	got, err := UsernameFromEmail("a@b.co")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(got), 3)
	require.False(t, strings.HasPrefix(got, "user_"), "abco is long enough on its own: %q", got)
}

func TestUsernameFromEmailRejectsInvalid(t *testing.T) {
	for _, email := range []string{"", "plain", "two@@example.com", "a@b@c.com", "spaces in@example.com"} {
		_, err := UsernameFromEmail(email)
		if !errors.Is(err, httpx.ErrValidation) {
			t.Fatalf("email %q: expected validation error, got %v", email, err)
		}
	}
}

func TestValidEmail(t *testing.T) {
	require.True(t, ValidEmail("user@example.com"))
	require.False(t, ValidEmail(""))
	require.False(t, ValidEmail("no-at-sign"))
	require.False(t, ValidEmail("double@@example.com"))
}

func TestNormalizeEmail(t *testing.T) {
	require.Equal(t, "user@example.com", NormalizeEmail("  USER@Example.COM "))
}
