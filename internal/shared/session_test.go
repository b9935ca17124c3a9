package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *SessionManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewSessionManager(client, "test_session", "secret", time.Hour, false)
}

func TestSessionRoundTrip(t *testing.T) {
	sm := newTestManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	require.False(t, sess.LoggedIn())

	sess.SetUser(42)
	sess.Set(RedirectURLKey, "https://example.com/app")

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, req, sess))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "test_session", cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)
	require.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)

	// A follow-up request with the cookie restores the stored state.
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(cookies[0])
	restored, err := sm.Load(ctx, req2)
	require.NoError(t, err)
	require.True(t, restored.LoggedIn())
	require.Equal(t, int64(42), restored.User())
	require.Equal(t, "https://example.com/app", restored.Get(RedirectURLKey))
}

func TestSessionDestroy(t *testing.T) {
	sm := newTestManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sess.SetUser(7)

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, req, sess))
	cookie := rec.Result().Cookies()[0]

	sm.Destroy(sess)
	rec2 := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec2, req, sess))
	cleared := rec2.Result().Cookies()[0]
	require.Equal(t, -1, cleared.MaxAge)

	// The backing record is gone, so the old cookie yields a fresh session.
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(cookie)
	restored, err := sm.Load(ctx, req2)
	require.NoError(t, err)
	require.False(t, restored.LoggedIn())
}

func TestNonceIssueAndVerify(t *testing.T) {
	nm := NewNonceManager("secret")
	sess := &Session{ID: "abc", values: make(map[string]string)}
	ctx := context.Background()

	token, err := nm.Issue(ctx, sess, NonceActionRegister)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// Issuing again returns the same token for the session.
	again, err := nm.Issue(ctx, sess, NonceActionRegister)
	require.NoError(t, err)
	require.Equal(t, token, again)

	require.NoError(t, nm.Verify(ctx, sess, NonceActionRegister, token))
	require.ErrorIs(t, nm.Verify(ctx, sess, NonceActionRegister, "forged"), ErrNonceMismatch)
	require.ErrorIs(t, nm.Verify(ctx, sess, NonceActionLogin, token), ErrNonceMissing)
	require.ErrorIs(t, nm.Verify(ctx, nil, NonceActionRegister, token), ErrNonceMissing)
}

func TestNoncesDifferPerAction(t *testing.T) {
	nm := NewNonceManager("secret")
	sess := &Session{ID: "abc", values: make(map[string]string)}
	ctx := context.Background()

	register, err := nm.Issue(ctx, sess, NonceActionRegister)
	require.NoError(t, err)
	login, err := nm.Issue(ctx, sess, NonceActionLogin)
	require.NoError(t, err)
	require.NotEqual(t, register, login)
}
