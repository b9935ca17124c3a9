package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/consent"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/platform/httpx"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/ratelimit"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/settings"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/shared"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/users"
)

type stubUserRepo struct {
	byID map[int64]*users.User
}

func (r *stubUserRepo) Create(ctx context.Context, email, username, passwordHash, role string) (*users.User, error) {
	return nil, errors.New("not implemented")
}

func (r *stubUserRepo) FindByEmail(ctx context.Context, email string) (*users.User, error) {
	return nil, httpx.ErrNotFound
}

func (r *stubUserRepo) FindByID(ctx context.Context, id int64) (*users.User, error) {
	user, ok := r.byID[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return user, nil
}

func (r *stubUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	return false, nil
}

func (r *stubUserRepo) SetRole(ctx context.Context, id int64, role string) error    { return nil }
func (r *stubUserRepo) SetMeta(ctx context.Context, id int64, key, value string) error { return nil }

func (r *stubUserRepo) GetMeta(ctx context.Context, id int64, key string) (string, bool, error) {
	return "", false, nil
}

func (r *stubUserRepo) List(ctx context.Context, limit, offset int) ([]users.User, error) {
	return nil, nil
}

type memorySettingsStore struct {
	data []byte
}

func (s *memorySettingsStore) Load(ctx context.Context) ([]byte, error) {
	if s.data == nil {
		return nil, shared.ErrNotFound
	}
	return s.data, nil
}

func (s *memorySettingsStore) Save(ctx context.Context, data []byte) error {
	s.data = append([]byte(nil), data...)
	return nil
}

type memoryConsentRepo struct {
	decisions map[int64]bool
}

func (r *memoryConsentRepo) SetConsent(ctx context.Context, userID int64, granted bool) error {
	r.decisions[userID] = granted
	return nil
}

func (r *memoryConsentRepo) GetConsent(ctx context.Context, userID int64) (*bool, error) {
	granted, ok := r.decisions[userID]
	if !ok {
		return nil, nil
	}
	return &granted, nil
}

func (r *memoryConsentRepo) ConsentedUsers(ctx context.Context, limit, offset int) ([]consent.ConsentedUser, error) {
	var out []consent.ConsentedUser
	for id, granted := range r.decisions {
		if granted {
			out = append(out, consent.ConsentedUser{UserID: id, GrantedAt: time.Now()})
		}
	}
	return out, nil
}

func (r *memoryConsentRepo) CountConsent(ctx context.Context) (total, consented, declined int64, err error) {
	for _, granted := range r.decisions {
		if granted {
			consented++
		} else {
			declined++
		}
	}
	return consented + declined, consented, declined, nil
}

type adminFixture struct {
	router   chi.Router
	sessions *shared.SessionManager
	nonces   *shared.NonceManager
	limiter  *ratelimit.Limiter
	redis    *miniredis.Miniredis
	repo     *stubUserRepo
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	repo := &stubUserRepo{byID: map[int64]*users.User{
		1: {ID: 1, Email: "root@example.com", Username: "root", Role: "administrator", IsActive: true},
		2: {ID: 2, Email: "member@example.com", Username: "member", Role: "subscriber", IsActive: true},
	}}

	sessions := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	nonces := shared.NewNonceManager("nonce-secret")
	limiter := ratelimit.NewLimiter(client, ratelimit.DefaultConfig(), nil)
	settingsService := settings.NewService(&memorySettingsStore{}, nil, 0, settings.Defaults(), nil)
	consentService := consent.NewService(&memoryConsentRepo{decisions: map[int64]bool{5: true, 6: false}}, nil, nil, nil, 0, nil)

	handler := NewHandler(nil, repo, settingsService, limiter, consentService, nil, nonces)
	router := chi.NewRouter()
	router.Route("/admin", handler.MountRoutes)

	return &adminFixture{router: router, sessions: sessions, nonces: nonces, limiter: limiter, redis: mr, repo: repo}
}

func (f *adminFixture) do(t *testing.T, method, target string, body any, userID int64) *httptest.ResponseRecorder {
	t.Helper()
	sess := f.adminSession(t, userID)
	return f.doWith(t, method, target, body, sess)
}

func (f *adminFixture) adminSession(t *testing.T, userID int64) *shared.Session {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := f.sessions.Load(req.Context(), req)
	require.NoError(t, err)
	if userID != 0 {
		sess.SetUser(userID)
	}
	return sess
}

func (f *adminFixture) doWith(t *testing.T, method, target string, body any, sess *shared.Session) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestAdminRequiresLogin(t *testing.T) {
	f := newAdminFixture(t)
	rec := f.do(t, http.MethodGet, "/admin/settings", nil, 0)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRejectsNonAdmins(t *testing.T) {
	f := newAdminFixture(t)
	rec := f.do(t, http.MethodGet, "/admin/settings", nil, 2)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Unknown account IDs are rejected the same way.
	rec = f.do(t, http.MethodGet, "/admin/settings", nil, 99)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminSettingsRoundTrip(t *testing.T) {
	f := newAdminFixture(t)

	rec := f.do(t, http.MethodGet, "/admin/settings", nil, 1)
	require.Equal(t, http.StatusOK, rec.Code)
	var current settings.Settings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &current))
	require.True(t, current.RegistrationEnabled)

	current.RegistrationEnabled = false
	current.DefaultRole = "contributor"
	rec = f.do(t, http.MethodPut, "/admin/settings", current, 1)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/admin/settings", nil, 1)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &current))
	require.False(t, current.RegistrationEnabled)
	require.Equal(t, "contributor", current.DefaultRole)
}

func TestAdminSettingsRejectsUnknownRole(t *testing.T) {
	f := newAdminFixture(t)

	updated := settings.Defaults()
	updated.DefaultRole = "administrator"
	rec := f.do(t, http.MethodPut, "/admin/settings", updated, 1)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRateLimitReset(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	// Exhaust the registration window for an email.
	for i := 0; i < 3; i++ {
		require.NoError(t, f.limiter.CheckRegistration(ctx, "blocked@example.com"))
	}
	err := f.limiter.CheckRegistration(ctx, "blocked@example.com")
	require.ErrorIs(t, err, httpx.ErrRateLimited)

	rec := f.do(t, http.MethodPost, "/admin/rate-limits/reset", map[string]any{
		"email": "blocked@example.com",
		"scope": "registration",
	}, 1)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.NoError(t, f.limiter.CheckRegistration(ctx, "blocked@example.com"))
}

func TestAdminRateLimitResetNonce(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	sess := f.adminSession(t, 1)

	token, err := f.nonces.Issue(ctx, sess, shared.NonceActionSettings)
	require.NoError(t, err)

	rec := f.doWith(t, http.MethodPost, "/admin/rate-limits/reset", map[string]any{
		"email": "blocked@example.com",
		"scope": "login",
		"nonce": token,
	}, sess)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.doWith(t, http.MethodPost, "/admin/rate-limits/reset", map[string]any{
		"email": "blocked@example.com",
		"scope": "login",
		"nonce": "forged",
	}, sess)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminRateLimitResetValidation(t *testing.T) {
	f := newAdminFixture(t)

	rec := f.do(t, http.MethodPost, "/admin/rate-limits/reset", map[string]any{
		"email": "blocked@example.com",
		"scope": "everything",
	}, 1)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminConsentStats(t *testing.T) {
	f := newAdminFixture(t)

	rec := f.do(t, http.MethodGet, "/admin/consent/stats", nil, 1)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats consent.Statistics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, int64(1), stats.Consented)
	require.Equal(t, int64(1), stats.Declined)
}

func TestAdminConsentedUsers(t *testing.T) {
	f := newAdminFixture(t)

	rec := f.do(t, http.MethodGet, "/admin/consent/users?limit=10", nil, 1)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Users []consent.ConsentedUser `json:"users"`
		Count int                     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	require.Equal(t, int64(5), body.Users[0].UserID)
}
