package consent

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/shared"
)

func newConsentRouter(repo RepositoryPort) chi.Router {
	handler := NewHandler(nil, NewService(repo, nil, nil, nil, 0, nil))
	router := chi.NewRouter()
	router.Route("/account/consent", handler.MountRoutes)
	return router
}

func doConsent(t *testing.T, router chi.Router, method string, body any, userID int64) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "/account/consent", &buf)
	sess := &shared.Session{}
	if userID != 0 {
		sess.SetUser(userID)
	}
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestConsentEndpointsRequireLogin(t *testing.T) {
	router := newConsentRouter(newMemoryConsentRepo())

	rec := doConsent(t, router, http.MethodGet, nil, 0)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doConsent(t, router, http.MethodPost, map[string]any{"granted": true}, 0)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConsentGetNullWhenNeverAnswered(t *testing.T) {
	router := newConsentRouter(newMemoryConsentRepo())

	rec := doConsent(t, router, http.MethodGet, nil, 9)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"advanced_features_consent": null}`, rec.Body.String())
}

func TestConsentUpdateAndReadBack(t *testing.T) {
	router := newConsentRouter(newMemoryConsentRepo())

	rec := doConsent(t, router, http.MethodPost, map[string]any{"granted": true}, 9)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doConsent(t, router, http.MethodGet, nil, 9)
	require.JSONEq(t, `{"advanced_features_consent": true}`, rec.Body.String())

	rec = doConsent(t, router, http.MethodPost, map[string]any{"granted": false}, 9)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doConsent(t, router, http.MethodGet, nil, 9)
	require.JSONEq(t, `{"advanced_features_consent": false}`, rec.Body.String())
}

func TestConsentUpdateRejectsMissingDecision(t *testing.T) {
	router := newConsentRouter(newMemoryConsentRepo())

	rec := doConsent(t, router, http.MethodPost, map[string]any{}, 9)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
