// Package admin serves the operator endpoints: runtime settings, manual
// rate limit resets and consent reporting.
package admin

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/consent"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/platform/httpx"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/ratelimit"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/settings"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/shared"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/users"
)

// Handler wires the admin-only HTTP endpoints.
type Handler struct {
	logger    *slog.Logger
	users     users.RepositoryPort
	settings  *settings.Service
	limiter   *ratelimit.Limiter
	consent   *consent.Service
	audit     shared.Recorder
	nonces    *shared.NonceManager
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, repo users.RepositoryPort, settingsService *settings.Service, limiter *ratelimit.Limiter, consentService *consent.Service, audit shared.Recorder, nonces *shared.NonceManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		users:     repo,
		settings:  settingsService,
		limiter:   limiter,
		consent:   consentService,
		audit:     audit,
		nonces:    nonces,
		validator: validator.New(),
	}
}

// MountRoutes registers admin routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.requireAdmin)
	r.Get("/settings", h.handleGetSettings)
	r.Put("/settings", h.handleUpdateSettings)
	r.Post("/rate-limits/reset", h.handleRateLimitReset)
	r.Get("/consent/stats", h.handleConsentStats)
	r.Get("/consent/users", h.handleConsentedUsers)
}

// requireAdmin gates every admin route on an authenticated administrator.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if !sess.LoggedIn() {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		user, err := h.users.FindByID(r.Context(), sess.User())
		if err != nil || !user.IsAdmin() {
			httpx.RespondError(w, httpx.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	current, err := h.settings.Get(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, current)
}

type updateSettingsRequest struct {
	settings.Settings
	Nonce string `json:"nonce"`
}

func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if err := h.validator.Struct(req.Settings); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid_request", "invalid settings payload")
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if req.Nonce != "" {
		if err := h.nonces.Verify(r.Context(), sess, shared.NonceActionSettings, req.Nonce); err != nil {
			httpx.RespondError(w, httpx.ErrNonceMismatch)
			return
		}
	}

	if err := h.settings.Update(r.Context(), req.Settings); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, shared.AuditActionSettingsUpdate, "settings", "creator_suite", map[string]any{
		"registration_enabled": req.Settings.RegistrationEnabled,
	})
	httpx.JSON(w, http.StatusOK, req.Settings)
}

type rateLimitResetRequest struct {
	Email string `json:"email" validate:"required,email"`
	Scope string `json:"scope" validate:"required,oneof=registration login"`
	Nonce string `json:"nonce"`
}

func (h *Handler) handleRateLimitReset(w http.ResponseWriter, r *http.Request) {
	var req rateLimitResetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid_request", "email and a known scope are required")
		return
	}

	if req.Nonce != "" {
		sess := shared.SessionFromContext(r.Context())
		if err := h.nonces.Verify(r.Context(), sess, shared.NonceActionSettings, req.Nonce); err != nil {
			httpx.RespondError(w, httpx.ErrNonceMismatch)
			return
		}
	}

	if err := h.limiter.Reset(r.Context(), req.Email, req.Scope); err != nil {
		h.logger.Error("rate limit reset", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, shared.AuditActionRateLimitReset, "rate_limit", req.Scope, map[string]any{
		"email": req.Email,
	})
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) handleConsentStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.consent.Statistics(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) handleConsentedUsers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	list, err := h.consent.ConsentedUsers(r.Context(), limit, offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if list == nil {
		list = []consent.ConsentedUser{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": list, "count": len(list)})
}

func (h *Handler) recordAudit(r *http.Request, action, entity, entityID string, meta map[string]any) {
	if h.audit == nil {
		return
	}
	sess := shared.SessionFromContext(r.Context())
	var actor int64
	if sess != nil {
		actor = sess.User()
	}
	if err := h.audit.Record(r.Context(), shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
	}); err != nil {
		h.logger.Warn("audit admin action", slog.String("action", action), slog.Any("error", err))
	}
}
