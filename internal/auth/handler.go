package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/observability"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/platform/httpx"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/ratelimit"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/registration"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/shared"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/users"
)

// RegistrationGate reports whether self-registration is open.
type RegistrationGate interface {
	RegistrationEnabled(ctx context.Context) bool
}

// Handler wires the HTTP endpoints for account flows.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	registration *registration.Service
	gate         RegistrationGate
	sessions     *shared.SessionManager
	nonces       *shared.NonceManager
	metrics      *observability.Metrics
	validator    *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, reg *registration.Service, gate RegistrationGate, sessions *shared.SessionManager, nonces *shared.NonceManager, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:       logger,
		service:      service,
		registration: reg,
		gate:         gate,
		sessions:     sessions,
		nonces:       nonces,
		metrics:      metrics,
		validator:    validator.New(),
	}
}

// MountRoutes registers account routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/redirect", h.handleRedirect)
	r.Get("/status", h.handleStatus)
	r.Get("/nonce", h.handleNonce)
}

type registerRequest struct {
	Email      string `json:"email" validate:"required,email"`
	RedirectTo string `json:"redirect_to" validate:"omitempty,url"`
	Consent    *bool  `json:"advanced_features_consent"`
	Nonce      string `json:"nonce"`
}

type userPayload struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles,omitempty"`
}

type registerResponse struct {
	Success    bool        `json:"success"`
	LoggedIn   bool        `json:"logged_in"`
	User       userPayload `json:"user"`
	RedirectTo string      `json:"redirect_to,omitempty"`
	Code       string      `json:"code,omitempty"`
	Message    string      `json:"message,omitempty"`
}

// sessionBinder implements registration.SessionBinder by binding the new
// account to the current request session.
type sessionBinder struct {
	sess *shared.Session
}

func (b sessionBinder) AutoLogin(ctx context.Context, user *users.User) error {
	if b.sess == nil {
		return errors.New("auth: no session available")
	}
	b.sess.SetUser(user.ID)
	return nil
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid_request", validationMessage(err))
		return
	}

	sess := shared.SessionFromContext(r.Context())
	// The nonce is optional input but always re-verified server side when
	// present.
	if req.Nonce != "" {
		if err := h.nonces.Verify(r.Context(), sess, shared.NonceActionRegister, req.Nonce); err != nil {
			h.logger.Warn("register nonce rejected",
				slog.String("ip", ratelimit.ClientIP(r)),
				slog.String("user_agent", r.UserAgent()))
			httpx.RespondError(w, httpx.ErrNonceMismatch)
			return
		}
	}

	result, err := h.registration.Register(r.Context(), registration.Request{
		Email:      req.Email,
		RedirectTo: req.RedirectTo,
		Consent:    req.Consent,
		ClientIP:   ratelimit.ClientIP(r),
		UserAgent:  r.UserAgent(),
	}, sessionBinder{sess: sess})
	if err != nil {
		if errors.Is(err, httpx.ErrRateLimited) {
			h.metrics.RateLimitHit(ratelimit.ScopeRegistration)
		}
		httpx.RespondError(w, err)
		return
	}

	resp := registerResponse{
		Success:  true,
		LoggedIn: result.LoggedIn,
		User: userPayload{
			ID:       result.UserID,
			Username: result.Username,
			Email:    result.Email,
		},
		RedirectTo: result.RedirectTo,
	}
	status := http.StatusOK
	if result.State == registration.StatePartial {
		// Account exists but no session was established; the client
		// should prompt a manual login.
		status = http.StatusCreated
		resp.Code = "auto_login_failed"
		resp.Message = "account created, please log in manually"
	}
	httpx.JSON(w, status, resp)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Nonce    string `json:"nonce"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid_request", validationMessage(err))
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if req.Nonce != "" {
		if err := h.nonces.Verify(r.Context(), sess, shared.NonceActionLogin, req.Nonce); err != nil {
			httpx.RespondError(w, httpx.ErrNonceMismatch)
			return
		}
	}

	user, err := h.service.Authenticate(r.Context(), registration.NormalizeEmail(req.Email), req.Password)
	if err != nil {
		if errors.Is(err, httpx.ErrRateLimited) {
			h.metrics.RateLimitHit(ratelimit.ScopeLogin)
			httpx.RespondError(w, err)
			return
		}
		h.logger.Warn("login rejected",
			slog.String("ip", ratelimit.ClientIP(r)),
			slog.String("user_agent", r.UserAgent()))
		httpx.Error(w, http.StatusUnauthorized, "invalid_credentials", "email or password is incorrect")
		return
	}

	if sess == nil {
		httpx.Error(w, http.StatusInternalServerError, "internal_error", "session unavailable")
		return
	}
	sess.SetUser(user.ID)

	httpx.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user": userPayload{
			ID:       user.ID,
			Username: user.Username,
			Email:    user.Email,
			Roles:    []string{user.Role},
		},
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if !sess.LoggedIn() {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	h.sessions.Destroy(sess)
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) handleRedirect(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if !sess.LoggedIn() {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	target := h.service.RedirectURL(r.Context(), sess.User(), sess.Get(shared.RedirectURLKey), r.URL.Query().Get("default"))
	httpx.JSON(w, http.StatusOK, map[string]any{"redirect_to": target})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	resp := map[string]any{
		"logged_in":            sess.LoggedIn(),
		"registration_enabled": h.gate.RegistrationEnabled(r.Context()),
	}
	if sess.LoggedIn() {
		if user, err := h.service.User(r.Context(), sess.User()); err == nil {
			resp["user"] = userPayload{
				ID:       user.ID,
				Username: user.Username,
				Email:    user.Email,
				Roles:    []string{user.Role},
			}
		}
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleNonce(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	switch action {
	case shared.NonceActionRegister, shared.NonceActionLogin, shared.NonceActionSettings:
	default:
		httpx.Error(w, http.StatusBadRequest, "invalid_request", "unknown nonce action")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	token, err := h.nonces.Issue(r.Context(), sess, action)
	if err != nil {
		httpx.RespondError(w, httpx.ErrNonceMismatch)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"action": action, "nonce": token})
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		first := fieldErrs[0]
		return fmt.Sprintf("field %s failed on %s", first.Field(), first.Tag())
	}
	return "invalid request"
}
