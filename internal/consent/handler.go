package consent

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/platform/httpx"
	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/shared"
)

// Handler serves the consent endpoints for the logged-in account.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers consent routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleGet)
	r.Post("/", h.handleUpdate)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if !sess.LoggedIn() {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	decision, err := h.service.Get(r.Context(), sess.User())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	// decision is nil when the user never answered; the JSON null is the
	// contract for that state.
	httpx.JSON(w, http.StatusOK, map[string]any{"advanced_features_consent": decision})
}

type updateRequest struct {
	Granted *bool `json:"granted"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if !sess.LoggedIn() {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Granted == nil {
		httpx.Error(w, http.StatusBadRequest, "invalid_request", "granted must be true or false")
		return
	}
	if err := h.service.Update(r.Context(), sess.User(), *req.Granted, sess.User()); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "advanced_features_consent": *req.Granted})
}
