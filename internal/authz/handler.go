package authz

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gatewarden/gatewarden/internal/platform/httpx"
	"github.com/gatewarden/gatewarden/internal/rbac"
	"github.com/gatewarden/gatewarden/internal/shared"
)

// Handler exposes the decision engine as an endpoint so trusted services can
// delegate authorization checks.
type Handler struct {
	logger  *slog.Logger
	decider *Decider
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, decider *Decider) *Handler {
	return &Handler{logger: logger, decider: decider}
}

// MountRoutes registers authorization routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/check", h.check)
}

type checkPayload struct {
	UserID      int64    `json:"user_id"`
	AccessKeyID string   `json:"access_key_id"`
	SecretKey   string   `json:"secret_key"`
	Permissions []string `json:"permissions"`
	Strategy    string   `json:"strategy"`
	Role        string   `json:"role"`
	Optional    bool     `json:"optional"`
}

type checkResult struct {
	Allowed   bool   `json:"allowed"`
	UserID    int64  `json:"user_id,omitempty"`
	Anonymous bool   `json:"anonymous,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	var payload checkPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed JSON body")
		return
	}
	strategy, err := rbac.ParseStrategy(payload.Strategy)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	mode := ModeRequired
	if payload.Optional {
		mode = ModeOptional
	}
	creds := Credentials{
		SessionUserID: payload.UserID,
		AccessKeyID:   payload.AccessKeyID,
		SecretKey:     payload.SecretKey,
	}
	req := Requirement{Permissions: payload.Permissions, Strategy: strategy, Role: payload.Role}

	decision, err := h.decider.Decide(r.Context(), creds, req, mode)
	if err != nil {
		if errors.Is(err, shared.ErrUnauthorized) || errors.Is(err, shared.ErrForbidden) {
			// A deny verdict is a successful check, not a failed request.
			httpx.JSON(w, http.StatusOK, checkResult{
				Allowed: false,
				UserID:  decision.Identity.UserID,
				Reason:  shared.UserSafeMessage(err),
			})
			return
		}
		h.logger.Error("authorization check", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, checkResult{
		Allowed:   true,
		UserID:    decision.Identity.UserID,
		Anonymous: decision.Identity.Anonymous,
	})
}
