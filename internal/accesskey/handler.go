package accesskey

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gatewarden/gatewarden/internal/authz"
	"github.com/gatewarden/gatewarden/internal/platform/httpx"
	"github.com/gatewarden/gatewarden/internal/shared"
)

// Guard gates key endpoints behind permissions.
type Guard interface {
	RequireAny(perms ...string) func(http.Handler) http.Handler
	RequireAll(perms ...string) func(http.Handler) http.Handler
}

// Handler manages access key endpoints. Issue and revoke operate on the
// caller's own keys; administrative revocation requires keys.revoke.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     Guard
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard Guard) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validator: validator.New()}
}

// MountRoutes registers key routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAll(shared.PermKeysIssue))
		r.Post("/", h.issueKey)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(shared.PermKeysView, shared.PermKeysIssue))
		r.Get("/", h.listKeys)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(shared.PermKeysIssue, shared.PermKeysRevoke))
		r.Delete("/{accessKeyID}", h.revokeKey)
		r.Delete("/", h.revokeAll)
	})
}

type issuePayload struct {
	MaxAgeDays int `json:"max_age_days" validate:"gte=0"`
}

func (h *Handler) issueKey(w http.ResponseWriter, r *http.Request) {
	identity, ok := authz.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	payload := issuePayload{}
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &payload); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed JSON body")
			return
		}
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "max_age_days must not be negative")
		return
	}

	cred, err := h.service.Issue(r.Context(), identity.UserID, IssueOptions{MaxAgeDays: payload.MaxAgeDays})
	if err != nil {
		h.logger.Error("issue access key", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	// The secret appears in this response and nowhere else.
	httpx.JSON(w, http.StatusCreated, cred)
}

func (h *Handler) listKeys(w http.ResponseWriter, r *http.Request) {
	identity, ok := authz.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	keys, err := h.service.ListByOwner(r.Context(), identity.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"keys": keys})
}

func (h *Handler) revokeKey(w http.ResponseWriter, r *http.Request) {
	identity, ok := authz.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	keyID := chi.URLParam(r, "accessKeyID")

	var err error
	if identity.Permissions.Contains(shared.PermKeysRevoke) {
		err = h.service.Deactivate(r.Context(), keyID)
	} else {
		err = h.service.DeactivateOwned(r.Context(), keyID, identity.UserID)
	}
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) revokeAll(w http.ResponseWriter, r *http.Request) {
	identity, ok := authz.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	count, err := h.service.DeactivateAll(r.Context(), identity.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deactivated": count})
}
