package authz

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gatewarden/gatewarden/internal/platform/httpx"
	"github.com/gatewarden/gatewarden/internal/rbac"
	"github.com/gatewarden/gatewarden/internal/shared"
)

// Credential transport convention for non-session callers.
const (
	HeaderAccessKey = "x-access-key"
	HeaderSecretKey = "x-secret-key"
)

// VerdictRecorder counts authorization outcomes.
type VerdictRecorder interface {
	RecordVerdict(outcome string)
}

// Middleware wires authorization checks into HTTP handlers.
type Middleware struct {
	Decider *Decider
	Logger  *slog.Logger
	Metrics VerdictRecorder
}

// RequireAll admits only callers holding every listed permission.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	return m.require(Requirement{Permissions: perms, Strategy: rbac.StrategyAll})
}

// RequireAny admits callers holding at least one of the listed permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return m.require(Requirement{Permissions: perms, Strategy: rbac.StrategyAny})
}

// RequireRole admits only callers whose role name matches exactly.
func (m Middleware) RequireRole(role string) func(http.Handler) http.Handler {
	return m.require(Requirement{Role: role})
}

// Optional resolves an identity when credentials are present but admits
// anonymous callers. An established identity lacking the permissions is
// still denied.
func (m Middleware) Optional(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := m.Decider.Decide(r.Context(), credentialsFromRequest(r),
				Requirement{Permissions: perms, Strategy: rbac.StrategyAll}, ModeOptional)
			if err != nil {
				m.deny(w, r, err)
				return
			}
			m.record("allowed")
			if decision.Identity.Anonymous {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), decision.Identity)))
		})
	}
}

func (m Middleware) require(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := m.Decider.Decide(r.Context(), credentialsFromRequest(r), req, ModeRequired)
			if err != nil {
				m.deny(w, r, err)
				return
			}
			m.record("allowed")
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), decision.Identity)))
		})
	}
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case isUnauthorized(err):
		m.record("unauthorized")
	case isForbidden(err):
		m.record("forbidden")
	default:
		m.record("error")
		if m.Logger != nil {
			m.Logger.Error("authorization check", slog.String("path", r.URL.Path), slog.Any("error", err))
		}
	}
	httpx.RespondError(w, err)
}

func (m Middleware) record(outcome string) {
	if m.Metrics != nil {
		m.Metrics.RecordVerdict(outcome)
	}
}

// credentialsFromRequest extracts access-key headers first, then falls back
// to the session user.
func credentialsFromRequest(r *http.Request) Credentials {
	creds := Credentials{
		AccessKeyID: strings.TrimSpace(r.Header.Get(HeaderAccessKey)),
		SecretKey:   strings.TrimSpace(r.Header.Get(HeaderSecretKey)),
	}
	if creds.hasAccessKey() {
		return creds
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if raw := strings.TrimSpace(sess.User()); raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
				creds.SessionUserID = id
			}
		}
	}
	return creds
}

func isUnauthorized(err error) bool {
	return errors.Is(err, shared.ErrUnauthorized)
}

func isForbidden(err error) bool {
	return errors.Is(err, shared.ErrForbidden)
}
