package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewarden/gatewarden/internal/shared"
	"github.com/gatewarden/gatewarden/internal/users"
)

func newTestSessionManager(t *testing.T) (*shared.SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return shared.NewSessionManager(client, "test_session", "secret", time.Hour, false), mr
}

func loginRequest(t *testing.T, manager *shared.SessionManager) (*http.Request, *shared.Session) {
	t.Helper()
	body := strings.NewReader(`{"email":"user@test.local","password":"correctpass"}`)
	req := httptest.NewRequest(http.MethodPost, "/login", body)
	req.Header.Set("Content-Type", "application/json")

	sess, err := manager.Load(req.Context(), req)
	require.NoError(t, err)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess)), sess
}

func TestHandleLogin(t *testing.T) {
	manager, _ := newTestSessionManager(t)
	user := &users.User{ID: 7, Email: "user@test.local", PasswordHash: hashed(t, "correctpass"), IsActive: true}
	repo := &stubRepo{}
	handler := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), NewService(repo, &stubUserSource{user: user}), manager)

	req, sess := loginRequest(t, manager)
	res := httptest.NewRecorder()
	handler.handleLogin(res, req)

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, []string{sess.ID}, repo.created)
	assert.Equal(t, "7", sess.User())
}

func TestHandleLoginSessionRecordFailure(t *testing.T) {
	manager, mr := newTestSessionManager(t)
	user := &users.User{ID: 7, Email: "user@test.local", PasswordHash: hashed(t, "correctpass"), IsActive: true}
	repo := &stubRepo{createErr: errors.New("insert failed")}
	handler := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), NewService(repo, &stubUserSource{user: user}), manager)

	req, sess := loginRequest(t, manager)
	res := httptest.NewRecorder()
	handler.handleLogin(res, req)

	assert.Equal(t, http.StatusInternalServerError, res.Code)

	// The session was marked destroyed, so the commit step drops it
	// instead of persisting an unaudited login.
	require.NoError(t, manager.Commit(context.Background(), res, req, sess))
	assert.Empty(t, mr.Keys())
}
