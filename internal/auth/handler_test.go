package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Vitorhlem/TruCar/internal/auth"
	"github.com/Vitorhlem/TruCar/internal/shared"
	_ "github.com/Vitorhlem/TruCar/testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRouter(h *auth.Handler) chi.Router {
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

type stubRepo struct {
	user     *auth.User
	sessions map[string]int64
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrInvalidCredentials
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	if s.sessions == nil {
		s.sessions = make(map[string]int64)
	}
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

func newAuthHandler(t *testing.T, repo auth.Repository) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	handler := auth.NewHandler(testLogger(), auth.NewService(repo), sessionManager)
	return handler, sessionManager
}

func TestLoginSetsSessionUser(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo := &stubRepo{user: &auth.User{
		ID:             1,
		OrganizationID: 2,
		Email:          "gestor@trucar.local",
		FullName:       "Gestor Demo",
		Role:           "manager",
		PasswordHash:   string(hashed),
		IsActive:       true,
	}}
	handler, sessionManager := newAuthHandler(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"gestor@trucar.local","password":"correctpass"}`))
	req.Header.Set("Content-Type", "application/json")
	sess, err := sessionManager.Load(context.Background(), req)
	require.NoError(t, err)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	router := newRouter(handler)
	router.ServeHTTP(res, req)
	require.NoError(t, sessionManager.Commit(req.Context(), res, req, sess))

	require.Equal(t, http.StatusOK, res.Code)

	var body struct {
		User struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Equal(t, "gestor@trucar.local", body.User.Email)
	require.Equal(t, "manager", body.User.Role)

	userID, orgID := sess.User()
	require.Equal(t, int64(1), userID)
	require.Equal(t, int64(2), orgID)
	require.Equal(t, "Gestor Demo", sess.Get("full_name"))
	require.Contains(t, repo.sessions, sess.ID)
}

func TestLoginInvalidPassword(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo := &stubRepo{user: &auth.User{
		ID:           1,
		Email:        "gestor@trucar.local",
		PasswordHash: string(hashed),
		IsActive:     true,
	}}
	handler, sessionManager := newAuthHandler(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"gestor@trucar.local","password":"wrongpass8"}`))
	req.Header.Set("Content-Type", "application/json")
	sess, err := sessionManager.Load(context.Background(), req)
	require.NoError(t, err)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	newRouter(handler).ServeHTTP(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
	userID, _ := sess.User()
	require.Zero(t, userID)
}

func TestLoginInactiveUser(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo := &stubRepo{user: &auth.User{
		ID:           1,
		Email:        "gestor@trucar.local",
		PasswordHash: string(hashed),
		IsActive:     false,
	}}
	handler, sessionManager := newAuthHandler(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"gestor@trucar.local","password":"correctpass"}`))
	req.Header.Set("Content-Type", "application/json")
	sess, err := sessionManager.Load(context.Background(), req)
	require.NoError(t, err)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	newRouter(handler).ServeHTTP(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
}
