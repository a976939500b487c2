package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/distro/internal/auth"
	"github.com/odyssey-erp/distro/internal/pipeline"
	"github.com/odyssey-erp/distro/internal/rbac"
	"github.com/odyssey-erp/distro/internal/shared"
	_ "github.com/odyssey-erp/distro/testing"
)

type stubRepo struct {
	users   map[string]*auth.User
	created []auth.User
}

func (s *stubRepo) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	if u, ok := s.users[strings.ToLower(email)]; ok {
		return u, nil
	}
	return nil, shared.ErrNotFound
}

func (s *stubRepo) FindByID(_ context.Context, id int64) (*auth.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *stubRepo) Create(_ context.Context, u auth.User) (int64, error) {
	if _, ok := s.users[u.Email]; ok {
		return 0, auth.ErrEmailTaken
	}
	s.created = append(s.created, u)
	return int64(100 + len(s.created)), nil
}

func newRepo(t *testing.T) *stubRepo {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	return &stubRepo{users: map[string]*auth.User{
		"ventas@test.local": {ID: 1, Email: "ventas@test.local", Name: "Ventas", Role: pipeline.RoleSales, PasswordHash: string(hashed), IsActive: true},
		"baja@test.local":   {ID: 2, Email: "baja@test.local", Role: pipeline.RoleDriver, PasswordHash: string(hashed), IsActive: false},
	}}
}

// newRouter mirrors the production wiring: the session middleware resolves
// bearer tokens before the auth routes run.
func newRouter(t *testing.T, repo auth.Repository) (http.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	sessions := shared.NewSessionManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)
	handler := auth.NewHandler(nil, auth.NewService(repo), sessions, rbac.Middleware{})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sessions.Load(req.Context(), req)
			require.NoError(t, err)
			if sess != nil {
				req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
			}
			next.ServeHTTP(w, req)
		})
	})
	handler.MountRoutes(r)
	return r, sessions
}

func login(router http.Handler, email, password string) *httptest.ResponseRecorder {
	body := `{"email":"` + email + `","password":"` + password + `"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestLoginIssuesBearerToken(t *testing.T) {
	router, sessions := newRouter(t, newRepo(t))

	rr := login(router, "ventas@test.local", "correctpass")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res auth.LoginResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	require.NotEmpty(t, res.Token)
	assert.Equal(t, pipeline.RoleSales, res.User.Role)
	assert.NotContains(t, rr.Body.String(), "password_hash")

	sess, err := sessions.Lookup(context.Background(), res.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sess.UserID)
	assert.Equal(t, "VENTAS", sess.Role)
}

func TestLoginInvalidCredentials(t *testing.T) {
	router, _ := newRouter(t, newRepo(t))

	assert.Equal(t, http.StatusUnauthorized, login(router, "ventas@test.local", "wrongpass1").Code)
	assert.Equal(t, http.StatusUnauthorized, login(router, "nadie@test.local", "correctpass").Code)
	assert.Equal(t, http.StatusUnauthorized, login(router, "baja@test.local", "correctpass").Code)
	assert.Equal(t, http.StatusBadRequest, login(router, "not-an-email", "correctpass").Code)
}

func TestMeAndLogout(t *testing.T) {
	router, sessions := newRouter(t, newRepo(t))

	var res auth.LoginResponse
	require.NoError(t, json.Unmarshal(login(router, "ventas@test.local", "correctpass").Body.Bytes(), &res))

	me := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	me.Header.Set("Authorization", "Bearer "+res.Token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, me)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"email":"ventas@test.local"`)

	out := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	out.Header.Set("Authorization", "Bearer "+res.Token)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, out)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	_, err := sessions.Lookup(context.Background(), res.Token)
	assert.ErrorIs(t, err, shared.ErrSessionNotFound)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, me)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRegisterHashesPassword(t *testing.T) {
	repo := newRepo(t)
	svc := auth.NewService(repo)

	user, err := svc.Register(context.Background(), "control@test.local", "Control", "control", "s3cretpass")
	require.NoError(t, err)
	assert.Equal(t, pipeline.RoleControl, user.Role)
	require.Len(t, repo.created, 1)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.created[0].PasswordHash), []byte("s3cretpass")))

	_, err = svc.Register(context.Background(), "x@test.local", "X", "manager", "s3cretpass")
	assert.ErrorIs(t, err, auth.ErrUnknownRole)

	_, err = svc.Register(context.Background(), "y@test.local", "Y", "VENTAS", "short")
	assert.Error(t, err)
}
