package app

import (
	"context"
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

	"github.com/odyssey-erp/distro/internal/observability"
	"github.com/odyssey-erp/distro/internal/orders"
	"github.com/odyssey-erp/distro/internal/rbac"
	"github.com/odyssey-erp/distro/internal/shared"
	"github.com/odyssey-erp/distro/jobs"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSessions(t *testing.T) *shared.SessionManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return shared.NewSessionManager(client, time.Hour)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	cfg, err := LoadConfig("does-not-exist.env")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 72*time.Hour, cfg.IdempotencyRetention)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsNonPositiveTTL(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("SESSION_TTL", "0s")
	_, err := LoadConfig("does-not-exist.env")
	assert.Error(t, err)
}

func TestSessionMiddlewareLoadsBearerSession(t *testing.T) {
	sessions := testSessions(t)
	sess, err := sessions.Issue(context.Background(), 9, "CONTROL")
	require.NoError(t, err)

	var seen *shared.Session
	h := SessionMiddleware(sessions, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.SessionFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, seen)
	assert.Equal(t, int64(9), seen.UserID)

	seen = nil
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer unknown")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Nil(t, seen)
}

func TestRouter(t *testing.T) {
	logger := testLogger()
	sessions := testSessions(t)
	guard := rbac.Middleware{Logger: logger}
	router := NewRouter(RouterParams{
		Logger:         logger,
		Config:         &Config{AppEnv: "test", RateLimitPerMin: 1000, AppRequestTimeout: time.Second},
		SessionManager: sessions,
		OrdersHandler:  orders.NewHandler(logger, orders.NewService(nil, logger), guard),
		JobHandler:     jobs.NewHandler(nil, logger),
		Metrics:        observability.NewMetrics(),
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	sess, err := sessions.Issue(context.Background(), 4, "DEPOSITO")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "distro_http_requests_total")
}

func TestRefreshTestMode(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	assert.False(t, InTestMode())
}
