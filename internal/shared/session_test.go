package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, time.Hour), mr
}

func TestSessionIssueLookupRevoke(t *testing.T) {
	sm, mr := newTestManager(t)
	ctx := context.Background()

	sess, err := sm.Issue(ctx, 42, "CONTROL")
	require.NoError(t, err)
	require.NotEmpty(t, sess.Token)
	assert.True(t, mr.Exists("session:"+sess.Token))

	got, err := sm.Lookup(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.UserID)
	assert.Equal(t, "CONTROL", got.Role)
	assert.Equal(t, sess.Token, got.Token)

	require.NoError(t, sm.Revoke(ctx, sess.Token))
	_, err = sm.Lookup(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionExpires(t *testing.T) {
	sm, mr := newTestManager(t)
	ctx := context.Background()

	sess, err := sm.Issue(ctx, 1, "ADMIN")
	require.NoError(t, err)

	mr.FastForward(30 * time.Minute)
	_, err = sm.Lookup(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mr.TTL("session:"+sess.Token))

	mr.FastForward(2 * time.Hour)
	_, err = sm.Lookup(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionLoadFromRequest(t *testing.T) {
	sm, _ := newTestManager(t)
	ctx := context.Background()
	sess, err := sm.Issue(ctx, 7, "VENTAS")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	req.Header.Set("Authorization", "Bearer "+sess.Token)
	loaded, err = sm.Load(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, int64(7), loaded.UserID)

	req.Header.Set("Authorization", "Bearer unknown")
	loaded, err = sm.Load(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, BearerToken(req))
	req.Header.Set("Authorization", "bearer  abc ")
	assert.Equal(t, "abc", BearerToken(req))
	req.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, BearerToken(req))
}

func TestActorID(t *testing.T) {
	assert.Equal(t, int64(0), ActorID(context.Background()))
	ctx := ContextWithSession(context.Background(), &Session{UserID: 9})
	assert.Equal(t, int64(9), ActorID(ctx))
}
