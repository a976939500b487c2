package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound indicates an unknown, expired or revoked token.
var ErrSessionNotFound = errors.New("session not found")

// SessionManager issues bearer tokens and keeps their sessions in Redis.
type SessionManager struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

// Session holds the authenticated identity behind a bearer token.
type Session struct {
	Token     string    `json:"-"`
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, ttl time.Duration) *SessionManager {
	return &SessionManager{
		client: client,
		ttl:    ttl,
		prefix: "session:",
		now:    time.Now,
	}
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// Issue creates a new session for the user and returns it with its token.
func (sm *SessionManager) Issue(ctx context.Context, userID int64, role string) (*Session, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("session: token: %w", err)
	}
	now := sm.now().UTC()
	sess := &Session{
		Token:     id.String(),
		UserID:    userID,
		Role:      role,
		IssuedAt:  now,
		ExpiresAt: now.Add(sm.ttl),
	}
	payload, err := json.Marshal(sess)
	if err != nil {
		return nil, err
	}
	if err := sm.client.Set(ctx, sm.redisKey(sess.Token), payload, sm.ttl).Err(); err != nil {
		return nil, fmt.Errorf("session: store: %w", err)
	}
	return sess, nil
}

// Lookup resolves a token. Each successful lookup slides the expiry forward.
func (sm *SessionManager) Lookup(ctx context.Context, token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrSessionNotFound
	}
	payload, err := sm.client.Get(ctx, sm.redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("session: decode: %w", err)
	}
	sess.Token = token
	sess.ExpiresAt = sm.now().UTC().Add(sm.ttl)
	if err := sm.client.Expire(ctx, sm.redisKey(token), sm.ttl).Err(); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Load resolves the bearer token of the request. A request without a token, or
// with an unknown one, yields a nil session and no error.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	token := BearerToken(r)
	if token == "" {
		return nil, nil
	}
	sess, err := sm.Lookup(ctx, token)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, nil
	}
	return sess, err
}

// Revoke deletes the session behind token.
func (sm *SessionManager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := sm.client.Del(ctx, sm.redisKey(token)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func (sm *SessionManager) redisKey(token string) string {
	return sm.prefix + token
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
