package console

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/odyssey-erp/distro/internal/pipeline"
)

// User is the operator behind a console session.
type User struct {
	ID    int64         `json:"id"`
	Email string        `json:"email"`
	Name  string        `json:"name"`
	Role  pipeline.Role `json:"role"`
}

// LoginResult is what the backend returns for valid credentials.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

// Authenticator exchanges credentials for a bearer token.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Logout(ctx context.Context, token string) error
}

// Session is the explicit authentication context of one operator. Gateway
// implementations read the bearer token from it on every call.
type Session struct {
	auth Authenticator

	mu        sync.RWMutex
	token     string
	user      *User
	expiresAt time.Time
}

// NewSession constructs a logged-out session.
func NewSession(auth Authenticator) *Session {
	return &Session{auth: auth}
}

// Login authenticates and replaces any previous identity.
func (s *Session) Login(ctx context.Context, email, password string) error {
	res, err := s.auth.Login(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return err
	}
	user := res.User
	user.Role = pipeline.ParseRole(string(user.Role))
	s.mu.Lock()
	s.token = res.Token
	s.user = &user
	s.expiresAt = res.ExpiresAt
	s.mu.Unlock()
	return nil
}

// Logout revokes the token on the backend and tears the session down. The
// local state is cleared even when the backend call fails.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	token := s.token
	s.token = ""
	s.user = nil
	s.expiresAt = time.Time{}
	s.mu.Unlock()
	if token == "" {
		return nil
	}
	return s.auth.Logout(ctx, token)
}

// Token returns the bearer token or an empty string.
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns the logged-in operator.
func (s *Session) User() (User, bool) {
	if s == nil {
		return User{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

// Role returns the operator role, empty when logged out.
func (s *Session) Role() pipeline.Role {
	u, ok := s.User()
	if !ok {
		return ""
	}
	return u.Role
}

// Active reports whether the session holds a token.
func (s *Session) Active() bool {
	return s.Token() != ""
}

// Expire drops the identity without calling the backend, used after a 401.
func (s *Session) Expire() {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()
}

func (s *Session) canSell() bool {
	switch s.Role() {
	case pipeline.RoleSales, pipeline.RoleAdmin:
		return true
	default:
		return false
	}
}
