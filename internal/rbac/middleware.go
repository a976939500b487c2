package rbac

import (
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/distro/internal/pipeline"
	"github.com/odyssey-erp/distro/internal/platform/httpx"
)

// Middleware wires role authorization helpers for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// RequireAuth rejects requests without a valid session.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing or expired session")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAny ensures the current user holds one of the roles. ADMIN always passes.
func (m Middleware) RequireAny(roles ...pipeline.Role) func(http.Handler) http.Handler {
	allowed := normalizeRoles(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing or expired session")
				return
			}
			if principal.IsAdmin() || hasRole(allowed, principal.Role) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Warn("rbac denied",
					slog.Int64("user_id", principal.UserID),
					slog.String("role", string(principal.Role)),
					slog.String("path", r.URL.Path))
			}
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "role not allowed")
		})
	}
}

func normalizeRoles(roles []pipeline.Role) map[pipeline.Role]struct{} {
	set := make(map[pipeline.Role]struct{}, len(roles))
	for _, r := range roles {
		if parsed := pipeline.ParseRole(string(r)); parsed != "" {
			set[parsed] = struct{}{}
		}
	}
	return set
}

func hasRole(allowed map[pipeline.Role]struct{}, role pipeline.Role) bool {
	if len(allowed) == 0 {
		return true
	}
	_, ok := allowed[role]
	return ok
}
