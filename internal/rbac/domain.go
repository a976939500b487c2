// Package rbac gates HTTP routes by the operator role carried in the session.
package rbac

import (
	"context"

	"github.com/odyssey-erp/distro/internal/pipeline"
	"github.com/odyssey-erp/distro/internal/shared"
)

// Principal describes the authenticated actor of a request.
type Principal struct {
	UserID int64
	Role   pipeline.Role
}

// IsAdmin reports whether the actor bypasses role checks.
func (p Principal) IsAdmin() bool {
	return p.Role == pipeline.RoleAdmin
}

// PrincipalFromContext resolves the principal from the request session.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	sess := shared.SessionFromContext(ctx)
	if sess == nil || sess.UserID == 0 {
		return Principal{}, false
	}
	return Principal{UserID: sess.UserID, Role: pipeline.ParseRole(sess.Role)}, true
}
