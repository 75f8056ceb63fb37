package rbac

import (
	"context"
	"errors"
	"fmt"

	"civicwatch/internal/auth"
	"civicwatch/internal/domain"
)

// RequireRole ensures the caller is authenticated and holds at least min.
// Returns the caller's user id on success; on failure returns a
// domain.Error of kind unauthenticated or forbidden.
func RequireRole(ctx context.Context, min auth.Role) (userID string, err error) {
	userID, okUser := auth.GetUserID(ctx)
	role, okRole := auth.GetRole(ctx)
	if !okUser || userID == "" || !okRole {
		return "", domain.Unauthenticated("authorize", errors.New("user context required"))
	}
	if !role.AtLeast(min) {
		return "", domain.Forbidden("authorize", fmt.Errorf("role %s or higher required", min))
	}
	return userID, nil
}

// RequireViewer allows any authenticated role.
func RequireViewer(ctx context.Context) (string, error) { return RequireRole(ctx, auth.RoleViewer) }

// RequireAnalyst allows analysts and admins.
func RequireAnalyst(ctx context.Context) (string, error) { return RequireRole(ctx, auth.RoleAnalyst) }

// RequireAdmin allows admins only.
func RequireAdmin(ctx context.Context) (string, error) { return RequireRole(ctx, auth.RoleAdmin) }
