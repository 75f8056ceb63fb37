package rbac

import (
	"context"
	"testing"

	"civicwatch/internal/auth"
	"civicwatch/internal/domain"
)

func TestRequireRole_Success(t *testing.T) {
	tests := []struct {
		role auth.Role
		min  auth.Role
	}{
		{auth.RoleViewer, auth.RoleViewer},
		{auth.RoleAnalyst, auth.RoleViewer},
		{auth.RoleAnalyst, auth.RoleAnalyst},
		{auth.RoleAdmin, auth.RoleAnalyst},
		{auth.RoleAdmin, auth.RoleAdmin},
	}
	for _, tt := range tests {
		ctx := auth.WithIdentity(context.Background(), "user-1", tt.role)
		userID, err := RequireRole(ctx, tt.min)
		if err != nil {
			t.Fatalf("RequireRole(%s, %s): %v", tt.role, tt.min, err)
		}
		if userID != "user-1" {
			t.Errorf("user_id = %q, want %q", userID, "user-1")
		}
	}
}

func TestRequireRole_Failure_Forbidden(t *testing.T) {
	ctx := auth.WithIdentity(context.Background(), "user-1", auth.RoleViewer)

	if _, err := RequireAnalyst(ctx); domain.KindOf(err) != domain.KindForbidden {
		t.Errorf("analyst check: kind = %q, want %q", domain.KindOf(err), domain.KindForbidden)
	}
	ctx = auth.WithIdentity(context.Background(), "user-1", auth.RoleAnalyst)
	if _, err := RequireAdmin(ctx); domain.KindOf(err) != domain.KindForbidden {
		t.Errorf("admin check: kind = %q, want %q", domain.KindOf(err), domain.KindForbidden)
	}
}

func TestRequireRole_Failure_NoIdentity(t *testing.T) {
	_, err := RequireViewer(context.Background())
	if err == nil {
		t.Fatal("expected error for missing identity")
	}
	if domain.KindOf(err) != domain.KindUnauthenticated {
		t.Errorf("kind = %q, want %q", domain.KindOf(err), domain.KindUnauthenticated)
	}
}

func TestRequireRole_Failure_EmptyUserID(t *testing.T) {
	ctx := auth.WithIdentity(context.Background(), "", auth.RoleAdmin)
	if _, err := RequireAdmin(ctx); domain.KindOf(err) != domain.KindUnauthenticated {
		t.Errorf("kind = %q, want %q", domain.KindOf(err), domain.KindUnauthenticated)
	}
}

func TestRequireRole_Failure_UnknownRole(t *testing.T) {
	ctx := auth.WithIdentity(context.Background(), "user-1", auth.Role("owner"))
	if _, err := RequireViewer(ctx); domain.KindOf(err) != domain.KindForbidden {
		t.Errorf("kind = %q, want %q", domain.KindOf(err), domain.KindForbidden)
	}
}
