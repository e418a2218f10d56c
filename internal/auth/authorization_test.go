package auth

import (
	"context"
	"testing"

	"github.com/canonica-labs/canonica/internal/capabilities"
)

func TestAuthorizeDeniesByDefault(t *testing.T) {
	s := NewAuthorizationService()
	user := &User{ID: "u1", Roles: []string{"analyst"}}

	if err := s.Authorize(context.Background(), user, []string{"orders"}, capabilities.CapabilityRead); err == nil {
		t.Fatal("expected authorization to be denied with no grants")
	}
}

func TestAuthorizeSucceedsAfterGrant(t *testing.T) {
	s := NewAuthorizationService()
	s.GrantAccess("analyst", "orders", capabilities.CapabilityRead)
	user := &User{ID: "u1", Roles: []string{"analyst"}}

	if err := s.Authorize(context.Background(), user, []string{"orders"}, capabilities.CapabilityRead); err != nil {
		t.Fatalf("expected authorization to succeed, got %v", err)
	}
}

func TestAuthorizeRequiresAllReferencedTables(t *testing.T) {
	s := NewAuthorizationService()
	s.GrantAccess("analyst", "orders", capabilities.CapabilityRead)
	user := &User{ID: "u1", Roles: []string{"analyst"}}

	err := s.Authorize(context.Background(), user, []string{"orders", "shipments"}, capabilities.CapabilityRead)
	if err == nil {
		t.Fatal("expected authorization to fail when only one of two tables is granted")
	}
}

func TestAuthorizeRejectsNilUser(t *testing.T) {
	s := NewAuthorizationService()
	if err := s.Authorize(context.Background(), nil, []string{"orders"}, capabilities.CapabilityRead); err == nil {
		t.Fatal("expected a nil user to be denied")
	}
}

func TestRevokeAccessRemovesGrant(t *testing.T) {
	s := NewAuthorizationService()
	s.GrantAccess("analyst", "orders", capabilities.CapabilityRead)
	s.RevokeAccess("analyst", "orders", capabilities.CapabilityRead)

	user := &User{ID: "u1", Roles: []string{"analyst"}}
	if err := s.Authorize(context.Background(), user, []string{"orders"}, capabilities.CapabilityRead); err == nil {
		t.Fatal("expected authorization to fail after the grant was revoked")
	}
}

func TestRevokeAccessOnUngrantedRoleIsNoop(t *testing.T) {
	s := NewAuthorizationService()
	s.RevokeAccess("nobody", "orders", capabilities.CapabilityRead)
}

func TestGrantAccessIsIdempotent(t *testing.T) {
	s := NewAuthorizationService()
	s.GrantAccess("analyst", "orders", capabilities.CapabilityRead)
	s.GrantAccess("analyst", "orders", capabilities.CapabilityRead)

	perms := s.GetPermissions("analyst")
	if len(perms["orders"]) != 1 {
		t.Fatalf("expected a duplicate grant to not be stored twice, got %v", perms["orders"])
	}
}

func TestHasAccessMatchesAuthorize(t *testing.T) {
	s := NewAuthorizationService()
	s.GrantAccess("analyst", "orders", capabilities.CapabilityRead)
	user := &User{ID: "u1", Roles: []string{"analyst"}}

	if !s.HasAccess(user, "orders", capabilities.CapabilityRead) {
		t.Fatal("expected HasAccess to report true for a granted capability")
	}
	if s.HasAccess(user, "shipments", capabilities.CapabilityRead) {
		t.Fatal("expected HasAccess to report false for an ungranted table")
	}
}

func TestGetPermissionsReturnsACopy(t *testing.T) {
	s := NewAuthorizationService()
	s.GrantAccess("analyst", "orders", capabilities.CapabilityRead)

	perms := s.GetPermissions("analyst")
	perms["orders"] = append(perms["orders"], capabilities.CapabilityTimeTravel)

	fresh := s.GetPermissions("analyst")
	if len(fresh["orders"]) != 1 {
		t.Fatalf("expected mutating a returned permission map to not affect internal state, got %v", fresh["orders"])
	}
}
