package authz

import (
	"testing"

	"github.com/harman-health/portalctl/internal/session"
)

func staffUser() *session.User {
	return &session.User{
		Roles:       []string{"STAFF"},
		Permissions: map[string][]string{"patients": {"read"}},
	}
}

func TestCanAccess_NilUserDenied(t *testing.T) {
	if CanAccess(nil, Requirement{}) {
		t.Error("expected nil user to be denied")
	}
	if CanAccess(nil, Requirement{Roles: []string{"admin"}}) {
		t.Error("expected nil user to be denied with role requirement")
	}
}

func TestCanAccess_RoleIntersection(t *testing.T) {
	user := staffUser()

	if !CanAccess(user, Requirement{Roles: []string{"staff", "admin"}}) {
		t.Error("expected case-insensitive role match to allow")
	}
	if CanAccess(user, Requirement{Roles: []string{"admin"}}) {
		t.Error("expected disjoint roles to deny")
	}
	if !CanAccess(user, Requirement{}) {
		t.Error("expected empty requirement to allow any signed-in user")
	}
}

func TestCanAccess_PermissionLookup(t *testing.T) {
	user := staffUser()

	deny := Requirement{Permission: &Permission{Entity: "patients", Action: "write"}}
	if CanAccess(user, deny) {
		t.Error("expected write on patients to be denied")
	}

	allow := Requirement{Permission: &Permission{Entity: "patients", Action: "read"}}
	if !CanAccess(user, allow) {
		t.Error("expected read on patients to be allowed")
	}

	missing := Requirement{Permission: &Permission{Entity: "appointments", Action: "read"}}
	if CanAccess(user, missing) {
		t.Error("expected missing entity with no wildcard to be denied")
	}
}

func TestCanAccess_Wildcards(t *testing.T) {
	super := &session.User{
		Roles:       []string{"ADMIN"},
		Permissions: map[string][]string{"*": {"*"}},
	}

	cases := []Permission{
		{Entity: "patients", Action: "read"},
		{Entity: "patients", Action: "delete"},
		{Entity: "hl7-messages", Action: "write"},
	}
	for _, p := range cases {
		p := p
		if !CanAccess(super, Requirement{Permission: &p}) {
			t.Errorf("expected wildcard permissions to allow %s/%s", p.Entity, p.Action)
		}
	}

	wildcardAction := &session.User{
		Permissions: map[string][]string{"patients": {"*"}},
	}
	if !CanAccess(wildcardAction, Requirement{Permission: &Permission{Entity: "patients", Action: "purge"}}) {
		t.Error("expected wildcard action on entity to allow any action")
	}
}

func TestCanAccess_WildcardEntityFallback(t *testing.T) {
	user := &session.User{
		Permissions: map[string][]string{
			"*":        {"read"},
			"patients": {},
		},
	}

	if !CanAccess(user, Requirement{Permission: &Permission{Entity: "appointments", Action: "read"}}) {
		t.Error("expected fallback to wildcard entity for unknown entity")
	}

	// An entity explicitly present with an empty action set does not fall
	// back to the wildcard entity.
	if CanAccess(user, Requirement{Permission: &Permission{Entity: "patients", Action: "read"}}) {
		t.Error("expected explicit empty action set to deny without fallback")
	}
}

func TestCanAccess_RoleAndPermissionCombined(t *testing.T) {
	user := staffUser()

	req := Requirement{
		Roles:      []string{"STAFF"},
		Permission: &Permission{Entity: "patients", Action: "read"},
	}
	if !CanAccess(user, req) {
		t.Error("expected matching role and permission to allow")
	}

	req.Roles = []string{"ADMIN"}
	if CanAccess(user, req) {
		t.Error("expected failed role check to deny before permission check")
	}
}
