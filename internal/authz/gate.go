// Package authz implements the client-side authorization gate. It decides,
// from the signed-in user's roles and permission map, whether a portal
// affordance should be visible at all. A denial here is silent: the
// affordance is simply not rendered, and no request reaches the network.
package authz

import (
	"strings"

	"github.com/harman-health/portalctl/internal/session"
)

// Wildcard matches every entity or every action in a permission map.
const Wildcard = "*"

// Permission names a single entity/action pair, e.g. {patients, read}.
type Permission struct {
	Entity string
	Action string
}

// Requirement is what an affordance demands of the current user. An empty
// Roles slice means any role; a nil Permission means the role check alone
// decides.
type Requirement struct {
	Roles      []string
	Permission *Permission
}

// CanAccess reports whether the user satisfies the requirement. It is a
// pure function with no side effects and is safe to call on every
// evaluation.
//
// Rules, in order: no user denies; a non-empty role requirement must
// intersect the user's roles case-insensitively; absent that, a nil
// permission allows; otherwise the permission map entry for the entity
// (falling back to the "*" entity, then the empty set) must contain the
// action or the "*" action.
func CanAccess(user *session.User, req Requirement) bool {
	if user == nil {
		return false
	}

	if len(req.Roles) > 0 && !rolesIntersect(user.Roles, req.Roles) {
		return false
	}

	if req.Permission == nil {
		return true
	}

	actions, ok := user.Permissions[req.Permission.Entity]
	if !ok {
		actions = user.Permissions[Wildcard]
	}
	for _, a := range actions {
		if a == req.Permission.Action || a == Wildcard {
			return true
		}
	}
	return false
}

func rolesIntersect(userRoles, required []string) bool {
	for _, want := range required {
		for _, have := range userRoles {
			if strings.EqualFold(have, want) {
				return true
			}
		}
	}
	return false
}
