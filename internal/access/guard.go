// Package access decides whether an identity may perform an action on a
// media resource. It is evaluated before any mutating or byte-serving work.
//
// Existence policy: callers look the resource up first and report a missing
// resource as not found; a resource that exists but is not accessible is
// reported as forbidden. The two outcomes stay distinguishable.
package access

import (
	"errors"
	"fmt"

	"videovault/internal/domain/user"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("access denied")
)

type Action string

const (
	ActionUpload     Action = "upload"
	ActionRead       Action = "read"
	ActionList       Action = "list"
	ActionStream     Action = "stream"
	ActionDelete     Action = "delete"
	ActionSubscribe  Action = "subscribe"
	ActionAdminister Action = "administer"
)

const (
	ReasonUnauthenticated  = "unauthenticated"
	ReasonInsufficientRole = "insufficient role"
	ReasonNotOwner         = "not owner"
)

// Identity is the authenticated caller.
type Identity struct {
	ID   int64
	Role user.Role
}

func (i Identity) Valid() bool {
	return i.ID > 0 && i.Role.Valid()
}

func (i Identity) IsAdmin() bool {
	return i.Role == user.RoleAdmin
}

// Resource is the part of a protected object the guard needs.
type Resource struct {
	OwnerID int64
}

type Decision struct {
	Allowed bool
	Reason  string
}

// Err converts a denial into an error wrapping ErrUnauthenticated or ErrForbidden.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	if d.Reason == ReasonUnauthenticated {
		return ErrUnauthenticated
	}
	return fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
}

// roleGates lists the roles an action requires regardless of ownership.
// Actions missing from the map are open to every valid role.
var roleGates = map[Action][]user.Role{
	ActionUpload:     {user.RoleEditor, user.RoleAdmin},
	ActionDelete:     {user.RoleEditor, user.RoleAdmin},
	ActionAdminister: {user.RoleAdmin},
}

type Guard struct{}

func NewGuard() *Guard {
	return &Guard{}
}

// Authorize evaluates identity, role and ownership. A nil resource means a
// collection-level action (upload, list) where only the role gate applies.
func (g *Guard) Authorize(id Identity, res *Resource, action Action) Decision {
	if !id.Valid() {
		return deny(ReasonUnauthenticated)
	}
	if id.IsAdmin() {
		return allow()
	}
	if roles, gated := roleGates[action]; gated && !hasRole(id.Role, roles) {
		return deny(ReasonInsufficientRole)
	}
	if res == nil {
		return allow()
	}
	if res.OwnerID != id.ID {
		return deny(ReasonNotOwner)
	}
	return allow()
}

func hasRole(role user.Role, allowed []user.Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Reason: reason} }
