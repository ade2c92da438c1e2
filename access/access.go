// Package access decides who may run which operation.
//
// Every operation declares a Requirement. Authorize checks the caller's Identity
// against it: no identity is ErrUnauthorized, a role mismatch is ErrForbidden.
package access

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/mbolis/quick-forms/model"
)

type Role int

const (
	Admin Role = iota + 1
	Staff
)

func (r Role) String() string {
	switch r {
	case Admin:
		return "admin"
	case Staff:
		return "staff"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return Admin, nil
	case "staff":
		return Staff, nil
	}
	return 0, errors.Wrapf(model.ErrInvalidInput, "unknown role %q", s)
}

// Identity is the authenticated caller of an operation.
type Identity struct {
	UserID   int64
	Username string
	Role     Role
}

type Requirement int

const (
	// AnyRole admits every authenticated identity.
	AnyRole Requirement = iota
	AdminOnly
	StaffOnly
)

func (req Requirement) String() string {
	switch req {
	case AnyRole:
		return "any"
	case AdminOnly:
		return "admin"
	case StaffOnly:
		return "staff"
	}
	return fmt.Sprintf("Requirement(%d)", int(req))
}

func Authorize(id *Identity, req Requirement) error {
	if id == nil {
		return model.ErrUnauthorized
	}

	var role Role
	switch id.Role {
	case Admin, Staff:
		role = id.Role
	default:
		// an identity with a role we don't know about was not issued by us
		return model.ErrUnauthorized
	}

	switch req {
	case AnyRole:
		return nil
	case AdminOnly:
		if role == Admin {
			return nil
		}
	case StaffOnly:
		if role == Staff {
			return nil
		}
	}
	return errors.Wrapf(model.ErrForbidden, "%s may not run %s operations", id.Username, req)
}
