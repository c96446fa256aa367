package service

import (
	"errors"
	"time"

	"github.com/eduardojeem/Mipos-sub008/internal/apierror"
	"github.com/eduardojeem/Mipos-sub008/internal/repository"

	"github.com/google/uuid"
)

// Roles carried in the access token.
const (
	RoleCashier    = "cashier"
	RoleSupervisor = "supervisor"
	RoleAdmin      = "admin"
)

// Permission resources and actions.
const (
	ResourceSales          = "sales"
	ActionDiscountOverride = "discount_override"
)

// Actor is the authenticated caller of a service operation. Every read and
// write is scoped to OrganizationID.
type Actor struct {
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	Role           string
}

// PermissionChecker answers hasPermission(user, resource, action).
type PermissionChecker interface {
	HasPermission(actor Actor, resource, action string) bool
}

// RolePermissions grants "resource:action" pairs per role.
type RolePermissions map[string][]string

func DefaultRolePermissions() RolePermissions {
	override := ResourceSales + ":" + ActionDiscountOverride
	return RolePermissions{
		RoleSupervisor: {override},
		RoleAdmin:      {override},
	}
}

func (p RolePermissions) HasPermission(actor Actor, resource, action string) bool {
	want := resource + ":" + action
	for _, granted := range p[actor.Role] {
		if granted == want {
			return true
		}
	}
	return false
}

// Clock is the time source of a service; nil means time.Now.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// lookupErr turns a repository read failure into a NotFound or Internal error.
func lookupErr(err error, format string, args ...any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apierror.NotFound(format, args...)
	}
	return apierror.Internal("lookup failed", err)
}

// classify passes classified errors through and wraps the rest as Internal.
func classify(msg string, err error) error {
	var e *apierror.Error
	if errors.As(err, &e) {
		return err
	}
	return apierror.Internal(msg, err)
}
