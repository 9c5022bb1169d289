package authz

import (
	"github.com/google/uuid"
	"github.com/kiranalabs/merchant-admin-api/pkg/enums"
	pkgerrors "github.com/kiranalabs/merchant-admin-api/pkg/errors"
)

// Allowed reports whether role is one of the required roles.
func Allowed(role enums.Role, required ...enums.Role) bool {
	for _, r := range required {
		if role == r {
			return true
		}
	}
	return false
}

// Require returns a FORBIDDEN error carrying the role context when the
// caller's role is not in the required set.
func Require(role enums.Role, required ...enums.Role) error {
	if Allowed(role, required...) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "forbidden").
		WithDetails(map[string]any{
			"required_roles": roleStrings(required),
			"user_role":      string(role),
		})
}

// CanManageUser reports whether actor may create, update, delete or restore
// the target role. Admins manage merchants only; they never touch other
// admins or super admins.
func CanManageUser(actor, target enums.Role) bool {
	switch actor {
	case enums.RoleSuperAdmin:
		return true
	case enums.RoleAdmin:
		return target == enums.RoleMerchant
	default:
		return false
	}
}

// CanDeleteUser layers the super-admin protection on top of CanManageUser:
// a super admin account is never deletable, by anyone.
func CanDeleteUser(actor, target enums.Role) bool {
	if target == enums.RoleSuperAdmin {
		return false
	}
	return CanManageUser(actor, target)
}

// CanChangeRole reports whether actor may move a user between roles.
// A super admin's role is immutable, and nobody is promoted into it:
// the system holds exactly one super admin account.
func CanChangeRole(actor, currentTarget, newTarget enums.Role) bool {
	if currentTarget == enums.RoleSuperAdmin || newTarget == enums.RoleSuperAdmin {
		return false
	}
	return CanManageUser(actor, currentTarget) && CanManageUser(actor, newTarget)
}

// AssignableRole reports whether a role may be handed out when creating
// accounts. The super admin role is never assignable.
func AssignableRole(role enums.Role) bool {
	return role == enums.RoleAdmin || role == enums.RoleMerchant
}

// CanViewMerchant reports whether the caller may read a merchant record.
// Merchant-role callers see only the record they own.
func CanViewMerchant(actorRole enums.Role, actorID, ownerID uuid.UUID) bool {
	if actorRole == enums.RoleSuperAdmin || actorRole == enums.RoleAdmin {
		return true
	}
	return actorID == ownerID
}

// CanUpdateMerchant mirrors CanViewMerchant; merchants may edit only their
// own record.
func CanUpdateMerchant(actorRole enums.Role, actorID, ownerID uuid.UUID) bool {
	return CanViewMerchant(actorRole, actorID, ownerID)
}

// CanWriteMerchantLifecycle reports whether the caller may create or delete
// merchant records at all.
func CanWriteMerchantLifecycle(actorRole enums.Role) bool {
	return actorRole == enums.RoleSuperAdmin || actorRole == enums.RoleAdmin
}

func roleStrings(roles []enums.Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}
