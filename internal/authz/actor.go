package authz

import (
	"github.com/google/uuid"
	"github.com/kiranalabs/merchant-admin-api/pkg/enums"
)

// Actor identifies the authenticated caller inside service operations.
type Actor struct {
	ID   uuid.UUID
	Role enums.Role
}
