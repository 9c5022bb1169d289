package dashboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/kiranalabs/merchant-admin-api/internal/authz"
	"github.com/kiranalabs/merchant-admin-api/internal/merchants"
	"github.com/kiranalabs/merchant-admin-api/internal/users"
	"github.com/kiranalabs/merchant-admin-api/pkg/enums"
	pkgerrors "github.com/kiranalabs/merchant-admin-api/pkg/errors"
	"gorm.io/gorm"
)

const merchantNotFoundMessage = "dashboard.merchant_not_found"

const recentLimit = 5

// SuperAdminStats is the platform-wide dashboard payload.
type SuperAdminStats struct {
	TotalUsers      int64                   `json:"total_users"`
	TotalMerchants  int64                   `json:"total_merchants"`
	ActiveMerchants int64                   `json:"active_merchants"`
	UsersByRole     map[string]int64        `json:"users_by_role"`
	RecentUsers     []users.UserDTO         `json:"recent_users"`
	RecentMerchants []merchants.MerchantDTO `json:"recent_merchants"`
}

// AdminStats is the merchant-operations dashboard payload.
type AdminStats struct {
	TotalMerchants    int64                   `json:"total_merchants"`
	ActiveMerchants   int64                   `json:"active_merchants"`
	InactiveMerchants int64                   `json:"inactive_merchants"`
	RecentMerchants   []merchants.MerchantDTO `json:"recent_merchants"`
}

// Overview is the role-scoped dashboard response. Data holds the stats
// payload for the caller's role; Message is set when there is nothing to
// show, such as a merchant without a profile.
type Overview struct {
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
}

// Service assembles role-scoped dashboard snapshots.
type Service interface {
	Overview(ctx context.Context, actor authz.Actor) (*Overview, error)
}

// ServiceParams bundles the dependencies for the dashboard service.
type ServiceParams struct {
	Users     *users.Repository
	Merchants *merchants.Repository
}

type service struct {
	users     *users.Repository
	merchants *merchants.Repository
}

// NewService constructs the dashboard service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("users repository is required")
	}
	if params.Merchants == nil {
		return nil, fmt.Errorf("merchants repository is required")
	}
	return &service{users: params.Users, merchants: params.Merchants}, nil
}

func (s *service) Overview(ctx context.Context, actor authz.Actor) (*Overview, error) {
	switch actor.Role {
	case enums.RoleSuperAdmin:
		return s.superAdminOverview(ctx)
	case enums.RoleAdmin:
		return s.adminOverview(ctx)
	case enums.RoleMerchant:
		return s.merchantOverview(ctx, actor)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "dashboard.forbidden")
	}
}

func (s *service) superAdminOverview(ctx context.Context) (*Overview, error) {
	totalUsers, err := s.users.CountAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count users")
	}
	totalMerchants, err := s.merchants.CountAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count merchants")
	}
	activeMerchants, err := s.merchants.CountLive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count active merchants")
	}
	byRole, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count users by role")
	}
	recentUsers, err := s.users.Recent(ctx, recentLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load recent users")
	}
	recentMerchants, err := s.merchants.Recent(ctx, recentLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load recent merchants")
	}

	usersByRole := make(map[string]int64, len(byRole))
	for role, count := range byRole {
		usersByRole[string(role)] = count
	}

	return &Overview{Data: SuperAdminStats{
		TotalUsers:      totalUsers,
		TotalMerchants:  totalMerchants,
		ActiveMerchants: activeMerchants,
		UsersByRole:     usersByRole,
		RecentUsers:     users.FromModels(recentUsers),
		RecentMerchants: merchants.FromModels(recentMerchants),
	}}, nil
}

func (s *service) adminOverview(ctx context.Context) (*Overview, error) {
	totalMerchants, err := s.merchants.CountAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count merchants")
	}
	activeMerchants, err := s.merchants.CountLive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count active merchants")
	}
	inactiveMerchants, err := s.merchants.CountDeleted(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count inactive merchants")
	}
	recentMerchants, err := s.merchants.Recent(ctx, recentLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load recent merchants")
	}

	return &Overview{Data: AdminStats{
		TotalMerchants:    totalMerchants,
		ActiveMerchants:   activeMerchants,
		InactiveMerchants: inactiveMerchants,
		RecentMerchants:   merchants.FromModels(recentMerchants),
	}}, nil
}

func (s *service) merchantOverview(ctx context.Context, actor authz.Actor) (*Overview, error) {
	merchant, err := s.merchants.FindByUserID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &Overview{Message: merchantNotFoundMessage}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load merchant profile")
	}
	return &Overview{Data: merchants.FromModel(merchant)}, nil
}
