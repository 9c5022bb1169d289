package dashboard

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/kiranalabs/merchant-admin-api/internal/authz"
	"github.com/kiranalabs/merchant-admin-api/internal/merchants"
	"github.com/kiranalabs/merchant-admin-api/internal/users"
	"github.com/kiranalabs/merchant-admin-api/pkg/db/models"
	"github.com/kiranalabs/merchant-admin-api/pkg/enums"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type dashboardHarness struct {
	db  *gorm.DB
	svc Service
}

func setupDashboardHarness(t *testing.T) *dashboardHarness {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, conn.AutoMigrate(&models.User{}, &models.Merchant{}))

	svc, err := NewService(ServiceParams{
		Users:     users.NewRepository(conn),
		Merchants: merchants.NewRepository(conn),
	})
	require.NoError(t, err)

	return &dashboardHarness{db: conn, svc: svc}
}

func (h *dashboardHarness) seedUser(t *testing.T, email string, role enums.Role) *models.User {
	t.Helper()
	user := &models.User{Name: "User", Email: email, PasswordHash: "x", Role: role}
	require.NoError(t, h.db.Create(user).Error)
	return user
}

func (h *dashboardHarness) seedMerchant(t *testing.T, owner *models.User, name string) *models.Merchant {
	t.Helper()
	merchant := &models.Merchant{UserID: owner.ID, BusinessName: name}
	require.NoError(t, h.db.Create(merchant).Error)
	return merchant
}

func TestOverviewForSuperAdmin(t *testing.T) {
	h := setupDashboardHarness(t)
	ctx := context.Background()
	root := h.seedUser(t, "root@example.com", enums.RoleSuperAdmin)
	h.seedUser(t, "admin@example.com", enums.RoleAdmin)
	alice := h.seedUser(t, "alice@example.com", enums.RoleMerchant)
	bob := h.seedUser(t, "bob@example.com", enums.RoleMerchant)
	h.seedMerchant(t, alice, "Alice Trading")
	deleted := h.seedMerchant(t, bob, "Bob Logistics")
	require.NoError(t, h.db.Delete(&models.Merchant{}, "id = ?", deleted.ID).Error)

	overview, err := h.svc.Overview(ctx, authz.Actor{ID: root.ID, Role: enums.RoleSuperAdmin})
	require.NoError(t, err)

	stats, ok := overview.Data.(SuperAdminStats)
	require.True(t, ok, "expected super admin payload, got %T", overview.Data)
	require.Equal(t, int64(4), stats.TotalUsers)
	require.Equal(t, int64(2), stats.TotalMerchants)
	require.Equal(t, int64(1), stats.ActiveMerchants)
	require.Equal(t, int64(2), stats.UsersByRole["merchant"])
	require.Equal(t, int64(1), stats.UsersByRole["admin"])
	require.Equal(t, int64(1), stats.UsersByRole["super_admin"])
	require.NotEmpty(t, stats.RecentUsers)
	require.NotEmpty(t, stats.RecentMerchants)
}

func TestOverviewForAdmin(t *testing.T) {
	h := setupDashboardHarness(t)
	ctx := context.Background()
	admin := h.seedUser(t, "admin@example.com", enums.RoleAdmin)
	alice := h.seedUser(t, "alice@example.com", enums.RoleMerchant)
	bob := h.seedUser(t, "bob@example.com", enums.RoleMerchant)
	h.seedMerchant(t, alice, "Alice Trading")
	deleted := h.seedMerchant(t, bob, "Bob Logistics")
	require.NoError(t, h.db.Delete(&models.Merchant{}, "id = ?", deleted.ID).Error)

	overview, err := h.svc.Overview(ctx, authz.Actor{ID: admin.ID, Role: enums.RoleAdmin})
	require.NoError(t, err)

	stats, ok := overview.Data.(AdminStats)
	require.True(t, ok, "expected admin payload, got %T", overview.Data)
	require.Equal(t, int64(2), stats.TotalMerchants)
	require.Equal(t, int64(1), stats.ActiveMerchants)
	require.Equal(t, int64(1), stats.InactiveMerchants)
	require.Len(t, stats.RecentMerchants, 1)
}

func TestOverviewForMerchantWithProfile(t *testing.T) {
	h := setupDashboardHarness(t)
	ctx := context.Background()
	alice := h.seedUser(t, "alice@example.com", enums.RoleMerchant)
	merchant := h.seedMerchant(t, alice, "Alice Trading")

	overview, err := h.svc.Overview(ctx, authz.Actor{ID: alice.ID, Role: enums.RoleMerchant})
	require.NoError(t, err)
	require.Empty(t, overview.Message)

	profile, ok := overview.Data.(*merchants.MerchantDTO)
	require.True(t, ok, "expected merchant payload, got %T", overview.Data)
	require.Equal(t, merchant.ID, profile.ID)
}

func TestOverviewForMerchantWithoutProfile(t *testing.T) {
	h := setupDashboardHarness(t)

	overview, err := h.svc.Overview(context.Background(), authz.Actor{
		ID:   uuid.New(),
		Role: enums.RoleMerchant,
	})
	require.NoError(t, err)
	require.Nil(t, overview.Data)
	require.Equal(t, "dashboard.merchant_not_found", overview.Message)
}
