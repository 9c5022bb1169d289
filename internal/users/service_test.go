package users

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranalabs/merchant-admin-api/internal/activity"
	"github.com/kiranalabs/merchant-admin-api/internal/authz"
	"github.com/kiranalabs/merchant-admin-api/internal/merchants"
	"github.com/kiranalabs/merchant-admin-api/internal/tokens"
	"github.com/kiranalabs/merchant-admin-api/pkg/config"
	"github.com/kiranalabs/merchant-admin-api/pkg/db"
	"github.com/kiranalabs/merchant-admin-api/pkg/db/models"
	"github.com/kiranalabs/merchant-admin-api/pkg/enums"
	pkgerrors "github.com/kiranalabs/merchant-admin-api/pkg/errors"
	"github.com/kiranalabs/merchant-admin-api/pkg/security"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testPasswordCfg = config.PasswordConfig{
	ArgonMemoryKB:    8,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

type usersHarness struct {
	db        *gorm.DB
	client    *db.Client
	svc       Service
	users     *Repository
	merchants *merchants.Repository
	access    *tokens.AccessRepository
}

func setupUsersHarness(t *testing.T) *usersHarness {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, conn.AutoMigrate(
		&models.User{},
		&models.Merchant{},
		&models.AccessToken{},
		&models.RefreshToken{},
		&models.ActivityLog{},
	))

	client := db.NewWithConn(conn)
	userRepo := NewRepository(conn)
	merchantRepo := merchants.NewRepository(conn)
	accessRepo := tokens.NewAccessRepository(conn)
	recorder := activity.NewRecorder(conn)

	svc, err := NewService(ServiceParams{
		DB:             client,
		Users:          userRepo,
		Merchants:      merchantRepo,
		AccessTokens:   accessRepo,
		Recorder:       recorder,
		PasswordConfig: testPasswordCfg,
	})
	require.NoError(t, err)

	return &usersHarness{
		db:        conn,
		client:    client,
		svc:       svc,
		users:     userRepo,
		merchants: merchantRepo,
		access:    accessRepo,
	}
}

func (h *usersHarness) seedUser(t *testing.T, email string, role enums.Role) *models.User {
	t.Helper()
	hash, err := security.HashPassword("password123", testPasswordCfg)
	require.NoError(t, err)
	user := &models.User{
		Name:         "Seed User",
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	require.NoError(t, h.db.Create(user).Error)
	return user
}

func (h *usersHarness) seedMerchant(t *testing.T, owner *models.User) *models.Merchant {
	t.Helper()
	merchant := &models.Merchant{
		UserID:       owner.ID,
		BusinessName: "Seed Trading Co",
	}
	require.NoError(t, h.db.Create(merchant).Error)
	return merchant
}

func requireErrorCode(t *testing.T, err error, code pkgerrors.Code) *pkgerrors.Error {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected coded error, got %v", err)
	require.Equal(t, code, typed.Code())
	return typed
}

func superAdminActor(u *models.User) authz.Actor { return authz.Actor{ID: u.ID, Role: u.Role} }

func TestCreateRespectsRolePolicy(t *testing.T) {
	h := setupUsersHarness(t)
	ctx := context.Background()
	root := h.seedUser(t, "root@example.com", enums.RoleSuperAdmin)
	admin := h.seedUser(t, "admin@example.com", enums.RoleAdmin)

	created, err := h.svc.Create(ctx, superAdminActor(root), CreateUserInput{
		Name:     "New Admin",
		Email:    "Staff@Example.com",
		Password: "password123",
		Role:     "admin",
	})
	require.NoError(t, err)
	require.Equal(t, enums.RoleAdmin, created.Role)
	require.Equal(t, "staff@example.com", created.Email)

	// An admin may only create merchants.
	_, err = h.svc.Create(ctx, authz.Actor{ID: admin.ID, Role: admin.Role}, CreateUserInput{
		Name:     "Peer Admin",
		Email:    "peer@example.com",
		Password: "password123",
		Role:     "admin",
	})
	appErr := requireErrorCode(t, err, pkgerrors.CodeForbidden)
	require.Equal(t, "users.cannot_create_admin", appErr.Message())

	merchant, err := h.svc.Create(ctx, authz.Actor{ID: admin.ID, Role: admin.Role}, CreateUserInput{
		Name:     "Shop Owner",
		Email:    "owner@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	require.Equal(t, enums.RoleMerchant, merchant.Role)
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	h := setupUsersHarness(t)
	ctx := context.Background()
	root := h.seedUser(t, "root@example.com", enums.RoleSuperAdmin)
	h.seedUser(t, "taken@example.com", enums.RoleMerchant)

	_, err := h.svc.Create(ctx, superAdminActor(root), CreateUserInput{
		Name:     "Dup",
		Email:    "TAKEN@example.com",
		Password: "password123",
	})
	appErr := requireErrorCode(t, err, pkgerrors.CodeValidation)
	require.Equal(t, "users.email_taken", appErr.Message())
}

func TestUpdateEnforcesAdminBoundary(t *testing.T) {
	h := setupUsersHarness(t)
	ctx := context.Background()
	admin := h.seedUser(t, "admin@example.com", enums.RoleAdmin)
	peer := h.seedUser(t, "peer@example.com", enums.RoleAdmin)
	owner := h.seedUser(t, "owner@example.com", enums.RoleMerchant)

	name := "Renamed"
	_, err := h.svc.Update(ctx, authz.Actor{ID: admin.ID, Role: admin.Role}, peer.ID, UpdateUserInput{Name: &name})
	appErr := requireErrorCode(t, err, pkgerrors.CodeForbidden)
	require.Equal(t, "users.cannot_manage_admin", appErr.Message())

	updated, err := h.svc.Update(ctx, authz.Actor{ID: admin.ID, Role: admin.Role}, owner.ID, UpdateUserInput{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Name)
}

func TestUpdateRoleRules(t *testing.T) {
	h := setupUsersHarness(t)
	ctx := context.Background()
	root := h.seedUser(t, "root@example.com", enums.RoleSuperAdmin)
	owner := h.seedUser(t, "owner@example.com", enums.RoleMerchant)

	adminRole := "admin"
	updated, err := h.svc.Update(ctx, superAdminActor(root), owner.ID, UpdateUserInput{Role: &adminRole})
	require.NoError(t, err)
	require.Equal(t, enums.RoleAdmin, updated.Role)

	// A super admin's role is immutable, even for another super admin.
	other := h.seedUser(t, "root2@example.com", enums.RoleSuperAdmin)
	merchantRole := "merchant"
	_, err = h.svc.Update(ctx, superAdminActor(root), other.ID, UpdateUserInput{Role: &merchantRole})
	appErr := requireErrorCode(t, err, pkgerrors.CodeForbidden)
	require.Equal(t, "users.cannot_change_super_admin", appErr.Message())
}

func TestSuperAdminRoleNeverAssigned(t *testing.T) {
	h := setupUsersHarness(t)
	ctx := context.Background()
	root := h.seedUser(t, "root@example.com", enums.RoleSuperAdmin)
	admin := h.seedUser(t, "admin@example.com", enums.RoleAdmin)

	// Creating a second super admin is rejected even for the super admin.
	_, err := h.svc.Create(ctx, superAdminActor(root), CreateUserInput{
		Name:     "Second Root",
		Email:    "root2@example.com",
		Password: "password123",
		Role:     "super_admin",
	})
	requireErrorCode(t, err, pkgerrors.CodeValidation)

	// So is promoting an existing admin into the role.
	rootRole := "super_admin"
	_, err = h.svc.Update(ctx, superAdminActor(root), admin.ID, UpdateUserInput{Role: &rootRole})
	requireErrorCode(t, err, pkgerrors.CodeValidation)

	var count int64
	require.NoError(t, h.db.Model(&models.User{}).Where("role = ?", enums.RoleSuperAdmin).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestUpdateRejectsTakenEmail(t *testing.T) {
	h := setupUsersHarness(t)
	ctx := context.Background()
	root := h.seedUser(t, "root@example.com", enums.RoleSuperAdmin)
	owner := h.seedUser(t, "owner@example.com", enums.RoleMerchant)
	h.seedUser(t, "taken@example.com", enums.RoleMerchant)

	email := "Taken@Example.com"
	_, err := h.svc.Update(ctx, superAdminActor(root), owner.ID, UpdateUserInput{Email: &email})
	appErr := requireErrorCode(t, err, pkgerrors.CodeValidation)
	require.Equal(t, "users.email_taken", appErr.Message())
}

func TestSoftDeleteCascadesToMerchantProfile(t *testing.T) {
	h := setupUsersHarness(t)
	ctx := context.Background()
	root := h.seedUser(t, "root@example.com", enums.RoleSuperAdmin)
	owner := h.seedUser(t, "owner@example.com", enums.RoleMerchant)
	profile := h.seedMerchant(t, owner)

	require.NoError(t, h.svc.SoftDelete(ctx, superAdminActor(root), owner.ID))

	var gone models.User
	err := h.db.First(&gone, "id = ?", owner.ID).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var rawMerchant models.Merchant
	require.NoError(t, h.db.Unscoped().First(&rawMerchant, "id = ?", profile.ID).Error)
	require.True(t, rawMerchant.DeletedAt.Valid)
}

func TestSoftDeleteNeverRemovesSuperAdmin(t *testing.T) {
	h := setupUsersHarness(t)
	ctx := context.Background()
	root := h.seedUser(t, "root@example.com", enums.RoleSuperAdmin)
	other := h.seedUser(t, "root2@example.com", enums.RoleSuperAdmin)

	err := h.svc.SoftDelete(ctx, superAdminActor(root), other.ID)
	appErr := requireErrorCode(t, err, pkgerrors.CodeForbidden)
	require.Equal(t, "users.cannot_delete_super_admin", appErr.Message())
}

func TestSoftDeleteAdminByAdminForbidden(t *testing.T) {
	h := setupUsersHarness(t)
	ctx := context.Background()
	admin := h.seedUser(t, "admin@example.com", enums.RoleAdmin)
	peer := h.seedUser(t, "peer@example.com", enums.RoleAdmin)

	err := h.svc.SoftDelete(ctx, authz.Actor{ID: admin.ID, Role: admin.Role}, peer.ID)
	appErr := requireErrorCode(t, err, pkgerrors.CodeForbidden)
	require.Equal(t, "users.cannot_manage_admin", appErr.Message())
}

func TestRestoreCascadesToMerchantProfile(t *testing.T) {
	h := setupUsersHarness(t)
	ctx := context.Background()
	root := h.seedUser(t, "root@example.com", enums.RoleSuperAdmin)
	owner := h.seedUser(t, "owner@example.com", enums.RoleMerchant)
	profile := h.seedMerchant(t, owner)

	require.NoError(t, h.svc.SoftDelete(ctx, superAdminActor(root), owner.ID))

	restored, err := h.svc.Restore(ctx, superAdminActor(root), owner.ID)
	require.NoError(t, err)
	require.Nil(t, restored.DeletedAt)

	var live models.Merchant
	require.NoError(t, h.db.First(&live, "id = ?", profile.ID).Error)
	require.False(t, live.DeletedAt.Valid)
}

func TestRestoreAdminByAdminRollsBack(t *testing.T) {
	h := setupUsersHarness(t)
	ctx := context.Background()
	root := h.seedUser(t, "root@example.com", enums.RoleSuperAdmin)
	admin := h.seedUser(t, "admin@example.com", enums.RoleAdmin)
	target := h.seedUser(t, "deleted@example.com", enums.RoleAdmin)

	require.NoError(t, h.svc.SoftDelete(ctx, superAdminActor(root), target.ID))

	_, err := h.svc.Restore(ctx, authz.Actor{ID: admin.ID, Role: admin.Role}, target.ID)
	appErr := requireErrorCode(t, err, pkgerrors.CodeForbidden)
	require.Equal(t, "users.cannot_manage_admin", appErr.Message())

	// The target must still be deleted after the rejected restore.
	var raw models.User
	require.NoError(t, h.db.Unscoped().First(&raw, "id = ?", target.ID).Error)
	require.True(t, raw.DeletedAt.Valid)
}

func TestRestoreRequiresDeletedTarget(t *testing.T) {
	h := setupUsersHarness(t)
	ctx := context.Background()
	root := h.seedUser(t, "root@example.com", enums.RoleSuperAdmin)
	owner := h.seedUser(t, "owner@example.com", enums.RoleMerchant)

	_, err := h.svc.Restore(ctx, superAdminActor(root), owner.ID)
	requireErrorCode(t, err, pkgerrors.CodeValidation)
}

func TestListPaginatesAndFilters(t *testing.T) {
	h := setupUsersHarness(t)
	ctx := context.Background()
	root := h.seedUser(t, "root@example.com", enums.RoleSuperAdmin)
	for i := 0; i < 4; i++ {
		h.seedUser(t, fmt.Sprintf("owner%d@example.com", i), enums.RoleMerchant)
	}

	result, err := h.svc.List(ctx, superAdminActor(root), ListParams{Page: 1, PerPage: 2})
	require.NoError(t, err)
	require.Len(t, result.Users, 2)
	require.Equal(t, int64(5), result.Meta.Total)
	require.Equal(t, 3, result.Meta.LastPage)

	result, err = h.svc.List(ctx, superAdminActor(root), ListParams{Search: "owner1"})
	require.NoError(t, err)
	require.Len(t, result.Users, 1)
	require.Equal(t, "owner1@example.com", result.Users[0].Email)
}

func TestListForbiddenForMerchants(t *testing.T) {
	h := setupUsersHarness(t)
	ctx := context.Background()
	owner := h.seedUser(t, "owner@example.com", enums.RoleMerchant)

	_, err := h.svc.List(ctx, authz.Actor{ID: owner.ID, Role: owner.Role}, ListParams{})
	requireErrorCode(t, err, pkgerrors.CodeForbidden)
}

func TestMerchantOwnersListsOnlyMerchantRole(t *testing.T) {
	h := setupUsersHarness(t)
	ctx := context.Background()
	root := h.seedUser(t, "root@example.com", enums.RoleSuperAdmin)
	h.seedUser(t, "admin@example.com", enums.RoleAdmin)
	h.seedUser(t, "owner@example.com", enums.RoleMerchant)

	owners, err := h.svc.MerchantOwners(ctx, superAdminActor(root))
	require.NoError(t, err)
	require.Len(t, owners, 1)
	require.Equal(t, enums.RoleMerchant, owners[0].Role)
}

func TestUpdateProfileChangesName(t *testing.T) {
	h := setupUsersHarness(t)
	ctx := context.Background()
	owner := h.seedUser(t, "owner@example.com", enums.RoleMerchant)

	updated, err := h.svc.UpdateProfile(ctx, owner.ID, UpdateProfileInput{Name: "  New Name  "})
	require.NoError(t, err)
	require.Equal(t, "New Name", updated.Name)

	profile, err := h.svc.GetProfile(ctx, owner.ID)
	require.NoError(t, err)
	require.Equal(t, "New Name", profile.Name)
}

func TestChangePasswordVerifiesCurrentCredential(t *testing.T) {
	h := setupUsersHarness(t)
	ctx := context.Background()
	owner := h.seedUser(t, "owner@example.com", enums.RoleMerchant)

	err := h.svc.ChangePassword(ctx, owner.ID, uuid.New(), ChangePasswordInput{
		CurrentPassword: "wrong-password",
		NewPassword:     "fresh-password-1",
	})
	appErr := requireErrorCode(t, err, pkgerrors.CodeValidation)
	require.Equal(t, "settings.current_password_wrong", appErr.Message())
}

func TestChangePasswordKeepsCurrentSessionOnly(t *testing.T) {
	h := setupUsersHarness(t)
	ctx := context.Background()
	owner := h.seedUser(t, "owner@example.com", enums.RoleMerchant)

	now := time.Now().UTC()
	current := uuid.New()
	other := uuid.New()
	for _, jti := range []uuid.UUID{current, other} {
		require.NoError(t, h.db.Create(&models.AccessToken{
			ID:        jti,
			UserID:    owner.ID,
			ExpiresAt: now.Add(time.Hour),
		}).Error)
	}

	require.NoError(t, h.svc.ChangePassword(ctx, owner.ID, current, ChangePasswordInput{
		CurrentPassword: "password123",
		NewPassword:     "fresh-password-1",
	}))

	var remaining []models.AccessToken
	require.NoError(t, h.db.Where("user_id = ?", owner.ID).Find(&remaining).Error)
	require.Len(t, remaining, 1)
	require.Equal(t, current, remaining[0].ID)

	reloaded, err := h.users.FindByID(ctx, owner.ID)
	require.NoError(t, err)
	ok, err := security.VerifyPassword("fresh-password-1", reloaded.PasswordHash)
	require.NoError(t, err)
	require.True(t, ok)
}
