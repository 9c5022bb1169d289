package activity

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/kiranalabs/merchant-admin-api/pkg/db/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupActivityTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ActivityLog{}))
	return db
}

func TestRecorderPersistsEntry(t *testing.T) {
	db := setupActivityTestDB(t)
	recorder := NewRecorder(db)
	ctx := context.Background()

	actor := uuid.New()
	target := uuid.New()
	err := recorder.Record(ctx, Entry{
		Action:      ActionUpdate,
		Description: "updated user profile",
		ActorID:     &actor,
		TargetType:  "user",
		TargetID:    &target,
		OldValues:   map[string]string{"name": "Before"},
		NewValues:   map[string]string{"name": "After"},
	})
	require.NoError(t, err)

	var row models.ActivityLog
	require.NoError(t, db.First(&row).Error)
	require.Equal(t, ActionUpdate, row.Action)
	require.Equal(t, actor, *row.UserID)
	require.Equal(t, "user", *row.TargetType)
	require.JSONEq(t, `{"name":"Before"}`, *row.OldValues)
	require.JSONEq(t, `{"name":"After"}`, *row.NewValues)
}

func TestRecorderAllowsAnonymousEntry(t *testing.T) {
	db := setupActivityTestDB(t)
	recorder := NewRecorder(db)

	err := recorder.Record(context.Background(), Entry{
		Action:      ActionPasswordReset,
		Description: "password reset completed",
	})
	require.NoError(t, err)

	var row models.ActivityLog
	require.NoError(t, db.First(&row).Error)
	require.Nil(t, row.UserID)
	require.Nil(t, row.OldValues)
}

func TestRecorderRejectsMissingAction(t *testing.T) {
	recorder := NewRecorder(setupActivityTestDB(t))
	err := recorder.Record(context.Background(), Entry{Description: "no action"})
	require.Error(t, err)
}

func TestRecorderRollsBackWithTransaction(t *testing.T) {
	db := setupActivityTestDB(t)
	recorder := NewRecorder(db)
	ctx := context.Background()

	tx := db.Begin()
	require.NoError(t, tx.Error)
	require.NoError(t, recorder.WithTx(tx).Record(ctx, Entry{
		Action:      ActionDelete,
		Description: "doomed entry",
	}))
	require.NoError(t, tx.Rollback().Error)

	var count int64
	require.NoError(t, db.Model(&models.ActivityLog{}).Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestListForUser(t *testing.T) {
	db := setupActivityTestDB(t)
	recorder := NewRecorder(db)
	ctx := context.Background()

	actor := uuid.New()
	for i := 0; i < 3; i++ {
		require.NoError(t, recorder.Record(ctx, Entry{
			Action:      ActionLogin,
			Description: fmt.Sprintf("login %d", i),
			ActorID:     &actor,
		}))
	}
	other := uuid.New()
	require.NoError(t, recorder.Record(ctx, Entry{
		Action: ActionLogin, Description: "other", ActorID: &other,
	}))

	rows, err := recorder.ListForUser(ctx, actor, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.Equal(t, actor, *row.UserID)
	}
}
