package tokens

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranalabs/merchant-admin-api/pkg/db/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestJanitorSweepPrunesBothTables(t *testing.T) {
	db := setupTokensTestDB(t)
	accessRepo := NewAccessRepository(db)
	refreshRepo := NewRefreshRepository(db)
	janitor := NewJanitor(accessRepo, refreshRepo, nil)
	ctx := context.Background()
	now := time.Now()

	liveJTI := uuid.New()
	require.NoError(t, accessRepo.Create(ctx, &models.AccessToken{
		ID: uuid.New(), UserID: uuid.New(), ExpiresAt: now.Add(-time.Minute),
	}))
	require.NoError(t, accessRepo.Create(ctx, &models.AccessToken{
		ID: liveJTI, UserID: uuid.New(), ExpiresAt: now.Add(time.Hour),
	}))

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	require.NoError(t, refreshRepo.Create(ctx, &models.RefreshToken{
		UserID: uuid.New(), TokenHash: "stale", ExpiresAt: &past,
	}))
	require.NoError(t, refreshRepo.Create(ctx, &models.RefreshToken{
		UserID: uuid.New(), TokenHash: "fresh", ExpiresAt: &future,
	}))

	removed, err := janitor.Sweep(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 2, removed)

	_, err = accessRepo.FindLive(ctx, liveJTI, now)
	require.NoError(t, err)
	_, err = refreshRepo.FindByHash(ctx, "fresh")
	require.NoError(t, err)
	_, err = refreshRepo.FindByHash(ctx, "stale")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestJanitorRunStopsOnCancel(t *testing.T) {
	db := setupTokensTestDB(t)
	janitor := NewJanitor(NewAccessRepository(db), NewRefreshRepository(db), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		janitor.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop on context cancel")
	}
}
