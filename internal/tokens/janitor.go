package tokens

import (
	"context"
	"time"

	"github.com/kiranalabs/merchant-admin-api/pkg/logger"
)

// DefaultSweepInterval is how often the janitor prunes dead token rows.
const DefaultSweepInterval = time.Hour

// Janitor periodically deletes expired access and refresh token rows so
// the token tables only hold presentable credentials.
type Janitor struct {
	access  *AccessRepository
	refresh *RefreshRepository
	logg    *logger.Logger
}

// NewJanitor builds a janitor over both token repositories.
func NewJanitor(access *AccessRepository, refresh *RefreshRepository, logg *logger.Logger) *Janitor {
	return &Janitor{access: access, refresh: refresh, logg: logg}
}

// Sweep removes every token row that can no longer be presented and
// returns how many rows went away.
func (j *Janitor) Sweep(ctx context.Context, now time.Time) (int64, error) {
	accessGone, err := j.access.DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	refreshGone, err := j.refresh.DeleteExpired(ctx, now)
	if err != nil {
		return accessGone, err
	}
	return accessGone + refreshGone, nil
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	j.sweepAndLog(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweepAndLog(ctx)
		}
	}
}

func (j *Janitor) sweepAndLog(ctx context.Context) {
	removed, err := j.Sweep(ctx, time.Now().UTC())
	if j.logg == nil {
		return
	}
	if err != nil {
		j.logg.Warn(j.logg.WithField(ctx, "error", err.Error()), "token sweep failed")
		return
	}
	if removed > 0 {
		j.logg.Info(j.logg.WithField(ctx, "removed", removed), "token sweep completed")
	}
}
