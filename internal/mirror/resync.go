package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/wcatz/dashboard-builder/internal/dashboard"
)

// Source lists the current snapshot of every dashboard.
type Source interface {
	Snapshots(ctx context.Context) []dashboard.Snapshot
}

// Resync republishes every dashboard on a fixed period, so a mirror that
// missed pushes catches up.
type Resync struct {
	scheduler *cron.Cron
	logger    *zap.Logger
}

// StartResync schedules src to be published to m every period. A period
// below one second disables the job and returns nil.
func StartResync(src Source, m *Mirror, period time.Duration, logger *zap.Logger) (*Resync, error) {
	if period < time.Second {
		return nil, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Resync{scheduler: cron.New(), logger: logger}
	_, err := r.scheduler.AddFunc(fmt.Sprintf("@every %s", period), func() {
		snaps := src.Snapshots(context.Background())
		for _, snap := range snaps {
			m.Publish(snap)
		}
		logger.Debug("mirror resync queued", zap.Int("dashboards", len(snaps)))
	})
	if err != nil {
		return nil, fmt.Errorf("scheduling resync: %w", err)
	}
	r.scheduler.Start()
	logger.Info("mirror resync started", zap.Duration("every", period))
	return r, nil
}

// Stop halts the schedule and waits for a running resync to finish.
func (r *Resync) Stop() {
	if r == nil {
		return
	}
	<-r.scheduler.Stop().Done()
	r.logger.Info("mirror resync stopped")
}
