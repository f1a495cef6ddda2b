package sync

import (
	"context"
	"time"

	"github.com/rdmitry/taskvault/internal/logger"
)

// Monitor polls a [Reachability] source and feeds transitions into the
// scheduler. It reports the initial observation immediately so the
// scheduler never runs on a stale assumption after startup.
type Monitor struct {
	reach     Reachability
	scheduler *Scheduler
	interval  time.Duration
	logger    *logger.Logger
}

func NewMonitor(reach Reachability, scheduler *Scheduler, interval time.Duration, log *logger.Logger) *Monitor {
	return &Monitor{
		reach:     reach,
		scheduler: scheduler,
		interval:  interval,
		logger:    log,
	}
}

// Run implements [Worker].
func (m *Monitor) Run(ctx context.Context) {
	m.scheduler.SetOnline(m.reach.Online(ctx))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.scheduler.SetOnline(m.reach.Online(ctx))
		}
	}
}
