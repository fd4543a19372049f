// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package librarysync

import (
	"context"
	"time"
)

// scheduleInterval is how often the background scheduler re-runs a full
// library sync on top of the on-demand admin-triggered runs (§4K, §6).
const scheduleInterval = 6 * time.Hour

// Scheduler periodically triggers a Syncer run, implementing daemon.Runnable
// so the catalog stays in sync even if nobody ever hits the admin endpoint.
type Scheduler struct {
	syncer *Syncer
}

// NewScheduler wraps syncer in a periodic runner.
func NewScheduler(syncer *Syncer) *Scheduler {
	return &Scheduler{syncer: syncer}
}

// Run triggers a sync immediately, then every scheduleInterval, until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.syncer.Sync(ctx, "scheduler")

	ticker := time.NewTicker(scheduleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.syncer.Sync(ctx, "scheduler")
		}
	}
}
