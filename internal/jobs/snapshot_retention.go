package jobs

import (
	"context"
	"log"
	"time"

	"slidehub/internal/services"
)

// SnapshotRetentionJob prunes auto-save snapshots that have not been
// written inside the retention window. Session rows are left alone:
// staleness there is a read-time filter, not a deletion policy.
type SnapshotRetentionJob struct {
	snapshots *services.SnapshotStore
	retention time.Duration
}

// NewSnapshotRetentionJob creates a new snapshot retention job
func NewSnapshotRetentionJob(snapshots *services.SnapshotStore, retention time.Duration) *SnapshotRetentionJob {
	return &SnapshotRetentionJob{
		snapshots: snapshots,
		retention: retention,
	}
}

// Run deletes snapshots older than the retention window
func (j *SnapshotRetentionJob) Run(ctx context.Context) error {
	if j.snapshots == nil {
		log.Println("[RETENTION] Snapshot retention disabled (requires MongoDB)")
		return nil
	}

	log.Println("[RETENTION] Starting snapshot retention cleanup...")
	startTime := time.Now()

	cutoff := time.Now().UTC().Add(-j.retention)
	deleted, err := j.snapshots.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		log.Printf("[RETENTION] Snapshot cleanup failed: %v", err)
		return err
	}

	log.Printf("[RETENTION] Cleanup complete: deleted %d snapshots in %v", deleted, time.Since(startTime))
	return nil
}

// GetNextRunTime returns when the job should run next (daily at 2 AM UTC)
func (j *SnapshotRetentionJob) GetNextRunTime() time.Time {
	now := time.Now().UTC()

	// Schedule for 2 AM UTC
	nextRun := time.Date(now.Year(), now.Month(), now.Day(), 2, 0, 0, 0, time.UTC)

	// If we've passed 2 AM today, schedule for tomorrow
	if now.After(nextRun) {
		nextRun = nextRun.Add(24 * time.Hour)
	}

	return nextRun
}
