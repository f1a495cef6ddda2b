package models

import "time"

// Status is the scheduler's externally visible phase.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusSyncing  Status = "syncing"
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
	StatusConflict Status = "conflict"
	StatusOffline  Status = "offline"
)

// SyncState is the read-only surface the presentation layer observes.
// One value exists per process; only the Scheduler mutates it. A copy is
// cached best-effort in the local store to pre-populate state on restart.
type SyncState struct {
	Status         Status    `json:"status"`
	LastSyncTime   time.Time `json:"last_sync_time"`
	LastError      string    `json:"last_error,omitempty"`
	PendingChanges bool      `json:"pending_changes"`
	ConflictCount  int       `json:"conflict_count"`
}
