package models

import "time"

// Tombstone records a deletion intent for a record id. While a tombstone is
// live its id is suppressed from every merge result; after the retention
// window elapses the tombstone is swept and the id may reappear.
type Tombstone struct {
	// ID matches the deleted Record's id.
	ID string `json:"id"`

	// DeletedAt is the timestamp the deletion was recorded.
	DeletedAt time.Time `json:"deleted_at"`
}

// Expired reports whether the tombstone is older than retention at now.
func (t Tombstone) Expired(now time.Time, retention time.Duration) bool {
	return now.Sub(t.DeletedAt) > retention
}
