package models

import (
	"time"

	"github.com/google/uuid"
)

// Record represents a single user-visible item of the dataset.
// Records travel between replicas inside Snapshot documents; the engine
// never interprets Text beyond byte equality.
type Record struct {
	// ID is the opaque stable identifier of the record.
	// Assigned once at creation and never changed afterwards.
	ID string `json:"id"`

	// Text is the UTF-8 content of the record. The sync engine treats it
	// as an opaque unicode string.
	Text string `json:"text"`

	// Completed marks the record as done.
	Completed bool `json:"completed"`

	// Hidden marks the record as not currently displayed. Hidden is
	// ephemeral state and never participates in conflict detection.
	Hidden bool `json:"hidden"`

	// CreatedAt is the timestamp when the record was created. Immutable.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the timestamp of the last mutation. Equals CreatedAt
	// for a record that has never been mutated.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRecord creates a Record with a fresh uuid and both timestamps set to
// the current time.
func NewRecord(text string) Record {
	now := time.Now().UTC()
	return Record{
		ID:        uuid.NewString(),
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch stamps UpdatedAt. Callers must invoke it on every mutation so that
// the UpdatedAt >= CreatedAt invariant holds.
func (r *Record) Touch(now time.Time) {
	if now.Before(r.CreatedAt) {
		now = r.CreatedAt
	}
	r.UpdatedAt = now
}

// Equal reports whether all fields of both records match.
func (r Record) Equal(other Record) bool {
	return r.ID == other.ID &&
		r.Text == other.Text &&
		r.Completed == other.Completed &&
		r.Hidden == other.Hidden &&
		r.CreatedAt.Equal(other.CreatedAt) &&
		r.UpdatedAt.Equal(other.UpdatedAt)
}
