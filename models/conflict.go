package models

import "time"

// ConflictKindModify is the only conflict kind the detector produces today:
// both replicas modified the same id in incompatible ways.
const ConflictKindModify = "modify"

// Conflict describes one pair of records the merge could not reconcile
// automatically. Conflicts are a first-class merge output, not an error;
// the caller must resolve them before the id may be written again.
type Conflict struct {
	// ID of the record both sides hold.
	ID string `json:"id"`

	// Kind of the conflict; always ConflictKindModify for pairs produced
	// by the detector.
	Kind string `json:"kind"`

	// Local is this replica's version of the record. Nil only for
	// asymmetric conflicts constructed outside the detector.
	Local *Record `json:"local,omitempty"`

	// Remote is the other replica's version of the record.
	Remote *Record `json:"remote,omitempty"`

	// LocalTimestamp is Local.UpdatedAt, kept separately so the conflict
	// stays self-describing when a side is nil.
	LocalTimestamp time.Time `json:"local_timestamp"`

	// RemoteTimestamp is Remote.UpdatedAt.
	RemoteTimestamp time.Time `json:"remote_timestamp"`
}

// ResolutionChoice selects how one Conflict is settled.
type ResolutionChoice string

const (
	// ResolutionLocal keeps the local record, or drops the id when the
	// local side is absent.
	ResolutionLocal ResolutionChoice = "local"

	// ResolutionRemote adopts the remote record, or removes the id when
	// the remote side is absent.
	ResolutionRemote ResolutionChoice = "remote"

	// ResolutionMerge splices the two sides field by field, preferring
	// the newer record and the newer non-empty text.
	ResolutionMerge ResolutionChoice = "merge"
)
