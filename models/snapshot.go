package models

import "time"

// SchemaVersion is the dataset document schema carried in Snapshot.Version.
const SchemaVersion = "1.0"

// Snapshot is one immutable point-in-time value of the whole dataset.
// It is the unit of exchange with the remote object store and the unit of
// persistence in the local store.
type Snapshot struct {
	// Version is the schema version string of the document.
	Version string `json:"version"`

	// LastSync is the timestamp of this snapshot's own construction.
	LastSync time.Time `json:"last_sync"`

	// LastResetDate is domain metadata carried through merges untouched.
	LastResetDate string `json:"last_reset_date,omitempty"`

	// Records is the dataset in display order. Merge re-sorts by CreatedAt,
	// so the order is not required to survive a sync cycle.
	Records []Record `json:"records"`

	// Settings is an opaque key/value map merged shallowly; on key
	// collision the local replica's value wins.
	Settings map[string]string `json:"settings,omitempty"`
}

// EmptySnapshot returns a snapshot with no records, used when the remote
// object does not exist yet.
func EmptySnapshot() Snapshot {
	return Snapshot{Version: SchemaVersion}
}

// Index builds an id keyed lookup map over the snapshot's records.
func (s Snapshot) Index() map[string]Record {
	idx := make(map[string]Record, len(s.Records))
	for _, rec := range s.Records {
		idx[rec.ID] = rec
	}
	return idx
}
