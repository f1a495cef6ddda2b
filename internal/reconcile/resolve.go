package reconcile

import (
	"errors"
	"fmt"
	"time"

	"github.com/rdmitry/taskvault/models"
)

// ErrResolutionMismatch is returned when the resolution sequence does not
// pair up one-to-one with the conflict sequence. This is a programmer
// error in the caller, not a sync condition.
var ErrResolutionMismatch = errors.New("resolution count does not match conflict count")

// Resolve settles conflicts according to the parallel choices sequence and
// returns the records that survive. A choice that drops its id (keep-local
// with no local side, keep-remote with no remote side) contributes nothing
// to the result.
func Resolve(conflicts []models.Conflict, choices []models.ResolutionChoice, now time.Time) ([]models.Record, error) {
	if len(conflicts) != len(choices) {
		return nil, fmt.Errorf("%w: %d conflicts, %d resolutions", ErrResolutionMismatch, len(conflicts), len(choices))
	}

	resolved := make([]models.Record, 0, len(conflicts))
	for i, c := range conflicts {
		switch choices[i] {
		case models.ResolutionLocal:
			if c.Local != nil {
				resolved = append(resolved, *c.Local)
			}

		case models.ResolutionRemote:
			if c.Remote != nil {
				resolved = append(resolved, *c.Remote)
			}

		case models.ResolutionMerge:
			if rec, ok := spliceNewest(c, now); ok {
				resolved = append(resolved, rec)
			}

		default:
			return nil, fmt.Errorf("unknown resolution choice %q for id %s", choices[i], c.ID)
		}
	}

	return resolved, nil
}

// spliceNewest performs field-level reconciliation: the newer record's
// fields, with text taken from the newer non-empty value, stamped at
// resolution time.
func spliceNewest(c models.Conflict, now time.Time) (models.Record, bool) {
	switch {
	case c.Local == nil && c.Remote == nil:
		return models.Record{}, false
	case c.Local == nil:
		rec := *c.Remote
		rec.Touch(now)
		return rec, true
	case c.Remote == nil:
		rec := *c.Local
		rec.Touch(now)
		return rec, true
	}

	newer, older := *c.Local, *c.Remote
	if c.Remote.UpdatedAt.After(c.Local.UpdatedAt) {
		newer, older = *c.Remote, *c.Local
	}

	rec := newer
	if rec.Text == "" && older.Text != "" {
		rec.Text = older.Text
	}
	rec.Touch(now)

	return rec, true
}
