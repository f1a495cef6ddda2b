package remote

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/rdmitry/taskvault/models"
)

// EncodeSnapshot serializes snap into the UTF-8 JSON dataset document the
// remote store holds. encoding/json emits valid UTF-8 for any Go string
// input, so EncodeSnapshot and DecodeSnapshot are mutually inverse over the
// full unicode range, emoji and combining sequences included.
func EncodeSnapshot(snap models.Snapshot) ([]byte, error) {
	content, err := json.Marshal(snap)
	if err != nil {
		return nil, &EncodingError{Err: fmt.Errorf("encode snapshot: %w", err)}
	}
	return content, nil
}

// DecodeSnapshot parses a dataset document. Content that is not valid
// UTF-8 is rejected outright rather than decoded with replacement runes:
// silently mangling a record's text is the historical defect this guard
// exists for.
func DecodeSnapshot(content []byte) (models.Snapshot, error) {
	if !utf8.Valid(content) {
		return models.Snapshot{}, &EncodingError{Err: fmt.Errorf("content is not valid UTF-8")}
	}

	var snap models.Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		return models.Snapshot{}, &EncodingError{Err: fmt.Errorf("decode snapshot: %w", err)}
	}

	return snap, nil
}
