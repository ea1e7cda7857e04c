package shutter

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyIndex means no index has been stored yet. Load treats it as an empty list.
var ErrEmptyIndex = errors.New("empty index")

// PendingPath is the placeholder file path of a record whose blob is not written yet.
const PendingPath = "soon..."

// State of a record in the in-memory index.
type State int

const (
	Committed State = iota
	Pending
)

func (s State) String() string {
	switch s {
	case Committed:
		return "committed"
	case Pending:
		return "pending"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Record represents one captured photo.
type Record struct {
	FilePath    string `json:"filePath"`
	DisplayPath string `json:"displayPath"`

	// StoredPath is the persisted display path when DisplayPath was
	// re-derived for rendering. Empty means DisplayPath is the stored value.
	StoredPath string `json:"-"`

	// ID and State only exist in memory
	ID    uint64 `json:"-"`
	State State  `json:"-"`
}

// entry is the persisted form of a record.
type entry struct {
	FilePath    string `json:"filePath"`
	DisplayPath string `json:"displayPath"`
}

// Stored returns the display path written to the index.
func (r Record) Stored() string {
	if r.StoredPath != "" {
		return r.StoredPath
	}
	return r.DisplayPath
}

// EncodeIndex serializes records to the persisted form. Pending records are
// skipped and derived display paths are replaced by their stored value.
func EncodeIndex(records []Record) (string, error) {
	out := make([]entry, 0, len(records))
	for _, r := range records {
		if r.State == Pending {
			continue
		}
		out = append(out, entry{FilePath: r.FilePath, DisplayPath: r.Stored()})
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to encode index: %w", err)
	}
	return string(data), nil
}

// DecodeIndex parses the persisted form. A "null" value decodes to an empty index.
func DecodeIndex(value string) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal([]byte(value), &records); err != nil {
		return nil, fmt.Errorf("failed to decode index: %w", err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}
