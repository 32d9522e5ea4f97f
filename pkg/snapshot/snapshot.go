package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/unitscope/unitscope/internal/utils"
	"github.com/unitscope/unitscope/pkg/units"
)

// ErrNotFound is returned when no snapshot file exists for the requested
// day. A first harvest hits this for yesterday and simply skips the diff.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is one day's full harvest of a collection.
type Snapshot struct {
	Collection string
	Date       time.Time // calendar day the harvest covered
	Timestamp  time.Time // moment the file was written
	Units      []units.Unit
}

// Path returns the snapshot file for a collection and day, named
// <collection>_YYYY_MM_DD.json inside dataDir.
func Path(dataDir, collection string, day time.Time) string {
	return filepath.Join(dataDir, collection+"_"+utils.DateKey(day)+".json")
}

// Save writes the snapshot for its date, replacing any file already there.
// Re-running a harvest overwrites, it never merges.
func Save(dataDir string, snap *Snapshot) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}
	ts := snap.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	members := snap.Units
	if members == nil {
		members = []units.Unit{}
	}
	doc := map[string]interface{}{
		snap.Collection: members,
		"timestamp":     ts.Format(time.RFC3339),
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s snapshot: %w", snap.Collection, err)
	}
	return os.WriteFile(Path(dataDir, snap.Collection, snap.Date), b, 0o644)
}

// Load reads the snapshot for a collection and day. A missing file comes
// back as ErrNotFound so callers can tell "first run" from real failures.
func Load(dataDir, collection string, day time.Time) (*Snapshot, error) {
	path := Path(dataDir, collection, day)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", path, err)
	}

	snap := &Snapshot{Collection: collection, Date: day}
	if rawTS, ok := doc["timestamp"]; ok {
		var s string
		if err := json.Unmarshal(rawTS, &s); err == nil {
			if t, perr := time.Parse(time.RFC3339, s); perr == nil {
				snap.Timestamp = t
			}
		}
	}

	arr, ok := doc[collection]
	if !ok {
		return nil, fmt.Errorf("snapshot %s has no %q array", path, collection)
	}
	if err := json.Unmarshal(arr, &snap.Units); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", path, err)
	}
	return snap, nil
}

// Prune removes the snapshot from two days before day. Yesterday's file
// stays, it is tomorrow's diff baseline. A file that is already gone is
// not an error.
func Prune(dataDir, collection string, day time.Time) error {
	path := Path(dataDir, collection, day.AddDate(0, 0, -2))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
