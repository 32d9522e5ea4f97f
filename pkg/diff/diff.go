package diff

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/unitscope/unitscope/internal/utils"
	"github.com/unitscope/unitscope/pkg/units"
)

// Delta is the day-over-day comparison of one collection: what appeared
// since the previous snapshot and what disappeared from it. Membership is
// decided by the sets' identity policy, so a renamed unit shows up as one
// removal plus one addition.
type Delta struct {
	Added   []units.Unit
	Removed []units.Unit
}

// Compute diffs two snapshots of the same collection.
func Compute(previous, current *units.Set) Delta {
	return Delta{
		Added:   current.Diff(previous),
		Removed: previous.Diff(current),
	}
}

// AddedNames returns the added names sorted lexicographically, units outside
// both categories included.
func (d Delta) AddedNames() []string { return sortedNames(d.Added) }

// RemovedNames returns the removed names sorted lexicographically.
func (d Delta) RemovedNames() []string { return sortedNames(d.Removed) }

func sortedNames(list []units.Unit) []string {
	names := make([]string, 0, len(list))
	for _, u := range list {
		names = append(names, u.Name)
	}
	sort.Strings(names)
	return names
}

// Report is a Delta split by organization type into the collection's two
// categories. Units matching neither category stay out of the daily files
// but are still counted, the API occasionally serves org types the grid
// was not configured for.
type Report struct {
	Delta
	PrimaryAdded     []units.Unit
	PrimaryRemoved   []units.Unit
	SecondaryAdded   []units.Unit
	SecondaryRemoved []units.Unit
	UnknownAdded     int
	UnknownRemoved   int
}

// Split classifies a delta into a Report. Every list in the result is
// sorted by unit name so reruns produce identical files.
func Split(d Delta, cls units.Classifier) Report {
	r := Report{Delta: d}
	for _, u := range d.Added {
		switch cls.Classify(u) {
		case units.CategoryPrimary:
			r.PrimaryAdded = append(r.PrimaryAdded, u)
		case units.CategorySecondary:
			r.SecondaryAdded = append(r.SecondaryAdded, u)
		default:
			r.UnknownAdded++
			utils.Log.Warn("Unknown organization type for added unit, leaving it out of the daily files: ", u.ID, " ", u.Name)
		}
	}
	for _, u := range d.Removed {
		switch cls.Classify(u) {
		case units.CategoryPrimary:
			r.PrimaryRemoved = append(r.PrimaryRemoved, u)
		case units.CategorySecondary:
			r.SecondaryRemoved = append(r.SecondaryRemoved, u)
		default:
			r.UnknownRemoved++
			utils.Log.Warn("Unknown organization type for removed unit, leaving it out of the daily files: ", u.ID, " ", u.Name)
		}
	}
	sortByName(r.PrimaryAdded)
	sortByName(r.PrimaryRemoved)
	sortByName(r.SecondaryAdded)
	sortByName(r.SecondaryRemoved)
	return r
}

func sortByName(list []units.Unit) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].ID < list[j].ID
	})
}

// DailyDir returns the per-day delta directory, <dataDir>/daily/YYYY_MM_DD.
func DailyDir(dataDir string, day time.Time) string {
	return filepath.Join(dataDir, "daily", utils.DateKey(day))
}

// WriteDaily writes the four category files for one collection into the
// day's delta directory: <primary>_added.json, <primary>_removed.json,
// <secondary>_added.json, <secondary>_removed.json. Empty categories still
// get a file so downstream consumers never have to stat around.
func WriteDaily(dataDir string, day time.Time, primaryKey, secondaryKey string, r Report) error {
	dir := DailyDir(dataDir, day)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	files := []struct {
		name string
		list []units.Unit
	}{
		{primaryKey + "_added.json", r.PrimaryAdded},
		{primaryKey + "_removed.json", r.PrimaryRemoved},
		{secondaryKey + "_added.json", r.SecondaryAdded},
		{secondaryKey + "_removed.json", r.SecondaryRemoved},
	}
	for _, f := range files {
		if err := writeList(filepath.Join(dir, f.name), f.list); err != nil {
			return err
		}
	}
	return nil
}

func writeList(path string, list []units.Unit) error {
	if list == nil {
		list = []units.Unit{}
	}
	b, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, b, 0o644)
}
