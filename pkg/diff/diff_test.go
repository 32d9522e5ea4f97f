package diff

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/unitscope/unitscope/pkg/units"
)

var wardsAndBranches = units.Classifier{Primary: "Ward", Secondary: "Branch"}

func mk(id, name, display string) units.Unit {
	return units.Unit{
		ID:               id,
		Name:             name,
		OrganizationType: &units.OrganizationType{Display: display},
	}
}

func setOf(members ...units.Unit) *units.Set {
	s := units.NewSet()
	s.AddAll(members)
	return s
}

func names(list []units.Unit) []string {
	out := make([]string, 0, len(list))
	for _, u := range list {
		out = append(out, u.Name)
	}
	return out
}

func TestComputeAddedAndRemoved(t *testing.T) {
	a := mk("W1", "Alpine 1st Ward", "Ward")
	b := mk("W2", "Bountiful 2nd Ward", "Ward")
	c := mk("B1", "Castle Dale Branch", "Branch")
	d := mk("W3", "Draper 9th Ward", "Ward")

	delta := Compute(setOf(a, b, c), setOf(b, c, d))

	if !reflect.DeepEqual(names(delta.Added), []string{"Draper 9th Ward"}) {
		t.Errorf("Added = %v", names(delta.Added))
	}
	if !reflect.DeepEqual(names(delta.Removed), []string{"Alpine 1st Ward"}) {
		t.Errorf("Removed = %v", names(delta.Removed))
	}
}

func TestComputeTreatsRenameAsChurn(t *testing.T) {
	before := mk("W1", "Alpine 1st Ward", "Ward")
	after := mk("W1", "Alpine 1st Ward (Tongan)", "Ward")

	delta := Compute(setOf(before), setOf(after))

	if len(delta.Added) != 1 || delta.Added[0].Name != "Alpine 1st Ward (Tongan)" {
		t.Errorf("Added = %v", names(delta.Added))
	}
	if len(delta.Removed) != 1 || delta.Removed[0].Name != "Alpine 1st Ward" {
		t.Errorf("Removed = %v", names(delta.Removed))
	}
}

func TestComputeSymmetry(t *testing.T) {
	x := setOf(mk("W1", "A Ward", "Ward"), mk("B1", "B Branch", "Branch"))
	y := setOf(mk("W1", "A Ward", "Ward"), mk("W2", "C Ward", "Ward"))

	fwd := Compute(x, y)
	rev := Compute(y, x)

	if !reflect.DeepEqual(fwd.Added, rev.Removed) || !reflect.DeepEqual(fwd.Removed, rev.Added) {
		t.Error("swapping the snapshots must swap added and removed")
	}
}

func TestComputeSameSnapshotIsEmpty(t *testing.T) {
	x := setOf(mk("W1", "A Ward", "Ward"), mk("B1", "B Branch", "Branch"))
	delta := Compute(x, x)
	if len(delta.Added) != 0 || len(delta.Removed) != 0 {
		t.Errorf("diff of a snapshot against itself must be empty, got %+v", delta)
	}
}

func TestComputePartitionsUnion(t *testing.T) {
	prev := setOf(
		mk("W1", "A Ward", "Ward"),
		mk("W2", "B Ward", "Ward"),
		mk("B1", "C Branch", "Branch"),
	)
	cur := setOf(
		mk("W2", "B Ward", "Ward"),
		mk("B1", "C Branch", "Branch"),
		mk("W9", "D Ward", "Ward"),
	)

	delta := Compute(prev, cur)

	for _, a := range delta.Added {
		for _, r := range delta.Removed {
			if units.Identity(a) == units.Identity(r) {
				t.Errorf("added and removed overlap on %s", a.Name)
			}
		}
	}

	// Added, removed and the intersection together rebuild the union of
	// both snapshots, each unit exactly once.
	rebuilt := units.NewSet()
	if got := rebuilt.AddAll(delta.Added); got != len(delta.Added) {
		t.Errorf("added units not distinct: %d of %d new", got, len(delta.Added))
	}
	if got := rebuilt.AddAll(delta.Removed); got != len(delta.Removed) {
		t.Errorf("removed units overlap added: %d of %d new", got, len(delta.Removed))
	}
	for _, u := range prev.Intersect(cur) {
		if !rebuilt.Add(u) {
			t.Errorf("intersection overlaps the delta on %s", u.Name)
		}
	}

	union := units.NewSet()
	union.AddAll(prev.Units())
	union.AddAll(cur.Units())
	if rebuilt.Len() != union.Len() {
		t.Errorf("partition rebuilds %d units, union has %d", rebuilt.Len(), union.Len())
	}
}

func TestDeltaNameLists(t *testing.T) {
	cur := setOf(
		mk("W9", "Zion 3rd Ward", "Ward"),
		mk("T1", "Temple Square", ""),
		mk("W5", "Alpine 1st Ward", "Ward"),
	)

	delta := Compute(units.NewSet(), cur)

	// Sorted, and units with no recognizable category still show up.
	want := []string{"Alpine 1st Ward", "Temple Square", "Zion 3rd Ward"}
	if got := delta.AddedNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("AddedNames = %v, want %v", got, want)
	}
	if got := delta.RemovedNames(); len(got) != 0 {
		t.Errorf("RemovedNames = %v, want empty", got)
	}
}

func TestSplitPartitionsEveryUnit(t *testing.T) {
	prev := setOf(
		mk("W1", "Alpine 1st Ward", "Ward"),
		mk("B1", "Castle Dale Branch", "Branch"),
		mk("M9", "Utah Salt Lake Mission", "Mission"),
	)
	cur := setOf(
		mk("W2", "Draper 9th Ward", "Ward"),
		mk("W3", "Eagle Mountain 4th Ward", "Ward"),
		mk("B2", "Fillmore Branch", "Branch"),
		mk("M8", "Utah Provo Mission", "Mission"),
	)

	r := Split(Compute(prev, cur), wardsAndBranches)

	if got := len(r.PrimaryAdded) + len(r.SecondaryAdded) + r.UnknownAdded; got != len(r.Added) {
		t.Errorf("added partition: %d + %d + %d != %d",
			len(r.PrimaryAdded), len(r.SecondaryAdded), r.UnknownAdded, len(r.Added))
	}
	if got := len(r.PrimaryRemoved) + len(r.SecondaryRemoved) + r.UnknownRemoved; got != len(r.Removed) {
		t.Errorf("removed partition: %d + %d + %d != %d",
			len(r.PrimaryRemoved), len(r.SecondaryRemoved), r.UnknownRemoved, len(r.Removed))
	}
	if len(r.PrimaryAdded) != 2 || len(r.SecondaryAdded) != 1 || r.UnknownAdded != 1 {
		t.Errorf("added split = %d/%d/%d, want 2/1/1",
			len(r.PrimaryAdded), len(r.SecondaryAdded), r.UnknownAdded)
	}
	if len(r.PrimaryRemoved) != 1 || len(r.SecondaryRemoved) != 1 || r.UnknownRemoved != 1 {
		t.Errorf("removed split = %d/%d/%d, want 1/1/1",
			len(r.PrimaryRemoved), len(r.SecondaryRemoved), r.UnknownRemoved)
	}
}

func TestSplitSortsByName(t *testing.T) {
	cur := setOf(
		mk("W9", "Zion 3rd Ward", "Ward"),
		mk("W5", "Alpine 1st Ward", "Ward"),
		mk("W7", "Midway 2nd Ward", "Ward"),
	)

	r := Split(Compute(units.NewSet(), cur), wardsAndBranches)

	want := []string{"Alpine 1st Ward", "Midway 2nd Ward", "Zion 3rd Ward"}
	if !reflect.DeepEqual(names(r.PrimaryAdded), want) {
		t.Errorf("PrimaryAdded = %v, want %v", names(r.PrimaryAdded), want)
	}
}

func TestSplitLeavesUnknownOutOfLists(t *testing.T) {
	cur := setOf(
		mk("M8", "Utah Provo Mission", "Mission"),
		mk("T1", "Temple Square", ""),
	)

	r := Split(Compute(units.NewSet(), cur), wardsAndBranches)

	if len(r.PrimaryAdded) != 0 || len(r.SecondaryAdded) != 0 {
		t.Errorf("unknown units leaked into category lists: %v %v",
			names(r.PrimaryAdded), names(r.SecondaryAdded))
	}
	if r.UnknownAdded != 2 {
		t.Errorf("UnknownAdded = %d, want 2", r.UnknownAdded)
	}
}

func TestWriteDaily(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2025, time.March, 9, 0, 0, 0, 0, time.UTC)

	cur := setOf(
		mk("W9", "Zion 3rd Ward", "Ward"),
		mk("W5", "Alpine 1st Ward", "Ward"),
		mk("B1", "Castle Dale Branch", "Branch"),
	)
	r := Split(Compute(units.NewSet(), cur), wardsAndBranches)

	if err := WriteDaily(dir, day, "wards", "branches", r); err != nil {
		t.Fatal(err)
	}

	dailyDir := filepath.Join(dir, "daily", "2025_03_09")
	for _, name := range []string{
		"wards_added.json", "wards_removed.json",
		"branches_added.json", "branches_removed.json",
	} {
		if _, err := os.Stat(filepath.Join(dailyDir, name)); err != nil {
			t.Errorf("missing daily file %s: %v", name, err)
		}
	}

	raw, err := os.ReadFile(filepath.Join(dailyDir, "wards_added.json"))
	if err != nil {
		t.Fatal(err)
	}
	var got []units.Unit
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	want := []string{"Alpine 1st Ward", "Zion 3rd Ward"}
	if !reflect.DeepEqual(names(got), want) {
		t.Errorf("wards_added = %v, want %v", names(got), want)
	}

	// Nothing was removed, the file must still exist and hold an array.
	raw, err = os.ReadFile(filepath.Join(dailyDir, "wards_removed.json"))
	if err != nil {
		t.Fatal(err)
	}
	var empty []units.Unit
	if err := json.Unmarshal(raw, &empty); err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("wards_removed = %v, want empty", names(empty))
	}
}
