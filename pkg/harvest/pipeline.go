package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/unitscope/unitscope/internal/utils"
	"github.com/unitscope/unitscope/pkg/config"
	"github.com/unitscope/unitscope/pkg/diff"
	"github.com/unitscope/unitscope/pkg/journal"
	"github.com/unitscope/unitscope/pkg/snapshot"
	"github.com/unitscope/unitscope/pkg/units"
)

// Pipeline wires one harvest end to end: sweep the grid, persist the
// snapshot, diff against yesterday, write the daily files, journal the run
// and prune the stale snapshot.
type Pipeline struct {
	Config  *config.Config
	Fetcher Fetcher
	Journal *journal.DB      // optional
	Now     func() time.Time // optional, defaults to time.Now
}

// RunSummary reports what one collection's harvest produced.
type RunSummary struct {
	RunID      string
	Collection string
	FirstRun   bool
	Result     *Result
	Report     diff.Report
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// HarvestAll runs every configured collection in order. Collections fail
// independently, one broken harvest does not stop the next.
func (p *Pipeline) HarvestAll(ctx context.Context) ([]*RunSummary, error) {
	var summaries []*RunSummary
	failed := 0
	for _, key := range p.Config.Keys() {
		s, err := p.HarvestCollection(ctx, key)
		if err != nil {
			failed++
			utils.Log.Error("Harvest failed for collection ", key, ": ", err)
			continue
		}
		summaries = append(summaries, s)
	}
	if failed > 0 {
		return summaries, fmt.Errorf("%d of %d collections failed", failed, len(p.Config.Keys()))
	}
	return summaries, nil
}

// HarvestCollection runs one collection by key.
func (p *Pipeline) HarvestCollection(ctx context.Context, key string) (*RunSummary, error) {
	col, err := p.Config.Collection(key)
	if err != nil {
		return nil, err
	}

	today := p.now()
	yesterday := today.AddDate(0, 0, -1)

	prev, err := snapshot.Load(p.Config.DataDir, key, yesterday)
	firstRun := errors.Is(err, snapshot.ErrNotFound)
	if err != nil && !firstRun {
		return nil, err
	}

	h := &Harvester{Fetcher: p.Fetcher, Concurrency: p.Config.Concurrency}
	result := h.Run(col)

	if err := snapshot.Save(p.Config.DataDir, &snapshot.Snapshot{
		Collection: key,
		Date:       today,
		Timestamp:  result.Finished,
		Units:      result.Set.Units(),
	}); err != nil {
		return nil, err
	}

	summary := &RunSummary{
		RunID:      uuid.NewString(),
		Collection: key,
		FirstRun:   firstRun,
		Result:     result,
	}

	if firstRun {
		utils.Log.Warn("No snapshot for yesterday, skipping diff on first run for collection ", key)
	} else {
		prevSet := units.NewSet()
		prevSet.AddAll(prev.Units)
		summary.Report = diff.Split(diff.Compute(prevSet, result.Set), units.Classifier{
			Primary:   col.Primary.Display,
			Secondary: col.Secondary.Display,
		})
		utils.Log.WithFields(logrus.Fields{
			"collection": key,
			"added":      summary.Report.AddedNames(),
			"removed":    summary.Report.RemovedNames(),
		}).Debug("Diffed against yesterday")
		if err := diff.WriteDaily(p.Config.DataDir, today, col.Primary.Key, col.Secondary.Key, summary.Report); err != nil {
			return nil, err
		}
	}

	if err := snapshot.Prune(p.Config.DataDir, key, today); err != nil {
		return nil, err
	}

	if p.Journal != nil {
		if err := p.recordRun(ctx, col, today, summary); err != nil {
			return nil, err
		}
	}
	return summary, nil
}

// DiffDates recomputes the delta between two stored snapshots without
// touching the network. With write set, the daily files for curDay are
// rewritten from the result.
func (p *Pipeline) DiffDates(key string, prevDay, curDay time.Time, write bool) (diff.Report, error) {
	col, err := p.Config.Collection(key)
	if err != nil {
		return diff.Report{}, err
	}

	prev, err := snapshot.Load(p.Config.DataDir, key, prevDay)
	if err != nil {
		return diff.Report{}, err
	}
	cur, err := snapshot.Load(p.Config.DataDir, key, curDay)
	if err != nil {
		return diff.Report{}, err
	}

	prevSet := units.NewSet()
	prevSet.AddAll(prev.Units)
	curSet := units.NewSet()
	curSet.AddAll(cur.Units)

	report := diff.Split(diff.Compute(prevSet, curSet), units.Classifier{
		Primary:   col.Primary.Display,
		Secondary: col.Secondary.Display,
	})
	if write {
		if err := diff.WriteDaily(p.Config.DataDir, curDay, col.Primary.Key, col.Secondary.Key, report); err != nil {
			return diff.Report{}, err
		}
	}
	return report, nil
}

func (p *Pipeline) recordRun(ctx context.Context, col *config.Collection, today time.Time, s *RunSummary) error {
	run := journal.Run{
		ID:          s.RunID,
		Collection:  s.Collection,
		Date:        today,
		StartedAt:   s.Result.Started,
		FinishedAt:  s.Result.Finished,
		TotalUnits:  s.Result.Set.Len(),
		Fetched:     s.Result.Fetched,
		Duplicates:  s.Result.Duplicates,
		FailedCells: len(s.Result.Failed),
		APIRequests: s.Result.APIRequests,
		Added:       len(s.Report.Added),
		Removed:     len(s.Report.Removed),
	}

	var changes []journal.Change
	record := func(list []units.Unit, category, changeType string) {
		for _, u := range list {
			changes = append(changes, journal.Change{
				Collection: s.Collection,
				UnitID:     u.ID,
				Name:       u.Name,
				Category:   category,
				ChangeType: changeType,
			})
		}
	}
	record(s.Report.PrimaryAdded, col.Primary.Key, "added")
	record(s.Report.SecondaryAdded, col.Secondary.Key, "added")
	record(s.Report.PrimaryRemoved, col.Primary.Key, "removed")
	record(s.Report.SecondaryRemoved, col.Secondary.Key, "removed")

	return p.Journal.RecordRun(ctx, run, changes)
}
