package harvest

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/unitscope/unitscope/internal/utils"
	"github.com/unitscope/unitscope/pkg/config"
	"github.com/unitscope/unitscope/pkg/grid"
	"github.com/unitscope/unitscope/pkg/locator"
	"github.com/unitscope/unitscope/pkg/units"
)

// DefaultConcurrency is the worker count used when the config leaves it
// unset.
const DefaultConcurrency = 20

// Fetcher runs one cell query. *locator.Client is the production
// implementation, tests plug in stubs.
type Fetcher interface {
	Identify(q locator.Query) ([]units.Unit, error)
}

// RegionStats summarizes one region's sweep.
type RegionStats struct {
	Name    string
	Cells   int
	Added   int
	Elapsed time.Duration
}

// FailedCell records a cell whose query gave up. Failed cells are logged
// and journaled, never re-queued: a persistent failure surfaces as a
// removal in the next day's diff.
type FailedCell struct {
	Cell grid.Cell
	Err  error
}

// Result is one full sweep of a collection's fetch plan.
type Result struct {
	Set         *units.Set
	Fetched     int // units returned by the API, duplicates included
	Duplicates  int
	APIRequests int
	Regions     []RegionStats
	Failed      []FailedCell
	Started     time.Time
	Finished    time.Time
}

// Harvester sweeps a collection's fetch plan and merges every response
// into a single deduplicating set. One mutex guards the set together with
// every counter, so fetched, duplicates and set size always agree no
// matter how the workers interleave.
type Harvester struct {
	Fetcher     Fetcher
	Concurrency int
	Identity    units.IdentityFunc // optional, defaults to the package policy
}

// Run fetches the whole plan for a collection. It always runs to
// completion: failed cells are recorded on the Result, they never abort
// the sweep.
func (h *Harvester) Run(col *config.Collection) *Result {
	res := &Result{Started: time.Now()}
	if h.Identity != nil {
		res.Set = units.NewSetWithIdentity(h.Identity)
	} else {
		res.Set = units.NewSet()
	}

	var global, regional []grid.Cell
	for _, c := range col.Cells() {
		if c.RegionName == grid.GlobalRegionName {
			global = append(global, c)
		} else {
			regional = append(regional, c)
		}
	}

	utils.Log.WithFields(logrus.Fields{
		"collection":  col.Key,
		"cells":       len(global) + len(regional),
		"rare_layers": len(global),
	}).Info("Starting harvest")

	var mu sync.Mutex

	// Rare global layers first, one sequential query each.
	for _, cell := range global {
		h.fetchCell(col, cell, res, &mu)
	}

	workers := h.Concurrency
	if workers <= 0 {
		workers = DefaultConcurrency
	}

	// The plan lists each region's cells contiguously, so one pass groups
	// them back into per-region sweeps.
	start := 0
	for start < len(regional) {
		name := regional[start].RegionName
		end := start
		for end < len(regional) && regional[end].RegionName == name {
			end++
		}
		h.sweepRegion(col, name, regional[start:end], workers, res, &mu)
		start = end
	}

	res.Finished = time.Now()
	utils.Log.WithFields(logrus.Fields{
		"collection":   col.Key,
		"total_units":  res.Set.Len(),
		"fetched":      res.Fetched,
		"duplicates":   res.Duplicates,
		"api_requests": res.APIRequests,
		"failed_cells": len(res.Failed),
		"elapsed":      res.Finished.Sub(res.Started).Round(time.Millisecond).String(),
	}).Info("Finished harvest")
	return res
}

func (h *Harvester) sweepRegion(col *config.Collection, name string, cells []grid.Cell, workers int, res *Result, mu *sync.Mutex) {
	regionStart := time.Now()
	mu.Lock()
	pre := res.Set.Len()
	mu.Unlock()

	cellChan := make(chan grid.Cell, len(cells))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cell := range cellChan {
				h.fetchCell(col, cell, res, mu)
			}
		}()
	}
	for _, c := range cells {
		cellChan <- c
	}
	close(cellChan)
	wg.Wait()

	mu.Lock()
	post := res.Set.Len()
	mu.Unlock()

	res.Regions = append(res.Regions, RegionStats{
		Name:    name,
		Cells:   len(cells),
		Added:   post - pre,
		Elapsed: time.Since(regionStart),
	})
	utils.Log.WithFields(logrus.Fields{
		"region":      name,
		"cells":       len(cells),
		"units_added": post - pre,
		"elapsed":     time.Since(regionStart).Round(time.Millisecond).String(),
	}).Info("Finished region")
}

func (h *Harvester) fetchCell(col *config.Collection, cell grid.Cell, res *Result, mu *sync.Mutex) {
	layer := col.Layer
	if cell.Layer != "" {
		layer = cell.Layer
	}
	coords := fmt.Sprintf("%v,%v", cell.Lon, cell.Lat)

	start := time.Now()
	found, err := h.Fetcher.Identify(locator.Query{
		Layer:      layer,
		Filters:    col.Filters,
		Associated: col.Associated,
		Lat:        cell.Lat,
		Lon:        cell.Lon,
		Nearest:    cell.Cap,
	})

	if err != nil {
		mu.Lock()
		res.APIRequests++
		res.Failed = append(res.Failed, FailedCell{Cell: cell, Err: err})
		mu.Unlock()
		utils.Log.WithFields(logrus.Fields{
			"region":      cell.RegionName,
			"layers":      layer,
			"coordinates": coords,
			"city":        cell.City,
			"error":       err.Error(),
		}).Error("Cell failed, skipping")
		return
	}

	mu.Lock()
	res.APIRequests++
	pre := res.Set.Len()
	res.Set.AddAll(found)
	post := res.Set.Len()
	res.Fetched += len(found)
	res.Duplicates += len(found) - (post - pre)
	mu.Unlock()

	utils.Log.WithFields(logrus.Fields{
		"region":      cell.RegionName,
		"layers":      layer,
		"coordinates": coords,
		"added":       post - pre,
		"duplicates":  len(found) - (post - pre),
		"max":         cell.Cap,
		"city":        cell.City,
		"elapsed":     time.Since(start).Round(time.Millisecond).String(),
	}).Debug("Units merged")
}
