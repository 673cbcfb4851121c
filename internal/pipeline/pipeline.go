// Package pipeline assembles a ready-to-query planner from configuration:
// campus data, planning bounds, occupancy grid and pathfinder.
package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"drone-route-planner/internal/campus"
	"drone-route-planner/internal/grid"
	"drone-route-planner/internal/pkg/config"
	"drone-route-planner/internal/pkg/metrics"
	"drone-route-planner/internal/planner"
)

// State is one built planning environment. It is immutable once returned.
type State struct {
	Dataset *campus.Dataset
	Bounds  grid.Bounds
	Grid    *grid.Grid
	Planner *planner.Planner
	BuiltAt time.Time
}

// Overrides replace grid settings for a single build. Nil fields keep the
// configured value; a zero Clearance turns the buffer off.
type Overrides struct {
	CellSize  *float64 `json:"cellSize,omitempty"`
	Clearance *float64 `json:"clearance,omitempty"`
}

// Build loads the campus data named by cfg and prepares a planner over it.
func Build(cfg *config.Config, ov Overrides, log *slog.Logger) (*State, error) {
	if log == nil {
		log = slog.Default()
	}

	loadOpts := cfg.LoadOptions()
	loadOpts.Logger = log
	ds, err := campus.Load(cfg.Data.Dir, loadOpts)
	if err != nil {
		return nil, err
	}

	return FromDataset(ds, cfg, ov, log)
}

// FromDataset builds the grid and planner for an already loaded dataset.
func FromDataset(ds *campus.Dataset, cfg *config.Config, ov Overrides, log *slog.Logger) (*State, error) {
	if log == nil {
		log = slog.Default()
	}

	bounds := ds.Bounds(cfg.Grid.Margin)
	gcfg := cfg.GridFor(bounds)
	if ov.CellSize != nil {
		gcfg.CellSize = *ov.CellSize
	}
	if ov.Clearance != nil {
		gcfg.Clearance = *ov.Clearance
	}

	width, height := gcfg.Dimensions()
	log.Info("building obstacle grid",
		"width", width,
		"height", height,
		"cell_size", gcfg.CellSize,
		"clearance", gcfg.Clearance,
		"buffer_mode", gcfg.BufferMode,
		"hard", len(ds.Hard()),
		"buffered", len(ds.Buffered()))

	began := time.Now()
	g, err := grid.Build(gcfg, ds.Hard(), ds.Buffered())
	if err != nil {
		return nil, fmt.Errorf("build grid: %w", err)
	}
	took := time.Since(began)

	stats := g.Stats()
	metrics.ObserveGrid(stats.Cells, stats.BlockedCells, stats.InteriorCells, took)
	log.Info("obstacle grid built",
		"cells", stats.Cells,
		"blocked", stats.BlockedCells,
		"interior", stats.InteriorCells,
		"took", took.Round(time.Millisecond))

	opts := cfg.PlannerOptions()
	opts.Obstacles = ds.Obstacles()
	opts.Logger = log

	return &State{
		Dataset: ds,
		Bounds:  bounds,
		Grid:    g,
		Planner: planner.New(g, opts),
		BuiltAt: time.Now(),
	}, nil
}
