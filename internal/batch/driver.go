// Package batch plans every canteen→dorm and gate→dorm route of a campus.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"drone-route-planner/internal/campus"
	"drone-route-planner/internal/pkg/metrics"
	"drone-route-planner/internal/planner"
	"drone-route-planner/internal/route"
)

// RouteFinder answers single route queries. *planner.Planner implements it.
type RouteFinder interface {
	FindRoute(ctx context.Context, start, goal orb.Point) (*planner.Result, error)
}

// Options tune a Driver.
type Options struct {
	Workers       int // concurrent route queries, default 1
	ProgressEvery int // log every N routes per category, 0 disables
	Logger        *slog.Logger
}

// Driver runs the batch.
type Driver struct {
	finder RouteFinder
	opts   Options
}

// New creates a driver over finder.
func New(finder RouteFinder, opts Options) *Driver {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Driver{finder: finder, opts: opts}
}

// pair is one route query of the batch.
type pair struct {
	from, to campus.Location
	category route.Category
}

type outcome struct {
	route   route.Route
	skipped bool
}

// pairsOf lists the queries of a batch in output order: every canteen with
// every dorm, then every gate with every dorm.
func pairsOf(d *campus.Dataset) []pair {
	pairs := make([]pair, 0, (len(d.Canteens)+len(d.Gates))*len(d.Dorms))
	for _, c := range d.Canteens {
		for _, dorm := range d.Dorms {
			pairs = append(pairs, pair{from: c, to: dorm, category: route.CanteenToDorm})
		}
	}
	for _, g := range d.Gates {
		for _, dorm := range d.Dorms {
			pairs = append(pairs, pair{from: g, to: dorm, category: route.GateToDorm})
		}
	}
	return pairs
}

// Plan routes every pair of the dataset. Pairs whose endpoints cannot be
// rescued are skipped and counted in Set.Skipped; any other error aborts the
// batch. Routes appear in pair order regardless of the worker count.
func (d *Driver) Plan(ctx context.Context, ds *campus.Dataset) (*route.Set, error) {
	log := d.opts.Logger
	pairs := pairsOf(ds)
	outcomes := make([]outcome, len(pairs))

	log.Info("planning routes",
		"canteen_to_dorm", len(ds.Canteens)*len(ds.Dorms),
		"gate_to_dorm", len(ds.Gates)*len(ds.Dorms),
		"workers", d.opts.Workers)
	began := time.Now()

	var progress [2]atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)

	for i, p := range pairs {
		i, p := i, p
		g.Go(func() error {
			out, err := d.planPair(gctx, p)
			if err != nil {
				return err
			}
			outcomes[i] = out

			if !out.skipped && d.opts.ProgressEvery > 0 {
				n := progress[categoryIndex(p.category)].Add(1)
				if n%int64(d.opts.ProgressEvery) == 0 {
					log.Info("routes planned", "category", p.category, "count", n)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}

	set := route.NewSet()
	for i, out := range outcomes {
		if out.skipped {
			set.Skipped[pairs[i].category]++
			continue
		}
		set.Add(out.route)
	}

	tiers := set.TierCounts()
	log.Info("route planning complete",
		"canteen_to_dorm", len(set.Routes[route.CanteenToDorm]),
		"gate_to_dorm", len(set.Routes[route.GateToDorm]),
		"skipped", set.Skipped[route.CanteenToDorm]+set.Skipped[route.GateToDorm],
		"strict", tiers[route.TierStrict],
		"relaxed", tiers[route.TierRelaxed],
		"straight", tiers[route.TierStraight],
		"took", time.Since(began).Round(time.Millisecond))
	return set, nil
}

func (d *Driver) planPair(ctx context.Context, p pair) (outcome, error) {
	res, err := d.finder.FindRoute(ctx, p.from.Point, p.to.Point)
	if errors.Is(err, planner.ErrNoRoute) {
		d.opts.Logger.Warn("skipping route", "category", p.category, "from", p.from.Name, "to", p.to.Name, "err", err)
		metrics.RoutesSkipped.WithLabelValues(string(p.category)).Inc()
		return outcome{skipped: true}, nil
	}
	if err != nil {
		return outcome{}, fmt.Errorf("%s %s -> %s: %w", p.category, p.from.Name, p.to.Name, err)
	}

	metrics.ObserveRoute(string(p.category), string(res.Tier), res.Expanded, res.Duration)

	r := route.Route{
		From:     p.from.Name,
		To:       p.to.Name,
		Category: p.category,
		Height:   p.category.Altitude(),
		Tier:     res.Tier,
		Collides: res.Collides,
		Path:     res.Path,
	}
	if res.Tier == route.TierStraight {
		d.opts.Logger.Warn("straight-line fallback", "route", r.String(), "collides", res.Collides)
	} else {
		d.opts.Logger.Debug("route planned", "route", r.String(), "expanded", res.Expanded, "rescued", res.Rescued)
	}
	return outcome{route: r}, nil
}

func categoryIndex(c route.Category) int {
	if c == route.GateToDorm {
		return 1
	}
	return 0
}
