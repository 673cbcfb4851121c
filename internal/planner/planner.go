// Package planner finds collision-free routes over an occupancy grid.
//
// FindRoute walks a fallback ladder: a strict A* search that respects every
// obstacle including clearance margins, then a relaxed search that only avoids
// polygon interiors, and finally a straight line between the requested
// coordinates. Straight-line routes are not collision checked by the search;
// Result.Collides flags the ones that cross a known obstacle.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/paulmach/orb"

	"drone-route-planner/internal/geometry"
	"drone-route-planner/internal/grid"
	"drone-route-planner/internal/route"
	"drone-route-planner/internal/spatial"
)

const (
	DefaultStraightLineSteps = 50
	DefaultRescueRadius      = 9
)

var (
	// ErrNoRoute is the root of every "no route" outcome.
	ErrNoRoute = errors.New("no route")
	// ErrEndpointBlocked means an endpoint sits in an obstacle with no free
	// cell within the rescue radius.
	ErrEndpointBlocked = fmt.Errorf("%w: endpoint has no free cell within rescue radius", ErrNoRoute)
)

// Options tune a Planner. Zero values select the defaults.
type Options struct {
	Heuristic         Heuristic
	StraightLineSteps int // segments in a straight-line route
	RescueRadius      int
	MaxExpansions     int // per search tier, 0 = unlimited

	// StraightLineOnBlockedEndpoint returns a straight-line route instead of
	// ErrEndpointBlocked when rescue fails.
	StraightLineOnBlockedEndpoint bool

	// Obstacles are the polygons checked against straight-line routes to set Result.Collides.
	Obstacles []orb.Ring

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Heuristic == "" {
		o.Heuristic = Manhattan
	}
	if o.StraightLineSteps <= 0 {
		o.StraightLineSteps = DefaultStraightLineSteps
	}
	if o.RescueRadius <= 0 {
		o.RescueRadius = DefaultRescueRadius
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Result is the outcome of one FindRoute call.
type Result struct {
	Path     []orb.Point
	Cells    []grid.Cell // empty for straight-line routes
	Tier     route.Tier
	Start    grid.Cell // search start after rescue
	Goal     grid.Cell // search goal after rescue
	Rescued  bool      // start or goal was moved out of an obstacle
	Expanded int       // cells expanded over all search tiers
	Collides bool      // straight-line route crosses an obstacle
	Duration time.Duration
}

// Planner answers route queries against a shared, read-only grid. It keeps no
// state between calls and is safe for concurrent use.
type Planner struct {
	grid      *grid.Grid
	opts      Options
	obstacles *spatial.Index
}

// New creates a planner over g.
func New(g *grid.Grid, opts Options) *Planner {
	opts = opts.withDefaults()
	return &Planner{
		grid:      g,
		opts:      opts,
		obstacles: spatial.New(opts.Obstacles, 0),
	}
}

// Grid returns the occupancy grid the planner searches.
func (p *Planner) Grid() *grid.Grid { return p.grid }

// FindRoute plans a route from start to goal.
//
// Endpoints inside obstacles are rescued to the nearest free cell first. If
// that fails the call returns ErrEndpointBlocked, unless
// Options.StraightLineOnBlockedEndpoint is set. Otherwise a route is always
// returned. Context cancellation aborts the search with ctx.Err().
func (p *Planner) FindRoute(ctx context.Context, start, goal orb.Point) (*Result, error) {
	began := time.Now()
	log := p.opts.Logger

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rawStart := p.grid.ToGrid(start)
	rawGoal := p.grid.ToGrid(goal)
	startCell, startOK := p.NearestFreeCell(rawStart)
	goalCell, goalOK := p.NearestFreeCell(rawGoal)

	res := &Result{
		Start:   startCell,
		Goal:    goalCell,
		Rescued: startCell != rawStart || goalCell != rawGoal,
	}

	if startOK && goalOK {
		tiers := []struct {
			tier    route.Tier
			blocked blockedFunc
		}{
			{route.TierStrict, p.grid.IsOccupied},
			{route.TierRelaxed, p.grid.IsInterior},
		}

		for _, t := range tiers {
			cells, expanded, err := p.search(ctx, startCell, goalCell, t.blocked)
			res.Expanded += expanded
			if err != nil && !errors.Is(err, errBudget) {
				return nil, err
			}
			if cells != nil {
				res.Tier = t.tier
				res.Cells = cells
				res.Path = p.toCoords(cells)
				res.Duration = time.Since(began)
				return res, nil
			}
			log.Debug("search tier failed", "tier", t.tier, "start", startCell, "goal", goalCell,
				"expanded", expanded, "budget", errors.Is(err, errBudget))
		}
	} else {
		if !p.opts.StraightLineOnBlockedEndpoint {
			return nil, fmt.Errorf("%w (start ok=%t at %v, goal ok=%t at %v)",
				ErrEndpointBlocked, startOK, rawStart, goalOK, rawGoal)
		}
		log.Debug("endpoint rescue failed, using straight line", "startOK", startOK, "goalOK", goalOK)
	}

	res.Tier = route.TierStraight
	res.Path = StraightLine(start, goal, p.opts.StraightLineSteps)
	res.Collides = !p.clear(res.Path)
	res.Duration = time.Since(began)
	return res, nil
}

func (p *Planner) toCoords(cells []grid.Cell) []orb.Point {
	path := make([]orb.Point, len(cells))
	for i, c := range cells {
		path[i] = p.grid.ToCoord(c)
	}
	return path
}

func (p *Planner) clear(path []orb.Point) bool {
	if p.obstacles.Len() == 0 {
		return true
	}
	candidates := p.obstacles.Rings(orb.MultiPoint(path).Bound())
	return geometry.PathClear(path, candidates)
}

// StraightLine interpolates steps equal segments from start to goal, returning
// steps+1 waypoints including both ends.
func StraightLine(start, goal orb.Point, steps int) []orb.Point {
	if steps <= 0 {
		steps = DefaultStraightLineSteps
	}

	path := make([]orb.Point, 0, steps+1)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		path = append(path, orb.Point{
			start[0] + t*(goal[0]-start[0]),
			start[1] + t*(goal[1]-start[1]),
		})
	}
	return path
}
