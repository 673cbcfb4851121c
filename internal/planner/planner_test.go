package planner_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/kr/pretty"
	"github.com/paulmach/orb"

	"drone-route-planner/internal/grid"
	"drone-route-planner/internal/grid/gridtest"
	"drone-route-planner/internal/planner"
	"drone-route-planner/internal/route"
)

func pt(col, row int) orb.Point {
	return orb.Point{float64(col), float64(row)}
}

// checkConnected verifies 8-connectivity and that every cell is allowed.
func checkConnected(t *testing.T, res *planner.Result, blocked func(grid.Cell) bool) {
	t.Helper()
	if len(res.Cells) != len(res.Path) {
		t.Fatalf("cells (%d) and path (%d) differ in length", len(res.Cells), len(res.Path))
	}
	for i, c := range res.Cells {
		if blocked(c) {
			t.Errorf("path enters blocked cell %v", c)
		}
		if i == 0 {
			continue
		}
		prev := res.Cells[i-1]
		dc, dr := c.Col-prev.Col, c.Row-prev.Row
		if dc < -1 || dc > 1 || dr < -1 || dr > 1 || (dc == 0 && dr == 0) {
			t.Errorf("step %d not 8-connected: %v -> %v", i, prev, c)
		}
	}
}

func TestFindRoute_Strict(t *testing.T) {
	tests := []struct {
		name       string
		ascii      string
		start, end orb.Point
	}{
		{
			name: "open field",
			ascii: `
.....
.....
.....
.....
.....`,
			start: pt(0, 0), end: pt(4, 4),
		},
		{
			name: "around a wall",
			ascii: `
.....
.XXX.
.X...
.X.X.
...X.`,
			start: pt(2, 2), end: pt(4, 0),
		},
		{
			name: "through a gap",
			ascii: `
..X..
..X..
.....
..X..
..X..`,
			start: pt(0, 0), end: pt(4, 4),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := gridtest.FromASCII(t, tt.ascii)
			p := planner.New(m.Grid, planner.Options{})

			res, err := p.FindRoute(context.Background(), tt.start, tt.end)
			if err != nil {
				t.Fatalf("FindRoute: %v", err)
			}
			if res.Tier != route.TierStrict {
				t.Fatalf("tier = %s, want strict", res.Tier)
			}
			if !res.Path[0].Equal(tt.start) || !res.Path[len(res.Path)-1].Equal(tt.end) {
				t.Errorf("path runs %v -> %v, want %v -> %v",
					res.Path[0], res.Path[len(res.Path)-1], tt.start, tt.end)
			}
			checkConnected(t, res, m.Grid.IsOccupied)
		})
	}
}

func TestFindRoute_ChebyshevIsStepOptimal(t *testing.T) {
	m := gridtest.FromASCII(t, strings.Repeat("..........\n", 10))
	p := planner.New(m.Grid, planner.Options{Heuristic: planner.Chebyshev})

	res, err := p.FindRoute(context.Background(), pt(0, 0), pt(9, 3))
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	if len(res.Path) != 10 {
		t.Errorf("path has %d waypoints, want 10", len(res.Path))
	}
}

func TestFindRoute_SameCell(t *testing.T) {
	m := gridtest.FromASCII(t, "...\n...")
	p := planner.New(m.Grid, planner.Options{})

	res, err := p.FindRoute(context.Background(), orb.Point{1.2, 0.7}, orb.Point{1.4, 0.1})
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	if res.Tier != route.TierStrict || len(res.Path) != 1 || !res.Path[0].Equal(pt(1, 0)) {
		t.Errorf("unexpected result %# v", pretty.Formatter(res))
	}
}

func TestFindRoute_RelaxedThroughBuffer(t *testing.T) {
	m := gridtest.FromASCII(t, `
..X..
..X..
..b..
..X..
..X..`)
	p := planner.New(m.Grid, planner.Options{})

	res, err := p.FindRoute(context.Background(), pt(0, 2), pt(4, 2))
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	if res.Tier != route.TierRelaxed {
		t.Fatalf("tier = %s, want relaxed", res.Tier)
	}
	checkConnected(t, res, m.Grid.IsInterior)

	throughBuffer := false
	for _, c := range res.Cells {
		if m.Grid.IsOccupied(c) {
			throughBuffer = true
		}
	}
	if !throughBuffer {
		t.Error("relaxed route should cross the clearance margin")
	}
}

func TestFindRoute_StraightLineFallback(t *testing.T) {
	m := gridtest.FromASCII(t, `
..X..
..X..
..X..`)
	p := planner.New(m.Grid, planner.Options{Obstacles: m.Hard})

	start, goal := orb.Point{0.5, 1}, orb.Point{4, 1}
	res, err := p.FindRoute(context.Background(), start, goal)
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	if res.Tier != route.TierStraight {
		t.Fatalf("tier = %s, want straight", res.Tier)
	}
	if len(res.Path) != planner.DefaultStraightLineSteps+1 {
		t.Errorf("straight line has %d waypoints", len(res.Path))
	}
	if !res.Path[0].Equal(start) || !res.Path[len(res.Path)-1].Equal(goal) {
		t.Error("straight line must use the unclamped request coordinates")
	}
	if !res.Collides {
		t.Error("straight line through the wall should be flagged")
	}
	if len(res.Cells) != 0 {
		t.Error("straight line carries no cells")
	}
}

func TestFindRoute_MazeForcesStraightLine(t *testing.T) {
	// The start corridor is sealed off from the goal by hard walls.
	m := gridtest.FromASCII(t, `
XXXXXXX
X.....X
XXXXXXX
XXX...X
XXXXXXX`)
	p := planner.New(m.Grid, planner.Options{})

	res, err := p.FindRoute(context.Background(), pt(1, 1), pt(4, 3))
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	if res.Tier != route.TierStraight {
		t.Errorf("tier = %s, want straight", res.Tier)
	}
	if res.Expanded == 0 {
		t.Error("both search tiers should have expanded cells")
	}
}

func TestFindRoute_RescuesEndpoints(t *testing.T) {
	m := gridtest.FromASCII(t, `
XXX..
XXX..
XXX..`)
	p := planner.New(m.Grid, planner.Options{})

	res, err := p.FindRoute(context.Background(), pt(1, 1), pt(4, 2))
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	if !res.Rescued {
		t.Error("expected rescue")
	}
	if want := (grid.Cell{Col: 3, Row: 0}); res.Start != want {
		t.Errorf("rescued start = %v, want %v", res.Start, want)
	}
	if res.Tier != route.TierStrict {
		t.Errorf("tier = %s, want strict", res.Tier)
	}
	checkConnected(t, res, m.Grid.IsOccupied)
}

// blockAround returns a size x size map filled with X except for the given free cells.
func blockAround(size int, free ...grid.Cell) string {
	rows := make([][]byte, size)
	for r := range rows {
		rows[r] = []byte(strings.Repeat("X", size))
	}
	for _, c := range free {
		rows[c.Row][c.Col] = '.'
	}
	var b strings.Builder
	for _, r := range rows {
		b.Write(r)
		b.WriteByte('\n')
	}
	return b.String()
}

func TestNearestFreeCell_Radius(t *testing.T) {
	centre := grid.Cell{Col: 11, Row: 11}

	tests := []struct {
		name   string
		free   []grid.Cell
		want   grid.Cell
		wantOK bool
	}{
		{"nothing free", nil, grid.Cell{}, false},
		{"free at distance 10", []grid.Cell{{Col: 21, Row: 11}}, grid.Cell{}, false},
		{"free at distance 9", []grid.Cell{{Col: 20, Row: 11}}, grid.Cell{Col: 20, Row: 11}, true},
		{"nearer ring wins", []grid.Cell{{Col: 20, Row: 11}, {Col: 11, Row: 14}}, grid.Cell{Col: 11, Row: 14}, true},
		{"column-major order", []grid.Cell{{Col: 12, Row: 10}, {Col: 10, Row: 12}}, grid.Cell{Col: 10, Row: 12}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := gridtest.FromASCII(t, blockAround(23, tt.free...))
			p := planner.New(m.Grid, planner.Options{})

			got, ok := p.NearestFreeCell(centre)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("NearestFreeCell = %v, %t; want %v, %t", got, ok, tt.want, tt.wantOK)
			}
			if ok {
				d := max(abs(got.Col-centre.Col), abs(got.Row-centre.Row))
				if d > planner.DefaultRescueRadius {
					t.Errorf("rescued cell at Chebyshev distance %d", d)
				}
			}
		})
	}
}

func TestNearestFreeCell_FreeInput(t *testing.T) {
	m := gridtest.FromASCII(t, "...\n...")
	p := planner.New(m.Grid, planner.Options{})

	c := grid.Cell{Col: 1, Row: 1}
	if got, ok := p.NearestFreeCell(c); !ok || got != c {
		t.Errorf("free cell should map to itself, got %v %t", got, ok)
	}
}

func TestFindRoute_BlockedEndpoint(t *testing.T) {
	m := gridtest.FromASCII(t, blockAround(23, grid.Cell{Col: 0, Row: 0}))

	p := planner.New(m.Grid, planner.Options{})
	_, err := p.FindRoute(context.Background(), pt(11, 11), pt(0, 0))
	if !errors.Is(err, planner.ErrEndpointBlocked) || !errors.Is(err, planner.ErrNoRoute) {
		t.Fatalf("expected ErrEndpointBlocked, got %v", err)
	}

	p = planner.New(m.Grid, planner.Options{StraightLineOnBlockedEndpoint: true})
	res, err := p.FindRoute(context.Background(), pt(11, 11), pt(0, 0))
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	if res.Tier != route.TierStraight || !res.Path[0].Equal(pt(11, 11)) {
		t.Errorf("expected straight line from the original start, got %s from %v", res.Tier, res.Path[0])
	}
}

func TestFindRoute_ExpansionBudget(t *testing.T) {
	m := gridtest.FromASCII(t, strings.Repeat("..........\n", 10))
	p := planner.New(m.Grid, planner.Options{MaxExpansions: 3})

	res, err := p.FindRoute(context.Background(), pt(0, 0), pt(9, 9))
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	if res.Tier != route.TierStraight {
		t.Errorf("tier = %s, want straight once both searches run out of budget", res.Tier)
	}
}

func TestFindRoute_Cancelled(t *testing.T) {
	m := gridtest.FromASCII(t, "...\n...")
	p := planner.New(m.Grid, planner.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.FindRoute(ctx, pt(0, 0), pt(2, 1)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFindRoute_Deterministic(t *testing.T) {
	m := gridtest.FromASCII(t, `
..........
..XXXXXX..
..X....X..
..X.XX.X..
......b...
..........`)
	p := planner.New(m.Grid, planner.Options{})

	first, err := p.FindRoute(context.Background(), pt(0, 0), pt(5, 2))
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := p.FindRoute(context.Background(), pt(0, 0), pt(5, 2))
		if err != nil {
			t.Fatalf("FindRoute: %v", err)
		}
		if diff := pretty.Diff(first.Cells, again.Cells); len(diff) > 0 {
			t.Fatalf("run %d differs:\n%s", i, strings.Join(diff, "\n"))
		}
	}
}

func TestStraightLine(t *testing.T) {
	path := planner.StraightLine(orb.Point{0, 0}, orb.Point{10, 5}, 50)
	if len(path) != 51 {
		t.Fatalf("len = %d, want 51", len(path))
	}
	for i, p := range path {
		want := orb.Point{float64(i) * 0.2, float64(i) * 0.1}
		if math.Abs(p[0]-want[0]) > 1e-9 || math.Abs(p[1]-want[1]) > 1e-9 {
			t.Errorf("waypoint %d = %v, want %v", i, p, want)
		}
	}

	if got := planner.StraightLine(orb.Point{0, 0}, orb.Point{1, 1}, 0); len(got) != planner.DefaultStraightLineSteps+1 {
		t.Errorf("non-positive steps should use the default, got %d waypoints", len(got))
	}
}

func TestParseHeuristic(t *testing.T) {
	for in, want := range map[string]planner.Heuristic{"": planner.Manhattan, "manhattan": planner.Manhattan, "chebyshev": planner.Chebyshev} {
		got, err := planner.ParseHeuristic(in)
		if err != nil || got != want {
			t.Errorf("ParseHeuristic(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := planner.ParseHeuristic("euclid"); err == nil {
		t.Error("expected error for unknown heuristic")
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
