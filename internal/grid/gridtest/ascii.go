// Package gridtest builds small occupancy grids from ASCII maps for tests.
package gridtest

import (
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"drone-route-planner/internal/grid"
)

// Clearance is the clearance used by FromASCII. A 'b' marker places a small
// buffered polygon whose vertices fall within Clearance of exactly one cell.
const Clearance = 0.6

// Map holds the grid and the polygons it was built from.
type Map struct {
	Grid     *grid.Grid
	Hard     []orb.Ring
	Buffered []orb.Ring
}

// FromASCII builds a grid with cell size 1 whose cell (col, row) sits at (col, row).
// Line i of the map is row i, so the first line is the lowest latitude.
//
//	.  free
//	X  hard obstacle covering the cell
//	B  buffered obstacle covering the cell (interior)
//	b  buffered obstacle whose clearance margin blocks the cell but whose interior holds no cell
//
// Maps must be at least 2x2 and rectangular.
func FromASCII(t testing.TB, ascii string) Map {
	t.Helper()

	rows := parseRows(ascii)
	if len(rows) < 2 || len(rows[0]) < 2 {
		t.Fatalf("gridtest: map must be at least 2x2, got %d rows", len(rows))
	}

	var m Map
	for r, line := range rows {
		if len(line) != len(rows[0]) {
			t.Fatalf("gridtest: row %d has width %d, want %d", r, len(line), len(rows[0]))
		}
		for c, ch := range line {
			x, y := float64(c), float64(r)
			switch ch {
			case 'X':
				m.Hard = append(m.Hard, square(x-0.25, y-0.25, 0.5))
			case 'B':
				m.Buffered = append(m.Buffered, square(x-0.25, y-0.25, 0.5))
			case 'b':
				m.Buffered = append(m.Buffered, square(x+0.3, y+0.3, 0.1))
			case '.':
			default:
				t.Fatalf("gridtest: unknown marker %q at (%d,%d)", ch, c, r)
			}
		}
	}

	cfg := grid.Config{
		Bounds: grid.Bounds{
			MinLon: 0, MaxLon: float64(len(rows[0]) - 1),
			MinLat: 0, MaxLat: float64(len(rows) - 1),
		},
		CellSize:   1,
		Clearance:  Clearance,
		BufferMode: grid.BufferVertex,
	}

	g, err := grid.Build(cfg, m.Hard, m.Buffered)
	if err != nil {
		t.Fatalf("gridtest: build: %v", err)
	}
	m.Grid = g
	return m
}

func parseRows(ascii string) []string {
	var rows []string
	for _, line := range strings.Split(ascii, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			rows = append(rows, line)
		}
	}
	return rows
}

func square(x, y, size float64) orb.Ring {
	return orb.Ring{{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y}}
}
