// Package grid rasterizes obstacle polygons into a static occupancy grid.
//
// Two layers are built in a single pass over the cells:
//
//	interior  cell lies inside a hard or buffered polygon
//	blocked   interior, or within the clearance of a buffered polygon
//
// The strict search walks the blocked layer and the relaxed search walks the
// interior layer, so the relaxed tier never re-tests polygons at query time.
// A Grid is immutable after Build and safe to share between goroutines.
package grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"drone-route-planner/internal/geometry"
	"drone-route-planner/internal/spatial"
)

// BufferMode selects how distance to a buffered polygon is measured.
type BufferMode string

const (
	// BufferVertex measures distance to the nearest polygon vertex.
	BufferVertex BufferMode = "vertex"
	// BufferEdge measures distance to the nearest polygon edge segment.
	BufferEdge BufferMode = "edge"
)

// snap absorbs floating point error in the coordinate to index transform, so
// that ToGrid(ToCoord(c)) == c for every valid c and a span of exactly N cells
// is not rounded up to N+1.
const snap = 1e-9

// boundSlack widens index boxes so points exactly on a padded box edge are still tested.
const boundSlack = 1e-9

// ErrTooLarge is returned when the grid would exceed Config.MaxCells.
var ErrTooLarge = errors.New("grid exceeds cell limit")

// Config fixes the grid geometry and obstacle rules.
type Config struct {
	Bounds     Bounds
	CellSize   float64
	Clearance  float64
	BufferMode BufferMode
	MaxCells   int // 0 disables the limit
}

// Validate checks the configuration before any allocation happens.
func (c Config) Validate() error {
	if err := c.Bounds.Validate(); err != nil {
		return err
	}
	if !(c.CellSize > 0) {
		return fmt.Errorf("grid: cell size must be positive, got %v", c.CellSize)
	}
	if c.Clearance < 0 {
		return fmt.Errorf("grid: clearance must not be negative, got %v", c.Clearance)
	}
	switch c.BufferMode {
	case BufferVertex, BufferEdge, "":
	default:
		return fmt.Errorf("grid: unknown buffer mode %q", c.BufferMode)
	}
	return nil
}

// Dimensions returns the column and row counts Build would allocate.
func (c Config) Dimensions() (width, height int) {
	width = int(math.Ceil(c.Bounds.Width()/c.CellSize-snap)) + 1
	height = int(math.Ceil(c.Bounds.Height()/c.CellSize-snap)) + 1
	return width, height
}

// Cell is a grid index; Col runs along longitude and Row along latitude.
type Cell struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

// Grid is the occupancy structure.
type Grid struct {
	cfg      Config
	width    int
	height   int
	blocked  []bool
	interior []bool
}

// Stats summarises a built grid.
type Stats struct {
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	Cells         int     `json:"cells"`
	BlockedCells  int     `json:"blockedCells"`
	InteriorCells int     `json:"interiorCells"`
	CellSize      float64 `json:"cellSize"`
	Clearance     float64 `json:"clearance"`
	Bounds        Bounds  `json:"bounds"`
}

// Build rasterizes hard and buffered polygons. Each cell is classified once at
// its representative coordinate (lower-left corner). Polygons are prefiltered
// per row through an R-tree; the result equals testing every polygon.
func Build(cfg Config, hard, buffered []orb.Ring) (*Grid, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.BufferMode == "" {
		cfg.BufferMode = BufferVertex
	}

	width, height := cfg.Dimensions()
	cells := width * height
	if cfg.MaxCells > 0 && cells > cfg.MaxCells {
		return nil, fmt.Errorf("%w: %dx%d = %d cells, limit %d", ErrTooLarge, width, height, cells, cfg.MaxCells)
	}

	g := &Grid{
		cfg:      cfg,
		width:    width,
		height:   height,
		blocked:  make([]bool, cells),
		interior: make([]bool, cells),
	}

	hardIdx := spatial.New(hard, boundSlack)
	bufIdx := spatial.New(buffered, cfg.Clearance+boundSlack)

	distance := geometry.MinVertexDistance
	if cfg.BufferMode == BufferEdge {
		distance = geometry.MinEdgeDistance
	}

	minX := cfg.Bounds.MinLon
	maxX := minX + float64(width-1)*cfg.CellSize
	for row := 0; row < height; row++ {
		y := cfg.Bounds.MinLat + float64(row)*cfg.CellSize
		strip := orb.Bound{Min: orb.Point{minX, y}, Max: orb.Point{maxX, y}}
		hardRow := hardIdx.Query(strip)
		bufRow := bufIdx.Query(strip)
		if len(hardRow) == 0 && len(bufRow) == 0 {
			continue
		}

		for col := 0; col < width; col++ {
			p := g.ToCoord(Cell{Col: col, Row: row})

			inside := containedInAny(p, hardRow) || containedInAny(p, bufRow)
			near := inside
			if !near {
				for _, e := range bufRow {
					if covers(e.Bound, p) && distance(p, e.Ring) <= cfg.Clearance {
						near = true
						break
					}
				}
			}

			i := g.index(col, row)
			g.interior[i] = inside
			g.blocked[i] = near
		}
	}

	return g, nil
}

func containedInAny(p orb.Point, entries []*spatial.Entry) bool {
	for _, e := range entries {
		if covers(e.Bound, p) && geometry.PointInPolygon(p, e.Ring) {
			return true
		}
	}
	return false
}

func covers(b orb.Bound, p orb.Point) bool {
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] && p[1] >= b.Min[1] && p[1] <= b.Max[1]
}

func (g *Grid) index(col, row int) int {
	return row*g.width + col
}

// Width is the number of columns.
func (g *Grid) Width() int { return g.width }

// Height is the number of rows.
func (g *Grid) Height() int { return g.height }

// Config returns the configuration the grid was built with.
func (g *Grid) Config() Config { return g.cfg }

// InBounds reports whether c addresses a cell of the grid.
func (g *Grid) InBounds(c Cell) bool {
	return c.Col >= 0 && c.Col < g.width && c.Row >= 0 && c.Row < g.height
}

// IsOccupied reports whether c is not traversable under the full obstacle
// definition. Out of range cells are occupied.
func (g *Grid) IsOccupied(c Cell) bool {
	if !g.InBounds(c) {
		return true
	}
	return g.blocked[g.index(c.Col, c.Row)]
}

// IsInterior reports whether c lies inside a hard or buffered polygon, ignoring
// clearance. Out of range cells are treated as interior.
func (g *Grid) IsInterior(c Cell) bool {
	if !g.InBounds(c) {
		return true
	}
	return g.interior[g.index(c.Col, c.Row)]
}

// ToGrid converts a coordinate to the cell containing it, clamped into the grid.
func (g *Grid) ToGrid(p orb.Point) Cell {
	col := int(math.Floor((p[0]-g.cfg.Bounds.MinLon)/g.cfg.CellSize + snap))
	row := int(math.Floor((p[1]-g.cfg.Bounds.MinLat)/g.cfg.CellSize + snap))
	return Cell{Col: clamp(col, g.width), Row: clamp(row, g.height)}
}

// ToCoord returns the representative (lower-left) coordinate of c.
func (g *Grid) ToCoord(c Cell) orb.Point {
	return orb.Point{
		g.cfg.Bounds.MinLon + float64(c.Col)*g.cfg.CellSize,
		g.cfg.Bounds.MinLat + float64(c.Row)*g.cfg.CellSize,
	}
}

func clamp(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

// Stats counts blocked and interior cells.
func (g *Grid) Stats() Stats {
	s := Stats{
		Width:     g.width,
		Height:    g.height,
		Cells:     len(g.blocked),
		CellSize:  g.cfg.CellSize,
		Clearance: g.cfg.Clearance,
		Bounds:    g.cfg.Bounds,
	}
	for i := range g.blocked {
		if g.blocked[i] {
			s.BlockedCells++
		}
		if g.interior[i] {
			s.InteriorCells++
		}
	}
	return s
}
