// Package render draws the campus obstacles, endpoints and planned routes to a PNG image.
package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"

	"github.com/fogleman/gg"
	"github.com/paulmach/orb"

	"drone-route-planner/internal/campus"
	"drone-route-planner/internal/grid"
	"drone-route-planner/internal/route"
)

// Palette used for every layer.
var (
	Background    = color.RGBA{255, 255, 255, 255}
	BoundaryColor = color.RGBA{0, 0, 0, 255}
	BuildingColor = color.RGBA{160, 160, 160, 255}
	SportsColor   = color.RGBA{240, 128, 128, 255}
	GateColor     = color.RGBA{0, 150, 0, 255}
	CanteenColor  = color.RGBA{255, 140, 0, 255}
	DormColor     = color.RGBA{128, 0, 160, 255}

	RouteColors = map[route.Category]color.RGBA{
		route.CanteenToDorm: {0, 90, 255, 255},
		route.GateToDorm:    {220, 0, 0, 255},
	}
)

// Options size the image.
type Options struct {
	Width         int     // pixels; height follows the bounds aspect ratio
	MarkerSize    int     // half side of endpoint markers in pixels
	RouteWidth    float64 // default 1
	BoundaryWidth float64 // default 2
	Legend        bool    // draw a legend box in the top right corner
}

func (o Options) withDefaults() Options {
	if o.MarkerSize <= 0 {
		o.MarkerSize = max(2, o.Width/400)
	}
	if o.RouteWidth <= 0 {
		o.RouteWidth = 1
	}
	if o.BoundaryWidth <= 0 {
		o.BoundaryWidth = 2
	}
	return o
}

// Legend geometry in pixels.
const (
	legendWidth  = 150
	legendMargin = 10
	legendRow    = 16
	swatchWidth  = 14
	swatchHeight = 8
)

type legendEntry struct {
	label string
	col   color.RGBA
}

func legendEntries() []legendEntry {
	return []legendEntry{
		{"canteen to dorm", RouteColors[route.CanteenToDorm]},
		{"gate to dorm", RouteColors[route.GateToDorm]},
		{"gate", GateColor},
		{"canteen", CanteenColor},
		{"dorm", DormColor},
		{"building", BuildingColor},
		{"sports area", SportsColor},
	}
}

// LegendSwatch returns the pixel rectangle of the i-th legend swatch for an
// image of the given width.
func LegendSwatch(width, i int) image.Rectangle {
	x := width - legendWidth - legendMargin + 8
	y := legendMargin + 8 + i*legendRow
	return image.Rect(x, y, x+swatchWidth, y+swatchHeight)
}

// canvas maps lon/lat onto pixel centres with y pointing north.
type canvas struct {
	dc     *gg.Context
	bounds grid.Bounds
	scale  float64 // pixels per degree
}

func newCanvas(b grid.Bounds, width int) *canvas {
	scale := float64(width-1) / b.Width()
	height := int(math.Ceil(b.Height()*scale)) + 1
	dc := gg.NewContext(width, height)
	dc.SetColor(Background)
	dc.Clear()
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)
	return &canvas{dc: dc, bounds: b, scale: scale}
}

func (c *canvas) pixel(p orb.Point) (x, y float64) {
	h := float64(c.dc.Height() - 1)
	return (p[0]-c.bounds.MinLon)*c.scale + 0.5, h - (p[1]-c.bounds.MinLat)*c.scale + 0.5
}

func (c *canvas) trace(path []orb.Point) {
	c.dc.NewSubPath()
	for _, p := range path {
		c.dc.LineTo(c.pixel(p))
	}
}

func (c *canvas) fillRing(ring orb.Ring, col color.RGBA) {
	if len(ring) < 3 {
		return
	}
	c.trace(ring)
	c.dc.ClosePath()
	c.dc.SetColor(col)
	c.dc.Fill()
}

func (c *canvas) polyline(path []orb.Point, col color.RGBA, width float64) {
	if len(path) < 2 {
		return
	}
	c.trace(path)
	c.dc.SetColor(col)
	c.dc.SetLineWidth(width)
	c.dc.Stroke()
}

type shape int

const (
	circle shape = iota
	square
	triangle
)

func (c *canvas) marker(p orb.Point, half int, sh shape, col color.RGBA) {
	x, y := c.pixel(p)
	r := float64(half) + 0.5
	switch sh {
	case square:
		c.dc.DrawRectangle(x-r, y-r, 2*r, 2*r)
	case triangle:
		c.dc.DrawRegularPolygon(3, x, y, r*1.3, -math.Pi/2)
	default:
		c.dc.DrawCircle(x, y, r)
	}
	c.dc.SetColor(col)
	c.dc.Fill()
}

func (c *canvas) legend() {
	entries := legendEntries()
	x := float64(c.dc.Width() - legendWidth - legendMargin)
	y := float64(legendMargin)
	h := float64(len(entries)*legendRow + 8)

	c.dc.DrawRectangle(x, y, legendWidth, h)
	c.dc.SetColor(Background)
	c.dc.FillPreserve()
	c.dc.SetColor(BoundaryColor)
	c.dc.SetLineWidth(1)
	c.dc.Stroke()

	for i, e := range entries {
		sw := LegendSwatch(c.dc.Width(), i)
		c.dc.DrawRectangle(float64(sw.Min.X), float64(sw.Min.Y), swatchWidth, swatchHeight)
		c.dc.SetColor(e.col)
		c.dc.Fill()

		c.dc.SetColor(BoundaryColor)
		c.dc.DrawStringAnchored(e.label, float64(sw.Max.X+6), float64(sw.Min.Y)+swatchHeight/2, 0, 0.35)
	}
}

func (c *canvas) draw(ds *campus.Dataset, set *route.Set, opts Options) {
	for _, s := range ds.Sports {
		c.fillRing(s.Ring, SportsColor)
	}
	for _, b := range ds.Buildings {
		c.fillRing(b, BuildingColor)
	}
	c.polyline(ds.Boundary, BoundaryColor, opts.BoundaryWidth)

	if set != nil {
		for _, cat := range route.Categories {
			for _, r := range set.Routes[cat] {
				c.polyline(r.Path, RouteColors[cat], opts.RouteWidth)
			}
		}
	}

	for _, group := range []struct {
		locs  []campus.Location
		shape shape
		col   color.RGBA
	}{
		{ds.Gates, square, GateColor},
		{ds.Canteens, triangle, CanteenColor},
		{ds.Dorms, circle, DormColor},
	} {
		for _, l := range group.locs {
			c.marker(l.Point, opts.MarkerSize, group.shape, group.col)
		}
	}

	if opts.Legend {
		c.legend()
	}
}

func render(ds *campus.Dataset, set *route.Set, bounds grid.Bounds, opts Options) (*gg.Context, error) {
	if err := bounds.Validate(); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	if opts.Width < 2 {
		return nil, fmt.Errorf("render: width must be at least 2, got %d", opts.Width)
	}

	c := newCanvas(bounds, opts.Width)
	c.draw(ds, set, opts.withDefaults())
	return c.dc, nil
}

// Draw renders the dataset and routes inside bounds. Layers are painted in
// order: sports areas, buildings, boundary, routes, endpoint markers, legend.
func Draw(ds *campus.Dataset, set *route.Set, bounds grid.Bounds, opts Options) (image.Image, error) {
	dc, err := render(ds, set, bounds, opts)
	if err != nil {
		return nil, err
	}
	return dc.Image(), nil
}

// Encode renders to w as PNG.
func Encode(w io.Writer, ds *campus.Dataset, set *route.Set, bounds grid.Bounds, opts Options) error {
	dc, err := render(ds, set, bounds, opts)
	if err != nil {
		return err
	}
	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("render: encode png: %w", err)
	}
	return nil
}

// WriteFile renders to a PNG file at path.
func WriteFile(path string, ds *campus.Dataset, set *route.Set, bounds grid.Bounds, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("render: create %s: %w", path, err)
	}
	if err := Encode(f, ds, set, bounds, opts); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("render: close %s: %w", path, err)
	}
	return nil
}
