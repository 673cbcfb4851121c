package campus

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"drone-route-planner/internal/geometry"
)

// Data file names inside the data directory.
const (
	GatesFile     = "gates.geojson"
	CanteensFile  = "canteens.geojson"
	DormsFile     = "dorms.geojson"
	BuildingsFile = "buildings.geojson"
	SportsFile    = "sports.geojson"
	BoundaryFile  = "campus_boundary.geojson"
)

// LoadOptions controls optional preprocessing of obstacle polygons.
type LoadOptions struct {
	// SimplifyEpsilon > 0 runs Douglas-Peucker over buildings and sports areas.
	SimplifyEpsilon float64
	// MergeContained drops buildings that lie entirely inside another building.
	MergeContained bool
	// SortDorms orders dorms with OrderDorms after loading.
	SortDorms bool

	Logger *slog.Logger
}

// Load reads the campus data files from dir. Gates, canteens, dorms and
// buildings are required; sports areas and the campus boundary are optional.
func Load(dir string, opts LoadOptions) (*Dataset, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	d := &Dataset{}

	gates, err := readCollection(dir, GatesFile)
	if err != nil {
		return nil, err
	}
	for _, f := range gates.Features {
		p, ok := anchor(f.Geometry)
		if !ok {
			log.Debug("skipping gate feature", "geometry", geometryType(f.Geometry))
			continue
		}
		d.Gates = append(d.Gates, Location{Name: fmt.Sprintf("校门%d", len(d.Gates)+1), Point: p})
	}

	if d.Canteens, err = loadLocations(dir, CanteensFile, "食堂"); err != nil {
		return nil, err
	}
	if d.Dorms, err = loadLocations(dir, DormsFile, "宿舍"); err != nil {
		return nil, err
	}

	buildings, err := readCollection(dir, BuildingsFile)
	if err != nil {
		return nil, err
	}
	for _, f := range buildings.Features {
		d.Buildings = append(d.Buildings, outerRings(f.Geometry)...)
	}

	sports, err := readCollection(dir, SportsFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warn("no sports areas file, no buffered obstacles", "file", SportsFile)
	case err != nil:
		return nil, err
	default:
		for _, f := range sports.Features {
			for _, ring := range outerRings(f.Geometry) {
				name := featureName(f, fmt.Sprintf("运动场所%d", len(d.Sports)+1))
				d.Sports = append(d.Sports, Area{Name: name, Ring: ring})
			}
		}
	}

	boundary, err := readCollection(dir, BoundaryFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warn("no campus boundary file", "file", BoundaryFile)
	case err != nil:
		return nil, err
	default:
		if len(boundary.Features) > 0 {
			if rings := outerRings(boundary.Features[0].Geometry); len(rings) > 0 {
				d.Boundary = rings[0]
			}
		}
	}

	preprocess(d, opts, log)

	log.Info("campus data loaded",
		"dir", dir,
		"gates", len(d.Gates),
		"canteens", len(d.Canteens),
		"dorms", len(d.Dorms),
		"buildings", len(d.Buildings),
		"sports", len(d.Sports),
		"boundary", len(d.Boundary) > 0)
	return d, nil
}

func preprocess(d *Dataset, opts LoadOptions, log *slog.Logger) {
	if opts.SimplifyEpsilon > 0 {
		before := geometry.VertexCount(d.Buildings)
		d.Buildings = geometry.SimplifyAll(d.Buildings, opts.SimplifyEpsilon)
		for i := range d.Sports {
			d.Sports[i].Ring = geometry.Simplify(d.Sports[i].Ring, opts.SimplifyEpsilon)
		}
		log.Info("simplified buildings",
			"epsilon", opts.SimplifyEpsilon,
			"vertices_before", before,
			"vertices_after", geometry.VertexCount(d.Buildings))
	}

	if opts.MergeContained {
		before := len(d.Buildings)
		d.Buildings = geometry.RemoveContained(d.Buildings)
		log.Info("removed contained buildings", "removed", before-len(d.Buildings), "kept", len(d.Buildings))
	}

	if opts.SortDorms {
		OrderDorms(d.Dorms)
	}
}

// loadLocations reads polygon features as named endpoints at their vertex centroid.
func loadLocations(dir, file, fallback string) ([]Location, error) {
	fc, err := readCollection(dir, file)
	if err != nil {
		return nil, err
	}

	var out []Location
	for _, f := range fc.Features {
		poly, ok := f.Geometry.(orb.Polygon)
		if !ok || len(poly) == 0 || len(poly[0]) == 0 {
			continue
		}
		out = append(out, Location{
			Name:    featureName(f, fmt.Sprintf("%s%d", fallback, len(out)+1)),
			Point:   geometry.Centroid(poly[0]),
			Polygon: poly[0],
		})
	}
	return out, nil
}

func readCollection(dir, file string) (*geojson.FeatureCollection, error) {
	path := filepath.Join(dir, file)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("campus: read %s: %w", path, err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("campus: parse %s: %w", path, err)
	}
	return fc, nil
}

// featureName returns the name or name:zh property, else fallback.
func featureName(f *geojson.Feature, fallback string) string {
	for _, key := range []string{"name", "name:zh"} {
		if s, ok := f.Properties[key].(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

// anchor reduces a gate geometry to a single point.
func anchor(g orb.Geometry) (orb.Point, bool) {
	switch v := g.(type) {
	case orb.Point:
		return v, true
	case orb.Polygon:
		if len(v) > 0 && len(v[0]) > 0 {
			return geometry.Centroid(v[0]), true
		}
	}
	return orb.Point{}, false
}

// outerRings returns the outer ring of every polygon in g. Holes are ignored.
func outerRings(g orb.Geometry) []orb.Ring {
	switch v := g.(type) {
	case orb.Polygon:
		if len(v) > 0 && len(v[0]) > 0 {
			return []orb.Ring{v[0]}
		}
	case orb.MultiPolygon:
		var rings []orb.Ring
		for _, p := range v {
			if len(p) > 0 && len(p[0]) > 0 {
				rings = append(rings, p[0])
			}
		}
		return rings
	}
	return nil
}

func geometryType(g orb.Geometry) string {
	if g == nil {
		return "none"
	}
	return g.GeoJSONType()
}
