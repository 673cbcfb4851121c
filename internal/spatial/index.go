// Package spatial indexes obstacle polygons by their bounding boxes so that
// rasterization and collision checks only test polygons near the query.
package spatial

import (
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

// minExtent keeps degenerate (zero width or height) boxes acceptable to rtreego.
const minExtent = 1e-12

// Entry wraps a ring for R-tree storage
type Entry struct {
	ID    int
	Ring  orb.Ring
	Bound orb.Bound // padded bounding box
	rect  rtreego.Rect
}

// Bounds implements rtreego.Spatial interface
func (e *Entry) Bounds() rtreego.Rect {
	return e.rect
}

// Index manages ring spatial queries. It is read-only after New and safe for concurrent use.
type Index struct {
	tree    *rtreego.Rtree
	entries []*Entry
}

// New builds an index over rings. Each bounding box is grown by pad on every
// side, so a query hits every ring that lies within pad of the query region.
// Rings without vertices are skipped. Entry IDs are positions in rings.
func New(rings []orb.Ring, pad float64) *Index {
	tree := rtreego.NewTree(2, 25, 50) // 2D, min 25, max 50 entries per node
	entries := make([]*Entry, 0, len(rings))

	for i, ring := range rings {
		if len(ring) == 0 {
			continue
		}
		bound := ring.Bound().Pad(pad)
		rect, err := toRect(bound)
		if err != nil {
			continue
		}
		entry := &Entry{ID: i, Ring: ring, Bound: bound, rect: rect}
		tree.Insert(entry)
		entries = append(entries, entry)
	}

	return &Index{tree: tree, entries: entries}
}

// Len returns the number of indexed rings.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Query returns the entries whose padded box intersects region, ordered by ID.
func (idx *Index) Query(region orb.Bound) []*Entry {
	if len(idx.entries) == 0 {
		return nil
	}
	rect, err := toRect(region)
	if err != nil {
		return nil
	}

	results := idx.tree.SearchIntersect(rect)
	entries := make([]*Entry, 0, len(results))
	for _, item := range results {
		entries = append(entries, item.(*Entry))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

// Rings returns the rings whose padded box intersects region, ordered by ID.
func (idx *Index) Rings(region orb.Bound) []orb.Ring {
	entries := idx.Query(region)
	rings := make([]orb.Ring, len(entries))
	for i, e := range entries {
		rings[i] = e.Ring
	}
	return rings
}

func toRect(b orb.Bound) (rtreego.Rect, error) {
	w := b.Max[0] - b.Min[0]
	h := b.Max[1] - b.Min[1]
	if w < minExtent {
		w = minExtent
	}
	if h < minExtent {
		h = minExtent
	}
	return rtreego.NewRect(rtreego.Point{b.Min[0], b.Min[1]}, []float64{w, h})
}
