package shapefile

import (
	"github.com/dhconnelly/rtreego"

	"github.com/tilemaker-go/tilemaker/internal/geo"
)

// minRectSize guards against rtreego.NewRect rejecting a degenerate
// (zero-width or zero-height) box, which happens for single-point
// geometries; each dimension is padded to at least this size.
const minRectSize = 1e-9

// spatialItem is the Spatial implementation stored in a layer's R-tree. It
// carries the arena index plus its own copy of the box, since rtreego.Rect
// does not expose accessors to recover min/max after construction.
type spatialItem struct {
	arenaIndex int
	box        geo.Box
}

func (s spatialItem) Bounds() rtreego.Rect {
	w := s.box.Max.X - s.box.Min.X
	h := s.box.Max.Y - s.box.Min.Y
	if w < minRectSize {
		w = minRectSize
	}
	if h < minRectSize {
		h = minRectSize
	}
	rect, err := rtreego.NewRect(rtreego.Point{s.box.Min.X, s.box.Min.Y}, []float64{w, h})
	if err != nil {
		// NewRect only errors on non-positive lengths, excluded above.
		panic(err)
	}
	return rect
}

// Layer is one named shapefile layer: its geometries live in the shared
// Arena, indexed here by an R-tree over each geometry's bounding box.
type Layer struct {
	Name  string
	Arena *Arena
	tree  *rtreego.Rtree
	items []spatialItem
}

// NewLayer creates an empty, named layer backed by arena.
func NewLayer(name string, arena *Arena) *Layer {
	return &Layer{Name: name, Arena: arena, tree: rtreego.NewTree(2, 25, 50)}
}

// Insert adds geometry at arenaIndex to the layer's spatial index, bounded
// by box.
func (l *Layer) Insert(arenaIndex int, box geo.Box) {
	item := spatialItem{arenaIndex: arenaIndex, box: box}
	l.items = append(l.items, item)
	l.tree.Insert(item)
}

// boxRect converts a query box to an rtreego.Rect for SearchIntersect.
func boxRect(box geo.Box) rtreego.Rect {
	w := box.Max.X - box.Min.X
	h := box.Max.Y - box.Min.Y
	if w < minRectSize {
		w = minRectSize
	}
	if h < minRectSize {
		h = minRectSize
	}
	rect, err := rtreego.NewRect(rtreego.Point{box.Min.X, box.Min.Y}, []float64{w, h})
	if err != nil {
		panic(err)
	}
	return rect
}

// FindIntersecting returns the arena indices of every geometry in the layer
// whose bounding box overlaps box AND passes the weaker "either corner
// inside the other's box" verification the original tilemaker's
// find_intersecting uses — a documented, deliberately approximate contract,
// not full polygon-box intersection (spec §9 Open Question: "the weak
// verification is a documented contract, not a bug to silently fix").
func (l *Layer) FindIntersecting(box geo.Box) []int {
	candidates := l.tree.SearchIntersect(boxRect(box))
	var out []int
	for _, c := range candidates {
		item := c.(spatialItem)
		if cornersOverlap(item.box, box) {
			out = append(out, item.arenaIndex)
		}
	}
	return out
}

// Intersects reports whether any geometry in the layer's index passes the
// same weak corner-overlap test against box (a boolean-only variant of
// FindIntersecting so callers that only need existence avoid allocating the
// result slice).
func (l *Layer) Intersects(box geo.Box) bool {
	candidates := l.tree.SearchIntersect(boxRect(box))
	for _, c := range candidates {
		item := c.(spatialItem)
		if cornersOverlap(item.box, box) {
			return true
		}
	}
	return false
}

// cornersOverlap implements the deliberately weak verification: true if
// either box's min or max corner lies within the other box. Boxes that do
// not intersect are never reported, but some that do are missed: a cross
// shape, or an overlap at one of the other two corners, leaves neither
// box's min or max corner inside the other and returns false. This matches
// the original implementation's documented limitation rather than computing
// exact box intersection.
func cornersOverlap(a, b geo.Box) bool {
	return b.Contains(a.Min) || b.Contains(a.Max) || a.Contains(b.Min) || a.Contains(b.Max)
}

// Len reports how many geometries are indexed in the layer.
func (l *Layer) Len() int {
	return len(l.items)
}

// Set is a named collection of shapefile layers, the unit the script host
// queries by name (spec §4.5: "layers are referenced by the name given at
// load time").
type Set struct {
	Arena  *Arena
	Layers map[string]*Layer
}

// NewSet creates an empty layer set with a shared geometry arena.
func NewSet() *Set {
	return &Set{Arena: NewArena(), Layers: make(map[string]*Layer)}
}

// Layer returns the named layer, creating it if absent.
func (s *Set) Layer(name string) *Layer {
	l, ok := s.Layers[name]
	if !ok {
		l = NewLayer(name, s.Arena)
		s.Layers[name] = l
	}
	return l
}
