package outputobject

import (
	"strings"

	"github.com/paulmach/orb"
)

// GeomKind is OutputObject's geometry-kind tag. Cached* variants carry a
// shared reference into a geometry arena (the shapefile cache) instead of
// rebuilding from OSM store ids.
type GeomKind uint8

const (
	Point GeomKind = iota
	Linestring
	Polygon
	Centroid
	CachedPoint
	CachedLinestring
	CachedPolygon
)

func (k GeomKind) String() string {
	switch k {
	case Point:
		return "point"
	case Linestring:
		return "linestring"
	case Polygon:
		return "polygon"
	case Centroid:
		return "centroid"
	case CachedPoint:
		return "cached_point"
	case CachedLinestring:
		return "cached_linestring"
	case CachedPolygon:
		return "cached_polygon"
	default:
		return "unknown"
	}
}

// IsPolygonal reports whether the geometry kind is a polygon or its cached
// variant — these participate in the fill-covered-tiles bucketing rule and
// in polygon-union coalescing.
func (k GeomKind) IsPolygonal() bool {
	return k == Polygon || k == CachedPolygon
}

// IsLinear reports whether the geometry kind is a linestring or its cached
// variant — these participate in multilinestring-union coalescing.
func (k GeomKind) IsLinear() bool {
	return k == Linestring || k == CachedLinestring
}

// GeometryBuilder materializes an OutputObject's geometry on demand: either
// by rebuilding it from the OSM store, or by dereferencing a shared
// geometry held in the shapefile arena.
type GeometryBuilder interface {
	Geometry() (orb.Geometry, error)
}

// OutputObject is the polymorphic unit that flows through the tile
// pipeline. It is immutable once created; GeomKind/LayerID/ObjectID/Attrs
// give it identity and ordering, Body defers the (possibly expensive)
// geometry materialization.
type OutputObject struct {
	GeomKind GeomKind
	LayerID  uint8
	ObjectID uint64
	Attrs    Attributes
	Body     GeometryBuilder
}

// Geometry materializes the object's geometry via its Body.
func (o *OutputObject) Geometry() (orb.Geometry, error) {
	return o.Body.Geometry()
}

// Compare implements the total order spec.md requires: lexicographic by
// (layer, geom_kind, attributes, object_id). It is the ordering the tile
// index and tile data facade sort by before dedup and rendering.
func Compare(a, b *OutputObject) int {
	if a.LayerID != b.LayerID {
		return int(a.LayerID) - int(b.LayerID)
	}
	if a.GeomKind != b.GeomKind {
		return int(a.GeomKind) - int(b.GeomKind)
	}
	if c := strings.Compare(a.Attrs.Encode(), b.Attrs.Encode()); c != 0 {
		return c
	}
	switch {
	case a.ObjectID < b.ObjectID:
		return -1
	case a.ObjectID > b.ObjectID:
		return 1
	default:
		return 0
	}
}

// Equal reports whether two objects are identical under the total order
// (used to dedup within one tile's bundle after sort).
func Equal(a, b *OutputObject) bool {
	return Compare(a, b) == 0
}

// SameAttributeGroup reports whether two objects can be merged by the
// coalescing pass: identical geometry kind and identical attributes
// (spec §4.6's "same geom_kind AND attributes" adjacency test).
func SameAttributeGroup(a, b *OutputObject) bool {
	return a.GeomKind == b.GeomKind && a.Attrs.Equal(b.Attrs)
}
