package outputobject

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/tilemaker-go/tilemaker/internal/geo"
	"github.com/tilemaker-go/tilemaker/internal/osmstore"
)

// NodeBody materializes a single node's position from the OSM store.
type NodeBody struct {
	Store *osmstore.Store
	Node  osmstore.NodeID
}

func (b NodeBody) Geometry() (orb.Geometry, error) {
	coord, err := b.Store.Nodes.At(b.Node)
	if err != nil {
		return nil, err
	}
	p := geo.FromLatpLon(coord)
	return orb.Point{p.X, p.Y}, nil
}

// WayLinestringBody materializes a way's node list as a Linestring.
type WayLinestringBody struct {
	Store *osmstore.Store
	Way   osmstore.WayID
}

func (b WayLinestringBody) Geometry() (orb.Geometry, error) {
	nodeIDs, err := b.Store.Ways.At(b.Way)
	if err != nil {
		return nil, err
	}
	ls, err := b.Store.NodeListLinestring(nodeIDs)
	if err != nil {
		return nil, osmstore.WrapWayError(b.Way, err)
	}
	return ls, nil
}

// WayPolygonBody materializes a closed way's node list as a Polygon.
type WayPolygonBody struct {
	Store *osmstore.Store
	Way   osmstore.WayID
}

func (b WayPolygonBody) Geometry() (orb.Geometry, error) {
	nodeIDs, err := b.Store.Ways.At(b.Way)
	if err != nil {
		return nil, err
	}
	poly, err := b.Store.NodeListPolygon(nodeIDs)
	if err != nil {
		return nil, osmstore.WrapWayError(b.Way, err)
	}
	return poly, nil
}

// RelationMultipolygonBody materializes a multipolygon relation from its
// outer/inner way membership.
type RelationMultipolygonBody struct {
	Store *osmstore.Store
	Outer []osmstore.WayID
	Inner []osmstore.WayID
}

func (b RelationMultipolygonBody) Geometry() (orb.Geometry, error) {
	return b.Store.WayListMultipolygon(b.Outer, b.Inner), nil
}

// CentroidBody wraps another body and reports the centroid of its geometry
// as a Point. Emits nothing for an empty inner geometry — see script
// package for the "skip if empty" fault-handling rule.
type CentroidBody struct {
	Inner GeometryBuilder
}

func (b CentroidBody) Geometry() (orb.Geometry, error) {
	g, err := b.Inner.Geometry()
	if err != nil {
		return nil, err
	}
	if g == nil || isEmptyGeom(g) {
		return nil, nil
	}
	c, _ := planar.CentroidArea(g)
	return c, nil
}

func isEmptyGeom(g orb.Geometry) bool {
	switch v := g.(type) {
	case orb.Point:
		return false
	case orb.LineString:
		return len(v) == 0
	case orb.Polygon:
		return len(v) == 0
	case orb.MultiPolygon:
		return len(v) == 0
	default:
		return g.Bound().IsEmpty()
	}
}
