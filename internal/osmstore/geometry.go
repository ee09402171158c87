package osmstore

import (
	"github.com/paulmach/orb"

	"github.com/tilemaker-go/tilemaker/internal/geo"
	"github.com/tilemaker-go/tilemaker/internal/tilemakererr"
)

// NodeListLinestring builds a Linestring in projected coordinates from an
// ordered node id list.
//
// Policy (spec.md §4.1 leaves this to the implementer, "document the chosen
// policy and make it a test"): the first and last node must resolve, or the
// call fails with NodeMissing — a way whose endpoints can't be located has
// no usable geometry at all. Interior nodes that are missing are skipped,
// producing a shorter-but-connected linestring, matching tilemaker's
// behaviour of tolerating sparse extracts.
func (s *Store) NodeListLinestring(nodeIDs []NodeID) (orb.LineString, error) {
	if len(nodeIDs) == 0 {
		return orb.LineString{}, nil
	}
	if _, err := s.Nodes.At(nodeIDs[0]); err != nil {
		return nil, err
	}
	if _, err := s.Nodes.At(nodeIDs[len(nodeIDs)-1]); err != nil {
		return nil, err
	}

	ls := make(orb.LineString, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		coord, err := s.Nodes.At(id)
		if err != nil {
			continue // interior gap: skip, keep building
		}
		p := geo.FromLatpLon(coord)
		ls = append(ls, orb.Point{p.X, p.Y})
	}
	return ls, nil
}

// NodeListPolygon builds a Polygon (single ring, closed, winding-corrected)
// from an ordered node id list. Uses the same endpoint/interior-gap policy
// as NodeListLinestring.
func (s *Store) NodeListPolygon(nodeIDs []NodeID) (orb.Polygon, error) {
	ls, err := s.NodeListLinestring(nodeIDs)
	if err != nil {
		return nil, err
	}
	ring := orb.Ring(ls)
	closeRing(&ring)
	if len(ring) < 4 {
		return orb.Polygon{ring}, nil
	}
	correctWinding(&ring, true)
	return orb.Polygon{ring}, nil
}

// WayListMultipolygon assembles a MultiPolygon from a relation's outer and
// inner way lists per spec §4.1: the first present outer way becomes a
// polygon whose holes are every present inner way (regardless of whether
// that inner actually nests inside that particular outer — a deliberate
// simplification); every additional present outer way becomes its own
// hole-less polygon. Missing member ways are silently skipped — their
// absence was already reported during ingest.
func (s *Store) WayListMultipolygon(outers, inners []WayID) orb.MultiPolygon {
	var mp orb.MultiPolygon
	var holes []orb.Ring

	for _, innerID := range inners {
		nodeIDs, err := s.Ways.At(innerID)
		if err != nil {
			continue
		}
		ring, err := s.ringFromNodes(nodeIDs, false)
		if err != nil {
			continue
		}
		holes = append(holes, ring)
	}

	first := true
	for _, outerID := range outers {
		nodeIDs, err := s.Ways.At(outerID)
		if err != nil {
			continue
		}
		ring, err := s.ringFromNodes(nodeIDs, true)
		if err != nil {
			continue
		}
		if first {
			poly := orb.Polygon{ring}
			poly = append(poly, holes...)
			mp = append(mp, poly)
			first = false
		} else {
			mp = append(mp, orb.Polygon{ring})
		}
	}
	return mp
}

func (s *Store) ringFromNodes(nodeIDs []NodeID, outer bool) (orb.Ring, error) {
	ls, err := s.NodeListLinestring(nodeIDs)
	if err != nil {
		return nil, err
	}
	ring := orb.Ring(ls)
	closeRing(&ring)
	if len(ring) >= 4 {
		correctWinding(&ring, outer)
	}
	return ring, nil
}

// closeRing appends the first point to the end if the ring isn't already
// closed.
func closeRing(r *orb.Ring) {
	n := len(*r)
	if n < 1 {
		return
	}
	if (*r)[0] != (*r)[n-1] {
		*r = append(*r, (*r)[0])
	}
}

// signedArea computes twice the signed area of a ring via the shoelace
// formula; positive means counter-clockwise.
func signedArea(r orb.Ring) float64 {
	var sum float64
	n := len(r)
	for i := 0; i < n-1; i++ {
		sum += r[i][0]*r[i+1][1] - r[i+1][0]*r[i][1]
	}
	return sum
}

// correctWinding enforces the GeoJSON right-hand-rule convention: outer
// rings counter-clockwise, holes clockwise.
func correctWinding(r *orb.Ring, outer bool) {
	area := signedArea(*r)
	ccw := area > 0
	if outer != ccw {
		reverseRing(*r)
	}
}

func reverseRing(r orb.Ring) {
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
}

// WrapWayError reports a way-geometry failure (typically NodeMissing) as a
// typed, coordinate-bearing EntityError for the extractor's fault handling.
func WrapWayError(wayID WayID, err error) error {
	return &tilemakererr.EntityError{Kind: "way", ID: wayID, Err: err}
}
