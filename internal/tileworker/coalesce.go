// Package tileworker implements the per-tile assembly pipeline: clip,
// simplify, coalesce same-attribute neighbours, MVT-encode and optionally
// compress (spec §4.6).
package tileworker

import (
	"github.com/ctessum/polyclip-go"
	"github.com/paulmach/orb"

	"github.com/tilemaker-go/tilemaker/internal/outputobject"
)

// MaxBatchPoints bounds how many vertices a coalesced run may accumulate
// before the merge stops. The original C++ implementation's batch-points
// counter had a bug where the running count was never actually compared
// against the cap in the loop condition it was meant to guard (spec §9
// Open Question); this implementation enforces the intended invariant:
// the loop stops merging additional peers once the running total reaches
// the cap, not after silently exceeding it.
const MaxBatchPoints = 2000

// Run is a maximal run of adjacent OutputObjects sharing the same geometry
// kind and attributes, as produced by CoalesceRuns. Because the tile
// index's total order sorts by (layer, geom_kind, attributes, object_id),
// coalescable peers are always contiguous in a layer's object sub-range —
// no separate grouping pass is needed, only a linear scan.
type Run struct {
	Attrs    outputobject.Attributes
	GeomKind outputobject.GeomKind
	Objects  []*outputobject.OutputObject
}

// CoalesceRuns scans objs (already sorted and restricted to one layer's
// sub-range) and groups maximal adjacent same-attribute-group runs,
// capping each run's accumulated vertex count at MaxBatchPoints. vertexCount
// reports the point count of a single object's materialized geometry; it
// is supplied by the caller so this package stays independent of how
// geometry is materialized (OSM store rebuild vs. shapefile arena lookup).
func CoalesceRuns(objs []*outputobject.OutputObject, vertexCount func(*outputobject.OutputObject) int) []Run {
	var runs []Run
	i := 0
	for i < len(objs) {
		run := Run{Attrs: objs[i].Attrs, GeomKind: objs[i].GeomKind, Objects: []*outputobject.OutputObject{objs[i]}}
		total := vertexCount(objs[i])
		j := i + 1
		for j < len(objs) && outputobject.SameAttributeGroup(objs[i], objs[j]) {
			n := vertexCount(objs[j])
			if total+n > MaxBatchPoints {
				break
			}
			total += n
			run.Objects = append(run.Objects, objs[j])
			j++
		}
		runs = append(runs, run)
		i = j
	}
	return runs
}

// UnionPolygons merges a run's polygon geometries into one multipolygon via
// a Clipper-style strictly-simple, even-odd-fill union (spec's "polygon
// clipping engine" requirement).
func UnionPolygons(polys []orb.Polygon) orb.MultiPolygon {
	if len(polys) == 0 {
		return nil
	}
	acc := toClipPolygon(polys[0])
	for _, p := range polys[1:] {
		acc = acc.Construct(polyclip.UNION, toClipPolygon(p))
	}
	return fromClipPolygon(acc)
}

// UnionLineStrings merges a run's linestrings into one MultiLineString.
// polyclip operates on closed polygons, not open lines, so a true boolean
// union isn't applicable here; the union the original performs is a
// dissolve of the segment set into a single multilinestring for
// rendering — which concatenation already achieves, since MVT does not
// require component linestrings of a MultiLineString to share endpoints.
func UnionLineStrings(lines []orb.LineString) orb.MultiLineString {
	out := make(orb.MultiLineString, 0, len(lines))
	out = append(out, lines...)
	return out
}

func toClipPolygon(p orb.Polygon) polyclip.Polygon {
	cp := make(polyclip.Polygon, len(p))
	for i, ring := range p {
		contour := make(polyclip.Contour, 0, len(ring))
		for _, pt := range ring {
			contour = append(contour, polyclip.Point{X: pt[0], Y: pt[1]})
		}
		cp[i] = contour
	}
	return cp
}

// fromClipPolygon converts a polyclip result (a flat list of contours) back
// into an orb.MultiPolygon, classifying each contour as outer or hole by
// signed area and grouping holes under the nearest preceding outer — the
// same convention used in internal/shapefile for shapefile ring assembly.
func fromClipPolygon(cp polyclip.Polygon) orb.MultiPolygon {
	var mp orb.MultiPolygon
	for _, contour := range cp {
		if len(contour) < 3 {
			continue
		}
		ring := make(orb.Ring, 0, len(contour)+1)
		for _, pt := range contour {
			ring = append(ring, orb.Point{pt.X, pt.Y})
		}
		ring = append(ring, ring[0])

		if contourArea(contour) > 0 || len(mp) == 0 {
			mp = append(mp, orb.Polygon{ring})
		} else {
			last := &mp[len(mp)-1]
			*last = append(*last, ring)
		}
	}
	return mp
}

func contourArea(c polyclip.Contour) float64 {
	var sum float64
	n := len(c)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += c[i].X*c[j].Y - c[j].X*c[i].Y
	}
	return sum / 2
}
