package shapefile

import (
	"fmt"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"

	"github.com/tilemaker-go/tilemaker/internal/geo"
	"github.com/tilemaker-go/tilemaker/internal/outputobject"
	"github.com/tilemaker-go/tilemaker/internal/tileindex"
	"github.com/tilemaker-go/tilemaker/internal/tilemakererr"
)

// dedupEpsilon is the minimum distance (in projected-plane degrees) between
// consecutive points below which the second is dropped as a duplicate,
// matching spec §4.5's point-dedup tolerance.
const dedupEpsilon = 1e-8

// LoadOptions configures a shapefile load.
type LoadOptions struct {
	// Layer is the name objects from this file are inserted under.
	Layer string
	// Clip, if non-nil, discards any geometry whose bounding box falls
	// entirely outside the box (projected-plane coordinates).
	Clip *geo.Box
	// IndexColumn, if set, is copied into each arena attribute row under
	// "_index" for use as the value of index_column in layer config.
	IndexColumn string
	// Indexed, if true, also inserts each loaded geometry's envelope into
	// the layer's R-tree (spec §4.2 step 5: "if indexed, insert (envelope,
	// g) into that layer's R-tree").
	Indexed bool

	// Index, if non-nil, receives a Cached* OutputObject for every loaded
	// geometry, bucketed by geometry kind (point -> single tile, line ->
	// polyline walk, polygon -> bbox fill), matching spec §4.2 step 5's tile
	// index contribution. Polygons are bucketed by bbox here, unlike the
	// script host's outline-plus-scanline fill for OSM polygons.
	Index    *tileindex.Index
	LayerID  uint8
	BaseZoom uint8

	// SourceColumns, if non-empty, selects which dbf fields are copied onto
	// each Cached* OutputObject's attribute map (spec §6's
	// layers.<name>.source_columns); all are carried as strings, matching
	// go-shp's ReadAttribute return type.
	SourceColumns []string
}

// Load reads every record of the shapefile at path into set, reprojecting
// geographic latitude to projected latitude (latp) on the way in, so all
// arena geometry is in the same projected-plane coordinate system the OSM
// store uses.
func Load(path string, set *Set, opts LoadOptions) error {
	reader, err := shp.Open(path)
	if err != nil {
		return &tilemakererr.InputError{Path: path, Err: err}
	}
	defer reader.Close()

	fields := reader.Fields()
	layer := set.Layer(opts.Layer)

	for reader.Next() {
		n, shape := reader.Shape()

		g, err := convertShape(shape)
		if err != nil {
			// Per-entity fault: the shape is skipped and Load continues with
			// the next record. It is neither logged nor counted.
			continue
		}
		if g == nil {
			continue
		}

		bound := g.Bound()
		box := geo.Box{
			Min: geo.Point{X: bound.Min[0], Y: bound.Min[1]},
			Max: geo.Point{X: bound.Max[0], Y: bound.Max[1]},
		}
		if opts.Clip != nil && !opts.Clip.Intersects(box) {
			continue
		}

		attrs := make(map[string]string, len(fields))
		for i, f := range fields {
			attrs[f.String()] = reader.ReadAttribute(n, i)
		}
		if opts.IndexColumn != "" {
			attrs["_index"] = attrs[opts.IndexColumn]
		}

		idx := set.Arena.Add(g, attrs)
		if opts.Indexed {
			layer.Insert(idx, box)
		}
		if opts.Index != nil {
			attrVals := make(map[string]outputobject.Value, len(opts.SourceColumns))
			for _, col := range opts.SourceColumns {
				if v, ok := attrs[col]; ok {
					attrVals[col] = outputobject.StringValue(v)
				}
			}
			addToTileIndex(opts.Index, opts.LayerID, set.Arena, idx, g, outputobject.NewAttributes(attrVals))
		}
	}

	return nil
}

// addToTileIndex inserts a Cached* OutputObject referencing arena[idx] using
// the insertion policy matching its geometry kind: a single tile for
// points, a polyline walk for lines, and bbox-covered-tile fill for
// polygons (spec §4.2 step 5). Points and lines follow the same policy as
// the script host; polygons differ, since the script host fills OSM
// polygons from their outline rather than their bbox.
func addToTileIndex(index *tileindex.Index, layerID uint8, arena *Arena, idx int, g orb.Geometry, attrs outputobject.Attributes) {
	body := CachedBody{Arena: arena, Index: idx}

	switch v := g.(type) {
	case orb.Point:
		oo := &outputobject.OutputObject{GeomKind: outputobject.CachedPoint, LayerID: layerID, ObjectID: uint64(idx), Attrs: attrs, Body: body}
		index.Add(geo.LonLatpToTile(v[0], v[1], index.BaseZoom), oo)

	case orb.MultiPoint:
		for _, p := range v {
			oo := &outputobject.OutputObject{GeomKind: outputobject.CachedPoint, LayerID: layerID, ObjectID: uint64(idx), Attrs: attrs, Body: body}
			index.Add(geo.LonLatpToTile(p[0], p[1], index.BaseZoom), oo)
		}

	case orb.LineString:
		oo := &outputobject.OutputObject{GeomKind: outputobject.CachedLinestring, LayerID: layerID, ObjectID: uint64(idx), Attrs: attrs, Body: body}
		index.AddByPolyline(oo, v)

	case orb.MultiLineString:
		for _, ls := range v {
			oo := &outputobject.OutputObject{GeomKind: outputobject.CachedLinestring, LayerID: layerID, ObjectID: uint64(idx), Attrs: attrs, Body: body}
			index.AddByPolyline(oo, ls)
		}

	case orb.Polygon:
		oo := &outputobject.OutputObject{GeomKind: outputobject.CachedPolygon, LayerID: layerID, ObjectID: uint64(idx), Attrs: attrs, Body: body}
		bound := v.Bound()
		index.AddByBbox(oo, geo.Box{Min: geo.Point{X: bound.Min[0], Y: bound.Min[1]}, Max: geo.Point{X: bound.Max[0], Y: bound.Max[1]}})

	case orb.MultiPolygon:
		oo := &outputobject.OutputObject{GeomKind: outputobject.CachedPolygon, LayerID: layerID, ObjectID: uint64(idx), Attrs: attrs, Body: body}
		bound := v.Bound()
		index.AddByBbox(oo, geo.Box{Min: geo.Point{X: bound.Min[0], Y: bound.Min[1]}, Max: geo.Point{X: bound.Max[0], Y: bound.Max[1]}})
	}
}

// convertShape converts a go-shp Shape to an orb.Geometry in projected-plane
// (lon, latp) coordinates, applying point dedup and polygon winding/spike
// correction. Returns (nil, nil) for shape types carrying no renderable
// geometry (e.g. a null shape).
func convertShape(shape shp.Shape) (orb.Geometry, error) {
	switch s := shape.(type) {
	case *shp.Point:
		return orb.Point{s.X, geo.Lat(s.Y)}, nil

	case *shp.PolyLine:
		parts := splitParts(s.Points, s.Parts)
		lines := make(orb.MultiLineString, 0, len(parts))
		for _, pts := range parts {
			ls := dedupLineString(toLineString(pts))
			if len(ls) >= 2 {
				lines = append(lines, ls)
			}
		}
		switch len(lines) {
		case 0:
			return nil, nil
		case 1:
			return lines[0], nil
		default:
			return lines, nil
		}

	case *shp.Polygon:
		parts := splitParts(s.Points, s.Parts)
		var rings []orb.Ring
		for _, pts := range parts {
			ring := dedupLineString(toLineString(pts))
			ring = closeRing(ring)
			if len(ring) < 4 {
				continue // degenerate ring after dedup: drop it
			}
			ring = removeSpikes(ring)
			if len(ring) < 4 {
				continue
			}
			rings = append(rings, orb.Ring(ring))
		}
		poly := assemblePolygonRings(rings)
		if len(poly) == 0 {
			return nil, nil
		}
		return poly, nil

	case *shp.MultiPoint:
		mp := make(orb.MultiPoint, 0, len(s.Points))
		for _, p := range s.Points {
			mp = append(mp, orb.Point{p.X, geo.Lat(p.Y)})
		}
		if len(mp) == 0 {
			return nil, nil
		}
		return mp, nil

	default:
		return nil, fmt.Errorf("unsupported shape type %T", shape)
	}
}

func toLineString(pts []shp.Point) orb.LineString {
	ls := make(orb.LineString, 0, len(pts))
	for _, p := range pts {
		ls = append(ls, orb.Point{p.X, geo.Lat(p.Y)})
	}
	return ls
}

// splitParts divides a shapefile's flat point list into per-ring/per-part
// slices using the Parts start-index table (go-shp stores all points in one
// slice with Parts giving each ring's starting offset).
func splitParts(points []shp.Point, parts []int32) [][]shp.Point {
	if len(parts) <= 1 {
		return [][]shp.Point{points}
	}
	out := make([][]shp.Point, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		out = append(out, points[start:end])
	}
	return out
}

// dedupLineString drops points within dedupEpsilon (projected-plane degrees)
// of their predecessor, a cheap filter against degenerate shapefile
// digitizing artifacts.
func dedupLineString(ls orb.LineString) orb.LineString {
	if len(ls) == 0 {
		return ls
	}
	out := make(orb.LineString, 0, len(ls))
	out = append(out, ls[0])
	for i := 1; i < len(ls); i++ {
		prev := out[len(out)-1]
		if dist(prev, ls[i]) > dedupEpsilon*dedupEpsilon {
			out = append(out, ls[i])
		}
	}
	return out
}

func dist(a, b orb.Point) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return dx*dx + dy*dy // squared distance is sufficient for a threshold test
}

func closeRing(ls orb.LineString) orb.LineString {
	if len(ls) == 0 {
		return ls
	}
	if ls[0] != ls[len(ls)-1] {
		ls = append(ls, ls[0])
	}
	return ls
}

// removeSpikes drops a vertex that immediately backtracks onto its
// predecessor's predecessor (a zero-area "spike"), together with the spike
// tip between them, a common shapefile digitizing artifact that otherwise
// produces degenerate simplification output. Consecutive repeated vertices
// are dropped as well.
func removeSpikes(ring orb.LineString) orb.LineString {
	if len(ring) < 4 {
		return ring
	}
	out := make(orb.LineString, 0, len(ring))
	for _, p := range ring[:len(ring)-1] {
		n := len(out)
		if n >= 1 && p == out[n-1] {
			continue
		}
		if n >= 2 && p == out[n-2] {
			out = out[:n-1] // drop the spike tip; p repeats the vertex before it
			continue
		}
		out = append(out, p)
	}
	return closeRing(out)
}

// assemblePolygonRings classifies rings by signed area (positive = outer,
// CCW under the GeoJSON right-hand rule) and groups every hole under the
// nearest preceding outer ring, matching shapefile's part ordering
// convention (an outer ring is immediately followed by its holes).
func assemblePolygonRings(rings []orb.Ring) orb.Polygon {
	var poly orb.Polygon
	for _, r := range rings {
		area := ringArea(r)
		outer := area > 0
		if outer {
			poly = append(poly, correctedRing(r, true))
		} else if len(poly) > 0 {
			poly = append(poly, correctedRing(r, false))
		} else {
			// A hole with no preceding outer: shapefiles occasionally
			// encode a single ring with reversed winding; treat it as its
			// own outer rather than dropping the geometry.
			poly = append(poly, correctedRing(r, true))
		}
	}
	return poly
}

func ringArea(r orb.Ring) float64 {
	var sum float64
	n := len(r)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += r[i][0]*r[j][1] - r[j][0]*r[i][1]
	}
	return sum / 2
}

func correctedRing(r orb.Ring, outer bool) orb.Ring {
	area := ringArea(r)
	isCCW := area > 0
	if outer && !isCCW {
		reverse(r)
	} else if !outer && isCCW {
		reverse(r)
	}
	return r
}

func reverse(r orb.Ring) {
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
}
