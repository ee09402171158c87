package tileworker

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/project"
	"github.com/paulmach/orb/simplify"

	"github.com/tilemaker-go/tilemaker/internal/geo"
	"github.com/tilemaker-go/tilemaker/internal/layerdef"
	"github.com/tilemaker-go/tilemaker/internal/outputobject"
	"github.com/tilemaker-go/tilemaker/internal/tiledata"
	"github.com/tilemaker-go/tilemaker/internal/tilemakererr"
)

// Options configures one tile's render, the per-tile subset of spec §6's
// config keys the worker needs.
type Options struct {
	Extent     float64 // MVT grid extent, spec fixes this at 4096
	IncludeIDs bool
	MVTVersion uint32
}

// DefaultOptions matches spec §4.6's fixed defaults.
func DefaultOptions() Options {
	return Options{Extent: 4096, MVTVersion: 2}
}

// RenderTile builds the MVT layers for one tile: for every group in order,
// gathers its member layers' objects from objs (already sorted and deduped
// by the tile data facade), coalesces same-attribute runs, simplifies,
// converts latp back to geographic latitude, clips to the tile and projects
// into tile coordinates. The layers are returned unencoded; Encode
// marshals them. Per-object materialization errors are logged by
// onError and the offending feature is dropped, matching spec §7's
// per-tile error policy ("logged + drop feature", tile generation
// continues).
func RenderTile(tile geo.TileCoord, objs []*outputobject.OutputObject, order *layerdef.Order, defs map[uint8]*layerdef.LayerDef, opts Options, onError func(error)) (mvt.Layers, error) {
	var layers mvt.Layers

	for _, group := range order.Groups() {
		anchor := defs[group.AnchorID]
		if anchor == nil {
			continue
		}
		fc := geojson.NewFeatureCollection()

		for _, memberID := range group.MemberID {
			def := defs[memberID]
			if def == nil {
				continue
			}
			if int(tile.Z) < def.MinZoom || int(tile.Z) > def.MaxZoom {
				continue
			}

			sub := tiledata.GetObjectsAtSubLayer(objs, memberID)
			renderLayerObjects(sub, def, tile, opts, fc, onError)
		}

		if len(fc.Features) == 0 {
			continue
		}

		layer := mvt.NewLayer(anchor.Name, fc)
		layer.Version = opts.MVTVersion
		layer.Extent = int(opts.Extent)

		tileBound := maptile.New(tile.X, tile.Y, maptile.Zoom(tile.Z)).Bound()
		layer.Clip(tileBound)
		layer.ProjectToTile(maptile.New(tile.X, tile.Y, maptile.Zoom(tile.Z)))
		layer.RemoveEmpty(1.0, 1.0)

		if len(layer.Features) == 0 {
			continue
		}
		layers = append(layers, layer)
	}

	return layers, nil
}

func renderLayerObjects(objs []*outputobject.OutputObject, def *layerdef.LayerDef, tile geo.TileCoord, opts Options, fc *geojson.FeatureCollection, onError func(error)) {
	runs := CoalesceRuns(objs, func(o *outputobject.OutputObject) int {
		g, err := o.Geometry()
		if err != nil || g == nil {
			return 0
		}
		return countVertices(g)
	})

	midLatp := tileMidLatp(tile)
	epsilon := def.SimplifyLevelAt(int(tile.Z), func(m float64) float64 { return geo.MeterToDeg(m, midLatp) })

	for _, run := range runs {
		geomKind := run.GeomKind
		switch {
		case geomKind == outputobject.Point || geomKind == outputobject.CachedPoint || geomKind == outputobject.Centroid:
			for _, o := range run.Objects {
				g, err := o.Geometry()
				if err != nil {
					onError(wrapTileErr(tile, o, err))
					continue
				}
				if g == nil {
					continue
				}
				appendFeature(fc, g, o, opts)
			}

		case geomKind.IsPolygonal():
			polys := materializePolygons(run.Objects, onError, tile)
			if len(polys) == 0 {
				continue
			}
			merged := UnionPolygons(polys)
			if epsilon > 0 {
				merged = simplifyMultiPolygon(merged, epsilon)
			}
			if geomLength(merged) == 0 {
				continue
			}
			appendFeature(fc, merged, run.Objects[0], opts)

		case geomKind.IsLinear():
			lines := materializeLines(run.Objects, onError, tile)
			if len(lines) == 0 {
				continue
			}
			merged := UnionLineStrings(lines)
			if epsilon > 0 {
				merged = simplifyMultiLineString(merged, epsilon)
			}
			if geomLength(merged) == 0 {
				continue
			}
			appendFeature(fc, merged, run.Objects[0], opts)
		}
	}
}

func appendFeature(fc *geojson.FeatureCollection, g orb.Geometry, src *outputobject.OutputObject, opts Options) {
	// Geometry is held in (lon, latp); maptile bounds and the mvt tile
	// projection work in geographic (lon, lat), so convert a copy first.
	g = project.Geometry(orb.Clone(g), func(p orb.Point) orb.Point {
		return orb.Point{p[0], geo.LatpToLat(p[1])}
	})
	f := geojson.NewFeature(g)
	for _, a := range src.Attrs {
		f.Properties[a.Key] = attrValueToAny(a.Value)
	}
	if opts.IncludeIDs {
		f.ID = float64(src.ObjectID)
	}
	fc.Append(f)
}

func attrValueToAny(v outputobject.Value) any {
	switch v.Kind {
	case outputobject.KindString:
		return v.Str
	case outputobject.KindFloat:
		return v.F
	case outputobject.KindBool:
		return v.B
	case outputobject.KindInt:
		return v.I
	default:
		return nil
	}
}

func materializePolygons(objs []*outputobject.OutputObject, onError func(error), tile geo.TileCoord) []orb.Polygon {
	var out []orb.Polygon
	for _, o := range objs {
		g, err := o.Geometry()
		if err != nil {
			onError(wrapTileErr(tile, o, err))
			continue
		}
		switch v := g.(type) {
		case orb.Polygon:
			out = append(out, v)
		case orb.MultiPolygon:
			out = append(out, v...)
		}
	}
	return out
}

func materializeLines(objs []*outputobject.OutputObject, onError func(error), tile geo.TileCoord) []orb.LineString {
	var out []orb.LineString
	for _, o := range objs {
		g, err := o.Geometry()
		if err != nil {
			onError(wrapTileErr(tile, o, err))
			continue
		}
		switch v := g.(type) {
		case orb.LineString:
			out = append(out, v)
		case orb.MultiLineString:
			out = append(out, v...)
		}
	}
	return out
}

func wrapTileErr(tile geo.TileCoord, o *outputobject.OutputObject, err error) error {
	return &tilemakererr.TileError{Z: uint32(tile.Z), X: tile.X, Y: tile.Y, ObjectID: o.ObjectID, Err: err}
}

func simplifyMultiPolygon(mp orb.MultiPolygon, epsilon float64) orb.MultiPolygon {
	simplifier := simplify.DouglasPeucker(epsilon)
	return simplifier.MultiPolygon(mp)
}

func simplifyMultiLineString(mls orb.MultiLineString, epsilon float64) orb.MultiLineString {
	simplifier := simplify.DouglasPeucker(epsilon)
	return simplifier.MultiLineString(mls)
}

func countVertices(g orb.Geometry) int {
	switch v := g.(type) {
	case orb.Point:
		return 1
	case orb.LineString:
		return len(v)
	case orb.Polygon:
		n := 0
		for _, r := range v {
			n += len(r)
		}
		return n
	case orb.MultiPolygon:
		n := 0
		for _, p := range v {
			for _, r := range p {
				n += len(r)
			}
		}
		return n
	case orb.MultiLineString:
		n := 0
		for _, l := range v {
			n += len(l)
		}
		return n
	default:
		return 0
	}
}

func geomLength(g orb.Geometry) int {
	return countVertices(g)
}

func tileMidLatp(t geo.TileCoord) float64 {
	b := t.Bound()
	return (b.Min.Y + b.Max.Y) / 2
}
