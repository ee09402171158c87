package script

import (
	"errors"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"github.com/tilemaker-go/tilemaker/internal/geo"
	"github.com/tilemaker-go/tilemaker/internal/layerdef"
	"github.com/tilemaker-go/tilemaker/internal/osmdecode"
	"github.com/tilemaker-go/tilemaker/internal/osmstore"
	"github.com/tilemaker-go/tilemaker/internal/outputobject"
	"github.com/tilemaker-go/tilemaker/internal/shapefile"
	"github.com/tilemaker-go/tilemaker/internal/tileindex"
	"github.com/tilemaker-go/tilemaker/internal/tilemakererr"
)

// Extractor drives Program across an OSM PBF file's two ingest passes and
// buckets every emitted Feature into a tileindex.Index (spec §4.3).
type Extractor struct {
	Store      *osmstore.Store
	Index      *tileindex.Index
	Shapefiles *shapefile.Set
	Layers     map[string]*layerdef.LayerDef
	LayerIDs   map[string]uint8
	Program    Program
	Log        *logrus.Logger
	BaseZoom   uint8

	relationMembers map[osmstore.WayID]struct{}

	// nodeKeys is Program.NodeKeys() as a lookup set, precomputed once. Nil
	// means "consider every tagged node" (NodeKeys() returned nothing).
	nodeKeys map[string]struct{}
}

// NewExtractor builds an Extractor ready for Preprocess then Process.
func NewExtractor(store *osmstore.Store, index *tileindex.Index, shapefiles *shapefile.Set, layers map[string]*layerdef.LayerDef, layerIDs map[string]uint8, program Program, baseZoom uint8, log *logrus.Logger) *Extractor {
	e := &Extractor{
		Store: store, Index: index, Shapefiles: shapefiles, Layers: layers, LayerIDs: layerIDs,
		Program: program, Log: log, BaseZoom: baseZoom,
		relationMembers: make(map[osmstore.WayID]struct{}),
	}
	if keys := program.NodeKeys(); len(keys) > 0 {
		e.nodeKeys = make(map[string]struct{}, len(keys))
		for _, k := range keys {
			e.nodeKeys[k] = struct{}{}
		}
	}
	return e
}

// nodeSignificant reports whether tags is worth priming a Context for, per
// Program.NodeKeys()'s "only these keys matter" hint (spec §6's node_keys
// contract). With no hint given (nodeKeys nil), every tagged node is
// significant.
func (e *Extractor) nodeSignificant(tags map[string]string) bool {
	if e.nodeKeys == nil {
		return true
	}
	for k := range tags {
		if _, ok := e.nodeKeys[k]; ok {
			return true
		}
	}
	return false
}

// Preprocess is the first ingest pass: a cheap scan over relations only,
// recording which ways are members of a multipolygon relation so the
// processing pass can suppress their standalone emission (spec's two-pass
// policy — "relation bodies are only fully materialized in the second
// pass").
func (e *Extractor) Preprocess(path string) error {
	return osmdecode.DecodeFile(path, osmdecode.Callbacks{
		Relation: func(r osmdecode.Relation) error {
			if r.Tags["type"] != "multipolygon" {
				return nil
			}
			for _, m := range r.Members {
				if m.Type == "way" {
					e.relationMembers[osmstore.WayID(m.ID)] = struct{}{}
				}
			}
			return nil
		},
	})
}

// Process is the second ingest pass: stores every node and way, calls
// Program for every tagged node that passes the NodeKeys filter, every
// non-relation-member tagged way, and every multipolygon relation, and
// flushes whatever each call emits into the tile index.
func (e *Extractor) Process(path string) error {
	ctx := newContext(e.Store, e.Shapefiles, e.Layers)

	return osmdecode.DecodeFile(path, osmdecode.Callbacks{
		Node: func(n osmdecode.Node) error {
			id := osmstore.NodeID(n.ID)
			e.Store.Nodes.Insert(id, geo.NewLatpLon(n.Lat, n.Lon))
			if len(n.Tags) == 0 || !e.nodeSignificant(n.Tags) {
				return nil
			}
			ctx.primeNode(n.ID, n.Tags, id)
			e.run(ctx, func() { e.Program.ProcessNode(ctx) })
			e.flush(ctx)
			return nil
		},

		Way: func(w osmdecode.Way) error {
			id := osmstore.WayID(w.ID)
			nodeIDs := make([]osmstore.NodeID, len(w.NodeIDs))
			for i, n := range w.NodeIDs {
				nodeIDs[i] = osmstore.NodeID(n)
			}
			e.Store.Ways.Insert(id, nodeIDs)

			if _, isMember := e.relationMembers[id]; isMember {
				return nil // emitted only as part of its relation, if any
			}
			if len(w.Tags) == 0 {
				return nil
			}
			ctx.primeWay(w.ID, w.Tags, id, nodeIDs)
			e.run(ctx, func() { e.Program.ProcessWay(ctx) })
			e.flush(ctx)
			return nil
		},

		Relation: func(r osmdecode.Relation) error {
			if r.Tags["type"] != "multipolygon" {
				if e.Log != nil {
					e.Log.WithField("relation", r.ID).Debug("skipping non-multipolygon relation")
				}
				return nil
			}

			var outer, inner []osmstore.WayID
			for _, m := range r.Members {
				if m.Type != "way" {
					continue
				}
				if m.Role == "inner" {
					inner = append(inner, osmstore.WayID(m.ID))
				} else {
					outer = append(outer, osmstore.WayID(m.ID))
				}
			}
			e.Store.Relations.Insert(e.Store.Relations.NextSyntheticID(), outer, inner)

			ctx.primeRelation(r.ID, r.Tags, outer, inner)
			e.run(ctx, func() { e.Program.ProcessRelation(ctx) })
			e.flush(ctx)
			return nil
		},
	})
}

// run invokes fn with the fault-handling policy spec §4.3 requires: a
// script-level panic is caught, logged, and the entity is skipped; a
// NodeMissing encountered while materializing the current geometry is
// surfaced as a warning rather than aborting the whole run.
func (e *Extractor) run(ctx *Context, fn func()) {
	defer func() {
		if r := recover(); r != nil && e.Log != nil {
			e.Log.WithField("entity", ctx.objID).WithField("panic", r).Error("script error, skipping entity")
		}
	}()
	fn()

	if ctx.geomErr != nil && e.Log != nil {
		var missing *tilemakererr.NodeMissing
		if errors.As(ctx.geomErr, &missing) {
			e.Log.WithField("entity", ctx.objID).WithError(ctx.geomErr).Warn("missing node during way processing")
		}
	}
}

// flush assigns OutputObjects for every feature ctx.Program emitted this
// entity, buckets each into the tile index, then resets ctx to IDLE.
func (e *Extractor) flush(ctx *Context) {
	for _, f := range ctx.Emitted() {
		layerID, ok := e.LayerIDs[f.LayerName]
		if !ok {
			continue
		}
		oo := &outputobject.OutputObject{
			GeomKind: f.GeomKind,
			LayerID:  layerID,
			ObjectID: uint64(ctx.objID),
			Attrs:    outputobject.NewAttributes(f.Attrs),
			Body:     staticBody{f.Geometry},
		}
		if e.Log != nil {
			e.Log.WithFields(logrus.Fields{"layer": f.LayerName, "id": ctx.objID, "attributes": len(f.Attrs)}).Debug("emitted feature")
		}
		e.bucket(oo, f.Geometry)
	}
	ctx.reset()
}

// bucket inserts oo into the tile index using the insertion policy that
// matches its geometry's shape (spec §4.3's bucketing table).
func (e *Extractor) bucket(oo *outputobject.OutputObject, g orb.Geometry) {
	switch v := g.(type) {
	case orb.Point:
		e.Index.Add(geo.LonLatpToTile(v[0], v[1], e.BaseZoom), oo)
	case orb.LineString:
		e.Index.AddByPolyline(oo, v)
	case orb.Polygon:
		for _, ring := range v {
			e.Index.AddByPolygonOutline(oo, ring)
		}
	case orb.MultiPolygon:
		e.Index.AddByMultiPolygon(oo, v)
	}
}

// staticBody wraps a geometry the script host already fully materialized
// (it never needs to be rebuilt from the OSM store again).
type staticBody struct{ g orb.Geometry }

func (b staticBody) Geometry() (orb.Geometry, error) { return b.g, nil }
