package script

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/tilemaker-go/tilemaker/internal/geo"
	"github.com/tilemaker-go/tilemaker/internal/layerdef"
	"github.com/tilemaker-go/tilemaker/internal/osmstore"
	"github.com/tilemaker-go/tilemaker/internal/outputobject"
	"github.com/tilemaker-go/tilemaker/internal/shapefile"
)

type state uint8

const (
	stateIdle state = iota
	statePrimed
	stateEmitted
)

// Feature is one OutputObject a Program emitted via Context.Layer /
// LayerAsCentroid, still holding mutable Attrs until the entity's
// processing finishes and FlushToTileIndex runs.
type Feature struct {
	LayerName string
	GeomKind  outputobject.GeomKind
	Geometry  orb.Geometry
	Attrs     map[string]outputobject.Value
}

// Context is the per-entity state machine and host API surface described
// in spec §4.3: IDLE -> PRIMED -> (run Program) -> EMITTED ->
// FlushToTileIndex -> IDLE. One Context is reused across entities by the
// Extractor; Reset returns it to IDLE.
type Context struct {
	store      *osmstore.Store
	shapefiles *shapefile.Set
	layers     map[string]*layerdef.LayerDef

	state state
	kind  EntityKind
	objID int64
	tags  map[string]string

	node  osmstore.NodeID
	way   osmstore.WayID
	nodes []osmstore.NodeID
	outer []osmstore.WayID
	inner []osmstore.WayID

	geomCache orb.Geometry
	geomErr   error
	geomBuilt bool

	emitted []Feature
}

func newContext(store *osmstore.Store, shapefiles *shapefile.Set, layers map[string]*layerdef.LayerDef) *Context {
	return &Context{store: store, shapefiles: shapefiles, layers: layers}
}

// primeNode resets ctx to PRIMED for a node entity.
func (c *Context) primeNode(id int64, tags map[string]string, node osmstore.NodeID) {
	c.reset()
	c.kind, c.objID, c.tags, c.node = KindNode, id, tags, node
	c.state = statePrimed
}

// primeWay resets ctx to PRIMED for a way entity.
func (c *Context) primeWay(id int64, tags map[string]string, way osmstore.WayID, nodes []osmstore.NodeID) {
	c.reset()
	c.kind, c.objID, c.tags, c.way, c.nodes = KindWay, id, tags, way, nodes
	c.state = statePrimed
}

// primeRelation resets ctx to PRIMED for a multipolygon relation entity.
func (c *Context) primeRelation(id int64, tags map[string]string, outer, inner []osmstore.WayID) {
	c.reset()
	c.kind, c.objID, c.tags, c.outer, c.inner = KindRelation, id, tags, outer, inner
	c.state = statePrimed
}

func (c *Context) reset() {
	c.geomCache, c.geomErr, c.geomBuilt = nil, nil, false
	c.emitted = nil
	c.state = stateIdle
}

// Emitted returns the features accumulated this entity (EMITTED state).
func (c *Context) Emitted() []Feature { return c.emitted }

// --- tag access ---

// ID returns the current entity's OSM id.
func (c *Context) ID() int64 { return c.objID }

// Holds reports whether the current entity has tag key.
func (c *Context) Holds(key string) bool {
	_, ok := c.tags[key]
	return ok
}

// Find returns the current entity's value for key, or "" if absent.
func (c *Context) Find(key string) string {
	return c.tags[key]
}

// --- geometry helpers ---

func (c *Context) geometry() (orb.Geometry, error) {
	if c.geomBuilt {
		return c.geomCache, c.geomErr
	}
	c.geomBuilt = true
	switch c.kind {
	case KindNode:
		ll, err := c.store.Nodes.At(c.node)
		if err != nil {
			c.geomErr = err
			return nil, err
		}
		p := geo.FromLatpLon(ll)
		c.geomCache = orb.Point{p.X, p.Y}
	case KindWay:
		ls, err := c.store.NodeListLinestring(c.nodes)
		if err != nil {
			c.geomErr = osmstore.WrapWayError(c.way, err)
			return nil, c.geomErr
		}
		c.geomCache = ls
	case KindRelation:
		c.geomCache = c.store.WayListMultipolygon(c.outer, c.inner)
	}
	return c.geomCache, c.geomErr
}

// IsClosed reports whether the current way's node list forms a closed
// ring (first and last node identical).
func (c *Context) IsClosed() bool {
	if c.kind != KindWay || len(c.nodes) < 2 {
		return false
	}
	return c.nodes[0] == c.nodes[len(c.nodes)-1]
}

// ScaleToMeter converts the current geometry's length/area units
// (projected-plane degrees) to meters, using the geometry's own
// approximate latitude for the degrees-to-meters conversion.
func (c *Context) ScaleToMeter() float64 {
	g, err := c.geometry()
	if err != nil || g == nil {
		return 0
	}
	mid := g.Bound().Center()[1]
	lat := geo.LatpToLat(mid)
	return 111320.0 * math.Cos(lat*math.Pi/180.0)
}

// ScaleToKm is ScaleToMeter / 1000.
func (c *Context) ScaleToKm() float64 { return c.ScaleToMeter() / 1000.0 }

// Area returns the current geometry's planar area in projected-plane
// degrees^2, scaled to square meters via ScaleToMeter.
func (c *Context) Area() float64 {
	g, err := c.geometry()
	if err != nil || g == nil {
		return 0
	}
	scale := c.ScaleToMeter()
	switch v := g.(type) {
	case orb.Polygon:
		return math.Abs(planar.Area(v)) * scale * scale
	case orb.MultiPolygon:
		var sum float64
		for _, p := range v {
			sum += math.Abs(planar.Area(p))
		}
		return sum * scale * scale
	default:
		return 0
	}
}

// Length returns the current geometry's planar length in meters.
func (c *Context) Length() float64 {
	g, err := c.geometry()
	if err != nil || g == nil {
		return 0
	}
	scale := c.ScaleToMeter()
	switch v := g.(type) {
	case orb.LineString:
		return planar.Length(v) * scale
	case orb.MultiLineString:
		var sum float64
		for _, ls := range v {
			sum += planar.Length(ls)
		}
		return sum * scale
	default:
		return 0
	}
}

// --- spatial queries ---

// FindIntersecting runs a shapefile find_intersecting query against the
// current geometry's bounding box. For relations this always returns nil
// (spec's documented limitation).
func (c *Context) FindIntersecting(layer string) []string {
	if c.kind == KindRelation || c.shapefiles == nil {
		return nil
	}
	l, ok := c.shapefiles.Layers[layer]
	if !ok {
		return nil
	}
	box, ok := c.currentBox()
	if !ok {
		return nil
	}
	var names []string
	for _, idx := range l.FindIntersecting(box) {
		if name, ok := l.Arena.Attrs(idx)["_index"]; ok {
			names = append(names, name)
		}
	}
	return names
}

// Intersects is the boolean-only counterpart of FindIntersecting. For
// relations this always returns false.
func (c *Context) Intersects(layer string) bool {
	if c.kind == KindRelation || c.shapefiles == nil {
		return false
	}
	l, ok := c.shapefiles.Layers[layer]
	if !ok {
		return false
	}
	box, ok := c.currentBox()
	if !ok {
		return false
	}
	return l.Intersects(box)
}

func (c *Context) currentBox() (geo.Box, bool) {
	g, err := c.geometry()
	if err != nil || g == nil {
		return geo.Box{}, false
	}
	b := g.Bound()
	return geo.Box{Min: geo.Point{X: b.Min[0], Y: b.Min[1]}, Max: geo.Point{X: b.Max[0], Y: b.Max[1]}}, true
}

// --- feature emission ---

// Layer emits a feature into the named map layer. geom_kind is POLYGON if
// the current entity is a way and isArea is true, LINESTRING if a way and
// isArea is false, POLYGON if a relation (multipolygon), POINT if a node.
func (c *Context) Layer(name string, isArea bool) {
	g, err := c.geometry()
	if err != nil || g == nil {
		return
	}
	var kind outputobject.GeomKind
	switch c.kind {
	case KindNode:
		kind = outputobject.Point
	case KindWay:
		if isArea {
			kind = outputobject.Polygon
		} else {
			kind = outputobject.Linestring
		}
	case KindRelation:
		kind = outputobject.Polygon
	}
	c.emitted = append(c.emitted, Feature{LayerName: name, GeomKind: kind, Geometry: g, Attrs: map[string]outputobject.Value{}})
	c.state = stateEmitted
}

// LayerAsCentroid emits a Point at the current geometry's centroid. If the
// geometry is empty, no feature is emitted (spec's fault-handling rule).
func (c *Context) LayerAsCentroid(name string) {
	g, err := c.geometry()
	if err != nil || g == nil {
		return
	}
	switch v := g.(type) {
	case orb.LineString:
		if len(v) == 0 {
			return
		}
	case orb.MultiPolygon:
		if len(v) == 0 {
			return
		}
	}
	centroid, _ := planar.CentroidArea(g)
	c.emitted = append(c.emitted, Feature{LayerName: name, GeomKind: outputobject.Centroid, Geometry: centroid, Attrs: map[string]outputobject.Value{}})
	c.state = stateEmitted
}

// attachAttribute attaches (key, value) to the most recently emitted
// feature and records the type tag in that layer's metadata map. A no-op
// if nothing has been emitted yet.
func (c *Context) attachAttribute(key string, v outputobject.Value, typeTag string) {
	if len(c.emitted) == 0 {
		return
	}
	f := &c.emitted[len(c.emitted)-1]
	f.Attrs[key] = v
	if def, ok := c.layers[f.LayerName]; ok {
		def.RecordAttribute(key, typeTag)
	}
}

// Attribute attaches a string attribute to the most recently emitted feature.
func (c *Context) Attribute(key, value string) { c.attachAttribute(key, outputobject.StringValue(value), "string") }

// AttributeNumeric attaches a float attribute to the most recently emitted feature.
func (c *Context) AttributeNumeric(key string, value float32) {
	c.attachAttribute(key, outputobject.FloatValue(value), "float")
}

// AttributeBoolean attaches a boolean attribute to the most recently emitted feature.
func (c *Context) AttributeBoolean(key string, value bool) {
	c.attachAttribute(key, outputobject.BoolValue(value), "boolean")
}
