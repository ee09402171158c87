// Package layerdef holds the per-layer configuration (zoom visibility,
// simplification parameters, shapefile source binding) and the ordering of
// layers into MVT-layer groups, per spec §3's LayerDef/LayerOrder types.
package layerdef

import "fmt"

// LayerDef is one configured map layer: either a script-emitted layer (the
// common case) or a shapefile-backed one (Source non-empty).
type LayerDef struct {
	ID   uint8
	Name string

	MinZoom int
	MaxZoom int

	// SimplifyBelow is the zoom at and above which no simplification is
	// applied (simplify_level becomes 0).
	SimplifyBelow int
	// SimplifyLevel is the base Douglas-Peucker epsilon, in projected-plane
	// degrees, used when SimplifyLength is zero.
	SimplifyLevel float64
	// SimplifyLength, if non-zero, is a tolerance in meters converted to
	// degrees at the tile's mid-latitude instead of SimplifyLevel.
	SimplifyLength float64
	// SimplifyRatio scales the epsilon per zoom level below SimplifyBelow.
	SimplifyRatio float64

	// WriteTo, if non-empty, names another layer whose MVT output this
	// layer's features are merged into instead of emitting their own MVT
	// layer (spec's write_to config key).
	WriteTo string

	// Source, if non-empty, is the shapefile path that makes this a
	// shapefile-backed layer rather than a script-emitted one.
	Source        string
	SourceColumns []string
	Indexed       bool
	IndexColumn   string

	// AttributeMap records, for diagnostics/config-export, the type tag
	// the script host observed for each attribute key it ever attached
	// under this layer (spec: "record the key/type pair in the layer's
	// metadata map").
	AttributeMap map[string]string
}

// Validate checks the invariants spec §3 places on a LayerDef:
// min_zoom <= max_zoom and simplify_below <= base_zoom+1.
func (d *LayerDef) Validate(baseZoom int) error {
	if d.MinZoom > d.MaxZoom {
		return fmt.Errorf("layer %q: min_zoom (%d) > max_zoom (%d)", d.Name, d.MinZoom, d.MaxZoom)
	}
	if d.SimplifyBelow > baseZoom+1 {
		return fmt.Errorf("layer %q: simplify_below (%d) > base_zoom+1 (%d)", d.Name, d.SimplifyBelow, baseZoom+1)
	}
	return nil
}

// RecordAttribute registers the type tag observed for key, lazily
// allocating the map.
func (d *LayerDef) RecordAttribute(key, typeTag string) {
	if d.AttributeMap == nil {
		d.AttributeMap = make(map[string]string)
	}
	d.AttributeMap[key] = typeTag
}

// SimplifyLevelAt computes the per-zoom simplification epsilon per spec
// §8's formula: 0 at or above simplify_below; otherwise the configured
// level (or a meter-derived level) scaled by simplify_ratio raised to the
// number of zoom steps below simplify_below-1.
func (d *LayerDef) SimplifyLevelAt(zoom int, metersToDeg func(meters float64) float64) float64 {
	if zoom >= d.SimplifyBelow {
		return 0
	}
	base := d.SimplifyLevel
	if d.SimplifyLength > 0 && metersToDeg != nil {
		base = metersToDeg(d.SimplifyLength)
	}
	steps := (d.SimplifyBelow - 1) - zoom
	level := base
	for i := 0; i < steps; i++ {
		level *= d.SimplifyRatio
	}
	return level
}

// Group is one entry of a LayerOrder: an MVT-layer-emitting anchor plus any
// layers merged into it via write_to.
type Group struct {
	AnchorID uint8
	MemberID []uint8 // includes AnchorID first, then merged members in add order
}

// Order sequences layers into Groups; every configured layer appears in
// exactly one group (spec §3's LayerOrder invariant).
type Order struct {
	groups    []*Group
	anchorIdx map[uint8]int // layer id -> index into groups, for both anchors and members
}

// NewOrder creates an empty layer order.
func NewOrder() *Order {
	return &Order{anchorIdx: make(map[uint8]int)}
}

// AddAnchor registers id as the anchor of a new group. Must be called
// before any AddMember referencing it.
func (o *Order) AddAnchor(id uint8) {
	o.groups = append(o.groups, &Group{AnchorID: id, MemberID: []uint8{id}})
	o.anchorIdx[id] = len(o.groups) - 1
}

// AddMember merges id into the group anchored by anchorID (write_to
// resolution). Returns an error if anchorID has no registered group.
func (o *Order) AddMember(anchorID, id uint8) error {
	gi, ok := o.anchorIdx[anchorID]
	if !ok {
		return fmt.Errorf("write_to target layer id %d has no group", anchorID)
	}
	o.groups[gi].MemberID = append(o.groups[gi].MemberID, id)
	o.anchorIdx[id] = gi
	return nil
}

// Groups returns the groups in registration order.
func (o *Order) Groups() []*Group {
	return o.groups
}

// GroupFor returns the group containing layer id, or nil if unregistered.
func (o *Order) GroupFor(id uint8) *Group {
	gi, ok := o.anchorIdx[id]
	if !ok {
		return nil
	}
	return o.groups[gi]
}
