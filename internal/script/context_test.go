package script

import (
	"testing"

	"github.com/tilemaker-go/tilemaker/internal/geo"
	"github.com/tilemaker-go/tilemaker/internal/layerdef"
	"github.com/tilemaker-go/tilemaker/internal/osmstore"
	"github.com/tilemaker-go/tilemaker/internal/shapefile"
)

func newTestContext() (*Context, *osmstore.Store) {
	store := osmstore.New()
	layers := map[string]*layerdef.LayerDef{
		"places": {ID: 0, Name: "places"},
	}
	return newContext(store, shapefile.NewSet(), layers), store
}

func TestContextStateTransitionsIdlePrimedEmitted(t *testing.T) {
	ctx, store := newTestContext()
	if ctx.state != stateIdle {
		t.Fatalf("new context should start IDLE, got %v", ctx.state)
	}

	store.Nodes.Insert(1, geo.NewLatpLon(1, 2))
	ctx.primeNode(1, map[string]string{"amenity": "cafe"}, 1)
	if ctx.state != statePrimed {
		t.Fatalf("primeNode should move to PRIMED, got %v", ctx.state)
	}
	if ctx.kind != KindNode || ctx.ID() != 1 {
		t.Fatalf("unexpected prime result: kind=%v id=%d", ctx.kind, ctx.ID())
	}

	ctx.Layer("places", false)
	if ctx.state != stateEmitted {
		t.Fatalf("Layer should move to EMITTED, got %v", ctx.state)
	}
	if len(ctx.Emitted()) != 1 {
		t.Fatalf("expected 1 emitted feature, got %d", len(ctx.Emitted()))
	}

	ctx.reset()
	if ctx.state != stateIdle {
		t.Fatalf("reset should return to IDLE, got %v", ctx.state)
	}
	if len(ctx.Emitted()) != 0 {
		t.Fatalf("reset should clear emitted features, got %d", len(ctx.Emitted()))
	}
}

func TestContextHoldsAndFind(t *testing.T) {
	ctx, store := newTestContext()
	store.Nodes.Insert(5, geo.NewLatpLon(10, 20))
	ctx.primeNode(5, map[string]string{"shop": "bakery"}, 5)

	if !ctx.Holds("shop") {
		t.Error("expected Holds(shop) to be true")
	}
	if ctx.Holds("missing") {
		t.Error("expected Holds(missing) to be false")
	}
	if got := ctx.Find("shop"); got != "bakery" {
		t.Errorf("Find(shop) = %q, want bakery", got)
	}
	if got := ctx.Find("missing"); got != "" {
		t.Errorf("Find(missing) = %q, want empty", got)
	}
}

func TestContextLayerNodeEmitsPoint(t *testing.T) {
	ctx, store := newTestContext()
	store.Nodes.Insert(1, geo.NewLatpLon(1, 2))
	ctx.primeNode(1, map[string]string{}, 1)
	ctx.Layer("places", true) // isArea is irrelevant for nodes

	got := ctx.Emitted()
	if len(got) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(got))
	}
	if got[0].GeomKind.String() != "point" {
		t.Errorf("expected point geom kind for node, got %v", got[0].GeomKind)
	}
}

func TestContextLayerWayAreaVsLinestring(t *testing.T) {
	ctx, store := newTestContext()
	store.Nodes.Insert(1, geo.NewLatpLon(0, 0))
	store.Nodes.Insert(2, geo.NewLatpLon(0, 1))
	store.Ways.Insert(10, []osmstore.NodeID{1, 2})

	ctx.primeWay(10, map[string]string{}, 10, []osmstore.NodeID{1, 2})
	ctx.Layer("places", false)
	if ctx.Emitted()[0].GeomKind.String() != "linestring" {
		t.Errorf("expected linestring for isArea=false way, got %v", ctx.Emitted()[0].GeomKind)
	}

	ctx.reset()
	ctx.primeWay(10, map[string]string{}, 10, []osmstore.NodeID{1, 2})
	ctx.Layer("places", true)
	if ctx.Emitted()[0].GeomKind.String() != "polygon" {
		t.Errorf("expected polygon for isArea=true way, got %v", ctx.Emitted()[0].GeomKind)
	}
}

func TestContextLayerSkipsOnMissingGeometry(t *testing.T) {
	ctx, _ := newTestContext()
	// way references nodes that were never inserted: geometry() fails with NodeMissing.
	ctx.primeWay(10, map[string]string{}, 10, []osmstore.NodeID{1, 2})
	ctx.Layer("places", false)
	if len(ctx.Emitted()) != 0 {
		t.Errorf("expected no feature emitted when geometry can't be built, got %d", len(ctx.Emitted()))
	}
	if ctx.geomErr == nil {
		t.Error("expected geomErr to be set")
	}
}

func TestContextLayerAsCentroidEmptyGeometryEmitsNothing(t *testing.T) {
	ctx, _ := newTestContext()
	// a way with no nodes builds an empty (non-nil) linestring without error.
	ctx.primeWay(10, map[string]string{}, 10, nil)
	ctx.LayerAsCentroid("places")
	if len(ctx.Emitted()) != 0 {
		t.Errorf("expected no feature emitted for empty geometry, got %d", len(ctx.Emitted()))
	}
}

func TestContextLayerAsCentroidEmitsPoint(t *testing.T) {
	ctx, store := newTestContext()
	store.Nodes.Insert(1, geo.NewLatpLon(0, 0))
	store.Nodes.Insert(2, geo.NewLatpLon(0, 1))
	store.Nodes.Insert(3, geo.NewLatpLon(1, 1))
	store.Nodes.Insert(4, geo.NewLatpLon(1, 0))
	ctx.primeWay(10, map[string]string{}, 10, []osmstore.NodeID{1, 2, 3, 4, 1})
	ctx.LayerAsCentroid("places")

	got := ctx.Emitted()
	if len(got) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(got))
	}
	if got[0].GeomKind.String() != "centroid" {
		t.Errorf("expected centroid geom kind, got %v", got[0].GeomKind)
	}
}

func TestContextFindIntersectingAndIntersectsAlwaysEmptyForRelations(t *testing.T) {
	ctx, store := newTestContext()
	store.Nodes.Insert(1, geo.NewLatpLon(0, 0))
	store.Nodes.Insert(2, geo.NewLatpLon(0, 1))
	store.Nodes.Insert(3, geo.NewLatpLon(1, 1))
	store.Nodes.Insert(4, geo.NewLatpLon(1, 0))
	store.Ways.Insert(100, []osmstore.NodeID{1, 2, 3, 4, 1})

	ctx.primeRelation(1, map[string]string{"type": "multipolygon"}, []osmstore.WayID{100}, nil)

	if got := ctx.FindIntersecting("buildings"); got != nil {
		t.Errorf("expected nil FindIntersecting for relation, got %v", got)
	}
	if ctx.Intersects("buildings") {
		t.Error("expected Intersects to be false for relation")
	}
}

func TestContextAttributeAttachesToLastEmittedFeature(t *testing.T) {
	ctx, store := newTestContext()
	store.Nodes.Insert(1, geo.NewLatpLon(1, 2))
	ctx.primeNode(1, map[string]string{}, 1)
	ctx.Layer("places", false)
	ctx.Attribute("name", "Cafe")
	ctx.AttributeNumeric("height", 12.5)
	ctx.AttributeBoolean("open", true)

	f := ctx.Emitted()[0]
	if v, ok := f.Attrs["name"]; !ok || v.Str != "Cafe" {
		t.Errorf("expected name=Cafe, got %+v", f.Attrs["name"])
	}
	if v, ok := f.Attrs["height"]; !ok || v.F != 12.5 {
		t.Errorf("expected height=12.5, got %+v", f.Attrs["height"])
	}
	if v, ok := f.Attrs["open"]; !ok || v.B != true {
		t.Errorf("expected open=true, got %+v", f.Attrs["open"])
	}

	def := ctx.layers["places"]
	if def.AttributeMap["name"] != "string" || def.AttributeMap["height"] != "float" || def.AttributeMap["open"] != "boolean" {
		t.Errorf("expected attribute types recorded on layer def, got %+v", def.AttributeMap)
	}
}

func TestContextAttributeNoopBeforeEmit(t *testing.T) {
	ctx, store := newTestContext()
	store.Nodes.Insert(1, geo.NewLatpLon(1, 2))
	ctx.primeNode(1, map[string]string{}, 1)
	ctx.Attribute("name", "nothing emitted yet")
	if len(ctx.Emitted()) != 0 {
		t.Error("expected no features before Layer is called")
	}
}
