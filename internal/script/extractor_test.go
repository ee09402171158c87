package script

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/tilemaker-go/tilemaker/internal/geo"
	"github.com/tilemaker-go/tilemaker/internal/layerdef"
	"github.com/tilemaker-go/tilemaker/internal/osmstore"
	"github.com/tilemaker-go/tilemaker/internal/shapefile"
	"github.com/tilemaker-go/tilemaker/internal/tileindex"
)

// fakeProgram drives ctx directly from test code, bypassing any real
// Program implementation's tag-matching logic.
type fakeProgram struct {
	onNode     func(*Context)
	onWay      func(*Context)
	onRelation func(*Context)
	panicOn    string
	nodeKeys   []string
}

func (p *fakeProgram) NodeKeys() []string { return p.nodeKeys }
func (p *fakeProgram) ProcessNode(ctx *Context) {
	if p.panicOn == "node" {
		panic("boom")
	}
	if p.onNode != nil {
		p.onNode(ctx)
	}
}
func (p *fakeProgram) ProcessWay(ctx *Context) {
	if p.panicOn == "way" {
		panic("boom")
	}
	if p.onWay != nil {
		p.onWay(ctx)
	}
}
func (p *fakeProgram) ProcessRelation(ctx *Context) {
	if p.onRelation != nil {
		p.onRelation(ctx)
	}
}

func newTestExtractor(program Program) (*Extractor, *osmstore.Store, *tileindex.Index) {
	store := osmstore.New()
	idx := tileindex.New(4)
	layers := map[string]*layerdef.LayerDef{"places": {ID: 0, Name: "places"}}
	layerIDs := map[string]uint8{"places": 0}
	log := logrus.New()
	log.SetOutput(nopWriter{})
	e := NewExtractor(store, idx, shapefile.NewSet(), layers, layerIDs, program, 4, log)
	return e, store, idx
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestExtractorFlushBucketsPointIntoIndex(t *testing.T) {
	program := &fakeProgram{onNode: func(ctx *Context) { ctx.Layer("places", false) }}
	e, store, idx := newTestExtractor(program)

	store.Nodes.Insert(1, geo.NewLatpLon(10, 20))
	ctx := newContext(store, e.Shapefiles, e.Layers)
	ctx.primeNode(1, map[string]string{"amenity": "cafe"}, 1)
	e.run(ctx, func() { e.Program.ProcessNode(ctx) })
	e.flush(ctx)

	tile := geo.LonLatpToTile(20, geo.Lat(10), 4)
	got := idx.GetTileData(tile)
	if len(got) != 1 {
		t.Fatalf("expected 1 object bucketed at %v, got %d", tile, len(got))
	}
	if got[0].LayerID != 0 {
		t.Errorf("expected layer id 0, got %d", got[0].LayerID)
	}
}

func TestExtractorRunRecoversFromPanic(t *testing.T) {
	program := &fakeProgram{panicOn: "node"}
	e, store, _ := newTestExtractor(program)
	store.Nodes.Insert(1, geo.NewLatpLon(10, 20))
	ctx := newContext(store, e.Shapefiles, e.Layers)
	ctx.primeNode(1, map[string]string{}, 1)

	didPanic := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				didPanic = true
			}
		}()
		e.run(ctx, func() { e.Program.ProcessNode(ctx) })
	}()
	if didPanic {
		t.Fatal("run should recover from a panicking Program, not propagate it")
	}
}

func TestExtractorFlushResetsContext(t *testing.T) {
	program := &fakeProgram{onNode: func(ctx *Context) { ctx.Layer("places", false) }}
	e, store, _ := newTestExtractor(program)
	store.Nodes.Insert(1, geo.NewLatpLon(1, 2))
	ctx := newContext(store, e.Shapefiles, e.Layers)
	ctx.primeNode(1, map[string]string{}, 1)
	e.run(ctx, func() { e.Program.ProcessNode(ctx) })
	if len(ctx.Emitted()) != 1 {
		t.Fatalf("expected 1 emitted feature before flush, got %d", len(ctx.Emitted()))
	}
	e.flush(ctx)
	if len(ctx.Emitted()) != 0 {
		t.Errorf("expected flush to reset ctx, still has %d emitted", len(ctx.Emitted()))
	}
	if ctx.state != stateIdle {
		t.Errorf("expected flush to return ctx to IDLE, got %v", ctx.state)
	}
}

func TestNewExtractorPopulatesNodeKeysFromProgram(t *testing.T) {
	program := &fakeProgram{nodeKeys: []string{"amenity", "shop"}}
	e, _, _ := newTestExtractor(program)
	if !e.nodeSignificant(map[string]string{"shop": "bakery"}) {
		t.Error("expected a node tagged with a NodeKeys() key to be significant")
	}
	if e.nodeSignificant(map[string]string{"building": "yes"}) {
		t.Error("expected a node tagged only with keys outside NodeKeys() to be insignificant")
	}
}

func TestNodeSignificantAcceptsEverythingWhenNodeKeysEmpty(t *testing.T) {
	program := &fakeProgram{}
	e, _, _ := newTestExtractor(program)
	if !e.nodeSignificant(map[string]string{"anything": "goes"}) {
		t.Error("expected every tagged node to be significant when Program.NodeKeys() is empty")
	}
}

func TestExtractorBucketLineStringUsesPolyline(t *testing.T) {
	program := &fakeProgram{onWay: func(ctx *Context) { ctx.Layer("places", false) }}
	e, store, idx := newTestExtractor(program)
	store.Nodes.Insert(1, geo.NewLatpLon(0, 0))
	store.Nodes.Insert(2, geo.NewLatpLon(0, 1))
	store.Ways.Insert(10, []osmstore.NodeID{1, 2})

	ctx := newContext(store, e.Shapefiles, e.Layers)
	ctx.primeWay(10, map[string]string{"highway": "residential"}, 10, []osmstore.NodeID{1, 2})
	e.run(ctx, func() { e.Program.ProcessWay(ctx) })
	e.flush(ctx)

	total := 0
	for z := uint8(0); z <= 4; z++ {
		for _, tile := range idx.TileListAtZoom(4, nil) {
			total += len(idx.GetTileData(tile))
		}
		break
	}
	if total == 0 {
		t.Fatal("expected the linestring to be bucketed into at least one tile")
	}
}
