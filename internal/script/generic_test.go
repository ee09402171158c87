package script

import (
	"testing"

	"github.com/tilemaker-go/tilemaker/internal/geo"
	"github.com/tilemaker-go/tilemaker/internal/osmstore"
)

func TestRuleMatchesRequiresAllKeys(t *testing.T) {
	ctx, store := newTestContext()
	store.Nodes.Insert(1, geo.NewLatpLon(1, 2))
	ctx.primeNode(1, map[string]string{"amenity": "cafe"}, 1)

	r := Rule{Match: map[string]string{"amenity": ""}}
	if !r.matches(ctx) {
		t.Error("expected rule with a present-only key match to match")
	}

	r2 := Rule{Match: map[string]string{"amenity": "", "cuisine": ""}}
	if r2.matches(ctx) {
		t.Error("expected rule requiring an absent key not to match")
	}
}

func TestRuleMatchesRequiresExactValueWhenGiven(t *testing.T) {
	ctx, store := newTestContext()
	store.Nodes.Insert(1, geo.NewLatpLon(1, 2))
	ctx.primeNode(1, map[string]string{"amenity": "cafe"}, 1)

	if !(Rule{Match: map[string]string{"amenity": "cafe"}}).matches(ctx) {
		t.Error("expected exact value match to succeed")
	}
	if (Rule{Match: map[string]string{"amenity": "bar"}}).matches(ctx) {
		t.Error("expected mismatched value not to match")
	}
}

func TestRuleApplyEmitsLayerAndAttributes(t *testing.T) {
	ctx, store := newTestContext()
	store.Nodes.Insert(1, geo.NewLatpLon(1, 2))
	ctx.primeNode(1, map[string]string{"amenity": "cafe", "name": "Joe's"}, 1)

	r := Rule{Layer: "places", Attributes: []string{"name", "missing"}}
	r.apply(ctx)

	got := ctx.Emitted()
	if len(got) != 1 {
		t.Fatalf("expected 1 emitted feature, got %d", len(got))
	}
	if got[0].LayerName != "places" {
		t.Errorf("expected layer \"places\", got %q", got[0].LayerName)
	}
	if v, ok := got[0].Attrs["name"]; !ok || v.Str != "Joe's" {
		t.Errorf("expected name attribute copied, got %+v", got[0].Attrs)
	}
	if _, ok := got[0].Attrs["missing"]; ok {
		t.Error("expected a missing tag key not to produce an attribute")
	}
}

func TestRuleApplyWayAreaVsLinestring(t *testing.T) {
	ctx, store := newTestContext()
	store.Nodes.Insert(1, geo.NewLatpLon(0, 0))
	store.Nodes.Insert(2, geo.NewLatpLon(0, 1))
	ctx.primeWay(10, map[string]string{"natural": "water"}, 10, []osmstore.NodeID{1, 2})

	(Rule{Layer: "water", Area: true}).apply(ctx)
	if ctx.Emitted()[0].GeomKind.String() != "polygon" {
		t.Errorf("expected polygon for area rule, got %v", ctx.Emitted()[0].GeomKind)
	}

	ctx.reset()
	ctx.primeWay(10, map[string]string{"highway": "path"}, 10, []osmstore.NodeID{1, 2})
	(Rule{Layer: "paths", Area: false}).apply(ctx)
	if ctx.Emitted()[0].GeomKind.String() != "linestring" {
		t.Errorf("expected linestring for non-area rule, got %v", ctx.Emitted()[0].GeomKind)
	}
}

func TestNewRuleProgramCollectsNodeKeysFromNodeRulesOnly(t *testing.T) {
	rules := []Rule{
		{Nodes: true, Match: map[string]string{"amenity": ""}},
		{Nodes: true, Match: map[string]string{"shop": ""}},
		{Ways: true, Match: map[string]string{"highway": ""}}, // not a node rule
	}
	p := NewRuleProgram(rules)
	keys := p.NodeKeys()
	if len(keys) != 2 {
		t.Fatalf("expected 2 node keys, got %d (%v)", len(keys), keys)
	}
	seen := map[string]bool{}
	for _, k := range keys {
		seen[k] = true
	}
	if !seen["amenity"] || !seen["shop"] {
		t.Errorf("expected node keys to include amenity and shop, got %v", keys)
	}
}

func TestRuleProgramProcessNodeOnlyAppliesNodeRules(t *testing.T) {
	ctx, store := newTestContext()
	store.Nodes.Insert(1, geo.NewLatpLon(1, 2))
	ctx.primeNode(1, map[string]string{"amenity": "cafe"}, 1)

	p := NewRuleProgram([]Rule{
		{Layer: "places", Nodes: true, Match: map[string]string{"amenity": ""}},
		{Layer: "roads", Ways: true, Match: map[string]string{"amenity": ""}},
	})
	p.ProcessNode(ctx)

	got := ctx.Emitted()
	if len(got) != 1 || got[0].LayerName != "places" {
		t.Fatalf("expected exactly one \"places\" feature, got %+v", got)
	}
}

func TestRuleProgramProcessRelationAppliesMatchingRule(t *testing.T) {
	ctx, store := newTestContext()
	store.Nodes.Insert(1, geo.NewLatpLon(0, 0))
	store.Nodes.Insert(2, geo.NewLatpLon(0, 1))
	store.Nodes.Insert(3, geo.NewLatpLon(1, 1))
	store.Nodes.Insert(4, geo.NewLatpLon(1, 0))
	store.Ways.Insert(100, []osmstore.NodeID{1, 2, 3, 4, 1})
	ctx.primeRelation(1, map[string]string{"type": "multipolygon", "landuse": "forest"}, []osmstore.WayID{100}, nil)

	p := NewRuleProgram([]Rule{
		{Layer: "landuse", Relations: true, Match: map[string]string{"landuse": ""}},
	})
	p.ProcessRelation(ctx)

	got := ctx.Emitted()
	if len(got) != 1 || got[0].LayerName != "landuse" {
		t.Fatalf("expected exactly one \"landuse\" feature, got %+v", got)
	}
	if got[0].GeomKind.String() != "polygon" {
		t.Errorf("expected polygon geom kind for relation, got %v", got[0].GeomKind)
	}
}

var _ Program = (*RuleProgram)(nil)
