package tileworker

import (
	"testing"

	"github.com/paulmach/orb"

	"github.com/tilemaker-go/tilemaker/internal/outputobject"
)

func mkObj(id uint64, geomKind outputobject.GeomKind, attrs outputobject.Attributes) *outputobject.OutputObject {
	return &outputobject.OutputObject{ObjectID: id, GeomKind: geomKind, Attrs: attrs}
}

func TestCoalesceRunsGroupsAdjacentSameAttrs(t *testing.T) {
	a := outputobject.NewAttributes(map[string]outputobject.Value{"k": outputobject.StringValue("v")})
	b := outputobject.NewAttributes(map[string]outputobject.Value{"k": outputobject.StringValue("other")})

	objs := []*outputobject.OutputObject{
		mkObj(1, outputobject.Polygon, a),
		mkObj(2, outputobject.Polygon, a),
		mkObj(3, outputobject.Polygon, b),
	}

	runs := CoalesceRuns(objs, func(*outputobject.OutputObject) int { return 4 })
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if len(runs[0].Objects) != 2 {
		t.Errorf("expected first run to merge 2 same-attribute objects, got %d", len(runs[0].Objects))
	}
	if len(runs[1].Objects) != 1 {
		t.Errorf("expected second run to hold the differing object alone, got %d", len(runs[1].Objects))
	}
}

func TestCoalesceRunsRespectsMaxBatchPoints(t *testing.T) {
	a := outputobject.NewAttributes(map[string]outputobject.Value{"k": outputobject.StringValue("v")})
	objs := []*outputobject.OutputObject{
		mkObj(1, outputobject.Linestring, a),
		mkObj(2, outputobject.Linestring, a),
		mkObj(3, outputobject.Linestring, a),
	}

	// Each object contributes 1500 vertices: first two objects hit the cap
	// together (3000 > 2000) so the merge must stop after the first,
	// leaving the second and third objects to start a new run each.
	runs := CoalesceRuns(objs, func(*outputobject.OutputObject) int { return 1500 })
	if len(runs) != 3 {
		t.Fatalf("expected MaxBatchPoints to force 3 separate runs, got %d", len(runs))
	}
}

func TestUnionPolygonsMergesTouchingSquares(t *testing.T) {
	p1 := orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}
	p2 := orb.Polygon{orb.Ring{{1, 0}, {2, 0}, {2, 1}, {1, 1}, {1, 0}}}

	merged := UnionPolygons([]orb.Polygon{p1, p2})
	if len(merged) == 0 {
		t.Fatal("expected a non-empty union result")
	}
}

func TestUnionLineStringsConcatenates(t *testing.T) {
	l1 := orb.LineString{{0, 0}, {1, 1}}
	l2 := orb.LineString{{2, 2}, {3, 3}}
	merged := UnionLineStrings([]orb.LineString{l1, l2})
	if len(merged) != 2 {
		t.Fatalf("expected 2 component linestrings, got %d", len(merged))
	}
}
