package tiledata

import (
	"testing"

	"github.com/paulmach/orb"

	"github.com/tilemaker-go/tilemaker/internal/geo"
	"github.com/tilemaker-go/tilemaker/internal/outputobject"
	"github.com/tilemaker-go/tilemaker/internal/tileindex"
)

type pointBody struct{ p orb.Point }

func (b pointBody) Geometry() (orb.Geometry, error) { return b.p, nil }

func TestFacadeGetTileDataSortsAndDedups(t *testing.T) {
	idx := tileindex.New(12)
	tile := geo.TileCoord{Z: 12, X: 1, Y: 2}
	o1 := &outputobject.OutputObject{LayerID: 1, ObjectID: 5, Attrs: outputobject.NewAttributes(nil), Body: pointBody{}}
	o2 := &outputobject.OutputObject{LayerID: 0, ObjectID: 1, Attrs: outputobject.NewAttributes(nil), Body: pointBody{}}
	idx.Add(tile, o1)
	idx.Add(tile, o2)

	facade := NewFacade(IndexSource{Index: idx})
	objs := facade.GetTileData(tile)
	if len(objs) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(objs))
	}
	if objs[0].LayerID != 0 || objs[1].LayerID != 1 {
		t.Errorf("expected objects sorted by layer id, got %d then %d", objs[0].LayerID, objs[1].LayerID)
	}
}

func TestFacadeTileSetAtUnionsSources(t *testing.T) {
	idx := tileindex.New(10)
	idx.Add(geo.TileCoord{Z: 10, X: 3, Y: 4}, &outputobject.OutputObject{Attrs: outputobject.NewAttributes(nil), Body: pointBody{}})

	facade := NewFacade(IndexSource{Index: idx})
	tiles := facade.TileSetAt(10)
	if len(tiles) != 1 || tiles[0].X != 3 || tiles[0].Y != 4 {
		t.Fatalf("expected single tile (3,4), got %v", tiles)
	}
}

func TestGetObjectsAtSubLayer(t *testing.T) {
	objs := []*outputobject.OutputObject{
		{LayerID: 0}, {LayerID: 1}, {LayerID: 1}, {LayerID: 2},
	}
	sub := GetObjectsAtSubLayer(objs, 1)
	if len(sub) != 2 {
		t.Fatalf("expected 2 objects at layer 1, got %d", len(sub))
	}
}

// TestAvailableExtentAxisOrder pins the corrected axis order down as a
// regression test: Min must be (minLon, minLatp) and Max must be
// (maxLon, maxLatp), never swapped, unlike the original's buggy copy.
func TestAvailableExtentAxisOrder(t *testing.T) {
	extent := geo.Box{
		Min: geo.Point{X: -10, Y: 40}, // minLon, minLatp
		Max: geo.Point{X: 10, Y: 50},  // maxLon, maxLatp
	}
	idx := tileindex.New(10)
	facade := NewFacade(IndexSource{Index: idx, Extent: &extent})

	got, ok := facade.AvailableExtent()
	if !ok {
		t.Fatal("expected an extent to be available")
	}
	if got.Min.X != -10 || got.Min.Y != 40 || got.Max.X != 10 || got.Max.Y != 50 {
		t.Errorf("expected axis order preserved, got Min=%v Max=%v", got.Min, got.Max)
	}
}
