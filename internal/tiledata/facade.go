// Package tiledata unifies one or more TileDataSources (the in-memory tile
// index, and in principle disk-backed or shapefile-backed sources) behind a
// single view the driver and tile worker consume: "every OutputObject
// touching tile (z,x,y)" plus "every populated tile at zoom z" (spec §4.5).
package tiledata

import (
	"sort"

	"github.com/tilemaker-go/tilemaker/internal/geo"
	"github.com/tilemaker-go/tilemaker/internal/outputobject"
	"github.com/tilemaker-go/tilemaker/internal/tileindex"
)

// TileDataSource is the external plug-in point named in spec §6: any
// backing store (in-memory tile index, on-disk tile cache, shapefile
// source) that can enumerate its populated tiles at a zoom and answer
// per-tile object queries.
type TileDataSource interface {
	// GenerateTileListAt appends every tile coordinate this source has data
	// for at zoom into the given set.
	GenerateTileListAt(zoom uint8, into map[geo.TileCoord]struct{})
	// GetTileData appends this source's objects for tile into the given
	// slice and returns the extended slice.
	GetTileData(tile geo.TileCoord, into []*outputobject.OutputObject) []*outputobject.OutputObject
	// BaseZoom reports the zoom this source's data is natively stored at.
	BaseZoom() uint8
	// AvailableExtent returns the source's own clipping box, if it can
	// derive one from its input (e.g. an OSM file's bounding box), and
	// whether one is available at all.
	AvailableExtent() (geo.Box, bool)
}

// Facade aggregates a fixed list of TileDataSources. It is safe for
// concurrent GetTileData calls: each call builds its own result slice, so
// no locking is needed in the query path (spec §4.5's thread-safety note;
// per-source locking, if any, is each source's own concern).
type Facade struct {
	sources []TileDataSource
}

// NewFacade builds a facade over the given sources, in priority order.
func NewFacade(sources ...TileDataSource) *Facade {
	return &Facade{sources: sources}
}

// TileSetAt unions generate_tile_list_at across every source for zoom.
func (f *Facade) TileSetAt(zoom uint8) []geo.TileCoord {
	seen := make(map[geo.TileCoord]struct{})
	for _, s := range f.sources {
		s.GenerateTileListAt(zoom, seen)
	}
	out := make([]geo.TileCoord, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Y < out[j].Y
	})
	return out
}

// GetTileData asks every source for tile's objects, concatenates, sorts by
// the OutputObject total order and dedups (spec INV-2).
func (f *Facade) GetTileData(tile geo.TileCoord) []*outputobject.OutputObject {
	var out []*outputobject.OutputObject
	for _, s := range f.sources {
		out = s.GetTileData(tile, out)
	}
	return tileindex.SortAndDedup(out)
}

// GetObjectsAtSubLayer returns the contiguous sub-range of a tile's sorted
// object bundle belonging to layerID (spec: "binary-range within the
// tile's sorted objects selecting exactly those whose layer == layer_id").
// objs must already be sorted by the OutputObject total order (layer is
// its primary sort key).
func GetObjectsAtSubLayer(objs []*outputobject.OutputObject, layerID uint8) []*outputobject.OutputObject {
	lo := sort.Search(len(objs), func(i int) bool { return objs[i].LayerID >= layerID })
	hi := sort.Search(len(objs), func(i int) bool { return objs[i].LayerID > layerID })
	return objs[lo:hi]
}

// AvailableExtent returns the union of every source's available extent, or
// false if none of them can report one.
func (f *Facade) AvailableExtent() (geo.Box, bool) {
	var box geo.Box
	found := false
	for _, s := range f.sources {
		b, ok := s.AvailableExtent()
		if !ok {
			continue
		}
		if !found {
			box = b
			found = true
		} else {
			box = box.Union(b)
		}
	}
	return box, found
}
