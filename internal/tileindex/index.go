// Package tileindex implements the central many-to-many structure mapping
// TileCoord(base_zoom, x, y) to the ordered sequence of OutputObjects that
// touch it, per spec §4.4.
package tileindex

import (
	"sort"
	"sync"

	"github.com/paulmach/orb"

	"github.com/tilemaker-go/tilemaker/internal/geo"
	"github.com/tilemaker-go/tilemaker/internal/outputobject"
)

// Index is the tile index, keyed at a single fixed base zoom. It is
// mutated only during ingest (single-threaded) and read only during
// output, per the concurrency model of spec §5.
type Index struct {
	BaseZoom uint8

	mu    sync.Mutex
	tiles map[TileKey][]*outputobject.OutputObject
}

// New creates an empty Index at the given base zoom.
func New(baseZoom uint8) *Index {
	return &Index{BaseZoom: baseZoom, tiles: make(map[TileKey][]*outputobject.OutputObject)}
}

// Add inserts oo directly into one tile.
func (idx *Index) Add(tile geo.TileCoord, oo *outputobject.OutputObject) {
	idx.mu.Lock()
	k := TileKey{X: tile.X, Y: tile.Y}
	idx.tiles[k] = append(idx.tiles[k], oo)
	idx.mu.Unlock()
}

func (idx *Index) addSet(set TileSet, oo *outputobject.OutputObject) {
	idx.mu.Lock()
	for k := range set {
		idx.tiles[k] = append(idx.tiles[k], oo)
	}
	idx.mu.Unlock()
}

// AddByBbox inserts oo into every tile at the base zoom overlapping the
// given projected-plane box.
func (idx *Index) AddByBbox(oo *outputobject.OutputObject, box geo.Box) {
	idx.addSet(TilesForBbox(box, idx.BaseZoom), oo)
}

// AddByPolyline inserts oo into every tile the polyline enters at the base
// zoom.
func (idx *Index) AddByPolyline(oo *outputobject.OutputObject, ls orb.LineString) {
	idx.addSet(TilesForPolyline(ls, idx.BaseZoom), oo)
}

// AddByPolygonOutline inserts oo into every tile covered by the polygon's
// outline plus its scanline-filled interior (spec §4.3's polygon bucketing
// rule: "additionally fill interior tiles before insertion").
func (idx *Index) AddByPolygonOutline(oo *outputobject.OutputObject, ring orb.Ring) {
	outline := TilesForPolyline(orb.LineString(ring), idx.BaseZoom)
	filled := FillCoveredTiles(outline)
	idx.addSet(filled, oo)
}

// AddByMultiPolygon unions the tile sets of every ring across all polygons
// of a multipolygon (spec §4.3: relation bucketing) before inserting.
func (idx *Index) AddByMultiPolygon(oo *outputobject.OutputObject, mp orb.MultiPolygon) {
	union := make(TileSet)
	for _, poly := range mp {
		for _, ring := range poly {
			outline := TilesForPolyline(orb.LineString(ring), idx.BaseZoom)
			filled := FillCoveredTiles(outline)
			for k := range filled {
				union[k] = struct{}{}
			}
		}
	}
	idx.addSet(union, oo)
}

// GetTileData answers the zoom-rescale read of spec §4.4: at target_zoom ==
// base, a direct lookup; below base, aggregate every covered base tile;
// above base, return the single covering base tile's objects (the caller
// clips per target tile downstream).
func (idx *Index) GetTileData(target geo.TileCoord) []*outputobject.OutputObject {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	switch {
	case target.Z == idx.BaseZoom:
		return idx.tiles[TileKey{X: target.X, Y: target.Y}]

	case target.Z < idx.BaseZoom:
		scale := uint32(1) << (idx.BaseZoom - target.Z)
		var out []*outputobject.OutputObject
		for x := target.X * scale; x < (target.X+1)*scale; x++ {
			for y := target.Y * scale; y < (target.Y+1)*scale; y++ {
				out = append(out, idx.tiles[TileKey{X: x, Y: y}]...)
			}
		}
		return out

	default: // target.Z > idx.BaseZoom
		shift := target.Z - idx.BaseZoom
		return idx.tiles[TileKey{X: target.X >> shift, Y: target.Y >> shift}]
	}
}

// TileListAtZoom enumerates every populated tile coordinate at zoom,
// following the same aggregate-down / explode-up rule as GetTileData. The
// explode-up case is bounded by the caller-supplied window (xMin..xMax,
// yMin..yMax), matching the disk-tile case described in spec §4.4.
func (idx *Index) TileListAtZoom(zoom uint8, window *geo.Box) []geo.TileCoord {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if zoom <= idx.BaseZoom {
		shift := idx.BaseZoom - zoom
		seen := make(map[TileKey]struct{})
		for k := range idx.tiles {
			seen[TileKey{X: k.X >> shift, Y: k.Y >> shift}] = struct{}{}
		}
		return sortedKeys(seen, zoom)
	}

	// Explode: every base tile maps to (2^(zoom-base))^2 target tiles,
	// bounded to window if given, else to the full range of populated base
	// tiles.
	shift := zoom - idx.BaseZoom
	scale := uint32(1) << shift
	seen := make(map[TileKey]struct{})
	for k := range idx.tiles {
		xMin, xMax := k.X*scale, (k.X+1)*scale-1
		yMin, yMax := k.Y*scale, (k.Y+1)*scale-1
		if window != nil {
			wx0, wy0 := boxToTile(window.Min, zoom)
			wx1, wy1 := boxToTile(window.Max, zoom)
			xMin, xMax = clampRange(xMin, xMax, wx0, wx1)
			yMin, yMax = clampRange(yMin, yMax, wy1, wy0) // latp decreases southward
		}
		for x := xMin; x <= xMax; x++ {
			for y := yMin; y <= yMax; y++ {
				seen[TileKey{X: x, Y: y}] = struct{}{}
			}
		}
	}
	return sortedKeys(seen, zoom)
}

func boxToTile(p geo.Point, zoom uint8) (uint32, uint32) {
	t := geo.LonLatpToTile(p.X, p.Y, zoom)
	return t.X, t.Y
}

func clampRange(lo, hi, winLo, winHi uint32) (uint32, uint32) {
	if winLo > winHi {
		winLo, winHi = winHi, winLo
	}
	if lo < winLo {
		lo = winLo
	}
	if hi > winHi {
		hi = winHi
	}
	if lo > hi {
		return 1, 0 // empty range
	}
	return lo, hi
}

func sortedKeys(seen map[TileKey]struct{}, zoom uint8) []geo.TileCoord {
	out := make([]geo.TileCoord, 0, len(seen))
	for k := range seen {
		out = append(out, geo.TileCoord{Z: zoom, X: k.X, Y: k.Y})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Y < out[j].Y
	})
	return out
}

// SortAndDedup sorts objs by the OutputObject total order and removes
// consecutive duplicates, the contract the tile data facade relies on
// (spec INV-2).
func SortAndDedup(objs []*outputobject.OutputObject) []*outputobject.OutputObject {
	sort.Slice(objs, func(i, j int) bool { return outputobject.Compare(objs[i], objs[j]) < 0 })
	out := objs[:0]
	for i, o := range objs {
		if i == 0 || !outputobject.Equal(out[len(out)-1], o) {
			out = append(out, o)
		}
	}
	return out
}
