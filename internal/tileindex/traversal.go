package tileindex

import (
	"github.com/paulmach/orb"

	"github.com/tilemaker-go/tilemaker/internal/geo"
)

// TileKey addresses a tile within one zoom level (the index's base zoom is
// implicit — callers always work within a single TileIndex instance).
type TileKey struct {
	X, Y uint32
}

// TileSet is an unordered set of tile keys, the intermediate representation
// used by bbox/polyline insertion and by fill-covered-tiles.
type TileSet map[TileKey]struct{}

func (s TileSet) add(x, y uint32) { s[TileKey{X: x, Y: y}] = struct{}{} }

// TilesForBbox returns every tile at zoom that overlaps the projected-plane
// box [min,max].
func TilesForBbox(box geo.Box, zoom uint8) TileSet {
	minTile := geo.LonLatpToTile(box.Min.X, box.Min.Y, zoom)
	maxTile := geo.LonLatpToTile(box.Max.X, box.Max.Y, zoom)

	// Y grows south (latp decreases), so box.Min.Y (south) maps to a larger
	// tile-y than box.Max.Y (north); normalize before ranging.
	x0, x1 := minMax(minTile.X, maxTile.X)
	y0, y1 := minMax(minTile.Y, maxTile.Y)

	out := make(TileSet)
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			out.add(x, y)
		}
	}
	return out
}

func minMax(a, b uint32) (uint32, uint32) {
	if a > b {
		return b, a
	}
	return a, b
}

// TilesForPolyline returns every tile a linestring passes through at zoom:
// each vertex's tile, plus every tile on the straight line between
// consecutive vertices (a Bresenham-style grid walk), so that no segment
// can "skip over" a tile it clips only at a corner.
func TilesForPolyline(ls orb.LineString, zoom uint8) TileSet {
	out := make(TileSet)
	if len(ls) == 0 {
		return out
	}
	prev := geo.LonLatpToTile(ls[0][0], ls[0][1], zoom)
	out.add(prev.X, prev.Y)
	for i := 1; i < len(ls); i++ {
		cur := geo.LonLatpToTile(ls[i][0], ls[i][1], zoom)
		walkLine(out, int64(prev.X), int64(prev.Y), int64(cur.X), int64(cur.Y))
		prev = cur
	}
	return out
}

// walkLine stamps every grid cell on the straight line between (x0,y0) and
// (x1,y1), inclusive of both endpoints, using integer Bresenham stepping.
func walkLine(out TileSet, x0, y0, x1, y1 int64) {
	dx := abs64(x1 - x0)
	dy := -abs64(y1 - y0)
	sx := int64(1)
	if x0 >= x1 {
		sx = -1
	}
	sy := int64(1)
	if y0 >= y1 {
		sy = -1
	}
	err := dx + dy

	for {
		if x0 >= 0 && y0 >= 0 {
			out.add(uint32(x0), uint32(y0))
		}
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// FillCoveredTiles takes the tile set traced by a polygon's outline and
// returns the filled set: for every row y present in outline, every column
// x with min_x(y) <= x <= max_x(y) among outline tiles on that row is
// included (spec §4.4's scanline fill).
func FillCoveredTiles(outline TileSet) TileSet {
	rows := make(map[uint32][2]uint32) // y -> [minX, maxX]
	for k := range outline {
		if mm, ok := rows[k.Y]; ok {
			if k.X < mm[0] {
				mm[0] = k.X
			}
			if k.X > mm[1] {
				mm[1] = k.X
			}
			rows[k.Y] = mm
		} else {
			rows[k.Y] = [2]uint32{k.X, k.X}
		}
	}

	filled := make(TileSet)
	for y, mm := range rows {
		for x := mm[0]; x <= mm[1]; x++ {
			filled.add(x, y)
		}
	}
	return filled
}
