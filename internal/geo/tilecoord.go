package geo

import (
	"fmt"
	"math"
)

// TileCoord is a web-mercator tile address: x, y < 2^z.
type TileCoord struct {
	Z uint8
	X uint32
	Y uint32
}

func (t TileCoord) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// Valid reports whether x and y are in range for z.
func (t TileCoord) Valid() bool {
	n := uint32(1) << t.Z
	return t.X < n && t.Y < n
}

// LonLatpToTile returns the tile at zoom z containing the projected-plane
// point (lon, latp), both in degrees.
func LonLatpToTile(lon, latp float64, z uint8) TileCoord {
	n := float64(uint32(1) << z)
	x := (lon + 180.0) / 360.0 * n
	y := (180.0 - latp) / 360.0 * n
	return TileCoord{Z: z, X: clampTileIndex(x, uint32(1)<<z), Y: clampTileIndex(y, uint32(1)<<z)}
}

func clampTileIndex(v float64, n uint32) uint32 {
	if v < 0 {
		return 0
	}
	iv := uint32(v)
	if iv >= n {
		return n - 1
	}
	return iv
}

// TileToLonLatp returns the NW corner (minimum lon, maximum latp) of tile t.
func TileToLonLatp(t TileCoord) (lon, latp float64) {
	n := float64(uint32(1) << t.Z)
	lon = float64(t.X)/n*360.0 - 180.0
	latp = 180.0 - float64(t.Y)/n*360.0
	return
}

// Bound returns the tile's bounding box in projected-plane coordinates.
func (t TileCoord) Bound() Box {
	nwLon, nwLatp := TileToLonLatp(t)
	seLon, seLatp := TileToLonLatp(TileCoord{Z: t.Z, X: t.X + 1, Y: t.Y + 1})
	return Box{
		Min: Point{X: nwLon, Y: seLatp},
		Max: Point{X: seLon, Y: nwLatp},
	}
}

// Rescale converts a tile coordinate at srcZoom to the coordinate of the
// single tile at dstZoom that contains it. Only valid for dstZoom <= srcZoom.
func (t TileCoord) Rescale(dstZoom uint8) TileCoord {
	if dstZoom >= t.Z {
		return t
	}
	shift := t.Z - dstZoom
	return TileCoord{Z: dstZoom, X: t.X >> shift, Y: t.Y >> shift}
}

// TileBbox carries a tile's projected-plane bounds plus the helpers needed
// to scale geometry vertices into the 0..4095 MVT grid.
type TileBbox struct {
	Tile   TileCoord
	Bounds Box
	Extent float64 // MVT grid extent, typically 4096
}

// NewTileBbox builds a TileBbox for tile t with the given MVT extent.
func NewTileBbox(t TileCoord, extent float64) TileBbox {
	return TileBbox{Tile: t, Bounds: t.Bound(), Extent: extent}
}

// ToTileCoords maps a projected-plane point into 0..extent MVT tile
// coordinates (floating point; callers round at encode time).
func (b TileBbox) ToTileCoords(p Point) (x, y float64) {
	w := b.Bounds.Max.X - b.Bounds.Min.X
	h := b.Bounds.Max.Y - b.Bounds.Min.Y
	x = (p.X - b.Bounds.Min.X) / w * b.Extent
	y = (b.Bounds.Max.Y - p.Y) / h * b.Extent // flip: MVT y grows downward
	return
}

// MeterToDeg converts a length in meters to degrees of longitude at the
// given projected latitude (degrees), used for simplify_length.
func MeterToDeg(meters, midLatpDeg float64) float64 {
	lat := LatpToLat(midLatpDeg)
	return meters / (111320.0 * math.Cos(lat*math.Pi/180.0))
}
