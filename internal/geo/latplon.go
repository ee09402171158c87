// Package geo holds the fixed web-mercator projection and tile coordinate
// math shared by every other package: LatpLon, TileCoord, Box and TileBbox.
package geo

import "math"

// scale converts a floating-point degree/radian value to the fixed-point
// integer representation used throughout the OSM store (value * 1e7,
// rounded to nearest).
const scale = 1e7

// LatpLon is a point in projected coordinates, stored as the fixed-point
// 1e7-scaled integers tilemaker uses for its node store. Lat is the
// *projected* latitude (see Latp), not geographic latitude.
type LatpLon struct {
	Latp int32
	Lon  int32
}

// Lat converts geographic latitude (degrees) to projected latitude
// (degrees, web-mercator): latp = log(tan(pi/4 + lat/2)), with the result
// converted from radians to degrees.
func Lat(latDeg float64) float64 {
	latRad := latDeg * math.Pi / 180.0
	return math.Log(math.Tan(math.Pi/4+latRad/2)) * 180.0 / math.Pi
}

// LatpToLat is the inverse of Lat: converts projected latitude back to
// geographic latitude, both in degrees. Round-trips within 1 ULP.
func LatpToLat(latpDeg float64) float64 {
	latpRad := latpDeg * math.Pi / 180.0
	return (2*math.Atan(math.Exp(latpRad)) - math.Pi/2) * 180.0 / math.Pi
}

// NewLatpLon builds a LatpLon from geographic degrees.
func NewLatpLon(latDeg, lonDeg float64) LatpLon {
	return LatpLon{
		Latp: int32(math.Round(Lat(latDeg) * scale)),
		Lon:  int32(math.Round(lonDeg * scale)),
	}
}

// LatDeg returns the geographic latitude in degrees.
func (l LatpLon) LatDeg() float64 {
	return LatpToLat(float64(l.Latp) / scale)
}

// LonDeg returns the geographic longitude in degrees.
func (l LatpLon) LonDeg() float64 {
	return float64(l.Lon) / scale
}

// LatpDeg returns the projected latitude in degrees (not geographic).
func (l LatpLon) LatpDeg() float64 {
	return float64(l.Latp) / scale
}

// Point is a geometry vertex in projected-plane coordinates: (lon, latp) in
// degrees, matching spec.md's "Geometry values are in projected coordinates
// (lon, latp)" invariant.
type Point struct {
	X, Y float64 // X = lon degrees, Y = latp degrees
}

// FromLatpLon converts a stored fixed-point LatpLon into a projected-plane
// Point usable by geometry construction.
func FromLatpLon(l LatpLon) Point {
	return Point{X: l.LonDeg(), Y: l.LatpDeg()}
}

// Box is an axis-aligned bounding box in projected-plane coordinates.
type Box struct {
	Min, Max Point
}

// Intersects reports whether two boxes overlap (inclusive of touching edges).
func (b Box) Intersects(o Box) bool {
	return b.Min.X <= o.Max.X && b.Max.X >= o.Min.X &&
		b.Min.Y <= o.Max.Y && b.Max.Y >= o.Min.Y
}

// Contains reports whether p lies within b, inclusive of the boundary.
func (b Box) Contains(p Point) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// Union returns the smallest box containing both b and o.
func (b Box) Union(o Box) Box {
	return Box{
		Min: Point{X: math.Min(b.Min.X, o.Min.X), Y: math.Min(b.Min.Y, o.Min.Y)},
		Max: Point{X: math.Max(b.Max.X, o.Max.X), Y: math.Max(b.Max.Y, o.Max.Y)},
	}
}
