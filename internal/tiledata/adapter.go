package tiledata

import (
	"github.com/tilemaker-go/tilemaker/internal/geo"
	"github.com/tilemaker-go/tilemaker/internal/outputobject"
	"github.com/tilemaker-go/tilemaker/internal/tileindex"
)

// IndexSource adapts a tileindex.Index to the TileDataSource interface, for
// the in-memory OSM-and-shapefile-backed store that handles the common
// case (spec's "OsmMemTiles" role).
type IndexSource struct {
	Index *tileindex.Index
	// Extent, if non-nil, is the source's own available clipping box —
	// e.g. derived from the bounding box of the OSM input that populated
	// it. Corresponds to the original's GetAvailableTileExtent.
	//
	// The original source had a bug here: one of its three divergent
	// GetAvailableTileExtent copies swapped minLat and maxLon when
	// assembling the returned box ("This looks very wrong" — verbatim
	// source comment). We do not reproduce that: Extent.Min is always
	// (minLon, minLatp) and Extent.Max is always (maxLon, maxLatp), axis
	// order never swapped. See DESIGN.md for the Open Question resolution
	// and TestAvailableExtentAxisOrder in facade_test.go for the regression
	// test.
	Extent *geo.Box
}

// GenerateTileListAt implements TileDataSource.
func (s IndexSource) GenerateTileListAt(zoom uint8, into map[geo.TileCoord]struct{}) {
	for _, t := range s.Index.TileListAtZoom(zoom, nil) {
		into[t] = struct{}{}
	}
}

// GetTileData implements TileDataSource.
func (s IndexSource) GetTileData(tile geo.TileCoord, into []*outputobject.OutputObject) []*outputobject.OutputObject {
	return append(into, s.Index.GetTileData(tile)...)
}

// BaseZoom implements TileDataSource.
func (s IndexSource) BaseZoom() uint8 { return s.Index.BaseZoom }

// AvailableExtent implements TileDataSource.
func (s IndexSource) AvailableExtent() (geo.Box, bool) {
	if s.Extent == nil {
		return geo.Box{}, false
	}
	return *s.Extent, true
}

var _ TileDataSource = IndexSource{}
