// Package shapefile loads ESRI shapefiles into an in-memory geometry arena
// and a per-layer R-tree spatial index, for use by the script host's
// find_intersecting/intersects queries and for direct Cached* OutputObject
// contribution (spec §4.5's shapefile ingestion).
package shapefile

import (
	"sync"

	"github.com/paulmach/orb"
)

// Arena is an append-only store of shapefile-derived geometry. OutputObjects
// reference entries by index rather than embedding geometry directly, so
// many Cached* objects sharing the same underlying shape (e.g. a row
// re-emitted at several layers) are cheap to construct.
type Arena struct {
	mu    sync.RWMutex
	items []orb.Geometry
	attrs []map[string]string
}

// NewArena creates an empty geometry arena.
func NewArena() *Arena {
	return &Arena{}
}

// Add appends a geometry plus its raw DBF attribute row and returns the
// index it was stored at.
func (a *Arena) Add(g orb.Geometry, attrs map[string]string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = append(a.items, g)
	a.attrs = append(a.attrs, attrs)
	return len(a.items) - 1
}

// Geometry returns the geometry stored at idx.
func (a *Arena) Geometry(idx int) orb.Geometry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.items[idx]
}

// Attrs returns the raw DBF attribute row stored at idx.
func (a *Arena) Attrs(idx int) map[string]string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.attrs[idx]
}

// Len reports how many geometries the arena holds.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.items)
}

// CachedBody is an outputobject.GeometryBuilder that dereferences into the
// arena instead of rebuilding geometry from the OSM store, matching the
// CachedPoint/CachedLinestring/CachedPolygon kinds.
type CachedBody struct {
	Arena *Arena
	Index int
}

// Geometry implements outputobject.GeometryBuilder.
func (b CachedBody) Geometry() (orb.Geometry, error) {
	return b.Arena.Geometry(b.Index), nil
}
