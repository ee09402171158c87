// Package output implements the two mutually-exclusive tile sinks spec §4.6
// allows: an MBTiles SQLite container and a directory tree of .pbf files.
package output

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/tilemaker-go/tilemaker/internal/tilemakererr"
)

// MBTiles is a standard MBTiles 1.1 SQLite sink. The tiles table uses the
// TMS y-flip convention (tile_row = 2^z - 1 - xyz_y), which is this
// writer's responsibility per spec §4.6 — callers always pass XYZ
// coordinates.
//
// SaveTile is called concurrently by every driver worker goroutine (spec
// §4.7), but SQLite is not safe for multi-threaded writes on a single
// connection; spec §5 requires serializing MBTiles writes. mu does that —
// database/sql's own connection pool would otherwise hand concurrent Execs
// to distinct pooled connections and race into SQLITE_BUSY.
type MBTiles struct {
	db *sql.DB
	mu sync.Mutex
}

// Metadata carries the top-level MBTiles metadata row values, plus an
// optional raw `json` row (spec's supplemented per-layer metadata
// passthrough — see SPEC_FULL.md §3).
type Metadata struct {
	Name        string
	Description string
	Version     string
	Format      string // always "pbf" for vector tiles
	MinZoom     int
	MaxZoom     int
	Bounds      [4]float64 // minLon,minLat,maxLon,maxLat
	Center      [3]float64 // lon,lat,zoom
	JSON        map[string]any
}

// OpenMBTiles opens (creating if absent) an MBTiles sink at path and writes
// its metadata rows. Tables are created with CREATE TABLE IF NOT EXISTS, so
// an existing file is not truncated: its tables and rows are kept.
func OpenMBTiles(path string, meta Metadata) (*MBTiles, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &tilemakererr.OutputError{Msg: "open mbtiles", Err: err}
	}
	m := &MBTiles{db: db}
	if err := m.initSchema(meta); err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

func (m *MBTiles) initSchema(meta Metadata) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS metadata (name TEXT, value TEXT)`,
		`CREATE TABLE IF NOT EXISTS tiles (zoom_level INTEGER, tile_column INTEGER, tile_row INTEGER, tile_data BLOB)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS tile_index ON tiles (zoom_level, tile_column, tile_row)`,
	}
	for _, s := range stmts {
		if _, err := m.db.Exec(s); err != nil {
			return &tilemakererr.OutputError{Msg: "create mbtiles schema", Err: err}
		}
	}

	rows := map[string]string{
		"name":        meta.Name,
		"description": meta.Description,
		"version":     meta.Version,
		"format":      "pbf",
		"type":        "baselayer",
		"minzoom":     fmt.Sprintf("%d", meta.MinZoom),
		"maxzoom":     fmt.Sprintf("%d", meta.MaxZoom),
		"bounds":      fmt.Sprintf("%g,%g,%g,%g", meta.Bounds[0], meta.Bounds[1], meta.Bounds[2], meta.Bounds[3]),
		"center":      fmt.Sprintf("%g,%g,%g", meta.Center[0], meta.Center[1], meta.Center[2]),
	}
	if meta.JSON != nil {
		b, err := json.Marshal(meta.JSON)
		if err != nil {
			return &tilemakererr.OutputError{Msg: "marshal mbtiles json metadata", Err: err}
		}
		rows["json"] = string(b)
	}

	for name, value := range rows {
		if value == "" {
			continue
		}
		if _, err := m.db.Exec(`INSERT OR REPLACE INTO metadata (name, value) VALUES (?, ?)`, name, value); err != nil {
			return &tilemakererr.OutputError{Msg: fmt.Sprintf("write mbtiles metadata %q", name), Err: err}
		}
	}
	return nil
}

// xyzToTMS flips an XYZ tile row into the TMS row MBTiles stores.
func xyzToTMS(z uint8, y uint32) uint32 {
	return (uint32(1) << z) - 1 - y
}

// SaveTile writes one tile's bytes, replacing any prior entry at the same
// coordinate.
func (m *MBTiles) SaveTile(z uint8, x, y uint32, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tmsY := xyzToTMS(z, y)
	_, err := m.db.Exec(
		`INSERT OR REPLACE INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)`,
		z, x, tmsY, data,
	)
	if err != nil {
		return &tilemakererr.OutputError{Msg: fmt.Sprintf("save tile %d/%d/%d", z, x, y), Err: err}
	}
	return nil
}

// Close flushes and closes the underlying database.
func (m *MBTiles) Close() error {
	return m.db.Close()
}
