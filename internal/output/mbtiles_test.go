package output

import (
	"path/filepath"
	"sync"
	"testing"
)

func openTestMBTiles(t *testing.T) *MBTiles {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.mbtiles")
	m, err := OpenMBTiles(path, Metadata{Name: "test", MinZoom: 0, MaxZoom: 2})
	if err != nil {
		t.Fatalf("OpenMBTiles: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestOpenMBTilesWritesBaselayerType(t *testing.T) {
	m := openTestMBTiles(t)

	var value string
	if err := m.db.QueryRow(`SELECT value FROM metadata WHERE name = 'type'`).Scan(&value); err != nil {
		t.Fatalf("query metadata: %v", err)
	}
	if value != "baselayer" {
		t.Errorf("expected metadata type=baselayer, got %q", value)
	}
}

func TestMBTilesSaveTileRoundtripsWithTMSFlip(t *testing.T) {
	m := openTestMBTiles(t)

	if err := m.SaveTile(2, 1, 1, []byte("tiledata")); err != nil {
		t.Fatalf("SaveTile: %v", err)
	}

	var data []byte
	wantRow := xyzToTMS(2, 1)
	err := m.db.QueryRow(
		`SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?`,
		2, 1, wantRow,
	).Scan(&data)
	if err != nil {
		t.Fatalf("expected a row at the TMS-flipped coordinate: %v", err)
	}
	if string(data) != "tiledata" {
		t.Errorf("expected tile bytes to roundtrip, got %q", data)
	}
}

// TestMBTilesSaveTileConcurrentWritesDoNotError exercises the serialization
// spec §5 requires: SQLite isn't safe for multi-threaded writes on a single
// connection, so every concurrent SaveTile call must succeed rather than
// racing into SQLITE_BUSY.
func TestMBTilesSaveTileConcurrentWritesDoNotError(t *testing.T) {
	m := openTestMBTiles(t)

	const n = 50
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.SaveTile(3, uint32(i), 0, []byte("x"))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("SaveTile(%d) failed under concurrent access: %v", i, err)
		}
	}
}
