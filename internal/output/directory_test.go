package output

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDirectorySaveTileWritesExpectedPath(t *testing.T) {
	root := t.TempDir()
	d := NewDirectory(root)

	if err := d.SaveTile(5, 10, 20, []byte("tiledata")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := filepath.Join(root, "5", "10", "20.pbf")
	got, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("expected tile file at %s: %v", want, err)
	}
	if string(got) != "tiledata" {
		t.Errorf("expected written bytes to roundtrip, got %q", got)
	}
}

func TestDirectorySaveTileTruncatesExisting(t *testing.T) {
	root := t.TempDir()
	d := NewDirectory(root)

	if err := d.SaveTile(1, 1, 1, []byte("first-long-payload")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := d.SaveTile(1, 1, 1, []byte("2nd")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(root, "1", "1", "1.pbf"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "2nd" {
		t.Errorf("expected second write to fully replace the first, got %q", got)
	}
}

func TestHasMBTilesExt(t *testing.T) {
	if !hasMBTilesExt("out/foo.mbtiles") {
		t.Error("expected .mbtiles suffix to be detected")
	}
	if hasMBTilesExt("out/tiles") {
		t.Error("expected a directory path not to match")
	}
}
