package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tilemaker-go/tilemaker/internal/tilemakererr"
)

// Directory is the filesystem tile sink: out/{z}/{x}/{y}.pbf, creating
// directories as needed and truncating any existing file (spec §4.6).
type Directory struct {
	root string
}

// NewDirectory returns a Directory sink rooted at root. The root itself is
// created lazily on the first SaveTile call.
func NewDirectory(root string) *Directory {
	return &Directory{root: root}
}

// SaveTile writes data to {root}/{z}/{x}/{y}.pbf, write-whole-or-not-at-all
// per spec §7's output recovery policy: data is written to a temp file in
// the same directory and renamed into place, so a failed or partial write
// never leaves a corrupt tile visible at the final path.
func (d *Directory) SaveTile(z uint8, x, y uint32, data []byte) error {
	dir := filepath.Join(d.root, fmt.Sprintf("%d", z), fmt.Sprintf("%d", x))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &tilemakererr.OutputError{Msg: fmt.Sprintf("mkdir %s", dir), Err: err}
	}

	final := filepath.Join(dir, fmt.Sprintf("%d.pbf", y))
	tmp := final + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &tilemakererr.OutputError{Msg: fmt.Sprintf("write %s", tmp), Err: err}
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return &tilemakererr.OutputError{Msg: fmt.Sprintf("rename %s", tmp), Err: err}
	}
	return nil
}

// Close is a no-op for the directory sink; present so Directory satisfies
// the same Sink interface as MBTiles.
func (d *Directory) Close() error { return nil }
