package output

// Sink is the common interface the driver writes tiles through, satisfied
// by both MBTiles and Directory.
type Sink interface {
	SaveTile(z uint8, x, y uint32, data []byte) error
	Close() error
}

var (
	_ Sink = (*MBTiles)(nil)
	_ Sink = (*Directory)(nil)
)

// NewSink picks MBTiles or Directory by the output path's extension, per
// spec §4.6 ("chosen by output-path extension").
func NewSink(path string, meta Metadata) (Sink, error) {
	if hasMBTilesExt(path) {
		return OpenMBTiles(path, meta)
	}
	return NewDirectory(path), nil
}

func hasMBTilesExt(path string) bool {
	n := len(path)
	return (n >= 8 && path[n-8:] == ".mbtiles") || (n >= 7 && path[n-7:] == ".sqlite")
}
