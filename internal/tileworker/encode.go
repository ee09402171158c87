package tileworker

import (
	"bytes"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/paulmach/orb/encoding/mvt"
)

// CompressionOptions is the tile compression policy. The CLI derives it
// from the single settings.compress key: "gzip" sets Compress and Gzip,
// "deflate" sets Compress only, and "none" or an empty value sets neither.
type CompressionOptions struct {
	Compress bool
	Gzip     bool // when Compress is true: gzip if true, raw deflate otherwise
}

// Encode marshals layers to protobuf and applies the configured
// compression policy (spec §4.6's "Compression policy" paragraph).
func Encode(layers mvt.Layers, comp CompressionOptions) ([]byte, error) {
	raw, err := mvt.Marshal(layers)
	if err != nil {
		return nil, err
	}
	if !comp.Compress {
		return raw, nil
	}
	if comp.Gzip {
		return gzipBytes(raw)
	}
	return deflateBytes(raw)
}

func gzipBytes(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deflateBytes(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
