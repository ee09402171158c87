package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadDecodesSettingsAndLayers(t *testing.T) {
	path := writeConfig(t, `{
		"settings": {
			"basezoom": 14,
			"minzoom": 0,
			"maxzoom": 14,
			"name": "test",
			"compress": "gzip"
		},
		"layers": {
			"roads": {
				"minzoom": 0,
				"maxzoom": 14,
				"ways": true,
				"match": {"highway": ""}
			},
			"roads_low": {
				"minzoom": 0,
				"maxzoom": 8,
				"write_to": "roads"
			}
		}
	}`)

	root, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if root.Settings.BaseZoom != 14 {
		t.Errorf("expected basezoom 14, got %d", root.Settings.BaseZoom)
	}
	if root.Settings.Compress != "gzip" {
		t.Errorf("expected compress gzip, got %q", root.Settings.Compress)
	}
	if !root.Settings.Combine {
		t.Error("expected settings.combine to default to true")
	}
	if root.Settings.MVTVersion != 2 {
		t.Errorf("expected mvt_version to default to 2, got %d", root.Settings.MVTVersion)
	}

	roads, ok := root.Layers["roads"]
	if !ok {
		t.Fatal("expected layer \"roads\" to be present")
	}
	if !roads.Ways {
		t.Error("expected roads.ways to be true")
	}
	if _, ok := roads.Match["highway"]; !ok {
		t.Error("expected roads.match to contain \"highway\"")
	}

	low, ok := root.Layers["roads_low"]
	if !ok {
		t.Fatal("expected layer \"roads_low\" to be present")
	}
	if low.WriteTo != "roads" {
		t.Errorf("expected roads_low.write_to \"roads\", got %q", low.WriteTo)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected an error loading a nonexistent config file")
	}
}

func TestValidateRejectsMaxZoomAboveBaseZoom(t *testing.T) {
	root := &Root{Settings: Settings{BaseZoom: 10, MinZoom: 0, MaxZoom: 12}}
	if err := root.Validate(); err == nil {
		t.Fatal("expected an error when maxzoom exceeds basezoom")
	}
}

func TestValidateRejectsMinZoomAboveMaxZoom(t *testing.T) {
	root := &Root{Settings: Settings{BaseZoom: 14, MinZoom: 10, MaxZoom: 5}}
	if err := root.Validate(); err == nil {
		t.Fatal("expected an error when minzoom exceeds maxzoom")
	}
}

func TestValidateRejectsUnrecognizedCompress(t *testing.T) {
	root := &Root{Settings: Settings{BaseZoom: 14, MaxZoom: 14, Compress: "lz4"}}
	if err := root.Validate(); err == nil {
		t.Fatal("expected an error for an unrecognized compress value")
	}
}

func TestValidateAcceptsEmptyCompress(t *testing.T) {
	root := &Root{Settings: Settings{BaseZoom: 14, MaxZoom: 14, Compress: ""}}
	if err := root.Validate(); err != nil {
		t.Errorf("expected empty compress to be valid, got %v", err)
	}
}

func TestValidateRejectsLayerMinZoomAboveMaxZoom(t *testing.T) {
	root := &Root{
		Settings: Settings{BaseZoom: 14, MaxZoom: 14},
		Layers:   map[string]LayerConfig{"bad": {MinZoom: 10, MaxZoom: 5}},
	}
	if err := root.Validate(); err == nil {
		t.Fatal("expected an error when a layer's minzoom exceeds its maxzoom")
	}
}

func TestValidateRejectsSimplifyBelowAboveBaseZoomPlusOne(t *testing.T) {
	root := &Root{
		Settings: Settings{BaseZoom: 10, MaxZoom: 10},
		Layers:   map[string]LayerConfig{"bad": {SimplifyBelow: 20}},
	}
	if err := root.Validate(); err == nil {
		t.Fatal("expected an error when simplify_below exceeds basezoom+1")
	}
}
