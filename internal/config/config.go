// Package config loads and validates the JSON configuration file of spec
// §6 through viper and decodes the result into Root. CLI flags are not
// merged in: the file alone supplies these values.
// JSON parsing itself is the narrow external interface spec §1 carves out
// of the tile-generation core; this package is that interface's concrete
// side.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/tilemaker-go/tilemaker/internal/tilemakererr"
)

// Settings is the top-level settings.* block of the config file.
type Settings struct {
	BaseZoom    int            `mapstructure:"basezoom"`
	MinZoom     int            `mapstructure:"minzoom"`
	MaxZoom     int            `mapstructure:"maxzoom"`
	IncludeIDs  bool           `mapstructure:"include_ids"`
	Compress    string         `mapstructure:"compress"` // "gzip" | "deflate" | "none"
	Combine     bool           `mapstructure:"combine"`
	MVTVersion  uint32         `mapstructure:"mvt_version"`
	Name        string         `mapstructure:"name"`
	Version     string         `mapstructure:"version"`
	Description string         `mapstructure:"description"`
	BoundingBox [4]float64     `mapstructure:"bounding_box"`
	DefaultView [3]float64     `mapstructure:"default_view"`
	Metadata    map[string]any `mapstructure:"metadata"`
}

// LayerConfig is one layers.<name> block of the config file.
type LayerConfig struct {
	MinZoom        int      `mapstructure:"minzoom"`
	MaxZoom        int      `mapstructure:"maxzoom"`
	WriteTo        string   `mapstructure:"write_to"`
	SimplifyBelow  int      `mapstructure:"simplify_below"`
	SimplifyLevel  float64  `mapstructure:"simplify_level"`
	SimplifyLength float64  `mapstructure:"simplify_length"`
	SimplifyRatio  float64  `mapstructure:"simplify_ratio"`
	Source         string   `mapstructure:"source"`
	SourceColumns  []string `mapstructure:"source_columns"`
	Index          bool     `mapstructure:"index"`
	IndexColumn    string   `mapstructure:"index_column"`

	// Match/Attributes/Area/Nodes/Ways/Relations describe a script.Rule for
	// this layer directly in config (see internal/script.Rule) — the
	// config-driven stand-in for the original's process.lua body.
	Match      map[string]string `mapstructure:"match"`
	Attributes []string          `mapstructure:"attributes"`
	Area       bool              `mapstructure:"area"`
	Nodes      bool              `mapstructure:"nodes"`
	Ways       bool              `mapstructure:"ways"`
	Relations  bool              `mapstructure:"relations"`
}

// Root is the fully decoded configuration file.
type Root struct {
	Settings Settings               `mapstructure:"settings"`
	Layers   map[string]LayerConfig `mapstructure:"layers"`
}

// Load reads and decodes the JSON file at path into a Root, applying the
// package defaults spec §6 documents (combine=true, mvt_version=2).
func Load(path string) (*Root, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetDefault("settings.combine", true)
	v.SetDefault("settings.mvt_version", 2)

	if err := v.ReadInConfig(); err != nil {
		return nil, &tilemakererr.ConfigError{Msg: fmt.Sprintf("read config %s", path), Err: err}
	}

	var root Root
	if err := v.Unmarshal(&root); err != nil {
		return nil, &tilemakererr.ConfigError{Msg: "decode config", Err: err}
	}
	return &root, nil
}

// Validate checks the invariants spec §6/§3 require of the settings block:
// maxzoom <= basezoom, minzoom <= maxzoom, and a recognized compress value.
func (r *Root) Validate() error {
	s := r.Settings
	if s.MaxZoom > s.BaseZoom {
		return &tilemakererr.ConfigError{Msg: fmt.Sprintf("maxzoom (%d) must be <= basezoom (%d)", s.MaxZoom, s.BaseZoom)}
	}
	if s.MinZoom > s.MaxZoom {
		return &tilemakererr.ConfigError{Msg: fmt.Sprintf("minzoom (%d) must be <= maxzoom (%d)", s.MinZoom, s.MaxZoom)}
	}
	switch s.Compress {
	case "", "gzip", "deflate", "none":
	default:
		return &tilemakererr.ConfigError{Msg: fmt.Sprintf("unrecognized compress value %q", s.Compress)}
	}
	for name, l := range r.Layers {
		if l.MinZoom > l.MaxZoom {
			return &tilemakererr.ConfigError{Msg: fmt.Sprintf("layer %q: minzoom (%d) > maxzoom (%d)", name, l.MinZoom, l.MaxZoom)}
		}
		if l.SimplifyBelow > s.BaseZoom+1 {
			return &tilemakererr.ConfigError{Msg: fmt.Sprintf("layer %q: simplify_below (%d) > basezoom+1 (%d)", name, l.SimplifyBelow, s.BaseZoom+1)}
		}
	}
	return nil
}
