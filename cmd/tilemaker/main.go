// Command tilemaker converts OpenStreetMap PBF extracts and configured
// shapefile layers into a zoom pyramid of Mapbox Vector Tiles, written
// either to an MBTiles SQLite container or a directory of .pbf files
// (spec §6's CLI surface).
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tilemaker-go/tilemaker/internal/config"
	"github.com/tilemaker-go/tilemaker/internal/driver"
	"github.com/tilemaker-go/tilemaker/internal/geo"
	"github.com/tilemaker-go/tilemaker/internal/layerdef"
	"github.com/tilemaker-go/tilemaker/internal/osmstore"
	"github.com/tilemaker-go/tilemaker/internal/output"
	"github.com/tilemaker-go/tilemaker/internal/script"
	"github.com/tilemaker-go/tilemaker/internal/shapefile"
	"github.com/tilemaker-go/tilemaker/internal/tiledata"
	"github.com/tilemaker-go/tilemaker/internal/tileindex"
	"github.com/tilemaker-go/tilemaker/internal/tileworker"
)

type cliFlags struct {
	inputs     []string
	output     string
	configPath string
	process    string
	verbose    bool
	threads    int
}

func main() {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:   "tilemaker [inputs...]",
		Short: "Convert OSM and shapefile data into a Mapbox Vector Tile pyramid",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.inputs = append(flags.inputs, args...)
			return run(flags)
		},
	}

	root.Flags().StringArrayVar(&flags.inputs, "input", nil, "OSM PBF input file (repeatable; O5M is not read)")
	root.Flags().StringVar(&flags.output, "output", "", "output directory or .mbtiles/.sqlite file")
	root.Flags().StringVar(&flags.configPath, "config", "config.json", "JSON config file")
	root.Flags().StringVar(&flags.process, "process", "process.lua", "feature classification rules file")
	root.Flags().BoolVar(&flags.verbose, "verbose", false, "extra per-object diagnostics")
	root.Flags().IntVar(&flags.threads, "threads", 0, "worker thread count (0 = auto)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
	if help, _ := root.Flags().GetBool("help"); help {
		os.Exit(1)
	}
}

// exitCodeFor maps a run error to spec §6's exit code convention: every
// error reaching main (argument, config, input, or output failures such as
// a sink that cannot be opened or written) is negative; per-tile errors are
// logged inside driver.Run and never reach here. 0 (success) and 1 (help
// printed) are set in main and never reach here either.
func exitCodeFor(err error) int {
	return -1
}

func run(flags *cliFlags) error {
	log := logrus.New()
	if flags.verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if len(flags.inputs) == 0 {
		return fmt.Errorf("at least one --input is required")
	}
	if flags.output == "" {
		return fmt.Errorf("--output is required")
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	baseZoom := uint8(cfg.Settings.BaseZoom)

	store := osmstore.New()
	index := tileindex.New(baseZoom)
	shapefiles := shapefile.NewSet()

	order := layerdef.NewOrder()
	defs := make(map[uint8]*layerdef.LayerDef)
	layerIDs := make(map[string]uint8)

	// First pass, in deterministic (sorted) layer-name order so the
	// resulting LayerOrder groups — and therefore MVT feature order within
	// a tile — never depend on Go's randomized map iteration (spec INV-5:
	// "identical inputs and configuration produce bit-identical per-tile
	// outputs"): assign ids and register every layer that isn't merged
	// into another (write_to) as its own anchor.
	names := sortedLayerNames(cfg.Layers)
	for i, name := range names {
		lc := cfg.Layers[name]
		id := uint8(i)
		layerIDs[name] = id
		defs[id] = &layerdef.LayerDef{
			ID: id, Name: name,
			MinZoom: lc.MinZoom, MaxZoom: lc.MaxZoom,
			SimplifyBelow: lc.SimplifyBelow, SimplifyLevel: lc.SimplifyLevel,
			SimplifyLength: lc.SimplifyLength, SimplifyRatio: lc.SimplifyRatio,
			WriteTo: lc.WriteTo, Source: lc.Source, SourceColumns: lc.SourceColumns,
			Indexed: lc.Index, IndexColumn: lc.IndexColumn,
		}
		if err := defs[id].Validate(int(baseZoom)); err != nil {
			return &configValidationError{err}
		}
		if lc.WriteTo == "" {
			order.AddAnchor(id)
		}
	}
	// Second pass, same deterministic order, to resolve write_to targets:
	// every anchor must already be registered before any member joins it.
	for _, name := range names {
		lc := cfg.Layers[name]
		if lc.WriteTo == "" {
			continue
		}
		anchorID, ok := layerIDs[lc.WriteTo]
		if !ok {
			return fmt.Errorf("layer %q: write_to target %q not found", name, lc.WriteTo)
		}
		if err := order.AddMember(anchorID, layerIDs[name]); err != nil {
			return err
		}
	}

	// Load shapefile-backed layers and build the classification rule set
	// for script-emitted layers (spec §4.2 + the RuleProgram resolution).
	var rules []script.Rule
	var clipBox *geo.Box
	if bb := cfg.Settings.BoundingBox; bb != [4]float64{} {
		b := geo.Box{
			Min: geo.Point{X: bb[0], Y: geo.Lat(bb[1])},
			Max: geo.Point{X: bb[2], Y: geo.Lat(bb[3])},
		}
		clipBox = &b
	}

	for _, name := range names {
		lc := cfg.Layers[name]
		if lc.Source != "" {
			if err := shapefile.Load(lc.Source, shapefiles, shapefile.LoadOptions{
				Layer: name, Clip: clipBox, IndexColumn: lc.IndexColumn,
				Indexed: lc.Index, Index: index, LayerID: layerIDs[name], BaseZoom: baseZoom,
				SourceColumns: lc.SourceColumns,
			}); err != nil {
				log.WithError(err).WithField("layer", name).Error("failed to load shapefile layer")
			}
			continue
		}
		rules = append(rules, script.Rule{
			Layer: name, Area: lc.Area, Match: lc.Match, Attributes: lc.Attributes,
			Nodes: lc.Nodes, Ways: lc.Ways, Relations: lc.Relations,
		})
	}
	extraRules, err := loadProcessRules(flags.process)
	if err != nil {
		return err
	}
	rules = append(rules, extraRules...)
	program := script.NewRuleProgram(rules)

	extractor := script.NewExtractor(store, index, shapefiles, layerNameMap(defs), layerIDs, program, baseZoom, log)

	var inputsRead int
	for _, path := range flags.inputs {
		if err := extractor.Preprocess(path); err != nil {
			log.WithError(err).WithField("input", path).Error("preprocess failed")
			continue
		}
		if err := extractor.Process(path); err != nil {
			log.WithError(err).WithField("input", path).Error("process failed")
			continue
		}
		inputsRead++
	}
	if inputsRead == 0 {
		return fmt.Errorf("no input was successfully read")
	}

	facade := tiledata.NewFacade(tiledata.IndexSource{Index: index, Extent: clipBox})

	meta := output.Metadata{
		Name: cfg.Settings.Name, Description: cfg.Settings.Description, Version: cfg.Settings.Version,
		MinZoom: cfg.Settings.MinZoom, MaxZoom: cfg.Settings.MaxZoom,
		Bounds: cfg.Settings.BoundingBox, Center: cfg.Settings.DefaultView,
		JSON: layerMetadataJSON(cfg, defs),
	}
	sink, err := output.NewSink(flags.output, meta)
	if err != nil {
		return err
	}
	defer sink.Close()

	threads := flags.threads
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(-1)
	}

	compress, gzipCodec, err := compressionFor(cfg.Settings.Compress)
	if err != nil {
		return err
	}

	renderOpts := tileworker.DefaultOptions()
	renderOpts.IncludeIDs = cfg.Settings.IncludeIDs
	if cfg.Settings.MVTVersion != 0 {
		renderOpts.MVTVersion = cfg.Settings.MVTVersion
	}

	driverErr := driver.Run(driver.Config{
		StartZoom: uint8(cfg.Settings.MinZoom), EndZoom: uint8(cfg.Settings.MaxZoom), Threads: threads,
		Facade: facade, Order: order, Defs: defs, Sink: sink,
		RenderOpts: renderOpts, Compress: tileworker.CompressionOptions{Compress: compress, Gzip: gzipCodec},
		Log: log,
	})
	if driverErr != nil {
		return driverErr
	}

	log.Info("tile generation complete")
	return nil
}

func compressionFor(value string) (compress, gzipCodec bool, err error) {
	switch value {
	case "", "none":
		return false, false, nil
	case "gzip":
		return true, true, nil
	case "deflate":
		return true, false, nil
	default:
		return false, false, fmt.Errorf("unrecognized compress value %q", value)
	}
}

func sortedLayerNames(layers map[string]config.LayerConfig) []string {
	names := make([]string, 0, len(layers))
	for name := range layers {
		names = append(names, name)
	}
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j-1] > names[j]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
	return names
}

func layerNameMap(defs map[uint8]*layerdef.LayerDef) map[string]*layerdef.LayerDef {
	out := make(map[string]*layerdef.LayerDef, len(defs))
	for _, d := range defs {
		out[d.Name] = d
	}
	return out
}

func layerMetadataJSON(cfg *config.Root, defs map[uint8]*layerdef.LayerDef) map[string]any {
	vectorLayers := make([]map[string]any, 0, len(defs))
	for _, id := range sortedLayerIDs(defs) {
		d := defs[id]
		vectorLayers = append(vectorLayers, map[string]any{
			"id": d.Name, "minzoom": d.MinZoom, "maxzoom": d.MaxZoom,
		})
	}
	out := map[string]any{"vector_layers": vectorLayers}
	for k, v := range cfg.Settings.Metadata {
		out[k] = v
	}
	return out
}

func sortedLayerIDs(defs map[uint8]*layerdef.LayerDef) []uint8 {
	ids := make([]uint8, 0, len(defs))
	for id := range defs {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	return ids
}

// loadProcessRules reads the --process file as a JSON array of
// script.Rule, the config-driven stand-in for the original's process.lua
// body (see SPEC_FULL.md). A missing file is not an error: the flag keeps
// spec §6's name and default, but every classification rule may just as
// well live in config.json's layers.<name>.match, so an absent rules file
// simply contributes nothing extra.
func loadProcessRules(path string) ([]script.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &configValidationError{fmt.Errorf("read process rules %s: %w", path, err)}
	}
	var rules []script.Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, &configValidationError{fmt.Errorf("decode process rules %s: %w", path, err)}
	}
	return rules, nil
}

type configValidationError struct{ err error }

func (e *configValidationError) Error() string { return e.err.Error() }
func (e *configValidationError) Unwrap() error { return e.err }
