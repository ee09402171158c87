package driver

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tilemaker-go/tilemaker/internal/geo"
	"github.com/tilemaker-go/tilemaker/internal/layerdef"
	"github.com/tilemaker-go/tilemaker/internal/output"
	"github.com/tilemaker-go/tilemaker/internal/tiledata"
	"github.com/tilemaker-go/tilemaker/internal/tilemakererr"
	"github.com/tilemaker-go/tilemaker/internal/tileworker"
)

// Config is the immutable input to one driver Run: zoom range, thread
// count, and the shared references to layer defs, tile data facade and
// output sink (spec §4.7's SharedData).
type Config struct {
	StartZoom uint8
	EndZoom   uint8
	Threads   int

	Facade *tiledata.Facade
	Order  *layerdef.Order
	Defs   map[uint8]*layerdef.LayerDef
	Sink   output.Sink

	RenderOpts tileworker.Options
	Compress   tileworker.CompressionOptions

	Log      *logrus.Logger
	Progress *ProgressBus
}

// Run executes the zoom loop: for each zoom level, rebuild the tile data
// facade's tile-coordinate set, then round-robin the tile list across
// Threads workers who each render and write their assigned tiles. Tile
// errors are logged and the tile is skipped (spec §7's per-tile error
// policy); the sink itself failing is fatal for the whole run.
func Run(cfg Config) error {
	threads := cfg.Threads
	if threads < 1 {
		threads = 1
	}

	for z := cfg.StartZoom; z <= cfg.EndZoom; z++ {
		tiles := cfg.Facade.TileSetAt(z)

		var wg sync.WaitGroup
		errCh := make(chan error, threads)

		for w := 0; w < threads; w++ {
			wg.Add(1)
			go func(worker int) {
				defer wg.Done()
				if err := runWorker(cfg, z, tiles, worker, threads); err != nil {
					errCh <- err
				}
			}(w)
		}

		wg.Wait()
		close(errCh)
		for err := range errCh {
			return err // a Sink-level OutputError aborts the whole run
		}

		if z == cfg.EndZoom {
			break
		}
	}
	return nil
}

// runWorker processes every tile i in tiles where i mod totalWorkers ==
// worker (spec's round-robin partitioning — "the only ordering guarantee").
// Worker 0 is the designated progress reporter.
func runWorker(cfg Config, zoom uint8, tiles []geo.TileCoord, worker, totalWorkers int) error {
	report := worker == 0 && cfg.Progress != nil
	done := 0

	for i, tile := range tiles {
		if i%totalWorkers != worker {
			continue
		}

		objs := cfg.Facade.GetTileData(tile)
		if len(objs) == 0 {
			continue
		}

		layers, err := tileworker.RenderTile(tile, objs, cfg.Order, cfg.Defs, cfg.RenderOpts, func(err error) {
			if cfg.Log != nil {
				cfg.Log.WithError(err).Warn("dropping feature during tile render")
			}
		})
		if err != nil {
			if cfg.Log != nil {
				cfg.Log.WithError(err).WithField("tile", tile.String()).Error("tile render failed")
			}
			continue
		}
		if len(layers) == 0 {
			continue
		}

		data, err := tileworker.Encode(layers, cfg.Compress)
		if err != nil {
			if cfg.Log != nil {
				cfg.Log.WithError(err).WithField("tile", tile.String()).Error("tile encode failed")
			}
			continue
		}

		if err := cfg.Sink.SaveTile(tile.Z, tile.X, tile.Y, data); err != nil {
			return &tilemakererr.OutputError{Msg: "save tile " + tile.String(), Err: err}
		}

		done++
		if report {
			cfg.Progress.Publish(ProgressEvent{Zoom: zoom, TilesDone: done, TilesTotal: len(tiles) / totalWorkers})
		}
	}
	return nil
}
