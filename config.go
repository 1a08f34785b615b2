package main

import (
	"fmt"
	"net/http"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"geotiler/generate"
	"geotiler/geosource"
	"geotiler/queue"
	"geotiler/raster"
	"geotiler/tile"
)

func openStore() (queue.Store, error) {
	return queue.OpenStore(viper.GetString("queue.driver"), viper.GetString("queue.dsn"))
}

func rasterOptions() (raster.Options, error) {
	format, err := tile.ParseFormat(viper.GetString("render.format"))
	if err != nil {
		return raster.Options{}, fmt.Errorf("render.format: %w", err)
	}
	opts := raster.Options{
		TileSize:      viper.GetInt("render.tile_size"),
		Background:    viper.GetString("render.background"),
		Format:        format,
		LineThickness: viper.GetInt("render.line_thickness"),
		PointDiameter: viper.GetInt("render.point_diameter"),
		Debug:         viper.GetBool("render.debug"),
		CacheTiles:    viper.GetBool("render.cache"),
		CacheDir:      viper.GetString("render.cache_dir"),
	}
	if path := viper.GetString("render.empty_tile"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return opts, fmt.Errorf("render.empty_tile: %w", err)
		}
		opts.EmptyTile = data
	}
	return opts, nil
}

func openSource() (geosource.Source, error) {
	cfg := geosource.Config{
		Driver:    viper.GetString("source.driver"),
		Path:      viper.GetString("source.path"),
		Table:     viper.GetString("source.table"),
		CacheSize: viper.GetInt("source.cache_size"),
	}
	if cfg.Path == "" {
		log.Warn("source.path not set, every tile renders empty")
		return nil, nil
	}
	return geosource.Open(cfg)
}

// newGenerator builds the in-process renderer; release closes its source.
func newGenerator() (g *generate.Generator, release func(), err error) {
	opts, err := rasterOptions()
	if err != nil {
		return nil, nil, err
	}
	src, err := openSource()
	if err != nil {
		return nil, nil, err
	}
	release = func() {}
	if src != nil {
		release = func() {
			if err := src.Close(); err != nil {
				log.Warnf("close source error ~ %s", err)
			}
		}
	}
	return generate.New(src, opts), release, nil
}

func newRenderer() (queue.Renderer, func(), error) {
	switch r := viper.GetString("daemon.renderer"); r {
	case "", "local":
		return newGenerator()
	case "http":
		return &queue.HTTPRenderer{
			BaseURL: viper.GetString("daemon.render_url"),
			Client:  &http.Client{},
		}, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown daemon.renderer %q", r)
	}
}

func newWorker(store queue.Store, renderer queue.Renderer) *queue.Worker {
	w := queue.NewWorker(store, renderer)
	w.RenderTimeout = viper.GetDuration("daemon.render_timeout")
	return w
}

func daemonConfig() (*queue.DaemonConfig, error) {
	limit, err := queue.ParseMemoryLimit(viper.GetString("daemon.memory_limit"))
	if err != nil {
		return nil, err
	}
	return &queue.DaemonConfig{
		MemoryLimit:  limit,
		IdleInterval: viper.GetDuration("daemon.idle_interval"),
		BusyInterval: viper.GetDuration("daemon.busy_interval"),
		BatchSize:    viper.GetInt("daemon.batch_size"),
	}, nil
}
