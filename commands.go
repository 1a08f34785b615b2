package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"geotiler/geosource"
	"geotiler/metrics"
	"geotiler/queue"
	"geotiler/tile"
)

var enqueueFlags struct {
	sw, ne   string
	geojson  string
	cover    bool
	category uint64
	format   string
	minZoom  int
	maxZoom  int
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Queue every tile of a lat/lng box or a GeoJSON extent",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := enqueueFlags
		if !cmd.Flags().Changed("min-zoom") {
			f.minZoom = viper.GetInt("enqueue.min_zoom")
		}
		if !cmd.Flags().Changed("max-zoom") {
			f.maxZoom = viper.GetInt("enqueue.max_zoom")
		}
		if f.format == "" {
			f.format = viper.GetString("render.format")
		}
		format, err := tile.ParseFormat(f.format)
		if err != nil {
			return err
		}
		proto := tile.Address{Format: format}
		if cmd.Flags().Changed("category") {
			proto.CategoryID, proto.HasCategory = f.category, true
		}

		tiles, err := planTiles(proto, f.sw, f.ne, f.geojson, f.cover, f.minZoom, f.maxZoom)
		if err != nil {
			return err
		}
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		return NewTask(tiles).Run(cmd.Context(), store)
	},
}

func planTiles(proto tile.Address, sw, ne, path string, cover bool, minZoom, maxZoom int) ([]tile.Address, error) {
	size := viper.GetInt("render.tile_size")
	if path != "" {
		file, err := geosource.OpenFile(path)
		if err != nil {
			return nil, err
		}
		if cover {
			return queue.CoverTiles(proto, file.Collection(), minZoom, maxZoom)
		}
		b := file.Bound()
		return queue.BoxTiles(proto, b.Min, b.Max, minZoom, maxZoom, size)
	}
	if sw == "" || ne == "" {
		return nil, errors.New("either --sw and --ne or --geojson is required")
	}
	var corners [2]orb.Point
	for i, s := range []string{sw, ne} {
		p, err := parseLatLng(s)
		if err != nil {
			return nil, err
		}
		corners[i] = p
	}
	return queue.BoxTiles(proto, corners[0], corners[1], minZoom, maxZoom, size)
}

var processMax int

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Render and remove up to --max open queue items",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		renderer, closeRenderer, err := newRenderer()
		if err != nil {
			return err
		}
		defer closeRenderer()
		n, err := newWorker(store, renderer).ProcessBatch(cmd.Context(), processMax)
		if err != nil {
			return err
		}
		log.Infof("%d queue items processed", n)
		return nil
	},
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Work the render queue until memory use reaches the limit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := daemonConfig()
		if err != nil {
			return err
		}
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		renderer, closeRenderer, err := newRenderer()
		if err != nil {
			return err
		}
		defer closeRenderer()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		if addr := viper.GetString("metrics.address"); addr != "" {
			go func() {
				if err := metrics.Serve(ctx, addr); err != nil {
					log.Errorf("metrics server error ~ %s", err)
				}
			}()
		}
		return queue.NewDaemon(store, newWorker(store, renderer), cfg).Run(ctx)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how many queue items are open and processing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		st, err := queue.StatusOf(cmd.Context(), store)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "open: %d\nprocessing: %d\n", st.Open, st.Processing)
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every open queue item",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		n, err := store.ClearOpen(cmd.Context())
		if err != nil {
			return err
		}
		log.Infof("%d open items cleared", n)
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reopen queue items left processing by a stopped worker",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		n, err := store.ResetProcessing(cmd.Context())
		if err != nil {
			return err
		}
		log.Infof("%d processing items reopened", n)
		return nil
	},
}

var renderOut string

var renderCmd = &cobra.Command{
	Use:   "render TILE...",
	Short: "Render tiles like 3/12-7-5.png into the cache, or one tile into --out",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if renderOut != "" && len(args) > 1 {
			return errors.New("--out takes a single tile")
		}
		g, closeSource, err := newGenerator()
		if err != nil {
			return err
		}
		defer closeSource()
		for _, arg := range args {
			addr, err := tile.Parse(arg)
			if err != nil {
				return err
			}
			data, err := g.Tile(cmd.Context(), addr)
			if err != nil {
				return fmt.Errorf("render %s: %w", arg, err)
			}
			if renderOut == "" {
				continue
			}
			if renderOut == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.MkdirAll(filepath.Dir(renderOut), os.ModePerm); err != nil {
				return err
			}
			return os.WriteFile(renderOut, data, 0o644)
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve tiles and the render endpoint over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, closeSource, err := newGenerator()
		if err != nil {
			return err
		}
		defer closeSource()

		ctx := cmd.Context()
		if addr := viper.GetString("metrics.address"); addr != "" {
			go func() {
				if err := metrics.Serve(ctx, addr); err != nil {
					log.Errorf("metrics server error ~ %s", err)
				}
			}()
		}
		srv := &http.Server{
			Addr:              viper.GetString("server.address"),
			Handler:           g.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdown)
		}()
		log.Infof("serving tiles on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	f := enqueueCmd.Flags()
	f.StringVar(&enqueueFlags.sw, "sw", "", "south-west corner as `lat,lng`")
	f.StringVar(&enqueueFlags.ne, "ne", "", "north-east corner as `lat,lng`")
	f.StringVar(&enqueueFlags.geojson, "geojson", "", "queue the extent of a GeoJSON `file`")
	f.BoolVar(&enqueueFlags.cover, "cover", false, "with --geojson, queue only tiles touching its shapes")
	f.Uint64Var(&enqueueFlags.category, "category", 0, "category `id` folder of the tiles")
	f.StringVar(&enqueueFlags.format, "format", "", "tile format, gif or png (default render.format)")
	f.IntVar(&enqueueFlags.minZoom, "min-zoom", 0, "lowest zoom (default enqueue.min_zoom)")
	f.IntVar(&enqueueFlags.maxZoom, "max-zoom", 0, "highest zoom (default enqueue.max_zoom)")

	processCmd.Flags().IntVar(&processMax, "max", 1, "most items to process")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "write the tile to `file`, - for stdout")

	rootCmd.AddCommand(enqueueCmd, processCmd, daemonCmd, statusCmd, clearCmd, resetCmd, renderCmd, serveCmd)
}
