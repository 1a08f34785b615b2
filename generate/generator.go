// Package generate renders tiles in-process: it parses the tile string,
// looks up the shapes of the tile and draws them on a raster canvas.
package generate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"

	"geotiler/geosource"
	"geotiler/mercator"
	"geotiler/raster"
	"geotiler/tile"
)

// ErrOutOfRange is returned for tile indices that do not exist at their zoom.
var ErrOutOfRange = errors.New("tile out of range")

// Generator renders tiles from a geometry source. A nil source renders
// every tile empty.
type Generator struct {
	src    geosource.Source
	opts   raster.Options
	logger *log.Entry
}

// New returns a Generator drawing the shapes of src with opts.
func New(src geosource.Source, opts raster.Options) *Generator {
	if opts.TileSize <= 0 {
		opts.TileSize = mercator.DefaultTileSize
	}
	return &Generator{
		src:    src,
		opts:   opts,
		logger: log.WithField("component", "generate"),
	}
}

// Options are the canvas options tiles are rendered with.
func (g *Generator) Options() raster.Options {
	return g.opts
}

// pad grows b so that strokes and markers centered just outside the tile
// still reach into it.
func (g *Generator) pad(b orb.Bound) orb.Bound {
	px := float64(max(g.opts.LineThickness, raster.DefaultLineThickness)+
		max(g.opts.PointDiameter, raster.DefaultPointDiameter))/2 + 1
	deg := math.Max(b.Max.X()-b.Min.X(), b.Max.Y()-b.Min.Y()) / float64(g.opts.TileSize)
	return b.Pad(px * deg)
}

// Tile renders addr and returns the encoded tile. With caching enabled the
// tile is written below the cache dir as well.
func (g *Generator) Tile(ctx context.Context, addr tile.Address) ([]byte, error) {
	if !addr.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrOutOfRange, addr)
	}
	start := time.Now()
	c, err := raster.New(addr, g.opts)
	if err != nil {
		return nil, err
	}

	var shapes []geosource.Shape
	if g.src != nil {
		b := mercator.TileBound(int(addr.X), int(addr.Y), int(addr.Zoom))
		shapes, err = g.src.Shapes(ctx, g.pad(b), addr.CategoryID, addr.HasCategory)
		if err != nil {
			return nil, fmt.Errorf("load shapes of %s: %w", addr, err)
		}
	}
	for _, s := range shapes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.Add(s.Geometry, s.Style); err != nil {
			g.logger.Warnf("%s: shape skipped ~ %s", addr, err)
		}
	}

	data, err := c.Render()
	if err != nil {
		return nil, err
	}
	g.logger.Debugf("rendered %s, %d shapes, %s, %.3fs", addr, len(shapes),
		humanize.Bytes(uint64(len(data))), time.Since(start).Seconds())
	return data, nil
}

// Render renders the tile string url. The status code is 200 on success,
// 400 for malformed or out of range tiles and 500 for anything else.
func (g *Generator) Render(ctx context.Context, url string) (int, error) {
	addr, err := tile.Parse(url)
	if err != nil {
		return http.StatusBadRequest, err
	}
	if _, err := g.Tile(ctx, addr); err != nil {
		if errors.Is(err, ErrOutOfRange) {
			return http.StatusBadRequest, err
		}
		return http.StatusInternalServerError, err
	}
	return http.StatusOK, nil
}
