// Package raster draws polygons, polylines and points onto a single
// slippy-map tile and encodes it as gif or png.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"geotiler/mercator"
	"geotiler/tile"
)

// margin is the over-render border, in output pixels, kept on every side
// of the tile so fills never start on the tile edge. It is cropped on Render.
const margin = 1

// Canvas renders exactly one tile. Primitives are rasterized as soon as they
// are added; the canvas is discarded after Render.
type Canvas struct {
	addr   tile.Address
	opts   Options
	enc    Encoder
	scale  int
	colors *colorTable
	img    *image.Paletted
	bg     uint8

	polygons  int
	polylines int
	points    int

	logger *log.Entry
}

// New creates the canvas of addr. The format of addr wins over opts.Format.
func New(addr tile.Address, opts Options) (*Canvas, error) {
	if addr.Format != "" {
		opts.Format = addr.Format
	}
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	addr.Format = opts.Format
	enc, err := NewEncoder(opts.Format)
	if err != nil {
		return nil, err
	}
	if _, err := parseHex(opts.Background); err != nil {
		return nil, fmt.Errorf("%w: background: %v", errInvalidOptions, err)
	}
	return &Canvas{
		addr:   addr,
		opts:   opts,
		enc:    enc,
		scale:  enc.Scale(),
		logger: log.WithField("tile", addr.String()),
	}, nil
}

// Address is the tile the canvas renders.
func (c *Canvas) Address() tile.Address {
	return c.addr
}

// Empty reports whether nothing has been drawn yet.
func (c *Canvas) Empty() bool {
	return c.polygons+c.polylines+c.points == 0
}

// size is the internal canvas edge in canvas pixels, margin included.
func (c *Canvas) size() int {
	return (c.opts.TileSize + 2*margin) * c.scale
}

// init allocates the canvas on first draw, filled with the background color.
func (c *Canvas) init() error {
	if c.img != nil {
		return nil
	}
	c.colors = newColorTable()
	bg, err := c.colors.allocate(c.opts.Background)
	if err != nil {
		return err
	}
	c.bg = bg
	c.img = image.NewPaletted(image.Rect(0, 0, c.size(), c.size()), c.colors.palette)
	for i := range c.img.Pix {
		c.img.Pix[i] = bg
	}
	return nil
}

func (c *Canvas) color(hex string) (uint8, error) {
	if err := c.init(); err != nil {
		return 0, err
	}
	i, err := c.colors.allocate(hex)
	if err != nil {
		return 0, err
	}
	c.img.Palette = c.colors.palette
	return i, nil
}

// project maps a coordinate into canvas pixel space.
func (c *Canvas) project(p orb.Point) fpoint {
	size := c.opts.TileSize * c.scale
	px, py := mercator.GeoToZoomedPixelCoords(p.Lat(), p.Lon(), int(c.addr.Zoom), size)
	x := px - size*int(c.addr.X) + margin*c.scale
	y := py - size*int(c.addr.Y) + margin*c.scale
	return fpoint{float64(x) + 0.5, float64(y) + 0.5}
}

func (c *Canvas) projectAll(pts []orb.Point) []fpoint {
	out := make([]fpoint, len(pts))
	for i, p := range pts {
		out[i] = c.project(p)
	}
	return out
}

// AddPolygon fills a polygon; rings after the first are holes.
func (c *Canvas) AddPolygon(p orb.Polygon, s Style) error {
	if len(p) == 0 {
		return nil
	}
	idx, err := c.color(s.color())
	if err != nil {
		return err
	}
	rings := make([][]fpoint, 0, len(p))
	for _, r := range p {
		rings = append(rings, c.projectAll(r))
	}
	if fillRings(c.img, rings, idx) == 0 {
		// smaller than a pixel center, keep it visible
		drawOutline(c.img, rings[0], idx)
	}
	c.polygons++
	return nil
}

// AddPolyline strokes a line with the configured thickness.
func (c *Canvas) AddPolyline(ls orb.LineString, s Style) error {
	if len(ls) < 2 {
		return fmt.Errorf("polyline needs at least 2 points, got %d", len(ls))
	}
	idx, err := c.color(s.color())
	if err != nil {
		return err
	}
	strokeLine(c.img, c.projectAll(ls), c.opts.LineThickness*c.scale, idx)
	c.polylines++
	return nil
}

// AddPoint draws a filled marker.
func (c *Canvas) AddPoint(p orb.Point, s Style) error {
	idx, err := c.color(s.color())
	if err != nil {
		return err
	}
	fillDisc(c.img, c.project(p), float64(c.opts.PointDiameter*c.scale), idx)
	c.points++
	return nil
}

// Add draws any supported geometry, walking multi geometries and collections.
func (c *Canvas) Add(g orb.Geometry, s Style) error {
	switch g := g.(type) {
	case orb.Point:
		return c.AddPoint(g, s)
	case orb.MultiPoint:
		for _, p := range g {
			if err := c.AddPoint(p, s); err != nil {
				return err
			}
		}
	case orb.LineString:
		return c.AddPolyline(g, s)
	case orb.MultiLineString:
		for _, ls := range g {
			if err := c.AddPolyline(ls, s); err != nil {
				return err
			}
		}
	case orb.Ring:
		return c.AddPolygon(orb.Polygon{g}, s)
	case orb.Polygon:
		return c.AddPolygon(g, s)
	case orb.MultiPolygon:
		for _, p := range g {
			if err := c.AddPolygon(p, s); err != nil {
				return err
			}
		}
	case orb.Collection:
		for _, sub := range g {
			if err := c.Add(sub, s); err != nil {
				return err
			}
		}
	case orb.Bound:
		return c.AddPolygon(g.ToPolygon(), s)
	default:
		return fmt.Errorf("unsupported geometry %T", g)
	}
	return nil
}

// drawDebug lays the labels out at tile resolution and blows each glyph
// pixel up to a scale by scale block, so they keep their size and place
// once a scaled canvas is downsampled.
func (c *Canvas) drawDebug() error {
	black, err := c.color("#000000")
	if err != nil {
		return err
	}
	n := c.opts.TileSize + 2*margin
	mask := image.NewAlpha(image.Rect(0, 0, n, n))
	d := &font.Drawer{
		Dst:  mask,
		Src:  image.Opaque,
		Face: basicfont.Face7x13,
	}
	half := n / 2
	lines := []string{
		fmt.Sprintf("%d polygons", c.polygons),
		fmt.Sprintf("%d polylines", c.polylines),
		fmt.Sprintf("%d points", c.points),
		fmt.Sprintf("Tile: %d-%d-%d", c.addr.X, c.addr.Y, c.addr.Zoom),
	}
	for i, l := range lines {
		d.Dot = fixed.P(half-50, half-30+i*13)
		d.DrawString(l)
	}

	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			if mask.AlphaAt(x, y).A < 0x80 {
				continue
			}
			for dy := 0; dy < c.scale; dy++ {
				for dx := 0; dx < c.scale; dx++ {
					c.img.SetColorIndex(x*c.scale+dx, y*c.scale+dy, black)
				}
			}
		}
	}
	return nil
}

// crop cuts the margin away into a new image with its origin at zero.
func (c *Canvas) crop() *image.Paletted {
	m := margin * c.scale
	n := c.opts.TileSize * c.scale
	out := image.NewPaletted(image.Rect(0, 0, n, n), c.img.Palette)
	for y := 0; y < n; y++ {
		src := c.img.PixOffset(m, y+m)
		copy(out.Pix[y*out.Stride:y*out.Stride+n], c.img.Pix[src:src+n])
	}
	return out
}

// Render encodes the tile. A tile with nothing drawn on it returns the empty
// tile bytes unchanged unless Debug is set or no empty tile of the tile size
// is at hand.
func (c *Canvas) Render() ([]byte, error) {
	var data []byte
	blank := c.Empty() && !c.opts.Debug
	switch {
	case blank && c.opts.EmptyTile != nil:
		data = c.opts.EmptyTile
	case blank && c.opts.TileSize == mercator.DefaultTileSize:
		data = EmptyTile(c.opts.Format)
	default:
		// also blank tiles of a size the embedded ones do not have
		if err := c.init(); err != nil {
			return nil, err
		}
		if c.opts.Debug {
			if err := c.drawDebug(); err != nil {
				c.logger.Warnf("debug labels skipped ~ %s", err)
			}
		}
		var buf bytes.Buffer
		if err := c.enc.Encode(&buf, c.crop(), c.bg); err != nil {
			return nil, fmt.Errorf("encode %s: %w", c.addr, err)
		}
		data = buf.Bytes()
	}

	if c.opts.CacheTiles {
		if err := c.store(data); err != nil {
			return data, err
		}
	}
	return data, nil
}

func (c *Canvas) store(data []byte) error {
	path := c.addr.CachePath(c.opts.CacheDir)
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	c.logger.Debugf("cached %s", path)
	return nil
}

// Palette returns the colors allocated so far, background first.
func (c *Canvas) Palette() color.Palette {
	if c.colors == nil {
		return nil
	}
	return append(color.Palette(nil), c.colors.palette...)
}
