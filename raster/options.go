package raster

import (
	"errors"
	"fmt"

	"geotiler/mercator"
	"geotiler/tile"
)

//DefaultColor 默认绘制颜色
const DefaultColor = "#FF0000"

//DefaultBackground 默认背景色, rendered transparent
const DefaultBackground = "#FFFFFF"

// DefaultLineThickness is the polyline stroke width in pixels.
const DefaultLineThickness = 3

// DefaultPointDiameter is the marker size in pixels.
const DefaultPointDiameter = 5

// Style is the drawing style of a single primitive.
type Style struct {
	Color string
}

func (s Style) color() string {
	if s.Color == "" {
		return DefaultColor
	}
	return s.Color
}

// Options configure a Canvas. Zero values fall back to the defaults.
type Options struct {
	TileSize      int
	Background    string
	Format        tile.Format
	LineThickness int
	PointDiameter int

	// Debug draws primitive counts and the tile name into every tile,
	// including tiles with nothing on them.
	Debug bool

	// CacheTiles writes every rendered tile below CacheDir. The canvas
	// never reads the cache back.
	CacheTiles bool
	CacheDir   string

	// EmptyTile is returned as-is for tiles with nothing drawn on them.
	// Nil selects the embedded 256 pixel blank tile of the output format;
	// other tile sizes encode a transparent tile instead.
	EmptyTile []byte
}

// DefaultOptions returns the options tiles are rendered with unless configured otherwise.
func DefaultOptions() Options {
	return Options{
		TileSize:      mercator.DefaultTileSize,
		Background:    DefaultBackground,
		Format:        tile.GIF,
		LineThickness: DefaultLineThickness,
		PointDiameter: DefaultPointDiameter,
		CacheDir:      "cache",
	}
}

var errInvalidOptions = errors.New("invalid canvas options")

func (o Options) withDefaults() (Options, error) {
	d := DefaultOptions()
	if o.TileSize == 0 {
		o.TileSize = d.TileSize
	}
	if o.TileSize < 0 {
		return o, fmt.Errorf("%w: tile size %d", errInvalidOptions, o.TileSize)
	}
	if o.Background == "" {
		o.Background = d.Background
	}
	if o.Format == "" {
		o.Format = d.Format
	}
	if o.LineThickness <= 0 {
		o.LineThickness = d.LineThickness
	}
	if o.PointDiameter <= 0 {
		o.PointDiameter = d.PointDiameter
	}
	if o.CacheTiles && o.CacheDir == "" {
		o.CacheDir = d.CacheDir
	}
	return o, nil
}
