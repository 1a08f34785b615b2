package raster

import (
	"errors"
	"fmt"
	"image/color"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// ErrPaletteFull is returned once a canvas has used all 256 colors.
var ErrPaletteFull = errors.New("palette full")

const maxColors = 256

// colorTable allocates palette entries keyed by normalized hex string, so
// every distinct color takes exactly one slot however often it is drawn.
type colorTable struct {
	palette color.Palette
	index   map[string]uint8
}

func newColorTable() *colorTable {
	return &colorTable{
		palette: make(color.Palette, 0, 16),
		index:   make(map[string]uint8),
	}
}

func parseHex(hex string) (colorful.Color, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return c, fmt.Errorf("color %q: %w", hex, err)
	}
	return c, nil
}

// allocate returns the palette index of hex, adding it on first use.
func (t *colorTable) allocate(hex string) (uint8, error) {
	c, err := parseHex(hex)
	if err != nil {
		return 0, err
	}
	key := c.Hex()
	if i, ok := t.index[key]; ok {
		return i, nil
	}
	if len(t.palette) >= maxColors {
		return 0, fmt.Errorf("%w: cannot allocate %s", ErrPaletteFull, key)
	}
	r, g, b := c.RGB255()
	i := uint8(len(t.palette))
	t.palette = append(t.palette, color.RGBA{R: r, G: g, B: b, A: 0xff})
	t.index[key] = i
	return i, nil
}

func (t *colorTable) len() int {
	return len(t.palette)
}
