package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"io"

	xdraw "golang.org/x/image/draw"

	"geotiler/tile"
)

// Encoder turns a cropped canvas into tile bytes. One encoder is picked per
// canvas, by output format, when the canvas is created.
type Encoder interface {
	Format() tile.Format

	// Scale is how many canvas pixels make up one output pixel.
	Scale() int

	// Encode writes img with the transparent palette index cleared.
	Encode(w io.Writer, img *image.Paletted, transparent uint8) error
}

// NewEncoder returns the encoder of a tile format.
func NewEncoder(f tile.Format) (Encoder, error) {
	switch f {
	case tile.GIF:
		return gifEncoder{}, nil
	case tile.PNG:
		return pngEncoder{scale: 2}, nil
	}
	return nil, fmt.Errorf("%w: %q", tile.ErrInvalidFormat, f)
}

// transparentPalette copies p with entry i fully transparent.
func transparentPalette(p color.Palette, i uint8) color.Palette {
	out := make(color.Palette, len(p))
	copy(out, p)
	if int(i) < len(out) {
		out[i] = color.RGBA{}
	}
	return out
}

type gifEncoder struct{}

func (gifEncoder) Format() tile.Format { return tile.GIF }

func (gifEncoder) Scale() int { return 1 }

func (gifEncoder) Encode(w io.Writer, img *image.Paletted, transparent uint8) error {
	out := *img
	out.Palette = transparentPalette(img.Palette, transparent)
	return gif.Encode(w, &out, &gif.Options{NumColors: len(out.Palette)})
}

// pngEncoder draws at scale times the tile size and downsamples on encode,
// which smooths the edges the paletted rasterizer leaves.
type pngEncoder struct {
	scale int
}

func (pngEncoder) Format() tile.Format { return tile.PNG }

func (e pngEncoder) Scale() int { return e.scale }

func (e pngEncoder) Encode(w io.Writer, img *image.Paletted, transparent uint8) error {
	src := image.NewNRGBA(img.Rect)
	pal := transparentPalette(img.Palette, transparent)
	for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
		for x := img.Rect.Min.X; x < img.Rect.Max.X; x++ {
			src.Set(x, y, pal[img.ColorIndexAt(x, y)])
		}
	}
	if e.scale <= 1 {
		return png.Encode(w, src)
	}

	b := img.Rect
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx()/e.scale, b.Dy()/e.scale))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	return enc.Encode(w, dst)
}
