package raster

import (
	"image"
	"math"
)

// segmentHexagon builds the 6-point outline of a thick segment: both long
// sides sit half the thickness away from a-b, and each end is capped by a
// point half the thickness beyond the segment end.
func segmentHexagon(a, b fpoint, thickness float64) []fpoint {
	t := thickness / 2
	dx, dy := b.X-a.X, b.Y-a.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		dx, dy, l = 1, 0, 1
	}
	ux, uy := dx/l, dy/l
	nx, ny := -uy*t, ux*t
	cx, cy := ux*t, uy*t

	return []fpoint{
		{a.X + nx, a.Y + ny},
		{b.X + nx, b.Y + ny},
		{b.X + cx, b.Y + cy},
		{b.X - nx, b.Y - ny},
		{a.X - nx, a.Y - ny},
		{a.X - cx, a.Y - cy},
	}
}

// strokeLine draws pts as connected segments of the given thickness.
// Thickness 1 falls back to plain Bresenham lines.
func strokeLine(img *image.Paletted, pts []fpoint, thickness int, idx uint8) {
	for i := 0; i+1 < len(pts); i++ {
		if thickness <= 1 {
			drawLine(img, pts[i], pts[i+1], idx)
			continue
		}
		fillRings(img, [][]fpoint{segmentHexagon(pts[i], pts[i+1], float64(thickness))}, idx)
	}
}
