package raster

import (
	"image"
	"math"
	"sort"
)

// fpoint is a position in canvas pixel space; integer pixels sit at +0.5.
type fpoint struct {
	X, Y float64
}

func setPixel(img *image.Paletted, x, y int, idx uint8) {
	if !(image.Point{x, y}.In(img.Rect)) {
		return
	}
	img.Pix[img.PixOffset(x, y)] = idx
}

// fillRings fills the rings with the even-odd rule, so inner rings punch
// holes into the outer one. A pixel is set when its center falls inside.
func fillRings(img *image.Paletted, rings [][]fpoint, idx uint8) int {
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, r := range rings {
		for _, p := range r {
			minY = math.Min(minY, p.Y)
			maxY = math.Max(maxY, p.Y)
		}
	}
	if math.IsInf(minY, 0) {
		return 0
	}

	b := img.Rect
	y0 := max(int(math.Floor(minY-0.5)), b.Min.Y)
	y1 := min(int(math.Ceil(maxY)), b.Max.Y-1)

	filled := 0
	var xs []float64
	for y := y0; y <= y1; y++ {
		sy := float64(y) + 0.5
		xs = xs[:0]
		for _, r := range rings {
			n := len(r)
			for i := 0; i < n; i++ {
				a, c := r[i], r[(i+1)%n]
				if (a.Y <= sy && c.Y > sy) || (c.Y <= sy && a.Y > sy) {
					xs = append(xs, a.X+(sy-a.Y)*(c.X-a.X)/(c.Y-a.Y))
				}
			}
		}
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			start := max(int(math.Ceil(xs[i]-0.5)), b.Min.X)
			end := min(int(math.Floor(xs[i+1]-0.5)), b.Max.X-1)
			for x := start; x <= end; x++ {
				img.Pix[img.PixOffset(x, y)] = idx
				filled++
			}
		}
	}
	return filled
}

// clipSegment trims a-b to r (Liang-Barsky). ok is false when the segment
// misses r entirely.
func clipSegment(a, b fpoint, r image.Rectangle) (fpoint, fpoint, bool) {
	t0, t1 := 0.0, 1.0
	dx, dy := b.X-a.X, b.Y-a.Y
	edges := [4][2]float64{
		{-dx, a.X - float64(r.Min.X)},
		{dx, float64(r.Max.X) - a.X},
		{-dy, a.Y - float64(r.Min.Y)},
		{dy, float64(r.Max.Y) - a.Y},
	}
	for _, e := range edges {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return a, b, false
			}
			continue
		}
		t := q / p
		if p < 0 {
			if t > t1 {
				return a, b, false
			}
			t0 = math.Max(t0, t)
		} else {
			if t < t0 {
				return a, b, false
			}
			t1 = math.Min(t1, t)
		}
	}
	return fpoint{a.X + t0*dx, a.Y + t0*dy}, fpoint{a.X + t1*dx, a.Y + t1*dy}, true
}

// drawLine is a one pixel wide Bresenham line between pixel centers.
func drawLine(img *image.Paletted, a, b fpoint, idx uint8) {
	a, b, ok := clipSegment(a, b, img.Rect.Inset(-1))
	if !ok {
		return
	}
	x0, y0 := int(math.Floor(a.X)), int(math.Floor(a.Y))
	x1, y1 := int(math.Floor(b.X)), int(math.Floor(b.Y))
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		setPixel(img, x0, y0, idx)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// drawOutline strokes a closed ring with one pixel wide lines.
func drawOutline(img *image.Paletted, ring []fpoint, idx uint8) {
	for i := range ring {
		drawLine(img, ring[i], ring[(i+1)%len(ring)], idx)
	}
}

// fillDisc sets every pixel whose center lies within diameter/2 of c.
func fillDisc(img *image.Paletted, c fpoint, diameter float64, idx uint8) {
	r := diameter / 2
	r2 := r * r
	b := img.Rect
	x0 := max(int(math.Floor(c.X-r)), b.Min.X)
	x1 := min(int(math.Ceil(c.X+r)), b.Max.X-1)
	y0 := max(int(math.Floor(c.Y-r)), b.Min.Y)
	y1 := min(int(math.Ceil(c.Y+r)), b.Max.Y-1)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			dx := float64(x) + 0.5 - c.X
			dy := float64(y) + 0.5 - c.Y
			if dx*dx+dy*dy <= r2 {
				img.Pix[img.PixOffset(x, y)] = idx
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
