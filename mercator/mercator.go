// Package mercator holds the spherical Web Mercator math used to place
// geographic coordinates on slippy-map tiles.
package mercator

import (
	"math"

	"github.com/paulmach/orb"
)

//EarthRadius 球面墨卡托半径, meters
const EarthRadius = 6378137.0

//OriginShift half the projected world width, meters
const OriginShift = math.Pi * EarthRadius

//DefaultTileSize 默认瓦片大小
const DefaultTileSize = 256

//MaxLatitude latitude of the top edge of the square Mercator world
const MaxLatitude = 85.0511287798

//MaxZoom deepest zoom level that still fits tile indices in uint32
const MaxZoom = 30

// GeoToMeters projects a WGS84 coordinate to Mercator meters. Latitudes
// beyond MaxLatitude are clamped to it, the poles project to infinity.
func GeoToMeters(lat, lng float64) (mx, my float64) {
	lat = max(-MaxLatitude, min(lat, MaxLatitude))
	mx = lng * OriginShift / 180.0
	my = math.Log(math.Tan((90+lat)*math.Pi/360.0)) / (math.Pi / 180.0)
	my = my * OriginShift / 180.0
	return mx, my
}

// MetersToGeo is the inverse of GeoToMeters.
func MetersToGeo(mx, my float64) (lat, lng float64) {
	lng = (mx / OriginShift) * 180.0
	lat = (my / OriginShift) * 180.0
	lat = 180 / math.Pi * (2*math.Atan(math.Exp(lat*math.Pi/180.0)) - math.Pi/2.0)
	return lat, lng
}

// Resolution is meters per pixel at the given zoom.
func Resolution(zoom int, tileSize int) float64 {
	initial := 2 * OriginShift / float64(tileSize)
	return initial / math.Pow(2, float64(zoom))
}

// MetersToPixels converts Mercator meters to pyramid pixel coordinates.
// The origin is the bottom-left corner of the world (TMS orientation).
func MetersToPixels(mx, my float64, zoom int, tileSize int) (px, py float64) {
	res := Resolution(zoom, tileSize)
	px = (mx + OriginShift) / res
	py = (my + OriginShift) / res
	return px, py
}

// PixelsToMeters is the inverse of MetersToPixels.
func PixelsToMeters(px, py float64, zoom int, tileSize int) (mx, my float64) {
	res := Resolution(zoom, tileSize)
	mx = px*res - OriginShift
	my = py*res - OriginShift
	return mx, my
}

// PixelsToTile returns the TMS tile covering a pixel. A pixel sitting exactly
// on a tile edge belongs to the lower-indexed tile, so a zero-size box still
// resolves to a single tile.
func PixelsToTile(px, py float64, tileSize int) (tx, ty int) {
	tx = int(math.Ceil(px/float64(tileSize))) - 1
	ty = int(math.Ceil(py/float64(tileSize))) - 1
	return tx, ty
}

// MetersToTile returns the TMS tile covering a Mercator coordinate.
func MetersToTile(mx, my float64, zoom int, tileSize int) (tx, ty int) {
	px, py := MetersToPixels(mx, my, zoom, tileSize)
	return PixelsToTile(px, py, tileSize)
}

// GeoToTile returns the TMS tile covering a WGS84 coordinate.
func GeoToTile(lat, lng float64, zoom int, tileSize int) (tx, ty int) {
	mx, my := GeoToMeters(lat, lng)
	return MetersToTile(mx, my, zoom, tileSize)
}

// normalized maps a coordinate into [0,1)x[0,1) with y growing southwards.
func normalized(lat, lng float64) (x, y float64) {
	if lng > 180 {
		lng -= 360
	}
	lat = max(-MaxLatitude, min(lat, MaxLatitude))
	x = lng/360 + 0.5
	y = math.Asinh(math.Tan(lat*math.Pi/180)) / math.Pi / 2
	y = math.Abs(y - 0.5)
	return x, y
}

// GeoToZoomedPixelCoords returns global XYZ pixel coordinates at zoom,
// truncated toward zero to stay on the same grid as external tile servers.
func GeoToZoomedPixelCoords(lat, lng float64, zoom int, tileSize int) (px, py int) {
	x, y := normalized(lat, lng)
	scale := float64(uint64(1)<<uint(zoom)) * float64(tileSize)
	return int(x * scale), int(y * scale)
}

// GeoToFloatPixelCoords is GeoToZoomedPixelCoords without the truncation.
func GeoToFloatPixelCoords(lat, lng float64, zoom int, tileSize int) (px, py float64) {
	x, y := normalized(lat, lng)
	scale := float64(uint64(1)<<uint(zoom)) * float64(tileSize)
	return x * scale, y * scale
}

// TMSToXYZTile flips the Y axis between bottom-up (TMS) and top-down (XYZ)
// numbering. Applying it twice returns the original index.
func TMSToXYZTile(tx, ty int, zoom int) (x, y int) {
	return tx, (1<<uint(zoom) - 1) - ty
}

// TileBound returns the geographic bound of an XYZ tile.
func TileBound(x, y int, zoom int) orb.Bound {
	n := math.Pow(2, float64(zoom))
	lngWidth := 360.0 / n
	left := -180 + float64(x)*lngWidth

	latHeightMerc := 1.0 / n
	topLatMerc := float64(y) * latHeightMerc
	bottomLatMerc := topLatMerc + latHeightMerc

	bottom := (180 / math.Pi) * (2*math.Atan(math.Exp(math.Pi*(1-2*bottomLatMerc))) - math.Pi/2)
	top := (180 / math.Pi) * (2*math.Atan(math.Exp(math.Pi*(1-2*topLatMerc))) - math.Pi/2)

	return orb.Bound{
		Min: orb.Point{left, bottom},
		Max: orb.Point{left + lngWidth, top},
	}
}
