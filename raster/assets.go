package raster

import (
	_ "embed"

	"geotiler/tile"
)

//go:embed assets/emptytile.gif
var emptyGIF []byte

//go:embed assets/emptytile.png
var emptyPNG []byte

// EmptyTile returns the embedded blank tile of a format.
func EmptyTile(f tile.Format) []byte {
	if f == tile.PNG {
		return emptyPNG
	}
	return emptyGIF
}
