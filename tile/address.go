// Package tile defines the string identity of a rendered tile. The same
// string is the relative cache file path and the render queue key.
package tile

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/paulmach/orb/maptile"
)

// ErrInvalidSpec is returned for tile strings that match neither layout.
var ErrInvalidSpec = errors.New("invalid tile specification")

// ErrInvalidFormat is returned for extensions other than gif and png.
var ErrInvalidFormat = errors.New("invalid tile format")

//Format 瓦片图片格式
type Format string

// Constants representing Format types
const (
	GIF Format = "gif"
	PNG Format = "png"
)

// ParseFormat accepts only the extensions a tile can be rendered to.
func ParseFormat(ext string) (Format, error) {
	switch Format(ext) {
	case GIF, PNG:
		return Format(ext), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFormat, ext)
}

// ContentType is the MIME type served for the format.
func (f Format) ContentType() string {
	return "image/" + string(f)
}

var (
	withCategory    = regexp.MustCompile(`^(\d+)/(\d+)-(\d+)-(\d+)\.(png|gif)$`)
	withoutCategory = regexp.MustCompile(`^(\d+)-(\d+)-(\d+)\.(png|gif)$`)
)

// Address identifies one XYZ tile, optionally inside a category folder.
// Addresses are comparable; two are equal iff every field matches.
type Address struct {
	CategoryID  uint64
	HasCategory bool
	X           uint32
	Y           uint32
	Zoom        uint32
	Format      Format
}

// Parse reads "{categoryID/}{x}-{y}-{zoom}.{ext}".
func Parse(s string) (Address, error) {
	var a Address
	var parts []string
	if m := withCategory.FindStringSubmatch(s); m != nil {
		id, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			return a, fmt.Errorf("%w: %q: %v", ErrInvalidSpec, s, err)
		}
		a.CategoryID = id
		a.HasCategory = true
		parts = m[2:]
	} else if m := withoutCategory.FindStringSubmatch(s); m != nil {
		parts = m[1:]
	} else {
		return a, fmt.Errorf("%w: %q", ErrInvalidSpec, s)
	}

	nums := make([]uint32, 3)
	for i := range nums {
		n, err := strconv.ParseUint(parts[i], 10, 32)
		if err != nil {
			return Address{}, fmt.Errorf("%w: %q: %v", ErrInvalidSpec, s, err)
		}
		nums[i] = uint32(n)
	}
	a.X, a.Y, a.Zoom = nums[0], nums[1], nums[2]

	format, err := ParseFormat(parts[3])
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q: %v", ErrInvalidSpec, s, err)
	}
	a.Format = format
	return a, nil
}

// Filename is the address without its category folder.
func (a Address) Filename() string {
	return fmt.Sprintf("%d-%d-%d.%s", a.X, a.Y, a.Zoom, a.Format)
}

// Dir is the relative folder of the address, empty without a category.
func (a Address) Dir() string {
	if !a.HasCategory {
		return ""
	}
	return strconv.FormatUint(a.CategoryID, 10)
}

func (a Address) String() string {
	if a.HasCategory {
		return a.Dir() + "/" + a.Filename()
	}
	return a.Filename()
}

// CachePath is the file the rendered tile is stored at under baseDir.
func (a Address) CachePath(baseDir string) string {
	return filepath.Join(baseDir, a.Dir(), a.Filename())
}

// WithTile returns a copy of a addressing another tile, keeping category and format.
func (a Address) WithTile(x, y, zoom uint32) Address {
	a.X, a.Y, a.Zoom = x, y, zoom
	return a
}

// MapTile converts the address to orb's XYZ tile.
func (a Address) MapTile() maptile.Tile {
	return maptile.New(a.X, a.Y, maptile.Zoom(a.Zoom))
}

// FromMapTile addresses t using the category and format of proto.
func FromMapTile(t maptile.Tile, proto Address) Address {
	return proto.WithTile(t.X, t.Y, uint32(t.Z))
}

// Valid reports whether the tile indices fit the zoom level.
func (a Address) Valid() bool {
	if a.Zoom > 30 {
		return false
	}
	n := uint64(1) << a.Zoom
	return uint64(a.X) < n && uint64(a.Y) < n
}
