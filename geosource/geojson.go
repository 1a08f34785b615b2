package geosource

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"geotiler/raster"
)

// File serves the features of a GeoJSON file, held in memory. A feature's
// "color" property styles it; its "category" property limits it to that
// category. Features without a category show up in every category.
type File struct {
	path   string
	shapes []fileShape
}

type fileShape struct {
	Shape
	bound       orb.Bound
	category    uint64
	hasCategory bool
}

// OpenFile loads a FeatureCollection, a single Feature or a bare geometry.
func OpenFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read file: %w", err)
	}
	features, err := loadFeatures(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	f := &File{path: path}
	for i, ft := range features {
		g := normalize(ft.Geometry)
		if g == nil {
			logger.Warnf("feature %d of %s has nothing to draw", i, path)
			continue
		}
		s := fileShape{
			Shape: Shape{
				Geometry: g,
				Style:    raster.Style{Color: ft.Properties.MustString("color", "")},
			},
			bound: g.Bound(),
		}
		s.category, s.hasCategory, err = category(ft.Properties)
		if err != nil {
			return nil, fmt.Errorf("feature %d of %s: %w", i, path, err)
		}
		f.shapes = append(f.shapes, s)
	}
	logger.Infof("loaded %d shapes from %s", len(f.shapes), path)
	return f, nil
}

func loadFeatures(data []byte) ([]*geojson.Feature, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err == nil && fc.Type == "FeatureCollection" {
		return fc.Features, nil
	}
	f, err := geojson.UnmarshalFeature(data)
	if err == nil && f.Type == "Feature" {
		return []*geojson.Feature{f}, nil
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("unable to unmarshal geojson: %w", err)
	}
	return []*geojson.Feature{geojson.NewFeature(g.Geometry())}, nil
}

func category(p geojson.Properties) (uint64, bool, error) {
	switch v := p["category"].(type) {
	case nil:
		return 0, false, nil
	case float64:
		if v < 0 || v != float64(uint64(v)) {
			return 0, false, fmt.Errorf("invalid category %v", v)
		}
		return uint64(v), true, nil
	case string:
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, false, fmt.Errorf("invalid category %q", v)
		}
		return id, true, nil
	}
	return 0, false, fmt.Errorf("invalid category %v", p["category"])
}

// Shapes returns the shapes touching bound, clipped to it.
func (f *File) Shapes(ctx context.Context, bound orb.Bound, categoryID uint64, hasCategory bool) ([]Shape, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Shape
	for _, s := range f.shapes {
		if hasCategory && s.hasCategory && s.category != categoryID {
			continue
		}
		if !bound.Intersects(s.bound) {
			continue
		}
		g := clipTo(bound, s.Geometry)
		if g == nil {
			continue
		}
		out = append(out, Shape{Geometry: g, Style: s.Style})
	}
	return out, nil
}

// Bound covers every shape of the file.
func (f *File) Bound() orb.Bound {
	if len(f.shapes) == 0 {
		return orb.Bound{}
	}
	b := f.shapes[0].bound
	for _, s := range f.shapes[1:] {
		b = b.Union(s.bound)
	}
	return b
}

// Collection returns every geometry of the file, unclipped.
func (f *File) Collection() orb.Collection {
	c := make(orb.Collection, 0, len(f.shapes))
	for _, s := range f.shapes {
		c = append(c, s.Geometry)
	}
	return c
}

func (f *File) Close() error {
	return nil
}
