// Package geosource loads the shapes drawn onto tiles. Sources answer one
// question: which shapes of a category touch a geographic bound.
package geosource

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	log "github.com/sirupsen/logrus"

	"geotiler/raster"
)

// Shape is one styled geometry, in lng/lat.
type Shape struct {
	Geometry orb.Geometry
	Style    raster.Style
}

// Source looks shapes up by bound and, when hasCategory is set, category.
// Shapes are clipped to bound.
type Source interface {
	Shapes(ctx context.Context, bound orb.Bound, categoryID uint64, hasCategory bool) ([]Shape, error)
	Close() error
}

// Config selects and configures a Source.
type Config struct {
	Driver    string // geojson or spatialite
	Path      string // geojson file or spatialite database
	Table     string // spatialite table
	CacheSize int    // lookups kept in memory, 0 disables
}

// Open creates the source described by cfg.
func Open(cfg Config) (Source, error) {
	var (
		src Source
		err error
	)
	switch cfg.Driver {
	case "", "geojson":
		src, err = OpenFile(cfg.Path)
	case "spatialite":
		src, err = OpenSpatiaLite(cfg.Path, cfg.Table)
	default:
		return nil, fmt.Errorf("unknown source driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize <= 0 {
		return src, nil
	}
	return NewCached(src, cfg.CacheSize)
}

var logger = log.WithField("component", "geosource")

// normalize closes open rings and drops rings and lines too short to draw.
// It returns nil when nothing drawable is left.
func normalize(g orb.Geometry) orb.Geometry {
	switch g := g.(type) {
	case orb.Point, orb.MultiPoint:
		return g
	case orb.LineString:
		if len(g) < 2 {
			logger.Warnf("line with %d points skipped", len(g))
			return nil
		}
		return g
	case orb.MultiLineString:
		var out orb.MultiLineString
		for _, ls := range g {
			if ls := normalize(ls); ls != nil {
				out = append(out, ls.(orb.LineString))
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case orb.Ring:
		r := closeRing(g)
		if r == nil {
			return nil
		}
		return r
	case orb.Polygon:
		p := normalizePolygon(g)
		if p == nil {
			return nil
		}
		return p
	case orb.MultiPolygon:
		var out orb.MultiPolygon
		for _, p := range g {
			if p := normalizePolygon(p); p != nil {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case orb.Collection:
		var out orb.Collection
		for _, sub := range g {
			if sub := normalize(sub); sub != nil {
				out = append(out, sub)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case orb.Bound:
		return g
	}
	return nil
}

func closeRing(r orb.Ring) orb.Ring {
	if len(r) > 0 && !r.Closed() {
		r = append(r[:len(r):len(r)], r[0])
	}
	if len(r) < 4 {
		logger.Warnf("ring with %d points skipped", len(r))
		return nil
	}
	return r
}

// normalizePolygon drops the polygon when its outer ring is unusable, and
// only the bad hole otherwise.
func normalizePolygon(p orb.Polygon) orb.Polygon {
	if len(p) == 0 {
		return nil
	}
	outer := closeRing(p[0])
	if outer == nil {
		return nil
	}
	out := orb.Polygon{outer}
	for _, h := range p[1:] {
		if h := closeRing(h); h != nil {
			out = append(out, h)
		}
	}
	return out
}

// clipTo cuts g down to b, nil when nothing of g is inside.
func clipTo(b orb.Bound, g orb.Geometry) orb.Geometry {
	if !b.Intersects(g.Bound()) {
		return nil
	}
	c := clip.Geometry(b, g)
	if c == nil || isEmpty(c) {
		return nil
	}
	return c
}

func isEmpty(g orb.Geometry) bool {
	switch g := g.(type) {
	case orb.MultiPoint:
		return len(g) == 0
	case orb.LineString:
		return len(g) == 0
	case orb.MultiLineString:
		return len(g) == 0
	case orb.Ring:
		return len(g) == 0
	case orb.Polygon:
		return len(g) == 0 || len(g[0]) == 0
	case orb.MultiPolygon:
		return len(g) == 0
	case orb.Collection:
		return len(g) == 0
	}
	return false
}
