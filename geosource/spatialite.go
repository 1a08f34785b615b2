package geosource

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	_ "github.com/shaxbee/go-spatialite" // registers the "spatialite" driver

	"geotiler/raster"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SpatiaLite serves shapes from a table with a geometry column "geom" in
// EPSG:4326 plus nullable "color" and "category" columns.
type SpatiaLite struct {
	db    *sql.DB
	owned bool
	all   string
	byCat string
}

// OpenSpatiaLite opens the database at dsn and serves table.
func OpenSpatiaLite(dsn, table string) (*SpatiaLite, error) {
	db, err := sql.Open("spatialite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open spatialite %s: %w", dsn, err)
	}
	s, err := NewSpatiaLite(db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewSpatiaLite serves table from an open database; Close leaves db open.
func NewSpatiaLite(db *sql.DB, table string) (*SpatiaLite, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	q := fmt.Sprintf("SELECT ST_AsBinary(geom), color, category FROM %s WHERE MbrIntersects(geom, BuildMbr(?, ?, ?, ?, 4326))", table)
	return &SpatiaLite{
		db:    db,
		all:   q,
		byCat: q + " AND (category IS NULL OR category = ?)",
	}, nil
}

// Shapes queries the shapes whose bounding rectangle touches bound and clips them.
func (s *SpatiaLite) Shapes(ctx context.Context, bound orb.Bound, categoryID uint64, hasCategory bool) ([]Shape, error) {
	args := []interface{}{bound.Min.X(), bound.Min.Y(), bound.Max.X(), bound.Max.Y()}
	q := s.all
	if hasCategory {
		q = s.byCat
		args = append(args, int64(categoryID))
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query shapes: %w", err)
	}
	defer rows.Close()

	var out []Shape
	for rows.Next() {
		var (
			color sql.NullString
			cat   sql.NullInt64
		)
		gs := wkb.Scanner(nil)
		if err := rows.Scan(gs, &color, &cat); err != nil {
			return nil, fmt.Errorf("scan shape: %w", err)
		}
		if !gs.Valid {
			continue
		}
		g := normalize(gs.Geometry)
		if g == nil {
			continue
		}
		if g = clipTo(bound, g); g == nil {
			continue
		}
		out = append(out, Shape{Geometry: g, Style: raster.Style{Color: color.String}})
	}
	return out, rows.Err()
}

func (s *SpatiaLite) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
