package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/maptile/tilecover"
	log "github.com/sirupsen/logrus"

	"geotiler/mercator"
	"geotiler/metrics"
	"geotiler/tile"
)

// ErrInvalidZoomRange is returned when minZoom > maxZoom or maxZoom is beyond mercator.MaxZoom.
var ErrInvalidZoomRange = errors.New("invalid zoom range")

// Progress is told about every address Enqueue considers, and whether it
// was newly queued.
type Progress func(addr tile.Address, queued bool)

func checkZooms(minZoom, maxZoom int) error {
	if minZoom < 0 || minZoom > maxZoom || maxZoom > mercator.MaxZoom {
		return fmt.Errorf("%w: %d-%d", ErrInvalidZoomRange, minZoom, maxZoom)
	}
	return nil
}

// clampTile keeps a tile index inside the grid of a zoom level; corners on
// the antimeridian or beyond the Mercator latitude limit land outside it.
func clampTile(v, zoom int) int {
	return max(0, min(v, 1<<zoom-1))
}

// BoxTiles lists the tiles covering the box spanned by the corners sw and
// ne, for every zoom in [minZoom, maxZoom], addressed like proto. The corners
// may be given in either order; a box collapsed to a point still yields one
// tile per zoom level.
func BoxTiles(proto tile.Address, sw, ne orb.Point, minZoom, maxZoom, tileSize int) ([]tile.Address, error) {
	if err := checkZooms(minZoom, maxZoom); err != nil {
		return nil, err
	}
	if tileSize <= 0 {
		tileSize = mercator.DefaultTileSize
	}
	var addrs []tile.Address
	for zoom := minZoom; zoom <= maxZoom; zoom++ {
		mx0, my0 := mercator.GeoToMeters(sw.Lat(), sw.Lon())
		tx0, ty0 := mercator.MetersToTile(mx0, my0, zoom, tileSize)
		mx1, my1 := mercator.GeoToMeters(ne.Lat(), ne.Lon())
		tx1, ty1 := mercator.MetersToTile(mx1, my1, zoom, tileSize)

		xmin, xmax := clampTile(min(tx0, tx1), zoom), clampTile(max(tx0, tx1), zoom)
		ymin, ymax := clampTile(min(ty0, ty1), zoom), clampTile(max(ty0, ty1), zoom)
		for ty := ymin; ty <= ymax; ty++ {
			for tx := xmin; tx <= xmax; tx++ {
				x, y := mercator.TMSToXYZTile(tx, ty, zoom)
				addrs = append(addrs, proto.WithTile(uint32(x), uint32(y), uint32(zoom)))
			}
		}
	}
	return addrs, nil
}

// CoverTiles lists the tiles touched by g for every zoom in [minZoom, maxZoom],
// ordered by zoom, row and column.
func CoverTiles(proto tile.Address, g orb.Geometry, minZoom, maxZoom int) ([]tile.Address, error) {
	if err := checkZooms(minZoom, maxZoom); err != nil {
		return nil, err
	}
	var addrs []tile.Address
	for zoom := minZoom; zoom <= maxZoom; zoom++ {
		set, err := tilecover.Geometry(g, maptile.Zoom(zoom))
		if err != nil {
			return nil, fmt.Errorf("cover zoom %d: %w", zoom, err)
		}
		level := make([]tile.Address, 0, len(set))
		for t := range set {
			level = append(level, tile.FromMapTile(t, proto))
		}
		sort.Slice(level, func(i, j int) bool {
			if level[i].Y != level[j].Y {
				return level[i].Y < level[j].Y
			}
			return level[i].X < level[j].X
		})
		addrs = append(addrs, level...)
	}
	return addrs, nil
}

// Enqueue queues every tile of the box spanned by sw and ne that is not
// queued yet, and returns all tiles considered. progress may be nil.
func Enqueue(ctx context.Context, store Store, proto tile.Address, sw, ne orb.Point, minZoom, maxZoom, tileSize int, progress Progress) ([]tile.Address, error) {
	addrs, err := BoxTiles(proto, sw, ne, minZoom, maxZoom, tileSize)
	if err != nil {
		return nil, err
	}
	return addrs, Push(ctx, store, addrs, progress)
}

// Push queues the addresses that are not in store yet. Duplicates are
// skipped silently.
func Push(ctx context.Context, store Store, addrs []tile.Address, progress Progress) error {
	logger := log.WithField("component", "queue")
	queued := 0
	for _, addr := range addrs {
		if err := ctx.Err(); err != nil {
			return err
		}
		url := addr.String()
		exists, err := store.ExistsByURL(ctx, url)
		if err != nil {
			return fmt.Errorf("check %s: %w", url, err)
		}
		inserted := false
		if !exists {
			inserted, err = store.Insert(ctx, &Item{URL: url})
			if err != nil {
				return fmt.Errorf("queue %s: %w", url, err)
			}
		}
		if inserted {
			queued++
			metrics.TilesEnqueued.Inc()
		}
		if progress != nil {
			progress(addr, inserted)
		}
	}
	logger.Infof("%d tiles considered, %d queued", len(addrs), queued)
	return nil
}
