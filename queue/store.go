// Package queue keeps the persistent list of tiles waiting to be rendered
// and drains it: Enqueue fills it from a bounding box, a Worker renders and
// removes items, and a Daemon keeps a Worker busy until memory runs out.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of an Item: Open, then Processing, then
// deleted. There is no failed state.
type Status string

// Constants representing Status types
const (
	Open       Status = "Open"
	Processing Status = "Processing"
)

// Item is one tile waiting in the queue. URL is the tile string, which
// is unique across the queue.
type Item struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrConflict is returned by UpdateStatus when the stored item is no longer
// in the status the caller read, usually because another worker claimed it.
var ErrConflict = errors.New("queue item changed concurrently")

// ErrNotFound is returned for items that are not in the store.
var ErrNotFound = errors.New("queue item not found")

// Store persists queue items. Every method is a self-contained operation,
// safe to call from several workers or processes sharing the store.
type Store interface {
	ExistsByURL(ctx context.Context, url string) (bool, error)

	// Insert adds item as Open and fills in its ID and CreatedAt. A URL
	// already queued is left alone and reported with inserted false.
	Insert(ctx context.Context, item *Item) (inserted bool, err error)

	// SelectOpen returns up to limit Open items, oldest first.
	SelectOpen(ctx context.Context, limit int) ([]Item, error)

	// UpdateStatus moves item from item.Status to status, failing with
	// ErrConflict when the stored status differs from item.Status.
	UpdateStatus(ctx context.Context, item *Item, status Status) error

	Delete(ctx context.Context, item Item) error
	CountByStatus(ctx context.Context, status Status) (int, error)

	// ClearOpen deletes every Open item and returns how many went.
	ClearOpen(ctx context.Context) (int, error)

	// ResetProcessing reopens items left in Processing, e.g. by a crashed worker.
	ResetProcessing(ctx context.Context) (int, error)

	Close() error
}

// OpenStore opens the store of a driver: "sqlite" (the default) or "bolt".
func OpenStore(driver, dsn string) (Store, error) {
	switch driver {
	case "", "sqlite", "sqlite3":
		return OpenSQLite(dsn)
	case "bolt", "bbolt":
		return OpenBolt(dsn)
	}
	return nil, fmt.Errorf("unknown queue driver %q", driver)
}

// Stats is a snapshot of the queue.
type Stats struct {
	Open       int
	Processing int
}

// StatusOf counts the items of s by status.
func StatusOf(ctx context.Context, s Store) (Stats, error) {
	var st Stats
	var err error
	if st.Open, err = s.CountByStatus(ctx, Open); err != nil {
		return st, err
	}
	if st.Processing, err = s.CountByStatus(ctx, Processing); err != nil {
		return st, err
	}
	return st, nil
}
