package queue

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS render_queue (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'Open',
	created_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS render_queue_url ON render_queue (url);
CREATE INDEX IF NOT EXISTS render_queue_status ON render_queue (status, created_at, id);`

// SQLite is the Store shared by daemons on one host. The database runs in
// WAL mode with a busy timeout, and the UNIQUE url index turns duplicate
// inserts from racing enqueuers into no-ops.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens or creates the queue database file at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", sqliteDSN(path))
	if err != nil {
		return nil, err
	}
	if err := optimizeConnection(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open queue %s: %w", path, err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create queue table: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_busy_timeout=5000&_journal_mode=WAL"
}

func optimizeConnection(db *sql.DB) error {
	_, err := db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		return err
	}
	_, err = db.Exec("PRAGMA synchronous=NORMAL")
	if err != nil {
		return err
	}
	return nil
}

func (s *SQLite) ExistsByURL(ctx context.Context, url string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM render_queue WHERE url = ?", url).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLite) Insert(ctx context.Context, item *Item) (bool, error) {
	created := s.now()
	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO render_queue (url, status, created_at) VALUES (?, ?, ?)",
		item.URL, Open, created.UnixNano())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil || n == 0 {
		return false, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, err
	}
	item.ID, item.Status, item.CreatedAt = id, Open, created
	return true, nil
}

func (s *SQLite) SelectOpen(ctx context.Context, limit int) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, url, status, created_at FROM render_queue WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT ?",
		Open, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		var created int64
		if err := rows.Scan(&it.ID, &it.URL, &it.Status, &created); err != nil {
			return nil, err
		}
		it.CreatedAt = time.Unix(0, created)
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *SQLite) UpdateStatus(ctx context.Context, item *Item, status Status) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE render_queue SET status = ? WHERE id = ? AND status = ?",
		status, item.ID, item.Status)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrConflict, item.URL)
	}
	item.Status = status
	return nil
}

func (s *SQLite) Delete(ctx context.Context, item Item) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM render_queue WHERE id = ?", item.ID)
	return err
}

func (s *SQLite) CountByStatus(ctx context.Context, status Status) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM render_queue WHERE status = ?", status).Scan(&n)
	return n, err
}

func (s *SQLite) ClearOpen(ctx context.Context) (int, error) {
	return s.exec(ctx, "DELETE FROM render_queue WHERE status = ?", Open)
}

func (s *SQLite) ResetProcessing(ctx context.Context) (int, error) {
	return s.exec(ctx, "UPDATE render_queue SET status = ? WHERE status = ?", Open, Processing)
}

func (s *SQLite) exec(ctx context.Context, query string, args ...interface{}) (int, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
