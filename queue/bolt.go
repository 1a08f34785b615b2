package queue

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	itemsBucket = []byte("items")
	urlsBucket  = []byte("urls")
)

// Bolt is a single-process Store in a bbolt file. Items are keyed by a
// sequence number, so key order is creation order.
type Bolt struct {
	db  *bbolt.DB
	now func() time.Time
}

// OpenBolt opens or creates the queue file at path. bbolt locks the file,
// a second process waits up to a second and then fails.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open queue %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(itemsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(urlsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Bolt{db: db, now: time.Now}, nil
}

func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func (s *Bolt) ExistsByURL(ctx context.Context, url string) (bool, error) {
	var ok bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		ok = tx.Bucket(urlsBucket).Get([]byte(url)) != nil
		return nil
	})
	return ok, err
}

func (s *Bolt) Insert(ctx context.Context, item *Item) (bool, error) {
	inserted := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		urls := tx.Bucket(urlsBucket)
		if urls.Get([]byte(item.URL)) != nil {
			return nil
		}
		items := tx.Bucket(itemsBucket)
		seq, err := items.NextSequence()
		if err != nil {
			return err
		}
		it := Item{ID: int64(seq), URL: item.URL, Status: Open, CreatedAt: s.now()}
		v, err := json.Marshal(it)
		if err != nil {
			return err
		}
		if err := items.Put(itob(it.ID), v); err != nil {
			return err
		}
		if err := urls.Put([]byte(it.URL), itob(it.ID)); err != nil {
			return err
		}
		*item = it
		inserted = true
		return nil
	})
	return inserted, err
}

// each calls fn for every item in creation order until fn returns false.
func each(tx *bbolt.Tx, fn func(k []byte, it Item) (bool, error)) error {
	c := tx.Bucket(itemsBucket).Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var it Item
		if err := json.Unmarshal(v, &it); err != nil {
			return fmt.Errorf("decode queue item %x: %w", k, err)
		}
		more, err := fn(k, it)
		if err != nil || !more {
			return err
		}
	}
	return nil
}

func (s *Bolt) SelectOpen(ctx context.Context, limit int) ([]Item, error) {
	if limit <= 0 {
		return nil, nil
	}
	var items []Item
	err := s.db.View(func(tx *bbolt.Tx) error {
		return each(tx, func(_ []byte, it Item) (bool, error) {
			if it.Status == Open {
				items = append(items, it)
			}
			return len(items) < limit, nil
		})
	})
	return items, err
}

func (s *Bolt) UpdateStatus(ctx context.Context, item *Item, status Status) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(itemsBucket)
		v := b.Get(itob(item.ID))
		if v == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, item.URL)
		}
		var it Item
		if err := json.Unmarshal(v, &it); err != nil {
			return err
		}
		if it.Status != item.Status {
			return fmt.Errorf("%w: %s", ErrConflict, item.URL)
		}
		it.Status = status
		v, err := json.Marshal(it)
		if err != nil {
			return err
		}
		if err := b.Put(itob(it.ID), v); err != nil {
			return err
		}
		item.Status = status
		return nil
	})
}

func (s *Bolt) Delete(ctx context.Context, item Item) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(itemsBucket)
		v := b.Get(itob(item.ID))
		if v == nil {
			return nil
		}
		var it Item
		if err := json.Unmarshal(v, &it); err != nil {
			return err
		}
		if err := tx.Bucket(urlsBucket).Delete([]byte(it.URL)); err != nil {
			return err
		}
		return b.Delete(itob(item.ID))
	})
}

func (s *Bolt) CountByStatus(ctx context.Context, status Status) (int, error) {
	n := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		return each(tx, func(_ []byte, it Item) (bool, error) {
			if it.Status == status {
				n++
			}
			return true, nil
		})
	})
	return n, err
}

func (s *Bolt) ClearOpen(ctx context.Context) (int, error) {
	n := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var doomed []Item
		err := each(tx, func(_ []byte, it Item) (bool, error) {
			if it.Status == Open {
				doomed = append(doomed, it)
			}
			return true, nil
		})
		if err != nil {
			return err
		}
		items, urls := tx.Bucket(itemsBucket), tx.Bucket(urlsBucket)
		for _, it := range doomed {
			if err := urls.Delete([]byte(it.URL)); err != nil {
				return err
			}
			if err := items.Delete(itob(it.ID)); err != nil {
				return err
			}
		}
		n = len(doomed)
		return nil
	})
	return n, err
}

func (s *Bolt) ResetProcessing(ctx context.Context) (int, error) {
	n := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var stuck []Item
		err := each(tx, func(_ []byte, it Item) (bool, error) {
			if it.Status == Processing {
				stuck = append(stuck, it)
			}
			return true, nil
		})
		if err != nil {
			return err
		}
		b := tx.Bucket(itemsBucket)
		for _, it := range stuck {
			it.Status = Open
			v, err := json.Marshal(it)
			if err != nil {
				return err
			}
			if err := b.Put(itob(it.ID), v); err != nil {
				return err
			}
		}
		n = len(stuck)
		return nil
	})
	return n, err
}

func (s *Bolt) Close() error {
	return s.db.Close()
}
