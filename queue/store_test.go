package queue

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStores(t *testing.T) map[string]func() Store {
	dir := t.TempDir()
	return map[string]func() Store{
		"sqlite": func() Store {
			s, err := OpenSQLite(filepath.Join(dir, "queue.db"))
			require.NoError(t, err)
			return s
		},
		"bolt": func() Store {
			s, err := OpenBolt(filepath.Join(dir, "queue.bolt"))
			require.NoError(t, err)
			return s
		},
	}
}

// forEachStore runs fn against a fresh store of every backend.
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, open := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			defer s.Close()
			fn(t, s)
		})
	}
}

func insert(t *testing.T, s Store, urls ...string) []Item {
	t.Helper()
	items := make([]Item, 0, len(urls))
	for _, u := range urls {
		it := Item{URL: u}
		ok, err := s.Insert(context.Background(), &it)
		require.NoError(t, err)
		require.True(t, ok, "insert %s", u)
		items = append(items, it)
	}
	return items
}

func count(t *testing.T, s Store, st Status) int {
	t.Helper()
	n, err := s.CountByStatus(context.Background(), st)
	require.NoError(t, err)
	return n
}

func TestStoreContract(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		items := insert(t, s, "1/1-1-1.gif", "1/2-1-1.gif", "1/3-1-1.gif")
		a, b := items[0], items[1]
		assert.NotZero(t, a.ID)
		assert.Equal(t, Open, a.Status)
		assert.False(t, a.CreatedAt.IsZero())

		dup := Item{URL: a.URL}
		ok, err := s.Insert(ctx, &dup)
		require.NoError(t, err)
		assert.False(t, ok, "duplicate url is ignored")
		assert.Equal(t, 3, count(t, s, Open))

		exists, err := s.ExistsByURL(ctx, a.URL)
		require.NoError(t, err)
		assert.True(t, exists)
		exists, err = s.ExistsByURL(ctx, "1/9-9-9.gif")
		require.NoError(t, err)
		assert.False(t, exists)

		open, err := s.SelectOpen(ctx, 2)
		require.NoError(t, err)
		require.Len(t, open, 2)
		assert.Equal(t, a.URL, open[0].URL, "oldest first")
		assert.Equal(t, b.URL, open[1].URL)

		none, err := s.SelectOpen(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, none)

		claimed := open[0]
		require.NoError(t, s.UpdateStatus(ctx, &claimed, Processing))
		assert.Equal(t, Processing, claimed.Status)
		stale := open[0]
		assert.ErrorIs(t, s.UpdateStatus(ctx, &stale, Processing), ErrConflict)

		assert.Equal(t, 2, count(t, s, Open))
		assert.Equal(t, 1, count(t, s, Processing))
		open, err = s.SelectOpen(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, open, 2)

		n, err := s.ResetProcessing(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, 3, count(t, s, Open))

		require.NoError(t, s.Delete(ctx, b))
		exists, err = s.ExistsByURL(ctx, b.URL)
		require.NoError(t, err)
		assert.False(t, exists)
		require.NoError(t, s.Delete(ctx, b), "deleting twice is fine")
		insert(t, s, b.URL)

		open, err = s.SelectOpen(ctx, 1)
		require.NoError(t, err)
		require.NoError(t, s.UpdateStatus(ctx, &open[0], Processing))
		n, err = s.ClearOpen(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, 0, count(t, s, Open))
		assert.Equal(t, 1, count(t, s, Processing), "clear leaves items in progress")
	})
}

func TestStoreConcurrentDuplicateInsert(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			inserted int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := s.Insert(context.Background(), &Item{URL: "7/1-2-3.png"})
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					inserted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, inserted)
		assert.Equal(t, 1, count(t, s, Open))
	})
}

func TestStoreSurvivesReopen(t *testing.T) {
	for name, open := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			insert(t, s, "1-1-1.gif", "0-0-1.gif")
			require.NoError(t, s.Close())

			s = open()
			defer s.Close()
			items, err := s.SelectOpen(context.Background(), 10)
			require.NoError(t, err)
			require.Len(t, items, 2)
			assert.Equal(t, "1-1-1.gif", items[0].URL)
		})
	}
}

func TestOpenStoreDriver(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenStore("", filepath.Join(dir, "q.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	s.Close()

	s, err = OpenStore("bolt", filepath.Join(dir, "q.bolt"))
	require.NoError(t, err)
	assert.IsType(t, &Bolt{}, s)
	s.Close()

	_, err = OpenStore("mysql", "")
	assert.Error(t, err)
}

func TestStatusOf(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		items := insert(t, s, "1-1-1.gif", "0-0-1.gif", "0-1-1.gif")
		require.NoError(t, s.UpdateStatus(context.Background(), &items[1], Processing))
		st, err := StatusOf(context.Background(), s)
		require.NoError(t, err)
		assert.Equal(t, Stats{Open: 2, Processing: 1}, st)
	})
}
