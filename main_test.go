package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geotiler/queue"
	"geotiler/tile"
)

func TestParseLatLng(t *testing.T) {
	p, err := parseLatLng("48.8566, 2.3522")
	require.NoError(t, err)
	assert.Equal(t, orb.Point{2.3522, 48.8566}, p)

	for _, s := range []string{"", "48.8", "a,b", "1,2,3", "91,0", "0,181"} {
		_, err := parseLatLng(s)
		assert.Error(t, err, s)
	}
}

func TestPlanTilesNeedsAnExtent(t *testing.T) {
	_, err := planTiles(tile.Address{Format: tile.GIF}, "", "", "", false, 1, 2)
	assert.Error(t, err)
	_, err = planTiles(tile.Address{Format: tile.GIF}, "1,1", "2,2", "", false, 5, 2)
	assert.ErrorIs(t, err, queue.ErrInvalidZoomRange)
}

func TestPlanTilesFromGeoJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "line.geojson")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"LineString","coordinates":[[-10,-10],[10,10]]}`), 0o644))

	box, err := planTiles(tile.Address{Format: tile.GIF}, "", "", path, false, 2, 2)
	require.NoError(t, err)
	assert.Len(t, box, 4)

	cover, err := planTiles(tile.Address{Format: tile.GIF}, "", "", path, true, 2, 2)
	require.NoError(t, err)
	assert.NotEmpty(t, cover)
	assert.LessOrEqual(t, len(cover), len(box))
}

func TestTaskRun(t *testing.T) {
	s, err := queue.OpenSQLite(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	defer s.Close()

	proto := tile.Address{Format: tile.PNG}
	tiles := []tile.Address{proto.WithTile(1, 1, 2), proto.WithTile(2, 1, 2), proto.WithTile(1, 1, 2), proto.WithTile(5, 5, 3)}
	task := NewTask(tiles)
	task.quiet = true
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, map[uint32]int{2: 3, 3: 1}, task.ZoomCounts())

	require.NoError(t, task.Run(context.Background(), s))
	assert.EqualValues(t, 3, task.Queued)
	st, err := queue.StatusOf(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Open)
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestCommandsEndToEnd(t *testing.T) {
	dir := t.TempDir()
	conf := filepath.Join(dir, "conf.toml")
	cacheDir := filepath.Join(dir, "cache")
	body := fmt.Sprintf("[queue]\ndsn = %q\n\n[render]\ncache_dir = %q\n", filepath.Join(dir, "queue.db"), cacheDir)
	require.NoError(t, os.WriteFile(conf, []byte(body), 0o644))

	execute(t, "-c", conf, "enqueue", "--sw", "48.85,2.34", "--ne", "48.86,2.36", "--min-zoom", "10", "--max-zoom", "12", "--category", "7")
	assert.Contains(t, execute(t, "-c", conf, "status"), "processing: 0")

	execute(t, "-c", conf, "process", "--max", "100")
	assert.Contains(t, execute(t, "-c", conf, "status"), "open: 0\n")

	entries, err := os.ReadDir(filepath.Join(cacheDir, "7"))
	require.NoError(t, err)
	assert.NotEmpty(t, entries, "processed tiles land in the category folder")

	execute(t, "-c", conf, "render", "-o", filepath.Join(dir, "out", "one.gif"), "7/1-1-2.gif")
	data, err := os.ReadFile(filepath.Join(dir, "out", "one.gif"))
	require.NoError(t, err)
	assert.Equal(t, "GIF", string(data[:3]))
}
