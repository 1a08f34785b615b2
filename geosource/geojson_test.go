package geosource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"color": "#00FF00", "category": 1},
     "geometry": {"type": "Polygon", "coordinates": [[[0, 0], [10, 0], [10, 10], [0, 10]]]}},
    {"type": "Feature", "properties": {"color": "#0000FF"},
     "geometry": {"type": "LineString", "coordinates": [[-20, 5], [20, 5]]}},
    {"type": "Feature", "properties": {"category": "2"},
     "geometry": {"type": "Point", "coordinates": [50, 50]}},
    {"type": "Feature", "properties": {},
     "geometry": {"type": "LineString", "coordinates": [[1, 1]]}},
    {"type": "Feature", "properties": {},
     "geometry": {"type": "Polygon", "coordinates": [[[0, 0], [1, 1]]]}}
  ]
}`

func writeFixture(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shapes.geojson")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

var world = orb.Bound{Min: orb.Point{-180, -85}, Max: orb.Point{180, 85}}

func TestOpenFileNormalizes(t *testing.T) {
	f, err := OpenFile(writeFixture(t, fixture))
	require.NoError(t, err)
	defer f.Close()

	require.Len(t, f.shapes, 3, "short line and degenerate polygon are dropped")

	p, ok := f.shapes[0].Geometry.(orb.Polygon)
	require.True(t, ok)
	assert.True(t, p[0].Closed())
	assert.Len(t, p[0], 5)
	assert.Equal(t, "#00FF00", f.shapes[0].Style.Color)
	assert.Equal(t, uint64(1), f.shapes[0].category)
	assert.True(t, f.shapes[0].hasCategory)

	assert.False(t, f.shapes[1].hasCategory)
	assert.Equal(t, uint64(2), f.shapes[2].category)
	assert.Equal(t, "", f.shapes[2].Style.Color)

	assert.Equal(t, orb.Bound{Min: orb.Point{-20, 0}, Max: orb.Point{50, 50}}, f.Bound())
	assert.Len(t, f.Collection(), 3)
}

func TestFileShapesByCategory(t *testing.T) {
	f, err := OpenFile(writeFixture(t, fixture))
	require.NoError(t, err)
	ctx := context.Background()

	all, err := f.Shapes(ctx, world, 0, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	one, err := f.Shapes(ctx, world, 1, true)
	require.NoError(t, err)
	assert.Len(t, one, 2, "category 1 polygon and the uncategorized line")

	two, err := f.Shapes(ctx, world, 2, true)
	require.NoError(t, err)
	assert.Len(t, two, 2)

	none, err := f.Shapes(ctx, world, 3, true)
	require.NoError(t, err)
	assert.Len(t, none, 1)
}

func TestFileShapesByBound(t *testing.T) {
	f, err := OpenFile(writeFixture(t, fixture))
	require.NoError(t, err)
	ctx := context.Background()

	far := orb.Bound{Min: orb.Point{100, -60}, Max: orb.Point{120, -40}}
	shapes, err := f.Shapes(ctx, far, 0, false)
	require.NoError(t, err)
	assert.Empty(t, shapes)

	b := orb.Bound{Min: orb.Point{-5, 2}, Max: orb.Point{5, 8}}
	shapes, err = f.Shapes(ctx, b, 0, false)
	require.NoError(t, err)
	require.Len(t, shapes, 2)
	for _, s := range shapes {
		sb := s.Geometry.Bound()
		assert.True(t, b.Pad(1e-9).Contains(sb.Min), "clipped %v", sb)
		assert.True(t, b.Pad(1e-9).Contains(sb.Max), "clipped %v", sb)
	}
}

func TestFileShapesCanceled(t *testing.T) {
	f, err := OpenFile(writeFixture(t, fixture))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Shapes(ctx, world, 0, false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenFileSingleFeatureAndGeometry(t *testing.T) {
	f, err := OpenFile(writeFixture(t, `{"type": "Feature", "properties": {"color": "#123456"},
		"geometry": {"type": "Point", "coordinates": [1, 2]}}`))
	require.NoError(t, err)
	require.Len(t, f.shapes, 1)
	assert.Equal(t, "#123456", f.shapes[0].Style.Color)

	f, err = OpenFile(writeFixture(t, `{"type": "LineString", "coordinates": [[1, 2], [3, 4]]}`))
	require.NoError(t, err)
	require.Len(t, f.shapes, 1)
	assert.IsType(t, orb.LineString{}, f.shapes[0].Geometry)
}

func TestOpenFileErrors(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "missing.geojson"))
	assert.Error(t, err)

	_, err = OpenFile(writeFixture(t, `not json`))
	assert.Error(t, err)

	_, err = OpenFile(writeFixture(t, `{"type": "FeatureCollection", "features": [
		{"type": "Feature", "properties": {"category": -1}, "geometry": {"type": "Point", "coordinates": [1, 2]}}]}`))
	assert.Error(t, err)
}

func TestNormalizeKeepsGoodHoles(t *testing.T) {
	p := orb.Polygon{
		{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
		{{2, 2}, {4, 2}, {4, 4}},
		{{5, 5}, {6, 6}},
	}
	g := normalize(p)
	require.IsType(t, orb.Polygon{}, g)
	out := g.(orb.Polygon)
	require.Len(t, out, 2)
	assert.Equal(t, orb.Ring{{2, 2}, {4, 2}, {4, 4}, {2, 2}}, out[1])
	assert.Len(t, p[1], 3, "input is left untouched")
}

func TestOpenSelectsDriver(t *testing.T) {
	src, err := Open(Config{Driver: "geojson", Path: writeFixture(t, fixture), CacheSize: 8})
	require.NoError(t, err)
	defer src.Close()
	assert.IsType(t, &Cached{}, src)

	src, err = Open(Config{Path: writeFixture(t, fixture)})
	require.NoError(t, err)
	assert.IsType(t, &File{}, src)

	_, err = Open(Config{Driver: "shapefile"})
	assert.Error(t, err)
}
