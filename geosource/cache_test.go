package geosource

import (
	"context"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	calls  int
	err    error
	closed bool
}

func (s *countingSource) Shapes(ctx context.Context, bound orb.Bound, categoryID uint64, hasCategory bool) ([]Shape, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []Shape{{Geometry: bound.Center()}}, nil
}

func (s *countingSource) Close() error {
	s.closed = true
	return nil
}

func TestCachedHitsAndMisses(t *testing.T) {
	src := &countingSource{}
	c, err := NewCached(src, 2)
	require.NoError(t, err)
	ctx := context.Background()

	a := orb.Bound{Max: orb.Point{1, 1}}
	b := orb.Bound{Max: orb.Point{2, 2}}

	_, err = c.Shapes(ctx, a, 0, false)
	require.NoError(t, err)
	_, err = c.Shapes(ctx, a, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	_, err = c.Shapes(ctx, a, 1, true)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls, "category is part of the key")

	_, err = c.Shapes(ctx, b, 0, false)
	require.NoError(t, err)
	_, err = c.Shapes(ctx, a, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 4, src.calls, "oldest entry evicted")

	require.NoError(t, c.Close())
	assert.True(t, src.closed)
}

func TestCachedDoesNotKeepErrors(t *testing.T) {
	src := &countingSource{err: errors.New("boom")}
	c, err := NewCached(src, 4)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = c.Shapes(context.Background(), world, 0, false)
		assert.Error(t, err)
	}
	assert.Equal(t, 2, src.calls)
}

func TestNewCachedRejectsZeroSize(t *testing.T) {
	_, err := NewCached(&countingSource{}, 0)
	assert.Error(t, err)
}
