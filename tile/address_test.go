package tile

import (
	"path/filepath"
	"testing"

	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in       string
		expected Address
	}{
		{"3/12-7-5.png", Address{CategoryID: 3, HasCategory: true, X: 12, Y: 7, Zoom: 5, Format: PNG}},
		{"12-7-5.gif", Address{X: 12, Y: 7, Zoom: 5, Format: GIF}},
		{"0-0-0.png", Address{Format: PNG}},
		{"42/34234-23423-17.gif", Address{CategoryID: 42, HasCategory: true, X: 34234, Y: 23423, Zoom: 17, Format: GIF}},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			a, err := Parse(c.in)
			require.NoError(t, err)
			assert.Equal(t, c.expected, a)
			assert.Equal(t, c.in, a.String())
		})
	}
}

func TestParseRejects(t *testing.T) {
	for _, in := range []string{
		"12-7-5.jpg",
		"12-7.png",
		"a/12-7-5.png",
		"/12-7-5.png",
		"1/2/12-7-5.png",
		"12-7-5.png ",
		"-1-7-5.png",
		"99999999999-7-5.png",
		"",
	} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrInvalidSpec, "input %q", in)
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("gif")
	require.NoError(t, err)
	assert.Equal(t, GIF, f)
	assert.Equal(t, "image/gif", f.ContentType())

	_, err = ParseFormat("webp")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestCachePath(t *testing.T) {
	a := Address{CategoryID: 3, HasCategory: true, X: 12, Y: 7, Zoom: 5, Format: PNG}
	assert.Equal(t, filepath.Join("cache", "3", "12-7-5.png"), a.CachePath("cache"))

	a.HasCategory = false
	assert.Equal(t, filepath.Join("cache", "12-7-5.png"), a.CachePath("cache"))
}

func TestAddressEquality(t *testing.T) {
	a, _ := Parse("3/12-7-5.png")
	b, _ := Parse("3/12-7-5.png")
	c, _ := Parse("12-7-5.png")
	assert.True(t, a == b)
	assert.False(t, a == c)
}

func TestMapTileBridge(t *testing.T) {
	proto := Address{CategoryID: 9, HasCategory: true, Format: GIF}
	mt := maptile.New(5, 6, 7)
	a := FromMapTile(mt, proto)
	assert.Equal(t, "9/5-6-7.gif", a.String())
	assert.Equal(t, mt, a.MapTile())
	assert.True(t, a.Valid())

	assert.False(t, proto.WithTile(8, 0, 3).Valid())
}
