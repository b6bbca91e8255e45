package imagepkg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDPI(t *testing.T) {
	d, err := ParseDPI("")
	require.NoError(t, err)
	assert.True(t, d.Auto)

	d, err = ParseDPI(" Auto ")
	require.NoError(t, err)
	assert.True(t, d.Auto)

	d, err = ParseDPI("2")
	require.NoError(t, err)
	assert.Equal(t, DPI{Value: 2}, d)
	assert.Equal(t, "2", d.String())

	d, err = ParseDPI("-1")
	require.NoError(t, err)
	assert.True(t, d.Auto)

	_, err = ParseDPI("retina")
	assert.Error(t, err)
}

func TestDensityScale(t *testing.T) {
	assert.Equal(t, 1.0, Density{DPI: AutoDPI}.Scale())
	assert.Equal(t, 3.0, Density{DPI: AutoDPI, Device: 3}.Scale())
	assert.Equal(t, 2.0, Density{DPI: ExplicitDPI(2), Device: 3}.Scale())
	assert.Equal(t, 1.0, Density{DPI: ExplicitDPI(2), Backing: 2}.Scale())
	assert.Equal(t, 1.0, Density{DPI: ExplicitDPI(math.NaN()), Device: math.Inf(1)}.Scale())
}

func TestSurfaceBackingFollowsDensity(t *testing.T) {
	s := NewSurface(500, 250, Density{DPI: ExplicitDPI(2)})

	bw, bh := s.BackingSize()
	assert.Equal(t, 1000, bw)
	assert.Equal(t, 500, bh)

	w, h := s.DisplaySize()
	assert.Equal(t, 500.0, w)
	assert.Equal(t, 250.0, h)
}

func TestSurfaceDrawScalesIntoBox(t *testing.T) {
	s := NewSurface(100, 100, Density{DPI: ExplicitDPI(2)})
	s.DrawImage(solid(10, 10, red), 25, 25, 50, 50)

	b := s.Backing()
	inside := b.NRGBAAt(100, 100)
	assert.Greater(t, inside.R, uint8(250))
	assert.Equal(t, uint8(255), inside.A)

	outside := b.NRGBAAt(10, 10)
	assert.Equal(t, uint8(0), outside.A)
}

func TestSurfaceIgnoresEmptyBox(t *testing.T) {
	s := NewSurface(10, 10, Density{DPI: AutoDPI})
	s.DrawImage(solid(4, 4, red), 0, 0, 0, 5)
	assert.Equal(t, uint8(0), s.Backing().NRGBAAt(1, 1).A)
}

func TestPixels(t *testing.T) {
	assert.Equal(t, 1, pixels(0))
	assert.Equal(t, 1, pixels(0.2))
	assert.Equal(t, 3, pixels(2.5))
	assert.Equal(t, 250, pixels(250))
}
