package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ericlevine/qrfinder"
)

func TestRenderWarpedAxisAlignedMatchesRender(t *testing.T) {
	const dim, ms, qz = 21, 4, 4
	sym := NewSymbol(dim).FillData(3, 0.5)
	lo, hi := float64(qz*ms), float64((qz+dim)*ms)
	warp := Warp{
		Width:  (dim + 2*qz) * ms,
		Height: (dim + 2*qz) * ms,
		Corners: [4]qrfinder.ResultPoint{
			{X: lo, Y: lo}, {X: hi, Y: lo}, {X: hi, Y: hi}, {X: lo, Y: hi},
		},
	}

	want := sym.Render(ms, qz)
	got := sym.RenderWarped(warp)
	assert.True(t, want.Equals(got), "warped:\n%s", got)

	wantCenters := sym.FinderCenters(ms, qz)
	gotCenters := sym.WarpedFinderCenters(warp)
	for i := range wantCenters {
		assert.InDelta(t, wantCenters[i].X, gotCenters[i].X, 1e-6)
		assert.InDelta(t, wantCenters[i].Y, gotCenters[i].Y, 1e-6)
	}
}

func TestFillDataIsDeterministic(t *testing.T) {
	a := NewSymbol(25).FillData(9, 0.5).Modules()
	b := NewSymbol(25).FillData(9, 0.5).Modules()
	c := NewSymbol(25).FillData(10, 0.5).Modules()
	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))
}

func TestFillDataKeepsFunctionPatterns(t *testing.T) {
	plain := NewSymbol(29).Modules()
	filled := NewSymbol(29).FillData(1, 1).Modules()
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			assert.Equal(t, plain.Get(x, y), filled.Get(x, y), "module (%d, %d)", x, y)
		}
	}
	// Timing pattern alternates along row 6.
	for i := 8; i < 29-8; i++ {
		assert.Equal(t, i%2 == 0, filled.Get(i, 6), "timing module %d", i)
	}
}

func TestAddNoiseRate(t *testing.T) {
	m := NewSymbol(21).Render(10, 0)
	clean := m.Clone()
	AddNoise(m, 0.1, 5)
	flipped := 0
	for y := 0; y < m.Height(); y++ {
		for x := 0; x < m.Width(); x++ {
			if m.Get(x, y) != clean.Get(x, y) {
				flipped++
			}
		}
	}
	total := m.Width() * m.Height()
	assert.InDelta(t, 0.1, float64(flipped)/float64(total), 0.02)
}
