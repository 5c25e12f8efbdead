package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ericlevine/qrfinder/bitutil"
)

func TestSquareToQuadrilateralCorners(t *testing.T) {
	pt := SquareToQuadrilateral(10, 20, 110, 30, 120, 140, 5, 125)
	points := []float64{0, 0, 1, 0, 1, 1, 0, 1}
	pt.TransformPoints(points)
	want := []float64{10, 20, 110, 30, 120, 140, 5, 125}
	assert.InDeltaSlice(t, want, points, 1e-9)
}

func TestQuadrilateralToQuadrilateralRoundTrip(t *testing.T) {
	src := [8]float64{3.5, 3.5, 21.5, 3.5, 21.5, 21.5, 3.5, 21.5}
	dst := [8]float64{40, 35, 260, 60, 240, 280, 30, 250}

	forward := QuadrilateralToQuadrilateral(
		src[0], src[1], src[2], src[3], src[4], src[5], src[6], src[7],
		dst[0], dst[1], dst[2], dst[3], dst[4], dst[5], dst[6], dst[7])
	backward := QuadrilateralToQuadrilateral(
		dst[0], dst[1], dst[2], dst[3], dst[4], dst[5], dst[6], dst[7],
		src[0], src[1], src[2], src[3], src[4], src[5], src[6], src[7])

	corners := src[:]
	mapped := append([]float64(nil), corners...)
	forward.TransformPoints(mapped)
	assert.InDeltaSlice(t, dst[:], mapped, 1e-6)

	for _, p := range [][2]float64{{10, 10}, {12.25, 7.5}, {20, 4}} {
		x, y := forward.TransformPoint(p[0], p[1])
		bx, by := backward.TransformPoint(x, y)
		assert.InDelta(t, p[0], bx, 1e-6)
		assert.InDelta(t, p[1], by, 1e-6)
	}
}

func TestAffineShortcut(t *testing.T) {
	// A parallelogram takes the affine branch; the adjoint must still invert it.
	pt := SquareToQuadrilateral(0, 0, 10, 0, 15, 10, 5, 10)
	inv := QuadrilateralToSquare(0, 0, 10, 0, 15, 10, 5, 10)
	x, y := pt.TransformPoint(0.25, 0.75)
	u, v := inv.TransformPoint(x, y)
	assert.InDelta(t, 0.25, u, 1e-9)
	assert.InDelta(t, 0.75, v, 1e-9)
}

func TestSampleIdentity(t *testing.T) {
	src := bitutil.ParseStringMatrix("X . X \n. X . \nX X . \n", "X ", ". ")
	got := Sample(src, 3, 3, SquareToQuadrilateral(0, 0, 1, 0, 1, 1, 0, 1))
	assert.True(t, src.Equals(got), "got:\n%s", got)
}

func TestSampleScalesAndLeavesOutsideUnset(t *testing.T) {
	src := bitutil.ParseStringMatrix("X . \n. X \n", "X ", ". ")
	// Output pixel (x, y) reads src at ((x-2)/3, (y-2)/3): a 3x zoom with a
	// 2 pixel margin.
	xform := QuadrilateralToQuadrilateral(2, 2, 8, 2, 8, 8, 2, 8, 0, 0, 2, 0, 2, 2, 0, 2)
	got := Sample(src, 10, 10, xform)
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			want := false
			if x >= 2 && x < 8 && y >= 2 && y < 8 {
				want = src.Get((x-2)/3, (y-2)/3)
			}
			assert.Equal(t, want, got.Get(x, y), "pixel (%d, %d)", x, y)
		}
	}
}
