package transform

import (
	"github.com/ericlevine/qrfinder/bitutil"
)

// Sample builds a width x height matrix whose pixel (x, y) takes the value of
// src at transform(x+0.5, y+0.5). Pixels that map outside src stay unset.
func Sample(src *bitutil.BitMatrix, width, height int, transform *PerspectiveTransform) *bitutil.BitMatrix {
	bits := bitutil.NewBitMatrixWithSize(width, height)
	srcW, srcH := float64(src.Width()), float64(src.Height())
	points := make([]float64, 2*width)
	for y := 0; y < height; y++ {
		yValue := float64(y) + 0.5
		for x := 0; x < len(points); x += 2 {
			points[x] = float64(x/2) + 0.5
			points[x+1] = yValue
		}
		transform.TransformPoints(points)
		for x := 0; x < len(points); x += 2 {
			u, v := points[x], points[x+1]
			// Compare before truncating so (-0.5, y) does not fold onto
			// column 0. Written this way NaN is also rejected.
			if !(u >= 0 && v >= 0 && u < srcW && v < srcH) {
				continue
			}
			if src.Get(int(u), int(v)) {
				bits.Set(x/2, y)
			}
		}
	}
	return bits
}
