// Package qrfinder locates the three finder patterns of a QR-style matrix
// barcode in a binarized image.
//
// The search itself lives in qrcode/detector. This package holds the types
// shared by the detector, the binarizers and callers.
package qrfinder

import "math"

// ResultPoint is a point of interest in image coordinates. The origin is the
// top-left corner and y grows downward.
type ResultPoint struct {
	X, Y float64
}

// Point returns p itself, so a ResultPoint can be ordered directly.
func (p ResultPoint) Point() ResultPoint { return p }

// Locatable is anything with a single position in the image.
type Locatable interface {
	Point() ResultPoint
}

// ResultPointCallback is notified synchronously of each candidate point a
// detector confirms. It is informational only.
type ResultPointCallback func(point ResultPoint)

// Distance returns the distance between two points.
func Distance(a, b ResultPoint) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// CrossProductZ returns the z component of the cross product of the vectors
// b->c and b->a. It is positive when a, b, c turn clockwise on screen.
func CrossProductZ(a, b, c ResultPoint) float64 {
	return (c.X-b.X)*(a.Y-b.Y) - (c.Y-b.Y)*(a.X-b.X)
}

// OrderBestPatterns orders three finder pattern centers as bottom-left,
// top-left, top-right. The top-left point is the one opposite the longest
// side; the other two are assigned by the orientation of the triangle.
func OrderBestPatterns[T Locatable](patterns [3]T) [3]T {
	p0, p1, p2 := patterns[0].Point(), patterns[1].Point(), patterns[2].Point()
	d01 := Distance(p0, p1)
	d12 := Distance(p1, p2)
	d02 := Distance(p0, p2)

	var pointA, pointB, pointC T
	switch {
	case d12 >= d01 && d12 >= d02:
		pointB, pointA, pointC = patterns[0], patterns[1], patterns[2]
	case d02 >= d12 && d02 >= d01:
		pointB, pointA, pointC = patterns[1], patterns[0], patterns[2]
	default:
		pointB, pointA, pointC = patterns[2], patterns[0], patterns[1]
	}

	if CrossProductZ(pointA.Point(), pointB.Point(), pointC.Point()) < 0 {
		pointA, pointC = pointC, pointA
	}
	return [3]T{pointA, pointB, pointC}
}
