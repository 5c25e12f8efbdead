// Package synth renders synthetic QR-like symbols for tests: finder
// patterns, timing patterns, pseudo-random data modules, perspective warps
// and pixel noise. Everything is deterministic for a given seed.
package synth

import (
	"math/rand/v2"

	"github.com/ericlevine/qrfinder"
	"github.com/ericlevine/qrfinder/bitutil"
	"github.com/ericlevine/qrfinder/transform"
)

// Symbol is a square grid of modules with finder patterns in three corners.
type Symbol struct {
	dimension int
	modules   *bitutil.BitMatrix
	function  *bitutil.BitMatrix // modules reserved for finder and timing patterns
}

// NewSymbol returns a symbol of the given dimension in modules (21 for a
// version 1 QR code, 4*version+17 in general) with finder, separator and
// timing patterns drawn and every data module light.
func NewSymbol(dimension int) *Symbol {
	s := &Symbol{
		dimension: dimension,
		modules:   bitutil.NewBitMatrix(dimension),
		function:  bitutil.NewBitMatrix(dimension),
	}
	for _, corner := range [][2]int{{0, 0}, {dimension - 7, 0}, {0, dimension - 7}} {
		DrawFinderPattern(s.modules, corner[0], corner[1], 1)
	}
	// Finder patterns plus their one module separators.
	s.function.SetRegion(0, 0, 8, 8)
	s.function.SetRegion(dimension-8, 0, 8, 8)
	s.function.SetRegion(0, dimension-8, 8, 8)

	for i := 8; i < dimension-8; i++ {
		if i%2 == 0 {
			s.modules.Set(i, 6)
			s.modules.Set(6, i)
		}
		s.function.Set(i, 6)
		s.function.Set(6, i)
	}
	return s
}

// Dimension returns the number of modules on a side.
func (s *Symbol) Dimension() int { return s.dimension }

// Modules returns the module grid, one pixel per module.
func (s *Symbol) Modules() *bitutil.BitMatrix { return s.modules }

// FillData darkens each data module with probability density.
func (s *Symbol) FillData(seed uint64, density float64) *Symbol {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for y := 0; y < s.dimension; y++ {
		for x := 0; x < s.dimension; x++ {
			if s.function.Get(x, y) {
				continue
			}
			if rng.Float64() < density {
				s.modules.Set(x, y)
			} else {
				s.modules.Unset(x, y)
			}
		}
	}
	return s
}

// Render scales the symbol to moduleSize pixels per module and surrounds it
// with quietZone light modules.
func (s *Symbol) Render(moduleSize, quietZone int) *bitutil.BitMatrix {
	side := (s.dimension + 2*quietZone) * moduleSize
	out := bitutil.NewBitMatrix(side)
	offset := quietZone * moduleSize
	for y := 0; y < s.dimension; y++ {
		for x := 0; x < s.dimension; x++ {
			if s.modules.Get(x, y) {
				out.SetRegion(offset+x*moduleSize, offset+y*moduleSize, moduleSize, moduleSize)
			}
		}
	}
	return out
}

// FinderCenters returns the pixel centers of the bottom-left, top-left and
// top-right finder patterns of Render(moduleSize, quietZone).
func (s *Symbol) FinderCenters(moduleSize, quietZone int) [3]qrfinder.ResultPoint {
	near := float64((quietZone)*moduleSize) + 3.5*float64(moduleSize)
	far := float64((quietZone+s.dimension)*moduleSize) - 3.5*float64(moduleSize)
	return [3]qrfinder.ResultPoint{
		{X: near, Y: far},
		{X: near, Y: near},
		{X: far, Y: near},
	}
}

// Warp maps the symbol's outer square onto the quadrilateral with the given
// image corners (top-left, top-right, bottom-right, bottom-left).
type Warp struct {
	Width, Height int
	Corners       [4]qrfinder.ResultPoint
}

func (w Warp) toModules(dimension int) *transform.PerspectiveTransform {
	c := w.Corners
	d := float64(dimension)
	return transform.QuadrilateralToQuadrilateral(
		c[0].X, c[0].Y, c[1].X, c[1].Y, c[2].X, c[2].Y, c[3].X, c[3].Y,
		0, 0, d, 0, d, d, 0, d)
}

func (w Warp) toImage(dimension int) *transform.PerspectiveTransform {
	c := w.Corners
	d := float64(dimension)
	return transform.QuadrilateralToQuadrilateral(
		0, 0, d, 0, d, d, 0, d,
		c[0].X, c[0].Y, c[1].X, c[1].Y, c[2].X, c[2].Y, c[3].X, c[3].Y)
}

// RenderWarped renders the symbol through a perspective warp. Each pixel
// takes the color of the module under its center; pixels outside the symbol
// are light.
func (s *Symbol) RenderWarped(w Warp) *bitutil.BitMatrix {
	return transform.Sample(s.modules, w.Width, w.Height, w.toModules(s.dimension))
}

// WarpedFinderCenters returns where the bottom-left, top-left and top-right
// finder pattern centers land under the warp.
func (s *Symbol) WarpedFinderCenters(w Warp) [3]qrfinder.ResultPoint {
	xform := w.toImage(s.dimension)
	near, far := 3.5, float64(s.dimension)-3.5
	points := []float64{near, far, near, near, far, near}
	xform.TransformPoints(points)
	return [3]qrfinder.ResultPoint{
		{X: points[0], Y: points[1]},
		{X: points[2], Y: points[3]},
		{X: points[4], Y: points[5]},
	}
}

// DrawFinderPattern draws a 7x7 module finder pattern with its top-left
// corner at (left, top) and returns its center.
func DrawFinderPattern(m *bitutil.BitMatrix, left, top, moduleSize int) qrfinder.ResultPoint {
	m.SetRegion(left, top, 7*moduleSize, 7*moduleSize)
	m.UnsetRegion(left+moduleSize, top+moduleSize, 5*moduleSize, 5*moduleSize)
	m.SetRegion(left+2*moduleSize, top+2*moduleSize, 3*moduleSize, 3*moduleSize)
	return qrfinder.ResultPoint{
		X: float64(left) + 3.5*float64(moduleSize),
		Y: float64(top) + 3.5*float64(moduleSize),
	}
}

// AddNoise flips each pixel with probability rate.
func AddNoise(m *bitutil.BitMatrix, rate float64, seed uint64) {
	rng := rand.New(rand.NewPCG(seed, ^seed))
	for y := 0; y < m.Height(); y++ {
		for x := 0; x < m.Width(); x++ {
			if rng.Float64() < rate {
				m.Flip(x, y)
			}
		}
	}
}
