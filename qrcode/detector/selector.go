package detector

import (
	"cmp"
	"math"
	"slices"

	"github.com/ericlevine/qrfinder"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/combin"
)

// selectBestPatterns picks, among the confirmed clusters, the three that
// best form the corner triangle of one symbol.
func (f *Finder) selectBestPatterns() ([3]*FinderPattern, error) {
	var best [3]*FinderPattern
	if len(f.centers.centers) < 3 {
		return best, qrfinder.ErrPatternNotFound
	}

	candidates := f.centers.confirmed(f.tuning.GetCenterQuorum())
	if len(candidates) < 3 {
		return best, qrfinder.ErrPatternNotFound
	}
	if limit := f.tuning.GetMaxCandidates(); len(candidates) > limit {
		slices.SortStableFunc(candidates, func(a, b *FinderPattern) int {
			return cmp.Compare(b.Count, a.Count)
		})
		candidates = candidates[:limit]
	}

	bestCost := math.Inf(1)
	combination := make([]int, 3)
	gen := combin.NewCombinationGenerator(len(candidates), 3)
	for gen.Next() {
		gen.Combination(combination)
		triple := [3]*FinderPattern{
			candidates[combination[0]],
			candidates[combination[1]],
			candidates[combination[2]],
		}
		if cost, ok := f.tripleCost(triple); ok && cost < bestCost {
			bestCost = cost
			best = triple
		}
	}
	if math.IsInf(bestCost, 1) {
		return best, qrfinder.ErrPatternNotFound
	}
	return best, nil
}

// tripleCost scores three clusters as a finder pattern triangle; lower is
// better. The cost adds how far the triangle is from right isosceles, the
// spread of the module sizes, and the inverse of the total detection count.
// ok is false when the triple is not a plausible symbol at all.
func (f *Finder) tripleCost(triple [3]*FinderPattern) (cost float64, ok bool) {
	sizes := []float64{
		triple[0].EstimatedModuleSize,
		triple[1].EstimatedModuleSize,
		triple[2].EstimatedModuleSize,
	}
	if floats.Max(sizes) > floats.Min(sizes)*f.tuning.GetMaxModuleSizeRatio() {
		return 0, false
	}

	distortion := triangleDistortion(triple)
	if math.IsNaN(distortion) || distortion > f.tuning.GetMaxTriangleDistortion() {
		return 0, false
	}

	mean, stdDev := stat.MeanStdDev(sizes, nil)
	count := triple[0].Count + triple[1].Count + triple[2].Count
	cost = distortion +
		f.tuning.GetModuleSizeWeight()*stdDev/mean +
		f.tuning.GetConfidenceWeight()/float64(count)
	return cost, true
}

// triangleDistortion measures how far three points are from an isosceles
// right triangle. With squared side lengths a <= b <= c, it returns
// (|c - 2b| + |c - 2a|) / c, which is 0 for the ideal shape, 1 for three
// evenly spaced collinear points and 2 for an equilateral triangle.
func triangleDistortion(triple [3]*FinderPattern) float64 {
	sides := []float64{
		squaredDistance(triple[0], triple[1]),
		squaredDistance(triple[1], triple[2]),
		squaredDistance(triple[0], triple[2]),
	}
	slices.Sort(sides)
	a, b, c := sides[0], sides[1], sides[2]
	if c == 0 {
		return math.NaN()
	}
	return (math.Abs(c-2*b) + math.Abs(c-2*a)) / c
}

// calculateModuleSize measures the module width along the top and left edges
// of the triangle by walking the black-white-black runs between pattern
// centers. If no run can be measured it falls back to the patterns' own
// estimates.
func (f *Finder) calculateModuleSize(topLeft, topRight, bottomLeft *FinderPattern) float64 {
	size := (f.calculateModuleSizeOneWay(topLeft, topRight) +
		f.calculateModuleSizeOneWay(topLeft, bottomLeft)) / 2.0
	if math.IsNaN(size) || size <= 0 {
		return stat.Mean([]float64{
			topLeft.EstimatedModuleSize,
			topRight.EstimatedModuleSize,
			bottomLeft.EstimatedModuleSize,
		}, nil)
	}
	return size
}

func (f *Finder) calculateModuleSizeOneWay(pattern, otherPattern *FinderPattern) float64 {
	moduleSizeEst1 := f.sizeOfBlackWhiteBlackRunBothWays(
		int(pattern.X), int(pattern.Y), int(otherPattern.X), int(otherPattern.Y))
	moduleSizeEst2 := f.sizeOfBlackWhiteBlackRunBothWays(
		int(otherPattern.X), int(otherPattern.Y), int(pattern.X), int(pattern.Y))
	switch {
	case math.IsNaN(moduleSizeEst1):
		return moduleSizeEst2 / 7.0
	case math.IsNaN(moduleSizeEst2):
		return moduleSizeEst1 / 7.0
	}
	// Each estimate spans the 7 modules of one finder pattern.
	return (moduleSizeEst1 + moduleSizeEst2) / 14.0
}

// sizeOfBlackWhiteBlackRunBothWays measures the finder pattern width through
// (fromX, fromY) along the line toward (toX, toY), and along the same line
// in the opposite direction, clipped to the image.
func (f *Finder) sizeOfBlackWhiteBlackRunBothWays(fromX, fromY, toX, toY int) float64 {
	result := f.sizeOfBlackWhiteBlackRun(fromX, fromY, toX, toY)

	width, height := f.image.Width(), f.image.Height()
	scale := 1.0
	otherToX := fromX - (toX - fromX)
	if otherToX < 0 {
		scale = float64(fromX) / float64(fromX-otherToX)
		otherToX = 0
	} else if otherToX >= width {
		scale = float64(width-1-fromX) / float64(otherToX-fromX)
		otherToX = width - 1
	}
	otherToY := int(float64(fromY) - float64(toY-fromY)*scale)

	scale = 1.0
	if otherToY < 0 {
		scale = float64(fromY) / float64(fromY-otherToY)
		otherToY = 0
	} else if otherToY >= height {
		scale = float64(height-1-fromY) / float64(otherToY-fromY)
		otherToY = height - 1
	}
	otherToX = int(float64(fromX) + float64(otherToX-fromX)*scale)

	result += f.sizeOfBlackWhiteBlackRun(fromX, fromY, otherToX, otherToY)
	// The center pixel was counted twice.
	return result - 1.0
}

// sizeOfBlackWhiteBlackRun walks a Bresenham line from (fromX, fromY) toward
// (toX, toY) and returns the distance to the end of the black run that
// follows the first white run, or NaN if the line leaves the image or ends
// first.
func (f *Finder) sizeOfBlackWhiteBlackRun(fromX, fromY, toX, toY int) float64 {
	steep := abs(toY-fromY) > abs(toX-fromX)
	if steep {
		fromX, fromY = fromY, fromX
		toX, toY = toY, toX
	}

	dx := abs(toX - fromX)
	dy := abs(toY - fromY)
	errAcc := -dx / 2
	xstep := 1
	if fromX > toX {
		xstep = -1
	}
	ystep := 1
	if fromY > toY {
		ystep = -1
	}

	// 0: in the starting black run, 1: in white, 2: in the outer black run.
	state := 0
	xLimit := toX + xstep
	for x, y := fromX, fromY; x != xLimit; x += xstep {
		realX, realY := x, y
		if steep {
			realX, realY = y, x
		}
		if realX < 0 || realY < 0 || realX >= f.image.Width() || realY >= f.image.Height() {
			return math.NaN()
		}
		if (state == 1) == f.image.Get(realX, realY) {
			if state == 2 {
				return math.Hypot(float64(x-fromX), float64(y-fromY))
			}
			state++
		}
		errAcc += dy
		if errAcc > 0 {
			if y == toY {
				break
			}
			y += ystep
			errAcc -= dx
		}
	}
	// Reaching the end in the outer black run counts as the end of the run.
	if state == 2 {
		return math.Hypot(float64(toX+xstep-fromX), float64(toY-fromY))
	}
	return math.NaN()
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
