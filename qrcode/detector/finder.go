// Package detector locates the three finder patterns of a QR code in a
// binarized image.
package detector

import (
	"fmt"
	"math"

	"github.com/ericlevine/qrfinder"
	"gonum.org/v1/gonum/floats"
)

// Image is read-only access to a binarized image. *bitutil.BitMatrix
// implements it.
type Image interface {
	Width() int
	Height() int
	// Get reports whether the pixel at column x, row y is black.
	Get(x, y int) bool
}

// Options configures a finder pattern search. The zero value (or nil) scans
// with default tuning.
type Options struct {
	// TryHarder scans every row and never stops early. It finds small or
	// damaged symbols at the cost of latency.
	TryHarder bool

	// ResultPointCallback, if set, is called with every candidate center that
	// passes the cross-checks, before it is clustered.
	ResultPointCallback qrfinder.ResultPointCallback

	// Tuning overrides the search heuristics. Nil fields keep their defaults.
	Tuning *Tuning
}

// Finder searches an image for finder patterns. A Finder is not safe for
// concurrent use; use one Finder per goroutine. Several Finders may share an
// image.
type Finder struct {
	image      Image
	centers    centerTracker
	hasSkipped bool
	tryHarder  bool
	tuning     *Tuning
	callback   qrfinder.ResultPointCallback
}

// NewFinder creates a Finder for the given image.
func NewFinder(image Image) *Finder {
	return &Finder{image: image}
}

// FindFinderPatterns is shorthand for NewFinder(image).Find(opts).
func FindFinderPatterns(image Image, opts *Options) (*FinderPatternInfo, error) {
	return NewFinder(image).Find(opts)
}

// Image returns the image being searched.
func (f *Finder) Image() Image {
	return f.image
}

// PossibleCenters returns a copy of the clusters accumulated by the last
// call to Find, in the order they were first seen.
func (f *Finder) PossibleCenters() []FinderPattern {
	out := make([]FinderPattern, len(f.centers.centers))
	for i, c := range f.centers.centers {
		out[i] = *c
	}
	return out
}

// Find scans the image and returns the three finder patterns that best form
// a QR code's corner triangle, or qrfinder.ErrPatternNotFound. An invalid
// opts.Tuning is reported before any scanning.
func (f *Finder) Find(opts *Options) (*FinderPatternInfo, error) {
	if opts == nil {
		opts = &Options{}
	}
	if opts.Tuning != nil {
		if err := opts.Tuning.Validate(); err != nil {
			return nil, fmt.Errorf("invalid tuning: %w", err)
		}
	}
	f.tryHarder = opts.TryHarder
	f.tuning = opts.Tuning
	f.callback = opts.ResultPointCallback
	f.hasSkipped = false
	f.centers.reset()
	f.centers.mergeFactor = f.tuning.GetMergeDistanceFactor()

	maxI := f.image.Height()
	maxJ := f.image.Width()

	// Skip rows in proportion to the image height: a symbol of MaxModules
	// modules filling three quarters of the image still gets a few hits per
	// finder pattern.
	baseSkip := (3 * maxI) / (4 * f.tuning.GetMaxModules())
	if baseSkip < f.tuning.GetMinSkip() {
		baseSkip = f.tuning.GetMinSkip()
	}
	if f.tryHarder {
		baseSkip = 1
	}

	iSkip := baseSkip
	done := false
	var stateCount [5]int
	for i := iSkip - 1; i < maxI && !done; i += iSkip {
		stateCount = [5]int{}
		currentState := 0
		for j := 0; j < maxJ; j++ {
			if f.image.Get(j, i) {
				if currentState&1 == 1 { // was counting white
					currentState++
				}
				stateCount[currentState]++
				continue
			}
			if currentState&1 == 1 { // still counting white
				stateCount[currentState]++
				continue
			}
			if currentState < 4 {
				currentState++
				stateCount[currentState]++
				continue
			}

			// A white pixel closes the fifth run.
			if !FoundPatternCross(stateCount) || !f.handlePossibleCenter(stateCount, i, j) {
				shiftCounts2(&stateCount)
				currentState = 3
				continue
			}
			iSkip = f.rowStride(baseSkip)
			if f.hasSkipped {
				done = f.haveMultiplyConfirmedCenters()
			} else if !f.tryHarder {
				rowSkip := f.findRowSkip()
				if rowSkip > stateCount[2] {
					// Jump down to where the third pattern should be.
					i += rowSkip - stateCount[2] - iSkip
					j = maxJ - 1
				}
			}
			currentState = 0
			stateCount = [5]int{}
		}
		if FoundPatternCross(stateCount) && f.handlePossibleCenter(stateCount, i, maxJ) {
			iSkip = f.rowStride(baseSkip)
			if f.hasSkipped {
				done = f.haveMultiplyConfirmedCenters()
			}
		}
	}

	best, err := f.selectBestPatterns()
	if err != nil {
		return nil, err
	}
	ordered := qrfinder.OrderBestPatterns(best)
	return &FinderPatternInfo{
		BottomLeft: *ordered[0],
		TopLeft:    *ordered[1],
		TopRight:   *ordered[2],
		ModuleSize: f.calculateModuleSize(ordered[1], ordered[2], ordered[0]),
	}, nil
}

// rowStride returns the row step once patterns are known: no larger than the
// smallest module size seen, so the next pattern cannot be stepped over.
func (f *Finder) rowStride(baseSkip int) int {
	if f.tryHarder {
		return 1
	}
	stride := int(f.centers.minModuleSize())
	return max(1, min(stride, baseSkip))
}

// handlePossibleCenter cross-checks a horizontal hit ending at column j of
// row i and registers it. It returns true if the hit was confirmed.
func (f *Finder) handlePossibleCenter(stateCount [5]int, i, j int) bool {
	stateCountTotal := totalCount(stateCount)
	centerJ := centerFromEnd(stateCount, j)
	centerI := f.crossCheck(int(centerJ), i, 0, 1, stateCount[2], stateCountTotal,
		f.tuning.GetVerticalTotalFactor())
	if math.IsNaN(centerI) {
		return false
	}
	// Re-center horizontally on the row the vertical check found.
	centerJ = f.crossCheck(int(centerJ), int(centerI), 1, 0, stateCount[2], stateCountTotal,
		f.tuning.GetHorizontalTotalFactor())
	if math.IsNaN(centerJ) {
		return false
	}
	if f.tuning.GetDiagonalCrossCheck() && !f.crossCheckDiagonal(int(centerJ), int(centerI)) {
		return false
	}

	estimatedModuleSize := float64(stateCountTotal) / 7.0
	if f.callback != nil {
		f.callback(qrfinder.ResultPoint{X: centerJ, Y: centerI})
	}
	f.centers.register(centerJ, centerI, estimatedModuleSize)
	return true
}

// crossCheck walks through (startX, startY) along the axis (dx, dy), which is
// either (1, 0) or (0, 1), and counts a finder pattern cross-section there.
// Each run other than the center is bounded by maxCount: at most maxCount
// behind the center, fewer than maxCount ahead of it. The section is
// rejected when its total differs from originalTotal by totalFactor/5 or
// more, relative to originalTotal. It returns the refined center coordinate
// along the axis, or NaN.
func (f *Finder) crossCheck(startX, startY, dx, dy, maxCount, originalTotal int, totalFactor float64) float64 {
	width, height := f.image.Width(), f.image.Height()
	inside := func(k int) bool {
		x, y := startX+k*dx, startY+k*dy
		return x >= 0 && y >= 0 && x < width && y < height
	}
	black := func(k int) bool {
		return f.image.Get(startX+k*dx, startY+k*dy)
	}

	var stateCount [5]int

	// Backward from the center.
	k := 0
	for inside(k) && black(k) {
		stateCount[2]++
		k--
	}
	if !inside(k) {
		return math.NaN()
	}
	for inside(k) && !black(k) && stateCount[1] <= maxCount {
		stateCount[1]++
		k--
	}
	if !inside(k) || stateCount[1] > maxCount {
		return math.NaN()
	}
	for inside(k) && black(k) && stateCount[0] <= maxCount {
		stateCount[0]++
		k--
	}
	if stateCount[0] > maxCount {
		return math.NaN()
	}

	// Forward from the center.
	k = 1
	for inside(k) && black(k) {
		stateCount[2]++
		k++
	}
	if !inside(k) {
		return math.NaN()
	}
	for inside(k) && !black(k) && stateCount[3] < maxCount {
		stateCount[3]++
		k++
	}
	if !inside(k) || stateCount[3] >= maxCount {
		return math.NaN()
	}
	for inside(k) && black(k) && stateCount[4] < maxCount {
		stateCount[4]++
		k++
	}
	if stateCount[4] >= maxCount {
		return math.NaN()
	}

	total := totalCount(stateCount)
	if 5*math.Abs(float64(total-originalTotal)) >= totalFactor*float64(originalTotal) {
		return math.NaN()
	}
	if !FoundPatternCross(stateCount) {
		return math.NaN()
	}
	start := startX*dx + startY*dy
	return centerFromEnd(stateCount, start+k)
}

// crossCheckDiagonal counts a cross-section along the 45 degree line through
// (centerX, centerY), going up-left then down-right.
func (f *Finder) crossCheckDiagonal(centerX, centerY int) bool {
	var stateCount [5]int

	k := 0
	for centerY >= k && centerX >= k && f.image.Get(centerX-k, centerY-k) {
		stateCount[2]++
		k++
	}
	if stateCount[2] == 0 {
		return false
	}
	for centerY >= k && centerX >= k && !f.image.Get(centerX-k, centerY-k) {
		stateCount[1]++
		k++
	}
	if stateCount[1] == 0 {
		return false
	}
	for centerY >= k && centerX >= k && f.image.Get(centerX-k, centerY-k) {
		stateCount[0]++
		k++
	}
	if stateCount[0] == 0 {
		return false
	}

	maxI, maxJ := f.image.Height(), f.image.Width()
	k = 1
	for centerY+k < maxI && centerX+k < maxJ && f.image.Get(centerX+k, centerY+k) {
		stateCount[2]++
		k++
	}
	for centerY+k < maxI && centerX+k < maxJ && !f.image.Get(centerX+k, centerY+k) {
		stateCount[3]++
		k++
	}
	if stateCount[3] == 0 {
		return false
	}
	for centerY+k < maxI && centerX+k < maxJ && f.image.Get(centerX+k, centerY+k) {
		stateCount[4]++
		k++
	}
	if stateCount[4] == 0 {
		return false
	}
	return FoundPatternDiagonal(stateCount)
}

// findRowSkip estimates how many rows can be skipped once two confirmed
// patterns are known. If they are the top two corners, the third lies about
// (|dx| - |dy|) / 2 rows further down, give or take rotation.
func (f *Finder) findRowSkip() int {
	confirmed := f.centers.confirmed(f.tuning.GetCenterQuorum())
	if len(confirmed) < 2 {
		return 0
	}
	f.hasSkipped = true
	first, second := confirmed[0], confirmed[1]
	return int((math.Abs(first.X-second.X) - math.Abs(first.Y-second.Y)) / 2)
}

// haveMultiplyConfirmedCenters reports whether at least three confirmed
// clusters exist that agree on module size and are well apart, so scanning
// can stop.
func (f *Finder) haveMultiplyConfirmedCenters() bool {
	confirmed := f.centers.confirmed(f.tuning.GetCenterQuorum())
	if len(confirmed) < 3 {
		return false
	}
	sizes := make([]float64, len(confirmed))
	for i, c := range confirmed {
		sizes[i] = c.EstimatedModuleSize
	}
	totalModuleSize := floats.Sum(sizes)
	average := totalModuleSize / float64(len(sizes))
	totalDeviation := 0.0
	for _, size := range sizes {
		totalDeviation += math.Abs(size - average)
	}
	if totalDeviation > f.tuning.GetMaxModuleSizeDeviation()*totalModuleSize {
		return false
	}

	minSeparation := f.tuning.GetMinSeparationModules() * floats.Max(sizes)
	for i := range confirmed {
		for j := i + 1; j < len(confirmed); j++ {
			if math.Sqrt(squaredDistance(confirmed[i], confirmed[j])) < minSeparation {
				return false
			}
		}
	}
	return true
}
