package detector

import (
	"math"

	"github.com/ericlevine/qrfinder"
)

// FinderPattern is a candidate finder pattern center. X, Y and
// EstimatedModuleSize are averages over Count detections.
type FinderPattern struct {
	X, Y                float64
	EstimatedModuleSize float64
	Count               int
}

// Point returns the center of the pattern.
func (fp *FinderPattern) Point() qrfinder.ResultPoint {
	return qrfinder.ResultPoint{X: fp.X, Y: fp.Y}
}

// aboutEquals reports whether a detection at (i, j) (row, column) with the
// given module size belongs to this pattern. The detection must lie within
// factor times the smaller of the two module sizes on each axis, and the
// sizes may differ by at most 1 or by the smaller size. Swapping the roles of
// pattern and detection gives the same answer.
func (fp *FinderPattern) aboutEquals(moduleSize, i, j, factor float64) bool {
	smaller := math.Min(moduleSize, fp.EstimatedModuleSize)
	limit := factor * smaller
	if math.Abs(i-fp.Y) <= limit && math.Abs(j-fp.X) <= limit {
		moduleSizeDiff := math.Abs(moduleSize - fp.EstimatedModuleSize)
		return moduleSizeDiff <= 1.0 || moduleSizeDiff <= smaller
	}
	return false
}

// combineEstimate folds other into fp, weighting both by their counts.
func (fp *FinderPattern) combineEstimate(other FinderPattern) {
	combinedCount := fp.Count + other.Count
	n := float64(combinedCount)
	fp.X = (float64(fp.Count)*fp.X + float64(other.Count)*other.X) / n
	fp.Y = (float64(fp.Count)*fp.Y + float64(other.Count)*other.Y) / n
	fp.EstimatedModuleSize = (float64(fp.Count)*fp.EstimatedModuleSize +
		float64(other.Count)*other.EstimatedModuleSize) / n
	fp.Count = combinedCount
}

func squaredDistance(a, b *FinderPattern) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return dx*dx + dy*dy
}

// FinderPatternInfo holds the three finder patterns of one symbol in the
// order downstream sampling expects, and the module width measured across
// the triangle they form.
type FinderPatternInfo struct {
	BottomLeft, TopLeft, TopRight FinderPattern
	ModuleSize                    float64
}

// Points returns the three centers as bottom-left, top-left, top-right.
func (info *FinderPatternInfo) Points() []qrfinder.ResultPoint {
	return []qrfinder.ResultPoint{
		info.BottomLeft.Point(),
		info.TopLeft.Point(),
		info.TopRight.Point(),
	}
}
