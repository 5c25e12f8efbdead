package detector

import "math"

// finderRatios are the module widths of a finder pattern cross-section:
// black, white, black, white, black.
var finderRatios = [5]float64{1, 1, 3, 1, 1}

// FoundPatternCross reports whether five consecutive run lengths
// (black, white, black, white, black) are close enough to 1:1:3:1:1 to be a
// finder pattern cross-section. Each run may deviate from its expected width
// by less than half a module.
func FoundPatternCross(stateCount [5]int) bool {
	return matchesFinderRatios(stateCount, 2.0)
}

// FoundPatternDiagonal is FoundPatternCross with the looser tolerance used
// for the 45 degree cross-check, where corners make runs less regular.
func FoundPatternDiagonal(stateCount [5]int) bool {
	return matchesFinderRatios(stateCount, 1.333)
}

func matchesFinderRatios(stateCount [5]int, varianceDivisor float64) bool {
	total := 0
	for _, count := range stateCount {
		if count == 0 {
			return false
		}
		total += count
	}
	if total < 7 {
		return false
	}
	moduleSize := float64(total) / 7.0
	maxVariance := moduleSize / varianceDivisor
	for i, count := range stateCount {
		if math.Abs(finderRatios[i]*moduleSize-float64(count)) >= maxVariance {
			return false
		}
	}
	return true
}

func totalCount(stateCount [5]int) int {
	return stateCount[0] + stateCount[1] + stateCount[2] + stateCount[3] + stateCount[4]
}

// shiftCounts2 drops the first black/white pair so the window restarts at the
// third run, which may still begin a pattern.
func shiftCounts2(stateCount *[5]int) {
	stateCount[0] = stateCount[2]
	stateCount[1] = stateCount[3]
	stateCount[2] = stateCount[4]
	stateCount[3] = 1
	stateCount[4] = 0
}

// centerFromEnd returns the middle of the center black run given the index
// one past the last black pixel of the window.
func centerFromEnd(stateCount [5]int, end int) float64 {
	return float64(end-stateCount[4]-stateCount[3]) - float64(stateCount[2])/2.0
}
