// Package binarizer turns greyscale luminance into the black/white matrix the
// finder scans.
package binarizer

import (
	"github.com/ericlevine/qrfinder"
	"github.com/ericlevine/qrfinder/bitutil"
)

const (
	luminanceBits    = 5
	luminanceShift   = 8 - luminanceBits
	luminanceBuckets = 1 << luminanceBits
)

// GlobalHistogram picks a single black point for the whole image from a
// luminance histogram sampled over its central region. It is cheap and works
// for evenly lit images; Hybrid handles shadows and gradients.
type GlobalHistogram struct {
	source qrfinder.LuminanceSource
}

// NewGlobalHistogram creates a new GlobalHistogram binarizer.
func NewGlobalHistogram(source qrfinder.LuminanceSource) *GlobalHistogram {
	return &GlobalHistogram{source: source}
}

// LuminanceSource returns the underlying source.
func (g *GlobalHistogram) LuminanceSource() qrfinder.LuminanceSource {
	return g.source
}

// Width returns the image width.
func (g *GlobalHistogram) Width() int { return g.source.Width() }

// Height returns the image height.
func (g *GlobalHistogram) Height() int { return g.source.Height() }

// BlackMatrix samples four rows across the middle three fifths of the image,
// estimates the black point and thresholds every pixel against it.
func (g *GlobalHistogram) BlackMatrix() (*bitutil.BitMatrix, error) {
	width := g.source.Width()
	height := g.source.Height()

	var buckets [luminanceBuckets]int
	row := make([]byte, width)
	for y := 1; y < 5; y++ {
		row = g.source.Row(height*y/5, row)
		right := (width * 4) / 5
		for x := width / 5; x < right; x++ {
			buckets[int(row[x])>>luminanceShift]++
		}
	}
	blackPoint, err := estimateBlackPoint(buckets[:])
	if err != nil {
		return nil, err
	}

	matrix := bitutil.NewBitMatrixWithSize(width, height)
	luminances := g.source.Matrix()
	for y := 0; y < height; y++ {
		offset := y * width
		for x := 0; x < width; x++ {
			if int(luminances[offset+x]) < blackPoint {
				matrix.Set(x, y)
			}
		}
	}
	return matrix, nil
}

// estimateBlackPoint finds the two tallest, well separated histogram peaks and
// returns the deepest valley between them, favouring the dark side.
func estimateBlackPoint(buckets []int) (int, error) {
	numBuckets := len(buckets)
	maxBucketCount := 0
	firstPeak := 0
	firstPeakSize := 0
	for x, count := range buckets {
		if count > firstPeakSize {
			firstPeak = x
			firstPeakSize = count
		}
		if count > maxBucketCount {
			maxBucketCount = count
		}
	}

	secondPeak := 0
	secondPeakScore := 0
	for x, count := range buckets {
		dist := x - firstPeak
		score := count * dist * dist
		if score > secondPeakScore {
			secondPeak = x
			secondPeakScore = score
		}
	}

	// Every sample fell in one bucket.
	if secondPeakScore == 0 {
		return 0, qrfinder.ErrPatternNotFound
	}

	if firstPeak > secondPeak {
		firstPeak, secondPeak = secondPeak, firstPeak
	}

	// Too little dynamic range to tell ink from paper.
	if secondPeak-firstPeak <= numBuckets/16 {
		return 0, qrfinder.ErrPatternNotFound
	}

	bestValley := secondPeak - 1
	bestValleyScore := -1
	for x := secondPeak - 1; x > firstPeak; x-- {
		fromFirst := x - firstPeak
		score := fromFirst * fromFirst * (secondPeak - x) * (maxBucketCount - buckets[x])
		if score > bestValleyScore {
			bestValley = x
			bestValleyScore = score
		}
	}

	return bestValley << luminanceShift, nil
}
