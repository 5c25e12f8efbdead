package binarizer

import (
	"github.com/ericlevine/qrfinder"
	"github.com/ericlevine/qrfinder/bitutil"
)

const (
	blockSizePower   = 3
	blockSize        = 1 << blockSizePower // 8x8 pixel blocks
	blockSizeMask    = blockSize - 1
	minimumDimension = blockSize * 5
	minDynamicRange  = 24
)

// Hybrid thresholds each 8x8 block against the average black point of the
// surrounding 5x5 blocks. Images smaller than 40 pixels on a side fall back
// to GlobalHistogram. The result is computed once and cached.
type Hybrid struct {
	*GlobalHistogram
	matrix *bitutil.BitMatrix
}

// NewHybrid creates a new Hybrid binarizer.
func NewHybrid(source qrfinder.LuminanceSource) *Hybrid {
	return &Hybrid{GlobalHistogram: NewGlobalHistogram(source)}
}

// BlackMatrix returns the binarized matrix using local thresholding.
func (h *Hybrid) BlackMatrix() (*bitutil.BitMatrix, error) {
	if h.matrix != nil {
		return h.matrix, nil
	}
	width, height := h.Width(), h.Height()
	if width < minimumDimension || height < minimumDimension {
		m, err := h.GlobalHistogram.BlackMatrix()
		if err != nil {
			return nil, err
		}
		h.matrix = m
		return m, nil
	}

	luminances := h.source.Matrix()
	subWidth := (width + blockSizeMask) >> blockSizePower
	subHeight := (height + blockSizeMask) >> blockSizePower
	blackPoints := calculateBlackPoints(luminances, subWidth, subHeight, width, height)

	matrix := bitutil.NewBitMatrixWithSize(width, height)
	maxYOffset := height - blockSize
	maxXOffset := width - blockSize
	for y := 0; y < subHeight; y++ {
		yoffset := min(y<<blockSizePower, maxYOffset)
		top := clampBlock(y, subHeight-3)
		for x := 0; x < subWidth; x++ {
			xoffset := min(x<<blockSizePower, maxXOffset)
			left := clampBlock(x, subWidth-3)
			sum := 0
			for z := -2; z <= 2; z++ {
				for w := -2; w <= 2; w++ {
					sum += blackPoints[top+z][left+w]
				}
			}
			thresholdBlock(luminances, xoffset, yoffset, sum/25, width, matrix)
		}
	}
	h.matrix = matrix
	return matrix, nil
}

// clampBlock keeps a 5x5 neighbourhood centered on value inside [0, hi+2].
func clampBlock(value, hi int) int {
	if value < 2 {
		return 2
	}
	return min(value, hi)
}

func thresholdBlock(luminances []byte, xoffset, yoffset, threshold, stride int, matrix *bitutil.BitMatrix) {
	for y := 0; y < blockSize; y++ {
		offset := (yoffset+y)*stride + xoffset
		for x := 0; x < blockSize; x++ {
			if int(luminances[offset+x]) <= threshold {
				matrix.Set(xoffset+x, yoffset+y)
			}
		}
	}
}

// calculateBlackPoints computes one black point per block. Low-contrast blocks
// inherit a value from their already computed neighbours so that flat areas
// inside a symbol are not thresholded as noise.
func calculateBlackPoints(luminances []byte, subWidth, subHeight, width, height int) [][]int {
	maxYOffset := height - blockSize
	maxXOffset := width - blockSize
	blackPoints := make([][]int, subHeight)
	for y := range blackPoints {
		blackPoints[y] = make([]int, subWidth)
	}

	for y := 0; y < subHeight; y++ {
		yoffset := min(y<<blockSizePower, maxYOffset)
		for x := 0; x < subWidth; x++ {
			xoffset := min(x<<blockSizePower, maxXOffset)
			sum, lo, hi := 0, 0xFF, 0
			for yy := 0; yy < blockSize; yy++ {
				offset := (yoffset+yy)*width + xoffset
				for xx := 0; xx < blockSize; xx++ {
					pixel := int(luminances[offset+xx])
					sum += pixel
					lo = min(lo, pixel)
					hi = max(hi, pixel)
				}
			}

			average := sum >> (blockSizePower * 2)
			if hi-lo <= minDynamicRange {
				average = lo / 2
				if y > 0 && x > 0 {
					neighbours := (blackPoints[y-1][x] + 2*blackPoints[y][x-1] + blackPoints[y-1][x-1]) / 4
					if lo < neighbours {
						average = neighbours
					}
				}
			}
			blackPoints[y][x] = average
		}
	}
	return blackPoints
}
