// Package bitutil provides the packed binary image used by the finder.
package bitutil

import (
	"strings"
)

// BitMatrix is a packed 2D matrix of bits where a set bit is a black pixel.
// x is the column position, y is the row position. The origin is at the top-left.
type BitMatrix struct {
	width   int
	height  int
	rowSize int
	data    []uint32
}

// NewBitMatrix creates a new square BitMatrix with the given dimension.
func NewBitMatrix(dimension int) *BitMatrix {
	return NewBitMatrixWithSize(dimension, dimension)
}

// NewBitMatrixWithSize creates a new all-white BitMatrix with the given width and height.
func NewBitMatrixWithSize(width, height int) *BitMatrix {
	if width < 1 || height < 1 {
		panic("bitmatrix: dimensions must be greater than 0")
	}
	rowSize := (width + 31) / 32
	return &BitMatrix{
		width:   width,
		height:  height,
		rowSize: rowSize,
		data:    make([]uint32, rowSize*height),
	}
}

// ParseBoolMatrix creates a BitMatrix from rows of booleans, true meaning black.
func ParseBoolMatrix(image [][]bool) *BitMatrix {
	bm := NewBitMatrixWithSize(len(image[0]), len(image))
	for y, row := range image {
		for x, black := range row {
			if black {
				bm.Set(x, y)
			}
		}
	}
	return bm
}

// ParseStringMatrix creates a BitMatrix from a textual picture. Rows are
// separated by newlines; setStr marks a black pixel and unsetStr a white one.
func ParseStringMatrix(repr, setStr, unsetStr string) *BitMatrix {
	var rows [][]bool
	for _, line := range strings.Split(strings.ReplaceAll(repr, "\r", ""), "\n") {
		if line == "" {
			continue
		}
		var row []bool
		for pos := 0; pos < len(line); {
			switch {
			case strings.HasPrefix(line[pos:], setStr):
				row = append(row, true)
				pos += len(setStr)
			case strings.HasPrefix(line[pos:], unsetStr):
				row = append(row, false)
				pos += len(unsetStr)
			default:
				panic("bitmatrix: illegal character encountered")
			}
		}
		if len(rows) > 0 && len(row) != len(rows[0]) {
			panic("bitmatrix: row lengths do not match")
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		panic("bitmatrix: empty representation")
	}
	return ParseBoolMatrix(rows)
}

// Get returns true if the pixel at (x, y) is black.
func (bm *BitMatrix) Get(x, y int) bool {
	offset := y*bm.rowSize + x/32
	return (bm.data[offset]>>uint(x&0x1f))&1 != 0
}

// Set marks the pixel at (x, y) black.
func (bm *BitMatrix) Set(x, y int) {
	offset := y*bm.rowSize + x/32
	bm.data[offset] |= 1 << uint(x&0x1f)
}

// Unset marks the pixel at (x, y) white.
func (bm *BitMatrix) Unset(x, y int) {
	offset := y*bm.rowSize + x/32
	bm.data[offset] &^= 1 << uint(x&0x1f)
}

// Flip inverts the pixel at (x, y).
func (bm *BitMatrix) Flip(x, y int) {
	offset := y*bm.rowSize + x/32
	bm.data[offset] ^= 1 << uint(x&0x1f)
}

// SetRegion marks a rectangular region black.
func (bm *BitMatrix) SetRegion(left, top, width, height int) {
	bm.fillRegion(left, top, width, height, true)
}

// UnsetRegion marks a rectangular region white.
func (bm *BitMatrix) UnsetRegion(left, top, width, height int) {
	bm.fillRegion(left, top, width, height, false)
}

func (bm *BitMatrix) fillRegion(left, top, width, height int, black bool) {
	if top < 0 || left < 0 {
		panic("bitmatrix: left and top must be nonnegative")
	}
	if height < 1 || width < 1 {
		panic("bitmatrix: height and width must be at least 1")
	}
	right := left + width
	bottom := top + height
	if bottom > bm.height || right > bm.width {
		panic("bitmatrix: region must fit inside the matrix")
	}
	for y := top; y < bottom; y++ {
		offset := y * bm.rowSize
		for x := left; x < right; x++ {
			if black {
				bm.data[offset+x/32] |= 1 << uint(x&0x1f)
			} else {
				bm.data[offset+x/32] &^= 1 << uint(x&0x1f)
			}
		}
	}
}

// Rotate90 rotates the matrix 90 degrees counterclockwise.
func (bm *BitMatrix) Rotate90() {
	rotated := NewBitMatrixWithSize(bm.height, bm.width)
	for y := 0; y < bm.height; y++ {
		for x := 0; x < bm.width; x++ {
			if bm.Get(x, y) {
				rotated.Set(y, bm.width-1-x)
			}
		}
	}
	*bm = *rotated
}

// Rotate180 rotates the matrix 180 degrees.
func (bm *BitMatrix) Rotate180() {
	rotated := NewBitMatrixWithSize(bm.width, bm.height)
	for y := 0; y < bm.height; y++ {
		for x := 0; x < bm.width; x++ {
			if bm.Get(x, y) {
				rotated.Set(bm.width-1-x, bm.height-1-y)
			}
		}
	}
	bm.data = rotated.data
}

// Width returns the width.
func (bm *BitMatrix) Width() int { return bm.width }

// Height returns the height.
func (bm *BitMatrix) Height() int { return bm.height }

// Clone returns a deep copy of the BitMatrix.
func (bm *BitMatrix) Clone() *BitMatrix {
	d := make([]uint32, len(bm.data))
	copy(d, bm.data)
	return &BitMatrix{width: bm.width, height: bm.height, rowSize: bm.rowSize, data: d}
}

// String returns a string representation using "X " for black and "  " for white.
func (bm *BitMatrix) String() string {
	return bm.StringWithChars("X ", "  ")
}

// StringWithChars returns a string representation using the given set/unset strings.
func (bm *BitMatrix) StringWithChars(setString, unsetString string) string {
	var sb strings.Builder
	sb.Grow(bm.height * (bm.width*len(setString) + 1))
	for y := 0; y < bm.height; y++ {
		for x := 0; x < bm.width; x++ {
			if bm.Get(x, y) {
				sb.WriteString(setString)
			} else {
				sb.WriteString(unsetString)
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Equals returns true if two BitMatrices hold the same pixels.
func (bm *BitMatrix) Equals(other *BitMatrix) bool {
	if bm.width != other.width || bm.height != other.height {
		return false
	}
	for i := range bm.data {
		if bm.data[i] != other.data[i] {
			return false
		}
	}
	return true
}
