package qrfinder

import (
	"image"
	"image/color"
)

// ImageLuminanceSource is a LuminanceSource backed by a decoded image.Image.
type ImageLuminanceSource struct {
	luminances []byte
	width      int
	height     int
}

// NewImageLuminanceSource converts img to 8-bit luminance using the integer
// weights (306*R + 601*G + 117*B + 0x200) >> 10. Fully transparent pixels are
// treated as white.
func NewImageLuminanceSource(img image.Image) *ImageLuminanceSource {
	if gray, ok := img.(*image.Gray); ok {
		return newGrayLuminanceSource(gray)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	luminances := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			if a == 0 {
				luminances[y*w+x] = 0xFF
				continue
			}
			r8, g8, b8 := r>>8, g>>8, b>>8
			luminances[y*w+x] = byte((306*r8 + 601*g8 + 117*b8 + 0x200) >> 10)
		}
	}
	return &ImageLuminanceSource{luminances: luminances, width: w, height: h}
}

func newGrayLuminanceSource(img *image.Gray) *ImageLuminanceSource {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	luminances := make([]byte, w*h)
	for y := 0; y < h; y++ {
		off := img.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		copy(luminances[y*w:], img.Pix[off:off+w])
	}
	return &ImageLuminanceSource{luminances: luminances, width: w, height: h}
}

// Row returns a row of luminance data, or nil if y is out of range.
func (s *ImageLuminanceSource) Row(y int, row []byte) []byte {
	if y < 0 || y >= s.height {
		return nil
	}
	if len(row) < s.width {
		row = make([]byte, s.width)
	}
	offset := y * s.width
	copy(row, s.luminances[offset:offset+s.width])
	return row
}

// Matrix returns a copy of the entire luminance matrix.
func (s *ImageLuminanceSource) Matrix() []byte {
	result := make([]byte, len(s.luminances))
	copy(result, s.luminances)
	return result
}

// Width returns the width of the image.
func (s *ImageLuminanceSource) Width() int { return s.width }

// Height returns the height of the image.
func (s *ImageLuminanceSource) Height() int { return s.height }

// BitMatrixToImage renders a binary matrix as a greyscale image, scaling each
// cell to scale×scale pixels. Black cells are 0 and white cells are 255.
func BitMatrixToImage(matrix interface {
	Width() int
	Height() int
	Get(x, y int) bool
}, scale int) *image.Gray {
	if scale < 1 {
		scale = 1
	}
	w, h := matrix.Width(), matrix.Height()
	img := image.NewGray(image.Rect(0, 0, w*scale, h*scale))
	for y := 0; y < h*scale; y++ {
		for x := 0; x < w*scale; x++ {
			v := color.Gray{Y: 255}
			if matrix.Get(x/scale, y/scale) {
				v = color.Gray{Y: 0}
			}
			img.SetGray(x, y, v)
		}
	}
	return img
}
