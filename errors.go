package qrfinder

import "errors"

// ErrPatternNotFound is returned when three consistent finder patterns cannot
// be located in the image. It is also returned by binarizers when the image
// has no usable contrast.
var ErrPatternNotFound = errors.New("finder patterns not found")
