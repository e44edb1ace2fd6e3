package geometry

import "errors"

var (
	ErrInvalidGeometry = errors.New("geometry: invalid detector or beam configuration")
)
