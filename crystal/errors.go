package crystal

import "errors"

var (
	ErrDuplicateIndex     = errors.New("crystal: duplicate miller index with conflicting amplitudes")
	ErrNoStructureFactors = errors.New("crystal: structure factor list is empty")
	ErrInvalidGeometry    = errors.New("crystal: singular orientation matrix")
)
