package crystal

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"laue/types"
)

// Orientation holds the reciprocal space matrix A that maps fractional
// Miller indices to reciprocal vectors (q = A h) together with its
// precomputed inverse. It is immutable; rotated variants are derived with
// Rotated.
type Orientation struct {
	a    types.Mat3
	aInv types.Mat3
}

// Build an orientation from a reciprocal space matrix. A singular matrix is
// rejected up front so that a bad crystal model can never fail mid run.
func NewOrientation(a types.Mat3) (Orientation, error) {
	var dense mat.Dense
	src := mat.NewDense(3, 3, a[:])

	if err := dense.Inverse(src); err != nil {
		return Orientation{}, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}

	var inv types.Mat3
	copy(inv[:], dense.RawMatrix().Data)

	return Orientation{a: a, aInv: inv}, nil
}

// The reciprocal space matrix.
func (o Orientation) Matrix() types.Mat3 {
	return o.a
}

// The precomputed inverse of the reciprocal space matrix. Exposed so that
// accelerator backends can upload it instead of inverting on device.
func (o Orientation) InverseMatrix() types.Mat3 {
	return o.aInv
}

// Map a reciprocal space vector to fractional Miller coordinates.
func (o Orientation) HKL(q types.Vec3) types.Vec3 {
	return o.aInv.MulVec(q)
}

// Map fractional Miller coordinates to a reciprocal space vector.
func (o Orientation) Q(hkl types.Vec3) types.Vec3 {
	return o.a.MulVec(hkl)
}

// Derive the orientation obtained by applying rotation r to the crystal.
// The inverse is derived analytically from the rotation transpose, so no
// extra matrix inversion takes place.
func (o Orientation) Rotated(r types.Mat3) Orientation {
	return Orientation{
		a:    r.Mul(o.a),
		aInv: o.aInv.Mul(r.Transpose()),
	}
}
