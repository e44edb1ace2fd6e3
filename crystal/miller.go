package crystal

import (
	"fmt"
	"math"

	"laue/types"
)

// A Miller index identifies a reciprocal lattice point.
type MillerIndex struct {
	H, K, L int
}

// Implements Stringer.
func (m MillerIndex) String() string {
	return fmt.Sprintf("(%d %d %d)", m.H, m.K, m.L)
}

// Round a fractional hkl coordinate to the nearest reciprocal lattice point.
// Halves round away from zero.
func NearestIndex(hkl types.Vec3) MillerIndex {
	return MillerIndex{
		H: int(math.Round(hkl[0])),
		K: int(math.Round(hkl[1])),
		L: int(math.Round(hkl[2])),
	}
}
