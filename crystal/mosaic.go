package crystal

import (
	"math"
	"math/rand"

	"laue/types"
)

// Golden angle in radians, used to distribute mosaic rotation axes evenly
// over the unit sphere.
const goldenAngle = math.Pi * (3.0 - 2.2360679774997896)

// MosaicDomains derives n orientation variants modelling crystal mosaicity.
// The perturbations follow a fixed, reproducible pattern: rotation axes walk
// a golden-section spiral over the unit sphere and rotation angles form a
// symmetric ladder spanning [-mosaicity, mosaicity]. The same inputs always
// produce the same domain set on every backend.
//
// With n == 1 or a zero mosaicity the unperturbed orientation is returned,
// so a single-domain run follows the exact same code path as the general
// case.
func MosaicDomains(o Orientation, n int, mosaicity float64) []Orientation {
	if n < 1 {
		n = 1
	}

	domains := make([]Orientation, n)
	for i := 0; i < n; i++ {
		angle := mosaicity * float64(2*i+1-n) / float64(n)
		if angle == 0 {
			domains[i] = o
			continue
		}
		domains[i] = o.Rotated(types.RotationAxisAngle(spiralAxis(i, n), angle))
	}

	return domains
}

// MosaicDomainsSeeded derives n orientation variants with randomized axes
// and normally distributed rotation angles (sigma = mosaicity). The random
// stream is fully determined by the seed.
func MosaicDomainsSeeded(o Orientation, n int, mosaicity float64, seed int64) []Orientation {
	if n < 1 {
		n = 1
	}

	rng := rand.New(rand.NewSource(seed))
	domains := make([]Orientation, n)
	for i := 0; i < n; i++ {
		axis := types.XYZ(rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()).Normalize()
		angle := rng.NormFloat64() * mosaicity
		if angle == 0 || axis.Len() == 0 {
			domains[i] = o
			continue
		}
		domains[i] = o.Rotated(types.RotationAxisAngle(axis, angle))
	}

	return domains
}

func spiralAxis(i, n int) types.Vec3 {
	z := 1.0 - 2.0*(float64(i)+0.5)/float64(n)
	r := math.Sqrt(math.Max(0, 1.0-z*z))
	phi := float64(i) * goldenAngle
	return types.Vec3{r * math.Cos(phi), r * math.Sin(phi), z}
}
