package geometry

import (
	"fmt"
	"math"

	"laue/types"
)

// Detector describes a flat pixel array detector. Distances are in meters.
// The fast axis walks along a detector row, the slow axis along a column;
// the detector plane sits at Distance along its normal from the sample.
// Immutable once constructed.
type Detector struct {
	// Sample to detector distance along the detector normal.
	Distance float64

	// Edge length of a square pixel.
	PixelSize float64

	// Pixel counts along the fast and slow axes.
	PixelsFast int
	PixelsSlow int

	// Direct beam position on the face, in (possibly fractional) pixels.
	BeamCenterFast float64
	BeamCenterSlow float64

	// Unit basis vectors of the detector face.
	fast   types.Vec3
	slow   types.Vec3
	normal types.Vec3
}

// Build a detector with explicit face basis vectors. The basis vectors are
// normalized internally; near-parallel vectors, a non-positive distance or
// pixel size, or empty pixel dimensions are rejected up front.
func NewDetector(distance, pixelSize float64, pixelsFast, pixelsSlow int, beamCenterFast, beamCenterSlow float64, fast, slow types.Vec3) (*Detector, error) {
	if distance <= 0 {
		return nil, fmt.Errorf("%w: detector distance %g must be positive", ErrInvalidGeometry, distance)
	}
	if pixelSize <= 0 {
		return nil, fmt.Errorf("%w: pixel size %g must be positive", ErrInvalidGeometry, pixelSize)
	}
	if pixelsFast < 1 || pixelsSlow < 1 {
		return nil, fmt.Errorf("%w: detector dimensions %dx%d", ErrInvalidGeometry, pixelsFast, pixelsSlow)
	}

	f := fast.Normalize()
	s := slow.Normalize()
	if f.Len() == 0 || s.Len() == 0 {
		return nil, fmt.Errorf("%w: zero length detector basis vector", ErrInvalidGeometry)
	}
	n := f.Cross(s)
	if n.Len() < 1e-6 {
		return nil, fmt.Errorf("%w: detector basis vectors are parallel", ErrInvalidGeometry)
	}

	return &Detector{
		Distance:       distance,
		PixelSize:      pixelSize,
		PixelsFast:     pixelsFast,
		PixelsSlow:     pixelsSlow,
		BeamCenterFast: beamCenterFast,
		BeamCenterSlow: beamCenterSlow,
		fast:           f,
		slow:           s,
		normal:         n.Normalize(),
	}, nil
}

// Build a beam-normal detector with the conventional axis orientation: the
// beam travels along +z, the fast axis along +x and the slow axis along +y.
// The beam center defaults to the face center.
func NewBeamNormalDetector(distance, pixelSize float64, pixelsFast, pixelsSlow int) (*Detector, error) {
	return NewDetector(
		distance, pixelSize, pixelsFast, pixelsSlow,
		float64(pixelsFast)/2, float64(pixelsSlow)/2,
		types.XYZ(1, 0, 0), types.XYZ(0, 1, 0),
	)
}

// Face basis vectors.
func (d *Detector) Basis() (fast, slow, normal types.Vec3) {
	return d.fast, d.slow, d.normal
}

// Total number of pixels.
func (d *Detector) PixelCount() int {
	return d.PixelsFast * d.PixelsSlow
}

// PixelToLab returns the lab frame position of a point inside pixel
// (fast, slow). The sub-pixel offsets are expressed in pixel units relative
// to the pixel center, so subF = subS = 0 addresses the center and the
// valid footprint spans [-0.5, 0.5).
func (d *Detector) PixelToLab(fast, slow int, subF, subS float64) types.Vec3 {
	df := (float64(fast) + 0.5 + subF - d.BeamCenterFast) * d.PixelSize
	ds := (float64(slow) + 0.5 + subS - d.BeamCenterSlow) * d.PixelSize

	return d.normal.Mul(d.Distance).
		Add(d.fast.Mul(df)).
		Add(d.slow.Mul(ds))
}

// SolidAngle returns the solid angle subtended by a pixel whose center sits
// at the given airpath from the sample, including the obliquity factor for
// pixels away from the direct beam.
func (d *Detector) SolidAngle(airpath float64) float64 {
	return d.PixelSize * d.PixelSize * d.Distance / (airpath * airpath * airpath)
}

// ScatteringVector returns the reciprocal space vector probed at a detector
// position for the given incident beam direction and wavelength. Positions
// are lab frame, the wavelength is in the same reciprocal units as the
// structure factor table indexing (conventionally Angstrom).
func ScatteringVector(pos types.Vec3, beamDir types.Vec3, wavelength float64) types.Vec3 {
	return pos.Normalize().Sub(beamDir).Mul(1.0 / wavelength)
}

// Scattering angle helper: cosine of 2theta between the incident and
// diffracted directions.
func CosTwoTheta(diffracted, incident types.Vec3) float64 {
	c := diffracted.Dot(incident)
	return math.Max(-1, math.Min(1, c))
}
