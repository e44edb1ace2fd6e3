package geometry

import (
	"fmt"
	"math"

	"laue/types"
)

// A single line of the beam spectrum. Wavelengths are in Angstrom; weights
// are relative and normalized at beam construction.
type SpectrumLine struct {
	Wavelength float64
	Weight     float64
}

// Beam describes the incident beam: direction of propagation, a discrete
// wavelength spectrum and the Kahn polarization model parameters. Immutable
// once constructed.
type Beam struct {
	// Unit direction of propagation.
	Direction types.Vec3

	// Normalized spectrum. Weights sum to one.
	Spectrum []SpectrumLine

	// Kahn polarization fraction in [-1, 1]; zero means unpolarized.
	Polarization float64

	// Electric vector direction (its projection perpendicular to the beam
	// is used). Only consulted when Polarization != 0.
	PolarizationAxis types.Vec3

	// Beam divergence in radians. Carried for experiment bookkeeping; the
	// sampling loops integrate over the spectrum lines only.
	Divergence float64
}

// Build a beam from a direction and spectrum. Spectrum weights are
// normalized so that they sum to one; non-positive wavelengths, an empty
// spectrum, a zero total weight or an out-of-range polarization fraction
// are rejected.
func NewBeam(direction types.Vec3, spectrum []SpectrumLine, polarization float64, polarizationAxis types.Vec3, divergence float64) (*Beam, error) {
	dir := direction.Normalize()
	if dir.Len() == 0 {
		return nil, fmt.Errorf("%w: zero length beam direction", ErrInvalidGeometry)
	}
	if len(spectrum) == 0 {
		return nil, fmt.Errorf("%w: beam spectrum is empty", ErrInvalidGeometry)
	}
	if polarization < -1 || polarization > 1 {
		return nil, fmt.Errorf("%w: polarization fraction %g outside [-1, 1]", ErrInvalidGeometry, polarization)
	}
	if divergence < 0 {
		return nil, fmt.Errorf("%w: negative beam divergence %g", ErrInvalidGeometry, divergence)
	}

	var total float64
	for _, line := range spectrum {
		if line.Wavelength <= 0 {
			return nil, fmt.Errorf("%w: wavelength %g must be positive", ErrInvalidGeometry, line.Wavelength)
		}
		if line.Weight < 0 {
			return nil, fmt.Errorf("%w: negative spectrum weight %g", ErrInvalidGeometry, line.Weight)
		}
		total += line.Weight
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: spectrum weights sum to zero", ErrInvalidGeometry)
	}

	normalized := make([]SpectrumLine, len(spectrum))
	for i, line := range spectrum {
		normalized[i] = SpectrumLine{
			Wavelength: line.Wavelength,
			Weight:     line.Weight / total,
		}
	}

	axis := polarizationAxis.Normalize()
	if polarization != 0 && axis.Len() == 0 {
		return nil, fmt.Errorf("%w: polarized beam requires a polarization axis", ErrInvalidGeometry)
	}

	return &Beam{
		Direction:        dir,
		Spectrum:         normalized,
		Polarization:     polarization,
		PolarizationAxis: axis,
		Divergence:       divergence,
	}, nil
}

// Build an unpolarized single-wavelength beam travelling along +z.
func NewMonochromaticBeam(wavelength float64) (*Beam, error) {
	return NewBeam(
		types.XYZ(0, 0, 1),
		[]SpectrumLine{{Wavelength: wavelength, Weight: 1}},
		0, types.Vec3{}, 0,
	)
}

// PolarizationFactor evaluates the Kahn polarization correction for a
// diffracted direction. With a zero polarization fraction this reduces to
// the unpolarized factor (1 + cos^2 2theta) / 2.
func (b *Beam) PolarizationFactor(diffracted types.Vec3) float64 {
	cos2theta := CosTwoTheta(diffracted, b.Direction)
	cos2thetaSqr := cos2theta * cos2theta
	sin2thetaSqr := 1.0 - cos2thetaSqr

	cos2psi := 0.0
	if b.Polarization != 0 {
		bVec := b.PolarizationAxis.Cross(b.Direction).Normalize()
		eVec := b.Direction.Cross(bVec).Normalize()
		psi := -math.Atan2(diffracted.Dot(bVec), diffracted.Dot(eVec))
		cos2psi = math.Cos(2 * psi)
	}

	return 0.5 * (1.0 + cos2thetaSqr - b.Polarization*cos2psi*sin2thetaSqr)
}
