package sim

import (
	"fmt"
	"runtime"
)

// Floating point precision for backends that support more than one mode.
// The reference backend always computes in double precision; an accelerator
// backend must be run in double precision to stay within the documented
// parity tolerance of the reference results. Single precision is a real
// configuration, not a degraded fallback, but its divergence from the
// reference backend is correspondingly larger.
type Precision int

const (
	PrecisionDouble Precision = iota
	PrecisionSingle
)

func (p Precision) String() string {
	switch p {
	case PrecisionDouble:
		return "double"
	case PrecisionSingle:
		return "single"
	}
	return "unknown"
}

// Noise models applied by the image assembler.
type NoiseKind int

const (
	NoiseNone NoiseKind = iota
	NoisePoisson
	NoiseGaussian
)

type NoiseOptions struct {
	Kind NoiseKind

	// Seed for the noise random stream. The same seed always produces the
	// same noisy image for a given intensity buffer.
	Seed uint64

	// Standard deviation for Gaussian noise, in intensity units.
	Sigma float64
}

// Policy for handling near-singular terms encountered mid integration.
type Policy int

const (
	// Clamp the offending term to a safe minimum and keep going.
	PolicyClamp Policy = iota

	// Abort the run with ErrNumericalDivergence.
	PolicyStrict
)

// Options controlling a simulation run.
type Options struct {
	// Sub-pixel oversampling factor; each pixel is integrated over an
	// Oversample x Oversample grid of offsets inside its footprint.
	Oversample int

	// Mosaic model: number of orientation domains and the mosaic spread
	// angle in radians.
	MosaicDomains int
	Mosaicity     float64

	// When SeededMosaic is set the domain orientations are drawn from a
	// seeded random stream instead of the fixed deterministic pattern.
	SeededMosaic bool
	MosaicSeed   int64

	// Accelerator floating point precision.
	Precision Precision

	// Global multiplicative scale applied by the assembler.
	Scale float64

	// Optional noise model, applied strictly after integration.
	Noise NoiseOptions

	// Handling of near-singular geometry terms.
	Policy Policy

	// Worker goroutines used by the reference backend. Zero selects one
	// per CPU.
	Workers int
}

// Validate option values and fill in defaults.
func (o *Options) Validate() error {
	if o.Oversample < 0 || o.MosaicDomains < 0 {
		return fmt.Errorf("%w: negative sampling counts", ErrInvalidOptions)
	}
	if o.Mosaicity < 0 {
		return fmt.Errorf("%w: negative mosaicity %g", ErrInvalidOptions, o.Mosaicity)
	}
	if o.Noise.Kind == NoiseGaussian && o.Noise.Sigma <= 0 {
		return fmt.Errorf("%w: gaussian noise requires a positive sigma", ErrInvalidOptions)
	}
	if o.Scale < 0 {
		return fmt.Errorf("%w: negative scale %g", ErrInvalidOptions, o.Scale)
	}

	if o.Oversample == 0 {
		o.Oversample = 1
	}
	if o.MosaicDomains == 0 {
		o.MosaicDomains = 1
	}
	if o.Scale == 0 {
		o.Scale = 1
	}
	if o.Workers < 1 {
		o.Workers = runtime.NumCPU()
	}

	return nil
}
