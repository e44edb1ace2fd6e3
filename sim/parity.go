package sim

import (
	"fmt"
	"math"
)

// Relative tolerance within which two double precision backends are
// expected to agree for every pixel.
const DefaultParityTolerance = 1e-6

// DivergenceReport summarizes a pixel-wise comparison between two backends.
// Divergence beyond tolerance indicates a precision problem rather than a
// logic fault, so it is reported instead of raised: callers log it and
// attach it to run metadata.
type DivergenceReport struct {
	// Number of compared pixels.
	Pixels int

	// Number of pixels whose relative difference exceeds the tolerance.
	Divergent int

	// Largest observed relative difference and the pixel it occurred at.
	MaxRelative float64
	WorstPixel  int

	// The tolerance the comparison was run with.
	Tolerance float64
}

// Whether the two buffers agree within tolerance everywhere.
func (r DivergenceReport) Ok() bool {
	return r.Divergent == 0
}

// Implements Stringer.
func (r DivergenceReport) String() string {
	if r.Ok() {
		return fmt.Sprintf("all %d pixels agree within %.1e", r.Pixels, r.Tolerance)
	}
	return fmt.Sprintf(
		"%d of %d pixels diverge beyond %.1e (worst: %.3e at pixel %d)",
		r.Divergent, r.Pixels, r.Tolerance, r.MaxRelative, r.WorstPixel,
	)
}

// ComparePixels performs a pixel-wise relative comparison of two intensity
// buffers. Differences are measured relative to the larger magnitude of the
// two values; pixels where both values are exactly zero always agree. The
// buffers must have equal length.
func ComparePixels(ref, test []float64, relTol float64) (DivergenceReport, error) {
	if len(ref) != len(test) {
		return DivergenceReport{}, fmt.Errorf("%w: buffer lengths differ (%d vs %d)", ErrMissingInput, len(ref), len(test))
	}
	if relTol <= 0 {
		relTol = DefaultParityTolerance
	}

	report := DivergenceReport{
		Pixels:     len(ref),
		WorstPixel: -1,
		Tolerance:  relTol,
	}

	for i := range ref {
		mag := math.Max(math.Abs(ref[i]), math.Abs(test[i]))
		if mag == 0 {
			continue
		}
		rel := math.Abs(ref[i]-test[i]) / mag
		if rel > report.MaxRelative {
			report.MaxRelative = rel
			report.WorstPixel = i
		}
		if rel > relTol {
			report.Divergent++
		}
	}

	return report, nil
}
