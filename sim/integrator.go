package sim

import (
	"fmt"

	"laue/crystal"
	"laue/geometry"
)

// Airpaths below this fraction of the detector distance are treated as
// numerically singular.
const minAirpathFraction = 1e-6

// Integrator evaluates the diffraction intensity reaching one detector
// pixel by summing structure factor contributions over sub-pixel offsets,
// mosaic domains and spectrum lines. It holds only read-only state and is
// safe for concurrent use from multiple workers.
type Integrator struct {
	table   *crystal.Table
	det     *geometry.Detector
	beam    *geometry.Beam
	domains []crystal.Orientation

	oversample int
	policy     Policy
	minAirpath float64
}

// Build an integrator for a simulation request. The mosaic domain set is
// derived once up front so every pixel sees the identical orientations.
func NewIntegrator(req *Request) (*Integrator, error) {
	if req.Table == nil || req.Detector == nil || req.Beam == nil {
		return nil, ErrMissingInput
	}

	var domains []crystal.Orientation
	if req.Opts.SeededMosaic {
		domains = crystal.MosaicDomainsSeeded(req.Orientation, req.Opts.MosaicDomains, req.Opts.Mosaicity, req.Opts.MosaicSeed)
	} else {
		domains = crystal.MosaicDomains(req.Orientation, req.Opts.MosaicDomains, req.Opts.Mosaicity)
	}

	return &Integrator{
		table:      req.Table,
		det:        req.Detector,
		beam:       req.Beam,
		domains:    domains,
		oversample: req.Opts.Oversample,
		policy:     req.Opts.Policy,
		minAirpath: req.Detector.Distance * minAirpathFraction,
	}, nil
}

// The mosaic domain orientations used by this integrator.
func (in *Integrator) Domains() []crystal.Orientation {
	return in.domains
}

// The airpath floor below which a sample position counts as singular.
// Accelerator backends apply the same floor on device.
func (in *Integrator) MinAirpath() float64 {
	return in.minAirpath
}

// Number of (sub-pixel, domain, wavelength) samples accumulated per pixel.
func (in *Integrator) SamplesPerPixel() int {
	return in.oversample * in.oversample * len(in.domains) * len(in.beam.Spectrum)
}

// Pixel integrates the intensity for detector pixel (fast, slow).
//
// The accumulation order is fixed: sub-pixel offsets walk the oversample
// grid row-major, then mosaic domains in their generation order, then
// spectrum lines. Both backends follow this exact order so that floating
// point drift between them stays within the parity tolerance. A single
// sample run (oversample=1, one domain, one line) takes the same path with
// loop counts of one.
func (in *Integrator) Pixel(fast, slow int) (float64, error) {
	step := 1.0 / float64(in.oversample)
	var acc float64

	for sf := 0; sf < in.oversample; sf++ {
		subF := (float64(sf)+0.5)*step - 0.5
		for ss := 0; ss < in.oversample; ss++ {
			subS := (float64(ss)+0.5)*step - 0.5

			pos := in.det.PixelToLab(fast, slow, subF, subS)
			airpath := pos.Len()
			if airpath < in.minAirpath {
				if in.policy == PolicyStrict {
					return 0, fmt.Errorf("%w: airpath %g below safe minimum at pixel (%d,%d)", ErrNumericalDivergence, airpath, fast, slow)
				}
				airpath = in.minAirpath
			}

			diffracted := pos.Mul(1.0 / airpath)
			omega := in.det.SolidAngle(airpath)
			polar := in.beam.PolarizationFactor(diffracted)

			for _, dom := range in.domains {
				for _, line := range in.beam.Spectrum {
					q := diffracted.Sub(in.beam.Direction).Mul(1.0 / line.Wavelength)
					amp := in.table.Lookup(crystal.NearestIndex(dom.HKL(q)))
					intensity := real(amp)*real(amp) + imag(amp)*imag(amp)

					acc += intensity * omega * polar * line.Weight
				}
			}
		}
	}

	// Average over the sub-pixel grid and the mosaic domains; spectrum
	// weights are already normalized.
	return acc / float64(in.oversample*in.oversample*len(in.domains)), nil
}
