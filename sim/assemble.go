package sim

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// assemble turns a raw intensity buffer into the final image: the global
// scale is applied first, then the optional noise model. Noise is drawn
// pixel by pixel from a single seeded stream strictly after all integration
// has completed, so its statistics never depend on how the backends split
// the detector surface.
func assemble(pixels []float64, width, height int, opts Options, meta Meta) *Image {
	if opts.Scale != 1 {
		for i := range pixels {
			pixels[i] *= opts.Scale
		}
	}

	switch opts.Noise.Kind {
	case NoisePoisson:
		src := rand.NewSource(opts.Noise.Seed)
		for i, v := range pixels {
			if v <= 0 {
				pixels[i] = 0
				continue
			}
			pixels[i] = distuv.Poisson{Lambda: v, Src: src}.Rand()
		}
	case NoiseGaussian:
		gauss := distuv.Normal{
			Mu:    0,
			Sigma: opts.Noise.Sigma,
			Src:   rand.NewSource(opts.Noise.Seed),
		}
		for i := range pixels {
			pixels[i] += gauss.Rand()
		}
	}

	return &Image{
		Width:  width,
		Height: height,
		Pixels: pixels,
		Meta:   meta,
	}
}
