package sim

import "time"

// Per-backend statistics for a completed run.
type BackendStat struct {
	// The backend id.
	Id string

	// The block height and the share of the detector surface it covered.
	BlockH       uint32
	FramePercent float32

	// Integration time for the assigned block.
	RenderTime time.Duration
}

// Metadata describing how an image was produced.
type Meta struct {
	// Ids of the backends that produced the image.
	Backends []string

	// Configured accelerator precision.
	Precision Precision

	// Unavailability conditions for backends that were requested but could
	// not run; the run then proceeded on the remaining (or the reference)
	// backend. Empty for a clean run.
	Degraded []string

	// Number of accumulated samples per pixel.
	SamplesPerPixel int

	// Individual backend stats.
	BackendStats []BackendStat

	// Total compute time for the run, excluding assembly.
	Elapsed time.Duration
}

// A simulated diffraction image. The pixel buffer is owned exclusively by
// the caller once the run returns.
type Image struct {
	Width  int
	Height int

	// Row-major (slow, fast) intensities.
	Pixels []float64

	Meta Meta
}

// At returns the intensity at pixel (fast, slow).
func (img *Image) At(fast, slow int) float64 {
	return img.Pixels[slow*img.Width+fast]
}
