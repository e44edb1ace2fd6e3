package sim

import (
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// The reference backend integrates pixels on the host CPU in double
// precision. It is the semantic baseline every other backend is compared
// against.
type referenceBackend struct {
	req        *Request
	integrator *Integrator
	workers    int
	stats      *Stats
}

// Create a reference backend. With workers <= 0 one worker per CPU is used.
func NewReferenceBackend(workers int) Backend {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &referenceBackend{
		workers: workers,
		stats:   &Stats{},
	}
}

// Get backend id.
func (rb *referenceBackend) Id() string {
	return "reference (cpu)"
}

// Get the computation speed estimate.
func (rb *referenceBackend) Speed() uint32 {
	return uint32(rb.workers)
}

// Prepare for a run.
func (rb *referenceBackend) Init(req *Request) error {
	integrator, err := NewIntegrator(req)
	if err != nil {
		return err
	}

	rb.req = req
	rb.integrator = integrator
	return nil
}

// Integrate all pixels in the block. Rows are fanned out across the worker
// pool; every pixel accumulator is local to its worker and each pixel is
// written exactly once, so the result is independent of the worker count.
func (rb *referenceBackend) TraceBlock(blockReq BlockRequest) error {
	if rb.req == nil {
		return fmt.Errorf("reference backend: %w", ErrMissingInput)
	}

	start := time.Now()
	width := rb.req.Detector.PixelsFast

	var g errgroup.Group
	g.SetLimit(rb.workers)

	for y := int(blockReq.BlockY); y < int(blockReq.BlockY+blockReq.BlockH); y++ {
		row := y
		g.Go(func() error {
			base := row * width
			for x := 0; x < width; x++ {
				v, err := rb.integrator.Pixel(x, row)
				if err != nil {
					return err
				}
				rb.req.Pixels[base+x] = v
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	rb.stats.BlockH = blockReq.BlockH
	rb.stats.RenderTime = time.Since(start)
	return nil
}

// Retrieve last block statistics.
func (rb *referenceBackend) Stats() *Stats {
	return rb.stats
}

// Shutdown backend.
func (rb *referenceBackend) Close() {
	rb.req = nil
	rb.integrator = nil
}
