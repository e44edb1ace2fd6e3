package sim

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"laue/crystal"
	"laue/geometry"
	"laue/log"
)

// A BackendFactory builds a backend on demand. Factories let accelerator
// discovery failures surface at simulator construction time, where the run
// can degrade to the reference backend with an explicit report, instead of
// silently mid run.
type BackendFactory func() (Backend, error)

// Inputs for a simulation run.
type Inputs struct {
	Table       *crystal.Table
	Detector    *geometry.Detector
	Beam        *geometry.Beam
	Orientation crystal.Orientation
}

// Simulator drives one or more execution backends over the detector surface
// and assembles their per-pixel intensities into the final image.
type Simulator struct {
	logger    log.Logger
	backends  []Backend
	scheduler BlockScheduler
	inputs    Inputs
	opts      Options

	// Unavailability conditions collected while attaching backends.
	degraded []string
}

// Create a simulator. Each factory is attempted in order; a factory that
// fails is reported as a degraded condition and skipped. When no factory
// succeeds (or none is supplied) the reference backend is attached so that
// a run never silently changes semantics: the degradation is always
// recorded in the image metadata and logged.
func New(inputs Inputs, opts Options, factories ...BackendFactory) (*Simulator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if inputs.Table == nil || inputs.Detector == nil || inputs.Beam == nil {
		return nil, ErrMissingInput
	}

	s := &Simulator{
		logger:    log.New("simulator"),
		scheduler: NaiveScheduler(),
		inputs:    inputs,
		opts:      opts,
	}

	for _, factory := range factories {
		backend, err := factory()
		if err != nil {
			s.logger.Warningf("backend unavailable: %v", err)
			s.degraded = append(s.degraded, err.Error())
			continue
		}
		s.backends = append(s.backends, backend)
	}

	if len(s.backends) == 0 {
		if len(factories) > 0 {
			s.logger.Warning("falling back to the reference backend")
		}
		s.backends = append(s.backends, NewReferenceBackend(opts.Workers))
	}

	return s, nil
}

// Override the block scheduler. The naive speed-estimate scheduler is used
// by default.
func (s *Simulator) SetScheduler(scheduler BlockScheduler) {
	s.scheduler = scheduler
}

// Run executes the simulation and returns the assembled image. A run either
// completes or fails atomically; no partial image is ever returned.
func (s *Simulator) Run() (*Image, error) {
	if len(s.backends) == 0 {
		return nil, ErrNoBackends
	}

	det := s.inputs.Detector
	req := &Request{
		Table:       s.inputs.Table,
		Detector:    det,
		Beam:        s.inputs.Beam,
		Orientation: s.inputs.Orientation,
		Opts:        s.opts,
		Pixels:      make([]float64, det.PixelCount()),
	}

	// A backend that reports itself unavailable at Init time (device lost,
	// requested features it cannot serve) drops out of this run; the run
	// degrades rather than fails. Any other Init error is fatal.
	degraded := append([]string(nil), s.degraded...)
	backends := make([]Backend, 0, len(s.backends))
	for _, b := range s.backends {
		err := b.Init(req)
		switch {
		case err == nil:
			backends = append(backends, b)
		case errors.Is(err, ErrBackendUnavailable):
			s.logger.Warningf("backend %s unavailable: %v", b.Id(), err)
			degraded = append(degraded, err.Error())
		default:
			return nil, fmt.Errorf("backend %s: init failed: %v", b.Id(), err)
		}
	}

	if len(backends) == 0 {
		s.logger.Warning("falling back to the reference backend")
		ref := NewReferenceBackend(s.opts.Workers)
		if err := ref.Init(req); err != nil {
			return nil, fmt.Errorf("backend %s: init failed: %v", ref.Id(), err)
		}
		s.backends = append(s.backends, ref)
		backends = append(backends, ref)
	}

	rows := uint32(det.PixelsSlow)
	assignment := s.scheduler.Schedule(backends, rows)

	start := time.Now()
	var g errgroup.Group
	var blockY uint32
	for idx, b := range backends {
		backend := b
		blockReq := BlockRequest{BlockY: blockY, BlockH: assignment[idx]}
		blockY += assignment[idx]

		s.logger.Debugf("dispatching rows [%d, %d) to %s", blockReq.BlockY, blockReq.BlockY+blockReq.BlockH, backend.Id())
		g.Go(func() error {
			return backend.TraceBlock(blockReq)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	meta := Meta{
		Precision: s.opts.Precision,
		Degraded:  degraded,
		Elapsed:   elapsed,
	}
	samples := s.opts.Oversample * s.opts.Oversample * s.opts.MosaicDomains * len(s.inputs.Beam.Spectrum)
	meta.SamplesPerPixel = samples

	for idx, b := range backends {
		stats := b.Stats()
		meta.Backends = append(meta.Backends, b.Id())
		meta.BackendStats = append(meta.BackendStats, BackendStat{
			Id:           b.Id(),
			BlockH:       stats.BlockH,
			FramePercent: 100 * float32(assignment[idx]) / float32(rows),
			RenderTime:   stats.RenderTime,
		})
	}

	return assemble(req.Pixels, det.PixelsFast, det.PixelsSlow, s.opts, meta), nil
}

// Shutdown the simulator and all attached backends.
func (s *Simulator) Close() {
	for _, b := range s.backends {
		b.Close()
	}
	s.backends = nil
}
