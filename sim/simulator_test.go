package sim

import (
	"errors"
	"math"
	"testing"

	"laue/crystal"
	"laue/geometry"
	"laue/types"
)

func flatInputs(t *testing.T) Inputs {
	t.Helper()
	req := flatRequest(t, Options{})
	return Inputs{
		Table:       req.Table,
		Detector:    req.Detector,
		Beam:        req.Beam,
		Orientation: req.Orientation,
	}
}

func TestSimulatorUniformImage(t *testing.T) {
	// A flat amplitude table on a square detector produces an image where
	// every pixel equals the closed-form geometric factor; the beam-center
	// pixels carry the largest intensity.
	inputs := flatInputs(t)

	s, err := New(inputs, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	img, err := s.Run()
	if err != nil {
		t.Fatal(err)
	}

	if img.Width != 10 || img.Height != 10 {
		t.Fatalf("image is %dx%d; want 10x10", img.Width, img.Height)
	}
	if len(img.Pixels) != 100 {
		t.Fatalf("expected exactly one intensity per pixel; got %d values", len(img.Pixels))
	}

	for slow := 0; slow < img.Height; slow++ {
		for fast := 0; fast < img.Width; fast++ {
			pos := inputs.Detector.PixelToLab(fast, slow, 0, 0)
			airpath := pos.Len()
			cos2theta := pos.Normalize().Dot(inputs.Beam.Direction)
			want := inputs.Detector.SolidAngle(airpath) * 0.5 * (1 + cos2theta*cos2theta)

			if math.Abs(img.At(fast, slow)-want) > 1e-18 {
				t.Fatalf("pixel (%d,%d) = %.17g; want %.17g", fast, slow, img.At(fast, slow), want)
			}
		}
	}

	if img.Meta.SamplesPerPixel != 1 {
		t.Fatalf("samples per pixel = %d; want 1", img.Meta.SamplesPerPixel)
	}
	if len(img.Meta.Degraded) != 0 {
		t.Fatalf("clean run reported degraded conditions: %v", img.Meta.Degraded)
	}
}

func TestSimulatorSampleCountMetadata(t *testing.T) {
	inputs := flatInputs(t)

	spectrum := []geometry.SpectrumLine{
		{Wavelength: 1.0, Weight: 1},
		{Wavelength: 1.05, Weight: 2},
	}
	beam, err := geometry.NewBeam(types.XYZ(0, 0, 1), spectrum, 0, types.Vec3{}, 0)
	if err != nil {
		t.Fatal(err)
	}
	inputs.Beam = beam

	s, err := New(inputs, Options{Oversample: 2, MosaicDomains: 3, Mosaicity: 0.001})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	img, err := s.Run()
	if err != nil {
		t.Fatal(err)
	}

	// Total samples = subpixels * domains * wavelengths per pixel.
	if img.Meta.SamplesPerPixel != 2*2*3*2 {
		t.Fatalf("samples per pixel = %d; want 24", img.Meta.SamplesPerPixel)
	}
}

func TestSimulatorBackendFallback(t *testing.T) {
	inputs := flatInputs(t)

	failing := func() (Backend, error) {
		return nil, ErrBackendUnavailable
	}

	s, err := New(inputs, Options{}, failing)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	img, err := s.Run()
	if err != nil {
		t.Fatal(err)
	}

	// The run degrades to the reference backend and says so.
	if len(img.Meta.Degraded) != 1 {
		t.Fatalf("expected one degraded condition; got %v", img.Meta.Degraded)
	}
	if len(img.Meta.Backends) != 1 || img.Meta.Backends[0] != "reference (cpu)" {
		t.Fatalf("expected reference fallback; got %v", img.Meta.Backends)
	}
}

func TestSimulatorInitUnavailableFallsBack(t *testing.T) {
	inputs := flatInputs(t)

	// The factory succeeds but the backend rejects the request at Init
	// time, the way an accelerator refuses a feature it cannot serve.
	bad := makeMockBackend("mock-cl", 1)
	bad.initErr = ErrBackendUnavailable

	s, err := New(inputs, Options{}, func() (Backend, error) { return bad, nil })
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	img, err := s.Run()
	if err != nil {
		t.Fatal(err)
	}

	if len(img.Meta.Degraded) != 1 {
		t.Fatalf("expected one degraded condition; got %v", img.Meta.Degraded)
	}
	if len(img.Meta.Backends) != 1 || img.Meta.Backends[0] != "reference (cpu)" {
		t.Fatalf("expected reference fallback; got %v", img.Meta.Backends)
	}
	// The fallback produced a real image, not the dropped backend's zeros.
	if img.At(0, 0) == 0 {
		t.Fatal("fallback image was not integrated")
	}
}

func TestSimulatorInitUnavailableDropsOnlyThatBackend(t *testing.T) {
	inputs := flatInputs(t)

	bad := makeMockBackend("mock-bad", 1)
	bad.initErr = ErrBackendUnavailable
	good := makeMockBackend("mock-good", 1)

	s, err := New(inputs, Options{},
		func() (Backend, error) { return bad, nil },
		func() (Backend, error) { return good, nil },
	)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	img, err := s.Run()
	if err != nil {
		t.Fatal(err)
	}

	if len(img.Meta.Backends) != 1 || img.Meta.Backends[0] != "mock-good" {
		t.Fatalf("expected the surviving backend only; got %v", img.Meta.Backends)
	}
	if len(img.Meta.Degraded) != 1 {
		t.Fatalf("expected one degraded condition; got %v", img.Meta.Degraded)
	}
	if len(good.blocks) != 1 || good.blocks[0].BlockH != 10 {
		t.Fatalf("surviving backend should cover the whole frame; got %v", good.blocks)
	}
	if len(bad.blocks) != 0 {
		t.Fatalf("dropped backend still received work: %v", bad.blocks)
	}
}

func TestSimulatorInitErrorStillFatal(t *testing.T) {
	inputs := flatInputs(t)

	bad := makeMockBackend("mock-broken", 1)
	bad.initErr = errors.New("corrupt device state")

	s, err := New(inputs, Options{}, func() (Backend, error) { return bad, nil })
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	img, err := s.Run()
	if err == nil {
		t.Fatal("expected a non-availability init error to fail the run")
	}
	if img != nil {
		t.Fatal("failed run must not return a partial image")
	}
}

func TestSimulatorAtomicFailure(t *testing.T) {
	inputs := flatInputs(t)

	bad := makeMockBackend("mock-fail", 1)
	bad.workErr = errors.New("device lost")
	factory := func() (Backend, error) { return bad, nil }

	s, err := New(inputs, Options{}, factory)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	img, err := s.Run()
	if err == nil {
		t.Fatal("expected run to fail")
	}
	if img != nil {
		t.Fatal("failed run must not return a partial image")
	}
}

func TestSimulatorMultipleBackends(t *testing.T) {
	inputs := flatInputs(t)

	b1 := makeMockBackend("mock-1", 1)
	b2 := makeMockBackend("mock-2", 1)

	s, err := New(inputs, Options{},
		func() (Backend, error) { return b1, nil },
		func() (Backend, error) { return b2, nil },
	)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	img, err := s.Run()
	if err != nil {
		t.Fatal(err)
	}

	// The blocks tile the detector: each backend received one contiguous
	// band and together they cover all rows exactly once.
	if len(b1.blocks) != 1 || len(b2.blocks) != 1 {
		t.Fatalf("expected one block per backend; got %d and %d", len(b1.blocks), len(b2.blocks))
	}
	if total := b1.blocks[0].BlockH + b2.blocks[0].BlockH; total != 10 {
		t.Fatalf("blocks cover %d rows; want 10", total)
	}
	for _, v := range img.Pixels {
		if v != 1 {
			t.Fatal("mock backends should have filled every pixel")
		}
	}
	if len(img.Meta.BackendStats) != 2 {
		t.Fatalf("expected stats for both backends; got %d", len(img.Meta.BackendStats))
	}
}

func TestSimulatorInvalidInputs(t *testing.T) {
	if _, err := New(Inputs{}, Options{}); !errors.Is(err, ErrMissingInput) {
		t.Fatalf("expected ErrMissingInput; got %v", err)
	}

	inputs := flatInputs(t)
	if _, err := New(inputs, Options{Mosaicity: -1}); !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("expected ErrInvalidOptions; got %v", err)
	}
}

func TestSimulatorDegenerateGeometryRejectedBeforeCompute(t *testing.T) {
	// A zero detector distance never reaches the simulator: geometry
	// construction rejects it up front.
	_, err := geometry.NewBeamNormalDetector(0, 100e-6, 10, 10)
	if !errors.Is(err, geometry.ErrInvalidGeometry) {
		t.Fatalf("expected ErrInvalidGeometry; got %v", err)
	}

	// Likewise a singular orientation.
	_, err = crystal.NewOrientation(types.Mat3{})
	if !errors.Is(err, crystal.ErrInvalidGeometry) {
		t.Fatalf("expected ErrInvalidGeometry; got %v", err)
	}
}
