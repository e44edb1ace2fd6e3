// Package experiment provides loading and validation of experiment
// description files and their translation into simulation inputs.
package experiment

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"laue/crystal"
	"laue/geometry"
	"laue/sim"
	"laue/types"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Experiment holds all parameters describing a simulation run.
type Experiment struct {
	Detector         DetectorConfig         `yaml:"detector"`
	Beam             BeamConfig             `yaml:"beam"`
	Crystal          CrystalConfig          `yaml:"crystal"`
	StructureFactors StructureFactorsConfig `yaml:"structure_factors"`
	Sampling         SamplingConfig         `yaml:"sampling"`
	Run              RunConfig              `yaml:"run"`
	Noise            NoiseConfig            `yaml:"noise"`
}

// DetectorConfig holds the detector geometry. Distances are in meters.
type DetectorConfig struct {
	DistanceM  float64 `yaml:"distance_m"`
	PixelSizeM float64 `yaml:"pixel_size_m"`
	PixelsFast int     `yaml:"pixels_fast"`
	PixelsSlow int     `yaml:"pixels_slow"`

	// Direct beam position in pixels. Zero values select the face center.
	BeamCenterFast float64 `yaml:"beam_center_fast"`
	BeamCenterSlow float64 `yaml:"beam_center_slow"`

	// Face basis vectors. Zero vectors select the conventional beam-normal
	// orientation (fast along +x, slow along +y).
	FastAxis [3]float64 `yaml:"fast_axis"`
	SlowAxis [3]float64 `yaml:"slow_axis"`
}

// BeamConfig holds the incident beam model.
type BeamConfig struct {
	Direction        [3]float64     `yaml:"direction"`
	Polarization     float64        `yaml:"polarization"`
	PolarizationAxis [3]float64     `yaml:"polarization_axis"`
	DivergenceRad    float64        `yaml:"divergence_rad"`
	Spectrum         []SpectrumLine `yaml:"spectrum"`
}

// SpectrumLine is one wavelength component of the beam spectrum.
type SpectrumLine struct {
	WavelengthA float64 `yaml:"wavelength_a"`
	Weight      float64 `yaml:"weight"`
}

// CrystalConfig holds the crystal orientation and mosaic model.
type CrystalConfig struct {
	// Rows of the reciprocal space matrix A (q = A h).
	ReciprocalMatrix [3][3]float64 `yaml:"reciprocal_matrix"`

	MosaicDomains int     `yaml:"mosaic_domains"`
	MosaicityRad  float64 `yaml:"mosaicity_rad"`
	SeededMosaic  bool    `yaml:"seeded_mosaic"`
	MosaicSeed    int64   `yaml:"mosaic_seed"`
}

// StructureFactorsConfig holds the tabulated reflection amplitudes.
type StructureFactorsConfig struct {
	// Amplitude for reflections absent from the table, as [re, im].
	DefaultAmplitude [2]float64 `yaml:"default_amplitude"`

	// Clamp out-of-bounds indices into the table's bounding box.
	ClampToBounds bool `yaml:"clamp_to_bounds"`

	Entries []ReflectionEntry `yaml:"entries"`
}

// ReflectionEntry is one tabulated structure factor.
type ReflectionEntry struct {
	HKL       [3]int     `yaml:"hkl"`
	Amplitude [2]float64 `yaml:"amplitude"`
}

// SamplingConfig holds the integration sampling parameters.
type SamplingConfig struct {
	Oversample int `yaml:"oversample"`

	// "clamp" keeps going past near-singular terms; "strict" aborts.
	Policy string `yaml:"policy"`
}

// RunConfig holds execution parameters.
type RunConfig struct {
	Scale float64 `yaml:"scale"`

	// "double" or "single".
	Precision string `yaml:"precision"`

	// "auto", "reference" or "opencl".
	Backend string `yaml:"backend"`

	Workers int `yaml:"workers"`
}

// NoiseConfig holds the post-accumulation noise model.
type NoiseConfig struct {
	// "none", "poisson" or "gaussian".
	Kind string `yaml:"kind"`

	Seed  uint64  `yaml:"seed"`
	Sigma float64 `yaml:"sigma"`
}

// Load reads an experiment from a YAML file, merging it over the embedded
// defaults. With an empty path only the defaults are used.
func Load(path string) (*Experiment, error) {
	exp := &Experiment{}
	if err := yaml.Unmarshal(defaultsYAML, exp); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading experiment file: %w", err)
		}
		if err := yaml.Unmarshal(data, exp); err != nil {
			return nil, fmt.Errorf("parsing experiment file: %w", err)
		}
	}

	return exp, nil
}

// Parse parses an experiment from a YAML document merged over the embedded
// defaults.
func Parse(data []byte) (*Experiment, error) {
	exp := &Experiment{}
	if err := yaml.Unmarshal(defaultsYAML, exp); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if err := yaml.Unmarshal(data, exp); err != nil {
		return nil, fmt.Errorf("parsing experiment: %w", err)
	}
	return exp, nil
}

// Build translates the experiment into simulation inputs and options. All
// geometry and model validation happens here, before any backend is
// touched.
func (e *Experiment) Build() (sim.Inputs, sim.Options, error) {
	var inputs sim.Inputs
	var opts sim.Options

	det, err := e.buildDetector()
	if err != nil {
		return inputs, opts, err
	}

	beam, err := e.buildBeam()
	if err != nil {
		return inputs, opts, err
	}

	orientation, err := crystal.NewOrientation(types.Rows(
		vec3(e.Crystal.ReciprocalMatrix[0]),
		vec3(e.Crystal.ReciprocalMatrix[1]),
		vec3(e.Crystal.ReciprocalMatrix[2]),
	))
	if err != nil {
		return inputs, opts, err
	}

	table, err := e.buildTable()
	if err != nil {
		return inputs, opts, err
	}

	opts, err = e.buildOptions()
	if err != nil {
		return inputs, opts, err
	}

	inputs = sim.Inputs{
		Table:       table,
		Detector:    det,
		Beam:        beam,
		Orientation: orientation,
	}
	return inputs, opts, nil
}

func (e *Experiment) buildDetector() (*geometry.Detector, error) {
	d := e.Detector

	fast := vec3(d.FastAxis)
	slow := vec3(d.SlowAxis)
	if fast.Len() == 0 && slow.Len() == 0 {
		fast = types.XYZ(1, 0, 0)
		slow = types.XYZ(0, 1, 0)
	}

	centerF := d.BeamCenterFast
	centerS := d.BeamCenterSlow
	if centerF == 0 && centerS == 0 {
		centerF = float64(d.PixelsFast) / 2
		centerS = float64(d.PixelsSlow) / 2
	}

	return geometry.NewDetector(
		d.DistanceM, d.PixelSizeM, d.PixelsFast, d.PixelsSlow,
		centerF, centerS, fast, slow,
	)
}

func (e *Experiment) buildBeam() (*geometry.Beam, error) {
	spectrum := make([]geometry.SpectrumLine, len(e.Beam.Spectrum))
	for i, line := range e.Beam.Spectrum {
		spectrum[i] = geometry.SpectrumLine{
			Wavelength: line.WavelengthA,
			Weight:     line.Weight,
		}
	}

	return geometry.NewBeam(
		vec3(e.Beam.Direction),
		spectrum,
		e.Beam.Polarization,
		vec3(e.Beam.PolarizationAxis),
		e.Beam.DivergenceRad,
	)
}

func (e *Experiment) buildTable() (*crystal.Table, error) {
	entries := make([]crystal.Entry, len(e.StructureFactors.Entries))
	for i, entry := range e.StructureFactors.Entries {
		entries[i] = crystal.Entry{
			Index: crystal.MillerIndex{
				H: entry.HKL[0],
				K: entry.HKL[1],
				L: entry.HKL[2],
			},
			Amplitude: complex(entry.Amplitude[0], entry.Amplitude[1]),
		}
	}

	return crystal.NewTable(entries, crystal.TableOptions{
		Default:       complex(e.StructureFactors.DefaultAmplitude[0], e.StructureFactors.DefaultAmplitude[1]),
		ClampToBounds: e.StructureFactors.ClampToBounds,
	})
}

func (e *Experiment) buildOptions() (sim.Options, error) {
	var opts sim.Options

	switch e.Sampling.Policy {
	case "", "clamp":
		opts.Policy = sim.PolicyClamp
	case "strict":
		opts.Policy = sim.PolicyStrict
	default:
		return opts, fmt.Errorf("%w: unknown sampling policy %q", sim.ErrInvalidOptions, e.Sampling.Policy)
	}

	switch e.Run.Precision {
	case "", "double":
		opts.Precision = sim.PrecisionDouble
	case "single":
		opts.Precision = sim.PrecisionSingle
	default:
		return opts, fmt.Errorf("%w: unknown precision %q", sim.ErrInvalidOptions, e.Run.Precision)
	}

	switch e.Noise.Kind {
	case "", "none":
		opts.Noise.Kind = sim.NoiseNone
	case "poisson":
		opts.Noise.Kind = sim.NoisePoisson
	case "gaussian":
		opts.Noise.Kind = sim.NoiseGaussian
	default:
		return opts, fmt.Errorf("%w: unknown noise kind %q", sim.ErrInvalidOptions, e.Noise.Kind)
	}
	opts.Noise.Seed = e.Noise.Seed
	opts.Noise.Sigma = e.Noise.Sigma

	opts.Oversample = e.Sampling.Oversample
	opts.MosaicDomains = e.Crystal.MosaicDomains
	opts.Mosaicity = e.Crystal.MosaicityRad
	opts.SeededMosaic = e.Crystal.SeededMosaic
	opts.MosaicSeed = e.Crystal.MosaicSeed
	opts.Scale = e.Run.Scale
	opts.Workers = e.Run.Workers

	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

func vec3(v [3]float64) types.Vec3 {
	return types.XYZ(v[0], v[1], v[2])
}
