package sim

import (
	"math"
	"testing"
)

func TestAssembleAppliesScale(t *testing.T) {
	pixels := []float64{1, 2, 3, 4}
	img := assemble(pixels, 2, 2, Options{Scale: 10}, Meta{})

	for i, want := range []float64{10, 20, 30, 40} {
		if img.Pixels[i] != want {
			t.Fatalf("pixel %d = %g; want %g", i, img.Pixels[i], want)
		}
	}
}

func TestAssemblePoissonReproducible(t *testing.T) {
	opts := Options{
		Scale: 1,
		Noise: NoiseOptions{Kind: NoisePoisson, Seed: 42},
	}

	mean := make([]float64, 64)
	for i := range mean {
		mean[i] = 100
	}

	a := assemble(append([]float64(nil), mean...), 8, 8, opts, Meta{})
	b := assemble(append([]float64(nil), mean...), 8, 8, opts, Meta{})

	for i := range a.Pixels {
		if a.Pixels[i] != b.Pixels[i] {
			t.Fatalf("pixel %d differs across identically seeded runs: %g vs %g", i, a.Pixels[i], b.Pixels[i])
		}
	}

	// Counts are non-negative integers.
	var perturbed bool
	for i, v := range a.Pixels {
		if v < 0 || v != math.Trunc(v) {
			t.Fatalf("pixel %d = %g is not a count", i, v)
		}
		if v != mean[i] {
			perturbed = true
		}
	}
	if !perturbed {
		t.Fatal("poisson noise left every pixel at its mean")
	}
}

func TestAssemblePoissonZeroIntensity(t *testing.T) {
	opts := Options{
		Scale: 1,
		Noise: NoiseOptions{Kind: NoisePoisson, Seed: 1},
	}
	img := assemble([]float64{0, -1e-12, 0, 0}, 2, 2, opts, Meta{})

	for i, v := range img.Pixels {
		if v != 0 {
			t.Fatalf("pixel %d = %g; zero mean must stay zero", i, v)
		}
	}
}

func TestAssembleGaussianReproducible(t *testing.T) {
	opts := Options{
		Scale: 1,
		Noise: NoiseOptions{Kind: NoiseGaussian, Seed: 7, Sigma: 3},
	}

	base := []float64{10, 10, 10, 10}

	a := assemble(append([]float64(nil), base...), 2, 2, opts, Meta{})
	b := assemble(append([]float64(nil), base...), 2, 2, opts, Meta{})

	var perturbed bool
	for i := range a.Pixels {
		if a.Pixels[i] != b.Pixels[i] {
			t.Fatalf("pixel %d differs across identically seeded runs", i)
		}
		if a.Pixels[i] != base[i] {
			perturbed = true
		}
	}
	if !perturbed {
		t.Fatal("gaussian noise left every pixel untouched")
	}
}

func TestAssembleSeedIndependence(t *testing.T) {
	base := []float64{100, 100, 100, 100}

	a := assemble(append([]float64(nil), base...), 2, 2,
		Options{Scale: 1, Noise: NoiseOptions{Kind: NoisePoisson, Seed: 1}}, Meta{})
	b := assemble(append([]float64(nil), base...), 2, 2,
		Options{Scale: 1, Noise: NoiseOptions{Kind: NoisePoisson, Seed: 2}}, Meta{})

	var differ bool
	for i := range a.Pixels {
		if a.Pixels[i] != b.Pixels[i] {
			differ = true
			break
		}
	}
	if !differ {
		t.Fatal("different seeds produced identical noise")
	}
}

func TestAssembleNoNoisePassThrough(t *testing.T) {
	pixels := []float64{1.5, 2.5}
	img := assemble(pixels, 2, 1, Options{Scale: 1}, Meta{})

	if img.Pixels[0] != 1.5 || img.Pixels[1] != 2.5 {
		t.Fatalf("pass through altered pixels: %v", img.Pixels)
	}
	if img.Width != 2 || img.Height != 1 {
		t.Fatalf("image is %dx%d; want 2x1", img.Width, img.Height)
	}
}
