package stats

import (
	"errors"
	"math"
	"testing"

	"github.com/relabs-tech/mag_survey/internal/mag"
)

func TestNoiseKnownDistribution(t *testing.T) {
	// Two samples per axis at {1, 3} around mean 2: variance is
	// ((1-2)^2 + (3-2)^2)/2 = 1, so the noise level is 1000 nT RMS.
	batch := mag.Batch{
		{X: 1.0, Y: 1.0, Z: 1.0},
		{X: 3.0, Y: 3.0, Z: 3.0},
	}
	mean := mag.Vector{X: 2.0, Y: 2.0, Z: 2.0}

	noise, err := Noise(batch, mean)
	if err != nil {
		t.Fatalf("Noise returned error: %v", err)
	}
	if noise.X != 1000.0 || noise.Y != 1000.0 || noise.Z != 1000.0 {
		t.Errorf("expected 1000 nT RMS on all axes, got %+v", noise)
	}
}

func TestNoisePopulationNormalization(t *testing.T) {
	// Three samples {0, 0, 3} around mean 1: population variance is
	// (1+1+4)/3 = 2, not the sample variance (1+1+4)/2 = 3.
	batch := mag.Batch{{X: 0}, {X: 0}, {X: 3}}
	mean := mag.Vector{X: 1}

	noise, err := Noise(batch, mean)
	if err != nil {
		t.Fatalf("Noise returned error: %v", err)
	}
	want := math.Sqrt(2.0) * 1000.0
	if math.Abs(noise.X-want) > 1e-9 {
		t.Errorf("noise X = %v, want %v (population variance /N)", noise.X, want)
	}
}

func TestNoiseDeterminism(t *testing.T) {
	batch := mag.Batch{
		{X: 12.31, Y: -44.02, Z: 7.77},
		{X: 12.28, Y: -44.11, Z: 7.81},
		{X: 12.35, Y: -43.97, Z: 7.69},
	}
	mean, err := Mean(batch)
	if err != nil {
		t.Fatalf("Mean returned error: %v", err)
	}

	first, err := Noise(batch, mean)
	if err != nil {
		t.Fatalf("Noise returned error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Noise(batch, mean)
		if err != nil {
			t.Fatalf("Noise returned error on repeat %d: %v", i, err)
		}
		if again != first {
			t.Fatalf("repeat %d differs: got %+v, want bit-identical %+v", i, again, first)
		}
	}
}

func TestNoiseZeroVariance(t *testing.T) {
	batch := make(mag.Batch, 100)
	for i := range batch {
		batch[i] = mag.Sample{X: 40.5, Y: -13.25, Z: 9.0}
	}
	mean := mag.Vector{X: 40.5, Y: -13.25, Z: 9.0}

	noise, err := Noise(batch, mean)
	if err != nil {
		t.Fatalf("Noise returned error: %v", err)
	}
	if noise.X != 0 || noise.Y != 0 || noise.Z != 0 {
		t.Errorf("constant batch must have zero noise, got %+v", noise)
	}
}

func TestNoiseSingleSample(t *testing.T) {
	batch := mag.Batch{{X: 1.5, Y: -2.5, Z: 3.5}}
	mean := mag.Vector{X: 1.5, Y: -2.5, Z: 3.5}

	noise, err := Noise(batch, mean)
	if err != nil {
		t.Fatalf("Noise returned error: %v", err)
	}
	if noise != (mag.Vector{}) {
		t.Errorf("single sample equal to its mean must have zero noise, got %+v", noise)
	}
}

func TestNoiseScaleInvariance(t *testing.T) {
	batch := mag.Batch{
		{X: 1.0, Y: 5.0, Z: -2.0},
		{X: 2.0, Y: 6.5, Z: -1.0},
		{X: 3.0, Y: 4.5, Z: -3.0},
		{X: 2.0, Y: 5.5, Z: -2.0},
	}
	mean, _ := Mean(batch)
	base, err := Noise(batch, mean)
	if err != nil {
		t.Fatalf("Noise returned error: %v", err)
	}

	for _, k := range []float64{2.0, -3.0, 0.5} {
		scaled := make(mag.Batch, len(batch))
		for i, s := range batch {
			scaled[i] = mag.Sample{X: s.X * k, Y: s.Y, Z: s.Z}
		}
		scaledMean := mag.Vector{X: mean.X * k, Y: mean.Y, Z: mean.Z}
		noise, err := Noise(scaled, scaledMean)
		if err != nil {
			t.Fatalf("Noise returned error for k=%v: %v", k, err)
		}
		want := base.X * math.Abs(k)
		if math.Abs(noise.X-want) > 1e-9*math.Abs(want) {
			t.Errorf("k=%v: noise X = %v, want %v", k, noise.X, want)
		}
	}
}

func TestNoiseAxisIndependence(t *testing.T) {
	batch := mag.Batch{
		{X: 1.0, Y: 5.0, Z: -2.0},
		{X: 2.0, Y: 6.5, Z: -1.0},
		{X: 3.0, Y: 4.5, Z: -3.0},
	}
	mean, _ := Mean(batch)
	base, err := Noise(batch, mean)
	if err != nil {
		t.Fatalf("Noise returned error: %v", err)
	}

	// Corrupt the X axis only. Y and Z noise must not move.
	corrupted := make(mag.Batch, len(batch))
	copy(corrupted, batch)
	corrupted[1].X = 9999.0
	noise, err := Noise(corrupted, mean)
	if err != nil {
		t.Fatalf("Noise returned error: %v", err)
	}
	if noise.Y != base.Y || noise.Z != base.Z {
		t.Errorf("corrupting X changed other axes: got Y=%v Z=%v, want Y=%v Z=%v",
			noise.Y, noise.Z, base.Y, base.Z)
	}
}

func TestNoiseNonFinitePropagates(t *testing.T) {
	batch := mag.Batch{{X: math.NaN(), Y: 1.0}, {X: 2.0, Y: 1.0}}
	mean := mag.Vector{X: 1.0, Y: 1.0}

	noise, err := Noise(batch, mean)
	if err != nil {
		t.Fatalf("Noise returned error: %v", err)
	}
	if !math.IsNaN(noise.X) {
		t.Errorf("NaN input must propagate to X, got %v", noise.X)
	}
	if noise.Y != 0 {
		t.Errorf("Y axis must be unaffected, got %v", noise.Y)
	}
}

func TestEmptyBatch(t *testing.T) {
	if _, err := Noise(mag.Batch{}, mag.Vector{}); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("Noise(empty) error = %v, want ErrEmptyBatch", err)
	}
	if _, err := Mean(nil); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("Mean(nil) error = %v, want ErrEmptyBatch", err)
	}
}

func TestMean(t *testing.T) {
	batch := mag.Batch{
		{X: 1.0, Y: -2.0, Z: 10.0},
		{X: 3.0, Y: -4.0, Z: 20.0},
	}
	mean, err := Mean(batch)
	if err != nil {
		t.Fatalf("Mean returned error: %v", err)
	}
	want := mag.Vector{X: 2.0, Y: -3.0, Z: 15.0}
	if mean != want {
		t.Errorf("Mean = %+v, want %+v", mean, want)
	}
}

func TestAccumulator(t *testing.T) {
	var a Accumulator
	for _, v := range []float64{1.0, 3.0} {
		a.Add(v)
	}
	if a.Mean() != 2.0 {
		t.Errorf("Mean = %v, want 2", a.Mean())
	}
	if a.Variance() != 1.0 {
		t.Errorf("Variance = %v, want 1", a.Variance())
	}
	if a.StdDev() != 1.0 {
		t.Errorf("StdDev = %v, want 1", a.StdDev())
	}

	a.Reset()
	if a.Count != 0 || a.Mean() != 0 || a.Variance() != 0 {
		t.Errorf("Reset did not clear accumulator: %+v", a)
	}
}
