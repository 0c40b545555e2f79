package app

import (
	"math"
	"math/rand"
	"time"

	"github.com/relabs-tech/mag_survey/internal/mag"
)

// Ambient field the mock drifts around, roughly central Europe, in µT.
const (
	mockBaseX = 20.0
	mockBaseY = 1.5
	mockBaseZ = -44.0
	mockTemp  = 24.0
)

type mockSource struct {
	start time.Time
	rng   *rand.Rand
}

// NewMockSource creates a magnetometer source that generates a slowly
// drifting field with superimposed pseudo-noise, for development
// without hardware.
func NewMockSource(seed int64) mag.SampleSource {
	return &mockSource{
		start: time.Now(),
		rng:   rand.New(rand.NewSource(seed)),
	}
}

func (m *mockSource) Next() (mag.Sample, error) {
	elapsed := time.Since(m.start).Seconds()

	// ~50 nT RMS of noise per axis on top of a slow drift.
	noise := func() float64 { return m.rng.NormFloat64() * 0.05 }

	return mag.Sample{
		X:           mockBaseX + 0.2*math.Sin(elapsed*0.1) + noise(),
		Y:           mockBaseY + 0.2*math.Cos(elapsed*0.07) + noise(),
		Z:           mockBaseZ + 0.1*math.Sin(elapsed*0.05) + noise(),
		Temperature: mockTemp + 0.5*math.Sin(elapsed*0.01),
	}, nil
}
