package mag

import "math"

// Sample represents a single compensated magnetometer measurement.
type Sample struct {
	X           float64 `json:"x"`      // µT
	Y           float64 `json:"y"`      // µT
	Z           float64 `json:"z"`      // µT
	Temperature float64 `json:"temp_c"` // °C
}

// Norm returns the magnitude of the magnetic field vector in µT.
func (s Sample) Norm() float64 {
	return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
}

// Batch is an ordered sequence of samples collected in one measurement run.
// Its length is fixed once collected; samples have no identity beyond position.
type Batch []Sample

// Vector holds one float64 per magnetometer axis. It is used both for
// per-axis means (µT) and for noise levels (nT RMS).
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// SampleSource is anything that can produce samples over time: a real
// BMM350 behind a bus, a mock source, a replay source from file, etc.
type SampleSource interface {
	Next() (Sample, error)
}
