package stats

import "math"

// Accumulator collects running statistics for a single scalar series
// without keeping the samples around. Used by the continuous producer
// for field-magnitude monitoring.
type Accumulator struct {
	Count float64
	Sum   float64
	Sumsq float64
}

// Add folds one observation into the accumulator.
func (a *Accumulator) Add(v float64) {
	a.Count++
	a.Sum += v
	a.Sumsq += v * v
}

// Mean returns the running mean, or 0 for an empty accumulator.
func (a *Accumulator) Mean() float64 {
	if a.Count == 0 {
		return 0
	}
	return a.Sum / a.Count
}

// Variance returns the running population variance, clamped at 0 to
// absorb floating-point cancellation.
func (a *Accumulator) Variance() float64 {
	if a.Count == 0 {
		return 0
	}
	mean := a.Mean()
	v := a.Sumsq/a.Count - mean*mean
	if v < 0 {
		v = 0
	}
	return v
}

// StdDev returns the running population standard deviation.
func (a *Accumulator) StdDev() float64 {
	return math.Sqrt(a.Variance())
}

// Reset clears the accumulator for reuse.
func (a *Accumulator) Reset() {
	*a = Accumulator{}
}
