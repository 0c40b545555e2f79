// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package stats computes per-axis summary statistics for magnetometer
// sample batches: arithmetic means and scaled RMS noise levels.
package stats

import (
	"errors"
	"math"

	"github.com/relabs-tech/mag_survey/internal/mag"
)

// NoiseScale converts the RMS deviation from the sample unit (µT) to the
// reported unit (nT).
const NoiseScale = 1000.0

// ErrEmptyBatch is returned when a computation is asked to run over zero
// samples.
var ErrEmptyBatch = errors.New("stats: empty sample batch")

// Mean returns the arithmetic per-axis mean of batch in µT.
func Mean(batch mag.Batch) (mag.Vector, error) {
	if len(batch) == 0 {
		return mag.Vector{}, ErrEmptyBatch
	}
	var sum mag.Vector
	for _, s := range batch {
		sum.X += s.X
		sum.Y += s.Y
		sum.Z += s.Z
	}
	n := float64(len(batch))
	return mag.Vector{X: sum.X / n, Y: sum.Y / n, Z: sum.Z / n}, nil
}

// Noise returns the per-axis noise level of batch in nT RMS.
//
// mean must be the arithmetic mean of batch over the same axes. It is a
// precondition, not verified here: an inconsistent mean yields a silently
// wrong result. Per axis the computation is the population variance
// (squared deviations summed in index order, divided by N, not N-1),
// then sqrt and the µT→nT scale. NaN and Inf inputs propagate.
func Noise(batch mag.Batch, mean mag.Vector) (mag.Vector, error) {
	if len(batch) == 0 {
		return mag.Vector{}, ErrEmptyBatch
	}
	var varX, varY, varZ float64
	for _, s := range batch {
		dx := s.X - mean.X
		dy := s.Y - mean.Y
		dz := s.Z - mean.Z
		varX += dx * dx
		varY += dy * dy
		varZ += dz * dz
	}
	n := float64(len(batch))
	varX /= n
	varY /= n
	varZ /= n
	return mag.Vector{
		X: math.Sqrt(varX) * NoiseScale,
		Y: math.Sqrt(varY) * NoiseScale,
		Z: math.Sqrt(varZ) * NoiseScale,
	}, nil
}
