// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package explore

import (
	"fmt"
	"math"
)

// FitnessSumTolerance is how far the three outcome rates may drift from 1.
const FitnessSumTolerance = 1e-6

// FitnessVector holds the simulated outcome rates of one scorecard.
type FitnessVector struct {
	SuccessRate   float64 `json:"success_rate"`
	FailRate      float64 `json:"fail_rate"`
	DidNotTryRate float64 `json:"did_not_try_rate"`
}

// Sum returns the sum of the three rates.
func (f FitnessVector) Sum() float64 {
	return f.SuccessRate + f.FailRate + f.DidNotTryRate
}

// Metric returns the rate named by m.
func (f FitnessVector) Metric(m Metric) float64 {
	switch m {
	case MetricSuccessRate:
		return f.SuccessRate
	case MetricFailRate:
		return f.FailRate
	case MetricDidNotTryRate:
		return f.DidNotTryRate
	}
	return math.NaN()
}

// Validate checks that every rate is in [0, 1] and they sum to 1.
func (f FitnessVector) Validate() error {
	for _, v := range []float64{f.SuccessRate, f.FailRate, f.DidNotTryRate} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
			return fmt.Errorf("%w: rate %v outside [0, 1]", ErrInvalidFitness, v)
		}
	}
	if math.Abs(f.Sum()-1) > FitnessSumTolerance {
		return fmt.Errorf("%w: rates sum to %v", ErrInvalidFitness, f.Sum())
	}
	return nil
}

// Normalize rescales non-negative rates so they sum to 1.
func (f FitnessVector) Normalize() (FitnessVector, error) {
	for _, v := range []float64{f.SuccessRate, f.FailRate, f.DidNotTryRate} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return FitnessVector{}, fmt.Errorf("%w: rate %v is not a non-negative number", ErrInvalidFitness, v)
		}
	}
	sum := f.Sum()
	if sum <= 0 {
		return FitnessVector{}, fmt.Errorf("%w: rates sum to zero", ErrInvalidFitness)
	}
	return FitnessVector{
		SuccessRate:   f.SuccessRate / sum,
		FailRate:      f.FailRate / sum,
		DidNotTryRate: f.DidNotTryRate / sum,
	}, nil
}

// AggregateFitness averages repeated simulation runs into one normalized vector.
//
// Inputs:
//   - runs: One vector per simulation repetition. Must not be empty.
//
// Outputs:
//   - FitnessVector: Mean of the runs, renormalized to sum to 1.
//   - error: ErrInvalidFitness if there are no runs or any run is invalid.
func AggregateFitness(runs []FitnessVector) (FitnessVector, error) {
	if len(runs) == 0 {
		return FitnessVector{}, fmt.Errorf("%w: no simulation runs", ErrInvalidFitness)
	}

	var sum FitnessVector
	for i, r := range runs {
		n, err := r.Normalize()
		if err != nil {
			return FitnessVector{}, fmt.Errorf("run %d: %w", i, err)
		}
		sum.SuccessRate += n.SuccessRate
		sum.FailRate += n.FailRate
		sum.DidNotTryRate += n.DidNotTryRate
	}

	count := float64(len(runs))
	mean := FitnessVector{
		SuccessRate:   sum.SuccessRate / count,
		FailRate:      sum.FailRate / count,
		DidNotTryRate: sum.DidNotTryRate / count,
	}
	return mean.Normalize()
}
