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
	"sort"
)

// Dimension names one axis of the adoption scorecard.
type Dimension string

const (
	DimComplexity    Dimension = "complexity"
	DimInitialEffort Dimension = "initial_effort"
	DimPerceivedRisk Dimension = "perceived_risk"
	DimTimeToValue   Dimension = "time_to_value"
)

// Scorecard bounds. Every dimension lives in [ScorecardMin, ScorecardMax].
const (
	ScorecardMin = 0.0
	ScorecardMax = 1.0
)

// Dimensions lists every scorecard dimension in canonical order.
func Dimensions() []Dimension {
	return []Dimension{DimComplexity, DimInitialEffort, DimPerceivedRisk, DimTimeToValue}
}

// IsValid reports whether d is one of the four scorecard dimensions.
func (d Dimension) IsValid() bool {
	switch d {
	case DimComplexity, DimInitialEffort, DimPerceivedRisk, DimTimeToValue:
		return true
	}
	return false
}

// String returns the string representation of the dimension.
func (d Dimension) String() string {
	return string(d)
}

// Scorecard is a snapshot of the four behavioral-model inputs for a product state.
//
// Scorecards are values; Apply returns a new scorecard and never mutates the receiver.
type Scorecard struct {
	Complexity    float64 `json:"complexity" yaml:"complexity"`
	InitialEffort float64 `json:"initial_effort" yaml:"initial_effort"`
	PerceivedRisk float64 `json:"perceived_risk" yaml:"perceived_risk"`
	TimeToValue   float64 `json:"time_to_value" yaml:"time_to_value"`
}

// Get returns the value of one dimension. Unknown dimensions return 0.
func (s Scorecard) Get(d Dimension) float64 {
	switch d {
	case DimComplexity:
		return s.Complexity
	case DimInitialEffort:
		return s.InitialEffort
	case DimPerceivedRisk:
		return s.PerceivedRisk
	case DimTimeToValue:
		return s.TimeToValue
	}
	return 0
}

func (s *Scorecard) set(d Dimension, v float64) {
	switch d {
	case DimComplexity:
		s.Complexity = v
	case DimInitialEffort:
		s.InitialEffort = v
	case DimPerceivedRisk:
		s.PerceivedRisk = v
	case DimTimeToValue:
		s.TimeToValue = v
	}
}

// Validate checks that every dimension is finite and inside the bounds.
func (s Scorecard) Validate() error {
	for _, d := range Dimensions() {
		v := s.Get(d)
		if math.IsNaN(v) || math.IsInf(v, 0) || v < ScorecardMin || v > ScorecardMax {
			return fmt.Errorf("%w: %s=%v outside [%v, %v]", ErrDeltaOutOfRange, d, v, ScorecardMin, ScorecardMax)
		}
	}
	return nil
}

// Apply adds delta to the scorecard and clamps each dimension into bounds.
func (s Scorecard) Apply(delta ScorecardDelta) Scorecard {
	out := s
	for _, d := range Dimensions() {
		out.set(d, clamp(s.Get(d)+delta.Get(d), ScorecardMin, ScorecardMax))
	}
	return out
}

// ScorecardDelta is the validated, dense form of an action's scorecard effect.
type ScorecardDelta struct {
	Complexity    float64 `json:"complexity"`
	InitialEffort float64 `json:"initial_effort"`
	PerceivedRisk float64 `json:"perceived_risk"`
	TimeToValue   float64 `json:"time_to_value"`
}

// Get returns the delta for one dimension.
func (d ScorecardDelta) Get(dim Dimension) float64 {
	switch dim {
	case DimComplexity:
		return d.Complexity
	case DimInitialEffort:
		return d.InitialEffort
	case DimPerceivedRisk:
		return d.PerceivedRisk
	case DimTimeToValue:
		return d.TimeToValue
	}
	return 0
}

// IsZero reports whether the delta changes nothing.
func (d ScorecardDelta) IsZero() bool {
	return d == ScorecardDelta{}
}

// TranslateDeltas maps an action's sparse per-dimension effect onto a dense
// ScorecardDelta.
//
// Inputs:
//   - deltas: Proposed change per dimension. Missing dimensions are unchanged.
//   - maxMagnitude: Largest absolute change accepted for any single dimension.
//
// Outputs:
//   - ScorecardDelta: The dense delta.
//   - error: ErrUnknownDimension or ErrDeltaOutOfRange when the effect is rejected.
//
// Thread Safety: Pure function.
func TranslateDeltas(deltas map[Dimension]float64, maxMagnitude float64) (ScorecardDelta, error) {
	var out ScorecardDelta

	// Iterate in sorted order so the reported error is stable.
	keys := make([]string, 0, len(deltas))
	for d := range deltas {
		keys = append(keys, string(d))
	}
	sort.Strings(keys)

	for _, k := range keys {
		d := Dimension(k)
		v := deltas[d]
		if !d.IsValid() {
			return ScorecardDelta{}, fmt.Errorf("%w: %q", ErrUnknownDimension, k)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > maxMagnitude {
			return ScorecardDelta{}, fmt.Errorf("%w: %s=%v exceeds ±%v", ErrDeltaOutOfRange, d, v, maxMagnitude)
		}
		switch d {
		case DimComplexity:
			out.Complexity = v
		case DimInitialEffort:
			out.InitialEffort = v
		case DimPerceivedRisk:
			out.PerceivedRisk = v
		case DimTimeToValue:
			out.TimeToValue = v
		}
	}
	return out, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
