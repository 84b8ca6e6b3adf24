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
)

// Metric names one component of the fitness vector.
type Metric string

const (
	MetricSuccessRate   Metric = "success_rate"
	MetricFailRate      Metric = "fail_rate"
	MetricDidNotTryRate Metric = "did_not_try_rate"
)

// Comparator is the relation a goal requires between a metric and its threshold.
type Comparator string

const (
	CompareGTE Comparator = "gte"
	CompareGT  Comparator = "gt"
	CompareLTE Comparator = "lte"
	CompareLT  Comparator = "lt"
)

// Goal is the target condition whose satisfaction ends the search successfully.
type Goal struct {
	Metric     Metric     `json:"metric" yaml:"metric" validate:"required,oneof=success_rate fail_rate did_not_try_rate"`
	Comparator Comparator `json:"comparator" yaml:"comparator" validate:"required,oneof=gte gt lte lt"`
	Threshold  float64    `json:"threshold" yaml:"threshold" validate:"gte=0,lte=1"`
}

// Validate checks the goal's metric, comparator, and threshold.
func (g Goal) Validate() error {
	if err := validate.Struct(g); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidGoal, err)
	}
	return nil
}

// SatisfiedBy reports whether f meets the goal.
//
// The inclusive comparators accept values within tolerance of the threshold so
// that a rate of 0.3999999 satisfies "success_rate gte 0.40" when the
// tolerance allows it. Strict comparators require clearing the threshold.
func (g Goal) SatisfiedBy(f FitnessVector, tolerance float64) bool {
	v := f.Metric(g.Metric)
	switch g.Comparator {
	case CompareGTE:
		return v >= g.Threshold-tolerance
	case CompareGT:
		return v > g.Threshold
	case CompareLTE:
		return v <= g.Threshold+tolerance
	case CompareLT:
		return v < g.Threshold
	}
	return false
}

// String returns a compact representation such as "success_rate >= 0.40".
func (g Goal) String() string {
	op := string(g.Comparator)
	switch g.Comparator {
	case CompareGTE:
		op = ">="
	case CompareGT:
		op = ">"
	case CompareLTE:
		op = "<="
	case CompareLT:
		op = "<"
	}
	return fmt.Sprintf("%s %s %.2f", g.Metric, op, g.Threshold)
}
