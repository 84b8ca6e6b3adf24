// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


// Package experiments provides experiment catalogs for the explorer.
//
// A catalog is a YAML document:
//
//	experiments:
//	  - id: exp-checkout
//	    name: Checkout redesign
//	    baseline: {complexity: 0.6, initial_effort: 0.5, perceived_risk: 0.4, time_to_value: 0.5}
//	    population: {id: pop-smb, size: 500}
package experiments

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianExplorer/services/explorer/explore"
)

// ErrInvalidCatalog is returned for catalogs that fail validation.
var ErrInvalidCatalog = errors.New("invalid experiment catalog")

type catalogFile struct {
	Experiments []explore.Experiment `yaml:"experiments"`
}

// Static is an in-memory experiment catalog.
//
// Thread Safety: Safe for concurrent use. Replace swaps the whole catalog.
type Static struct {
	mu    sync.RWMutex
	byID  map[string]explore.Experiment
	order []string
}

// NewStatic builds a catalog from the given experiments.
func NewStatic(exps ...explore.Experiment) (*Static, error) {
	s := &Static{}
	if err := s.Replace(exps); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadFile reads a YAML catalog from disk.
func LoadFile(path string) (*Static, error) {
	exps, err := readCatalog(path)
	if err != nil {
		return nil, err
	}
	return NewStatic(exps...)
}

// Parse decodes a YAML catalog.
func Parse(data []byte) ([]explore.Experiment, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return f.Experiments, nil
}

func readCatalog(path string) ([]explore.Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Replace validates exps and swaps them in. On error the catalog is unchanged.
func (s *Static) Replace(exps []explore.Experiment) error {
	byID := make(map[string]explore.Experiment, len(exps))
	order := make([]string, 0, len(exps))
	for i, e := range exps {
		if e.ID == "" {
			return fmt.Errorf("%w: entry %d has no id", ErrInvalidCatalog, i)
		}
		if _, dup := byID[e.ID]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidCatalog, e.ID)
		}
		if err := e.Baseline.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidCatalog, e.ID, err)
		}
		if e.Population.ID == "" {
			return fmt.Errorf("%w: %s: population id required", ErrInvalidCatalog, e.ID)
		}
		byID[e.ID] = e
		order = append(order, e.ID)
	}
	sort.Strings(order)

	s.mu.Lock()
	s.byID = byID
	s.order = order
	s.mu.Unlock()
	return nil
}

// Experiment implements explore.ExperimentSource.
func (s *Static) Experiment(ctx context.Context, id string) (explore.Experiment, error) {
	if err := ctx.Err(); err != nil {
		return explore.Experiment{}, err
	}
	s.mu.RLock()
	e, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return explore.Experiment{}, fmt.Errorf("%w: %s", explore.ErrExperimentNotFound, id)
	}
	return e, nil
}

// List returns all experiments ordered by id.
func (s *Static) List() []explore.Experiment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]explore.Experiment, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Len returns the number of experiments.
func (s *Static) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
