// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


// Package memory provides an in-process ExplorationStore.
//
// Data lives only as long as the process. Every value is copied on the way
// in and on the way out, so callers never share memory with the store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/AleutianAI/AleutianExplorer/services/explorer/explore"
)

// Store implements explore.ExplorationStore in memory.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	mu           sync.RWMutex
	explorations map[string]*explore.Exploration
	nodes        map[string]map[string]*explore.ScenarioNode
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		explorations: make(map[string]*explore.Exploration),
		nodes:        make(map[string]map[string]*explore.ScenarioNode),
	}
}

// SaveExploration stores a copy of exp, replacing any previous version.
func (s *Store) SaveExploration(ctx context.Context, exp *explore.Exploration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.explorations[exp.ID] = exp.Clone()
	return nil
}

// SaveNode stores a copy of node, replacing any previous version.
func (s *Store) SaveNode(ctx context.Context, node *explore.ScenarioNode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putNode(node)
	return nil
}

func (s *Store) putNode(node *explore.ScenarioNode) {
	byID, ok := s.nodes[node.ExplorationID]
	if !ok {
		byID = make(map[string]*explore.ScenarioNode)
		s.nodes[node.ExplorationID] = byID
	}
	byID[node.ID] = node.Clone()
}

// LoadExploration returns a copy of the stored exploration.
func (s *Store) LoadExploration(ctx context.Context, id string) (*explore.Exploration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	exp, ok := s.explorations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", explore.ErrExplorationNotFound, id)
	}
	return exp.Clone(), nil
}

// ListNodes returns copies of an exploration's nodes in creation order.
func (s *Store) ListNodes(ctx context.Context, explorationID string) ([]*explore.ScenarioNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	byID := s.nodes[explorationID]
	out := make([]*explore.ScenarioNode, 0, len(byID))
	for _, n := range byID {
		out = append(out, n.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// Commit stores exp and nodes under one lock acquisition.
func (s *Store) Commit(ctx context.Context, exp *explore.Exploration, nodes []*explore.ScenarioNode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range nodes {
		s.putNode(n)
	}
	s.explorations[exp.ID] = exp.Clone()
	return nil
}

// ListExplorations returns copies of every stored exploration, newest first.
func (s *Store) ListExplorations(ctx context.Context) ([]*explore.Exploration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*explore.Exploration, 0, len(s.explorations))
	for _, e := range s.explorations {
		out = append(out, e.Clone())
	}
	explore.SortExplorations(out)
	return out, nil
}
