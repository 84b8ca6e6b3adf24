// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


// Package redis stores explorations in Redis.
//
// Key layout, under a configurable prefix:
//
//	{prefix}:exp:{id}    string, JSON Exploration
//	{prefix}:nodes:{id}  hash, node id -> JSON ScenarioNode
//	{prefix}:index       set of exploration ids
//
// Commit wraps every write in MULTI/EXEC.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	backend "github.com/redis/go-redis/v9"

	"github.com/AleutianAI/AleutianExplorer/services/explorer/explore"
)

// Store implements explore.ExplorationStore using Redis.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	client *backend.Client
	prefix string
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// New creates a store connected to address.
func New(address, password string, db int, opts ...Option) *Store {
	return NewFromClient(backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	}), opts...)
}

// NewFromClient creates a store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{client: client, prefix: "explorer"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) explorationKey(id string) string {
	return s.prefix + ":exp:" + id
}

func (s *Store) nodesKey(explorationID string) string {
	return s.prefix + ":nodes:" + explorationID
}

func (s *Store) indexKey() string {
	return s.prefix + ":index"
}

func (s *Store) queueExploration(ctx context.Context, pipe backend.Pipeliner, exp *explore.Exploration) error {
	data, err := json.Marshal(exp)
	if err != nil {
		return fmt.Errorf("marshal exploration: %w", err)
	}
	pipe.Set(ctx, s.explorationKey(exp.ID), data, 0)
	pipe.SAdd(ctx, s.indexKey(), exp.ID)
	return nil
}

func (s *Store) queueNode(ctx context.Context, pipe backend.Pipeliner, node *explore.ScenarioNode) error {
	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("marshal node: %w", err)
	}
	pipe.HSet(ctx, s.nodesKey(node.ExplorationID), node.ID, data)
	return nil
}

// SaveExploration implements explore.ExplorationStore.
func (s *Store) SaveExploration(ctx context.Context, exp *explore.Exploration) error {
	_, err := s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		return s.queueExploration(ctx, pipe, exp)
	})
	if err != nil {
		return fmt.Errorf("save exploration %s: %w", exp.ID, err)
	}
	return nil
}

// SaveNode implements explore.ExplorationStore.
func (s *Store) SaveNode(ctx context.Context, node *explore.ScenarioNode) error {
	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("marshal node: %w", err)
	}
	if err := s.client.HSet(ctx, s.nodesKey(node.ExplorationID), node.ID, data).Err(); err != nil {
		return fmt.Errorf("save node %s: %w", node.ID, err)
	}
	return nil
}

// Commit implements explore.ExplorationStore.
func (s *Store) Commit(ctx context.Context, exp *explore.Exploration, nodes []*explore.ScenarioNode) error {
	_, err := s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		for _, n := range nodes {
			if err := s.queueNode(ctx, pipe, n); err != nil {
				return err
			}
		}
		return s.queueExploration(ctx, pipe, exp)
	})
	if err != nil {
		return fmt.Errorf("commit exploration %s: %w", exp.ID, err)
	}
	return nil
}

// LoadExploration implements explore.ExplorationStore.
func (s *Store) LoadExploration(ctx context.Context, id string) (*explore.Exploration, error) {
	data, err := s.client.Get(ctx, s.explorationKey(id)).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, fmt.Errorf("%w: %s", explore.ErrExplorationNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load exploration %s: %w", id, err)
	}
	var exp explore.Exploration
	if err := json.Unmarshal(data, &exp); err != nil {
		return nil, fmt.Errorf("decode exploration %s: %w", id, err)
	}
	return &exp, nil
}

// ListNodes implements explore.ExplorationStore.
func (s *Store) ListNodes(ctx context.Context, explorationID string) ([]*explore.ScenarioNode, error) {
	raw, err := s.client.HGetAll(ctx, s.nodesKey(explorationID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list nodes of %s: %w", explorationID, err)
	}
	nodes := make([]*explore.ScenarioNode, 0, len(raw))
	for id, data := range raw {
		var n explore.ScenarioNode
		if err := json.Unmarshal([]byte(data), &n); err != nil {
			return nil, fmt.Errorf("decode node %s: %w", id, err)
		}
		nodes = append(nodes, &n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Seq < nodes[j].Seq })
	return nodes, nil
}

// ListExplorations implements explore.ExplorationStore.
func (s *Store) ListExplorations(ctx context.Context) ([]*explore.Exploration, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list exploration ids: %w", err)
	}
	exps := make([]*explore.Exploration, 0, len(ids))
	if len(ids) == 0 {
		return exps, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.explorationKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load explorations: %w", err)
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			// Indexed but deleted out from under us.
			continue
		}
		var e explore.Exploration
		if err := json.Unmarshal([]byte(str), &e); err != nil {
			return nil, fmt.Errorf("decode exploration %s: %w", ids[i], err)
		}
		exps = append(exps, &e)
	}
	explore.SortExplorations(exps)
	return exps, nil
}
