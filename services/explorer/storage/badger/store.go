// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianExplorer/services/explorer/explore"
)

const (
	explorationPrefix = "exp/"
	nodePrefix        = "node/"
)

// Store implements explore.ExplorationStore on BadgerDB.
//
// Commit runs in a single read-write transaction, so an iteration's nodes
// and counters become visible together or not at all.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db     *badger.DB
	gc     *gcRunner
	logger *slog.Logger
}

// Open opens (or creates) a store.
//
// Inputs:
//   - cfg: Database configuration. Path is required unless InMemory is set.
//
// Outputs:
//   - *Store: The store. Call Close when done.
//   - error: Non-nil if the database cannot be opened.
func Open(cfg Config) (*Store, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, logger: logger}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		gc, err := startGC(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("start value log gc: %w", err)
		}
		s.gc = gc
	}
	return s, nil
}

// OpenInMemory opens a store whose data is lost on Close.
func OpenInMemory() (*Store, error) {
	return Open(InMemoryConfig())
}

// Close stops garbage collection and closes the database.
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.stop()
	}
	return s.db.Close()
}

func explorationKey(id string) []byte {
	return []byte(explorationPrefix + id)
}

func nodeKeyPrefix(explorationID string) []byte {
	return []byte(nodePrefix + explorationID + "/")
}

func nodeKey(n *explore.ScenarioNode) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d/%s", nodePrefix, n.ExplorationID, n.Seq, n.ID))
}

func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(fn)
}

func (s *Store) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(fn)
}

func putJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set(key, data)
}

// SaveExploration implements explore.ExplorationStore.
func (s *Store) SaveExploration(ctx context.Context, exp *explore.Exploration) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		return putJSON(txn, explorationKey(exp.ID), exp)
	})
}

// SaveNode implements explore.ExplorationStore.
func (s *Store) SaveNode(ctx context.Context, node *explore.ScenarioNode) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		return putJSON(txn, nodeKey(node), node)
	})
}

// Commit implements explore.ExplorationStore.
func (s *Store) Commit(ctx context.Context, exp *explore.Exploration, nodes []*explore.ScenarioNode) error {
	err := s.update(ctx, func(txn *badger.Txn) error {
		for _, n := range nodes {
			if err := putJSON(txn, nodeKey(n), n); err != nil {
				return err
			}
		}
		return putJSON(txn, explorationKey(exp.ID), exp)
	})
	if err != nil {
		return fmt.Errorf("commit exploration %s: %w", exp.ID, err)
	}
	return nil
}

// LoadExploration implements explore.ExplorationStore.
func (s *Store) LoadExploration(ctx context.Context, id string) (*explore.Exploration, error) {
	var exp explore.Exploration
	err := s.view(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(explorationKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &exp)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", explore.ErrExplorationNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load exploration %s: %w", id, err)
	}
	return &exp, nil
}

// ListNodes implements explore.ExplorationStore.
func (s *Store) ListNodes(ctx context.Context, explorationID string) ([]*explore.ScenarioNode, error) {
	nodes := []*explore.ScenarioNode{}
	err := s.view(ctx, func(txn *badger.Txn) error {
		prefix := nodeKeyPrefix(explorationID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var n explore.ScenarioNode
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &n)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			nodes = append(nodes, &n)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list nodes of %s: %w", explorationID, err)
	}
	return nodes, nil
}

// ListExplorations implements explore.ExplorationStore.
func (s *Store) ListExplorations(ctx context.Context) ([]*explore.Exploration, error) {
	exps := []*explore.Exploration{}
	err := s.view(ctx, func(txn *badger.Txn) error {
		prefix := []byte(explorationPrefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var e explore.Exploration
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			exps = append(exps, &e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list explorations: %w", err)
	}
	explore.SortExplorations(exps)
	return exps, nil
}
