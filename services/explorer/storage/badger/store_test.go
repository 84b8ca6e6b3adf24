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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianExplorer/services/explorer/explore"
	"github.com/AleutianAI/AleutianExplorer/services/explorer/storage/storetest"
)

func TestStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) explore.ExplorationStore {
		s, err := OpenInMemory()
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.SyncWrites = false

	s, err := Open(cfg)
	require.NoError(t, err)
	exp := storetest.NewExploration("x1")
	require.NoError(t, s.Commit(ctx, exp, []*explore.ScenarioNode{
		storetest.NewNode("x1", 0),
		storetest.NewNode("x1", 1),
	}))
	require.NoError(t, s.Close())

	s, err = Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	loaded, err := s.LoadExploration(ctx, "x1")
	require.NoError(t, err)
	assert.Equal(t, exp, loaded)
	nodes, err := s.ListNodes(ctx, "x1")
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
}

func TestStore_PrefixIsolation(t *testing.T) {
	ctx := context.Background()
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveNode(ctx, storetest.NewNode("x1", 0)))
	require.NoError(t, s.SaveNode(ctx, storetest.NewNode("x10", 0)))

	nodes, err := s.ListNodes(ctx, "x1")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "x1", nodes[0].ExplorationID)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}
