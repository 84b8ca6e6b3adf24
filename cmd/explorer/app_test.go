// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianExplorer/services/explorer/explore"
	"github.com/AleutianAI/AleutianExplorer/services/explorer/storage/storetest"
)

func TestOpenStore_Backends(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	tests := []struct {
		name string
		cfg  explore.StorageConfig
	}{
		{"memory", explore.StorageConfig{Backend: "memory"}},
		{"badger", explore.StorageConfig{Backend: "badger", BadgerPath: filepath.Join(t.TempDir(), "db")}},
		{"redis", explore.StorageConfig{Backend: "redis", RedisAddr: mr.Addr(), RedisKeyPrefix: "cmdtest"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, closeFn, err := openStore(ctx, tt.cfg, nil)
			require.NoError(t, err)
			if closeFn != nil {
				defer func() { assert.NoError(t, closeFn()) }()
			}

			exp := storetest.NewExploration("exp-1")
			require.NoError(t, store.SaveExploration(ctx, exp))
			got, err := store.LoadExploration(ctx, "exp-1")
			require.NoError(t, err)
			assert.Equal(t, exp.ID, got.ID)
		})
	}
	assert.True(t, mr.Exists("cmdtest:exp:exp-1"))
}

func TestOpenStore_Errors(t *testing.T) {
	ctx := context.Background()

	_, _, err := openStore(ctx, explore.StorageConfig{Backend: "cassandra"}, nil)
	assert.ErrorIs(t, err, explore.ErrInvalidConfig)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, _, err = openStore(ctx, explore.StorageConfig{Backend: "redis", RedisAddr: addr}, nil)
	assert.Error(t, err)
}

func TestPrintConfig_OmitsSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "explorer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("defaults:\n  beam_width: 5\nserver:\n  addr: \":9999\"\n"), 0o600))
	t.Setenv("EXPLORER_OPENAI_API_KEY", "sk-secret")
	t.Setenv("EXPLORER_REDIS_PASSWORD", "hunter2")

	oldPath, oldLevel := configPath, logLevel
	configPath, logLevel = path, "debug"
	defer func() { configPath, logLevel = oldPath, oldLevel }()

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	require.NoError(t, printConfig(cmd, nil))

	out := buf.String()
	assert.NotContains(t, out, "sk-secret")
	assert.NotContains(t, out, "hunter2")

	var cfg explore.ServiceConfig
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &cfg))
	assert.Equal(t, 5, cfg.Defaults.BeamWidth)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.Proposal.Timeout)
}

func TestLoadConfig_RejectsBadLogLevel(t *testing.T) {
	oldPath, oldLevel := configPath, logLevel
	configPath, logLevel = "", "loud"
	defer func() { configPath, logLevel = oldPath, oldLevel }()

	_, err := loadConfig()
	assert.Error(t, err)
}

func TestExplorationConfig_OverlaysFlags(t *testing.T) {
	defer func() { runBeamWidth, runMaxCalls = 0, 0 }()
	runBeamWidth, runMaxCalls = 4, 12

	got := explorationConfig(explore.DefaultExplorationConfig())
	want := explore.DefaultExplorationConfig()
	want.BeamWidth, want.MaxLLMCalls = 4, 12
	assert.Equal(t, want, got)
}

func TestPrintResult(t *testing.T) {
	exp := storetest.NewExploration("exp-1")
	nodes := []*explore.ScenarioNode{storetest.NewNode("exp-1", 0), storetest.NewNode("exp-1", 1)}

	var text bytes.Buffer
	require.NoError(t, printResult(&text, exp, nodes, false))
	assert.Contains(t, text.String(), "Exploration: exp-1")

	var js bytes.Buffer
	require.NoError(t, printResult(&js, exp, nodes, true))
	assert.Contains(t, js.String(), `"exploration"`)
	assert.Contains(t, js.String(), `"exp-1-n1"`)
}

func TestRootCommand_Subcommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "run", "show", "list", "config"} {
		assert.Contains(t, names, want)
	}
}
