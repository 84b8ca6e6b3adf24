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
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultServiceConfig_IsValid(t *testing.T) {
	if err := DefaultServiceConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if err := DefaultExplorationConfig().Validate(); err != nil {
		t.Fatalf("default exploration config invalid: %v", err)
	}
}

func TestLoadServiceConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadServiceConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadServiceConfig: %v", err)
	}
	if cfg.Defaults != DefaultExplorationConfig() {
		t.Errorf("Defaults = %+v", cfg.Defaults)
	}
}

func TestLoadServiceConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "explorer.yaml")
	body := `
defaults:
  beam_width: 5
  max_depth: 6
search:
  proposals_per_node: 4
proposal:
  model: gpt-4o
storage:
  backend: redis
  redis_addr: localhost:6379
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EXPLORER_MAX_DEPTH", "8")
	t.Setenv("EXPLORER_PROPOSAL_TIMEOUT", "12s")
	t.Setenv("EXPLORER_OPENAI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := LoadServiceConfig(path)
	if err != nil {
		t.Fatalf("LoadServiceConfig: %v", err)
	}
	if cfg.Defaults.BeamWidth != 5 {
		t.Errorf("BeamWidth = %d, want 5 from file", cfg.Defaults.BeamWidth)
	}
	if cfg.Defaults.MaxDepth != 8 {
		t.Errorf("MaxDepth = %d, want 8 from env", cfg.Defaults.MaxDepth)
	}
	if cfg.Defaults.MaxLLMCalls != 30 {
		t.Errorf("MaxLLMCalls = %d, want default 30", cfg.Defaults.MaxLLMCalls)
	}
	if cfg.Search.ProposalsPerNode != 4 || cfg.Proposal.Model != "gpt-4o" {
		t.Errorf("search/proposal not loaded: %+v %+v", cfg.Search, cfg.Proposal)
	}
	if cfg.Proposal.Timeout != 12*time.Second {
		t.Errorf("Timeout = %s", cfg.Proposal.Timeout)
	}
	if cfg.Proposal.APIKey != "sk-test" {
		t.Error("API key not taken from OPENAI_API_KEY")
	}
	if cfg.Storage.Backend != "redis" || cfg.Storage.RedisAddr != "localhost:6379" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
}

func TestLoadServiceConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		body string
	}{
		{"unknown backend", "storage:\n  backend: postgres\n"},
		{"badger without path", "storage:\n  backend: badger\n"},
		{"zero beam width", "defaults:\n  beam_width: 0\n"},
		{"tolerance too large", "search:\n  equality_tolerance: 0.9\n"},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, filepath.Base(t.Name())+".yaml")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadServiceConfig(path); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("case %d: err = %v, want ErrInvalidConfig", i, err)
			}
		})
	}
}

func TestLoadServiceConfig_Unparseable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("defaults: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadServiceConfig(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestServiceConfig_BackoffOrder(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.Proposal.MaxBackoff = cfg.Proposal.InitialBackoff / 2
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}
