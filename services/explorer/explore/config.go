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
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ExplorationConfig holds the per-exploration search limits.
type ExplorationConfig struct {
	// BeamWidth is the maximum number of nodes retained per depth.
	BeamWidth int `json:"beam_width" yaml:"beam_width" validate:"min=1"`
	// MaxDepth is the deepest level the tree may reach.
	MaxDepth int `json:"max_depth" yaml:"max_depth" validate:"min=1"`
	// MaxLLMCalls caps issued proposal call attempts, retries included.
	MaxLLMCalls int `json:"max_llm_calls" yaml:"max_llm_calls" validate:"min=1"`
	// ExecutionsPerNode is the number of simulation repetitions per scorecard.
	ExecutionsPerNode int `json:"executions_per_node" yaml:"executions_per_node" validate:"min=1"`
}

// DefaultExplorationConfig returns the default search limits.
func DefaultExplorationConfig() ExplorationConfig {
	return ExplorationConfig{
		BeamWidth:         3,
		MaxDepth:          4,
		MaxLLMCalls:       30,
		ExecutionsPerNode: 5,
	}
}

// Validate checks the search limits.
func (c ExplorationConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ServiceConfig contains all explorer configuration.
// This is the top-level config struct that can be loaded from files/env.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after creation.
type ServiceConfig struct {
	// Defaults are applied to explorations started without explicit limits.
	Defaults ExplorationConfig `json:"defaults" yaml:"defaults"`

	Search        SearchConfig        `json:"search" yaml:"search"`
	Proposal      ProposalConfig      `json:"proposal" yaml:"proposal"`
	Simulation    SimulationConfig    `json:"simulation" yaml:"simulation"`
	Experiments   ExperimentsConfig   `json:"experiments" yaml:"experiments"`
	Storage       StorageConfig       `json:"storage" yaml:"storage"`
	Server        ServerConfig        `json:"server" yaml:"server"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
}

// SearchConfig contains filtering and expansion settings shared by all explorations.
type SearchConfig struct {
	// EqualityTolerance is the margin inside which two objective values tie.
	EqualityTolerance float64 `json:"equality_tolerance" yaml:"equality_tolerance" validate:"gte=0,lte=0.5"`
	// ProposalsPerNode is how many actions to request per frontier node.
	ProposalsPerNode int `json:"proposals_per_node" yaml:"proposals_per_node" validate:"min=1,max=20"`
	// MaxDeltaMagnitude is the largest accepted change to a single dimension.
	MaxDeltaMagnitude float64 `json:"max_delta_magnitude" yaml:"max_delta_magnitude" validate:"gt=0,lte=1"`
}

// ProposalConfig contains proposal call settings.
type ProposalConfig struct {
	Timeout        time.Duration `json:"timeout" yaml:"timeout" validate:"gt=0"`
	MaxAttempts    int           `json:"max_attempts" yaml:"max_attempts" validate:"min=1,max=10"`
	InitialBackoff time.Duration `json:"initial_backoff" yaml:"initial_backoff" validate:"gt=0"`
	MaxBackoff     time.Duration `json:"max_backoff" yaml:"max_backoff" validate:"gt=0"`
	// RateLimit is requests per second. Zero disables pacing.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" validate:"gte=0"`
	RateBurst int     `json:"rate_burst" yaml:"rate_burst" validate:"min=1"`

	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker" yaml:"circuit_breaker"`

	Model       string  `json:"model" yaml:"model" validate:"required"`
	BaseURL     string  `json:"base_url" yaml:"base_url"`
	APIKey      string  `json:"-" yaml:"-"`
	Temperature float32 `json:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
}

// SimulationConfig contains outcome simulator settings.
type SimulationConfig struct {
	Timeout time.Duration `json:"timeout" yaml:"timeout" validate:"gt=0"`
	// Seed is passed to the simulator when set, making runs reproducible.
	Seed *int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
	// MaxConcurrency bounds simultaneous simulation calls per iteration.
	MaxConcurrency int    `json:"max_concurrency" yaml:"max_concurrency" validate:"min=1"`
	BaseURL        string `json:"base_url" yaml:"base_url"`
}

// ExperimentsConfig points at the experiment catalog.
type ExperimentsConfig struct {
	CatalogPath string `json:"catalog_path" yaml:"catalog_path"`
}

// StorageConfig selects and configures the exploration store.
type StorageConfig struct {
	Backend        string `json:"backend" yaml:"backend" validate:"oneof=memory badger redis"`
	BadgerPath     string `json:"badger_path" yaml:"badger_path" validate:"required_if=Backend badger"`
	RedisAddr      string `json:"redis_addr" yaml:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword  string `json:"-" yaml:"-"`
	RedisDB        int    `json:"redis_db" yaml:"redis_db" validate:"gte=0"`
	RedisKeyPrefix string `json:"redis_key_prefix" yaml:"redis_key_prefix"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" validate:"required"`
}

// ObservabilityConfig contains observability settings.
type ObservabilityConfig struct {
	TracingEnabled bool   `json:"tracing_enabled" yaml:"tracing_enabled"`
	TraceExporter  string `json:"trace_exporter" yaml:"trace_exporter" validate:"oneof=none stdout otlp"`
	MetricExporter string `json:"metric_exporter" yaml:"metric_exporter" validate:"oneof=none prometheus stdout"`
	OTLPEndpoint   string `json:"otlp_endpoint" yaml:"otlp_endpoint"`
	LogLevel       string `json:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`
	LogJSON        bool   `json:"log_json" yaml:"log_json"`
	LogDir         string `json:"log_dir" yaml:"log_dir"`
	ServiceName    string `json:"service_name" yaml:"service_name" validate:"required"`
}

// DefaultServiceConfig returns the default configuration.
//
// Outputs:
//   - ServiceConfig: Default configuration with sensible values.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Defaults: DefaultExplorationConfig(),
		Search: SearchConfig{
			EqualityTolerance: 1e-3,
			ProposalsPerNode:  3,
			MaxDeltaMagnitude: 1.0,
		},
		Proposal: ProposalConfig{
			Timeout:        30 * time.Second,
			MaxAttempts:    3,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
			RateLimit:      2,
			RateBurst:      4,
			CircuitBreaker: DefaultCircuitBreakerConfig(),
			Model:          "gpt-4o-mini",
			Temperature:    0.7,
		},
		Simulation: SimulationConfig{
			Timeout:        60 * time.Second,
			MaxConcurrency: 8,
			BaseURL:        "http://localhost:12220",
		},
		Experiments: ExperimentsConfig{
			CatalogPath: "experiments.yaml",
		},
		Storage: StorageConfig{
			Backend:        "memory",
			RedisKeyPrefix: "explorer",
		},
		Server: ServerConfig{
			Addr: ":12230",
		},
		Observability: ObservabilityConfig{
			TracingEnabled: false,
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			LogLevel:       "info",
			ServiceName:    "explorer",
		},
	}
}

// LoadServiceConfig loads configuration with priority: env > file > defaults.
//
// Inputs:
//   - configPath: Path to YAML/JSON config file (optional, can be empty).
//
// Outputs:
//   - ServiceConfig: Merged configuration.
//   - error: Non-nil if file exists but is invalid, or the result fails validation.
func LoadServiceConfig(configPath string) (ServiceConfig, error) {
	config := DefaultServiceConfig()

	if configPath != "" {
		if err := loadConfigFile(configPath, &config); err != nil {
			return config, fmt.Errorf("load config file: %w", err)
		}
	}

	loadConfigFromEnv(&config)

	if err := config.Validate(); err != nil {
		return config, err
	}

	return config, nil
}

func loadConfigFile(path string, config *ServiceConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File doesn't exist, use defaults
		}
		return err
	}

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		if jsonErr := json.Unmarshal(data, config); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}

	return nil
}

func loadConfigFromEnv(config *ServiceConfig) {
	// Exploration defaults
	envInt("EXPLORER_BEAM_WIDTH", &config.Defaults.BeamWidth)
	envInt("EXPLORER_MAX_DEPTH", &config.Defaults.MaxDepth)
	envInt("EXPLORER_MAX_LLM_CALLS", &config.Defaults.MaxLLMCalls)
	envInt("EXPLORER_EXECUTIONS_PER_NODE", &config.Defaults.ExecutionsPerNode)

	// Search
	envFloat("EXPLORER_EQUALITY_TOLERANCE", &config.Search.EqualityTolerance)
	envInt("EXPLORER_PROPOSALS_PER_NODE", &config.Search.ProposalsPerNode)
	envFloat("EXPLORER_MAX_DELTA_MAGNITUDE", &config.Search.MaxDeltaMagnitude)

	// Proposal
	envDuration("EXPLORER_PROPOSAL_TIMEOUT", &config.Proposal.Timeout)
	envInt("EXPLORER_PROPOSAL_MAX_ATTEMPTS", &config.Proposal.MaxAttempts)
	envFloat("EXPLORER_PROPOSAL_RATE_LIMIT", &config.Proposal.RateLimit)
	envString("EXPLORER_OPENAI_MODEL", &config.Proposal.Model)
	envString("EXPLORER_OPENAI_BASE_URL", &config.Proposal.BaseURL)
	if v := os.Getenv("EXPLORER_OPENAI_API_KEY"); v != "" {
		config.Proposal.APIKey = v
	} else if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		config.Proposal.APIKey = v
	}

	// Simulation
	envDuration("EXPLORER_SIMULATION_TIMEOUT", &config.Simulation.Timeout)
	envString("EXPLORER_SIMULATOR_URL", &config.Simulation.BaseURL)
	if v := os.Getenv("EXPLORER_SIMULATION_SEED"); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Simulation.Seed = &i
		}
	}

	envString("EXPLORER_EXPERIMENTS_PATH", &config.Experiments.CatalogPath)

	// Storage
	envString("EXPLORER_STORAGE_BACKEND", &config.Storage.Backend)
	envString("EXPLORER_BADGER_PATH", &config.Storage.BadgerPath)
	envString("EXPLORER_REDIS_ADDR", &config.Storage.RedisAddr)
	envString("EXPLORER_REDIS_PASSWORD", &config.Storage.RedisPassword)
	envInt("EXPLORER_REDIS_DB", &config.Storage.RedisDB)

	envString("EXPLORER_LISTEN_ADDR", &config.Server.Addr)

	// Observability
	envBool("EXPLORER_TRACING_ENABLED", &config.Observability.TracingEnabled)
	envString("EXPLORER_TRACE_EXPORTER", &config.Observability.TraceExporter)
	envString("EXPLORER_METRIC_EXPORTER", &config.Observability.MetricExporter)
	envString("EXPLORER_OTLP_ENDPOINT", &config.Observability.OTLPEndpoint)
	envString("EXPLORER_LOG_LEVEL", &config.Observability.LogLevel)
	envBool("EXPLORER_LOG_JSON", &config.Observability.LogJSON)
	envString("EXPLORER_LOG_DIR", &config.Observability.LogDir)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true" || v == "1"
	}
}

// Validate checks that the configuration is valid.
//
// Outputs:
//   - error: Wraps ErrInvalidConfig if any setting is out of range.
func (c ServiceConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Proposal.MaxBackoff < c.Proposal.InitialBackoff {
		return fmt.Errorf("%w: max_backoff must be >= initial_backoff", ErrInvalidConfig)
	}
	if err := c.Proposal.CircuitBreaker.Validate(); err != nil {
		return err
	}
	return nil
}
