// Package config loads the YAML configuration of the problog command.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/gitrdm/goproblog/pkg/problog"
)

// Config is the full command configuration.
type Config struct {
	Engine     EngineConfig     `yaml:"engine"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	BayesNet   BayesNetConfig   `yaml:"bayesnet"`
	Sample     SampleConfig     `yaml:"sample"`
	Logging    LoggingConfig    `yaml:"logging"`
	Store      StoreConfig      `yaml:"store"`
}

// EngineConfig configures grounding.
type EngineConfig struct {
	MaxCallDepth          int      `yaml:"max_call_depth"`
	MaxFixpointIterations int      `yaml:"max_fixpoint_iterations"`
	KeepAll               bool     `yaml:"keep_all"`
	HideBuiltins          bool     `yaml:"hide_builtins"`
	PropagateEvidence     bool     `yaml:"propagate_evidence"`
	ProbabilisticBuiltins bool     `yaml:"probabilistic_builtins"`
	Labels                []string `yaml:"labels,omitempty"`
}

// EvaluationConfig selects the circuit backend and semiring.
type EvaluationConfig struct {
	Backend   string `yaml:"backend"`  // enum, direct
	Semiring  string `yaml:"semiring"` // prob, log, symbolic
	MaxModels int    `yaml:"max_models"`
}

// BayesNetConfig configures the bn command.
type BayesNetConfig struct {
	Strict bool   `yaml:"strict"`
	Format string `yaml:"format"` // hugin, xdsl, uai08, dot, internal
}

// SampleConfig configures Monte-Carlo estimation.
type SampleConfig struct {
	Trials  int    `yaml:"trials"`
	Seed    uint64 `yaml:"seed"`
	Workers int    `yaml:"workers"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	JSON  bool   `yaml:"json"`
}

// StoreConfig locates the batch result database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	eng := problog.DefaultEngineConfig()
	return &Config{
		Engine: EngineConfig{
			MaxCallDepth:          eng.MaxCallDepth,
			MaxFixpointIterations: eng.MaxFixpointIterations,
		},
		Evaluation: EvaluationConfig{
			Backend:   "enum",
			Semiring:  "prob",
			MaxModels: problog.DefaultMaxModels,
		},
		BayesNet: BayesNetConfig{Format: "hugin"},
		Sample:   SampleConfig{Trials: 10000, Seed: 1},
		Logging:  LoggingConfig{Level: "warn"},
	}
}

// Load reads configuration from a YAML file on top of the defaults. A
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if path := os.Getenv("PROBLOG_STORE"); path != "" {
		cfg.Store.Path = path
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	switch c.Evaluation.Backend {
	case "enum", "direct":
	default:
		return fmt.Errorf("evaluation.backend: unknown backend %q", c.Evaluation.Backend)
	}
	switch c.Evaluation.Semiring {
	case "prob", "log", "symbolic":
	default:
		return fmt.Errorf("evaluation.semiring: unknown semiring %q", c.Evaluation.Semiring)
	}
	switch c.BayesNet.Format {
	case "hugin", "xdsl", "uai08", "dot", "internal":
	default:
		return fmt.Errorf("bayesnet.format: unknown format %q", c.BayesNet.Format)
	}
	if c.Sample.Trials < 0 {
		return fmt.Errorf("sample.trials: must not be negative")
	}
	return nil
}

// EngineOptions converts the engine section into engine options.
func (c *Config) EngineOptions() []problog.Option {
	return []problog.Option{
		problog.WithConfig(&problog.EngineConfig{
			MaxCallDepth:          c.Engine.MaxCallDepth,
			MaxFixpointIterations: c.Engine.MaxFixpointIterations,
			KeepAll:               c.Engine.KeepAll,
			HideBuiltins:          c.Engine.HideBuiltins,
			PropagateEvidence:     c.Engine.PropagateEvidence,
			ProbabilisticBuiltins: c.Engine.ProbabilisticBuiltins,
			Labels:                c.Engine.Labels,
		}),
	}
}

// Compiler returns the configured circuit backend.
func (c *Config) Compiler(logger *zap.Logger) problog.Compiler {
	if c.Evaluation.Backend == "direct" {
		return problog.DirectCompiler{}
	}
	return problog.EnumCompiler{MaxModels: c.Evaluation.MaxModels, Logger: logger}
}
