// Package config loads sigmaflow's YAML configuration file and applies
// the documented defaults for every option spec.md §6 enumerates.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Sigmaflow Sigmaflow `yaml:"sigmaflow"`
}

// Sigmaflow groups every recognized configuration option (spec.md §6).
type Sigmaflow struct {
	Rules         RulesConfig         `yaml:"rules"`
	Broker        BrokerConfig        `yaml:"broker"`
	Retry         RetryConfig         `yaml:"retry"`
	Backpressure  BackpressureConfig  `yaml:"backpressure"`
	Evaluation    EvaluationConfig    `yaml:"evaluation"`
	Shutdown      ShutdownConfig      `yaml:"shutdown"`
	Workers       int                 `yaml:"workers"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// RulesConfig controls rule directory loading (spec.md §4.5, §6).
type RulesConfig struct {
	Dir               string `yaml:"dir"`
	FailOnParseError  bool   `yaml:"fail_on_parse_error"`
	PreserveWhitespace bool  `yaml:"preserve_whitespace"`
	MaxFileBytes      int64  `yaml:"max_file_bytes"`
	MaxIdentifiers    int    `yaml:"max_identifiers"`
}

// BrokerConfig controls the Redis broker endpoints and topics (spec.md
// §6 "broker endpoints, group id, input topics, output topic, DLQ
// topic"). GroupID has no effect on the Redis list transport but is
// carried through so a config file written for a consumer-group broker
// validates unchanged if the broker is swapped later.
type BrokerConfig struct {
	Endpoints   []string      `yaml:"endpoints"`
	GroupID     string        `yaml:"group_id"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	InputTopics []string      `yaml:"input_topics"`
	OutputTopic string        `yaml:"output_topic"`
	DLQTopic    string        `yaml:"dlq_topic"`
	CommitKey   string        `yaml:"commit_key"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
}

// RetryConfig controls the sink-write retry/backoff policy (spec.md
// §4.8 step 3).
type RetryConfig struct {
	MaxRetries      int           `yaml:"max_retries"`
	BaseDelay       time.Duration `yaml:"base_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	Multiplier      float64       `yaml:"multiplier"`
	DLQAfterRetries int           `yaml:"dlq_after_retries"`
}

// BackpressureConfig controls the in-flight queue thresholds (spec.md
// §4.8 step 4).
type BackpressureConfig struct {
	Capacity           int     `yaml:"capacity"`
	HighWatermarkRatio float64 `yaml:"high_watermark_ratio"`
	LowWatermarkRatio  float64 `yaml:"low_watermark_ratio"`
}

// EvaluationConfig controls the per-event soft deadline (spec.md §5
// "Timeouts").
type EvaluationConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// ShutdownConfig controls the drain grace period (spec.md §4.8 step 5,
// §5 "Cancellation").
type ShutdownConfig struct {
	Grace time.Duration `yaml:"grace"`
}

// LoggingConfig controls logging output, in the teacher's shape.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyDefaults fills in every zero-valued field with the defaults
// spec.md §4.5, §4.8, and §5 document, mirroring the teacher's
// main.go-level applyDefaults convention.
func ApplyDefaults(cfg *Config) {
	s := &cfg.Sigmaflow

	if s.Rules.Dir == "" {
		s.Rules.Dir = "rules"
	}
	if s.Rules.MaxFileBytes <= 0 {
		s.Rules.MaxFileBytes = 1 << 20
	}
	if s.Rules.MaxIdentifiers <= 0 {
		s.Rules.MaxIdentifiers = 10000
	}

	if s.Broker.BlockTimeout <= 0 {
		s.Broker.BlockTimeout = 5 * time.Second
	}
	if s.Broker.CommitKey == "" {
		s.Broker.CommitKey = "sigmaflow:commit_cursor"
	}

	if s.Retry.MaxRetries <= 0 {
		s.Retry.MaxRetries = 3
	}
	if s.Retry.BaseDelay <= 0 {
		s.Retry.BaseDelay = 100 * time.Millisecond
	}
	if s.Retry.MaxDelay <= 0 {
		s.Retry.MaxDelay = 60 * time.Second
	}
	if s.Retry.Multiplier <= 0 {
		s.Retry.Multiplier = 2.0
	}
	if s.Retry.DLQAfterRetries <= 0 {
		s.Retry.DLQAfterRetries = s.Retry.MaxRetries
	}

	if s.Backpressure.Capacity <= 0 {
		s.Backpressure.Capacity = 10000
	}
	if s.Backpressure.HighWatermarkRatio <= 0 {
		s.Backpressure.HighWatermarkRatio = 0.8
	}
	if s.Backpressure.LowWatermarkRatio <= 0 {
		s.Backpressure.LowWatermarkRatio = 0.6
	}

	if s.Evaluation.Timeout <= 0 {
		s.Evaluation.Timeout = 30 * time.Second
	}
	if s.Shutdown.Grace <= 0 {
		s.Shutdown.Grace = 30 * time.Second
	}

	if s.Logging.Level == "" {
		s.Logging.Level = "info"
	}
	if !s.Logging.Enabled && s.Logging.File == "" {
		s.Logging.Enabled = true
		s.Logging.Console = true
	}
}
