package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/screa/nonce-miner/internal/crypto"
	"github.com/screa/nonce-miner/pkg/header"
	"github.com/screa/nonce-miner/pkg/target"
	"github.com/screa/nonce-miner/pkg/types"
)

// Errors
var (
	ErrInvalidProgress  = errors.New("progress interval must be positive")
	ErrInvalidTimeouts  = errors.New("heartbeat and join timeouts must be positive")
	ErrInvalidLogFormat = errors.New("log format must be text or json")
	ErrNoCompareCounts  = errors.New("compare needs at least one worker count")
)

// DefaultMaxDifficulty caps the target length in nibbles. Beyond it the
// expected work (16^n hashes) cannot be reached by any search.
const DefaultMaxDifficulty = 32

// Config holds the application configuration
type Config struct {
	Template      header.Template `yaml:"template"`
	Target        string          `yaml:"target"`
	Workers       int             `yaml:"workers"`
	MaxNonce      uint64          `yaml:"max_nonce"`
	Timestamp     uint32          `yaml:"timestamp"` // 0 means current time
	Hash          string          `yaml:"hash"`
	MaxDifficulty int             `yaml:"max_difficulty"`

	ProgressEvery    int64         `yaml:"progress_every"`
	LogInterval      int           `yaml:"log_interval"` // Logging interval in seconds
	HeartbeatTimeout time.Duration `yaml:"heartbeat_timeout"`
	JoinTimeout      time.Duration `yaml:"join_timeout"`
	Timeout          time.Duration `yaml:"timeout"` // 0 means no limit

	CompareCounts []int `yaml:"compare_counts"`

	Verbose   bool   `yaml:"verbose"`
	LogFile   string `yaml:"log_file"`
	LogFormat string `yaml:"log_format"`
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		Template:         header.DefaultTemplate(),
		Target:           "0000",
		Workers:          runtime.NumCPU(),
		MaxNonce:         types.MaxNonce,
		Hash:             crypto.SHA256d,
		MaxDifficulty:    DefaultMaxDifficulty,
		ProgressEvery:    100_000,
		LogInterval:      5, // Default 5 seconds
		HeartbeatTimeout: 30 * time.Second,
		JoinTimeout:      5 * time.Second,
		CompareCounts:    []int{1, 2, 4},
		LogFormat:        "text",
	}
}

// Load reads a YAML file over the current values. Keys absent from the
// file keep their defaults.
func (c *Config) Load(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("cannot parse config %s: %w", filename, err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if _, err := c.ParseTarget(); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: got %d", types.ErrInvalidWorkerCount, c.Workers)
	}
	if c.MaxNonce == 0 || c.MaxNonce > types.MaxNonce {
		return fmt.Errorf("%w: got %d", types.ErrInvalidMaxNonce, c.MaxNonce)
	}
	if err := c.Template.Validate(); err != nil {
		return err
	}
	if _, err := crypto.HasherFactory(c.Hash); err != nil {
		return err
	}
	if c.ProgressEvery <= 0 {
		return ErrInvalidProgress
	}
	if c.HeartbeatTimeout <= 0 || c.JoinTimeout <= 0 {
		return ErrInvalidTimeouts
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return ErrInvalidLogFormat
	}
	return nil
}

// ParseTarget parses the target and applies the difficulty cap
func (c *Config) ParseTarget() (target.Target, error) {
	t, err := target.Parse(c.Target)
	if err != nil {
		return t, err
	}
	if c.MaxDifficulty > 0 && t.Len() > c.MaxDifficulty {
		return t, fmt.Errorf("%w: %d nibbles exceeds max difficulty %d",
			types.ErrInvalidTarget, t.Len(), c.MaxDifficulty)
	}
	return t, nil
}

// ValidateCompare validates the worker counts for a comparison run
func (c *Config) ValidateCompare() error {
	if len(c.CompareCounts) == 0 {
		return ErrNoCompareCounts
	}
	for _, n := range c.CompareCounts {
		if n < 1 {
			return fmt.Errorf("%w: got %d", types.ErrInvalidWorkerCount, n)
		}
	}
	return nil
}

// GetTargetDescription returns a human-readable description of the target
func (c *Config) GetTargetDescription() string {
	t, err := target.Parse(c.Target)
	if err != nil {
		return "invalid: " + c.Target
	}
	if t.Len() == 0 {
		return "any hash"
	}
	return fmt.Sprintf("prefix %s (~%.0f hashes expected)", t, t.ExpectedAttempts())
}

// StartTimestamp returns the configured timestamp or the current Unix time
func (c *Config) StartTimestamp() uint32 {
	if c.Timestamp != 0 {
		return c.Timestamp
	}
	return uint32(time.Now().Unix())
}
