package ferry

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zoobzio/ferry/wire"
)

// Limits applied when a Config leaves them unset.
const (
	DefaultMaxDepth = wire.DefaultMaxDepth
	DefaultMaxSize  = wire.DefaultMaxSize
)

// minDocumentSize is the size of an empty document.
const minDocumentSize = 5

// ErrInvalidConfig indicates a configuration value is out of range.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the call-scoped conversion configuration. It is a plain value,
// copied into every call, and never holds a reference to host state.
type Config struct {
	MaxDepth int     `yaml:"max_depth"`
	MaxSize  int     `yaml:"max_size"`
	Strict   bool    `yaml:"strict"`
	Rules    Ruleset `yaml:"rules"`
}

// DefaultConfig returns the server-equivalent limits and the default ruleset.
func DefaultConfig() Config {
	return Config{
		MaxDepth: DefaultMaxDepth,
		MaxSize:  DefaultMaxSize,
		Rules:    DefaultRuleset(),
	}
}

// Validate checks that the limits are usable.
func (c Config) Validate() error {
	if c.MaxDepth < 1 {
		return fmt.Errorf("%w: max_depth must be at least 1, got %d", ErrInvalidConfig, c.MaxDepth)
	}
	if c.MaxSize < minDocumentSize {
		return fmt.Errorf("%w: max_size must be at least %d, got %d", ErrInvalidConfig, minDocumentSize, c.MaxSize)
	}
	for _, p := range c.Rules.OperatorPrefixes {
		if p == "" {
			return fmt.Errorf("%w: operator prefix must not be empty", ErrInvalidConfig)
		}
	}
	return nil
}

func (c Config) limits() wire.Limits {
	return wire.Limits{
		MaxDepth: c.MaxDepth,
		MaxSize:  c.MaxSize,
		Strict:   c.Strict,
	}
}

// ParseConfig reads a YAML configuration. Keys that are absent keep their
// defaults.
//
//	max_depth: 64
//	max_size: 1048576
//	strict: true
//	rules:
//	  operator_prefixes: ["$"]
//	  allowed_operator_keys: ["$ref", "$id", "$db"]
//	  reject_dotted_keys: false
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithMaxDepth overrides the nesting ceiling.
func WithMaxDepth(n int) Option {
	return func(e *Engine) { e.cfg.MaxDepth = n }
}

// WithMaxSize overrides the encoded document size ceiling in bytes.
func WithMaxSize(n int) Option {
	return func(e *Engine) { e.cfg.MaxSize = n }
}

// WithStrict rejects deprecated wire types on read.
func WithStrict(strict bool) Option {
	return func(e *Engine) { e.cfg.Strict = strict }
}

// WithRules replaces the security ruleset.
func WithRules(r Ruleset) Option {
	return func(e *Engine) { e.cfg.Rules = r }
}

// WithLock sets the host lock released around wire conversion.
func WithLock(l Lock) Option {
	return func(e *Engine) { e.lock = l }
}
