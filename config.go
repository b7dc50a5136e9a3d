package agentry

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration written as a Go duration string ("30s", "2m") in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config is the file form of the Agent options. Zero fields keep the defaults.
type Config struct {
	Model             string           `yaml:"model"`
	Debug             bool             `yaml:"debug"`
	MaxIterations     int              `yaml:"max_iterations"`
	MaxRepairAttempts int              `yaml:"max_repair_attempts"`
	Dispatch          string           `yaml:"dispatch"`
	Retry             RetryConfig      `yaml:"retry"`
	Tools             ToolsConfig      `yaml:"tools"`
	Generation        GenerationConfig `yaml:"generation"`
}

// RetryConfig mirrors RetryPolicy.
type RetryConfig struct {
	MaxAttempts    int      `yaml:"max_attempts"`
	InitialBackoff Duration `yaml:"initial_backoff"`
	MaxBackoff     Duration `yaml:"max_backoff"`
}

// ToolsConfig holds registry settings.
type ToolsConfig struct {
	Timeout        *Duration `yaml:"timeout"`
	MaxConcurrency *int      `yaml:"max_concurrency"`
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML config. Unknown keys are rejected.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ConfigError{Reason: "parse config", Err: err}
	}
	if _, err := cfg.dispatchPolicy(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) dispatchPolicy() (DispatchPolicy, error) {
	switch c.Dispatch {
	case "", "parallel":
		return DispatchParallel, nil
	case "sequential":
		return DispatchSequential, nil
	default:
		return 0, &ConfigError{Reason: fmt.Sprintf("unknown dispatch policy %q", c.Dispatch)}
	}
}

// Options converts the config into Agent options.
func (c *Config) Options() []Option {
	var opts []Option
	if c.Model != "" {
		opts = append(opts, WithModel(c.Model))
	}
	if c.Debug {
		opts = append(opts, WithDebug(true))
	}
	if c.MaxIterations > 0 {
		opts = append(opts, WithMaxIterations(c.MaxIterations))
	}
	if c.MaxRepairAttempts > 0 {
		opts = append(opts, WithMaxRepairAttempts(c.MaxRepairAttempts))
	}
	if policy, err := c.dispatchPolicy(); err == nil {
		opts = append(opts, WithDispatchPolicy(policy))
	}
	retry := DefaultRetryPolicy()
	if c.Retry.MaxAttempts > 0 {
		retry.MaxAttempts = c.Retry.MaxAttempts
	}
	if c.Retry.InitialBackoff > 0 {
		retry.InitialBackoff = time.Duration(c.Retry.InitialBackoff)
	}
	if c.Retry.MaxBackoff > 0 {
		retry.MaxBackoff = time.Duration(c.Retry.MaxBackoff)
	}
	opts = append(opts, WithRetryPolicy(retry))
	var regOpts []RegistryOption
	if c.Tools.Timeout != nil {
		regOpts = append(regOpts, WithDefaultTimeout(time.Duration(*c.Tools.Timeout)))
	}
	if c.Tools.MaxConcurrency != nil {
		regOpts = append(regOpts, WithMaxConcurrency(*c.Tools.MaxConcurrency))
	}
	if len(regOpts) > 0 {
		opts = append(opts, WithRegistryOptions(regOpts...))
	}
	if c.Generation != (GenerationConfig{}) {
		opts = append(opts, WithGeneration(c.Generation))
	}
	return opts
}
