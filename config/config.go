// Package config provides configuration loading and validation for a
// readsplit.Router.
// Supports YAML files with environment variable overrides.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/ice-blockchain/go-readsplit"
	"github.com/ice-blockchain/go-readsplit/affinity"
	"github.com/ice-blockchain/go-readsplit/metrics"
)

const (
	EnvReadMaster       = "READSPLIT_READ_MASTER"
	EnvLogLevel         = "READSPLIT_LOG_LEVEL"
	EnvLogFormat        = "READSPLIT_LOG_FORMAT"
	EnvMetricsNamespace = "READSPLIT_METRICS_NAMESPACE"
)

const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config holds all configuration for a router.
type Config struct {
	// ReadMaster controls whether the primary serves read-only operations.
	ReadMaster bool           `yaml:"read_master"`
	Commands   CommandsConfig `yaml:"commands"`
	Log        LogConfig      `yaml:"log"`
	Metrics    MetricsConfig  `yaml:"metrics"`
}

// CommandsConfig lists operations registered on top of the defaults.
type CommandsConfig struct {
	Replica   []string `yaml:"replica"`
	Primary   []string `yaml:"primary"`
	Broadcast []string `yaml:"broadcast"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		ReadMaster: true,
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatJSON,
		},
		Metrics: MetricsConfig{
			Namespace: metrics.DefaultNamespace,
		},
	}
}

// Parse decodes a YAML document on top of the defaults, applies environment
// overrides and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %q: %w", path, err)
	}
	return Parse(data)
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs *multierror.Error

	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = multierror.Append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case LogFormatJSON, LogFormatText:
	default:
		errs = multierror.Append(errs,
			fmt.Errorf("log.format: unknown format %q, expected json or text", c.Log.Format))
	}
	if c.Metrics.Namespace == "" {
		errs = multierror.Append(errs, fmt.Errorf("metrics.namespace: must not be empty"))
	}
	if _, err := affinity.NewTable(c.Groups()); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("commands: %w", err))
	}

	return errs.ErrorOrNil()
}

// Groups returns the registered operations.
func (c *Config) Groups() affinity.Groups {
	return affinity.Groups{
		Replica:   c.Commands.Replica,
		Primary:   c.Commands.Primary,
		Broadcast: c.Commands.Broadcast,
	}
}

// NewLogger builds a logger writing to w according to the log section.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(c.Log.Format) == LogFormatText {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

// NewMetrics creates router metrics registered with reg under the
// configured namespace.
func (c *Config) NewMetrics(reg prometheus.Registerer) *metrics.RouterMetrics {
	return metrics.NewRouterMetricsWithRegistry(reg, c.Metrics.Namespace)
}

// Opts builds router options. The router logs to os.Stderr. Observer is left
// unset; use OptsWithRegistry to export the configured metrics.
func (c *Config) Opts(primary readsplit.Node, replicas ...readsplit.Node) (readsplit.Opts, error) {
	logger, err := c.NewLogger(os.Stderr)
	if err != nil {
		return readsplit.Opts{}, err
	}

	readMaster := c.ReadMaster
	return readsplit.Opts{
		Primary:    primary,
		Replicas:   replicas,
		ReadMaster: &readMaster,
		Commands:   c.Groups(),
		Logger:     readsplit.NewSlogLogger(logger),
	}, nil
}

// OptsWithRegistry is like Opts and also sets Observer to router metrics
// registered with reg under the configured namespace.
func (c *Config) OptsWithRegistry(reg prometheus.Registerer, primary readsplit.Node,
	replicas ...readsplit.Node) (readsplit.Opts, error) {
	opts, err := c.Opts(primary, replicas...)
	if err != nil {
		return readsplit.Opts{}, err
	}
	opts.Observer = c.NewMetrics(reg)
	return opts, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvReadMaster); ok {
		readMaster, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvReadMaster, err)
		}
		c.ReadMaster = readMaster
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv(EnvLogFormat); ok {
		c.Log.Format = v
	}
	if v, ok := os.LookupEnv(EnvMetricsNamespace); ok {
		c.Metrics.Namespace = v
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level: unknown level %q", s)
	}
}
