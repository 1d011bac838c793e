// Package config holds the run configuration: defaults, an optional YAML
// file, and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nimda/routeros-brute/internal/interfaces"
	"github.com/nimda/routeros-brute/internal/resilience"
	"github.com/nimda/routeros-brute/internal/session"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Retry tunes the retry policy around each login attempt
type Retry struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Base         float64       `yaml:"base"`
}

// Breaker tunes the per-service circuit breaker
type Breaker struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// Config is everything an attack run needs
type Config struct {
	Target   string   `yaml:"target"`
	Services []string `yaml:"services"`
	APIPort  int      `yaml:"api_port"`
	SSL      bool     `yaml:"ssl"`
	SSLPort  int      `yaml:"ssl_port"`
	HTTPPort int      `yaml:"http_port"`
	HTTPS    bool     `yaml:"https"`
	FTPPort  int      `yaml:"ftp_port"`
	Charset  string   `yaml:"charset"`

	Users     string `yaml:"users"`
	Passwords string `yaml:"passwords"`
	Combo     string `yaml:"combo"`

	Threads       int           `yaml:"threads"`
	Delay         time.Duration `yaml:"delay"`
	Jitter        time.Duration `yaml:"jitter"`
	Timeout       time.Duration `yaml:"timeout"`
	StopOnSuccess bool          `yaml:"stop_on_success"`

	Retry   Retry   `yaml:"retry"`
	Breaker Breaker `yaml:"breaker"`

	Resume             bool          `yaml:"resume"`
	SessionsDir        string        `yaml:"sessions_dir"`
	Freshness          time.Duration `yaml:"freshness"`
	CheckpointInterval time.Duration `yaml:"checkpoint_interval"`
	CheckpointEvery    int           `yaml:"checkpoint_every"`
	StatsInterval      time.Duration `yaml:"stats_interval"`

	Validator string `yaml:"validate"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Services: []string{"api"},
		APIPort:  8728,
		SSLPort:  8729,
		HTTPPort: 80,
		FTPPort:  21,

		Threads: 2,
		Delay:   5 * time.Second,
		Timeout: 5 * time.Second,

		Retry: Retry{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     time.Minute,
			Base:         2,
		},
		Breaker: Breaker{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          time.Minute,
		},

		SessionsDir:        session.DefaultDir,
		Freshness:          session.DefaultFreshness,
		CheckpointInterval: 30 * time.Second,
		CheckpointEvery:    10,
		StatsInterval:      time.Minute,
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	zlog.Debug().Str("file", path).Msg("Loaded configuration file")
	return cfg, nil
}

// EnabledServices returns the configured services without duplicates. With
// SSL set, the binary API is tested over TLS instead of plain TCP.
func (c *Config) EnabledServices() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(name string) {
		name = strings.ToLower(strings.TrimSpace(name))
		if c.SSL && name == "api" {
			name = "api-ssl"
		}
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}
	for _, s := range c.Services {
		for _, part := range strings.Split(s, ",") {
			add(part)
		}
	}
	return out
}

// PortFor returns the configured port of a service, or 0 for its default
func (c *Config) PortFor(service string) int {
	switch service {
	case "api":
		return c.APIPort
	case "api-ssl":
		return c.SSLPort
	case "rest", "webfig":
		if c.HTTPS && c.HTTPPort == 80 {
			return 443
		}
		return c.HTTPPort
	case "ftp":
		return c.FTPPort
	default:
		return 0
	}
}

// ClientConfig builds the per-service client configuration. An explicit port
// in the target overrides the service port.
func (c *Config) ClientConfig(service, host string, targetPort int) interfaces.ClientConfig {
	cc := *interfaces.NewClientConfig(host)
	cc.Port = c.PortFor(service)
	if targetPort != 0 {
		cc.Port = targetPort
	}
	cc.Timeout = c.Timeout
	cc.Charset = c.Charset
	if service == "rest" || service == "webfig" {
		cc.TLS = c.HTTPS
	}
	return cc
}

// RetryPolicy converts the retry settings
func (c *Config) RetryPolicy() resilience.RetryPolicy {
	return resilience.RetryPolicy{
		MaxAttempts:  c.Retry.MaxAttempts,
		InitialDelay: c.Retry.InitialDelay,
		MaxDelay:     c.Retry.MaxDelay,
		Base:         c.Retry.Base,
	}
}

// NewWrapper builds the resilience wrapper for one service
func (c *Config) NewWrapper(service string) *resilience.Wrapper {
	breaker := resilience.NewCircuitBreaker(service, c.Breaker.FailureThreshold, c.Breaker.SuccessThreshold, c.Breaker.Timeout)
	return resilience.NewWrapper(c.RetryPolicy(), breaker)
}

// Validate checks the configuration before any work starts
func (c *Config) Validate() error {
	if err := interfaces.ValidateTarget(c.Target); err != nil {
		return err
	}
	if err := interfaces.ValidateWorkers(c.Threads); err != nil {
		return err
	}
	for _, p := range []int{c.APIPort, c.SSLPort, c.HTTPPort, c.FTPPort} {
		if err := interfaces.ValidatePort(p); err != nil {
			return err
		}
	}
	if len(c.EnabledServices()) == 0 {
		return &interfaces.ValidationError{Field: "services", Message: "at least one service is required"}
	}
	if c.Timeout <= 0 {
		return &interfaces.ValidationError{Field: "timeout", Message: "timeout must be positive"}
	}
	if c.Delay < 0 || c.Jitter < 0 {
		return &interfaces.ValidationError{Field: "delay", Message: "delay and jitter cannot be negative"}
	}
	if c.Retry.MaxAttempts < 1 {
		return &interfaces.ValidationError{Field: "retry.max_attempts", Message: "must be at least 1"}
	}
	if c.Retry.Base < 1 {
		return &interfaces.ValidationError{Field: "retry.base", Message: "must be at least 1"}
	}
	if c.Breaker.FailureThreshold < 1 || c.Breaker.SuccessThreshold < 1 {
		return &interfaces.ValidationError{Field: "breaker", Message: "thresholds must be at least 1"}
	}
	if c.Combo != "" {
		if err := interfaces.ValidateFile("combo", c.Combo); err != nil {
			return err
		}
	}
	return nil
}

// Summary returns the settings stored with a session record
func (c *Config) Summary() map[string]any {
	return map[string]any{
		"threads":         c.Threads,
		"delay":           c.Delay.String(),
		"jitter":          c.Jitter.String(),
		"timeout":         c.Timeout.String(),
		"stop_on_success": c.StopOnSuccess,
		"services":        c.EnabledServices(),
	}
}
