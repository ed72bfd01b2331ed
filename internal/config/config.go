// Package config defines the service configuration model and loading rules.
// Configuration comes from an optional YAML file plus COSTAR_* environment
// overrides; provider credentials are environment-only and never written to
// the config file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the costargen service.
type Config struct {
	// Port is the HTTP listen port.
	Port int `yaml:"port"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug"`

	// LoggingToFile mirrors logs to a rotating file in addition to stderr.
	LoggingToFile bool `yaml:"logging-to-file"`

	// LogFilePath overrides the default rotating log location.
	LogFilePath string `yaml:"log-file-path,omitempty"`

	// APIKeys maps bearer tokens to authenticated subjects.
	APIKeys []APIKey `yaml:"api-keys,omitempty"`

	// AdminKeys grant access to the usage/stats endpoints.
	AdminKeys []string `yaml:"admin-keys,omitempty"`

	Generation Generation `yaml:"generation"`
	Quota      Quota      `yaml:"quota"`
	Usage      Usage      `yaml:"usage"`
	RateLimit  RateLimit  `yaml:"rate-limit"`
}

// APIKey binds a bearer token to a subject and plan tier.
type APIKey struct {
	Key     string `yaml:"key"`
	Subject string `yaml:"subject"`
	Plan    string `yaml:"plan"`
}

// Generation configures the fallback chain.
type Generation struct {
	// InvokeTimeoutSeconds bounds a single provider call.
	InvokeTimeoutSeconds int `yaml:"invoke-timeout-seconds"`

	// MaxProviderAttempts caps how many providers one request may try,
	// keeping worst-case chain latency at attempts * timeout.
	MaxProviderAttempts int `yaml:"max-provider-attempts"`

	// Temperature and MaxTokens are defaults when the request omits them.
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max-tokens"`
}

// Quota configures the admission ledger.
type Quota struct {
	// DSN selects the backing store: postgres://, sqlite:// or file://.
	// Defaults to the JSON flat file; empty means in-memory (tests).
	DSN string `yaml:"dsn,omitempty"`

	// AnonymousDailyLimit is the per-day cap for unauthenticated subjects.
	AnonymousDailyLimit int `yaml:"anonymous-daily-limit"`

	// DailyRetentionDays / MonthlyRetentionMonths bound how long superseded
	// period records are kept before pruning.
	DailyRetentionDays     int `yaml:"daily-retention-days"`
	MonthlyRetentionMonths int `yaml:"monthly-retention-months"`
}

// Usage configures the append-only usage log.
type Usage struct {
	// DSN selects the backend: postgres:// or sqlite://. Empty disables
	// persistence; counters remain in memory only.
	DSN string `yaml:"dsn,omitempty"`

	BatchSize            int `yaml:"batch-size"`
	FlushIntervalSeconds int `yaml:"flush-interval-seconds"`
	RetentionDays        int `yaml:"retention-days"`
}

// RateLimit configures the per-client burst limiter in front of the
// generate endpoint. This is an abuse guard, not quota accounting.
type RateLimit struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests-per-second"`
	Burst             int     `yaml:"burst"`
}

// NewDefault returns a config with production defaults applied.
func NewDefault() *Config {
	return &Config{
		Port: 8317,
		Generation: Generation{
			InvokeTimeoutSeconds: 30,
			MaxProviderAttempts:  3,
			Temperature:          0.7,
			MaxTokens:            2048,
		},
		Quota: Quota{
			DSN:                    "file://data/quota.json",
			AnonymousDailyLimit:    10,
			DailyRetentionDays:     7,
			MonthlyRetentionMonths: 3,
		},
		Usage: Usage{
			BatchSize:            100,
			FlushIntervalSeconds: 5,
			RetentionDays:        30,
		},
		RateLimit: RateLimit{
			Enabled:           true,
			RequestsPerSecond: 2,
			Burst:             5,
		},
	}
}

// Load reads the YAML file at path, layering it on top of defaults.
// A missing file is not an error; defaults are returned.
func Load(path string) (*Config, error) {
	cfg := NewDefault()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.sanitize()
	return cfg, nil
}

func (c *Config) sanitize() {
	if c.Port <= 0 || c.Port > 65535 {
		c.Port = 8317
	}
	if c.Generation.InvokeTimeoutSeconds <= 0 {
		c.Generation.InvokeTimeoutSeconds = 30
	}
	if c.Generation.MaxProviderAttempts <= 0 {
		c.Generation.MaxProviderAttempts = 3
	}
	if c.Generation.MaxTokens <= 0 {
		c.Generation.MaxTokens = 2048
	}
	if c.Generation.Temperature <= 0 || c.Generation.Temperature > 2 {
		c.Generation.Temperature = 0.7
	}
	if c.Quota.AnonymousDailyLimit <= 0 {
		c.Quota.AnonymousDailyLimit = 10
	}
	if c.Quota.DailyRetentionDays <= 0 {
		c.Quota.DailyRetentionDays = 7
	}
	if c.Quota.MonthlyRetentionMonths <= 0 {
		c.Quota.MonthlyRetentionMonths = 3
	}

	valid := c.APIKeys[:0]
	for _, k := range c.APIKeys {
		k.Key = strings.TrimSpace(k.Key)
		k.Subject = strings.TrimSpace(k.Subject)
		if k.Key == "" || k.Subject == "" {
			continue
		}
		if _, ok := ParsePlan(k.Plan); !ok {
			k.Plan = string(PlanFree)
		}
		valid = append(valid, k)
	}
	c.APIKeys = valid
}

// InvokeTimeout returns the per-provider call bound as a duration.
func (c *Config) InvokeTimeout() time.Duration {
	return time.Duration(c.Generation.InvokeTimeoutSeconds) * time.Second
}

// FlushInterval returns the usage flush cadence as a duration.
func (u Usage) FlushInterval() time.Duration {
	return time.Duration(u.FlushIntervalSeconds) * time.Second
}

// ApplyEnvOverrides applies COSTAR_* environment variables on top of the
// loaded config, for cloud deployments that cannot ship a config file.
func ApplyEnvOverrides(cfg *Config) {
	if port, ok := lookupInt("COSTAR_PORT"); ok {
		cfg.Port = port
	}
	if debug, ok := lookupBool("COSTAR_DEBUG"); ok {
		cfg.Debug = debug
	}
	if toFile, ok := lookupBool("COSTAR_LOGGING_TO_FILE"); ok {
		cfg.LoggingToFile = toFile
	}
	if dsn, ok := lookupEnv("COSTAR_QUOTA_DSN"); ok {
		cfg.Quota.DSN = dsn
	}
	if dsn, ok := lookupEnv("COSTAR_USAGE_DSN"); ok {
		cfg.Usage.DSN = dsn
	}
	if days, ok := lookupInt("COSTAR_USAGE_RETENTION_DAYS"); ok {
		cfg.Usage.RetentionDays = days
	}
	if limit, ok := lookupInt("COSTAR_ANON_DAILY_LIMIT"); ok {
		cfg.Quota.AnonymousDailyLimit = limit
	}
	if keys, ok := lookupEnv("COSTAR_ADMIN_KEYS"); ok {
		cfg.AdminKeys = nil
		for _, k := range strings.Split(keys, ",") {
			if trimmed := strings.TrimSpace(k); trimmed != "" {
				cfg.AdminKeys = append(cfg.AdminKeys, trimmed)
			}
		}
	}
}

func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func lookupInt(name string) (int, bool) {
	v, ok := lookupEnv(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func lookupBool(name string) (bool, bool) {
	v, ok := lookupEnv(name)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}
