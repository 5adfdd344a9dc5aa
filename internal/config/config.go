// Package config loads application configuration from defaults, an optional
// YAML file, and environment variable overrides, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ProjectDir   string `json:"project_dir" yaml:"project_dir"`
	DataDir      string `json:"data_dir" yaml:"data_dir"`
	DataCacheDir string `json:"data_cache_dir" yaml:"data_cache_dir"`
	ResultsDir   string `json:"results_dir" yaml:"results_dir"`

	// Account defaults used when no saved state exists yet.
	InitialCash      float64 `json:"initial_cash" yaml:"initial_cash"`
	MaxAllocationPct float64 `json:"max_allocation_pct" yaml:"max_allocation_pct"`
	MinCashReserve   float64 `json:"min_cash_reserve" yaml:"min_cash_reserve"`

	// Reflection queue tunables.
	LookforwardDays      int     `json:"lookforward_days" yaml:"lookforward_days"`
	MinReflectionAgeDays int     `json:"min_reflection_age_days" yaml:"min_reflection_age_days"`
	ReflectionMaxRetries int     `json:"reflection_max_retries" yaml:"reflection_max_retries"`
	RetentionDays        int     `json:"retention_days" yaml:"retention_days"`
	SuccessThreshold     float64 `json:"success_threshold" yaml:"success_threshold"`
	FailureThreshold     float64 `json:"failure_threshold" yaml:"failure_threshold"`

	// Price vendor selection: "yahoo", "stooq" or "auto" for fallback.
	PriceSource  string `json:"price_source" yaml:"price_source"`
	CacheEnabled bool   `json:"cache_enabled" yaml:"cache_enabled"`

	Debug    bool   `json:"debug" yaml:"debug"`
	LogLevel string `json:"log_level" yaml:"log_level"`
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()

	return &Config{
		ProjectDir:   currentDir,
		DataDir:      filepath.Join(currentDir, "data"),
		DataCacheDir: filepath.Join(currentDir, "data", "cache"),
		ResultsDir:   filepath.Join(currentDir, "results"),

		InitialCash:      100000,
		MaxAllocationPct: 0.5,
		MinCashReserve:   1000,

		LookforwardDays:      5,
		MinReflectionAgeDays: 5,
		ReflectionMaxRetries: 3,
		RetentionDays:        90,
		SuccessThreshold:     0.05,
		FailureThreshold:     -0.05,

		PriceSource:  "auto",
		CacheEnabled: true,

		Debug:    false,
		LogLevel: "info",
	}
}

// Load builds the config from defaults, then the YAML file at path when it
// exists, then environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("AGENTFOLIO_DATA_DIR"); v != "" {
		c.DataDir = v
		c.DataCacheDir = filepath.Join(v, "cache")
	}
	if v := os.Getenv("AGENTFOLIO_RESULTS_DIR"); v != "" {
		c.ResultsDir = v
	}
	if v := os.Getenv("AGENTFOLIO_INITIAL_CASH"); v != "" {
		if cash, err := strconv.ParseFloat(v, 64); err == nil {
			c.InitialCash = cash
		}
	}
	if v := os.Getenv("AGENTFOLIO_PRICE_SOURCE"); v != "" {
		c.PriceSource = v
	}
	if v := os.Getenv("AGENTFOLIO_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("AGENTFOLIO_DEBUG"); v != "" {
		if debug, err := strconv.ParseBool(v); err == nil {
			c.Debug = debug
		}
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.InitialCash < 0 {
		return fmt.Errorf("initial_cash must be non-negative, got %v", c.InitialCash)
	}
	if c.MinCashReserve < 0 {
		return fmt.Errorf("min_cash_reserve must be non-negative, got %v", c.MinCashReserve)
	}
	if c.LookforwardDays <= 0 {
		return fmt.Errorf("lookforward_days must be positive, got %d", c.LookforwardDays)
	}
	if c.MinReflectionAgeDays < 0 {
		return fmt.Errorf("min_reflection_age_days must be non-negative, got %d", c.MinReflectionAgeDays)
	}
	if c.SuccessThreshold < c.FailureThreshold {
		return fmt.Errorf("success_threshold %v below failure_threshold %v", c.SuccessThreshold, c.FailureThreshold)
	}
	switch c.PriceSource {
	case "auto", "yahoo", "stooq":
	default:
		return fmt.Errorf("unknown price_source %q", c.PriceSource)
	}
	return nil
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir, c.DataCacheDir, c.ResultsDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// AccountStatePath is the persisted account document.
func (c *Config) AccountStatePath() string {
	return filepath.Join(c.DataDir, "account_state.json")
}

// QueuePath is the pending reflection document.
func (c *Config) QueuePath() string {
	return filepath.Join(c.DataDir, "pending_reflections.json")
}

// TradeLogPath is the CSV audit journal.
func (c *Config) TradeLogPath() string {
	return filepath.Join(c.ResultsDir, "trade_log.csv")
}

// LessonDBPath is the sqlite lesson store.
func (c *Config) LessonDBPath() string {
	return filepath.Join(c.DataDir, "lessons.db")
}
