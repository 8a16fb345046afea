// Package config loads and validates the sheetdrive run configuration from
// JSON, with environment overrides for the fields that change per invocation.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sheetdrive/internal/browser"
	"sheetdrive/internal/sheet"
)

// AutomationConfig tunes the run controller.
type AutomationConfig struct {
	MaxAttempts    int `json:"max_attempts"`
	BaseDelayMs    int `json:"base_delay_ms"`
	UnitDelayMs    int `json:"unit_delay_ms"`
	AwaitTimeoutMs int `json:"await_timeout_ms"`
}

// BaseDelay is the first retry delay.
func (c AutomationConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMs) * time.Millisecond
}

// UnitDelay is the pacing delay between units.
func (c AutomationConfig) UnitDelay() time.Duration {
	return time.Duration(c.UnitDelayMs) * time.Millisecond
}

// AwaitTimeout bounds each await-response step.
func (c AutomationConfig) AwaitTimeout() time.Duration {
	return time.Duration(c.AwaitTimeoutMs) * time.Millisecond
}

// SessionConfig locates the persisted browser sessions.
type SessionConfig struct {
	Dir          string `json:"dir"`
	ValidityDays int    `json:"validity_days"`
}

// Validity is how long a saved session is trusted.
func (c SessionConfig) Validity() time.Duration {
	days := c.ValidityDays
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
}

// HistoryConfig locates the run ledger.
type HistoryConfig struct {
	Path string `json:"path"`
}

// LoggingConfig mirrors internal/logging's view of .sheetdrive/config.json.
type LoggingConfig struct {
	DebugMode  bool            `json:"debug_mode"`
	Level      string          `json:"level"`
	Categories map[string]bool `json:"categories,omitempty"`
}

// Config is the whole sheetdrive configuration.
type Config struct {
	Workbook string `json:"workbook"`
	Sheet    string `json:"sheet"`
	Profiles string `json:"profiles"`

	Markers          sheet.Markers             `json:"markers"`
	DefaultAI        map[string]any            `json:"default_ai"`
	Columns          map[string]map[string]any `json:"columns,omitempty"`
	UseColumnConfigs bool                      `json:"use_column_configs"`

	Automation AutomationConfig `json:"automation"`
	Browser    browser.Config   `json:"browser"`
	Session    SessionConfig    `json:"session"`
	History    HistoryConfig    `json:"history"`
	Logging    LoggingConfig    `json:"logging"`
}

// Default returns a config with every tunable at its default.
func Default() *Config {
	return &Config{
		Profiles: "profiles.yaml",
		Markers:  sheet.DefaultMarkers(),
		DefaultAI: map[string]any{
			"service": string(sheet.ServiceChatGPT),
			"model":   "gpt-4",
		},
		Automation: AutomationConfig{
			MaxAttempts:    3,
			BaseDelayMs:    2000,
			UnitDelayMs:    3000,
			AwaitTimeoutMs: 120000,
		},
		Browser: browser.DefaultConfig(),
		Session: SessionConfig{Dir: "sessions", ValidityDays: 7},
		History: HistoryConfig{Path: ".sheetdrive/history.db"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path on top of the defaults and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets a shell override the per-invocation fields without
// editing the config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SHEETDRIVE_WORKBOOK"); v != "" {
		c.Workbook = v
	}
	if v := os.Getenv("SHEETDRIVE_SHEET"); v != "" {
		c.Sheet = v
	}
	if v := os.Getenv("SHEETDRIVE_PROFILES"); v != "" {
		c.Profiles = v
	}
	if v := os.Getenv("SHEETDRIVE_HEADLESS"); v != "" {
		if headless, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = headless
		}
	}
}

// Validate checks the fields a run cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Workbook) == "" {
		return &sheet.ConfigurationError{Field: "workbook", Reason: "required"}
	}
	if c.Markers.Section == "" || c.Markers.Work == "" {
		return &sheet.ConfigurationError{Field: "markers", Reason: "section and work markers are required"}
	}
	if c.Markers.StatusPending == "" {
		return &sheet.ConfigurationError{Field: "markers.status_pending", Reason: "required"}
	}
	if c.Automation.MaxAttempts < 1 {
		return &sheet.ConfigurationError{Field: "automation.max_attempts", Reason: "must be at least 1"}
	}
	if _, err := sheet.ColumnAIConfigFromMap(c.DefaultAI); err != nil {
		return fmt.Errorf("default_ai: %w", err)
	}
	return nil
}

// RunConfig validates the column mapping and assembles the run config the
// extractor and controller consume. The validation report is returned so the
// CLI can surface warnings even when the mapping is usable.
func (c *Config) RunConfig() (*sheet.RunConfig, *sheet.ValidationReport, error) {
	defaultAI, err := sheet.ColumnAIConfigFromMap(c.DefaultAI)
	if err != nil {
		return nil, nil, fmt.Errorf("default_ai: %w", err)
	}

	run := sheet.NewRunConfig(c.Workbook, defaultAI)
	run.Markers = c.Markers
	run.UseColumnConfigs = c.UseColumnConfigs

	report := sheet.ValidateColumnSettings(c.Columns)
	if len(c.Columns) == 0 {
		// An empty mapping means every column uses the default; the
		// validator's warning is informational here.
		return run, report, nil
	}
	if !report.Usable() {
		return nil, report, fmt.Errorf("column configuration is not usable")
	}

	for key, raw := range c.Columns {
		column, err := resolveColumnKey(key)
		if err != nil {
			return nil, report, err
		}
		cfg, err := sheet.ColumnAIConfigFromMap(raw)
		if err != nil {
			return nil, report, fmt.Errorf("column %s: %w", key, err)
		}
		run.SetColumnConfig(column, cfg)
	}
	return run, report, nil
}

func resolveColumnKey(key string) (int, error) {
	trimmed := strings.TrimSpace(key)
	if n, err := strconv.Atoi(trimmed); err == nil {
		return n, nil
	}
	return sheet.LetterToIndex(trimmed)
}
