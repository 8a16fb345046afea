package sheet

import (
	"fmt"
	"time"
)

// AIService identifies one remote chat service.
type AIService string

const (
	ServiceChatGPT  AIService = "chatgpt"
	ServiceClaude   AIService = "claude"
	ServiceGemini   AIService = "gemini"
	ServiceGenspark AIService = "genspark"
	ServiceAIStudio AIService = "google_ai_studio"
)

// KnownServices lists every service the run controller can drive.
func KnownServices() []AIService {
	return []AIService{ServiceChatGPT, ServiceClaude, ServiceGemini, ServiceGenspark, ServiceAIStudio}
}

// IsKnownService reports whether name identifies a supported service.
func IsKnownService(name string) bool {
	for _, s := range KnownServices() {
		if string(s) == name {
			return true
		}
	}
	return false
}

// ColumnPosition holds the four 1-based column indices derived from one work
// column. Construct through NewColumnPosition; a zero value is not valid.
type ColumnPosition struct {
	Work   int `json:"work"`
	Status int `json:"status"`
	Error  int `json:"error"`
	Result int `json:"result"`
}

// NewColumnPosition derives the satellite positions for a work column.
func NewColumnPosition(workColumn int) (ColumnPosition, error) {
	status, errCol, result, err := SatellitePositions(workColumn)
	if err != nil {
		return ColumnPosition{}, &ConfigurationError{
			Field:  "work_column",
			Reason: err.Error(),
		}
	}
	return ColumnPosition{Work: workColumn, Status: status, Error: errCol, Result: result}, nil
}

// Letter returns the A1-style label of the work column.
func (p ColumnPosition) Letter() string {
	letter, err := IndexToLetter(p.Work)
	if err != nil {
		return "?"
	}
	return letter
}

// ColumnAIConfig describes which service and knobs drive one work column.
type ColumnAIConfig struct {
	Service  AIService      `json:"service"`
	Model    string         `json:"model"`
	Mode     string         `json:"mode,omitempty"`
	Features []string       `json:"features,omitempty"`
	Settings map[string]any `json:"settings,omitempty"`
}

// ToMap serializes the config to a plain mapping.
func (c ColumnAIConfig) ToMap() map[string]any {
	m := map[string]any{
		"service": string(c.Service),
		"model":   c.Model,
	}
	if c.Mode != "" {
		m["mode"] = c.Mode
	}
	if len(c.Features) > 0 {
		features := make([]string, len(c.Features))
		copy(features, c.Features)
		m["features"] = features
	}
	if len(c.Settings) > 0 {
		settings := make(map[string]any, len(c.Settings))
		for k, v := range c.Settings {
			settings[k] = v
		}
		m["settings"] = settings
	}
	return m
}

// ColumnAIConfigFromMap rebuilds a config from a plain mapping.
func ColumnAIConfigFromMap(m map[string]any) (ColumnAIConfig, error) {
	cfg := ColumnAIConfig{}

	service, _ := m["service"].(string)
	if service == "" {
		return cfg, &ConfigurationError{Field: "service", Reason: "missing or not a string"}
	}
	cfg.Service = AIService(service)

	if model, ok := m["model"].(string); ok {
		cfg.Model = model
	}
	if mode, ok := m["mode"].(string); ok {
		cfg.Mode = mode
	}
	switch features := m["features"].(type) {
	case []string:
		cfg.Features = append([]string(nil), features...)
	case []any:
		for _, f := range features {
			if s, ok := f.(string); ok {
				cfg.Features = append(cfg.Features, s)
			}
		}
	}
	if settings, ok := m["settings"].(map[string]any); ok {
		cfg.Settings = make(map[string]any, len(settings))
		for k, v := range settings {
			cfg.Settings[k] = v
		}
	}
	return cfg, nil
}

// Markers holds the literal cell strings that define the sheet layout and the
// processing lifecycle. The section marker is matched by substring, the work
// marker by exact equality; both are case-sensitive.
type Markers struct {
	Section          string `json:"section"`
	Work             string `json:"work"`
	StatusPending    string `json:"status_pending"`
	StatusInProgress string `json:"status_in_progress"`
	StatusDone       string `json:"status_done"`
}

// DefaultMarkers returns the marker set used when a config does not override
// them.
func DefaultMarkers() Markers {
	return Markers{
		Section:          "Work",
		Work:             "Copy",
		StatusPending:    "unprocessed",
		StatusInProgress: "processing",
		StatusDone:       "processed",
	}
}

// SheetStructure is the validated result of parsing a sheet layout.
// Invariants: DataStartRow = HeaderRow+1 and WorkColumns is non-empty.
type SheetStructure struct {
	HeaderRow    int              `json:"header_row"`
	DataStartRow int              `json:"data_start_row"`
	WorkColumns  []ColumnPosition `json:"work_columns"`
	Headers      []string         `json:"headers"`
	RowCount     int              `json:"row_count"`
	ColumnCount  int              `json:"column_count"`
}

// RunConfig aggregates everything a run needs: the target workbook, the
// default AI configuration, and the optional per-column overrides.
type RunConfig struct {
	Target           string
	Markers          Markers
	Default          ColumnAIConfig
	ColumnConfigs    map[int]ColumnAIConfig
	UseColumnConfigs bool
}

// NewRunConfig builds a run config with default markers.
func NewRunConfig(target string, defaultConfig ColumnAIConfig) *RunConfig {
	return &RunConfig{
		Target:        target,
		Markers:       DefaultMarkers(),
		Default:       defaultConfig,
		ColumnConfigs: make(map[int]ColumnAIConfig),
	}
}

// SetColumnConfig assigns a per-column config. Assigning an already-mapped
// column replaces the previous entry.
func (c *RunConfig) SetColumnConfig(column int, cfg ColumnAIConfig) {
	if c.ColumnConfigs == nil {
		c.ColumnConfigs = make(map[int]ColumnAIConfig)
	}
	c.ColumnConfigs[column] = cfg
}

// ConfigFor resolves the AI config for a work column: the column-specific
// mapping when present and enabled, the run default otherwise.
func (c *RunConfig) ConfigFor(column int) ColumnAIConfig {
	if c.UseColumnConfigs {
		if cfg, ok := c.ColumnConfigs[column]; ok {
			return cfg
		}
	}
	return c.Default
}

// TaskStatus is the lifecycle state of one work unit.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskError      TaskStatus = "error"
)

// terminal reports whether a status permits no further transitions.
func (s TaskStatus) terminal() bool {
	return s == TaskCompleted || s == TaskError
}

// WorkUnit is one (row, work-column) pair to be sent to an AI service.
// Identity is (Row, Position.Work). State transitions go through Start,
// Complete, and Fail; a unit never leaves a terminal state.
type WorkUnit struct {
	Row          int
	Position     ColumnPosition
	SourceText   string
	Config       ColumnAIConfig
	Status       TaskStatus
	Result       string
	ErrorMessage string
	CreatedAt    time.Time
	ProcessedAt  time.Time
	RetryCount   int
}

// NewWorkUnit creates a pending unit.
func NewWorkUnit(row int, pos ColumnPosition, text string, cfg ColumnAIConfig) *WorkUnit {
	return &WorkUnit{
		Row:        row,
		Position:   pos,
		SourceText: text,
		Config:     cfg,
		Status:     TaskPending,
		CreatedAt:  time.Now(),
	}
}

// ID returns a stable identifier for logs and progress lines.
func (u *WorkUnit) ID() string {
	return fmt.Sprintf("r%dc%d", u.Row, u.Position.Work)
}

// Start transitions the unit from Pending to InProgress.
func (u *WorkUnit) Start() bool {
	if u.Status != TaskPending {
		return false
	}
	u.Status = TaskInProgress
	return true
}

// Complete marks the unit done with its result. No-op on terminal units.
func (u *WorkUnit) Complete(result string) bool {
	if u.Status.terminal() {
		return false
	}
	u.Status = TaskCompleted
	u.Result = result
	u.ProcessedAt = time.Now()
	return true
}

// Fail marks the unit failed after its retry budget was exhausted.
// No-op on terminal units.
func (u *WorkUnit) Fail(message string) bool {
	if u.Status.terminal() {
		return false
	}
	u.Status = TaskError
	u.ErrorMessage = message
	u.ProcessedAt = time.Now()
	return true
}
