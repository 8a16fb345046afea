package sheet

import (
	"fmt"
	"strconv"
	"strings"

	"sheetdrive/internal/logging"
)

// ValidationLevel grades a single validation finding.
type ValidationLevel string

const (
	LevelError   ValidationLevel = "error"   // the mapping cannot be used
	LevelWarning ValidationLevel = "warning" // needs attention, run may proceed
	LevelInfo    ValidationLevel = "info"
)

// Validation error codes.
const (
	CodeInvalidColumn         = "INVALID_COLUMN"
	CodeInvalidColumnPosition = "INVALID_COLUMN_POSITION"
	CodeMissingService        = "MISSING_SERVICE"
	CodeUnknownService        = "UNKNOWN_SERVICE"
	CodeDuplicateColumn       = "DUPLICATE_COLUMN"
)

// ValidationResult is one finding from validating a column mapping.
type ValidationResult struct {
	Level      ValidationLevel
	Message    string
	Column     string
	Suggestion string
	Code       string
}

// ValidationReport aggregates the findings for a whole mapping.
type ValidationReport struct {
	Results []ValidationResult
}

// Usable reports whether the mapping can drive a run: true when no
// error-level findings exist. Warnings alone do not block a run.
func (r *ValidationReport) Usable() bool {
	for _, result := range r.Results {
		if result.Level == LevelError {
			return false
		}
	}
	return true
}

// Counts returns the number of findings per level.
func (r *ValidationReport) Counts() (errors, warnings, infos int) {
	for _, result := range r.Results {
		switch result.Level {
		case LevelError:
			errors++
		case LevelWarning:
			warnings++
		case LevelInfo:
			infos++
		}
	}
	return
}

// String renders the report for terminal display, errors first.
func (r *ValidationReport) String() string {
	if len(r.Results) == 0 {
		return "column configuration: no issues"
	}
	var b strings.Builder
	for _, level := range []ValidationLevel{LevelError, LevelWarning, LevelInfo} {
		for _, result := range r.Results {
			if result.Level != level {
				continue
			}
			if result.Column != "" {
				fmt.Fprintf(&b, "[%s] column %s: %s\n", level, result.Column, result.Message)
			} else {
				fmt.Fprintf(&b, "[%s] %s\n", level, result.Message)
			}
			if result.Suggestion != "" {
				fmt.Fprintf(&b, "        hint: %s\n", result.Suggestion)
			}
		}
	}
	errs, warns, _ := r.Counts()
	fmt.Fprintf(&b, "summary: %d errors, %d warnings", errs, warns)
	return b.String()
}

// ValidateColumnSettings validates a raw column-key to configuration mapping
// before it is committed to a RunConfig. Keys may be column letters ("C") or
// 1-based indices ("3").
func ValidateColumnSettings(settings map[string]map[string]any) *ValidationReport {
	log := logging.Get(logging.CategoryValidate)
	report := &ValidationReport{}

	if len(settings) == 0 {
		report.Results = append(report.Results, ValidationResult{
			Level:      LevelWarning,
			Message:    "column configuration is empty",
			Suggestion: "add an AI configuration for at least one column",
		})
		return report
	}

	seen := make(map[int]string)
	for _, entry := range sortedEntries(settings) {
		column, columnLabel, ok := resolveColumnKey(entry.key, report)
		if !ok {
			continue
		}

		if prev, dup := seen[column]; dup {
			report.Results = append(report.Results, ValidationResult{
				Level:   LevelError,
				Message: fmt.Sprintf("column index %d already configured as %q", column, prev),
				Column:  columnLabel,
				Code:    CodeDuplicateColumn,
			})
			continue
		}
		seen[column] = entry.key

		validateOneColumn(column, columnLabel, entry.value, report)
	}

	errs, warns, _ := report.Counts()
	log.Info("validated %d column configs: %d errors, %d warnings", len(settings), errs, warns)
	return report
}

type rawEntry struct {
	key   string
	value map[string]any
}

// sortedEntries yields the mapping in deterministic key order so reports and
// duplicate detection are stable run to run.
func sortedEntries(settings map[string]map[string]any) []rawEntry {
	entries := make([]rawEntry, 0, len(settings))
	for key, value := range settings {
		entries = append(entries, rawEntry{key: key, value: value})
	}
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].key < entries[j-1].key; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
	return entries
}

// resolveColumnKey turns a letter or numeric key into a validated column
// index. Findings are appended to the report; ok is false when the key is
// unusable.
func resolveColumnKey(key string, report *ValidationReport) (column int, label string, ok bool) {
	trimmed := strings.TrimSpace(key)

	if isAlpha(trimmed) {
		index, err := LetterToIndex(trimmed)
		if err != nil {
			report.Results = append(report.Results, ValidationResult{
				Level:   LevelError,
				Message: fmt.Sprintf("invalid column key %q", key),
				Column:  key,
				Code:    CodeInvalidColumn,
			})
			return 0, "", false
		}
		column = index
	} else {
		index, err := strconv.Atoi(trimmed)
		if err != nil {
			report.Results = append(report.Results, ValidationResult{
				Level:   LevelError,
				Message: fmt.Sprintf("invalid column key %q", key),
				Column:  key,
				Code:    CodeInvalidColumn,
			})
			return 0, "", false
		}
		column = index
	}

	label, err := IndexToLetter(column)
	if err != nil {
		label = trimmed
	}

	if column < MinWorkColumn {
		report.Results = append(report.Results, ValidationResult{
			Level:      LevelError,
			Message:    fmt.Sprintf("work column %s is left of column C", label),
			Column:     label,
			Suggestion: "work columns need a status and error column to their left; move the column to C or later",
			Code:       CodeInvalidColumnPosition,
		})
		return column, label, false
	}

	return column, label, true
}

// validateOneColumn checks the service and model fields of one raw config.
func validateOneColumn(column int, label string, raw map[string]any, report *ValidationReport) {
	service, _ := raw["service"].(string)
	if service == "" {
		report.Results = append(report.Results, ValidationResult{
			Level:   LevelError,
			Message: "no AI service configured",
			Column:  label,
			Code:    CodeMissingService,
		})
	} else if !IsKnownService(service) {
		report.Results = append(report.Results, ValidationResult{
			Level:      LevelError,
			Message:    fmt.Sprintf("unknown AI service %q", service),
			Column:     label,
			Suggestion: knownServicesHint(),
			Code:       CodeUnknownService,
		})
	}

	if model, _ := raw["model"].(string); model == "" {
		report.Results = append(report.Results, ValidationResult{
			Level:   LevelWarning,
			Message: "no model configured, the service default will be used",
			Column:  label,
		})
	}
}

func knownServicesHint() string {
	names := make([]string, 0, len(KnownServices()))
	for _, s := range KnownServices() {
		names = append(names, string(s))
	}
	return "valid services: " + strings.Join(names, ", ")
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
