package sheet

import (
	"errors"
	"fmt"
)

// ErrHeaderNotFound indicates no row within the scan window carried the
// section marker in its first cell.
var ErrHeaderNotFound = errors.New("header row not found")

// ErrNoWorkColumns indicates the header row was located but no usable work
// column survived validation.
var ErrNoWorkColumns = errors.New("no work columns found")

// InvalidColumnLabelError reports a column label that is not a pure A-Z string.
type InvalidColumnLabelError struct {
	Label string
}

func (e *InvalidColumnLabelError) Error() string {
	return fmt.Sprintf("invalid column label %q", e.Label)
}

// InvalidColumnPositionError reports a column index that cannot host a work
// column (satellite positions would fall off the sheet).
type InvalidColumnPositionError struct {
	Column int
	Reason string
}

func (e *InvalidColumnPositionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid column position %d: %s", e.Column, e.Reason)
	}
	return fmt.Sprintf("invalid column position %d", e.Column)
}

// ConfigurationError reports a malformed run or column configuration. It is
// fatal to setup of the affected scope, not to a whole run.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}
