package series

import (
	"errors"
	"fmt"
)

// ErrEmptySeries is returned when an input table yields zero rows.
var ErrEmptySeries = errors.New("series is empty")

// FormatError reports an input table whose shape is unusable: a required
// column is absent or the document itself is malformed.
type FormatError struct {
	Column string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("format error: column %q: %s", e.Column, e.Reason)
	}
	return "format error: " + e.Reason
}

// ParseError reports a cell that could not be converted. Row is 1-based and
// counts data rows only (the header is not a row).
type ParseError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: row %d column %q value %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
