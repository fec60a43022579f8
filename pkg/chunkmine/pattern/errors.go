package pattern

import (
	"errors"
	"fmt"
)

// ValidationError represents a schema-level validation error in a pattern
// file (missing required fields, unsupported version, size limits).
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// ConfigError is raised while building chunks and patterns: an invalid
// regular expression, a cleaner on an undeclared field, an unknown
// operation name. Mining never starts when one is returned.
type ConfigError struct {
	Pattern string // pattern id, may be empty
	Chunk   int    // 0-based chunk index, -1 for pattern-level errors
	Field   string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	where := "pattern"
	if e.Pattern != "" {
		where = fmt.Sprintf("pattern %q", e.Pattern)
	}
	if e.Chunk >= 0 {
		where += fmt.Sprintf(" chunk[%d]", e.Chunk)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", where, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", where, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// MatchFailure records a required chunk that failed after the pattern had
// begun. It is a per-attempt, recoverable condition: the caller decides
// whether to skip forward or abort the document.
type MatchFailure struct {
	Start int    // first matched line of the abandoned record
	Line  int    // line on which the chunk failed
	Chunk int    // index of the failing chunk
	Desc  string // description of the failing chunk
	Text  string // remaining text the chunk was tried against
}

func (f *MatchFailure) Error() string {
	return fmt.Sprintf("line %d: chunk[%d] %s did not match %q (record started at line %d)",
		f.Line, f.Chunk, f.Desc, f.Text, f.Start)
}

// MalformedDocumentError is returned when the line stream ends while a
// record is still being matched.
type MalformedDocumentError struct {
	Start   int // first matched line of the unfinished record
	Line    int // last line of the document
	Pending int // index of the first chunk that still required input
}

func (e *MalformedDocumentError) Error() string {
	return fmt.Sprintf("document ends mid-record: record started at line %d, input ended at line %d with chunk[%d] pending",
		e.Start, e.Line, e.Pending)
}

// Is reports whether target is ErrMalformedDocument.
func (e *MalformedDocumentError) Is(target error) bool {
	return target == ErrMalformedDocument
}

// CleanError is returned when a cleaning operation fails on text its chunk
// matched. This points at a pattern definition defect.
type CleanError struct {
	Line  int
	Field string
	Op    string
	Cause error
}

func (e *CleanError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: clean %s with %s: %v", e.Line, e.Field, e.Op, e.Cause)
	}
	return fmt.Sprintf("clean %s with %s: %v", e.Field, e.Op, e.Cause)
}

// Unwrap returns the underlying cause of the error.
func (e *CleanError) Unwrap() error {
	return e.Cause
}

// ErrMalformedDocument matches any *MalformedDocumentError with errors.Is.
var ErrMalformedDocument = errors.New("malformed document")
