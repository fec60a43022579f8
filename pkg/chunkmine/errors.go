package chunkmine

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrUnknownDocument is returned when exporting an index that was never
	// mined or whose bucket was evicted.
	ErrUnknownDocument = errors.New("unknown document index")

	// ErrNoRecords is returned when exporting an index that was mined but
	// produced no records.
	ErrNoRecords = errors.New("no records mined")

	// ErrNoInput is returned when a document is loaded from zero paths.
	ErrNoInput = errors.New("no input files")
)

// LoadError describes a failure to read one input file of a document.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// MineError wraps an error that stopped mining a document.
type MineError struct {
	Index string
	Line  int // line the cursor was on, 0 if unknown
	Err   error
}

func (e *MineError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("mine %q at line %d: %v", e.Index, e.Line, e.Err)
	}
	return fmt.Sprintf("mine %q: %v", e.Index, e.Err)
}

func (e *MineError) Unwrap() error {
	return e.Err
}
