package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// ErrTransient indicates a network or server problem that may succeed on retry.
	ErrTransient = errors.New("transient failure")

	// ErrAuthInvalid indicates the portal rejected the configured credentials.
	ErrAuthInvalid = errors.New("authentication invalid")

	// Mapping Errors.

	// ErrUnknownField indicates a column name with no field specification.
	ErrUnknownField = errors.New("unknown field")

	// ErrIncompleteFieldMap indicates the field map and the entity column
	// registries disagree.
	ErrIncompleteFieldMap = errors.New("field map incomplete")

	// ErrMissingColumns indicates required spreadsheet headers are absent.
	ErrMissingColumns = errors.New("missing columns")

	// Record Errors.

	// ErrMissingMandatory indicates a mandatory column is absent from a row.
	ErrMissingMandatory = errors.New("mandatory field missing")

	// ErrMalformedReference indicates non-empty reference text that could not be parsed.
	ErrMalformedReference = errors.New("malformed reference")

	// ErrInvalidDate indicates a date value not in YYYY-MM-DD form.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidGeometry indicates a value that is not parseable WKT.
	ErrInvalidGeometry = errors.New("invalid geometry")

	// ErrInvalidTextFormat indicates a text format outside the supported set.
	ErrInvalidTextFormat = errors.New("invalid text format")

	// ErrUnknownFormat indicates a resource format missing from the format vocabulary.
	ErrUnknownFormat = errors.New("unknown format")

	// Build Errors.

	// ErrUnknownGroup indicates a referenced group is missing or not a group.
	ErrUnknownGroup = errors.New("unknown group")
)

// AbortKind distinguishes the two classes of run-halting failure.
type AbortKind int

const (
	// AbortConfiguration is a configuration or compatibility problem.
	// Retrying without changing the setup will not help.
	AbortConfiguration AbortKind = iota

	// AbortTransient is a network or server problem.
	AbortTransient
)

// String returns a human-readable description of the abort kind.
func (k AbortKind) String() string {
	switch k {
	case AbortConfiguration:
		return "configuration/compatibility problem"
	case AbortTransient:
		return "transient network problem"
	default:
		return "unknown problem"
	}
}

// AbortError halts the whole run. The CLI reports it once at top level.
type AbortError struct {
	Kind AbortKind
	Err  error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("aborted (%s): %v", e.Kind, e.Err)
}

func (e *AbortError) Unwrap() error {
	return e.Err
}

// Abort wraps err as a run-halting error. Errors wrapping ErrTransient
// become AbortTransient, everything else AbortConfiguration.
func Abort(err error) error {
	if err == nil {
		return nil
	}
	var existing *AbortError
	if errors.As(err, &existing) {
		return err
	}
	kind := AbortConfiguration
	if errors.Is(err, ErrTransient) {
		kind = AbortTransient
	}
	return &AbortError{Kind: kind, Err: err}
}

// IsAbort reports whether err halts the run.
func IsAbort(err error) bool {
	var abortErr *AbortError
	return errors.As(err, &abortErr)
}

// RecordError describes a recoverable problem with a single spreadsheet
// record or field. Position is the 1-based spreadsheet row (header is row 1).
type RecordError struct {
	Position int
	Column   string
	Raw      string
	Err      error
}

func (e *RecordError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("row %d: %v", e.Position, e.Err)
	}
	return fmt.Sprintf("row %d, column %q (value %q): %v", e.Position, e.Column, e.Raw, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
