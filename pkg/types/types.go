package types

import (
	"fmt"
)

type ExitError interface {
	Error() string
	ExitStatus() int
}

// InvalidInputError is returned when the input path cannot be read or is not a must-gather bundle.
type InvalidInputError struct {
	Path   string
	Reason string
	Err    error
}

func (e *InvalidInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid input %q: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid input %q: %s", e.Path, e.Reason)
}

func (e *InvalidInputError) Unwrap() error {
	return e.Err
}

func (e *InvalidInputError) ExitStatus() int {
	return 2
}

func NewInvalidInputError(path, reason string, err error) *InvalidInputError {
	return &InvalidInputError{Path: path, Reason: reason, Err: err}
}

// ExtractionError is returned when an archive could not be unpacked.
// No temporary files are left behind when it is returned.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract %q: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func (e *ExtractionError) ExitStatus() int {
	return 3
}

func NewExtractionError(path string, err error) *ExtractionError {
	return &ExtractionError{Path: path, Err: err}
}

type WarningKind string

const (
	// MalformedResource marks a file or document that could not be decoded or projected.
	MalformedResource WarningKind = "MalformedResource"
	// MissingDirectory marks an expected resource directory that is absent from the bundle.
	MissingDirectory WarningKind = "MissingDirectory"
	// AmbiguousLayout marks a directory lookup that had several candidates.
	AmbiguousLayout WarningKind = "AmbiguousLayout"
)

// Warning is a non-fatal problem found while reading a bundle.
type Warning struct {
	Kind    WarningKind `json:"kind" yaml:"kind"`
	Path    string      `json:"path" yaml:"path"`
	Message string      `json:"message" yaml:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s: %s", w.Kind, w.Path, w.Message)
}

func NewWarning(kind WarningKind, path string, format string, args ...interface{}) Warning {
	return Warning{Kind: kind, Path: path, Message: fmt.Sprintf(format, args...)}
}
