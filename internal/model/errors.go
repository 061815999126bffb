package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures so the CLI can pick an exit code.
type ErrorKind int

const (
	// KindConfig is a pre-flight configuration problem (e.g. missing token).
	KindConfig ErrorKind = iota + 1

	// KindGeocode means the street query could not be resolved to a box.
	KindGeocode

	// KindMetadata means the provider's metadata search failed fatally.
	KindMetadata

	// KindDownload means image downloads failed as a whole.
	KindDownload
)

// String returns the error kind name used in diagnostics.
func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "config error"
	case KindGeocode:
		return "geocode error"
	case KindMetadata:
		return "metadata error"
	case KindDownload:
		return "download error"
	default:
		return "error"
	}
}

// Error is a classified pipeline error.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// NewError wraps err with a kind and the operation that failed.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err carries a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
