package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDocumentNotFound signals a missing document (neither cached nor on disk).
	ErrDocumentNotFound = errors.New("document not found")
	// ErrInvalidOperation signals an unknown request operation.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrPathUnreadable signals that a document file cannot be opened for reading.
	ErrPathUnreadable = errors.New("document path unreadable")
	// ErrPathTooLong signals a document path that does not fit the record layout.
	ErrPathTooLong = errors.New("document path too long")
	// ErrResourceExhausted signals that no new record can be created.
	ErrResourceExhausted = errors.New("resource exhausted")
	// ErrScanFailed signals that a document file could not be scanned for a keyword.
	ErrScanFailed = errors.New("keyword scan failed")
	// ErrEmptyKeyword signals a keyword operation without a keyword.
	ErrEmptyKeyword = errors.New("keyword is required")
)

// PathError wraps a path validation failure with the offending path.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s: %q", e.Err.Error(), e.Path)
}

func (e *PathError) Unwrap() error { return e.Err }

// NewPathError creates a path validation error.
func NewPathError(path string, err error) error {
	return &PathError{Path: path, Err: err}
}
