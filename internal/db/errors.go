package db

import "errors"

// Sentinel errors for store operations.
var (
	ErrCorrupt  = errors.New("db: store file corrupt")
	ErrChecksum = errors.New("db: store checksum mismatch")
)

// Op constants name the file operation for error context.
const (
	OpOpen   = "OPEN"
	OpRead   = "READ"
	OpWrite  = "WRITE"
	OpSync   = "SYNC"
	OpRename = "RENAME"
	OpStat   = "STAT"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
