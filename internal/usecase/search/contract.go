package search

import (
	"context"

	"github.com/kailas-cloud/docindex/internal/db"
	domdoc "github.com/kailas-cloud/docindex/internal/domain/document"
)

// ResidentReader exposes the documents currently held in memory.
type ResidentReader interface {
	Resident() []domdoc.Document
}

// SnapshotLoader loads the persisted metadata.
type SnapshotLoader interface {
	Load(ctx context.Context) db.Snapshot
}

// Matcher reports whether a file contains a keyword.
type Matcher interface {
	Contains(ctx context.Context, path, keyword string) (bool, error)
}
