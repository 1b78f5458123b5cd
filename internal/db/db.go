package db

import (
	"context"

	domdoc "github.com/kailas-cloud/docindex/internal/domain/document"
)

// Snapshot is the full durable state: the id counter and every record in store order.
type Snapshot struct {
	NextID  int32
	Records []domdoc.Document
}

// Store is the metadata store facade combining all sub-interfaces.
type Store interface {
	Pinger
	Loader
	Writer
}

// Pinger checks store availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Loader reads the full store. It never fails: unreadable data is treated as absent.
type Loader interface {
	Load(ctx context.Context) Snapshot
}

// Writer rewrites the store.
type Writer interface {
	Save(ctx context.Context, snap Snapshot) error
	DeleteRecord(ctx context.Context, id int32) (bool, error)
}
