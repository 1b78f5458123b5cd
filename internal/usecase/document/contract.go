package document

import (
	"context"

	domdoc "github.com/kailas-cloud/docindex/internal/domain/document"
)

// Cache defines the document table the service works against.
type Cache interface {
	Get(ctx context.Context, id int32) (domdoc.Document, error)
	Add(ctx context.Context, doc *domdoc.Document) (int32, error)
	Delete(ctx context.Context, id int32) error
	Flush(ctx context.Context) (bool, error)
}

// LineCounter counts lines of a file containing a keyword.
type LineCounter interface {
	Count(ctx context.Context, path, keyword string) (int, error)
}
