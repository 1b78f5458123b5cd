package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docindex/internal/domain"
	domdoc "github.com/kailas-cloud/docindex/internal/domain/document"
	"github.com/kailas-cloud/docindex/internal/logger"
)

// Service handles document indexing, lookup, removal and line counting.
type Service struct {
	cache      Cache
	counter    LineCounter
	baseFolder string
}

// New creates a document service. Document paths are relative to baseFolder.
func New(cache Cache, counter LineCounter, baseFolder string) *Service {
	return &Service{cache: cache, counter: counter, baseFolder: baseFolder}
}

// BaseFolder returns the folder document paths are resolved against.
func (s *Service) BaseFolder() string { return s.baseFolder }

// Add indexes a new document after checking that its file can be read.
// Returns the assigned id.
func (s *Service) Add(ctx context.Context, title, authors, year, path string) (int32, error) {
	doc, err := domdoc.New(title, authors, year, path)
	if err != nil {
		return 0, fmt.Errorf("validate document: %w", err)
	}

	if err := s.checkReadable(doc.Path()); err != nil {
		return 0, err
	}

	id, err := s.cache.Add(ctx, &doc)
	if err != nil {
		return 0, fmt.Errorf("add document: %w", err)
	}

	logger.FromContext(ctx).Debug("Document indexed",
		zap.Int32("id", id), zap.String("path", doc.Path()))
	return id, nil
}

// Get returns the document with id.
func (s *Service) Get(ctx context.Context, id int32) (domdoc.Document, error) {
	doc, err := s.cache.Get(ctx, id)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// Delete removes the document with id from the cache and the store.
func (s *Service) Delete(ctx context.Context, id int32) error {
	if err := s.cache.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// CountLines returns how many lines of the document's file contain keyword.
func (s *Service) CountLines(ctx context.Context, id int32, keyword string) (int, error) {
	doc, err := s.cache.Get(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("get document: %w", err)
	}

	n, err := s.counter.Count(ctx, s.resolve(doc.Path()), keyword)
	if err != nil {
		return 0, fmt.Errorf("document %d: %w: %w", id, domain.ErrScanFailed, err)
	}
	return n, nil
}

// Shutdown persists pending changes. Returns whether the store was written.
func (s *Service) Shutdown(ctx context.Context) (bool, error) {
	written, err := s.cache.Flush(ctx)
	if err != nil {
		return false, fmt.Errorf("flush cache: %w", err)
	}
	return written, nil
}

func (s *Service) checkReadable(path string) error {
	f, err := os.Open(s.resolve(path))
	if err != nil {
		return domain.NewPathError(path, fmt.Errorf("%w: %w", domain.ErrPathUnreadable, err))
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return domain.NewPathError(path, fmt.Errorf("%w: %w", domain.ErrPathUnreadable, err))
	}
	if !info.Mode().IsRegular() {
		return domain.NewPathError(path, fmt.Errorf("%w: not a regular file", domain.ErrPathUnreadable))
	}
	return nil
}

func (s *Service) resolve(path string) string {
	return filepath.Join(s.baseFolder, path)
}
