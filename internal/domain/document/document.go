package document

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/docindex/internal/domain"
)

// Field widths of the fixed-size record layout, in bytes.
const (
	MaxTitleSize   = 200
	MaxAuthorsSize = 200
	MaxYearSize    = 4
	MaxPathSize    = 200
)

// Document is the metadata of one indexed document (immutable value object).
type Document struct {
	id      int32
	title   string
	authors string
	year    string
	path    string
}

// New validates and creates a Document without an id (the cache assigns it).
// Title, authors and year are truncated to their field widths; an over-long
// or empty path is rejected because it would no longer point at the file.
func New(title, authors, year, path string) (Document, error) {
	if path == "" {
		return Document{}, fmt.Errorf("document path is required: %w", domain.ErrPathUnreadable)
	}
	if len(path) > MaxPathSize {
		return Document{}, domain.NewPathError(path, fmt.Errorf("max %d bytes: %w", MaxPathSize, domain.ErrPathTooLong))
	}
	if strings.IndexByte(path, 0) >= 0 {
		return Document{}, fmt.Errorf("document path contains NUL byte: %w", domain.ErrPathUnreadable)
	}

	return Document{
		title:   truncate(title, MaxTitleSize),
		authors: truncate(authors, MaxAuthorsSize),
		year:    truncate(year, MaxYearSize),
		path:    path,
	}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(id int32, title, authors, year, path string) Document {
	return Document{id: id, title: title, authors: authors, year: year, path: path}
}

// ID returns the document identifier (0 until assigned).
func (d *Document) ID() int32 { return d.id }

// Title returns the document title.
func (d *Document) Title() string { return d.title }

// Authors returns the document authors.
func (d *Document) Authors() string { return d.authors }

// Year returns the publication year.
func (d *Document) Year() string { return d.year }

// Path returns the file path relative to the base folder.
func (d *Document) Path() string { return d.path }

// WithID returns a copy carrying the given id.
func (d *Document) WithID(id int32) Document {
	return Document{id: id, title: d.title, authors: d.authors, year: d.year, path: d.path}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
