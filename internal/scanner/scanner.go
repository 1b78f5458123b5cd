// Package scanner counts or detects keyword occurrences in document files, line by line.
package scanner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode"
	"unicode/utf8"

	"github.com/kailas-cloud/docindex/internal/domain"
)

// Mode selects how a keyword matches a line.
type Mode string

const (
	// Substring matches the keyword anywhere in the line.
	Substring Mode = "substring"
	// Word matches the keyword only when it is not adjacent to letters, digits or '_'.
	Word Mode = "word"
)

// IsValid reports whether m is a known mode.
func (m Mode) IsValid() bool { return m == Substring || m == Word }

const readBufferSize = 64 * 1024

// Scanner scans files on the local file system.
type Scanner struct {
	mode Mode
}

// New creates a Scanner. An unknown mode falls back to Substring.
func New(m Mode) *Scanner {
	if !m.IsValid() {
		m = Substring
	}
	return &Scanner{mode: m}
}

// Mode returns the matching mode.
func (s *Scanner) Mode() Mode { return s.mode }

// Count returns the number of lines in the file at path containing keyword.
func (s *Scanner) Count(ctx context.Context, path, keyword string) (int, error) {
	count := 0
	err := s.scan(ctx, path, keyword, func() bool {
		count++
		return true
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Contains reports whether any line of the file at path contains keyword.
func (s *Scanner) Contains(ctx context.Context, path, keyword string) (bool, error) {
	found := false
	err := s.scan(ctx, path, keyword, func() bool {
		found = true
		return false
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// scan calls onMatch for every matching line until it returns false.
func (s *Scanner) scan(ctx context.Context, path, keyword string, onMatch func() bool) error {
	if keyword == "" {
		return domain.ErrEmptyKeyword
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w: %w", path, domain.ErrPathUnreadable, err)
	}
	defer func() { _ = f.Close() }()

	kw := []byte(keyword)
	r := bufio.NewReaderSize(f, readBufferSize)
	var long []byte
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk, err := r.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			// Line longer than the buffer: accumulate before matching.
			long = append(long, chunk...)
			continue
		}
		line := chunk
		if long != nil {
			line = append(long, chunk...)
			long = nil
		}
		if len(line) > 0 && s.match(trimEOL(line), kw) && !onMatch() {
			return nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read %s: %w: %w", path, domain.ErrPathUnreadable, err)
		}
	}
}

func (s *Scanner) match(line, kw []byte) bool {
	if s.mode == Substring {
		return bytes.Contains(line, kw)
	}
	for off := 0; off+len(kw) <= len(line); {
		i := bytes.Index(line[off:], kw)
		if i < 0 {
			return false
		}
		start := off + i
		end := start + len(kw)
		if boundaryBefore(line, start) && boundaryAfter(line, end) {
			return true
		}
		_, size := utf8.DecodeRune(line[start:])
		off = start + size
	}
	return false
}

func trimEOL(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte("\n"))
	return bytes.TrimSuffix(line, []byte("\r"))
}

func boundaryBefore(line []byte, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRune(line[:i])
	return !isWordRune(r)
}

func boundaryAfter(line []byte, i int) bool {
	if i >= len(line) {
		return true
	}
	r, _ := utf8.DecodeRune(line[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
