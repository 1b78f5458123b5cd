package request

import (
	"fmt"
	"strings"
)

// Search parameter limits.
const (
	// MaxKeywordSize is the maximum keyword length in bytes (wire field width).
	MaxKeywordSize = 64
	// MaxWorkers caps the number of parallel search workers.
	MaxWorkers = 20
	// DefaultSerialThreshold is the task count below which search always runs serially.
	DefaultSerialThreshold = 10
)

// Request is a validated keyword search.
type Request struct {
	keyword string
	workers int
}

// New validates the keyword and records the client's worker hint.
// The hint is kept raw; Workers clamps it against the actual task count.
func New(keyword string, workers int) (Request, error) {
	if keyword == "" {
		return Request{}, fmt.Errorf("keyword is required")
	}
	if len(keyword) > MaxKeywordSize {
		return Request{}, fmt.Errorf("keyword too long (max %d bytes)", MaxKeywordSize)
	}
	if strings.ContainsAny(keyword, "\n\x00") {
		return Request{}, fmt.Errorf("keyword must be a single line")
	}
	return Request{keyword: keyword, workers: workers}, nil
}

// Keyword returns the search keyword.
func (r *Request) Keyword() string { return r.keyword }

// RequestedWorkers returns the unclamped worker hint.
func (r *Request) RequestedWorkers() int { return r.workers }

// Workers clamps the hint to max(1, min(hint, tasks, limit)).
func (r *Request) Workers(tasks, limit int) int {
	return ClampWorkers(r.workers, tasks, limit)
}

// ClampWorkers returns max(1, min(requested, tasks, limit)).
func ClampWorkers(requested, tasks, limit int) int {
	p := requested
	if p > tasks {
		p = tasks
	}
	if limit > 0 && p > limit {
		p = limit
	}
	if p < 1 {
		p = 1
	}
	return p
}
