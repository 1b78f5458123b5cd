package ipc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docindex/internal/db/file"
	"github.com/kailas-cloud/docindex/internal/domain"
	domdoc "github.com/kailas-cloud/docindex/internal/domain/document"
	"github.com/kailas-cloud/docindex/internal/domain/search/request"
	"github.com/kailas-cloud/docindex/internal/domain/search/result"
	docrepo "github.com/kailas-cloud/docindex/internal/repository/document"
	"github.com/kailas-cloud/docindex/internal/scanner"
	documentuc "github.com/kailas-cloud/docindex/internal/usecase/document"
	searchuc "github.com/kailas-cloud/docindex/internal/usecase/search"
)

// --- Mocks ---

type mockDocuments struct {
	addErr      error
	getErr      error
	deleteErr   error
	countErr    error
	shutdownErr error
	panicOnGet  bool
	shutdowns   int
}

func (m *mockDocuments) Add(_ context.Context, _, _, _, _ string) (int32, error) {
	return 5, m.addErr
}

func (m *mockDocuments) Get(_ context.Context, id int32) (domdoc.Document, error) {
	if m.panicOnGet {
		panic("boom")
	}
	return domdoc.Reconstruct(id, "T", "A", "2000", "p"), m.getErr
}

func (m *mockDocuments) Delete(_ context.Context, _ int32) error { return m.deleteErr }

func (m *mockDocuments) CountLines(_ context.Context, _ int32, _ string) (int, error) {
	return 2, m.countErr
}

func (m *mockDocuments) Shutdown(_ context.Context) (bool, error) {
	m.shutdowns++
	return m.shutdownErr == nil, m.shutdownErr
}

type mockSearcher struct {
	ids    []int32
	called bool
}

func (m *mockSearcher) Search(_ context.Context, _ *request.Request) result.Result {
	m.called = true
	return result.New(m.ids, result.DefaultMaxIDs)
}

// --- Helpers ---

func process(p *Processor, req Request) Response {
	resp, _ := p.Process(context.Background(), &req)
	return resp
}

func byID(op Op, id int32) Request {
	return Request{Op: op, Document: domdoc.Reconstruct(id, "", "", "", "")}
}

// --- Status mapping ---

func TestProcess_StatusMapping(t *testing.T) {
	tests := []struct {
		name string
		docs *mockDocuments
		req  Request
		want Status
	}{
		{"add ok", &mockDocuments{}, Request{Op: OpAdd}, StatusOK},
		{"add unreadable", &mockDocuments{addErr: domain.NewPathError("x", domain.ErrPathUnreadable)}, Request{Op: OpAdd}, StatusPathUnreadable},
		{"add too long", &mockDocuments{addErr: domain.NewPathError("x", domain.ErrPathTooLong)}, Request{Op: OpAdd}, StatusPathTooLong},
		{"add exhausted", &mockDocuments{addErr: domain.ErrResourceExhausted}, Request{Op: OpAdd}, StatusResourceExhausted},
		{"query missing", &mockDocuments{getErr: domain.ErrDocumentNotFound}, byID(OpQuery, 1), StatusNotFound},
		{"delete missing", &mockDocuments{deleteErr: domain.ErrDocumentNotFound}, byID(OpDelete, 1), StatusNotFound},
		{"count missing", &mockDocuments{countErr: domain.ErrDocumentNotFound}, byID(OpCountLines, 1), StatusNotFound},
		{
			"count scan failure",
			&mockDocuments{countErr: errors.Join(domain.ErrScanFailed, domain.ErrPathUnreadable)},
			byID(OpCountLines, 1), StatusNotFound,
		},
		{"unmapped error", &mockDocuments{getErr: errors.New("weird")}, byID(OpQuery, 1), StatusNotFound},
		{"shutdown flush error", &mockDocuments{shutdownErr: errors.New("disk full")}, Request{Op: OpShutdown}, StatusOK},
		{"unknown op", &mockDocuments{}, Request{Op: 42}, StatusInvalidOperation},
		{"zero op", &mockDocuments{}, Request{Op: 0}, StatusInvalidOperation},
		{"panic", &mockDocuments{panicOnGet: true}, byID(OpQuery, 1), StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := NewProcessor(tc.docs, &mockSearcher{}, nil, Metrics{}, zap.NewNop())
			if got := process(p, tc.req).Status; got != tc.want {
				t.Errorf("status = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestProcess_StopOnlyOnShutdown(t *testing.T) {
	docs := &mockDocuments{}
	p := NewProcessor(docs, &mockSearcher{}, nil, Metrics{}, zap.NewNop())

	for _, op := range []Op{OpAdd, OpQuery, OpDelete, OpCountLines, OpSearch, 42} {
		if _, stop := p.Process(context.Background(), &Request{Op: op, Keyword: "k"}); stop {
			t.Errorf("op %d must not stop the server", op)
		}
	}
	if docs.shutdowns != 0 {
		t.Fatal("only Shutdown may persist")
	}

	if _, stop := p.Process(context.Background(), &Request{Op: OpShutdown}); !stop {
		t.Error("shutdown must stop the server")
	}
	if docs.shutdowns != 1 {
		t.Errorf("expected one flush, got %d", docs.shutdowns)
	}
}

func TestProcess_SearchEmptyKeyword(t *testing.T) {
	s := &mockSearcher{ids: []int32{1}}
	p := NewProcessor(&mockDocuments{}, s, nil, Metrics{}, zap.NewNop())

	resp := process(p, Request{Op: OpSearch, Keyword: ""})
	if resp.Status != StatusOK || len(resp.IDs) != 0 {
		t.Errorf("expected empty success, got %+v", resp)
	}
	if s.called {
		t.Error("searcher must not run without a keyword")
	}
}

func TestProcess_Metrics(t *testing.T) {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "r"}, []string{"op", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "d"}, []string{"op"})
	p := NewProcessor(&mockDocuments{getErr: domain.ErrDocumentNotFound}, &mockSearcher{}, nil,
		Metrics{Requests: requests, Duration: duration}, zap.NewNop())

	process(p, byID(OpQuery, 3))
	process(p, byID(OpQuery, 4))
	process(p, Request{Op: 9})

	if got := testutil.ToFloat64(requests.WithLabelValues("query", "-1")); got != 2 {
		t.Errorf("query/-1 = %f, want 2", got)
	}
	if got := testutil.ToFloat64(requests.WithLabelValues("unknown", "-2")); got != 1 {
		t.Errorf("unknown/-2 = %f, want 1", got)
	}
	if testutil.CollectAndCount(duration) != 2 {
		t.Errorf("expected duration series for query and unknown")
	}
}

// --- End to end over the real cache, store and scanner ---

type index struct {
	dir       string
	storePath string
	store     *file.Store
	cache     *docrepo.Cache
	proc      *Processor
}

func newIndex(t *testing.T, dir, storePath string, capacity int) *index {
	t.Helper()
	ctx := context.Background()
	log := zap.NewNop()

	store := file.New(storePath, nil, log)
	if _, err := store.EnsureExists(ctx); err != nil {
		t.Fatalf("EnsureExists: %v", err)
	}
	cache := docrepo.New(store, capacity, nil, log)
	cache.Fill(ctx)

	sc := scanner.New(scanner.Substring)
	docs := documentuc.New(cache, sc, dir)
	search := searchuc.New(cache, store, sc, dir, searchuc.Options{}, searchuc.Metrics{})
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "g"})

	return &index{
		dir:       dir,
		storePath: storePath,
		store:     store,
		cache:     cache,
		proc:      NewProcessor(docs, search, cache, Metrics{CacheSize: gauge}, log),
	}
}

func writeDoc(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (ix *index) add(t *testing.T, path string) int32 {
	t.Helper()
	resp := process(ix.proc, Request{Op: OpAdd, Document: domdoc.Reconstruct(0, "Title", "Author", "2024", path)})
	if resp.Status != StatusOK {
		t.Fatalf("add %s: status %d", path, resp.Status)
	}
	return resp.Document.ID()
}

func TestScenario_AddThenCountLines(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "doc.txt", "foo 1\nbar\nfoo 2\nbaz\nfoo 3\n")
	ix := newIndex(t, dir, filepath.Join(t.TempDir(), "database.bin"), 10)

	id := ix.add(t, "doc.txt")
	if id != 1 {
		t.Fatalf("expected id 1, got %d", id)
	}

	resp := process(ix.proc, Request{Op: OpCountLines, Document: domdoc.Reconstruct(id, "", "", "", ""), Keyword: "foo"})
	if resp.Status != StatusOK || resp.Count != 3 {
		t.Errorf("expected status 0 count 3, got %d / %d", resp.Status, resp.Count)
	}
}

func TestScenario_EvictionBoundary(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"a.txt", "b.txt", "c.txt"} {
		writeDoc(t, dir, n, "x\n")
	}
	ix := newIndex(t, dir, filepath.Join(t.TempDir(), "database.bin"), 2)

	a := ix.add(t, "a.txt")
	b := ix.add(t, "b.txt")
	c := ix.add(t, "c.txt")

	if got := process(ix.proc, byID(OpQuery, a)).Status; got != StatusNotFound {
		t.Errorf("query evicted A: status %d, want -1", got)
	}
	for _, id := range []int32{b, c} {
		resp := process(ix.proc, byID(OpQuery, id))
		if resp.Status != StatusOK || resp.Document.ID() != id {
			t.Errorf("query %d: status %d id %d", id, resp.Status, resp.Document.ID())
		}
	}
}

func TestScenario_Delete(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a.txt", "x\n")
	ix := newIndex(t, dir, filepath.Join(t.TempDir(), "database.bin"), 5)

	if got := process(ix.proc, byID(OpDelete, 99)).Status; got != StatusNotFound {
		t.Errorf("delete missing: status %d, want -1", got)
	}

	id := ix.add(t, "a.txt")
	if got := process(ix.proc, byID(OpDelete, id)).Status; got != StatusOK {
		t.Fatalf("delete: status %d", got)
	}
	if got := process(ix.proc, byID(OpQuery, id)).Status; got != StatusNotFound {
		t.Errorf("query after delete: status %d, want -1", got)
	}
}

func TestScenario_SearchNoMatches(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a.txt", "hello\n")
	ix := newIndex(t, dir, filepath.Join(t.TempDir(), "database.bin"), 5)
	ix.add(t, "a.txt")

	resp := process(ix.proc, Request{Op: OpSearch, Keyword: "absent", Workers: 4})
	if resp.Status != StatusOK || resp.Count != 0 || len(resp.IDs) != 0 {
		t.Errorf("expected empty success, got %+v", resp)
	}
}

func TestScenario_SearchFindsCachedAndDiskOnly(t *testing.T) {
	dir := t.TempDir()
	for i, body := range []string{"needle\n", "hay\n", "a needle\n", "needle again\n"} {
		writeDoc(t, dir, string(rune('a'+i))+".txt", body)
	}
	storePath := filepath.Join(t.TempDir(), "database.bin")

	first := newIndex(t, dir, storePath, 10)
	for _, n := range []string{"a.txt", "b.txt", "c.txt", "d.txt"} {
		first.add(t, n)
	}
	process(first.proc, Request{Op: OpShutdown})

	// Only two records fit; the rest stay on disk and must still be searched.
	second := newIndex(t, dir, storePath, 2)
	for _, workers := range []int32{1, 3} {
		resp := process(second.proc, Request{Op: OpSearch, Keyword: "needle", Workers: workers})
		if !slices.Equal(resp.IDs, []int32{1, 3, 4}) {
			t.Errorf("workers=%d: ids = %v, want [1 3 4]", workers, resp.IDs)
		}
		if resp.Count != 3 {
			t.Errorf("workers=%d: count = %d", workers, resp.Count)
		}
	}
}

func TestScenario_ShutdownPersistence(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a.txt", "x\n")
	storePath := filepath.Join(t.TempDir(), "database.bin")

	ix := newIndex(t, dir, storePath, 5)
	before, err := os.ReadFile(storePath)
	if err != nil {
		t.Fatal(err)
	}
	infoBefore, _ := os.Stat(storePath)

	// No mutations: nothing written.
	if resp, stop := ix.proc.Process(context.Background(), &Request{Op: OpShutdown}); resp.Status != StatusOK || !stop {
		t.Fatalf("shutdown: %+v stop=%v", resp, stop)
	}
	after, _ := os.ReadFile(storePath)
	infoAfter, _ := os.Stat(storePath)
	if string(before) != string(after) || !infoBefore.ModTime().Equal(infoAfter.ModTime()) {
		t.Error("store must not be rewritten without changes")
	}

	// After an Add: written and reloadable.
	ix = newIndex(t, dir, storePath, 5)
	id := ix.add(t, "a.txt")
	process(ix.proc, Request{Op: OpShutdown})

	reloaded := newIndex(t, dir, storePath, 5)
	resp := process(reloaded.proc, byID(OpQuery, id))
	if resp.Status != StatusOK || resp.Document.Path() != "a.txt" || resp.Document.Title() != "Title" {
		t.Errorf("reloaded record: %+v", resp)
	}
	if next := reloaded.cache.Stats().NextID; next != id+1 {
		t.Errorf("next id after reload = %d, want %d", next, id+1)
	}
}

func TestScenario_AddRejectsBadPaths(t *testing.T) {
	ix := newIndex(t, t.TempDir(), filepath.Join(t.TempDir(), "database.bin"), 5)

	resp := process(ix.proc, Request{Op: OpAdd, Document: domdoc.Reconstruct(0, "T", "A", "2024", "missing.txt")})
	if resp.Status != StatusPathUnreadable {
		t.Errorf("missing file: status %d, want -3", resp.Status)
	}
	if ix.cache.Len() != 0 {
		t.Error("nothing must be cached")
	}

	long := strings.Repeat("p", domdoc.MaxPathSize+1)
	resp = process(ix.proc, Request{Op: OpAdd, Document: domdoc.Reconstruct(0, "T", "A", "2024", long)})
	if resp.Status != StatusPathTooLong {
		t.Errorf("long path: status %d, want -4", resp.Status)
	}
}
