package document

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docindex/internal/db"
	domdoc "github.com/kailas-cloud/docindex/internal/domain/document"
)

// mockStore is an in-memory metadata store for tests.
type mockStore struct {
	snap      db.Snapshot
	saves     int
	loads     int
	saveErr   error
	deleteErr error
}

func (m *mockStore) Load(_ context.Context) db.Snapshot {
	m.loads++
	recs := make([]domdoc.Document, len(m.snap.Records))
	copy(recs, m.snap.Records)
	return db.Snapshot{NextID: m.snap.NextID, Records: recs}
}

func (m *mockStore) Save(_ context.Context, snap db.Snapshot) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.snap = snap
	return nil
}

func (m *mockStore) DeleteRecord(_ context.Context, id int32) (bool, error) {
	if m.deleteErr != nil {
		return false, m.deleteErr
	}
	for i, rec := range m.snap.Records {
		if rec.ID() == id {
			m.snap.Records = append(m.snap.Records[:i], m.snap.Records[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func newTestCache(t *testing.T, s *mockStore, capacity int) *Cache {
	t.Helper()
	if s.snap.NextID == 0 {
		s.snap.NextID = 1
	}
	c := New(s, capacity, nil, zap.NewNop())
	c.Fill(context.Background())
	return c
}

func makeDoc(t *testing.T, title string) domdoc.Document {
	t.Helper()
	doc, err := domdoc.New(title, "author", "2020", title+".txt")
	if err != nil {
		t.Fatalf("domdoc.New: %v", err)
	}
	return doc
}

func addDoc(t *testing.T, c *Cache, title string) int32 {
	t.Helper()
	doc := makeDoc(t, title)
	id, err := c.Add(context.Background(), &doc)
	if err != nil {
		t.Fatalf("Add(%s): %v", title, err)
	}
	return id
}

func residentIDs(c *Cache) []int32 {
	docs := c.Resident()
	out := make([]int32, len(docs))
	for i := range docs {
		out[i] = docs[i].ID()
	}
	return out
}

func equalIDs(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
