// Package document implements the bounded document cache in front of the metadata store.
package document

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docindex/internal/db"
	"github.com/kailas-cloud/docindex/internal/domain"
	domdoc "github.com/kailas-cloud/docindex/internal/domain/document"
)

// store is the consumer interface for the metadata store (ISP).
type store interface {
	Load(ctx context.Context) db.Snapshot
	Save(ctx context.Context, snap db.Snapshot) error
	DeleteRecord(ctx context.Context, id int32) (bool, error)
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	Size     int   `json:"size"`
	Capacity int   `json:"capacity"`
	NextID   int32 `json:"next_id"`
	Modified bool  `json:"modified"`
}

// Cache holds up to capacity documents in insertion order and evicts the
// oldest one first (FCFS), regardless of how often or recently it was read.
// It also owns the id counter. Mutations happen on the request loop only;
// the mutex lets diagnostics read Stats concurrently.
type Cache struct {
	mu       sync.Mutex
	store    store
	docs     []domdoc.Document
	capacity int
	nextID   int32
	modified bool
	events   *prometheus.CounterVec
	logger   *zap.Logger
}

// New creates an empty cache. capacity < 1 is treated as 1.
// events is a counter vec with label "event"; nil disables it.
func New(s store, capacity int, events *prometheus.CounterVec, logger *zap.Logger) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		store:    s,
		docs:     make([]domdoc.Document, 0, capacity),
		capacity: capacity,
		nextID:   1,
		events:   events,
		logger:   logger,
	}
}

// Fill loads the id counter and up to capacity records, in store order.
// Freshly loaded state counts as synced. Returns the number of cached records.
func (c *Cache) Fill(ctx context.Context) int {
	snap := c.store.Load(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID = snap.NextID
	n := min(len(snap.Records), c.capacity)
	c.docs = append(c.docs[:0], snap.Records[:n]...)
	c.modified = false

	if len(snap.Records) > n {
		c.logger.Info("Cache full, remaining documents stay on disk",
			zap.Int("cached", n),
			zap.Int("on_disk", len(snap.Records)),
		)
	}
	return n
}

// Get returns the document with id. A cache miss falls back to the store; the
// record found there is cached when there is room, otherwise a copy is
// returned without touching eviction order.
func (c *Cache) Get(ctx context.Context, id int32) (domdoc.Document, error) {
	c.mu.Lock()
	if i := c.indexOf(id); i >= 0 {
		doc := c.docs[i]
		c.mu.Unlock()
		c.inc("hit")
		return doc, nil
	}
	c.mu.Unlock()
	c.inc("miss")

	snap := c.store.Load(ctx)
	for _, rec := range snap.Records {
		if rec.ID() != id {
			continue
		}
		c.inc("disk_hit")

		c.mu.Lock()
		if len(c.docs) < c.capacity && c.indexOf(id) < 0 {
			c.docs = append(c.docs, rec)
		}
		c.mu.Unlock()
		return rec, nil
	}

	return domdoc.Document{}, fmt.Errorf("document %d: %w", id, domain.ErrDocumentNotFound)
}

// Add assigns the next id to doc, evicting the oldest entry when full.
func (c *Cache) Add(_ context.Context, doc *domdoc.Document) (int32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.nextID >= math.MaxInt32 {
		return 0, fmt.Errorf("id counter at %d: %w", c.nextID, domain.ErrResourceExhausted)
	}

	if len(c.docs) >= c.capacity {
		evicted := c.docs[0]
		c.docs = append(c.docs[:0], c.docs[1:]...)
		c.inc("eviction")
		c.logger.Debug("Evicted oldest cached document", zap.Int32("id", evicted.ID()))
	}

	id := c.nextID
	c.nextID++
	c.docs = append(c.docs, doc.WithID(id))
	c.modified = true
	return id, nil
}

// Remove drops the cached entry with id. Returns whether it was resident.
func (c *Cache) Remove(id int32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return false
	}
	c.docs = append(c.docs[:i], c.docs[i+1:]...)
	c.modified = true
	return true
}

// Delete removes id from the store file and then from the cache. When the
// store rewrite fails the cache is left untouched.
func (c *Cache) Delete(ctx context.Context, id int32) error {
	onDisk, err := c.store.DeleteRecord(ctx, id)
	if err != nil {
		return fmt.Errorf("delete document %d from store: %w", id, err)
	}
	cached := c.Remove(id)

	if !cached && !onDisk {
		return fmt.Errorf("document %d: %w", id, domain.ErrDocumentNotFound)
	}
	return nil
}

// Flush persists the cache when it differs from the last snapshot. Records
// that live only on disk are carried over so nothing beyond capacity is lost.
// Returns whether a write happened.
func (c *Cache) Flush(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.modified {
		return false, nil
	}

	disk := c.store.Load(ctx)
	records := make([]domdoc.Document, 0, len(c.docs)+len(disk.Records))
	records = append(records, c.docs...)
	// Records evicted since the last flush are in neither list and stay lost.
	for _, rec := range disk.Records {
		if c.indexOf(rec.ID()) < 0 {
			records = append(records, rec)
		}
	}

	if err := c.store.Save(ctx, db.Snapshot{NextID: c.nextID, Records: records}); err != nil {
		return false, fmt.Errorf("save cache: %w", err)
	}
	c.modified = false
	return true, nil
}

// Resident returns a copy of the cached documents in insertion order.
func (c *Cache) Resident() []domdoc.Document {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domdoc.Document, len(c.docs))
	copy(out, c.docs)
	return out
}

// Len returns the number of cached documents.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.docs)
}

// Modified reports whether the cache differs from the last persisted snapshot.
func (c *Cache) Modified() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modified
}

// Stats returns size, capacity, id counter and modified flag.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Size: len(c.docs), Capacity: c.capacity, NextID: c.nextID, Modified: c.modified}
}

func (c *Cache) indexOf(id int32) int {
	for i := range c.docs {
		if c.docs[i].ID() == id {
			return i
		}
	}
	return -1
}

func (c *Cache) inc(event string) {
	if c.events != nil {
		c.events.WithLabelValues(event).Inc()
	}
}
