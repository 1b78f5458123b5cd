package search

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/docindex/internal/domain/search/request"
	"github.com/kailas-cloud/docindex/internal/domain/search/result"
	"github.com/kailas-cloud/docindex/internal/domain/search/task"
	"github.com/kailas-cloud/docindex/internal/logger"
)

// Strategy labels.
const (
	StrategySerial   = "serial"
	StrategyParallel = "parallel"
)

// Options tunes the search strategy. Zero values take defaults.
type Options struct {
	MaxWorkers      int
	SerialThreshold int
	MaxResults      int
}

// ApplyDefaults fills zero fields.
func (o *Options) ApplyDefaults() {
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = request.MaxWorkers
	}
	if o.SerialThreshold <= 0 {
		o.SerialThreshold = request.DefaultSerialThreshold
	}
	if o.MaxResults <= 0 {
		o.MaxResults = result.DefaultMaxIDs
	}
}

// Metrics holds the optional collectors the service reports to. Nil fields are skipped.
type Metrics struct {
	Duration *prometheus.HistogramVec // label: strategy
	Workers  prometheus.Observer
	Failures prometheus.Counter
}

// Service runs keyword searches over every known document.
type Service struct {
	docs       ResidentReader
	store      SnapshotLoader
	matcher    Matcher
	baseFolder string
	opts       Options
	metrics    Metrics
}

// New creates a search service. Document paths are resolved against baseFolder.
func New(
	docs ResidentReader, store SnapshotLoader, matcher Matcher,
	baseFolder string, opts Options, m Metrics,
) *Service {
	opts.ApplyDefaults()
	return &Service{
		docs:       docs,
		store:      store,
		matcher:    matcher,
		baseFolder: baseFolder,
		opts:       opts,
		metrics:    m,
	}
}

// Search returns the ids of documents whose file contains the keyword, in
// task order (cached documents first, then disk-only ones), capped at
// MaxResults. Unreadable files and crashed workers contribute nothing; the
// search itself never fails.
func (s *Service) Search(ctx context.Context, req *request.Request) result.Result {
	tasks := s.Tasks(ctx)
	if len(tasks) == 0 {
		return result.Empty()
	}

	p := req.Workers(len(tasks), s.opts.MaxWorkers)
	strategy := StrategyParallel
	if p <= 1 || len(tasks) < s.opts.SerialThreshold {
		strategy = StrategySerial
	}

	start := time.Now()
	var res result.Result
	if strategy == StrategySerial {
		res = s.serial(ctx, req.Keyword(), tasks)
	} else {
		res = s.parallel(ctx, req.Keyword(), tasks, p)
	}

	if s.metrics.Duration != nil {
		s.metrics.Duration.WithLabelValues(strategy).Observe(time.Since(start).Seconds())
	}

	log := logger.FromContext(ctx)
	log.Debug("Search completed",
		zap.String("strategy", strategy),
		zap.Int("tasks", len(tasks)),
		zap.Int("workers", p),
		zap.Int("matches", res.Count()),
		zap.Bool("truncated", res.Truncated()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res
}

// Tasks enumerates the cached documents followed by the disk-only ones.
// A document present in both is taken from the cache.
func (s *Service) Tasks(ctx context.Context) []task.Task {
	resident := s.docs.Resident()
	cached := make([]task.Task, 0, len(resident))
	for i := range resident {
		cached = append(cached, task.Task{ID: resident[i].ID(), Path: resident[i].Path()})
	}

	snap := s.store.Load(ctx)
	disk := make([]task.Task, 0, len(snap.Records))
	for i := range snap.Records {
		disk = append(disk, task.Task{ID: snap.Records[i].ID(), Path: snap.Records[i].Path()})
	}

	return task.Dedup(cached, disk)
}

func (s *Service) serial(ctx context.Context, keyword string, tasks []task.Task) result.Result {
	b := result.NewBuilder(s.opts.MaxResults)
	for _, t := range tasks {
		if ctx.Err() != nil {
			break
		}
		if !s.match(ctx, keyword, t) {
			continue
		}
		if !b.Add(t.ID) {
			break
		}
	}
	return b.Result()
}

// parallel scans p contiguous chunks concurrently. Each worker owns one slot;
// slots are merged in chunk order once all workers are done.
func (s *Service) parallel(ctx context.Context, keyword string, tasks []task.Task, p int) result.Result {
	chunks := task.Partition(tasks, p)
	slots := make([][]int32, len(chunks))

	if s.metrics.Workers != nil {
		s.metrics.Workers.Observe(float64(len(chunks)))
	}

	var g errgroup.Group
	for _, c := range chunks {
		c := c
		g.Go(func() error {
			slots[c.Index] = s.work(ctx, keyword, c)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	b := result.NewBuilder(s.opts.MaxResults)
	for _, slot := range slots {
		for _, id := range slot {
			if !b.Add(id) {
				return b.Result()
			}
		}
	}
	return b.Result()
}

// work scans one chunk. A panic discards the chunk's matches.
func (s *Service) work(ctx context.Context, keyword string, c task.Chunk) (ids []int32) {
	defer func() {
		if r := recover(); r != nil {
			ids = nil
			if s.metrics.Failures != nil {
				s.metrics.Failures.Inc()
			}
			logger.FromContext(ctx).Error("Search worker crashed",
				zap.Int("worker", c.Index),
				zap.Int("tasks", len(c.Tasks)),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()

	for _, t := range c.Tasks {
		if ctx.Err() != nil {
			return ids
		}
		if !s.match(ctx, keyword, t) {
			continue
		}
		ids = append(ids, t.ID)
		// No chunk can contribute more than the overall cap.
		if len(ids) >= s.opts.MaxResults {
			return ids
		}
	}
	return ids
}

func (s *Service) match(ctx context.Context, keyword string, t task.Task) bool {
	ok, err := s.matcher.Contains(ctx, filepath.Join(s.baseFolder, t.Path), keyword)
	if err != nil {
		logger.FromContext(ctx).Debug("Skipping unreadable document",
			zap.Int32("id", t.ID), zap.String("path", t.Path), zap.Error(err))
		return false
	}
	return ok
}
