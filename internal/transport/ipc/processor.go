package ipc

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docindex/internal/domain"
	domdoc "github.com/kailas-cloud/docindex/internal/domain/document"
	"github.com/kailas-cloud/docindex/internal/domain/search/request"
	"github.com/kailas-cloud/docindex/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/docindex/internal/logger"
)

// Documents is the document use case the processor dispatches to.
type Documents interface {
	Add(ctx context.Context, title, authors, year, path string) (int32, error)
	Get(ctx context.Context, id int32) (domdoc.Document, error)
	Delete(ctx context.Context, id int32) error
	CountLines(ctx context.Context, id int32, keyword string) (int, error)
	Shutdown(ctx context.Context) (bool, error)
}

// Searcher runs keyword searches.
type Searcher interface {
	Search(ctx context.Context, req *request.Request) result.Result
}

// Sizer reports the number of cached documents.
type Sizer interface {
	Len() int
}

// Metrics holds the collectors the processor reports to. Nil fields are skipped.
type Metrics struct {
	Requests  *prometheus.CounterVec   // labels: op, status
	Duration  *prometheus.HistogramVec // label: op
	CacheSize prometheus.Gauge
}

// errorHandler maps a domain error to a status. Returns false if err does not match.
type errorHandler func(err error) (Status, bool)

type handlerFunc func(ctx context.Context, req *Request) Response

// Processor executes one request at a time against the document index.
type Processor struct {
	documents     Documents
	search        Searcher
	cache         Sizer
	metrics       Metrics
	logger        *zap.Logger
	handlers      map[Op]handlerFunc
	errorHandlers []errorHandler
}

// NewProcessor creates a request processor. cache may be nil.
func NewProcessor(documents Documents, search Searcher, cache Sizer, m Metrics, logger *zap.Logger) *Processor {
	p := &Processor{
		documents: documents,
		search:    search,
		cache:     cache,
		metrics:   m,
		logger:    logger,
	}
	p.handlers = map[Op]handlerFunc{
		OpAdd:        p.add,
		OpQuery:      p.query,
		OpDelete:     p.remove,
		OpCountLines: p.countLines,
		OpSearch:     p.searchDocs,
		OpShutdown:   p.shutdown,
	}
	// Order matters: a failed scan wraps the unreadable-path cause but reports not found.
	p.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrScanFailed, StatusNotFound),
		sentinelHandler(domain.ErrDocumentNotFound, StatusNotFound),
		sentinelHandler(domain.ErrPathTooLong, StatusPathTooLong),
		sentinelHandler(domain.ErrPathUnreadable, StatusPathUnreadable),
		sentinelHandler(domain.ErrResourceExhausted, StatusResourceExhausted),
		sentinelHandler(domain.ErrInvalidOperation, StatusInvalidOperation),
	}
	return p
}

// Process handles one request and reports whether the server should stop.
func (p *Processor) Process(ctx context.Context, req *Request) (resp Response, stop bool) {
	start := time.Now()
	ctx, reqLogger := logpkg.WithRequest(ctx, p.logger,
		zap.String("op", req.Op.String()),
		zap.Int32("client_pid", req.ClientPID),
	)

	reqLogger.Debug("Request received",
		zap.Int32("op_code", int32(req.Op)),
		zap.Int32("doc_id", req.Document.ID()),
		zap.String("keyword", req.Keyword),
		zap.Int32("workers", req.Workers),
	)

	resp = p.dispatch(ctx, req)
	stop = req.Op == OpShutdown

	elapsed := time.Since(start)
	p.observe(req.Op, resp.Status, elapsed)

	// Canonical log line, one per request
	reqLogger.Info("ipc_request",
		zap.Int32("status", int32(resp.Status)),
		zap.Int32("doc_id", resp.Document.ID()),
		zap.Int32("count", resp.Count),
		zap.Int("num_ids", len(resp.IDs)),
		zap.Duration("latency", elapsed),
	)
	return resp, stop
}

func (p *Processor) dispatch(ctx context.Context, req *Request) (resp Response) {
	h, ok := p.handlers[req.Op]
	if !ok {
		logpkg.FromContext(ctx).Warn("Unknown operation", zap.Int32("op_code", int32(req.Op)))
		return Response{Status: StatusInvalidOperation}
	}

	defer func() {
		if rvr := recover(); rvr != nil {
			logpkg.FromContext(ctx).Error("panic recovered",
				zap.Any("panic", rvr),
				zap.Stack("stacktrace"),
			)
			resp = Response{Status: StatusNotFound}
		}
	}()
	return h(ctx, req)
}

func (p *Processor) add(ctx context.Context, req *Request) Response {
	d := &req.Document
	id, err := p.documents.Add(ctx, d.Title(), d.Authors(), d.Year(), d.Path())
	if err != nil {
		return p.fail(ctx, err)
	}
	return Response{Status: StatusOK, Document: domdoc.Reconstruct(id, "", "", "", "")}
}

func (p *Processor) query(ctx context.Context, req *Request) Response {
	doc, err := p.documents.Get(ctx, req.Document.ID())
	if err != nil {
		return p.fail(ctx, err)
	}
	return Response{Status: StatusOK, Document: doc}
}

func (p *Processor) remove(ctx context.Context, req *Request) Response {
	if err := p.documents.Delete(ctx, req.Document.ID()); err != nil {
		return p.fail(ctx, err)
	}
	return Response{Status: StatusOK}
}

func (p *Processor) countLines(ctx context.Context, req *Request) Response {
	n, err := p.documents.CountLines(ctx, req.Document.ID(), req.Keyword)
	if err != nil {
		return p.fail(ctx, err)
	}
	return Response{Status: StatusOK, Count: int32(n)}
}

// searchDocs never fails: an unusable keyword yields an empty result.
func (p *Processor) searchDocs(ctx context.Context, req *Request) Response {
	sr, err := request.New(req.Keyword, int(req.Workers))
	if err != nil {
		logpkg.FromContext(ctx).Debug("Search keyword rejected", zap.Error(err))
		return Response{Status: StatusOK}
	}
	res := p.search.Search(ctx, &sr)
	return Response{Status: StatusOK, Count: int32(res.Count()), IDs: res.IDs()}
}

// shutdown persists the cache. A failed write is logged; the server stops regardless.
func (p *Processor) shutdown(ctx context.Context, _ *Request) Response {
	written, err := p.documents.Shutdown(ctx)
	log := logpkg.FromContext(ctx)
	switch {
	case err != nil:
		log.Error("Failed to persist documents on shutdown", zap.Error(err))
	case written:
		log.Info("Documents persisted")
	default:
		log.Info("No changes to persist")
	}
	return Response{Status: StatusOK}
}

func (p *Processor) fail(ctx context.Context, err error) Response {
	status := p.statusFor(err)
	logpkg.FromContext(ctx).Debug("Request failed",
		zap.Int32("status", int32(status)), zap.Error(err))
	return Response{Status: status}
}

func (p *Processor) statusFor(err error) Status {
	for _, h := range p.errorHandlers {
		if s, ok := h(err); ok {
			return s
		}
	}
	p.logger.Error("internal error", zap.Error(err))
	return StatusNotFound
}

func (p *Processor) observe(op Op, status Status, elapsed time.Duration) {
	if p.metrics.Requests != nil {
		p.metrics.Requests.WithLabelValues(op.String(), strconv.Itoa(int(status))).Inc()
	}
	if p.metrics.Duration != nil {
		p.metrics.Duration.WithLabelValues(op.String()).Observe(elapsed.Seconds())
	}
	if p.metrics.CacheSize != nil && p.cache != nil {
		p.metrics.CacheSize.Set(float64(p.cache.Len()))
	}
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status Status) errorHandler {
	return func(err error) (Status, bool) {
		if !errors.Is(err, sentinel) {
			return 0, false
		}
		return status, true
	}
}
