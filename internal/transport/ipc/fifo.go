package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Default pipe locations.
const (
	DefaultServerPipe       = "/tmp/server_pipe"
	DefaultClientPipeFormat = "/tmp/client_pipe_%d"
)

// DefaultReplyTimeout bounds how long a reply waits for the client to open
// its pipe for reading.
const DefaultReplyTimeout = 2 * time.Second

const replyRetryInterval = 10 * time.Millisecond

// RequestHandler processes one decoded request.
type RequestHandler interface {
	Process(ctx context.Context, req *Request) (Response, bool)
}

// Server reads requests from a named pipe and answers each client on its own
// pipe, derived from the client's pid.
type Server struct {
	path         string
	clientFormat string
	handler      RequestHandler
	logger       *zap.Logger
	replyTimeout time.Duration

	mu   sync.Mutex
	pipe *os.File
}

// NewServer creates a FIFO server. Call Listen before Serve.
func NewServer(path, clientFormat string, handler RequestHandler, logger *zap.Logger) *Server {
	return &Server{
		path:         path,
		clientFormat: clientFormat,
		handler:      handler,
		logger:       logger,
		replyTimeout: DefaultReplyTimeout,
	}
}

// WithReplyTimeout overrides DefaultReplyTimeout. Call before Serve.
func (s *Server) WithReplyTimeout(d time.Duration) *Server {
	s.replyTimeout = d
	return s
}

// Path returns the server pipe path.
func (s *Server) Path() string { return s.path }

// Listen creates the server pipe, replacing a stale one.
func (s *Server) Listen() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale pipe %s: %w", s.path, err)
	}
	if err := unix.Mkfifo(s.path, 0o666); err != nil {
		return fmt.Errorf("create pipe %s: %w", s.path, err)
	}
	s.logger.Debug("Server pipe created", zap.String("path", s.path))
	return nil
}

// Close removes the server pipe.
func (s *Server) Close() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove pipe %s: %w", s.path, err)
	}
	return nil
}

// Serve handles requests one at a time until a Shutdown request has been
// answered (returns nil) or ctx is cancelled (returns ctx.Err()). The pipe is
// reopened whenever all writers have gone away.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, s.wake)
	defer stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.open(); err != nil {
			return err
		}

		req, err := ReadRequest(s.pipe)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Warn("Dropping unreadable request", zap.Error(err))
			}
			s.closePipe()
			continue
		}

		resp, done := s.handler.Process(ctx, &req)
		s.reply(&req, &resp)

		if done {
			s.closePipe()
			return nil
		}
	}
}

// open (re)opens the read side. It blocks until a client opens the pipe for writing.
func (s *Server) open() error {
	s.mu.Lock()
	opened := s.pipe != nil
	s.mu.Unlock()
	if opened {
		return nil
	}

	f, err := os.OpenFile(s.path, os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("open pipe %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.pipe = f
	s.mu.Unlock()
	return nil
}

func (s *Server) closePipe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pipe != nil {
		_ = s.pipe.Close()
		s.pipe = nil
	}
}

// wake unblocks a pending open or read by briefly becoming a writer.
func (s *Server) wake() {
	f, err := os.OpenFile(s.path, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return
	}
	_ = f.Close()
}

// reply writes resp to the requesting client's pipe. Failures are logged and
// the response is dropped.
func (s *Server) reply(req *Request, resp *Response) {
	clientPath := fmt.Sprintf(s.clientFormat, req.ClientPID)
	log := s.logger.With(zap.Int32("client_pid", req.ClientPID), zap.String("client_pipe", clientPath))

	f, err := s.openClient(clientPath)
	if err != nil {
		log.Error("Failed to open client pipe, response dropped", zap.Error(err))
		return
	}
	defer func() { _ = f.Close() }()

	if err := WriteResponse(f, resp); err != nil {
		log.Error("Failed to write response", zap.Error(err))
		return
	}
	log.Debug("Response sent", zap.Int32("status", int32(resp.Status)))
}

// openClient opens the client's pipe for writing without blocking. ENXIO
// means no reader yet; it is retried until replyTimeout so a client that
// died after creating its pipe cannot stall the server.
func (s *Server) openClient(path string) (*os.File, error) {
	deadline := time.Now().Add(s.replyTimeout)
	for {
		f, err := os.OpenFile(path, os.O_WRONLY|unix.O_NONBLOCK, 0)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, unix.ENXIO) || time.Now().After(deadline) {
			return nil, err
		}
		time.Sleep(replyRetryInterval)
	}
}
