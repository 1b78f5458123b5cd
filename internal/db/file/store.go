// Package file implements the metadata store as a single binary file that is
// always rewritten whole through a temporary file and an atomic rename.
package file

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docindex/internal/db"
	domdoc "github.com/kailas-cloud/docindex/internal/domain/document"
)

const maxID = math.MaxInt32

// Store is the file-backed metadata store.
type Store struct {
	path        string
	writesTotal *prometheus.CounterVec
	logger      *zap.Logger
}

var _ db.Store = (*Store)(nil)

// New creates a store for the file at path. The file is not touched until used.
// writesTotal is a counter vec with labels "op" and "status"; nil disables it.
func New(path string, writesTotal *prometheus.CounterVec, logger *zap.Logger) *Store {
	return &Store{path: path, writesTotal: writesTotal, logger: logger}
}

// Path returns the store file path.
func (s *Store) Path() string { return s.path }

// Ping checks that the directory holding the store file is reachable.
func (s *Store) Ping(_ context.Context) error {
	dir := filepath.Dir(s.path)
	info, err := os.Stat(dir)
	if err != nil {
		return &db.Error{Op: db.OpStat, Err: err}
	}
	if !info.IsDir() {
		return &db.Error{Op: db.OpStat, Err: fmt.Errorf("%s is not a directory", dir)}
	}
	return nil
}

// EnsureExists writes an empty snapshot when no store file exists yet.
func (s *Store) EnsureExists(ctx context.Context) (bool, error) {
	_, err := os.Stat(s.path)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, &db.Error{Op: db.OpStat, Err: err}
	}
	if err := s.Save(ctx, db.Snapshot{NextID: 1}); err != nil {
		return false, err
	}
	return true, nil
}

// Load reads the whole store. A missing file yields an empty snapshot; a
// damaged file yields whatever was parsed before the damage. Never fails.
func (s *Store) Load(_ context.Context) db.Snapshot {
	snap, err := s.read()
	if err != nil {
		var dbErr *db.Error
		switch {
		case errors.Is(err, fs.ErrNotExist):
			s.logger.Info("Metadata store not found, starting empty", zap.String("path", s.path))
		case errors.As(err, &dbErr) && dbErr.Op == db.OpOpen:
			s.logger.Error("Cannot open metadata store, starting empty",
				zap.String("path", s.path), zap.Error(err))
		default:
			s.logger.Warn("Metadata store damaged, using partial load",
				zap.String("path", s.path),
				zap.Int("records", len(snap.Records)),
				zap.Error(err),
			)
		}
		return snap
	}

	s.logger.Debug("Metadata store loaded",
		zap.String("path", s.path),
		zap.Int("records", len(snap.Records)),
		zap.Int32("next_id", snap.NextID),
	)
	return snap
}

// Save replaces the store with snap (write to temp file, fsync, rename).
func (s *Store) Save(_ context.Context, snap db.Snapshot) error {
	err := s.write(snap)
	s.incWrites("save", err)
	if err != nil {
		return err
	}
	s.logger.Debug("Metadata store saved",
		zap.String("path", s.path),
		zap.Int("records", len(snap.Records)),
		zap.Int32("next_id", snap.NextID),
	)
	return nil
}

// DeleteRecord removes the record with id from the store file.
// Returns false (and leaves the file untouched) when the id is not on disk.
func (s *Store) DeleteRecord(_ context.Context, id int32) (bool, error) {
	snap, err := s.read()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		var dbErr *db.Error
		if errors.As(err, &dbErr) && dbErr.Op == db.OpOpen {
			return false, err
		}
		// Damaged tail: it is already lost for every reader, rewrite what survived.
		s.logger.Warn("Metadata store damaged, delete rewrites the readable prefix",
			zap.String("path", s.path), zap.Error(err))
	}

	kept := make([]domdoc.Document, 0, len(snap.Records))
	found := false
	for _, rec := range snap.Records {
		if rec.ID() == id {
			found = true
			continue
		}
		kept = append(kept, rec)
	}
	if !found {
		return false, nil
	}

	snap.Records = kept
	err = s.write(snap)
	s.incWrites("delete", err)
	if err != nil {
		return true, err
	}
	return true, nil
}

func (s *Store) read() (db.Snapshot, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return db.Snapshot{NextID: 1}, err
		}
		return db.Snapshot{NextID: 1}, &db.Error{Op: db.OpOpen, Err: err}
	}
	defer func() { _ = f.Close() }()

	snap, err := decode(bufio.NewReader(f))
	if err != nil {
		return snap, &db.Error{Op: db.OpRead, Err: err}
	}
	return snap, nil
}

func (s *Store) write(snap db.Snapshot) (err error) {
	dir, base := filepath.Split(s.path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return &db.Error{Op: db.OpOpen, Err: err}
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	if err = encode(w, snap); err != nil {
		return &db.Error{Op: db.OpWrite, Err: err}
	}
	if err = w.Flush(); err != nil {
		return &db.Error{Op: db.OpWrite, Err: err}
	}
	if err = tmp.Sync(); err != nil {
		return &db.Error{Op: db.OpSync, Err: err}
	}
	if err = tmp.Close(); err != nil {
		return &db.Error{Op: db.OpWrite, Err: err}
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return &db.Error{Op: db.OpWrite, Err: err}
	}
	if err = os.Rename(tmp.Name(), s.path); err != nil {
		return &db.Error{Op: db.OpRename, Err: err}
	}
	syncDir(dir)
	return nil
}

// syncDir makes the rename durable. The new file is already in place, so
// failures here are not reported.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

func (s *Store) incWrites(op string, err error) {
	if s.writesTotal == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.writesTotal.WithLabelValues(op, status).Inc()
}
