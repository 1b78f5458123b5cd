package file

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"io"

	"github.com/cespare/xxhash/v2"

	"github.com/kailas-cloud/docindex/internal/db"
	domdoc "github.com/kailas-cloud/docindex/internal/domain/document"
)

// Layout of the store file (all integers little-endian):
//
//	[next_id int32][record_count int32]
//	record_count x [id int32][title 200][authors 200][year 4][path 200]
//	[xxhash64 of everything above, uint64]
//
// String fields are NUL-padded. The trailer is optional on read.
const (
	headerSize   = 8
	RecordSize   = 4 + domdoc.MaxTitleSize + domdoc.MaxAuthorsSize + domdoc.MaxYearSize + domdoc.MaxPathSize
	checksumSize = 8
)

// EncodeRecord writes doc into buf, which must be RecordSize bytes.
func EncodeRecord(buf []byte, doc *domdoc.Document) {
	clear(buf)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(doc.ID()))
	off := 4
	off += putString(buf[off:off+domdoc.MaxTitleSize], doc.Title())
	off += putString(buf[off:off+domdoc.MaxAuthorsSize], doc.Authors())
	off += putString(buf[off:off+domdoc.MaxYearSize], doc.Year())
	putString(buf[off:off+domdoc.MaxPathSize], doc.Path())
}

// DecodeRecord reads a document from buf, which must be RecordSize bytes.
func DecodeRecord(buf []byte) domdoc.Document {
	id := int32(binary.LittleEndian.Uint32(buf[0:4]))
	off := 4
	title := getString(buf[off : off+domdoc.MaxTitleSize])
	off += domdoc.MaxTitleSize
	authors := getString(buf[off : off+domdoc.MaxAuthorsSize])
	off += domdoc.MaxAuthorsSize
	year := getString(buf[off : off+domdoc.MaxYearSize])
	off += domdoc.MaxYearSize
	path := getString(buf[off : off+domdoc.MaxPathSize])
	return domdoc.Reconstruct(id, title, authors, year, path)
}

func putString(dst []byte, s string) int {
	copy(dst, s)
	return len(dst)
}

func getString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// encode writes a complete snapshot, checksum trailer included.
func encode(w io.Writer, snap db.Snapshot) error {
	h := xxhash.New()
	mw := io.MultiWriter(w, h)

	var header [headerSize]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(snap.NextID))
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(snap.Records)))
	if _, err := mw.Write(header[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	buf := make([]byte, RecordSize)
	for i := range snap.Records {
		EncodeRecord(buf, &snap.Records[i])
		if _, err := mw.Write(buf); err != nil {
			return fmt.Errorf("write record %d: %w", snap.Records[i].ID(), err)
		}
	}

	var trailer [checksumSize]byte
	binary.LittleEndian.PutUint64(trailer[:], h.Sum64())
	if _, err := w.Write(trailer[:]); err != nil {
		return fmt.Errorf("write checksum: %w", err)
	}
	return nil
}

// decode reads a snapshot. On a short read or checksum mismatch it returns the
// records parsed so far together with an error describing the damage.
func decode(r io.Reader) (db.Snapshot, error) {
	snap := db.Snapshot{NextID: 1}
	h := xxhash.New()
	tr := io.TeeReader(r, h)

	var header [headerSize]byte
	if _, err := io.ReadFull(tr, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return snap, nil
		}
		return snap, fmt.Errorf("%w: short header: %w", db.ErrCorrupt, err)
	}
	snap.NextID = int32(binary.LittleEndian.Uint32(header[0:4]))
	count := int32(binary.LittleEndian.Uint32(header[4:8]))
	if count < 0 {
		return normalize(snap), fmt.Errorf("%w: negative record count %d", db.ErrCorrupt, count)
	}

	snap.Records = make([]domdoc.Document, 0, min(int(count), 1024))
	buf := make([]byte, RecordSize)
	for i := int32(0); i < count; i++ {
		if _, err := io.ReadFull(tr, buf); err != nil {
			return normalize(snap), fmt.Errorf("%w: record %d of %d: %w", db.ErrCorrupt, i, count, err)
		}
		snap.Records = append(snap.Records, DecodeRecord(buf))
	}

	return normalize(snap), verify(r, h)
}

// verify checks the optional trailer against the running hash.
func verify(r io.Reader, h hash.Hash64) error {
	sum := h.Sum64()
	var trailer [checksumSize]byte
	n, err := io.ReadFull(r, trailer[:])
	switch {
	case n == 0 && errors.Is(err, io.EOF):
		return nil
	case err != nil:
		return fmt.Errorf("%w: short checksum trailer: %w", db.ErrCorrupt, err)
	}
	if got := binary.LittleEndian.Uint64(trailer[:]); got != sum {
		return fmt.Errorf("%w: stored %016x, computed %016x", db.ErrChecksum, got, sum)
	}
	return nil
}

// normalize keeps next_id above every loaded id so ids are never reused.
func normalize(snap db.Snapshot) db.Snapshot {
	if snap.NextID < 1 {
		snap.NextID = 1
	}
	for i := range snap.Records {
		if id := snap.Records[i].ID(); id >= snap.NextID && id < maxID {
			snap.NextID = id + 1
		}
	}
	return snap
}
