// Package ipc implements the fixed-size binary request/response protocol
// spoken over named pipes, and the request processor behind it.
package ipc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/kailas-cloud/docindex/internal/db/file"
	domdoc "github.com/kailas-cloud/docindex/internal/domain/document"
	"github.com/kailas-cloud/docindex/internal/domain/search/request"
	"github.com/kailas-cloud/docindex/internal/domain/search/result"
)

// Op is a request operation code.
type Op int32

// Operation codes.
const (
	OpAdd        Op = 1
	OpQuery      Op = 2
	OpDelete     Op = 3
	OpCountLines Op = 4
	OpSearch     Op = 5
	OpShutdown   Op = 6
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpQuery:
		return "query"
	case OpDelete:
		return "delete"
	case OpCountLines:
		return "count_lines"
	case OpSearch:
		return "search"
	case OpShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Status is a response status code. Zero is success.
type Status int32

// Status codes.
const (
	StatusOK                Status = 0
	StatusNotFound          Status = -1
	StatusInvalidOperation  Status = -2
	StatusPathUnreadable    Status = -3
	StatusPathTooLong       Status = -4
	StatusResourceExhausted Status = -5
)

// Wire sizes in bytes. All integers are little-endian int32.
const (
	// KeywordSize is the keyword field width.
	KeywordSize = request.MaxKeywordSize
	// RequestSize is op + record + keyword + client_pid + workers.
	RequestSize = 4 + file.RecordSize + request.MaxKeywordSize + 4 + 4
	// ResponseSize is status + record + count + ids + num_ids.
	ResponseSize = 4 + file.RecordSize + 4 + 4*result.DefaultMaxIDs + 4
)

// ErrShortMessage is returned when a message ends before its fixed size.
var ErrShortMessage = errors.New("short message")

// Request is one client request. Document carries the id for lookups and
// the metadata for Add.
type Request struct {
	Op        Op
	Document  domdoc.Document
	Keyword   string
	ClientPID int32
	Workers   int32
}

// Response is the server answer to one Request.
type Response struct {
	Status   Status
	Document domdoc.Document
	Count    int32
	IDs      []int32
}

// MarshalBinary encodes the request into RequestSize bytes.
func (r *Request) MarshalBinary() ([]byte, error) {
	if len(r.Keyword) > request.MaxKeywordSize {
		return nil, fmt.Errorf("keyword too long (max %d bytes)", request.MaxKeywordSize)
	}
	buf := make([]byte, RequestSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.Op))
	off := 4
	file.EncodeRecord(buf[off:off+file.RecordSize], &r.Document)
	off += file.RecordSize
	copy(buf[off:off+request.MaxKeywordSize], r.Keyword)
	off += request.MaxKeywordSize
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(r.ClientPID))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(r.Workers))
	return buf, nil
}

// UnmarshalBinary decodes a request from exactly RequestSize bytes.
func (r *Request) UnmarshalBinary(buf []byte) error {
	if len(buf) != RequestSize {
		return fmt.Errorf("request of %d bytes, want %d: %w", len(buf), RequestSize, ErrShortMessage)
	}
	r.Op = Op(int32(binary.LittleEndian.Uint32(buf[0:4])))
	off := 4
	r.Document = file.DecodeRecord(buf[off : off+file.RecordSize])
	off += file.RecordSize
	r.Keyword = cString(buf[off : off+request.MaxKeywordSize])
	off += request.MaxKeywordSize
	r.ClientPID = int32(binary.LittleEndian.Uint32(buf[off : off+4]))
	off += 4
	r.Workers = int32(binary.LittleEndian.Uint32(buf[off : off+4]))
	return nil
}

// MarshalBinary encodes the response into ResponseSize bytes. Ids beyond
// the wire capacity are dropped.
func (r *Response) MarshalBinary() ([]byte, error) {
	buf := make([]byte, ResponseSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.Status))
	off := 4
	file.EncodeRecord(buf[off:off+file.RecordSize], &r.Document)
	off += file.RecordSize
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(r.Count))
	off += 4

	ids := r.IDs
	if len(ids) > result.DefaultMaxIDs {
		ids = ids[:result.DefaultMaxIDs]
	}
	for i, id := range ids {
		binary.LittleEndian.PutUint32(buf[off+4*i:], uint32(id))
	}
	off += 4 * result.DefaultMaxIDs
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(ids)))
	return buf, nil
}

// UnmarshalBinary decodes a response from exactly ResponseSize bytes.
func (r *Response) UnmarshalBinary(buf []byte) error {
	if len(buf) != ResponseSize {
		return fmt.Errorf("response of %d bytes, want %d: %w", len(buf), ResponseSize, ErrShortMessage)
	}
	r.Status = Status(int32(binary.LittleEndian.Uint32(buf[0:4])))
	off := 4
	r.Document = file.DecodeRecord(buf[off : off+file.RecordSize])
	off += file.RecordSize
	r.Count = int32(binary.LittleEndian.Uint32(buf[off : off+4]))
	off += 4
	idsOff := off
	off += 4 * result.DefaultMaxIDs

	n := int(int32(binary.LittleEndian.Uint32(buf[off : off+4])))
	if n < 0 || n > result.DefaultMaxIDs {
		return fmt.Errorf("response num_ids %d out of range", n)
	}
	r.IDs = make([]int32, n)
	for i := 0; i < n; i++ {
		r.IDs[i] = int32(binary.LittleEndian.Uint32(buf[idsOff+4*i:]))
	}
	return nil
}

// ReadRequest reads one fixed-size request. io.EOF is returned untouched
// when the stream ends cleanly between messages.
func ReadRequest(rd io.Reader) (Request, error) {
	var req Request
	buf := make([]byte, RequestSize)
	if err := readFull(rd, buf); err != nil {
		return req, err
	}
	if err := req.UnmarshalBinary(buf); err != nil {
		return req, err
	}
	return req, nil
}

// WriteRequest writes one request.
func WriteRequest(w io.Writer, req *Request) error {
	buf, err := req.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	return nil
}

// ReadResponse reads one fixed-size response.
func ReadResponse(rd io.Reader) (Response, error) {
	var resp Response
	buf := make([]byte, ResponseSize)
	if err := readFull(rd, buf); err != nil {
		return resp, err
	}
	if err := resp.UnmarshalBinary(buf); err != nil {
		return resp, err
	}
	return resp, nil
}

// WriteResponse writes one response.
func WriteResponse(w io.Writer, resp *Response) error {
	buf, err := resp.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

func readFull(rd io.Reader, buf []byte) error {
	n, err := io.ReadFull(rd, buf)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		return io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("read %d of %d bytes: %w", n, len(buf), ErrShortMessage)
	default:
		return fmt.Errorf("read message: %w", err)
	}
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
