package ipc

import (
	"bytes"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"

	domdoc "github.com/kailas-cloud/docindex/internal/domain/document"
)

func TestSizes(t *testing.T) {
	if RequestSize != 684 {
		t.Errorf("RequestSize = %d, want 684", RequestSize)
	}
	if ResponseSize != 4620 {
		t.Errorf("ResponseSize = %d, want 4620", ResponseSize)
	}
}

func TestRequest_RoundTrip(t *testing.T) {
	in := Request{
		Op:        OpAdd,
		Document:  domdoc.Reconstruct(0, "Os Lusiadas", "Luis de Camoes", "1572", "lusiadas.txt"),
		Keyword:   "mar",
		ClientPID: 4242,
		Workers:   8,
	}

	var buf bytes.Buffer
	if err := WriteRequest(&buf, &in); err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}
	if buf.Len() != RequestSize {
		t.Fatalf("encoded %d bytes, want %d", buf.Len(), RequestSize)
	}

	out, err := ReadRequest(&buf)
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	if out.Op != in.Op || out.Keyword != in.Keyword || out.ClientPID != in.ClientPID || out.Workers != in.Workers {
		t.Errorf("header mismatch: got %+v", out)
	}
	if out.Document.Title() != "Os Lusiadas" || out.Document.Path() != "lusiadas.txt" || out.Document.Year() != "1572" {
		t.Errorf("document mismatch: got %+v", out.Document)
	}
}

func TestRequest_KeywordTooLong(t *testing.T) {
	req := Request{Op: OpSearch, Keyword: strings.Repeat("k", 65)}
	if _, err := req.MarshalBinary(); err == nil {
		t.Fatal("expected error for keyword longer than 64 bytes")
	}
}

func TestRequest_FullWidthKeyword(t *testing.T) {
	kw := strings.Repeat("k", 64)
	in := Request{Op: OpSearch, Keyword: kw}
	buf, err := in.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	var out Request
	if err := out.UnmarshalBinary(buf); err != nil {
		t.Fatal(err)
	}
	if out.Keyword != kw {
		t.Errorf("keyword = %q", out.Keyword)
	}
}

func TestReadRequest_CleanEOF(t *testing.T) {
	_, err := ReadRequest(bytes.NewReader(nil))
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestReadRequest_Short(t *testing.T) {
	_, err := ReadRequest(bytes.NewReader(make([]byte, RequestSize-1)))
	if !errors.Is(err, ErrShortMessage) {
		t.Fatalf("expected ErrShortMessage, got %v", err)
	}
}

func TestResponse_RoundTrip(t *testing.T) {
	in := Response{
		Status:   StatusOK,
		Document: domdoc.Reconstruct(7, "T", "A", "2001", "p.txt"),
		Count:    3,
		IDs:      []int32{1, 2, 40},
	}

	var buf bytes.Buffer
	if err := WriteResponse(&buf, &in); err != nil {
		t.Fatalf("WriteResponse: %v", err)
	}
	out, err := ReadResponse(&buf)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if out.Status != StatusOK || out.Count != 3 || out.Document.ID() != 7 {
		t.Errorf("unexpected response: %+v", out)
	}
	if !slices.Equal(out.IDs, in.IDs) {
		t.Errorf("ids = %v, want %v", out.IDs, in.IDs)
	}
}

func TestResponse_NegativeStatus(t *testing.T) {
	in := Response{Status: StatusResourceExhausted}
	buf, _ := in.MarshalBinary()

	var out Response
	if err := out.UnmarshalBinary(buf); err != nil {
		t.Fatal(err)
	}
	if out.Status != StatusResourceExhausted {
		t.Errorf("status = %d", out.Status)
	}
	if len(out.IDs) != 0 {
		t.Errorf("expected no ids, got %v", out.IDs)
	}
}

func TestResponse_IDsCappedOnWire(t *testing.T) {
	ids := make([]int32, 1200)
	for i := range ids {
		ids[i] = int32(i + 1)
	}
	in := Response{IDs: ids}
	buf, _ := in.MarshalBinary()

	var out Response
	if err := out.UnmarshalBinary(buf); err != nil {
		t.Fatal(err)
	}
	if len(out.IDs) != 1000 || out.IDs[999] != 1000 {
		t.Errorf("expected first 1000 ids, got %d", len(out.IDs))
	}
}

func TestResponse_BadNumIDs(t *testing.T) {
	in := Response{}
	buf, _ := in.MarshalBinary()
	buf[len(buf)-4] = 0xff
	buf[len(buf)-3] = 0xff

	var out Response
	if err := out.UnmarshalBinary(buf); err == nil {
		t.Fatal("expected error for out-of-range num_ids")
	}
}

func TestOp_String(t *testing.T) {
	tests := map[Op]string{
		OpAdd:        "add",
		OpQuery:      "query",
		OpDelete:     "delete",
		OpCountLines: "count_lines",
		OpSearch:     "search",
		OpShutdown:   "shutdown",
		Op(99):       "unknown",
	}
	for op, want := range tests {
		if got := op.String(); got != want {
			t.Errorf("Op(%d).String() = %q, want %q", op, got, want)
		}
	}
}
