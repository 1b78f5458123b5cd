package document

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/docindex/internal/domain"
)

func TestNew_Valid(t *testing.T) {
	doc, err := New("Os Lusiadas", "Luis de Camoes", "1572", "lusiadas.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ID() != 0 {
		t.Errorf("ID() = %d, want 0 before assignment", doc.ID())
	}
	if doc.Title() != "Os Lusiadas" {
		t.Errorf("Title() = %q", doc.Title())
	}
	if doc.Authors() != "Luis de Camoes" {
		t.Errorf("Authors() = %q", doc.Authors())
	}
	if doc.Year() != "1572" {
		t.Errorf("Year() = %q", doc.Year())
	}
	if doc.Path() != "lusiadas.txt" {
		t.Errorf("Path() = %q", doc.Path())
	}
}

func TestNew_EmptyPath(t *testing.T) {
	_, err := New("t", "a", "2000", "")
	if err == nil {
		t.Fatal("expected error for empty path")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Errorf("error = %q", err)
	}
}

func TestNew_PathTooLong(t *testing.T) {
	_, err := New("t", "a", "2000", strings.Repeat("p", MaxPathSize+1))
	if err == nil {
		t.Fatal("expected error for path too long")
	}
	if !errors.Is(err, domain.ErrPathTooLong) {
		t.Errorf("expected ErrPathTooLong, got %v", err)
	}
}

func TestNew_PathAtMaxSize(t *testing.T) {
	if _, err := New("t", "a", "2000", strings.Repeat("p", MaxPathSize)); err != nil {
		t.Fatalf("unexpected error for path at max size: %v", err)
	}
}

func TestNew_PathWithNUL(t *testing.T) {
	if _, err := New("t", "a", "2000", "a\x00b"); err == nil {
		t.Fatal("expected error for NUL in path")
	}
}

func TestNew_TruncatesFields(t *testing.T) {
	doc, err := New(strings.Repeat("t", MaxTitleSize+10), strings.Repeat("a", MaxAuthorsSize+1), "19999", "p")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Title()) != MaxTitleSize {
		t.Errorf("len(Title()) = %d, want %d", len(doc.Title()), MaxTitleSize)
	}
	if len(doc.Authors()) != MaxAuthorsSize {
		t.Errorf("len(Authors()) = %d, want %d", len(doc.Authors()), MaxAuthorsSize)
	}
	if doc.Year() != "1999" {
		t.Errorf("Year() = %q, want %q", doc.Year(), "1999")
	}
}

func TestNew_TruncateKeepsRunesWhole(t *testing.T) {
	// 199 ASCII bytes followed by a two-byte rune straddling the limit
	title := strings.Repeat("x", MaxTitleSize-1) + "é"
	doc, err := New(title, "", "", "p")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title() != strings.Repeat("x", MaxTitleSize-1) {
		t.Errorf("Title() should drop the split rune, got len %d", len(doc.Title()))
	}
}

func TestWithID(t *testing.T) {
	doc, _ := New("t", "a", "2001", "p.txt")
	doc2 := doc.WithID(7)

	if doc.ID() != 0 {
		t.Error("original document should keep id 0")
	}
	if doc2.ID() != 7 {
		t.Errorf("WithID doc has id %d", doc2.ID())
	}
	if doc2.Path() != "p.txt" {
		t.Error("WithID should preserve path")
	}
}

func TestReconstruct_SkipsValidation(t *testing.T) {
	doc := Reconstruct(3, "", "", "", "")
	if doc.ID() != 3 {
		t.Errorf("ID() = %d", doc.ID())
	}
	if doc.Path() != "" {
		t.Errorf("Reconstruct should skip validation")
	}
}
