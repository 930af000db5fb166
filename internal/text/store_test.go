package text

import (
	"bytes"
	"testing"
)

func TestUpsertDefaultsAndLayoutReset(t *testing.T) {
	s := NewStore()
	s.Upsert(TextRec{ID: 1, X: 3, Y: 4, LayoutWidth: 50, MaxX: 99}, nil, []byte("hello"))

	rec := s.Text(1)
	if rec == nil {
		t.Fatal("text missing after upsert")
	}
	// Layout collapses to the anchor until a measurement comes back.
	if rec.MinX != 3 || rec.MinY != 4 || rec.MaxX != 3 || rec.MaxY != 4 || rec.LayoutWidth != 0 || rec.LayoutHeight != 0 {
		t.Fatalf("layout not reset: %+v", rec)
	}

	runs := s.Runs(1)
	if len(runs) != 1 {
		t.Fatalf("runs = %+v, want one default run", runs)
	}
	want := TextRun{Start: 0, Length: 5, FontID: DefaultFontID, FontSize: DefaultFontSize, ColorRGBA: DefaultColorRGBA}
	if runs[0] != want {
		t.Fatalf("default run = %+v, want %+v", runs[0], want)
	}
}

func TestUpsertReplacesWholesale(t *testing.T) {
	s := NewStore()
	s.Upsert(TextRec{ID: 1}, nil, []byte("first"))
	s.Upsert(TextRec{ID: 1}, []TextRun{{Start: 0, Length: 3, FontID: 8, FontSize: 20, ColorRGBA: 0xFF0000FF}}, []byte("new"))

	if got := string(s.Content(1)); got != "new" {
		t.Fatalf("content = %q", got)
	}
	runs := s.Runs(1)
	if len(runs) != 1 || runs[0].FontID != 8 {
		t.Fatalf("runs = %+v, want the supplied run", runs)
	}
	if s.Count() != 1 {
		t.Fatalf("count = %d", s.Count())
	}
}

func TestInsertContentNormalizesAndAdjustsRuns(t *testing.T) {
	s := NewStore()
	s.Upsert(TextRec{ID: 1}, nil, []byte("ab"))

	// Decomposed e + combining acute collapses to a single code point.
	if !s.InsertContent(1, 1, []byte("é")) {
		t.Fatal("insert rejected")
	}
	if got := string(s.Content(1)); got != "aéb" {
		t.Fatalf("content = %q, want aéb", got)
	}
	if s.LogicalLen(1) != 3 {
		t.Fatalf("logical len = %d, want 3", s.LogicalLen(1))
	}
	runs := s.Runs(1)
	if len(runs) != 1 || runs[0].Length != 3 {
		t.Fatalf("runs = %+v, want single run of 3", runs)
	}

	// Index past the end clamps to an append.
	s.InsertContent(1, 99, []byte("!"))
	if got := string(s.Content(1)); got != "aéb!" {
		t.Fatalf("content = %q", got)
	}
}

func TestDeleteContentMultibyte(t *testing.T) {
	s := NewStore()
	s.Upsert(TextRec{ID: 1}, nil, []byte("aéb"))

	// Logical [1,2) removes the two-byte rune, nothing else.
	if !s.DeleteContent(1, 1, 2) {
		t.Fatal("delete rejected")
	}
	if got := string(s.Content(1)); got != "ab" {
		t.Fatalf("content = %q", got)
	}

	// Reversed or empty ranges are accepted and do nothing.
	if !s.DeleteContent(1, 2, 1) {
		t.Fatal("empty range should be a no-op, not an error")
	}
	if got := string(s.Content(1)); got != "ab" {
		t.Fatalf("content = %q after no-op", got)
	}
}

func TestReplaceContentRange(t *testing.T) {
	s := NewStore()
	s.Upsert(TextRec{ID: 1}, nil, []byte("hello world"))

	if !s.ReplaceContent(1, 6, 11, []byte("there")) {
		t.Fatal("replace rejected")
	}
	if got := string(s.Content(1)); got != "hello there" {
		t.Fatalf("content = %q", got)
	}
	if s.ReplaceContent(99, 0, 1, []byte("x")) {
		t.Fatal("replace on unknown id should fail")
	}
}

func TestCaretClampAndSwap(t *testing.T) {
	s := NewStore()
	s.Upsert(TextRec{ID: 1}, nil, []byte("hello"))

	s.SetCaret(1, 99)
	cs, ok := s.Caret(1)
	if !ok || cs.Caret != 5 {
		t.Fatalf("caret = %+v ok=%v, want clamp to 5", cs, ok)
	}

	// Reversed anchors swap; the caret rides the end of the range.
	s.SetSelection(1, 4, 1)
	cs, _ = s.Caret(1)
	if cs.SelStart != 1 || cs.SelEnd != 4 || cs.Caret != 4 {
		t.Fatalf("selection = %+v, want [1,4) caret 4", cs)
	}

	// Unknown ids are ignored without disturbing the active caret.
	s.SetCaret(42, 0)
	s.SetSelection(42, 0, 1)
	if _, ok := s.Caret(1); !ok {
		t.Fatal("caret moved off the live text")
	}
}

func TestDeleteReleasesCaret(t *testing.T) {
	s := NewStore()
	s.Upsert(TextRec{ID: 1}, nil, []byte("a"))
	s.Upsert(TextRec{ID: 2}, nil, []byte("b"))
	s.SetCaret(1, 1)

	if !s.Delete(1) {
		t.Fatal("delete failed")
	}
	if _, ok := s.Caret(1); ok {
		t.Fatal("caret still on deleted text")
	}
	if !s.Has(2) || s.Has(1) {
		t.Fatal("wrong text deleted")
	}
	if s.Delete(1) {
		t.Fatal("second delete reported work")
	}
}

func TestSetAlignAndIDs(t *testing.T) {
	s := NewStore()
	s.Upsert(TextRec{ID: 3}, nil, nil)
	s.Upsert(TextRec{ID: 1}, nil, nil)

	if !s.SetAlign(3, AlignCenter) {
		t.Fatal("align rejected")
	}
	if s.Text(3).Align != AlignCenter {
		t.Fatalf("align = %d", s.Text(3).Align)
	}
	if s.SetAlign(9, AlignRight) {
		t.Fatal("align on unknown id should fail")
	}

	ids := s.IDs()
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Fatalf("ids = %v, want sorted [1 3]", ids)
	}
}

func TestContentIsCopied(t *testing.T) {
	s := NewStore()
	src := []byte("abc")
	s.Upsert(TextRec{ID: 1}, nil, src)
	src[0] = 'z'
	if !bytes.Equal(s.Content(1), []byte("abc")) {
		t.Fatal("store aliases caller content")
	}
}
