package text

import (
	"sort"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Store holds every text entity of one document: records, content
// buffers, run lists and the single caret. DeleteText here does not touch
// the document's entity table or draw order; the engine composes both.
//
// Accessed only from the owning document goroutine; no locks needed.
type Store struct {
	texts    map[uint32]*TextRec
	contents map[uint32][]byte
	runs     map[uint32][]TextRun
	caret    *CaretState
}

func NewStore() *Store {
	return &Store{
		texts:    make(map[uint32]*TextRec),
		contents: make(map[uint32][]byte),
		runs:     make(map[uint32][]TextRun),
	}
}

// Clear drops every text entity and the caret.
func (s *Store) Clear() {
	s.texts = make(map[uint32]*TextRec)
	s.contents = make(map[uint32][]byte)
	s.runs = make(map[uint32][]TextRun)
	s.caret = nil
}

// Upsert creates or replaces a text entity wholesale. Content and runs
// are taken as-is; when content arrives without runs a default run is
// laid over all of it. Layout results collapse to a point at the anchor
// until the next layout pass writes them back.
func (s *Store) Upsert(rec TextRec, runs []TextRun, content []byte) {
	stored := s.texts[rec.ID]
	if stored == nil {
		stored = &TextRec{}
		s.texts[rec.ID] = stored
	}
	*stored = rec
	stored.LayoutWidth = 0
	stored.LayoutHeight = 0
	stored.MinX, stored.MinY = rec.X, rec.Y
	stored.MaxX, stored.MaxY = rec.X, rec.Y

	buf := make([]byte, len(content))
	copy(buf, content)
	s.contents[rec.ID] = buf

	rs := make([]TextRun, len(runs))
	copy(rs, runs)
	if len(rs) == 0 && len(buf) > 0 {
		rs = append(rs, defaultRun(logicalLen(buf)))
	}
	s.runs[rec.ID] = rs
}

// Delete removes a text entity, releasing the caret if it sat on it.
func (s *Store) Delete(id uint32) bool {
	if _, ok := s.texts[id]; !ok {
		return false
	}
	delete(s.texts, id)
	delete(s.contents, id)
	delete(s.runs, id)
	if s.caret != nil && s.caret.TextID == id {
		s.caret = nil
	}
	return true
}

// Has reports whether the text entity exists.
func (s *Store) Has(id uint32) bool {
	_, ok := s.texts[id]
	return ok
}

// Text returns the mutable record, nil when missing.
func (s *Store) Text(id uint32) *TextRec {
	return s.texts[id]
}

// Content returns the UTF-8 content buffer, nil when missing.
func (s *Store) Content(id uint32) []byte {
	return s.contents[id]
}

// Runs returns the run list, nil when missing.
func (s *Store) Runs(id uint32) []TextRun {
	return s.runs[id]
}

// Count returns the number of text entities.
func (s *Store) Count() int {
	return len(s.texts)
}

// IDs returns every text entity id ascending.
func (s *Store) IDs() []uint32 {
	ids := make([]uint32, 0, len(s.texts))
	for id := range s.texts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// LogicalLen returns the content length in code points.
func (s *Store) LogicalLen(id uint32) uint32 {
	return logicalLen(s.contents[id])
}

// SetLayoutResult writes a layout pass's bounds back onto the record.
func (s *Store) SetLayoutResult(id uint32, width, height, minX, minY, maxX, maxY float32) {
	rec := s.texts[id]
	if rec == nil {
		return
	}
	rec.LayoutWidth = width
	rec.LayoutHeight = height
	rec.MinX, rec.MinY = minX, minY
	rec.MaxX, rec.MaxY = maxX, maxY
}

// InsertContent inserts NFC-normalized data at a logical index (clamped
// to the content length). Runs shift to keep covering the same text; a
// zero-length run waiting at the index expands over the insertion.
func (s *Store) InsertContent(id uint32, index uint32, data []byte) bool {
	content, ok := s.contents[id]
	if !ok {
		return false
	}
	data = norm.NFC.Bytes(data)
	if len(data) == 0 {
		return true
	}
	index = clampU32(index, logicalLen(content))
	byteAt := byteOffset(content, index)

	next := make([]byte, 0, len(content)+len(data))
	next = append(next, content[:byteAt]...)
	next = append(next, data...)
	next = append(next, content[byteAt:]...)
	s.contents[id] = next

	n := logicalLen(data)
	if len(s.runs[id]) == 0 {
		s.runs[id] = []TextRun{defaultRun(logicalLen(next))}
	} else {
		s.runs[id] = adjustRunsAfterInsert(s.runs[id], index, n)
	}
	return true
}

// DeleteContent removes the logical range [start, end). Indices clamp to
// the content length; an empty range is a successful no-op.
func (s *Store) DeleteContent(id uint32, start, end uint32) bool {
	content, ok := s.contents[id]
	if !ok {
		return false
	}
	total := logicalLen(content)
	start = clampU32(start, total)
	end = clampU32(end, total)
	if start >= end {
		return true
	}
	byteStart := byteOffset(content, start)
	byteEnd := byteOffset(content, end)

	next := make([]byte, 0, len(content)-(byteEnd-byteStart))
	next = append(next, content[:byteStart]...)
	next = append(next, content[byteEnd:]...)
	s.contents[id] = next

	s.runs[id] = adjustRunsAfterDelete(s.runs[id], start, end-start)
	return true
}

// ReplaceContent deletes [start, end) then inserts data at start.
func (s *Store) ReplaceContent(id uint32, start, end uint32, data []byte) bool {
	if !s.DeleteContent(id, start, end) {
		return false
	}
	return s.InsertContent(id, start, data)
}

// SetAlign changes the horizontal alignment.
func (s *Store) SetAlign(id uint32, align uint8) bool {
	rec := s.texts[id]
	if rec == nil {
		return false
	}
	rec.Align = align
	return true
}

// SetCaret places the caret, collapsing any selection. Unknown ids are
// ignored; the caret is session state, not content.
func (s *Store) SetCaret(id uint32, index uint32) {
	if !s.Has(id) {
		return
	}
	index = clampU32(index, s.LogicalLen(id))
	s.caret = &CaretState{TextID: id, Caret: index, SelStart: index, SelEnd: index}
}

// SetSelection selects [start, end) with the caret at the end. Reversed
// ranges are normalized; indices clamp to the content length.
func (s *Store) SetSelection(id uint32, start, end uint32) {
	if !s.Has(id) {
		return
	}
	total := s.LogicalLen(id)
	start = clampU32(start, total)
	end = clampU32(end, total)
	if start > end {
		start, end = end, start
	}
	s.caret = &CaretState{TextID: id, Caret: end, SelStart: start, SelEnd: end}
}

// Caret returns the caret state if it sits on the given text.
func (s *Store) Caret(id uint32) (CaretState, bool) {
	if s.caret == nil || s.caret.TextID != id {
		return CaretState{}, false
	}
	return *s.caret, true
}

// ClearCaret ends the edit session.
func (s *Store) ClearCaret() {
	s.caret = nil
}

func defaultRun(length uint32) TextRun {
	return TextRun{
		Start:     0,
		Length:    length,
		FontID:    DefaultFontID,
		FontSize:  DefaultFontSize,
		ColorRGBA: DefaultColorRGBA,
	}
}

func clampU32(v, max uint32) uint32 {
	if v > max {
		return max
	}
	return v
}

func logicalLen(b []byte) uint32 {
	return uint32(utf8.RuneCount(b))
}

// byteOffset maps a logical index to its byte offset. The index must
// already be clamped.
func byteOffset(b []byte, logical uint32) int {
	off := 0
	for i := uint32(0); i < logical; i++ {
		_, size := utf8.DecodeRune(b[off:])
		if size == 0 {
			break
		}
		off += size
	}
	return off
}
