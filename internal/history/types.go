// Package history records document mutations as undoable entries. Entries
// hold full before/after state captures, not operation deltas: applying a
// side is a blind restore, so undo never depends on an operation knowing
// how to invert itself. Entries live in one slice with a cursor; the
// part left of the cursor is the undo past, the part right of it the redo
// future; pushing while the cursor sits mid-slice discards the future.
package history

import (
	"github.com/ewdc/engine/internal/document"
	"github.com/ewdc/engine/internal/text"
)

// MergeTag classifies an entry for commit folding. Consecutive entries
// with the same non-zero tag and merge entity collapse into one undo step
// when they land within the merge window (burst typing becomes one entry).
type MergeTag uint8

const (
	MergeNone     MergeTag = 0
	MergeTextEdit MergeTag = 1
)

// EntitySnapshot is the full captured state of one entity. Only the slot
// matching Kind is meaningful; the rest stay zero. Polyline points are
// renormalized to offset 0 at capture and re-appended to the pool tail on
// restore.
type EntitySnapshot struct {
	ID      uint32
	Kind    document.EntityKind
	LayerID uint32
	Flags   uint32

	// Zero masks mean the entity had no override record.
	Overrides document.StyleOverrides

	Rect    document.RectRec
	Line    document.LineRec
	Poly    document.PolyRec
	Circle  document.CircleRec
	Polygon document.PolygonRec
	Arrow   document.ArrowRec

	TextRec     text.TextRec
	TextRuns    []text.TextRun
	TextContent []byte

	Points []document.Point2
}

// EntityChange pairs the before/after captures for one touched entity.
// A missing side (entity did not exist) is flagged rather than stored.
type EntityChange struct {
	ID            uint32
	ExistedBefore bool
	ExistedAfter  bool
	Before        EntitySnapshot
	After         EntitySnapshot
}

// Entry is one undo step. Section flags tell which captures are present;
// absent sections were untouched by the step and replay as no-ops.
type Entry struct {
	HasLayerChange bool
	LayersBefore   []document.LayerRecord
	LayersAfter    []document.LayerRecord

	Entities []EntityChange // sorted by id at commit

	HasDrawOrderChange bool
	DrawOrderBefore    []uint32
	DrawOrderAfter     []uint32

	HasSelectionChange bool
	SelectionBefore    []uint32
	SelectionAfter     []uint32

	NextIDBefore uint32
	NextIDAfter  uint32

	Generation    uint64
	MergeTag      MergeTag
	MergeEntityID uint32
	TimestampMs   int64
}

// Meta is the queryable shape of the manager: how deep the slice is,
// where the cursor sits, and a generation that bumps on every structural
// change (push, merge, undo, redo, clear).
type Meta struct {
	Depth      int
	Cursor     int
	Generation uint64
}

// ApplyReport says what an undo/redo actually touched, so the caller can
// emit the matching change events. Created is the subset of Upserted that
// came into existence during the restore.
type ApplyReport struct {
	LayersChanged    bool
	OrderChanged     bool
	SelectionChanged bool
	Deleted          []uint32
	Upserted         []uint32
	Created          []uint32
}
