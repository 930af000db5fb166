// Package engine ties the document stores, the command registry and the
// history manager into one facade per open document. The engine owns the
// mutation discipline: every mutating call runs inside a history entry
// (opening one automatically when the caller did not), marks first-touch
// captures before state changes, and queues change events for consumers.
//
// Single-goroutine access only. Hosts that serve a document over the
// network funnel every call through that document's apply loop.
package engine

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/ewdc/engine/internal/command"
	"github.com/ewdc/engine/internal/digest"
	"github.com/ewdc/engine/internal/document"
	"github.com/ewdc/engine/internal/history"
	"github.com/ewdc/engine/internal/proto"
	"github.com/ewdc/engine/internal/snapshot"
	"github.com/ewdc/engine/internal/text"
)

// pointPoolCompactFloor is the minimum pool size before compaction is
// even considered; below it the garbage cannot be worth the copy.
const pointPoolCompactFloor = 256

// Options tunes one engine instance. Zero values fall back to defaults.
type Options struct {
	MergeWindow       time.Duration
	MaxHistoryEntries int
	EventQueueSize    int

	// MaxCommandsPerBuffer rejects buffers declaring more commands than
	// this before any of them apply. Zero means unlimited.
	MaxCommandsPerBuffer int
}

// ViewState is the last committed viewport transform. Render state only:
// it never enters the digest, history entries or snapshots.
type ViewState struct {
	Scale               float32
	X, Y, Width, Height float32
}

// Engine is the mutable document facade. It implements command.Document,
// so the wire handlers drive it directly.
type Engine struct {
	store *document.Store
	texts *text.Store
	sel   *document.Selection
	hist  *history.Manager
	reg   *command.Registry
	log   *zap.Logger

	events *eventRing

	maxCommands int

	// generation counts committed history entries; it stamps entries so
	// merged commits stay distinguishable in the meta.
	generation uint64

	view ViewState
}

// New builds an empty document engine with every built-in command
// handler registered.
func New(log *zap.Logger, opts Options) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	store := document.NewStore()
	texts := text.NewStore()
	sel := document.NewSelection()
	e := &Engine{
		store:  store,
		texts:  texts,
		sel:    sel,
		hist:   history.NewManager(store, texts, sel, opts.MergeWindow),
		log:    log,
		events: newEventRing(opts.EventQueueSize),
		view:   ViewState{Scale: 1},

		maxCommands: opts.MaxCommandsPerBuffer,
	}
	e.hist.SetMaxEntries(opts.MaxHistoryEntries)
	e.reg = command.NewRegistry(log)
	command.RegisterAll(e.reg, &command.Deps{Doc: e, Log: log})
	return e
}

// Store exposes the entity database for read-side collaborators (render,
// digesting, snapshot tooling). Callers must not mutate through it.
func (e *Engine) Store() *document.Store { return e.store }

// Texts exposes the text store, read-only by the same contract as Store.
func (e *Engine) Texts() *text.Store { return e.texts }

// Selection exposes the selection set, read-only by contract.
func (e *Engine) Selection() *document.Selection { return e.sel }

// Registry exposes the command registry so hosts can hook extension
// handlers for ops above the built-in range.
func (e *Engine) Registry() *command.Registry { return e.reg }

// ApplyCommandBuffer decodes and dispatches a full command buffer.
// Commands apply in order and the first failure stops the walk; commands
// already applied stay applied. Each command that did not run inside an
// explicit entry lands as its own history entry.
func (e *Engine) ApplyCommandBuffer(buf []byte) proto.EngineError {
	if e.maxCommands > 0 && proto.CommandCount(buf) > uint32(e.maxCommands) {
		return proto.InvalidOperation
	}
	return proto.ParseCommandBuffer(buf, e.reg.Dispatch)
}

// autoEntry runs fn inside a history entry, opening and committing one
// only when no entry is already active. Explicit BeginEntry callers keep
// control of the commit.
func (e *Engine) autoEntry(fn func()) {
	opened := e.hist.BeginEntry()
	fn()
	if opened {
		e.commitEntry()
	}
}

// autoEntryMerged is autoEntry with a merge key, so bursts of the same
// tagged edit fold into one undo step.
func (e *Engine) autoEntryMerged(tag history.MergeTag, entityID uint32, fn func()) {
	opened := e.hist.BeginEntry()
	if opened {
		e.hist.SetMergeKey(tag, entityID)
	}
	fn()
	if opened {
		e.commitEntry()
	}
}

func (e *Engine) commitEntry() bool {
	e.generation++
	if !e.hist.Commit(e.generation) {
		e.generation--
		return false
	}
	e.events.push(Event{Type: EventHistoryChanged})
	return true
}

// BeginEntry opens an explicit history entry so a batch of mutations
// lands as one undo step. Returns false when an entry is already open.
func (e *Engine) BeginEntry() bool { return e.hist.BeginEntry() }

// CommitEntry closes the open entry. No-op entries are dropped; returns
// whether an entry was actually pushed.
func (e *Engine) CommitEntry() bool { return e.commitEntry() }

// DiscardEntry abandons the open entry without restoring anything.
func (e *Engine) DiscardEntry() { e.hist.DiscardEntry() }

// RollbackEntry restores every capture in the open entry and drops it,
// undoing the partial batch.
func (e *Engine) RollbackEntry() bool {
	if !e.hist.RollbackEntry() {
		return false
	}
	e.events.push(Event{Type: EventDocumentReset})
	return true
}

func (e *Engine) CanUndo() bool { return e.hist.CanUndo() }
func (e *Engine) CanRedo() bool { return e.hist.CanRedo() }

// HistoryMeta reports undo depth, cursor and the history generation.
func (e *Engine) HistoryMeta() history.Meta { return e.hist.Meta() }

// Undo steps the cursor back one entry and restores its before side.
func (e *Engine) Undo() bool {
	rep, ok := e.hist.Undo()
	if !ok {
		return false
	}
	e.emitReport(rep)
	return true
}

// Redo re-applies the entry right of the cursor.
func (e *Engine) Redo() bool {
	rep, ok := e.hist.Redo()
	if !ok {
		return false
	}
	e.emitReport(rep)
	return true
}

func (e *Engine) emitReport(rep history.ApplyReport) {
	created := make(map[uint32]struct{}, len(rep.Created))
	for _, id := range rep.Created {
		created[id] = struct{}{}
	}
	for _, id := range rep.Deleted {
		e.events.push(Event{Type: EventEntityDeleted, EntityID: id})
	}
	for _, id := range rep.Upserted {
		if _, ok := created[id]; ok {
			e.events.push(Event{Type: EventEntityCreated, EntityID: id})
		} else {
			e.events.push(Event{
				Type:       EventEntityChanged,
				EntityID:   id,
				ChangeMask: ChangeGeometry | ChangeStyle | ChangeFlags | ChangeLayer,
			})
		}
	}
	if rep.LayersChanged {
		e.events.push(Event{Type: EventLayersChanged})
	}
	if rep.OrderChanged {
		e.events.push(Event{Type: EventOrderChanged})
	}
	if rep.SelectionChanged {
		e.events.push(Event{Type: EventSelectionChanged})
	}
	e.events.push(Event{Type: EventHistoryChanged})
}

// PollEvents drains the pending event queue.
func (e *Engine) PollEvents() []Event { return e.events.drain() }

// AckResync clears the overflow latch after the consumer has rebuilt its
// view from the document state.
func (e *Engine) AckResync() { e.events.ack() }

// DocumentDigest folds the entire document state into a 128-bit digest.
func (e *Engine) DocumentDigest() digest.Digest {
	return digest.Compute(e.store, e.texts, e.sel)
}

// ---- document lifecycle ----

// ClearAll wipes entities, text, layers and the selection in one undo
// step. The layer table resets to the single default layer.
func (e *Engine) ClearAll() {
	e.autoEntry(func() {
		for _, id := range e.store.SortedEntityIDs() {
			e.hist.MarkEntityChange(id)
		}
		e.hist.MarkLayerChange()
		e.hist.MarkDrawOrderChange()
		e.hist.MarkSelectionChange()
		e.texts.Clear()
		e.store.Clear()
		e.sel.Reset()
	})
	e.events.push(Event{Type: EventDocumentReset})
}

// DeleteEntity removes an entity of any kind. Absent ids return false
// without opening an entry.
func (e *Engine) DeleteEntity(id uint32) bool {
	if e.store.KindOf(id) == 0 {
		return false
	}
	e.autoEntry(func() {
		e.hist.MarkEntityChange(id)
		e.hist.MarkDrawOrderChange()
		if e.sel.IsSelected(id) {
			e.hist.MarkSelectionChange()
		}
		if e.store.KindOf(id) == document.KindText {
			e.texts.Delete(id)
		}
		e.store.DeleteEntity(id)
		e.sel.Prune(e.store)
	})
	e.events.push(Event{Type: EventEntityDeleted, EntityID: id})
	e.maybeCompactPoints()
	return true
}

// SetDrawOrder replaces the back-to-front order verbatim. The caller is
// trusted to pass a permutation of the live ids; snapshot load repairs
// any drift.
func (e *Engine) SetDrawOrder(ids []uint32) {
	e.autoEntry(func() {
		e.hist.MarkDrawOrderChange()
		e.store.DrawOrder = append(e.store.DrawOrder[:0], ids...)
		e.sel.RebuildOrder(e.store.DrawOrder)
	})
	e.events.push(Event{Type: EventOrderChanged})
}

// ReorderEntities moves the given entities within the draw order.
func (e *Engine) ReorderEntities(ids []uint32, action document.ReorderAction) bool {
	changed := false
	e.autoEntry(func() {
		e.hist.MarkDrawOrderChange()
		changed = e.store.Reorder(ids, action)
		if changed {
			e.sel.RebuildOrder(e.store.DrawOrder)
		}
	})
	if changed {
		e.events.push(Event{Type: EventOrderChanged})
	}
	return changed
}

// SetViewScale stores the viewport transform. A non-finite or near-zero
// scale clamps back to 1. Render state only; no history, no events.
func (e *Engine) SetViewScale(scale, x, y, width, height float32) {
	s64 := float64(scale)
	if math.IsNaN(s64) || math.IsInf(s64, 0) || s64 <= 1e-6 {
		scale = 1
	}
	e.view = ViewState{Scale: scale, X: x, Y: y, Width: width, Height: height}
}

// View returns the last committed viewport transform.
func (e *Engine) View() ViewState { return e.view }

// ---- shape upserts ----

func boolFlag(on bool) float32 {
	if on {
		return 1
	}
	return 0
}

// markUpsert does the shared pre-mutation bookkeeping for an upsert of
// the given kind. Returns whether the id is new under that kind (absent,
// or present as another kind; which replays as delete+insert).
func (e *Engine) markUpsert(id uint32, kind document.EntityKind) (isNew bool) {
	prev := e.store.KindOf(id)
	isNew = prev != kind
	e.hist.MarkEntityChange(id)
	if isNew {
		e.hist.MarkDrawOrderChange()
	}
	return isNew
}

func (e *Engine) emitUpsert(id uint32, isNew bool) {
	if isNew {
		e.events.push(Event{Type: EventEntityCreated, EntityID: id})
		return
	}
	e.events.push(Event{Type: EventEntityChanged, EntityID: id, ChangeMask: ChangeGeometry | ChangeStyle})
}

func (e *Engine) UpsertRect(rec document.RectRec) {
	var isNew bool
	e.autoEntry(func() {
		isNew = e.markUpsert(rec.ID, document.KindRect)
		e.store.UpsertRect(rec)
		if isNew {
			e.store.SeedShapeOverrides(rec.ID, true, true, boolFlag(rec.A > 0.5))
		}
		e.store.TrackNextEntityID(rec.ID)
	})
	e.emitUpsert(rec.ID, isNew)
}

func (e *Engine) UpsertLine(rec document.LineRec) {
	var isNew bool
	e.autoEntry(func() {
		isNew = e.markUpsert(rec.ID, document.KindLine)
		e.store.UpsertLine(rec)
		if isNew {
			e.store.SeedShapeOverrides(rec.ID, false, true, 0)
		}
		e.store.TrackNextEntityID(rec.ID)
	})
	e.emitUpsert(rec.ID, isNew)
}

// UpsertPolyline appends the vertices to the shared pool and stores the
// record with its assigned range. Re-upserting leaks the old range until
// the pool compacts.
func (e *Engine) UpsertPolyline(rec document.PolyRec, pts []document.Point2) {
	var isNew bool
	e.autoEntry(func() {
		isNew = e.markUpsert(rec.ID, document.KindPolyline)
		rec.Offset = e.store.AppendPoints(pts)
		rec.Count = uint32(len(pts))
		e.store.UpsertPolyline(rec)
		if isNew {
			e.store.SeedShapeOverrides(rec.ID, false, true, 0)
		}
		e.store.TrackNextEntityID(rec.ID)
	})
	e.emitUpsert(rec.ID, isNew)
	e.maybeCompactPoints()
}

func (e *Engine) UpsertCircle(rec document.CircleRec) {
	var isNew bool
	e.autoEntry(func() {
		isNew = e.markUpsert(rec.ID, document.KindCircle)
		e.store.UpsertCircle(rec)
		if isNew {
			e.store.SeedShapeOverrides(rec.ID, true, true, boolFlag(rec.A > 0.5))
		}
		e.store.TrackNextEntityID(rec.ID)
	})
	e.emitUpsert(rec.ID, isNew)
}

func (e *Engine) UpsertPolygon(rec document.PolygonRec) {
	var isNew bool
	e.autoEntry(func() {
		isNew = e.markUpsert(rec.ID, document.KindPolygon)
		e.store.UpsertPolygon(rec)
		if isNew {
			e.store.SeedShapeOverrides(rec.ID, true, true, boolFlag(rec.A > 0.5))
		}
		e.store.TrackNextEntityID(rec.ID)
	})
	e.emitUpsert(rec.ID, isNew)
}

func (e *Engine) UpsertArrow(rec document.ArrowRec) {
	var isNew bool
	e.autoEntry(func() {
		isNew = e.markUpsert(rec.ID, document.KindArrow)
		e.store.UpsertArrow(rec)
		if isNew {
			e.store.SeedShapeOverrides(rec.ID, false, true, 0)
		}
		e.store.TrackNextEntityID(rec.ID)
	})
	e.emitUpsert(rec.ID, isNew)
}

// maybeCompactPoints compacts the polyline point pool once dead vertices
// dominate it. Live offsets are rewritten in place; history and snapshot
// captures are content-based, so renumbering is invisible to them.
func (e *Engine) maybeCompactPoints() {
	total := len(e.store.Points)
	if total < pointPoolCompactFloor {
		return
	}
	live := 0
	for i := range e.store.Polylines {
		live += int(e.store.Polylines[i].Count)
	}
	if total > live*2 {
		e.store.CompactPolylinePoints()
	}
}

// ---- text ----

func (e *Engine) UpsertText(rec text.TextRec, runs []text.TextRun, content []byte) {
	var isNew bool
	e.autoEntry(func() {
		isNew = e.markUpsert(rec.ID, document.KindText)
		e.texts.Upsert(rec, runs, content)
		e.store.RegisterText(rec.ID)
		e.store.TrackNextEntityID(rec.ID)
	})
	e.emitUpsert(rec.ID, isNew)
}

// DeleteText removes a text entity. Unknown ids succeed without effect;
// a known non-text id is left alone and reported as false.
func (e *Engine) DeleteText(id uint32) bool {
	if !e.texts.Has(id) {
		return e.store.KindOf(id) == 0
	}
	e.autoEntry(func() {
		e.hist.MarkEntityChange(id)
		e.hist.MarkDrawOrderChange()
		if e.sel.IsSelected(id) {
			e.hist.MarkSelectionChange()
		}
		e.texts.Delete(id)
		e.store.DeleteEntity(id)
		e.sel.Prune(e.store)
	})
	e.events.push(Event{Type: EventEntityDeleted, EntityID: id})
	return true
}

// SetTextCaret moves the caret. Ephemeral editing state: no history
// entry, unknown ids are ignored.
func (e *Engine) SetTextCaret(id, caret uint32) {
	e.texts.SetCaret(id, caret)
}

// SetTextSelection sets the in-text selection range. Ephemeral, like the
// caret.
func (e *Engine) SetTextSelection(id, start, end uint32) {
	e.texts.SetSelection(id, start, end)
}

// InsertTextContent inserts at a codepoint index. Consecutive edits to
// the same text fold into one undo step inside the merge window.
func (e *Engine) InsertTextContent(id, index uint32, content []byte) bool {
	if !e.texts.Has(id) {
		return false
	}
	ok := false
	e.autoEntryMerged(history.MergeTextEdit, id, func() {
		e.hist.MarkEntityChange(id)
		ok = e.texts.InsertContent(id, index, content)
	})
	if ok {
		e.events.push(Event{Type: EventEntityChanged, EntityID: id, ChangeMask: ChangeGeometry | ChangeBounds})
	}
	return ok
}

func (e *Engine) DeleteTextContent(id, start, end uint32) bool {
	if !e.texts.Has(id) {
		return false
	}
	ok := false
	e.autoEntryMerged(history.MergeTextEdit, id, func() {
		e.hist.MarkEntityChange(id)
		ok = e.texts.DeleteContent(id, start, end)
	})
	if ok {
		e.events.push(Event{Type: EventEntityChanged, EntityID: id, ChangeMask: ChangeGeometry | ChangeBounds})
	}
	return ok
}

func (e *Engine) ReplaceTextContent(id, start, end uint32, content []byte) bool {
	if !e.texts.Has(id) {
		return false
	}
	ok := false
	e.autoEntryMerged(history.MergeTextEdit, id, func() {
		e.hist.MarkEntityChange(id)
		ok = e.texts.ReplaceContent(id, start, end, content)
	})
	if ok {
		e.events.push(Event{Type: EventEntityChanged, EntityID: id, ChangeMask: ChangeGeometry | ChangeBounds})
	}
	return ok
}

// ApplyTextStyle restyles a codepoint range. A discrete step; style
// strokes never merge with typing.
func (e *Engine) ApplyTextStyle(id, start, end, flagsMask, flagsValue, fontID uint32, fontSize float32) bool {
	if !e.texts.Has(id) {
		return false
	}
	ok := false
	e.autoEntry(func() {
		e.hist.MarkEntityChange(id)
		ok = e.texts.ApplyStyle(id, start, end, flagsMask, flagsValue, fontID, fontSize)
	})
	if ok {
		e.events.push(Event{Type: EventEntityChanged, EntityID: id, ChangeMask: ChangeStyle})
	}
	return ok
}

func (e *Engine) SetTextAlign(id uint32, align uint8) bool {
	if !e.texts.Has(id) {
		return false
	}
	ok := false
	e.autoEntry(func() {
		e.hist.MarkEntityChange(id)
		ok = e.texts.SetAlign(id, align)
	})
	if ok {
		e.events.push(Event{Type: EventEntityChanged, EntityID: id, ChangeMask: ChangeStyle | ChangeBounds})
	}
	return ok
}

// ---- layers ----

// SetLayerProps updates the masked properties of a layer, creating it if
// absent. Flag bits outside the mask keep their current value.
func (e *Engine) SetLayerProps(id uint32, propMask uint32, flags uint32, name string) {
	e.autoEntry(func() {
		e.hist.MarkLayerChange()
		ls := e.store.LayerStore
		ls.EnsureLayer(id)
		ls.TrackNextLayerID(id)
		if propMask&document.LayerPropName != 0 {
			ls.SetName(id, name)
		}
		if propMask&document.LayerPropVisible != 0 {
			ls.SetFlags(id, document.FlagVisible, flags&document.FlagVisible)
		}
		if propMask&document.LayerPropLocked != 0 {
			ls.SetFlags(id, document.FlagLocked, flags&document.FlagLocked)
		}
		// Hiding or locking a layer can strand selected entities.
		if e.sel.Prune(e.store) {
			e.hist.MarkSelectionChange()
		}
	})
	e.events.push(Event{Type: EventLayersChanged})
}

// DeleteLayer removes a layer; its entities fall back to the default
// layer during style resolution. The default layer itself is refused.
func (e *Engine) DeleteLayer(id uint32) bool {
	if id == document.DefaultLayerID || !e.store.LayerStore.Has(id) {
		return false
	}
	e.autoEntry(func() {
		e.hist.MarkLayerChange()
		e.store.LayerStore.DeleteLayer(id)
	})
	e.events.push(Event{Type: EventLayersChanged})
	return true
}

// Layers returns the layer table re-ranked by order, for panels and
// tooling.
func (e *Engine) Layers() []document.LayerRecord {
	return e.store.LayerStore.Snapshot()
}

func (e *Engine) AllocateEntityID() uint32 { return e.store.AllocateEntityID() }
func (e *Engine) AllocateLayerID() uint32  { return e.store.LayerStore.AllocateLayerID() }

// ---- entity metadata ----

func (e *Engine) EntityKindOf(id uint32) document.EntityKind { return e.store.KindOf(id) }

// SetEntityFlags rewrites the masked flag bits of one entity.
func (e *Engine) SetEntityFlags(id, mask, value uint32) bool {
	if e.store.KindOf(id) == 0 {
		return false
	}
	e.autoEntry(func() {
		e.hist.MarkEntityChange(id)
		if e.sel.IsSelected(id) {
			e.hist.MarkSelectionChange()
		}
		e.store.SetEntityFlags(id, mask, value)
		e.sel.Prune(e.store)
	})
	e.events.push(Event{Type: EventEntityChanged, EntityID: id, ChangeMask: ChangeFlags})
	return true
}

func (e *Engine) EntityFlags(id uint32) uint32 { return e.store.EntityFlags(id) }

// SetEntityLayer moves an entity to another layer, creating the layer
// record if needed.
func (e *Engine) SetEntityLayer(id, layer uint32) bool {
	if e.store.KindOf(id) == 0 {
		return false
	}
	e.autoEntry(func() {
		e.hist.MarkEntityChange(id)
		if e.sel.IsSelected(id) {
			e.hist.MarkSelectionChange()
		}
		e.store.LayerStore.EnsureLayer(layer)
		e.store.LayerStore.TrackNextLayerID(layer)
		e.store.SetEntityLayer(id, layer)
		e.sel.Prune(e.store)
	})
	e.events.push(Event{Type: EventEntityChanged, EntityID: id, ChangeMask: ChangeLayer})
	return true
}

func (e *Engine) EntityLayer(id uint32) uint32 { return e.store.EntityLayer(id) }

// ---- selection ----

// SetSelection applies ids under the given combine mode.
func (e *Engine) SetSelection(ids []uint32, mode document.SelectMode) bool {
	changed := false
	e.autoEntry(func() {
		e.hist.MarkSelectionChange()
		changed = e.sel.SetSelection(e.store, ids, mode)
	})
	if changed {
		e.events.push(Event{Type: EventSelectionChanged})
	}
	return changed
}

func (e *Engine) ClearSelection() bool {
	changed := false
	e.autoEntry(func() {
		e.hist.MarkSelectionChange()
		changed = e.sel.ClearSelection()
	})
	if changed {
		e.events.push(Event{Type: EventSelectionChanged})
	}
	return changed
}

// SelectionStyleSummary aggregates the resolved style across the current
// selection, the shape a properties panel binds to.
func (e *Engine) SelectionStyleSummary() document.SelectionStyleSummary {
	return e.sel.StyleSummary(e.store)
}

// ---- style ----

// SetLayerStyleColor rewrites one target's color in a layer's style
// table. Out-of-range targets are a no-op; absent layers are created.
func (e *Engine) SetLayerStyleColor(layerID uint32, target proto.StyleTarget, colorRGBA uint32) {
	if !target.Valid() {
		return
	}
	e.autoEntry(func() {
		e.hist.MarkLayerChange()
		ls := e.store.LayerStore
		ls.EnsureLayer(layerID)
		ls.TrackNextLayerID(layerID)
		st := ls.Style(layerID)
		entry := styleEntryFor(&st, target)
		r, g, b, a := proto.UnpackColorRGBA(colorRGBA)
		entry.Color = document.StyleColor{R: r, G: g, B: b, A: a}
		ls.SetStyle(layerID, st)
	})
	e.events.push(Event{Type: EventLayersChanged})
}

// SetLayerStyleEnabled toggles one target in a layer's style table.
func (e *Engine) SetLayerStyleEnabled(layerID uint32, target proto.StyleTarget, enabled bool) {
	if !target.Valid() {
		return
	}
	e.autoEntry(func() {
		e.hist.MarkLayerChange()
		ls := e.store.LayerStore
		ls.EnsureLayer(layerID)
		ls.TrackNextLayerID(layerID)
		st := ls.Style(layerID)
		styleEntryFor(&st, target).Enabled = boolFlag(enabled)
		ls.SetStyle(layerID, st)
	})
	e.events.push(Event{Type: EventLayersChanged})
}

func styleEntryFor(st *document.LayerStyle, target proto.StyleTarget) *document.StyleEntry {
	switch target {
	case proto.TargetStroke:
		return &st.Stroke
	case proto.TargetFill:
		return &st.Fill
	case proto.TargetTextColor:
		return &st.TextColor
	default:
		return &st.TextBackground
	}
}

// SetEntityStyleOverride sets a winning per-entity color on every id that
// supports the target.
func (e *Engine) SetEntityStyleOverride(ids []uint32, target proto.StyleTarget, colorRGBA uint32) {
	if !target.Valid() {
		return
	}
	r, g, b, a := proto.UnpackColorRGBA(colorRGBA)
	c := document.StyleColor{R: r, G: g, B: b, A: a}
	e.autoEntry(func() {
		for _, id := range ids {
			if !e.store.SupportsStyleTarget(id, target) {
				continue
			}
			e.hist.MarkEntityChange(id)
			if e.store.ApplyStyleColor(id, target, c) {
				e.events.push(Event{Type: EventEntityChanged, EntityID: id, ChangeMask: ChangeStyle})
			}
		}
	})
}

// ClearEntityStyleOverride drops the per-entity color so the layer value
// shows through again.
func (e *Engine) ClearEntityStyleOverride(ids []uint32, target proto.StyleTarget) {
	if !target.Valid() {
		return
	}
	e.autoEntry(func() {
		for _, id := range ids {
			if e.store.KindOf(id) == 0 {
				continue
			}
			e.hist.MarkEntityChange(id)
			if e.store.ClearStyleOverride(id, target) {
				e.events.push(Event{Type: EventEntityChanged, EntityID: id, ChangeMask: ChangeStyle})
			}
		}
	})
}

// SetEntityStyleEnabled toggles a target per entity, overriding the
// layer's enabled state.
func (e *Engine) SetEntityStyleEnabled(ids []uint32, target proto.StyleTarget, enabled bool) {
	if !target.Valid() {
		return
	}
	e.autoEntry(func() {
		for _, id := range ids {
			if !e.store.SupportsStyleTarget(id, target) {
				continue
			}
			e.hist.MarkEntityChange(id)
			if e.store.ApplyStyleEnabled(id, target, enabled) {
				e.events.push(Event{Type: EventEntityChanged, EntityID: id, ChangeMask: ChangeStyle})
			}
		}
	})
}

// ResolveStyle runs the layer/override cascade for one entity.
func (e *Engine) ResolveStyle(id uint32) document.ResolvedStyle {
	return e.store.ResolveStyle(id)
}

// ---- snapshots ----

// SaveSnapshot serializes the full document, history included, into the
// container format.
func (e *Engine) SaveSnapshot() []byte {
	return snapshot.Build(e.store, e.texts, e.sel, e.hist.EncodeBytes())
}

// LoadSnapshot replaces the document with the snapshot contents. The
// undo slice is rebuilt from the snapshot's history section (empty when
// the snapshot carries none). On a parse error the document is left
// untouched.
func (e *Engine) LoadSnapshot(data []byte) proto.EngineError {
	snap, errc := snapshot.Parse(data)
	if errc != proto.Ok {
		return errc
	}
	e.hist.Suppress(func() {
		snapshot.Apply(snap, e.store, e.texts, e.sel)
	})
	e.hist.Clear()
	if len(snap.History) > 0 {
		e.hist.DecodeBytes(snap.History)
	}
	e.events.push(Event{Type: EventDocumentReset})
	return proto.Ok
}
