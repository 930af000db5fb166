package history

import (
	"sort"
	"time"

	"github.com/ewdc/engine/internal/document"
	"github.com/ewdc/engine/internal/text"
)

// DefaultMergeWindow bounds how far apart two entries may land and still
// fold into one undo step.
const DefaultMergeWindow = time.Second

// Manager owns the undo slice for one document. Capture is first-touch:
// marking an entity, the layer table, the draw order or the selection
// inside an open entry snapshots the *before* state once; commit captures
// the after side, drops sections that did not actually change, and pushes.
// Accessed only from the owning document goroutine; no locks needed.
type Manager struct {
	store *document.Store
	texts *text.Store
	sel   *document.Selection

	entries    []Entry
	cursor     int
	generation uint64
	suppressed bool

	txActive bool
	txEntry  Entry
	txIndex  map[uint32]int // entity id → index into txEntry.Entities

	window     time.Duration
	maxEntries int
	now        func() time.Time
}

func NewManager(store *document.Store, texts *text.Store, sel *document.Selection, window time.Duration) *Manager {
	if window <= 0 {
		window = DefaultMergeWindow
	}
	return &Manager{
		store:  store,
		texts:  texts,
		sel:    sel,
		window: window,
		now:    time.Now,
	}
}

// Clear drops all entries and any open transaction.
// SetMaxEntries caps the undo depth; zero means unbounded. When a push
// exceeds the cap the oldest entry falls off; that edit simply becomes
// permanent.
func (m *Manager) SetMaxEntries(n int) {
	if n < 0 {
		n = 0
	}
	m.maxEntries = n
}

func (m *Manager) Clear() {
	m.entries = nil
	m.cursor = 0
	m.txActive = false
	m.txEntry = Entry{}
	m.txIndex = nil
	m.generation++
}

func (m *Manager) CanUndo() bool { return m.cursor > 0 }
func (m *Manager) CanRedo() bool { return m.cursor < len(m.entries) }

func (m *Manager) Meta() Meta {
	return Meta{Depth: len(m.entries), Cursor: m.cursor, Generation: m.generation}
}

// Suppressed reports whether capture is currently off (replay in flight).
func (m *Manager) Suppressed() bool { return m.suppressed }

// Suppress runs fn with capture off. Used by snapshot load and replay
// paths whose mutations must not become undo steps.
func (m *Manager) Suppress(fn func()) {
	was := m.suppressed
	m.suppressed = true
	fn()
	m.suppressed = was
}

// BeginEntry opens a transaction. Returns false when capture is off or an
// entry is already open; the caller then skips the matching Commit.
func (m *Manager) BeginEntry() bool {
	if m.suppressed || m.txActive {
		return false
	}
	next := m.store.NextEntityID()
	m.txActive = true
	m.txEntry = Entry{NextIDBefore: next, NextIDAfter: next}
	m.txIndex = make(map[uint32]int)
	return true
}

// DiscardEntry abandons the open transaction without applying or pushing.
func (m *Manager) DiscardEntry() {
	m.txActive = false
	m.txEntry = Entry{}
	m.txIndex = nil
}

// SetMergeKey tags the open entry for commit folding.
func (m *Manager) SetMergeKey(tag MergeTag, entityID uint32) {
	if !m.txActive || m.suppressed {
		return
	}
	m.txEntry.MergeTag = tag
	m.txEntry.MergeEntityID = entityID
}

// MarkEntityChange captures the entity's before state, once per entry.
func (m *Manager) MarkEntityChange(id uint32) {
	if !m.txActive || m.suppressed {
		return
	}
	if _, ok := m.txIndex[id]; ok {
		return
	}
	m.txIndex[id] = len(m.txEntry.Entities)
	change := EntityChange{ID: id}
	change.ExistedBefore = m.captureEntity(id, &change.Before)
	m.txEntry.Entities = append(m.txEntry.Entities, change)
}

// MarkLayerChange captures the whole layer table, once per entry.
func (m *Manager) MarkLayerChange() {
	if !m.txActive || m.suppressed || m.txEntry.HasLayerChange {
		return
	}
	m.txEntry.LayersBefore = m.store.LayerStore.Snapshot()
	m.txEntry.HasLayerChange = true
}

// MarkDrawOrderChange captures the draw order, once per entry.
func (m *Manager) MarkDrawOrderChange() {
	if !m.txActive || m.suppressed || m.txEntry.HasDrawOrderChange {
		return
	}
	m.txEntry.DrawOrderBefore = append([]uint32(nil), m.store.DrawOrder...)
	m.txEntry.HasDrawOrderChange = true
}

// MarkSelectionChange captures the ordered selection, once per entry.
func (m *Manager) MarkSelectionChange() {
	if !m.txActive || m.suppressed || m.txEntry.HasSelectionChange {
		return
	}
	m.txEntry.SelectionBefore = append([]uint32(nil), m.sel.IDs()...)
	m.txEntry.HasSelectionChange = true
}

// Commit finalizes the open entry and pushes it. Sections whose before and
// after sides compare equal are dropped; an entry that captured nothing
// real is discarded and Commit returns false.
func (m *Manager) Commit(docGeneration uint64) bool {
	if !m.txActive {
		return false
	}
	e := m.txEntry
	m.txActive = false
	m.txEntry = Entry{}
	m.txIndex = nil

	m.finalize(&e)

	if e.HasLayerChange && layerRecordsEqual(e.LayersBefore, e.LayersAfter) {
		e.HasLayerChange = false
		e.LayersBefore, e.LayersAfter = nil, nil
	}
	if e.HasDrawOrderChange && idsEqual(e.DrawOrderBefore, e.DrawOrderAfter) {
		e.HasDrawOrderChange = false
		e.DrawOrderBefore, e.DrawOrderAfter = nil, nil
	}
	if e.HasSelectionChange && idsEqual(e.SelectionBefore, e.SelectionAfter) {
		e.HasSelectionChange = false
		e.SelectionBefore, e.SelectionAfter = nil, nil
	}
	if len(e.Entities) == 0 && !e.HasLayerChange && !e.HasDrawOrderChange && !e.HasSelectionChange {
		return false
	}

	sort.Slice(e.Entities, func(i, j int) bool { return e.Entities[i].ID < e.Entities[j].ID })

	e.Generation = docGeneration
	e.TimestampMs = m.now().UnixMilli()
	m.pushEntry(e)
	return true
}

// RollbackEntry finalizes the open entry, restores its before side and
// throws it away. Used when a command fails mid-apply.
func (m *Manager) RollbackEntry() bool {
	if !m.txActive {
		return false
	}
	e := m.txEntry
	m.txActive = false
	m.txEntry = Entry{}
	m.txIndex = nil

	m.finalize(&e)
	m.applyEntry(&e, false)
	return true
}

// Undo steps the cursor back and restores that entry's before side.
func (m *Manager) Undo() (ApplyReport, bool) {
	if m.cursor == 0 {
		return ApplyReport{}, false
	}
	m.cursor--
	rep := m.applyEntry(&m.entries[m.cursor], false)
	m.generation++
	return rep, true
}

// Redo re-applies the entry under the cursor and steps forward.
func (m *Manager) Redo() (ApplyReport, bool) {
	if m.cursor >= len(m.entries) {
		return ApplyReport{}, false
	}
	e := &m.entries[m.cursor]
	m.cursor++
	rep := m.applyEntry(e, true)
	m.generation++
	return rep, true
}

func (m *Manager) finalize(e *Entry) {
	e.NextIDAfter = m.store.NextEntityID()
	for i := range e.Entities {
		ch := &e.Entities[i]
		ch.ExistedAfter = m.captureEntity(ch.ID, &ch.After)
	}
	if e.HasLayerChange {
		e.LayersAfter = m.store.LayerStore.Snapshot()
	}
	if e.HasDrawOrderChange {
		e.DrawOrderAfter = append([]uint32(nil), m.store.DrawOrder...)
	}
	if e.HasSelectionChange {
		e.SelectionAfter = append([]uint32(nil), m.sel.IDs()...)
	}
}

// pushEntry truncates the redo future, then either folds the entry into
// the previous one (same merge key, inside the window) or appends it.
func (m *Manager) pushEntry(e Entry) {
	if m.suppressed {
		return
	}
	if m.cursor < len(m.entries) {
		m.entries = m.entries[:m.cursor]
	}
	if m.cursor > 0 && e.MergeTag != MergeNone {
		prev := &m.entries[m.cursor-1]
		if prev.MergeTag == e.MergeTag && prev.MergeEntityID == e.MergeEntityID &&
			e.TimestampMs-prev.TimestampMs <= m.window.Milliseconds() {
			mergeEntries(prev, &e)
			m.generation++
			return
		}
	}
	m.entries = append(m.entries, e)
	if m.maxEntries > 0 && len(m.entries) > m.maxEntries {
		drop := len(m.entries) - m.maxEntries
		m.entries = append(m.entries[:0], m.entries[drop:]...)
	}
	m.cursor = len(m.entries)
	m.generation++
}

// mergeEntries folds next into prev: prev keeps its before sides and
// adopts next's after sides. Sections prev never captured take both sides
// from next; prev did not touch them, so next's before is also the state
// at prev's begin.
func mergeEntries(prev, next *Entry) {
	if next.HasLayerChange {
		if !prev.HasLayerChange {
			prev.LayersBefore = next.LayersBefore
		}
		prev.LayersAfter = next.LayersAfter
		prev.HasLayerChange = true
	}
	if next.HasDrawOrderChange {
		if !prev.HasDrawOrderChange {
			prev.DrawOrderBefore = next.DrawOrderBefore
		}
		prev.DrawOrderAfter = next.DrawOrderAfter
		prev.HasDrawOrderChange = true
	}
	if next.HasSelectionChange {
		if !prev.HasSelectionChange {
			prev.SelectionBefore = next.SelectionBefore
		}
		prev.SelectionAfter = next.SelectionAfter
		prev.HasSelectionChange = true
	}

	for _, ch := range next.Entities {
		found := false
		for i := range prev.Entities {
			if prev.Entities[i].ID == ch.ID {
				prev.Entities[i].ExistedAfter = ch.ExistedAfter
				prev.Entities[i].After = ch.After
				found = true
				break
			}
		}
		if !found {
			prev.Entities = append(prev.Entities, ch)
		}
	}
	sort.Slice(prev.Entities, func(i, j int) bool { return prev.Entities[i].ID < prev.Entities[j].ID })

	prev.NextIDAfter = next.NextIDAfter
	prev.Generation = next.Generation
	prev.TimestampMs = next.TimestampMs
}

// applyEntry restores one side of an entry under suppression. The report
// tells the caller which change events to emit.
func (m *Manager) applyEntry(e *Entry, useAfter bool) ApplyReport {
	was := m.suppressed
	m.suppressed = true
	defer func() { m.suppressed = was }()

	var rep ApplyReport

	if e.HasLayerChange {
		if useAfter {
			m.store.LayerStore.LoadSnapshot(e.LayersAfter)
		} else {
			m.store.LayerStore.LoadSnapshot(e.LayersBefore)
		}
		rep.LayersChanged = true
	}

	for i := range e.Entities {
		ch := &e.Entities[i]
		exists := ch.ExistedBefore
		snap := &ch.Before
		if useAfter {
			exists = ch.ExistedAfter
			snap = &ch.After
		}
		if !exists {
			if m.deleteEntity(ch.ID) {
				rep.Deleted = append(rep.Deleted, ch.ID)
			}
			continue
		}
		wasLive := m.store.KindOf(ch.ID) != 0
		m.applySnapshot(snap)
		if m.store.KindOf(ch.ID) == 0 {
			// Degenerate polyline restores delete instead of upserting.
			if wasLive {
				rep.Deleted = append(rep.Deleted, ch.ID)
			}
			continue
		}
		rep.Upserted = append(rep.Upserted, ch.ID)
		if !wasLive {
			rep.Created = append(rep.Created, ch.ID)
		}
	}

	if e.HasDrawOrderChange {
		order := e.DrawOrderBefore
		if useAfter {
			order = e.DrawOrderAfter
		}
		m.store.DrawOrder = append(m.store.DrawOrder[:0], order...)
		if !m.sel.IsEmpty() {
			m.sel.RebuildOrder(m.store.DrawOrder)
		}
		rep.OrderChanged = true
	}

	if e.HasSelectionChange {
		ids := e.SelectionBefore
		if useAfter {
			ids = e.SelectionAfter
		}
		if len(ids) == 0 {
			m.sel.ClearSelection()
		} else {
			m.sel.SetSelection(m.store, ids, document.SelectReplace)
		}
		rep.SelectionChanged = true
	}

	// Restores can leave dead or unpickable ids behind when the entry
	// carried no selection section.
	if m.sel.Prune(m.store) {
		rep.SelectionChanged = true
	}

	if useAfter {
		m.store.SetNextEntityID(e.NextIDAfter)
	} else {
		m.store.SetNextEntityID(e.NextIDBefore)
	}
	return rep
}

func (m *Manager) deleteEntity(id uint32) bool {
	if m.store.KindOf(id) == document.KindText {
		m.texts.Delete(id)
	}
	return m.store.DeleteEntity(id)
}

// captureEntity fills out with the entity's current state. Returns false
// when the id is not live.
func (m *Manager) captureEntity(id uint32, out *EntitySnapshot) bool {
	kind := m.store.KindOf(id)
	if kind == 0 {
		return false
	}
	*out = EntitySnapshot{
		ID:        id,
		Kind:      kind,
		LayerID:   m.store.EntityLayer(id),
		Flags:     m.store.EntityFlags(id),
		Overrides: m.store.Overrides[id],
	}
	switch kind {
	case document.KindRect:
		out.Rect = *m.store.Rect(id)
	case document.KindLine:
		out.Line = *m.store.Line(id)
	case document.KindPolyline:
		rec := m.store.Polyline(id)
		out.Poly = *rec
		out.Points = append([]document.Point2(nil), m.store.PolylinePoints(rec)...)
		out.Poly.Offset = 0
		out.Poly.Count = uint32(len(out.Points))
	case document.KindCircle:
		out.Circle = *m.store.Circle(id)
	case document.KindPolygon:
		out.Polygon = *m.store.Polygon(id)
	case document.KindArrow:
		out.Arrow = *m.store.Arrow(id)
	case document.KindText:
		rec := m.texts.Text(id)
		if rec == nil {
			return false
		}
		out.TextRec = *rec
		out.TextRuns = append([]text.TextRun(nil), m.texts.Runs(id)...)
		out.TextContent = append([]byte(nil), m.texts.Content(id)...)
	default:
		return false
	}
	return true
}

// applySnapshot writes one captured entity back into the stores. Polyline
// points go to the pool tail; degenerate polylines (under two points)
// delete the entity instead, same as the live upsert path.
func (m *Manager) applySnapshot(snap *EntitySnapshot) {
	id := snap.ID
	if id == 0 {
		return
	}
	switch snap.Kind {
	case document.KindRect:
		rec := snap.Rect
		rec.ID = id
		m.store.UpsertRect(rec)
	case document.KindLine:
		rec := snap.Line
		rec.ID = id
		m.store.UpsertLine(rec)
	case document.KindPolyline:
		if len(snap.Points) < 2 {
			m.deleteEntity(id)
			return
		}
		rec := snap.Poly
		rec.ID = id
		rec.Offset = m.store.AppendPoints(snap.Points)
		rec.Count = uint32(len(snap.Points))
		m.store.UpsertPolyline(rec)
	case document.KindCircle:
		rec := snap.Circle
		rec.ID = id
		m.store.UpsertCircle(rec)
	case document.KindPolygon:
		rec := snap.Polygon
		rec.ID = id
		m.store.UpsertPolygon(rec)
	case document.KindArrow:
		rec := snap.Arrow
		rec.ID = id
		m.store.UpsertArrow(rec)
	case document.KindText:
		rec := snap.TextRec
		rec.ID = id
		m.texts.Upsert(rec, snap.TextRuns, snap.TextContent)
		m.store.RegisterText(id)
	default:
		return
	}

	if m.store.KindOf(id) == 0 {
		return
	}
	m.store.SetEntityLayer(id, snap.LayerID)
	m.store.SetEntityFlags(id, document.FlagVisible|document.FlagLocked, snap.Flags)
	if snap.Overrides.ColorMask == 0 && snap.Overrides.EnabledMask == 0 {
		delete(m.store.Overrides, id)
	} else {
		m.store.Overrides[id] = snap.Overrides
	}
}

func layerRecordsEqual(a, b []document.LayerRecord) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func idsEqual(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
