package document

import "sort"

// Store is the flat entity database for one document. Records live in
// dense per-kind slices; Entities maps an id to its slice position so
// deletes can swap-fill without scanning. Text content is stored outside
// this package, so text entities only occupy the metadata maps and the
// draw order here.
//
// Accessed only from the owning document goroutine; no locks needed.
type Store struct {
	Rects     []RectRec
	Lines     []LineRec
	Polylines []PolyRec
	Points    []Point2 // shared polyline vertex pool
	Circles   []CircleRec
	Polygons  []PolygonRec
	Arrows    []ArrowRec

	Entities  map[uint32]EntityRef
	DrawOrder []uint32

	Flags     map[uint32]uint32 // entity id → flag bits
	Layers    map[uint32]uint32 // entity id → layer id
	Overrides map[uint32]StyleOverrides

	LayerStore *LayerStore

	nextEntityID uint32
}

func NewStore() *Store {
	s := &Store{LayerStore: NewLayerStore()}
	s.resetMaps()
	s.nextEntityID = 1
	return s
}

func (s *Store) resetMaps() {
	s.Entities = make(map[uint32]EntityRef)
	s.Flags = make(map[uint32]uint32)
	s.Layers = make(map[uint32]uint32)
	s.Overrides = make(map[uint32]StyleOverrides)
}

// Clear empties the store back to a fresh document: no entities, a single
// default layer, id allocation restarted.
func (s *Store) Clear() {
	s.Rects = s.Rects[:0]
	s.Lines = s.Lines[:0]
	s.Polylines = s.Polylines[:0]
	s.Points = s.Points[:0]
	s.Circles = s.Circles[:0]
	s.Polygons = s.Polygons[:0]
	s.Arrows = s.Arrows[:0]
	s.DrawOrder = s.DrawOrder[:0]
	s.resetMaps()
	s.LayerStore.Clear()
	s.nextEntityID = 1
}

// EntityCount returns the number of live entities of all kinds.
func (s *Store) EntityCount() int {
	return len(s.Entities)
}

// SortedEntityIDs returns every live entity id ascending.
func (s *Store) SortedEntityIDs() []uint32 {
	ids := make([]uint32, 0, len(s.Entities))
	for id := range s.Entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ensureEntityMetadata backfills the flag and layer maps after an insert
// so every live entity always has both.
func (s *Store) ensureEntityMetadata(id uint32) {
	s.LayerStore.EnsureLayer(DefaultLayerID)
	if _, ok := s.Flags[id]; !ok {
		s.Flags[id] = FlagVisible
	}
	if _, ok := s.Layers[id]; !ok {
		s.Layers[id] = DefaultLayerID
	}
}

// UpsertRect inserts or overwrites a rectangle. An existing entity of a
// different kind is deleted first; same-kind updates keep the slice slot
// and the metadata/override records.
func (s *Store) UpsertRect(rec RectRec) {
	if ref, ok := s.Entities[rec.ID]; ok && ref.Kind != KindRect {
		s.DeleteEntity(rec.ID)
	}
	if ref, ok := s.Entities[rec.ID]; ok {
		s.Rects[ref.Index] = rec
		s.ensureEntityMetadata(rec.ID)
		return
	}
	s.Rects = append(s.Rects, rec)
	s.Entities[rec.ID] = EntityRef{Kind: KindRect, Index: uint32(len(s.Rects) - 1)}
	s.DrawOrder = append(s.DrawOrder, rec.ID)
	s.ensureEntityMetadata(rec.ID)
}

// UpsertLine inserts or overwrites a line segment.
func (s *Store) UpsertLine(rec LineRec) {
	if ref, ok := s.Entities[rec.ID]; ok && ref.Kind != KindLine {
		s.DeleteEntity(rec.ID)
	}
	if ref, ok := s.Entities[rec.ID]; ok {
		s.Lines[ref.Index] = rec
		s.ensureEntityMetadata(rec.ID)
		return
	}
	s.Lines = append(s.Lines, rec)
	s.Entities[rec.ID] = EntityRef{Kind: KindLine, Index: uint32(len(s.Lines) - 1)}
	s.DrawOrder = append(s.DrawOrder, rec.ID)
	s.ensureEntityMetadata(rec.ID)
}

// UpsertPolyline inserts or overwrites a polyline record. The caller has
// already placed the points in the pool (see AppendPoints); the record's
// stroke fields are forced to mirror the primary color so resolution and
// digests see one consistent pair.
func (s *Store) UpsertPolyline(rec PolyRec) {
	rec.SR, rec.SG, rec.SB, rec.SA = rec.R, rec.G, rec.B, rec.A
	rec.StrokeEnabled = rec.Enabled
	if ref, ok := s.Entities[rec.ID]; ok && ref.Kind != KindPolyline {
		s.DeleteEntity(rec.ID)
	}
	if ref, ok := s.Entities[rec.ID]; ok {
		s.Polylines[ref.Index] = rec
		s.ensureEntityMetadata(rec.ID)
		return
	}
	s.Polylines = append(s.Polylines, rec)
	s.Entities[rec.ID] = EntityRef{Kind: KindPolyline, Index: uint32(len(s.Polylines) - 1)}
	s.DrawOrder = append(s.DrawOrder, rec.ID)
	s.ensureEntityMetadata(rec.ID)
}

// AppendPoints copies pts to the pool tail and returns the start offset.
func (s *Store) AppendPoints(pts []Point2) uint32 {
	offset := uint32(len(s.Points))
	s.Points = append(s.Points, pts...)
	return offset
}

// PolylinePoints returns the live point range of a polyline record, nil
// when the range is stale (pool compacted past it).
func (s *Store) PolylinePoints(rec *PolyRec) []Point2 {
	if rec == nil {
		return nil
	}
	end := int(rec.Offset) + int(rec.Count)
	if end > len(s.Points) {
		return nil
	}
	return s.Points[rec.Offset:end]
}

// UpsertCircle inserts or overwrites an ellipse.
func (s *Store) UpsertCircle(rec CircleRec) {
	if ref, ok := s.Entities[rec.ID]; ok && ref.Kind != KindCircle {
		s.DeleteEntity(rec.ID)
	}
	if ref, ok := s.Entities[rec.ID]; ok {
		s.Circles[ref.Index] = rec
		s.ensureEntityMetadata(rec.ID)
		return
	}
	s.Circles = append(s.Circles, rec)
	s.Entities[rec.ID] = EntityRef{Kind: KindCircle, Index: uint32(len(s.Circles) - 1)}
	s.DrawOrder = append(s.DrawOrder, rec.ID)
	s.ensureEntityMetadata(rec.ID)
}

// UpsertPolygon inserts or overwrites a regular polygon.
func (s *Store) UpsertPolygon(rec PolygonRec) {
	if ref, ok := s.Entities[rec.ID]; ok && ref.Kind != KindPolygon {
		s.DeleteEntity(rec.ID)
	}
	if ref, ok := s.Entities[rec.ID]; ok {
		s.Polygons[ref.Index] = rec
		s.ensureEntityMetadata(rec.ID)
		return
	}
	s.Polygons = append(s.Polygons, rec)
	s.Entities[rec.ID] = EntityRef{Kind: KindPolygon, Index: uint32(len(s.Polygons) - 1)}
	s.DrawOrder = append(s.DrawOrder, rec.ID)
	s.ensureEntityMetadata(rec.ID)
}

// UpsertArrow inserts or overwrites an arrow.
func (s *Store) UpsertArrow(rec ArrowRec) {
	if ref, ok := s.Entities[rec.ID]; ok && ref.Kind != KindArrow {
		s.DeleteEntity(rec.ID)
	}
	if ref, ok := s.Entities[rec.ID]; ok {
		s.Arrows[ref.Index] = rec
		s.ensureEntityMetadata(rec.ID)
		return
	}
	s.Arrows = append(s.Arrows, rec)
	s.Entities[rec.ID] = EntityRef{Kind: KindArrow, Index: uint32(len(s.Arrows) - 1)}
	s.DrawOrder = append(s.DrawOrder, rec.ID)
	s.ensureEntityMetadata(rec.ID)
}

// RegisterText registers a text entity in the metadata maps and the draw
// order. The content itself lives in the text store; Index is the id so
// the ref stays valid without a slice. An existing entity of another kind
// is deleted first.
func (s *Store) RegisterText(id uint32) {
	if ref, ok := s.Entities[id]; ok {
		if ref.Kind == KindText {
			s.ensureEntityMetadata(id)
			return
		}
		s.DeleteEntity(id)
	}
	s.Entities[id] = EntityRef{Kind: KindText, Index: id}
	s.DrawOrder = append(s.DrawOrder, id)
	s.ensureEntityMetadata(id)
}

// DeleteEntity removes an entity and all of its metadata. Kind slices
// swap-fill from the back; the moved record's ref is fixed up. For text
// this only clears the document-side state; the caller is responsible
// for the text store.
func (s *Store) DeleteEntity(id uint32) bool {
	ref, ok := s.Entities[id]
	if !ok {
		return false
	}
	delete(s.Entities, id)
	delete(s.Flags, id)
	delete(s.Layers, id)
	delete(s.Overrides, id)

	for i, oid := range s.DrawOrder {
		if oid == id {
			s.DrawOrder = append(s.DrawOrder[:i], s.DrawOrder[i+1:]...)
			break
		}
	}

	idx := ref.Index
	switch ref.Kind {
	case KindRect:
		last := uint32(len(s.Rects) - 1)
		if idx != last {
			moved := s.Rects[last]
			s.Rects[idx] = moved
			s.Entities[moved.ID] = EntityRef{Kind: KindRect, Index: idx}
		}
		s.Rects = s.Rects[:last]
	case KindLine:
		last := uint32(len(s.Lines) - 1)
		if idx != last {
			moved := s.Lines[last]
			s.Lines[idx] = moved
			s.Entities[moved.ID] = EntityRef{Kind: KindLine, Index: idx}
		}
		s.Lines = s.Lines[:last]
	case KindPolyline:
		last := uint32(len(s.Polylines) - 1)
		if idx != last {
			moved := s.Polylines[last]
			s.Polylines[idx] = moved
			s.Entities[moved.ID] = EntityRef{Kind: KindPolyline, Index: idx}
		}
		s.Polylines = s.Polylines[:last]
	case KindCircle:
		last := uint32(len(s.Circles) - 1)
		if idx != last {
			moved := s.Circles[last]
			s.Circles[idx] = moved
			s.Entities[moved.ID] = EntityRef{Kind: KindCircle, Index: idx}
		}
		s.Circles = s.Circles[:last]
	case KindPolygon:
		last := uint32(len(s.Polygons) - 1)
		if idx != last {
			moved := s.Polygons[last]
			s.Polygons[idx] = moved
			s.Entities[moved.ID] = EntityRef{Kind: KindPolygon, Index: idx}
		}
		s.Polygons = s.Polygons[:last]
	case KindArrow:
		last := uint32(len(s.Arrows) - 1)
		if idx != last {
			moved := s.Arrows[last]
			s.Arrows[idx] = moved
			s.Entities[moved.ID] = EntityRef{Kind: KindArrow, Index: idx}
		}
		s.Arrows = s.Arrows[:last]
	case KindText:
		// no slice here; text content is the text store's problem
	}
	return true
}

// CompactPolylinePoints rebuilds the point pool keeping only ranges still
// referenced by a live polyline. Stale records (range past the pool end)
// collapse to count 0. Runs after enough deletes have left garbage behind.
func (s *Store) CompactPolylinePoints() {
	next := make([]Point2, 0, len(s.Points))
	for i := range s.Polylines {
		rec := &s.Polylines[i]
		end := int(rec.Offset) + int(rec.Count)
		if end > len(s.Points) {
			rec.Offset = uint32(len(next))
			rec.Count = 0
			continue
		}
		offset := uint32(len(next))
		next = append(next, s.Points[rec.Offset:end]...)
		rec.Offset = offset
	}
	s.Points = next
}

// Rect returns the record for id if it is a live rectangle, else nil.
func (s *Store) Rect(id uint32) *RectRec {
	if ref, ok := s.Entities[id]; ok && ref.Kind == KindRect {
		return &s.Rects[ref.Index]
	}
	return nil
}

// Line returns the record for id if it is a live line, else nil.
func (s *Store) Line(id uint32) *LineRec {
	if ref, ok := s.Entities[id]; ok && ref.Kind == KindLine {
		return &s.Lines[ref.Index]
	}
	return nil
}

// Polyline returns the record for id if it is a live polyline, else nil.
func (s *Store) Polyline(id uint32) *PolyRec {
	if ref, ok := s.Entities[id]; ok && ref.Kind == KindPolyline {
		return &s.Polylines[ref.Index]
	}
	return nil
}

// Circle returns the record for id if it is a live circle, else nil.
func (s *Store) Circle(id uint32) *CircleRec {
	if ref, ok := s.Entities[id]; ok && ref.Kind == KindCircle {
		return &s.Circles[ref.Index]
	}
	return nil
}

// Polygon returns the record for id if it is a live polygon, else nil.
func (s *Store) Polygon(id uint32) *PolygonRec {
	if ref, ok := s.Entities[id]; ok && ref.Kind == KindPolygon {
		return &s.Polygons[ref.Index]
	}
	return nil
}

// Arrow returns the record for id if it is a live arrow, else nil.
func (s *Store) Arrow(id uint32) *ArrowRec {
	if ref, ok := s.Entities[id]; ok && ref.Kind == KindArrow {
		return &s.Arrows[ref.Index]
	}
	return nil
}

// KindOf returns the entity's kind, 0 when the id is not live.
func (s *Store) KindOf(id uint32) EntityKind {
	return s.Entities[id].Kind
}

// EntityFlags returns the entity's flag bits, Visible when absent.
func (s *Store) EntityFlags(id uint32) uint32 {
	if f, ok := s.Flags[id]; ok {
		return f
	}
	return FlagVisible
}

// SetEntityFlags overwrites the masked bits of the entity's flags.
func (s *Store) SetEntityFlags(id, mask, value uint32) {
	s.Flags[id] = (s.EntityFlags(id) &^ mask) | (value & mask)
}

// EntityLayer returns the entity's layer id, the default layer when absent.
func (s *Store) EntityLayer(id uint32) uint32 {
	if l, ok := s.Layers[id]; ok {
		return l
	}
	return DefaultLayerID
}

// SetEntityLayer moves the entity to a layer, creating it if needed.
func (s *Store) SetEntityLayer(id, layer uint32) {
	s.LayerStore.EnsureLayer(layer)
	s.Layers[id] = layer
}

// IsEntityVisible combines the layer's and the entity's visible bits.
func (s *Store) IsEntityVisible(id uint32) bool {
	if s.LayerStore.Flags(s.EntityLayer(id))&FlagVisible == 0 {
		return false
	}
	return s.EntityFlags(id)&FlagVisible != 0
}

// IsEntityLocked is true when either the layer or the entity is locked.
func (s *Store) IsEntityLocked(id uint32) bool {
	if s.LayerStore.Flags(s.EntityLayer(id))&FlagLocked != 0 {
		return true
	}
	return s.EntityFlags(id)&FlagLocked != 0
}

// IsEntityPickable is visible and not locked; selection filters on this.
func (s *Store) IsEntityPickable(id uint32) bool {
	return s.IsEntityVisible(id) && !s.IsEntityLocked(id)
}

// NextEntityID returns the next id AllocateEntityID would hand out.
func (s *Store) NextEntityID() uint32 {
	return s.nextEntityID
}

// SetNextEntityID overrides the allocator state (snapshot load).
func (s *Store) SetNextEntityID(v uint32) {
	if v == 0 {
		v = 1
	}
	s.nextEntityID = v
}

// TrackNextEntityID bumps the allocator past an externally chosen id so
// later allocations never collide with it.
func (s *Store) TrackNextEntityID(id uint32) {
	if id >= s.nextEntityID {
		s.nextEntityID = id + 1
	}
}

// AllocateEntityID hands out sequential ids.
func (s *Store) AllocateEntityID() uint32 {
	id := s.nextEntityID
	s.nextEntityID++
	return id
}
