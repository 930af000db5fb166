package document

import "sort"

// DefaultLayerStyle returns the style every new layer starts with: white
// stroke, light grey fill, white text on a disabled black background.
func DefaultLayerStyle() LayerStyle {
	const grey = float32(217) / 255
	return LayerStyle{
		Stroke:         StyleEntry{Color: StyleColor{1, 1, 1, 1}, Enabled: 1},
		Fill:           StyleEntry{Color: StyleColor{grey, grey, grey, 1}, Enabled: 1},
		TextColor:      StyleEntry{Color: StyleColor{1, 1, 1, 1}, Enabled: 1},
		TextBackground: StyleEntry{Color: StyleColor{0, 0, 0, 1}, Enabled: 0},
	}
}

// LayerStore keeps layer flags, names and styles plus the creation order.
// Lookups never fail: a missing layer reads as default flags, empty name
// and the default style, so entities pointing at a deleted layer degrade
// instead of erroring.
type LayerStore struct {
	flags  map[uint32]uint32
	names  map[uint32]string
	styles map[uint32]LayerStyle
	order  []uint32 // layer ids in creation order

	nextLayerID uint32
}

func NewLayerStore() *LayerStore {
	ls := &LayerStore{}
	ls.Clear()
	return ls
}

// Clear resets the store to a single default layer.
func (ls *LayerStore) Clear() {
	ls.flags = make(map[uint32]uint32)
	ls.names = make(map[uint32]string)
	ls.styles = make(map[uint32]LayerStyle)
	ls.order = ls.order[:0]
	ls.nextLayerID = 1
	ls.EnsureLayer(DefaultLayerID)
	ls.names[DefaultLayerID] = "Default"
}

// EnsureLayer creates the layer if it does not exist yet.
func (ls *LayerStore) EnsureLayer(id uint32) {
	ls.TrackNextLayerID(id)
	if _, ok := ls.flags[id]; ok {
		return
	}
	ls.flags[id] = DefaultFlags
	ls.names[id] = "Layer"
	ls.styles[id] = DefaultLayerStyle()
	ls.order = append(ls.order, id)
}

// NextLayerID returns the next id AllocateLayerID would hand out.
func (ls *LayerStore) NextLayerID() uint32 {
	return ls.nextLayerID
}

// SetNextLayerID overrides the allocator state (snapshot load).
func (ls *LayerStore) SetNextLayerID(v uint32) {
	if v == 0 {
		v = 1
	}
	ls.nextLayerID = v
}

// TrackNextLayerID bumps the allocator past an externally chosen id.
func (ls *LayerStore) TrackNextLayerID(id uint32) {
	if id >= ls.nextLayerID {
		ls.nextLayerID = id + 1
	}
}

// AllocateLayerID hands out sequential layer ids.
func (ls *LayerStore) AllocateLayerID() uint32 {
	id := ls.nextLayerID
	ls.nextLayerID++
	return id
}

// Has reports whether the layer exists.
func (ls *LayerStore) Has(id uint32) bool {
	_, ok := ls.flags[id]
	return ok
}

// DeleteLayer removes a layer. The default layer is refused.
func (ls *LayerStore) DeleteLayer(id uint32) bool {
	if id == DefaultLayerID {
		return false
	}
	if _, ok := ls.flags[id]; !ok {
		return false
	}
	delete(ls.flags, id)
	delete(ls.names, id)
	delete(ls.styles, id)
	for i, lid := range ls.order {
		if lid == id {
			ls.order = append(ls.order[:i], ls.order[i+1:]...)
			break
		}
	}
	return true
}

// SetFlags overwrites the masked bits, creating the layer if needed.
func (ls *LayerStore) SetFlags(id, mask, value uint32) {
	ls.EnsureLayer(id)
	ls.flags[id] = (ls.flags[id] &^ mask) | (value & mask)
}

// Flags returns the layer's flag bits, default flags when missing.
func (ls *LayerStore) Flags(id uint32) uint32 {
	if f, ok := ls.flags[id]; ok {
		return f
	}
	return DefaultFlags
}

// SetName renames the layer, creating it if needed.
func (ls *LayerStore) SetName(id uint32, name string) {
	ls.EnsureLayer(id)
	ls.names[id] = name
}

// Name returns the layer's name, "" when missing.
func (ls *LayerStore) Name(id uint32) string {
	return ls.names[id]
}

// SetStyle overwrites the layer's style table, creating it if needed.
func (ls *LayerStore) SetStyle(id uint32, st LayerStyle) {
	ls.EnsureLayer(id)
	ls.styles[id] = st
}

// Style returns the layer's style table, the default style when missing.
func (ls *LayerStore) Style(id uint32) LayerStyle {
	if st, ok := ls.styles[id]; ok {
		return st
	}
	return DefaultLayerStyle()
}

// Count returns the number of layers.
func (ls *LayerStore) Count() int {
	return len(ls.order)
}

// Snapshot returns every layer in creation order with Order re-ranked to
// the position index. Digest and snapshot serialization both consume this.
func (ls *LayerStore) Snapshot() []LayerRecord {
	recs := make([]LayerRecord, 0, len(ls.order))
	for i, id := range ls.order {
		recs = append(recs, LayerRecord{
			ID:    id,
			Order: uint32(i),
			Flags: ls.flags[id],
			Name:  ls.names[id],
			Style: ls.styles[id],
		})
	}
	return recs
}

// LoadSnapshot replaces the whole store with the given records, sorted by
// their stored order. The default layer is appended if the snapshot lacks
// it, so the invariant "default always exists" survives any input.
func (ls *LayerStore) LoadSnapshot(recs []LayerRecord) {
	ls.flags = make(map[uint32]uint32)
	ls.names = make(map[uint32]string)
	ls.styles = make(map[uint32]LayerStyle)
	ls.order = ls.order[:0]
	ls.nextLayerID = 1

	sorted := make([]LayerRecord, len(recs))
	copy(sorted, recs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	for _, rec := range sorted {
		if _, ok := ls.flags[rec.ID]; ok {
			continue
		}
		ls.flags[rec.ID] = rec.Flags
		ls.names[rec.ID] = rec.Name
		ls.styles[rec.ID] = rec.Style
		ls.order = append(ls.order, rec.ID)
		ls.TrackNextLayerID(rec.ID)
	}
	if !ls.Has(DefaultLayerID) {
		ls.EnsureLayer(DefaultLayerID)
		ls.names[DefaultLayerID] = "Default"
	}
}
