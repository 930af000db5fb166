package document

import "github.com/ewdc/engine/internal/proto"

// SelectMode says how SetSelection combines ids with the current set.
type SelectMode uint32

const (
	SelectReplace SelectMode = 0
	SelectAdd     SelectMode = 1
	SelectRemove  SelectMode = 2
	SelectToggle  SelectMode = 3
)

// StyleState classifies where a selection's color for one target comes from.
type StyleState uint32

const (
	StyleStateNone     StyleState = 0
	StyleStateLayer    StyleState = 1
	StyleStateOverride StyleState = 2
	StyleStateMixed    StyleState = 3
)

// TriState is a yes/no answer that can also be "it varies".
type TriState uint32

const (
	TriOff   TriState = 0
	TriOn    TriState = 1
	TriMixed TriState = 2
)

// StyleTargetSummary aggregates one style target across a selection.
type StyleTargetSummary struct {
	State          StyleState
	EnabledState   TriState
	SupportedState TriState
	ColorRGBA      uint32
	LayerID        uint32
}

// SelectionStyleSummary is what a properties panel binds to: one summary
// per style target plus the selection size.
type SelectionStyleSummary struct {
	SelectionCount uint32
	Stroke         StyleTargetSummary
	Fill           StyleTargetSummary
	TextColor      StyleTargetSummary
	TextBackground StyleTargetSummary
}

// Selection is the ordered selected-entity set. The order follows the
// draw order, not click order: RebuildOrder re-sorts after every change
// so walking the selection walks back-to-front.
//
// Accessed only from the owning document goroutine; no locks needed.
type Selection struct {
	set        map[uint32]struct{}
	ordered    []uint32
	generation uint32
}

func NewSelection() *Selection {
	return &Selection{set: make(map[uint32]struct{})}
}

// SetSelection applies ids under the given mode. Unknown and unpickable
// (hidden or locked) entities are skipped. Returns whether the selection
// actually changed; the generation bumps only then.
func (sel *Selection) SetSelection(store *Store, ids []uint32, mode SelectMode) bool {
	changed := false
	if mode == SelectReplace {
		if len(sel.set) > 0 {
			changed = true
		}
		sel.set = make(map[uint32]struct{})
	}
	for _, id := range ids {
		if _, ok := store.Entities[id]; !ok {
			continue
		}
		if !store.IsEntityPickable(id) {
			continue
		}
		_, in := sel.set[id]
		switch mode {
		case SelectReplace, SelectAdd:
			if !in {
				sel.set[id] = struct{}{}
				changed = true
			}
		case SelectRemove:
			if in {
				delete(sel.set, id)
				changed = true
			}
		case SelectToggle:
			if in {
				delete(sel.set, id)
			} else {
				sel.set[id] = struct{}{}
			}
			changed = true
		}
	}
	if changed {
		sel.RebuildOrder(store.DrawOrder)
		sel.generation++
	}
	return changed
}

// RebuildOrder re-derives the ordered list from the draw order. Called
// after any draw-order mutation while a selection is active.
func (sel *Selection) RebuildOrder(drawOrder []uint32) {
	sel.ordered = sel.ordered[:0]
	for _, id := range drawOrder {
		if _, ok := sel.set[id]; ok {
			sel.ordered = append(sel.ordered, id)
		}
	}
}

// Prune drops entities that are gone or no longer pickable. Returns
// whether anything was dropped.
func (sel *Selection) Prune(store *Store) bool {
	changed := false
	for id := range sel.set {
		if _, ok := store.Entities[id]; ok && store.IsEntityPickable(id) {
			continue
		}
		delete(sel.set, id)
		changed = true
	}
	if changed {
		sel.RebuildOrder(store.DrawOrder)
		sel.generation++
	}
	return changed
}

// ClearSelection empties the set, bumping the generation if it was not
// already empty.
func (sel *Selection) ClearSelection() bool {
	if len(sel.set) == 0 {
		return false
	}
	sel.set = make(map[uint32]struct{})
	sel.ordered = sel.ordered[:0]
	sel.generation++
	return true
}

// Reset wipes everything including the generation (world reset and
// snapshot load, not a user action).
func (sel *Selection) Reset() {
	sel.set = make(map[uint32]struct{})
	sel.ordered = sel.ordered[:0]
	sel.generation = 0
}

// IsSelected reports set membership.
func (sel *Selection) IsSelected(id uint32) bool {
	_, ok := sel.set[id]
	return ok
}

// IsEmpty reports whether nothing is selected.
func (sel *Selection) IsEmpty() bool {
	return len(sel.set) == 0
}

// Count returns the selection size.
func (sel *Selection) Count() int {
	return len(sel.set)
}

// Generation is a monotonic change counter; equal generations mean the
// selection has not changed in between.
func (sel *Selection) Generation() uint32 {
	return sel.generation
}

// IDs returns the selection in draw order. The slice is the internal
// buffer; read it before the next mutation.
func (sel *Selection) IDs() []uint32 {
	return sel.ordered
}

// StyleSummary folds the selection into per-target tri-states for UI
// binding: which entities support the target, whether the color comes
// from the layer or an override (Mixed when they disagree), the uniform
// color and layer when there is one.
func (sel *Selection) StyleSummary(store *Store) SelectionStyleSummary {
	sum := SelectionStyleSummary{SelectionCount: uint32(len(sel.ordered))}
	targets := [4]proto.StyleTarget{
		proto.TargetStroke, proto.TargetFill, proto.TargetTextColor, proto.TargetTextBackground,
	}
	out := [4]*StyleTargetSummary{&sum.Stroke, &sum.Fill, &sum.TextColor, &sum.TextBackground}
	for i, target := range targets {
		*out[i] = sel.summarizeTarget(store, target)
	}
	return sum
}

func (sel *Selection) summarizeTarget(store *Store, target proto.StyleTarget) StyleTargetSummary {
	s := StyleTargetSummary{State: StyleStateNone, EnabledState: TriOff, SupportedState: TriOff}
	supported := 0
	first := true
	for _, id := range sel.ordered {
		if store.StyleCapabilities(id)&target.Bit() == 0 {
			continue
		}
		supported++

		state := StyleStateLayer
		if ov, ok := store.Overrides[id]; ok && (ov.ColorMask|ov.EnabledMask)&target.Bit() != 0 {
			state = StyleStateOverride
		}
		rs := store.ResolveStyle(id)
		var entry StyleEntry
		switch target {
		case proto.TargetStroke:
			entry = rs.Stroke
		case proto.TargetFill:
			entry = rs.Fill
		case proto.TargetTextColor:
			entry = rs.TextColor
		case proto.TargetTextBackground:
			entry = rs.TextBackground
		}
		color := proto.PackColorRGBA(entry.Color.R, entry.Color.G, entry.Color.B, entry.Color.A)
		enabled := TriOff
		if entry.Enabled > 0.5 {
			enabled = TriOn
		}
		layer := store.EntityLayer(id)

		if first {
			s.State = state
			s.ColorRGBA = color
			s.EnabledState = enabled
			s.LayerID = layer
			first = false
			continue
		}
		if s.State != state || s.ColorRGBA != color {
			s.State = StyleStateMixed
		}
		if s.ColorRGBA != color {
			s.ColorRGBA = 0
		}
		if s.EnabledState != enabled {
			s.EnabledState = TriMixed
		}
		if s.LayerID != layer {
			s.LayerID = 0
		}
	}
	switch {
	case supported == 0:
		s.SupportedState = TriOff
	case supported == len(sel.ordered):
		s.SupportedState = TriOn
	default:
		s.SupportedState = TriMixed
	}
	return s
}
