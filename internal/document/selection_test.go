package document

import (
	"testing"

	"github.com/ewdc/engine/internal/proto"
)

func seedThreeRects(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	for _, id := range []uint32{1, 2, 3} {
		s.UpsertRect(RectRec{ID: id, A: 1})
	}
	return s
}

func wantIDs(t *testing.T, got, want []uint32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}
}

func TestSelectionModes(t *testing.T) {
	s := seedThreeRects(t)
	sel := NewSelection()

	if !sel.SetSelection(s, []uint32{1, 2}, SelectReplace) {
		t.Fatal("replace reported no change")
	}
	wantIDs(t, sel.IDs(), []uint32{1, 2})
	gen := sel.Generation()

	// Adding an already-selected id is a no-op.
	if sel.SetSelection(s, []uint32{1}, SelectAdd) {
		t.Fatal("re-add reported a change")
	}
	if sel.Generation() != gen {
		t.Fatal("generation bumped without a change")
	}

	sel.SetSelection(s, []uint32{3}, SelectAdd)
	wantIDs(t, sel.IDs(), []uint32{1, 2, 3})

	sel.SetSelection(s, []uint32{2}, SelectRemove)
	wantIDs(t, sel.IDs(), []uint32{1, 3})

	sel.SetSelection(s, []uint32{1, 2}, SelectToggle)
	wantIDs(t, sel.IDs(), []uint32{2, 3})

	if !sel.ClearSelection() {
		t.Fatal("clear reported no change")
	}
	if !sel.IsEmpty() {
		t.Fatal("selection not empty after clear")
	}
}

func TestSelectionSkipsUnpickable(t *testing.T) {
	s := seedThreeRects(t)
	s.SetEntityFlags(2, FlagLocked, FlagLocked)
	s.SetEntityFlags(3, FlagVisible, 0)
	sel := NewSelection()

	sel.SetSelection(s, []uint32{1, 2, 3, 99}, SelectReplace)
	wantIDs(t, sel.IDs(), []uint32{1})
}

func TestSelectionOrderFollowsDrawOrder(t *testing.T) {
	s := seedThreeRects(t)
	sel := NewSelection()

	// Click order 3 then 1; walking the selection still goes back-to-front.
	sel.SetSelection(s, []uint32{3}, SelectReplace)
	sel.SetSelection(s, []uint32{1}, SelectAdd)
	wantIDs(t, sel.IDs(), []uint32{1, 3})

	// Reordering the document re-sorts the selection.
	s.Reorder([]uint32{1}, BringToFront)
	sel.RebuildOrder(s.DrawOrder)
	wantIDs(t, sel.IDs(), []uint32{3, 1})
}

func TestSelectionPruneOnLayerHide(t *testing.T) {
	s := seedThreeRects(t)
	s.SetEntityLayer(2, 5)
	sel := NewSelection()
	sel.SetSelection(s, []uint32{1, 2, 3}, SelectReplace)
	gen := sel.Generation()

	s.LayerStore.SetFlags(5, FlagVisible, 0)
	if !sel.Prune(s) {
		t.Fatal("prune reported no change")
	}
	wantIDs(t, sel.IDs(), []uint32{1, 3})
	if sel.Generation() == gen {
		t.Fatal("generation unchanged by prune")
	}

	if sel.Prune(s) {
		t.Fatal("second prune reported work")
	}
}

func TestSelectionPruneOnDelete(t *testing.T) {
	s := seedThreeRects(t)
	sel := NewSelection()
	sel.SetSelection(s, []uint32{1, 2, 3}, SelectReplace)

	s.DeleteEntity(2)
	sel.Prune(s)
	wantIDs(t, sel.IDs(), []uint32{1, 3})
}

func TestStyleSummaryUniformAndMixed(t *testing.T) {
	s := NewStore()
	s.UpsertRect(RectRec{ID: 1, R: 1, A: 1})
	s.UpsertRect(RectRec{ID: 2, R: 1, A: 1})
	sel := NewSelection()
	sel.SetSelection(s, []uint32{1, 2}, SelectReplace)

	// Both on the layer: uniform Layer state, uniform color.
	sum := sel.StyleSummary(s)
	if sum.SelectionCount != 2 {
		t.Fatalf("count = %d", sum.SelectionCount)
	}
	if sum.Fill.State != StyleStateLayer {
		t.Fatalf("fill state = %v, want Layer", sum.Fill.State)
	}
	if sum.Fill.SupportedState != TriOn {
		t.Fatalf("fill supported = %v, want On", sum.Fill.SupportedState)
	}
	if sum.TextColor.SupportedState != TriOff {
		t.Fatalf("text supported = %v, want Off", sum.TextColor.SupportedState)
	}

	// One entity overridden: state degrades to Mixed.
	s.ApplyStyleColor(2, proto.TargetFill, StyleColor{0, 0, 1, 1})
	sum = sel.StyleSummary(s)
	if sum.Fill.State != StyleStateMixed {
		t.Fatalf("fill state = %v, want Mixed", sum.Fill.State)
	}
}

func TestStyleSummarySupportedMixed(t *testing.T) {
	s := NewStore()
	s.UpsertRect(RectRec{ID: 1, A: 1})
	s.UpsertLine(LineRec{ID: 2, Enabled: 1})
	sel := NewSelection()
	sel.SetSelection(s, []uint32{1, 2}, SelectReplace)

	sum := sel.StyleSummary(s)
	if sum.Fill.SupportedState != TriMixed {
		t.Fatalf("fill supported = %v, want Mixed (rect yes, line no)", sum.Fill.SupportedState)
	}
	if sum.Stroke.SupportedState != TriOn {
		t.Fatalf("stroke supported = %v, want On", sum.Stroke.SupportedState)
	}
}
