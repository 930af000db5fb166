package snapshot

import (
	"github.com/ewdc/engine/internal/document"
	"github.com/ewdc/engine/internal/text"
)

// Apply replaces the live document state with the decoded snapshot. The
// caller owns the History bytes; this only touches the stores. Invariant
// repairs happen here rather than at parse time: the draw order drops
// dead and duplicate ids and gains missing live ones (sorted), dangling
// layer references on entities survive verbatim, and the id allocators
// never hand out an id at or below a live one.
func Apply(snap *Snapshot, store *document.Store, texts *text.Store, sel *document.Selection) {
	store.Clear()
	texts.Clear()
	sel.Reset()

	store.LayerStore.LoadSnapshot(snap.LayerTable)
	if snap.NextLayerID > store.LayerStore.NextLayerID() {
		store.LayerStore.SetNextLayerID(snap.NextLayerID)
	}

	store.Points = append([]document.Point2(nil), snap.Points...)
	for _, rec := range snap.Rects {
		store.UpsertRect(rec)
	}
	for _, rec := range snap.Lines {
		store.UpsertLine(rec)
	}
	for _, rec := range snap.Polylines {
		store.UpsertPolyline(rec)
	}
	for _, rec := range snap.Circles {
		store.UpsertCircle(rec)
	}
	for _, rec := range snap.Polygons {
		store.UpsertPolygon(rec)
	}
	for _, rec := range snap.Arrows {
		store.UpsertArrow(rec)
	}
	for i := range snap.Texts {
		te := &snap.Texts[i]
		texts.Upsert(te.Rec, te.Runs, te.Content)
		store.RegisterText(te.Rec.ID)
		texts.SetLayoutResult(te.Rec.ID, te.Rec.LayoutWidth, te.Rec.LayoutHeight,
			te.Rec.MinX, te.Rec.MinY, te.Rec.MaxX, te.Rec.MaxY)
	}

	// Metadata lands after the inserts: direct map writes keep layer ids
	// as stored even when the layer record itself is gone.
	for id, layer := range snap.Layers {
		if _, live := store.Entities[id]; live {
			store.Layers[id] = layer
		}
	}
	for id, flags := range snap.Flags {
		if _, live := store.Entities[id]; live {
			store.Flags[id] = flags
		}
	}
	for id, ov := range snap.Overrides {
		if _, live := store.Entities[id]; live {
			store.Overrides[id] = ov
		}
	}

	store.DrawOrder = rebuildDrawOrder(snap.DrawOrder, store)
	if len(snap.Selection) > 0 {
		sel.SetSelection(store, snap.Selection, document.SelectReplace)
	}

	next := snap.NextEntityID
	if ids := store.SortedEntityIDs(); len(ids) > 0 {
		if base := ids[len(ids)-1] + 1; next < base {
			next = base
		}
	}
	store.SetNextEntityID(next)
}

// rebuildDrawOrder keeps the stored order for live ids (first occurrence
// wins) and appends any live entity the order missed, sorted ascending.
func rebuildDrawOrder(order []uint32, store *document.Store) []uint32 {
	out := make([]uint32, 0, store.EntityCount())
	seen := make(map[uint32]struct{}, store.EntityCount())
	for _, id := range order {
		if _, live := store.Entities[id]; !live {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range store.SortedEntityIDs() {
		if _, ok := seen[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
