// Package digest folds the entire document state into one stable 64-bit
// value. Clients on both sides of the wire compute it independently after
// replay to prove they hold the same document. The traversal order and
// the float canonicalization are wire contract: any change breaks digest
// comparison against existing peers.
package digest

import (
	"math"

	"github.com/ewdc/engine/internal/document"
	"github.com/ewdc/engine/internal/text"
)

// FNV-1a 64 parameters, folding whole u32 values per step rather than
// bytes (strings still fold byte-wise).
const (
	offsetBasis uint64 = 14695981039346656037
	prime       uint64 = 1099511628211
)

const (
	marker        uint32 = 0x45444F43 // "CODE"
	formatVersion uint32 = 1
)

// Digest is the folded document hash split into u32 halves, the shape it
// crosses the wire in.
type Digest struct {
	Lo uint32
	Hi uint32
}

// U64 reassembles the halves.
func (d Digest) U64() uint64 {
	return uint64(d.Hi)<<32 | uint64(d.Lo)
}

type folder struct{ h uint64 }

func (f *folder) u32(v uint32) {
	f.h ^= uint64(v)
	f.h *= prime
}

func (f *folder) f32(v float32) {
	f.u32(canonicalF32(v))
}

func (f *folder) bytes(b []byte) {
	for _, c := range b {
		f.h ^= uint64(c)
		f.h *= prime
	}
}

// canonicalF32 collapses every NaN to one bit pattern and negative zero
// to positive zero so semantically equal documents fold equal.
func canonicalF32(v float32) uint32 {
	if v != v {
		return 0x7FC00000
	}
	bits := math.Float32bits(v)
	if bits == 0x80000000 {
		return 0
	}
	return bits
}

// Compute walks layers, entities (by id ascending), draw order, selection
// and the id allocator. View scale and the caret never fold; they are
// presentation/session state, not document state.
func Compute(store *document.Store, texts *text.Store, sel *document.Selection) Digest {
	f := folder{h: offsetBasis}
	f.u32(marker)
	f.u32(formatVersion)

	layers := store.LayerStore.Snapshot()
	f.u32(uint32(len(layers)))
	for i := range layers {
		rec := &layers[i]
		f.u32(rec.ID)
		f.u32(rec.Order)
		f.u32(rec.Flags)
		f.u32(uint32(len(rec.Name)))
		f.bytes([]byte(rec.Name))
		foldStyleEntry(&f, &rec.Style.Stroke)
		foldStyleEntry(&f, &rec.Style.Fill)
		foldStyleEntry(&f, &rec.Style.TextColor)
		foldStyleEntry(&f, &rec.Style.TextBackground)
	}

	ids := store.SortedEntityIDs()
	f.u32(uint32(len(ids)))
	for _, id := range ids {
		kind := store.KindOf(id)
		f.u32(id)
		f.u32(uint32(kind))
		f.u32(store.EntityLayer(id))
		f.u32(store.EntityFlags(id))

		switch kind {
		case document.KindRect:
			rec := store.Rect(id)
			f.f32(rec.X)
			f.f32(rec.Y)
			f.f32(rec.W)
			f.f32(rec.H)
			f.f32(rec.ElevationZ)
			foldRGBA(&f, rec.R, rec.G, rec.B, rec.A)
			foldRGBA(&f, rec.SR, rec.SG, rec.SB, rec.SA)
			f.f32(rec.StrokeEnabled)
			f.f32(rec.StrokeWidthPx)
		case document.KindLine:
			rec := store.Line(id)
			f.f32(rec.X0)
			f.f32(rec.Y0)
			f.f32(rec.X1)
			f.f32(rec.Y1)
			f.f32(rec.ElevationZ)
			foldRGBA(&f, rec.R, rec.G, rec.B, rec.A)
			f.f32(rec.Enabled)
			f.f32(rec.StrokeWidthPx)
		case document.KindPolyline:
			rec := store.Polyline(id)
			f.u32(rec.Count)
			f.f32(rec.ElevationZ)
			foldRGBA(&f, rec.R, rec.G, rec.B, rec.A)
			foldRGBA(&f, rec.SR, rec.SG, rec.SB, rec.SA)
			f.f32(rec.Enabled)
			f.f32(rec.StrokeEnabled)
			f.f32(rec.StrokeWidthPx)
			for _, p := range store.PolylinePoints(rec) {
				f.f32(p.X)
				f.f32(p.Y)
			}
		case document.KindCircle:
			rec := store.Circle(id)
			f.f32(rec.CX)
			f.f32(rec.CY)
			f.f32(rec.RX)
			f.f32(rec.RY)
			f.f32(rec.ElevationZ)
			f.f32(rec.Rot)
			f.f32(rec.SX)
			f.f32(rec.SY)
			foldRGBA(&f, rec.R, rec.G, rec.B, rec.A)
			foldRGBA(&f, rec.SR, rec.SG, rec.SB, rec.SA)
			f.f32(rec.StrokeEnabled)
			f.f32(rec.StrokeWidthPx)
		case document.KindPolygon:
			rec := store.Polygon(id)
			f.f32(rec.CX)
			f.f32(rec.CY)
			f.f32(rec.RX)
			f.f32(rec.RY)
			f.f32(rec.ElevationZ)
			f.f32(rec.Rot)
			f.f32(rec.SX)
			f.f32(rec.SY)
			f.u32(rec.Sides)
			foldRGBA(&f, rec.R, rec.G, rec.B, rec.A)
			foldRGBA(&f, rec.SR, rec.SG, rec.SB, rec.SA)
			f.f32(rec.StrokeEnabled)
			f.f32(rec.StrokeWidthPx)
		case document.KindArrow:
			rec := store.Arrow(id)
			f.f32(rec.AX)
			f.f32(rec.AY)
			f.f32(rec.BX)
			f.f32(rec.BY)
			f.f32(rec.ElevationZ)
			f.f32(rec.Head)
			foldRGBA(&f, rec.SR, rec.SG, rec.SB, rec.SA)
			f.f32(rec.StrokeEnabled)
			f.f32(rec.StrokeWidthPx)
		case document.KindText:
			if rec := texts.Text(id); rec != nil {
				f.f32(rec.X)
				f.f32(rec.Y)
				f.f32(rec.ElevationZ)
				f.f32(rec.Rotation)
				f.u32(uint32(rec.BoxMode))
				f.u32(uint32(rec.Align))
				f.f32(rec.ConstraintWidth)
				f.f32(rec.LayoutWidth)
				f.f32(rec.LayoutHeight)
				f.f32(rec.MinX)
				f.f32(rec.MinY)
				f.f32(rec.MaxX)
				f.f32(rec.MaxY)
				content := texts.Content(id)
				f.u32(uint32(len(content)))
				f.bytes(content)
				runs := texts.Runs(id)
				f.u32(uint32(len(runs)))
				for i := range runs {
					run := &runs[i]
					f.u32(run.Start)
					f.u32(run.Length)
					f.u32(run.FontID)
					f.f32(run.FontSize)
					f.u32(run.ColorRGBA)
					f.u32(uint32(run.Flags))
				}
			}
		}

		// Override block folds even when absent: the zero record keeps the
		// stream aligned across documents that differ only in map presence.
		ov := store.Overrides[id]
		f.u32(uint32(ov.ColorMask))
		f.u32(uint32(ov.EnabledMask))
		foldRGBA(&f, ov.TextColor.R, ov.TextColor.G, ov.TextColor.B, ov.TextColor.A)
		foldRGBA(&f, ov.TextBackground.R, ov.TextBackground.G, ov.TextBackground.B, ov.TextBackground.A)
		f.f32(ov.FillEnabled)
		f.f32(ov.TextBackgroundEnabled)
	}

	f.u32(uint32(len(store.DrawOrder)))
	for _, id := range store.DrawOrder {
		f.u32(id)
	}

	selected := sel.IDs()
	f.u32(uint32(len(selected)))
	for _, id := range selected {
		f.u32(id)
	}

	f.u32(store.NextEntityID())

	return Digest{Lo: uint32(f.h), Hi: uint32(f.h >> 32)}
}

func foldStyleEntry(f *folder, e *document.StyleEntry) {
	f.f32(e.Color.R)
	f.f32(e.Color.G)
	f.f32(e.Color.B)
	f.f32(e.Color.A)
	f.f32(e.Enabled)
}

func foldRGBA(f *folder, r, g, b, a float32) {
	f.f32(r)
	f.f32(g)
	f.f32(b)
	f.f32(a)
}
