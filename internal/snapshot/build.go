package snapshot

import (
	"hash/crc32"
	"sort"

	"github.com/ewdc/engine/internal/document"
	"github.com/ewdc/engine/internal/proto"
	"github.com/ewdc/engine/internal/text"
)

type section struct {
	tag  uint32
	data []byte
}

// Build serializes the live document state. Records are written sorted
// by id so equal documents produce identical bytes; polyline points are
// compacted into a fresh pool with offsets rewritten, dropping whatever
// garbage deletions left behind. history may be nil.
func Build(store *document.Store, texts *text.Store, sel *document.Selection, history []byte) []byte {
	sections := []section{
		{tagENTS, encodeEntities(store)},
		{tagLAYR, encodeLayers(store.LayerStore.Snapshot())},
		{tagORDR, encodeIDList(store.DrawOrder)},
		{tagSELC, encodeIDList(sel.IDs())},
		{tagTEXT, encodeTexts(store, texts)},
		{tagSTYL, encodeOverrides(store)},
		{tagNIDX, encodeNextIDs(store)},
	}
	if len(history) > 0 {
		sections = append(sections, section{tagHIST, history})
	}

	w := proto.NewWriter()
	w.WriteU32(snapshotMagic)
	w.WriteU32(snapshotVersion)
	w.WriteU32(uint32(len(sections)))
	w.WriteU32(0)

	offset := headerBytes + len(sections)*tableEntryBytes
	for _, s := range sections {
		w.WriteU32(s.tag)
		w.WriteU32(uint32(offset))
		w.WriteU32(uint32(len(s.data)))
		w.WriteU32(crc32.ChecksumIEEE(s.data))
		offset += len(s.data)
	}
	for _, s := range sections {
		w.WriteBytes(s.data)
	}
	return w.Bytes()
}

func writeMeta(w *proto.Writer, store *document.Store, id uint32) {
	w.WriteU32(id)
	w.WriteU32(store.EntityLayer(id))
	w.WriteU32(store.EntityFlags(id))
}

func encodeEntities(store *document.Store) []byte {
	rects := append([]document.RectRec(nil), store.Rects...)
	sort.Slice(rects, func(i, j int) bool { return rects[i].ID < rects[j].ID })
	lines := append([]document.LineRec(nil), store.Lines...)
	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })
	polys := append([]document.PolyRec(nil), store.Polylines...)
	sort.Slice(polys, func(i, j int) bool { return polys[i].ID < polys[j].ID })
	circles := append([]document.CircleRec(nil), store.Circles...)
	sort.Slice(circles, func(i, j int) bool { return circles[i].ID < circles[j].ID })
	polygons := append([]document.PolygonRec(nil), store.Polygons...)
	sort.Slice(polygons, func(i, j int) bool { return polygons[i].ID < polygons[j].ID })
	arrows := append([]document.ArrowRec(nil), store.Arrows...)
	sort.Slice(arrows, func(i, j int) bool { return arrows[i].ID < arrows[j].ID })

	// Compact the point pool in record order. Stale ranges collapse to
	// count 0, same as CompactPolylinePoints.
	var pool []document.Point2
	for i := range polys {
		rec := &polys[i]
		pts := store.PolylinePoints(rec)
		rec.Offset = uint32(len(pool))
		rec.Count = uint32(len(pts))
		pool = append(pool, pts...)
	}

	w := proto.NewWriter()
	w.WriteU32(uint32(len(rects)))
	w.WriteU32(uint32(len(lines)))
	w.WriteU32(uint32(len(polys)))
	w.WriteU32(uint32(len(pool)))
	w.WriteU32(uint32(len(circles)))
	w.WriteU32(uint32(len(polygons)))
	w.WriteU32(uint32(len(arrows)))

	for i := range rects {
		rec := &rects[i]
		writeMeta(w, store, rec.ID)
		for _, v := range []float32{rec.X, rec.Y, rec.W, rec.H, rec.ElevationZ,
			rec.R, rec.G, rec.B, rec.A, rec.SR, rec.SG, rec.SB, rec.SA,
			rec.StrokeEnabled, rec.StrokeWidthPx} {
			w.WriteF32(v)
		}
	}
	for i := range lines {
		rec := &lines[i]
		writeMeta(w, store, rec.ID)
		for _, v := range []float32{rec.X0, rec.Y0, rec.X1, rec.Y1, rec.ElevationZ,
			rec.R, rec.G, rec.B, rec.A, rec.Enabled, rec.StrokeWidthPx} {
			w.WriteF32(v)
		}
	}
	for i := range polys {
		rec := &polys[i]
		writeMeta(w, store, rec.ID)
		w.WriteU32(rec.Offset)
		w.WriteU32(rec.Count)
		for _, v := range []float32{rec.ElevationZ,
			rec.R, rec.G, rec.B, rec.A, rec.SR, rec.SG, rec.SB, rec.SA,
			rec.Enabled, rec.StrokeEnabled, rec.StrokeWidthPx} {
			w.WriteF32(v)
		}
	}
	for _, p := range pool {
		w.WriteF32(p.X)
		w.WriteF32(p.Y)
	}
	for i := range circles {
		rec := &circles[i]
		writeMeta(w, store, rec.ID)
		for _, v := range []float32{rec.CX, rec.CY, rec.RX, rec.RY, rec.ElevationZ,
			rec.Rot, rec.SX, rec.SY,
			rec.R, rec.G, rec.B, rec.A, rec.SR, rec.SG, rec.SB, rec.SA,
			rec.StrokeEnabled, rec.StrokeWidthPx} {
			w.WriteF32(v)
		}
	}
	for i := range polygons {
		rec := &polygons[i]
		writeMeta(w, store, rec.ID)
		for _, v := range []float32{rec.CX, rec.CY, rec.RX, rec.RY, rec.ElevationZ,
			rec.Rot, rec.SX, rec.SY} {
			w.WriteF32(v)
		}
		w.WriteU32(rec.Sides)
		for _, v := range []float32{rec.R, rec.G, rec.B, rec.A,
			rec.SR, rec.SG, rec.SB, rec.SA, rec.StrokeEnabled, rec.StrokeWidthPx} {
			w.WriteF32(v)
		}
	}
	for i := range arrows {
		rec := &arrows[i]
		writeMeta(w, store, rec.ID)
		for _, v := range []float32{rec.AX, rec.AY, rec.BX, rec.BY, rec.ElevationZ,
			rec.Head, rec.SR, rec.SG, rec.SB, rec.SA,
			rec.StrokeEnabled, rec.StrokeWidthPx} {
			w.WriteF32(v)
		}
	}
	return w.Bytes()
}

func encodeLayers(recs []document.LayerRecord) []byte {
	w := proto.NewWriter()
	w.WriteU32(uint32(len(recs)))
	for i := range recs {
		rec := &recs[i]
		w.WriteU32(rec.ID)
		w.WriteU32(rec.Order)
		w.WriteU32(rec.Flags)
		w.WriteU32(uint32(len(rec.Name)))
		w.WriteBytes([]byte(rec.Name))
		w.WriteU32(packColor(rec.Style.Stroke.Color))
		w.WriteU32(packColor(rec.Style.Fill.Color))
		w.WriteU32(packColor(rec.Style.TextColor.Color))
		w.WriteU32(packColor(rec.Style.TextBackground.Color))
		w.WriteU8(floatFlag(rec.Style.Stroke.Enabled))
		w.WriteU8(floatFlag(rec.Style.Fill.Enabled))
		w.WriteU8(floatFlag(rec.Style.TextBackground.Enabled))
		w.WriteU8(floatFlag(rec.Style.TextColor.Enabled))
	}
	return w.Bytes()
}

func encodeIDList(ids []uint32) []byte {
	w := proto.NewWriter()
	w.WriteU32(uint32(len(ids)))
	for _, id := range ids {
		w.WriteU32(id)
	}
	return w.Bytes()
}

func encodeTexts(store *document.Store, texts *text.Store) []byte {
	ids := texts.IDs()
	w := proto.NewWriter()
	w.WriteU32(uint32(len(ids)))
	for _, id := range ids {
		rec := texts.Text(id)
		runs := texts.Runs(id)
		content := texts.Content(id)
		writeMeta(w, store, id)
		w.WriteF32(rec.X)
		w.WriteF32(rec.Y)
		w.WriteF32(rec.ElevationZ)
		w.WriteF32(rec.Rotation)
		w.WriteU8(rec.BoxMode)
		w.WriteU8(rec.Align)
		w.WriteU16(0)
		w.WriteF32(rec.ConstraintWidth)
		w.WriteU32(uint32(len(runs)))
		w.WriteU32(uint32(len(content)))
		w.WriteF32(rec.LayoutWidth)
		w.WriteF32(rec.LayoutHeight)
		w.WriteF32(rec.MinX)
		w.WriteF32(rec.MinY)
		w.WriteF32(rec.MaxX)
		w.WriteF32(rec.MaxY)
		for i := range runs {
			run := &runs[i]
			w.WriteU32(run.Start)
			w.WriteU32(run.Length)
			w.WriteU32(run.FontID)
			w.WriteF32(run.FontSize)
			w.WriteU32(run.ColorRGBA)
			w.WriteU8(run.Flags)
			w.WriteU8(0)
			w.WriteU8(0)
			w.WriteU8(0)
		}
		w.WriteBytes(content)
	}
	return w.Bytes()
}

// encodeOverrides skips records with both masks zero; those resolve
// identically to "no record" and would only bloat the file.
func encodeOverrides(store *document.Store) []byte {
	ids := make([]uint32, 0, len(store.Overrides))
	for id, ov := range store.Overrides {
		if ov.ColorMask == 0 && ov.EnabledMask == 0 {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	w := proto.NewWriter()
	w.WriteU32(uint32(len(ids)))
	for _, id := range ids {
		ov := store.Overrides[id]
		w.WriteU32(id)
		w.WriteU8(ov.ColorMask)
		w.WriteU8(ov.EnabledMask)
		w.WriteU16(0)
		w.WriteU32(packColor(ov.TextColor))
		w.WriteU32(packColor(ov.TextBackground))
		w.WriteF32(ov.FillEnabled)
		w.WriteF32(ov.TextBackgroundEnabled)
	}
	return w.Bytes()
}

func encodeNextIDs(store *document.Store) []byte {
	w := proto.NewWriter()
	w.WriteU32(store.NextEntityID())
	w.WriteU32(store.LayerStore.NextLayerID())
	return w.Bytes()
}

func packColor(c document.StyleColor) uint32 {
	return proto.PackColorRGBA(c.R, c.G, c.B, c.A)
}

func floatFlag(v float32) uint8 {
	if v > 0.5 {
		return 1
	}
	return 0
}
