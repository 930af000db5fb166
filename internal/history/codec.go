package history

import (
	"github.com/ewdc/engine/internal/document"
	"github.com/ewdc/engine/internal/proto"
	"github.com/ewdc/engine/internal/text"
)

// History byte format, version 1. Embedded as the HIST section of a
// document snapshot so an open file keeps its undo past. Layer style
// colors travel packed; that is lossless because layer styles only ever
// hold byte-quantized channels (they are set from packed wire colors).
const codecVersion = 1

const (
	sectionLayers    = 1
	sectionDrawOrder = 2
	sectionSelection = 4
)

// EncodeBytes serializes the whole entry slice with the cursor position.
// Returns nil when there is nothing to keep.
func (m *Manager) EncodeBytes() []byte {
	if len(m.entries) == 0 {
		return nil
	}
	w := proto.NewWriter()
	w.WriteU32(codecVersion)
	w.WriteU32(uint32(len(m.entries)))
	w.WriteU32(uint32(m.cursor))
	w.WriteU32(0)
	for i := range m.entries {
		encodeEntry(w, &m.entries[i])
	}
	return w.Bytes()
}

// DecodeBytes replaces the manager state with the serialized form. A
// malformed tail drops the entries it covers; everything decoded before
// it is kept and the cursor is clamped.
func (m *Manager) DecodeBytes(data []byte) {
	m.Clear()
	if len(data) < 16 {
		return
	}
	r := proto.NewReader(data)
	if r.ReadU32() != codecVersion {
		return
	}
	count := r.ReadU32()
	cursor := r.ReadU32()
	r.Skip(4)

	for i := uint32(0); i < count; i++ {
		e, ok := decodeEntry(r)
		if !ok {
			break
		}
		m.entries = append(m.entries, e)
	}
	m.cursor = int(cursor)
	if m.cursor > len(m.entries) {
		m.cursor = len(m.entries)
	}
}

func encodeEntry(w *proto.Writer, e *Entry) {
	var flags uint32
	if e.HasLayerChange {
		flags |= sectionLayers
	}
	if e.HasDrawOrderChange {
		flags |= sectionDrawOrder
	}
	if e.HasSelectionChange {
		flags |= sectionSelection
	}
	w.WriteU32(flags)
	w.WriteU32(e.NextIDBefore)
	w.WriteU32(e.NextIDAfter)

	if e.HasLayerChange {
		encodeLayerRecords(w, e.LayersBefore)
		encodeLayerRecords(w, e.LayersAfter)
	}
	if e.HasDrawOrderChange {
		encodeIDs(w, e.DrawOrderBefore)
		encodeIDs(w, e.DrawOrderAfter)
	}
	if e.HasSelectionChange {
		encodeIDs(w, e.SelectionBefore)
		encodeIDs(w, e.SelectionAfter)
	}

	w.WriteU32(uint32(len(e.Entities)))
	for i := range e.Entities {
		ch := &e.Entities[i]
		w.WriteU32(ch.ID)
		w.WriteU8(boolByte(ch.ExistedBefore))
		w.WriteU8(boolByte(ch.ExistedAfter))
		w.WriteU16(0)
		if ch.ExistedBefore {
			encodeSnapshot(w, &ch.Before)
		}
		if ch.ExistedAfter {
			encodeSnapshot(w, &ch.After)
		}
	}

	w.WriteU64(e.Generation)
	w.WriteU32(uint32(e.MergeTag))
	w.WriteU32(e.MergeEntityID)
	w.WriteI64(e.TimestampMs)
}

func decodeEntry(r *proto.Reader) (Entry, bool) {
	var e Entry
	flags := r.ReadU32()
	e.HasLayerChange = flags&sectionLayers != 0
	e.HasDrawOrderChange = flags&sectionDrawOrder != 0
	e.HasSelectionChange = flags&sectionSelection != 0
	e.NextIDBefore = r.ReadU32()
	e.NextIDAfter = r.ReadU32()

	if e.HasLayerChange {
		e.LayersBefore = decodeLayerRecords(r)
		e.LayersAfter = decodeLayerRecords(r)
	}
	if e.HasDrawOrderChange {
		e.DrawOrderBefore = decodeIDs(r)
		e.DrawOrderAfter = decodeIDs(r)
	}
	if e.HasSelectionChange {
		e.SelectionBefore = decodeIDs(r)
		e.SelectionAfter = decodeIDs(r)
	}

	count := int(r.ReadU32())
	if count > r.Remaining()/8 {
		poison(r)
		return Entry{}, false
	}
	e.Entities = make([]EntityChange, 0, count)
	for i := 0; i < count; i++ {
		var ch EntityChange
		ch.ID = r.ReadU32()
		ch.ExistedBefore = r.ReadU8() != 0
		ch.ExistedAfter = r.ReadU8() != 0
		r.Skip(2)
		if ch.ExistedBefore {
			decodeSnapshot(r, ch.ID, &ch.Before)
		}
		if ch.ExistedAfter {
			decodeSnapshot(r, ch.ID, &ch.After)
		}
		e.Entities = append(e.Entities, ch)
	}

	e.Generation = r.ReadU64()
	e.MergeTag = MergeTag(r.ReadU32())
	e.MergeEntityID = r.ReadU32()
	e.TimestampMs = r.ReadI64()
	return e, !r.Short()
}

func encodeLayerRecords(w *proto.Writer, recs []document.LayerRecord) {
	w.WriteU32(uint32(len(recs)))
	for i := range recs {
		rec := &recs[i]
		w.WriteU32(rec.ID)
		w.WriteU32(rec.Order)
		w.WriteU32(rec.Flags)
		w.WriteU32(uint32(len(rec.Name)))
		w.WriteBytes([]byte(rec.Name))
		encodeLayerStyle(w, &rec.Style)
	}
}

func decodeLayerRecords(r *proto.Reader) []document.LayerRecord {
	count := int(r.ReadU32())
	if count > r.Remaining()/36 {
		poison(r)
		return nil
	}
	recs := make([]document.LayerRecord, 0, count)
	for i := 0; i < count; i++ {
		var rec document.LayerRecord
		rec.ID = r.ReadU32()
		rec.Order = r.ReadU32()
		rec.Flags = r.ReadU32()
		nameLen := int(r.ReadU32())
		if nameLen > r.Remaining() {
			poison(r)
			return nil
		}
		rec.Name = string(r.ReadBytes(nameLen))
		decodeLayerStyle(r, &rec.Style)
		recs = append(recs, rec)
	}
	return recs
}

// encodeLayerStyle writes the 20-byte layer style block: four packed
// colors then one enabled byte per stroke, fill, text background and
// text color.
func encodeLayerStyle(w *proto.Writer, st *document.LayerStyle) {
	w.WriteU32(packStyleColor(st.Stroke.Color))
	w.WriteU32(packStyleColor(st.Fill.Color))
	w.WriteU32(packStyleColor(st.TextColor.Color))
	w.WriteU32(packStyleColor(st.TextBackground.Color))
	w.WriteU8(enabledByte(st.Stroke.Enabled))
	w.WriteU8(enabledByte(st.Fill.Enabled))
	w.WriteU8(enabledByte(st.TextBackground.Enabled))
	w.WriteU8(enabledByte(st.TextColor.Enabled))
}

func decodeLayerStyle(r *proto.Reader, st *document.LayerStyle) {
	st.Stroke.Color = unpackStyleColor(r.ReadU32())
	st.Fill.Color = unpackStyleColor(r.ReadU32())
	st.TextColor.Color = unpackStyleColor(r.ReadU32())
	st.TextBackground.Color = unpackStyleColor(r.ReadU32())
	st.Stroke.Enabled = byteEnabled(r.ReadU8())
	st.Fill.Enabled = byteEnabled(r.ReadU8())
	st.TextBackground.Enabled = byteEnabled(r.ReadU8())
	st.TextColor.Enabled = byteEnabled(r.ReadU8())
}

func encodeIDs(w *proto.Writer, ids []uint32) {
	w.WriteU32(uint32(len(ids)))
	for _, id := range ids {
		w.WriteU32(id)
	}
}

func decodeIDs(r *proto.Reader) []uint32 {
	count := int(r.ReadU32())
	if count > r.Remaining()/4 {
		poison(r)
		return nil
	}
	ids := make([]uint32, 0, count)
	for i := 0; i < count; i++ {
		ids = append(ids, r.ReadU32())
	}
	return ids
}

func encodeSnapshot(w *proto.Writer, snap *EntitySnapshot) {
	w.WriteU32(uint32(snap.Kind))
	w.WriteU32(snap.LayerID)
	w.WriteU32(snap.Flags)
	encodeOverrides(w, &snap.Overrides)

	switch snap.Kind {
	case document.KindRect:
		rec := &snap.Rect
		for _, v := range []float32{rec.X, rec.Y, rec.W, rec.H, rec.ElevationZ,
			rec.R, rec.G, rec.B, rec.A, rec.SR, rec.SG, rec.SB, rec.SA,
			rec.StrokeEnabled, rec.StrokeWidthPx} {
			w.WriteF32(v)
		}
	case document.KindLine:
		rec := &snap.Line
		for _, v := range []float32{rec.X0, rec.Y0, rec.X1, rec.Y1, rec.ElevationZ,
			rec.R, rec.G, rec.B, rec.A, rec.Enabled, rec.StrokeWidthPx} {
			w.WriteF32(v)
		}
	case document.KindPolyline:
		rec := &snap.Poly
		w.WriteU32(uint32(len(snap.Points)))
		for _, v := range []float32{rec.ElevationZ,
			rec.R, rec.G, rec.B, rec.A, rec.SR, rec.SG, rec.SB, rec.SA,
			rec.Enabled, rec.StrokeEnabled, rec.StrokeWidthPx} {
			w.WriteF32(v)
		}
		for _, p := range snap.Points {
			w.WriteF32(p.X)
			w.WriteF32(p.Y)
		}
	case document.KindCircle:
		rec := &snap.Circle
		for _, v := range []float32{rec.CX, rec.CY, rec.RX, rec.RY, rec.ElevationZ,
			rec.Rot, rec.SX, rec.SY,
			rec.R, rec.G, rec.B, rec.A, rec.SR, rec.SG, rec.SB, rec.SA,
			rec.StrokeEnabled, rec.StrokeWidthPx} {
			w.WriteF32(v)
		}
	case document.KindPolygon:
		rec := &snap.Polygon
		for _, v := range []float32{rec.CX, rec.CY, rec.RX, rec.RY, rec.ElevationZ,
			rec.Rot, rec.SX, rec.SY} {
			w.WriteF32(v)
		}
		w.WriteU32(rec.Sides)
		for _, v := range []float32{rec.R, rec.G, rec.B, rec.A,
			rec.SR, rec.SG, rec.SB, rec.SA,
			rec.StrokeEnabled, rec.StrokeWidthPx} {
			w.WriteF32(v)
		}
	case document.KindArrow:
		rec := &snap.Arrow
		for _, v := range []float32{rec.AX, rec.AY, rec.BX, rec.BY, rec.ElevationZ,
			rec.Head, rec.SR, rec.SG, rec.SB, rec.SA,
			rec.StrokeEnabled, rec.StrokeWidthPx} {
			w.WriteF32(v)
		}
	case document.KindText:
		rec := &snap.TextRec
		w.WriteF32(rec.X)
		w.WriteF32(rec.Y)
		w.WriteF32(rec.ElevationZ)
		w.WriteF32(rec.Rotation)
		w.WriteU8(rec.BoxMode)
		w.WriteU8(rec.Align)
		w.WriteU16(0)
		w.WriteF32(rec.ConstraintWidth)
		w.WriteU32(uint32(len(snap.TextRuns)))
		w.WriteU32(uint32(len(snap.TextContent)))
		for _, run := range snap.TextRuns {
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
		w.WriteBytes(snap.TextContent)
	}
}

func decodeSnapshot(r *proto.Reader, id uint32, snap *EntitySnapshot) {
	snap.ID = id
	snap.Kind = document.EntityKind(r.ReadU32())
	snap.LayerID = r.ReadU32()
	snap.Flags = r.ReadU32()
	decodeOverrides(r, &snap.Overrides)

	switch snap.Kind {
	case document.KindRect:
		rec := &snap.Rect
		rec.ID = id
		rec.X, rec.Y, rec.W, rec.H = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.ElevationZ = r.ReadF32()
		rec.R, rec.G, rec.B, rec.A = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.SR, rec.SG, rec.SB, rec.SA = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.StrokeEnabled = r.ReadF32()
		rec.StrokeWidthPx = r.ReadF32()
	case document.KindLine:
		rec := &snap.Line
		rec.ID = id
		rec.X0, rec.Y0, rec.X1, rec.Y1 = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.ElevationZ = r.ReadF32()
		rec.R, rec.G, rec.B, rec.A = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.Enabled = r.ReadF32()
		rec.StrokeWidthPx = r.ReadF32()
	case document.KindPolyline:
		rec := &snap.Poly
		rec.ID = id
		pointCount := int(r.ReadU32())
		rec.ElevationZ = r.ReadF32()
		rec.R, rec.G, rec.B, rec.A = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.SR, rec.SG, rec.SB, rec.SA = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.Enabled = r.ReadF32()
		rec.StrokeEnabled = r.ReadF32()
		rec.StrokeWidthPx = r.ReadF32()
		if pointCount > r.Remaining()/8 {
			poison(r)
			return
		}
		snap.Points = make([]document.Point2, 0, pointCount)
		for i := 0; i < pointCount; i++ {
			snap.Points = append(snap.Points, document.Point2{X: r.ReadF32(), Y: r.ReadF32()})
		}
		rec.Offset = 0
		rec.Count = uint32(len(snap.Points))
	case document.KindCircle:
		rec := &snap.Circle
		rec.ID = id
		rec.CX, rec.CY, rec.RX, rec.RY = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.ElevationZ = r.ReadF32()
		rec.Rot, rec.SX, rec.SY = r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.R, rec.G, rec.B, rec.A = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.SR, rec.SG, rec.SB, rec.SA = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.StrokeEnabled = r.ReadF32()
		rec.StrokeWidthPx = r.ReadF32()
	case document.KindPolygon:
		rec := &snap.Polygon
		rec.ID = id
		rec.CX, rec.CY, rec.RX, rec.RY = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.ElevationZ = r.ReadF32()
		rec.Rot, rec.SX, rec.SY = r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.Sides = r.ReadU32()
		rec.R, rec.G, rec.B, rec.A = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.SR, rec.SG, rec.SB, rec.SA = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.StrokeEnabled = r.ReadF32()
		rec.StrokeWidthPx = r.ReadF32()
	case document.KindArrow:
		rec := &snap.Arrow
		rec.ID = id
		rec.AX, rec.AY, rec.BX, rec.BY = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.ElevationZ = r.ReadF32()
		rec.Head = r.ReadF32()
		rec.SR, rec.SG, rec.SB, rec.SA = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.StrokeEnabled = r.ReadF32()
		rec.StrokeWidthPx = r.ReadF32()
	case document.KindText:
		rec := &snap.TextRec
		rec.ID = id
		rec.X = r.ReadF32()
		rec.Y = r.ReadF32()
		rec.ElevationZ = r.ReadF32()
		rec.Rotation = r.ReadF32()
		rec.BoxMode = r.ReadU8()
		rec.Align = r.ReadU8()
		r.Skip(2)
		rec.ConstraintWidth = r.ReadF32()
		runCount := int(r.ReadU32())
		contentLen := int(r.ReadU32())
		if runCount > r.Remaining()/24 {
			poison(r)
			return
		}
		snap.TextRuns = make([]text.TextRun, 0, runCount)
		for i := 0; i < runCount; i++ {
			var run text.TextRun
			run.Start = r.ReadU32()
			run.Length = r.ReadU32()
			run.FontID = r.ReadU32()
			run.FontSize = r.ReadF32()
			run.ColorRGBA = r.ReadU32()
			run.Flags = r.ReadU8()
			r.Skip(3)
			snap.TextRuns = append(snap.TextRuns, run)
		}
		if contentLen > r.Remaining() {
			poison(r)
			return
		}
		snap.TextContent = append([]byte(nil), r.ReadBytes(contentLen)...)
		// Layout is not serialized; collapse to the anchor exactly like a
		// fresh upsert so the decoded snapshot equals the restored state.
		rec.LayoutWidth, rec.LayoutHeight = 0, 0
		rec.MinX, rec.MinY = rec.X, rec.Y
		rec.MaxX, rec.MaxY = rec.X, rec.Y
	}
}

// encodeOverrides writes the 20-byte override block; zero masks stand in
// for "no record".
func encodeOverrides(w *proto.Writer, ov *document.StyleOverrides) {
	w.WriteU8(ov.ColorMask)
	w.WriteU8(ov.EnabledMask)
	w.WriteU16(0)
	w.WriteU32(packStyleColor(ov.TextColor))
	w.WriteU32(packStyleColor(ov.TextBackground))
	w.WriteF32(ov.FillEnabled)
	w.WriteF32(ov.TextBackgroundEnabled)
}

func decodeOverrides(r *proto.Reader, ov *document.StyleOverrides) {
	ov.ColorMask = r.ReadU8()
	ov.EnabledMask = r.ReadU8()
	r.Skip(2)
	ov.TextColor = unpackStyleColor(r.ReadU32())
	ov.TextBackground = unpackStyleColor(r.ReadU32())
	ov.FillEnabled = r.ReadF32()
	ov.TextBackgroundEnabled = r.ReadF32()
}

func packStyleColor(c document.StyleColor) uint32 {
	return proto.PackColorRGBA(c.R, c.G, c.B, c.A)
}

func unpackStyleColor(v uint32) document.StyleColor {
	r, g, b, a := proto.UnpackColorRGBA(v)
	return document.StyleColor{R: r, G: g, B: b, A: a}
}

// poison drains the reader so a count that cannot fit rejects the whole
// entry instead of leaving later fields misaligned.
func poison(r *proto.Reader) {
	r.Skip(r.Remaining() + 1)
}

func boolByte(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}

func enabledByte(v float32) uint8 {
	if v > 0.5 {
		return 1
	}
	return 0
}

func byteEnabled(b uint8) float32 {
	if b != 0 {
		return 1
	}
	return 0
}
