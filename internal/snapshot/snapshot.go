// Package snapshot serializes the whole document into the ESNP container
// format: a 16-byte header, a section table with a CRC-32 checksum per
// section, then the section payloads. Sections are ENTS (geometry records
// plus the shared polyline point pool), LAYR (layer table), ORDR (draw
// order), SELC (selection), TEXT (text records, runs and content), STYL
// (per-entity style overrides), NIDX (id allocators) and an optional HIST
// carrying serialized undo history. Loading a built snapshot reproduces
// the document digest exactly.
package snapshot

import (
	"hash/crc32"
	"math"

	"github.com/ewdc/engine/internal/document"
	"github.com/ewdc/engine/internal/proto"
	"github.com/ewdc/engine/internal/text"
)

const (
	snapshotMagic   uint32 = 0x504E5345 // "ESNP"
	snapshotVersion uint32 = 1

	headerBytes     = 16
	tableEntryBytes = 16
)

// Section tags, fourCC little-endian.
const (
	tagENTS uint32 = 0x53544E45
	tagLAYR uint32 = 0x5259414C
	tagORDR uint32 = 0x5244524F
	tagSELC uint32 = 0x434C4553
	tagTEXT uint32 = 0x54584554
	tagSTYL uint32 = 0x4C595453
	tagNIDX uint32 = 0x5844494E
	tagHIST uint32 = 0x54534948
)

// Fixed record sizes inside ENTS: a 12-byte id/layer/flags prefix plus
// the kind payload.
const (
	rectRecordBytes    = 12 + 15*4
	lineRecordBytes    = 12 + 11*4
	polyRecordBytes    = 12 + 2*4 + 12*4
	pointBytes         = 8
	circleRecordBytes  = 12 + 18*4
	polygonRecordBytes = 12 + 8*4 + 4 + 10*4
	arrowRecordBytes   = 12 + 12*4

	layerRecordMinBytes = 16 + 20
	textRecordMinBytes  = 68
	overrideRecordBytes = 24
)

// TextEntity is one decoded text record with its runs and content.
type TextEntity struct {
	Rec     text.TextRec
	Runs    []text.TextRun
	Content []byte
}

// Snapshot is the decoded form of every section. Apply moves it into the
// live stores; History rides along for the engine to hand to its manager.
type Snapshot struct {
	Rects     []document.RectRec
	Lines     []document.LineRec
	Polylines []document.PolyRec
	Points    []document.Point2
	Circles   []document.CircleRec
	Polygons  []document.PolygonRec
	Arrows    []document.ArrowRec
	Texts     []TextEntity

	Layers    map[uint32]uint32 // entity id → layer id
	Flags     map[uint32]uint32 // entity id → flag bits
	Overrides map[uint32]document.StyleOverrides

	LayerTable []document.LayerRecord
	DrawOrder  []uint32
	Selection  []uint32

	NextEntityID uint32
	NextLayerID  uint32

	History []byte
}

// Parse validates the container and decodes every section. The section
// table is checked before any payload is touched: offsets must land past
// the table, stay inside the buffer and carry a matching checksum.
// Duplicate tags keep the first occurrence.
func Parse(data []byte) (*Snapshot, proto.EngineError) {
	if len(data) < headerBytes {
		return nil, proto.BufferTruncated
	}
	r := proto.NewReader(data)
	if r.ReadU32() != snapshotMagic {
		return nil, proto.InvalidMagic
	}
	if r.ReadU32() != snapshotVersion {
		return nil, proto.UnsupportedVersion
	}
	sectionCount := int(r.ReadU32())
	r.Skip(4)

	if sectionCount > (math.MaxUint32-headerBytes)/tableEntryBytes {
		return nil, proto.InvalidPayloadSize
	}
	headerPlusTable := headerBytes + sectionCount*tableEntryBytes
	if len(data) < headerPlusTable {
		return nil, proto.BufferTruncated
	}

	sections := make(map[uint32][]byte, sectionCount)
	for i := 0; i < sectionCount; i++ {
		tag := r.ReadU32()
		offset := int(r.ReadU32())
		size := int(r.ReadU32())
		sum := r.ReadU32()
		if uint64(offset)+uint64(size) > math.MaxUint32 {
			return nil, proto.InvalidPayloadSize
		}
		if offset < headerPlusTable {
			return nil, proto.InvalidPayloadSize
		}
		if offset+size > len(data) {
			return nil, proto.BufferTruncated
		}
		payload := data[offset : offset+size]
		if crc32.ChecksumIEEE(payload) != sum {
			return nil, proto.InvalidPayloadSize
		}
		if _, dup := sections[tag]; dup {
			continue
		}
		sections[tag] = payload
	}

	for _, tag := range []uint32{tagENTS, tagLAYR, tagORDR, tagSELC, tagTEXT, tagSTYL, tagNIDX} {
		if _, ok := sections[tag]; !ok {
			return nil, proto.InvalidPayloadSize
		}
	}

	snap := &Snapshot{
		Layers:    make(map[uint32]uint32),
		Flags:     make(map[uint32]uint32),
		Overrides: make(map[uint32]document.StyleOverrides),
	}
	if err := decodeEntities(sections[tagENTS], snap); err != proto.Ok {
		return nil, err
	}
	if err := decodeLayers(sections[tagLAYR], snap); err != proto.Ok {
		return nil, err
	}
	var err proto.EngineError
	if snap.DrawOrder, err = decodeIDList(sections[tagORDR]); err != proto.Ok {
		return nil, err
	}
	if snap.Selection, err = decodeIDList(sections[tagSELC]); err != proto.Ok {
		return nil, err
	}
	if err := decodeTexts(sections[tagTEXT], snap); err != proto.Ok {
		return nil, err
	}
	if err := decodeOverrides(sections[tagSTYL], snap); err != proto.Ok {
		return nil, err
	}
	if err := decodeNextIDs(sections[tagNIDX], snap); err != proto.Ok {
		return nil, err
	}
	if hist, ok := sections[tagHIST]; ok && len(hist) > 0 {
		snap.History = append([]byte(nil), hist...)
	}
	return snap, proto.Ok
}

type entityMeta struct {
	ID      uint32
	LayerID uint32
	Flags   uint32
}

func readMeta(r *proto.Reader) entityMeta {
	return entityMeta{ID: r.ReadU32(), LayerID: r.ReadU32(), Flags: r.ReadU32()}
}

func (snap *Snapshot) noteMeta(m entityMeta) {
	snap.Layers[m.ID] = m.LayerID
	snap.Flags[m.ID] = m.Flags
}

func decodeEntities(data []byte, snap *Snapshot) proto.EngineError {
	r := proto.NewReader(data)
	rectCount := int(r.ReadU32())
	lineCount := int(r.ReadU32())
	polyCount := int(r.ReadU32())
	pointCount := int(r.ReadU32())
	circleCount := int(r.ReadU32())
	polygonCount := int(r.ReadU32())
	arrowCount := int(r.ReadU32())
	if r.Short() {
		return proto.InvalidPayloadSize
	}

	need := rectCount*rectRecordBytes + lineCount*lineRecordBytes +
		polyCount*polyRecordBytes + pointCount*pointBytes +
		circleCount*circleRecordBytes + polygonCount*polygonRecordBytes +
		arrowCount*arrowRecordBytes
	if rectCount < 0 || need < 0 || r.Remaining() < need {
		return proto.InvalidPayloadSize
	}

	snap.Rects = make([]document.RectRec, 0, rectCount)
	for i := 0; i < rectCount; i++ {
		m := readMeta(r)
		rec := document.RectRec{ID: m.ID}
		rec.X, rec.Y, rec.W, rec.H = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.ElevationZ = r.ReadF32()
		rec.R, rec.G, rec.B, rec.A = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.SR, rec.SG, rec.SB, rec.SA = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.StrokeEnabled = r.ReadF32()
		rec.StrokeWidthPx = r.ReadF32()
		snap.Rects = append(snap.Rects, rec)
		snap.noteMeta(m)
	}

	snap.Lines = make([]document.LineRec, 0, lineCount)
	for i := 0; i < lineCount; i++ {
		m := readMeta(r)
		rec := document.LineRec{ID: m.ID}
		rec.X0, rec.Y0, rec.X1, rec.Y1 = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.ElevationZ = r.ReadF32()
		rec.R, rec.G, rec.B, rec.A = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.Enabled = r.ReadF32()
		rec.StrokeWidthPx = r.ReadF32()
		snap.Lines = append(snap.Lines, rec)
		snap.noteMeta(m)
	}

	snap.Polylines = make([]document.PolyRec, 0, polyCount)
	for i := 0; i < polyCount; i++ {
		m := readMeta(r)
		rec := document.PolyRec{ID: m.ID}
		rec.Offset = r.ReadU32()
		rec.Count = r.ReadU32()
		rec.ElevationZ = r.ReadF32()
		rec.R, rec.G, rec.B, rec.A = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.SR, rec.SG, rec.SB, rec.SA = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.Enabled = r.ReadF32()
		rec.StrokeEnabled = r.ReadF32()
		rec.StrokeWidthPx = r.ReadF32()
		snap.Polylines = append(snap.Polylines, rec)
		snap.noteMeta(m)
	}

	snap.Points = make([]document.Point2, 0, pointCount)
	for i := 0; i < pointCount; i++ {
		snap.Points = append(snap.Points, document.Point2{X: r.ReadF32(), Y: r.ReadF32()})
	}

	snap.Circles = make([]document.CircleRec, 0, circleCount)
	for i := 0; i < circleCount; i++ {
		m := readMeta(r)
		rec := document.CircleRec{ID: m.ID}
		rec.CX, rec.CY, rec.RX, rec.RY = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.ElevationZ = r.ReadF32()
		rec.Rot, rec.SX, rec.SY = r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.R, rec.G, rec.B, rec.A = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.SR, rec.SG, rec.SB, rec.SA = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.StrokeEnabled = r.ReadF32()
		rec.StrokeWidthPx = r.ReadF32()
		snap.Circles = append(snap.Circles, rec)
		snap.noteMeta(m)
	}

	snap.Polygons = make([]document.PolygonRec, 0, polygonCount)
	for i := 0; i < polygonCount; i++ {
		m := readMeta(r)
		rec := document.PolygonRec{ID: m.ID}
		rec.CX, rec.CY, rec.RX, rec.RY = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.ElevationZ = r.ReadF32()
		rec.Rot, rec.SX, rec.SY = r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.Sides = r.ReadU32()
		rec.R, rec.G, rec.B, rec.A = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.SR, rec.SG, rec.SB, rec.SA = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.StrokeEnabled = r.ReadF32()
		rec.StrokeWidthPx = r.ReadF32()
		snap.Polygons = append(snap.Polygons, rec)
		snap.noteMeta(m)
	}

	snap.Arrows = make([]document.ArrowRec, 0, arrowCount)
	for i := 0; i < arrowCount; i++ {
		m := readMeta(r)
		rec := document.ArrowRec{ID: m.ID}
		rec.AX, rec.AY, rec.BX, rec.BY = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.ElevationZ = r.ReadF32()
		rec.Head = r.ReadF32()
		rec.SR, rec.SG, rec.SB, rec.SA = r.ReadF32(), r.ReadF32(), r.ReadF32(), r.ReadF32()
		rec.StrokeEnabled = r.ReadF32()
		rec.StrokeWidthPx = r.ReadF32()
		snap.Arrows = append(snap.Arrows, rec)
		snap.noteMeta(m)
	}

	if r.Short() {
		return proto.InvalidPayloadSize
	}
	return proto.Ok
}

func decodeLayers(data []byte, snap *Snapshot) proto.EngineError {
	r := proto.NewReader(data)
	count := int(r.ReadU32())
	if r.Short() || count < 0 || count > r.Remaining()/layerRecordMinBytes {
		return proto.InvalidPayloadSize
	}
	snap.LayerTable = make([]document.LayerRecord, 0, count)
	for i := 0; i < count; i++ {
		var rec document.LayerRecord
		rec.ID = r.ReadU32()
		rec.Order = r.ReadU32()
		rec.Flags = r.ReadU32()
		nameLen := int(r.ReadU32())
		if nameLen < 0 || nameLen > r.Remaining() {
			return proto.InvalidPayloadSize
		}
		rec.Name = string(r.ReadBytes(nameLen))
		rec.Style.Stroke.Color = unpackColor(r.ReadU32())
		rec.Style.Fill.Color = unpackColor(r.ReadU32())
		rec.Style.TextColor.Color = unpackColor(r.ReadU32())
		rec.Style.TextBackground.Color = unpackColor(r.ReadU32())
		rec.Style.Stroke.Enabled = flagFloat(r.ReadU8())
		rec.Style.Fill.Enabled = flagFloat(r.ReadU8())
		rec.Style.TextBackground.Enabled = flagFloat(r.ReadU8())
		rec.Style.TextColor.Enabled = flagFloat(r.ReadU8())
		snap.LayerTable = append(snap.LayerTable, rec)
	}
	if r.Short() {
		return proto.InvalidPayloadSize
	}
	return proto.Ok
}

func decodeIDList(data []byte) ([]uint32, proto.EngineError) {
	r := proto.NewReader(data)
	count := int(r.ReadU32())
	if r.Short() || count < 0 || count > r.Remaining()/4 {
		return nil, proto.InvalidPayloadSize
	}
	ids := make([]uint32, 0, count)
	for i := 0; i < count; i++ {
		ids = append(ids, r.ReadU32())
	}
	if r.Short() {
		return nil, proto.InvalidPayloadSize
	}
	return ids, proto.Ok
}

func decodeTexts(data []byte, snap *Snapshot) proto.EngineError {
	r := proto.NewReader(data)
	count := int(r.ReadU32())
	if r.Short() || count < 0 || count > r.Remaining()/textRecordMinBytes {
		return proto.InvalidPayloadSize
	}
	snap.Texts = make([]TextEntity, 0, count)
	for i := 0; i < count; i++ {
		m := readMeta(r)
		var te TextEntity
		te.Rec.ID = m.ID
		te.Rec.X = r.ReadF32()
		te.Rec.Y = r.ReadF32()
		te.Rec.ElevationZ = r.ReadF32()
		te.Rec.Rotation = r.ReadF32()
		te.Rec.BoxMode = r.ReadU8()
		te.Rec.Align = r.ReadU8()
		r.Skip(2)
		te.Rec.ConstraintWidth = r.ReadF32()
		runCount := int(r.ReadU32())
		contentLen := int(r.ReadU32())
		te.Rec.LayoutWidth = r.ReadF32()
		te.Rec.LayoutHeight = r.ReadF32()
		te.Rec.MinX = r.ReadF32()
		te.Rec.MinY = r.ReadF32()
		te.Rec.MaxX = r.ReadF32()
		te.Rec.MaxY = r.ReadF32()
		if runCount < 0 || runCount > r.Remaining()/24 {
			return proto.InvalidPayloadSize
		}
		te.Runs = make([]text.TextRun, 0, runCount)
		for j := 0; j < runCount; j++ {
			var run text.TextRun
			run.Start = r.ReadU32()
			run.Length = r.ReadU32()
			run.FontID = r.ReadU32()
			run.FontSize = r.ReadF32()
			run.ColorRGBA = r.ReadU32()
			run.Flags = r.ReadU8()
			r.Skip(3)
			te.Runs = append(te.Runs, run)
		}
		if contentLen < 0 || contentLen > r.Remaining() {
			return proto.InvalidPayloadSize
		}
		te.Content = r.ReadBytes(contentLen)
		snap.Texts = append(snap.Texts, te)
		snap.noteMeta(m)
	}
	if r.Short() {
		return proto.InvalidPayloadSize
	}
	return proto.Ok
}

func decodeOverrides(data []byte, snap *Snapshot) proto.EngineError {
	r := proto.NewReader(data)
	count := int(r.ReadU32())
	if r.Short() || count < 0 || count > r.Remaining()/overrideRecordBytes {
		return proto.InvalidPayloadSize
	}
	for i := 0; i < count; i++ {
		id := r.ReadU32()
		var ov document.StyleOverrides
		ov.ColorMask = r.ReadU8()
		ov.EnabledMask = r.ReadU8()
		r.Skip(2)
		ov.TextColor = unpackColor(r.ReadU32())
		ov.TextBackground = unpackColor(r.ReadU32())
		ov.FillEnabled = r.ReadF32()
		ov.TextBackgroundEnabled = r.ReadF32()
		snap.Overrides[id] = ov
	}
	if r.Short() {
		return proto.InvalidPayloadSize
	}
	return proto.Ok
}

func decodeNextIDs(data []byte, snap *Snapshot) proto.EngineError {
	r := proto.NewReader(data)
	snap.NextEntityID = r.ReadU32()
	snap.NextLayerID = r.ReadU32()
	if r.Short() {
		return proto.InvalidPayloadSize
	}
	return proto.Ok
}

func unpackColor(v uint32) document.StyleColor {
	r, g, b, a := proto.UnpackColorRGBA(v)
	return document.StyleColor{R: r, G: g, B: b, A: a}
}

func flagFloat(b uint8) float32 {
	if b != 0 {
		return 1
	}
	return 0
}
