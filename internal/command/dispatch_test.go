package command

import (
	"fmt"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/ewdc/engine/internal/document"
	"github.com/ewdc/engine/internal/proto"
	"github.com/ewdc/engine/internal/text"
)

// fakeDoc records every Document call. Methods returning bool consult the
// fail set so tests can force the InvalidOperation paths.
type fakeDoc struct {
	calls []string
	fail  map[string]bool

	rect    document.RectRec
	line    document.LineRec
	poly    document.PolyRec
	pts     []document.Point2
	circle  document.CircleRec
	polygon document.PolygonRec
	arrow   document.ArrowRec

	textRec text.TextRec
	runs    []text.TextRun
	content []byte

	ids    []uint32
	target proto.StyleTarget
	color  uint32
	on     bool
	view   [5]float32
}

func (d *fakeDoc) note(format string, args ...any) {
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
}

func (d *fakeDoc) ok(name string) bool { return !d.fail[name] }

func (d *fakeDoc) ClearAll() { d.note("ClearAll") }
func (d *fakeDoc) DeleteEntity(id uint32) bool {
	d.note("DeleteEntity(%d)", id)
	return d.ok("DeleteEntity")
}
func (d *fakeDoc) SetDrawOrder(ids []uint32) {
	d.ids = ids
	d.note("SetDrawOrder(%d)", len(ids))
}
func (d *fakeDoc) SetViewScale(scale, x, y, width, height float32) {
	d.view = [5]float32{scale, x, y, width, height}
	d.note("SetViewScale")
}

func (d *fakeDoc) UpsertRect(rec document.RectRec) { d.rect = rec; d.note("UpsertRect(%d)", rec.ID) }
func (d *fakeDoc) UpsertLine(rec document.LineRec) { d.line = rec; d.note("UpsertLine(%d)", rec.ID) }
func (d *fakeDoc) UpsertPolyline(rec document.PolyRec, pts []document.Point2) {
	d.poly = rec
	d.pts = pts
	d.note("UpsertPolyline(%d)", rec.ID)
}
func (d *fakeDoc) UpsertCircle(rec document.CircleRec) {
	d.circle = rec
	d.note("UpsertCircle(%d)", rec.ID)
}
func (d *fakeDoc) UpsertPolygon(rec document.PolygonRec) {
	d.polygon = rec
	d.note("UpsertPolygon(%d)", rec.ID)
}
func (d *fakeDoc) UpsertArrow(rec document.ArrowRec) {
	d.arrow = rec
	d.note("UpsertArrow(%d)", rec.ID)
}

func (d *fakeDoc) UpsertText(rec text.TextRec, runs []text.TextRun, content []byte) {
	d.textRec = rec
	d.runs = runs
	d.content = content
	d.note("UpsertText(%d)", rec.ID)
}
func (d *fakeDoc) DeleteText(id uint32) bool {
	d.note("DeleteText(%d)", id)
	return d.ok("DeleteText")
}
func (d *fakeDoc) SetTextCaret(id, caret uint32) { d.note("SetTextCaret(%d,%d)", id, caret) }
func (d *fakeDoc) SetTextSelection(id, start, end uint32) {
	d.note("SetTextSelection(%d,%d,%d)", id, start, end)
}
func (d *fakeDoc) InsertTextContent(id, index uint32, content []byte) bool {
	d.content = content
	d.note("InsertTextContent(%d,%d)", id, index)
	return d.ok("InsertTextContent")
}
func (d *fakeDoc) DeleteTextContent(id, start, end uint32) bool {
	d.note("DeleteTextContent(%d,%d,%d)", id, start, end)
	return d.ok("DeleteTextContent")
}
func (d *fakeDoc) ReplaceTextContent(id, start, end uint32, content []byte) bool {
	d.content = content
	d.note("ReplaceTextContent(%d,%d,%d)", id, start, end)
	return d.ok("ReplaceTextContent")
}
func (d *fakeDoc) ApplyTextStyle(id, start, end, flagsMask, flagsValue, fontID uint32, fontSize float32) bool {
	d.note("ApplyTextStyle(%d,%d,%d)", id, start, end)
	return d.ok("ApplyTextStyle")
}
func (d *fakeDoc) SetTextAlign(id uint32, align uint8) bool {
	d.note("SetTextAlign(%d,%d)", id, align)
	return d.ok("SetTextAlign")
}

func (d *fakeDoc) SetLayerStyleColor(layerID uint32, target proto.StyleTarget, colorRGBA uint32) {
	d.target = target
	d.color = colorRGBA
	d.note("SetLayerStyleColor(%d)", layerID)
}
func (d *fakeDoc) SetLayerStyleEnabled(layerID uint32, target proto.StyleTarget, enabled bool) {
	d.target = target
	d.on = enabled
	d.note("SetLayerStyleEnabled(%d)", layerID)
}
func (d *fakeDoc) SetEntityStyleOverride(ids []uint32, target proto.StyleTarget, colorRGBA uint32) {
	d.ids = ids
	d.target = target
	d.color = colorRGBA
	d.note("SetEntityStyleOverride(%d)", len(ids))
}
func (d *fakeDoc) ClearEntityStyleOverride(ids []uint32, target proto.StyleTarget) {
	d.ids = ids
	d.target = target
	d.note("ClearEntityStyleOverride(%d)", len(ids))
}
func (d *fakeDoc) SetEntityStyleEnabled(ids []uint32, target proto.StyleTarget, enabled bool) {
	d.ids = ids
	d.target = target
	d.on = enabled
	d.note("SetEntityStyleEnabled(%d)", len(ids))
}

func newTestRegistry(t *testing.T) (*Registry, *fakeDoc) {
	t.Helper()
	doc := &fakeDoc{fail: make(map[string]bool)}
	reg := NewRegistry(zap.NewNop())
	RegisterAll(reg, &Deps{Doc: doc, Log: zap.NewNop()})
	return reg, doc
}

func dispatch(reg *Registry, op proto.Op, id uint32, payload []byte) proto.EngineError {
	return reg.Dispatch(proto.Command{Op: op, ID: id, Payload: payload})
}

func TestUnknownOpFallsThroughExtensions(t *testing.T) {
	reg, _ := newTestRegistry(t)
	if got := dispatch(reg, proto.Op(99), 0, nil); got != proto.UnknownCommand {
		t.Fatalf("unhandled op = %v, want UnknownCommand", got)
	}

	var first, second []proto.Op
	reg.RegisterExtension(func(cmd proto.Command) proto.EngineError {
		first = append(first, cmd.Op)
		return proto.UnknownCommand // pass
	})
	reg.RegisterExtension(func(cmd proto.Command) proto.EngineError {
		second = append(second, cmd.Op)
		if cmd.Op == proto.Op(99) {
			return proto.Ok
		}
		return proto.UnknownCommand
	})

	if got := dispatch(reg, proto.Op(99), 0, nil); got != proto.Ok {
		t.Fatalf("extension-claimed op = %v, want Ok", got)
	}
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("extension order broken: first=%v second=%v", first, second)
	}
	if got := dispatch(reg, proto.Op(100), 0, nil); got != proto.UnknownCommand {
		t.Fatalf("unclaimed op = %v, want UnknownCommand", got)
	}
	// Built-in ops never reach extensions.
	if got := dispatch(reg, proto.OpClearAll, 0, nil); got != proto.Ok {
		t.Fatalf("ClearAll = %v, want Ok", got)
	}
	if len(first) != 2 {
		t.Fatalf("extension saw %d ops, want 2", len(first))
	}
}

func TestPanicInHandlerRecovers(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	reg.Register(proto.Op(42), func(cmd proto.Command, r *proto.Reader) proto.EngineError {
		panic("boom")
	})
	if got := dispatch(reg, proto.Op(42), 0, nil); got != proto.InvalidOperation {
		t.Fatalf("panicking handler = %v, want InvalidOperation", got)
	}
	// The registry stays usable after a recovered panic.
	reg.Register(proto.Op(43), func(cmd proto.Command, r *proto.Reader) proto.EngineError {
		return proto.Ok
	})
	if got := dispatch(reg, proto.Op(43), 0, nil); got != proto.Ok {
		t.Fatalf("post-panic dispatch = %v, want Ok", got)
	}
}

// rectPayload builds a valid 60-byte rect payload.
func rectPayload(x, y, w, h, elev float32) []byte {
	pw := proto.NewWriter()
	pw.WriteF32(x)
	pw.WriteF32(y)
	pw.WriteF32(w)
	pw.WriteF32(h)
	for i := 0; i < 4; i++ {
		pw.WriteF32(0.5) // fill
	}
	for i := 0; i < 4; i++ {
		pw.WriteF32(1.0) // stroke
	}
	pw.WriteF32(1.0) // strokeEnabled
	pw.WriteF32(2.0) // strokeWidthPx
	pw.WriteF32(elev)
	return pw.Bytes()
}

func TestUpsertRectDecodes(t *testing.T) {
	reg, doc := newTestRegistry(t)
	if got := dispatch(reg, proto.OpUpsertRect, 9, rectPayload(1, 2, 3, 4, 5)); got != proto.Ok {
		t.Fatalf("dispatch = %v, want Ok", got)
	}
	r := doc.rect
	if r.ID != 9 || r.X != 1 || r.Y != 2 || r.W != 3 || r.H != 4 {
		t.Fatalf("rect decoded wrong: %+v", r)
	}
	if r.ElevationZ != 5 || r.StrokeWidthPx != 2 || r.SR != 1 || r.R != 0.5 {
		t.Fatalf("rect tail decoded wrong: %+v", r)
	}
}

func TestNonFiniteElevationRejected(t *testing.T) {
	reg, doc := newTestRegistry(t)
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	for _, elev := range []float32{nan, inf} {
		if got := dispatch(reg, proto.OpUpsertRect, 1, rectPayload(0, 0, 1, 1, elev)); got != proto.InvalidPayloadSize {
			t.Fatalf("elev %v: got %v, want InvalidPayloadSize", elev, got)
		}
	}
	if len(doc.calls) != 0 {
		t.Fatalf("rejected upsert still reached the document: %v", doc.calls)
	}
}

func TestPayloadSizeStrict(t *testing.T) {
	reg, _ := newTestRegistry(t)
	cases := []struct {
		name string
		op   proto.Op
		size int
	}{
		{"ClearAll", proto.OpClearAll, 0},
		{"UpsertRect", proto.OpUpsertRect, proto.SizeRectPayload},
		{"UpsertLine", proto.OpUpsertLine, proto.SizeLinePayload},
		{"DeleteEntity", proto.OpDeleteEntity, 0},
		{"SetViewScale", proto.OpSetViewScale, proto.SizeViewScalePayload},
		{"UpsertCircle", proto.OpUpsertCircle, proto.SizeCirclePayload},
		{"UpsertPolygon", proto.OpUpsertPolygon, proto.SizePolygonPayload},
		{"UpsertArrow", proto.OpUpsertArrow, proto.SizeArrowPayload},
		{"DeleteText", proto.OpDeleteText, 0},
		{"SetTextCaret", proto.OpSetTextCaret, proto.SizeTextCaret},
		{"SetTextSelection", proto.OpSetTextSelection, proto.SizeTextSelection},
		{"DeleteTextContent", proto.OpDeleteTextContent, proto.SizeTextDelete},
		{"ApplyTextStyle", proto.OpApplyTextStyle, proto.SizeTextStyle},
		{"SetTextAlign", proto.OpSetTextAlign, proto.SizeTextAlign},
		{"SetLayerStyle", proto.OpSetLayerStyle, proto.SizeLayerStyle},
		{"SetLayerStyleEnabled", proto.OpSetLayerStyleEnabled, proto.SizeLayerEnabled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// One byte over the fixed size must be rejected before decoding.
			bad := make([]byte, tc.size+1)
			if got := dispatch(reg, tc.op, 1, bad); got != proto.InvalidPayloadSize {
				t.Fatalf("oversize payload = %v, want InvalidPayloadSize", got)
			}
			if tc.size > 0 {
				if got := dispatch(reg, tc.op, 1, make([]byte, tc.size-1)); got != proto.InvalidPayloadSize {
					t.Fatalf("undersize payload = %v, want InvalidPayloadSize", got)
				}
			}
		})
	}
}

func polylinePayload(elev float32, pts []document.Point2) []byte {
	pw := proto.NewWriter()
	for i := 0; i < 4; i++ {
		pw.WriteF32(1.0) // r g b a
	}
	pw.WriteF32(1.0) // enabled
	pw.WriteF32(1.5) // strokeWidthPx
	pw.WriteF32(elev)
	pw.WriteU32(uint32(len(pts)))
	pw.WriteU32(0) // reserved
	for _, p := range pts {
		pw.WriteF32(p.X)
		pw.WriteF32(p.Y)
	}
	return pw.Bytes()
}

func TestPolylineDispatch(t *testing.T) {
	reg, doc := newTestRegistry(t)

	pts := []document.Point2{{X: 0, Y: 0}, {X: 5, Y: 5}, {X: 10, Y: 0}}
	if got := dispatch(reg, proto.OpUpsertPolyline, 3, polylinePayload(1, pts)); got != proto.Ok {
		t.Fatalf("dispatch = %v, want Ok", got)
	}
	if doc.poly.ID != 3 || len(doc.pts) != 3 || doc.pts[2].X != 10 {
		t.Fatalf("polyline decoded wrong: rec=%+v pts=%v", doc.poly, doc.pts)
	}

	// Count below 2 degenerates to a delete.
	doc.calls = nil
	if got := dispatch(reg, proto.OpUpsertPolyline, 3, polylinePayload(1, pts[:1])); got != proto.Ok {
		t.Fatalf("degenerate dispatch = %v, want Ok", got)
	}
	if len(doc.calls) != 1 || doc.calls[0] != "DeleteEntity(3)" {
		t.Fatalf("degenerate polyline calls = %v, want delete", doc.calls)
	}

	// Declared count must reconcile with the payload size exactly.
	short := polylinePayload(1, pts)
	short = short[:len(short)-4]
	if got := dispatch(reg, proto.OpUpsertPolyline, 3, short); got != proto.InvalidPayloadSize {
		t.Fatalf("truncated points = %v, want InvalidPayloadSize", got)
	}
}

func textPayload(runs []text.TextRun, content string) []byte {
	pw := proto.NewWriter()
	pw.WriteF32(10) // x
	pw.WriteF32(20) // y
	pw.WriteF32(0)  // rotation
	pw.WriteU8(text.BoxFixedWidth)
	pw.WriteU8(text.AlignCenter)
	pw.WriteU16(0)   // pad
	pw.WriteF32(240) // constraintWidth
	pw.WriteF32(1)   // elevationZ
	pw.WriteU32(uint32(len(runs)))
	pw.WriteU32(uint32(len(content)))
	for _, run := range runs {
		pw.WriteU32(run.Start)
		pw.WriteU32(run.Length)
		pw.WriteU32(run.FontID)
		pw.WriteF32(run.FontSize)
		pw.WriteU32(run.ColorRGBA)
		pw.WriteU8(run.Flags)
		pw.WriteU8(0)
		pw.WriteU8(0)
		pw.WriteU8(0)
	}
	pw.WriteBytes([]byte(content))
	return pw.Bytes()
}

func TestUpsertTextDecodes(t *testing.T) {
	reg, doc := newTestRegistry(t)
	runs := []text.TextRun{
		{Start: 0, Length: 5, FontID: 4, FontSize: 16, ColorRGBA: 0xFF0000FF, Flags: text.StyleBold},
		{Start: 5, Length: 6, FontID: 7, FontSize: 12, ColorRGBA: 0xFFFFFFFF},
	}
	if got := dispatch(reg, proto.OpUpsertText, 77, textPayload(runs, "hello world")); got != proto.Ok {
		t.Fatalf("dispatch = %v, want Ok", got)
	}
	rec := doc.textRec
	if rec.ID != 77 || rec.X != 10 || rec.Y != 20 || rec.BoxMode != text.BoxFixedWidth {
		t.Fatalf("text header decoded wrong: %+v", rec)
	}
	if rec.Align != text.AlignCenter || rec.ConstraintWidth != 240 {
		t.Fatalf("text header tail decoded wrong: %+v", rec)
	}
	if len(doc.runs) != 2 || doc.runs[0].Flags != text.StyleBold || doc.runs[1].FontID != 7 {
		t.Fatalf("runs decoded wrong: %+v", doc.runs)
	}
	if string(doc.content) != "hello world" {
		t.Fatalf("content = %q", doc.content)
	}

	// Header counts must reconcile with the payload size.
	bad := textPayload(runs, "hello world")
	bad = append(bad, 0)
	if got := dispatch(reg, proto.OpUpsertText, 77, bad); got != proto.InvalidPayloadSize {
		t.Fatalf("padded text payload = %v, want InvalidPayloadSize", got)
	}
}

func TestTextContentOpsMapFailure(t *testing.T) {
	reg, doc := newTestRegistry(t)

	insert := proto.NewWriter()
	insert.WriteU32(2) // index
	insert.WriteU32(3) // byteCount
	insert.WriteU32(0) // reserved
	insert.WriteU32(0) // reserved
	insert.WriteBytes([]byte("abc"))
	if got := dispatch(reg, proto.OpInsertTextContent, 5, insert.Bytes()); got != proto.Ok {
		t.Fatalf("insert = %v, want Ok", got)
	}
	if string(doc.content) != "abc" {
		t.Fatalf("insert content = %q", doc.content)
	}

	// Unknown text id surfaces as InvalidOperation.
	doc.fail["InsertTextContent"] = true
	if got := dispatch(reg, proto.OpInsertTextContent, 5, insert.Bytes()); got != proto.InvalidOperation {
		t.Fatalf("failed insert = %v, want InvalidOperation", got)
	}

	doc.fail["SetTextAlign"] = true
	align := proto.NewWriter()
	align.WriteU32(uint32(text.AlignRight))
	if got := dispatch(reg, proto.OpSetTextAlign, 5, align.Bytes()); got != proto.InvalidOperation {
		t.Fatalf("failed align = %v, want InvalidOperation", got)
	}

	// DeleteText stays Ok even when the document reports nothing deleted.
	doc.fail["DeleteText"] = true
	if got := dispatch(reg, proto.OpDeleteText, 5, nil); got != proto.Ok {
		t.Fatalf("idempotent delete = %v, want Ok", got)
	}
}

func TestReplaceTextContentDecodes(t *testing.T) {
	reg, doc := newTestRegistry(t)
	pw := proto.NewWriter()
	pw.WriteU32(1) // start
	pw.WriteU32(4) // end
	pw.WriteU32(2) // byteCount
	pw.WriteU32(0) // reserved
	pw.WriteBytes([]byte("xy"))
	if got := dispatch(reg, proto.OpReplaceTextContent, 8, pw.Bytes()); got != proto.Ok {
		t.Fatalf("replace = %v, want Ok", got)
	}
	want := "ReplaceTextContent(8,1,4)"
	if len(doc.calls) != 1 || doc.calls[0] != want {
		t.Fatalf("calls = %v, want [%s]", doc.calls, want)
	}
	if string(doc.content) != "xy" {
		t.Fatalf("content = %q", doc.content)
	}
}

func TestStyleOverrideDecodes(t *testing.T) {
	reg, doc := newTestRegistry(t)
	pw := proto.NewWriter()
	pw.WriteU32(uint32(proto.TargetFill))
	pw.WriteU32(0x336699FF)
	pw.WriteU32(3)
	pw.WriteU32(0) // reserved
	pw.WriteU32(11)
	pw.WriteU32(12)
	pw.WriteU32(13)
	if got := dispatch(reg, proto.OpSetEntityStyleOverride, 0, pw.Bytes()); got != proto.Ok {
		t.Fatalf("dispatch = %v, want Ok", got)
	}
	if doc.target != proto.TargetFill || doc.color != 0x336699FF {
		t.Fatalf("target/color = %v/%08x", doc.target, doc.color)
	}
	if len(doc.ids) != 3 || doc.ids[0] != 11 || doc.ids[2] != 13 {
		t.Fatalf("ids = %v", doc.ids)
	}

	// Id count must reconcile with the payload size.
	truncated := pw.Bytes()[:len(pw.Bytes())-4]
	if got := dispatch(reg, proto.OpSetEntityStyleOverride, 0, truncated); got != proto.InvalidPayloadSize {
		t.Fatalf("truncated ids = %v, want InvalidPayloadSize", got)
	}
}

func TestStyleTargetTruncatesLikeWire(t *testing.T) {
	reg, doc := newTestRegistry(t)
	pw := proto.NewWriter()
	pw.WriteU32(0x102) // low byte 2 = TextColor
	pw.WriteU32(0xAABBCCDD)
	if got := dispatch(reg, proto.OpSetLayerStyle, 1, pw.Bytes()); got != proto.Ok {
		t.Fatalf("dispatch = %v, want Ok", got)
	}
	if doc.target != proto.TargetTextColor {
		t.Fatalf("target = %v, want TextColor", doc.target)
	}
}

func TestSetDrawOrderDecodes(t *testing.T) {
	reg, doc := newTestRegistry(t)
	pw := proto.NewWriter()
	pw.WriteU32(2)
	pw.WriteU32(0) // reserved
	pw.WriteU32(20)
	pw.WriteU32(10)
	if got := dispatch(reg, proto.OpSetDrawOrder, 0, pw.Bytes()); got != proto.Ok {
		t.Fatalf("dispatch = %v, want Ok", got)
	}
	if len(doc.ids) != 2 || doc.ids[0] != 20 || doc.ids[1] != 10 {
		t.Fatalf("order = %v, want [20 10]", doc.ids)
	}
}

func TestViewScalePassesRawValues(t *testing.T) {
	reg, doc := newTestRegistry(t)
	pw := proto.NewWriter()
	pw.WriteF32(0) // clamped later by the document, not here
	pw.WriteF32(100)
	pw.WriteF32(200)
	pw.WriteF32(1920)
	pw.WriteF32(1080)
	if got := dispatch(reg, proto.OpSetViewScale, 0, pw.Bytes()); got != proto.Ok {
		t.Fatalf("dispatch = %v, want Ok", got)
	}
	if doc.view != [5]float32{0, 100, 200, 1920, 1080} {
		t.Fatalf("view = %v", doc.view)
	}
}

func TestFullBufferRoundTrip(t *testing.T) {
	reg, doc := newTestRegistry(t)

	b := proto.NewBufferBuilder()
	b.Add(proto.OpUpsertRect, 1, rectPayload(0, 0, 10, 10, 0))
	b.Add(proto.OpUpsertLine, 2, func() []byte {
		pw := proto.NewWriter()
		for i := 0; i < 11; i++ {
			pw.WriteF32(float32(i))
		}
		return pw.Bytes()
	}())
	b.Add(proto.OpDeleteEntity, 1, nil)

	err := proto.ParseCommandBuffer(b.Bytes(), reg.Dispatch)
	if err != proto.Ok {
		t.Fatalf("buffer apply = %v, want Ok", err)
	}
	want := []string{"UpsertRect(1)", "UpsertLine(2)", "DeleteEntity(1)"}
	if len(doc.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", doc.calls, want)
	}
	for i := range want {
		if doc.calls[i] != want[i] {
			t.Fatalf("call %d = %q, want %q", i, doc.calls[i], want[i])
		}
	}
	if doc.line.StrokeWidthPx != 9 || doc.line.ElevationZ != 10 {
		t.Fatalf("line tail = %+v", doc.line)
	}
}
