package snapshot

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/ewdc/engine/internal/digest"
	"github.com/ewdc/engine/internal/document"
	"github.com/ewdc/engine/internal/proto"
	"github.com/ewdc/engine/internal/text"
)

func quantized(v uint32) document.StyleColor {
	r, g, b, a := proto.UnpackColorRGBA(v)
	return document.StyleColor{R: r, G: g, B: b, A: a}
}

// buildWorld assembles a document exercising every section: all entity
// kinds, a second layer with a non-default style, overrides, pool garbage
// from a deleted polyline, a custom draw order and a live selection.
func buildWorld(t *testing.T) (*document.Store, *text.Store, *document.Selection) {
	t.Helper()
	store := document.NewStore()
	texts := text.NewStore()
	sel := document.NewSelection()

	store.UpsertRect(document.RectRec{ID: 1, X: 1, Y: 2, W: 30, H: 40, ElevationZ: 0.5,
		R: 1, A: 1, SA: 1, StrokeEnabled: 1, StrokeWidthPx: 2})
	store.UpsertLine(document.LineRec{ID: 2, X0: -1, Y0: -2, X1: 5, Y1: 6,
		G: 1, A: 1, Enabled: 1, StrokeWidthPx: 1.5})

	// Two polylines, then delete one so the pool keeps a garbage range.
	ptsA := []document.Point2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}
	store.UpsertPolyline(document.PolyRec{ID: 3, Offset: store.AppendPoints(ptsA), Count: 3,
		R: 1, G: 1, A: 1, Enabled: 1, StrokeWidthPx: 2})
	ptsB := []document.Point2{{X: 9, Y: 9}, {X: 10, Y: 10}}
	store.UpsertPolyline(document.PolyRec{ID: 4, Offset: store.AppendPoints(ptsB), Count: 2,
		B: 1, A: 1, Enabled: 1, StrokeWidthPx: 1})
	store.DeleteEntity(3)

	store.UpsertCircle(document.CircleRec{ID: 5, CX: 4, CY: 4, RX: 2, RY: 3, Rot: 0.7,
		SX: 1, SY: 1, R: 0.25, A: 1, SA: 1, StrokeEnabled: 1, StrokeWidthPx: 1})
	store.UpsertPolygon(document.PolygonRec{ID: 6, CX: 8, CY: 8, RX: 3, RY: 3,
		SX: 1, SY: 1, Sides: 5, G: 0.5, A: 1, SA: 1, StrokeEnabled: 1, StrokeWidthPx: 1})
	store.UpsertArrow(document.ArrowRec{ID: 7, AX: 0, AY: 0, BX: 10, BY: 10, Head: 6,
		SR: 1, SA: 1, StrokeEnabled: 1, StrokeWidthPx: 2})

	texts.Upsert(text.TextRec{ID: 8, X: 12, Y: 13, ElevationZ: 1, Rotation: 0.1,
		BoxMode: text.BoxFixedWidth, Align: text.AlignRight, ConstraintWidth: 200},
		[]text.TextRun{
			{Start: 0, Length: 3, FontID: 2, FontSize: 24, ColorRGBA: 0xFF0000FF, Flags: text.StyleBold},
			{Start: 3, Length: 3, FontID: 4, FontSize: 16, ColorRGBA: 0xFFFFFFFF},
		}, []byte("héllo°"))
	store.RegisterText(8)
	texts.SetLayoutResult(8, 180, 30, 12, 13, 192, 43)

	st := document.DefaultLayerStyle()
	st.Stroke.Color = quantized(0x336699FF)
	st.Fill.Enabled = 0
	st.TextColor.Enabled = 0
	store.LayerStore.SetStyle(2, st)
	store.LayerStore.SetName(2, "尺寸標註")
	store.SetEntityLayer(5, 2)
	store.SetEntityFlags(2, document.FlagLocked, document.FlagLocked)

	store.Overrides[1] = document.StyleOverrides{ColorMask: 3, EnabledMask: 1,
		TextColor: quantized(0x102030FF), TextBackground: quantized(0x405060FF), FillEnabled: 1}
	store.Overrides[6] = document.StyleOverrides{} // empty masks, dropped on save

	store.DrawOrder = []uint32{7, 1, 2, 4, 5, 6, 8}
	sel.SetSelection(store, []uint32{1, 7}, document.SelectReplace)

	store.TrackNextEntityID(50)
	store.LayerStore.TrackNextLayerID(9)
	return store, texts, sel
}

func TestRoundTripDigest(t *testing.T) {
	store, texts, sel := buildWorld(t)
	before := digest.Compute(store, texts, sel)

	blob := Build(store, texts, sel, nil)
	snap, err := Parse(blob)
	if err != proto.Ok {
		t.Fatalf("Parse = %v", err)
	}

	store2 := document.NewStore()
	texts2 := text.NewStore()
	sel2 := document.NewSelection()
	Apply(snap, store2, texts2, sel2)

	if after := digest.Compute(store2, texts2, sel2); after != before {
		t.Fatalf("digest after reload = %+v, want %+v", after, before)
	}

	// A reload of a reload is byte-stable.
	if blob2 := Build(store2, texts2, sel2, nil); !bytes.Equal(blob2, blob) {
		t.Fatalf("rebuilt blob differs: %d bytes vs %d", len(blob2), len(blob))
	}
}

func TestRoundTripState(t *testing.T) {
	store, texts, sel := buildWorld(t)
	blob := Build(store, texts, sel, nil)
	snap, err := Parse(blob)
	if err != proto.Ok {
		t.Fatalf("Parse = %v", err)
	}

	store2 := document.NewStore()
	texts2 := text.NewStore()
	sel2 := document.NewSelection()
	Apply(snap, store2, texts2, sel2)

	if got, want := store2.EntityCount(), store.EntityCount(); got != want {
		t.Fatalf("EntityCount = %d, want %d", got, want)
	}
	if got := store2.EntityLayer(5); got != 2 {
		t.Fatalf("layer(5) = %d, want 2", got)
	}
	if store2.EntityFlags(2)&document.FlagLocked == 0 {
		t.Fatal("locked flag lost")
	}
	if got := store2.LayerStore.Name(2); got != "尺寸標註" {
		t.Fatalf("layer name = %q", got)
	}
	if st := store2.LayerStore.Style(2); st.TextColor.Enabled != 0 || st.Fill.Enabled != 0 {
		t.Fatalf("layer style enables lost: %+v", st)
	}

	// Pool compacted: only polyline 4's two points survive.
	if got := len(store2.Points); got != 2 {
		t.Fatalf("point pool = %d entries, want 2", got)
	}
	poly := store2.Polyline(4)
	pts := store2.PolylinePoints(poly)
	if len(pts) != 2 || pts[0] != (document.Point2{X: 9, Y: 9}) {
		t.Fatalf("polyline points = %+v", pts)
	}

	if got := string(texts2.Content(8)); got != "héllo°" {
		t.Fatalf("content = %q", got)
	}
	if rec := texts2.Text(8); rec.LayoutWidth != 180 || rec.MaxX != 192 {
		t.Fatalf("layout lost: %+v", rec)
	}
	if runs := texts2.Runs(8); len(runs) != 2 || runs[0].Flags != text.StyleBold {
		t.Fatalf("runs = %+v", runs)
	}

	if _, ok := store2.Overrides[6]; ok {
		t.Fatal("empty-mask override survived the save")
	}
	if ov := store2.Overrides[1]; ov.ColorMask != 3 || ov.FillEnabled != 1 {
		t.Fatalf("override = %+v", ov)
	}

	if got, want := store2.DrawOrder, store.DrawOrder; len(got) != len(want) {
		t.Fatalf("draw order = %v, want %v", got, want)
	} else {
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("draw order = %v, want %v", got, want)
			}
		}
	}
	if ids := sel2.IDs(); len(ids) != 2 || ids[0] != 7 || ids[1] != 1 {
		t.Fatalf("selection = %v, want [7 1]", ids)
	}
	if got := store2.NextEntityID(); got != 50 {
		t.Fatalf("NextEntityID = %d, want 50", got)
	}
	if got := store2.LayerStore.NextLayerID(); got != 10 {
		t.Fatalf("NextLayerID = %d, want 10", got)
	}
}

func TestHistorySectionIsOpaque(t *testing.T) {
	store, texts, sel := buildWorld(t)
	hist := []byte{1, 0, 0, 0, 42, 9, 7}
	blob := Build(store, texts, sel, hist)
	snap, err := Parse(blob)
	if err != proto.Ok {
		t.Fatalf("Parse = %v", err)
	}
	if !bytes.Equal(snap.History, hist) {
		t.Fatalf("History = %v, want %v", snap.History, hist)
	}

	blob = Build(store, texts, sel, nil)
	snap, err = Parse(blob)
	if err != proto.Ok {
		t.Fatalf("Parse = %v", err)
	}
	if snap.History != nil {
		t.Fatalf("History = %v without a HIST section", snap.History)
	}
}

func TestParseRejectsBadContainers(t *testing.T) {
	store, texts, sel := buildWorld(t)
	valid := Build(store, texts, sel, nil)

	tamper := func(mutate func([]byte)) []byte {
		blob := append([]byte(nil), valid...)
		mutate(blob)
		return blob
	}

	cases := []struct {
		name string
		data []byte
		want proto.EngineError
	}{
		{"empty", nil, proto.BufferTruncated},
		{"short header", valid[:10], proto.BufferTruncated},
		{"bad magic", tamper(func(b []byte) { b[0] = 'X' }), proto.InvalidMagic},
		{"bad version", tamper(func(b []byte) {
			binary.LittleEndian.PutUint32(b[4:], 99)
		}), proto.UnsupportedVersion},
		{"table past end", tamper(func(b []byte) {
			binary.LittleEndian.PutUint32(b[8:], 1000)
		}), proto.BufferTruncated},
		{"offset into table", tamper(func(b []byte) {
			binary.LittleEndian.PutUint32(b[20:], 8)
		}), proto.InvalidPayloadSize},
		{"section past end", tamper(func(b []byte) {
			binary.LittleEndian.PutUint32(b[24:], uint32(len(valid)))
		}), proto.BufferTruncated},
		{"corrupt payload", tamper(func(b []byte) {
			b[len(b)-1] ^= 0xFF
		}), proto.InvalidPayloadSize},
		{"missing required section", tamper(func(b []byte) {
			// Retag SELC as a duplicate ENTS: first wins, SELC goes missing.
			binary.LittleEndian.PutUint32(b[16+3*16:], tagENTS)
		}), proto.InvalidPayloadSize},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, got := Parse(tc.data); got != tc.want {
				t.Fatalf("Parse = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestApplyRepairsInvariants(t *testing.T) {
	store, texts, sel := buildWorld(t)
	snap, err := Parse(Build(store, texts, sel, nil))
	if err != proto.Ok {
		t.Fatalf("Parse = %v", err)
	}

	// Sabotage the decoded sections the way a hostile file could.
	snap.DrawOrder = []uint32{4, 4, 999, 1}
	snap.Selection = []uint32{999, 7}
	snap.NextEntityID = 0

	store2 := document.NewStore()
	texts2 := text.NewStore()
	sel2 := document.NewSelection()
	Apply(snap, store2, texts2, sel2)

	want := []uint32{4, 1, 2, 5, 6, 7, 8}
	got := store2.DrawOrder
	if len(got) != len(want) {
		t.Fatalf("draw order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("draw order = %v, want %v", got, want)
		}
	}
	if ids := sel2.IDs(); len(ids) != 1 || ids[0] != 7 {
		t.Fatalf("selection = %v, want [7]", ids)
	}
	// Highest live id is 8, so allocation resumes at 9.
	if got := store2.NextEntityID(); got != 9 {
		t.Fatalf("NextEntityID = %d, want 9", got)
	}
}
