package document

import (
	"testing"

	"github.com/ewdc/engine/internal/proto"
)

func TestSeedShapeOverridesResolvesOwnColors(t *testing.T) {
	s := NewStore()
	s.UpsertRect(RectRec{ID: 1, R: 0.2, G: 0.4, B: 0.6, A: 1, SR: 1, SG: 0, SB: 0, SA: 1, StrokeEnabled: 1})
	s.SeedShapeOverrides(1, true, true, 1)

	rs := s.ResolveStyle(1)
	if rs.Fill.Color != (StyleColor{0.2, 0.4, 0.6, 1}) {
		t.Fatalf("fill = %+v, want the rect's own color", rs.Fill)
	}
	if rs.Stroke.Color != (StyleColor{1, 0, 0, 1}) {
		t.Fatalf("stroke = %+v, want the rect's own color", rs.Stroke)
	}
	if rs.Fill.Enabled != 1 {
		t.Fatalf("fill enabled = %v, want 1", rs.Fill.Enabled)
	}
	if !s.ResolveFillEnabled(1) {
		t.Fatal("ResolveFillEnabled = false")
	}
}

func TestResolveWithoutOverrideUsesLayer(t *testing.T) {
	s := NewStore()
	s.UpsertLine(LineRec{ID: 2, R: 0.9, Enabled: 1})

	// No override record: layer style wins regardless of entity fields.
	rs := s.ResolveStyle(2)
	def := DefaultLayerStyle()
	if rs.Stroke != def.Stroke {
		t.Fatalf("stroke = %+v, want layer default %+v", rs.Stroke, def.Stroke)
	}

	// Layer recolor flows through.
	st := s.LayerStore.Style(DefaultLayerID)
	st.Stroke.Color = StyleColor{0, 0, 1, 1}
	s.LayerStore.SetStyle(DefaultLayerID, st)
	if got := s.ResolveStyle(2).Stroke.Color; got != (StyleColor{0, 0, 1, 1}) {
		t.Fatalf("stroke after layer recolor = %+v", got)
	}
}

func TestApplyStyleColorWritesEntityFields(t *testing.T) {
	s := NewStore()
	s.UpsertCircle(CircleRec{ID: 3})

	if !s.ApplyStyleColor(3, proto.TargetFill, StyleColor{1, 0, 1, 1}) {
		t.Fatal("fill apply refused")
	}
	rec := s.Circle(3)
	if rec.R != 1 || rec.G != 0 || rec.B != 1 || rec.A != 1 {
		t.Fatalf("fill not written to record: %+v", rec)
	}
	if got := s.ResolveStyle(3).Fill.Color; got != (StyleColor{1, 0, 1, 1}) {
		t.Fatalf("resolved fill = %+v", got)
	}

	// Unsupported target on the kind is refused.
	if s.ApplyStyleColor(3, proto.TargetTextColor, StyleColor{}) {
		t.Fatal("text color applied to a circle")
	}
	// Unknown id is refused.
	if s.ApplyStyleColor(99, proto.TargetFill, StyleColor{}) {
		t.Fatal("apply on unknown id succeeded")
	}
}

func TestApplyStyleColorTextTargets(t *testing.T) {
	s := NewStore()
	s.RegisterText(4)

	if !s.ApplyStyleColor(4, proto.TargetTextColor, StyleColor{0, 1, 0, 1}) {
		t.Fatal("text color apply refused")
	}
	if !s.ApplyStyleEnabled(4, proto.TargetTextBackground, true) {
		t.Fatal("text background enable refused")
	}
	rs := s.ResolveStyle(4)
	if rs.TextColor.Color != (StyleColor{0, 1, 0, 1}) {
		t.Fatalf("text color = %+v", rs.TextColor)
	}
	if rs.TextBackground.Enabled != 1 {
		t.Fatalf("text background enabled = %v", rs.TextBackground.Enabled)
	}
	// Stroke never applies to text.
	if s.ApplyStyleColor(4, proto.TargetStroke, StyleColor{}) {
		t.Fatal("stroke applied to text")
	}
}

func TestApplyStyleEnabledStroke(t *testing.T) {
	s := NewStore()
	off := s.AppendPoints([]Point2{{0, 0}, {1, 0}})
	s.UpsertPolyline(PolyRec{ID: 5, Offset: off, Count: 2, Enabled: 1})

	if !s.ApplyStyleEnabled(5, proto.TargetStroke, false) {
		t.Fatal("stroke disable refused")
	}
	rec := s.Polyline(5)
	if rec.Enabled != 0 || rec.StrokeEnabled != 0 {
		t.Fatalf("enabled fields = %+v, want both 0", rec)
	}
	if got := s.ResolveStyle(5).Stroke.Enabled; got != 0 {
		t.Fatalf("resolved stroke enabled = %v", got)
	}
}

func TestClearStyleOverrideFallsBackToLayer(t *testing.T) {
	s := NewStore()
	s.UpsertRect(RectRec{ID: 6, R: 0.1, G: 0.1, B: 0.1, A: 1})
	s.SeedShapeOverrides(6, true, true, 1)

	if !s.ClearStyleOverride(6, proto.TargetFill) {
		t.Fatal("clear refused")
	}
	def := DefaultLayerStyle()
	if got := s.ResolveStyle(6).Fill.Color; got != def.Fill.Color {
		t.Fatalf("fill = %+v, want layer default", got)
	}
	// Stroke bits are still overriding.
	if ov := s.Overrides[6]; ov.ColorMask&proto.TargetStroke.Bit() == 0 {
		t.Fatalf("stroke bits lost: %+v", ov)
	}

	// Clearing the last target erases the record entirely.
	s.ClearStyleOverride(6, proto.TargetStroke)
	if _, ok := s.Overrides[6]; ok {
		t.Fatal("empty override record kept")
	}
}

func TestResolveFillEnabledFastPath(t *testing.T) {
	s := NewStore()
	s.UpsertPolygon(PolygonRec{ID: 7, Sides: 6})

	// No override: the layer flag answers.
	if !s.ResolveFillEnabled(7) {
		t.Fatal("layer fill default should be on")
	}
	st := s.LayerStore.Style(DefaultLayerID)
	st.Fill.Enabled = 0
	s.LayerStore.SetStyle(DefaultLayerID, st)
	if s.ResolveFillEnabled(7) {
		t.Fatal("layer fill off not seen")
	}

	// Override wins over the layer.
	s.ApplyStyleEnabled(7, proto.TargetFill, true)
	if !s.ResolveFillEnabled(7) {
		t.Fatal("override fill on not seen")
	}
}

func TestStyleCapabilitiesByKind(t *testing.T) {
	cases := []struct {
		kind EntityKind
		want uint8
	}{
		{KindRect, proto.TargetStroke.Bit() | proto.TargetFill.Bit()},
		{KindCircle, proto.TargetStroke.Bit() | proto.TargetFill.Bit()},
		{KindPolygon, proto.TargetStroke.Bit() | proto.TargetFill.Bit()},
		{KindLine, proto.TargetStroke.Bit()},
		{KindPolyline, proto.TargetStroke.Bit()},
		{KindArrow, proto.TargetStroke.Bit()},
		{KindText, proto.TargetTextColor.Bit() | proto.TargetTextBackground.Bit()},
	}
	for _, tc := range cases {
		if got := KindStyleCapabilities(tc.kind); got != tc.want {
			t.Errorf("%v capabilities = %08b, want %08b", tc.kind, got, tc.want)
		}
	}
}
