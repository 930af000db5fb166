package digest

import (
	"math"
	"testing"

	"github.com/ewdc/engine/internal/document"
	"github.com/ewdc/engine/internal/text"
)

func buildWorld() (*document.Store, *text.Store, *document.Selection) {
	store := document.NewStore()
	texts := text.NewStore()
	sel := document.NewSelection()

	store.UpsertRect(document.RectRec{ID: 1, X: 1, Y: 2, W: 4, H: 4,
		R: 1, A: 1, SA: 1, StrokeEnabled: 1, StrokeWidthPx: 2})
	store.UpsertLine(document.LineRec{ID: 2, X1: 5, Y1: 5,
		G: 1, A: 1, Enabled: 1, StrokeWidthPx: 1})
	texts.Upsert(text.TextRec{ID: 3, X: 2, Y: 3}, nil, []byte("hi"))
	store.RegisterText(3)
	store.TrackNextEntityID(3)
	return store, texts, sel
}

// TestDigestKnownVector pins the exact fold for a one-rect document. The
// digest is compared across independent implementations after replay, so
// the traversal order is a wire contract: if this constant changes, the
// fold has drifted and every existing peer will disagree on every
// document. Stream: marker, version, layer count, default layer block,
// entity count, rect record, zero override block, draw order, selection,
// id allocator.
func TestDigestKnownVector(t *testing.T) {
	store := document.NewStore()
	texts := text.NewStore()
	sel := document.NewSelection()

	store.UpsertRect(document.RectRec{ID: 7, X: 1.5, Y: 2.5, W: 3, H: 4,
		R: 1, A: 1, SA: 1, StrokeEnabled: 1, StrokeWidthPx: 2})
	store.TrackNextEntityID(7)

	d := Compute(store, texts, sel)
	if got, want := d.U64(), uint64(0x7b875d76479626cf); got != want {
		t.Fatalf("digest = %#016x, want %#016x", got, want)
	}
	if d.Lo != 0x479626cf || d.Hi != 0x7b875d76 {
		t.Fatalf("halves = %#08x/%#08x, want 0x479626cf/0x7b875d76", d.Lo, d.Hi)
	}
}

func TestDigestDeterministic(t *testing.T) {
	s1, t1, sel1 := buildWorld()
	s2, t2, sel2 := buildWorld()
	if got, want := Compute(s1, t1, sel1), Compute(s2, t2, sel2); got != want {
		t.Fatalf("digest = %+v, want %+v", got, want)
	}
}

func TestDigestIgnoresInsertionOrder(t *testing.T) {
	s1 := document.NewStore()
	s1.UpsertRect(document.RectRec{ID: 1, X: 1, A: 1})
	s1.UpsertRect(document.RectRec{ID: 2, X: 2, A: 1})

	s2 := document.NewStore()
	s2.UpsertRect(document.RectRec{ID: 2, X: 2, A: 1})
	s2.UpsertRect(document.RectRec{ID: 1, X: 1, A: 1})
	s2.DrawOrder = []uint32{1, 2}

	texts := text.NewStore()
	sel := document.NewSelection()
	if got, want := Compute(s2, texts, sel), Compute(s1, texts, sel); got != want {
		t.Fatalf("digest = %+v, want %+v", got, want)
	}
}

func TestDigestSensitivity(t *testing.T) {
	base := func() Digest {
		return Compute(buildWorld())
	}()

	cases := []struct {
		name   string
		mutate func(*document.Store, *text.Store, *document.Selection)
	}{
		{"rect geometry", func(s *document.Store, _ *text.Store, _ *document.Selection) {
			s.Rect(1).X = 9
		}},
		{"entity flags", func(s *document.Store, _ *text.Store, _ *document.Selection) {
			s.SetEntityFlags(1, document.FlagLocked, document.FlagLocked)
		}},
		{"entity layer", func(s *document.Store, _ *text.Store, _ *document.Selection) {
			s.SetEntityLayer(2, 5)
		}},
		{"layer style", func(s *document.Store, _ *text.Store, _ *document.Selection) {
			st := s.LayerStore.Style(document.DefaultLayerID)
			st.Stroke.Color.R = 0.5
			s.LayerStore.SetStyle(document.DefaultLayerID, st)
		}},
		{"layer name", func(s *document.Store, _ *text.Store, _ *document.Selection) {
			s.LayerStore.SetName(document.DefaultLayerID, "Base")
		}},
		{"draw order", func(s *document.Store, _ *text.Store, _ *document.Selection) {
			s.DrawOrder[0], s.DrawOrder[1] = s.DrawOrder[1], s.DrawOrder[0]
		}},
		{"selection", func(s *document.Store, _ *text.Store, sel *document.Selection) {
			sel.SetSelection(s, []uint32{1}, document.SelectReplace)
		}},
		{"style override", func(s *document.Store, _ *text.Store, _ *document.Selection) {
			s.Overrides[1] = document.StyleOverrides{ColorMask: 1, FillEnabled: 1}
		}},
		{"text content", func(_ *document.Store, ts *text.Store, _ *document.Selection) {
			ts.InsertContent(3, 2, []byte("!"))
		}},
		{"run style", func(_ *document.Store, ts *text.Store, _ *document.Selection) {
			ts.ApplyStyle(3, 0, 1, uint32(text.StyleBold), uint32(text.StyleBold),
				text.KeepFontID, float32(math.NaN()))
		}},
		{"next entity id", func(s *document.Store, _ *text.Store, _ *document.Selection) {
			s.TrackNextEntityID(99)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, texts, sel := buildWorld()
			tc.mutate(store, texts, sel)
			if got := Compute(store, texts, sel); got == base {
				t.Fatalf("digest unchanged after %s", tc.name)
			}
		})
	}
}

func TestCanonicalF32(t *testing.T) {
	if got := canonicalF32(float32(math.NaN())); got != 0x7FC00000 {
		t.Fatalf("NaN = %#x, want 0x7FC00000", got)
	}
	odd := math.Float32frombits(0x7FC00001) // non-canonical NaN payload
	if got := canonicalF32(odd); got != 0x7FC00000 {
		t.Fatalf("payload NaN = %#x, want 0x7FC00000", got)
	}
	if got := canonicalF32(float32(math.Copysign(0, -1))); got != 0 {
		t.Fatalf("-0 = %#x, want 0", got)
	}
	if got, want := canonicalF32(1.5), math.Float32bits(1.5); got != want {
		t.Fatalf("1.5 = %#x, want %#x", got, want)
	}
}

func TestNegativeZeroFoldsLikeZero(t *testing.T) {
	s1, t1, sel1 := buildWorld()
	s2, t2, sel2 := buildWorld()
	s1.Rect(1).Y = 0
	s2.Rect(1).Y = float32(math.Copysign(0, -1))
	if got, want := Compute(s2, t2, sel2), Compute(s1, t1, sel1); got != want {
		t.Fatalf("digest = %+v, want %+v", got, want)
	}
}

func TestZeroOverrideFoldsLikeAbsent(t *testing.T) {
	s1, t1, sel1 := buildWorld()
	s2, t2, sel2 := buildWorld()
	s2.Overrides[1] = document.StyleOverrides{}
	if got, want := Compute(s2, t2, sel2), Compute(s1, t1, sel1); got != want {
		t.Fatalf("digest = %+v, want %+v", got, want)
	}
}
