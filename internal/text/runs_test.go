package text

import (
	"math"
	"testing"
)

func run(start, length uint32) TextRun {
	return TextRun{Start: start, Length: length, FontID: DefaultFontID, FontSize: DefaultFontSize, ColorRGBA: DefaultColorRGBA}
}

func boldRun(start, length uint32) TextRun {
	r := run(start, length)
	r.Flags = StyleBold
	return r
}

func wantRuns(t *testing.T, got, want []TextRun) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("runs = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("run[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestAdjustRunsAfterInsert(t *testing.T) {
	tests := []struct {
		name string
		runs []TextRun
		idx  uint32
		n    uint32
		want []TextRun
	}{
		{
			name: "inside a run extends it",
			runs: []TextRun{run(0, 10)},
			idx:  4, n: 3,
			want: []TextRun{run(0, 13)},
		},
		{
			name: "at head extends the first run",
			runs: []TextRun{run(0, 10)},
			idx:  0, n: 3,
			want: []TextRun{run(0, 13)},
		},
		{
			name: "at tail extends the last run",
			runs: []TextRun{run(0, 10)},
			idx:  10, n: 3,
			want: []TextRun{run(0, 13)},
		},
		{
			name: "run boundary goes to the left run",
			runs: []TextRun{boldRun(0, 5), run(5, 5)},
			idx:  5, n: 3,
			want: []TextRun{boldRun(0, 8), run(8, 5)},
		},
		{
			name: "pending typing run claims the text",
			runs: []TextRun{run(0, 5), boldRun(5, 0), run(5, 5)},
			idx:  5, n: 3,
			want: []TextRun{run(0, 5), boldRun(5, 3), run(8, 5)},
		},
		{
			name: "duplicate typing runs collapse to one",
			runs: []TextRun{run(0, 5), boldRun(5, 0), {Start: 5, FontID: 9, FontSize: 20, ColorRGBA: DefaultColorRGBA}},
			idx:  5, n: 2,
			want: []TextRun{run(0, 5), boldRun(5, 2)},
		},
		{
			name: "runs past the point shift",
			runs: []TextRun{run(0, 4), boldRun(4, 4), run(8, 4)},
			idx:  2, n: 5,
			want: []TextRun{run(0, 9), boldRun(9, 4), run(13, 4)},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := adjustRunsAfterInsert(append([]TextRun(nil), tc.runs...), tc.idx, tc.n)
			wantRuns(t, got, tc.want)
		})
	}
}

func TestAdjustRunsAfterDelete(t *testing.T) {
	tests := []struct {
		name  string
		runs  []TextRun
		start uint32
		n     uint32
		want  []TextRun
	}{
		{
			name: "before the range stays put",
			runs: []TextRun{run(0, 4), run(4, 4)},
			start: 4, n: 4,
			want: []TextRun{run(0, 4)},
		},
		{
			name: "after the range shifts back",
			runs: []TextRun{run(0, 4), boldRun(8, 4)},
			start: 0, n: 4,
			want: []TextRun{boldRun(4, 4)},
		},
		{
			name: "swallowed runs disappear",
			runs: []TextRun{run(0, 5), boldRun(5, 5), run(10, 5)},
			start: 4, n: 8,
			want: []TextRun{run(0, 4), run(4, 3)},
		},
		{
			name: "containing run shrinks",
			runs: []TextRun{run(0, 12)},
			start: 3, n: 6,
			want: []TextRun{run(0, 6)},
		},
		{
			name: "left overlap trims the tail",
			runs: []TextRun{run(0, 8), boldRun(8, 4)},
			start: 5, n: 7,
			want: []TextRun{run(0, 5)},
		},
		{
			name: "right overlap trims the head",
			runs: []TextRun{boldRun(0, 4), run(4, 8)},
			start: 2, n: 4,
			want: []TextRun{boldRun(0, 2), run(2, 6)},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := adjustRunsAfterDelete(append([]TextRun(nil), tc.runs...), tc.start, tc.n)
			wantRuns(t, got, tc.want)
		})
	}
}

func TestApplyStyleSplitsAndCoalesces(t *testing.T) {
	s := NewStore()
	s.Upsert(TextRec{ID: 7}, nil, []byte("hello world"))

	if !s.ApplyStyle(7, 3, 7, uint32(StyleBold), uint32(StyleBold), KeepFontID, float32(math.NaN())) {
		t.Fatal("style rejected")
	}
	wantRuns(t, s.Runs(7), []TextRun{run(0, 3), boldRun(3, 4), run(7, 4)})

	// Removing the bold again makes all three pieces identical; the run
	// list folds back to a single run.
	s.ApplyStyle(7, 3, 7, uint32(StyleBold), uint32(0), KeepFontID, float32(math.NaN()))
	wantRuns(t, s.Runs(7), []TextRun{run(0, 11)})
}

func TestApplyStyleKeepSentinels(t *testing.T) {
	s := NewStore()
	s.Upsert(TextRec{ID: 7}, nil, []byte("abcdef"))

	s.ApplyStyle(7, 0, 6, 0, 0, 9, 24)
	got := s.Runs(7)
	if len(got) != 1 || got[0].FontID != 9 || got[0].FontSize != 24 {
		t.Fatalf("runs = %+v, want single run with font 9/24", got)
	}

	// Keep sentinels leave font and size alone while flags change.
	s.ApplyStyle(7, 0, 6, uint32(StyleItalic), uint32(StyleItalic), KeepFontID, float32(math.NaN()))
	got = s.Runs(7)
	if len(got) != 1 || got[0].FontID != 9 || got[0].FontSize != 24 || got[0].Flags != StyleItalic {
		t.Fatalf("runs = %+v, want font 9/24 italic", got)
	}
}

func TestApplyStyleClampAndEmptyRange(t *testing.T) {
	s := NewStore()
	s.Upsert(TextRec{ID: 7}, nil, []byte("abc"))

	if !s.ApplyStyle(7, 2, 2, uint32(StyleBold), uint32(StyleBold), KeepFontID, float32(math.NaN())) {
		t.Fatal("empty range should succeed as a no-op")
	}
	wantRuns(t, s.Runs(7), []TextRun{run(0, 3)})

	// Out-of-range end clamps to the content length.
	s.ApplyStyle(7, 1, 99, uint32(StyleBold), uint32(StyleBold), KeepFontID, float32(math.NaN()))
	wantRuns(t, s.Runs(7), []TextRun{run(0, 1), boldRun(1, 2)})

	if s.ApplyStyle(99, 0, 1, uint32(StyleBold), uint32(StyleBold), KeepFontID, float32(math.NaN())) {
		t.Fatal("unknown id should be rejected")
	}
}

func TestApplyStyleSkipsTypingRuns(t *testing.T) {
	s := NewStore()
	s.Upsert(TextRec{ID: 7}, []TextRun{run(0, 4), boldRun(4, 0), run(4, 2)}, []byte("abcdef"))

	s.ApplyStyle(7, 0, 6, uint32(StyleUnderline), uint32(StyleUnderline), KeepFontID, float32(math.NaN()))
	got := s.Runs(7)
	found := false
	for _, r := range got {
		if r.Length == 0 {
			found = true
			if r.Flags != StyleBold {
				t.Fatalf("typing run restyled: %+v", r)
			}
		} else if r.Flags&StyleUnderline == 0 {
			t.Fatalf("covered run missed the style: %+v", r)
		}
	}
	if !found {
		t.Fatal("typing run dropped by styling")
	}
}
