package text

import "math"

// adjustRunsAfterInsert re-anchors runs after n code points landed at
// idx. A zero-length run waiting at idx (pending typing attributes)
// claims the inserted text; otherwise the run ending at idx extends over
// it, and a run starting exactly at idx only shifts when some run to the
// left owns the boundary; an insert at the head of the content extends
// the first run instead of orphaning the new text.
func adjustRunsAfterInsert(runs []TextRun, idx, n uint32) []TextRun {
	hasZeroAt := false
	endsAt := false
	for _, r := range runs {
		if r.Start == idx && r.Length == 0 {
			hasZeroAt = true
		}
		if r.Length > 0 && r.Start+r.Length == idx {
			endsAt = true
		}
	}

	expanded := false
	for i := range runs {
		r := &runs[i]
		switch {
		case r.Start == idx && r.Length == 0:
			if !expanded {
				r.Length = n
				expanded = true
			}
		case r.Start == idx:
			if hasZeroAt || endsAt {
				r.Start += n
			} else {
				r.Length += n
			}
		case r.Start > idx:
			r.Start += n
		case r.Start+r.Length > idx:
			r.Length += n
		case r.Start+r.Length == idx:
			if !hasZeroAt {
				r.Length += n
			}
		}
	}

	if !expanded {
		return runs
	}
	// Drop leftover zero-length runs at the point; the first one took the
	// inserted text and duplicates would style nothing.
	out := runs[:0]
	for _, r := range runs {
		if r.Start == idx && r.Length == 0 {
			continue
		}
		out = append(out, r)
	}
	return out
}

// adjustRunsAfterDelete re-anchors runs after the logical range
// [start, start+n) was removed. Runs swallowed by the range disappear;
// runs straddling an edge are trimmed to what survives.
func adjustRunsAfterDelete(runs []TextRun, start, n uint32) []TextRun {
	end := start + n
	out := runs[:0]
	for _, r := range runs {
		rs, re := r.Start, r.Start+r.Length
		switch {
		case re <= start:
			// entirely before
		case rs >= end:
			r.Start -= n
		case rs >= start && re <= end:
			continue // swallowed
		case rs < start && re > end:
			r.Length -= n
		case rs < start:
			r.Length = start - rs // right edge cut off
		default:
			overlap := end - rs // left edge cut off
			r.Start = start
			r.Length -= overlap
		}
		out = append(out, r)
	}
	return out
}

// ApplyStyle restyles the logical range [start, end): runs are split at
// the boundaries, the covered pieces get their flag bits rewritten under
// flagsMask, and font id/size are replaced unless the keep sentinels
// (KeepFontID, NaN) say otherwise. Identical neighbors coalesce so the
// run list stays canonical. Zero-length runs pass through untouched.
func (s *Store) ApplyStyle(id uint32, start, end uint32, flagsMask, flagsValue uint32, fontID uint32, fontSize float32) bool {
	if _, ok := s.texts[id]; !ok {
		return false
	}
	total := s.LogicalLen(id)
	start = clampU32(start, total)
	end = clampU32(end, total)
	if start >= end {
		return true
	}

	setFont := fontID != KeepFontID
	setSize := !math.IsNaN(float64(fontSize))
	mask := uint8(flagsMask)
	value := uint8(flagsValue)

	runs := s.runs[id]
	out := make([]TextRun, 0, len(runs)+2)
	for _, r := range runs {
		rs, re := r.Start, r.Start+r.Length
		if r.Length == 0 || re <= start || rs >= end {
			out = append(out, r)
			continue
		}
		if rs < start {
			left := r
			left.Length = start - rs
			out = append(out, left)
		}
		mid := r
		if rs > start {
			mid.Start = rs
		} else {
			mid.Start = start
		}
		me := re
		if me > end {
			me = end
		}
		mid.Length = me - mid.Start
		mid.Flags = (mid.Flags &^ mask) | (value & mask)
		if setFont {
			mid.FontID = fontID
		}
		if setSize {
			mid.FontSize = fontSize
		}
		out = append(out, mid)
		if re > end {
			right := r
			right.Start = end
			right.Length = re - end
			out = append(out, right)
		}
	}
	s.runs[id] = coalesceRuns(out)
	return true
}

// coalesceRuns merges adjacent runs with identical styling. Font sizes
// compare bitwise so NaNs and signed zeros never thrash the list.
func coalesceRuns(runs []TextRun) []TextRun {
	if len(runs) < 2 {
		return runs
	}
	out := runs[:1]
	for _, r := range runs[1:] {
		prev := &out[len(out)-1]
		if r.Length > 0 && prev.Length > 0 &&
			prev.Start+prev.Length == r.Start &&
			prev.FontID == r.FontID &&
			math.Float32bits(prev.FontSize) == math.Float32bits(r.FontSize) &&
			prev.ColorRGBA == r.ColorRGBA &&
			prev.Flags == r.Flags {
			prev.Length += r.Length
			continue
		}
		out = append(out, r)
	}
	return out
}
