package document

import "github.com/ewdc/engine/internal/proto"

// KindStyleCapabilities returns the bitmask of style targets a kind
// supports. Fill-capable shapes also carry a stroke; open shapes are
// stroke-only; text owns the two text slots.
func KindStyleCapabilities(kind EntityKind) uint8 {
	switch kind {
	case KindRect, KindCircle, KindPolygon:
		return proto.TargetStroke.Bit() | proto.TargetFill.Bit()
	case KindLine, KindPolyline, KindArrow:
		return proto.TargetStroke.Bit()
	case KindText:
		return proto.TargetTextColor.Bit() | proto.TargetTextBackground.Bit()
	default:
		return 0
	}
}

// StyleCapabilities returns the capability mask of a live entity, 0 for
// unknown ids.
func (s *Store) StyleCapabilities(id uint32) uint8 {
	ref, ok := s.Entities[id]
	if !ok {
		return 0
	}
	return KindStyleCapabilities(ref.Kind)
}

// SupportsStyleTarget reports whether the entity can carry the target.
func (s *Store) SupportsStyleTarget(id uint32, target proto.StyleTarget) bool {
	return s.StyleCapabilities(id)&target.Bit() != 0
}

// SeedShapeOverrides installs the override record a fresh shape insert
// gets: the shape's own colors win over the layer from the start, so a
// drawing keeps its look when layer styles change later. Only called for
// first inserts; re-upserts leave the record alone.
func (s *Store) SeedShapeOverrides(id uint32, hasFill, hasStroke bool, fillEnabled float32) {
	ov := StyleOverrides{}
	if hasFill {
		ov.ColorMask |= proto.TargetFill.Bit()
		ov.EnabledMask |= proto.TargetFill.Bit()
		ov.FillEnabled = fillEnabled
	}
	if hasStroke {
		ov.ColorMask |= proto.TargetStroke.Bit()
		ov.EnabledMask |= proto.TargetStroke.Bit()
	}
	s.Overrides[id] = ov
}

// ApplyStyleColor sets the target's color override on one entity.
// Text colors are stored on the override record; stroke and fill colors
// are written into the entity record itself, the mask bit only marks
// them as overriding the layer. Returns false for unknown ids and
// unsupported targets.
func (s *Store) ApplyStyleColor(id uint32, target proto.StyleTarget, c StyleColor) bool {
	ref, ok := s.Entities[id]
	if !ok || KindStyleCapabilities(ref.Kind)&target.Bit() == 0 {
		return false
	}
	ov := s.Overrides[id]
	ov.ColorMask |= target.Bit()
	switch target {
	case proto.TargetTextColor:
		ov.TextColor = c
	case proto.TargetTextBackground:
		ov.TextBackground = c
	case proto.TargetStroke:
		s.setEntityStrokeColor(ref, c)
	case proto.TargetFill:
		s.setEntityFillColor(ref, c)
	}
	s.Overrides[id] = ov
	return true
}

// ApplyStyleEnabled sets the target's enabled override on one entity.
func (s *Store) ApplyStyleEnabled(id uint32, target proto.StyleTarget, enabled bool) bool {
	ref, ok := s.Entities[id]
	if !ok || KindStyleCapabilities(ref.Kind)&target.Bit() == 0 {
		return false
	}
	v := float32(0)
	if enabled {
		v = 1
	}
	ov := s.Overrides[id]
	ov.EnabledMask |= target.Bit()
	switch target {
	case proto.TargetFill:
		ov.FillEnabled = v
	case proto.TargetTextBackground:
		ov.TextBackgroundEnabled = v
	case proto.TargetStroke:
		s.setEntityStrokeEnabled(ref, v)
	case proto.TargetTextColor:
		// mask bit only; text color has no enabled payload
	}
	s.Overrides[id] = ov
	return true
}

// ClearStyleOverride drops the target's override bits, falling the entity
// back to its layer for that target. A record with no bits left is erased
// so it stops contributing to digests and snapshots.
func (s *Store) ClearStyleOverride(id uint32, target proto.StyleTarget) bool {
	ref, ok := s.Entities[id]
	if !ok || KindStyleCapabilities(ref.Kind)&target.Bit() == 0 {
		return false
	}
	ov, ok := s.Overrides[id]
	if !ok {
		return true
	}
	ov.ColorMask &^= target.Bit()
	ov.EnabledMask &^= target.Bit()
	if ov.ColorMask == 0 && ov.EnabledMask == 0 {
		delete(s.Overrides, id)
	} else {
		s.Overrides[id] = ov
	}
	return true
}

func (s *Store) setEntityStrokeColor(ref EntityRef, c StyleColor) {
	switch ref.Kind {
	case KindRect:
		rec := &s.Rects[ref.Index]
		rec.SR, rec.SG, rec.SB, rec.SA = c.R, c.G, c.B, c.A
	case KindLine:
		rec := &s.Lines[ref.Index]
		rec.R, rec.G, rec.B, rec.A = c.R, c.G, c.B, c.A
	case KindPolyline:
		rec := &s.Polylines[ref.Index]
		rec.R, rec.G, rec.B, rec.A = c.R, c.G, c.B, c.A
		rec.SR, rec.SG, rec.SB, rec.SA = c.R, c.G, c.B, c.A
	case KindCircle:
		rec := &s.Circles[ref.Index]
		rec.SR, rec.SG, rec.SB, rec.SA = c.R, c.G, c.B, c.A
	case KindPolygon:
		rec := &s.Polygons[ref.Index]
		rec.SR, rec.SG, rec.SB, rec.SA = c.R, c.G, c.B, c.A
	case KindArrow:
		rec := &s.Arrows[ref.Index]
		rec.SR, rec.SG, rec.SB, rec.SA = c.R, c.G, c.B, c.A
	}
}

func (s *Store) setEntityFillColor(ref EntityRef, c StyleColor) {
	switch ref.Kind {
	case KindRect:
		rec := &s.Rects[ref.Index]
		rec.R, rec.G, rec.B, rec.A = c.R, c.G, c.B, c.A
	case KindCircle:
		rec := &s.Circles[ref.Index]
		rec.R, rec.G, rec.B, rec.A = c.R, c.G, c.B, c.A
	case KindPolygon:
		rec := &s.Polygons[ref.Index]
		rec.R, rec.G, rec.B, rec.A = c.R, c.G, c.B, c.A
	}
}

func (s *Store) setEntityStrokeEnabled(ref EntityRef, v float32) {
	switch ref.Kind {
	case KindRect:
		s.Rects[ref.Index].StrokeEnabled = v
	case KindLine:
		s.Lines[ref.Index].Enabled = v
	case KindPolyline:
		rec := &s.Polylines[ref.Index]
		rec.Enabled = v
		rec.StrokeEnabled = v
	case KindCircle:
		s.Circles[ref.Index].StrokeEnabled = v
	case KindPolygon:
		s.Polygons[ref.Index].StrokeEnabled = v
	case KindArrow:
		s.Arrows[ref.Index].StrokeEnabled = v
	}
}

// ResolveStyle runs the style cascade for one entity: start from the
// layer's table, then let the override record redirect individual slots.
// Text slots read their colors from the override record; stroke and fill
// read them from the entity record.
func (s *Store) ResolveStyle(id uint32) ResolvedStyle {
	base := s.LayerStore.Style(s.EntityLayer(id))
	st := ResolvedStyle{
		Stroke:         base.Stroke,
		Fill:           base.Fill,
		TextColor:      base.TextColor,
		TextBackground: base.TextBackground,
	}
	ov, ok := s.Overrides[id]
	if !ok {
		return st
	}

	if ov.ColorMask&proto.TargetTextColor.Bit() != 0 {
		st.TextColor.Color = ov.TextColor
	}
	if ov.ColorMask&proto.TargetTextBackground.Bit() != 0 {
		st.TextBackground.Color = ov.TextBackground
	}
	if ov.EnabledMask&proto.TargetFill.Bit() != 0 {
		st.Fill.Enabled = ov.FillEnabled
	}
	if ov.EnabledMask&proto.TargetTextBackground.Bit() != 0 {
		st.TextBackground.Enabled = ov.TextBackgroundEnabled
	}

	shapeBits := proto.TargetStroke.Bit() | proto.TargetFill.Bit()
	if (ov.ColorMask|ov.EnabledMask)&shapeBits == 0 {
		return st
	}
	ref, ok := s.Entities[id]
	if !ok {
		return st
	}
	switch ref.Kind {
	case KindRect:
		rec := &s.Rects[ref.Index]
		if ov.ColorMask&proto.TargetFill.Bit() != 0 {
			st.Fill.Color = StyleColor{rec.R, rec.G, rec.B, rec.A}
		}
		if ov.ColorMask&proto.TargetStroke.Bit() != 0 {
			st.Stroke.Color = StyleColor{rec.SR, rec.SG, rec.SB, rec.SA}
		}
		if ov.EnabledMask&proto.TargetStroke.Bit() != 0 {
			st.Stroke.Enabled = rec.StrokeEnabled
		}
	case KindCircle:
		rec := &s.Circles[ref.Index]
		if ov.ColorMask&proto.TargetFill.Bit() != 0 {
			st.Fill.Color = StyleColor{rec.R, rec.G, rec.B, rec.A}
		}
		if ov.ColorMask&proto.TargetStroke.Bit() != 0 {
			st.Stroke.Color = StyleColor{rec.SR, rec.SG, rec.SB, rec.SA}
		}
		if ov.EnabledMask&proto.TargetStroke.Bit() != 0 {
			st.Stroke.Enabled = rec.StrokeEnabled
		}
	case KindPolygon:
		rec := &s.Polygons[ref.Index]
		if ov.ColorMask&proto.TargetFill.Bit() != 0 {
			st.Fill.Color = StyleColor{rec.R, rec.G, rec.B, rec.A}
		}
		if ov.ColorMask&proto.TargetStroke.Bit() != 0 {
			st.Stroke.Color = StyleColor{rec.SR, rec.SG, rec.SB, rec.SA}
		}
		if ov.EnabledMask&proto.TargetStroke.Bit() != 0 {
			st.Stroke.Enabled = rec.StrokeEnabled
		}
	case KindLine:
		rec := &s.Lines[ref.Index]
		if ov.ColorMask&proto.TargetStroke.Bit() != 0 {
			st.Stroke.Color = StyleColor{rec.R, rec.G, rec.B, rec.A}
		}
		if ov.EnabledMask&proto.TargetStroke.Bit() != 0 {
			st.Stroke.Enabled = rec.Enabled
		}
	case KindPolyline:
		rec := &s.Polylines[ref.Index]
		if ov.ColorMask&proto.TargetStroke.Bit() != 0 {
			st.Stroke.Color = StyleColor{rec.R, rec.G, rec.B, rec.A}
		}
		if ov.EnabledMask&proto.TargetStroke.Bit() != 0 {
			st.Stroke.Enabled = rec.Enabled
		}
	case KindArrow:
		rec := &s.Arrows[ref.Index]
		if ov.ColorMask&proto.TargetStroke.Bit() != 0 {
			st.Stroke.Color = StyleColor{rec.SR, rec.SG, rec.SB, rec.SA}
		}
		if ov.EnabledMask&proto.TargetStroke.Bit() != 0 {
			st.Stroke.Enabled = rec.StrokeEnabled
		}
	}
	return st
}

// ResolveFillEnabled is the fast path renderers take per frame: the
// override's fill-enabled bit when present, the layer flag otherwise.
func (s *Store) ResolveFillEnabled(id uint32) bool {
	if ov, ok := s.Overrides[id]; ok && ov.EnabledMask&proto.TargetFill.Bit() != 0 {
		return ov.FillEnabled > 0.5
	}
	return s.LayerStore.Style(s.EntityLayer(id)).Fill.Enabled > 0.5
}
