package command

import (
	"math"

	"github.com/ewdc/engine/internal/document"
	"github.com/ewdc/engine/internal/proto"
)

// finite rejects NaN and ±Inf. Elevation is the one float the protocol
// validates on upserts; a non-finite Z poisons depth sorting.
func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// HandleUpsertRect processes UpsertRect (op 2).
// Payload: x, y, w, h, fill r g b a, stroke r g b a, strokeEnabled,
// strokeWidthPx, elevationZ; 15 f32, 60 bytes.
func HandleUpsertRect(cmd proto.Command, r *proto.Reader, deps *Deps) proto.EngineError {
	if len(cmd.Payload) != proto.SizeRectPayload {
		return proto.InvalidPayloadSize
	}
	rec := document.RectRec{ID: cmd.ID}
	rec.X = r.ReadF32()
	rec.Y = r.ReadF32()
	rec.W = r.ReadF32()
	rec.H = r.ReadF32()
	rec.R = r.ReadF32()
	rec.G = r.ReadF32()
	rec.B = r.ReadF32()
	rec.A = r.ReadF32()
	rec.SR = r.ReadF32()
	rec.SG = r.ReadF32()
	rec.SB = r.ReadF32()
	rec.SA = r.ReadF32()
	rec.StrokeEnabled = r.ReadF32()
	rec.StrokeWidthPx = r.ReadF32()
	rec.ElevationZ = r.ReadF32()
	if !finite(rec.ElevationZ) {
		return proto.InvalidPayloadSize
	}
	deps.Doc.UpsertRect(rec)
	return proto.Ok
}

// HandleUpsertLine processes UpsertLine (op 3).
// Payload: x0, y0, x1, y1, r g b a, enabled, strokeWidthPx, elevationZ;
// 11 f32, 44 bytes.
func HandleUpsertLine(cmd proto.Command, r *proto.Reader, deps *Deps) proto.EngineError {
	if len(cmd.Payload) != proto.SizeLinePayload {
		return proto.InvalidPayloadSize
	}
	rec := document.LineRec{ID: cmd.ID}
	rec.X0 = r.ReadF32()
	rec.Y0 = r.ReadF32()
	rec.X1 = r.ReadF32()
	rec.Y1 = r.ReadF32()
	rec.R = r.ReadF32()
	rec.G = r.ReadF32()
	rec.B = r.ReadF32()
	rec.A = r.ReadF32()
	rec.Enabled = r.ReadF32()
	rec.StrokeWidthPx = r.ReadF32()
	rec.ElevationZ = r.ReadF32()
	if !finite(rec.ElevationZ) {
		return proto.InvalidPayloadSize
	}
	deps.Doc.UpsertLine(rec)
	return proto.Ok
}

// HandleUpsertPolyline processes UpsertPolyline (op 4).
// Payload: r g b a, enabled, strokeWidthPx, elevationZ, u32 count,
// u32 reserved (36-byte header), then count×8 bytes of x,y points.
// Fewer than two points degenerates to a delete of the entity.
func HandleUpsertPolyline(cmd proto.Command, r *proto.Reader, deps *Deps) proto.EngineError {
	if len(cmd.Payload) < proto.SizePolylineHeader {
		return proto.InvalidPayloadSize
	}
	rec := document.PolyRec{ID: cmd.ID}
	rec.R = r.ReadF32()
	rec.G = r.ReadF32()
	rec.B = r.ReadF32()
	rec.A = r.ReadF32()
	rec.Enabled = r.ReadF32()
	rec.StrokeWidthPx = r.ReadF32()
	rec.ElevationZ = r.ReadF32()
	count := r.ReadU32()
	r.Skip(4) // reserved
	if len(cmd.Payload) != proto.SizePolylineHeader+int(count)*8 {
		return proto.InvalidPayloadSize
	}
	if !finite(rec.ElevationZ) {
		return proto.InvalidPayloadSize
	}
	if count < 2 {
		deps.Doc.DeleteEntity(cmd.ID)
		return proto.Ok
	}
	pts := make([]document.Point2, count)
	for i := range pts {
		pts[i].X = r.ReadF32()
		pts[i].Y = r.ReadF32()
	}
	deps.Doc.UpsertPolyline(rec, pts)
	return proto.Ok
}

// HandleUpsertCircle processes UpsertCircle (op 8).
// Payload: cx, cy, rx, ry, rot, sx, sy, fill r g b a, stroke r g b a,
// strokeEnabled, strokeWidthPx, elevationZ; 18 f32, 72 bytes.
func HandleUpsertCircle(cmd proto.Command, r *proto.Reader, deps *Deps) proto.EngineError {
	if len(cmd.Payload) != proto.SizeCirclePayload {
		return proto.InvalidPayloadSize
	}
	rec := document.CircleRec{ID: cmd.ID}
	rec.CX = r.ReadF32()
	rec.CY = r.ReadF32()
	rec.RX = r.ReadF32()
	rec.RY = r.ReadF32()
	rec.Rot = r.ReadF32()
	rec.SX = r.ReadF32()
	rec.SY = r.ReadF32()
	rec.R = r.ReadF32()
	rec.G = r.ReadF32()
	rec.B = r.ReadF32()
	rec.A = r.ReadF32()
	rec.SR = r.ReadF32()
	rec.SG = r.ReadF32()
	rec.SB = r.ReadF32()
	rec.SA = r.ReadF32()
	rec.StrokeEnabled = r.ReadF32()
	rec.StrokeWidthPx = r.ReadF32()
	rec.ElevationZ = r.ReadF32()
	if !finite(rec.ElevationZ) {
		return proto.InvalidPayloadSize
	}
	deps.Doc.UpsertCircle(rec)
	return proto.Ok
}

// HandleUpsertPolygon processes UpsertPolygon (op 9).
// Payload: the circle fields with u32 sides inserted after sy; 76 bytes.
func HandleUpsertPolygon(cmd proto.Command, r *proto.Reader, deps *Deps) proto.EngineError {
	if len(cmd.Payload) != proto.SizePolygonPayload {
		return proto.InvalidPayloadSize
	}
	rec := document.PolygonRec{ID: cmd.ID}
	rec.CX = r.ReadF32()
	rec.CY = r.ReadF32()
	rec.RX = r.ReadF32()
	rec.RY = r.ReadF32()
	rec.Rot = r.ReadF32()
	rec.SX = r.ReadF32()
	rec.SY = r.ReadF32()
	rec.Sides = r.ReadU32()
	rec.R = r.ReadF32()
	rec.G = r.ReadF32()
	rec.B = r.ReadF32()
	rec.A = r.ReadF32()
	rec.SR = r.ReadF32()
	rec.SG = r.ReadF32()
	rec.SB = r.ReadF32()
	rec.SA = r.ReadF32()
	rec.StrokeEnabled = r.ReadF32()
	rec.StrokeWidthPx = r.ReadF32()
	rec.ElevationZ = r.ReadF32()
	if !finite(rec.ElevationZ) {
		return proto.InvalidPayloadSize
	}
	deps.Doc.UpsertPolygon(rec)
	return proto.Ok
}

// HandleUpsertArrow processes UpsertArrow (op 10).
// Payload: ax, ay, bx, by, head, stroke r g b a, strokeEnabled,
// strokeWidthPx, elevationZ; 12 f32, 48 bytes.
func HandleUpsertArrow(cmd proto.Command, r *proto.Reader, deps *Deps) proto.EngineError {
	if len(cmd.Payload) != proto.SizeArrowPayload {
		return proto.InvalidPayloadSize
	}
	rec := document.ArrowRec{ID: cmd.ID}
	rec.AX = r.ReadF32()
	rec.AY = r.ReadF32()
	rec.BX = r.ReadF32()
	rec.BY = r.ReadF32()
	rec.Head = r.ReadF32()
	rec.SR = r.ReadF32()
	rec.SG = r.ReadF32()
	rec.SB = r.ReadF32()
	rec.SA = r.ReadF32()
	rec.StrokeEnabled = r.ReadF32()
	rec.StrokeWidthPx = r.ReadF32()
	rec.ElevationZ = r.ReadF32()
	if !finite(rec.ElevationZ) {
		return proto.InvalidPayloadSize
	}
	deps.Doc.UpsertArrow(rec)
	return proto.Ok
}
