package command

import (
	"github.com/ewdc/engine/internal/proto"
)

// HandleClearAll processes ClearAll (op 1). No payload. The full document
// state (entities, layers, selection) is captured into one history entry
// before everything resets, so the wipe undoes in one step.
func HandleClearAll(cmd proto.Command, r *proto.Reader, deps *Deps) proto.EngineError {
	if len(cmd.Payload) != 0 {
		return proto.InvalidPayloadSize
	}
	deps.Doc.ClearAll()
	return proto.Ok
}

// HandleDeleteEntity processes DeleteEntity (op 5). No payload; the
// command id names the entity. Absent ids succeed without effect.
func HandleDeleteEntity(cmd proto.Command, r *proto.Reader, deps *Deps) proto.EngineError {
	if len(cmd.Payload) != 0 {
		return proto.InvalidPayloadSize
	}
	deps.Doc.DeleteEntity(cmd.ID)
	return proto.Ok
}

// HandleSetDrawOrder processes SetDrawOrder (op 6).
// Payload: u32 count, u32 reserved (8-byte header), then count×u32 ids.
// The new order replaces the old verbatim, back to front.
func HandleSetDrawOrder(cmd proto.Command, r *proto.Reader, deps *Deps) proto.EngineError {
	if len(cmd.Payload) < proto.SizeDrawOrderHeader {
		return proto.InvalidPayloadSize
	}
	count := r.ReadU32()
	r.Skip(4) // reserved
	if len(cmd.Payload) != proto.SizeDrawOrderHeader+int(count)*4 {
		return proto.InvalidPayloadSize
	}
	deps.Doc.SetDrawOrder(readIDList(r, count))
	return proto.Ok
}

// HandleSetViewScale processes SetViewScale (op 7).
// Payload: scale, x, y, width, height; 5 f32, 20 bytes. Render state
// only: no history entry, no change events. The implementation clamps a
// non-finite or near-zero scale back to 1.
func HandleSetViewScale(cmd proto.Command, r *proto.Reader, deps *Deps) proto.EngineError {
	if len(cmd.Payload) != proto.SizeViewScalePayload {
		return proto.InvalidPayloadSize
	}
	scale := r.ReadF32()
	x := r.ReadF32()
	y := r.ReadF32()
	width := r.ReadF32()
	height := r.ReadF32()
	deps.Doc.SetViewScale(scale, x, y, width, height)
	return proto.Ok
}
