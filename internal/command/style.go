package command

import (
	"github.com/ewdc/engine/internal/proto"
)

// readIDList reads count entity ids. Size validation has already pinned
// the payload to exactly count entries.
func readIDList(r *proto.Reader, count uint32) []uint32 {
	ids := make([]uint32, count)
	for i := range ids {
		ids[i] = r.ReadU32()
	}
	return ids
}

// HandleSetLayerStyle processes SetLayerStyle (op 20).
// Payload: u32 target, u32 colorRGBA; 8 bytes. The command id field
// carries the layer id; an out-of-range target is a no-op.
func HandleSetLayerStyle(cmd proto.Command, r *proto.Reader, deps *Deps) proto.EngineError {
	if len(cmd.Payload) != proto.SizeLayerStyle {
		return proto.InvalidPayloadSize
	}
	target := proto.StyleTarget(r.ReadU32())
	color := r.ReadU32()
	deps.Doc.SetLayerStyleColor(cmd.ID, target, color)
	return proto.Ok
}

// HandleSetLayerStyleEnabled processes SetLayerStyleEnabled (op 21).
// Payload: u32 target, u32 enabled (nonzero = on); 8 bytes. Id field is
// the layer id.
func HandleSetLayerStyleEnabled(cmd proto.Command, r *proto.Reader, deps *Deps) proto.EngineError {
	if len(cmd.Payload) != proto.SizeLayerEnabled {
		return proto.InvalidPayloadSize
	}
	target := proto.StyleTarget(r.ReadU32())
	enabled := r.ReadU32() != 0
	deps.Doc.SetLayerStyleEnabled(cmd.ID, target, enabled)
	return proto.Ok
}

// HandleSetEntityStyleOverride processes SetEntityStyleOverride (op 22).
// Payload: u32 target, u32 colorRGBA, u32 count, u32 reserved (16-byte
// header), then count×u32 entity ids. The command id field is unused.
// Ids that are missing or whose kind does not support the target are
// skipped.
func HandleSetEntityStyleOverride(cmd proto.Command, r *proto.Reader, deps *Deps) proto.EngineError {
	if len(cmd.Payload) < proto.SizeStyleOverrideHdr {
		return proto.InvalidPayloadSize
	}
	target := proto.StyleTarget(r.ReadU32())
	color := r.ReadU32()
	count := r.ReadU32()
	r.Skip(4) // reserved
	if len(cmd.Payload) != proto.SizeStyleOverrideHdr+int(count)*4 {
		return proto.InvalidPayloadSize
	}
	deps.Doc.SetEntityStyleOverride(readIDList(r, count), target, color)
	return proto.Ok
}

// HandleClearEntityStyleOverride processes ClearEntityStyleOverride (op 23).
// Payload: u32 target, u32 count (8-byte header), then count×u32 entity
// ids. Ids without an override record are skipped.
func HandleClearEntityStyleOverride(cmd proto.Command, r *proto.Reader, deps *Deps) proto.EngineError {
	if len(cmd.Payload) < proto.SizeStyleClearHdr {
		return proto.InvalidPayloadSize
	}
	target := proto.StyleTarget(r.ReadU32())
	count := r.ReadU32()
	if len(cmd.Payload) != proto.SizeStyleClearHdr+int(count)*4 {
		return proto.InvalidPayloadSize
	}
	deps.Doc.ClearEntityStyleOverride(readIDList(r, count), target)
	return proto.Ok
}

// HandleSetEntityStyleEnabled processes SetEntityStyleEnabled (op 24).
// Payload: u32 target, u32 enabled, u32 count, u32 reserved (16-byte
// header), then count×u32 entity ids.
func HandleSetEntityStyleEnabled(cmd proto.Command, r *proto.Reader, deps *Deps) proto.EngineError {
	if len(cmd.Payload) < proto.SizeStyleEnabledHdr {
		return proto.InvalidPayloadSize
	}
	target := proto.StyleTarget(r.ReadU32())
	enabled := r.ReadU32() != 0
	count := r.ReadU32()
	r.Skip(4) // reserved
	if len(cmd.Payload) != proto.SizeStyleEnabledHdr+int(count)*4 {
		return proto.InvalidPayloadSize
	}
	deps.Doc.SetEntityStyleEnabled(readIDList(r, count), target, enabled)
	return proto.Ok
}
