package command

import (
	"github.com/ewdc/engine/internal/proto"
	"github.com/ewdc/engine/internal/text"
)

// HandleUpsertText processes UpsertText (op 11).
// Payload: x, y, rotation, u8 boxMode, u8 align, u16 pad, constraintWidth,
// elevationZ, u32 runCount, u32 byteCount (32-byte header), then
// runCount×24-byte runs, then byteCount UTF-8 content bytes.
func HandleUpsertText(cmd proto.Command, r *proto.Reader, deps *Deps) proto.EngineError {
	if len(cmd.Payload) < proto.SizeTextHeader {
		return proto.InvalidPayloadSize
	}
	rec := text.TextRec{ID: cmd.ID}
	rec.X = r.ReadF32()
	rec.Y = r.ReadF32()
	rec.Rotation = r.ReadF32()
	rec.BoxMode = r.ReadU8()
	rec.Align = r.ReadU8()
	r.Skip(2) // pad
	rec.ConstraintWidth = r.ReadF32()
	rec.ElevationZ = r.ReadF32()
	runCount := r.ReadU32()
	byteCount := r.ReadU32()
	want := proto.SizeTextHeader + int(runCount)*proto.SizeTextRun + int(byteCount)
	if len(cmd.Payload) != want {
		return proto.InvalidPayloadSize
	}
	if !finite(rec.ElevationZ) {
		return proto.InvalidPayloadSize
	}
	runs := make([]text.TextRun, runCount)
	for i := range runs {
		runs[i].Start = r.ReadU32()
		runs[i].Length = r.ReadU32()
		runs[i].FontID = r.ReadU32()
		runs[i].FontSize = r.ReadF32()
		runs[i].ColorRGBA = r.ReadU32()
		runs[i].Flags = r.ReadU8()
		r.Skip(3) // pad
	}
	content := r.ReadBytes(int(byteCount))
	deps.Doc.UpsertText(rec, runs, content)
	return proto.Ok
}

// HandleDeleteText processes DeleteText (op 12). No payload; the command
// id names the text. Absent or non-text ids succeed without effect.
func HandleDeleteText(cmd proto.Command, r *proto.Reader, deps *Deps) proto.EngineError {
	if len(cmd.Payload) != 0 {
		return proto.InvalidPayloadSize
	}
	deps.Doc.DeleteText(cmd.ID)
	return proto.Ok
}

// HandleSetTextCaret processes SetTextCaret (op 13).
// Payload: u32 caret. Unknown ids are ignored; the caret is session
// scratch, not document content.
func HandleSetTextCaret(cmd proto.Command, r *proto.Reader, deps *Deps) proto.EngineError {
	if len(cmd.Payload) != proto.SizeTextCaret {
		return proto.InvalidPayloadSize
	}
	caret := r.ReadU32()
	deps.Doc.SetTextCaret(cmd.ID, caret)
	return proto.Ok
}

// HandleSetTextSelection processes SetTextSelection (op 14).
// Payload: u32 start, u32 end. Unknown ids are ignored.
func HandleSetTextSelection(cmd proto.Command, r *proto.Reader, deps *Deps) proto.EngineError {
	if len(cmd.Payload) != proto.SizeTextSelection {
		return proto.InvalidPayloadSize
	}
	start := r.ReadU32()
	end := r.ReadU32()
	deps.Doc.SetTextSelection(cmd.ID, start, end)
	return proto.Ok
}

// HandleInsertTextContent processes InsertTextContent (op 15).
// Payload: u32 index, u32 byteCount, u32 reserved×2 (16-byte header),
// then byteCount UTF-8 bytes.
func HandleInsertTextContent(cmd proto.Command, r *proto.Reader, deps *Deps) proto.EngineError {
	if len(cmd.Payload) < proto.SizeTextSpanHeader {
		return proto.InvalidPayloadSize
	}
	index := r.ReadU32()
	byteCount := r.ReadU32()
	r.Skip(8) // reserved
	if len(cmd.Payload) != proto.SizeTextSpanHeader+int(byteCount) {
		return proto.InvalidPayloadSize
	}
	content := r.ReadBytes(int(byteCount))
	if !deps.Doc.InsertTextContent(cmd.ID, index, content) {
		return proto.InvalidOperation
	}
	return proto.Ok
}

// HandleDeleteTextContent processes DeleteTextContent (op 16).
// Payload: u32 start, u32 end, u32 reserved×2; 16 bytes.
func HandleDeleteTextContent(cmd proto.Command, r *proto.Reader, deps *Deps) proto.EngineError {
	if len(cmd.Payload) != proto.SizeTextDelete {
		return proto.InvalidPayloadSize
	}
	start := r.ReadU32()
	end := r.ReadU32()
	if !deps.Doc.DeleteTextContent(cmd.ID, start, end) {
		return proto.InvalidOperation
	}
	return proto.Ok
}

// HandleApplyTextStyle processes ApplyTextStyle (op 17).
// Payload: u32 start, u32 end, u32 flagsMask, u32 flagsValue, u32 fontID,
// f32 fontSize; 24 bytes. fontID 0xFFFFFFFF and a NaN fontSize keep the
// existing values.
func HandleApplyTextStyle(cmd proto.Command, r *proto.Reader, deps *Deps) proto.EngineError {
	if len(cmd.Payload) != proto.SizeTextStyle {
		return proto.InvalidPayloadSize
	}
	start := r.ReadU32()
	end := r.ReadU32()
	flagsMask := r.ReadU32()
	flagsValue := r.ReadU32()
	fontID := r.ReadU32()
	fontSize := r.ReadF32()
	if !deps.Doc.ApplyTextStyle(cmd.ID, start, end, flagsMask, flagsValue, fontID, fontSize) {
		return proto.InvalidOperation
	}
	return proto.Ok
}

// HandleSetTextAlign processes SetTextAlign (op 18).
// Payload: u32 align (0 left, 1 center, 2 right).
func HandleSetTextAlign(cmd proto.Command, r *proto.Reader, deps *Deps) proto.EngineError {
	if len(cmd.Payload) != proto.SizeTextAlign {
		return proto.InvalidPayloadSize
	}
	align := uint8(r.ReadU32())
	if !deps.Doc.SetTextAlign(cmd.ID, align) {
		return proto.InvalidOperation
	}
	return proto.Ok
}

// HandleReplaceTextContent processes ReplaceTextContent (op 19).
// Payload: u32 start, u32 end, u32 byteCount, u32 reserved (16-byte
// header), then byteCount UTF-8 bytes. Deletes [start, end) then inserts
// the new content at start.
func HandleReplaceTextContent(cmd proto.Command, r *proto.Reader, deps *Deps) proto.EngineError {
	if len(cmd.Payload) < proto.SizeTextSpanHeader {
		return proto.InvalidPayloadSize
	}
	start := r.ReadU32()
	end := r.ReadU32()
	byteCount := r.ReadU32()
	r.Skip(4) // reserved
	if len(cmd.Payload) != proto.SizeTextSpanHeader+int(byteCount) {
		return proto.InvalidPayloadSize
	}
	content := r.ReadBytes(int(byteCount))
	if !deps.Doc.ReplaceTextContent(cmd.ID, start, end, content) {
		return proto.InvalidOperation
	}
	return proto.Ok
}
