package command

import (
	"go.uber.org/zap"

	"github.com/ewdc/engine/internal/document"
	"github.com/ewdc/engine/internal/proto"
	"github.com/ewdc/engine/internal/text"
)

// Document is the mutable surface the handlers drive. engine.Engine
// implements it; the indirection keeps this package importable from the
// engine without a cycle. Every method runs on the owning document
// goroutine.
//
// Upserts take fully decoded records; the implementation assigns polyline
// pool ranges itself, so PolyRec arrives with Offset and Count unset.
// Boolean returns mean "the id resolved to something this op applies to";
// handlers map false to InvalidOperation where the protocol demands it.
type Document interface {
	ClearAll()
	DeleteEntity(id uint32) bool
	SetDrawOrder(ids []uint32)
	SetViewScale(scale, x, y, width, height float32)

	UpsertRect(rec document.RectRec)
	UpsertLine(rec document.LineRec)
	UpsertPolyline(rec document.PolyRec, pts []document.Point2)
	UpsertCircle(rec document.CircleRec)
	UpsertPolygon(rec document.PolygonRec)
	UpsertArrow(rec document.ArrowRec)

	UpsertText(rec text.TextRec, runs []text.TextRun, content []byte)
	DeleteText(id uint32) bool
	SetTextCaret(id, caret uint32)
	SetTextSelection(id, start, end uint32)
	InsertTextContent(id, index uint32, content []byte) bool
	DeleteTextContent(id, start, end uint32) bool
	ReplaceTextContent(id, start, end uint32, content []byte) bool
	ApplyTextStyle(id, start, end, flagsMask, flagsValue, fontID uint32, fontSize float32) bool
	SetTextAlign(id uint32, align uint8) bool

	SetLayerStyleColor(layerID uint32, target proto.StyleTarget, colorRGBA uint32)
	SetLayerStyleEnabled(layerID uint32, target proto.StyleTarget, enabled bool)
	SetEntityStyleOverride(ids []uint32, target proto.StyleTarget, colorRGBA uint32)
	ClearEntityStyleOverride(ids []uint32, target proto.StyleTarget)
	SetEntityStyleEnabled(ids []uint32, target proto.StyleTarget, enabled bool)
}

// Deps holds shared dependencies injected into all command handlers.
type Deps struct {
	Doc Document
	Log *zap.Logger
}

// RegisterAll registers the built-in handler for every document op.
func RegisterAll(reg *Registry, deps *Deps) {
	// Document lifecycle and ordering
	reg.Register(proto.OpClearAll, func(cmd proto.Command, r *proto.Reader) proto.EngineError {
		return HandleClearAll(cmd, r, deps)
	})
	reg.Register(proto.OpDeleteEntity, func(cmd proto.Command, r *proto.Reader) proto.EngineError {
		return HandleDeleteEntity(cmd, r, deps)
	})
	reg.Register(proto.OpSetDrawOrder, func(cmd proto.Command, r *proto.Reader) proto.EngineError {
		return HandleSetDrawOrder(cmd, r, deps)
	})
	reg.Register(proto.OpSetViewScale, func(cmd proto.Command, r *proto.Reader) proto.EngineError {
		return HandleSetViewScale(cmd, r, deps)
	})

	// Shape upserts
	reg.Register(proto.OpUpsertRect, func(cmd proto.Command, r *proto.Reader) proto.EngineError {
		return HandleUpsertRect(cmd, r, deps)
	})
	reg.Register(proto.OpUpsertLine, func(cmd proto.Command, r *proto.Reader) proto.EngineError {
		return HandleUpsertLine(cmd, r, deps)
	})
	reg.Register(proto.OpUpsertPolyline, func(cmd proto.Command, r *proto.Reader) proto.EngineError {
		return HandleUpsertPolyline(cmd, r, deps)
	})
	reg.Register(proto.OpUpsertCircle, func(cmd proto.Command, r *proto.Reader) proto.EngineError {
		return HandleUpsertCircle(cmd, r, deps)
	})
	reg.Register(proto.OpUpsertPolygon, func(cmd proto.Command, r *proto.Reader) proto.EngineError {
		return HandleUpsertPolygon(cmd, r, deps)
	})
	reg.Register(proto.OpUpsertArrow, func(cmd proto.Command, r *proto.Reader) proto.EngineError {
		return HandleUpsertArrow(cmd, r, deps)
	})

	// Text entities and content editing
	reg.Register(proto.OpUpsertText, func(cmd proto.Command, r *proto.Reader) proto.EngineError {
		return HandleUpsertText(cmd, r, deps)
	})
	reg.Register(proto.OpDeleteText, func(cmd proto.Command, r *proto.Reader) proto.EngineError {
		return HandleDeleteText(cmd, r, deps)
	})
	reg.Register(proto.OpSetTextCaret, func(cmd proto.Command, r *proto.Reader) proto.EngineError {
		return HandleSetTextCaret(cmd, r, deps)
	})
	reg.Register(proto.OpSetTextSelection, func(cmd proto.Command, r *proto.Reader) proto.EngineError {
		return HandleSetTextSelection(cmd, r, deps)
	})
	reg.Register(proto.OpInsertTextContent, func(cmd proto.Command, r *proto.Reader) proto.EngineError {
		return HandleInsertTextContent(cmd, r, deps)
	})
	reg.Register(proto.OpDeleteTextContent, func(cmd proto.Command, r *proto.Reader) proto.EngineError {
		return HandleDeleteTextContent(cmd, r, deps)
	})
	reg.Register(proto.OpApplyTextStyle, func(cmd proto.Command, r *proto.Reader) proto.EngineError {
		return HandleApplyTextStyle(cmd, r, deps)
	})
	reg.Register(proto.OpSetTextAlign, func(cmd proto.Command, r *proto.Reader) proto.EngineError {
		return HandleSetTextAlign(cmd, r, deps)
	})
	reg.Register(proto.OpReplaceTextContent, func(cmd proto.Command, r *proto.Reader) proto.EngineError {
		return HandleReplaceTextContent(cmd, r, deps)
	})

	// Layer and entity styling
	reg.Register(proto.OpSetLayerStyle, func(cmd proto.Command, r *proto.Reader) proto.EngineError {
		return HandleSetLayerStyle(cmd, r, deps)
	})
	reg.Register(proto.OpSetLayerStyleEnabled, func(cmd proto.Command, r *proto.Reader) proto.EngineError {
		return HandleSetLayerStyleEnabled(cmd, r, deps)
	})
	reg.Register(proto.OpSetEntityStyleOverride, func(cmd proto.Command, r *proto.Reader) proto.EngineError {
		return HandleSetEntityStyleOverride(cmd, r, deps)
	})
	reg.Register(proto.OpClearEntityStyleOverride, func(cmd proto.Command, r *proto.Reader) proto.EngineError {
		return HandleClearEntityStyleOverride(cmd, r, deps)
	})
	reg.Register(proto.OpSetEntityStyleEnabled, func(cmd proto.Command, r *proto.Reader) proto.EngineError {
		return HandleSetEntityStyleEnabled(cmd, r, deps)
	})
}
