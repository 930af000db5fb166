// Package net serves documents over WebSocket. Each message is one
// binary frame: a 1-byte message type followed by a type-specific body.
// Command buffers ride inside Apply frames unchanged, so the client-side
// encoder is the same one used for files on disk.
package net

import (
	"github.com/ewdc/engine/internal/digest"
	"github.com/ewdc/engine/internal/engine"
	"github.com/ewdc/engine/internal/proto"
)

// Client → server message types.
const (
	MsgApply    byte = 1 // body: command buffer
	MsgUndo     byte = 2
	MsgRedo     byte = 3
	MsgSnapshot byte = 4 // request a full snapshot
	MsgMacro    byte = 5 // body: macro name, utf-8
)

// Server → client message types.
const (
	MsgAck          byte = 0x81 // body: u32 code, u32 digestLo, u32 digestHi
	MsgEvents       byte = 0x82 // body: u32 count, then 20 bytes per event
	MsgSnapshotData byte = 0x83 // body: snapshot container
)

// encodeAck builds an Ack frame for the given apply result.
func encodeAck(code proto.EngineError, d digest.Digest) []byte {
	w := proto.NewWriter()
	w.WriteU8(MsgAck)
	w.WriteU32(uint32(code))
	w.WriteU32(d.Lo)
	w.WriteU32(d.Hi)
	return w.Bytes()
}

// encodeEvents builds an Events frame. Returns nil for an empty batch.
func encodeEvents(evs []engine.Event) []byte {
	if len(evs) == 0 {
		return nil
	}
	w := proto.NewWriter()
	w.WriteU8(MsgEvents)
	w.WriteU32(uint32(len(evs)))
	for _, ev := range evs {
		w.WriteU8(uint8(ev.Type))
		w.WriteU8(0)
		w.WriteU16(0)
		w.WriteU32(ev.EntityID)
		w.WriteU32(ev.ChangeMask)
		w.WriteU64(ev.Generation)
	}
	return w.Bytes()
}

func encodeSnapshot(data []byte) []byte {
	out := make([]byte, 0, len(data)+1)
	out = append(out, MsgSnapshotData)
	return append(out, data...)
}
