package net

import (
	"testing"

	"github.com/ewdc/engine/internal/digest"
	"github.com/ewdc/engine/internal/engine"
	"github.com/ewdc/engine/internal/proto"
)

func TestEncodeAckLayout(t *testing.T) {
	frame := encodeAck(proto.InvalidPayloadSize, digest.Digest{Lo: 0xAABBCCDD, Hi: 0x11223344})
	if len(frame) != 13 {
		t.Fatalf("frame length = %d, want 13", len(frame))
	}
	r := proto.NewReader(frame)
	if got := r.ReadU8(); got != MsgAck {
		t.Fatalf("type = %#x, want %#x", got, MsgAck)
	}
	if got := r.ReadU32(); got != uint32(proto.InvalidPayloadSize) {
		t.Fatalf("code = %d", got)
	}
	if lo := r.ReadU32(); lo != 0xAABBCCDD {
		t.Fatalf("digest lo = %#x", lo)
	}
	if hi := r.ReadU32(); hi != 0x11223344 {
		t.Fatalf("digest hi = %#x", hi)
	}
}

func TestEncodeEventsLayout(t *testing.T) {
	if got := encodeEvents(nil); got != nil {
		t.Fatalf("empty batch must encode to nil, got %v", got)
	}

	evs := []engine.Event{
		{Type: engine.EventEntityCreated, EntityID: 7, Generation: 3},
		{Type: engine.EventEntityChanged, EntityID: 7, ChangeMask: engine.ChangeStyle, Generation: 4},
	}
	frame := encodeEvents(evs)
	if want := 1 + 4 + len(evs)*20; len(frame) != want {
		t.Fatalf("frame length = %d, want %d", len(frame), want)
	}
	r := proto.NewReader(frame)
	if got := r.ReadU8(); got != MsgEvents {
		t.Fatalf("type = %#x, want %#x", got, MsgEvents)
	}
	if got := r.ReadU32(); got != 2 {
		t.Fatalf("count = %d, want 2", got)
	}
	for i, want := range evs {
		if got := engine.EventType(r.ReadU8()); got != want.Type {
			t.Fatalf("event %d type = %v, want %v", i, got, want.Type)
		}
		r.Skip(3)
		if got := r.ReadU32(); got != want.EntityID {
			t.Fatalf("event %d entity = %d, want %d", i, got, want.EntityID)
		}
		if got := r.ReadU32(); got != want.ChangeMask {
			t.Fatalf("event %d mask = %#x, want %#x", i, got, want.ChangeMask)
		}
		if got := r.ReadU64(); got != want.Generation {
			t.Fatalf("event %d generation = %d, want %d", i, got, want.Generation)
		}
	}
	if r.Remaining() != 0 {
		t.Fatalf("trailing bytes: %d", r.Remaining())
	}
}

func TestEncodeSnapshotPrefix(t *testing.T) {
	frame := encodeSnapshot([]byte{1, 2, 3})
	if len(frame) != 4 || frame[0] != MsgSnapshotData {
		t.Fatalf("frame = %v", frame)
	}
	if frame[1] != 1 || frame[3] != 3 {
		t.Fatal("snapshot body not carried verbatim")
	}
}
