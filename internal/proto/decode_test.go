package proto

import (
	"encoding/binary"
	"testing"
)

func TestParseCommandBufferFraming(t *testing.T) {
	valid := func() []byte {
		b := NewBufferBuilder()
		b.Add(OpDeleteEntity, 7, nil)
		return b.Bytes()
	}

	tests := []struct {
		name   string
		mutate func([]byte) []byte
		want   EngineError
	}{
		{"nil buffer", func(b []byte) []byte { return nil }, BufferTruncated},
		{"short header", func(b []byte) []byte { return b[:8] }, BufferTruncated},
		{"bad magic", func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[0:], 0xDEADBEEF)
			return b
		}, InvalidMagic},
		{"wrong version", func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[4:], Version+1)
			return b
		}, UnsupportedVersion},
		{"truncated command header", func(b []byte) []byte {
			return b[:BufferHeaderSize+4]
		}, BufferTruncated},
		{"payload size past end", func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[BufferHeaderSize+8:], 4096)
			return b
		}, BufferTruncated},
		{"valid", func(b []byte) []byte { return b }, Ok},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := tt.mutate(valid())
			got := ParseCommandBuffer(buf, func(Command) EngineError { return Ok })
			if got != tt.want {
				t.Errorf("ParseCommandBuffer = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseCommandBufferStopsAtFirstError(t *testing.T) {
	b := NewBufferBuilder()
	b.Add(OpDeleteEntity, 1, nil)
	b.Add(OpDeleteEntity, 2, []byte{1, 2, 3}) // handler will reject this one
	b.Add(OpDeleteEntity, 3, nil)

	var seen []uint32
	got := ParseCommandBuffer(b.Bytes(), func(c Command) EngineError {
		seen = append(seen, c.ID)
		if len(c.Payload) != 0 {
			return InvalidPayloadSize
		}
		return Ok
	})

	if got != InvalidPayloadSize {
		t.Fatalf("result = %v, want InvalidPayloadSize", got)
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("applied commands = %v, want [1 2] (stop after failing command)", seen)
	}
}

func TestParseCommandBufferOrderAndFields(t *testing.T) {
	pay := NewWriter()
	pay.WriteF32(1.5)
	pay.WriteU32(9)

	b := NewBufferBuilder()
	b.Add(OpUpsertRect, 11, pay.Bytes())
	b.Add(OpSetDrawOrder, 0, nil)

	var cmds []Command
	if got := ParseCommandBuffer(b.Bytes(), func(c Command) EngineError {
		cmds = append(cmds, Command{Op: c.Op, ID: c.ID, Payload: append([]byte(nil), c.Payload...)})
		return Ok
	}); got != Ok {
		t.Fatalf("result = %v, want Ok", got)
	}

	if len(cmds) != 2 {
		t.Fatalf("decoded %d commands, want 2", len(cmds))
	}
	if cmds[0].Op != OpUpsertRect || cmds[0].ID != 11 || len(cmds[0].Payload) != 8 {
		t.Errorf("first command = %+v", cmds[0])
	}
	r := NewReader(cmds[0].Payload)
	if v := r.ReadF32(); v != 1.5 {
		t.Errorf("payload f32 = %v, want 1.5", v)
	}
	if v := r.ReadU32(); v != 9 {
		t.Errorf("payload u32 = %v, want 9", v)
	}
	if cmds[1].Op != OpSetDrawOrder || len(cmds[1].Payload) != 0 {
		t.Errorf("second command = %+v", cmds[1])
	}
}

func TestReaderShortFlag(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	if r.ReadU16() != 0x0201 {
		t.Error("ReadU16 little-endian mismatch")
	}
	if r.Short() {
		t.Error("Short latched too early")
	}
	if r.ReadU32() != 0 {
		t.Error("overrun read should yield zero")
	}
	if !r.Short() {
		t.Error("Short not latched after overrun")
	}
	if r.Remaining() != 1 {
		t.Errorf("Remaining = %d, want 1", r.Remaining())
	}
}

func TestPackColorRGBA(t *testing.T) {
	tests := []struct {
		r, g, b, a float32
		want       uint32
	}{
		{1, 0, 0, 1, 0xFF0000FF},
		{0, 0, 0, 0, 0x00000000},
		{1, 1, 1, 1, 0xFFFFFFFF},
		{2, -1, 0.5, 1, 0xFF0080FF}, // clamped, 0.5*255+0.5 = 128
	}
	for _, tt := range tests {
		if got := PackColorRGBA(tt.r, tt.g, tt.b, tt.a); got != tt.want {
			t.Errorf("PackColorRGBA(%v,%v,%v,%v) = %#08x, want %#08x", tt.r, tt.g, tt.b, tt.a, got, tt.want)
		}
	}

	r, g, b, a := UnpackColorRGBA(0xFF8040C0)
	if r != 1 || g != float32(0x80)/255 || b != float32(0x40)/255 || a != float32(0xC0)/255 {
		t.Errorf("UnpackColorRGBA = %v %v %v %v", r, g, b, a)
	}
}
