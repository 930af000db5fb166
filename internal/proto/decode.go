package proto

import "encoding/binary"

// Command is one decoded record handed to the dispatch callback. Payload
// aliases the input buffer; handlers must not retain it past the call.
type Command struct {
	Op      Op
	ID      uint32
	Payload []byte
}

// CommandCount reports the declared command count of a framed buffer
// without walking it. Zero for buffers too short to carry a header.
func CommandCount(buf []byte) uint32 {
	if len(buf) < BufferHeaderSize {
		return 0
	}
	return binary.LittleEndian.Uint32(buf[8:])
}

// ParseCommandBuffer validates the buffer framing and walks its commands in
// declared order, invoking apply for each. The walk stops at the first
// non-Ok result and returns it; commands already applied stay applied, so a
// caller that needs atomicity wraps the buffer in a history entry and rolls
// back on error.
func ParseCommandBuffer(buf []byte, apply func(Command) EngineError) EngineError {
	if len(buf) < BufferHeaderSize {
		return BufferTruncated
	}
	if binary.LittleEndian.Uint32(buf[0:]) != Magic {
		return InvalidMagic
	}
	if binary.LittleEndian.Uint32(buf[4:]) != Version {
		return UnsupportedVersion
	}
	count := binary.LittleEndian.Uint32(buf[8:])

	off := BufferHeaderSize
	for i := uint32(0); i < count; i++ {
		if off+CommandHeaderSize > len(buf) {
			return BufferTruncated
		}
		op := Op(binary.LittleEndian.Uint32(buf[off:]))
		id := binary.LittleEndian.Uint32(buf[off+4:])
		size := binary.LittleEndian.Uint32(buf[off+8:])
		off += CommandHeaderSize

		if size > uint32(len(buf)) || off+int(size) > len(buf) {
			return BufferTruncated
		}
		payload := buf[off : off+int(size)]
		off += int(size)

		if err := apply(Command{Op: op, ID: id, Payload: payload}); err != Ok {
			return err
		}
	}
	return Ok
}
