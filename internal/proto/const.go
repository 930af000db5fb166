package proto

import "fmt"

// Wire constants for the EWDC command buffer format. All integers are
// little-endian on the wire.
const (
	// Magic spells "EWDC" when the buffer is viewed byte by byte.
	Magic   uint32 = 0x43445745
	Version uint32 = 2

	// BufferHeaderSize is {magic, version, commandCount, reserved}.
	BufferHeaderSize = 16
	// CommandHeaderSize is {op, id, payloadByteCount, reserved}.
	CommandHeaderSize = 16
)

// Op identifies one command in a buffer.
type Op uint32

const (
	OpClearAll                 Op = 1
	OpUpsertRect               Op = 2
	OpUpsertLine               Op = 3
	OpUpsertPolyline           Op = 4
	OpDeleteEntity             Op = 5
	OpSetDrawOrder             Op = 6
	OpSetViewScale             Op = 7
	OpUpsertCircle             Op = 8
	OpUpsertPolygon            Op = 9
	OpUpsertArrow              Op = 10
	OpUpsertText               Op = 11
	OpDeleteText               Op = 12
	OpSetTextCaret             Op = 13
	OpSetTextSelection         Op = 14
	OpInsertTextContent        Op = 15
	OpDeleteTextContent        Op = 16
	OpApplyTextStyle           Op = 17
	OpSetTextAlign             Op = 18
	OpReplaceTextContent       Op = 19
	OpSetLayerStyle            Op = 20
	OpSetLayerStyleEnabled     Op = 21
	OpSetEntityStyleOverride   Op = 22
	OpClearEntityStyleOverride Op = 23
	OpSetEntityStyleEnabled    Op = 24
)

func (op Op) String() string {
	switch op {
	case OpClearAll:
		return "ClearAll"
	case OpUpsertRect:
		return "UpsertRect"
	case OpUpsertLine:
		return "UpsertLine"
	case OpUpsertPolyline:
		return "UpsertPolyline"
	case OpDeleteEntity:
		return "DeleteEntity"
	case OpSetDrawOrder:
		return "SetDrawOrder"
	case OpSetViewScale:
		return "SetViewScale"
	case OpUpsertCircle:
		return "UpsertCircle"
	case OpUpsertPolygon:
		return "UpsertPolygon"
	case OpUpsertArrow:
		return "UpsertArrow"
	case OpUpsertText:
		return "UpsertText"
	case OpDeleteText:
		return "DeleteText"
	case OpSetTextCaret:
		return "SetTextCaret"
	case OpSetTextSelection:
		return "SetTextSelection"
	case OpInsertTextContent:
		return "InsertTextContent"
	case OpDeleteTextContent:
		return "DeleteTextContent"
	case OpApplyTextStyle:
		return "ApplyTextStyle"
	case OpSetTextAlign:
		return "SetTextAlign"
	case OpReplaceTextContent:
		return "ReplaceTextContent"
	case OpSetLayerStyle:
		return "SetLayerStyle"
	case OpSetLayerStyleEnabled:
		return "SetLayerStyleEnabled"
	case OpSetEntityStyleOverride:
		return "SetEntityStyleOverride"
	case OpClearEntityStyleOverride:
		return "ClearEntityStyleOverride"
	case OpSetEntityStyleEnabled:
		return "SetEntityStyleEnabled"
	default:
		return fmt.Sprintf("Op(%d)", uint32(op))
	}
}

// Fixed payload sizes in bytes. Variable-size ops carry a header whose
// count fields must reconcile exactly with the declared payload size.
const (
	SizeRectPayload      = 60
	SizeLinePayload      = 44
	SizePolylineHeader   = 36 // + count*8 point bytes
	SizeDrawOrderHeader  = 8  // + count*4 id bytes
	SizeViewScalePayload = 20
	SizeCirclePayload    = 72
	SizePolygonPayload   = 76
	SizeArrowPayload     = 48
	SizeTextHeader       = 32 // + runCount*24 + byteCount content
	SizeTextRun          = 24
	SizeTextCaret        = 4
	SizeTextSelection    = 8
	SizeTextSpanHeader   = 16 // insert/replace header, + content bytes
	SizeTextDelete       = 16
	SizeTextStyle        = 24
	SizeTextAlign        = 4
	SizeLayerStyle       = 8
	SizeLayerEnabled     = 8
	SizeStyleOverrideHdr = 16 // + count*4 id bytes
	SizeStyleClearHdr    = 8  // + count*4 id bytes
	SizeStyleEnabledHdr  = 16 // + count*4 id bytes
)

// EngineError is the typed result of applying a command buffer. Errors are
// returned, never panicked, and cross the API boundary as plain codes.
type EngineError uint32

const (
	Ok                 EngineError = 0
	InvalidMagic       EngineError = 1
	UnsupportedVersion EngineError = 2
	BufferTruncated    EngineError = 3
	InvalidPayloadSize EngineError = 4
	UnknownCommand     EngineError = 5
	InvalidOperation   EngineError = 6
)

func (e EngineError) String() string {
	switch e {
	case Ok:
		return "Ok"
	case InvalidMagic:
		return "InvalidMagic"
	case UnsupportedVersion:
		return "UnsupportedVersion"
	case BufferTruncated:
		return "BufferTruncated"
	case InvalidPayloadSize:
		return "InvalidPayloadSize"
	case UnknownCommand:
		return "UnknownCommand"
	case InvalidOperation:
		return "InvalidOperation"
	default:
		return fmt.Sprintf("EngineError(%d)", uint32(e))
	}
}

// Err converts the code to an error, nil for Ok.
func (e EngineError) Err() error {
	if e == Ok {
		return nil
	}
	return fmt.Errorf("engine error: %s", e)
}

// StyleTarget selects which of the four style slots an operation touches.
type StyleTarget uint8

const (
	TargetStroke         StyleTarget = 0
	TargetFill           StyleTarget = 1
	TargetTextColor      StyleTarget = 2
	TargetTextBackground StyleTarget = 3
)

func (t StyleTarget) String() string {
	switch t {
	case TargetStroke:
		return "Stroke"
	case TargetFill:
		return "Fill"
	case TargetTextColor:
		return "TextColor"
	case TargetTextBackground:
		return "TextBackground"
	default:
		return fmt.Sprintf("StyleTarget(%d)", uint8(t))
	}
}

// Bit returns the target's position in colorMask/enabledMask bitmasks.
func (t StyleTarget) Bit() uint8 {
	return 1 << uint8(t)
}

// Valid reports whether the target names one of the four style slots.
func (t StyleTarget) Valid() bool {
	return t <= TargetTextBackground
}
