// Package text stores the content, styling runs and edit state of text
// entities. Content is UTF-8; every index crossing the package boundary is
// a logical (code point) index, mapped to byte offsets internally so
// multi-byte content never splits mid-character.
package text

// Box modes.
const (
	BoxAutoWidth  uint8 = 0
	BoxFixedWidth uint8 = 1
)

// Horizontal alignment.
const (
	AlignLeft   uint8 = 0
	AlignCenter uint8 = 1
	AlignRight  uint8 = 2
)

// Run style flag bits.
const (
	StyleBold      uint8 = 1 << 0
	StyleItalic    uint8 = 1 << 1
	StyleUnderline uint8 = 1 << 2
	StyleStrike    uint8 = 1 << 3
)

// Defaults for the implicit run created when content arrives without one.
const (
	DefaultFontID    uint32  = 4
	DefaultFontSize  float32 = 16.0
	DefaultColorRGBA uint32  = 0xFFFFFFFF
)

// KeepFontID in an ApplyStyle call leaves every run's font untouched.
// (The matching sentinel for font size is NaN.)
const KeepFontID uint32 = 0xFFFFFFFF

// TextRec is one text entity's placement and layout state. Content and
// runs are stored separately so record copies stay cheap. The layout
// fields are written back by an external layout pass (SetLayoutResult)
// and reset to a degenerate box at the anchor on every upsert.
type TextRec struct {
	ID              uint32
	X, Y            float32
	ElevationZ      float32
	Rotation        float32
	BoxMode         uint8
	Align           uint8
	ConstraintWidth float32

	LayoutWidth, LayoutHeight float32
	MinX, MinY, MaxX, MaxY    float32
}

// TextRun styles a half-open logical range [Start, Start+Length) of the
// content. A zero-length run marks pending typing attributes at its
// position: the next insert there expands it over the inserted text.
type TextRun struct {
	Start     uint32
	Length    uint32
	FontID    uint32
	FontSize  float32
	ColorRGBA uint32
	Flags     uint8
}

// CaretState is the live edit cursor. One per document; only one text
// is edited at a time. Session state: never part of digests or snapshots.
type CaretState struct {
	TextID   uint32
	Caret    uint32
	SelStart uint32
	SelEnd   uint32
}
