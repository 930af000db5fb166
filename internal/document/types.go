// Package document holds the flat in-memory entity database for one open
// document: kind-segregated record slices, the layer store, per-entity
// style overrides and the ordered selection. It is pure state; command
// decoding, history capture and event emission live in the layers above.
package document

import "fmt"

// EntityKind discriminates the record slice an entity lives in. The values
// are wire-stable: digests and snapshots fold them as-is.
type EntityKind uint32

const (
	KindRect     EntityKind = 1
	KindLine     EntityKind = 2
	KindPolyline EntityKind = 3
	KindCircle   EntityKind = 4
	KindPolygon  EntityKind = 5
	KindArrow    EntityKind = 6
	KindText     EntityKind = 7
)

func (k EntityKind) String() string {
	switch k {
	case KindRect:
		return "Rect"
	case KindLine:
		return "Line"
	case KindPolyline:
		return "Polyline"
	case KindCircle:
		return "Circle"
	case KindPolygon:
		return "Polygon"
	case KindArrow:
		return "Arrow"
	case KindText:
		return "Text"
	default:
		return fmt.Sprintf("EntityKind(%d)", uint32(k))
	}
}

// Entity and layer flag bits. A layer and an entity share the same bit
// layout; visibility and lock state combine across both (see IsEntityVisible).
const (
	FlagVisible uint32 = 1 << 0
	FlagLocked  uint32 = 1 << 1

	DefaultFlags = FlagVisible
)

// DefaultLayerID is the layer every document starts with. It cannot be
// deleted and is the fallback whenever an entity's layer record is gone.
const DefaultLayerID uint32 = 1

// EntityRef locates an entity: which kind slice, and where in it.
// Text is stored outside the document package, so for text Index == ID.
type EntityRef struct {
	Kind  EntityKind
	Index uint32
}

// Point2 is one polyline vertex in the shared point pool.
type Point2 struct {
	X, Y float32
}

// RectRec is an axis-aligned rectangle. Field order follows the digest
// fold: geometry, elevation, fill color, stroke color, stroke state.
type RectRec struct {
	ID             uint32
	X, Y, W, H     float32
	ElevationZ     float32
	R, G, B, A     float32 // fill
	SR, SG, SB, SA float32 // stroke
	StrokeEnabled  float32
	StrokeWidthPx  float32
}

// LineRec is a two-point segment. Lines carry a single color; R..A double
// as the stroke color during style resolution.
type LineRec struct {
	ID             uint32
	X0, Y0, X1, Y1 float32
	ElevationZ     float32
	R, G, B, A     float32
	Enabled        float32
	StrokeWidthPx  float32
}

// PolyRec references a contiguous [Offset, Offset+Count) range of the
// shared point pool. SR..SA and StrokeEnabled mirror R..A and Enabled on
// every write so stroke resolution sees one consistent color.
type PolyRec struct {
	ID             uint32
	Offset, Count  uint32
	ElevationZ     float32
	R, G, B, A     float32
	SR, SG, SB, SA float32
	Enabled        float32
	StrokeEnabled  float32
	StrokeWidthPx  float32
}

// CircleRec is an ellipse with rotation and non-uniform scale.
type CircleRec struct {
	ID             uint32
	CX, CY, RX, RY float32
	ElevationZ     float32
	Rot, SX, SY    float32
	R, G, B, A     float32 // fill
	SR, SG, SB, SA float32 // stroke
	StrokeEnabled  float32
	StrokeWidthPx  float32
}

// PolygonRec is a regular polygon; Sides is the vertex count.
type PolygonRec struct {
	ID             uint32
	CX, CY, RX, RY float32
	ElevationZ     float32
	Rot, SX, SY    float32
	Sides          uint32
	R, G, B, A     float32 // fill
	SR, SG, SB, SA float32 // stroke
	StrokeEnabled  float32
	StrokeWidthPx  float32
}

// ArrowRec is a segment from A to B with a head size. Arrows are
// stroke-only; the color lives in SR..SA.
type ArrowRec struct {
	ID             uint32
	AX, AY, BX, BY float32
	ElevationZ     float32
	Head           float32
	SR, SG, SB, SA float32
	StrokeEnabled  float32
	StrokeWidthPx  float32
}

// StyleColor is an RGBA color in normalized float channels.
type StyleColor struct {
	R, G, B, A float32
}

// StyleEntry pairs a color with an enabled state. Enabled is a float so
// the digest folds it exactly like every other channel; >0.5 means on.
type StyleEntry struct {
	Color   StyleColor
	Enabled float32
}

// LayerStyle is the per-layer style table: one entry per style target in
// target order (Stroke, Fill, TextColor, TextBackground).
type LayerStyle struct {
	Stroke         StyleEntry
	Fill           StyleEntry
	TextColor      StyleEntry
	TextBackground StyleEntry
}

// ResolvedStyle is the cascade result for one entity, same shape as
// LayerStyle but computed per entity (layer base + override record +
// entity color fields).
type ResolvedStyle struct {
	Stroke         StyleEntry
	Fill           StyleEntry
	TextColor      StyleEntry
	TextBackground StyleEntry
}

// StyleOverrides is the per-entity override record. ColorMask and
// EnabledMask are bitfields indexed by style target. Text colors live on
// the record itself; stroke/fill colors live on the entity record and the
// masks only say whether they win over the layer.
type StyleOverrides struct {
	ColorMask   uint8
	EnabledMask uint8

	TextColor      StyleColor
	TextBackground StyleColor

	FillEnabled           float32
	TextBackgroundEnabled float32
}

// LayerRecord is one layer as seen by snapshots and the digest. Order is
// the re-ranked position (0..n-1) at snapshot time, not a stored value.
type LayerRecord struct {
	ID    uint32
	Order uint32
	Flags uint32
	Name  string
	Style LayerStyle
}

// Layer property selector bits for SetLayerProps.
const (
	LayerPropName    uint32 = 1 << 0
	LayerPropVisible uint32 = 1 << 1
	LayerPropLocked  uint32 = 1 << 2
)
