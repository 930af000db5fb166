package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SceneLayer declares one layer of a scene file.
type SceneLayer struct {
	ID      uint32 `yaml:"id"`
	Name    string `yaml:"name"`
	Visible *bool  `yaml:"visible"` // nil means visible
	Locked  bool   `yaml:"locked"`
}

// SceneEntity is one entity declaration. Kind selects which fields are
// read; unknown kinds fail the load rather than being skipped, so a
// typo in a scene file surfaces immediately.
type SceneEntity struct {
	Kind  string `yaml:"kind"` // rect, line, polyline, circle, polygon, arrow, text
	ID    uint32 `yaml:"id"`
	Layer uint32 `yaml:"layer"`

	X float32 `yaml:"x"`
	Y float32 `yaml:"y"`
	W float32 `yaml:"w"`
	H float32 `yaml:"h"`

	X0 float32 `yaml:"x0"`
	Y0 float32 `yaml:"y0"`
	X1 float32 `yaml:"x1"`
	Y1 float32 `yaml:"y1"`

	CX    float32 `yaml:"cx"`
	CY    float32 `yaml:"cy"`
	RX    float32 `yaml:"rx"`
	RY    float32 `yaml:"ry"`
	Rot   float32 `yaml:"rot"`
	Sides uint32  `yaml:"sides"`
	Head  float32 `yaml:"head"`

	// Flat x,y pairs for polylines.
	Points []float32 `yaml:"points"`

	Z             float32   `yaml:"z"`
	Fill          ColorSpec `yaml:"fill"`
	Stroke        ColorSpec `yaml:"stroke"`
	StrokeWidthPx float32   `yaml:"stroke_width_px"`

	Text     string  `yaml:"text"`
	FontID   uint32  `yaml:"font_id"`
	FontSize float32 `yaml:"font_size"`
	Align    uint8   `yaml:"align"`
}

// SceneFile is a declarative document the generator turns into a
// command buffer.
type SceneFile struct {
	Name     string        `yaml:"name"`
	Layers   []SceneLayer  `yaml:"layers"`
	Entities []SceneEntity `yaml:"entities"`
}

var sceneKinds = map[string]bool{
	"rect": true, "line": true, "polyline": true,
	"circle": true, "polygon": true, "arrow": true, "text": true,
}

// LoadScene loads and validates one scene file.
func LoadScene(path string) (*SceneFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}
	var scene SceneFile
	if err := yaml.Unmarshal(raw, &scene); err != nil {
		return nil, fmt.Errorf("parse scene: %w", err)
	}
	for i := range scene.Entities {
		e := &scene.Entities[i]
		if !sceneKinds[e.Kind] {
			return nil, fmt.Errorf("scene entity %d: unknown kind %q", i, e.Kind)
		}
		if e.Kind == "polyline" {
			if len(e.Points) < 4 || len(e.Points)%2 != 0 {
				return nil, fmt.Errorf("scene entity %d: polyline needs even points, at least two pairs", i)
			}
		}
	}
	return &scene, nil
}

// Count returns the number of entities in the scene.
func (s *SceneFile) Count() int {
	return len(s.Entities)
}
