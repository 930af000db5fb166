// Package data loads the static asset tables shipped next to the
// binary: style presets and font definitions, plus scene files used by
// the generator tooling. Tables are immutable after load.
package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ColorSpec is one RGBA color with an enabled flag, normalized channels.
type ColorSpec struct {
	R       float32 `yaml:"r"`
	G       float32 `yaml:"g"`
	B       float32 `yaml:"b"`
	A       float32 `yaml:"a"`
	Enabled bool    `yaml:"enabled"`
}

// StylePresetEntry is a named style a client can apply to a layer or a
// selection in one step.
type StylePresetEntry struct {
	Name           string    `yaml:"name"`
	Stroke         ColorSpec `yaml:"stroke"`
	Fill           ColorSpec `yaml:"fill"`
	TextColor      ColorSpec `yaml:"text_color"`
	TextBackground ColorSpec `yaml:"text_background"`
	StrokeWidthPx  float32   `yaml:"stroke_width_px"`
}

// PresetTable provides lookup of style presets by name.
type PresetTable struct {
	presets map[string]*StylePresetEntry
	order   []string
}

// LoadPresetTable loads style_presets.yaml.
func LoadPresetTable(path string) (*PresetTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preset list: %w", err)
	}
	var entries []StylePresetEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse preset list: %w", err)
	}
	t := &PresetTable{
		presets: make(map[string]*StylePresetEntry, len(entries)),
	}
	for i := range entries {
		e := &entries[i]
		t.presets[e.Name] = e
		t.order = append(t.order, e.Name)
	}
	return t, nil
}

// Get returns the preset with the given name, or nil if none.
func (t *PresetTable) Get(name string) *StylePresetEntry {
	return t.presets[name]
}

// Names returns the preset names in file order.
func (t *PresetTable) Names() []string {
	return t.order
}

// Count returns the total number of presets loaded.
func (t *PresetTable) Count() int {
	return len(t.presets)
}

// FontEntry maps a wire font id to a face the render layer can resolve.
type FontEntry struct {
	ID       uint32 `yaml:"id"`
	Name     string `yaml:"name"`
	Fallback uint32 `yaml:"fallback"`
}

// FontTable provides lookup of font definitions by id.
type FontTable struct {
	fonts map[uint32]*FontEntry
}

// LoadFontTable loads font_list.yaml.
func LoadFontTable(path string) (*FontTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font list: %w", err)
	}
	var entries []FontEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse font list: %w", err)
	}
	t := &FontTable{fonts: make(map[uint32]*FontEntry, len(entries))}
	for i := range entries {
		e := &entries[i]
		t.fonts[e.ID] = e
	}
	return t, nil
}

// Get returns the font with the given id, or nil if none.
func (t *FontTable) Get(id uint32) *FontEntry {
	return t.fonts[id]
}

// Count returns the total number of fonts loaded.
func (t *FontTable) Count() int {
	return len(t.fonts)
}
