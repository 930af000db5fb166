// Package scripting embeds a Lua VM for document macros: scripts that
// batch-generate or transform document content through the doc.* API.
// Single-goroutine access only; macro calls run on the owning document
// goroutine. Hot-reload planned via atomic swap.
package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/ewdc/engine/internal/data"
	"github.com/ewdc/engine/internal/document"
	"github.com/ewdc/engine/internal/engine"
	"github.com/ewdc/engine/internal/proto"
)

// Engine wraps a single gopher-lua VM bound to one document engine.
type Engine struct {
	vm      *lua.LState
	doc     *engine.Engine
	presets *data.PresetTable
	log     *zap.Logger
}

// NewEngine creates a Lua engine, installs the doc.* API and loads all
// scripts from the given directory. A nil preset table reads as empty.
func NewEngine(scriptsDir string, doc *engine.Engine, presets *data.PresetTable, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	if presets == nil {
		presets = &data.PresetTable{}
	}
	e := &Engine{vm: vm, doc: doc, presets: presets, log: log}
	e.installDocAPI()

	// Shared helpers load first, then macro scripts, then anything loose
	// at the top level.
	for _, sub := range []string{"lib", "macros"} {
		if err := e.loadDir(filepath.Join(scriptsDir, sub)); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}
	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}

	return e, nil
}

func (e *Engine) Close() {
	e.vm.Close()
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// CallMacro invokes a global Lua function by name. The whole macro lands
// as one undo step; a failing macro rolls its partial mutations back.
func (e *Engine) CallMacro(name string) error {
	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		return fmt.Errorf("lua macro %s not found", name)
	}

	opened := e.doc.BeginEntry()
	err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	})
	if opened {
		if err != nil {
			e.doc.RollbackEntry()
		} else {
			e.doc.CommitEntry()
		}
	}
	if err != nil {
		e.log.Error("lua macro error", zap.String("macro", name), zap.Error(err))
		return err
	}
	return nil
}

// HasMacro reports whether a global function of that name is loaded.
func (e *Engine) HasMacro(name string) bool {
	_, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	return ok
}

// ---- doc.* API ----

func (e *Engine) installDocAPI() {
	t := e.vm.NewTable()
	e.vm.SetFuncs(t, map[string]lua.LGFunction{
		"alloc_id":           e.luaAllocID,
		"alloc_layer_id":     e.luaAllocLayerID,
		"clear_all":          e.luaClearAll,
		"entity_count":       e.luaEntityCount,
		"digest":             e.luaDigest,
		"upsert_rect":        e.luaUpsertRect,
		"upsert_line":        e.luaUpsertLine,
		"upsert_circle":      e.luaUpsertCircle,
		"upsert_polygon":     e.luaUpsertPolygon,
		"upsert_arrow":       e.luaUpsertArrow,
		"upsert_polyline":    e.luaUpsertPolyline,
		"delete_entity":      e.luaDeleteEntity,
		"set_layer_name":     e.luaSetLayerName,
		"delete_layer":       e.luaDeleteLayer,
		"set_entity_layer":   e.luaSetEntityLayer,
		"set_layer_style":    e.luaSetLayerStyle,
		"set_entity_style":   e.luaSetEntityStyle,
		"clear_entity_style": e.luaClearEntityStyle,
		"apply_preset":       e.luaApplyPreset,
		"preset_names":       e.luaPresetNames,
		"select":             e.luaSelect,
		"reorder":            e.luaReorder,
		"undo":               e.luaUndo,
		"redo":               e.luaRedo,
	})
	e.vm.SetGlobal("doc", t)
}

func tblF32(t *lua.LTable, key string, def float32) float32 {
	if n, ok := t.RawGetString(key).(lua.LNumber); ok {
		return float32(n)
	}
	return def
}

func tblU32(t *lua.LTable, key string, def uint32) uint32 {
	if n, ok := t.RawGetString(key).(lua.LNumber); ok {
		return uint32(n)
	}
	return def
}

// checkIDTable reads an array of entity ids from the stack.
func checkIDTable(L *lua.LState, idx int) []uint32 {
	t := L.CheckTable(idx)
	ids := make([]uint32, 0, t.Len())
	t.ForEach(func(_, v lua.LValue) {
		if n, ok := v.(lua.LNumber); ok {
			ids = append(ids, uint32(n))
		}
	})
	return ids
}

func (e *Engine) luaAllocID(L *lua.LState) int {
	L.Push(lua.LNumber(e.doc.AllocateEntityID()))
	return 1
}

func (e *Engine) luaAllocLayerID(L *lua.LState) int {
	L.Push(lua.LNumber(e.doc.AllocateLayerID()))
	return 1
}

func (e *Engine) luaClearAll(L *lua.LState) int {
	e.doc.ClearAll()
	return 0
}

func (e *Engine) luaEntityCount(L *lua.LState) int {
	L.Push(lua.LNumber(e.doc.Store().EntityCount()))
	return 1
}

func (e *Engine) luaDigest(L *lua.LState) int {
	L.Push(lua.LString(fmt.Sprintf("%016x", e.doc.DocumentDigest().U64())))
	return 1
}

func (e *Engine) luaUpsertRect(L *lua.LState) int {
	t := L.CheckTable(1)
	rec := document.RectRec{
		ID:            tblU32(t, "id", 0),
		X:             tblF32(t, "x", 0),
		Y:             tblF32(t, "y", 0),
		W:             tblF32(t, "w", 0),
		H:             tblF32(t, "h", 0),
		ElevationZ:    tblF32(t, "z", 0),
		R:             tblF32(t, "r", 0),
		G:             tblF32(t, "g", 0),
		B:             tblF32(t, "b", 0),
		A:             tblF32(t, "a", 1),
		SR:            tblF32(t, "sr", 1),
		SG:            tblF32(t, "sg", 1),
		SB:            tblF32(t, "sb", 1),
		SA:            tblF32(t, "sa", 1),
		StrokeEnabled: tblF32(t, "stroke", 1),
		StrokeWidthPx: tblF32(t, "stroke_width", 1),
	}
	if rec.ID == 0 {
		rec.ID = e.doc.AllocateEntityID()
	}
	e.doc.UpsertRect(rec)
	L.Push(lua.LNumber(rec.ID))
	return 1
}

func (e *Engine) luaUpsertLine(L *lua.LState) int {
	t := L.CheckTable(1)
	rec := document.LineRec{
		ID:            tblU32(t, "id", 0),
		X0:            tblF32(t, "x0", 0),
		Y0:            tblF32(t, "y0", 0),
		X1:            tblF32(t, "x1", 0),
		Y1:            tblF32(t, "y1", 0),
		ElevationZ:    tblF32(t, "z", 0),
		R:             tblF32(t, "r", 1),
		G:             tblF32(t, "g", 1),
		B:             tblF32(t, "b", 1),
		A:             tblF32(t, "a", 1),
		Enabled:       tblF32(t, "stroke", 1),
		StrokeWidthPx: tblF32(t, "stroke_width", 1),
	}
	if rec.ID == 0 {
		rec.ID = e.doc.AllocateEntityID()
	}
	e.doc.UpsertLine(rec)
	L.Push(lua.LNumber(rec.ID))
	return 1
}

func (e *Engine) luaUpsertCircle(L *lua.LState) int {
	t := L.CheckTable(1)
	rec := document.CircleRec{
		ID:            tblU32(t, "id", 0),
		CX:            tblF32(t, "cx", 0),
		CY:            tblF32(t, "cy", 0),
		RX:            tblF32(t, "rx", 1),
		RY:            tblF32(t, "ry", 1),
		ElevationZ:    tblF32(t, "z", 0),
		Rot:           tblF32(t, "rot", 0),
		SX:            tblF32(t, "sx", 1),
		SY:            tblF32(t, "sy", 1),
		R:             tblF32(t, "r", 0),
		G:             tblF32(t, "g", 0),
		B:             tblF32(t, "b", 0),
		A:             tblF32(t, "a", 1),
		SR:            tblF32(t, "sr", 1),
		SG:            tblF32(t, "sg", 1),
		SB:            tblF32(t, "sb", 1),
		SA:            tblF32(t, "sa", 1),
		StrokeEnabled: tblF32(t, "stroke", 1),
		StrokeWidthPx: tblF32(t, "stroke_width", 1),
	}
	if rec.ID == 0 {
		rec.ID = e.doc.AllocateEntityID()
	}
	e.doc.UpsertCircle(rec)
	L.Push(lua.LNumber(rec.ID))
	return 1
}

func (e *Engine) luaUpsertPolygon(L *lua.LState) int {
	t := L.CheckTable(1)
	rec := document.PolygonRec{
		ID:            tblU32(t, "id", 0),
		CX:            tblF32(t, "cx", 0),
		CY:            tblF32(t, "cy", 0),
		RX:            tblF32(t, "rx", 1),
		RY:            tblF32(t, "ry", 1),
		ElevationZ:    tblF32(t, "z", 0),
		Rot:           tblF32(t, "rot", 0),
		SX:            tblF32(t, "sx", 1),
		SY:            tblF32(t, "sy", 1),
		Sides:         tblU32(t, "sides", 3),
		R:             tblF32(t, "r", 0),
		G:             tblF32(t, "g", 0),
		B:             tblF32(t, "b", 0),
		A:             tblF32(t, "a", 1),
		SR:            tblF32(t, "sr", 1),
		SG:            tblF32(t, "sg", 1),
		SB:            tblF32(t, "sb", 1),
		SA:            tblF32(t, "sa", 1),
		StrokeEnabled: tblF32(t, "stroke", 1),
		StrokeWidthPx: tblF32(t, "stroke_width", 1),
	}
	if rec.ID == 0 {
		rec.ID = e.doc.AllocateEntityID()
	}
	e.doc.UpsertPolygon(rec)
	L.Push(lua.LNumber(rec.ID))
	return 1
}

func (e *Engine) luaUpsertArrow(L *lua.LState) int {
	t := L.CheckTable(1)
	rec := document.ArrowRec{
		ID:            tblU32(t, "id", 0),
		AX:            tblF32(t, "ax", 0),
		AY:            tblF32(t, "ay", 0),
		BX:            tblF32(t, "bx", 0),
		BY:            tblF32(t, "by", 0),
		ElevationZ:    tblF32(t, "z", 0),
		Head:          tblF32(t, "head", 8),
		SR:            tblF32(t, "sr", 1),
		SG:            tblF32(t, "sg", 1),
		SB:            tblF32(t, "sb", 1),
		SA:            tblF32(t, "sa", 1),
		StrokeEnabled: tblF32(t, "stroke", 1),
		StrokeWidthPx: tblF32(t, "stroke_width", 1),
	}
	if rec.ID == 0 {
		rec.ID = e.doc.AllocateEntityID()
	}
	e.doc.UpsertArrow(rec)
	L.Push(lua.LNumber(rec.ID))
	return 1
}

// luaUpsertPolyline expects t.points as a flat array {x1, y1, x2, y2, …}.
func (e *Engine) luaUpsertPolyline(L *lua.LState) int {
	t := L.CheckTable(1)
	rec := document.PolyRec{
		ID:            tblU32(t, "id", 0),
		ElevationZ:    tblF32(t, "z", 0),
		R:             tblF32(t, "r", 1),
		G:             tblF32(t, "g", 1),
		B:             tblF32(t, "b", 1),
		A:             tblF32(t, "a", 1),
		Enabled:       tblF32(t, "stroke", 1),
		StrokeWidthPx: tblF32(t, "stroke_width", 1),
	}
	ptsT, ok := t.RawGetString("points").(*lua.LTable)
	if !ok || ptsT.Len() < 4 {
		L.ArgError(1, "points must hold at least two x,y pairs")
		return 0
	}
	flat := make([]float32, 0, ptsT.Len())
	ptsT.ForEach(func(_, v lua.LValue) {
		if n, ok := v.(lua.LNumber); ok {
			flat = append(flat, float32(n))
		}
	})
	pts := make([]document.Point2, len(flat)/2)
	for i := range pts {
		pts[i] = document.Point2{X: flat[i*2], Y: flat[i*2+1]}
	}
	if rec.ID == 0 {
		rec.ID = e.doc.AllocateEntityID()
	}
	e.doc.UpsertPolyline(rec, pts)
	L.Push(lua.LNumber(rec.ID))
	return 1
}

func (e *Engine) luaDeleteEntity(L *lua.LState) int {
	id := uint32(L.CheckNumber(1))
	L.Push(lua.LBool(e.doc.DeleteEntity(id)))
	return 1
}

func (e *Engine) luaSetLayerName(L *lua.LState) int {
	id := uint32(L.CheckNumber(1))
	name := L.CheckString(2)
	e.doc.SetLayerProps(id, document.LayerPropName, 0, name)
	return 0
}

func (e *Engine) luaDeleteLayer(L *lua.LState) int {
	id := uint32(L.CheckNumber(1))
	L.Push(lua.LBool(e.doc.DeleteLayer(id)))
	return 1
}

func (e *Engine) luaSetEntityLayer(L *lua.LState) int {
	id := uint32(L.CheckNumber(1))
	layer := uint32(L.CheckNumber(2))
	L.Push(lua.LBool(e.doc.SetEntityLayer(id, layer)))
	return 1
}

// luaSetLayerStyle: doc.set_layer_style(layer, target, r, g, b, a).
// Target numbering matches the wire protocol: 0=stroke 1=fill 2=text
// 3=text background.
func (e *Engine) luaSetLayerStyle(L *lua.LState) int {
	layer := uint32(L.CheckNumber(1))
	target := proto.StyleTarget(L.CheckNumber(2))
	rgba := proto.PackColorRGBA(
		float32(L.CheckNumber(3)), float32(L.CheckNumber(4)),
		float32(L.CheckNumber(5)), float32(L.OptNumber(6, 1)))
	e.doc.SetLayerStyleColor(layer, target, rgba)
	return 0
}

// luaSetEntityStyle: doc.set_entity_style({ids}, target, r, g, b, a).
func (e *Engine) luaSetEntityStyle(L *lua.LState) int {
	ids := checkIDTable(L, 1)
	target := proto.StyleTarget(L.CheckNumber(2))
	rgba := proto.PackColorRGBA(
		float32(L.CheckNumber(3)), float32(L.CheckNumber(4)),
		float32(L.CheckNumber(5)), float32(L.OptNumber(6, 1)))
	e.doc.SetEntityStyleOverride(ids, target, rgba)
	return 0
}

func (e *Engine) luaClearEntityStyle(L *lua.LState) int {
	ids := checkIDTable(L, 1)
	target := proto.StyleTarget(L.CheckNumber(2))
	e.doc.ClearEntityStyleOverride(ids, target)
	return 0
}

// luaApplyPreset: doc.apply_preset(name, {ids}). Stamps the named style
// preset onto the entities as per-entity overrides, target by target;
// targets an entity's kind does not support are skipped. Stroke width
// stays a record field, so presets leave it alone here. Returns false for
// an unknown preset name.
func (e *Engine) luaApplyPreset(L *lua.LState) int {
	name := L.CheckString(1)
	ids := checkIDTable(L, 2)
	p := e.presets.Get(name)
	if p == nil {
		L.Push(lua.LBool(false))
		return 1
	}
	apply := func(target proto.StyleTarget, c data.ColorSpec) {
		e.doc.SetEntityStyleOverride(ids, target, proto.PackColorRGBA(c.R, c.G, c.B, c.A))
		e.doc.SetEntityStyleEnabled(ids, target, c.Enabled)
	}
	apply(proto.TargetStroke, p.Stroke)
	apply(proto.TargetFill, p.Fill)
	apply(proto.TargetTextColor, p.TextColor)
	apply(proto.TargetTextBackground, p.TextBackground)
	L.Push(lua.LBool(true))
	return 1
}

// luaPresetNames returns the loaded preset names in file order.
func (e *Engine) luaPresetNames(L *lua.LState) int {
	t := e.vm.NewTable()
	for _, name := range e.presets.Names() {
		t.Append(lua.LString(name))
	}
	L.Push(t)
	return 1
}

// luaSelect: doc.select({ids}, mode); mode 0=replace 1=add 2=remove
// 3=toggle.
func (e *Engine) luaSelect(L *lua.LState) int {
	ids := checkIDTable(L, 1)
	mode := document.SelectMode(L.OptNumber(2, 0))
	L.Push(lua.LBool(e.doc.SetSelection(ids, mode)))
	return 1
}

// luaReorder: doc.reorder({ids}, action); 1=front 2=back 3=forward
// 4=backward.
func (e *Engine) luaReorder(L *lua.LState) int {
	ids := checkIDTable(L, 1)
	action := document.ReorderAction(L.CheckNumber(2))
	L.Push(lua.LBool(e.doc.ReorderEntities(ids, action)))
	return 1
}

func (e *Engine) luaUndo(L *lua.LState) int {
	L.Push(lua.LBool(e.doc.Undo()))
	return 1
}

func (e *Engine) luaRedo(L *lua.LState) int {
	L.Push(lua.LBool(e.doc.Redo()))
	return 1
}
