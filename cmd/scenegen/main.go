// scenegen turns a declarative YAML scene file into an EWDC command
// buffer, optionally applying it and writing the resulting snapshot.
//
// Usage:
//
//	scenegen -in scene.yaml -out scene.ewdc [-snapshot scene.esnp]
package main

import (
	"flag"
	"fmt"
	"os"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ewdc/engine/internal/data"
	"github.com/ewdc/engine/internal/document"
	"github.com/ewdc/engine/internal/engine"
	"github.com/ewdc/engine/internal/proto"
)

func main() {
	in := flag.String("in", "", "scene yaml file")
	out := flag.String("out", "", "output command buffer file")
	snap := flag.String("snapshot", "", "also apply the buffer and write a snapshot here")
	flag.Parse()

	if *in == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "usage: scenegen -in scene.yaml -out scene.ewdc [-snapshot scene.esnp]")
		os.Exit(2)
	}
	if err := run(*in, *out, *snap); err != nil {
		fmt.Fprintf(os.Stderr, "scenegen: %v\n", err)
		os.Exit(1)
	}
}

type layerMove struct{ id, layer uint32 }

func run(in, out, snapPath string) error {
	scene, err := data.LoadScene(in)
	if err != nil {
		return err
	}

	buf, moves := buildBuffer(scene)
	if err := os.WriteFile(out, buf, 0644); err != nil {
		return fmt.Errorf("write buffer: %w", err)
	}
	fmt.Printf("%s: %d entities, %d bytes\n", out, scene.Count(), len(buf))

	// Layer setup rides outside the wire protocol in the engine API, so
	// scenes declaring layers need the snapshot path.
	if snapPath == "" {
		if len(scene.Layers) > 0 || len(moves) > 0 {
			return fmt.Errorf("scene declares layers; generate with -snapshot to keep them")
		}
		return nil
	}

	// Apply against a scratch engine to validate and snapshot.
	doc := engine.New(zap.NewNop(), engine.Options{})
	applyLayers(doc, scene)
	if code := doc.ApplyCommandBuffer(buf); code.Err() != nil {
		return fmt.Errorf("apply generated buffer: %w", code.Err())
	}
	for _, m := range moves {
		doc.SetEntityLayer(m.id, m.layer)
	}
	snap := doc.SaveSnapshot()
	if err := os.WriteFile(snapPath, snap, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	d := doc.DocumentDigest()
	fmt.Printf("%s: %d bytes, digest %08x%08x\n", snapPath, len(snap), d.Hi, d.Lo)
	return nil
}

func applyLayers(doc *engine.Engine, scene *data.SceneFile) {
	for _, l := range scene.Layers {
		mask := document.LayerPropName | document.LayerPropVisible | document.LayerPropLocked
		flags := uint32(0)
		if l.Visible == nil || *l.Visible {
			flags |= document.FlagVisible
		}
		if l.Locked {
			flags |= document.FlagLocked
		}
		doc.SetLayerProps(l.ID, mask, flags, l.Name)
	}
}

// buildBuffer encodes the scene into one command buffer of entity
// upserts in file order. Layer assignments come back separately.
func buildBuffer(scene *data.SceneFile) ([]byte, []layerMove) {
	b := proto.NewBufferBuilder()
	nextID := uint32(1)

	var moves []layerMove
	for i := range scene.Entities {
		e := &scene.Entities[i]
		id := e.ID
		if id == 0 {
			id = nextID
		}
		if id >= nextID {
			nextID = id + 1
		}

		switch e.Kind {
		case "rect":
			b.Add(proto.OpUpsertRect, id, rectPayload(e))
		case "line":
			b.Add(proto.OpUpsertLine, id, linePayload(e))
		case "polyline":
			b.Add(proto.OpUpsertPolyline, id, polylinePayload(e))
		case "circle":
			b.Add(proto.OpUpsertCircle, id, conicPayload(e, false))
		case "polygon":
			b.Add(proto.OpUpsertPolygon, id, conicPayload(e, true))
		case "arrow":
			b.Add(proto.OpUpsertArrow, id, arrowPayload(e))
		case "text":
			b.Add(proto.OpUpsertText, id, textPayload(e))
		}
		if e.Layer != 0 && e.Layer != document.DefaultLayerID {
			moves = append(moves, layerMove{id: id, layer: e.Layer})
		}
	}
	return b.Bytes(), moves
}

func strokeOn(c data.ColorSpec) float32 {
	if c.Enabled {
		return 1
	}
	return 0
}

func rectPayload(e *data.SceneEntity) []byte {
	w := proto.NewWriter()
	w.WriteF32(e.X)
	w.WriteF32(e.Y)
	w.WriteF32(e.W)
	w.WriteF32(e.H)
	w.WriteF32(e.Fill.R)
	w.WriteF32(e.Fill.G)
	w.WriteF32(e.Fill.B)
	w.WriteF32(e.Fill.A)
	w.WriteF32(e.Stroke.R)
	w.WriteF32(e.Stroke.G)
	w.WriteF32(e.Stroke.B)
	w.WriteF32(e.Stroke.A)
	w.WriteF32(strokeOn(e.Stroke))
	w.WriteF32(e.StrokeWidthPx)
	w.WriteF32(e.Z)
	return w.Bytes()
}

func linePayload(e *data.SceneEntity) []byte {
	w := proto.NewWriter()
	w.WriteF32(e.X0)
	w.WriteF32(e.Y0)
	w.WriteF32(e.X1)
	w.WriteF32(e.Y1)
	w.WriteF32(e.Stroke.R)
	w.WriteF32(e.Stroke.G)
	w.WriteF32(e.Stroke.B)
	w.WriteF32(e.Stroke.A)
	w.WriteF32(strokeOn(e.Stroke))
	w.WriteF32(e.StrokeWidthPx)
	w.WriteF32(e.Z)
	return w.Bytes()
}

func polylinePayload(e *data.SceneEntity) []byte {
	w := proto.NewWriter()
	w.WriteF32(e.Stroke.R)
	w.WriteF32(e.Stroke.G)
	w.WriteF32(e.Stroke.B)
	w.WriteF32(e.Stroke.A)
	w.WriteF32(strokeOn(e.Stroke))
	w.WriteF32(e.StrokeWidthPx)
	w.WriteF32(e.Z)
	w.WriteU32(uint32(len(e.Points) / 2))
	w.WriteU32(0) // reserved
	for _, v := range e.Points {
		w.WriteF32(v)
	}
	return w.Bytes()
}

// conicPayload covers circle and polygon; polygon inserts sides after sy.
func conicPayload(e *data.SceneEntity, polygon bool) []byte {
	w := proto.NewWriter()
	w.WriteF32(e.CX)
	w.WriteF32(e.CY)
	w.WriteF32(e.RX)
	w.WriteF32(e.RY)
	w.WriteF32(e.Rot)
	w.WriteF32(1) // sx
	w.WriteF32(1) // sy
	if polygon {
		sides := e.Sides
		if sides < 3 {
			sides = 3
		}
		w.WriteU32(sides)
	}
	w.WriteF32(e.Fill.R)
	w.WriteF32(e.Fill.G)
	w.WriteF32(e.Fill.B)
	w.WriteF32(e.Fill.A)
	w.WriteF32(e.Stroke.R)
	w.WriteF32(e.Stroke.G)
	w.WriteF32(e.Stroke.B)
	w.WriteF32(e.Stroke.A)
	w.WriteF32(strokeOn(e.Stroke))
	w.WriteF32(e.StrokeWidthPx)
	w.WriteF32(e.Z)
	return w.Bytes()
}

func arrowPayload(e *data.SceneEntity) []byte {
	w := proto.NewWriter()
	w.WriteF32(e.X0)
	w.WriteF32(e.Y0)
	w.WriteF32(e.X1)
	w.WriteF32(e.Y1)
	w.WriteF32(e.Head)
	w.WriteF32(e.Stroke.R)
	w.WriteF32(e.Stroke.G)
	w.WriteF32(e.Stroke.B)
	w.WriteF32(e.Stroke.A)
	w.WriteF32(strokeOn(e.Stroke))
	w.WriteF32(e.StrokeWidthPx)
	w.WriteF32(e.Z)
	return w.Bytes()
}

func textPayload(e *data.SceneEntity) []byte {
	content := []byte(e.Text)
	runLen := uint32(utf8.RuneCountInString(e.Text))

	w := proto.NewWriter()
	w.WriteF32(e.X)
	w.WriteF32(e.Y)
	w.WriteF32(e.Rot)
	w.WriteU8(0) // boxMode: auto
	w.WriteU8(e.Align)
	w.WriteU16(0) // pad
	w.WriteF32(e.W)
	w.WriteF32(e.Z)
	w.WriteU32(1) // runCount
	w.WriteU32(uint32(len(content)))

	fontSize := e.FontSize
	if fontSize <= 0 {
		fontSize = 14
	}
	w.WriteU32(0) // run start
	w.WriteU32(runLen)
	w.WriteU32(e.FontID)
	w.WriteF32(fontSize)
	w.WriteU32(proto.PackColorRGBA(e.Fill.R, e.Fill.G, e.Fill.B, e.Fill.A))
	w.WriteU8(0)  // flags
	w.WriteU8(0)  // pad
	w.WriteU16(0) // pad
	w.WriteBytes(content)
	return w.Bytes()
}
