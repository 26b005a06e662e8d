//go:build js && wasm

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"syscall/js"
	"time"

	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/engine"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/feeder"
)

const hoverDelay = 400 * time.Millisecond

var errMapsMissing = errors.New("equipment and phase maps are both required")

var (
	eng        *engine.Engine
	hoverTimer *time.Timer
	onIntent   js.Value
)

func main() {
	eng = engine.New(engine.Options{})

	vizEngine := js.Global().Get("Object").New()

	// --- Commands (host → engine) ---
	vizEngine.Set("loadModel", js.FuncOf(loadModel))
	vizEngine.Set("loadSample", js.FuncOf(loadSample))
	vizEngine.Set("resize", js.FuncOf(resize))
	vizEngine.Set("applyMeasurements", js.FuncOf(applyMeasurements))
	vizEngine.Set("setShowIndicator", js.FuncOf(setShowIndicator))
	vizEngine.Set("resetView", js.FuncOf(resetView))
	vizEngine.Set("setZoom", js.FuncOf(setZoom))
	vizEngine.Set("pan", js.FuncOf(pan))
	vizEngine.Set("locate", js.FuncOf(locate))
	vizEngine.Set("tick", js.FuncOf(tick))
	vizEngine.Set("hover", js.FuncOf(hover))
	vizEngine.Set("hoverEnd", js.FuncOf(hoverEnd))
	vizEngine.Set("close", js.FuncOf(closeEngine))

	// --- Queries (host ← engine) ---
	vizEngine.Set("render", js.FuncOf(render))
	vizEngine.Set("search", js.FuncOf(search))
	vizEngine.Set("click", js.FuncOf(click))
	vizEngine.Set("getTransform", js.FuncOf(getTransform))

	// --- Subscriptions ---
	vizEngine.Set("onPatch", js.FuncOf(onPatch))
	vizEngine.Set("onTransform", js.FuncOf(onTransform))
	vizEngine.Set("onIntent", js.FuncOf(setOnIntent))

	js.Global().Set("vizEngine", vizEngine)
	js.Global().Set("vizWasmReady", js.ValueOf(true))

	select {}
}

func errorResult(err error) interface{} {
	return js.ValueOf(map[string]interface{}{"error": err.Error()})
}

func okResult() interface{} {
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func jsonString(v any) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResult(err)
	}
	return js.ValueOf(string(data))
}

// --- Command Handlers ---

// loadModel(modelJSON, mapsJSON, lineName?)
func loadModel(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf(map[string]interface{}{"error": "missing model or maps JSON"})
	}

	var raw feeder.Model
	if err := json.Unmarshal([]byte(args[0].String()), &raw); err != nil {
		return errorResult(err)
	}
	var maps feeder.Maps
	if err := json.Unmarshal([]byte(args[1].String()), &maps); err != nil {
		return errorResult(err)
	}
	if !maps.Ready() {
		return errorResult(errMapsMissing)
	}

	lineName := ""
	if len(args) > 2 && args[2].Type() == js.TypeString {
		lineName = args[2].String()
	}
	if err := eng.Load(lineName, &raw, maps.EquipmentIDs, maps.Phases); err != nil {
		return errorResult(err)
	}
	return okResult()
}

func loadSample(this js.Value, args []js.Value) interface{} {
	maps := feeder.NewSampleMaps()
	if err := eng.Load("sample", feeder.NewSampleModel(), maps.EquipmentIDs, maps.Phases); err != nil {
		return errorResult(err)
	}
	return okResult()
}

func resize(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	eng.Resize(args[0].Float(), args[1].Float())
	return nil
}

func applyMeasurements(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing measurements JSON"})
	}
	ms, err := feeder.DecodeMeasurements([]byte(args[0].String()))
	if err != nil {
		return errorResult(err)
	}
	var patches []engine.Patch
	for _, m := range ms {
		patches = append(patches, eng.Apply(m)...)
	}
	return jsonString(patches)
}

func setShowIndicator(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	return jsonString(eng.SetShowIndicator(args[0].Bool()))
}

func resetView(this js.Value, args []js.Value) interface{} {
	eng.ResetView()
	return nil
}

func setZoom(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	eng.SetZoom(args[0].Float())
	return nil
}

func pan(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	eng.Pan(args[0].Float(), args[1].Float())
	return nil
}

// locate(name, onDone?)
func locate(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing node name"})
	}
	var done func()
	if len(args) > 1 && args[1].Type() == js.TypeFunction {
		cb := args[1]
		done = func() { cb.Invoke() }
	}
	if err := eng.Locate(args[0].String(), time.Now(), done); err != nil {
		return errorResult(err)
	}
	return okResult()
}

// tick is driven by requestAnimationFrame and reports whether a zoom is in flight.
func tick(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.Tick(time.Now()))
}

func hover(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	x, y := args[0].Float(), args[1].Float()
	if hoverTimer != nil {
		hoverTimer.Stop()
	}
	hoverTimer = time.AfterFunc(hoverDelay, func() {
		in, ok := eng.Hover(x, y)
		if ok && onIntent.Type() == js.TypeFunction {
			data, _ := json.Marshal(in)
			onIntent.Invoke(string(data))
		}
	})
	return nil
}

func hoverEnd(this js.Value, args []js.Value) interface{} {
	if hoverTimer != nil {
		hoverTimer.Stop()
		hoverTimer = nil
	}
	return nil
}

func closeEngine(this js.Value, args []js.Value) interface{} {
	hoverEnd(this, nil)
	eng.Close()
	return nil
}

// --- Query Handlers ---

func render(this js.Value, args []js.Value) interface{} {
	var buf bytes.Buffer
	if err := eng.WriteSVG(&buf); err != nil {
		return errorResult(err)
	}
	return js.ValueOf(buf.String())
}

// search(query, page?, size?)
func search(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf("[]")
	}
	page, size := 0, 10
	if len(args) > 1 {
		page = args[1].Int()
	}
	if len(args) > 2 {
		size = args[2].Int()
	}
	all := eng.Search(args[0].String())
	matches, pages := engine.Page(all, page, size)
	if matches == nil {
		matches = []engine.Match{}
	}
	return jsonString(map[string]any{
		"query":      args[0].String(),
		"matches":    matches,
		"total":      len(all),
		"page":       page,
		"totalPages": pages,
	})
}

func click(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf("{}")
	}
	return jsonString(eng.Click(args[0].Float(), args[1].Float()))
}

func getTransform(this js.Value, args []js.Value) interface{} {
	return jsonString(eng.Transform().ToSlice())
}

// --- Subscriptions ---

func onPatch(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || args[0].Type() != js.TypeFunction {
		return nil
	}
	cb := args[0]
	eng.OnPatch(func(ps []engine.Patch) {
		data, _ := json.Marshal(ps)
		cb.Invoke(string(data))
	})
	return nil
}

func onTransform(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || args[0].Type() != js.TypeFunction {
		return nil
	}
	cb := args[0]
	eng.OnTransform(func(m engine.Matrix2D) {
		cb.Invoke(m.SVG())
	})
	return nil
}

func setOnIntent(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	onIntent = args[0]
	return nil
}
