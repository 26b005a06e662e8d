package engine

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/feeder"
)

func newSampleEngine(t *testing.T, cache TopologyCache) *Engine {
	t.Helper()
	maps := feeder.NewSampleMaps()
	e := New(Options{Width: 1200, Height: 800, Cache: cache})
	require.NoError(t, e.Load("sample", feeder.NewSampleModel(), maps.EquipmentIDs, maps.Phases))
	return e
}

func TestEngine_LoadEmptyModel(t *testing.T) {
	e := New(Options{})
	assert.ErrorIs(t, e.Load("missing", nil, nil, nil), ErrEmptyModel)
	assert.ErrorIs(t, e.Load("empty", &feeder.Model{}, nil, nil), ErrEmptyModel)
	assert.False(t, e.Loaded())

	var buf bytes.Buffer
	assert.ErrorIs(t, e.WriteSVG(&buf), ErrNotLoaded)
}

func TestEngine_CachedTopologyReused(t *testing.T) {
	cache := NewMemoryCache()
	first := newSampleEngine(t, cache)

	second := New(Options{Width: 1200, Height: 800, Cache: cache})
	require.NoError(t, second.Load("sample", nil, nil, nil))

	assert.Same(t, first.Topology(), second.Topology())
	assert.Equal(t, 1, cache.Len())
}

func TestEngine_LineNameDefaultsToFeederName(t *testing.T) {
	e := New(Options{})
	require.NoError(t, e.Load("", feeder.NewSampleModel(), nil, nil))
	assert.Equal(t, "sample_feeder", e.LineName())
}

func TestEngine_LegacyFlipSurvivesRerender(t *testing.T) {
	f := feeder.Feeder{
		Name:       "ieee8500",
		SwingNodes: []feeder.Equipment{{Name: "top", X1: 0, Y1: 0}},
		Batteries:  []feeder.Equipment{{Name: "bottom", X1: 10, Y1: 20}},
	}
	e := New(Options{})
	require.NoError(t, e.Load("ieee8500", &feeder.Model{Feeders: []feeder.Feeder{f}}, nil, nil))
	require.Equal(t, 20.0, e.Topology().Nodes["top"].Y1)

	e.Resize(640, 480)
	e.Resize(800, 600)
	assert.Equal(t, 20.0, e.Topology().Nodes["top"].Y1)
	assert.True(t, e.Topology().Inverted)
}

func TestEngine_ApplyEmitsPatches(t *testing.T) {
	e := newSampleEngine(t, nil)
	var got [][]Patch
	sub := e.OnPatch(func(ps []Patch) { got = append(got, ps) })

	ps := e.Apply(feeder.Measurement{Type: feeder.MeasurementTap, ConductingEquipmentMRID: "_SW1", Value: 0})
	require.NotEmpty(t, ps)
	require.Len(t, got, 1)
	assert.Equal(t, ps, got[0])

	e.Apply(feeder.Measurement{Type: feeder.MeasurementTap, ConductingEquipmentMRID: "_SW1", Value: 0})
	assert.Len(t, got, 1, "no-op measurements emit nothing")

	sub.Unsubscribe()
	e.Apply(feeder.Measurement{Type: feeder.MeasurementTap, ConductingEquipmentMRID: "_SW1", Value: 1})
	assert.Len(t, got, 1)
}

func TestEngine_ZoomSwapsLayers(t *testing.T) {
	e := newSampleEngine(t, nil)
	var patches []Patch
	e.OnPatch(func(ps []Patch) { patches = append(patches, ps...) })
	var transforms []Matrix2D
	e.OnTransform(func(m Matrix2D) { transforms = append(transforms, m) })

	e.SetZoom(2)
	assert.False(t, e.Scene().Symbols.Hidden())
	assert.True(t, e.Scene().Dots.Hidden())
	assert.Contains(t, patches, Patch{Target: "layer-symbols", Op: PatchVisibility, Value: "true"})
	assert.Equal(t, e.Transform().SVG(), e.Scene().Viewport.Attr("transform"))
	require.Len(t, transforms, 1)

	e.ResetView()
	assert.True(t, e.Scene().Symbols.Hidden())
	assert.True(t, e.Transform().IsIdentity())
}

func TestEngine_ResizeAnnouncesResetView(t *testing.T) {
	e := newSampleEngine(t, nil)
	var patches []Patch
	e.OnPatch(func(ps []Patch) { patches = append(patches, ps...) })
	var transforms []Matrix2D
	e.OnTransform(func(m Matrix2D) { transforms = append(transforms, m) })

	e.SetZoom(3)
	require.Len(t, transforms, 1)
	require.True(t, e.Viewport().Detailed())
	patches = nil

	e.Resize(800, 600)
	require.Len(t, transforms, 2)
	assert.True(t, transforms[1].IsIdentity())
	assert.False(t, e.Viewport().Detailed())
	assert.Contains(t, patches, Patch{Target: "layer-symbols", Op: PatchVisibility, Value: "false"})
	assert.Contains(t, patches, Patch{Target: "layer-dots", Op: PatchVisibility, Value: "true"})
	assert.Contains(t, patches, Patch{Target: "viewport", Op: PatchSetAttr, Name: "transform", Value: Identity().SVG()})

	e.Resize(0, 600)
	assert.Len(t, transforms, 2, "invalid sizes are ignored")
}

func TestEngine_LocateDottedName(t *testing.T) {
	f := feeder.Feeder{
		Name:     "dotted",
		Switches: []feeder.Switch{{Equipment: feeder.Equipment{Name: "sw.1", X1: 0, Y1: 0, X2: 10, Y2: 10}}},
	}
	e := New(Options{})
	require.NoError(t, e.Load("dotted", &feeder.Model{Feeders: []feeder.Feeder{f}}, feeder.EquipmentIDMap{"sw.1": {"SW1"}}, nil))

	require.NoError(t, e.Locate("sw.1", time.Unix(0, 0), nil))
	sym, ok := e.Scene().ElementByID("symbol_sw.1")
	require.True(t, ok)
	assert.True(t, sym.HasClass(classHighlight))
}

func TestEngine_Locate(t *testing.T) {
	e := newSampleEngine(t, nil)
	now := time.Unix(1000, 0)

	assert.ErrorIs(t, e.Locate("nope", now, nil), ErrNodeNotFound)
	assert.True(t, e.Transform().IsIdentity(), "failed locate leaves the view alone")

	done := false
	require.NoError(t, e.Locate("cap1", now, func() { done = true }))
	sym, _ := e.Scene().ElementByID("symbol_cap1")
	assert.True(t, sym.HasClass(classHighlight))

	for ts := now; e.Tick(ts); ts = ts.Add(16 * time.Millisecond) {
	}
	assert.True(t, done)
	assert.InDelta(t, 2*LODThreshold(10), e.Viewport().Scale(), 1e-9)

	r, _ := e.Scene().HitBox("cap1")
	cx, cy := r.Center()
	x, y := e.Transform().TransformPoint(cx, cy)
	assert.InDelta(t, 600, x, 1e-6)
	assert.InDelta(t, 400, y, 1e-6)

	require.NoError(t, e.Locate("bat1", now, nil))
	assert.False(t, sym.HasClass(classHighlight))

	e.ResetView()
	bat, _ := e.Scene().ElementByID("symbol_bat1")
	assert.False(t, bat.HasClass(classHighlight))
}

func TestEngine_ClickAndHover(t *testing.T) {
	e := newSampleEngine(t, nil)

	in := e.Click(600, 790)
	assert.Equal(t, IntentSwitchControl, in.Kind)
	assert.Equal(t, "sw1", in.Node)
	assert.Equal(t, []string{"_SW1"}, in.MRIDs)

	assert.Equal(t, Intent{}, e.Click(1190, 10), "batteries have no control dialog")
	assert.Equal(t, Intent{}, e.Click(300, 300))

	tip, ok := e.Hover(1190, 10)
	require.True(t, ok)
	assert.Equal(t, IntentTooltip, tip.Kind)
	assert.Equal(t, "bat1", tip.Node)

	tip, ok = e.Hover(246, 790)
	require.True(t, ok)
	assert.Equal(t, []string{"A", "B", "C"}, tip.Phases)
}

func TestEngine_ClickUsesViewTransform(t *testing.T) {
	e := newSampleEngine(t, nil)
	e.Pan(100, 0)

	assert.Equal(t, Intent{}, e.Click(600, 790))
	assert.Equal(t, IntentSwitchControl, e.Click(700, 790).Kind)
}

func TestEngine_SearchUsesTopology(t *testing.T) {
	e := newSampleEngine(t, nil)
	ms := e.Search("cap")
	require.NotEmpty(t, ms)
	assert.Equal(t, "cap1", ms[0].Name)

	assert.Nil(t, New(Options{}).Search("cap"))
}

func TestEngine_CloseIsIdempotent(t *testing.T) {
	e := newSampleEngine(t, nil)
	calls := 0
	e.OnTransform(func(Matrix2D) { calls++ })

	e.Close()
	e.Close()
	assert.True(t, e.Closed())

	e.SetZoom(3)
	assert.Equal(t, 0, calls)
}
