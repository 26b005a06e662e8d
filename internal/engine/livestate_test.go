package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/feeder"
)

func sampleReactor(t *testing.T, limits map[string]feeder.CurrentLimit) (*Topology, *Scene, *Reactor) {
	t.Helper()
	topo, c, scene := sampleScene(t)
	return topo, scene, NewReactor(topo, c, scene, limits)
}

func element(t *testing.T, s *Scene, id string) *Element {
	t.Helper()
	el, ok := s.ElementByID(id)
	require.True(t, ok, id)
	return el
}

func lineMeasurement(name string, magnitude, angle float64) feeder.Measurement {
	return feeder.Measurement{
		ConductingEquipmentName: name,
		ConductingEquipmentMRID: "_" + name,
		ConductingEquipmentType: feeder.EquipmentACLineSegment,
		Type:                    feeder.MeasurementCurrent,
		Magnitude:               magnitude,
		Angle:                   angle,
	}
}

func TestReactor_SwitchTap(t *testing.T) {
	f := feeder.Feeder{
		Name:     "one_switch",
		Switches: []feeder.Switch{{Equipment: feeder.Equipment{Name: "sw", X1: 0, Y1: 0, X2: 10, Y2: 10}}},
	}
	topo := Transform(&feeder.Model{Feeders: []feeder.Feeder{f}}, feeder.EquipmentIDMap{"sw": {"SW1"}}, nil)
	require.NotNil(t, topo)
	c := Categorize(topo, NewProjector(topo, 100, 100))
	scene := BuildScene(topo, c, 100, 100)
	r := NewReactor(topo, c, scene, nil)

	patches := r.Apply(feeder.Measurement{Type: feeder.MeasurementTap, ConductingEquipmentMRID: "SW1", Value: 0})

	s, _ := topo.Nodes["sw"].Switch()
	assert.True(t, s.Open)
	sym := element(t, scene, "symbol_sw")
	assert.True(t, sym.HasClass("open"))
	assert.False(t, sym.HasClass("closed"))
	assert.Contains(t, patches, Patch{Target: "symbol_sw", Op: PatchAddClass, Name: "open"})

	assert.Empty(t, r.Apply(feeder.Measurement{Type: feeder.MeasurementTap, ConductingEquipmentMRID: "SW1", Value: 0}))

	r.Apply(feeder.Measurement{Type: feeder.MeasurementTap, ConductingEquipmentMRID: "SW1", Value: 1})
	assert.False(t, s.Open)
	assert.True(t, sym.HasClass("closed"))
}

func TestReactor_CapacitorPosition(t *testing.T) {
	topo, scene, r := sampleReactor(t, nil)

	r.Apply(feeder.Measurement{Type: feeder.MeasurementPos, ConductingEquipmentMRID: "_CAP1", Value: 0})

	c, _ := topo.Nodes["cap1"].Capacitor()
	assert.True(t, c.Open)
	assert.True(t, element(t, scene, "symbol_cap1").HasClass("open"))
}

func TestReactor_NoPower(t *testing.T) {
	_, scene, r := sampleReactor(t, nil)
	ids := []string{"edge_l4", "symbol_sw1", "dot_sw1", "symbol_cap1", "dot_cap1"}

	r.Apply(lineMeasurement("l4", 0.2, 0))
	for _, id := range ids {
		assert.True(t, element(t, scene, id).HasClass(classNoPower), id)
	}
	assert.False(t, element(t, scene, "edge_l3").HasClass(classNoPower))

	r.Apply(lineMeasurement("l4", 5.0, 0))
	for _, id := range ids {
		assert.False(t, element(t, scene, id).HasClass(classNoPower), id)
	}

	r.Apply(lineMeasurement("l4", -0.3, 0))
	assert.True(t, element(t, scene, "edge_l4").HasClass(classNoPower))
}

func TestReactor_LineFoundByMRID(t *testing.T) {
	maps := feeder.NewSampleMaps()
	maps.EquipmentIDs["l2"] = feeder.MRIDs{"_LINE2"}
	topo := Transform(feeder.NewSampleModel(), maps.EquipmentIDs, maps.Phases)
	c := Categorize(topo, NewProjector(topo, 1200, 800))
	scene := BuildScene(topo, c, 1200, 800)
	r := NewReactor(topo, c, scene, nil)

	m := lineMeasurement("unknown-name", 0, 0)
	m.ConductingEquipmentMRID = "_LINE2"
	r.Apply(m)

	assert.True(t, element(t, scene, "edge_l2").HasClass(classNoPower))
}

func TestFlowDirection(t *testing.T) {
	tests := []struct {
		angle float64
		want  Direction
	}{
		{45, DirectionNormal},
		{-90, DirectionNormal},
		{90, DirectionNormal},
		{-179.5, DirectionReverse},
		{179, DirectionNone},
		{-181, DirectionReverse},
		{90.5, DirectionNone},
		{-178.9, DirectionNone},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.angle), func(t *testing.T) {
			assert.Equal(t, tt.want, FlowDirection(tt.angle))
		})
	}
}

func TestReactor_FlowDirectionClasses(t *testing.T) {
	_, scene, r := sampleReactor(t, nil)
	edge := element(t, scene, "edge_l4")

	r.Apply(lineMeasurement("l4", 5, 45))
	assert.True(t, edge.HasClass(classFlowNormal))
	assert.False(t, edge.HasClass(classFlowReverse))

	r.Apply(lineMeasurement("l4", 5, -179.5))
	assert.False(t, edge.HasClass(classFlowNormal))
	assert.True(t, edge.HasClass(classFlowReverse))

	r.Apply(lineMeasurement("l4", 5, 90.5))
	assert.False(t, edge.HasClass(classFlowNormal))
	assert.False(t, edge.HasClass(classFlowReverse))
}

func TestReactor_ShowIndicator(t *testing.T) {
	_, scene, r := sampleReactor(t, nil)
	edge := element(t, scene, "edge_l4")
	r.Apply(lineMeasurement("l4", 5, 10))

	patches := r.SetShowIndicator(false)
	assert.Equal(t, []Patch{{Target: "edge_l4", Op: PatchRemoveClass, Name: classFlowNormal}}, patches)
	assert.False(t, edge.HasClass(classFlowNormal))

	r.Apply(lineMeasurement("l4", 5, 10))
	assert.False(t, edge.HasClass(classFlowNormal))

	assert.Nil(t, r.SetShowIndicator(false))
	r.SetShowIndicator(true)
	assert.True(t, edge.HasClass(classFlowNormal))
}

func TestReactor_LineThickness(t *testing.T) {
	limits := map[string]feeder.CurrentLimit{"_l4": {MRID: "_l4", Normal: 1}}
	_, scene, r := sampleReactor(t, limits)
	edge := element(t, scene, "edge_l4")

	r.Apply(lineMeasurement("l4", 500, 0))
	assert.Equal(t, "0.5", edge.Attr("stroke-width"))

	r.Apply(lineMeasurement("l4", 10, 0))
	assert.Equal(t, "0.15", edge.Attr("stroke-width"))

	r.Apply(lineMeasurement("l3", 500, 0))
	assert.Empty(t, element(t, scene, "edge_l3").Attr("stroke-width"))
}

func widthFamilyReactor(t *testing.T, limits map[string]feeder.CurrentLimit) (*Scene, *Reactor, []string) {
	t.Helper()
	f := feeder.Feeder{Name: "ieee123"}
	names := append([]string{widthReferenceEdge}, widthCorrectedEdges...)
	for i, name := range names {
		f.Lines = append(f.Lines, feeder.LineSegment{
			Name: name, From: fmt.Sprintf("a%d", i), To: fmt.Sprintf("b%d", i),
			X1: float64(i * 10), Y1: 0, X2: float64(i * 10), Y2: 10,
		})
	}
	topo := Transform(&feeder.Model{Feeders: []feeder.Feeder{f}}, nil, nil)
	require.NotNil(t, topo)
	c := Categorize(topo, NewProjector(topo, 600, 400))
	scene := BuildScene(topo, c, 600, 400)
	return scene, NewReactor(topo, c, scene, limits), names
}

func TestReactor_WidthCorrectionFamily(t *testing.T) {
	scene, r, names := widthFamilyReactor(t, map[string]feeder.CurrentLimit{"_l114": {Normal: 2}})

	r.Apply(lineMeasurement("l114", 1000, 0))
	for _, name := range names {
		assert.Equal(t, "0.5", element(t, scene, edgeElementID(name)).Attr("stroke-width"), name)
	}
}

func TestReactor_WidthCorrectionIgnoresSiblingReadings(t *testing.T) {
	limits := map[string]feeder.CurrentLimit{
		"_l114": {Normal: 2},
		"_l115": {Normal: 1},
	}

	t.Run("reference first", func(t *testing.T) {
		scene, r, _ := widthFamilyReactor(t, limits)
		r.Apply(lineMeasurement("l114", 1000, 0))
		r.Apply(lineMeasurement("l115", 4000, 0))
		assert.Equal(t, "0.5", element(t, scene, "edge_l115").Attr("stroke-width"))
	})

	t.Run("sibling first", func(t *testing.T) {
		scene, r, _ := widthFamilyReactor(t, limits)
		r.Apply(lineMeasurement("l115", 4000, 0))
		assert.Empty(t, element(t, scene, "edge_l115").Attr("stroke-width"))

		r.Apply(lineMeasurement("l114", 1000, 0))
		assert.Equal(t, "0.5", element(t, scene, "edge_l115").Attr("stroke-width"))
	})

	t.Run("sibling still gets flow classes", func(t *testing.T) {
		scene, r, _ := widthFamilyReactor(t, limits)
		r.Apply(lineMeasurement("l115", 4000, 0))
		assert.True(t, element(t, scene, "edge_l115").HasClass(classFlowNormal))
	})
}

func TestReactor_IgnoresUnmatched(t *testing.T) {
	_, _, r := sampleReactor(t, nil)

	assert.NotPanics(t, func() {
		assert.Empty(t, r.Apply(feeder.Measurement{}))
		assert.Empty(t, r.Apply(feeder.Measurement{Type: feeder.MeasurementTap, ConductingEquipmentMRID: "nope"}))
		assert.Empty(t, r.Apply(lineMeasurement("nope", 0, 0)))
	})
}

func TestReactor_SwitchWithDottedName(t *testing.T) {
	f := feeder.Feeder{
		Name:     "dotted",
		Switches: []feeder.Switch{{Equipment: feeder.Equipment{Name: "sw.1", X1: 0, Y1: 0, X2: 10, Y2: 10}}},
	}
	topo := Transform(&feeder.Model{Feeders: []feeder.Feeder{f}}, feeder.EquipmentIDMap{"sw.1": {"SW1"}}, nil)
	require.NotNil(t, topo)
	c := Categorize(topo, NewProjector(topo, 100, 100))
	scene := BuildScene(topo, c, 100, 100)
	r := NewReactor(topo, c, scene, nil)

	patches := r.Apply(feeder.Measurement{Type: feeder.MeasurementTap, ConductingEquipmentMRID: "SW1", Value: 0})

	assert.Contains(t, patches, Patch{Target: "symbol_sw.1", Op: PatchAddClass, Name: "open"})
	assert.True(t, element(t, scene, "symbol_sw.1").HasClass("open"))
}

func TestReactor_MemoizesLookups(t *testing.T) {
	_, _, r := sampleReactor(t, nil)

	r.Apply(lineMeasurement("l4", 0, 0))
	assert.NotEmpty(t, r.memo)
	cached := r.memo["line:l4"]
	r.Apply(lineMeasurement("l4", 5, 0))
	assert.Equal(t, cached, r.memo["line:l4"])

	r.Reset()
	assert.Empty(t, r.memo)
}
