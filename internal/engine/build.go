package engine

import (
	"strings"

	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/feeder"
)

// Transform builds a Topology from a raw feeder model. It returns nil when the
// model is absent or declares no feeders.
//
// Coordinates are normalized once after every entity is placed: geographic
// models are converted, everything is truncated, and zero-length edges are
// dropped.
func Transform(raw *feeder.Model, ids feeder.EquipmentIDMap, phases feeder.PhaseMap) *Topology {
	f := raw.Primary()
	if f == nil {
		return nil
	}

	t := NewTopology(f.Name)

	for _, b := range f.Batteries {
		t.Nodes[b.Name] = newNode(b.Name, NodeBattery, ids.Lookup(b.Name), b.X1, b.Y1, nil)
	}

	for _, s := range f.Switches {
		// The controllable element sits on the secondary terminal.
		t.Nodes[s.Name] = newNode(s.Name, NodeSwitch, ids.Lookup(s.Name), s.X2, s.Y2, &SwitchState{
			X2:   s.X1,
			Y2:   s.Y1,
			Open: s.Open,
		})
	}

	for _, p := range f.SolarPanels {
		t.Nodes[p.Name] = newNode(p.Name, NodeSolarPanel, ids.Lookup(p.Name), p.X1, p.Y1, nil)
	}

	for _, s := range f.SwingNodes {
		t.Nodes[s.Name] = newNode(s.Name, NodeSwingNode, ids.Lookup(s.Name), s.X1, s.Y1, nil)
	}

	for _, s := range f.Substations {
		t.Nodes[s.Name] = newNode(s.Name, NodeSubstation, ids.Lookup(s.Name), s.X1, s.Y1, nil)
	}

	for _, x := range f.Transformers {
		x1, y1 := x.X1, x.Y1
		// (0,0) means the upstream model never set the primary terminal.
		if x1 == 0 && y1 == 0 {
			x1, y1 = x.X2, x.Y2
		}
		t.Nodes[x.Name] = newNode(x.Name, NodeTransformer, ids.Lookup(x.Name), x1, y1, &TransformerState{
			X2: x.X2,
			Y2: x.Y2,
		})
	}

	for _, c := range f.Capacitors {
		t.Nodes[c.Name] = newNode(c.Name, NodeCapacitor, ids.Lookup(c.Name), c.X1, c.Y1, &CapacitorState{
			Open:        c.Open,
			Manual:      c.Manual,
			ControlMode: c.ControlMode,
			Var:         c.Var,
			Volt:        c.Volt,
		})
	}

	for _, r := range f.Regulators {
		values := make(map[string]feeder.PhaseValue, len(r.PhaseValues))
		for phase, v := range r.PhaseValues {
			values[phase] = v
		}
		t.Nodes[r.Name] = newNode(r.Name, NodeRegulator, ids.Lookup(r.Name), r.X2, r.Y2, &RegulatorState{
			Manual:      r.Manual,
			ControlMode: r.ControlMode,
			Phases:      append([]string(nil), phases[r.Name]...),
			PhaseValues: values,
		})
	}

	for _, l := range f.Lines {
		if _, ok := t.Nodes[l.From]; !ok {
			t.Nodes[l.From] = newNode(l.From, NodeUnknown, nil, l.X1, l.Y1, nil)
		}
		if _, ok := t.Nodes[l.To]; !ok {
			t.Nodes[l.To] = newNode(l.To, NodeUnknown, nil, l.X2, l.Y2, nil)
		}
		t.addEdge(l.Name, l.From, l.To, ids.Lookup(l.Name))
	}

	Normalize(t)
	t.RemoveDegenerateEdges()
	FixLegacyOrientation(t)

	return t
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
