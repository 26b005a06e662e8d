package engine

type IntentKind string

const (
	IntentNone             IntentKind = ""
	IntentSwitchControl    IntentKind = "switch-control"
	IntentCapacitorControl IntentKind = "capacitor-control"
	IntentRegulatorControl IntentKind = "regulator-control"
	IntentTooltip          IntentKind = "tooltip"
)

// Intent is what a pointer gesture asks the host to do. The engine only
// reports it; control dialogs live outside.
type Intent struct {
	Kind  IntentKind `json:"kind"`
	Node  string     `json:"node,omitempty"`
	Type  NodeType   `json:"type,omitempty"`
	MRIDs []string   `json:"mRIDs,omitempty"`
	X     float64    `json:"x"`
	Y     float64    `json:"y"`

	// Tooltip detail.
	Phases []string `json:"phases,omitempty"`
	Open   *bool    `json:"open,omitempty"`
}

// HitTest returns the topmost node whose symbol (when symbols is true) or
// dot contains the scene point (x, y).
func (s *Scene) HitTest(x, y float64, symbols bool) (string, bool) {
	targets := s.dots
	if symbols {
		targets = s.symbols
	}
	// Later elements paint on top.
	for i := len(targets) - 1; i >= 0; i-- {
		if targets[i].bounds.Contains(x, y) {
			return targets[i].name, true
		}
	}
	return "", false
}

func controlIntent(n *Node) IntentKind {
	switch n.Type {
	case NodeSwitch:
		return IntentSwitchControl
	case NodeCapacitor:
		return IntentCapacitorControl
	case NodeRegulator:
		return IntentRegulatorControl
	}
	return IntentNone
}

func tooltipIntent(n *Node, x, y float64) Intent {
	in := Intent{
		Kind:  IntentTooltip,
		Node:  n.Name,
		Type:  n.Type,
		MRIDs: append([]string(nil), n.MRIDs...),
		X:     x,
		Y:     y,
	}
	if r, ok := n.Regulator(); ok {
		in.Phases = append([]string(nil), r.Phases...)
	}
	if sw, ok := n.Switch(); ok {
		open := sw.Open
		in.Open = &open
	}
	if c, ok := n.Capacitor(); ok {
		open := c.Open
		in.Open = &open
	}
	return in
}
