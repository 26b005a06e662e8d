package engine

// Categories partitions a topology's nodes into render buckets.
type Categories struct {
	Switches     []*Node
	Capacitors   []*Node
	Transformers []*Node
	Regulators   []*Node
	Substations  []*Node
	SolarPanels  []*Node
	Batteries    []*Node
	UnknownNodes []*Node
	OtherNodes   []*Node

	// SwitchesByMRID indexes switches by their first mRID for live lookups.
	SwitchesByMRID map[string]*Node
}

// Categorize buckets every node and projects it onto the screen in the same pass.
func Categorize(t *Topology, p Projector) Categories {
	c := Categories{SwitchesByMRID: make(map[string]*Node)}

	for _, n := range t.SortedNodes() {
		n.ScreenX1, n.ScreenY1 = p.Project(n.X1, n.Y1)

		switch n.Type {
		case NodeSwitch:
			if s, ok := n.Switch(); ok {
				s.ScreenX2, s.ScreenY2 = p.Project(s.X2, s.Y2)
				s.MidpointX = (n.ScreenX1 + s.ScreenX2) / 2
				s.MidpointY = (n.ScreenY1 + s.ScreenY2) / 2
			}
			c.Switches = append(c.Switches, n)
			if id := n.FirstMRID(); id != "" {
				c.SwitchesByMRID[id] = n
			}
		case NodeCapacitor:
			c.Capacitors = append(c.Capacitors, n)
		case NodeTransformer:
			c.Transformers = append(c.Transformers, n)
		case NodeRegulator:
			c.Regulators = append(c.Regulators, n)
		case NodeSubstation, NodeSwingNode:
			c.Substations = append(c.Substations, n)
		case NodeSolarPanel:
			c.SolarPanels = append(c.SolarPanels, n)
		case NodeBattery:
			c.Batteries = append(c.Batteries, n)
		case NodeUnknown:
			c.UnknownNodes = append(c.UnknownNodes, n)
		default:
			c.OtherNodes = append(c.OtherNodes, n)
		}
	}

	return c
}

// Equipment returns every node that renders as a symbol, switches first.
func (c Categories) Equipment() []*Node {
	out := make([]*Node, 0, len(c.Switches)+len(c.Capacitors)+len(c.Transformers)+
		len(c.Regulators)+len(c.Substations)+len(c.SolarPanels)+len(c.Batteries))
	out = append(out, c.Switches...)
	out = append(out, c.Capacitors...)
	out = append(out, c.Transformers...)
	out = append(out, c.Regulators...)
	out = append(out, c.Substations...)
	out = append(out, c.SolarPanels...)
	out = append(out, c.Batteries...)
	return out
}
