package engine

import (
	"sort"

	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/feeder"
)

type NodeType string

const (
	NodeSwitch      NodeType = "switch"
	NodeCapacitor   NodeType = "capacitor"
	NodeTransformer NodeType = "transformer"
	NodeRegulator   NodeType = "regulator"
	NodeSubstation  NodeType = "substation"
	NodeSolarPanel  NodeType = "solarpanel"
	NodeBattery     NodeType = "battery"
	NodeSwingNode   NodeType = "swing_node"
	NodeUnknown     NodeType = "unknown"
)

// largeModelNodes is the node count at which a topology uses the compact symbol regime.
const largeModelNodes = 1000

// Node is one piece of equipment or a junction. Fields shared by every kind
// live on Node; kind-specific state is only reachable through the typed
// accessors (Switch, Capacitor, Regulator, Transformer).
type Node struct {
	Name     string
	Type     NodeType
	X1       float64
	Y1       float64
	ScreenX1 float64
	ScreenY1 float64
	MRIDs    []string

	variant any
}

type SwitchState struct {
	X2        float64
	Y2        float64
	ScreenX2  float64
	ScreenY2  float64
	MidpointX float64
	MidpointY float64
	Open      bool
}

type CapacitorState struct {
	Open        bool
	Manual      bool
	ControlMode string
	Var         *feeder.Setpoint
	Volt        *feeder.Setpoint
}

type RegulatorState struct {
	Manual      bool
	ControlMode string
	Phases      []string
	PhaseValues map[string]feeder.PhaseValue
}

type TransformerState struct {
	X2 float64
	Y2 float64
}

func (n *Node) Switch() (*SwitchState, bool) {
	s, ok := n.variant.(*SwitchState)
	return s, ok
}

func (n *Node) Capacitor() (*CapacitorState, bool) {
	c, ok := n.variant.(*CapacitorState)
	return c, ok
}

func (n *Node) Regulator() (*RegulatorState, bool) {
	r, ok := n.variant.(*RegulatorState)
	return r, ok
}

func (n *Node) Transformer() (*TransformerState, bool) {
	t, ok := n.variant.(*TransformerState)
	return t, ok
}

// FirstMRID returns the first equipment identifier, or "" when there is none.
func (n *Node) FirstMRID() string {
	if len(n.MRIDs) == 0 {
		return ""
	}
	return n.MRIDs[0]
}

// secondary returns pointers to the secondary coordinate pair for the kinds
// that carry one.
func (n *Node) secondary() (x, y *float64, ok bool) {
	switch v := n.variant.(type) {
	case *SwitchState:
		return &v.X2, &v.Y2, true
	case *TransformerState:
		return &v.X2, &v.Y2, true
	}
	return nil, nil, false
}

func newNode(name string, typ NodeType, mrids []string, x, y float64, variant any) *Node {
	if mrids == nil {
		mrids = []string{}
	}
	return &Node{Name: name, Type: typ, X1: x, Y1: y, MRIDs: mrids, variant: variant}
}

// Edge is a visual connector between two nodes of the same topology.
type Edge struct {
	Name  string
	From  *Node
	To    *Node
	MRIDs []string
}

// Degenerate reports whether both ends sit on the same model coordinate.
func (e *Edge) Degenerate() bool {
	return e.From.X1 == e.To.X1 && e.From.Y1 == e.To.Y1
}

// Topology is the projected, typed scene graph of one feeder. It is rebuilt
// wholesale when the model changes; only live-state patches and the legacy
// inversion flag mutate it afterwards.
type Topology struct {
	Name     string
	Nodes    map[string]*Node
	Edges    map[string]*Edge
	Inverted bool
}

func NewTopology(name string) *Topology {
	return &Topology{
		Name:  name,
		Nodes: make(map[string]*Node),
		Edges: make(map[string]*Edge),
	}
}

// IsLarge reports whether the topology uses the compact symbol regime.
func (t *Topology) IsLarge() bool {
	return len(t.Nodes) >= largeModelNodes
}

// SortedNodes returns the nodes ordered by name.
func (t *Topology) SortedNodes() []*Node {
	out := make([]*Node, 0, len(t.Nodes))
	for _, n := range t.Nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SortedEdges returns the edges ordered by name.
func (t *Topology) SortedEdges() []*Edge {
	out := make([]*Edge, 0, len(t.Edges))
	for _, e := range t.Edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// addEdge links two existing nodes. It returns false when either end is missing.
func (t *Topology) addEdge(name, from, to string, mrids []string) bool {
	f, ok := t.Nodes[from]
	if !ok {
		return false
	}
	to2, ok := t.Nodes[to]
	if !ok {
		return false
	}
	t.Edges[name] = &Edge{Name: name, From: f, To: to2, MRIDs: mrids}
	return true
}

// RemoveDegenerateEdges deletes zero-length edges and returns how many were removed.
func (t *Topology) RemoveDegenerateEdges() int {
	removed := 0
	for name, e := range t.Edges {
		if e.Degenerate() {
			delete(t.Edges, name)
			removed++
		}
	}
	return removed
}

// incidentEdges maps each node name to the first edge (by edge name) touching it.
func (t *Topology) incidentEdges() map[string]*Edge {
	out := make(map[string]*Edge, len(t.Nodes))
	for _, e := range t.SortedEdges() {
		if _, ok := out[e.From.Name]; !ok {
			out[e.From.Name] = e
		}
		if _, ok := out[e.To.Name]; !ok {
			out[e.To.Name] = e
		}
	}
	return out
}

// Clone returns a deep copy whose nodes and edges share nothing with t.
func (t *Topology) Clone() *Topology {
	c := &Topology{
		Name:     t.Name,
		Nodes:    make(map[string]*Node, len(t.Nodes)),
		Edges:    make(map[string]*Edge, len(t.Edges)),
		Inverted: t.Inverted,
	}
	for name, n := range t.Nodes {
		cp := *n
		cp.MRIDs = append([]string{}, n.MRIDs...)
		cp.variant = cloneVariant(n.variant)
		c.Nodes[name] = &cp
	}
	for name, e := range t.Edges {
		c.Edges[name] = &Edge{
			Name:  e.Name,
			From:  c.Nodes[e.From.Name],
			To:    c.Nodes[e.To.Name],
			MRIDs: append([]string{}, e.MRIDs...),
		}
	}
	return c
}

func cloneVariant(v any) any {
	switch s := v.(type) {
	case *SwitchState:
		cp := *s
		return &cp
	case *CapacitorState:
		cp := *s
		if s.Var != nil {
			sp := *s.Var
			cp.Var = &sp
		}
		if s.Volt != nil {
			sp := *s.Volt
			cp.Volt = &sp
		}
		return &cp
	case *RegulatorState:
		cp := *s
		cp.Phases = append([]string(nil), s.Phases...)
		if s.PhaseValues != nil {
			cp.PhaseValues = make(map[string]feeder.PhaseValue, len(s.PhaseValues))
			for k, pv := range s.PhaseValues {
				cp.PhaseValues[k] = pv
			}
		}
		return &cp
	case *TransformerState:
		cp := *s
		return &cp
	}
	return v
}
