package engine

import (
	"math"
	"slices"

	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/feeder"
)

const (
	noPowerMagnitude = 0.3
	minStrokeWidth   = 0.15

	classNoPower     = "no-power"
	classFlowNormal  = "power-flow-normal"
	classFlowReverse = "power-flow-reverse"
)

// The ieee123 family reports unreliable widths for five lines next to l114;
// they take l114's width instead.
const (
	widthCorrectionFamily = "ieee123"
	widthReferenceEdge    = "l114"
)

var widthCorrectedEdges = []string{"l115", "l116", "l117", "l118", "l119"}

// Direction is the asserted power-flow direction of a line.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionNormal
	DirectionReverse
)

// FlowDirection classifies a line angle. Reverse flow is only asserted within
// one degree of 180.
func FlowDirection(angle float64) Direction {
	switch {
	case angle >= -90 && angle <= 90:
		return DirectionNormal
	case math.Abs(180+angle) <= 1:
		return DirectionReverse
	}
	return DirectionNone
}

// Reactor applies live measurements to a scene in place.
type Reactor struct {
	topo   *Topology
	scene  *Scene
	limits map[string]feeder.CurrentLimit

	switches    map[string]*Node
	capacitors  map[string]*Node
	edgesByMRID map[string]*Edge

	showIndicator bool
	directions    map[string]Direction

	// last width resolved for widthReferenceEdge, shared by its siblings
	referenceWidth string

	memo map[string][]*Element
}

func NewReactor(t *Topology, c Categories, s *Scene, limits map[string]feeder.CurrentLimit) *Reactor {
	r := &Reactor{
		topo:          t,
		scene:         s,
		limits:        limits,
		switches:      c.SwitchesByMRID,
		capacitors:    make(map[string]*Node),
		edgesByMRID:   make(map[string]*Edge),
		showIndicator: true,
		directions:    make(map[string]Direction),
		memo:          make(map[string][]*Element),
	}
	for _, n := range c.Capacitors {
		for _, id := range n.MRIDs {
			r.capacitors[id] = n
		}
	}
	for _, e := range t.SortedEdges() {
		for _, id := range e.MRIDs {
			r.edgesByMRID[id] = e
		}
	}
	return r
}

// SetLimits replaces the current-limit table.
func (r *Reactor) SetLimits(limits map[string]feeder.CurrentLimit) {
	r.limits = limits
}

// Reset drops every memoized element lookup and remembered flow direction.
func (r *Reactor) Reset() {
	r.memo = make(map[string][]*Element)
	r.directions = make(map[string]Direction)
	r.referenceWidth = ""
}

// Apply patches the scene for one measurement. Measurements that match no
// switch, capacitor or line produce no patches.
func (r *Reactor) Apply(m feeder.Measurement) []Patch {
	var ps patchSet

	switch m.Type {
	case feeder.MeasurementTap:
		if n, ok := r.switches[m.ConductingEquipmentMRID]; ok {
			if sw, ok := n.Switch(); ok {
				sw.Open = m.Value == 0
				r.setOpen(&ps, n, sw.Open)
			}
		}
	case feeder.MeasurementPos:
		if n, ok := r.capacitors[m.ConductingEquipmentMRID]; ok {
			if cp, ok := n.Capacitor(); ok {
				cp.Open = m.Value == 0
				r.setOpen(&ps, n, cp.Open)
			}
		}
	}

	if m.ConductingEquipmentType == feeder.EquipmentACLineSegment {
		if e := r.edgeFor(m); e != nil {
			r.applyLine(&ps, e, m)
		}
	}
	return ps
}

// SetShowIndicator toggles the flow-direction classes. Turning it off strips
// them; turning it back on restores the last known direction of every line.
func (r *Reactor) SetShowIndicator(on bool) []Patch {
	if r.showIndicator == on {
		return nil
	}
	r.showIndicator = on

	var ps patchSet
	for _, e := range r.topo.SortedEdges() {
		if dir, ok := r.directions[e.Name]; ok {
			r.setDirection(&ps, e, dir)
		}
	}
	return ps
}

func (r *Reactor) ShowIndicator() bool { return r.showIndicator }

func (r *Reactor) setOpen(ps *patchSet, n *Node, open bool) {
	for _, el := range r.scene.NodeElements(n.Name) {
		ps.toggleClass(el, "open", open)
		ps.toggleClass(el, "closed", !open)
	}
}

func (r *Reactor) edgeFor(m feeder.Measurement) *Edge {
	if e, ok := r.topo.Edges[m.ConductingEquipmentName]; ok {
		return e
	}
	return r.edgesByMRID[m.ConductingEquipmentMRID]
}

func (r *Reactor) applyLine(ps *patchSet, e *Edge, m feeder.Measurement) {
	noPower := m.Magnitude >= -noPowerMagnitude && m.Magnitude <= noPowerMagnitude
	for _, el := range r.lineElements(e) {
		ps.toggleClass(el, classNoPower, noPower)
	}

	dir := FlowDirection(m.Angle)
	r.directions[e.Name] = dir
	r.setDirection(ps, e, dir)

	if r.widthCorrected(e.Name) {
		// Never the edge's own reading; the reference width, once known.
		if r.referenceWidth != "" {
			r.setWidth(ps, e.Name, r.referenceWidth)
		}
		return
	}

	limit, ok := r.limits[m.ConductingEquipmentMRID]
	if !ok || !m.HasMagnitude() || limit.Normal == 0 {
		return
	}
	width := formatFloat(max(minStrokeWidth, (m.Magnitude/limit.Normal)/1000))
	r.setWidth(ps, e.Name, width)

	if e.Name == widthReferenceEdge && r.correctionFamily() {
		r.referenceWidth = width
		for _, name := range widthCorrectedEdges {
			r.setWidth(ps, name, width)
		}
	}
}

func (r *Reactor) correctionFamily() bool {
	return containsFold(r.topo.Name, widthCorrectionFamily)
}

func (r *Reactor) widthCorrected(edgeName string) bool {
	return r.correctionFamily() && slices.Contains(widthCorrectedEdges, edgeName)
}

func (r *Reactor) setDirection(ps *patchSet, e *Edge, dir Direction) {
	normal := r.showIndicator && dir == DirectionNormal
	reverse := r.showIndicator && dir == DirectionReverse
	for _, el := range r.lookup("#" + edgeElementID(e.Name)) {
		ps.toggleClass(el, classFlowNormal, normal)
		ps.toggleClass(el, classFlowReverse, reverse)
	}
}

func (r *Reactor) setWidth(ps *patchSet, edgeName, width string) {
	for _, el := range r.lookup("#" + edgeElementID(edgeName)) {
		ps.setAttr(el, "stroke-width", width)
	}
}

// lineElements is the edge plus every element drawn for its two endpoints.
func (r *Reactor) lineElements(e *Edge) []*Element {
	key := "line:" + e.Name
	if els, ok := r.memo[key]; ok {
		return els
	}
	var els []*Element
	els = append(els, r.scene.Select("#"+edgeElementID(e.Name))...)
	els = append(els, r.scene.NodeElements(e.From.Name)...)
	els = append(els, r.scene.NodeElements(e.To.Name)...)
	r.memo[key] = els
	return els
}

func (r *Reactor) lookup(selector string) []*Element {
	if els, ok := r.memo[selector]; ok {
		return els
	}
	els := r.scene.Select(selector)
	r.memo[selector] = els
	return els
}
