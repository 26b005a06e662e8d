package engine

import (
	"fmt"
	"math"
	"strings"
)

const startingPointPlaceholder = "${startingPoint}"

// PathTemplate is an SVG path with a ${startingPoint} placeholder standing in
// for the node's screen position.
type PathTemplate struct {
	raw string
}

// NewPathTemplate panics when raw lacks the placeholder: a broken template is
// a programming error, not bad input.
func NewPathTemplate(raw string) PathTemplate {
	if !strings.Contains(raw, startingPointPlaceholder) {
		panic(fmt.Sprintf("engine: path template %q has no %s placeholder", raw, startingPointPlaceholder))
	}
	return PathTemplate{raw: raw}
}

// Render substitutes every placeholder with "x,y".
func (p PathTemplate) Render(x, y float64) string {
	return strings.ReplaceAll(p.raw, startingPointPlaceholder, formatFloat(x)+","+formatFloat(y))
}

func (p PathTemplate) String() string {
	return p.raw
}

// Box is a symbol's width/height in screen units.
type Box struct {
	Width  float64
	Height float64
}

const (
	largeScalingFactor = 7.0
	smallScalingFactor = 3.5
)

// Base dimensions before the scaling factor is applied.
var baseBoxes = map[NodeType]Box{
	NodeCapacitor:   {Width: 52, Height: 40},
	NodeTransformer: {Width: 56, Height: 28},
	NodeRegulator:   {Width: 84, Height: 28},
	NodeSubstation:  {Width: 56, Height: 42},
	NodeSwingNode:   {Width: 56, Height: 42},
	NodeSolarPanel:  {Width: 56, Height: 35},
	NodeBattery:     {Width: 56, Height: 35},
}

var (
	switchBaseBox  = Box{Width: 8, Height: 8}
	switchLargeBox = Box{Width: 3, Height: 3}
)

// ScalingFactor returns the divisor applied to base symbol dimensions.
func ScalingFactor(large bool) float64 {
	if large {
		return largeScalingFactor
	}
	return smallScalingFactor
}

// SymbolBox returns the on-screen box of a symbol. Types without a symbol
// return the zero box.
func SymbolBox(typ NodeType, large bool) Box {
	if typ == NodeSwitch {
		if large {
			return switchLargeBox
		}
		return switchBaseBox
	}
	base, ok := baseBoxes[typ]
	if !ok {
		return Box{}
	}
	f := ScalingFactor(large)
	return Box{Width: base.Width / f, Height: base.Height / f}
}

// SymbolTemplate builds the path grammar of an equipment type for box b.
// ok is false for types drawn without a path (switches, unknown junctions).
func SymbolTemplate(typ NodeType, b Box) (PathTemplate, bool) {
	w, h := b.Width, b.Height
	f := formatFloat
	sp := "M" + startingPointPlaceholder

	switch typ {
	case NodeRegulator:
		r := h / 2
		lead := w * 0.15
		tail := max(0, w-lead-3.2*r)
		return NewPathTemplate(sp +
			" h " + f(lead) + circlePath(r) +
			" m " + f(1.2*r) + ",0" + circlePath(r) +
			" m " + f(2*r) + ",0 h " + f(tail) +
			" " + sp + " m " + f(lead) + "," + f(r) + " l " + f(3.2*r) + "," + f(-2*r) +
			" l " + f(-r/2) + ",0 m " + f(r/2) + ",0 l 0," + f(r/2)), true

	case NodeTransformer:
		r := h / 2
		return NewPathTemplate(sp +
			" m " + f(w/2-1.6*r) + "," + f(r) + circlePath(r) +
			" m " + f(1.2*r) + ",0" + circlePath(r)), true

	case NodeCapacitor:
		return NewPathTemplate(sp +
			" h " + f(0.4*w) +
			" m 0," + f(-h/2) + " v " + f(h) +
			" m " + f(0.2*w) + "," + f(-h) + " v " + f(h) +
			" m 0," + f(-h/2) + " h " + f(0.4*w)), true

	case NodeBattery:
		return NewPathTemplate(sp +
			" m 0," + f(h/2) + " h " + f(0.35*w) +
			" m 0," + f(-0.4*h) + " v " + f(0.8*h) +
			" m " + f(0.3*w) + "," + f(-0.6*h) + " v " + f(0.4*h) +
			" m 0," + f(-0.2*h) + " h " + f(0.35*w) +
			" " + sp + " m " + f(0.15*w) + "," + f(0.15*h) + " h " + f(0.1*w) +
			" m " + f(-0.05*w) + "," + f(-0.05*w) + " v " + f(0.1*w) +
			" " + sp + " m " + f(0.75*w) + "," + f(0.15*h) + " h " + f(0.1*w)), true

	case NodeSolarPanel:
		return NewPathTemplate(sp +
			" m " + f(0.25*w) + ",0 h " + f(0.75*w) +
			" l " + f(-0.25*w) + "," + f(h) + " h " + f(-0.75*w) + " z"), true

	case NodeSubstation, NodeSwingNode:
		r := min(h/2, w/3)
		return NewPathTemplate(sp +
			" m " + f(w/2-1.5*r) + "," + f(r) + circlePath(r) +
			" m " + f(r) + ",0" + circlePath(r)), true
	}
	return PathTemplate{}, false
}

// circlePath draws a full circle whose leftmost point is the current point.
func circlePath(r float64) string {
	rs := formatFloat(r)
	return " a " + rs + "," + rs + " 0 1,1 " + formatFloat(2*r) + ",0" +
		" a " + rs + "," + rs + " 0 1,1 " + formatFloat(-2*r) + ",0"
}

// EdgeAngle is the bearing of an edge in model space, in degrees.
func EdgeAngle(e *Edge) float64 {
	return math.Atan2(e.To.Y1-e.From.Y1, e.To.X1-e.From.X1) * 180 / math.Pi
}

// SwitchBearing is the screen-space bearing between a switch's terminals.
func SwitchBearing(n *Node) float64 {
	s, ok := n.Switch()
	if !ok {
		return 0
	}
	return math.Atan2(s.ScreenY2-n.ScreenY1, s.ScreenX2-n.ScreenX1) * 180 / math.Pi
}

// Placement positions a symbol on its node.
type Placement struct {
	X, Y       float64
	Box        Box
	Angle      float64
	OriginX    float64
	OriginY    float64
	TranslateX float64
	TranslateY float64

	centerline bool
}

// PlaceSymbol computes the pivot and translation rules for a node's symbol.
func PlaceSymbol(n *Node, b Box, angle float64) Placement {
	p := Placement{X: n.ScreenX1, Y: n.ScreenY1, Box: b, Angle: angle}

	switch n.Type {
	case NodeCapacitor, NodeRegulator:
		p.OriginX, p.OriginY = p.X+b.Width/2, p.Y
		p.centerline = true
	default:
		p.OriginX, p.OriginY = p.X+b.Width/2, p.Y+b.Height/2
	}

	switch n.Type {
	case NodeRegulator, NodeCapacitor, NodeSubstation, NodeSwingNode, NodeBattery:
		p.TranslateX, p.TranslateY = -b.Width/2, 0
	default:
		p.TranslateX, p.TranslateY = -b.Width/2, -b.Height/2
	}
	return p
}

// Transform is the SVG transform attribute for the placement.
func (p Placement) Transform() string {
	return fmt.Sprintf("rotate(%s %s %s) translate(%s %s)",
		formatFloat(p.Angle), formatFloat(p.OriginX), formatFloat(p.OriginY),
		formatFloat(p.TranslateX), formatFloat(p.TranslateY))
}

func (p Placement) Matrix() Matrix2D {
	return RotateAbout(p.Angle, p.OriginX, p.OriginY).Multiply(Translate(p.TranslateX, p.TranslateY))
}

// Bounds is the world-space axis-aligned box covered by the drawn glyph.
func (p Placement) Bounds() Rect {
	r := Rect{X: p.X, Y: p.Y, Width: p.Box.Width, Height: p.Box.Height}
	if p.centerline {
		r.Y -= p.Box.Height / 2
	}
	return p.Matrix().TransformRect(r)
}
