package engine

const (
	dotRadius      = 2.0
	dotRadiusLarge = 0.8
)

// BuildScene renders a categorized topology into a retained scene. Nodes must
// already carry screen coordinates (see Categorize). The scene starts in the
// overview level of detail: dots visible, symbols hidden.
func BuildScene(t *Topology, c Categories, width, height float64) *Scene {
	s := newScene(width, height)
	large := t.IsLarge()

	for _, e := range t.SortedEdges() {
		el := newElement("line", edgeElementID(e.Name), "edge")
		el.SetAttr("x1", formatFloat(e.From.ScreenX1))
		el.SetAttr("y1", formatFloat(e.From.ScreenY1))
		el.SetAttr("x2", formatFloat(e.To.ScreenX1))
		el.SetAttr("y2", formatFloat(e.To.ScreenY1))
		el.SetAttr("data-from", e.From.Name)
		el.SetAttr("data-to", e.To.Name)
		s.add(s.Edges, el)
	}

	r := dotRadius
	if large {
		r = dotRadiusLarge
	}
	for _, n := range t.SortedNodes() {
		el := newElement("circle", dotElementID(n.Name), "node-dot", string(n.Type), nodeClass(n.Name))
		el.SetAttr("cx", formatFloat(n.ScreenX1))
		el.SetAttr("cy", formatFloat(n.ScreenY1))
		el.SetAttr("r", formatFloat(r))
		el.append(titleElement(n.Name))
		s.addNode(s.Dots, el, n.Name)
		s.dots = append(s.dots, hitTarget{name: n.Name, bounds: Rect{X: n.ScreenX1 - r, Y: n.ScreenY1 - r, Width: 2 * r, Height: 2 * r}})
	}

	incident := t.incidentEdges()
	for _, n := range c.Equipment() {
		var g *Element
		var bounds Rect
		if n.Type == NodeSwitch {
			g, bounds = switchSymbol(n, SymbolBox(n.Type, large))
		} else {
			g, bounds = equipmentSymbol(n, SymbolBox(n.Type, large), incident[n.Name])
		}
		s.addNode(s.Symbols, g, n.Name)
		s.hitBoxes[n.Name] = bounds
		s.symbols = append(s.symbols, hitTarget{name: n.Name, bounds: bounds})
	}

	s.Symbols.SetHidden(true)
	return s
}

func symbolGroup(n *Node) *Element {
	g := newElement("g", symbolElementID(n.Name), "symbol", string(n.Type), nodeClass(n.Name))
	switch n.Type {
	case NodeSwitch:
		if sw, ok := n.Switch(); ok {
			g.AddClass(openClass(sw.Open))
		}
	case NodeCapacitor:
		if cp, ok := n.Capacitor(); ok {
			g.AddClass(openClass(cp.Open))
		}
	}
	return g
}

func equipmentSymbol(n *Node, box Box, incident *Edge) (*Element, Rect) {
	angle := 0.0
	if incident != nil {
		angle = EdgeAngle(incident)
	}
	p := PlaceSymbol(n, box, angle)

	g := symbolGroup(n)
	path := newElement("path", "", "glyph")
	if tmpl, ok := SymbolTemplate(n.Type, box); ok {
		path.SetAttr("d", tmpl.Render(p.X, p.Y))
	}
	path.SetAttr("transform", p.Transform())
	g.append(path, titleElement(n.Name))
	return g, p.Bounds()
}

// switchSymbol draws the terminal-to-terminal line and a filled box rotated
// about the switch midpoint by the screen bearing of its terminals.
func switchSymbol(n *Node, box Box) (*Element, Rect) {
	g := symbolGroup(n)
	sw, ok := n.Switch()
	if !ok {
		return g, Rect{}
	}

	line := newElement("path", "", "switch-line")
	line.SetAttr("d", NewPathTemplate("M"+startingPointPlaceholder+" L "+
		formatFloat(sw.ScreenX2)+","+formatFloat(sw.ScreenY2)).Render(n.ScreenX1, n.ScreenY1))

	bearing := SwitchBearing(n)
	r := Rect{X: sw.MidpointX - box.Width/2, Y: sw.MidpointY - box.Height/2, Width: box.Width, Height: box.Height}
	rect := newElement("rect", "", "switch-box")
	rect.SetAttr("x", formatFloat(r.X))
	rect.SetAttr("y", formatFloat(r.Y))
	rect.SetAttr("width", formatFloat(r.Width))
	rect.SetAttr("height", formatFloat(r.Height))
	rect.SetAttr("transform", "rotate("+formatFloat(bearing)+" "+formatFloat(sw.MidpointX)+" "+formatFloat(sw.MidpointY)+")")

	g.append(line, rect, titleElement(n.Name))
	return g, RotateAbout(bearing, sw.MidpointX, sw.MidpointY).TransformRect(r)
}

func titleElement(text string) *Element {
	t := newElement("title", "")
	t.Text = text
	return t
}

func openClass(open bool) string {
	if open {
		return "open"
	}
	return "closed"
}
