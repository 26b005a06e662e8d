package engine

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Element is a render handle: one SVG element of the retained scene. Live
// updates mutate elements in place instead of rebuilding the scene.
type Element struct {
	ID       string
	Tag      string
	Text     string
	Children []*Element

	classes []string
	attrs   map[string]string
	hidden  bool
}

func newElement(tag, id string, classes ...string) *Element {
	e := &Element{ID: id, Tag: tag, attrs: make(map[string]string)}
	for _, c := range classes {
		e.AddClass(c)
	}
	return e
}

func (e *Element) append(children ...*Element) {
	e.Children = append(e.Children, children...)
}

// Classes returns a copy of the element's class list.
func (e *Element) Classes() []string {
	return append([]string(nil), e.classes...)
}

func (e *Element) HasClass(class string) bool {
	for _, c := range e.classes {
		if c == class {
			return true
		}
	}
	return false
}

// AddClass adds class and reports whether the element changed.
func (e *Element) AddClass(class string) bool {
	if class == "" || e.HasClass(class) {
		return false
	}
	e.classes = append(e.classes, class)
	return true
}

// RemoveClass removes class and reports whether the element changed.
func (e *Element) RemoveClass(class string) bool {
	for i, c := range e.classes {
		if c == class {
			e.classes = append(e.classes[:i], e.classes[i+1:]...)
			return true
		}
	}
	return false
}

func (e *Element) Attr(name string) string {
	return e.attrs[name]
}

// SetAttr sets an attribute and reports whether the value changed.
func (e *Element) SetAttr(name, value string) bool {
	if old, ok := e.attrs[name]; ok && old == value {
		return false
	}
	e.attrs[name] = value
	return true
}

func (e *Element) Hidden() bool {
	return e.hidden
}

// SetHidden toggles visibility and reports whether the element changed.
func (e *Element) SetHidden(hidden bool) bool {
	if e.hidden == hidden {
		return false
	}
	e.hidden = hidden
	return true
}

type PatchOp string

const (
	PatchAddClass    PatchOp = "class.add"
	PatchRemoveClass PatchOp = "class.remove"
	PatchSetAttr     PatchOp = "attr.set"
	PatchVisibility  PatchOp = "visibility"
)

// Patch describes one in-place mutation of a scene element so remote viewers
// can mirror it without re-rendering.
type Patch struct {
	Target string  `json:"target"`
	Op     PatchOp `json:"op"`
	Name   string  `json:"name,omitempty"`
	Value  string  `json:"value,omitempty"`
}

// patchSet accumulates patches for elements that actually changed.
type patchSet []Patch

func (ps *patchSet) toggleClass(e *Element, class string, on bool) {
	if on {
		if e.AddClass(class) {
			*ps = append(*ps, Patch{Target: e.ID, Op: PatchAddClass, Name: class})
		}
		return
	}
	if e.RemoveClass(class) {
		*ps = append(*ps, Patch{Target: e.ID, Op: PatchRemoveClass, Name: class})
	}
}

func (ps *patchSet) setAttr(e *Element, name, value string) {
	if e.SetAttr(name, value) {
		*ps = append(*ps, Patch{Target: e.ID, Op: PatchSetAttr, Name: name, Value: value})
	}
}

func (ps *patchSet) setHidden(e *Element, hidden bool) {
	if e.SetHidden(hidden) {
		*ps = append(*ps, Patch{Target: e.ID, Op: PatchVisibility, Value: strconv.FormatBool(!hidden)})
	}
}

// Scene is the retained render tree of one topology: a viewport group with
// an edge layer, a dot layer and a symbol layer.
type Scene struct {
	Width  float64
	Height float64

	Root     *Element
	Viewport *Element
	Edges    *Element
	Dots     *Element
	Symbols  *Element

	byID     map[string]*Element
	byNode   map[string][]*Element
	hitBoxes map[string]Rect
	symbols  []hitTarget
	dots     []hitTarget
}

type hitTarget struct {
	name   string
	bounds Rect
}

func newScene(width, height float64) *Scene {
	s := &Scene{
		Width:    width,
		Height:   height,
		byID:     make(map[string]*Element),
		byNode:   make(map[string][]*Element),
		hitBoxes: make(map[string]Rect),
	}
	s.Root = newElement("svg", "topology", "topology")
	s.Viewport = newElement("g", "viewport", "viewport")
	s.Edges = newElement("g", "layer-edges", "layer", "edges")
	s.Dots = newElement("g", "layer-dots", "layer", "dots")
	s.Symbols = newElement("g", "layer-symbols", "layer", "symbols")
	s.Root.append(s.Viewport)
	s.Viewport.append(s.Edges, s.Dots, s.Symbols)
	for _, e := range []*Element{s.Root, s.Viewport, s.Edges, s.Dots, s.Symbols} {
		s.byID[e.ID] = e
	}
	return s
}

// add appends child to parent and indexes it (and its subtree) by id.
func (s *Scene) add(parent, child *Element) {
	parent.append(child)
	s.index(child)
}

func (s *Scene) index(e *Element) {
	if e.ID != "" {
		s.byID[e.ID] = e
	}
	for _, c := range e.Children {
		s.index(c)
	}
}

// addNode is add for an element drawn on behalf of a node.
func (s *Scene) addNode(parent, child *Element, node string) {
	s.add(parent, child)
	s.byNode[node] = append(s.byNode[node], child)
}

// NodeElements returns every element drawn for a node: its dot and, for
// equipment, its symbol group.
func (s *Scene) NodeElements(name string) []*Element {
	return s.byNode[name]
}

func (s *Scene) ElementByID(id string) (*Element, bool) {
	e, ok := s.byID[id]
	return e, ok
}

// Select walks the whole tree and returns elements matching a selector of the
// form "#id" or ".class[.class...]". It is linear in scene size; callers on hot
// paths memoize the result.
func (s *Scene) Select(selector string) []*Element {
	if strings.HasPrefix(selector, "#") {
		if e, ok := s.byID[selector[1:]]; ok {
			return []*Element{e}
		}
		return nil
	}

	var classes []string
	for _, c := range strings.Split(selector, ".") {
		if c != "" {
			classes = append(classes, c)
		}
	}
	if len(classes) == 0 {
		return nil
	}

	var out []*Element
	var walk func(e *Element)
	walk = func(e *Element) {
		match := true
		for _, c := range classes {
			if !e.HasClass(c) {
				match = false
				break
			}
		}
		if match {
			out = append(out, e)
		}
		for _, child := range e.Children {
			walk(child)
		}
	}
	walk(s.Root)
	return out
}

// HitBox returns the world-space bounding box of a node's symbol.
func (s *Scene) HitBox(name string) (Rect, bool) {
	r, ok := s.hitBoxes[name]
	return r, ok
}

// SVG serializes the scene.
func (s *Scene) SVG() string {
	var b strings.Builder
	_ = s.WriteSVG(&b)
	return b.String()
}

// WriteSVG serializes the scene as a standalone SVG document.
func (s *Scene) WriteSVG(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "<svg xmlns=\"http://www.w3.org/2000/svg\" width=\"%s\" height=\"%s\" viewBox=\"0 0 %s %s\"",
		formatFloat(s.Width), formatFloat(s.Height), formatFloat(s.Width), formatFloat(s.Height))
	writeAttributes(bw, s.Root)
	bw.WriteString(">\n")
	for _, c := range s.Root.Children {
		writeElement(bw, c, 1)
	}
	bw.WriteString("</svg>\n")
	return bw.Flush()
}

func writeElement(w *bufio.Writer, e *Element, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%s<%s", indent, e.Tag)
	writeAttributes(w, e)

	if len(e.Children) == 0 && e.Text == "" {
		w.WriteString("/>\n")
		return
	}

	w.WriteString(">")
	if e.Text != "" {
		w.WriteString(html.EscapeString(e.Text))
	}
	if len(e.Children) > 0 {
		w.WriteString("\n")
		for _, c := range e.Children {
			writeElement(w, c, depth+1)
		}
		w.WriteString(indent)
	}
	fmt.Fprintf(w, "</%s>\n", e.Tag)
}

func writeAttributes(w *bufio.Writer, e *Element) {
	if e.ID != "" {
		fmt.Fprintf(w, " id=\"%s\"", html.EscapeString(e.ID))
	}
	if len(e.classes) > 0 {
		fmt.Fprintf(w, " class=\"%s\"", html.EscapeString(strings.Join(e.classes, " ")))
	}
	keys := make([]string, 0, len(e.attrs))
	for k := range e.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, " %s=\"%s\"", k, html.EscapeString(e.attrs[k]))
	}
	if e.hidden {
		w.WriteString(" visibility=\"hidden\"")
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func edgeElementID(name string) string   { return "edge_" + name }
func dotElementID(name string) string    { return "dot_" + name }
func symbolElementID(name string) string { return "symbol_" + name }

// nodeClass is the per-entity class shared by every element drawn for a node.
// Whitespace would split it into several classes.
func nodeClass(name string) string {
	return "_" + strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, name) + "_"
}
