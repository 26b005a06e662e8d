package engine

import (
	"errors"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/feeder"
)

var (
	ErrNodeNotFound = errors.New("engine: node not found")
	ErrEmptyModel   = errors.New("engine: empty topology model")
	ErrNotLoaded    = errors.New("engine: no topology loaded")
)

const (
	DefaultWidth  = 1200.0
	DefaultHeight = 800.0

	LocateDuration = 750 * time.Millisecond

	classHighlight = "highlight"
)

// TopologyCache keeps transformed topologies by line name so a new
// simulation against a seen model skips the transform.
type TopologyCache interface {
	Get(lineName string) (*Topology, bool)
	Put(lineName string, t *Topology)
}

// MemoryCache is an unbounded in-process TopologyCache.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]*Topology
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]*Topology)}
}

func (c *MemoryCache) Get(lineName string) (*Topology, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.items[lineName]
	return t, ok
}

func (c *MemoryCache) Put(lineName string, t *Topology) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[lineName] = t
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// SharedCache is a TopologyCache that several engines may use at once. It
// stores and hands out private copies, since an engine mutates its topology
// while projecting and applying live state.
type SharedCache struct {
	mem *MemoryCache
}

func NewSharedCache() *SharedCache {
	return &SharedCache{mem: NewMemoryCache()}
}

func (c *SharedCache) Get(lineName string) (*Topology, bool) {
	t, ok := c.mem.Get(lineName)
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

func (c *SharedCache) Put(lineName string, t *Topology) {
	c.mem.Put(lineName, t.Clone())
}

func (c *SharedCache) Len() int { return c.mem.Len() }

type Options struct {
	Width  float64
	Height float64
	Cache  TopologyCache
	Limits map[string]feeder.CurrentLimit
}

// Engine is one rendering session: it owns the topology, its scene, the
// viewport, the live-state reactor and the searcher. It is not safe for
// concurrent use; callers serialize access (see internal/session).
type Engine struct {
	width  float64
	height float64
	cache  TopologyCache
	limits map[string]feeder.CurrentLimit

	lineName string
	topo     *Topology
	cats     Categories
	scene    *Scene
	view     *Viewport
	reactor  *Reactor
	searcher *Searcher

	highlighted []*Element

	viewSub      *Subscription
	onPatch      listeners[[]Patch]
	onTransform  listeners[Matrix2D]
	closeOnce    sync.Once
	closed       bool
	showFlowDirs bool
}

// New creates an engine. Zero sizes fall back to the defaults and a nil
// cache to a fresh MemoryCache.
func New(opts Options) *Engine {
	e := &Engine{
		width:        opts.Width,
		height:       opts.Height,
		cache:        opts.Cache,
		limits:       opts.Limits,
		showFlowDirs: true,
	}
	if e.width <= 0 {
		e.width = DefaultWidth
	}
	if e.height <= 0 {
		e.height = DefaultHeight
	}
	if e.cache == nil {
		e.cache = NewMemoryCache()
	}
	return e
}

// --- Commands ---

// Load makes lineName's topology current, transforming raw only when the
// cache has no entry for the line yet.
func (e *Engine) Load(lineName string, raw *feeder.Model, ids feeder.EquipmentIDMap, phases feeder.PhaseMap) error {
	if lineName == "" {
		if f := raw.Primary(); f != nil {
			lineName = f.Name
		}
	}

	t, ok := e.cache.Get(lineName)
	if !ok {
		t = Transform(raw, ids, phases)
		if t == nil || len(t.Nodes) == 0 {
			return ErrEmptyModel
		}
		e.cache.Put(lineName, t)
	}

	e.lineName = lineName
	e.topo = t
	e.render()
	return nil
}

// Resize reprojects the current topology onto a new canvas. The view is
// reset and subscribers receive the new transform and layer visibility.
func (e *Engine) Resize(width, height float64) {
	if width <= 0 || height <= 0 {
		return
	}
	e.width, e.height = width, height
	if e.topo == nil {
		return
	}
	e.render()
	e.announceView()
}

// SetLimits replaces the current-limit table used for line widths.
func (e *Engine) SetLimits(limits map[string]feeder.CurrentLimit) {
	e.limits = limits
	if e.reactor != nil {
		e.reactor.SetLimits(limits)
	}
}

// Apply patches the scene for one live measurement.
func (e *Engine) Apply(m feeder.Measurement) []Patch {
	if e.reactor == nil {
		return nil
	}
	ps := e.reactor.Apply(m)
	e.emit(ps)
	return ps
}

// SetShowIndicator toggles the power-flow direction classes.
func (e *Engine) SetShowIndicator(on bool) []Patch {
	e.showFlowDirs = on
	if e.reactor == nil {
		return nil
	}
	ps := e.reactor.SetShowIndicator(on)
	e.emit(ps)
	return ps
}

// ResetView clears the locate highlight and returns to the identity transform.
func (e *Engine) ResetView() {
	if e.view == nil {
		return
	}
	e.clearHighlight()
	e.view.Reset()
}

func (e *Engine) SetZoom(k float64) {
	if e.view != nil {
		e.view.SetZoom(k)
	}
}

func (e *Engine) Pan(dx, dy float64) {
	if e.view != nil {
		e.view.Pan(dx, dy)
	}
}

// Search runs one incremental search keystroke.
func (e *Engine) Search(query string) []Match {
	if e.searcher == nil {
		return nil
	}
	return e.searcher.Search(query)
}

// Locate highlights a node and starts zooming to it. done runs when the zoom
// finishes, unless another zoom supersedes it first.
func (e *Engine) Locate(name string, now time.Time, done func()) error {
	if e.topo == nil {
		return ErrNodeNotFound
	}
	n, ok := e.topo.Nodes[name]
	if !ok {
		return ErrNodeNotFound
	}
	els := e.scene.NodeElements(name)
	if len(els) == 0 {
		return ErrNodeNotFound
	}

	var ps patchSet
	for _, el := range e.highlighted {
		ps.toggleClass(el, classHighlight, false)
	}
	for _, el := range els {
		ps.toggleClass(el, classHighlight, true)
	}
	e.highlighted = els
	e.emit(ps)

	x, y := n.ScreenX1, n.ScreenY1
	if r, ok := e.scene.HitBox(name); ok {
		x, y = r.Center()
	}
	e.view.ZoomTo(x, y, 2*e.view.Threshold(), LocateDuration, now, done)
	return nil
}

// Tick advances an in-flight zoom animation.
func (e *Engine) Tick(now time.Time) bool {
	if e.view == nil {
		return false
	}
	return e.view.Tick(now)
}

// Click hit-tests a canvas point and returns the control intent of the
// equipment under it, if any.
func (e *Engine) Click(x, y float64) Intent {
	n, ok := e.nodeAt(x, y)
	if !ok {
		return Intent{}
	}
	kind := controlIntent(n)
	if kind == IntentNone {
		return Intent{}
	}
	return Intent{
		Kind:  kind,
		Node:  n.Name,
		Type:  n.Type,
		MRIDs: append([]string(nil), n.MRIDs...),
		X:     x,
		Y:     y,
	}
}

// Hover returns the tooltip intent for the node under a canvas point.
func (e *Engine) Hover(x, y float64) (Intent, bool) {
	n, ok := e.nodeAt(x, y)
	if !ok {
		return Intent{}, false
	}
	return tooltipIntent(n, x, y), true
}

// --- Subscriptions ---

// OnPatch registers fn for every batch of scene patches.
func (e *Engine) OnPatch(fn func([]Patch)) *Subscription {
	return e.onPatch.add(fn)
}

// OnTransform registers fn for every viewport transform change.
func (e *Engine) OnTransform(fn func(Matrix2D)) *Subscription {
	return e.onTransform.add(fn)
}

// Close releases every subscription. Calling it again is a no-op.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.viewSub.Unsubscribe()
		e.onPatch = listeners[[]Patch]{}
		e.onTransform = listeners[Matrix2D]{}
		e.closed = true
	})
}

// --- Queries ---

func (e *Engine) Loaded() bool { return e.topo != nil }
func (e *Engine) LineName() string { return e.lineName }
func (e *Engine) Topology() *Topology { return e.topo }
func (e *Engine) Scene() *Scene { return e.scene }
func (e *Engine) Viewport() *Viewport { return e.view }
func (e *Engine) Categories() Categories { return e.cats }
func (e *Engine) Closed() bool { return e.closed }

// Transform returns the current viewport transform.
func (e *Engine) Transform() Matrix2D {
	if e.view == nil {
		return Identity()
	}
	return e.view.Transform()
}

// WriteSVG serializes the current scene.
func (e *Engine) WriteSVG(w io.Writer) error {
	if e.scene == nil {
		return ErrNotLoaded
	}
	return e.scene.WriteSVG(w)
}

// --- Internals ---

func (e *Engine) render() {
	FixLegacyOrientation(e.topo)

	p := NewProjector(e.topo, e.width, e.height)
	e.cats = Categorize(e.topo, p)
	e.scene = BuildScene(e.topo, e.cats, e.width, e.height)

	e.viewSub.Unsubscribe()
	e.view = NewViewport(e.width, e.height, len(e.topo.Nodes))
	e.view.OnLevelOfDetail(e.swapLayers)
	e.viewSub = e.view.Subscribe(e.transformChanged)

	e.reactor = NewReactor(e.topo, e.cats, e.scene, e.limits)
	if !e.showFlowDirs {
		e.reactor.SetShowIndicator(false)
	}
	e.searcher = NewSearcher(e.topo)
	e.highlighted = nil
}

// announceView publishes the whole view state of a freshly built scene,
// whether or not it differs from what subscribers last saw.
func (e *Engine) announceView() {
	m := e.view.Transform()
	detailed := e.view.Detailed()
	e.scene.Viewport.SetAttr("transform", m.SVG())
	e.emit([]Patch{
		{Target: e.scene.Viewport.ID, Op: PatchSetAttr, Name: "transform", Value: m.SVG()},
		{Target: e.scene.Symbols.ID, Op: PatchVisibility, Value: strconv.FormatBool(detailed)},
		{Target: e.scene.Dots.ID, Op: PatchVisibility, Value: strconv.FormatBool(!detailed)},
	})
	e.onTransform.notify(m)
}

func (e *Engine) swapLayers(detailed bool) {
	var ps patchSet
	ps.setHidden(e.scene.Symbols, !detailed)
	ps.setHidden(e.scene.Dots, detailed)
	e.emit(ps)
}

func (e *Engine) transformChanged(m Matrix2D) {
	var ps patchSet
	ps.setAttr(e.scene.Viewport, "transform", m.SVG())
	e.emit(ps)
	e.onTransform.notify(m)
}

func (e *Engine) clearHighlight() {
	var ps patchSet
	for _, el := range e.highlighted {
		ps.toggleClass(el, classHighlight, false)
	}
	e.highlighted = nil
	e.emit(ps)
}

func (e *Engine) nodeAt(x, y float64) (*Node, bool) {
	if e.view == nil {
		return nil, false
	}
	wx, wy := e.view.ScreenToWorld(x, y)
	name, ok := e.scene.HitTest(wx, wy, e.view.Detailed())
	if !ok {
		return nil, false
	}
	n, ok := e.topo.Nodes[name]
	return n, ok
}

func (e *Engine) emit(ps []Patch) {
	if len(ps) > 0 {
		e.onPatch.notify(ps)
	}
}
