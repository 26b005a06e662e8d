package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/engine"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/feeder"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/metrics"
)

var (
	ErrMapsPending = errors.New("session: waiting for equipment and phase maps")
	ErrClosed      = errors.New("session: closed")
)

const (
	DefaultTickInterval = 16 * time.Millisecond
	DefaultHoverDelay   = 400 * time.Millisecond

	measurementBuffer = 64
	defaultPageSize   = 10
)

type EventType string

const (
	EventPatch     EventType = "patch"
	EventTransform EventType = "transform"
	EventIntent    EventType = "intent"
	EventNotice    EventType = "notice"
	EventLoaded    EventType = "loaded"
)

// Event is what a session tells its viewers. Target, when set, names the
// one client the event is meant for.
type Event struct {
	Type      EventType      `json:"type"`
	Target    string         `json:"-"`
	LineName  string         `json:"lineName,omitempty"`
	Patches   []engine.Patch `json:"patches,omitempty"`
	Transform []float64      `json:"transform,omitempty"`
	Intent    *engine.Intent `json:"intent,omitempty"`
	Notice    string         `json:"notice,omitempty"`
}

// Sink receives events from the session goroutine. It must not block.
type Sink func(sessionID string, ev Event)

type Options struct {
	ID           string
	LineName     string
	SimulationID string
	Engine       engine.Options
	Sink         Sink
	Metrics      *metrics.Metrics
	TickInterval time.Duration
	HoverDelay   time.Duration
}

type command struct {
	fn     func() error
	result chan error
}

type hover struct {
	client string
	x, y   float64
	cancel bool
}

// Session owns one engine and serializes everything that touches it on the
// goroutine running Run: commands, measurements, animation ticks and the
// hover timer.
type Session struct {
	id           string
	lineName     string
	simulationID string
	created      time.Time

	eng     *engine.Engine
	sink    Sink
	metrics *metrics.Metrics

	tickInterval time.Duration
	hoverDelay   time.Duration

	cmds         chan command
	measurements chan []feeder.Measurement
	hovers       chan hover
	stop         chan struct{}
	done         chan struct{}
	stopOnce     sync.Once

	// Loop-owned state.
	pending   *feeder.Model
	maps      feeder.Maps
	outbox    []engine.Patch
	transform *engine.Matrix2D
}

func New(opts Options) *Session {
	s := &Session{
		id:           opts.ID,
		lineName:     opts.LineName,
		simulationID: opts.SimulationID,
		created:      time.Now(),
		eng:          engine.New(opts.Engine),
		sink:         opts.Sink,
		metrics:      opts.Metrics,
		tickInterval: opts.TickInterval,
		hoverDelay:   opts.HoverDelay,
		cmds:         make(chan command),
		measurements: make(chan []feeder.Measurement, measurementBuffer),
		hovers:       make(chan hover),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	if s.tickInterval <= 0 {
		s.tickInterval = DefaultTickInterval
	}
	if s.hoverDelay <= 0 {
		s.hoverDelay = DefaultHoverDelay
	}

	s.eng.OnPatch(func(ps []engine.Patch) { s.outbox = append(s.outbox, ps...) })
	s.eng.OnTransform(func(m engine.Matrix2D) { s.transform = &m })
	return s
}

func (s *Session) ID() string           { return s.id }
func (s *Session) LineName() string     { return s.lineName }
func (s *Session) SimulationID() string { return s.simulationID }
func (s *Session) Created() time.Time   { return s.created }

// Done is closed once Run has returned.
func (s *Session) Done() <-chan struct{} { return s.done }

// Run is the session loop. It returns when ctx is cancelled or Close is called.
func (s *Session) Run(ctx context.Context) {
	s.metrics.SessionStarted()
	defer func() {
		s.eng.Close()
		s.metrics.SessionEnded()
		close(s.done)
	}()

	var (
		ticker  *time.Ticker
		tickC   <-chan time.Time
		hoverT  *time.Timer
		hoverC  <-chan time.Time
		hoverAt hover
	)
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
		}
		ticker, tickC = nil, nil
	}
	stopHover := func() {
		if hoverT != nil {
			hoverT.Stop()
		}
		hoverT, hoverC = nil, nil
	}
	defer stopTicker()
	defer stopHover()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return

		case c := <-s.cmds:
			c.result <- c.fn()

		case ms := <-s.measurements:
			s.apply(ms)

		case h := <-s.hovers:
			stopHover()
			if h.cancel {
				break
			}
			hoverAt = h
			hoverT = time.NewTimer(s.hoverDelay)
			hoverC = hoverT.C

		case <-hoverC:
			hoverT, hoverC = nil, nil
			if in, ok := s.eng.Hover(hoverAt.x, hoverAt.y); ok {
				s.emit(Event{Type: EventIntent, Target: hoverAt.client, Intent: &in})
			}

		case <-tickC:
			if !s.eng.Tick(time.Now()) {
				stopTicker()
			}
		}

		if tickC == nil && s.animating() {
			ticker = time.NewTicker(s.tickInterval)
			tickC = ticker.C
		}
		s.flush()
	}
}

// Close stops the loop. It is safe to call more than once and before Run.
func (s *Session) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Do runs fn on the session goroutine with exclusive access to the engine.
func (s *Session) Do(ctx context.Context, fn func(e *engine.Engine) error) error {
	c := command{fn: func() error { return fn(s.eng) }, result: make(chan error, 1)}
	select {
	case s.cmds <- c:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
	select {
	case err := <-c.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
}

// Deliver queues a batch of measurements. Batches are applied in delivery order.
func (s *Session) Deliver(ctx context.Context, ms []feeder.Measurement) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.measurements <- ms:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
}

// Hover (re)starts the tooltip timer for a point. Only the latest hover in a
// session is pending; the resulting intent is addressed to client.
func (s *Session) Hover(ctx context.Context, client string, x, y float64) error {
	return s.sendHover(ctx, hover{client: client, x: x, y: y})
}

// CancelHover drops any pending tooltip, as when the pointer leaves the canvas.
func (s *Session) CancelHover(ctx context.Context) error {
	return s.sendHover(ctx, hover{cancel: true})
}

func (s *Session) sendHover(ctx context.Context, h hover) error {
	select {
	case s.hovers <- h:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
}

// --- Commands ---

// LoadModel stages a raw model. It is transformed as soon as both maps are
// present; until then ErrMapsPending is returned and the model waits.
func (s *Session) LoadModel(ctx context.Context, raw *feeder.Model) error {
	return s.Do(ctx, func(*engine.Engine) error {
		s.pending = raw
		return s.tryLoad()
	})
}

// SetMaps supplies the equipment-id and phase maps, loading a pending model.
func (s *Session) SetMaps(ctx context.Context, maps feeder.Maps) error {
	return s.Do(ctx, func(*engine.Engine) error {
		s.maps = maps
		if s.pending == nil {
			return nil
		}
		return s.tryLoad()
	})
}

func (s *Session) SetLimits(ctx context.Context, limits map[string]feeder.CurrentLimit) error {
	return s.Do(ctx, func(e *engine.Engine) error {
		e.SetLimits(limits)
		return nil
	})
}

func (s *Session) SetShowIndicator(ctx context.Context, on bool) error {
	return s.Do(ctx, func(e *engine.Engine) error {
		e.SetShowIndicator(on)
		return nil
	})
}

func (s *Session) ResetView(ctx context.Context) error {
	return s.Do(ctx, func(e *engine.Engine) error {
		e.ResetView()
		return nil
	})
}

func (s *Session) SetZoom(ctx context.Context, k float64) error {
	if k <= 0 {
		return fmt.Errorf("zoom factor must be positive, got %g", k)
	}
	return s.Do(ctx, func(e *engine.Engine) error {
		e.SetZoom(k)
		return nil
	})
}

func (s *Session) Pan(ctx context.Context, dx, dy float64) error {
	return s.Do(ctx, func(e *engine.Engine) error {
		e.Pan(dx, dy)
		return nil
	})
}

// Resize reprojects the scene. Viewers get the reset transform and a loaded
// event, since every element moved.
func (s *Session) Resize(ctx context.Context, width, height float64) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("canvas size must be positive, got %gx%g", width, height)
	}
	return s.Do(ctx, func(e *engine.Engine) error {
		e.Resize(width, height)
		if e.Loaded() {
			s.emit(Event{Type: EventLoaded, LineName: s.lineName})
		}
		return nil
	})
}

// SearchResult is one page of ranked matches.
type SearchResult struct {
	Query      string         `json:"query"`
	Matches    []engine.Match `json:"matches"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	TotalPages int            `json:"totalPages"`
}

func (s *Session) Search(ctx context.Context, query string, page, size int) (SearchResult, error) {
	if size <= 0 {
		size = defaultPageSize
	}
	var res SearchResult
	err := s.Do(ctx, func(e *engine.Engine) error {
		if !e.Loaded() {
			return engine.ErrNotLoaded
		}
		all := e.Search(query)
		matches, pages := engine.Page(all, page, size)
		res = SearchResult{
			Query:      query,
			Matches:    matches,
			Total:      len(all),
			Page:       page,
			TotalPages: pages,
		}
		return nil
	})
	return res, err
}

// Locate highlights a node and animates the view onto it. An unknown node
// leaves the view alone and is reported to viewers as a notice.
func (s *Session) Locate(ctx context.Context, name string) error {
	return s.Do(ctx, func(e *engine.Engine) error {
		err := e.Locate(name, time.Now(), nil)
		if errors.Is(err, engine.ErrNodeNotFound) {
			s.emit(Event{Type: EventNotice, Notice: fmt.Sprintf("Unable to locate node %q", name)})
		}
		return err
	})
}

func (s *Session) Click(ctx context.Context, x, y float64) (engine.Intent, error) {
	var in engine.Intent
	err := s.Do(ctx, func(e *engine.Engine) error {
		in = e.Click(x, y)
		return nil
	})
	return in, err
}

// SVG serializes the current scene.
func (s *Session) SVG(ctx context.Context) ([]byte, error) {
	var buf bytes.Buffer
	err := s.Do(ctx, func(e *engine.Engine) error {
		return e.WriteSVG(&buf)
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Info is a point-in-time summary of the session.
type Info struct {
	ID           string    `json:"id"`
	LineName     string    `json:"lineName"`
	SimulationID string    `json:"simulationId,omitempty"`
	Loaded       bool      `json:"loaded"`
	Pending      bool      `json:"pending"`
	Nodes        int       `json:"nodes"`
	Edges        int       `json:"edges"`
	Detailed     bool      `json:"detailed"`
	Transform    []float64 `json:"transform"`
	Created      time.Time `json:"created"`
}

func (s *Session) Info(ctx context.Context) (Info, error) {
	var info Info
	err := s.Do(ctx, func(e *engine.Engine) error {
		info = Info{
			ID:           s.id,
			LineName:     s.lineName,
			SimulationID: s.simulationID,
			Loaded:       e.Loaded(),
			Pending:      s.pending != nil,
			Transform:    e.Transform().ToSlice(),
			Created:      s.created,
		}
		if t := e.Topology(); t != nil {
			info.Nodes = len(t.Nodes)
			info.Edges = len(t.Edges)
		}
		if v := e.Viewport(); v != nil {
			info.Detailed = v.Detailed()
		}
		return nil
	})
	return info, err
}

// --- Loop internals ---

func (s *Session) tryLoad() error {
	if !s.maps.Ready() {
		return ErrMapsPending
	}

	raw := s.pending
	s.pending = nil

	start := time.Now()
	err := s.eng.Load(s.lineName, raw, s.maps.EquipmentIDs, s.maps.Phases)
	s.metrics.ObserveLoad(time.Since(start))
	if err != nil {
		return fmt.Errorf("load %s: %w", s.lineName, err)
	}
	if s.lineName == "" {
		s.lineName = s.eng.LineName()
	}

	slog.Info("topology loaded", "session", s.id, "line", s.lineName, "nodes", len(s.eng.Topology().Nodes))
	s.emit(Event{Type: EventLoaded, LineName: s.lineName})
	return nil
}

func (s *Session) apply(ms []feeder.Measurement) {
	for _, m := range ms {
		ps := s.eng.Apply(m)
		s.metrics.ObserveMeasurement(len(ps))
		if len(ps) == 0 {
			slog.Debug("measurement ignored", "session", s.id, "mrid", m.ConductingEquipmentMRID, "type", m.Type)
		}
	}
}

func (s *Session) animating() bool {
	v := s.eng.Viewport()
	return v != nil && v.Animating()
}

// flush sends the patches and the latest transform gathered during one loop turn.
func (s *Session) flush() {
	if len(s.outbox) > 0 {
		s.emit(Event{Type: EventPatch, Patches: s.outbox})
		s.outbox = nil
	}
	if s.transform != nil {
		s.emit(Event{Type: EventTransform, Transform: s.transform.ToSlice()})
		s.transform = nil
	}
}

func (s *Session) emit(ev Event) {
	if s.sink != nil {
		s.sink(s.id, ev)
	}
}
