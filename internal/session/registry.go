package session

import (
	"context"
	"sort"
	"sync"

	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/engine"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/metrics"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/typeid"
)

type RegistryOptions struct {
	Width   float64
	Height  float64
	Cache   engine.TopologyCache
	Metrics *metrics.Metrics
}

// Registry tracks the running sessions. Sessions outlive the request that
// created them and stop when removed or when the registry's context ends.
type Registry struct {
	ctx  context.Context
	opts RegistryOptions

	mu       sync.RWMutex
	sessions map[string]*Session
	sink     Sink
}

func NewRegistry(ctx context.Context, opts RegistryOptions) *Registry {
	if opts.Cache == nil {
		opts.Cache = engine.NewSharedCache()
	}
	return &Registry{
		ctx:      ctx,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// SetSink routes the events of sessions created from now on.
func (r *Registry) SetSink(sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = sink
}

// Create starts a new session for a line.
func (r *Registry) Create(lineName, simulationID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := New(Options{
		ID:           typeid.NewSessionID(),
		LineName:     lineName,
		SimulationID: simulationID,
		Engine: engine.Options{
			Width:  r.opts.Width,
			Height: r.opts.Height,
			Cache:  r.opts.Cache,
		},
		Sink:    r.sink,
		Metrics: r.opts.Metrics,
	})
	r.sessions[s.id] = s
	go s.Run(r.ctx)
	return s
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove closes a session and waits for its loop to exit.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return false
	}
	s.Close()
	<-s.Done()
	return true
}

// List returns the sessions ordered by creation time.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].created.Before(out[j].created) })
	return out
}

// BySimulation returns the sessions fed by one simulation's measurement stream.
func (r *Registry) BySimulation(simulationID string) []*Session {
	var out []*Session
	for _, s := range r.List() {
		if s.simulationID == simulationID {
			out = append(out, s)
		}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll stops every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
	for _, s := range all {
		<-s.Done()
	}
}
