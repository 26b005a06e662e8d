package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/engine"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/metrics"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/session"
)

const commandTimeout = 5 * time.Second

var ErrHubStopped = errors.New("live: hub stopped")

// Sessions finds the session a viewer attaches to.
type Sessions interface {
	Get(id string) (*session.Session, bool)
}

type Room struct {
	sessionID string
	clients   map[string]*Client // clientID -> client
	seq       int64
}

func NewRoom(sessionID string) *Room {
	return &Room{
		sessionID: sessionID,
		clients:   make(map[string]*Client),
	}
}

// Hub fans session events out to the viewers attached to each session and
// turns viewer messages into session commands.
type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]*Room // sessionID -> room
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	sessions   Sessions
	metrics    *metrics.Metrics
}

func NewHub(sessions Sessions, m *metrics.Metrics) *Hub {
	return &Hub{
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		sessions:   sessions,
		metrics:    m,
	}
}

// Run serves registrations until ctx ends. It must be called once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-ctx.Done():
			return
		}
	}
}

// Register attaches a client to its session's room. It fails once Run has
// returned.
func (h *Hub) Register(client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// Unregister detaches a client and closes its send queue. It never blocks
// on a stopped hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		h.removeClient(client)
	}
}

// Viewers returns how many clients watch a session.
func (h *Hub) Viewers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.rooms[sessionID]
	if !ok {
		return 0
	}
	return len(room.clients)
}

// Publish is the session event sink. Targeted events go to one client,
// the rest to the whole room.
func (h *Hub) Publish(sessionID string, ev session.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Error("marshal session event", "error", err, "session", sessionID)
		return
	}

	h.mu.Lock()
	room, ok := h.rooms[sessionID]
	if !ok {
		h.mu.Unlock()
		return
	}
	room.seq++
	msg := &Message{
		Type:      string(ev.Type),
		SessionID: sessionID,
		Seq:       room.seq,
		Payload:   payload,
	}
	// Sends happen under the lock so removeClient cannot close a channel
	// mid-broadcast. Send never blocks.
	defer h.mu.Unlock()
	if ev.Target != "" {
		if c, ok := room.clients[ev.Target]; ok {
			c.Send(msg)
		}
		return
	}
	for _, c := range room.clients {
		c.Send(msg)
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.SessionID]
	if !ok {
		room = NewRoom(client.SessionID)
		h.rooms[client.SessionID] = room
	}
	room.clients[client.ClientID] = client
	h.mu.Unlock()

	h.metrics.ViewerConnected()

	payload, _ := json.Marshal(WelcomePayload{
		ClientID:  client.ClientID,
		SessionID: client.SessionID,
		UserID:    client.UserID,
	})
	client.Send(&Message{Type: TypeWelcome, SessionID: client.SessionID, Payload: payload})

	slog.Info("viewer joined", "user", client.UserID, "session", client.SessionID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.SessionID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := room.clients[client.ClientID]; !ok {
		h.mu.Unlock()
		return
	}

	delete(room.clients, client.ClientID)
	close(client.send)

	if len(room.clients) == 0 {
		delete(h.rooms, client.SessionID)
	}
	h.mu.Unlock()

	h.metrics.ViewerDisconnected()
	slog.Info("viewer left", "user", client.UserID, "session", client.SessionID)
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	s, ok := h.sessions.Get(sender.SessionID)
	if !ok {
		sender.sendError(msg.Seq, "session no longer exists")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	reply, err := h.dispatch(ctx, s, sender, msg)
	if err != nil {
		if !errors.Is(err, engine.ErrNodeNotFound) {
			slog.Warn("viewer command failed", "type", msg.Type, "session", sender.SessionID, "error", err)
		}
		sender.sendError(msg.Seq, err.Error())
		return
	}
	if reply == nil {
		reply = &Message{Type: TypeAck, SessionID: sender.SessionID, Seq: msg.Seq}
	}
	sender.Send(reply)
}

func (h *Hub) dispatch(ctx context.Context, s *session.Session, sender *Client, msg *Message) (*Message, error) {
	switch msg.Type {
	case TypeViewReset:
		return nil, s.ResetView(ctx)

	case TypeViewZoom:
		var p ZoomPayload
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		return nil, s.SetZoom(ctx, p.K)

	case TypeViewPan:
		var p PanPayload
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		return nil, s.Pan(ctx, p.DX, p.DY)

	case TypeViewResize:
		var p ResizePayload
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		return nil, s.Resize(ctx, p.Width, p.Height)

	case TypeSearch:
		var p SearchPayload
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		res, err := s.Search(ctx, p.Query, p.Page, p.Size)
		if err != nil {
			return nil, err
		}
		return reply(TypeSearchResult, msg, res)

	case TypeLocate:
		var p LocatePayload
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		return nil, s.Locate(ctx, p.Name)

	case TypeClick:
		var p PointPayload
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		in, err := s.Click(ctx, p.X, p.Y)
		if err != nil {
			return nil, err
		}
		return reply(TypeClickResult, msg, in)

	case TypeHover:
		var p PointPayload
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		return nil, s.Hover(ctx, sender.ClientID, p.X, p.Y)

	case TypeHoverEnd:
		return nil, s.CancelHover(ctx)

	case TypeIndicator:
		var p IndicatorPayload
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		return nil, s.SetShowIndicator(ctx, p.On)

	default:
		slog.Warn("unknown message type", "type", msg.Type, "user", sender.UserID)
		return nil, fmt.Errorf("unknown message type %q", msg.Type)
	}
}

func decode(msg *Message, v any) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("%s: invalid payload: %w", msg.Type, err)
	}
	return nil
}

func reply(typ string, req *Message, v any) (*Message, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", typ, err)
	}
	return &Message{Type: typ, SessionID: req.SessionID, Seq: req.Seq, Payload: payload}, nil
}
