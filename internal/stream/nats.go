package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/feeder"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/session"
)

const deliverTimeout = 2 * time.Second

// Sessions finds the sessions fed by a simulation.
type Sessions interface {
	BySimulation(simulationID string) []*session.Session
}

type Config struct {
	URL            string
	Name           string
	SubjectPrefix  string
	ReconnectWait  time.Duration
	MaxReconnects  int
	ConnectTimeout time.Duration
}

// Subscriber consumes measurement messages published on
// <prefix>.<simulationID> and hands them to the matching sessions.
type Subscriber struct {
	conn     *nats.Conn
	prefix   string
	sessions Sessions

	mu  sync.Mutex
	sub *nats.Subscription
}

func Connect(cfg Config, sessions Sessions) (*Subscriber, error) {
	if cfg.Name == "" {
		cfg.Name = "gridappsd-viz-" + uuid.New().String()[:8]
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = -1
	}

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	return newSubscriber(conn, cfg.SubjectPrefix, sessions), nil
}

func newSubscriber(conn *nats.Conn, prefix string, sessions Sessions) *Subscriber {
	return &Subscriber{
		conn:     conn,
		prefix:   strings.TrimSuffix(prefix, "."),
		sessions: sessions,
	}
}

// Subject is where measurements for one simulation are published.
func (s *Subscriber) Subject(simulationID string) string {
	return s.prefix + "." + simulationID
}

// Start subscribes to every simulation under the prefix.
func (s *Subscriber) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub != nil {
		return fmt.Errorf("already subscribed to %s.*", s.prefix)
	}

	sub, err := s.conn.Subscribe(s.prefix+".*", func(msg *nats.Msg) {
		s.handle(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s.*: %w", s.prefix, err)
	}
	s.sub = sub
	slog.Info("listening for measurements", "subject", s.prefix+".*")
	return nil
}

// Close drains the subscription and the connection.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub != nil {
		_ = s.sub.Unsubscribe()
		s.sub = nil
	}
	if s.conn != nil {
		_ = s.conn.Drain()
	}
}

func (s *Subscriber) simulationID(subject string) (string, bool) {
	id, ok := strings.CutPrefix(subject, s.prefix+".")
	if !ok || id == "" || strings.Contains(id, ".") {
		return "", false
	}
	return id, true
}

func (s *Subscriber) handle(subject string, data []byte) int {
	simID, ok := s.simulationID(subject)
	if !ok {
		slog.Debug("ignoring measurement on unexpected subject", "subject", subject)
		return 0
	}

	ms, err := feeder.DecodeMeasurements(data)
	if err != nil {
		slog.Debug("dropping malformed measurement message", "simulation", simID, "error", err)
		return 0
	}

	delivered := 0
	for _, sess := range s.sessions.BySimulation(simID) {
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		err := sess.Deliver(ctx, ms)
		cancel()
		if err != nil {
			slog.Warn("measurement delivery failed", "session", sess.ID(), "simulation", simID, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}
