package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	maxMsgSize = 64 * 1024
	sendBuffer = 256
)

// Client is one viewer attached to a session over a websocket.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan *Message
	UserID    string
	SessionID string
	ClientID  string
}

func NewClient(hub *Hub, conn *websocket.Conn, userID, sessionID, clientID string) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan *Message, sendBuffer),
		UserID:    userID,
		SessionID: sessionID,
		ClientID:  clientID,
	}
}

// ReadPump turns viewer frames into session commands until the connection
// drops. A bad frame is answered with an error and the connection stays up.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMsgSize)

	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				slog.Debug("viewer read failed", "error", err, "client", c.ClientID)
			}
			return
		}
		if typ != websocket.MessageText {
			c.SendError("only text frames are accepted")
			continue
		}

		msg, err := c.decodeCommand(data)
		if err != nil {
			slog.Debug("rejected viewer frame", "error", err, "client", c.ClientID)
			c.SendError(err.Error())
			continue
		}
		c.hub.handleMessage(c, msg)
	}
}

// decodeCommand parses a frame and stamps the sender's identity on it; the
// identity fields a viewer sends are never trusted.
func (c *Client) decodeCommand(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	if msg.Type == "" {
		return nil, errors.New("message type is required")
	}
	if !isCommand(msg.Type) {
		return nil, fmt.Errorf("unknown message type %q", msg.Type)
	}
	msg.UserID = c.UserID
	msg.ClientID = c.ClientID
	msg.SessionID = c.SessionID
	return &msg, nil
}

// WritePump delivers queued messages and keeps the connection alive. It
// returns when the hub drops the client or the connection fails.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := wsjson.Write(writeCtx, c.conn, msg)
			cancel()
			if err != nil {
				slog.Debug("viewer write failed", "error", err, "client", c.ClientID, "type", msg.Type)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				slog.Debug("viewer ping failed", "error", err, "client", c.ClientID)
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// Send queues a message. A viewer that cannot keep up loses messages
// rather than stalling the session. Queued messages are shared between
// viewers and must not be modified.
func (c *Client) Send(msg *Message) {
	select {
	case c.send <- msg:
	default:
		slog.Warn("viewer send buffer full, dropping message", "client", c.ClientID, "type", msg.Type)
	}
}

func (c *Client) SendError(message string) {
	c.sendError(0, message)
}

func (c *Client) sendError(seq int64, message string) {
	payload, _ := json.Marshal(ErrorPayload{Message: message})
	c.Send(&Message{Type: TypeError, SessionID: c.SessionID, Seq: seq, Payload: payload})
}
