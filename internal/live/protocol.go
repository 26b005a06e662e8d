package live

import "encoding/json"

type Message struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	ClientID  string          `json:"clientId,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	Seq       int64           `json:"seq,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

const (
	// Connection
	TypeWelcome = "welcome"
	TypeError   = "error"

	// Session events, server -> viewer
	TypePatch     = "patch"
	TypeTransform = "transform"
	TypeIntent    = "intent"
	TypeNotice    = "notice"
	TypeLoaded    = "loaded"

	// Viewer commands
	TypeViewReset  = "view.reset"
	TypeViewZoom   = "view.zoom"
	TypeViewPan    = "view.pan"
	TypeViewResize = "view.resize"
	TypeSearch     = "search"
	TypeLocate     = "locate"
	TypeClick      = "click"
	TypeHover      = "hover"
	TypeHoverEnd   = "hover.end"
	TypeIndicator  = "indicator"

	// Replies to the sender only
	TypeSearchResult = "search.result"
	TypeClickResult  = "click.result"
	TypeAck          = "ack"
)

var commands = map[string]bool{
	TypeViewReset:  true,
	TypeViewZoom:   true,
	TypeViewPan:    true,
	TypeViewResize: true,
	TypeSearch:     true,
	TypeLocate:     true,
	TypeClick:      true,
	TypeHover:      true,
	TypeHoverEnd:   true,
	TypeIndicator:  true,
}

// isCommand reports whether a viewer may send messages of type t.
func isCommand(t string) bool { return commands[t] }

type WelcomePayload struct {
	ClientID  string `json:"clientId"`
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type ZoomPayload struct {
	K float64 `json:"k"`
}

type PanPayload struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

type ResizePayload struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type SearchPayload struct {
	Query string `json:"query"`
	Page  int    `json:"page"`
	Size  int    `json:"size"`
}

type LocatePayload struct {
	Name string `json:"name"`
}

type PointPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type IndicatorPayload struct {
	On bool `json:"on"`
}
