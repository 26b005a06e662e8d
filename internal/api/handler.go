package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/engine"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/feeder"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/limits"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/modelsource"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/session"
)

const (
	maxBodyBytes   = 8 << 20
	requestTimeout = 10 * time.Second
)

type Handler struct {
	sessions *session.Registry
	models   modelsource.Fetcher
	limits   limits.Source
	mapsDir  string
}

func NewHandler(sessions *session.Registry, models modelsource.Fetcher, limitSrc limits.Source, mapsDir string) *Handler {
	return &Handler{
		sessions: sessions,
		models:   models,
		limits:   limitSrc,
		mapsDir:  mapsDir,
	}
}

type createSessionRequest struct {
	LineName     string       `json:"lineName"`
	SimulationID string       `json:"simulationId"`
	Maps         *feeder.Maps `json:"maps,omitempty"`
}

type createSessionResponse struct {
	session.Info
	Status string `json:"status"`
}

// CreateSession starts a session for a line, fetches its model and loads it
// once the equipment and phase maps are known.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.LineName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lineName is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	raw, err := h.models.Fetch(ctx, req.LineName)
	if err != nil {
		handleError(w, err)
		return
	}

	s := h.sessions.Create(req.LineName, req.SimulationID)
	slog.Info("session created", "session", s.ID(), "line", req.LineName, "simulation", req.SimulationID)

	if h.limits != nil {
		if l, err := h.limits.Limits(ctx, req.LineName); err != nil {
			slog.Warn("current limits unavailable", "line", req.LineName, "error", err)
		} else if err := s.SetLimits(ctx, l); err != nil {
			h.fail(w, s, err)
			return
		}
	}

	maps, ok := h.initialMaps(req)
	if ok {
		if err := s.SetMaps(ctx, maps); err != nil {
			h.fail(w, s, err)
			return
		}
	}

	status, code := "loaded", http.StatusCreated
	if err := s.LoadModel(ctx, raw); err != nil {
		if !errors.Is(err, session.ErrMapsPending) {
			h.fail(w, s, err)
			return
		}
		status, code = "pending", http.StatusAccepted
	}

	info, err := s.Info(ctx)
	if err != nil {
		h.fail(w, s, err)
		return
	}
	writeJSON(w, code, createSessionResponse{Info: info, Status: status})
}

func (h *Handler) initialMaps(req createSessionRequest) (feeder.Maps, bool) {
	if req.Maps != nil {
		return *req.Maps, true
	}
	if h.mapsDir == "" {
		return feeder.Maps{}, false
	}
	maps, err := modelsource.LoadMaps(h.mapsDir, req.LineName)
	if err != nil {
		slog.Debug("no maps on disk", "line", req.LineName, "error", err)
		return feeder.Maps{}, false
	}
	return maps, true
}

// fail tears down a half-built session and reports err.
func (h *Handler) fail(w http.ResponseWriter, s *session.Session, err error) {
	h.sessions.Remove(s.ID())
	handleError(w, err)
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	all := h.sessions.List()
	out := make([]session.Info, 0, len(all))
	for _, s := range all {
		info, err := s.Info(r.Context())
		if err != nil {
			continue
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *session.Session) {
		info, err := s.Info(r.Context())
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	})
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionId"]
	if !h.sessions.Remove(id) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) PutMaps(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *session.Session) {
		var maps feeder.Maps
		if err := decodeBody(r, &maps); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if err := s.SetMaps(r.Context(), maps); err != nil {
			handleError(w, err)
			return
		}
		info, err := s.Info(r.Context())
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	})
}

func (h *Handler) SceneSVG(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *session.Session) {
		svg, err := s.SVG(r.Context())
		if err != nil {
			handleError(w, err)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.WriteHeader(http.StatusOK)
		w.Write(svg)
	})
}

func (h *Handler) ResetView(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *session.Session) {
		respond(w, s.ResetView(r.Context()))
	})
}

type zoomRequest struct {
	K float64 `json:"k"`
}

func (h *Handler) Zoom(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *session.Session) {
		var req zoomRequest
		if err := decodeBody(r, &req); err != nil || req.K <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "k must be a positive number"})
			return
		}
		respond(w, s.SetZoom(r.Context(), req.K))
	})
}

type panRequest struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

func (h *Handler) Pan(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *session.Session) {
		var req panRequest
		if err := decodeBody(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		respond(w, s.Pan(r.Context(), req.DX, req.DY))
	})
}

type sizeRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (h *Handler) Resize(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *session.Session) {
		var req sizeRequest
		if err := decodeBody(r, &req); err != nil || req.Width <= 0 || req.Height <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "width and height must be positive"})
			return
		}
		respond(w, s.Resize(r.Context(), req.Width, req.Height))
	})
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *session.Session) {
		q := r.URL.Query()
		page, err := intParam(q.Get("page"), 0)
		if err != nil || page < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid page"})
			return
		}
		size, err := intParam(q.Get("size"), 0)
		if err != nil || size < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid size"})
			return
		}

		res, err := s.Search(r.Context(), q.Get("q"), page, size)
		if err != nil {
			handleError(w, err)
			return
		}
		if res.Matches == nil {
			res.Matches = []engine.Match{}
		}
		writeJSON(w, http.StatusOK, res)
	})
}

type locateRequest struct {
	Name string `json:"name"`
}

func (h *Handler) Locate(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *session.Session) {
		var req locateRequest
		if err := decodeBody(r, &req); err != nil || req.Name == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
			return
		}
		respond(w, s.Locate(r.Context(), req.Name))
	})
}

// PostMeasurements accepts a JSON array of measurements or a single one.
func (h *Handler) PostMeasurements(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *session.Session) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		ms, err := feeder.DecodeMeasurements(data)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if err := s.Deliver(r.Context(), ms); err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]int{"accepted": len(ms)})
	})
}

type pointRequest struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	ClientID string  `json:"clientId,omitempty"`
}

func (h *Handler) Click(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *session.Session) {
		var req pointRequest
		if err := decodeBody(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		in, err := s.Click(r.Context(), req.X, req.Y)
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, in)
	})
}

// Hover starts the tooltip timer. The intent arrives over the websocket of
// clientId once the pointer has rested long enough.
func (h *Handler) Hover(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *session.Session) {
		var req pointRequest
		if err := decodeBody(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if err := s.Hover(r.Context(), req.ClientID, req.X, req.Y); err != nil {
			handleError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
}

type indicatorRequest struct {
	On bool `json:"on"`
}

func (h *Handler) SetIndicator(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *session.Session) {
		var req indicatorRequest
		if err := decodeBody(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		respond(w, s.SetShowIndicator(r.Context(), req.On))
	})
}

func (h *Handler) withSession(w http.ResponseWriter, r *http.Request, fn func(s *session.Session)) {
	s, ok := h.sessions.Get(mux.Vars(r)["sessionId"])
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	fn(s)
}

func respond(w http.ResponseWriter, err error) {
	if err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrNodeNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "node not found"})
	case errors.Is(err, modelsource.ErrModelNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "model not found"})
	case errors.Is(err, modelsource.ErrInvalidLine):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid line name"})
	case errors.Is(err, engine.ErrEmptyModel):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "model has no nodes"})
	case errors.Is(err, engine.ErrNotLoaded), errors.Is(err, session.ErrMapsPending):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "topology not loaded yet"})
	case errors.Is(err, session.ErrClosed):
		writeJSON(w, http.StatusGone, map[string]string{"error": "session closed"})
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "timed out"})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
