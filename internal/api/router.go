package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/auth"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/metrics"
)

type RouterConfig struct {
	Handler   *Handler
	Auth      *auth.Service
	Metrics   *metrics.Metrics
	Websocket http.Handler
	Origins   []string
}

func NewRouter(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()

	r.Use(Recovery)
	r.Use(Logger(cfg.Metrics))
	r.Use(CORS(cfg.Origins))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	r.Handle("/metrics", cfg.Metrics.Handler()).Methods("GET")

	if cfg.Websocket != nil {
		r.Handle("/ws/sessions/{sessionId}", cfg.Websocket)
	}

	h := cfg.Handler
	authHandler := auth.NewHandler(cfg.Auth)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(cfg.Auth.AuthMiddleware)

	api.HandleFunc("/me", authHandler.Whoami).Methods("GET")

	api.HandleFunc("/sessions", h.ListSessions).Methods("GET")
	api.HandleFunc("/sessions", h.CreateSession).Methods("POST", "OPTIONS")
	api.HandleFunc("/sessions/{sessionId}", h.GetSession).Methods("GET")
	api.HandleFunc("/sessions/{sessionId}", h.DeleteSession).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/sessions/{sessionId}/maps", h.PutMaps).Methods("PUT", "OPTIONS")
	api.HandleFunc("/sessions/{sessionId}/scene.svg", h.SceneSVG).Methods("GET")
	api.HandleFunc("/sessions/{sessionId}/view/reset", h.ResetView).Methods("POST", "OPTIONS")
	api.HandleFunc("/sessions/{sessionId}/view/zoom", h.Zoom).Methods("POST", "OPTIONS")
	api.HandleFunc("/sessions/{sessionId}/view/pan", h.Pan).Methods("POST", "OPTIONS")
	api.HandleFunc("/sessions/{sessionId}/view/size", h.Resize).Methods("PUT", "OPTIONS")
	api.HandleFunc("/sessions/{sessionId}/search", h.Search).Methods("GET")
	api.HandleFunc("/sessions/{sessionId}/locate", h.Locate).Methods("POST", "OPTIONS")
	api.HandleFunc("/sessions/{sessionId}/measurements", h.PostMeasurements).Methods("POST", "OPTIONS")
	api.HandleFunc("/sessions/{sessionId}/click", h.Click).Methods("POST", "OPTIONS")
	api.HandleFunc("/sessions/{sessionId}/hover", h.Hover).Methods("POST", "OPTIONS")
	api.HandleFunc("/sessions/{sessionId}/indicator", h.SetIndicator).Methods("PUT", "OPTIONS")

	return r
}
