package auth

import (
	"encoding/json"
	"net/http"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type whoamiResponse struct {
	Subject     string `json:"subject,omitempty"`
	AuthEnabled bool   `json:"authEnabled"`
}

// Whoami reports the subject the request was authenticated as.
func (h *Handler) Whoami(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, whoamiResponse{
		Subject:     SubjectFromContext(r.Context()),
		AuthEnabled: h.service.Enabled(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
