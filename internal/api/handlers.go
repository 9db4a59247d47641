package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"policybot/internal/index"
	"policybot/internal/llm"
	"policybot/internal/loader"
	"policybot/internal/service"
)

const maxChatBody = 64 << 10

type chatRequest struct {
	Question string `json:"question"`
}

type chatResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if !s.service.Ready() {
		status = "no_index"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBody)
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	ans, err := s.service.Ask(r.Context(), req.Question)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	sources := ans.Sources
	if sources == nil {
		sources = []string{}
	}
	writeJSON(w, http.StatusOK, chatResponse{Answer: ans.Text, Sources: sources})
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.Reindex(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !s.service.Ready() {
		jsonError(w, index.ErrIndexNotFound.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Stats())
}

// writeServiceError maps service failures to HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyQuestion):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, index.ErrIndexNotFound), errors.Is(err, llm.ErrUnavailable):
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, loader.ErrDataDirNotFound), errors.Is(err, loader.ErrNoDocuments):
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		s.log.Error("request failed", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
