// Package server exposes the clustering pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/grykalski/keyword-clusterer/clusterer"
	"github.com/grykalski/keyword-clusterer/store"
)

// Pipeline is the clustering entry point the server drives. Satisfied by
// *clusterer.Clusterer.
type Pipeline interface {
	Cluster(ctx context.Context, phrases []clusterer.Phrase) (*clusterer.Result, error)
}

// Storage persists and reads back clustering runs. Satisfied by *store.Store.
// A nil Storage disables persistence; clustering still works.
type Storage interface {
	SaveResult(ctx context.Context, res *clusterer.Result) (string, error)
	GetRun(ctx context.Context, sessionID string) (*store.Run, error)
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
}

// Server handles clustering requests.
type Server struct {
	pipeline Pipeline
	storage  Storage
	logger   zerolog.Logger
}

// New creates a Server. storage may be nil.
func New(pipeline Pipeline, storage Storage, logger zerolog.Logger) *Server {
	return &Server{pipeline: pipeline, storage: storage, logger: logger}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))

	r.Get("/api/health", s.handleHealth)
	r.Post("/api/cluster", s.handleCluster)
	r.Get("/api/cluster", s.handleListRuns)
	r.Get("/api/cluster/{sessionID}", s.handleGetRun)

	return r
}

type clusterRequest struct {
	Phrases []string `json:"phrases"`
	Source  string   `json:"source,omitempty"`
}

type clusterResponse struct {
	SessionID string            `json:"session_id,omitempty"`
	Result    *clusterer.Result `json:"result"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCluster(w http.ResponseWriter, r *http.Request) {
	var req clusterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	phrases := make([]clusterer.Phrase, len(req.Phrases))
	for i, text := range req.Phrases {
		phrases[i] = clusterer.Phrase{Text: text, Source: req.Source}
	}

	res, err := s.pipeline.Cluster(r.Context(), phrases)
	if err != nil {
		s.writeClusterError(w, err)
		return
	}

	resp := clusterResponse{Result: res}
	if s.storage != nil {
		sessionID, err := s.storage.SaveResult(r.Context(), res)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to persist clustering run")
		} else {
			resp.SessionID = sessionID
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "persistence is not configured"})
		return
	}

	run, err := s.storage.GetRun(r.Context(), chi.URLParam(r, "sessionID"))
	if errors.Is(err, store.ErrRunNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "run not found"})
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load clustering run")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load run"})
		return
	}

	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		writeJSON(w, http.StatusOK, []store.Run{})
		return
	}

	runs, err := s.storage.ListRuns(r.Context(), 50)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list clustering runs")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list runs"})
		return
	}

	writeJSON(w, http.StatusOK, runs)
}

// writeClusterError maps pipeline failures to HTTP statuses: unusable input is
// the caller's fault, a missing embedding provider is an upstream outage.
func (s *Server) writeClusterError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, clusterer.ErrNoPhrases):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, clusterer.ErrEmbeddingUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	default:
		s.logger.Error().Err(err).Msg("clustering failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "clustering failed"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
