package sessiond

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/turboinfra/agent-core/internal/refine"
	"github.com/turboinfra/agent-core/internal/workload"
	"github.com/turboinfra/agent-core/pkg/logger"
)

type HTTPServer struct {
	mux    *http.ServeMux
	store  *SessionStore
	runner *SessionRunner
}

func NewHTTPServer(store *SessionStore, runner *SessionRunner) *HTTPServer {
	s := &HTTPServer{
		mux:    http.NewServeMux(),
		store:  store,
		runner: runner,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/sessions", s.handleSessions)
	s.mux.HandleFunc("/v1/sessions/", s.handleSessionByID)

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// handleSessions handles /v1/sessions
func (s *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateSession(w, r)
	case http.MethodGet:
		s.handleListSessions(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleSessionByID handles /v1/sessions/{id} and related endpoints
func (s *HTTPServer) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "session ID is required")
		return
	}

	if strings.HasSuffix(path, ":start") {
		sessionID := strings.TrimSuffix(path, ":start")
		if r.Method == http.MethodPost {
			s.handleStartSession(w, r, sessionID)
		} else {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if strings.HasSuffix(path, ":cancel") {
		sessionID := strings.TrimSuffix(path, ":cancel")
		if r.Method == http.MethodPost {
			s.handleCancelSession(w, r, sessionID)
		} else {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if strings.HasSuffix(path, "/history") {
		sessionID := strings.TrimSuffix(path, "/history")
		if r.Method == http.MethodGet {
			s.handleSessionHistory(w, r, sessionID)
		} else {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if strings.HasSuffix(path, "/metrics") {
		sessionID := strings.TrimSuffix(path, "/metrics")
		if r.Method == http.MethodGet {
			s.handleSessionMetrics(w, r, sessionID)
		} else {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if r.Method == http.MethodGet {
		s.handleGetSession(w, r, path)
	} else {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleCreateSession handles POST /v1/sessions
func (s *HTTPServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID    string `json:"session_id,omitempty"`
		WorkloadYAML string `json:"workload_yaml"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.WorkloadYAML == "" {
		s.writeError(w, http.StatusBadRequest, "workload_yaml is required")
		return
	}

	rec, err := s.runner.Create(req.SessionID, req.WorkloadYAML)
	if err != nil {
		var verr *workload.ValidationError
		switch {
		case errors.As(err, &verr):
			s.writeError(w, http.StatusBadRequest, err.Error())
		case strings.Contains(err.Error(), "already exists"):
			s.writeError(w, http.StatusConflict, err.Error())
		case strings.Contains(err.Error(), "parse"):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	logger.Info("session created (HTTP)", "session_id", rec.ID)
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"session": convertSessionToJSON(rec),
	})
}

// handleListSessions handles GET /v1/sessions
func (s *HTTPServer) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
			if limit > 1000 {
				limit = 1000
			}
		}
	}

	records := s.store.List(limit)
	sessionsJSON := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		sessionsJSON = append(sessionsJSON, convertSessionToJSON(rec))
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessionsJSON,
		"count":    len(records),
	})
}

// handleGetSession handles GET /v1/sessions/{id}
func (s *HTTPServer) handleGetSession(w http.ResponseWriter, _ *http.Request, sessionID string) {
	rec, ok := s.store.Get(sessionID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"session": convertSessionToJSON(rec),
	})
}

// handleStartSession handles POST /v1/sessions/{id}:start
func (s *HTTPServer) handleStartSession(w http.ResponseWriter, _ *http.Request, sessionID string) {
	rec, err := s.runner.Start(sessionID)
	if err != nil {
		s.writeRunnerError(w, err)
		return
	}

	logger.Info("session started (HTTP)", "session_id", sessionID)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"session": convertSessionToJSON(rec),
	})
}

// handleCancelSession handles POST /v1/sessions/{id}:cancel
func (s *HTTPServer) handleCancelSession(w http.ResponseWriter, _ *http.Request, sessionID string) {
	rec, err := s.runner.Cancel(sessionID)
	if err != nil {
		s.writeRunnerError(w, err)
		return
	}

	logger.Info("session cancelled (HTTP)", "session_id", sessionID)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"session": convertSessionToJSON(rec),
	})
}

// handleSessionHistory handles GET /v1/sessions/{id}/history
func (s *HTTPServer) handleSessionHistory(w http.ResponseWriter, _ *http.Request, sessionID string) {
	rec, ok := s.store.Get(sessionID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}

	snap := rec.Snapshot()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"history":    snap.History,
		"summary":    refine.SummarizeHistory(snap.History),
	})
}

// handleSessionMetrics handles GET /v1/sessions/{id}/metrics
func (s *HTTPServer) handleSessionMetrics(w http.ResponseWriter, r *http.Request, sessionID string) {
	rec, ok := s.store.Get(sessionID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}

	if metricName := r.URL.Query().Get("metric"); metricName != "" {
		points := rec.Timeline.Series(metricName)
		if points == nil {
			s.writeError(w, http.StatusPreconditionFailed, "metric not recorded")
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{
			"session_id": sessionID,
			"metric":     metricName,
			"points":     points,
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"metrics":    rec.Timeline.Names(),
		"summary":    rec.Timeline.Summary(),
	})
}

func (s *HTTPServer) writeRunnerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSessionIDMissing):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrSessionTerminal):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}

func convertSessionToJSON(rec *SessionRecord) map[string]any {
	snap := rec.Snapshot()
	out := map[string]any{
		"id":                   rec.ID,
		"workload":             rec.Model.Name(),
		"hardware":             rec.Model.Hardware().ID,
		"objective":            string(rec.Model.Objective()),
		"status":               string(snap.Status),
		"iteration":            snap.Iteration,
		"non_improving":        snap.NonImproving,
		"consecutive_failures": snap.ConsecutiveFailures,
		"created_at_unix_ms":   rec.CreatedAtUnixMs,
	}
	if snap.StopReason != "" {
		out["stop_reason"] = snap.StopReason
	}
	if snap.Best != nil {
		out["best"] = snap.Best
	}
	return out
}
