// Package api exposes the orchestrator over HTTP: a message endpoint,
// session metrics and trace inspection, Prometheus metrics, and a live
// trace-event feed over websocket.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mkarlsen/stagehand/internal/observability"
	"github.com/mkarlsen/stagehand/pkg/orchestrator"
	"github.com/mkarlsen/stagehand/pkg/trace"
)

// Server is the HTTP front of the orchestrator.
type Server struct {
	orch        *orchestrator.Orchestrator
	tracer      *trace.Tracer
	broadcaster *Broadcaster
	server      *http.Server
	upgrader    websocket.Upgrader
	logger      zerolog.Logger
}

// Config holds server configuration.
type Config struct {
	Host         string
	Port         int
	Orchestrator *orchestrator.Orchestrator
	Tracer       *trace.Tracer
	Logger       zerolog.Logger
}

// NewServer creates the HTTP server and installs the trace-feed notifier.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}

	s := &Server{
		orch:        cfg.Orchestrator,
		tracer:      cfg.Tracer,
		broadcaster: NewBroadcaster(cfg.Logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: cfg.Logger.With().Str("component", "api").Logger(),
	}

	if s.tracer != nil {
		s.tracer.SetNotifier(s.broadcaster.BroadcastTraceEvent)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/messages", s.handleMessage)
	mux.HandleFunc("GET /v1/sessions/{id}/metrics", s.handleSessionMetrics)
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleClearSession)
	mux.HandleFunc("GET /v1/traces", s.handleTraces)
	mux.HandleFunc("GET /ws/traces", s.handleTraceFeed)
	mux.Handle("GET /metrics", observability.MetricsHandler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("api server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type messageRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id,omitempty"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "message and session_id are required")
		return
	}

	resp := s.orch.Process(r.Context(), req.Message, req.SessionID, req.UserID)
	status := http.StatusOK
	if !resp.Success {
		if kind, _ := resp.Metadata["error_kind"].(string); kind == orchestrator.ErrKindBudget {
			status = http.StatusTooManyRequests
		}
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleSessionMetrics(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	summary := s.orch.GetSessionMetrics(sessionID)
	if summary == nil {
		writeError(w, http.StatusNotFound, "no metrics for session")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	s.orch.ClearSession(sessionID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTraces(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		fmt.Sscanf(raw, "%d", &limit)
	}

	traces := s.orch.GetRecentTraces(limit)
	out := make([]trace.Trace, 0, len(traces))
	for _, tr := range traces {
		out = append(out, tr.Snapshot())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"traces": out,
		"count":  len(out),
	})
}

// handleTraceFeed upgrades to websocket and streams trace events until the
// client disconnects.
func (s *Server) handleTraceFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := s.broadcaster.add(conn)
	defer s.broadcaster.remove(client)

	// Reads are discarded; the read loop only detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug().Err(err).Msg("trace feed client closed abnormally")
			}
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
