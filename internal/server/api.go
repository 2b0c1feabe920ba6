// Package server exposes the editing engine over HTTP for the visual
// frontend: a JSON API for graph reads and edits, and a Server-Sent Events
// stream pushing graph changes and cycle progress.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hheimbuerger/code-brainstormer-lm/internal/generate"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/metrics"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/model"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/scan"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/snapshot"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/store"
)

// Config holds server configuration.
type Config struct {
	ListenAddr string // e.g. ":8420"
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{ListenAddr: ":8420"}
}

// Persister saves the current graph state after a mutation. The CLI wires
// the project file here; tests use a no-op.
type Persister func(p *model.Project) error

// Server is the editor-facing HTTP server. Edits are serialized: one
// generation cycle runs to completion before the next edit is accepted.
type Server struct {
	config       *Config
	store        *store.Store
	orchestrator *generate.Orchestrator
	executor     *generate.Executor
	hub          *Hub
	stats        *metrics.SessionMetrics
	persist      Persister
	log          *slog.Logger
	server       *http.Server

	editMu sync.Mutex
}

// NewServer creates the HTTP server over the given engine pieces. persist
// may be nil when no project file backs the session.
func NewServer(config *Config, s *store.Store, orch *generate.Orchestrator, exec *generate.Executor, persist Persister) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	srv := &Server{
		config:       config,
		store:        s,
		orchestrator: orch,
		executor:     exec,
		hub:          NewHub(),
		stats:        metrics.New(),
		persist:      persist,
		log:          slog.Default(),
	}

	// Every store mutation, whatever its source, reaches the frontends.
	s.Subscribe(func() {
		srv.hub.Broadcast(&Event{
			Type:      "graph.changed",
			Timestamp: time.Now(),
			Data:      map[string]int{"functions": s.Len()},
		})
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/api/graph", srv.handleGraph)
	mux.HandleFunc("/api/functions", srv.handleFunctions)
	mux.HandleFunc("/api/functions/", srv.handleFunctionDetail)
	mux.HandleFunc("/api/edit", srv.handleEdit)
	mux.HandleFunc("/api/edges", srv.handleEdges)
	mux.HandleFunc("/api/stats", srv.handleStats)
	mux.HandleFunc("/api/health", srv.handleHealth)
	mux.HandleFunc("/api/events", srv.handleSSE)

	handler := corsMiddleware(loggingMiddleware(mux))

	srv.server = &http.Server{
		Addr:        config.ListenAddr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// Write timeout must cover a full generation cycle plus the
		// open-ended SSE stream, so it stays off; the per-call LLM timeout
		// bounds edit handling instead.
		IdleTimeout: 60 * time.Second,
	}

	return srv
}

// Stats exposes the session metrics collector for CLI summaries.
func (s *Server) Stats() *metrics.SessionMetrics {
	return s.stats
}

// Start begins serving. Blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info("starting editor server", "addr", s.config.ListenAddr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("editor server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("stopping editor server")
	return s.server.Shutdown(ctx)
}

// handleGraph handles GET /api/graph: the packaged snapshot, in exactly the
// form the generation service sees.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, snapshot.Package(s.store))
}

// handleFunctions handles GET (list) and POST (create) on /api/functions.
func (s *Server) handleFunctions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		respondJSON(w, s.store.List())

	case http.MethodPost:
		var req struct {
			Identifier string `json:"identifier"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Identifier == "" {
			http.Error(w, "identifier required", http.StatusBadRequest)
			return
		}
		id := s.store.CreateFunction(&model.Function{
			Identifier: model.AspectValue{Text: req.Identifier, Lifecycle: model.LifecycleEdited},
		})
		s.save()
		respondJSON(w, map[string]string{"uniqueId": id})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleFunctionDetail handles GET and DELETE on /api/functions/{id}. The
// path segment is a unique ID; identifier texts are not unique enough to
// address a function over the wire.
func (s *Server) handleFunctionDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/functions/")
	if id == "" {
		http.Error(w, "function ID required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		fn, ok := s.store.Get(id)
		if !ok {
			http.Error(w, "function not found", http.StatusNotFound)
			return
		}
		respondJSON(w, fn)

	case http.MethodDelete:
		if _, ok := s.store.Get(id); !ok {
			http.Error(w, "function not found", http.StatusNotFound)
			return
		}
		s.store.RemoveFunction(id)
		s.save()
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// editRequest is one user edit from the frontend.
type editRequest struct {
	FunctionID string `json:"functionId"`
	Aspect     string `json:"aspect"`
	Value      string `json:"value"`
	// Lock marks the aspect locked instead of edited.
	Lock   bool `json:"lock"`
	Reroll bool `json:"reroll"`
	// SkipGeneration applies the edit without running a cycle.
	SkipGeneration bool `json:"skipGeneration"`
}

// editResponse reports the outcome of an edit and its generation cycle.
type editResponse struct {
	Downstream []model.Aspect `json:"downstream"`
	Applied    int            `json:"applied"`
	Skipped    int            `json:"skipped"`
	Dropped    int            `json:"dropped"`
	Discovered []string       `json:"discovered,omitempty"`
	Rationale  string         `json:"rationale,omitempty"`
	DurationMS int64          `json:"durationMs"`
}

// handleEdit handles POST /api/edit: apply a user edit, run the generation
// cycle, drain the command queue, persist. Edits are processed one at a
// time; a second edit waits for the running cycle.
func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed edit request", http.StatusBadRequest)
		return
	}
	aspect := model.Aspect(req.Aspect)
	if !aspect.Valid() {
		http.Error(w, fmt.Sprintf("unknown aspect %q", req.Aspect), http.StatusBadRequest)
		return
	}
	if _, ok := s.store.Get(req.FunctionID); !ok {
		http.Error(w, "function not found", http.StatusNotFound)
		return
	}

	s.editMu.Lock()
	defer s.editMu.Unlock()

	lifecycle := model.LifecycleEdited
	if req.Lock {
		lifecycle = model.LifecycleLocked
	}
	s.store.UpdateFunction(req.FunctionID, store.Update{
		Aspects: []store.AspectUpdate{{
			Aspect: aspect,
			Value:  model.AspectValue{Text: req.Value, Lifecycle: lifecycle},
		}},
	})

	resp := editResponse{}
	if !req.SkipGeneration {
		s.hub.Broadcast(&Event{Type: "cycle.started", Timestamp: time.Now(), Data: map[string]string{
			"functionId": req.FunctionID,
			"aspect":     req.Aspect,
		}})

		cycle, err := s.orchestrator.Generate(r.Context(), generate.Edit{
			FunctionID: req.FunctionID,
			Aspect:     aspect,
			Value:      req.Value,
			Reroll:     req.Reroll,
		})
		if err != nil {
			s.stats.RecordFailure(req.Aspect)
			s.hub.Broadcast(&Event{Type: "cycle.failed", Timestamp: time.Now(), Data: err.Error()})
			s.save()
			http.Error(w, fmt.Sprintf("generation cycle: %v", err), http.StatusBadGateway)
			return
		}
		s.stats.RecordCycle(req.Aspect, len(cycle.Commands), cycle.Dropped, cycle.Duration)
		s.stats.RecordTokens(cycle.InputTokens, cycle.OutputTokens)

		report := s.executor.Apply(cycle.Commands)
		s.stats.RecordApply(report.Applied, report.Skipped, len(report.Discovered))

		resp.Downstream = cycle.Downstream
		resp.Applied = report.Applied
		resp.Skipped = report.Skipped
		resp.Dropped = cycle.Dropped
		resp.Discovered = report.Discovered
		resp.Rationale = cycle.Rationale
		resp.DurationMS = cycle.Duration.Milliseconds()

		s.hub.Broadcast(&Event{Type: "cycle.completed", Timestamp: time.Now(), Data: resp})
	}

	s.save()
	respondJSON(w, resp)
}

// handleEdges handles GET /api/edges: the resolved call edges for drawing.
func (s *Server) handleEdges(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	edges := scan.Edges(s.store.Project())
	if edges == nil {
		edges = []scan.Edge{}
	}
	respondJSON(w, edges)
}

// handleStats handles GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap := s.stats.Snapshot()
	respondJSON(w, &snap)
}

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, map[string]any{
		"status":    "ok",
		"functions": s.store.Len(),
		"clients":   s.hub.ClientCount(),
		"time":      time.Now().Format(time.RFC3339),
	})
}

// handleSSE handles GET /api/events.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	client, err := NewClient(s.hub, w)
	if err != nil {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	s.hub.Register(client)
	defer s.hub.Unregister(client)
	s.log.Info("frontend connected")

	data, _ := json.Marshal(&Event{Type: "connected", Timestamp: time.Now()})
	client.send(data)

	go client.KeepAlive(30 * time.Second)

	<-r.Context().Done()
	s.log.Info("frontend disconnected")
}

func (s *Server) save() {
	if s.persist == nil {
		return
	}
	if err := s.persist(s.store.Project()); err != nil {
		s.log.Error("persisting project failed", "error", err)
	}
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response failed", "error", err)
	}
}

// corsMiddleware allows the browser frontend to call from another origin
// during development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}
