// Package server exposes the agent skills over HTTP. It provides a
// skill registry endpoint, single and batched skill execution backed
// by per-session execution gates, and a natural-language prompt
// endpoint that delegates to the tool-calling agent loop.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/shelfagent/shelfagent/pkg/gate"
	"github.com/shelfagent/shelfagent/pkg/llm"
	"github.com/shelfagent/shelfagent/pkg/logger"
	"github.com/shelfagent/shelfagent/pkg/skills"
)

// SessionHeader carries the caller's gate session id. Requests that
// reuse the header share one execution gate, so a skill completed in
// an earlier request stays completed for later ones.
const SessionHeader = "X-Session-ID"

// PromptRunner runs a free-form user message through the agent loop
// under the given execution gate.
type PromptRunner interface {
	Run(ctx context.Context, g *gate.ExecutionGate, message string) (string, error)
}

// SkillRouter classifies a free-form message to one registered skill
// and its parameters.
type SkillRouter interface {
	ClassifySkill(ctx context.Context, message string) (llm.Route, error)
}

// Server represents the agent HTTP server
type Server struct {
	router      *mux.Router
	registry    *skills.Registry
	sessions    *gate.Store
	skillRouter SkillRouter
	agent       PromptRunner
	config      *ServerConfig
	server      *http.Server
}

// ServerConfig holds the configuration for the HTTP server
type ServerConfig struct {
	Host string
	Port int
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// NewServer creates a new agent server. The router and agent may be
// nil, in which case their endpoints report the capability as
// unavailable.
func NewServer(config *ServerConfig, registry *skills.Registry, sessions *gate.Store, skillRouter SkillRouter, agent PromptRunner) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server configuration")
	}
	if registry == nil {
		return nil, errors.New("skill registry is required")
	}
	if sessions == nil {
		return nil, errors.New("session store is required")
	}

	s := &Server{
		router:      mux.NewRouter(),
		registry:    registry,
		sessions:    sessions,
		skillRouter: skillRouter,
		agent:       agent,
		config:      config,
	}

	s.setupRoutes()

	return s, nil
}

// setupRoutes configures all the HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api/agent").Subrouter()
	api.HandleFunc("/skills", s.handleListSkills).Methods("GET")
	api.HandleFunc("/skills/execute-all", s.handleExecuteAll).Methods("POST")
	api.HandleFunc("/skills/{skillName}", s.handleExecuteSkill).Methods("POST")
	api.HandleFunc("/prompt", s.handlePrompt).Methods("POST")
	api.HandleFunc("/route", s.handleRoute).Methods("POST")

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
}

// Handler returns the configured route handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: 200}

		next.ServeHTTP(rw, r)

		logger.G(r.Context()).WithFields(map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration":    time.Since(start),
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
	})
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+SessionHeader)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// API Handlers

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleListSkills handles GET /api/agent/skills
func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, map[string]any{
		"skills": s.registry.Definitions(),
	})
}

// SkillExecutionResult is the per-skill payload of execution responses.
type SkillExecutionResult struct {
	Skill      string          `json:"skill"`
	Parameters json.RawMessage `json:"parameters"`
	Result     string          `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	Timestamp  string          `json:"timestamp"`
}

// handleExecuteSkill handles POST /api/agent/skills/{skillName}
func (s *Server) handleExecuteSkill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	skillName := mux.Vars(r)["skillName"]

	if _, ok := s.registry.Get(skillName); !ok {
		s.writeErrorResponse(w, http.StatusNotFound, fmt.Sprintf("unknown skill %q", skillName), nil)
		return
	}

	// Reject malformed bodies before touching the gate so bad
	// requests never consume the skill's single execution.
	parameters, err := readParameters(r)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "request body must be a JSON object", err)
		return
	}

	sessionID, g := s.sessionGate(r)
	w.Header().Set(SessionHeader, sessionID)

	result := skills.RunSkill(ctx, g, s.registry, skillName, parameters)

	item := SkillExecutionResult{
		Skill:      skillName,
		Parameters: json.RawMessage(parameters),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	if result.IsError() {
		item.Error = result.Error
		s.writeJSONResponse(w, map[string]any{
			"success":   false,
			"sessionId": sessionID,
			"data":      item,
		}, http.StatusInternalServerError)
		return
	}
	item.Result = result.Result

	s.writeJSONResponse(w, map[string]any{
		"success":   true,
		"sessionId": sessionID,
		"data":      item,
	})
}

// ExecuteAllRequest is the body of POST /api/agent/skills/execute-all.
type ExecuteAllRequest struct {
	SkillsToExecute []SkillInvocation `json:"skillsToExecute"`
}

// SkillInvocation names one skill and its parameters.
type SkillInvocation struct {
	SkillName  string          `json:"skillName"`
	Parameters json.RawMessage `json:"parameters"`
}

// handleExecuteAll handles POST /api/agent/skills/execute-all. The
// whole batch runs under one gate session, so duplicate entries and,
// under the strict policy, everything after the first entry are
// answered from the gate instead of executing.
func (s *Server) handleExecuteAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ExecuteAllRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if len(req.SkillsToExecute) == 0 {
		s.writeErrorResponse(w, http.StatusBadRequest, "skillsToExecute cannot be empty", nil)
		return
	}

	sessionID, g := s.sessionGate(r)
	w.Header().Set(SessionHeader, sessionID)

	results := make([]SkillExecutionResult, 0, len(req.SkillsToExecute))
	for _, invocation := range req.SkillsToExecute {
		parameters := string(invocation.Parameters)
		if parameters == "" {
			parameters = "{}"
		}

		result := skills.RunSkill(ctx, g, s.registry, invocation.SkillName, parameters)

		item := SkillExecutionResult{
			Skill:      invocation.SkillName,
			Parameters: json.RawMessage(parameters),
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
		}
		if result.IsError() {
			item.Error = result.Error
		} else {
			item.Result = result.Result
		}
		results = append(results, item)
	}

	s.writeJSONResponse(w, map[string]any{
		"success":   true,
		"sessionId": sessionID,
		"data":      map[string]any{"results": results},
	})
}

// PromptRequest is the body of POST /api/agent/prompt.
type PromptRequest struct {
	Message string `json:"message"`
}

// handlePrompt handles POST /api/agent/prompt
func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.agent == nil {
		s.writeErrorResponse(w, http.StatusServiceUnavailable, "prompt endpoint is not configured", nil)
		return
	}

	var req PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Message == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "message cannot be empty", nil)
		return
	}

	sessionID, g := s.sessionGate(r)
	w.Header().Set(SessionHeader, sessionID)

	answer, err := s.agent.Run(ctx, g, req.Message)
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "agent run failed", err)
		return
	}

	s.writeJSONResponse(w, map[string]any{
		"success":   true,
		"sessionId": sessionID,
		"data": map[string]any{
			"response":  answer,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// handleRoute handles POST /api/agent/route. The message is
// classified to one skill, which then runs through the session's gate
// like any direct invocation.
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.skillRouter == nil {
		s.writeErrorResponse(w, http.StatusServiceUnavailable, "route endpoint is not configured", nil)
		return
	}

	var req PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Message == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "message cannot be empty", nil)
		return
	}

	route, err := s.skillRouter.ClassifySkill(ctx, req.Message)
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "classification failed", err)
		return
	}

	sessionID, g := s.sessionGate(r)
	w.Header().Set(SessionHeader, sessionID)

	result := skills.RunSkill(ctx, g, s.registry, route.Skill, route.Parameters)

	item := SkillExecutionResult{
		Skill:      route.Skill,
		Parameters: json.RawMessage(route.Parameters),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	if result.IsError() {
		item.Error = result.Error
		s.writeJSONResponse(w, map[string]any{
			"success":   false,
			"sessionId": sessionID,
			"data":      item,
		}, http.StatusInternalServerError)
		return
	}
	item.Result = result.Result

	s.writeJSONResponse(w, map[string]any{
		"success":   true,
		"sessionId": sessionID,
		"data":      item,
	})
}

// sessionGate resolves the request's gate session. A request without
// the session header gets a fresh session id.
func (s *Server) sessionGate(r *http.Request) (string, *gate.ExecutionGate) {
	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	g, existed := s.sessions.GetOrCreate(sessionID)
	if !existed {
		logger.G(r.Context()).WithField("session_id", sessionID).Debug("started gate session")
	}
	return sessionID, g
}

// readParameters reads the request body as a JSON object, treating an
// empty body as empty parameters.
func readParameters(r *http.Request) (string, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read request body")
	}

	parameters := strings.TrimSpace(string(body))
	if parameters == "" {
		return "{}", nil
	}

	var object map[string]any
	if err := json.Unmarshal([]byte(parameters), &object); err != nil {
		return "", errors.Wrap(err, "parameters must be a JSON object")
	}
	return parameters, nil
}

// Utility methods

// writeJSONResponse writes a JSON response
func (s *Server) writeJSONResponse(w http.ResponseWriter, data any, statusCode ...int) {
	w.Header().Set("Content-Type", "application/json")
	if len(statusCode) > 0 {
		w.WriteHeader(statusCode[0])
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string, err error) {
	if err != nil {
		logger.G(context.TODO()).WithError(err).Error(message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]any{
		"error":   message,
		"status":  statusCode,
		"success": false,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode error response")
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:    address,
		Handler: s.router,
	}

	logger.G(ctx).WithField("address", address).Info("starting agent server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "agent server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// Stop stops the HTTP server immediately.
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
