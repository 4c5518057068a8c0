package microservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Ingenimax/llmops-agent/pkg/interfaces"
	"github.com/Ingenimax/llmops-agent/pkg/logging"
	"github.com/Ingenimax/llmops-agent/pkg/observe"
)

const (
	maxRequestBytes    = 1 << 20 // 1MB
	defaultEventsLimit = 50
)

// AgentSource resolves agents by name, typically an *agent.Registry
type AgentSource interface {
	Get(name string) (interfaces.Agent, error)
	List() []string
}

// EventSource returns recently recorded events, typically an *observe.MemorySink
type EventSource interface {
	Recent(n int) []observe.Event
}

// HTTPServer exposes registered agents over a JSON API
type HTTPServer struct {
	agents  AgentSource
	events  EventSource
	project string
	port    int
	logger  logging.Logger
	server  *http.Server
}

// ServerOption configures the HTTP server
type ServerOption func(*HTTPServer)

// WithEventSource enables GET /api/v1/events
func WithEventSource(events EventSource) ServerOption {
	return func(h *HTTPServer) {
		h.events = events
	}
}

// WithProject sets the project reported by /health
func WithProject(project string) ServerOption {
	return func(h *HTTPServer) {
		h.project = project
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) ServerOption {
	return func(h *HTTPServer) {
		h.logger = logger
	}
}

// ErrorBody is the JSON body returned for failed requests
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Agent   string `json:"agent,omitempty"`
}

// NewHTTPServer creates a new HTTP server for the agents in source
func NewHTTPServer(agents AgentSource, port int, opts ...ServerOption) *HTTPServer {
	h := &HTTPServer{
		agents: agents,
		port:   port,
		logger: logging.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.server = &http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return h
}

// Handler returns the routed handler with CORS applied
func (h *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /api/v1/agents", h.handleListAgents)
	mux.HandleFunc("POST /api/v1/agents/{name}/run", h.handleRun)
	mux.HandleFunc("GET /api/v1/events", h.handleEvents)
	return h.addCORS(mux)
}

// Start listens on the configured port and blocks until the server stops
func (h *HTTPServer) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", h.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", h.port, err)
	}
	return h.Serve(lis)
}

// Serve serves HTTP on lis and blocks until the server stops.
// After Stop it closes lis and returns nil at once.
func (h *HTTPServer) Serve(lis net.Listener) error {
	h.logger.Info(context.Background(), "HTTP server starting", map[string]interface{}{
		"addr":   lis.Addr().String(),
		"agents": h.agents.List(),
	})

	err := h.server.Serve(lis)
	if errors.Is(err, http.ErrServerClosed) {
		_ = lis.Close()
		return nil
	}
	return err
}

// Stop stops the HTTP server. It is safe to call before or during Serve.
func (h *HTTPServer) Stop(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// addCORS adds CORS headers to allow browser access
func (h *HTTPServer) addCORS(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		handler.ServeHTTP(w, r)
	})
}

func (h *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"project": h.project,
		"agents":  h.agents.List(),
		"time":    time.Now().Unix(),
	})
}

func (h *HTTPServer) handleListAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"agents": h.agents.List(),
	})
}

// handleRun decodes the request body, runs the named agent and maps its error to a status
func (h *HTTPServer) handleRun(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	ag, err := h.agents.Get(name)
	if err != nil {
		writeJSON(w, http.StatusNotFound, ErrorBody{Error: "agent_not_found", Message: err.Error(), Agent: name})
		return
	}

	req, err := decodeRequest(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: "invalid_request", Message: err.Error(), Agent: name})
		return
	}

	start := time.Now()
	resp, err := ag.Run(r.Context(), req)
	fields := map[string]interface{}{
		"agent":       name,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		status, code := statusFor(err)
		fields["status"] = status
		fields["error"] = err.Error()
		h.logger.Warn(r.Context(), "Agent run failed", fields)
		writeJSON(w, status, ErrorBody{Error: code, Message: err.Error(), Agent: name})
		return
	}

	h.logger.Info(r.Context(), "Agent run completed", fields)
	if resp == nil {
		resp = interfaces.Response{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, ErrorBody{Error: "invalid_request", Message: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	events := []observe.Event{}
	if h.events != nil {
		if recent := h.events.Recent(limit); recent != nil {
			events = recent
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// decodeRequest reads a JSON object body. An empty body is an empty request.
func decodeRequest(w http.ResponseWriter, r *http.Request) (interfaces.Request, error) {
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer body.Close()

	var req interfaces.Request
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return interfaces.Request{}, nil
		}
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	if req == nil {
		req = interfaces.Request{}
	}
	return req, nil
}

// statusFor maps an agent error to an HTTP status and error code
func statusFor(err error) (int, string) {
	switch {
	case interfaces.IsPromptNotFound(err):
		return http.StatusInternalServerError, "prompt_not_found"
	case interfaces.IsAgentExecutionError(err):
		return http.StatusUnprocessableEntity, "agent_execution_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "cancelled"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
