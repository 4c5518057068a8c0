package phoenix

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/Ingenimax/llmops-agent/pkg/logging"
	"github.com/Ingenimax/llmops-agent/pkg/observe"
)

// Message is one chat turn in a Phoenix trace
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TracePayload is the body accepted by POST /v1/projects/{project}/traces
type TracePayload struct {
	TraceID   string                 `json:"trace_id"`
	SessionID string                 `json:"session_id"`
	UserID    string                 `json:"user_id"`
	Messages  []Message              `json:"messages"`
	Model     string                 `json:"model"`
	Tokens    int                    `json:"tokens"`
	Cost      float64                `json:"cost"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// Sink posts each event to the Phoenix REST API
type Sink struct {
	baseURL         string
	project         string
	apiKey          string
	model           string
	client          *http.Client
	maxRetries      uint
	initialInterval time.Duration
	logger          logging.Logger
}

// Option represents an option for configuring the Phoenix sink
type Option func(*Sink)

// WithHTTPClient sets the HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(s *Sink) {
		s.client = client
	}
}

// WithTimeout sets the per-request timeout of the default client
func WithTimeout(timeout time.Duration) Option {
	return func(s *Sink) {
		if timeout > 0 {
			s.client = &http.Client{Timeout: timeout}
		}
	}
}

// WithAPIKey sets a bearer token for authenticated Phoenix deployments
func WithAPIKey(apiKey string) Option {
	return func(s *Sink) {
		s.apiKey = apiKey
	}
}

// WithModel sets the model name reported when an event carries none
func WithModel(model string) Option {
	return func(s *Sink) {
		s.model = model
	}
}

// WithMaxRetries sets the total number of attempts per event
func WithMaxRetries(retries int) Option {
	return func(s *Sink) {
		if retries > 0 {
			s.maxRetries = uint(retries)
		}
	}
}

// WithInitialInterval sets the first backoff delay
func WithInitialInterval(interval time.Duration) Option {
	return func(s *Sink) {
		s.initialInterval = interval
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(s *Sink) {
		s.logger = logger
	}
}

// New creates a Phoenix sink for the given project
func New(baseURL, project string, opts ...Option) (*Sink, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("phoenix base URL is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid phoenix base URL: %w", err)
	}
	if project == "" {
		return nil, errors.New("phoenix project is required")
	}

	s := &Sink{
		baseURL:         baseURL,
		project:         project,
		client:          &http.Client{Timeout: 10 * time.Second},
		maxRetries:      3,
		initialInterval: time.Second,
		logger:          logging.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Sink) Name() string { return "phoenix" }

// TracesURL returns the endpoint events are posted to
func (s *Sink) TracesURL() string {
	return fmt.Sprintf("%s/v1/projects/%s/traces", s.baseURL, url.PathEscape(s.project))
}

// Emit posts the event, retrying transport failures and 5xx responses with exponential backoff
func (s *Sink) Emit(ctx context.Context, event observe.Event) error {
	body, err := json.Marshal(s.payload(event))
	if err != nil {
		return fmt.Errorf("failed to encode trace payload: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.initialInterval
	policy.Multiplier = 2

	attempt := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		return struct{}{}, s.post(ctx, body)
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(s.maxRetries))
	if err != nil {
		s.logger.Debug(ctx, "Phoenix trace export failed", map[string]interface{}{
			"event_id": event.ID,
			"attempts": attempt,
			"error":    err.Error(),
		})
		return err
	}
	return nil
}

func (s *Sink) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.TracesURL(), bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	statusErr := fmt.Errorf("phoenix returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	if resp.StatusCode >= 500 {
		return statusErr
	}
	return backoff.Permanent(statusErr)
}

// payload maps an event to the Phoenix trace shape
func (s *Sink) payload(event observe.Event) TracePayload {
	traceID := event.TraceID
	if traceID == "" {
		traceID = event.ID
	}

	metadata := map[string]interface{}{
		"event_id":    event.ID,
		"agent":       event.Agent,
		"outcome":     string(event.Outcome),
		"start_time":  event.StartTime.UTC().Format(time.RFC3339Nano),
		"end_time":    event.EndTime.UTC().Format(time.RFC3339Nano),
		"duration_ms": event.Duration().Milliseconds(),
	}
	if event.Project != "" {
		metadata["project"] = event.Project
	}
	if event.Operation != "" {
		metadata["operation"] = event.Operation
	}
	if event.SpanID != "" {
		metadata["span_id"] = event.SpanID
	}
	if event.Error != "" {
		metadata["error"] = event.Error
	}
	for k, v := range event.Metadata {
		if _, exists := metadata[k]; !exists {
			metadata[k] = v
		}
	}

	model := s.model
	if m, ok := event.Metadata["model"].(string); ok && m != "" {
		model = m
	}

	return TracePayload{
		TraceID:   traceID,
		SessionID: event.SessionID,
		UserID:    event.UserID,
		Messages:  messages(event),
		Model:     model,
		Tokens:    intValue(event.Metadata["tokens"]),
		Cost:      floatValue(event.Metadata["cost"]),
		Metadata:  metadata,
	}
}

// messages renders captured payloads as chat turns
func messages(event observe.Event) []Message {
	out := []Message{}
	if event.Request != nil {
		out = append(out, Message{Role: "user", Content: contentOf(event.Request, "user_input")})
	}
	if event.Response != nil {
		out = append(out, Message{Role: "assistant", Content: contentOf(event.Response, "answer")})
	}
	if event.Error != "" {
		out = append(out, Message{Role: "system", Content: "error: " + event.Error})
	}
	return out
}

func contentOf(payload map[string]interface{}, key string) string {
	if text, ok := payload[key].(string); ok && text != "" {
		return text
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return string(encoded)
}

func intValue(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func floatValue(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}
