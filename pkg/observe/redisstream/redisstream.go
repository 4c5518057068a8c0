package redisstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Ingenimax/llmops-agent/pkg/observe"
)

// DefaultStream is the stream key used when none is configured
const DefaultStream = "llmops:events"

// Sink appends each event to a Redis Stream
type Sink struct {
	client     redis.UniversalClient
	stream     string
	maxLen     int64
	ownsClient bool
}

// Config contains connection settings used by NewFromConfig
type Config struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	MaxLen   int64
}

// Option represents an option for configuring the sink
type Option func(*Sink)

// WithStream sets the stream key
func WithStream(stream string) Option {
	return func(s *Sink) {
		if stream != "" {
			s.stream = stream
		}
	}
}

// WithMaxLen caps the stream length. Zero leaves it unbounded.
func WithMaxLen(maxLen int64) Option {
	return func(s *Sink) {
		s.maxLen = maxLen
	}
}

// New creates a sink on an existing client
func New(client redis.UniversalClient, opts ...Option) *Sink {
	s := &Sink{
		client: client,
		stream: DefaultStream,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromConfig dials Redis and verifies the connection
func NewFromConfig(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	s := New(client, WithStream(cfg.Stream), WithMaxLen(cfg.MaxLen))
	s.ownsClient = true
	return s, nil
}

func (s *Sink) Name() string { return "redis" }

// Stream returns the stream key
func (s *Sink) Stream() string { return s.stream }

// Emit adds the event with agent, outcome and the JSON encoded event as fields
func (s *Sink) Emit(ctx context.Context, event observe.Event) error {
	encoded, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"id":      event.ID,
			"agent":   event.Agent,
			"outcome": string(event.Outcome),
			"event":   string(encoded),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to append to stream %s: %w", s.stream, err)
	}
	return nil
}

// Read returns up to count events from the start of the stream, used by tooling and tests
func (s *Sink) Read(ctx context.Context, count int64) ([]observe.Event, error) {
	messages, err := s.client.XRangeN(ctx, s.stream, "-", "+", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read stream %s: %w", s.stream, err)
	}

	events := make([]observe.Event, 0, len(messages))
	for _, msg := range messages {
		raw, ok := msg.Values["event"].(string)
		if !ok {
			continue
		}
		var event observe.Event
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			return nil, fmt.Errorf("failed to decode stream entry %s: %w", msg.ID, err)
		}
		events = append(events, event)
	}
	return events, nil
}

// Close releases the client when the sink created it
func (s *Sink) Close(_ context.Context) error {
	if s.ownsClient {
		return s.client.Close()
	}
	return nil
}
