package observe

import (
	"context"
	"sync"
	"time"

	"github.com/Ingenimax/llmops-agent/pkg/interfaces"
	"github.com/Ingenimax/llmops-agent/pkg/logging"
)

const (
	defaultAsyncBuffer = 256
	defaultEmitTimeout = 5 * time.Second
)

// AsyncSink hands events to a background worker so Emit never blocks on the downstream sink
type AsyncSink struct {
	next        Sink
	logger      logging.Logger
	emitTimeout time.Duration

	queue  chan Event
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// AsyncOption represents an option for configuring an AsyncSink
type AsyncOption func(*AsyncSink)

// WithBufferSize sets the queue capacity
func WithBufferSize(size int) AsyncOption {
	return func(s *AsyncSink) {
		if size > 0 {
			s.queue = make(chan Event, size)
		}
	}
}

// WithEmitTimeout bounds each delivery to the downstream sink
func WithEmitTimeout(timeout time.Duration) AsyncOption {
	return func(s *AsyncSink) {
		if timeout > 0 {
			s.emitTimeout = timeout
		}
	}
}

// WithAsyncLogger sets the logger used for delivery failures
func WithAsyncLogger(logger logging.Logger) AsyncOption {
	return func(s *AsyncSink) {
		s.logger = logger
	}
}

// NewAsyncSink starts a worker that forwards queued events to next
func NewAsyncSink(next Sink, opts ...AsyncOption) *AsyncSink {
	s := &AsyncSink{
		next:        next,
		logger:      logging.NewNoOpLogger(),
		emitTimeout: defaultEmitTimeout,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.queue == nil {
		s.queue = make(chan Event, defaultAsyncBuffer)
	}

	go s.run()
	return s
}

func (s *AsyncSink) Name() string { return "async(" + sinkName(s.next) + ")" }

// Emit queues the event, failing fast when the queue is full or the sink is closed
func (s *AsyncSink) Emit(_ context.Context, event Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return interfaces.ErrSinkClosed
	}

	select {
	case s.queue <- event:
		return nil
	default:
		return interfaces.ErrSinkBufferFull
	}
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for event := range s.queue {
		s.deliver(event)
	}
}

func (s *AsyncSink) deliver(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), s.emitTimeout)
	defer cancel()

	if err := safeEmit(ctx, s.next, event); err != nil {
		s.logger.Warn(ctx, "Failed to deliver observability event", map[string]interface{}{
			"agent":    event.Agent,
			"event_id": event.ID,
			"sink":     sinkName(s.next),
			"error":    interfaces.NewSinkError(sinkName(s.next), err).Error(),
		})
	}
}

// Close stops accepting events and waits for queued ones to be delivered or for ctx to end
func (s *AsyncSink) Close(ctx context.Context) error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.queue)
		s.mu.Unlock()
	})

	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if c, ok := s.next.(Closer); ok {
		return c.Close(ctx)
	}
	return nil
}
