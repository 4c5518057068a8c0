package observe

import (
	"context"
	"errors"
	"sync"

	"github.com/Ingenimax/llmops-agent/pkg/interfaces"
	"github.com/Ingenimax/llmops-agent/pkg/logging"
)

// NoopSink drops every event
type NoopSink struct{}

func (NoopSink) Emit(context.Context, Event) error { return nil }

func (NoopSink) Name() string { return "noop" }

// MemorySink records events in memory, keeping at most Retention of them when Retention > 0
type MemorySink struct {
	mu        sync.RWMutex
	events    []Event
	retention int
}

// NewMemorySink creates a recording sink. A retention of zero keeps everything.
func NewMemorySink(retention int) *MemorySink {
	return &MemorySink{retention: retention}
}

func (s *MemorySink) Name() string { return "memory" }

// Emit records the event, evicting the oldest one when full
func (s *MemorySink) Emit(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	if s.retention > 0 && len(s.events) > s.retention {
		s.events = append([]Event(nil), s.events[len(s.events)-s.retention:]...)
	}
	return nil
}

// Events returns a copy of the recorded events, oldest first
func (s *MemorySink) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event(nil), s.events...)
}

// Recent returns up to n of the latest events, newest first. n <= 0 returns all of them.
func (s *MemorySink) Recent(n int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || n > len(s.events) {
		n = len(s.events)
	}
	out := make([]Event, 0, n)
	for i := len(s.events) - 1; i >= len(s.events)-n; i-- {
		out = append(out, s.events[i])
	}
	return out
}

// Len returns the number of recorded events
func (s *MemorySink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Reset drops every recorded event
func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

// LogSink writes each event as a structured log line
type LogSink struct {
	logger logging.Logger
}

// NewLogSink creates a sink that logs events through logger
func NewLogSink(logger logging.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Emit(ctx context.Context, event Event) error {
	fields := map[string]interface{}{
		"event_id":    event.ID,
		"agent":       event.Agent,
		"outcome":     string(event.Outcome),
		"start_time":  event.StartTime,
		"end_time":    event.EndTime,
		"duration_ms": event.Duration().Milliseconds(),
	}
	if event.Project != "" {
		fields["project"] = event.Project
	}
	if event.Operation != "" {
		fields["operation"] = event.Operation
	}
	if event.SessionID != "" {
		fields["session_id"] = event.SessionID
	}
	if event.TraceID != "" {
		fields["trace_id"] = event.TraceID
	}

	if event.Failed() {
		fields["error"] = event.Error
		s.logger.Warn(ctx, "Agent event", fields)
	} else {
		s.logger.Info(ctx, "Agent event", fields)
	}
	return nil
}

// MultiSink fans an event out to several sinks
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a fan-out sink. Nil sinks are skipped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *MultiSink) Name() string { return "multi" }

// Emit delivers to every sink, even when an earlier one fails
func (m *MultiSink) Emit(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range m.sinks {
		if err := safeEmit(ctx, s, event); err != nil {
			errs = append(errs, interfaces.NewSinkError(sinkName(s), err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every member sink that holds resources
func (m *MultiSink) Close(ctx context.Context) error {
	var errs []error
	for _, s := range m.sinks {
		if c, ok := s.(Closer); ok {
			if err := c.Close(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
