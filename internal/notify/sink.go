package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// LogSink writes each notification as a structured log record. Success is
// logged at info, warnings at warn and errors at error level.
type LogSink struct {
	Logger *slog.Logger
}

// Notify implements Sink.
func (s LogSink) Notify(n Notification) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	level := slog.LevelInfo
	switch n.Tone {
	case ToneWarning:
		level = slog.LevelWarn
	case ToneError:
		level = slog.LevelError
	}

	logger.Log(context.Background(), level, "attendance: "+n.Message,
		"station", n.Station,
		"direction", n.Direction.String(),
		"kind", n.Kind.String(),
		"name", n.Name,
	)
}

// ConsoleSink prints one line per notification, e.g.
//
//	[15:04:05] entry  success  Welcome Jan Novak
type ConsoleSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleSink creates a console sink writing to w.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

// Notify implements Sink.
func (s *ConsoleSink) Notify(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Console write errors are not actionable here.
	_, _ = fmt.Fprintf(s.w, "[%s] %-6s %-8s %s\n", n.At.Format("15:04:05"), n.Station, n.Tone, n.Message)
}

// Multi fans a notification out to several sinks in order.
type Multi []Sink

// Notify implements Sink.
func (m Multi) Notify(n Notification) {
	for _, s := range m {
		if s != nil {
			s.Notify(n)
		}
	}
}
