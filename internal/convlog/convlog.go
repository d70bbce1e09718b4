// Package convlog writes per-conversation NDJSON transcripts of tutor turns.
package convlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"
)

// Config controls conversation logging.
type Config struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Event is one NDJSON line of a conversation log.
type Event struct {
	Timestamp  string         `json:"ts"`
	LearnerID  string         `json:"learner_id"`
	SessionID  string         `json:"session_id"`
	TurnID     string         `json:"turn_id,omitempty"`
	Direction  string         `json:"direction"`
	EventType  string         `json:"event_type"`
	ContentRaw string         `json:"content_raw,omitempty"`
	Content    string         `json:"content,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// Event types written by the orchestrator.
const (
	EventUserMessage      = "user_message"
	EventFallbackAttempt  = "fallback_attempt"
	EventAssistantMessage = "assistant_message"
	EventTurnFailed       = "turn_failed"
)

// Logger records conversation events.
type Logger interface {
	Log(Event)
	Close() error
}

// Noop returns a Logger that discards every event.
func Noop() Logger { return noopLogger{} }

type noopLogger struct{}

func (noopLogger) Log(Event)    {}
func (noopLogger) Close() error { return nil }

type fileLogger struct {
	dir    string
	queue  chan Event
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// New returns a Logger that appends events to <dir>/<learner>/<session>.ndjson
// from a background goroutine. A disabled config yields a no-op Logger.
func New(cfg Config, logger *slog.Logger) (Logger, error) {
	if !cfg.Enabled {
		return Noop(), nil
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("conversation log dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create conversation log dir: %w", err)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}

	l := &fileLogger{
		dir:    cfg.Dir,
		queue:  make(chan Event, cfg.QueueSize),
		logger: logger,
		done:   make(chan struct{}),
	}
	go l.run()
	return l, nil
}

// Log enqueues an event. Events are dropped when the queue is full.
func (l *fileLogger) Log(e Event) {
	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if e.Content == "" && e.ContentRaw != "" {
		e.Content = CleanForReadability(e.ContentRaw)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- e:
	default:
		l.logger.Warn("conversation log queue full, dropping event",
			"learner_id", e.LearnerID,
			"session_id", e.SessionID,
			"event_type", e.EventType,
		)
	}
}

// Close stops accepting events and waits for the queue to drain.
func (l *fileLogger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	<-l.done
	return nil
}

func (l *fileLogger) run() {
	defer close(l.done)
	for e := range l.queue {
		if err := l.write(e); err != nil {
			l.logger.Error("failed to write conversation log",
				"learner_id", e.LearnerID,
				"session_id", e.SessionID,
				"error", err,
			)
		}
	}
}

func (l *fileLogger) write(e Event) error {
	dir := filepath.Join(l.dir, safeSegment(e.LearnerID))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create learner log dir: %w", err)
	}
	path := filepath.Join(dir, safeSegment(e.SessionID)+".ndjson")

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640) // #nosec G304 -- path segments are sanitized
	if err != nil {
		return fmt.Errorf("open conversation log: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("append conversation log: %w", err)
	}
	return f.Close()
}

var unsafeSegment = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

func safeSegment(s string) string {
	s = unsafeSegment.ReplaceAllString(s, "_")
	s = strings.Trim(s, ".")
	if s == "" {
		return "unknown"
	}
	return s
}

var ansiSequence = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

// CleanForReadability strips ANSI escapes and control characters other than
// newlines and tabs.
func CleanForReadability(s string) string {
	s = ansiSequence.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
