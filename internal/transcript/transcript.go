// Package transcript writes coaching conversations to per-session NDJSON files.
package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/writepal/internal/channel"
)

// Config controls transcript logging.
type Config struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Event is one line of a transcript file.
type Event struct {
	Timestamp  time.Time `json:"ts"`
	UserID     string    `json:"user_id"`
	SessionID  string    `json:"session_id"`
	Channel    string    `json:"channel"`
	Direction  string    `json:"direction"`
	EventType  string    `json:"event_type"`
	Phase      string    `json:"phase,omitempty"`
	Code       string    `json:"code,omitempty"`
	ContentRaw string    `json:"content_raw"`
	Content    string    `json:"content"`
}

// Logger writes events asynchronously. Events are dropped, never blocked on,
// when the queue is full.
type Logger struct {
	cfg     Config
	logger  *slog.Logger
	queue   chan Event
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

var (
	ansiPattern    = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
	controlPattern = regexp.MustCompile(`[\x00-\x08\x0b-\x1f\x7f]`)
	unsafePath     = regexp.MustCompile(`[^A-Za-z0-9._-]`)
)

// NewConversationLogger starts the writer goroutine. A disabled config yields
// a logger whose Log is a no-op.
func NewConversationLogger(cfg Config, logger *slog.Logger) (*Logger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Logger{cfg: cfg, logger: logger}
	if !cfg.Enabled {
		return l, nil
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
		l.cfg.QueueSize = cfg.QueueSize
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}

	l.queue = make(chan Event, cfg.QueueSize)
	l.wg.Add(1)
	go l.run()
	return l, nil
}

// Log enqueues an event.
func (l *Logger) Log(ev Event) {
	if l == nil || l.queue == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	ev.Content = cleanForReadability(ev.ContentRaw)

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- ev:
	default:
		if n := l.dropped.Add(1); n == 1 || n%100 == 0 {
			l.logger.Warn("transcript queue full, dropping events", "dropped", n)
		}
	}
}

// Observer returns a channel observer that records every message of one session.
func (l *Logger) Observer(userID, sessionID, via string) channel.Observer {
	return func(dir channel.Direction, msg channel.Message) {
		l.Log(Event{
			Timestamp:  msg.SentAt,
			UserID:     userID,
			SessionID:  sessionID,
			Channel:    via,
			Direction:  string(dir),
			EventType:  string(msg.Kind),
			Phase:      msg.Phase,
			Code:       msg.Code,
			ContentRaw: msg.Text,
		})
	}
}

// Close flushes queued events and stops the writer.
func (l *Logger) Close() error {
	if l == nil || l.queue == nil {
		return nil
	}
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()
	l.wg.Wait()
	return nil
}

func (l *Logger) run() {
	defer l.wg.Done()

	files := make(map[string]*os.File)
	defer func() {
		for path, f := range files {
			if err := f.Close(); err != nil {
				l.logger.Warn("failed to close transcript file", "path", path, "error", err)
			}
		}
	}()

	for ev := range l.queue {
		path := l.pathFor(ev)
		f, ok := files[path]
		if !ok {
			var err error
			f, err = openAppend(path)
			if err != nil {
				l.logger.Error("failed to open transcript file", "path", path, "error", err)
				continue
			}
			files[path] = f
		}

		data, err := json.Marshal(ev)
		if err != nil {
			l.logger.Error("failed to encode transcript event", "error", err)
			continue
		}
		w := bufio.NewWriter(f)
		_, _ = w.Write(data)
		_ = w.WriteByte('\n')
		if err := w.Flush(); err != nil {
			l.logger.Error("failed to write transcript event", "path", path, "error", err)
		}

		if ev.EventType == string(channel.KindDone) {
			if err := f.Close(); err != nil {
				l.logger.Warn("failed to close transcript file", "path", path, "error", err)
			}
			delete(files, path)
		}
	}
}

func (l *Logger) pathFor(ev Event) string {
	user := sanitize(ev.UserID, "anonymous")
	session := sanitize(ev.SessionID, "default")
	return filepath.Join(l.cfg.Dir, user, session+".ndjson")
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func sanitize(s, fallback string) string {
	s = unsafePath.ReplaceAllString(strings.TrimSpace(s), "_")
	s = strings.ReplaceAll(s, "..", "_")
	if s == "" || s == "." {
		return fallback
	}
	return s
}

// cleanForReadability strips terminal escapes and control characters,
// keeping newlines and tabs.
func cleanForReadability(raw string) string {
	s := ansiPattern.ReplaceAllString(raw, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = controlPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
