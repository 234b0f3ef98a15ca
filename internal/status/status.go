// Package status carries user-facing status strings to their displays.
package status

import (
	"io"
	"log/slog"
	"sync"
	"time"
)

// Notifier accepts status messages. Implementations must not block.
type Notifier interface {
	Notify(msg string)
}

// Multi fans a message out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(msg string) {
	for _, n := range m {
		if n != nil {
			n.Notify(msg)
		}
	}
}

// LogNotifier writes status messages to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(msg string) { n.logger.Info("status", "message", msg) }

// Message is one recorded status update.
type Message struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Recorder keeps the latest status messages in memory.
type Recorder struct {
	mu      sync.Mutex
	limit   int
	history []Message
}

// NewRecorder keeps at most limit messages (minimum 1).
func NewRecorder(limit int) *Recorder {
	if limit < 1 {
		limit = 1
	}
	return &Recorder{limit: limit}
}

func (r *Recorder) Notify(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, Message{Text: msg, At: time.Now()})
	if over := len(r.history) - r.limit; over > 0 {
		r.history = append(r.history[:0], r.history[over:]...)
	}
}

// Last returns the most recent message.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.history) == 0 {
		return Message{}, false
	}
	return r.history[len(r.history)-1], true
}

// History returns the retained messages, oldest first.
func (r *Recorder) History() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.history))
	copy(out, r.history)
	return out
}
