// Package audit records the normalization and repair actions applied during
// one report session.
package audit

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Log is an ordered, append-only correction log owned by one session.
type Log struct {
	mu      sync.Mutex
	id      string
	entries []string
	logger  *zap.Logger
}

// New starts a log with a fresh session id. Entries are mirrored to logger at
// info level; a nil logger disables mirroring.
func New(logger *zap.Logger) *Log {
	id := uuid.NewString()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{id: id, logger: logger.With(zap.String("session", id))}
}

// SessionID identifies the session that owns this log.
func (l *Log) SessionID() string { return l.id }

// Add appends one entry.
func (l *Log) Add(entry string) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
	l.logger.Info(entry)
}

// Addf appends a formatted entry.
func (l *Log) Addf(format string, args ...any) { l.Add(fmt.Sprintf(format, args...)) }

// Append adds entries in order.
func (l *Log) Append(entries ...string) {
	for _, e := range entries {
		l.Add(e)
	}
}

// Entries returns a copy of the entries in application order.
func (l *Log) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Summary renders the log as a bullet list for display.
func (l *Log) Summary() string {
	entries := l.Entries()
	if len(entries) == 0 {
		return "No corrections were made."
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = "• " + e
	}
	return strings.Join(lines, "\n")
}
