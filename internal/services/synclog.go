package services

import (
	"sync"
	"time"
)

const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

type LogEntry struct {
	At      time.Time `json:"at"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// SyncLog keeps a bounded ring of recent pipeline log entries for the
// log viewer surface. Safe for concurrent use.
type SyncLog struct {
	mu      sync.Mutex
	max     int
	entries []LogEntry
}

func NewSyncLog(max int) *SyncLog {
	if max <= 0 {
		max = 500
	}
	return &SyncLog{max: max}
}

func (l *SyncLog) Append(level, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{At: time.Now().UTC(), Level: level, Message: message})
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
}

func (l *SyncLog) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *SyncLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
