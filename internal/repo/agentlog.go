package repo

import (
	"sync"
	"time"

	"touchline/internal/domain"
)

const DefaultAgentLogCapacity = 100

// AgentLog is a fixed-capacity ring of agent messages. When full, appending
// overwrites the oldest entry.
type AgentLog struct {
	mu    sync.RWMutex
	buf   []domain.AgentMessage
	start int
	size  int
}

func NewAgentLog(capacity int) *AgentLog {
	if capacity <= 0 {
		capacity = DefaultAgentLogCapacity
	}
	return &AgentLog{buf: make([]domain.AgentMessage, capacity)}
}

func (l *AgentLog) Append(m domain.AgentMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.size < len(l.buf) {
		l.buf[(l.start+l.size)%len(l.buf)] = m
		l.size++
		return
	}
	l.buf[l.start] = m
	l.start = (l.start + 1) % len(l.buf)
}

// Since returns messages created strictly after since, oldest first.
// A nil since returns the whole log.
func (l *AgentLog) Since(since *time.Time) []domain.AgentMessage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.AgentMessage, 0, l.size)
	for i := 0; i < l.size; i++ {
		m := l.buf[(l.start+i)%len(l.buf)]
		if since != nil && !m.CreatedAt.After(*since) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (l *AgentLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}
