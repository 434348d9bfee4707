package core

import (
	"sync"

	"github.com/dkeye/Classroom/internal/domain"
)

// ChatLog is an append-only ordered message store. Messages are never
// reordered and never deduplicated, even though they carry an id.
type ChatLog struct {
	mu       sync.RWMutex
	messages []domain.ChatMessage
}

func NewChatLog() *ChatLog {
	return &ChatLog{}
}

func (l *ChatLog) Append(msg domain.ChatMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

func (l *ChatLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Messages returns a copy in arrival order.
func (l *ChatLog) Messages() []domain.ChatMessage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.ChatMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// Clear is the only removal; used on session teardown.
func (l *ChatLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = nil
}
