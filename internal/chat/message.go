package chat

import (
	"slices"
	"sync"
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in the chat transcript. Messages are immutable once created.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}

// History is an append-only chat transcript safe for concurrent use.
type History struct {
	mu   sync.RWMutex
	msgs []Message
}

// Append adds a message to the end of the transcript.
func (h *History) Append(m Message) {
	h.mu.Lock()
	h.msgs = append(h.msgs, m)
	h.mu.Unlock()
}

// Messages returns a copy of the transcript in append order.
func (h *History) Messages() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.msgs == nil {
		return []Message{}
	}
	return slices.Clone(h.msgs)
}

// Len returns the number of messages.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.msgs)
}
