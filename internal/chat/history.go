package chat

import (
	"sync"

	"github.com/felixgeelhaar/ragchat/internal/provider"
)

// History is the ordered list of persisted turns. Turns are only ever added
// in user/assistant pairs and removed from the tail.
type History struct {
	mu    sync.RWMutex
	turns []provider.Message
}

func NewHistory() *History {
	return &History{turns: make([]provider.Message, 0)}
}

// AppendPair adds a user turn and its assistant reply together.
func (h *History) AppendPair(user, assistant provider.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, user, assistant)
}

// Messages returns a copy of the history.
func (h *History) Messages() []provider.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]provider.Message, len(h.turns))
	copy(out, h.turns)
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// TruncateLast removes the last n turns and returns them. It removes nothing
// and returns ErrHistoryTooShort when fewer than n turns exist.
func (h *History) TruncateLast(n int) ([]provider.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.turns) < n {
		return nil, ErrHistoryTooShort
	}
	cut := len(h.turns) - n
	removed := make([]provider.Message, n)
	copy(removed, h.turns[cut:])
	h.turns = h.turns[:cut]
	return removed, nil
}

func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = h.turns[:0]
}
