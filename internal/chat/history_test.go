package chat

import (
	"errors"
	"testing"

	"github.com/felixgeelhaar/ragchat/internal/provider"
)

func pair(n string) (provider.Message, provider.Message) {
	return provider.Message{Role: provider.RoleUser, Content: "u" + n},
		provider.Message{Role: provider.RoleAssistant, Content: "a" + n}
}

func TestHistory(t *testing.T) {
	h := NewHistory()
	if h.Len() != 0 {
		t.Fatalf("expected empty history, got %d", h.Len())
	}

	h.AppendPair(pair("1"))
	h.AppendPair(pair("2"))
	if h.Len() != 4 {
		t.Fatalf("expected 4 turns, got %d", h.Len())
	}

	msgs := h.Messages()
	msgs[0].Content = "changed"
	if h.Messages()[0].Content != "u1" {
		t.Error("Messages must return a copy")
	}

	removed, err := h.TruncateLast(2)
	if err != nil {
		t.Fatalf("TruncateLast failed: %v", err)
	}
	if removed[0].Content != "u2" || removed[1].Content != "a2" {
		t.Errorf("unexpected removed turns %+v", removed)
	}
	if h.Len() != 2 {
		t.Errorf("expected 2 turns, got %d", h.Len())
	}

	h.Clear()
	if _, err := h.TruncateLast(2); !errors.Is(err, ErrHistoryTooShort) {
		t.Errorf("expected ErrHistoryTooShort, got %v", err)
	}
	if h.Len() != 0 {
		t.Errorf("expected empty history, got %d", h.Len())
	}
}
