package provider

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrStubFailure is returned by StubProvider when FailAfter is set.
var ErrStubFailure = errors.New("stub stream interrupted")

// StubProvider is a scripted provider for tests and offline demos. Replies
// are consumed in order; once exhausted the last reply repeats.
type StubProvider struct {
	mu sync.Mutex

	Replies []string
	// FailAfter, when non-negative, makes the next Stream call fail after
	// delivering that many fragments. It resets to -1 after one failure.
	FailAfter int

	requests []Request
	next     int
}

func NewStubProvider(replies ...string) *StubProvider {
	if len(replies) == 0 {
		replies = []string{"I'm a stub model. Configure a real provider to get real answers."}
	}
	return &StubProvider{Replies: replies, FailAfter: -1}
}

func (m *StubProvider) Stream(ctx context.Context, req Request, fn StreamFunc) (*Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, cloneRequest(req))
	reply := m.Replies[min(m.next, len(m.Replies)-1)]
	m.next++
	failAfter := m.FailAfter
	m.FailAfter = -1
	m.mu.Unlock()

	var sb strings.Builder
	for i, chunk := range strings.SplitAfter(reply, " ") {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if failAfter >= 0 && i >= failAfter {
			return nil, ErrStubFailure
		}
		sb.WriteString(chunk)
		if err := emit(fn, chunk); err != nil {
			return nil, err
		}
	}
	if failAfter >= 0 {
		return nil, ErrStubFailure
	}

	content := sb.String()
	words := len(strings.Fields(content))
	return &Response{
		Content:      content,
		FinishReason: "stop",
		Usage:        Usage{CompletionTokens: words, TotalTokens: words},
	}, nil
}

// Requests returns copies of every request received so far.
func (m *StubProvider) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *StubProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *StubProvider) Name() string {
	return "stub"
}

func cloneRequest(req Request) Request {
	req.Messages = append([]Message(nil), req.Messages...)
	req.Stop = append([]string(nil), req.Stop...)
	return req
}
