package console

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/felixgeelhaar/ragchat/internal/chat"
	"github.com/felixgeelhaar/ragchat/internal/config"
	"github.com/felixgeelhaar/ragchat/internal/embedding"
	"github.com/felixgeelhaar/ragchat/internal/observe"
	"github.com/felixgeelhaar/ragchat/internal/provider"
	"github.com/felixgeelhaar/ragchat/internal/store"
)

type panickingProvider struct {
	*provider.StubProvider
	panics int
}

func (p *panickingProvider) Stream(ctx context.Context, req provider.Request, fn provider.StreamFunc) (*provider.Response, error) {
	if p.panics > 0 {
		p.panics--
		panic("boom")
	}
	return p.StubProvider.Stream(ctx, req, fn)
}

func newController(t *testing.T, p provider.Provider) *chat.Controller {
	t.Helper()
	st := store.New(embedding.NewHashEmbedder(64))
	if _, err := st.Insert(context.Background(), "d1", "Paris is the capital of France"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	return chat.New(p, st, config.Default().Session(), nil)
}

func run(t *testing.T, ctrl *chat.Controller, input string, obs *observe.Observer) string {
	t.Helper()
	var out bytes.Buffer
	c := New(strings.NewReader(input), &out, ctrl, obs, false)
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return out.String()
}

func TestConsole_Conversation(t *testing.T) {
	ctrl := newController(t, provider.NewStubProvider("It is Paris."))
	input := strings.Join([]string{
		"What is the capital of France?",
		"s capital of France",
		"",
		"top 0",
		"",
		"",
		"",
		"h",
		"",
		"q",
	}, "\n") + "\n"

	out := run(t, ctrl, input, nil)

	for _, want := range []string{
		"You (h for help): ",
		"It is Paris.",
		"Document d1 (distance: 0.71)",
		"invalid_top_n: Invalid top N value",
		chat.EmptyHint,
		"(s)earch <query>",
		"Hit enter to continue...",
		"Chat session ended.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if len(ctrl.History()) != 2 {
		t.Errorf("expected one exchange in history, got %d turns", len(ctrl.History()))
	}
	if !strings.Contains(out, "User: What is the capital of France?") {
		t.Errorf("history was not rendered:\n%s", out)
	}
}

func TestConsole_EndOfInput(t *testing.T) {
	ctrl := newController(t, provider.NewStubProvider("reply"))
	out := run(t, ctrl, "hello", nil)
	if !strings.Contains(out, "reply") || !strings.Contains(out, "Chat session ended.") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if len(ctrl.History()) != 2 {
		t.Errorf("last line without newline should still be submitted")
	}
}

func TestConsole_RecoversPanics(t *testing.T) {
	p := &panickingProvider{StubProvider: provider.NewStubProvider("fine"), panics: 1}
	ctrl := newController(t, p)

	var logs bytes.Buffer
	out := run(t, ctrl, "first\n\nsecond\nq\n", observe.New(&logs, false))

	if !strings.Contains(out, "An error occurred: boom") {
		t.Errorf("panic not reported:\n%s", out)
	}
	if !strings.Contains(logs.String(), "recovered from unexpected error") {
		t.Errorf("panic not logged: %q", logs.String())
	}
	if got := len(ctrl.History()); got != 2 {
		t.Errorf("session should continue after a panic, history has %d turns", got)
	}
}

func TestConsole_StreamFailure(t *testing.T) {
	stub := provider.NewStubProvider("partial reply here")
	stub.FailAfter = 1
	ctrl := newController(t, stub)

	out := run(t, ctrl, "hello\n\nq\n", nil)
	if !strings.Contains(out, "Generation failed") {
		t.Errorf("failure not reported:\n%s", out)
	}
	if len(ctrl.History()) != 0 {
		t.Errorf("expected empty history, got %d turns", len(ctrl.History()))
	}
}
