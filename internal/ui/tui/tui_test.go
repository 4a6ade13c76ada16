package tui

import (
	"bytes"
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/ragchat/internal/chat"
	"github.com/felixgeelhaar/ragchat/internal/config"
	"github.com/felixgeelhaar/ragchat/internal/embedding"
	"github.com/felixgeelhaar/ragchat/internal/observe"
	"github.com/felixgeelhaar/ragchat/internal/provider"
	"github.com/felixgeelhaar/ragchat/internal/rag"
	"github.com/felixgeelhaar/ragchat/internal/store"
)

type panickingProvider struct {
	*provider.StubProvider
}

func (p *panickingProvider) Stream(ctx context.Context, req provider.Request, fn provider.StreamFunc) (*provider.Response, error) {
	panic("boom")
}

func newTestModel(t *testing.T, replies ...string) Model {
	t.Helper()
	return newModelWith(t, provider.NewStubProvider(replies...), nil)
}

func newModelWith(t *testing.T, p provider.Provider, obs *observe.Observer) Model {
	t.Helper()
	st := store.New(embedding.NewHashEmbedder(64))
	if _, err := st.Insert(context.Background(), "d1", "Paris is the capital of France"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	ctrl := chat.New(p, st, config.Default().Session(), rag.InlineAssembler{})
	m := NewModel(context.Background(), "ragchat", ctrl, obs)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return updated.(Model)
}

// enter submits line and runs the resulting command synchronously.
func enter(t *testing.T, m Model, line string) Model {
	t.Helper()
	m.Input.SetValue(line)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	if !m.Busy {
		t.Fatal("expected model to be busy after enter")
	}
	if cmd == nil {
		t.Fatal("expected a command after enter")
	}
	updated, _ = m.Update(cmd())
	return updated.(Model)
}

func TestModel_InitialView(t *testing.T) {
	m := NewModel(context.Background(), "ragchat", chat.New(provider.NewStubProvider(), store.New(embedding.NewHashEmbedder(8)), config.Default().Session(), nil), nil)
	if !strings.Contains(m.View(), "Initializing") {
		t.Error("expected initializing view before the window size is known")
	}
}

func TestModel_Submit(t *testing.T) {
	m := newTestModel(t, "It is Paris.")
	m = enter(t, m, "What is the capital of France?")

	if m.Busy {
		t.Error("expected model to be idle after the outcome")
	}
	view := m.View()
	for _, want := range []string{"ragchat", "What is the capital of France?", "It is Paris.", "Turns: 1"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
	if m.Input.Value() != "" {
		t.Errorf("expected input to be cleared, got %q", m.Input.Value())
	}
}

func TestModel_StreamMessages(t *testing.T) {
	m := newTestModel(t)
	m.Busy = true

	updated, _ := m.Update(StatusMsg("generating"))
	m = updated.(Model)
	updated, _ = m.Update(ChunkMsg("Hel"))
	m = updated.(Model)
	updated, _ = m.Update(ChunkMsg("lo"))
	m = updated.(Model)

	if m.Status != "generating" {
		t.Errorf("expected status generating, got %q", m.Status)
	}
	if m.Pending != "Hello" {
		t.Errorf("expected pending Hello, got %q", m.Pending)
	}
	if !strings.Contains(m.View(), "Hello") {
		t.Error("expected partial reply in view")
	}
}

func TestModel_Notices(t *testing.T) {
	m := newTestModel(t)

	m = enter(t, m, "search capital")
	if !strings.Contains(m.View(), "Document d1 (distance:") {
		t.Errorf("expected search results in view, got %q", m.View())
	}

	m = enter(t, m, "top x")
	if !strings.Contains(m.View(), "Invalid top N value") {
		t.Error("expected invalid top N notice")
	}
	if strings.Contains(m.View(), "Document d1") {
		t.Error("expected notices to be cleared on the next command")
	}

	updated, _ := m.Update(LogMsg("debug line"))
	if !strings.Contains(updated.(Model).View(), "debug line") {
		t.Error("expected log message in view")
	}
}

func TestModel_Quit(t *testing.T) {
	m := newTestModel(t)
	m.Input.SetValue("q")
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	updated, quit := m.Update(cmd())
	m = updated.(Model)

	if !m.Quitting {
		t.Error("expected model to be quitting")
	}
	if quit == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := quit().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestModel_CtrlCCancelsGeneration(t *testing.T) {
	m := newTestModel(t)
	m.Input.SetValue("hello")
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = updated.(Model)
	if m.Quitting || cmd != nil {
		t.Error("expected ctrl+c to cancel the turn, not quit")
	}

	m.Busy = false
	updated, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !updated.(Model).Quitting || cmd == nil {
		t.Error("expected ctrl+c to quit when idle")
	}
}

func TestModel_TopNFromOutcome(t *testing.T) {
	m := newTestModel(t)
	if m.TopN != 3 || !strings.Contains(m.View(), "Top N: 3") {
		t.Fatalf("expected initial top N 3, got %d", m.TopN)
	}

	m = enter(t, m, "top 4")
	if m.TopN != 4 {
		t.Errorf("expected top N 4 after the command, got %d", m.TopN)
	}
	if !strings.Contains(m.View(), "Top N: 4") {
		t.Errorf("expected header to show the new top N, got %q", m.View())
	}
}

func TestModel_TopNNotReadBeforeOutcome(t *testing.T) {
	m := newTestModel(t)
	m.Input.SetValue("top 5")
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)

	msg := cmd()
	if m.TopN != 3 || !strings.Contains(m.View(), "Top N: 3") {
		t.Errorf("expected the model to keep its top N until the outcome arrives, got %d", m.TopN)
	}
	updated, _ = m.Update(msg)
	if updated.(Model).TopN != 5 {
		t.Errorf("expected top N 5 after the outcome, got %d", updated.(Model).TopN)
	}
}

func TestModel_RecoversFromPanic(t *testing.T) {
	var logs bytes.Buffer
	m := newModelWith(t, &panickingProvider{StubProvider: provider.NewStubProvider()}, observe.New(&logs, false))

	m = enter(t, m, "What is the capital of France?")

	if m.Quitting {
		t.Error("expected the program to keep running after a panic")
	}
	if m.Busy {
		t.Error("expected model to be idle after the recovered turn")
	}
	if !strings.Contains(m.View(), "An error occurred: boom") {
		t.Errorf("expected panic to be reported, got %q", m.View())
	}
	if !strings.Contains(logs.String(), "recovered from unexpected error") {
		t.Errorf("expected panic to be logged, got %q", logs.String())
	}

	if m = enter(t, m, "top 2"); m.TopN != 2 {
		t.Errorf("expected commands to keep working after a panic, got top N %d", m.TopN)
	}
}
