package rag

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/felixgeelhaar/ragchat/internal/config"
	"github.com/felixgeelhaar/ragchat/internal/embedding"
	"github.com/felixgeelhaar/ragchat/internal/provider"
	"github.com/felixgeelhaar/ragchat/internal/store"
)

type countingRetriever struct {
	results []store.Result
	err     error
	calls   int
	topNs   []int
}

func (r *countingRetriever) Query(ctx context.Context, text string, topN int) ([]store.Result, error) {
	r.calls++
	r.topNs = append(r.topNs, topN)
	return r.results, r.err
}

func history() []provider.Message {
	return []provider.Message{
		{Role: provider.RoleUser, Content: "hi"},
		{Role: provider.RoleAssistant, Content: "hello"},
		{Role: provider.RoleUser, Content: "what is rag?"},
		{Role: provider.RoleAssistant, Content: "retrieval augmented generation"},
	}
}

var docs = []store.Result{
	{ID: "d1", Content: "Paris is the capital of France", Distance: 0.8},
	{ID: "d2", Content: "Berlin is the capital of Germany", Distance: 0.4},
}

func assertAlternates(t *testing.T, turns []provider.Message) {
	t.Helper()
	for i, m := range turns {
		want := provider.RoleUser
		if i%2 == 1 {
			want = provider.RoleAssistant
		}
		if m.Role != want {
			t.Fatalf("turn %d: expected role %s, got %s", i, want, m.Role)
		}
	}
}

func TestAssemblers(t *testing.T) {
	assemblers := map[string]Assembler{
		AssemblerInline:   InlineAssembler{},
		AssemblerExchange: ExchangeAssembler{},
	}

	for name, a := range assemblers {
		for _, retrieved := range [][]store.Result{nil, docs} {
			t.Run(name, func(t *testing.T) {
				h := history()
				orig := history()

				turns := a.Assemble("capital of France?", h, retrieved)

				if !reflect.DeepEqual(h, orig) {
					t.Fatal("history was modified")
				}
				if !reflect.DeepEqual(turns[:len(h)], h) {
					t.Fatal("history is not a prefix of the result")
				}
				assertAlternates(t, turns)

				last := turns[len(turns)-1]
				if last.Role != provider.RoleUser || !strings.Contains(last.Content, "capital of France?") {
					t.Errorf("last turn must carry the input, got %+v", last)
				}

				if len(retrieved) == 0 {
					if len(turns) != len(h)+1 || last.Content != "capital of France?" {
						t.Errorf("no documents should give history + input, got %+v", turns)
					}
					return
				}

				joined := ""
				for _, m := range turns[len(h):] {
					joined += m.Content
				}
				for _, d := range retrieved {
					if !strings.Contains(joined, d.Content) || !strings.Contains(joined, d.ID) {
						t.Errorf("document %s missing from assembled turns", d.ID)
					}
				}

				turns[0].Content = "changed"
				if h[0].Content == "changed" {
					t.Error("result aliases history")
				}
			})
		}
	}
}

func TestExchangeAssembler_Shape(t *testing.T) {
	turns := ExchangeAssembler{}.Assemble("q", nil, docs)
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	if turns[1].Content != exchangeAck {
		t.Errorf("unexpected acknowledgement %q", turns[1].Content)
	}
	if turns[2].Content != "q" {
		t.Errorf("user turn must be the raw input, got %q", turns[2].Content)
	}
}

func TestNewAssembler(t *testing.T) {
	if a, err := NewAssembler(""); err != nil || a != (InlineAssembler{}) {
		t.Errorf("expected inline default, got %T %v", a, err)
	}
	if a, err := NewAssembler("Exchange"); err != nil || a != (ExchangeAssembler{}) {
		t.Errorf("expected exchange, got %T %v", a, err)
	}
	if _, err := NewAssembler("prepend"); err == nil {
		t.Error("expected error for unknown assembler")
	}
}

func TestStrategy_UserTurn(t *testing.T) {
	r := &countingRetriever{results: docs}
	s := NewStrategy(r, config.Default().Session(), nil)

	turn := s.UserTurn("hello there", history())
	if turn.Role != provider.RoleUser || turn.Content != "hello there" {
		t.Errorf("unexpected user turn %+v", turn)
	}
	if r.calls != 0 {
		t.Errorf("UserTurn must not query, got %d calls", r.calls)
	}
}

func TestStrategy_ChatTurns(t *testing.T) {
	r := &countingRetriever{results: docs}
	session := config.Default().Session()
	s := NewStrategy(r, session, ExchangeAssembler{})

	h := history()
	turns, retrieved, err := s.ChatTurns(context.Background(), "capital?", h)
	if err != nil {
		t.Fatalf("ChatTurns failed: %v", err)
	}
	if r.calls != 1 {
		t.Errorf("expected exactly one query, got %d", r.calls)
	}
	if len(retrieved) != 2 || len(turns) != len(h)+3 {
		t.Errorf("unexpected sizes: %d retrieved, %d turns", len(retrieved), len(turns))
	}

	session.TopN = 7
	s.ChatTurns(context.Background(), "again", h)
	if r.topNs[0] != config.DefaultTopN || r.topNs[1] != 7 {
		t.Errorf("expected top_n read live from session, got %v", r.topNs)
	}
}

func TestStrategy_ChatTurnsError(t *testing.T) {
	boom := errors.New("boom")
	s := NewStrategy(&countingRetriever{err: boom}, config.Default().Session(), nil)
	if _, _, err := s.ChatTurns(context.Background(), "q", nil); !errors.Is(err, boom) {
		t.Errorf("expected wrapped retriever error, got %v", err)
	}
}

func TestStrategy_WithStore(t *testing.T) {
	st := store.New(embedding.NewHashEmbedder(0))
	st.Insert(context.Background(), "d1", "Paris is the capital of France")
	st.Insert(context.Background(), "d2", "Bananas are yellow")

	session := config.Default().Session()
	session.TopN = 1
	s := NewStrategy(st, session, InlineAssembler{})

	turns, retrieved, err := s.ChatTurns(context.Background(), "capital of France", nil)
	if err != nil {
		t.Fatalf("ChatTurns failed: %v", err)
	}
	if len(retrieved) != 1 || retrieved[0].ID != "d1" {
		t.Fatalf("expected d1, got %+v", retrieved)
	}
	if len(turns) != 1 || !strings.Contains(turns[0].Content, "Paris") {
		t.Errorf("expected inline context, got %+v", turns)
	}
	if st.Count() != 2 {
		t.Error("store was modified")
	}
}
