package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/felixgeelhaar/ragchat/internal/config"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder(0)
	if e.Dimensions() != DefaultDimensions {
		t.Fatalf("expected %d dimensions, got %d", DefaultDimensions, e.Dimensions())
	}
	a, err := e.Embed(context.Background(), "Paris is the capital of France")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	b, _ := e.Embed(context.Background(), "Paris is the capital of France")
	if len(a) != DefaultDimensions {
		t.Fatalf("expected length %d, got %d", DefaultDimensions, len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding differs at %d", i)
		}
	}
}

func TestHashEmbedder_Normalised(t *testing.T) {
	v, _ := NewHashEmbedder(64).Embed(context.Background(), "one two three two")
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if math.Abs(sum-1) > 1e-5 {
		t.Errorf("expected unit norm, got %f", sum)
	}
}

func TestHashEmbedder_Similarity(t *testing.T) {
	e := NewHashEmbedder(384)
	ctx := context.Background()
	doc, _ := e.Embed(ctx, "Paris is the capital of France")
	query, _ := e.Embed(ctx, "capital of France")
	other, _ := e.Embed(ctx, "Bananas grow on tropical plants")

	if cosine(doc, query) <= cosine(other, query) {
		t.Errorf("related text should score higher: %f <= %f", cosine(doc, query), cosine(other, query))
	}
}

func TestHashEmbedder_Empty(t *testing.T) {
	v, err := NewHashEmbedder(8).Embed(context.Background(), "  ,, ")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	for _, x := range v {
		if x != 0 {
			t.Fatalf("expected zero vector, got %v", v)
		}
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("Hello, World! It's 2024.")
	want := []string{"hello", "world", "it", "s", "2024"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestCache_GetSet(t *testing.T) {
	c := NewCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Get("a")
	c.Set("c", []float32{6}) // evicts b
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to remain")
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", c.Len())
	}
}

func TestCache_ReturnsCopies(t *testing.T) {
	c := NewCache(1)
	c.Set("a", []float32{1})
	v, _ := c.Get("a")
	v[0] = 99
	again, _ := c.Get("a")
	if again[0] != 1 {
		t.Errorf("cached value was mutated: %v", again)
	}
}

func TestCached(t *testing.T) {
	calls := 0
	inner := Func(func(ctx context.Context, text string) ([]float32, error) {
		calls++
		if text == "bad" {
			return nil, errors.New("boom")
		}
		return []float32{float32(len(text))}, nil
	})

	e := NewCached(inner, 4)
	for i := 0; i < 3; i++ {
		v, err := e.Embed(context.Background(), "query")
		if err != nil || v[0] != 5 {
			t.Fatalf("unexpected result %v, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 inner call, got %d", calls)
	}

	e.Embed(context.Background(), "bad")
	e.Embed(context.Background(), "bad")
	if calls != 3 {
		t.Errorf("errors must not be cached, got %d calls", calls)
	}
}

func TestNewCached_Disabled(t *testing.T) {
	inner := NewHashEmbedder(8)
	if NewCached(inner, 0) != Embedder(inner) {
		t.Error("expected inner embedder when cache size is zero")
	}
}

func TestNew(t *testing.T) {
	cfg := config.Default()
	cfg.Embedding.Provider = "hash"
	cfg.Embedding.Dimensions = 16
	cfg.Embedding.CacheSize = 0
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	v, _ := e.Embed(context.Background(), "text")
	if len(v) != 16 {
		t.Errorf("expected 16 dimensions, got %d", len(v))
	}

	cfg.Embedding.CacheSize = 8
	if e, _ := New(cfg); e == nil {
		t.Fatal("expected embedder")
	} else if _, ok := e.(*Cached); !ok {
		t.Errorf("expected cached embedder, got %T", e)
	}

	cfg.Embedding.Provider = "ollama"
	if _, err := New(cfg); err != nil {
		t.Errorf("ollama embedder should not need a key: %v", err)
	}

	cfg.Embedding.Provider = "word2vec"
	if _, err := New(cfg); err == nil {
		t.Error("expected error for unknown provider")
	}
}

// embeddingServer fakes the OpenAI embeddings endpoint and records the
// requested model names.
func embeddingServer(t *testing.T, models *[]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		*models = append(*models, body.Model)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.6,0.8]}],"model":"m"}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNew_RemoteProviderModel(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  string
	}{
		{"provider default", "", "text-embedding-3-small"},
		{"configured model", "text-embedding-3-large", "text-embedding-3-large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var models []string
			server := embeddingServer(t, &models)

			cfg := config.Default()
			cfg.Embedding.Provider = "openai"
			cfg.Embedding.BaseURL = server.URL
			cfg.Embedding.Model = tt.model

			e, err := New(cfg)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			v, err := e.Embed(context.Background(), "hello")
			if err != nil {
				t.Fatalf("Embed failed: %v", err)
			}
			if len(v) != 2 {
				t.Errorf("expected 2 dimensions, got %d", len(v))
			}
			if len(models) != 1 || models[0] != tt.want {
				t.Errorf("expected model %q sent, got %q", tt.want, models)
			}
		})
	}
}

func TestDefaultConfig_LeavesEmbeddingModelEmpty(t *testing.T) {
	if m := config.Default().Embedding.Model; m != "" {
		t.Errorf("expected no default embedding model, got %q", m)
	}
}

type closingEmbedder struct {
	Func
	closed bool
}

func (e *closingEmbedder) Close() error {
	e.closed = true
	return nil
}

func TestCached_CloseForwards(t *testing.T) {
	inner := &closingEmbedder{Func: func(context.Context, string) ([]float32, error) { return []float32{1}, nil }}
	c := NewCached(inner, 4).(*Cached)
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !inner.closed {
		t.Error("expected inner embedder to be closed")
	}

	plain := NewCached(NewHashEmbedder(4), 4).(*Cached)
	if err := plain.Close(); err != nil {
		t.Errorf("expected no error for a non-closing embedder, got %v", err)
	}
}
