// Package store keeps an ordered, embedding-indexed table of documents and
// answers exact top-k cosine similarity queries over it.
package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/felixgeelhaar/ragchat/internal/embedding"
	"github.com/felixgeelhaar/ragchat/internal/observe"
)

// DefaultTopN is used by Query when topN is not positive.
const DefaultTopN = 5

var (
	ErrBadExtension      = errors.New("snapshot must be a .db, .sqlite or .sqlite3 file")
	ErrBadSchema         = errors.New("invalid snapshot schema")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrNoPath            = errors.New("store has no snapshot path")
)

// Document is one stored record.
type Document struct {
	ID        string
	Embedding []float32
	Content   string
}

// Result is a query hit. Distance holds the cosine similarity, higher is closer.
type Result struct {
	ID        string    `json:"doc_id"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
	Distance  float64   `json:"distance"`
}

type Option func(*Store)

func WithObserver(obs *observe.Observer) Option {
	return func(s *Store) { s.obs = observe.OrDiscard(obs) }
}

func WithMetrics(m *observe.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithEmbeddingModel records the model name in snapshots and warns when a
// loaded snapshot was built with a different one.
func WithEmbeddingModel(name string) Option {
	return func(s *Store) { s.model = name }
}

type Store struct {
	mu       sync.RWMutex
	path     string
	embedder embedding.Embedder
	obs      *observe.Observer
	metrics  *observe.Metrics
	model    string

	docs  []Document
	index map[string]int
	dim   int
}

// New returns an empty in-memory store without a snapshot path.
func New(embedder embedding.Embedder, opts ...Option) *Store {
	s := &Store{
		embedder: embedder,
		obs:      observe.Discard(),
		index:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open returns a store bound to the snapshot at path. A missing file yields an
// empty store; an existing file must be a valid snapshot.
func Open(path string, embedder embedding.Embedder, opts ...Option) (*Store, error) {
	if !validExtension(path) {
		return nil, fmt.Errorf("%w: %s", ErrBadExtension, path)
	}
	s := New(embedder, opts...)
	s.path = path
	if err := s.load(); err != nil {
		return nil, err
	}
	s.metrics.SetDocuments(len(s.docs))
	return s, nil
}

// Close releases the embedder when it holds a client. The documents stay
// readable; Save is still allowed afterwards.
func (s *Store) Close() error {
	if c, ok := s.embedder.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Path returns the snapshot path, empty for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// Insert embeds content and upserts it under id. An existing id keeps its
// position in the table.
func (s *Store) Insert(ctx context.Context, id, content string) ([]float32, error) {
	vec, _, err := s.insert(ctx, id, content)
	return vec, err
}

func (s *Store) insert(ctx context.Context, id, content string) ([]float32, bool, error) {
	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return nil, false, fmt.Errorf("embed document %s: %w", id, err)
	}
	if len(vec) == 0 {
		return nil, false, fmt.Errorf("%w: empty embedding for document %s", ErrDimensionMismatch, id)
	}

	s.mu.Lock()
	if s.dim != 0 && len(vec) != s.dim {
		s.mu.Unlock()
		return nil, false, fmt.Errorf("%w: document %s has %d dimensions, store has %d", ErrDimensionMismatch, id, len(vec), s.dim)
	}
	s.dim = len(vec)
	doc := Document{ID: id, Embedding: vec, Content: content}
	i, overwritten := s.index[id]
	if overwritten {
		s.docs[i] = doc
	} else {
		s.index[id] = len(s.docs)
		s.docs = append(s.docs, doc)
	}
	n := len(s.docs)
	s.mu.Unlock()

	s.metrics.SetDocuments(n)
	return slices.Clone(vec), overwritten, nil
}

// Query returns the topN documents most similar to text, sorted by descending
// similarity with ties kept in insertion order. An empty store yields no
// results and no error.
func (s *Store) Query(ctx context.Context, text string, topN int) ([]Result, error) {
	ctx, span := s.obs.StartSpan(ctx, "store.Query")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObserveQuery(time.Since(start)) }()

	if topN <= 0 {
		topN = DefaultTopN
	}

	q, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.docs) == 0 {
		return []Result{}, nil
	}
	if len(q) != s.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, store has %d", ErrDimensionMismatch, len(q), s.dim)
	}

	results := make([]Result, len(s.docs))
	for i, doc := range s.docs {
		results[i] = Result{
			ID:       doc.ID,
			Content:  doc.Content,
			Distance: cosineSimilarity(q, doc.Embedding),
		}
	}
	slices.SortStableFunc(results, func(a, b Result) int {
		return cmp.Compare(b.Distance, a.Distance)
	})
	if len(results) > topN {
		results = results[:topN]
	}
	for i := range results {
		results[i].Embedding = slices.Clone(s.docs[s.index[results[i].ID]].Embedding)
	}

	s.obs.Log().Debug().Str("query", text).Int("hits", len(results)).Msg("store query")
	return results, nil
}

// Get returns the content stored under id.
func (s *Store) Get(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return "", false
	}
	return s.docs[i].Content, true
}

// Count returns the number of stored documents.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Dimension returns the embedding length fixed by the first stored document,
// or 0 for an empty store.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Documents returns a copy of the table in insertion order.
func (s *Store) Documents() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Document, len(s.docs))
	for i, d := range s.docs {
		out[i] = Document{ID: d.ID, Embedding: slices.Clone(d.Embedding), Content: d.Content}
	}
	return out
}

// Clear resets the store to its freshly constructed state.
func (s *Store) Clear() {
	s.mu.Lock()
	s.docs = nil
	s.index = make(map[string]int)
	s.dim = 0
	s.mu.Unlock()
	s.metrics.SetDocuments(0)
}
