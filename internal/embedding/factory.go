package embedding

import (
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/ragchat/internal/config"
	"github.com/felixgeelhaar/ragchat/internal/provider"
)

// New builds the embedder selected by cfg.Embedding.Provider and wraps it in
// an LRU cache when cfg.Embedding.CacheSize is positive. Remote embedders
// reuse the LLM API key.
func New(cfg *config.AppConfig) (Embedder, error) {
	ec := cfg.Embedding
	pcfg := provider.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        ec.BaseURL,
		EmbeddingModel: ec.Model,
		Timeout:        time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
	}

	var (
		inner Embedder
		err   error
	)
	switch strings.ToLower(ec.Provider) {
	case "", "hash":
		inner = NewHashEmbedder(ec.Dimensions)
	case "openai":
		inner, err = provider.NewOpenAIProvider(pcfg)
	case "ollama":
		inner, err = provider.NewOllamaProvider(pcfg)
	case "gemini":
		inner, err = provider.NewGeminiProvider(pcfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", ec.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("embedding provider %s: %w", ec.Provider, err)
	}
	return NewCached(inner, ec.CacheSize), nil
}
