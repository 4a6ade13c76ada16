package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/ollama/ollama/api"
)

type OllamaProvider struct {
	client         *api.Client
	model          string
	embeddingModel string
}

func NewOllamaProvider(cfg Config) (*OllamaProvider, error) {
	model := cfg.Model
	if model == "" {
		model = "llama3.2"
	}

	baseURL := "http://localhost:11434"
	if envURL := os.Getenv("OLLAMA_HOST"); envURL != "" {
		baseURL = envURL
	}
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	uri, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url %q: %w", baseURL, err)
	}

	httpClient := http.DefaultClient
	if cfg.Timeout > 0 {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = model
	}

	return &OllamaProvider{
		client:         api.NewClient(uri, httpClient),
		model:          model,
		embeddingModel: embeddingModel,
	}, nil
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

func (p *OllamaProvider) Stream(ctx context.Context, req Request, fn StreamFunc) (*Response, error) {
	apiMsgs := make([]api.Message, 0, len(req.Messages)+1)
	if req.System != "" {
		apiMsgs = append(apiMsgs, api.Message{Role: RoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		apiMsgs = append(apiMsgs, api.Message{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	options := map[string]any{
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if len(req.Stop) > 0 {
		options["stop"] = req.Stop
	}
	if req.PresencePenalty != nil {
		options["presence_penalty"] = *req.PresencePenalty
	}
	if req.FrequencyPenalty != nil {
		options["frequency_penalty"] = *req.FrequencyPenalty
	}

	stream := true
	creq := &api.ChatRequest{
		Model:    pickModel(req, p.model),
		Messages: apiMsgs,
		Stream:   &stream,
		Options:  options,
	}

	var sb strings.Builder
	result := &Response{}
	err := p.client.Chat(ctx, creq, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		if resp.Done {
			result.FinishReason = resp.DoneReason
			result.Usage = Usage{
				PromptTokens:     resp.PromptEvalCount,
				CompletionTokens: resp.EvalCount,
				TotalTokens:      resp.EvalCount + resp.PromptEvalCount,
			}
		}
		return emit(fn, resp.Message.Content)
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat failed: %w", err)
	}

	result.Content = sb.String()
	return result, nil
}

func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	req := &api.EmbeddingRequest{
		Model:  p.embeddingModel,
		Prompt: text,
	}
	resp, err := p.client.Embeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("ollama embedding failed: %w", err)
	}
	vec := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
