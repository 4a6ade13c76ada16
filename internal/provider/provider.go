package provider

import (
	"context"
	"time"
)

// Chat roles. History only ever holds user and assistant turns; the system
// message travels separately in Request.System.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request carries a turn sequence and the generation settings for one completion.
type Request struct {
	// Model overrides the provider's configured model when non-empty.
	Model            string
	Messages         []Message
	System           string
	MaxTokens        int
	Temperature      float64
	Stop             []string
	PresencePenalty  *float64
	FrequencyPenalty *float64
}

// Response represents the output from the model once the stream has ended.
type Response struct {
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason,omitempty"`
	Usage        Usage  `json:"usage"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamFunc receives response fragments in order. Returning an error aborts
// the stream and the error is returned from Stream.
type StreamFunc func(chunk string) error

// Provider defines the interface for AI model interactions.
type Provider interface {
	// Stream sends the request and delivers the response incrementally to fn
	// (which may be nil). A failure after some fragments were delivered is
	// reported as an error; the caller must discard the partial text.
	Stream(ctx context.Context, req Request, fn StreamFunc) (*Response, error)

	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Name returns the provider identifier (e.g., "stub", "openai").
	Name() string
}

// Config holds the connection settings shared by the providers.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	Timeout        time.Duration

	// Command is the agent command line used by the cli provider.
	Command string
}

// Chat runs a request to completion without observing the fragments.
func Chat(ctx context.Context, p Provider, req Request) (*Response, error) {
	return p.Stream(ctx, req, nil)
}

func emit(fn StreamFunc, chunk string) error {
	if fn == nil || chunk == "" {
		return nil
	}
	return fn(chunk)
}

func pickModel(req Request, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	return fallback
}
