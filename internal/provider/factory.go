package provider

import (
	"fmt"
	"strings"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// New builds the provider registered under name. "groq" and "vllm" are
// OpenAI-compatible endpoints; "ai_studio" is an alias for gemini.
func New(name string, cfg Config) (Provider, error) {
	switch strings.ToLower(name) {
	case "openai", "vllm":
		return NewOpenAIProvider(cfg)
	case "groq":
		if cfg.BaseURL == "" {
			cfg.BaseURL = groqBaseURL
		}
		return NewOpenAIProvider(cfg)
	case "ollama":
		return NewOllamaProvider(cfg)
	case "gemini", "ai_studio":
		return NewGeminiProvider(cfg)
	case "anthropic":
		return NewAnthropicProvider(cfg)
	case "cli":
		fields := strings.Fields(cfg.Command)
		if len(fields) == 0 {
			return nil, fmt.Errorf("cli provider needs the agent command in llm.cli_path")
		}
		return NewCLIProvider(fields[0], fields[1:], cfg.Timeout)
	case "stub":
		return NewStubProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
