// Package config provides configuration loading and structs for ragchat.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for config files that are neither YAML nor JSON.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// LLMConfig selects and configures the chat completion backend.
type LLMConfig struct {
	Provider    string `yaml:"provider" json:"provider"`
	Model       string `yaml:"model" json:"model"`
	BaseURL     string `yaml:"base_url" json:"base_url"`
	APIKey      string `yaml:"api_key" json:"api_key"`
	CLIPath     string `yaml:"cli_path,omitempty" json:"cli_path,omitempty"`
	TimeoutSecs int    `yaml:"timeout_secs" json:"timeout_secs"`
}

// EmbeddingConfig selects and configures the embedding function.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	BaseURL    string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`
}

// StoreConfig holds the document snapshot location.
type StoreConfig struct {
	Path string `yaml:"path" json:"path"`
}

// ChatConfig holds the initial per-session chat settings.
type ChatConfig struct {
	SystemMessage    string   `yaml:"system_message" json:"system_message"`
	UserID           string   `yaml:"user_id" json:"user_id"`
	MaxTokens        int      `yaml:"max_tokens" json:"max_tokens"`
	Temperature      float64  `yaml:"temperature" json:"temperature"`
	TopN             int      `yaml:"top_n" json:"top_n"`
	PresencePenalty  *float64 `yaml:"presence_penalty,omitempty" json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64 `yaml:"frequency_penalty,omitempty" json:"frequency_penalty,omitempty"`
	StopSequences    []string `yaml:"stop_sequences" json:"stop_sequences"`
	Debug            bool     `yaml:"debug" json:"debug"`
}

// RAGConfig selects where retrieved documents are injected.
type RAGConfig struct {
	Assembler string `yaml:"assembler" json:"assembler"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	LLM       LLMConfig       `yaml:"llm" json:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding"`
	Store     StoreConfig     `yaml:"store" json:"store"`
	Chat      ChatConfig      `yaml:"chat" json:"chat"`
	RAG       RAGConfig       `yaml:"rag" json:"rag"`
	Server    ServerConfig    `yaml:"server" json:"server"`
}

// Load reads a config from path. The format is chosen by extension (.yaml, .yml
// or .json). A missing file yields the defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg AppConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s (use .yaml or .json)", ErrUnsupportedFormat, ext)
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// Save writes the config to path in the format implied by its extension,
// creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		data, err = json.MarshalIndent(cfg, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		return fmt.Errorf("%w: %s (use .yaml or .json)", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Decrypter turns a stored secret back into plaintext.
type Decrypter interface {
	Decrypt(stored string) (string, error)
}

// DecryptSecrets replaces encrypted secrets in cfg with their plaintext.
// Plaintext values pass through unchanged.
func (cfg *AppConfig) DecryptSecrets(d Decrypter) error {
	if d == nil || cfg.LLM.APIKey == "" {
		return nil
	}
	key, err := d.Decrypt(cfg.LLM.APIKey)
	if err != nil {
		return fmt.Errorf("failed to decrypt llm.api_key: %w", err)
	}
	cfg.LLM.APIKey = key
	return nil
}

// Session returns a fresh copy of the mutable chat settings.
func (cfg *AppConfig) Session() *Session {
	s := &Session{
		SystemMessage: cfg.Chat.SystemMessage,
		UserID:        cfg.Chat.UserID,
		MaxTokens:     cfg.Chat.MaxTokens,
		Temperature:   cfg.Chat.Temperature,
		TopN:          cfg.Chat.TopN,
		Debug:         cfg.Chat.Debug,
		StopSequences: append([]string(nil), cfg.Chat.StopSequences...),
	}
	if cfg.Chat.PresencePenalty != nil {
		v := *cfg.Chat.PresencePenalty
		s.PresencePenalty = &v
	}
	if cfg.Chat.FrequencyPenalty != nil {
		v := *cfg.Chat.FrequencyPenalty
		s.FrequencyPenalty = &v
	}
	return s
}
