package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Chat.TopN != DefaultTopN {
		t.Errorf("expected top_n %d, got %d", DefaultTopN, cfg.Chat.TopN)
	}
	if cfg.Chat.Temperature != DefaultTemperature {
		t.Errorf("expected temperature %v, got %v", DefaultTemperature, cfg.Chat.Temperature)
	}
	if cfg.Store.Path != DefaultDBPath {
		t.Errorf("expected db path %q, got %q", DefaultDBPath, cfg.Store.Path)
	}
	if len(cfg.Chat.StopSequences) != 3 {
		t.Errorf("expected 3 stop sequences, got %v", cfg.Chat.StopSequences)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragchat.yaml")
	content := "llm:\n  provider: ollama\n  model: llama3.2\nchat:\n  top_n: 7\n  temperature: 0.2\nrag:\n  assembler: exchange\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Provider != "ollama" || cfg.LLM.Model != "llama3.2" {
		t.Errorf("unexpected llm config: %+v", cfg.LLM)
	}
	if cfg.Chat.TopN != 7 {
		t.Errorf("expected top_n 7, got %d", cfg.Chat.TopN)
	}
	if cfg.Chat.Temperature != 0.2 {
		t.Errorf("expected temperature 0.2, got %v", cfg.Chat.Temperature)
	}
	if cfg.RAG.Assembler != "exchange" {
		t.Errorf("expected exchange assembler, got %q", cfg.RAG.Assembler)
	}
	// untouched sections still get defaults
	if cfg.Chat.SystemMessage != DefaultSystemMessage {
		t.Errorf("expected default system message, got %q", cfg.Chat.SystemMessage)
	}
}

func TestLoad_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragchat.json")
	if err := os.WriteFile(path, []byte(`{"store":{"path":"docs.db"},"chat":{"max_tokens":64}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Store.Path != "docs.db" {
		t.Errorf("expected docs.db, got %q", cfg.Store.Path)
	}
	if cfg.Chat.MaxTokens != 64 {
		t.Errorf("expected 64 max tokens, got %d", cfg.Chat.MaxTokens)
	}
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragchat.toml")
	if err := os.WriteFile(path, []byte("x = 1"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ragchat.yaml")
	cfg := Default()
	cfg.LLM.Provider = "anthropic"
	cfg.Chat.TopN = 9

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.LLM.Provider != "anthropic" || got.Chat.TopN != 9 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"LLM_PROVIDER":   "groq",
		"MODEL_URL":      "http://localhost:9999/v1",
		"DB_PATH":        "other.db",
		"MAX_TOKENS":     "256",
		"TEMPERATURE":    "1.5",
		"TOP_N":          "4",
		"SYSTEM_MESSAGE": "Be brief.",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	cfg := Default()
	if err := applyEnv(cfg, lookup); err != nil {
		t.Fatalf("applyEnv failed: %v", err)
	}
	if cfg.LLM.Provider != "groq" || cfg.LLM.BaseURL != "http://localhost:9999/v1" {
		t.Errorf("unexpected llm config: %+v", cfg.LLM)
	}
	if cfg.Store.Path != "other.db" {
		t.Errorf("expected other.db, got %q", cfg.Store.Path)
	}
	if cfg.Chat.MaxTokens != 256 || cfg.Chat.Temperature != 1.5 || cfg.Chat.TopN != 4 {
		t.Errorf("unexpected chat config: %+v", cfg.Chat)
	}
	if cfg.Chat.SystemMessage != "Be brief." {
		t.Errorf("unexpected system message %q", cfg.Chat.SystemMessage)
	}
}

func TestApplyEnv_Invalid(t *testing.T) {
	cases := map[string]string{
		"MAX_TOKENS":  "many",
		"TEMPERATURE": "warm",
		"TOP_N":       "0",
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			lookup := func(k string) (string, bool) {
				if k == name {
					return value, true
				}
				return "", false
			}
			if err := applyEnv(Default(), lookup); err == nil {
				t.Errorf("expected error for %s=%s", name, value)
			}
		})
	}
}

func TestSetGet(t *testing.T) {
	cfg := Default()
	if err := cfg.Set("chat.top_n", "6"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if v, _ := cfg.Get("chat.top_n"); v != "6" {
		t.Errorf("expected 6, got %q", v)
	}
	if err := cfg.Set("chat.temperature", "0.25"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if cfg.Chat.Temperature != 0.25 {
		t.Errorf("expected 0.25, got %v", cfg.Chat.Temperature)
	}
	if err := cfg.Set("chat.top_n", "lots"); err == nil {
		t.Error("expected error for non-numeric top_n")
	}
	if err := cfg.Set("no.such.key", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
	if !IsSecret("llm.api_key") || IsSecret("llm.model") {
		t.Error("unexpected secret classification")
	}
	if len(Keys()) != len(fields) {
		t.Errorf("Keys() returned %d keys, expected %d", len(Keys()), len(fields))
	}
}

type prefixDecrypter struct{}

func (prefixDecrypter) Decrypt(s string) (string, error) {
	if s == "bad" {
		return "", errors.New("boom")
	}
	return "plain-" + s, nil
}

func TestDecryptSecrets(t *testing.T) {
	cfg := Default()
	cfg.LLM.APIKey = "secret"
	if err := cfg.DecryptSecrets(prefixDecrypter{}); err != nil {
		t.Fatalf("DecryptSecrets failed: %v", err)
	}
	if cfg.LLM.APIKey != "plain-secret" {
		t.Errorf("expected decrypted key, got %q", cfg.LLM.APIKey)
	}

	cfg.LLM.APIKey = "bad"
	if err := cfg.DecryptSecrets(prefixDecrypter{}); err == nil {
		t.Error("expected error from decrypter")
	}
}

func TestSession_IsIndependentCopy(t *testing.T) {
	cfg := Default()
	p := 0.5
	cfg.Chat.PresencePenalty = &p

	a := cfg.Session()
	b := cfg.Session()
	a.TopN = 10
	a.StopSequences[0] = "changed"
	*a.PresencePenalty = 2

	if b.TopN != DefaultTopN {
		t.Errorf("sessions share top_n: %d", b.TopN)
	}
	if b.StopSequences[0] != DefaultStopSequences[0] {
		t.Errorf("sessions share stop sequences: %v", b.StopSequences)
	}
	if *b.PresencePenalty != 0.5 || *cfg.Chat.PresencePenalty != 0.5 {
		t.Error("sessions share presence penalty")
	}
}
