package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads variables from the given .env files (default ".env") into
// the process environment. Missing files are ignored; existing variables win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with values from environment variables.
func ApplyEnv(cfg *AppConfig) error {
	return applyEnv(cfg, os.LookupEnv)
}

func applyEnv(cfg *AppConfig, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	str("LLM_PROVIDER", &cfg.LLM.Provider)
	str("LLM_MODEL", &cfg.LLM.Model)
	str("MODEL_URL", &cfg.LLM.BaseURL)
	str("API_KEY", &cfg.LLM.APIKey)
	str("EMBEDDING_PROVIDER", &cfg.Embedding.Provider)
	str("EMBEDDING_MODEL", &cfg.Embedding.Model)
	str("DB_PATH", &cfg.Store.Path)
	str("SYSTEM_MESSAGE", &cfg.Chat.SystemMessage)
	str("USER_ID", &cfg.Chat.UserID)

	if v, ok := lookup("MAX_TOKENS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MAX_TOKENS %q: %w", v, err)
		}
		cfg.Chat.MaxTokens = n
	}
	if v, ok := lookup("TEMPERATURE"); ok && v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid TEMPERATURE %q: %w", v, err)
		}
		cfg.Chat.Temperature = t
	}
	if v, ok := lookup("TOP_N"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid TOP_N %q: must be a positive integer", v)
		}
		cfg.Chat.TopN = n
	}
	return nil
}
