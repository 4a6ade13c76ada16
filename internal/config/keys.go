package config

import (
	"fmt"
	"sort"
	"strconv"
)

type field struct {
	get    func(*AppConfig) string
	set    func(*AppConfig, string) error
	secret bool
}

func strField(p func(*AppConfig) *string) field {
	return field{
		get: func(c *AppConfig) string { return *p(c) },
		set: func(c *AppConfig, v string) error { *p(c) = v; return nil },
	}
}

func intField(p func(*AppConfig) *int) field {
	return field{
		get: func(c *AppConfig) string { return strconv.Itoa(*p(c)) },
		set: func(c *AppConfig, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("expected an integer, got %q", v)
			}
			*p(c) = n
			return nil
		},
	}
}

var fields = map[string]field{
	"llm.provider":         strField(func(c *AppConfig) *string { return &c.LLM.Provider }),
	"llm.model":            strField(func(c *AppConfig) *string { return &c.LLM.Model }),
	"llm.base_url":         strField(func(c *AppConfig) *string { return &c.LLM.BaseURL }),
	"llm.cli_path":         strField(func(c *AppConfig) *string { return &c.LLM.CLIPath }),
	"embedding.provider":   strField(func(c *AppConfig) *string { return &c.Embedding.Provider }),
	"embedding.model":      strField(func(c *AppConfig) *string { return &c.Embedding.Model }),
	"embedding.base_url":   strField(func(c *AppConfig) *string { return &c.Embedding.BaseURL }),
	"store.path":           strField(func(c *AppConfig) *string { return &c.Store.Path }),
	"chat.system_message":  strField(func(c *AppConfig) *string { return &c.Chat.SystemMessage }),
	"chat.user_id":         strField(func(c *AppConfig) *string { return &c.Chat.UserID }),
	"rag.assembler":        strField(func(c *AppConfig) *string { return &c.RAG.Assembler }),
	"server.addr":          strField(func(c *AppConfig) *string { return &c.Server.Addr }),
	"chat.max_tokens":      intField(func(c *AppConfig) *int { return &c.Chat.MaxTokens }),
	"chat.top_n":           intField(func(c *AppConfig) *int { return &c.Chat.TopN }),
	"embedding.dimensions": intField(func(c *AppConfig) *int { return &c.Embedding.Dimensions }),
	"chat.temperature": {
		get: func(c *AppConfig) string { return strconv.FormatFloat(c.Chat.Temperature, 'g', -1, 64) },
		set: func(c *AppConfig, v string) error {
			t, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("expected a number, got %q", v)
			}
			c.Chat.Temperature = t
			return nil
		},
	},
	"llm.api_key": {
		get:    func(c *AppConfig) string { return c.LLM.APIKey },
		set:    func(c *AppConfig, v string) error { c.LLM.APIKey = v; return nil },
		secret: true,
	},
}

// Keys lists the settable configuration keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsSecret reports whether key holds a credential.
func IsSecret(key string) bool {
	return fields[key].secret
}

// Set assigns value to the dotted key.
func (cfg *AppConfig) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("unknown config key: %s", key)
	}
	if err := f.set(cfg, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// Get returns the value stored under the dotted key.
func (cfg *AppConfig) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %s", key)
	}
	return f.get(cfg), nil
}
