package config

const (
	DefaultLLMProvider       = "openai"
	DefaultEmbeddingProvider = "hash"
	DefaultDBPath            = "data.db"
	DefaultSystemMessage     = "You are a helpful assistant."
	DefaultUserID            = "User"
	DefaultMaxTokens         = 512
	DefaultTemperature       = 0.7
	DefaultTopN              = 3
	DefaultAssembler         = "inline"
	DefaultServerAddr        = "localhost:8080"
)

// DefaultStopSequences are sent to the backend unless the config overrides them.
var DefaultStopSequences = []string{"You:", "<|im_end|>", "</s>"}

// Default returns a config populated with defaults.
func Default() *AppConfig {
	cfg := &AppConfig{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any zero values in cfg.
// Embedding.Model stays empty so each embedding provider falls back to its own model.
// Temperature 0 is a valid setting and is kept as-is once a file was loaded,
// so it is only defaulted on an otherwise empty chat section.
func ApplyDefaults(cfg *AppConfig) {
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = DefaultLLMProvider
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 120
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = DefaultEmbeddingProvider
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1024
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultDBPath
	}
	if cfg.Chat.SystemMessage == "" && cfg.Chat.MaxTokens == 0 && cfg.Chat.TopN == 0 && cfg.Chat.Temperature == 0 {
		cfg.Chat.Temperature = DefaultTemperature
	}
	if cfg.Chat.SystemMessage == "" {
		cfg.Chat.SystemMessage = DefaultSystemMessage
	}
	if cfg.Chat.UserID == "" {
		cfg.Chat.UserID = DefaultUserID
	}
	if cfg.Chat.MaxTokens == 0 {
		cfg.Chat.MaxTokens = DefaultMaxTokens
	}
	if cfg.Chat.TopN == 0 {
		cfg.Chat.TopN = DefaultTopN
	}
	if cfg.Chat.StopSequences == nil {
		cfg.Chat.StopSequences = append([]string(nil), DefaultStopSequences...)
	}
	if cfg.RAG.Assembler == "" {
		cfg.RAG.Assembler = DefaultAssembler
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
}
