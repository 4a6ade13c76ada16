package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/ragchat/internal/config"
	"github.com/felixgeelhaar/ragchat/internal/credential"
	"github.com/felixgeelhaar/ragchat/internal/embedding"
	"github.com/felixgeelhaar/ragchat/internal/observe"
	"github.com/felixgeelhaar/ragchat/internal/provider"
	"github.com/felixgeelhaar/ragchat/internal/store"
)

func (o *rootOptions) configFile() string {
	if o.configPath != "" {
		return o.configPath
	}
	return defaultConfigFile
}

// loadConfig resolves the effective configuration: defaults, then the config
// file, then .env and the environment, then flags set on cmd.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	cfg, err := config.Load(o.configFile())
	if err != nil {
		return nil, err
	}
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if credential.IsEncrypted(cfg.LLM.APIKey) {
		mgr, err := credential.NewManager()
		if err != nil {
			return nil, err
		}
		if err := cfg.DecryptSecrets(mgr); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("db-path") {
		cfg.Store.Path = o.dbPath
	}
	if flags.Changed("embedding-provider") {
		cfg.Embedding.Provider = o.embeddingProvider
	}
	if flags.Changed("embedding-model") {
		cfg.Embedding.Model = o.embeddingModel
	}
	return cfg, nil
}

func (o *rootOptions) observer(cmd *cobra.Command) *observe.Observer {
	if o.jsonLogs {
		return observe.NewJSON(cmd.ErrOrStderr(), o.verbose)
	}
	return observe.New(cmd.ErrOrStderr(), o.verbose)
}

func openStore(cfg *config.AppConfig, obs *observe.Observer, metrics *observe.Metrics) (*store.Store, error) {
	emb, err := embedding.New(cfg)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Store.Path, emb,
		store.WithObserver(obs),
		store.WithMetrics(metrics),
		store.WithEmbeddingModel(embeddingLabel(cfg)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}
	return st, nil
}

// embeddingLabel names the embedding function recorded in snapshots.
func embeddingLabel(cfg *config.AppConfig) string {
	if cfg.Embedding.Model == "" {
		return cfg.Embedding.Provider
	}
	return cfg.Embedding.Provider + "/" + cfg.Embedding.Model
}

func providerConfig(cfg *config.AppConfig) provider.Config {
	return provider.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.Embedding.Model,
		Timeout:        time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
		Command:        cfg.LLM.CLIPath,
	}
}

// closeLogged closes v when it holds resources, logging a failure.
func closeLogged(obs *observe.Observer, name string, v any) {
	c, ok := v.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		obs.Log().Warn().Str("component", name).Err(err).Msg("close failed")
	}
}
