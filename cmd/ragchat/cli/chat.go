package cli

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/ragchat/internal/chat"
	"github.com/felixgeelhaar/ragchat/internal/config"
	"github.com/felixgeelhaar/ragchat/internal/observe"
	"github.com/felixgeelhaar/ragchat/internal/provider"
	"github.com/felixgeelhaar/ragchat/internal/rag"
	"github.com/felixgeelhaar/ragchat/internal/server"
	"github.com/felixgeelhaar/ragchat/internal/store"
	"github.com/felixgeelhaar/ragchat/internal/ui/console"
	"github.com/felixgeelhaar/ragchat/internal/ui/tui"
)

type chatOptions struct {
	llmProvider   string
	model         string
	modelURL      string
	apiKey        string
	systemMessage string
	maxTokens     int
	temperature   float64
	topN          int
	assembler     string
	debug         bool
	interactive   bool
	serveAddr     string
}

func newChatCmd(root *rootOptions) *cobra.Command {
	opts := &chatOptions{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start a chat session over the document store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.llmProvider, "llm-provider", "p", "", "LLM provider (openai, groq, vllm, ollama, gemini, anthropic, cli, stub)")
	f.StringVarP(&opts.model, "model", "m", "", "Model name (default depends on provider)")
	f.StringVar(&opts.modelURL, "model-url", "", "Base URL of the LLM endpoint")
	f.StringVar(&opts.apiKey, "api-key", "", "API key for the LLM endpoint")
	f.StringVar(&opts.systemMessage, "system-message", "", "System message sent with every turn")
	f.IntVar(&opts.maxTokens, "max-tokens", 0, "Maximum tokens per reply")
	f.Float64Var(&opts.temperature, "temperature", 0, "Sampling temperature")
	f.IntVar(&opts.topN, "top-n", 0, "Documents retrieved per turn")
	f.StringVar(&opts.assembler, "assembler", "", "Where retrieved documents go (inline, exchange)")
	f.BoolVar(&opts.debug, "debug", false, "Print the turns sent to the model")
	f.BoolVarP(&opts.interactive, "tui", "i", false, "Start the full-screen interface")
	f.StringVar(&opts.serveAddr, "serve-addr", "", "Also serve the HTTP API (search, metrics) on this address")
	return cmd
}

func (o *chatOptions) apply(cmd *cobra.Command, cfg *config.AppConfig) error {
	f := cmd.Flags()
	if f.Changed("llm-provider") {
		cfg.LLM.Provider = o.llmProvider
	}
	if f.Changed("model") {
		cfg.LLM.Model = o.model
	}
	if f.Changed("model-url") {
		cfg.LLM.BaseURL = o.modelURL
	}
	if f.Changed("api-key") {
		cfg.LLM.APIKey = o.apiKey
	}
	if f.Changed("system-message") {
		cfg.Chat.SystemMessage = o.systemMessage
	}
	if f.Changed("max-tokens") {
		cfg.Chat.MaxTokens = o.maxTokens
	}
	if f.Changed("temperature") {
		cfg.Chat.Temperature = o.temperature
	}
	if f.Changed("top-n") {
		if o.topN <= 0 {
			return fmt.Errorf("--top-n must be a positive integer, got %d", o.topN)
		}
		cfg.Chat.TopN = o.topN
	}
	if f.Changed("assembler") {
		cfg.RAG.Assembler = o.assembler
	}
	if f.Changed("debug") {
		cfg.Chat.Debug = o.debug
	}
	return nil
}

// chatSession is everything one chat command wires together.
type chatSession struct {
	ctrl    *chat.Controller
	store   *store.Store
	llm     provider.Provider
	metrics *observe.Metrics
	obs     *observe.Observer
}

func newChatSession(cfg *config.AppConfig, obs *observe.Observer) (*chatSession, error) {
	metrics := observe.NewMetrics("ragchat")
	st, err := openStore(cfg, obs, metrics)
	if err != nil {
		return nil, err
	}
	llm, err := provider.New(cfg.LLM.Provider, providerConfig(cfg))
	if err != nil {
		closeLogged(obs, "store", st)
		return nil, fmt.Errorf("failed to initialize provider: %w", err)
	}
	asm, err := rag.NewAssembler(cfg.RAG.Assembler)
	if err != nil {
		closeLogged(obs, "provider", llm)
		closeLogged(obs, "store", st)
		return nil, err
	}

	ctrl := chat.New(llm, st, cfg.Session(), asm, chat.WithObserver(obs), chat.WithMetrics(metrics))
	ctrl.Events().SubscribeAll(func(e chat.Event) {
		obs.Log().Debug().Str("session", e.SessionID).Str("event", string(e.Type)).Msg("chat event")
	})
	return &chatSession{ctrl: ctrl, store: st, llm: llm, metrics: metrics, obs: obs}, nil
}

// Close releases the provider and embedder clients.
func (s *chatSession) Close() {
	closeLogged(s.obs, "provider", s.llm)
	closeLogged(s.obs, "store", s.store)
}

func runChat(cmd *cobra.Command, root *rootOptions, opts *chatOptions) error {
	cfg, err := root.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := opts.apply(cmd, cfg); err != nil {
		return err
	}

	obs := root.observer(cmd)
	defer obs.Close()

	sess, err := newChatSession(cfg, obs)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctrl := sess.ctrl
	obs.Log().Info().
		Str("session", ctrl.ID()).
		Str("provider", sess.llm.Name()).
		Int("documents", sess.store.Count()).
		Msg("chat session started")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if opts.serveAddr != "" {
		srv := server.New(sess.store, obs, sess.metrics)
		go func() {
			if err := srv.ListenAndServe(ctx, opts.serveAddr); err != nil {
				obs.Log().Error().Err(err).Str("addr", opts.serveAddr).Msg("HTTP API stopped")
			}
		}()
	}

	if opts.interactive {
		model := tui.NewModel(ctx, "ragchat", ctrl, obs)
		program := tea.NewProgram(model, tea.WithAltScreen())
		ctrl.SetUI(tui.NewTUI(program))
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("tui failed: %w", err)
		}
		return nil
	}

	return console.New(cmd.InOrStdin(), cmd.OutOrStdout(), ctrl, obs, clearScreen(cmd)).Run(ctx)
}

// clearScreen reports whether output goes straight to a terminal.
func clearScreen(cmd *cobra.Command) bool {
	f, ok := cmd.OutOrStdout().(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
