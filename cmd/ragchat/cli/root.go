package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const defaultConfigFile = "ragchat.yaml"

type rootOptions struct {
	configPath        string
	dbPath            string
	embeddingProvider string
	embeddingModel    string
	verbose           bool
	jsonLogs          bool
}

// NewRootCmd builds the ragchat command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "ragchat",
		Short: "Chat with an LLM grounded in your own documents",
		Long: `ragchat keeps a small embedding-indexed document store and answers chat
turns with the most similar documents injected into the conversation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Config file, .yaml or .json (default "+defaultConfigFile+" if present)")
	pf.StringVar(&opts.dbPath, "db-path", "", "Document snapshot file (.db, .sqlite or .sqlite3)")
	pf.StringVar(&opts.embeddingProvider, "embedding-provider", "", "Embedding provider (hash, openai, ollama, gemini)")
	pf.StringVar(&opts.embeddingModel, "embedding-model", "", "Embedding model name")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	pf.BoolVar(&opts.jsonLogs, "json-logs", false, "Write logs as JSON")

	root.AddCommand(
		newChatCmd(opts),
		newIngestCmd(opts),
		newSearchCmd(opts),
		newGetCmd(opts),
		newClearCmd(opts),
		newServeCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
