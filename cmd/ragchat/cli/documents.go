package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/ragchat/internal/store"
)

func newIngestCmd(root *rootOptions) *cobra.Command {
	var idField, contentField string
	cmd := &cobra.Command{
		Use:   "ingest [file-or-glob]",
		Short: "Bulk-load JSONL records into the document store",
		Long: `Reads one JSON object per line and inserts its id and content fields.
The argument may be a file, a doublestar glob such as "docs/**/*.jsonl",
or "-" for standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			obs := root.observer(cmd)
			defer obs.Close()

			st, err := openStore(cfg, obs, nil)
			if err != nil {
				return err
			}
			defer closeLogged(obs, "store", st)

			var report store.LoadReport
			if args[0] == "-" {
				report, err = st.BulkLoad(cmd.Context(), cmd.InOrStdin(), idField, contentField)
			} else {
				report, err = st.BulkLoadFiles(cmd.Context(), args[0], idField, contentField)
			}
			if err != nil {
				return err
			}
			if err := st.Save(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Loaded %d records from %d files: %d inserted, %d overwritten, %d skipped\n",
				report.Records, report.Files, report.Inserted, report.Overwritten, report.Skipped)
			for _, e := range report.Errors {
				fmt.Fprintf(out, "  %v\n", e)
			}
			fmt.Fprintf(out, "Store %s now holds %d documents\n", st.Path(), st.Count())
			return nil
		},
	}
	cmd.Flags().StringVar(&idField, "id-field", "doc_id", "JSON field holding the document id")
	cmd.Flags().StringVar(&contentField, "content-field", "content", "JSON field holding the document text")
	return cmd
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "Show the documents most similar to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if top <= 0 {
				return fmt.Errorf("--top must be a positive integer, got %d", top)
			}
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			obs := root.observer(cmd)
			defer obs.Close()

			st, err := openStore(cfg, obs, nil)
			if err != nil {
				return err
			}
			defer closeLogged(obs, "store", st)
			results, err := st.Query(cmd.Context(), strings.Join(args, " "), top)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No documents found")
				return nil
			}
			for _, r := range results {
				fmt.Fprintf(out, "Document %s (distance: %.2f)\n", r.ID, r.Distance)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&top, "top", "n", store.DefaultTopN, "Number of documents to show")
	return cmd
}

func newGetCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get [doc-id]",
		Short: "Print a stored document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			obs := root.observer(cmd)
			defer obs.Close()

			st, err := openStore(cfg, obs, nil)
			if err != nil {
				return err
			}
			defer closeLogged(obs, "store", st)
			content, ok := st.Get(args[0])
			if !ok {
				return fmt.Errorf("document %s not found", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), content)
			return nil
		},
	}
}

func newClearCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every document from the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			obs := root.observer(cmd)
			defer obs.Close()

			st, err := openStore(cfg, obs, nil)
			if err != nil {
				return err
			}
			defer closeLogged(obs, "store", st)
			n := st.Count()
			st.Clear()
			if err := st.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d documents from %s\n", n, st.Path())
			return nil
		},
	}
}
