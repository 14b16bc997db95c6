package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/neurovault/internal/core/domain"
)

var contextTopK int

var contextCmd = &cobra.Command{
	Use:   "context [document-id] [query]",
	Short: "Show the passages of a document that match a query",
	Long: `Ranks the chunks of one ingested document against the query and prints
the best matches. These are the passages an answer about the document
would be grounded in.`,
	Args: cobra.ExactArgs(2),
	RunE: runContext,
}

func init() {
	contextCmd.Flags().IntVarP(&contextTopK, "top-k", "k", domain.MaxContextSnippets, "number of passages")
	rootCmd.AddCommand(contextCmd)
}

func runContext(cmd *cobra.Command, args []string) error {
	if contextRetriever == nil {
		return errors.New("context service not configured")
	}

	id, err := parseRecordID(args[0])
	if err != nil {
		return err
	}

	snippets, err := contextRetriever.GetContext(cmd.Context(), id, args[1], contextTopK)
	if err != nil {
		return fmt.Errorf("context retrieval failed: %w", err)
	}

	if len(snippets) == 0 {
		cmd.Println("No passages found.")
		return nil
	}

	for i, sn := range snippets {
		cmd.Printf("[%d] chunk #%d (score %.3f)\n", i+1, sn.SourceRecordID, sn.Score)
		cmd.Println(sn.Text)
		cmd.Println()
	}
	return nil
}

// parseRecordID parses a positive record ID argument.
func parseRecordID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: record id %q", domain.ErrInvalidInput, s)
	}
	return id, nil
}
