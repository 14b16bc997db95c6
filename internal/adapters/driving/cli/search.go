package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driving"
	"github.com/custodia-labs/neurovault/internal/logger"
)

// snippetLength is the number of characters of content shown per result.
const snippetLength = 120

var (
	searchLimit    int
	searchJSON     bool
	searchType     string
	searchStart    string
	searchEnd      string
	searchDegraded bool
	searchInactive bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the vault",
	Long: `Finds records by meaning. The query is embedded and matched against
every record and document chunk; chunk hits are shown as their document
unless --type is given.

An empty query ("") lists records newest first without ranking. With
--degraded, a search whose embedding provider is down falls back to that
listing instead of failing.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().StringVarP(&searchType, "type", "t", "", "only records of this media type (text, voice, image, link, document)")
	searchCmd.Flags().StringVar(&searchStart, "start", "", "earliest record time (RFC 3339 or YYYY-MM-DD)")
	searchCmd.Flags().StringVar(&searchEnd, "end", "", "latest record time (RFC 3339 or YYYY-MM-DD)")
	searchCmd.Flags().BoolVar(&searchDegraded, "degraded", false, "list records unranked when embeddings are unavailable")
	searchCmd.Flags().BoolVar(&searchInactive, "all", false, "include archived records")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if searchService == nil {
		return errors.New("search service not configured")
	}

	opts := domain.SearchOptions{
		Limit:           searchLimit,
		IncludeInactive: searchInactive,
	}
	if searchType != "" {
		mt, err := domain.ParseMediaType(searchType)
		if err != nil {
			return err
		}
		opts.MediaType = mt
	}
	tr, err := domain.ParseTimeRange(searchStart, searchEnd)
	if err != nil {
		return err
	}
	opts.TimeRange = tr

	results, err := SearchWithFallback(cmd.Context(), searchService, query, opts, searchDegraded)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}

	return outputSearchTable(cmd, results)
}

// SearchWithFallback runs a search and, when degraded is set and the query
// could not be embedded, retries as an unranked relational scan.
func SearchWithFallback(
	ctx context.Context, search driving.SearchService, query string, opts domain.SearchOptions, degraded bool,
) ([]domain.SearchResult, error) {
	results, err := search.Search(ctx, query, opts)
	if err != nil && degraded && errors.Is(err, domain.ErrEmbeddingUnavailable) {
		logger.Warn("Embedding unavailable, falling back to relational scan: %v", err)
		return search.Search(ctx, "", opts)
	}
	return results, err
}

// searchResultJSON is the --json shape of a search hit.
type searchResultJSON struct {
	ID        int64    `json:"id"`
	MediaType string   `json:"media_type"`
	Content   string   `json:"content"`
	Summary   *string  `json:"summary,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Time      string   `json:"time"`
	ParentID  *int64   `json:"parent_id,omitempty"`
	Distance  *float64 `json:"distance,omitempty"`
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	out := make([]searchResultJSON, len(results))
	for i := range results {
		r := &results[i].Record
		out[i] = searchResultJSON{
			ID:        r.ID,
			MediaType: r.MediaType.String(),
			Content:   r.Content,
			Summary:   r.Summary,
			Tags:      r.Tags,
			Time:      r.EffectiveTime().Format(time.RFC3339),
			ParentID:  r.ParentID,
		}
		if results[i].Ranked {
			d := results[i].Distance
			out[i].Distance = &d
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		r := &results[i].Record

		// Format: [N] #ID type date (distance)
		header := fmt.Sprintf("  [%d] #%d %s  %s", i+1, r.ID, r.MediaType, r.EffectiveTime().Format(time.DateOnly))
		if results[i].Ranked {
			header += fmt.Sprintf("  (%.3f)", results[i].Distance)
		}
		cmd.Println(header)
		cmd.Printf("      %s\n", snippet(r.Content, snippetLength))
		if len(r.Tags) > 0 {
			cmd.Printf("      Tags: %s\n", strings.Join(r.Tags, ", "))
		}
		cmd.Println()
	}

	return nil
}

// snippet flattens whitespace and truncates s to n runes.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
