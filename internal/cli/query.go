package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"docrag/internal/domain"
	"docrag/internal/usecase"
)

var (
	queryText     string
	queryTopK     int
	queryCategory string
	queryYear     string
	queryJSON     bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Rank stored chunks against a question",
	Long: `Embed the question and list the most similar stored chunks, optionally
restricted to a category and year.

Examples:
  docrag query -q "annual leave"
  docrag query -q "revenue" --category Finance --year 2023 -k 10 --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	addQueryFlags(queryCmd)
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
}

// addQueryFlags registers the question and filter flags shared by the
// query, context and ask commands.
func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&queryText, "query", "q", "", "question (required)")
	cmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of chunks (default from config)")
	cmd.Flags().StringVar(&queryCategory, "category", "", "only use chunks of this category")
	cmd.Flags().StringVar(&queryYear, "year", "", "only use chunks of this year")
	cmd.MarkFlagRequired("query")
}

func currentQuery() domain.Query {
	return domain.Query{
		Text:    queryText,
		Filters: domain.Filters{Category: queryCategory, Year: queryYear},
		TopK:    queryTopK,
	}
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, GetConfig())
	if err != nil {
		return err
	}
	defer a.Close()

	chunks, err := a.retrieveUseCase().Retrieve(ctx, currentQuery())
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	results := usecase.ToResults(chunks, true)

	if queryJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s\n\n", len(results), queryText)
	for i, r := range results {
		fmt.Printf("--- [%d] %s - %s  %s (score: %.4f) ---\n", i+1, r.Category, r.Year, r.FilePath, r.Score)
		text := r.Text
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		fmt.Println(text)
		fmt.Println()
	}

	return nil
}
