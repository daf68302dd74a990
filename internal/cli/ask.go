package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"docrag/internal/usecase"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a question from the stored documents",
	Long: `Retrieve the most similar chunks and ask the generative model to answer
from them. Without any matching chunk the model is not called.

Examples:
  docrag ask -q "How many days of annual leave do I get?" --category HR`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	addQueryFlags(askCmd)
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, GetConfig())
	if err != nil {
		return err
	}
	defer a.Close()

	answerUC, err := a.answerUseCase(a.retrieveUseCase())
	if err != nil {
		return err
	}

	ans, err := answerUC.Answer(ctx, usecase.AnswerRequest{
		Question: queryText,
		Category: queryCategory,
		Year:     queryYear,
		TopK:     queryTopK,
	})
	if err != nil {
		return fmt.Errorf("answer failed: %w", err)
	}

	if askJSON {
		output, _ := json.MarshalIndent(struct {
			Answer  string                      `json:"answer"`
			Sources []usecase.ScoredChunkResult `json:"sources"`
		}{ans.Answer, usecase.ToResults(ans.Sources, false)}, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(ans.Answer)
	if len(ans.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, r := range usecase.ToResults(ans.Sources, false) {
			fmt.Printf("  - [%s - %s] %s (score: %.4f)\n", r.Category, r.Year, r.FilePath, r.Score)
		}
	}
	return nil
}
