package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docrag/internal/usecase"
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Print the context a question would be answered from",
	Long: `Retrieve the top chunks for a question and print them the way they are
handed to the generator, one "[category - year] text" line per chunk.

Examples:
  docrag context -q "annual leave" --category HR > context.txt`,
	RunE: runContext,
}

func init() {
	rootCmd.AddCommand(contextCmd)
	addQueryFlags(contextCmd)
}

func runContext(cmd *cobra.Command, args []string) error {
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

	docContext := usecase.BuildContext(chunks)
	if docContext == "" {
		fmt.Fprintln(os.Stderr, "No relevant documents found.")
		return nil
	}
	fmt.Println(docContext)
	return nil
}
