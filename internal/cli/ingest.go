package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"docrag/internal/adapter/fs"
	"docrag/internal/domain"
	"docrag/internal/usecase"
)

var (
	ingestForce    string
	ingestWatch    bool
	ingestDebounce time.Duration
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [root]",
	Short: "Ingest documents into the store",
	Long: `Ingest every matching document under the documents root. Files that already
have chunks in the store are skipped, so running ingest again only picks up
new files.

Examples:
  docrag ingest                          # Ingest the configured documents root
  docrag ingest /srv/documents           # Ingest a specific tree
  docrag ingest --force HR/2022/leave.docx
  docrag ingest --watch                  # Keep ingesting as files appear`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestForce, "force", "", "replace the stored chunks of this file")
	ingestCmd.Flags().BoolVar(&ingestWatch, "watch", false, "watch the documents root and ingest changes")
	ingestCmd.Flags().DurationVar(&ingestDebounce, "debounce", fs.DefaultDebounce, "quiet period before a watched change is ingested")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx := cmd.Context()

	root := cfg.DocumentsRoot(GetRootDir())
	if len(args) > 0 {
		var err error
		root, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("documents root does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("documents root is not a directory: %s", root)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ingestUC, err := a.ingestUseCase()
	if err != nil {
		return err
	}

	if ingestForce != "" {
		path := ingestForce
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		summary, err := ingestUC.Reingest(ctx, root, path)
		if err != nil {
			return fmt.Errorf("re-ingest failed: %w", err)
		}
		printSummary(summary)
		return nil
	}

	fmt.Printf("Scanning %s...\n", root)
	if err := ingestOnce(ctx, ingestUC, root); err != nil {
		return err
	}

	if !ingestWatch {
		return nil
	}

	w, err := fs.NewWatcher(root, a.walker(), ingestDebounce)
	if err != nil {
		return err
	}
	fmt.Printf("\nWatching %s for changes (Ctrl+C to stop)...\n", root)

	return w.Run(ctx, func() {
		if err := ingestOnce(ctx, ingestUC, root); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "ingestion failed: %v\n", err)
		}
	})
}

func ingestOnce(ctx context.Context, ingestUC *usecase.IngestUseCase, root string) error {
	var (
		bar         *progressbar.ProgressBar
		barMu       sync.Mutex
		startTime   time.Time
		initialized bool
	)

	ingestUC.OnProgress(func(processed, total int, currentFile string) {
		barMu.Lock()
		defer barMu.Unlock()

		if !initialized {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(os.Stderr)
				}),
			)
			initialized = true
		}

		bar.Set(processed)

		if processed > 0 {
			elapsed := time.Since(startTime)
			rate := float64(processed) / elapsed.Seconds()
			remaining := total - processed
			if rate > 0 {
				eta := time.Duration(float64(remaining)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Ingesting[reset] ETA: %s", formatDuration(eta)))
			}
		}
	})

	summary, err := ingestUC.Ingest(ctx, root)
	if summary != nil {
		printSummary(summary)
	}
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	return nil
}

func printSummary(s *domain.IngestSummary) {
	fmt.Printf("\nIngestion complete (run %s):\n", s.RunID)
	fmt.Printf("  Files processed: %d\n", s.FilesProcessed)
	fmt.Printf("  Files skipped:   %d (already stored)\n", s.FilesSkipped)
	fmt.Printf("  Chunks inserted: %d\n", s.ChunksInserted)

	if len(s.Errors) > 0 {
		fmt.Printf("\nFailed files:\n")
		for _, e := range s.Errors {
			fmt.Printf("  - %s: %v\n", e.FilePath, e.Cause)
		}
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
