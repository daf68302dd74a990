package cli

import (
	"time"

	"github.com/spf13/cobra"

	"docrag/internal/api"
	"docrag/internal/usecase"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Start the HTTP API:

  POST /api/v1/query         answer a question
  POST /api/v1/search        rank chunks without generation
  POST /api/v1/process-docs  ingest the documents root
  GET  /check/healthy        liveness

Examples:
  docrag serve --addr :9000`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ingestUC, err := a.ingestUseCase()
	if err != nil {
		return err
	}

	ret, cached := a.retriever()
	if cached != nil {
		ingestUC.OnStoreChange(cached.Invalidate)
	}
	retrieveUC := usecase.NewRetrieveUseCase(ret, cfg.Retrieve.MinScore)

	answerUC, err := a.answerUseCase(retrieveUC)
	if err != nil {
		return err
	}

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	handler := api.NewRequestHandler(answerUC, retrieveUC, ingestUC, cfg.DocumentsRoot(GetRootDir()))
	srv := api.NewServer(addr, time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second, handler)
	return srv.Run(ctx)
}
