package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"docrag/config"
	"docrag/internal/adapter/store"
)

var migrateRebuild bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Check or upgrade the bolt store schema",
	Long: `Compare the bolt store with the current schema version and ingestion
configuration. Pending schema upgrades are applied. When the tokenizer,
chunk size or embedding model changed, the stored chunks no longer match
and --rebuild clears them so the next ingest starts over.

Examples:
  docrag migrate
  docrag migrate --rebuild && docrag ingest`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&migrateRebuild, "rebuild", false, "clear the store if the configuration changed")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if cfg.Store.Driver != "" && cfg.Store.Driver != "bolt" {
		return fmt.Errorf("migrate only applies to the bolt store, driver is %q", cfg.Store.Driver)
	}

	dbPath := cfg.StorePath(GetRootDir())
	if err := config.EnsureDir(dbPath); err != nil {
		return fmt.Errorf("failed to create store dir: %w", err)
	}
	st, err := store.NewBoltStoreWithTimeout(dbPath, time.Duration(cfg.Store.LockTimeoutSeconds)*time.Second)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	res, err := st.CheckMigration(cfg)
	if err != nil {
		return fmt.Errorf("failed to check migration: %w", err)
	}

	switch {
	case res.NeedsRebuild && !migrateRebuild:
		fmt.Printf("Store rebuild required: %s\n", res.Reason)
		fmt.Println("Run 'docrag migrate --rebuild' to clear it, then ingest again.")
		return nil
	case res.NeedsRebuild:
		fmt.Printf("Store rebuild required: %s\n", res.Reason)
		fmt.Println("Clearing stored chunks...")
		if err := st.Clear(); err != nil {
			return fmt.Errorf("failed to clear store: %w", err)
		}
	case res.NeedsMigration:
		fmt.Printf("Running schema migration: %s\n", res.Reason)
	default:
		fmt.Printf("Store is up to date (schema v%d).\n", res.NewVersion)
		return nil
	}

	if err := st.Migrate(cfg); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Printf("Store at %s is now at schema v%d.\n", dbPath, store.CurrentSchemaVersion)
	return nil
}
