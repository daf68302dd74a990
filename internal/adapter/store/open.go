package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"docrag/config"
	"docrag/internal/adapter/memstore"
	"docrag/internal/port"
)

// Open returns the DocumentStore selected by cfg.Store.Driver. File-backed
// stores are placed relative to dir. The caller owns the handle and must
// Close it.
func Open(ctx context.Context, cfg *config.Config, dir string) (port.DocumentStore, error) {
	switch cfg.Store.Driver {
	case "", "bolt":
		path := cfg.StorePath(dir)
		if err := config.EnsureDir(path); err != nil {
			return nil, fmt.Errorf("failed to create store dir: %w", err)
		}
		s, err := NewBoltStoreWithTimeout(path, time.Duration(cfg.Store.LockTimeoutSeconds)*time.Second)
		if err != nil {
			return nil, err
		}
		res, err := s.CheckMigration(cfg)
		if err != nil {
			s.Close()
			return nil, err
		}
		switch {
		case res.NeedsRebuild:
			slog.Warn("store does not match the current configuration, run `docrag migrate --rebuild`",
				"path", path, "reason", res.Reason)
		case res.NeedsMigration:
			if err := s.Migrate(cfg); err != nil {
				s.Close()
				return nil, fmt.Errorf("failed to migrate store: %w", err)
			}
		}
		return s, nil
	case "sqlite":
		path := cfg.StorePath(dir)
		if err := config.EnsureDir(path); err != nil {
			return nil, fmt.Errorf("failed to create store dir: %w", err)
		}
		s, err := NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := NewPostgresStore(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		return memstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}
}
