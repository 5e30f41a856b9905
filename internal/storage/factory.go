package storage

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/anchorwatch/anchorsim/internal/config"
	"github.com/anchorwatch/anchorsim/internal/database"
	gormstorage "github.com/anchorwatch/anchorsim/internal/storage/gorm"
	"github.com/anchorwatch/anchorsim/internal/storage/memory"
)

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, log zerolog.Logger) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		mgr := database.NewManager(log)
		if err := mgr.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect database: %w", err)
		}
		b := gormstorage.New(mgr)
		// Connect may have fallen back to the in-memory database.
		b.StartPeriodicDump(cfg.SQLite.DumpInterval)
		return b, nil
	case "sqlite":
		mgr := database.NewManager(log)
		if err := mgr.ConnectSQLite(cfg.SQLite.FilePath); err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		b := gormstorage.New(mgr)
		b.StartPeriodicDump(cfg.SQLite.DumpInterval)
		return b, nil
	case "memory":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
