package backend

import (
	"context"
	"fmt"

	"duetrack/internal/log"
	"duetrack/internal/storage"
	"duetrack/internal/storage/memory"
)

type opener func(ctx context.Context, cfg Config, logger *log.Logger) (*BackendResult, error)

var openers = map[BackendType]opener{
	SQLiteBackend: openSQLite,
	MemoryBackend: openMemory,
}

type Factory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Factory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend opens the store described by cfg.
func (f *Factory) CreateBackend(ctx context.Context, cfg Config) (*BackendResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return openers[cfg.Type](ctx, cfg, f.logger)
}

func openSQLite(ctx context.Context, cfg Config, logger *log.Logger) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	logger.InfoContext(ctx, "Opened SQLite store", "db_path", cfg.SQLiteDBPath)
	return &BackendResult{Store: repo, Cleanup: repo.Close}, nil
}

func openMemory(ctx context.Context, _ Config, logger *log.Logger) (*BackendResult, error) {
	store := memory.New()
	logger.WarnContext(ctx, "Using memory store, data is lost on restart")
	return &BackendResult{Store: store, Cleanup: store.Close}, nil
}
