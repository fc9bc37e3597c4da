// Package backend opens the bill store selected by configuration.
package backend

import (
	"errors"
	"fmt"
	"time"

	"duetrack/internal/config"
	"duetrack/internal/storage"
)

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// CleanupFunc releases what a backend holds open.
type CleanupFunc func() error

type BackendResult struct {
	Store   storage.Store
	Cleanup CleanupFunc
}

type Config struct {
	Type         BackendType
	SQLiteDBPath string
	// Location is the zone stored timestamps are read back in.
	Location *time.Location
}

// FromAppConfig picks the backend settings out of the process config.
func FromAppConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, errors.New("app config is nil")
	}
	loc, err := cfg.Location()
	if err != nil {
		return Config{}, fmt.Errorf("resolve time zone: %w", err)
	}
	c := Config{
		Type:         BackendType(cfg.DataBackend),
		SQLiteDBPath: cfg.SQLiteDBPath,
		Location:     loc,
	}
	if _, ok := openers[c.Type]; !ok {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", cfg.DataBackend)
	}
	return c, nil
}

func (c Config) Validate() error {
	if _, ok := openers[c.Type]; !ok {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.Type == SQLiteBackend && c.SQLiteDBPath == "" {
		return errors.New("SQLite database path is required for sqlite backend")
	}
	return nil
}
