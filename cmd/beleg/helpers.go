package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/beleghq/beleg/internal/config"
	"github.com/beleghq/beleg/internal/storage"
)

// getDatabase opens the configured database with auto-migration and
// returns a cleanup func.
func getDatabase() (*storage.SQLiteStorage, func(), error) {
	path := viper.GetString("database.path")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, ".local", "share", "beleg", "beleg.db")
	}

	db, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	cleanup := func() { _ = db.Close() }
	return db, cleanup, nil
}

// getThresholds loads thresholds with any config overrides applied.
func getThresholds() config.Thresholds {
	return config.FromViper(viper.GetViper())
}
