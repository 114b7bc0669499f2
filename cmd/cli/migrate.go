package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/curalab/fedbench/internal/core/config"
	"github.com/curalab/fedbench/internal/storage/db"
	"github.com/curalab/fedbench/pkg/logger"
)

// RunMigrate connects to the configured database and applies the evaluation
// schema migrations, then exits.
func RunMigrate() error {
	log := logger.WithComponent("migrate")

	cfg, err := config.GetConfigManager().GetConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	manager := db.NewDBManager()
	if err := manager.Connect(ctx, cfg.Database.GetConnectionURL()); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	defer manager.Close()

	log.Info().Msg("Database schema is up to date")
	return nil
}
