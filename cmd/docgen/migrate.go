package main

import (
	"fmt"

	"docgen-workers/internal/common/database"
	"docgen-workers/internal/store"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the Postgres schema",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Store.Driver != "postgres" {
		return fmt.Errorf("migrate needs store.driver=postgres, have %q", cfg.Store.Driver)
	}
	zapLog, log := newLoggers(cfg)
	defer zapLog.Sync()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return err
	}
	defer pg.Close()

	if err := store.Migrate(commandContext(cmd), pg.DB); err != nil {
		return err
	}
	log.Info("schema migrated", map[string]interface{}{"database": cfg.Database.Postgres.Database})
	return nil
}
