package main

import (
	"github.com/spf13/cobra"

	"tabletop-chat/backend/internal/database"
	"tabletop-chat/backend/pkg/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := loadConfig()
		log := newLogger(cfg)

		db, err := config.NewDB(cfg)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}

		if err := database.Migrate(cmd.Context(), db); err != nil {
			return err
		}
		log.Info("Schema migrated", "driver", cfg.Database.Driver)
		return nil
	},
}
