package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tabletop-chat/backend/game/repository"
	"tabletop-chat/backend/game/seed"
	"tabletop-chat/backend/game/service"
	"tabletop-chat/backend/internal/database"
	"tabletop-chat/backend/pkg/config"
)

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Import a game, its statistic types and its gamers from YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		games := service.NewGameService(repository.NewGormGameRepository(db))
		game, err := seed.Import(cmd.Context(), games, args[0])
		if err != nil {
			return err
		}

		log.Info("Game seeded", "game_id", game.ID, "name", game.Name, "gamers", len(game.Gamers))
		fmt.Fprintln(cmd.OutOrStdout(), game.ID)
		return nil
	},
}
