// Package database owns the schema of the service.
package database

import (
	"context"
	"fmt"

	convmodels "tabletop-chat/backend/conversation/models"
	gamemodels "tabletop-chat/backend/game/models"

	"gorm.io/gorm"
)

// Models lists every persisted model, parents before children
func Models() []any {
	return []any{
		&gamemodels.Game{},
		&gamemodels.StatisticType{},
		&gamemodels.Gamer{},
		&gamemodels.Statistic{},
		&gamemodels.Competence{},
		&gamemodels.FightingCompetence{},
		&convmodels.Message{},
	}
}

// Migrate creates or updates the tables of every model
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Ping checks the underlying connection
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
