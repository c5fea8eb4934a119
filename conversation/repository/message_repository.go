package repository

import (
	"context"

	"tabletop-chat/backend/conversation/models"

	"gorm.io/gorm"
)

// MessageRepository persists the messages of games
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	FindAllByGame(ctx context.Context, gameID string) ([]models.Message, error)
	FindRecentByGame(ctx context.Context, gameID string, includeCoachChannel bool, limit int) ([]models.Message, error)
}

// GormMessageRepository is the gorm implementation of MessageRepository
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a repository over db
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Create inserts message, filling its id and date
func (r *GormMessageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// FindAllByGame returns the whole history of a game, oldest first
func (r *GormMessageRepository) FindAllByGame(ctx context.Context, gameID string) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("date ASC").
		Order("id ASC").
		Find(&messages).Error
	return messages, err
}

// FindRecentByGame returns at most limit messages of a game, newest first.
// Coaching messages are left out unless includeCoachChannel is set.
func (r *GormMessageRepository) FindRecentByGame(ctx context.Context, gameID string, includeCoachChannel bool, limit int) ([]models.Message, error) {
	q := r.db.WithContext(ctx).Where("game_id = ?", gameID)
	if !includeCoachChannel {
		q = q.Where("is_coaching = ?", false)
	}

	var messages []models.Message
	err := q.Order("date DESC").
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}
