package service

import (
	"context"
	"fmt"

	"tabletop-chat/backend/conversation/models"
	"tabletop-chat/backend/conversation/repository"
	"tabletop-chat/backend/conversation/window"
)

// MessageService is the conversation store of the workflow
type MessageService struct {
	repo repository.MessageRepository
}

// NewMessageService creates a new message service
func NewMessageService(repo repository.MessageRepository) *MessageService {
	return &MessageService{repo: repo}
}

// CreateMessage persists a new message and returns it with id and date set
func (s *MessageService) CreateMessage(ctx context.Context, content, gameID string, senderID *string, isCoaching bool) (*models.Message, error) {
	message := &models.Message{
		Content:    content,
		GameID:     gameID,
		SenderID:   senderID,
		IsCoaching: isCoaching,
	}
	if err := s.repo.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return message, nil
}

// FindAllByGame returns the history of a game, oldest first
func (s *MessageService) FindAllByGame(ctx context.Context, gameID string) ([]models.Message, error) {
	messages, err := s.repo.FindAllByGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return messages, nil
}

// FindRecentByGame returns at most limit messages, newest first
func (s *MessageService) FindRecentByGame(ctx context.Context, gameID string, includeCoachChannel bool, limit int) ([]models.Message, error) {
	return s.repo.FindRecentByGame(ctx, gameID, includeCoachChannel, limit)
}

// Window returns the recent messages of a game as an oldest-first window
func (s *MessageService) Window(ctx context.Context, gameID string, includeCoachChannel bool, size int) (window.Window, error) {
	return window.Fetch(ctx, s, gameID, includeCoachChannel, size)
}
