package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"tabletop-chat/backend/conversation/models"
	gmodels "tabletop-chat/backend/game/models"
	"tabletop-chat/backend/game/repository"
	apperrors "tabletop-chat/backend/pkg/errors"
	"tabletop-chat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// TurnRunner runs a full message turn
type TurnRunner interface {
	HandleIncomingMessage(ctx context.Context, content, gameID string, senderID *string, isCoaching bool) (*models.Message, error)
}

// HistoryReader lists the messages of a game, oldest first
type HistoryReader interface {
	FindAllByGame(ctx context.Context, gameID string) ([]models.Message, error)
}

// GameFinder loads a game with its gamers
type GameFinder interface {
	FindByIDWithDetails(ctx context.Context, id string) (*gmodels.Game, error)
}

// CreateMessageRequest is the body of POST /messages
type CreateMessageRequest struct {
	Content    string  `json:"content" binding:"required"`
	GameID     string  `json:"gameId" binding:"required"`
	SenderID   *string `json:"senderId"`
	IsCoaching bool    `json:"isCoaching"`
}

// MessageHandler serves the conversation routes
type MessageHandler struct {
	turns   TurnRunner
	history HistoryReader
	games   GameFinder
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(turns TurnRunner, history HistoryReader, games GameFinder) *MessageHandler {
	return &MessageHandler{turns: turns, history: history, games: games}
}

// CreateMessage handles POST /messages. It answers once every persona had
// its turn.
func (h *MessageHandler) CreateMessage(c *gin.Context) {
	var req CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.Validation(err))
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		_ = c.Error(apperrors.NewBadRequestError(apperrors.CodeValidation, "content must not be blank"))
		return
	}

	ctx := c.Request.Context()
	game, err := h.games.FindByIDWithDetails(ctx, req.GameID)
	if err != nil {
		_ = c.Error(mapError(err, req.GameID))
		return
	}
	if req.SenderID != nil && *req.SenderID != models.CoachSenderID {
		if _, ok := game.FindGamer(*req.SenderID); !ok {
			_ = c.Error(apperrors.InvalidSender(*req.SenderID, req.GameID))
			return
		}
	}

	msg, err := h.turns.HandleIncomingMessage(ctx, req.Content, req.GameID, req.SenderID, req.IsCoaching)
	if err != nil {
		_ = c.Error(mapError(err, req.GameID))
		return
	}

	logger.FromGin(c).Info("Message turn completed", "message_id", msg.ID, "coaching", msg.IsCoaching)
	c.JSON(http.StatusCreated, msg)
}

// ListMessages handles GET /messages/:gameId
func (h *MessageHandler) ListMessages(c *gin.Context) {
	gameID := c.Param("gameId")
	ctx := c.Request.Context()

	if _, err := h.games.FindByIDWithDetails(ctx, gameID); err != nil {
		_ = c.Error(mapError(err, gameID))
		return
	}

	messages, err := h.history.FindAllByGame(ctx, gameID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

func mapError(err error, gameID string) error {
	if errors.Is(err, repository.ErrGameNotFound) {
		return apperrors.GameNotFound(gameID)
	}
	return err
}
