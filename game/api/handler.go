package api

import (
	"errors"
	"net/http"

	"tabletop-chat/backend/game/repository"
	"tabletop-chat/backend/game/service"
	apperrors "tabletop-chat/backend/pkg/errors"
	"tabletop-chat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// GameHandler serves the game and gamer management routes
type GameHandler struct {
	service *service.GameService
}

// NewGameHandler creates a new game handler
func NewGameHandler(service *service.GameService) *GameHandler {
	return &GameHandler{service: service}
}

// ListGames handles GET /games
func (h *GameHandler) ListGames(c *gin.Context) {
	games, err := h.service.FindAll(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, games)
}

// GetGame handles GET /games/:gameId
func (h *GameHandler) GetGame(c *gin.Context) {
	game, err := h.service.FindByID(c.Request.Context(), c.Param("gameId"))
	if err != nil {
		_ = c.Error(mapError(err, c.Param("gameId"), ""))
		return
	}
	c.JSON(http.StatusOK, game)
}

// CreateGame handles POST /games
func (h *GameHandler) CreateGame(c *gin.Context) {
	var in service.CreateGameInput
	if err := c.ShouldBindJSON(&in); err != nil {
		_ = c.Error(apperrors.Validation(err))
		return
	}

	game, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		_ = c.Error(mapError(err, "", ""))
		return
	}

	logger.FromGin(c).Info("Game created", "game_id", game.ID, "name", game.Name)
	c.JSON(http.StatusCreated, game)
}

// UpdateGame handles PATCH /games/:gameId
func (h *GameHandler) UpdateGame(c *gin.Context) {
	var in service.UpdateGameInput
	if err := c.ShouldBindJSON(&in); err != nil {
		_ = c.Error(apperrors.Validation(err))
		return
	}

	game, err := h.service.Update(c.Request.Context(), c.Param("gameId"), in)
	if err != nil {
		_ = c.Error(mapError(err, c.Param("gameId"), ""))
		return
	}
	c.JSON(http.StatusOK, game)
}

// DeleteGame handles DELETE /games/:gameId
func (h *GameHandler) DeleteGame(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("gameId")); err != nil {
		_ = c.Error(mapError(err, c.Param("gameId"), ""))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// AddGamer handles POST /games/:gameId/addGamer
func (h *GameHandler) AddGamer(c *gin.Context) {
	var in service.GamerInput
	if err := c.ShouldBindJSON(&in); err != nil {
		_ = c.Error(apperrors.Validation(err))
		return
	}

	game, err := h.service.AddGamer(c.Request.Context(), c.Param("gameId"), in)
	if err != nil {
		_ = c.Error(mapError(err, c.Param("gameId"), ""))
		return
	}
	c.JSON(http.StatusCreated, game)
}

// UpdateGamer handles PUT /gamers/:gamerId
func (h *GameHandler) UpdateGamer(c *gin.Context) {
	var in service.GamerInput
	if err := c.ShouldBindJSON(&in); err != nil {
		_ = c.Error(apperrors.Validation(err))
		return
	}

	gamer, err := h.service.UpdateGamer(c.Request.Context(), c.Param("gamerId"), in)
	if err != nil {
		_ = c.Error(mapError(err, "", c.Param("gamerId")))
		return
	}
	c.JSON(http.StatusOK, gamer)
}

// DeleteGamer handles DELETE /gamers/:gamerId
func (h *GameHandler) DeleteGamer(c *gin.Context) {
	if err := h.service.DeleteGamer(c.Request.Context(), c.Param("gamerId")); err != nil {
		_ = c.Error(mapError(err, "", c.Param("gamerId")))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func mapError(err error, gameID, gamerID string) error {
	switch {
	case errors.Is(err, repository.ErrGameNotFound):
		return apperrors.GameNotFound(gameID)
	case errors.Is(err, repository.ErrGamerNotFound):
		return apperrors.GamerNotFound(gamerID)
	case errors.Is(err, repository.ErrUnknownStatisticType):
		return apperrors.NewBadRequestError(apperrors.CodeUnknownStatistic, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		return apperrors.NewBadRequestError(apperrors.CodeValidation, err.Error())
	default:
		return err
	}
}
