package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the game routes on r. The write middleware guards
// every mutating route.
func RegisterRoutes(r gin.IRouter, h *GameHandler, write ...gin.HandlerFunc) {
	guarded := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, write...), handler)
	}

	games := r.Group("/games")
	{
		games.GET("", h.ListGames)
		games.GET("/:gameId", h.GetGame)
		games.POST("", guarded(h.CreateGame)...)
		games.PATCH("/:gameId", guarded(h.UpdateGame)...)
		games.DELETE("/:gameId", guarded(h.DeleteGame)...)
		games.POST("/:gameId/addGamer", guarded(h.AddGamer)...)
	}

	gamers := r.Group("/gamers")
	{
		gamers.PUT("/:gamerId", guarded(h.UpdateGamer)...)
		gamers.DELETE("/:gamerId", guarded(h.DeleteGamer)...)
	}
}
