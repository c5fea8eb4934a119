package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the message routes on r. The write middleware
// guards POST /messages.
func RegisterRoutes(r gin.IRouter, h *MessageHandler, write ...gin.HandlerFunc) {
	messages := r.Group("/messages")
	{
		messages.POST("", append(append([]gin.HandlerFunc{}, write...), h.CreateMessage)...)
		messages.GET("/:gameId", h.ListMessages)
	}
}
