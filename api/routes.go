package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, h *Handlers) {
	api := r.Group("/api")

	// Session index
	api.GET("/sessions", h.ListSessions)
	api.GET("/sessions/:id", h.GetSession)
	api.GET("/sessions/:id/messages", h.GetSessionMessages)

	// Update-notification subscriptions
	api.POST("/sessions/:id/subscribe", h.SubscribeSession)
	api.DELETE("/sessions/:id/subscribe", h.UnsubscribeSession)

	// Invocation lock and lifecycle control
	api.POST("/sessions/:id/lock", h.AcquireSessionLock)
	api.DELETE("/sessions/:id/lock", h.ReleaseSessionLock)
	api.POST("/sessions/:id/invoke", h.InvokeSession)
	api.POST("/sessions/:id/kill", h.KillSession)

	// Client-side session state
	api.POST("/sessions/:id/archive", h.ArchiveSession)
	api.DELETE("/sessions/:id/archive", h.UnarchiveSession)
	api.POST("/sessions/:id/read", h.MarkSessionRead)

	// Search
	api.GET("/search", h.SearchSessions)

	// Stats
	api.GET("/stats", h.GetStats)

	// Event stream (websocket)
	api.GET("/events", h.EventStream)
}
