package api

import (
	"github.com/gin-gonic/gin"
)

// GetStats handles GET /api/stats
func (h *Handlers) GetStats(c *gin.Context) {
	sessions := h.engine.Sessions()

	notified := 0
	for _, meta := range sessions {
		if meta.Notified {
			notified++
		}
	}

	RespondData(c, gin.H{
		"trackedSessions": len(sessions),
		"visibleSessions": notified,
		"subscribers":     h.notifs.SubscriberCount(),
		"searchEnabled":   h.search.Enabled(),
	})
}
