package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xiaoyuanzhu-com/sessiond/search"
)

// SearchSessions handles GET /api/search?q=...
// Full-text search over session titles and previews. Requires a configured
// Meilisearch backend.
func (h *Handlers) SearchSessions(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		RespondBadRequest(c, "q parameter is required")
		return
	}

	if !h.search.Enabled() {
		RespondServiceUnavailable(c, "Search backend not configured")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	result, err := h.search.Search(query, search.SearchOptions{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		RespondInternalError(c, "Search failed")
		return
	}

	RespondData(c, result)
}
