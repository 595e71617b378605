package api

import (
	"github.com/xiaoyuanzhu-com/sessiond/engine"
	"github.com/xiaoyuanzhu-com/sessiond/notifications"
	"github.com/xiaoyuanzhu-com/sessiond/search"
)

// Handlers holds references to server components
type Handlers struct {
	engine *engine.Engine
	notifs *notifications.Service
	search *search.Client
}

// NewHandlers creates a new Handlers instance
func NewHandlers(eng *engine.Engine, notifs *notifications.Service, searchClient *search.Client) *Handlers {
	return &Handlers{
		engine: eng,
		notifs: notifs,
		search: searchClient,
	}
}
