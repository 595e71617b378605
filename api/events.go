package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/xiaoyuanzhu-com/sessiond/log"
	"github.com/xiaoyuanzhu-com/sessiond/notifications"
)

var eventsLogger = log.GetLogger("ApiEvents")

// EventStream handles GET /api/events (websocket)
// Streams session lifecycle events to the client until it disconnects.
func (h *Handlers) EventStream(c *gin.Context) {
	// Gin wraps the response writer to track state, but the upgrade needs
	// the raw writer for hijacking.
	var w http.ResponseWriter = c.Writer
	if unwrapper, ok := c.Writer.(interface{ Unwrap() http.ResponseWriter }); ok {
		w = unwrapper.Unwrap()
	}

	conn, err := websocket.Accept(w, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // same-host tool, no cross-origin surface
		CompressionMode:    websocket.CompressionContextTakeover,
	})
	if err != nil {
		eventsLogger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Prevent middleware from writing headers on the hijacked connection.
	c.Abort()
	log.MarkHijacked(c)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events, unsubscribe := h.notifs.Subscribe()
	defer unsubscribe()

	if err := writeEvent(ctx, conn, notifications.Event{
		Type:      notifications.EventConnected,
		Timestamp: time.Now().UnixMilli(),
	}); err != nil {
		return
	}

	eventsLogger.Debug().Msg("client connected to event stream")

	// Reads are drained only to detect disconnection; clients don't send.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			eventsLogger.Debug().Msg("client disconnected from event stream")
			return

		case <-pingTicker.C:
			if err := conn.Ping(ctx); err != nil {
				eventsLogger.Debug().Err(err).Msg("websocket ping failed")
				return
			}

		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(ctx, conn, event); err != nil {
				if ctx.Err() == nil {
					eventsLogger.Error().Err(err).Msg("websocket write failed")
				}
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, event notifications.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		eventsLogger.Error().Err(err).Msg("failed to marshal event")
		return nil
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
