package api

import (
	"errors"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xiaoyuanzhu-com/sessiond/db"
	"github.com/xiaoyuanzhu-com/sessiond/engine"
	"github.com/xiaoyuanzhu-com/sessiond/log"
)

var sessionsLogger = log.GetLogger("ApiSessions")

// SessionView is a session index entry overlaid with client-side state.
type SessionView struct {
	*engine.SessionMetadata
	Archived      bool `json:"archived"`
	LastReadCount int  `json:"lastReadCount"`
	UnreadCount   int  `json:"unreadCount"`
}

func viewOf(meta *engine.SessionMetadata, state map[string]db.SessionState) SessionView {
	view := SessionView{SessionMetadata: meta}
	if s, ok := state[meta.ID]; ok {
		view.Archived = s.Archived()
		view.LastReadCount = s.LastReadCount
	}
	if unread := meta.MessageCount - view.LastReadCount; unread > 0 {
		view.UnreadCount = unread
	}
	return view
}

// ListSessions handles GET /api/sessions
// Only notified sessions are listed; entries tracked with zero messages stay
// invisible. ?archived=include|only widens the default exclude filter.
func (h *Handlers) ListSessions(c *gin.Context) {
	archivedMode := c.DefaultQuery("archived", "exclude")

	state, err := db.GetAllSessionState()
	if err != nil {
		sessionsLogger.Error().Err(err).Msg("failed to load session state")
		RespondInternalError(c, "Failed to load session state")
		return
	}

	views := make([]SessionView, 0)
	for _, meta := range h.engine.Sessions() {
		if !meta.Notified {
			continue
		}
		view := viewOf(meta, state)

		switch archivedMode {
		case "only":
			if !view.Archived {
				continue
			}
		case "include":
		default:
			if view.Archived {
				continue
			}
		}
		views = append(views, view)
	}

	sort.Slice(views, func(i, j int) bool {
		return views[i].Modified.After(views[j].Modified)
	})

	total := len(views)
	RespondList(c, views, &total)
}

// GetSession handles GET /api/sessions/:id
func (h *Handlers) GetSession(c *gin.Context) {
	meta, err := h.engine.Session(c.Param("id"))
	if err != nil {
		RespondNotFound(c, "Session not found")
		return
	}

	state, err := db.GetAllSessionState()
	if err != nil {
		RespondInternalError(c, "Failed to load session state")
		return
	}

	RespondData(c, viewOf(meta, state))
}

// GetSessionMessages handles GET /api/sessions/:id/messages
// Internal bookkeeping records are dropped unless ?all=true.
func (h *Handlers) GetSessionMessages(c *gin.Context) {
	visibleOnly := c.Query("all") != "true"

	msgs, err := h.engine.Messages(c.Param("id"), visibleOnly)
	if err != nil {
		if errors.Is(err, engine.ErrSessionNotFound) {
			RespondNotFound(c, "Session not found")
			return
		}
		sessionsLogger.Error().Err(err).Msg("failed to read transcript")
		RespondInternalError(c, "Failed to read transcript")
		return
	}

	RespondList(c, msgs, nil)
}

// SubscribeSession handles POST /api/sessions/:id/subscribe
func (h *Handlers) SubscribeSession(c *gin.Context) {
	meta, err := h.engine.Session(c.Param("id"))
	if err != nil {
		RespondNotFound(c, "Session not found")
		return
	}

	h.engine.Subscribe(meta.ID)
	RespondData(c, gin.H{"sessionId": meta.ID, "subscribed": true})
}

// UnsubscribeSession handles DELETE /api/sessions/:id/subscribe
func (h *Handlers) UnsubscribeSession(c *gin.Context) {
	h.engine.Unsubscribe(c.Param("id"))
	RespondNoContent(c)
}

// AcquireSessionLock handles POST /api/sessions/:id/lock
// Contention is rejected immediately, never queued.
func (h *Handlers) AcquireSessionLock(c *gin.Context) {
	meta, err := h.engine.Session(c.Param("id"))
	if err != nil {
		RespondNotFound(c, "Session not found")
		return
	}

	if !h.engine.TryAcquireLock(meta.ID) {
		RespondConflict(c, "Session is locked by another operation")
		return
	}
	RespondData(c, gin.H{"sessionId": meta.ID, "locked": true})
}

// ReleaseSessionLock handles DELETE /api/sessions/:id/lock
func (h *Handlers) ReleaseSessionLock(c *gin.Context) {
	h.engine.ReleaseLock(c.Param("id"))
	RespondNoContent(c)
}

// InvokeSession handles POST /api/sessions/:id/invoke
// Runs the external tool against the session under its lock. The call
// returns 202 immediately; completion is announced on the event stream.
func (h *Handlers) InvokeSession(c *gin.Context) {
	sessionID := c.Param("id")

	var body struct {
		Prompt         string `json:"prompt"`
		WorkingDir     string `json:"workingDir"`
		Resume         bool   `json:"resume"`
		TimeoutSeconds int    `json:"timeoutSeconds"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondBadRequest(c, "Invalid request body")
		return
	}
	if body.Prompt == "" {
		RespondBadRequest(c, "prompt is required")
		return
	}

	req := engine.InvokeRequest{
		SessionID:  sessionID,
		Prompt:     body.Prompt,
		WorkingDir: body.WorkingDir,
		Resume:     body.Resume,
	}

	timeout := time.Duration(body.TimeoutSeconds) * time.Second

	err := h.engine.Invoke(req, func(result engine.InvokeResult) {
		success := result.Err == nil
		detail := ""
		if result.Err != nil {
			detail = result.Err.Error()
		}
		sessionsLogger.Info().Str("sessionId", result.SessionID).Bool("success", success).Msg("invocation finished")
		h.notifs.NotifyInvokeFinished(result.SessionID, success, detail)
	}, timeout)
	if err != nil {
		if errors.Is(err, engine.ErrLockHeld) {
			RespondConflict(c, "Session is locked by another operation")
			return
		}
		RespondInternalError(c, "Failed to start invocation")
		return
	}

	RespondAccepted(c, gin.H{"sessionId": sessionID, "status": "running"})
}

// KillSession handles POST /api/sessions/:id/kill
// Killing with no live process succeeds.
func (h *Handlers) KillSession(c *gin.Context) {
	if err := h.engine.Kill(c.Param("id")); err != nil {
		sessionsLogger.Error().Err(err).Str("sessionId", c.Param("id")).Msg("failed to kill process")
		RespondInternalError(c, "Failed to kill process")
		return
	}
	RespondNoContent(c)
}

// ArchiveSession handles POST /api/sessions/:id/archive
func (h *Handlers) ArchiveSession(c *gin.Context) {
	meta, err := h.engine.Session(c.Param("id"))
	if err != nil {
		RespondNotFound(c, "Session not found")
		return
	}

	if err := db.ArchiveSession(meta.ID); err != nil {
		RespondInternalError(c, "Failed to archive session")
		return
	}
	h.notifs.NotifySessionStateChanged(meta.ID, "archived")
	RespondData(c, gin.H{"sessionId": meta.ID, "archived": true})
}

// UnarchiveSession handles DELETE /api/sessions/:id/archive
func (h *Handlers) UnarchiveSession(c *gin.Context) {
	meta, err := h.engine.Session(c.Param("id"))
	if err != nil {
		RespondNotFound(c, "Session not found")
		return
	}

	if err := db.UnarchiveSession(meta.ID); err != nil {
		RespondInternalError(c, "Failed to unarchive session")
		return
	}
	h.notifs.NotifySessionStateChanged(meta.ID, "unarchived")
	RespondData(c, gin.H{"sessionId": meta.ID, "archived": false})
}

// MarkSessionRead handles POST /api/sessions/:id/read
// With no explicit count the whole session is marked read.
func (h *Handlers) MarkSessionRead(c *gin.Context) {
	meta, err := h.engine.Session(c.Param("id"))
	if err != nil {
		RespondNotFound(c, "Session not found")
		return
	}

	var body struct {
		MessageCount int `json:"messageCount"`
	}
	if err := c.ShouldBindJSON(&body); err != nil && err.Error() != "EOF" {
		RespondBadRequest(c, "Invalid request body")
		return
	}
	count := body.MessageCount
	if count <= 0 {
		count = meta.MessageCount
	}

	if err := db.MarkSessionRead(meta.ID, count); err != nil {
		RespondInternalError(c, "Failed to mark session read")
		return
	}
	h.notifs.NotifySessionStateChanged(meta.ID, "read")
	RespondData(c, gin.H{"sessionId": meta.ID, "lastReadCount": count})
}
