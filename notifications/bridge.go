package notifications

import (
	"github.com/xiaoyuanzhu-com/sessiond/db"
	"github.com/xiaoyuanzhu-com/sessiond/engine"
	"github.com/xiaoyuanzhu-com/sessiond/engine/models"
	"github.com/xiaoyuanzhu-com/sessiond/log"
	"github.com/xiaoyuanzhu-com/sessiond/search"
)

// EngineBridge adapts engine lifecycle callbacks onto the broadcast service,
// mirrors session documents into the search index, and cleans up per-session
// database state when transcripts disappear.
type EngineBridge struct {
	svc    *Service
	search *search.Client

	// lookup re-fetches current metadata for update events.
	lookup func(sessionID string) (*engine.SessionMetadata, error)
}

var _ engine.Callbacks = (*EngineBridge)(nil)

// NewEngineBridge creates the bridge. lookup may be nil before the engine is
// wired; SetLookup installs it afterwards.
func NewEngineBridge(svc *Service, searchClient *search.Client) *EngineBridge {
	return &EngineBridge{
		svc:    svc,
		search: searchClient,
	}
}

// SetLookup installs the metadata lookup used on update events.
func (b *EngineBridge) SetLookup(lookup func(sessionID string) (*engine.SessionMetadata, error)) {
	b.lookup = lookup
}

// OnSessionCreated broadcasts the new session and seeds its search document.
func (b *EngineBridge) OnSessionCreated(meta *engine.SessionMetadata) {
	b.svc.NotifySessionCreated(meta.ID, meta)

	if err := b.search.IndexSession(meta); err != nil {
		log.Warn().Err(err).Str("sessionId", meta.ID).Msg("failed to index new session for search")
	}
}

// OnSessionUpdated broadcasts the appended messages and refreshes the search
// document from current metadata.
func (b *EngineBridge) OnSessionUpdated(sessionID string, newLines []models.SessionMessageI) {
	b.svc.NotifySessionUpdated(sessionID, map[string]interface{}{
		"newMessages": newLines,
		"count":       len(newLines),
	})

	if b.lookup == nil {
		return
	}
	meta, err := b.lookup(sessionID)
	if err != nil {
		return
	}
	if err := b.search.IndexSession(meta); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("failed to refresh session search document")
	}
}

// OnSessionDeleted broadcasts the removal and drops derived state.
func (b *EngineBridge) OnSessionDeleted(sessionID string) {
	b.svc.NotifySessionDeleted(sessionID)

	if err := b.search.DeleteSession(sessionID); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("failed to delete session search document")
	}
	if err := db.DeleteSessionState(sessionID); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("failed to delete session state row")
	}
}
