package search

import (
	"sync"

	"github.com/meilisearch/meilisearch-go"
	"github.com/xiaoyuanzhu-com/sessiond/config"
	"github.com/xiaoyuanzhu-com/sessiond/engine"
	"github.com/xiaoyuanzhu-com/sessiond/log"
)

var (
	client     *Client
	clientOnce sync.Once
	logger     = log.GetLogger("Meilisearch")
)

// Client wraps the Meilisearch index holding session documents. A nil client
// (MEILI_HOST unset or unreachable) is valid: every method no-ops, so search
// stays strictly optional.
type Client struct {
	client   meilisearch.ServiceManager
	index    meilisearch.IndexManager
	indexUID string
}

// SearchOptions holds search options
type SearchOptions struct {
	Limit  int
	Offset int
}

// SearchResult represents a search result
type SearchResult struct {
	Hits               []Hit
	EstimatedTotalHits int
	Limit              int
	Offset             int
	Query              string
}

// Hit is a single session search hit
type Hit struct {
	SessionID   string
	DisplayName string
	Preview     string
	ProjectPath string
	Formatted   map[string]string
}

// Get returns the singleton Meilisearch client
func Get() *Client {
	clientOnce.Do(func() {
		cfg := config.Get()
		if cfg.MeiliHost == "" {
			logger.Warn().Msg("MEILI_HOST not configured, session search disabled")
			return
		}

		c := meilisearch.New(cfg.MeiliHost, meilisearch.WithAPIKey(cfg.MeiliAPIKey))

		if _, err := c.Health(); err != nil {
			logger.Error().Err(err).Msg("failed to connect to Meilisearch")
			return
		}

		client = &Client{
			client:   c,
			index:    c.Index(cfg.MeiliIndex),
			indexUID: cfg.MeiliIndex,
		}

		logger.Info().Str("host", cfg.MeiliHost).Str("index", cfg.MeiliIndex).Msg("Meilisearch initialized")
	})

	return client
}

// IndexSession upserts a session's searchable document
func (c *Client) IndexSession(meta *engine.SessionMetadata) error {
	if c == nil {
		return nil
	}

	doc := map[string]interface{}{
		"sessionId":   meta.ID,
		"displayName": meta.DisplayName,
		"preview":     meta.Preview,
		"firstMsg":    meta.FirstMessage,
		"lastMsg":     meta.LastMessage,
		"projectPath": meta.ProjectPath,
		"modified":    meta.Modified.UnixMilli(),
	}

	_, err := c.index.AddDocuments([]map[string]interface{}{doc}, "sessionId")
	return err
}

// DeleteSession removes a session's document
func (c *Client) DeleteSession(sessionID string) error {
	if c == nil {
		return nil
	}

	_, err := c.index.DeleteDocument(sessionID)
	return err
}

// Search performs a full-text query over session documents
func (c *Client) Search(query string, opts SearchOptions) (*SearchResult, error) {
	if c == nil {
		return nil, nil
	}

	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	resp, err := c.index.Search(query, &meilisearch.SearchRequest{
		Limit:                 int64(opts.Limit),
		Offset:                int64(opts.Offset),
		AttributesToHighlight: []string{"displayName", "preview", "firstMsg", "lastMsg"},
		MatchingStrategy:      "all",
	})
	if err != nil {
		return nil, err
	}

	result := &SearchResult{
		EstimatedTotalHits: int(resp.EstimatedTotalHits),
		Limit:              opts.Limit,
		Offset:             opts.Offset,
		Query:              query,
	}

	for _, hit := range resp.Hits {
		h, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}

		sessionHit := Hit{
			SessionID:   getString(h, "sessionId"),
			DisplayName: getString(h, "displayName"),
			Preview:     getString(h, "preview"),
			ProjectPath: getString(h, "projectPath"),
		}

		if formatted, ok := h["_formatted"].(map[string]interface{}); ok {
			sessionHit.Formatted = make(map[string]string)
			for k, v := range formatted {
				if s, ok := v.(string); ok {
					sessionHit.Formatted[k] = s
				}
			}
		}

		result.Hits = append(result.Hits, sessionHit)
	}

	return result, nil
}

// Enabled reports whether a live search backend is configured
func (c *Client) Enabled() bool {
	return c != nil
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
