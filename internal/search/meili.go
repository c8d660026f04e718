// Package search looks up reference documents for brief generation via
// Meilisearch. The subsystem is optional: a nil *Service is tolerated by its
// callers, and an unreachable instance degrades to empty results.
package search

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/sirupsen/logrus"
)

const idxReferences = "mission_references"

// Reference is an external document usable as context for a mission brief.
type Reference struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	URL     string   `json:"url"`
	Body    string   `json:"body"`
	Topics  []string `json:"topics,omitempty"`
	AddedAt string   `json:"addedAt,omitempty"`
}

type Service struct {
	client  meili.ServiceManager
	log     *logrus.Logger
	healthy atomic.Bool
	done    chan struct{}
}

// New creates a Meilisearch-backed reference index. An unreachable instance
// is not fatal; a background monitor reconfigures the index on recovery.
func New(url, apiKey string, log *logrus.Logger) *Service {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	s := &Service{client: client, log: log, done: make(chan struct{})}
	if _, err := client.Health(); err != nil {
		log.WithError(err).Warnf("search: meilisearch unavailable at %s", url)
		s.healthy.Store(false)
	} else {
		s.healthy.Store(true)
		s.configureIndex()
	}

	go s.healthLoop()
	return s
}

func (s *Service) configureIndex() {
	if _, err := s.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxReferences,
		PrimaryKey: "id",
	}); err != nil {
		s.log.WithError(err).Debugf("search: create index %s (may already exist)", idxReferences)
	}
	searchable := []string{"title", "body", "topics"}
	if _, err := s.client.Index(idxReferences).UpdateSearchableAttributes(&searchable); err != nil {
		s.log.WithError(err).Warnf("search: update searchable attrs for %s", idxReferences)
	}
}

func (s *Service) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			_, err := s.client.Health()
			wasHealthy := s.healthy.Load()
			s.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				s.log.Info("search: meilisearch recovered, reconfiguring index")
				s.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (s *Service) Close() {
	close(s.done)
}

// Healthy reports whether Meilisearch is reachable.
func (s *Service) Healthy() bool {
	return s.healthy.Load()
}

// IndexReference adds or updates a reference document.
func (s *Service) IndexReference(ref Reference) error {
	if !s.healthy.Load() {
		return fmt.Errorf("meilisearch unhealthy")
	}
	_, err := s.client.Index(idxReferences).AddDocuments([]Reference{ref}, nil)
	return err
}

// SearchReferences returns up to limit references matching the query.
func (s *Service) SearchReferences(query string, limit int) ([]Reference, error) {
	if !s.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}
	if limit <= 0 {
		limit = 5
	}

	resp, err := s.client.Index(idxReferences).Search(query, &meili.SearchRequest{Limit: int64(limit)})
	if err != nil {
		s.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	refs := make([]Reference, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		refs = append(refs, hitToReference(hit))
	}
	return refs, nil
}

func hitToReference(hit meili.Hit) Reference {
	return Reference{
		ID:    decodeString(hit, "id"),
		Title: decodeString(hit, "title"),
		URL:   decodeString(hit, "url"),
		Body:  decodeString(hit, "body"),
	}
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}
