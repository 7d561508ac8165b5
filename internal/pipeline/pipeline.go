// Package pipeline coordinates the content-ingestion and retrieval paths:
// classify an inbound message, stage its binary payload (if any), submit the
// normalized record to the memory service, and map results and failures to
// one user-visible reply each.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"membot/internal/classify"
	"membot/internal/domain"
	"membot/internal/metrics"
)

const defaultSearchLimit = 5

// Pipeline owns the two remote dependencies of one ingestion: the object
// stager and the memory gateway. Media bytes are pulled lazily from the chat
// platform through the MediaFetcher.
type Pipeline struct {
	gateway     domain.MemoryGateway
	stager      domain.ObjectStager
	media       domain.MediaFetcher
	logger      *slog.Logger
	searchLimit int
}

type Config struct {
	Gateway     domain.MemoryGateway
	Stager      domain.ObjectStager
	Media       domain.MediaFetcher
	Logger      *slog.Logger
	SearchLimit int
}

func New(cfg Config) *Pipeline {
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = defaultSearchLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{
		gateway:     cfg.Gateway,
		stager:      cfg.Stager,
		media:       cfg.Media,
		logger:      cfg.Logger,
		searchLimit: cfg.SearchLimit,
	}
}

// Remember ingests the content of msg (or of the message it replies to).
// Two calls with identical input perform two independent stagings and two
// ingestions; there is no deduplication.
func (p *Pipeline) Remember(ctx context.Context, msg *domain.InboundMessage) (*domain.IngestionResult, error) {
	c, err := classify.Resolve(msg)
	if err != nil {
		return nil, err
	}

	var staged *domain.StagedObject
	if c.Kind.RequiresStaging() {
		payload, err := p.media.FetchMedia(ctx, c.Attachment.FileID)
		if err != nil {
			return nil, fmt.Errorf("download attachment %s: %w", c.Attachment.FileID, err)
		}

		staged, err = p.stager.Stage(ctx, payload, c.Attachment.MimeType, c.Attachment.FileName)
		if err != nil {
			// Staging failed: the memory service is never called, so no
			// ingestion record with a dangling reference can exist.
			return nil, err
		}
		staged.Kind = c.Kind
		metrics.StagedBytes.Add(staged.Size)
	}

	req := buildIngestionRequest(c, staged)

	result, err := p.gateway.Ingest(ctx, req)
	if err != nil {
		if staged != nil {
			// The staged object stays in storage. Deleting it speculatively
			// risks destroying data the service may still index on a later
			// manual retry, so the orphan is logged and accepted.
			p.logger.Warn("ingest failed after staging, object orphaned",
				"key", staged.Key,
				"err", err,
			)
		}
		return nil, err
	}

	metrics.ItemsRemembered.Inc()
	p.logger.Info("item remembered",
		"item_id", result.ItemID,
		"kind", c.Kind,
		"status", result.Status,
	)
	return result, nil
}

// Find runs one search query. The phrase must be non-empty after trimming;
// hit order from the service is preserved.
func (p *Pipeline) Find(ctx context.Context, phrase string) (domain.SearchResult, error) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return nil, domain.ErrEmptyQuery
	}

	hits, err := p.gateway.Search(ctx, phrase, p.searchLimit)
	if err != nil {
		return nil, err
	}
	metrics.SearchesTotal.Inc()
	return hits, nil
}

// Get looks up one item by its textual id. A malformed id fails before any
// network call; a well-formed unknown id yields (nil, nil).
func (p *Pipeline) Get(ctx context.Context, rawID string) (*domain.MemoryItem, error) {
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidItemID, strings.TrimSpace(rawID))
	}

	item, err := p.gateway.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	metrics.LookupsTotal.Inc()
	return item, nil
}

// buildIngestionRequest assembles the normalized record. The caption travels
// as metadata, never inside the indexed text, so search relevance is not
// polluted by filenames or captions.
func buildIngestionRequest(c *classify.Classification, staged *domain.StagedObject) domain.IngestionRequest {
	src := c.Source

	meta := map[string]string{
		"source":     src.Channel,
		"chat_id":    src.ChatID,
		"sender_id":  src.SenderID,
		"message_id": src.MessageID,
	}
	if !src.Timestamp.IsZero() {
		meta["timestamp"] = src.Timestamp.UTC().Format(time.RFC3339)
	}
	for k, v := range src.Metadata {
		meta[k] = v
	}
	if c.Caption != "" {
		meta["caption"] = c.Caption
	}

	req := domain.IngestionRequest{
		Kind:     c.Kind,
		Text:     c.Text,
		Metadata: meta,
	}
	if staged != nil {
		req.StorageKey = staged.Key
		meta["original_name"] = staged.SourceRef
		meta["mime_type"] = staged.MimeType
	}
	return req
}
