package domain

import (
	"context"

	"github.com/google/uuid"
)

// IngestionStatus is the terminal state reported by the memory service for one
// ingested item.
type IngestionStatus string

const (
	StatusStored                IngestionStatus = "stored"
	StatusStoredWithoutIndexing IngestionStatus = "stored_without_indexing"
)

// IngestionRequest is the normalized record submitted to the memory service.
// At least one of Text and StorageKey is set; both are set for media with a
// caption. The caption lives in Metadata, never in Text, so search relevance
// is not polluted by filenames or captions.
type IngestionRequest struct {
	Kind       ContentKind       `json:"content_kind"`
	Text       string            `json:"text,omitempty"`
	StorageKey string            `json:"storage_key,omitempty"`
	Metadata   map[string]string `json:"metadata"`
}

type IngestionResult struct {
	ItemID uuid.UUID       `json:"item_id"`
	Status IngestionStatus `json:"status"`
}

// SearchHit is one search result; hits arrive ordered by descending score and
// that order is preserved through the pipeline.
type SearchHit struct {
	ItemID  uuid.UUID `json:"item_id"`
	Snippet string    `json:"snippet"`
	Score   float64   `json:"score"`
}

type SearchResult []SearchHit

// MemoryItem is the stored form of an ingested record as returned by the
// item-lookup endpoint.
type MemoryItem struct {
	ItemID     uuid.UUID         `json:"item_id"`
	Kind       ContentKind       `json:"content_kind"`
	Text       string            `json:"text,omitempty"`
	StorageKey string            `json:"storage_key,omitempty"`
	Metadata   map[string]string `json:"metadata"`
}

// MemoryGateway is the typed boundary to the remote memory service. All wire
// details (base URL, headers, serialization, failure classification) live
// behind it.
type MemoryGateway interface {
	Ingest(ctx context.Context, req IngestionRequest) (*IngestionResult, error)
	Search(ctx context.Context, query string, limit int) (SearchResult, error)
	// GetItem returns (nil, nil) when the id does not resolve; an unknown id
	// is not an error.
	GetItem(ctx context.Context, id uuid.UUID) (*MemoryItem, error)
	Healthy(ctx context.Context) error
}
