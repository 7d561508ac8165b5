// Package gateway is the typed HTTP boundary to the remote memory service.
// Failure classification is centralized here: connectivity problems and
// timeouts surface as domain.ErrMemoryUnavailable, remote validation failures
// as *domain.RejectedError, and an unknown item id as a nil result.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"membot/internal/domain"
)

const (
	defaultTimeout    = 30 * time.Second
	maxErrorBodyBytes = 4096
)

// Memory implements domain.MemoryGateway against the service's HTTP contract:
// POST /ingest, GET /search, GET /items/{id}, GET /health.
type Memory struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
	Client  *http.Client // optional; defaults to a pooled client
}

func New(cfg Config) *Memory {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Client == nil {
		cfg.Client = sharedHTTPClient(cfg.Timeout)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Memory{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  cfg.Client,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}
}

// Ingest submits one normalized content record for storage and indexing.
func (m *Memory) Ingest(ctx context.Context, req domain.IngestionRequest) (*domain.IngestionResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal ingestion request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/ingest", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: ingest: %v", domain.ErrMemoryUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, m.statusError("ingest", resp)
	}

	var result domain.IngestionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode ingestion response: %w", err)
	}
	return &result, nil
}

// Search runs one free-text query. An empty hit list is success, not an error.
func (m *Memory) Search(ctx context.Context, query string, limit int) (domain.SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", domain.ErrMemoryUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, m.statusError("search", resp)
	}

	var hits domain.SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&hits); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return hits, nil
}

// GetItem looks up one stored item. An unknown id returns (nil, nil).
func (m *Memory) GetItem(ctx context.Context, id uuid.UUID) (*domain.MemoryItem, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/items/"+id.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: get item: %v", domain.ErrMemoryUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, m.statusError("get item", resp)
	}

	var item domain.MemoryItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("decode item response: %w", err)
	}
	return &item, nil
}

// Healthy probes the service's health endpoint.
func (m *Memory) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: health: %v", domain.ErrMemoryUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned %d", domain.ErrMemoryUnavailable, resp.StatusCode)
	}
	return nil
}

// statusError classifies a non-success HTTP status. 4xx means the service
// received and rejected the request; everything else is unavailability.
func (m *Memory) statusError(op string, resp *http.Response) error {
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		m.logger.Warn("memory service rejected request",
			"op", op,
			"status", resp.StatusCode,
			"detail", string(detail),
		)
		return &domain.RejectedError{StatusCode: resp.StatusCode, Detail: strings.TrimSpace(string(detail))}
	}

	m.logger.Error("memory service error", "op", op, "status", resp.StatusCode)
	return fmt.Errorf("%w: %s returned %d", domain.ErrMemoryUnavailable, op, resp.StatusCode)
}
