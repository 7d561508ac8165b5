// Package stager uploads binary message payloads to S3-compatible object
// storage and hands back retrievable references for ingestion requests.
package stager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"membot/internal/domain"
)

const defaultTimeout = 30 * time.Second

// ObjectStore is the minimal storage surface the stager needs. The MinIO
// implementation maps backend errors to the domain taxonomy; tests substitute
// a fake.
type ObjectStore interface {
	Put(ctx context.Context, key string, payload []byte, contentType string, userMetadata map[string]string) error
	Get(ctx context.Context, key string) ([]byte, error)
	EnsureBucket(ctx context.Context) error
	Ping(ctx context.Context) error
}

// Stager implements domain.ObjectStager. Each Stage call creates exactly one
// remote object under a fresh key; identical payloads staged twice get two
// distinct keys.
type Stager struct {
	store   ObjectStore
	timeout time.Duration
	logger  *slog.Logger

	now func() time.Time
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Timeout   time.Duration
	Logger    *slog.Logger
}

// New creates a Stager backed by MinIO.
func New(cfg Config) (*Stager, error) {
	store, err := newMinioStore(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithStore(store, cfg.Timeout, cfg.Logger), nil
}

// NewWithStore creates a Stager over an arbitrary ObjectStore (used in tests).
func NewWithStore(store ObjectStore, timeout time.Duration, logger *slog.Logger) *Stager {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stager{store: store, timeout: timeout, logger: logger, now: time.Now}
}

// Stage uploads a fully buffered payload and returns its storage reference.
// The payload's SHA-256, original name and size travel as object metadata.
func (s *Stager) Stage(ctx context.Context, payload []byte, mimeType, suggestedName string) (*domain.StagedObject, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("stage %s: %w", suggestedName, domain.ErrEmptyPayload)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	key := s.objectKey(suggestedName)
	sum := sha256.Sum256(payload)

	meta := map[string]string{
		"uploaded-at":   s.now().UTC().Format(time.RFC3339),
		"original-name": suggestedName,
		"file-size":     strconv.Itoa(len(payload)),
		"sha256":        hex.EncodeToString(sum[:]),
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.Put(ctx, key, payload, mimeType, meta); err != nil {
		return nil, fmt.Errorf("stage %s: %w", suggestedName, err)
	}

	s.logger.Info("staged object",
		"key", key,
		"bytes", len(payload),
		"mime", mimeType,
	)

	return &domain.StagedObject{
		Key:       key,
		MimeType:  mimeType,
		Size:      int64(len(payload)),
		SourceRef: suggestedName,
	}, nil
}

// Fetch returns the exact bytes previously uploaded under key.
func (s *Stager) Fetch(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", key, err)
	}
	return data, nil
}

// EnsureBucket creates the backing bucket if it does not exist yet.
func (s *Stager) EnsureBucket(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.EnsureBucket(ctx)
}

func (s *Stager) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.Ping(ctx)
}

// objectKey builds a unique key: telegram/<timestamp>_<uuid8><ext>. The uuid
// suffix keeps repeated stagings of the same payload distinct.
func (s *Stager) objectKey(suggestedName string) string {
	ext := filepath.Ext(suggestedName)
	id := uuid.NewString()[:8]
	return fmt.Sprintf("telegram/%s_%s%s", s.now().UTC().Format("20060102_150405"), id, ext)
}
