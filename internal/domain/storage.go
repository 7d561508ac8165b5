package domain

import "context"

// StagedObject references a binary payload uploaded to object storage. It is
// owned by the ingestion invocation that created it and not retained after the
// ingest call returns; the memory service is the system of record afterwards.
type StagedObject struct {
	Key       string
	Kind      ContentKind
	MimeType  string
	Size      int64
	SourceRef string // platform file handle the bytes came from
}

// ObjectStager uploads fully buffered binary payloads to object storage.
// Exactly one remote object is created per Stage call; failures are terminal
// for the current ingestion attempt and never retried here.
type ObjectStager interface {
	Stage(ctx context.Context, payload []byte, mimeType, suggestedName string) (*StagedObject, error)
	// Fetch returns byte-identical content for a key previously returned by Stage.
	Fetch(ctx context.Context, key string) ([]byte, error)
	Healthy(ctx context.Context) error
}

// MediaFetcher retrieves raw attachment bytes from the origin chat platform by
// download handle.
type MediaFetcher interface {
	FetchMedia(ctx context.Context, fileID string) ([]byte, error)
}
