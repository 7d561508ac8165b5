package stager

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"membot/internal/domain"
)

// minioStore implements ObjectStore over an S3-compatible backend.
type minioStore struct {
	client *minio.Client
	bucket string
}

func newMinioStore(cfg Config) (*minioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &minioStore{client: client, bucket: cfg.Bucket}, nil
}

func (m *minioStore) Put(ctx context.Context, key string, payload []byte, contentType string, userMetadata map[string]string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: userMetadata,
	})
	return mapStorageError(err)
}

func (m *minioStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapStorageError(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapStorageError(err)
	}
	return data, nil
}

func (m *minioStore) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return mapStorageError(err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return mapStorageError(err)
	}
	return nil
}

func (m *minioStore) Ping(ctx context.Context) error {
	if _, err := m.client.BucketExists(ctx, m.bucket); err != nil {
		return mapStorageError(err)
	}
	return nil
}

// mapStorageError folds backend failures into the domain taxonomy. Quota-class
// S3 codes become ErrStorageQuotaExceeded; everything else, timeouts included,
// is ErrStorageUnavailable.
func mapStorageError(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "QuotaExceeded", "XMinioAdminBucketQuotaExceeded", "EntityTooLarge":
		return fmt.Errorf("%w: %s", domain.ErrStorageQuotaExceeded, resp.Message)
	}
	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}
