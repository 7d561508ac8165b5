package stager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"membot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeStore records puts and can fail on demand.
type fakeStore struct {
	putErr  error
	objects map[string][]byte
	meta    map[string]map[string]string
	mime    map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects: make(map[string][]byte),
		meta:    make(map[string]map[string]string),
		mime:    make(map[string]string),
	}
}

func (f *fakeStore) Put(ctx context.Context, key string, payload []byte, contentType string, userMetadata map[string]string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[key] = append([]byte(nil), payload...)
	f.meta[key] = userMetadata
	f.mime[key] = contentType
	return nil
}

func (f *fakeStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, domain.ErrStorageUnavailable
	}
	return data, nil
}

func (f *fakeStore) EnsureBucket(ctx context.Context) error { return nil }
func (f *fakeStore) Ping(ctx context.Context) error         { return nil }

func TestStage_UploadsWithMetadata(t *testing.T) {
	store := newFakeStore()
	s := NewWithStore(store, time.Second, testLogger())

	payload := []byte("jpeg bytes here")
	obj, err := s.Stage(context.Background(), payload, "image/jpeg", "photo_abc.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if obj.Key == "" || !strings.HasPrefix(obj.Key, "telegram/") {
		t.Errorf("unexpected key: %q", obj.Key)
	}
	if !strings.HasSuffix(obj.Key, ".jpg") {
		t.Errorf("extension not preserved: %q", obj.Key)
	}
	if obj.Size != int64(len(payload)) {
		t.Errorf("size mismatch: %d", obj.Size)
	}
	if obj.MimeType != "image/jpeg" {
		t.Errorf("mime mismatch: %q", obj.MimeType)
	}

	stored, ok := store.objects[obj.Key]
	if !ok {
		t.Fatal("object not put to store")
	}
	if string(stored) != string(payload) {
		t.Error("stored bytes differ from payload")
	}

	sum := sha256.Sum256(payload)
	if store.meta[obj.Key]["sha256"] != hex.EncodeToString(sum[:]) {
		t.Error("sha256 metadata missing or wrong")
	}
	if store.meta[obj.Key]["original-name"] != "photo_abc.jpg" {
		t.Error("original-name metadata missing")
	}
}

func TestStage_EmptyPayload(t *testing.T) {
	s := NewWithStore(newFakeStore(), time.Second, testLogger())
	_, err := s.Stage(context.Background(), nil, "image/jpeg", "x.jpg")
	if !errors.Is(err, domain.ErrEmptyPayload) {
		t.Fatalf("expected ErrEmptyPayload, got %v", err)
	}
}

func TestStage_UnknownMimeDefaultsToOctetStream(t *testing.T) {
	store := newFakeStore()
	s := NewWithStore(store, time.Second, testLogger())

	obj, err := s.Stage(context.Background(), []byte("data"), "", "blob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj.MimeType != "application/octet-stream" {
		t.Errorf("expected octet-stream fallback, got %q", obj.MimeType)
	}
	if store.mime[obj.Key] != "application/octet-stream" {
		t.Errorf("store received mime %q", store.mime[obj.Key])
	}
}

func TestStage_DistinctKeysForIdenticalPayload(t *testing.T) {
	s := NewWithStore(newFakeStore(), time.Second, testLogger())

	a, err := s.Stage(context.Background(), []byte("same"), "image/jpeg", "a.jpg")
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Stage(context.Background(), []byte("same"), "image/jpeg", "a.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if a.Key == b.Key {
		t.Fatalf("expected distinct keys, both %q", a.Key)
	}
}

func TestStage_StoreFailurePropagates(t *testing.T) {
	store := newFakeStore()
	store.putErr = domain.ErrStorageUnavailable
	s := NewWithStore(store, time.Second, testLogger())

	_, err := s.Stage(context.Background(), []byte("data"), "image/jpeg", "a.jpg")
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestStage_QuotaFailurePropagates(t *testing.T) {
	store := newFakeStore()
	store.putErr = domain.ErrStorageQuotaExceeded
	s := NewWithStore(store, time.Second, testLogger())

	_, err := s.Stage(context.Background(), []byte("data"), "video/mp4", "v.mp4")
	if !errors.Is(err, domain.ErrStorageQuotaExceeded) {
		t.Fatalf("expected ErrStorageQuotaExceeded, got %v", err)
	}
}

func TestFetch_RoundTrip(t *testing.T) {
	s := NewWithStore(newFakeStore(), time.Second, testLogger())

	payload := []byte{0x1, 0x2, 0x3}
	obj, err := s.Stage(context.Background(), payload, "application/octet-stream", "bin")
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Fetch(context.Background(), obj.Key)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(got) != string(payload) {
		t.Error("fetched bytes differ from staged bytes")
	}
}
