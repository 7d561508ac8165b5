package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"membot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestGateway(srv *httptest.Server) *Memory {
	return New(Config{
		BaseURL: srv.URL,
		Timeout: 2 * time.Second,
		Logger:  testLogger(),
		Client:  srv.Client(),
	})
}

func TestIngest_Success(t *testing.T) {
	itemID := uuid.New()
	var received domain.IngestionRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/ingest" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(domain.IngestionResult{ItemID: itemID, Status: domain.StatusStored})
	}))
	defer srv.Close()

	gw := newTestGateway(srv)
	result, err := gw.Ingest(context.Background(), domain.IngestionRequest{
		Kind:     domain.KindText,
		Text:     "Buy milk",
		Metadata: map[string]string{"source": "telegram"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ItemID != itemID {
		t.Errorf("item id mismatch: %s", result.ItemID)
	}
	if result.Status != domain.StatusStored {
		t.Errorf("status mismatch: %s", result.Status)
	}
	if received.Kind != domain.KindText || received.Text != "Buy milk" || received.StorageKey != "" {
		t.Errorf("wire request mismatch: %+v", received)
	}
}

func TestIngest_RejectedCarriesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "text and storage_key both empty", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	gw := newTestGateway(srv)
	_, err := gw.Ingest(context.Background(), domain.IngestionRequest{Kind: domain.KindText})

	var rejected *domain.RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	if rejected.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status code mismatch: %d", rejected.StatusCode)
	}
	if rejected.Detail != "text and storage_key both empty" {
		t.Errorf("detail mismatch: %q", rejected.Detail)
	}
}

func TestIngest_ServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	gw := newTestGateway(srv)
	_, err := gw.Ingest(context.Background(), domain.IngestionRequest{Kind: domain.KindText, Text: "x"})
	if !errors.Is(err, domain.ErrMemoryUnavailable) {
		t.Fatalf("expected ErrMemoryUnavailable, got %v", err)
	}
}

func TestIngest_ConnectionRefusedIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	gw := New(Config{BaseURL: srv.URL, Timeout: time.Second, Logger: testLogger()})
	_, err := gw.Ingest(context.Background(), domain.IngestionRequest{Kind: domain.KindText, Text: "x"})
	if !errors.Is(err, domain.ErrMemoryUnavailable) {
		t.Fatalf("expected ErrMemoryUnavailable, got %v", err)
	}
}

func TestSearch_PreservesOrder(t *testing.T) {
	hits := domain.SearchResult{
		{ItemID: uuid.New(), Snippet: "first", Score: 0.93},
		{ItemID: uuid.New(), Snippet: "second", Score: 0.71},
		{ItemID: uuid.New(), Snippet: "third", Score: 0.42},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "budget meeting" {
			t.Errorf("query param mismatch: %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit param mismatch: %q", got)
		}
		json.NewEncoder(w).Encode(hits)
	}))
	defer srv.Close()

	gw := newTestGateway(srv)
	got, err := gw.Search(context.Background(), "budget meeting", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(got))
	}
	for i := range hits {
		if got[i].Snippet != hits[i].Snippet || got[i].Score != hits[i].Score {
			t.Errorf("hit %d out of order: %+v", i, got[i])
		}
	}
}

func TestSearch_EmptyResultIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	gw := newTestGateway(srv)
	got, err := gw.Search(context.Background(), "nothing here", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no hits, got %d", len(got))
	}
}

func TestGetItem_Found(t *testing.T) {
	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/items/"+id.String() {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(domain.MemoryItem{
			ItemID: id,
			Kind:   domain.KindText,
			Text:   "stored note",
		})
	}))
	defer srv.Close()

	gw := newTestGateway(srv)
	item, err := gw.GetItem(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item == nil || item.Text != "stored note" {
		t.Fatalf("item mismatch: %+v", item)
	}
}

func TestGetItem_UnknownIDIsNotAnError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	gw := newTestGateway(srv)
	item, err := gw.GetItem(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("404 must not be an error, got %v", err)
	}
	if item != nil {
		t.Errorf("expected nil item, got %+v", item)
	}
	if calls != 1 {
		t.Errorf("expected exactly one call, got %d", calls)
	}
}

func TestHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	gw := newTestGateway(srv)
	if err := gw.Healthy(context.Background()); err != nil {
		t.Fatalf("expected healthy, got %v", err)
	}
}
