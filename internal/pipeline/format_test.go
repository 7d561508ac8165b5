package pipeline

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"membot/internal/domain"
)

func TestClassifyFailure(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want failureKind
	}{
		{"nothing to remember", domain.ErrNothingToRemember, failureInput},
		{"empty query", domain.ErrEmptyQuery, failureInput},
		{"invalid item id", domain.ErrInvalidItemID, failureInput},
		{"empty payload", domain.ErrEmptyPayload, failureInput},
		{"wrapped input", errors.Join(errors.New("ctx"), domain.ErrEmptyQuery), failureInput},
		{"storage unavailable", domain.ErrStorageUnavailable, failureStorage},
		{"storage quota", domain.ErrStorageQuotaExceeded, failureStorage},
		{"memory unavailable", domain.ErrMemoryUnavailable, failureMemory},
		{"rejected", &domain.RejectedError{StatusCode: 422}, failureRejected},
		{"unknown", errors.New("boom"), failureUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyFailure(tc.err); got != tc.want {
				t.Errorf("classifyFailure(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestUserMessage_RejectedDetail(t *testing.T) {
	msg := userMessage(&domain.RejectedError{StatusCode: 422, Detail: "text too long"})
	if !strings.Contains(msg, "text too long") {
		t.Errorf("rejection detail missing from %q", msg)
	}

	msg = userMessage(&domain.RejectedError{StatusCode: 400})
	if !strings.Contains(msg, "rejected") {
		t.Errorf("expected generic rejection message, got %q", msg)
	}
}

func TestUserMessage_UnknownErrorIsGeneric(t *testing.T) {
	msg := userMessage(errors.New("nil pointer dereference"))
	if strings.Contains(msg, "nil pointer") {
		t.Errorf("internal detail leaked to the user: %q", msg)
	}
}

func TestFormatConfirmation(t *testing.T) {
	id := uuid.New()
	out := formatConfirmation(&domain.IngestionResult{ItemID: id, Status: domain.StatusStored})
	if !strings.Contains(out, id.String()) {
		t.Errorf("item id missing from %q", out)
	}
	if !strings.Contains(out, "stored") {
		t.Errorf("status missing from %q", out)
	}
}

func TestFormatSearchResults(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		out := formatSearchResults("milk", nil)
		if !strings.Contains(out, "No memories found") || !strings.Contains(out, "milk") {
			t.Errorf("unexpected empty-result message: %q", out)
		}
	})

	t.Run("numbered with scores", func(t *testing.T) {
		hits := domain.SearchResult{
			{ItemID: uuid.New(), Snippet: "first", Score: 0.912},
			{ItemID: uuid.New(), Snippet: "second", Score: 0.5},
		}
		out := formatSearchResults("milk", hits)
		if !strings.Contains(out, "1. (score: 0.91)") {
			t.Errorf("first hit missing rounded score: %q", out)
		}
		if !strings.Contains(out, "2. (score: 0.50)") {
			t.Errorf("second hit missing: %q", out)
		}
		if strings.Index(out, "first") > strings.Index(out, "second") {
			t.Error("hit order not preserved")
		}
	})
}

func TestFormatItem_Absent(t *testing.T) {
	out := formatItem(nil)
	if !strings.Contains(out, "No memory item found") {
		t.Errorf("unexpected absent-item message: %q", out)
	}
}

func TestFormatItem_MetadataSorted(t *testing.T) {
	item := &domain.MemoryItem{
		ItemID: uuid.New(),
		Kind:   domain.KindImage,
		Metadata: map[string]string{
			"source":  "telegram",
			"caption": "Sunset",
		},
	}
	out := formatItem(item)
	if strings.Index(out, "caption") > strings.Index(out, "source") {
		t.Error("metadata keys not sorted")
	}
	if !strings.Contains(out, "[no text content]") {
		t.Errorf("missing text placeholder: %q", out)
	}
}

func TestTruncateSnippet(t *testing.T) {
	short := strings.Repeat("a", snippetMaxRunes)
	if got := truncateSnippet(short); got != short {
		t.Error("short snippet must pass through unchanged")
	}

	long := strings.Repeat("é", snippetMaxRunes+50)
	got := truncateSnippet(long)
	if runes := []rune(got); len(runes) != snippetMaxRunes {
		t.Errorf("expected %d runes, got %d", snippetMaxRunes, len(runes))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis suffix: %q", got[len(got)-10:])
	}
}
