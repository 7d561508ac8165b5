package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"membot/internal/domain"
)

const snippetMaxRunes = 300

type failureKind int

const (
	failureUnknown failureKind = iota
	failureInput
	failureStorage
	failureMemory
	failureRejected
)

func classifyFailure(err error) failureKind {
	var rejected *domain.RejectedError
	switch {
	case errors.Is(err, domain.ErrNothingToRemember),
		errors.Is(err, domain.ErrEmptyQuery),
		errors.Is(err, domain.ErrInvalidItemID),
		errors.Is(err, domain.ErrEmptyPayload):
		return failureInput
	case errors.Is(err, domain.ErrStorageUnavailable),
		errors.Is(err, domain.ErrStorageQuotaExceeded):
		return failureStorage
	case errors.Is(err, domain.ErrMemoryUnavailable):
		return failureMemory
	case errors.As(err, &rejected):
		return failureRejected
	}
	return failureUnknown
}

// userMessage maps a failure to the single chat reply the user sees.
func userMessage(err error) string {
	var rejected *domain.RejectedError
	switch {
	case errors.Is(err, domain.ErrNothingToRemember):
		return "❌ No content to remember. Either reply to a message or include content in your message."
	case errors.Is(err, domain.ErrEmptyQuery):
		return "❓ Please provide a search query.\nUsage: /query <search terms>"
	case errors.Is(err, domain.ErrInvalidItemID):
		return "❌ Invalid item ID format. Please provide a valid UUID."
	case errors.Is(err, domain.ErrEmptyPayload):
		return "❌ The attachment is empty and cannot be saved."
	case errors.Is(err, domain.ErrStorageQuotaExceeded):
		return "❌ Storage is full. The attachment could not be saved."
	case errors.Is(err, domain.ErrStorageUnavailable):
		return "❌ Could not store the attachment right now. Please try again later."
	case errors.Is(err, domain.ErrMemoryUnavailable):
		return "❌ The memory service is unavailable. Please try again later."
	case errors.As(err, &rejected):
		if rejected.Detail != "" {
			return "❌ Failed to save memory: " + rejected.Detail
		}
		return "❌ The memory service rejected the request."
	}
	return "❌ An unexpected error occurred. Please try again."
}

func formatConfirmation(result *domain.IngestionResult) string {
	return fmt.Sprintf("✅ Memory saved:\n📝 Item ID: `%s`\n🕒 Status: %s", result.ItemID, result.Status)
}

func formatSearchResults(query string, hits domain.SearchResult) string {
	query = strings.TrimSpace(query)
	if len(hits) == 0 {
		return fmt.Sprintf("🔍 No memories found for: `%s`", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🔍 *Search results for:* `%s`\n\n", query)
	for i, hit := range hits {
		fmt.Fprintf(&sb, "*%d. (score: %.2f)*\n%s\n🆔 `%s`\n\n",
			i+1, hit.Score, truncateSnippet(hit.Snippet), hit.ItemID)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatItem(item *domain.MemoryItem) string {
	if item == nil {
		return "🔍 No memory item found with that ID."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 *Memory item*\n\n🆔 `%s`\n📂 %s\n", item.ItemID, item.Kind)

	if item.Text != "" {
		fmt.Fprintf(&sb, "\n📝 %s\n", item.Text)
	} else {
		sb.WriteString("\n📝 [no text content]\n")
	}
	if item.StorageKey != "" {
		fmt.Fprintf(&sb, "🔗 Stored object: `%s`\n", item.StorageKey)
	}
	if len(item.Metadata) > 0 {
		sb.WriteString("\n🏷 Metadata:\n")
		for _, k := range sortedKeys(item.Metadata) {
			fmt.Fprintf(&sb, "• %s: %s\n", k, item.Metadata[k])
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func truncateSnippet(s string) string {
	runes := []rune(s)
	if len(runes) <= snippetMaxRunes {
		return s
	}
	return string(runes[:snippetMaxRunes-3]) + "..."
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
