package bus

import (
	"log/slog"
	"os"
	"testing"

	"membot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestPublishSubscribe(t *testing.T) {
	b := New(4, testLogger())
	defer b.Close()

	b.Publish(domain.InboundMessage{Channel: "telegram", ChatID: "42", Command: domain.CommandRemember})

	got := <-b.Subscribe()
	if got.ChatID != "42" || got.Command != domain.CommandRemember {
		t.Fatalf("unexpected message: %+v", got)
	}
}

func TestSendOutboundDispatchesToHandler(t *testing.T) {
	b := New(4, testLogger())
	defer b.Close()

	var got domain.OutboundMessage
	b.OnOutbound("telegram", func(msg domain.OutboundMessage) { got = msg })

	b.SendOutbound(domain.OutboundMessage{Channel: "telegram", ChatID: "7", Content: "saved"})

	if got.Content != "saved" || got.ChatID != "7" {
		t.Fatalf("handler not invoked with message: %+v", got)
	}
}

func TestSendOutboundUnknownChannelIsNoop(t *testing.T) {
	b := New(4, testLogger())
	defer b.Close()

	// Must not panic.
	b.SendOutbound(domain.OutboundMessage{Channel: "nobody", Content: "x"})
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	b := New(4, testLogger())
	b.Close()
	b.Publish(domain.InboundMessage{Channel: "telegram"})
	b.Close() // idempotent
}
