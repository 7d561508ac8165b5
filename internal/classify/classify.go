// Package classify determines what a chat message means for ingestion: its
// content kind, the text to index, the caption to carry as metadata, and the
// attachment (if any) that still needs downloading. It never performs I/O.
package classify

import (
	"strings"

	"membot/internal/domain"
)

// maxReplyDepth bounds the reply-chain walk so a cyclic or adversarial reply
// graph cannot recurse forever.
const maxReplyDepth = 4

// Classification is the outcome of resolving one inbound message.
type Classification struct {
	Kind       domain.ContentKind
	Attachment *domain.Attachment // nil for text
	Text       string
	Caption    string
	// Source is the message whose content is being remembered: the command
	// message itself, or the replied-to message it points at.
	Source *domain.InboundMessage
}

// Resolve classifies msg. A message with text and no attachment is Text; a
// message with one attachment takes that attachment's kind, caption carried
// alongside. A message with neither is resolved against its reply chain,
// nearest target first. Returns domain.ErrNothingToRemember when nothing in
// the chain has content.
func Resolve(msg *domain.InboundMessage) (*Classification, error) {
	cur := msg
	for depth := 0; cur != nil && depth <= maxReplyDepth; depth++ {
		if c := classifyOwn(cur); c != nil {
			return c, nil
		}
		cur = cur.ReplyTo
	}
	return nil, domain.ErrNothingToRemember
}

// classifyOwn returns the classification of the message's own content, or nil
// when the message carries nothing itself.
func classifyOwn(msg *domain.InboundMessage) *Classification {
	if msg.Attachment != nil {
		return &Classification{
			Kind:       msg.Attachment.Kind,
			Attachment: msg.Attachment,
			Text:       strings.TrimSpace(msg.Text),
			Caption:    strings.TrimSpace(msg.Caption),
			Source:     msg,
		}
	}

	if text := strings.TrimSpace(msg.Text); text != "" {
		return &Classification{
			Kind:   domain.KindText,
			Text:   text,
			Source: msg,
		}
	}

	return nil
}
