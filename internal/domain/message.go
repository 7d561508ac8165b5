package domain

import "time"

// ContentKind classifies the payload shape of a message.
type ContentKind string

const (
	KindText     ContentKind = "text"
	KindImage    ContentKind = "image"
	KindAudio    ContentKind = "audio"
	KindVideo    ContentKind = "video"
	KindDocument ContentKind = "document"
	KindSticker  ContentKind = "sticker"
)

// RequiresStaging reports whether the kind carries a binary payload that must
// be uploaded to object storage before ingestion.
func (k ContentKind) RequiresStaging() bool {
	return k != KindText && k != ""
}

// Bot commands dispatched through the pipeline.
const (
	CommandRemember = "remember"
	CommandQuery    = "query"
	CommandGetItem  = "get_item"
)

// Attachment describes a binary payload attached to a message. Bytes are not
// included; FileID is the platform download handle resolved lazily via
// MediaFetcher.
type Attachment struct {
	Kind     ContentKind
	FileID   string
	MimeType string
	FileName string
	Size     int64
}

// InboundMessage is the immutable record of one chat event. ReplyTo carries the
// replied-to message (itself possibly a reply) so "reply with a command" can
// mean "remember the replied-to content".
type InboundMessage struct {
	Channel    string
	ChatID     string
	SenderID   string
	MessageID  string
	Command    string // remember | query | get_item (empty for plain messages)
	Text       string // command argument text, or the message's own text
	Caption    string
	Attachment *Attachment
	ReplyTo    *InboundMessage
	Timestamp  time.Time
	Metadata   map[string]string // sender/chat details from the platform
}

type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
}
