package channel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"membot/internal/domain"
)

const (
	telegramMaxMsgLen      = 4000
	telegramMaxSendRetries = 3
	telegramFetchTimeout   = 60 * time.Second
)

// Telegram implements domain.Channel over long polling. It also implements
// domain.MediaFetcher so the pipeline can download attachment payloads by
// file id.
type Telegram struct {
	token     string
	allowFrom []int64 // Allowed user IDs (empty = allow all)
	parseMode string

	bot    *tgbotapi.BotAPI
	bus    domain.MessageBus
	logger *slog.Logger

	httpClient *http.Client
}

type TelegramConfig struct {
	Token     string
	AllowFrom []string // User IDs as strings
	ParseMode string
	Logger    *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	var allowed []int64
	for _, s := range cfg.AllowFrom {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			allowed = append(allowed, id)
		}
	}
	if cfg.ParseMode == "" {
		cfg.ParseMode = "Markdown"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Telegram{
		token:      cfg.Token,
		allowFrom:  allowed,
		parseMode:  cfg.ParseMode,
		logger:     cfg.Logger,
		httpClient: &http.Client{Timeout: telegramFetchTimeout},
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects to Telegram and begins polling for updates.
func (t *Telegram) Start(ctx context.Context, bus domain.MessageBus) error {
	t.bus = bus

	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)

	bus.OnOutbound("telegram", func(msg domain.OutboundMessage) {
		chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
		if err != nil {
			t.logger.Error("invalid chat ID for telegram outbound", "chatID", msg.ChatID, "err", err)
			return
		}
		t.sendMessage(chatID, msg.Content)
	})

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	t.logger.Info("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(update)
		}
	}
}

// Stop shuts down the Telegram bot.
// Note: StopReceivingUpdates is already called when ctx is cancelled in Start().
// Calling it twice panics, so Stop() is a no-op.
func (t *Telegram) Stop() error {
	return nil
}

func (t *Telegram) Send(ctx context.Context, chatID string, content string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %w", err)
	}
	t.sendMessage(id, content)
	return nil
}

// FetchMedia downloads the raw bytes of a Telegram file by its file id.
func (t *Telegram) FetchMedia(ctx context.Context, fileID string) ([]byte, error) {
	file, err := t.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("telegram get file %s: %w", fileID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(t.token), nil)
	if err != nil {
		return nil, fmt.Errorf("telegram file request: %w", err)
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram file download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram file download: status %d", resp.StatusCode)
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("telegram file download: %w", err)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("telegram file %s: empty payload", fileID)
	}
	return payload, nil
}

func (t *Telegram) handleUpdate(update tgbotapi.Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
		return
	}
	msg := update.Message

	userID := msg.From.ID
	chatID := msg.Chat.ID

	if !t.isAllowed(userID) {
		t.logger.Warn("unauthorized telegram user",
			"user_id", userID,
			"username", msg.From.UserName,
		)
		t.sendMessage(chatID, "⛔ Unauthorized. Your user ID is not in the allow list.")
		return
	}

	command, args := parseCommand(msg)
	switch command {
	case "start":
		t.sendMessage(chatID, startText)
	case "help":
		t.sendMessage(chatID, helpText)
	case domain.CommandRemember, domain.CommandQuery, domain.CommandGetItem:
		t.logger.Info("telegram command received",
			"command", command,
			"user_id", userID,
			"chat_id", chatID,
		)
		typing := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
		_, _ = t.bot.Send(typing)

		t.bus.Publish(*commandInbound(msg, command, args))
	case "":
		// Plain chatter is never relayed; the bot only acts on commands.
	default:
		t.sendMessage(chatID, "Unknown command. Type /help for available commands.")
	}
}

const startText = "👋 Hello! I relay your messages into long-term memory.\n\n" +
	"Commands:\n" +
	"/remember <text> — save text, or reply to a message to save it\n" +
	"/query <terms> — search stored memories\n" +
	"/get_item <id> — fetch one memory item by ID\n" +
	"/help — show this message"

const helpText = "📖 *Memory bot help*\n\n" +
	"*/remember* — save content. Works three ways:\n" +
	"• /remember some text\n" +
	"• attach a photo, voice note, video, sticker or document with /remember as the caption\n" +
	"• reply to any message with /remember\n\n" +
	"*/query <terms>* — search your memories\n" +
	"*/get_item <id>* — show one stored item"

// parseCommand extracts the bot command from a message. Telegram delivers
// caption commands on media messages through CaptionEntities, which
// Message.Command() does not cover.
func parseCommand(msg *tgbotapi.Message) (command, args string) {
	if msg.IsCommand() {
		return msg.Command(), strings.TrimSpace(msg.CommandArguments())
	}
	caption := strings.TrimSpace(msg.Caption)
	if !strings.HasPrefix(caption, "/") {
		return "", ""
	}
	rest := caption[1:]
	command = rest
	if i := strings.IndexAny(rest, " \n"); i >= 0 {
		command, args = rest[:i], strings.TrimSpace(rest[i:])
	}
	if i := strings.Index(command, "@"); i >= 0 {
		command = command[:i]
	}
	return command, args
}

// commandInbound builds the message published for a relay command. Text
// carries the command arguments. When /remember arrived through a media
// caption, the remainder of the caption is the real caption and must not
// become indexed text.
func commandInbound(msg *tgbotapi.Message, command, args string) *domain.InboundMessage {
	inbound := buildInbound(msg)
	inbound.Command = command
	inbound.Text = args
	if !msg.IsCommand() && command == domain.CommandRemember {
		inbound.Caption = args
		inbound.Text = ""
	}
	return inbound
}

// buildInbound converts a Telegram message into the channel-neutral form,
// including one level of reply context. Telegram's API only carries the
// directly replied-to message.
func buildInbound(msg *tgbotapi.Message) *domain.InboundMessage {
	inbound := &domain.InboundMessage{
		Channel:    "telegram",
		ChatID:     strconv.FormatInt(msg.Chat.ID, 10),
		MessageID:  strconv.Itoa(msg.MessageID),
		Text:       msg.Text,
		Caption:    msg.Caption,
		Attachment: mapAttachment(msg),
		Timestamp:  time.Unix(int64(msg.Date), 0),
	}
	if msg.From != nil {
		inbound.SenderID = strconv.FormatInt(msg.From.ID, 10)
	}
	if msg.ReplyToMessage != nil {
		inbound.ReplyTo = buildInbound(msg.ReplyToMessage)
	}
	return inbound
}

// mapAttachment maps Telegram media onto a normalized attachment. Photos pick
// the largest size variant; the smaller ones are thumbnails of the same image.
func mapAttachment(msg *tgbotapi.Message) *domain.Attachment {
	switch {
	case len(msg.Photo) > 0:
		photo := msg.Photo[len(msg.Photo)-1]
		return &domain.Attachment{
			Kind:     domain.KindImage,
			FileID:   photo.FileID,
			MimeType: "image/jpeg",
			FileName: fmt.Sprintf("photo_%s.jpg", photo.FileID),
			Size:     int64(photo.FileSize),
		}
	case msg.Voice != nil:
		return &domain.Attachment{
			Kind:     domain.KindAudio,
			FileID:   msg.Voice.FileID,
			MimeType: orDefault(msg.Voice.MimeType, "audio/ogg"),
			FileName: fmt.Sprintf("voice_%s.ogg", msg.Voice.FileID),
			Size:     int64(msg.Voice.FileSize),
		}
	case msg.Audio != nil:
		return &domain.Attachment{
			Kind:     domain.KindAudio,
			FileID:   msg.Audio.FileID,
			MimeType: orDefault(msg.Audio.MimeType, "audio/mpeg"),
			FileName: orDefault(msg.Audio.FileName, fmt.Sprintf("audio_%s.mp3", msg.Audio.FileID)),
			Size:     int64(msg.Audio.FileSize),
		}
	case msg.VideoNote != nil:
		return &domain.Attachment{
			Kind:     domain.KindVideo,
			FileID:   msg.VideoNote.FileID,
			MimeType: "video/mp4",
			FileName: fmt.Sprintf("video_note_%s.mp4", msg.VideoNote.FileID),
			Size:     int64(msg.VideoNote.FileSize),
		}
	case msg.Video != nil:
		return &domain.Attachment{
			Kind:     domain.KindVideo,
			FileID:   msg.Video.FileID,
			MimeType: orDefault(msg.Video.MimeType, "video/mp4"),
			FileName: orDefault(msg.Video.FileName, fmt.Sprintf("video_%s.mp4", msg.Video.FileID)),
			Size:     int64(msg.Video.FileSize),
		}
	case msg.Sticker != nil:
		return &domain.Attachment{
			Kind:     domain.KindSticker,
			FileID:   msg.Sticker.FileID,
			MimeType: "image/webp",
			FileName: fmt.Sprintf("sticker_%s.webp", msg.Sticker.FileID),
			Size:     int64(msg.Sticker.FileSize),
		}
	case msg.Document != nil:
		return &domain.Attachment{
			Kind:     domain.KindDocument,
			FileID:   msg.Document.FileID,
			MimeType: orDefault(msg.Document.MimeType, "application/octet-stream"),
			FileName: orDefault(msg.Document.FileName, fmt.Sprintf("document_%s", msg.Document.FileID)),
			Size:     int64(msg.Document.FileSize),
		}
	}
	return nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func (t *Telegram) isAllowed(userID int64) bool {
	if len(t.allowFrom) == 0 {
		return true // Empty list = allow all
	}
	for _, id := range t.allowFrom {
		if id == userID {
			return true
		}
	}
	return false
}

func (t *Telegram) sendMessage(chatID int64, text string) {
	// Telegram has a 4096 char limit per message
	for _, chunk := range splitMessage(text, telegramMaxMsgLen) {
		t.sendChunk(chatID, chunk)
	}
}

// splitMessage breaks text into chunks of at most maxLen bytes, preferring
// newline boundaries and never cutting through a multi-byte rune.
func splitMessage(text string, maxLen int) []string {
	var chunks []string
	for len(text) > maxLen {
		cutAt := strings.LastIndex(text[:maxLen], "\n")
		if cutAt < maxLen/2 {
			cutAt = maxLen
			for cutAt > 0 && !utf8.RuneStart(text[cutAt]) {
				cutAt--
			}
		}
		chunks = append(chunks, text[:cutAt])
		text = text[cutAt:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// sendChunk sends a single message chunk with retry and rate limit handling.
// Strategy: try Markdown first, on parse error fall back to plain text, then
// retry with backoff.
func (t *Telegram) sendChunk(chatID int64, text string) {
	const maxRetries = telegramMaxSendRetries

	for attempt := 0; attempt <= maxRetries; attempt++ {
		msg := tgbotapi.NewMessage(chatID, text)
		if attempt == 0 && t.parseMode != "" {
			msg.ParseMode = t.parseMode
		}

		_, err := t.bot.Send(msg)
		if err == nil {
			return
		}

		errStr := err.Error()

		// Handle Telegram rate limiting (HTTP 429).
		if strings.Contains(errStr, "Too Many Requests") || strings.Contains(errStr, "429") {
			retryAfter := time.Duration(attempt+1) * 3 * time.Second
			t.logger.Warn("telegram rate limited, backing off",
				"retry_after", retryAfter, "attempt", attempt+1,
			)
			time.Sleep(retryAfter)
			continue
		}

		// Markdown parse error on first attempt: immediately retry as plain text.
		if attempt == 0 && msg.ParseMode != "" &&
			strings.Contains(errStr, "can't parse entities") {
			t.logger.Warn("telegram markdown parse error, retrying as plain text",
				"err", err, "parseMode", t.parseMode,
			)
			plainMsg := tgbotapi.NewMessage(chatID, text)
			if _, err2 := t.bot.Send(plainMsg); err2 == nil {
				return
			}
		}

		if attempt < maxRetries {
			backoff := time.Duration(attempt+1) * time.Second
			t.logger.Warn("telegram send error, retrying", "err", err, "backoff", backoff)
			time.Sleep(backoff)
			continue
		}

		t.logger.Error("telegram send failed after retries", "err", err, "attempts", maxRetries+1)
	}
}
