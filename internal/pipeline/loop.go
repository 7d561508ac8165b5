package pipeline

import (
	"context"
	"log/slog"

	"membot/internal/domain"
	"membot/internal/metrics"
)

const defaultConcurrency = 3

// Loop consumes inbound commands from the bus and processes them with bounded
// concurrency. Events are independent; within one event the steps are
// strictly sequential.
type Loop struct {
	pipeline    *Pipeline
	bus         domain.MessageBus
	logger      *slog.Logger
	concurrency int
}

type LoopConfig struct {
	Pipeline    *Pipeline
	Bus         domain.MessageBus
	Logger      *slog.Logger
	Concurrency int // max parallel commands (default 3)
}

func NewLoop(cfg LoopConfig) *Loop {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Loop{
		pipeline:    cfg.Pipeline,
		bus:         cfg.Bus,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
	}
}

// Run consumes inbound messages until the context is cancelled or the bus is
// closed.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("pipeline loop started", "concurrency", l.concurrency)

	sem := make(chan struct{}, l.concurrency)
	inbound := l.bus.Subscribe()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("pipeline loop stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				return
			}
			sem <- struct{}{}
			go func(msg domain.InboundMessage) {
				defer func() { <-sem }()
				l.handle(ctx, msg)
			}(msg)
		}
	}
}

// handle processes one command and sends exactly one reply.
func (l *Loop) handle(ctx context.Context, msg domain.InboundMessage) {
	metrics.MessagesTotal.Inc()
	metrics.InFlight.Inc()
	defer metrics.InFlight.Dec()

	var reply string
	switch msg.Command {
	case domain.CommandRemember:
		result, err := l.pipeline.Remember(ctx, &msg)
		if err != nil {
			reply = l.errorReply("remember", err)
		} else {
			reply = formatConfirmation(result)
		}
	case domain.CommandQuery:
		hits, err := l.pipeline.Find(ctx, msg.Text)
		if err != nil {
			reply = l.errorReply("query", err)
		} else {
			reply = formatSearchResults(msg.Text, hits)
		}
	case domain.CommandGetItem:
		item, err := l.pipeline.Get(ctx, msg.Text)
		if err != nil {
			reply = l.errorReply("get_item", err)
		} else {
			reply = formatItem(item)
		}
	default:
		l.logger.Warn("unknown command on bus", "command", msg.Command)
		return
	}

	l.bus.SendOutbound(domain.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: reply,
	})
}

// errorReply translates a pipeline failure into one user-visible message and
// records it. Known kinds are expected operational outcomes; anything else is
// treated as a bug and logged with the raw cause.
func (l *Loop) errorReply(op string, err error) string {
	kind := classifyFailure(err)
	switch kind {
	case failureInput:
		metrics.InputErrors.Inc()
		l.logger.Info("rejected user input", "op", op, "err", err)
	case failureStorage:
		metrics.StorageFailures.Inc()
		l.logger.Warn("storage failure", "op", op, "err", err)
	case failureMemory, failureRejected:
		metrics.MemoryFailures.Inc()
		l.logger.Warn("memory service failure", "op", op, "err", err)
	default:
		l.logger.Error("unexpected failure", "op", op, "err", err)
	}
	return userMessage(err)
}
