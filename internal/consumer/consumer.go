package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/fjod/redclaw/internal/domain"
	"github.com/fjod/redclaw/pkg/logger"
)

// Handler reacts to one order.paid event. Returned errors are logged; the
// message is committed either way.
type Handler interface {
	Handle(ctx context.Context, event *domain.OrderPaidEvent) error
}

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

type Consumer struct {
	name    string
	reader  MessageReader
	handler Handler
	timeout time.Duration
}

func NewConsumer(cfg Config, handler Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MaxBytes: 10e6, // 10MB
	})
	return newConsumer(cfg.GroupID, reader, handler)
}

func newConsumer(name string, reader MessageReader, handler Handler) *Consumer {
	return &Consumer{name: name, reader: reader, handler: handler, timeout: 30 * time.Second}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		logger.L().Warn("error closing kafka reader", zap.String("consumer", c.name), zap.Error(err))
	}
}

func (c *Consumer) processMessage(ctx context.Context) {
	log := logger.FromContext(ctx).With(zap.String("consumer", c.name))

	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		log.Error("error reading message", zap.Error(err))
		// avoid a hot loop while the broker is unreachable
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
		return
	}

	c.handle(ctx, log, m)

	if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		log.Error("failed to commit message", zap.Int64("offset", m.Offset), zap.Error(err))
	}
}

func (c *Consumer) handle(ctx context.Context, log *zap.Logger, m kafka.Message) {
	if t := eventType(m); t != "" && t != domain.EventTypeOrderPaid {
		log.Debug("skipping event", zap.String("event_type", t))
		return
	}

	var event domain.OrderPaidEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		log.Error("error parsing message", zap.Int64("offset", m.Offset), zap.Error(err))
		return
	}

	hctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.handler.Handle(hctx, &event); err != nil {
		log.Error("order event handler failed", zap.String("order_id", event.OrderID), zap.Error(err))
	}
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
