package publisher

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/fjod/redclaw/internal/repository"
	"github.com/fjod/redclaw/pkg/logger"
)

const (
	DefaultTopic = "order-events"
	batchSize    = 100
)

// MessageWriter is the part of *kafka.Writer the poller uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Reconciler re-drives paid payments that have no order yet.
type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

type Config struct {
	Brokers      []string
	Topic        string
	EventTick    time.Duration
	RecoveryTick time.Duration
}

// OutboxPoller publishes outbox events to Kafka and periodically runs payment
// reconciliation.
type OutboxPoller struct {
	timeout      time.Duration
	eventTick    time.Duration
	recoveryTick time.Duration
	repo         repository.OutboxRepository
	reconciler   Reconciler
	writer       MessageWriter
}

func NewOutboxPoller(repo repository.OutboxRepository, reconciler Reconciler, cfg Config) *OutboxPoller {
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
	}
	return newOutboxPoller(repo, reconciler, w, cfg)
}

func newOutboxPoller(repo repository.OutboxRepository, reconciler Reconciler, w MessageWriter, cfg Config) *OutboxPoller {
	p := &OutboxPoller{
		timeout:      5 * time.Second,
		eventTick:    cfg.EventTick,
		recoveryTick: cfg.RecoveryTick,
		repo:         repo,
		reconciler:   reconciler,
		writer:       w,
	}
	if p.eventTick <= 0 {
		p.eventTick = time.Second
	}
	if p.recoveryTick <= 0 {
		p.recoveryTick = 30 * time.Second
	}
	return p
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	recoveryTicker := time.NewTicker(p.recoveryTick)
	defer eventTicker.Stop()
	defer recoveryTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-recoveryTicker.C:
			p.reconcilePayments(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	log := logger.FromContext(ctx)

	events, err := p.repo.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		log.Error("failed to fetch outbox events", zap.Error(err))
		return
	}

	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			log.Error("failed to publish outbox event", zap.Int("event_id", event.ID), zap.Error(err))
			// keep per-aggregate order, later events wait for the next tick
			return
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			log.Error("failed to mark outbox event as processed", zap.Int("event_id", event.ID), zap.Error(err))
			continue
		}
	}
}

func (p *OutboxPoller) reconcilePayments(ctx context.Context) {
	if p.reconciler == nil {
		return
	}
	resolved, err := p.reconciler.Reconcile(ctx)
	if err != nil {
		logger.FromContext(ctx).Error("payment reconciliation failed", zap.Error(err))
		return
	}
	if resolved > 0 {
		logger.FromContext(ctx).Info("payments reconciled", zap.Int("resolved", resolved))
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *repository.OutboxEvent) error {
	writeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.AggregateId), // order id keeps events of one order on one partition
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(writeCtx, msg)
}
