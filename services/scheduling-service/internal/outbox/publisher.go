package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer used by the publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	pool      *db.Pool
	repo      *Repository
	logger    *slog.Logger
	brokers   []string
	pollEvery time.Duration
	batchSize int
	retain    time.Duration
	newWriter func() MessageWriter
}

type PublisherConfig struct {
	Brokers   string
	PollEvery time.Duration
	BatchSize int
	// RetainFor keeps published rows this long before Purge removes them.
	RetainFor time.Duration
}

func NewPublisher(pool *db.Pool, repo *Repository, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	brokers := kafkax.SplitBrokers(cfg.Brokers)
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.RetainFor <= 0 {
		cfg.RetainFor = 7 * 24 * time.Hour
	}
	p := &Publisher{
		pool:      pool,
		repo:      repo,
		logger:    logger,
		brokers:   brokers,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
		retain:    cfg.RetainFor,
	}
	p.newWriter = func() MessageWriter {
		return &kafka.Writer{
			Addr:                   kafka.TCP(p.brokers...),
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		}
	}
	return p
}

// Enabled reports whether brokers are configured.
func (p *Publisher) Enabled() bool { return len(p.brokers) > 0 }

func (p *Publisher) Run(ctx context.Context) {
	if !p.Enabled() {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}

	writer := p.newWriter()
	defer writer.Close()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PublishBatch(ctx, writer)
			if err != nil {
				p.logger.Error("outbox publish failed", "err", err)
				continue
			}
			if n > 0 {
				p.logger.Debug("outbox batch published", "count", n)
			}
		}
	}
}

// PublishBatch sends one batch of pending events and marks them published.
// Keys are appointment ids so all events of one appointment stay ordered.
func (p *Publisher) PublishBatch(ctx context.Context, writer MessageWriter) (int, error) {
	var published int
	err := p.pool.WithTx(ctx, func(tx pgx.Tx) error {
		records, err := p.repo.FetchUnpublished(ctx, tx, p.batchSize)
		if err != nil || len(records) == 0 {
			return err
		}

		msgs := make([]kafka.Message, 0, len(records))
		ids := make([]int64, 0, len(records))
		for _, r := range records {
			msgs = append(msgs, Message(ctx, r))
			ids = append(ids, r.ID)
		}
		if err := writer.WriteMessages(ctx, msgs...); err != nil {
			return err
		}
		published = len(records)
		return p.repo.MarkPublished(ctx, tx, ids)
	})
	return published, err
}

// Purge drops published rows older than the retention period.
func (p *Publisher) Purge(ctx context.Context) {
	cutoff := time.Now().Add(-p.retain)
	var n int64
	err := p.pool.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		n, err = p.repo.PurgePublished(ctx, tx, cutoff)
		return err
	})
	if err != nil {
		p.logger.Error("outbox purge failed", "err", err)
		return
	}
	if n > 0 {
		p.logger.Info("outbox purged", "rows", n)
	}
}

// Message converts a record into its Kafka message, restoring the trace
// context captured when the event was written.
func Message(ctx context.Context, r Record) kafka.Message {
	msgCtx := otelx.TraceContext{Traceparent: r.Traceparent, Tracestate: r.Tracestate}.Restore(ctx)
	msg := kafka.Message{
		Topic:   r.EventType,
		Key:     []byte(r.AggregateID),
		Value:   r.Payload,
		Headers: kafkax.EventHeaders(r.EventID, r.EventType),
	}
	msg.Headers = kafkax.InjectTraceHeaders(msgCtx, msg.Headers)
	return msg
}
