package outbox

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/camarena/rifamaster/internal/adapters/crdb"
	"github.com/camarena/rifamaster/internal/adapters/rabbit"
	"github.com/camarena/rifamaster/internal/observability"
)

// Publisher drains NEW outbox rows into RabbitMQ so sale events survive a
// broker outage at confirmation time.
type Publisher struct {
	ledger    *crdb.Ledger
	rabbitPub *rabbit.Publisher
	logger    observability.Logger
}

func NewPublisher(ledger *crdb.Ledger, rabbitPub *rabbit.Publisher, logger observability.Logger) *Publisher {
	return &Publisher{ledger: ledger, rabbitPub: rabbitPub, logger: logger}
}

func (p *Publisher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

func (p *Publisher) drain(ctx context.Context) {
	records, err := p.ledger.GetUnpublishedOutbox(ctx, 10)
	if err != nil {
		p.logger.Error("failed to fetch outbox records", err)
		return
	}
	if len(records) > 0 {
		observability.OutboxLag.Set(time.Since(records[0].CreatedAt).Seconds())
	} else {
		observability.OutboxLag.Set(0)
	}
	for _, rec := range records {
		msg := amqp.Publishing{
			MessageId:   rec.DedupeKey,
			ContentType: "application/json",
			Body:        rec.Payload,
		}
		if err := p.rabbitPub.Publish(ctx, rec.EventType, msg); err != nil {
			p.logger.Error("failed to publish outbox record", err)
			continue
		}
		if err := p.ledger.MarkPublished(ctx, rec.ID, time.Now().UTC()); err != nil {
			p.logger.Error("failed to mark outbox record published", err)
		}
	}
}
