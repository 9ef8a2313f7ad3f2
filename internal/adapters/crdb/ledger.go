package crdb

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/camarena/rifamaster/internal/domain"
)

const serializationFailureCode = "40001"

// ErrSerializationFailure marks a retryable SERIALIZABLE conflict.
var ErrSerializationFailure = errors.New("serialization failure")

// Ledger is the durable record of sales and periodic board snapshots.
type Ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

func (l *Ledger) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE"); err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == serializationFailureCode {
			return ErrSerializationFailure
		}
		return err
	}

	return tx.Commit(ctx)
}

// RecordSale writes the sale row, one row per ticket, and the outbox record
// for the sale.confirmed event, all in one transaction.
func (l *Ledger) RecordSale(ctx context.Context, sale domain.Sale, payload []byte) error {
	return l.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO sales (id, buyer, paid, unit_price, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, sale.ID, sale.Buyer, sale.Paid, sale.UnitPrice, sale.CreatedAt)
		if err != nil {
			return errors.Wrap(err, "insert sale")
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, ticketID := range sale.TicketIDs {
			ticketID := ticketID
			g.Go(func() error {
				_, err := tx.Exec(gctx, `
					INSERT INTO sale_tickets (sale_id, ticket_id)
					VALUES ($1, $2)
				`, sale.ID, ticketID)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return errors.Wrap(err, "insert sale tickets")
		}

		return l.InsertOutbox(ctx, tx, OutboxRecord{
			ID:            uuid.New(),
			AggregateType: "sale",
			AggregateID:   sale.ID,
			EventType:     "sale.confirmed",
			Payload:       payload,
			DedupeKey:     uuid.New().String(),
		})
	})
}

// SaveSnapshot stores one serialized board state for the snapshot worker.
func (l *Ledger) SaveSnapshot(ctx context.Context, tickets []byte, price int, takenAt time.Time) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO board_snapshots (id, tickets_json, ticket_price, taken_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.New(), tickets, price, takenAt)
	return errors.Wrap(err, "insert snapshot")
}
