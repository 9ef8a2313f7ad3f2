package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"

	"github.com/camarena/rifamaster/internal/adapters/crdb"
	"github.com/camarena/rifamaster/internal/adapters/rabbit"
	redisadapter "github.com/camarena/rifamaster/internal/adapters/redis"
	"github.com/camarena/rifamaster/internal/config"
	"github.com/camarena/rifamaster/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	ledger := crdb.NewLedger(pool)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	store := redisadapter.NewStore(redisClient)

	var rabbitPub *rabbit.Publisher
	if cfg.RabbitURL != "" {
		conn, err := amqp.Dial(cfg.RabbitURL)
		if err != nil {
			log.Fatalf("failed to connect to rabbitmq: %v", err)
		}
		defer conn.Close()
		rabbitPub, err = rabbit.NewPublisher(conn)
		if err != nil {
			log.Fatalf("failed to create publisher: %v", err)
		}
	}

	worker := NewSnapshotWorker(ledger, store, rabbitPub, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx, cfg.SnapshotInterval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown snapshot worker")
}

// SnapshotWorker periodically copies the live board from the redis store
// into the durable snapshot table.
type SnapshotWorker struct {
	ledger    *crdb.Ledger
	store     *redisadapter.Store
	rabbitPub *rabbit.Publisher
	logger    observability.Logger
}

func NewSnapshotWorker(ledger *crdb.Ledger, store *redisadapter.Store, rabbitPub *rabbit.Publisher, logger observability.Logger) *SnapshotWorker {
	return &SnapshotWorker{ledger: ledger, store: store, rabbitPub: rabbitPub, logger: logger}
}

func (w *SnapshotWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := w.snapshotWithRetry(ctx, now); err != nil {
				w.logger.Error("failed to snapshot board after retries", err)
			}
		}
	}
}

func (w *SnapshotWorker) snapshotWithRetry(ctx context.Context, now time.Time) error {
	tickets, price, _, err := w.store.LoadBoard(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(tickets)
	if err != nil {
		return err
	}

	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		if err := w.ledger.SaveSnapshot(ctx, data, price, now); err != nil {
			backoff := time.Duration(1<<i) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				continue
			}
		}

		if w.rabbitPub != nil {
			payload, _ := json.Marshal(map[string]interface{}{"taken_at": now.UTC().Format(time.RFC3339)})
			msg := amqp.Publishing{
				MessageId:   uuid.New().String(),
				ContentType: "application/json",
				Body:        payload,
			}
			return w.rabbitPub.Publish(ctx, "board.snapshot", msg)
		}
		return nil
	}
	return fmt.Errorf("failed after %d retries", maxRetries)
}
