package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/camarena/rifamaster/internal/adapters/crdb"
	mongoadapter "github.com/camarena/rifamaster/internal/adapters/mongo"
	"github.com/camarena/rifamaster/internal/adapters/rabbit"
	redisadapter "github.com/camarena/rifamaster/internal/adapters/redis"
	"github.com/camarena/rifamaster/internal/assistant"
	"github.com/camarena/rifamaster/internal/config"
	"github.com/camarena/rifamaster/internal/domain"
	httphandler "github.com/camarena/rifamaster/internal/http"
	"github.com/camarena/rifamaster/internal/idempotency"
	"github.com/camarena/rifamaster/internal/observability"
	"github.com/camarena/rifamaster/internal/rateLimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	// Every adapter is optional: an empty address skips it and the board
	// runs from memory alone.
	var store httphandler.BoardStore
	var redisStore *redisadapter.Store
	var idemp *idempotency.Idempotency
	var rl *rateLimit.RateLimiter
	if cfg.RedisAddr != "" {
		client := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
		redisStore = redisadapter.NewStore(client)
		store = redisStore
		idemp = idempotency.NewIdempotency(redisadapter.NewIdempotency(client), time.Hour)
		rl = rateLimit.NewRateLimiter(redisStore)
	} else {
		logger.Warn("REDIS_ADDR not set, board will not persist")
	}

	var ledger httphandler.SaleLedger
	if cfg.CRDBDSN != "" {
		pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
		if err != nil {
			log.Fatalf("failed to connect to crdb: %v", err)
		}
		defer pool.Close()
		ledger = crdb.NewLedger(pool)
	} else {
		logger.Warn("CRDB_DSN not set, sales will not be recorded durably")
	}

	var audit httphandler.AuditLog
	if cfg.MongoURI != "" {
		mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatalf("failed to connect to mongo: %v", err)
		}
		defer mongoClient.Disconnect(context.Background())
		audit = mongoadapter.NewAuditLogger(mongoClient.Database("rifamaster"), logger)
	}

	var events httphandler.EventPublisher
	if cfg.RabbitURL != "" {
		rabbitConn, err := amqp.Dial(cfg.RabbitURL)
		if err != nil {
			log.Fatalf("failed to connect to rabbitmq: %v", err)
		}
		defer rabbitConn.Close()
		events, err = rabbit.NewPublisher(rabbitConn)
		if err != nil {
			log.Fatalf("failed to create publisher: %v", err)
		}
	}

	board := loadBoard(context.Background(), redisStore, cfg, logger)
	ai := assistant.New(cfg.GeminiAPIKey, cfg.GeminiModel, logger)

	handlers := httphandler.NewHandlers(cfg, board, store, ledger, audit, events, ai, idemp, logger)
	r := httphandler.SetupRouter(handlers, logger, rl)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	go func() {
		logger.WithField("addr", cfg.ListenAddr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}

// loadBoard restores the persisted board. Missing or corrupt state falls
// back to a fresh pool of 100 available tickets.
func loadBoard(ctx context.Context, store *redisadapter.Store, cfg *config.Config, logger observability.Logger) *domain.Board {
	if store == nil {
		return domain.NewBoard(cfg.TicketPrice)
	}
	tickets, price, participants, err := store.LoadBoard(ctx)
	if err != nil {
		if err != domain.ErrNotFound {
			logger.Error("failed to load persisted board, starting fresh", err)
		}
		return domain.NewBoard(cfg.TicketPrice)
	}
	return domain.Restore(tickets, participants, price)
}
