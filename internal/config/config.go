package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/camarena/rifamaster/internal/domain"
)

type Config struct {
	ListenAddr       string
	RedisAddr        string
	CRDBDSN          string
	MongoURI         string
	RabbitURL        string
	GeminiAPIKey     string
	GeminiModel      string
	TicketPrice      int
	SnapshotInterval time.Duration
	OTLPEndpoint     string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	price := domain.DefaultTicketPrice
	if v := os.Getenv("TICKET_PRICE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			price = n
		}
	}

	interval, _ := time.ParseDuration(os.Getenv("SNAPSHOT_INTERVAL"))
	if interval == 0 {
		interval = 5 * time.Minute
	}

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = "gemini-2.0-flash"
	}

	return &Config{
		ListenAddr:       addr,
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		CRDBDSN:          os.Getenv("CRDB_DSN"),
		MongoURI:         os.Getenv("MONGO_URI"),
		RabbitURL:        os.Getenv("RABBIT_URL"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      model,
		TicketPrice:      price,
		SnapshotInterval: interval,
		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}
