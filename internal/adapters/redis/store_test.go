package redis_test

import (
	"context"
	"errors"
	"testing"

	redisclient "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	redisadapter "github.com/camarena/rifamaster/internal/adapters/redis"
	"github.com/camarena/rifamaster/internal/domain"
)

func newTestStore(t *testing.T) *redisadapter.Store {
	t.Helper()
	ctx := context.Background()

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForExec([]string{"redis-cli", "ping"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatal(err)
	}

	client := redisclient.NewClient(&redisclient.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() { client.Close() })
	return redisadapter.NewStore(client)
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	tickets := domain.NewPool()
	tickets[5].Status = domain.StatusPaid
	tickets[5].OwnerName = "Carlos"

	if err := store.SaveBoard(ctx, tickets, 7500, []string{"Carlos"}); err != nil {
		t.Fatal(err)
	}

	loaded, price, participants, err := store.LoadBoard(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != domain.PoolSize {
		t.Fatalf("expected %d tickets, got %d", domain.PoolSize, len(loaded))
	}
	if loaded[5].Status != domain.StatusPaid || loaded[5].OwnerName != "Carlos" {
		t.Errorf("unexpected ticket 05: %+v", loaded[5])
	}
	if price != 7500 {
		t.Errorf("expected price 7500, got %d", price)
	}
	if len(participants) != 1 || participants[0] != "Carlos" {
		t.Errorf("unexpected participants: %v", participants)
	}
}

func TestStore_LoadMissing(t *testing.T) {
	store := newTestStore(t)

	_, _, _, err := store.LoadBoard(context.Background())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_LoadCorruptState(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Client().Set(ctx, "tickets", "not json", 0).Err(); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := store.LoadBoard(ctx); err == nil {
		t.Fatal("expected a decode error for corrupt tickets")
	}

	// A corrupt price or registry falls back instead of failing the load.
	tickets := domain.NewPool()
	if err := store.SaveBoard(ctx, tickets, 5000, nil); err != nil {
		t.Fatal(err)
	}
	if err := store.Client().Set(ctx, "ticketPrice", "abc", 0).Err(); err != nil {
		t.Fatal(err)
	}
	if err := store.Client().Set(ctx, "participants", "{bad", 0).Err(); err != nil {
		t.Fatal(err)
	}

	loaded, price, participants, err := store.LoadBoard(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != domain.PoolSize {
		t.Errorf("expected full pool, got %d tickets", len(loaded))
	}
	if price != domain.DefaultTicketPrice {
		t.Errorf("expected default price, got %d", price)
	}
	if participants != nil {
		t.Errorf("expected no participants, got %v", participants)
	}
}
