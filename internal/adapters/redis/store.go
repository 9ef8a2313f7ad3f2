package redis

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/camarena/rifamaster/internal/domain"
)

// Persisted-state keys. Values are JSON except the price, stored as its
// decimal string.
const (
	keyTickets      = "tickets"
	keyPrice        = "ticketPrice"
	keyParticipants = "participants"
)

// Store persists the board as string-keyed JSON values. Writes are
// best-effort; the caller logs failures and moves on.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Client() *redis.Client {
	return s.client
}

// SaveBoard writes the full persisted state in one pipeline round trip.
func (s *Store) SaveBoard(ctx context.Context, tickets []domain.Ticket, price int, participants []string) error {
	ticketsJSON, err := json.Marshal(tickets)
	if err != nil {
		return err
	}
	participantsJSON, err := json.Marshal(participants)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, keyTickets, ticketsJSON, 0)
	pipe.Set(ctx, keyPrice, strconv.Itoa(price), 0)
	pipe.Set(ctx, keyParticipants, participantsJSON, 0)
	_, err = pipe.Exec(ctx)
	return err
}

// LoadBoard reads the persisted state. A missing tickets key returns
// domain.ErrNotFound; corrupt values surface their decode error so the
// caller can fall back to a fresh board.
func (s *Store) LoadBoard(ctx context.Context) ([]domain.Ticket, int, []string, error) {
	raw, err := s.client.Get(ctx, keyTickets).Bytes()
	if err == redis.Nil {
		return nil, 0, nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, 0, nil, err
	}
	var tickets []domain.Ticket
	if err := json.Unmarshal(raw, &tickets); err != nil {
		return nil, 0, nil, err
	}

	price := domain.DefaultTicketPrice
	if val, err := s.client.Get(ctx, keyPrice).Result(); err == nil {
		if n, err := strconv.Atoi(val); err == nil {
			price = n
		}
	}

	var participants []string
	if raw, err := s.client.Get(ctx, keyParticipants).Bytes(); err == nil {
		// A corrupt registry only loses autocomplete history.
		_ = json.Unmarshal(raw, &participants)
	}

	return tickets, price, participants, nil
}
