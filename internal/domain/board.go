package domain

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// collator orders buyer names the way the registry presents them:
// alphabetical regardless of case, accents folded in.
var collator = collate.New(language.Und, collate.Loose)

type modeKind int

const (
	modeIdle modeKind = iota
	modeSwapping
	modeBulkAdding
)

// interactionMode is the single transient-intent field of the board. Swap
// and bulk-add are mutually exclusive; entering either drops the other.
type interactionMode struct {
	kind   modeKind
	swapID string
	owner  string
}

// Sale records one confirmed sale for the ledger, audit log and event feed.
type Sale struct {
	ID        uuid.UUID `json:"id"`
	Buyer     string    `json:"buyer"`
	Paid      bool      `json:"paid"`
	TicketIDs []string  `json:"ticket_ids"`
	UnitPrice int       `json:"unit_price"`
	CreatedAt time.Time `json:"created_at"`
}

// Board owns the ticket pool, the all-time participant registry, the ticket
// price and the current interaction mode. It is not safe for concurrent use;
// callers serialize access (single-writer discipline).
type Board struct {
	tickets      []Ticket
	participants []string
	price        int
	mode         interactionMode
}

// NewBoard returns a board with 100 available tickets and an empty registry.
func NewBoard(price int) *Board {
	if price < 0 {
		price = 0
	}
	return &Board{tickets: NewPool(), price: price}
}

// Restore rebuilds a board from persisted state. A nil or empty ticket slice
// falls back to a fresh pool.
func Restore(tickets []Ticket, participants []string, price int) *Board {
	b := NewBoard(price)
	if len(tickets) > 0 {
		b.tickets = tickets
	}
	if len(participants) > 0 {
		b.participants = participants
	}
	return b
}

// Tickets returns a copy of the ticket collection in board order.
func (b *Board) Tickets() []Ticket {
	out := make([]Ticket, len(b.tickets))
	copy(out, b.tickets)
	return out
}

// Participants returns a copy of the registry, alphabetically ordered.
func (b *Board) Participants() []string {
	out := make([]string, len(b.participants))
	copy(out, b.participants)
	return out
}

func (b *Board) Price() int { return b.price }

// SetPrice updates the uniform ticket price. Negative values clamp to zero.
func (b *Board) SetPrice(price int) {
	if price < 0 {
		price = 0
	}
	b.price = price
}

// Swapping returns the swap source id when swap mode is active.
func (b *Board) Swapping() (string, bool) {
	return b.mode.swapID, b.mode.kind == modeSwapping
}

// BulkAdding returns the target owner name when bulk-add mode is active.
func (b *Board) BulkAdding() (string, bool) {
	return b.mode.owner, b.mode.kind == modeBulkAdding
}

func (b *Board) find(id string) *Ticket {
	for i := range b.tickets {
		if b.tickets[i].ID == id {
			return &b.tickets[i]
		}
	}
	return nil
}

// Toggle is the single entry point for grid interaction. Its meaning depends
// on the active mode; it reports whether any ticket changed.
func (b *Board) Toggle(id string) bool {
	t := b.find(id)
	if t == nil {
		return false
	}

	switch b.mode.kind {
	case modeSwapping:
		// Only an available destination accepts the swap.
		if t.Status != StatusAvailable {
			return false
		}
		src := b.find(b.mode.swapID)
		if src == nil {
			b.mode = interactionMode{}
			return false
		}
		t.Status, t.OwnerName = src.Status, src.OwnerName
		src.Status, src.OwnerName = StatusAvailable, ""
		b.mode = interactionMode{}
		return true

	case modeBulkAdding:
		if t.Status == StatusAvailable {
			t.Status, t.OwnerName = StatusReserved, b.mode.owner
			return true
		}
		// Re-toggling one of the target owner's tickets removes it again.
		if t.OwnerName == b.mode.owner {
			t.Status, t.OwnerName = StatusAvailable, ""
			return true
		}
		return false

	default:
		switch t.Status {
		case StatusAvailable:
			t.Status = StatusSelected
			return true
		case StatusSelected:
			t.Status = StatusAvailable
			return true
		}
		return false
	}
}

// ConfirmSale converts every selected ticket to RESERVED (or PAID) under the
// trimmed buyer name, records the buyer in the registry and returns the sale.
// A blank name rejects the whole operation with ErrInvalidInput.
func (b *Board) ConfirmSale(name string, paid bool) (Sale, error) {
	buyer := strings.TrimSpace(name)
	if buyer == "" {
		return Sale{}, ErrInvalidInput
	}

	status := StatusReserved
	if paid {
		status = StatusPaid
	}
	var ids []string
	for i := range b.tickets {
		if b.tickets[i].Status == StatusSelected {
			b.tickets[i].Status = status
			b.tickets[i].OwnerName = buyer
			ids = append(ids, b.tickets[i].ID)
		}
	}

	b.rememberParticipant(buyer)
	b.mode = interactionMode{}

	return Sale{
		ID:        uuid.New(),
		Buyer:     buyer,
		Paid:      paid,
		TicketIDs: ids,
		UnitPrice: b.price,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// rememberParticipant inserts the name unless an entry already matches it
// case-insensitively, then re-sorts the registry.
func (b *Board) rememberParticipant(name string) {
	for _, p := range b.participants {
		if strings.EqualFold(p, name) {
			return
		}
	}
	b.participants = append(b.participants, name)
	sort.Slice(b.participants, func(i, j int) bool {
		return collator.CompareString(b.participants[i], b.participants[j]) < 0
	})
}

// ClearSelection reverts every selected ticket to available and exits
// bulk-add mode. Tickets already reserved through bulk-add keep their owner;
// an active swap source is untouched.
func (b *Board) ClearSelection() {
	for i := range b.tickets {
		if b.tickets[i].Status == StatusSelected {
			b.tickets[i].Status = StatusAvailable
			b.tickets[i].OwnerName = ""
		}
	}
	if b.mode.kind == modeBulkAdding {
		b.mode = interactionMode{}
	}
}

// TogglePayment flips a single ticket between RESERVED and PAID.
func (b *Board) TogglePayment(id string) bool {
	t := b.find(id)
	if t == nil {
		return false
	}
	switch t.Status {
	case StatusReserved:
		t.Status = StatusPaid
		return true
	case StatusPaid:
		t.Status = StatusReserved
		return true
	}
	return false
}

// Revoke forces a ticket back to available regardless of its status.
func (b *Board) Revoke(id string) bool {
	t := b.find(id)
	if t == nil {
		return false
	}
	t.Status, t.OwnerName = StatusAvailable, ""
	return true
}

// RevokeAllFromOwner revokes every ticket whose owner matches name exactly.
// The match is case-sensitive, unlike the registry dedup; callers pass the
// name as stored on the tickets.
func (b *Board) RevokeAllFromOwner(name string) int {
	n := 0
	for i := range b.tickets {
		if b.tickets[i].OwnerName == name {
			b.tickets[i].Status = StatusAvailable
			b.tickets[i].OwnerName = ""
			n++
		}
	}
	return n
}

// StartSwap enters swap mode with id as the source, clearing any current
// selection first.
func (b *Board) StartSwap(id string) {
	b.ClearSelection()
	b.mode = interactionMode{kind: modeSwapping, swapID: id}
}

// StartBulkAdd enters bulk-add mode targeting the owner name, clearing any
// current selection first.
func (b *Board) StartBulkAdd(name string) {
	b.ClearSelection()
	b.mode = interactionMode{kind: modeBulkAdding, owner: name}
}

// ExitMode returns the board to idle without touching any ticket.
func (b *Board) ExitMode() {
	b.mode = interactionMode{}
}

// ResetAll reinitializes the full pool to available. The participant
// registry survives; only the two-step confirmation at the API boundary
// guards this, there is no undo.
func (b *Board) ResetAll() {
	b.tickets = NewPool()
	b.mode = interactionMode{}
}

// ReplaceAll swaps in an imported ticket collection wholesale. The payload
// must be a JSON array of ticket records with non-empty ids and known
// statuses; id completeness and uniqueness are not checked, matching the
// permissive import this replaces.
func (b *Board) ReplaceAll(data []byte) error {
	var tickets []Ticket
	if err := json.Unmarshal(data, &tickets); err != nil {
		return ErrInvalidImport
	}
	if tickets == nil {
		return ErrInvalidImport
	}
	for _, t := range tickets {
		if t.ID == "" || !validStatus(t.Status) {
			return ErrInvalidImport
		}
	}
	b.tickets = tickets
	b.mode = interactionMode{}
	return nil
}

// Export returns the raw serialized ticket array, the backup file format.
func (b *Board) Export() ([]byte, error) {
	return json.Marshal(b.tickets)
}
