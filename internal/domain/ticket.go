package domain

import "fmt"

// Status is the lifecycle state of a single raffle number.
type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusSelected  Status = "SELECTED"
	StatusReserved  Status = "RESERVED"
	StatusPaid      Status = "PAID"
)

// PoolSize is the fixed number of tickets on the board, ids "00" through "99".
const PoolSize = 100

// DefaultTicketPrice is applied when no price has been configured or persisted.
const DefaultTicketPrice = 5000

type Ticket struct {
	ID        string `json:"id"`
	Status    Status `json:"status"`
	OwnerName string `json:"ownerName,omitempty"`
}

// Sold reports whether the ticket counts toward sales totals.
func (t Ticket) Sold() bool {
	return t.Status == StatusReserved || t.Status == StatusPaid
}

func validStatus(s Status) bool {
	switch s {
	case StatusAvailable, StatusSelected, StatusReserved, StatusPaid:
		return true
	}
	return false
}

// NewPool returns the initial collection: 100 available tickets.
func NewPool() []Ticket {
	tickets := make([]Ticket, PoolSize)
	for i := range tickets {
		tickets[i] = Ticket{ID: fmt.Sprintf("%02d", i), Status: StatusAvailable}
	}
	return tickets
}
