package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Financials is the derived money view of the board, recomputed on demand.
type Financials struct {
	PaidTotal    int `json:"paid_total"`
	PendingTotal int `json:"pending_total"`
	GrandTotal   int `json:"grand_total"`
	SoldCount    int `json:"sold_count"`
}

// ComputeFinancials aggregates the ticket collection at the given price.
func ComputeFinancials(tickets []Ticket, price int) Financials {
	paid, reserved := 0, 0
	for _, t := range tickets {
		switch t.Status {
		case StatusPaid:
			paid++
		case StatusReserved:
			reserved++
		}
	}
	return Financials{
		PaidTotal:    paid * price,
		PendingTotal: reserved * price,
		GrandTotal:   (paid + reserved) * price,
		SoldCount:    paid + reserved,
	}
}

// BuyerCount is one entry of the snapshot's top-buyers ranking.
type BuyerCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Snapshot is the aggregated board view handed to the assistant. It carries
// no per-ticket data, only counts and totals.
type Snapshot struct {
	AvailableCount int          `json:"available_count"`
	ReservedCount  int          `json:"reserved_count"`
	PaidCount      int          `json:"paid_count"`
	Price          int          `json:"price"`
	TotalRaised    int          `json:"total_raised"`
	TotalPending   int          `json:"total_pending"`
	TopBuyers      []BuyerCount `json:"top_buyers"`
}

// BuildSnapshot condenses the board into the assistant context payload.
func BuildSnapshot(tickets []Ticket, price int) Snapshot {
	snap := Snapshot{Price: price}
	counts := make(map[string]int)
	for _, t := range tickets {
		switch t.Status {
		case StatusAvailable:
			snap.AvailableCount++
		case StatusReserved:
			snap.ReservedCount++
		case StatusPaid:
			snap.PaidCount++
		}
		if t.OwnerName != "" {
			counts[t.OwnerName]++
		}
	}
	snap.TotalRaised = snap.PaidCount * price
	snap.TotalPending = snap.ReservedCount * price

	buyers := make([]BuyerCount, 0, len(counts))
	for name, n := range counts {
		buyers = append(buyers, BuyerCount{Name: name, Count: n})
	}
	sort.Slice(buyers, func(i, j int) bool {
		if buyers[i].Count != buyers[j].Count {
			return buyers[i].Count > buyers[j].Count
		}
		return buyers[i].Name < buyers[j].Name
	})
	if len(buyers) > 5 {
		buyers = buyers[:5]
	}
	snap.TopBuyers = buyers
	return snap
}

type ownerGroup struct {
	ids    []string
	unpaid int
}

// BuildParticipantReport renders the buyer-grouped text summary shared with
// participants. It returns ErrNothingToExport when no ticket is sold.
func BuildParticipantReport(tickets []Ticket, price int) (string, error) {
	groups := make(map[string]*ownerGroup)
	for _, t := range tickets {
		if !t.Sold() || t.OwnerName == "" {
			continue
		}
		g := groups[t.OwnerName]
		if g == nil {
			g = &ownerGroup{}
			groups[t.OwnerName] = g
		}
		g.ids = append(g.ids, t.ID)
		if t.Status == StatusReserved {
			g.unpaid++
		}
	}
	if len(groups) == 0 {
		return "", ErrNothingToExport
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return collator.CompareString(names[i], names[j]) < 0
	})

	fin := ComputeFinancials(tickets, price)

	var sb strings.Builder
	sb.WriteString("RAFFLE STATUS\n")
	sb.WriteString("======================\n\n")
	for i, name := range names {
		g := groups[name]
		sort.Strings(g.ids)
		status := "fully settled"
		if g.unpaid > 0 {
			plural := ""
			if g.unpaid > 1 {
				plural = "s"
			}
			status = fmt.Sprintf("pending (%d unpaid ticket%s)", g.unpaid, plural)
		}
		fmt.Fprintf(&sb, "%s\n", strings.ToUpper(name))
		fmt.Fprintf(&sb, "  Numbers: %s\n", strings.Join(g.ids, " - "))
		fmt.Fprintf(&sb, "  Status: %s\n", status)
		if i < len(names)-1 {
			sb.WriteString("----------------------\n")
		}
	}
	sb.WriteString("\n======================\n")
	fmt.Fprintf(&sb, "Sold: %d/%d\n", fin.SoldCount, len(tickets))
	fmt.Fprintf(&sb, "Collected: $%d\n", fin.PaidTotal)
	return sb.String(), nil
}
