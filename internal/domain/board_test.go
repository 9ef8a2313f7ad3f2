package domain

import (
	"encoding/json"
	"testing"
)

// checkOwnerInvariant verifies that a ticket carries an owner exactly when
// it is reserved or paid.
func checkOwnerInvariant(t *testing.T, b *Board) {
	t.Helper()
	for _, tk := range b.Tickets() {
		hasOwner := tk.OwnerName != ""
		if tk.Sold() && !hasOwner {
			t.Errorf("ticket %s is %s but has no owner", tk.ID, tk.Status)
		}
		if !tk.Sold() && hasOwner {
			t.Errorf("ticket %s is %s but owned by %q", tk.ID, tk.Status, tk.OwnerName)
		}
	}
}

func statusCounts(b *Board) map[Status]int {
	counts := make(map[Status]int)
	for _, tk := range b.Tickets() {
		counts[tk.Status]++
	}
	return counts
}

func ticketByID(t *testing.T, b *Board, id string) Ticket {
	t.Helper()
	for _, tk := range b.Tickets() {
		if tk.ID == id {
			return tk
		}
	}
	t.Fatalf("ticket %s not found", id)
	return Ticket{}
}

func TestNewBoard(t *testing.T) {
	b := NewBoard(5000)

	tickets := b.Tickets()
	if len(tickets) != PoolSize {
		t.Fatalf("expected %d tickets, got %d", PoolSize, len(tickets))
	}
	if tickets[0].ID != "00" || tickets[99].ID != "99" {
		t.Errorf("expected ids 00..99, got %s..%s", tickets[0].ID, tickets[99].ID)
	}
	for _, tk := range tickets {
		if tk.Status != StatusAvailable || tk.OwnerName != "" {
			t.Fatalf("ticket %s not initialized as available: %+v", tk.ID, tk)
		}
	}
	if b.Price() != 5000 {
		t.Errorf("expected price 5000, got %d", b.Price())
	}
}

func TestToggleDefaultMode(t *testing.T) {
	b := NewBoard(5000)

	if !b.Toggle("05") {
		t.Fatal("expected toggle to change an available ticket")
	}
	if got := ticketByID(t, b, "05").Status; got != StatusSelected {
		t.Fatalf("expected SELECTED, got %s", got)
	}

	// Toggling again cancels the selection.
	if !b.Toggle("05") {
		t.Fatal("expected second toggle to revert the ticket")
	}
	if got := ticketByID(t, b, "05").Status; got != StatusAvailable {
		t.Fatalf("expected AVAILABLE, got %s", got)
	}

	t.Run("sold tickets are not toggleable", func(t *testing.T) {
		b.Toggle("07")
		if _, err := b.ConfirmSale("Rosa", true); err != nil {
			t.Fatal(err)
		}
		if b.Toggle("07") {
			t.Error("expected toggle on a paid ticket to be a no-op")
		}
		if got := ticketByID(t, b, "07").Status; got != StatusPaid {
			t.Errorf("expected PAID, got %s", got)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		if b.Toggle("xx") {
			t.Error("expected toggle on unknown id to be a no-op")
		}
	})

	checkOwnerInvariant(t, b)
}

func TestConfirmSale(t *testing.T) {
	b := NewBoard(5000)
	b.Toggle("05")
	b.Toggle("17")

	sale, err := b.ConfirmSale("Carlos", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(sale.TicketIDs) != 2 {
		t.Fatalf("expected 2 tickets in sale, got %d", len(sale.TicketIDs))
	}
	for _, id := range []string{"05", "17"} {
		tk := ticketByID(t, b, id)
		if tk.Status != StatusReserved || tk.OwnerName != "Carlos" {
			t.Errorf("ticket %s: expected RESERVED/Carlos, got %s/%q", id, tk.Status, tk.OwnerName)
		}
	}

	fin := ComputeFinancials(b.Tickets(), b.Price())
	if fin.PendingTotal != 2*5000 || fin.PaidTotal != 0 {
		t.Errorf("expected pending=10000 paid=0, got pending=%d paid=%d", fin.PendingTotal, fin.PaidTotal)
	}

	if got := b.Participants(); len(got) != 1 || got[0] != "Carlos" {
		t.Errorf("expected registry [Carlos], got %v", got)
	}
	checkOwnerInvariant(t, b)

	t.Run("blank name rejected", func(t *testing.T) {
		b.Toggle("20")
		if _, err := b.ConfirmSale("   ", true); err != ErrInvalidInput {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
		if got := ticketByID(t, b, "20").Status; got != StatusSelected {
			t.Errorf("expected selection untouched after rejection, got %s", got)
		}
		b.ClearSelection()
	})

	t.Run("name is trimmed", func(t *testing.T) {
		b.Toggle("21")
		if _, err := b.ConfirmSale("  Marta  ", true); err != nil {
			t.Fatal(err)
		}
		if got := ticketByID(t, b, "21").OwnerName; got != "Marta" {
			t.Errorf("expected trimmed owner Marta, got %q", got)
		}
	})

	t.Run("empty selection still registers the buyer", func(t *testing.T) {
		sale, err := b.ConfirmSale("Elena", false)
		if err != nil {
			t.Fatal(err)
		}
		if len(sale.TicketIDs) != 0 {
			t.Errorf("expected no tickets sold, got %v", sale.TicketIDs)
		}
		found := false
		for _, p := range b.Participants() {
			if p == "Elena" {
				found = true
			}
		}
		if !found {
			t.Error("expected Elena in the registry")
		}
	})
}

func TestRegistryDedupAndRevokeCase(t *testing.T) {
	b := NewBoard(5000)

	b.Toggle("01")
	if _, err := b.ConfirmSale("Ana", false); err != nil {
		t.Fatal(err)
	}
	b.Toggle("02")
	if _, err := b.ConfirmSale("ANA", false); err != nil {
		t.Fatal(err)
	}

	// Registry dedups case-insensitively: one entry, the first spelling.
	if got := b.Participants(); len(got) != 1 || got[0] != "Ana" {
		t.Fatalf("expected registry [Ana], got %v", got)
	}

	// Revocation matches the stored owner exactly: ticket 01 belongs to
	// "Ana", ticket 02 to "ANA".
	if n := b.RevokeAllFromOwner("ana"); n != 0 {
		t.Errorf("expected lowercase revoke to match nothing, got %d", n)
	}
	if n := b.RevokeAllFromOwner("ANA"); n != 1 {
		t.Errorf("expected exactly ticket 02 revoked, got %d", n)
	}
	if got := ticketByID(t, b, "01").OwnerName; got != "Ana" {
		t.Errorf("expected ticket 01 still owned by Ana, got %q", got)
	}

	// The registry keeps the name even with every ticket revoked.
	b.RevokeAllFromOwner("Ana")
	if got := b.Participants(); len(got) != 1 {
		t.Errorf("expected registry to survive revocation, got %v", got)
	}
	checkOwnerInvariant(t, b)
}

func TestRegistryOrdering(t *testing.T) {
	b := NewBoard(5000)
	for _, name := range []string{"carlos", "Ana", "Beatriz"} {
		if _, err := b.ConfirmSale(name, false); err != nil {
			t.Fatal(err)
		}
	}
	got := b.Participants()
	want := []string{"Ana", "Beatriz", "carlos"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected registry %v, got %v", want, got)
		}
	}
}

func TestSwap(t *testing.T) {
	b := NewBoard(5000)
	b.Toggle("05")
	if _, err := b.ConfirmSale("Carlos", false); err != nil {
		t.Fatal(err)
	}

	before := statusCounts(b)

	b.StartSwap("05")
	if src, ok := b.Swapping(); !ok || src != "05" {
		t.Fatalf("expected swap mode with source 05, got %q %v", src, ok)
	}

	if !b.Toggle("06") {
		t.Fatal("expected swap onto an available ticket to succeed")
	}
	if tk := ticketByID(t, b, "06"); tk.Status != StatusReserved || tk.OwnerName != "Carlos" {
		t.Errorf("expected 06 RESERVED/Carlos, got %s/%q", tk.Status, tk.OwnerName)
	}
	if tk := ticketByID(t, b, "05"); tk.Status != StatusAvailable || tk.OwnerName != "" {
		t.Errorf("expected 05 released, got %s/%q", tk.Status, tk.OwnerName)
	}
	if _, ok := b.Swapping(); ok {
		t.Error("expected swap mode cleared after completion")
	}

	// A swap moves statuses around without changing their totals.
	after := statusCounts(b)
	for _, s := range []Status{StatusAvailable, StatusSelected, StatusReserved, StatusPaid} {
		if before[s] != after[s] {
			t.Errorf("status %s count changed: %d -> %d", s, before[s], after[s])
		}
	}
	checkOwnerInvariant(t, b)

	t.Run("occupied destination is rejected", func(t *testing.T) {
		b.Toggle("10")
		if _, err := b.ConfirmSale("Rosa", true); err != nil {
			t.Fatal(err)
		}
		b.StartSwap("06")
		if b.Toggle("10") {
			t.Error("expected swap onto a paid ticket to be a no-op")
		}
		if _, ok := b.Swapping(); !ok {
			t.Error("expected swap mode to stay active after a rejected destination")
		}
		b.ExitMode()
	})
}

func TestBulkAdd(t *testing.T) {
	b := NewBoard(5000)
	b.Toggle("30")
	if _, err := b.ConfirmSale("Pedro", false); err != nil {
		t.Fatal(err)
	}

	b.StartBulkAdd("Diana")
	if owner, ok := b.BulkAdding(); !ok || owner != "Diana" {
		t.Fatalf("expected bulk-add mode for Diana, got %q %v", owner, ok)
	}

	b.Toggle("40")
	b.Toggle("41")
	for _, id := range []string{"40", "41"} {
		tk := ticketByID(t, b, id)
		if tk.Status != StatusReserved || tk.OwnerName != "Diana" {
			t.Errorf("ticket %s: expected RESERVED/Diana, got %s/%q", id, tk.Status, tk.OwnerName)
		}
	}

	// Re-toggling one of Diana's tickets removes it from the batch.
	b.Toggle("41")
	if tk := ticketByID(t, b, "41"); tk.Status != StatusAvailable || tk.OwnerName != "" {
		t.Errorf("expected 41 released, got %s/%q", tk.Status, tk.OwnerName)
	}

	// Another owner's ticket is untouchable in bulk-add mode.
	if b.Toggle("30") {
		t.Error("expected toggle on Pedro's ticket to be a no-op")
	}
	if tk := ticketByID(t, b, "30"); tk.OwnerName != "Pedro" {
		t.Errorf("expected 30 still owned by Pedro, got %q", tk.OwnerName)
	}

	// Leaving the mode keeps the already-applied reservations.
	b.ClearSelection()
	if _, ok := b.BulkAdding(); ok {
		t.Error("expected bulk-add mode cleared")
	}
	if tk := ticketByID(t, b, "40"); tk.Status != StatusReserved {
		t.Errorf("expected 40 still reserved after exit, got %s", tk.Status)
	}
	checkOwnerInvariant(t, b)
}

func TestModeExclusivity(t *testing.T) {
	b := NewBoard(5000)

	b.Toggle("11")
	b.StartSwap("50")
	if got := ticketByID(t, b, "11").Status; got != StatusAvailable {
		t.Errorf("expected entering swap mode to clear the selection, got %s", got)
	}

	b.StartBulkAdd("Luisa")
	if _, ok := b.Swapping(); ok {
		t.Error("expected swap mode dropped when bulk-add starts")
	}
	if _, ok := b.BulkAdding(); !ok {
		t.Error("expected bulk-add mode active")
	}

	b.StartSwap("51")
	if _, ok := b.BulkAdding(); ok {
		t.Error("expected bulk-add mode dropped when swap starts")
	}

	b.ExitMode()
	if _, ok := b.Swapping(); ok {
		t.Error("expected idle after explicit exit")
	}
}

func TestTogglePayment(t *testing.T) {
	b := NewBoard(5000)
	b.Toggle("60")
	if _, err := b.ConfirmSale("Mario", false); err != nil {
		t.Fatal(err)
	}

	if !b.TogglePayment("60") {
		t.Fatal("expected reserved -> paid")
	}
	if got := ticketByID(t, b, "60").Status; got != StatusPaid {
		t.Fatalf("expected PAID, got %s", got)
	}
	if !b.TogglePayment("60") {
		t.Fatal("expected paid -> reserved")
	}
	if got := ticketByID(t, b, "60").Status; got != StatusReserved {
		t.Fatalf("expected RESERVED, got %s", got)
	}

	if b.TogglePayment("61") {
		t.Error("expected payment toggle on an available ticket to be a no-op")
	}
	checkOwnerInvariant(t, b)
}

func TestRevoke(t *testing.T) {
	b := NewBoard(5000)
	b.Toggle("70")
	if _, err := b.ConfirmSale("Nora", true); err != nil {
		t.Fatal(err)
	}

	b.Revoke("70")
	if tk := ticketByID(t, b, "70"); tk.Status != StatusAvailable || tk.OwnerName != "" {
		t.Fatalf("expected 70 released, got %s/%q", tk.Status, tk.OwnerName)
	}

	// Revoking again is harmless.
	b.Revoke("70")
	if got := ticketByID(t, b, "70").Status; got != StatusAvailable {
		t.Errorf("expected revoke to be idempotent, got %s", got)
	}
	checkOwnerInvariant(t, b)
}

func TestResetAll(t *testing.T) {
	b := NewBoard(5000)
	b.Toggle("05")
	b.Toggle("17")
	if _, err := b.ConfirmSale("Carlos", true); err != nil {
		t.Fatal(err)
	}

	b.ResetAll()

	counts := statusCounts(b)
	if counts[StatusAvailable] != PoolSize {
		t.Fatalf("expected all %d tickets available after reset, got %v", PoolSize, counts)
	}
	// The registry survives a board reset.
	if got := b.Participants(); len(got) != 1 || got[0] != "Carlos" {
		t.Errorf("expected registry untouched by reset, got %v", got)
	}
	checkOwnerInvariant(t, b)
}

func TestReplaceAll(t *testing.T) {
	b := NewBoard(5000)

	imported := []Ticket{
		{ID: "00", Status: StatusPaid, OwnerName: "Ana"},
		{ID: "01", Status: StatusAvailable},
	}
	data, err := json.Marshal(imported)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.ReplaceAll(data); err != nil {
		t.Fatal(err)
	}
	// The replacement is wholesale: no merge with the previous pool.
	if got := len(b.Tickets()); got != 2 {
		t.Fatalf("expected 2 tickets after import, got %d", got)
	}
	if tk := ticketByID(t, b, "00"); tk.Status != StatusPaid || tk.OwnerName != "Ana" {
		t.Errorf("expected imported ticket preserved, got %+v", tk)
	}

	for name, payload := range map[string]string{
		"not json":       "{",
		"not an array":   `{"id":"00"}`,
		"null":           "null",
		"missing id":     `[{"status":"AVAILABLE"}]`,
		"unknown status": `[{"id":"00","status":"GONE"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			if err := b.ReplaceAll([]byte(payload)); err != ErrInvalidImport {
				t.Errorf("expected ErrInvalidImport, got %v", err)
			}
		})
	}

	// Rejected imports leave the board untouched.
	if got := len(b.Tickets()); got != 2 {
		t.Errorf("expected board unchanged after rejected imports, got %d tickets", got)
	}
}

func TestExportRoundTrip(t *testing.T) {
	b := NewBoard(5000)
	b.Toggle("05")
	if _, err := b.ConfirmSale("Carlos", false); err != nil {
		t.Fatal(err)
	}

	data, err := b.Export()
	if err != nil {
		t.Fatal(err)
	}

	restored := NewBoard(5000)
	if err := restored.ReplaceAll(data); err != nil {
		t.Fatal(err)
	}
	if tk := ticketByID(t, restored, "05"); tk.Status != StatusReserved || tk.OwnerName != "Carlos" {
		t.Errorf("expected exported state restorable, got %+v", tk)
	}
}

func TestSetPrice(t *testing.T) {
	b := NewBoard(5000)
	b.SetPrice(7000)
	if b.Price() != 7000 {
		t.Errorf("expected 7000, got %d", b.Price())
	}
	b.SetPrice(-10)
	if b.Price() != 0 {
		t.Errorf("expected negative price clamped to 0, got %d", b.Price())
	}
}
