package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/camarena/rifamaster/internal/assistant"
	"github.com/camarena/rifamaster/internal/config"
	"github.com/camarena/rifamaster/internal/domain"
	"github.com/camarena/rifamaster/internal/idempotency"
	"github.com/camarena/rifamaster/internal/observability"
)

const maxImportSize = 1 << 20

// BoardStore persists the board between sessions. Saves are best-effort.
type BoardStore interface {
	SaveBoard(ctx context.Context, tickets []domain.Ticket, price int, participants []string) error
}

// SaleLedger durably records confirmed sales and queues their events.
type SaleLedger interface {
	RecordSale(ctx context.Context, sale domain.Sale, payload []byte) error
}

// AuditLog appends operation entries.
type AuditLog interface {
	LogAction(ctx context.Context, action string, data map[string]interface{}) error
}

// EventPublisher emits board events for external subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

// Assistant answers free-text questions about the board snapshot.
type Assistant interface {
	Ask(ctx context.Context, snap domain.Snapshot, question string) string
}

// Handlers owns the board. All mutations run under the mutex; adapters are
// optional and every adapter failure is logged and swallowed.
type Handlers struct {
	cfg    *config.Config
	logger observability.Logger

	mu    sync.Mutex
	board *domain.Board

	store  BoardStore
	ledger SaleLedger
	audit  AuditLog
	events EventPublisher
	ai     Assistant
	idemp  *idempotency.Idempotency
}

func NewHandlers(cfg *config.Config, board *domain.Board, store BoardStore, ledger SaleLedger, audit AuditLog, events EventPublisher, ai Assistant, idemp *idempotency.Idempotency, logger observability.Logger) *Handlers {
	return &Handlers{
		cfg:    cfg,
		logger: logger,
		board:  board,
		store:  store,
		ledger: ledger,
		audit:  audit,
		events: events,
		ai:     ai,
		idemp:  idemp,
	}
}

// persist writes the board to the store. Failures are counted and logged,
// never surfaced; the in-memory board stays authoritative.
func (h *Handlers) persist(ctx context.Context) {
	if h.store == nil {
		return
	}
	err := h.store.SaveBoard(ctx, h.board.Tickets(), h.board.Price(), h.board.Participants())
	if err != nil {
		observability.PersistFailures.Inc()
		h.logger.Error("failed to persist board", err)
	}
	observability.TicketsSold.Set(float64(domain.ComputeFinancials(h.board.Tickets(), h.board.Price()).SoldCount))
}

func (h *Handlers) auditAction(ctx context.Context, action string, data map[string]interface{}) {
	if h.audit == nil {
		return
	}
	if err := h.audit.LogAction(ctx, action, data); err != nil {
		h.logger.Error("audit write failed", err)
	}
}

func (h *Handlers) publishEvent(ctx context.Context, eventType string, payload interface{}) {
	if h.events == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := amqp.Publishing{
		MessageId:   uuid.New().String(),
		ContentType: "application/json",
		Body:        body,
	}
	if err := h.events.Publish(ctx, eventType, msg); err != nil {
		h.logger.Error("event publish failed", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type ticketModeView struct {
	Kind       string `json:"kind"`
	SwapSource string `json:"swap_source,omitempty"`
	BulkOwner  string `json:"bulk_owner,omitempty"`
}

func (h *Handlers) modeView() ticketModeView {
	if id, ok := h.board.Swapping(); ok {
		return ticketModeView{Kind: "swapping", SwapSource: id}
	}
	if owner, ok := h.board.BulkAdding(); ok {
		return ticketModeView{Kind: "bulk_adding", BulkOwner: owner}
	}
	return ticketModeView{Kind: "idle"}
}

func (h *Handlers) GetBoard(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	tickets := h.board.Tickets()
	selected := 0
	available := 0
	for _, t := range tickets {
		switch t.Status {
		case domain.StatusSelected:
			selected++
		case domain.StatusAvailable:
			available++
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tickets":         tickets,
		"price":           h.board.Price(),
		"financials":      domain.ComputeFinancials(tickets, h.board.Price()),
		"available_count": available,
		"selected_count":  selected,
		"mode":            h.modeView(),
	})
}

func (h *Handlers) ToggleTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.mu.Lock()
	defer h.mu.Unlock()
	changed := h.board.Toggle(id)
	if changed {
		observability.BoardOpsTotal.WithLabelValues("toggle").Inc()
		h.persist(r.Context())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"changed": changed,
		"mode":    h.modeView(),
	})
}

func (h *Handlers) ConfirmSale(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	if existing, err := h.idemp.Get(r.Context(), key); err == nil && existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	var req struct {
		BuyerName string `json:"buyer_name"`
		Paid      bool   `json:"paid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	sale, err := h.board.ConfirmSale(req.BuyerName, req.Paid)
	if err != nil {
		h.mu.Unlock()
		http.Error(w, "buyer name is required", http.StatusBadRequest)
		return
	}
	observability.BoardOpsTotal.WithLabelValues("confirm_sale").Inc()
	h.persist(r.Context())
	h.mu.Unlock()

	status := domain.StatusReserved
	if sale.Paid {
		status = domain.StatusPaid
	}
	resp := map[string]interface{}{
		"sale_id":    sale.ID,
		"buyer":      sale.Buyer,
		"status":     status,
		"ticket_ids": sale.TicketIDs,
		"unit_price": sale.UnitPrice,
	}
	data, _ := json.Marshal(resp)

	if len(sale.TicketIDs) > 0 {
		payload, _ := json.Marshal(map[string]interface{}{
			"sale_id":    sale.ID,
			"buyer":      sale.Buyer,
			"paid":       sale.Paid,
			"ticket_ids": sale.TicketIDs,
		})
		if h.ledger != nil {
			if err := h.ledger.RecordSale(r.Context(), sale, payload); err != nil {
				h.logger.Error("ledger write failed", err)
			}
		} else {
			// No outbox without a ledger; publish directly.
			h.publishEvent(r.Context(), "sale.confirmed", json.RawMessage(payload))
		}
		h.auditAction(r.Context(), "sale.confirmed", map[string]interface{}{
			"sale_id":    sale.ID,
			"buyer":      sale.Buyer,
			"paid":       sale.Paid,
			"ticket_ids": sale.TicketIDs,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	w.Write(data)

	h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusCreated, Result: data})
}

func (h *Handlers) ClearSelection(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.board.ClearSelection()
	observability.BoardOpsTotal.WithLabelValues("clear_selection").Inc()
	h.persist(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) TogglePayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.mu.Lock()
	changed := h.board.TogglePayment(id)
	if changed {
		observability.BoardOpsTotal.WithLabelValues("toggle_payment").Inc()
		h.persist(r.Context())
	}
	h.mu.Unlock()

	if changed {
		h.auditAction(r.Context(), "payment.toggled", map[string]interface{}{"ticket_id": id})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"changed": changed})
}

func (h *Handlers) RevokeTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.mu.Lock()
	changed := h.board.Revoke(id)
	if changed {
		observability.BoardOpsTotal.WithLabelValues("revoke").Inc()
		h.persist(r.Context())
	}
	h.mu.Unlock()

	if changed {
		h.auditAction(r.Context(), "ticket.revoked", map[string]interface{}{"ticket_id": id})
		h.publishEvent(r.Context(), "ticket.revoked", map[string]interface{}{"ticket_id": id})
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) RevokeOwner(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	h.mu.Lock()
	n := h.board.RevokeAllFromOwner(name)
	if n > 0 {
		observability.BoardOpsTotal.WithLabelValues("revoke_owner").Inc()
		h.persist(r.Context())
	}
	h.mu.Unlock()

	if n > 0 {
		h.auditAction(r.Context(), "owner.revoked", map[string]interface{}{"owner": name, "count": n})
		h.publishEvent(r.Context(), "ticket.revoked", map[string]interface{}{"owner": name, "count": n})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"revoked": n})
}

func (h *Handlers) StartSwap(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.mu.Lock()
	defer h.mu.Unlock()
	h.board.StartSwap(id)
	observability.BoardOpsTotal.WithLabelValues("start_swap").Inc()
	writeJSON(w, http.StatusOK, map[string]interface{}{"mode": h.modeView()})
}

func (h *Handlers) StartBulkAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerName string `json:"owner_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	owner := strings.TrimSpace(req.OwnerName)
	if owner == "" {
		http.Error(w, "owner name is required", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.board.StartBulkAdd(owner)
	observability.BoardOpsTotal.WithLabelValues("start_bulk_add").Inc()
	writeJSON(w, http.StatusOK, map[string]interface{}{"mode": h.modeView()})
}

func (h *Handlers) ExitMode(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.board.ExitMode()
	writeJSON(w, http.StatusOK, map[string]interface{}{"mode": h.modeView()})
}

func (h *Handlers) ResetBoard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirm string `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Confirm != "RESET" {
		http.Error(w, `reset requires {"confirm": "RESET"}`, http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	h.board.ResetAll()
	observability.BoardOpsTotal.WithLabelValues("reset").Inc()
	h.persist(r.Context())
	h.mu.Unlock()

	h.auditAction(r.Context(), "board.reset", nil)
	h.publishEvent(r.Context(), "board.reset", map[string]interface{}{})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ImportBoard(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	err = h.board.ReplaceAll(data)
	if err != nil {
		h.mu.Unlock()
		if errors.Is(err, domain.ErrInvalidImport) {
			http.Error(w, "invalid data", http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	observability.BoardOpsTotal.WithLabelValues("import").Inc()
	h.persist(r.Context())
	h.mu.Unlock()

	h.auditAction(r.Context(), "board.imported", nil)
	h.publishEvent(r.Context(), "board.imported", map[string]interface{}{})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ExportBoard(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	data, err := h.board.Export()
	h.mu.Unlock()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (h *Handlers) Report(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	text, err := domain.BuildParticipantReport(h.board.Tickets(), h.board.Price())
	h.mu.Unlock()
	if errors.Is(err, domain.ErrNothingToExport) {
		http.Error(w, "no sales to export", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(text))
}

func (h *Handlers) Participants(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"participants": h.board.Participants()})
}

func (h *Handlers) SetPrice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Price int `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.board.SetPrice(req.Price)
	observability.BoardOpsTotal.WithLabelValues("set_price").Inc()
	h.persist(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{"price": h.board.Price()})
}

func (h *Handlers) AskAssistant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	snap := domain.BuildSnapshot(h.board.Tickets(), h.board.Price())
	h.mu.Unlock()

	answer := assistant.Fallback
	if h.ai != nil {
		answer = h.ai.Ask(r.Context(), snap, req.Question)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"answer": answer})
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
