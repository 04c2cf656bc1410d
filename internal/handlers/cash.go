package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/comandas/api/internal/domain"
	"github.com/comandas/api/internal/platform/httpx"
	"github.com/comandas/api/internal/services"
)

// CashHandlers exposes the drawer movement and close-of-day endpoints.
type CashHandlers struct {
	cash services.CashService
}

// NewCashHandlers constructs a cash handler set.
func NewCashHandlers(svc services.CashService) *CashHandlers {
	return &CashHandlers{cash: svc}
}

// Routes registers the cash endpoints beneath /cash.
func (h *CashHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/egresses", h.registerEgress)
	r.Get("/report", h.dailyReport)
	r.Post("/close-day", h.closeDay)
	r.Get("/journals", h.listJournals)
}

type cashMovementPayload struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	Amount        string `json:"amount"`
	Description   string `json:"description,omitempty"`
	ReceiptNumber string `json:"receipt_number"`
	CreatedBy     string `json:"created_by,omitempty"`
	CreatedAt     string `json:"created_at"`
}

type cashJournalPayload struct {
	ID                  string `json:"id"`
	OperativeDate       string `json:"operative_date"`
	RealSales           string `json:"real_sales"`
	InternalConsumption string `json:"internal_consumption"`
	Egresses            string `json:"egresses"`
	CashBalance         string `json:"cash_balance"`
	OrdersClosed        int    `json:"orders_closed"`
	ClosedAt            string `json:"closed_at"`
	ClosedBy            string `json:"closed_by,omitempty"`
}

func buildCashJournalPayload(journal services.CashJournal) cashJournalPayload {
	return cashJournalPayload{
		ID:                  journal.ID,
		OperativeDate:       string(journal.OperativeDate),
		RealSales:           journal.RealSales.String(),
		InternalConsumption: journal.InternalConsumption.String(),
		Egresses:            journal.Egresses.String(),
		CashBalance:         journal.CashBalance.String(),
		OrdersClosed:        journal.OrdersClosed,
		ClosedAt:            formatTime(journal.ClosedAt),
		ClosedBy:            journal.ClosedBy,
	}
}

func (h *CashHandlers) registerEgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	var req struct {
		Amount      string `json:"amount"`
		Description string `json:"description"`
		CreatedBy   string `json:"created_by"`
	}
	if !decodeRequest(w, r, &req) {
		return
	}

	amount, err := parseMoney(req.Amount)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	movement, err := h.cash.RegisterEgress(ctx, services.RegisterEgressCommand{
		Amount:      amount,
		Description: req.Description,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, cashMovementPayload{
		ID:            movement.ID,
		Kind:          string(movement.Kind),
		Amount:        movement.Amount.String(),
		Description:   movement.Description,
		ReceiptNumber: movement.ReceiptNumber,
		CreatedBy:     movement.CreatedBy,
		CreatedAt:     formatTime(movement.CreatedAt),
	})
}

func (h *CashHandlers) dailyReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	var date domain.OperativeDate
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		parsed, err := domain.ParseOperativeDate(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return
		}
		date = parsed
	}

	report, err := h.cash.DailyReport(ctx, date)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	byMedium := make(map[string]string, len(report.ByMedium))
	for medium, amount := range report.ByMedium {
		byMedium[string(medium)] = amount.String()
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"operative_date":       string(report.OperativeDate),
		"real_sales":           report.RealSales.String(),
		"internal_consumption": report.InternalConsumption.String(),
		"egresses":             report.Egresses.String(),
		"cash_balance":         report.CashBalance.String(),
		"orders_closed":        report.OrdersClosed,
		"by_medium":            byMedium,
	})
}

func (h *CashHandlers) closeDay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	var req struct {
		ClosedBy string `json:"closed_by"`
	}
	if !decodeRequest(w, r, &req) {
		return
	}

	journal, err := h.cash.CloseDay(ctx, req.ClosedBy)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildCashJournalPayload(journal))
}

func (h *CashHandlers) listJournals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	from, err := parseJournalDate(r, "from")
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	to, err := parseJournalDate(r, "to")
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	journals, err := h.cash.ListJournals(ctx, from, to)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	payload := make([]cashJournalPayload, 0, len(journals))
	for _, journal := range journals {
		payload = append(payload, buildCashJournalPayload(journal))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"journals": payload})
}

func parseJournalDate(r *http.Request, key string) (domain.OperativeDate, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return "", nil
	}
	return domain.ParseOperativeDate(raw)
}

func (h *CashHandlers) available(w http.ResponseWriter, r *http.Request) bool {
	if h.cash != nil {
		return true
	}
	httpx.WriteError(r.Context(), w, httpx.NewError("service_unavailable", "cash service not available", http.StatusServiceUnavailable))
	return false
}
