package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/comandas/api/internal/platform/httpx"
	"github.com/comandas/api/internal/services"
)

// TableHandlers exposes the floor map endpoints: the table grid the terminal
// renders and the open-table action that starts a service.
type TableHandlers struct {
	tables services.TableService
	orders services.OrderService
}

// NewTableHandlers constructs a table handler set.
func NewTableHandlers(tables services.TableService, orders services.OrderService) *TableHandlers {
	return &TableHandlers{tables: tables, orders: orders}
}

// Routes registers the table endpoints beneath /tables.
func (h *TableHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Delete("/{tableId}", h.delete)
	r.Post("/{tableId}/open", h.open)
	r.Get("/{tableId}/order", h.openOrder)
}

type tablePayload struct {
	ID           string `json:"id"`
	Number       int    `json:"number"`
	State        string `json:"state"`
	OrderID      string `json:"order_id,omitempty"`
	OrderNumber  int64  `json:"order_number,omitempty"`
	PendingTotal string `json:"pending_total,omitempty"`
	ItemCount    int    `json:"item_count,omitempty"`
}

func (h *TableHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.tables == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "table service not available", http.StatusServiceUnavailable))
		return
	}

	summaries, err := h.tables.ListTables(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	payload := make([]tablePayload, 0, len(summaries))
	for _, summary := range summaries {
		entry := tablePayload{
			ID:     summary.Table.ID,
			Number: summary.Table.Number,
			State:  string(summary.Table.State),
		}
		if summary.OrderID != nil {
			entry.OrderID = *summary.OrderID
			entry.PendingTotal = summary.PendingTotal.String()
			entry.ItemCount = summary.ItemCount
		}
		if summary.OrderNumber != nil {
			entry.OrderNumber = *summary.OrderNumber
		}
		payload = append(payload, entry)
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"tables": payload})
}

func (h *TableHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.tables == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "table service not available", http.StatusServiceUnavailable))
		return
	}

	var req struct {
		Number int `json:"number"`
	}
	if !decodeRequest(w, r, &req) {
		return
	}

	table, err := h.tables.CreateTable(ctx, req.Number)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, tablePayload{
		ID:     table.ID,
		Number: table.Number,
		State:  string(table.State),
	})
}

func (h *TableHandlers) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.tables == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "table service not available", http.StatusServiceUnavailable))
		return
	}

	tableID := strings.TrimSpace(chi.URLParam(r, "tableId"))
	if tableID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "table id is required", http.StatusBadRequest))
		return
	}

	if err := h.tables.DeleteTable(ctx, tableID); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TableHandlers) open(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "order service not available", http.StatusServiceUnavailable))
		return
	}

	tableID := strings.TrimSpace(chi.URLParam(r, "tableId"))
	if tableID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "table id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.OpenTable(ctx, tableID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *TableHandlers) openOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "order service not available", http.StatusServiceUnavailable))
		return
	}

	tableID := strings.TrimSpace(chi.URLParam(r, "tableId"))
	if tableID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "table id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOpenOrder(ctx, tableID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}
