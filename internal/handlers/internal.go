package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/comandas/api/internal/platform/httpx"
	"github.com/comandas/api/internal/services"
)

// InternalHandlers exposes the scheduler-only job endpoints. The router
// mounts them behind the HMAC middleware, so every request here is signed.
type InternalHandlers struct {
	cash services.CashService
}

// NewInternalHandlers constructs the internal job handler set.
func NewInternalHandlers(cash services.CashService) *InternalHandlers {
	return &InternalHandlers{cash: cash}
}

// Routes registers the internal endpoints beneath /internal.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/jobs/close-day", h.closeDay)
}

func (h *InternalHandlers) closeDay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.cash == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "cash service not available", http.StatusServiceUnavailable))
		return
	}

	// Scheduler invocations usually carry no body at all.
	var req struct {
		ClosedBy string `json:"closed_by"`
	}
	body, err := readLimitedBody(r, maxOrderRequestBody)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
			return
		}
	}
	closedBy := strings.TrimSpace(req.ClosedBy)
	if closedBy == "" {
		closedBy = "scheduler"
	}

	journal, err := h.cash.CloseDay(ctx, closedBy)
	if err != nil {
		// The nightly job fires whether or not an operator already closed
		// the day by hand. An already-closed day is a no-op for it.
		var closed services.DayAlreadyClosedError
		if errors.As(err, &closed) {
			writeJSONResponse(w, http.StatusOK, map[string]any{
				"status":         "already_closed",
				"operative_date": string(closed.Date),
			})
			return
		}
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildCashJournalPayload(journal))
}
