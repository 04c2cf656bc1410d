package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/comandas/api/internal/platform/httpx"
	"github.com/comandas/api/internal/services"
)

// writeServiceError translates the service error taxonomy into the canonical
// JSON error envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var mismatch services.PaymentMismatchError
	if errors.As(err, &mismatch) {
		httpx.WriteError(ctx, w, httpx.NewError("payment_mismatch", err.Error(), http.StatusBadRequest).
			WithDetails(map[string]any{
				"expected": mismatch.Expected.String(),
				"given":    mismatch.Given.String(),
			}))
		return
	}

	var stillOpen services.TablesStillOpenError
	if errors.As(err, &stillOpen) {
		httpx.WriteError(ctx, w, httpx.NewError("tables_still_open", err.Error(), http.StatusBadRequest).
			WithDetails(map[string]any{"open_tables": stillOpen.Count}))
		return
	}

	switch {
	case errors.Is(err, services.ErrStructuralExtraNotAllowed):
		httpx.WriteError(ctx, w, httpx.NewError("structural_extra_not_allowed", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrValidation):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrOrderImmutable):
		httpx.WriteError(ctx, w, httpx.NewError("order_closed", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrDayAlreadyClosed):
		httpx.WriteError(ctx, w, httpx.NewError("day_already_closed", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrConflictingName):
		httpx.WriteError(ctx, w, httpx.NewError("name_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrTransient):
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "temporarily unavailable, retry", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected failure", http.StatusInternalServerError))
	}
}
