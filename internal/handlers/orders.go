package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/comandas/api/internal/platform/httpx"
	"github.com/comandas/api/internal/services"
)

const maxOrderRequestBody = 32 * 1024

// OrderHandlers exposes the order lifecycle endpoints used by the terminals.
type OrderHandlers struct {
	orders services.OrderService
	// printLimiter throttles the print endpoints; a double-tapped button must
	// not spool the same ticket twice.
	printLimiter rateLimiter
}

// OrderHandlerOption customises the order handler set.
type OrderHandlerOption func(*OrderHandlers)

// WithPrintRateLimiter throttles the kitchen slip and receipt endpoints.
func WithPrintRateLimiter(limiter rateLimiter) OrderHandlerOption {
	return func(h *OrderHandlers) {
		h.printLimiter = limiter
	}
}

// WithPrintRateLimit throttles prints to limit requests per window per order.
func WithPrintRateLimit(limit int, window time.Duration) OrderHandlerOption {
	return func(h *OrderHandlers) {
		if limiter := newSimpleRateLimiter(limit, window, time.Now); limiter != nil {
			h.printLimiter = limiter
		}
	}
}

// NewOrderHandlers constructs an order handler set.
func NewOrderHandlers(svc services.OrderService, opts ...OrderHandlerOption) *OrderHandlers {
	h := &OrderHandlers{orders: svc}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the order endpoints beneath /orders.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{orderId}", h.get)
	r.Post("/{orderId}/items", h.addItem)
	r.Patch("/{orderId}/items/{itemId}", h.modifyQuantity)
	r.Delete("/{orderId}/items/{itemId}", h.removeItem)
	r.Post("/{orderId}/items/{itemId}/discount", h.lineDiscount)
	r.Post("/{orderId}/discount", h.orderDiscount)
	r.Post("/{orderId}/close", h.close)
	r.Post("/{orderId}/reopen", h.reopen)
	r.Post("/{orderId}/correct", h.correct)
	r.Get("/{orderId}/kitchen-slip", h.kitchenSlip)
	r.Get("/{orderId}/receipt", h.receipt)
}

func (h *OrderHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := h.requireOrderID(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

type addItemRequest struct {
	ProductID   string `json:"product_id"`
	Quantity    int    `json:"quantity"`
	Observation string `json:"observation"`
	Extras      []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"extras"`
}

func (h *OrderHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := h.requireOrderID(w, r)
	if !ok {
		return
	}

	var req addItemRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	cmd := services.AddItemCommand{
		OrderID:     orderID,
		ProductID:   req.ProductID,
		Quantity:    req.Quantity,
		Observation: req.Observation,
	}
	for _, extra := range req.Extras {
		cmd.Extras = append(cmd.Extras, services.ExtraRequest{
			ProductID: extra.ProductID,
			Quantity:  extra.Quantity,
		})
	}

	order, err := h.orders.AddItem(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) modifyQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := h.requireOrderID(w, r)
	if !ok {
		return
	}
	itemID := strings.TrimSpace(chi.URLParam(r, "itemId"))

	var req struct {
		Quantity int `json:"quantity"`
	}
	if !decodeRequest(w, r, &req) {
		return
	}

	order, err := h.orders.ModifyQuantity(ctx, services.ModifyQuantityCommand{
		OrderID:  orderID,
		ItemID:   itemID,
		Quantity: req.Quantity,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := h.requireOrderID(w, r)
	if !ok {
		return
	}

	order, err := h.orders.RemoveItem(ctx, services.RemoveItemCommand{
		OrderID: orderID,
		ItemID:  strings.TrimSpace(chi.URLParam(r, "itemId")),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) lineDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := h.requireOrderID(w, r)
	if !ok {
		return
	}

	var req discountRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	input, err := req.toInput()
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	order, err := h.orders.ApplyLineDiscount(ctx, services.LineDiscountCommand{
		OrderID:  orderID,
		ItemID:   strings.TrimSpace(chi.URLParam(r, "itemId")),
		Discount: input,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) orderDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := h.requireOrderID(w, r)
	if !ok {
		return
	}

	var req discountRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	input, err := req.toInput()
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	order, err := h.orders.ApplyOrderDiscount(ctx, services.OrderDiscountCommand{
		OrderID:  orderID,
		Discount: input,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

type closeOrderRequest struct {
	Payments []paymentRequest `json:"payments"`
}

func (h *OrderHandlers) close(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := h.requireOrderID(w, r)
	if !ok {
		return
	}

	var req closeOrderRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	payments, err := parsePaymentInputs(req.Payments)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	order, err := h.orders.Close(ctx, services.CloseOrderCommand{
		OrderID:  orderID,
		Payments: payments,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) reopen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := h.requireOrderID(w, r)
	if !ok {
		return
	}

	order, err := h.orders.Reopen(ctx, orderID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

type correctOrderRequest struct {
	Quantities map[string]int   `json:"quantities"`
	Payments   []paymentRequest `json:"payments"`
}

func (h *OrderHandlers) correct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := h.requireOrderID(w, r)
	if !ok {
		return
	}

	var req correctOrderRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	payments, err := parsePaymentInputs(req.Payments)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	order, err := h.orders.Correct(ctx, services.CorrectOrderCommand{
		OrderID:    orderID,
		Quantities: req.Quantities,
		Payments:   payments,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) kitchenSlip(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := h.requireOrderID(w, r)
	if !ok {
		return
	}
	if !h.allowPrint(w, r, "slip:"+orderID) {
		return
	}

	slip, err := h.orders.KitchenSlip(ctx, orderID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	lines := make([]map[string]any, 0, len(slip.Lines))
	for _, line := range slip.Lines {
		entry := map[string]any{
			"name":     line.Name,
			"quantity": line.Quantity,
		}
		if line.Observation != "" {
			entry["observation"] = line.Observation
		}
		if len(line.Extras) > 0 {
			entry["extras"] = line.Extras
		}
		lines = append(lines, entry)
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"order_id":     slip.OrderID,
		"order_number": slip.OrderNumber,
		"table_number": slip.TableNumber,
		"lines":        lines,
		"printed_at":   formatTime(slip.PrintedAt),
	})
}

func (h *OrderHandlers) receipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := h.requireOrderID(w, r)
	if !ok {
		return
	}
	if !h.allowPrint(w, r, "receipt:"+orderID) {
		return
	}

	receipt, err := h.orders.Receipt(ctx, orderID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	lines := make([]map[string]any, 0, len(receipt.Lines))
	for _, line := range receipt.Lines {
		entry := map[string]any{
			"name":       line.Name,
			"quantity":   line.Quantity,
			"unit_price": line.UnitPrice.String(),
			"total":      line.Total.String(),
		}
		if line.Discount != 0 {
			entry["discount"] = line.Discount.String()
		}
		if line.Promotion != nil {
			entry["promotion"] = promoPayload{
				PromotionID: line.Promotion.PromotionID,
				Name:        line.Promotion.Name,
				Discount:    line.Promotion.Discount.String(),
			}
		}
		if len(line.Extras) > 0 {
			extras := make([]extraPayload, 0, len(line.Extras))
			for _, extra := range line.Extras {
				extras = append(extras, extraPayload{
					ProductID: extra.ProductID,
					Name:      extra.Name,
					UnitPrice: extra.UnitPrice.String(),
					Quantity:  extra.Quantity,
				})
			}
			entry["extras"] = extras
		}
		lines = append(lines, entry)
	}

	payments := make([]paymentPayload, 0, len(receipt.Payments))
	for _, payment := range receipt.Payments {
		payments = append(payments, paymentPayload{
			Medium: string(payment.Medium),
			Amount: payment.Amount.String(),
		})
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"order_id":     receipt.OrderID,
		"order_number": receipt.OrderNumber,
		"table_number": receipt.TableNumber,
		"lines":        lines,
		"totals":       buildSnapshotPayload(&receipt.Totals),
		"payments":     payments,
		"issued_at":    formatTime(receipt.IssuedAt),
	})
}

func (h *OrderHandlers) requireOrderID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.orders == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("service_unavailable", "order service not available", http.StatusServiceUnavailable))
		return "", false
	}
	orderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if orderID == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return "", false
	}
	return orderID, true
}

func (h *OrderHandlers) allowPrint(w http.ResponseWriter, r *http.Request, key string) bool {
	if h.printLimiter == nil || h.printLimiter.Allow(key) {
		return true
	}
	httpx.WriteError(r.Context(), w, httpx.NewError("too_many_requests", "print already in progress, retry shortly", http.StatusTooManyRequests))
	return false
}

// decodeRequest reads and unmarshals a bounded JSON body, writing the error
// response itself when the payload is unusable.
func decodeRequest(w http.ResponseWriter, r *http.Request, target any) bool {
	ctx := r.Context()
	body, err := readLimitedBody(r, maxOrderRequestBody)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if len(body) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		return false
	}
	if err := json.Unmarshal(body, target); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return false
	}
	return true
}
