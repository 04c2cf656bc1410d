package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/comandas/api/internal/domain"
	"github.com/comandas/api/internal/services"
)

type stubOrderService struct {
	openTableFunc     func(ctx context.Context, tableID string) (services.Order, error)
	getOrderFunc      func(ctx context.Context, orderID string) (services.Order, error)
	getOpenOrderFunc  func(ctx context.Context, tableID string) (services.Order, error)
	addItemFunc       func(ctx context.Context, cmd services.AddItemCommand) (services.Order, error)
	modifyFunc        func(ctx context.Context, cmd services.ModifyQuantityCommand) (services.Order, error)
	removeFunc        func(ctx context.Context, cmd services.RemoveItemCommand) (services.Order, error)
	lineDiscountFunc  func(ctx context.Context, cmd services.LineDiscountCommand) (services.Order, error)
	orderDiscountFunc func(ctx context.Context, cmd services.OrderDiscountCommand) (services.Order, error)
	closeFunc         func(ctx context.Context, cmd services.CloseOrderCommand) (services.Order, error)
	reopenFunc        func(ctx context.Context, orderID string) (services.Order, error)
	correctFunc       func(ctx context.Context, cmd services.CorrectOrderCommand) (services.Order, error)
	kitchenSlipFunc   func(ctx context.Context, orderID string) (services.KitchenSlip, error)
	receiptFunc       func(ctx context.Context, orderID string) (services.Receipt, error)
}

func (s *stubOrderService) OpenTable(ctx context.Context, tableID string) (services.Order, error) {
	if s.openTableFunc != nil {
		return s.openTableFunc(ctx, tableID)
	}
	return services.Order{}, nil
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string) (services.Order, error) {
	if s.getOrderFunc != nil {
		return s.getOrderFunc(ctx, orderID)
	}
	return services.Order{}, nil
}

func (s *stubOrderService) GetOpenOrder(ctx context.Context, tableID string) (services.Order, error) {
	if s.getOpenOrderFunc != nil {
		return s.getOpenOrderFunc(ctx, tableID)
	}
	return services.Order{}, nil
}

func (s *stubOrderService) AddItem(ctx context.Context, cmd services.AddItemCommand) (services.Order, error) {
	if s.addItemFunc != nil {
		return s.addItemFunc(ctx, cmd)
	}
	return services.Order{}, nil
}

func (s *stubOrderService) ModifyQuantity(ctx context.Context, cmd services.ModifyQuantityCommand) (services.Order, error) {
	if s.modifyFunc != nil {
		return s.modifyFunc(ctx, cmd)
	}
	return services.Order{}, nil
}

func (s *stubOrderService) RemoveItem(ctx context.Context, cmd services.RemoveItemCommand) (services.Order, error) {
	if s.removeFunc != nil {
		return s.removeFunc(ctx, cmd)
	}
	return services.Order{}, nil
}

func (s *stubOrderService) ApplyLineDiscount(ctx context.Context, cmd services.LineDiscountCommand) (services.Order, error) {
	if s.lineDiscountFunc != nil {
		return s.lineDiscountFunc(ctx, cmd)
	}
	return services.Order{}, nil
}

func (s *stubOrderService) ApplyOrderDiscount(ctx context.Context, cmd services.OrderDiscountCommand) (services.Order, error) {
	if s.orderDiscountFunc != nil {
		return s.orderDiscountFunc(ctx, cmd)
	}
	return services.Order{}, nil
}

func (s *stubOrderService) Close(ctx context.Context, cmd services.CloseOrderCommand) (services.Order, error) {
	if s.closeFunc != nil {
		return s.closeFunc(ctx, cmd)
	}
	return services.Order{}, nil
}

func (s *stubOrderService) Reopen(ctx context.Context, orderID string) (services.Order, error) {
	if s.reopenFunc != nil {
		return s.reopenFunc(ctx, orderID)
	}
	return services.Order{}, nil
}

func (s *stubOrderService) Correct(ctx context.Context, cmd services.CorrectOrderCommand) (services.Order, error) {
	if s.correctFunc != nil {
		return s.correctFunc(ctx, cmd)
	}
	return services.Order{}, nil
}

func (s *stubOrderService) KitchenSlip(ctx context.Context, orderID string) (services.KitchenSlip, error) {
	if s.kitchenSlipFunc != nil {
		return s.kitchenSlipFunc(ctx, orderID)
	}
	return services.KitchenSlip{}, nil
}

func (s *stubOrderService) Receipt(ctx context.Context, orderID string) (services.Receipt, error) {
	if s.receiptFunc != nil {
		return s.receiptFunc(ctx, orderID)
	}
	return services.Receipt{}, nil
}

func newOrderRouter(svc services.OrderService, opts ...OrderHandlerOption) chi.Router {
	router := chi.NewRouter()
	router.Route("/orders", NewOrderHandlers(svc, opts...).Routes)
	return router
}

func sampleOpenOrder() services.Order {
	opened := time.Date(2025, 3, 14, 20, 15, 0, 0, time.UTC)
	return services.Order{
		ID:      "order-7",
		TableID: "table-3",
		Number:  42,
		State:   domain.OrderStateOpen,
		Items: []services.OrderItem{
			{
				ID:        "item-1",
				ProductID: "prod-beer",
				Name:      "Cerveza",
				UnitPrice: domain.Money(250000),
				Quantity:  2,
				Extras: []services.ExtraLine{
					{ProductID: "prod-lemon", Name: "Limon", UnitPrice: domain.Money(20000), Quantity: 1},
				},
			},
		},
		OpenedAt: opened,
	}
}

func TestOrderHandlersGet_Success(t *testing.T) {
	order := sampleOpenOrder()
	svc := &stubOrderService{
		getOrderFunc: func(ctx context.Context, orderID string) (services.Order, error) {
			if orderID != "order-7" {
				t.Fatalf("expected order id order-7, got %s", orderID)
			}
			return order, nil
		},
	}

	router := newOrderRouter(svc)
	req := httptest.NewRequest(http.MethodGet, "/orders/order-7", nil)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var payload orderPayload
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON response: %v", err)
	}
	if payload.ID != "order-7" {
		t.Fatalf("expected order id order-7, got %s", payload.ID)
	}
	if payload.Number != 42 {
		t.Fatalf("expected order number 42, got %d", payload.Number)
	}
	if len(payload.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(payload.Items))
	}
	if payload.Items[0].UnitPrice != "2500.00" {
		t.Fatalf("expected unit price 2500.00, got %s", payload.Items[0].UnitPrice)
	}
	if len(payload.Items[0].Extras) != 1 || payload.Items[0].Extras[0].UnitPrice != "200.00" {
		t.Fatalf("unexpected extras payload: %+v", payload.Items[0].Extras)
	}
}

func TestOrderHandlersGet_NotFound(t *testing.T) {
	svc := &stubOrderService{
		getOrderFunc: func(ctx context.Context, orderID string) (services.Order, error) {
			return services.Order{}, services.NotFoundError{Kind: "order", ID: orderID}
		},
	}

	router := newOrderRouter(svc)
	req := httptest.NewRequest(http.MethodGet, "/orders/missing", nil)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if body["error"] != "not_found" {
		t.Fatalf("expected not_found error, got %v", body["error"])
	}
}

func TestOrderHandlersAddItem_Success(t *testing.T) {
	var received services.AddItemCommand
	svc := &stubOrderService{
		addItemFunc: func(ctx context.Context, cmd services.AddItemCommand) (services.Order, error) {
			received = cmd
			return sampleOpenOrder(), nil
		},
	}

	router := newOrderRouter(svc)
	body := bytes.NewBufferString(`{"product_id":"prod-beer","quantity":2,"observation":"bien fria","extras":[{"product_id":"prod-lemon","quantity":1}]}`)
	req := httptest.NewRequest(http.MethodPost, "/orders/order-7/items", body)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if received.OrderID != "order-7" {
		t.Fatalf("expected order id order-7, got %s", received.OrderID)
	}
	if received.ProductID != "prod-beer" || received.Quantity != 2 {
		t.Fatalf("unexpected command: %+v", received)
	}
	if received.Observation != "bien fria" {
		t.Fatalf("expected observation, got %q", received.Observation)
	}
	if len(received.Extras) != 1 || received.Extras[0].ProductID != "prod-lemon" {
		t.Fatalf("unexpected extras: %+v", received.Extras)
	}
}

func TestOrderHandlersAddItem_StructuralExtraRejected(t *testing.T) {
	svc := &stubOrderService{
		addItemFunc: func(ctx context.Context, cmd services.AddItemCommand) (services.Order, error) {
			return services.Order{}, services.StructuralExtraError{ProductName: "Medallon extra"}
		},
	}

	router := newOrderRouter(svc)
	body := bytes.NewBufferString(`{"product_id":"prod-burger","quantity":1,"extras":[{"product_id":"prod-patty","quantity":1}]}`)
	req := httptest.NewRequest(http.MethodPost, "/orders/order-7/items", body)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if payload["error"] != "structural_extra_not_allowed" {
		t.Fatalf("expected structural_extra_not_allowed, got %v", payload["error"])
	}
}

func TestOrderHandlersAddItem_EmptyBody(t *testing.T) {
	router := newOrderRouter(&stubOrderService{})
	req := httptest.NewRequest(http.MethodPost, "/orders/order-7/items", bytes.NewReader(nil))
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestOrderHandlersModifyQuantity_ClosedOrder(t *testing.T) {
	svc := &stubOrderService{
		modifyFunc: func(ctx context.Context, cmd services.ModifyQuantityCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderImmutable
		},
	}

	router := newOrderRouter(svc)
	body := bytes.NewBufferString(`{"quantity":3}`)
	req := httptest.NewRequest(http.MethodPatch, "/orders/order-7/items/item-1", body)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if payload["error"] != "order_closed" {
		t.Fatalf("expected order_closed, got %v", payload["error"])
	}
}

func TestOrderHandlersLineDiscount_ParsesPercent(t *testing.T) {
	var received services.LineDiscountCommand
	svc := &stubOrderService{
		lineDiscountFunc: func(ctx context.Context, cmd services.LineDiscountCommand) (services.Order, error) {
			received = cmd
			return sampleOpenOrder(), nil
		},
	}

	router := newOrderRouter(svc)
	body := bytes.NewBufferString(`{"kind":"PERCENT","percent":"12.50","reason":"regular","user_id":"user-9"}`)
	req := httptest.NewRequest(http.MethodPost, "/orders/order-7/items/item-1/discount", body)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if received.ItemID != "item-1" {
		t.Fatalf("expected item id item-1, got %s", received.ItemID)
	}
	if received.Discount.Kind != domain.DiscountPercent {
		t.Fatalf("expected percent kind, got %s", received.Discount.Kind)
	}
	if received.Discount.Percent != domain.Percent(1250) {
		t.Fatalf("expected percent 12.50, got %s", received.Discount.Percent)
	}
	if received.Discount.UserID != "user-9" {
		t.Fatalf("expected user-9, got %s", received.Discount.UserID)
	}
}

func TestOrderHandlersLineDiscount_InvalidPercent(t *testing.T) {
	router := newOrderRouter(&stubOrderService{})
	body := bytes.NewBufferString(`{"kind":"PERCENT","percent":"12.505"}`)
	req := httptest.NewRequest(http.MethodPost, "/orders/order-7/items/item-1/discount", body)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestOrderHandlersClose_Success(t *testing.T) {
	var received services.CloseOrderCommand
	closed := sampleOpenOrder()
	closedAt := time.Date(2025, 3, 14, 23, 5, 0, 0, time.UTC)
	closed.State = domain.OrderStateClosed
	closed.ClosedAt = &closedAt
	closed.Snapshot = &services.AccountingSnapshot{
		Subtotal:   domain.Money(540000),
		FinalTotal: domain.Money(540000),
	}
	closed.Payments = []services.Payment{
		{Medium: domain.PaymentCash, Amount: domain.Money(300000)},
		{Medium: domain.PaymentCard, Amount: domain.Money(240000)},
	}

	svc := &stubOrderService{
		closeFunc: func(ctx context.Context, cmd services.CloseOrderCommand) (services.Order, error) {
			received = cmd
			return closed, nil
		},
	}

	router := newOrderRouter(svc)
	body := bytes.NewBufferString(`{"payments":[{"medium":"CASH","amount":"3000.00"},{"medium":"CARD","amount":"2400.00"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/orders/order-7/close", body)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if len(received.Payments) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(received.Payments))
	}
	if received.Payments[0].Medium != domain.PaymentCash || received.Payments[0].Amount != domain.Money(300000) {
		t.Fatalf("unexpected first payment: %+v", received.Payments[0])
	}

	var payload orderPayload
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON response: %v", err)
	}
	if payload.State != string(domain.OrderStateClosed) {
		t.Fatalf("expected CLOSED, got %s", payload.State)
	}
	if payload.Totals == nil || payload.Totals.FinalTotal != "5400.00" {
		t.Fatalf("unexpected totals: %+v", payload.Totals)
	}
	if payload.ClosedAt != formatTime(closedAt) {
		t.Fatalf("expected closedAt %s, got %s", formatTime(closedAt), payload.ClosedAt)
	}
}

func TestOrderHandlersClose_PaymentMismatch(t *testing.T) {
	svc := &stubOrderService{
		closeFunc: func(ctx context.Context, cmd services.CloseOrderCommand) (services.Order, error) {
			return services.Order{}, services.PaymentMismatchError{
				Expected: domain.Money(540000),
				Given:    domain.Money(500000),
			}
		},
	}

	router := newOrderRouter(svc)
	body := bytes.NewBufferString(`{"payments":[{"medium":"CASH","amount":"5000.00"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/orders/order-7/close", body)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}

	var payload struct {
		Error   string         `json:"error"`
		Details map[string]any `json:"details"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if payload.Error != "payment_mismatch" {
		t.Fatalf("expected payment_mismatch, got %s", payload.Error)
	}
	if payload.Details["expected"] != "5400.00" || payload.Details["given"] != "5000.00" {
		t.Fatalf("unexpected details: %+v", payload.Details)
	}
}

func TestOrderHandlersReopen_Success(t *testing.T) {
	svc := &stubOrderService{
		reopenFunc: func(ctx context.Context, orderID string) (services.Order, error) {
			if orderID != "order-7" {
				t.Fatalf("expected order-7, got %s", orderID)
			}
			return sampleOpenOrder(), nil
		},
	}

	router := newOrderRouter(svc)
	req := httptest.NewRequest(http.MethodPost, "/orders/order-7/reopen", nil)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestOrderHandlersCorrect_Success(t *testing.T) {
	var received services.CorrectOrderCommand
	svc := &stubOrderService{
		correctFunc: func(ctx context.Context, cmd services.CorrectOrderCommand) (services.Order, error) {
			received = cmd
			return sampleOpenOrder(), nil
		},
	}

	router := newOrderRouter(svc)
	body := bytes.NewBufferString(`{"quantities":{"item-1":1},"payments":[{"medium":"CASH","amount":"2700.00"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/orders/order-7/correct", body)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if received.Quantities["item-1"] != 1 {
		t.Fatalf("unexpected quantities: %+v", received.Quantities)
	}
	if len(received.Payments) != 1 || received.Payments[0].Amount != domain.Money(270000) {
		t.Fatalf("unexpected payments: %+v", received.Payments)
	}
}

func TestOrderHandlersKitchenSlip_Success(t *testing.T) {
	printed := time.Date(2025, 3, 14, 20, 16, 0, 0, time.UTC)
	svc := &stubOrderService{
		kitchenSlipFunc: func(ctx context.Context, orderID string) (services.KitchenSlip, error) {
			return services.KitchenSlip{
				OrderID:     orderID,
				OrderNumber: 42,
				TableNumber: 3,
				Lines: []services.KitchenLine{
					{Name: "Cerveza", Quantity: 2, Observation: "bien fria", Extras: []string{"Limon"}},
				},
				PrintedAt: printed,
			}, nil
		},
	}

	router := newOrderRouter(svc)
	req := httptest.NewRequest(http.MethodGet, "/orders/order-7/kitchen-slip", nil)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var payload struct {
		OrderNumber int64            `json:"order_number"`
		TableNumber int              `json:"table_number"`
		Lines       []map[string]any `json:"lines"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON response: %v", err)
	}
	if payload.OrderNumber != 42 || payload.TableNumber != 3 {
		t.Fatalf("unexpected header: %+v", payload)
	}
	if len(payload.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(payload.Lines))
	}
	if _, priced := payload.Lines[0]["unit_price"]; priced {
		t.Fatalf("kitchen slip lines must not carry prices")
	}
}

func TestOrderHandlersKitchenSlip_RateLimited(t *testing.T) {
	svc := &stubOrderService{
		kitchenSlipFunc: func(ctx context.Context, orderID string) (services.KitchenSlip, error) {
			return services.KitchenSlip{OrderID: orderID}, nil
		},
	}

	now := time.Date(2025, 3, 14, 20, 0, 0, 0, time.UTC)
	limiter := newSimpleRateLimiter(1, time.Minute, func() time.Time { return now })
	router := newOrderRouter(svc, WithPrintRateLimiter(limiter))

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/orders/order-7/kitchen-slip", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("expected first print to pass, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/orders/order-7/kitchen-slip", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", second.Code)
	}
}

func TestOrderHandlersReceipt_Success(t *testing.T) {
	issued := time.Date(2025, 3, 14, 23, 6, 0, 0, time.UTC)
	svc := &stubOrderService{
		receiptFunc: func(ctx context.Context, orderID string) (services.Receipt, error) {
			return services.Receipt{
				OrderID:     orderID,
				OrderNumber: 42,
				TableNumber: 3,
				Lines: []services.ReceiptLine{
					{
						Name:      "Cerveza",
						Quantity:  2,
						UnitPrice: domain.Money(250000),
						Discount:  domain.Money(50000),
						Total:     domain.Money(450000),
						Promotion: &services.PromotionApplication{
							PromotionID: "promo-1",
							Name:        "Happy Hour",
							Discount:    domain.Money(50000),
						},
					},
				},
				Totals: services.AccountingSnapshot{
					Subtotal:      domain.Money(500000),
					PromoDiscount: domain.Money(50000),
					FinalTotal:    domain.Money(450000),
				},
				Payments: []services.Payment{
					{Medium: domain.PaymentCash, Amount: domain.Money(450000)},
				},
				IssuedAt: issued,
			}, nil
		},
	}

	router := newOrderRouter(svc)
	req := httptest.NewRequest(http.MethodGet, "/orders/order-7/receipt", nil)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var payload struct {
		Lines  []map[string]any `json:"lines"`
		Totals snapshotPayload  `json:"totals"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON response: %v", err)
	}
	if len(payload.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(payload.Lines))
	}
	if payload.Lines[0]["unit_price"] != "2500.00" {
		t.Fatalf("expected unit price 2500.00, got %v", payload.Lines[0]["unit_price"])
	}
	if payload.Totals.FinalTotal != "4500.00" {
		t.Fatalf("expected final total 4500.00, got %s", payload.Totals.FinalTotal)
	}
}

func TestOrderHandlers_NoService(t *testing.T) {
	router := newOrderRouter(nil)
	req := httptest.NewRequest(http.MethodGet, "/orders/order-7", nil)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", resp.Code)
	}
}
