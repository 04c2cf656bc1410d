package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/comandas/api/internal/domain"
	"github.com/comandas/api/internal/services"
)

type stubTableService struct {
	createFunc func(ctx context.Context, number int) (services.Table, error)
	listFunc   func(ctx context.Context) ([]services.TableSummary, error)
	deleteFunc func(ctx context.Context, tableID string) error
}

func (s *stubTableService) CreateTable(ctx context.Context, number int) (services.Table, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, number)
	}
	return services.Table{}, nil
}

func (s *stubTableService) ListTables(ctx context.Context) ([]services.TableSummary, error) {
	if s.listFunc != nil {
		return s.listFunc(ctx)
	}
	return nil, nil
}

func (s *stubTableService) DeleteTable(ctx context.Context, tableID string) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, tableID)
	}
	return nil
}

func newTableRouter(tables services.TableService, orders services.OrderService) chi.Router {
	router := chi.NewRouter()
	router.Route("/tables", NewTableHandlers(tables, orders).Routes)
	return router
}

func TestTableHandlersList_Success(t *testing.T) {
	orderID := "order-7"
	orderNumber := int64(42)
	svc := &stubTableService{
		listFunc: func(ctx context.Context) ([]services.TableSummary, error) {
			return []services.TableSummary{
				{
					Table: services.Table{ID: "table-1", Number: 1, State: domain.TableStateFree},
				},
				{
					Table:        services.Table{ID: "table-3", Number: 3, State: domain.TableStateOpen},
					OrderID:      &orderID,
					OrderNumber:  &orderNumber,
					PendingTotal: domain.Money(540000),
					ItemCount:    4,
				},
			}, nil
		},
	}

	router := newTableRouter(svc, &stubOrderService{})
	req := httptest.NewRequest(http.MethodGet, "/tables/", nil)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var payload struct {
		Tables []tablePayload `json:"tables"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON response: %v", err)
	}
	if len(payload.Tables) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(payload.Tables))
	}
	if payload.Tables[0].State != string(domain.TableStateFree) || payload.Tables[0].OrderID != "" {
		t.Fatalf("unexpected free table payload: %+v", payload.Tables[0])
	}
	open := payload.Tables[1]
	if open.OrderID != "order-7" || open.OrderNumber != 42 {
		t.Fatalf("unexpected open table payload: %+v", open)
	}
	if open.PendingTotal != "5400.00" {
		t.Fatalf("expected pending total 5400.00, got %s", open.PendingTotal)
	}
	if open.ItemCount != 4 {
		t.Fatalf("expected item count 4, got %d", open.ItemCount)
	}
}

func TestTableHandlersCreate_Success(t *testing.T) {
	var receivedNumber int
	svc := &stubTableService{
		createFunc: func(ctx context.Context, number int) (services.Table, error) {
			receivedNumber = number
			return services.Table{ID: "table-9", Number: number, State: domain.TableStateFree}, nil
		},
	}

	router := newTableRouter(svc, &stubOrderService{})
	body := bytes.NewBufferString(`{"number":9}`)
	req := httptest.NewRequest(http.MethodPost, "/tables/", body)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if receivedNumber != 9 {
		t.Fatalf("expected number 9, got %d", receivedNumber)
	}

	var payload tablePayload
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON response: %v", err)
	}
	if payload.ID != "table-9" || payload.Number != 9 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestTableHandlersCreate_DuplicateNumber(t *testing.T) {
	svc := &stubTableService{
		createFunc: func(ctx context.Context, number int) (services.Table, error) {
			return services.Table{}, services.ConflictingNameError{Kind: "table", Name: "9"}
		},
	}

	router := newTableRouter(svc, &stubOrderService{})
	req := httptest.NewRequest(http.MethodPost, "/tables/", bytes.NewBufferString(`{"number":9}`))
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if body["error"] != "name_conflict" {
		t.Fatalf("expected name_conflict, got %v", body["error"])
	}
}

func TestTableHandlersDelete_Success(t *testing.T) {
	var receivedID string
	svc := &stubTableService{
		deleteFunc: func(ctx context.Context, tableID string) error {
			receivedID = tableID
			return nil
		},
	}

	router := newTableRouter(svc, &stubOrderService{})
	req := httptest.NewRequest(http.MethodDelete, "/tables/table-9", nil)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", resp.Code)
	}
	if receivedID != "table-9" {
		t.Fatalf("expected table-9, got %s", receivedID)
	}
}

func TestTableHandlersDelete_OpenTable(t *testing.T) {
	svc := &stubTableService{
		deleteFunc: func(ctx context.Context, tableID string) error {
			return services.ValidationError{Field: "table", Message: "table has an open order"}
		},
	}

	router := newTableRouter(svc, &stubOrderService{})
	req := httptest.NewRequest(http.MethodDelete, "/tables/table-3", nil)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestTableHandlersOpen_Success(t *testing.T) {
	orders := &stubOrderService{
		openTableFunc: func(ctx context.Context, tableID string) (services.Order, error) {
			if tableID != "table-3" {
				t.Fatalf("expected table-3, got %s", tableID)
			}
			return sampleOpenOrder(), nil
		},
	}

	router := newTableRouter(&stubTableService{}, orders)
	req := httptest.NewRequest(http.MethodPost, "/tables/table-3/open", nil)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var payload orderPayload
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON response: %v", err)
	}
	if payload.TableID != "table-3" || payload.State != string(domain.OrderStateOpen) {
		t.Fatalf("unexpected order payload: %+v", payload)
	}
}

func TestTableHandlersOpenOrder_NotFound(t *testing.T) {
	orders := &stubOrderService{
		getOpenOrderFunc: func(ctx context.Context, tableID string) (services.Order, error) {
			return services.Order{}, services.NotFoundError{Kind: "order", ID: tableID}
		},
	}

	router := newTableRouter(&stubTableService{}, orders)
	req := httptest.NewRequest(http.MethodGet, "/tables/table-1/order", nil)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}
