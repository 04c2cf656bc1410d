package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/comandas/api/internal/domain"
)

func newTableService(t *testing.T, tables *memTables, orders *memOrders) TableService {
	t.Helper()
	service, err := NewTableService(TableServiceDeps{
		Tables:      tables,
		Orders:      orders,
		Local:       stubLocal("local-1"),
		Clock:       fixedClock(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)),
		IDGenerator: sequentialIDs(),
	})
	if err != nil {
		t.Fatalf("table service: %v", err)
	}
	return service
}

func TestCreateTableRejectsDuplicateNumber(t *testing.T) {
	tables := newMemTables()
	service := newTableService(t, tables, newMemOrders())
	ctx := context.Background()

	table, err := service.CreateTable(ctx, 5)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	if table.Number != 5 || table.State != domain.TableStateFree {
		t.Fatalf("table = %+v, want free number 5", table)
	}

	_, err = service.CreateTable(ctx, 5)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("duplicate number error = %v, want ErrValidation", err)
	}

	_, err = service.CreateTable(ctx, 0)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("zero number error = %v, want ErrValidation", err)
	}
}

func TestListTablesPairsOpenOrders(t *testing.T) {
	tables := newMemTables(
		domain.Table{ID: "t1", LocalID: "local-1", Number: 1, State: domain.TableStateFree},
		domain.Table{ID: "t2", LocalID: "local-1", Number: 2, State: domain.TableStateOpen},
	)
	orders := newMemOrders(domain.Order{
		ID:      "o1",
		LocalID: "local-1",
		TableID: "t2",
		Number:  17,
		State:   domain.OrderStateOpen,
		Items: []domain.OrderItem{
			{ProductID: "cerveza", UnitPrice: 2500, Quantity: 2},
		},
	})
	service := newTableService(t, tables, orders)

	summaries, err := service.ListTables(context.Background())
	if err != nil {
		t.Fatalf("list tables: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("summaries = %d, want 2", len(summaries))
	}

	free := summaries[0]
	if free.OrderID != nil || free.PendingTotal != 0 {
		t.Fatalf("free table summary = %+v, want empty", free)
	}

	busy := summaries[1]
	if busy.OrderID == nil || *busy.OrderID != "o1" {
		t.Fatalf("busy table summary = %+v, want order o1", busy)
	}
	if busy.OrderNumber == nil || *busy.OrderNumber != 17 {
		t.Fatalf("order number = %v, want 17", busy.OrderNumber)
	}
	if busy.PendingTotal != 5000 {
		t.Fatalf("pending total = %d, want 5000", busy.PendingTotal)
	}
	if busy.ItemCount != 1 {
		t.Fatalf("item count = %d, want 1", busy.ItemCount)
	}
}

func TestListTablesToleratesStaleOpenState(t *testing.T) {
	// A table flagged OPEN whose order is gone must not fail the listing.
	tables := newMemTables(domain.Table{ID: "t1", LocalID: "local-1", Number: 1, State: domain.TableStateOpen})
	service := newTableService(t, tables, newMemOrders())

	summaries, err := service.ListTables(context.Background())
	if err != nil {
		t.Fatalf("list tables: %v", err)
	}
	if len(summaries) != 1 || summaries[0].OrderID != nil {
		t.Fatalf("summaries = %+v, want one orderless entry", summaries)
	}
}

func TestDeleteTableOnlyWhenFree(t *testing.T) {
	tables := newMemTables(
		domain.Table{ID: "t1", LocalID: "local-1", Number: 1, State: domain.TableStateFree},
		domain.Table{ID: "t2", LocalID: "local-1", Number: 2, State: domain.TableStateOpen},
	)
	service := newTableService(t, tables, newMemOrders())
	ctx := context.Background()

	if err := service.DeleteTable(ctx, "t1"); err != nil {
		t.Fatalf("delete free table: %v", err)
	}

	err := service.DeleteTable(ctx, "t2")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("delete open table error = %v, want ErrValidation", err)
	}

	err = service.DeleteTable(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete missing table error = %v, want ErrNotFound", err)
	}
}
