package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/comandas/api/internal/domain"
	"github.com/comandas/api/internal/repositories"
)

// TableServiceDeps bundles collaborators required to construct the table service.
type TableServiceDeps struct {
	Tables      repositories.TableRepository
	Orders      repositories.OrderRepository
	Local       LocalContextProvider
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
}

type tableService struct {
	tables     repositories.TableRepository
	orders     repositories.OrderRepository
	local      LocalContextProvider
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
}

// NewTableService wires dependencies into a concrete TableService implementation.
func NewTableService(deps TableServiceDeps) (TableService, error) {
	if deps.Tables == nil {
		return nil, errors.New("table service: table repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("table service: order repository is required")
	}
	if deps.Local == nil {
		return nil, errors.New("table service: local context provider is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	return &tableService{
		tables:     deps.Tables,
		orders:     deps.Orders,
		local:      deps.Local,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

func (s *tableService) CreateTable(ctx context.Context, number int) (Table, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return Table{}, err
	}
	if number <= 0 {
		return Table{}, ValidationError{Field: "number", Message: "must be positive"}
	}

	exists, err := s.tables.ExistsByNumber(ctx, localID, number)
	if err != nil {
		return Table{}, mapRepositoryError(err, "table", "")
	}
	if exists {
		return Table{}, ValidationError{Field: "number", Message: "table number already in use"}
	}

	now := s.clock()
	table := Table{
		ID:        s.newID(),
		LocalID:   localID,
		Number:    number,
		State:     domain.TableStateFree,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.tables.Insert(ctx, table); err != nil {
		return Table{}, mapRepositoryError(err, "table", table.ID)
	}
	return table, nil
}

// ListTables returns the tables of the local, each paired with its open order
// when one exists so the terminal can render occupancy and running totals.
func (s *tableService) ListTables(ctx context.Context) ([]TableSummary, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return nil, err
	}

	tables, err := s.tables.ListByLocal(ctx, localID)
	if err != nil {
		return nil, mapRepositoryError(err, "table", "")
	}

	summaries := make([]TableSummary, 0, len(tables))
	for _, table := range tables {
		summary := TableSummary{Table: table}
		if table.State == domain.TableStateOpen {
			order, err := s.orders.FindOpenByTable(ctx, localID, table.ID)
			switch {
			case err == nil:
				orderID := order.ID
				number := order.Number
				summary.OrderID = &orderID
				summary.OrderNumber = &number
				summary.PendingTotal = ComputeSnapshot(order).FinalTotal
				summary.ItemCount = len(order.Items)
			case isRepoNotFound(err):
				// Table marked OPEN without an order is stale state; surface
				// it as free rather than failing the listing.
			default:
				return nil, mapRepositoryError(err, "order", "")
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *tableService) DeleteTable(ctx context.Context, tableID string) error {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return err
	}
	tableID = strings.TrimSpace(tableID)
	if tableID == "" {
		return ValidationError{Field: "tableId", Message: "is required"}
	}

	table, err := s.tables.FindByID(ctx, localID, tableID)
	if err != nil {
		return mapRepositoryError(err, "table", tableID)
	}
	if table.State != domain.TableStateFree {
		return ValidationError{Field: "tableId", Message: "table has an open order"}
	}

	if err := s.tables.Delete(ctx, localID, tableID); err != nil {
		return mapRepositoryError(err, "table", tableID)
	}
	return nil
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
