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

const (
	cashEventEgress        = "cash.egress"
	cashEventJournalClosed = "journal.closed"

	defaultDayCutoffHour = 6
)

// CashServiceDeps bundles collaborators required to construct the cash service.
type CashServiceDeps struct {
	Orders      repositories.OrderRepository
	Tables      repositories.TableRepository
	Movements   repositories.CashMovementRepository
	Journals    repositories.CashJournalRepository
	Counters    CounterService
	Local       LocalContextProvider
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	// Location and CutoffHour define the operative-date derivation.
	Location   *time.Location
	CutoffHour int
	Events     EventPublisher
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type cashService struct {
	orders     repositories.OrderRepository
	tables     repositories.TableRepository
	movements  repositories.CashMovementRepository
	journals   repositories.CashJournalRepository
	counters   CounterService
	local      LocalContextProvider
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	location   *time.Location
	cutoffHour int
	events     EventPublisher
	logger     func(context.Context, string, map[string]any)
}

// NewCashService wires dependencies into a concrete CashService implementation.
func NewCashService(deps CashServiceDeps) (CashService, error) {
	if deps.Orders == nil {
		return nil, errors.New("cash service: order repository is required")
	}
	if deps.Tables == nil {
		return nil, errors.New("cash service: table repository is required")
	}
	if deps.Movements == nil {
		return nil, errors.New("cash service: cash movement repository is required")
	}
	if deps.Journals == nil {
		return nil, errors.New("cash service: cash journal repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("cash service: counter service is required")
	}
	if deps.Local == nil {
		return nil, errors.New("cash service: local context provider is required")
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

	location := deps.Location
	if location == nil {
		location = time.UTC
	}

	cutoff := deps.CutoffHour
	if cutoff <= 0 || cutoff > 23 {
		cutoff = defaultDayCutoffHour
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &cashService{
		orders:     deps.Orders,
		tables:     deps.Tables,
		movements:  deps.Movements,
		journals:   deps.Journals,
		counters:   deps.Counters,
		local:      deps.Local,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:      idGen,
		location:   location,
		cutoffHour: cutoff,
		events:     deps.Events,
		logger:     logger,
	}, nil
}

// RegisterEgress records money taken out of the drawer with a sequential
// receipt number.
func (s *cashService) RegisterEgress(ctx context.Context, cmd RegisterEgressCommand) (CashMovement, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return CashMovement{}, err
	}
	if cmd.Amount <= 0 {
		return CashMovement{}, ValidationError{Field: "amount", Message: "must be positive"}
	}
	description := strings.TrimSpace(cmd.Description)
	if description == "" {
		return CashMovement{}, ValidationError{Field: "description", Message: "is required"}
	}

	receipt, err := s.counters.NextEgressReceipt(ctx, localID)
	if err != nil {
		return CashMovement{}, err
	}

	now := s.clock()
	movement := CashMovement{
		ID:            s.newID(),
		LocalID:       localID,
		Kind:          domain.CashEgress,
		Amount:        cmd.Amount,
		Description:   description,
		ReceiptNumber: receipt,
		CreatedBy:     strings.TrimSpace(cmd.CreatedBy),
		CreatedAt:     now,
	}

	if err := s.movements.Insert(ctx, movement); err != nil {
		return CashMovement{}, mapRepositoryError(err, "cash movement", movement.ID)
	}

	s.publish(ctx, DomainEvent{
		Type:       cashEventEgress,
		LocalID:    localID,
		Subject:    movement.ID,
		OccurredAt: now,
		Metadata: map[string]any{
			"amount":  movement.Amount.String(),
			"receipt": movement.ReceiptNumber,
		},
	})

	return movement, nil
}

// DailyReport aggregates the window of the given operative date without
// persisting anything or enforcing the single-close rule.
func (s *cashService) DailyReport(ctx context.Context, date OperativeDate) (DailyCashReport, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return DailyCashReport{}, err
	}
	if _, err := domain.ParseOperativeDate(string(date)); err != nil {
		return DailyCashReport{}, ValidationError{Field: "date", Message: err.Error()}
	}

	totals, err := s.aggregateWindow(ctx, localID, date)
	if err != nil {
		return DailyCashReport{}, err
	}

	return DailyCashReport{
		OperativeDate:       date,
		RealSales:           totals.realSales,
		InternalConsumption: totals.internalConsumption,
		Egresses:            totals.egresses,
		CashBalance:         totals.cashBalance,
		OrdersClosed:        totals.ordersClosed,
		ByMedium:            totals.byMedium,
	}, nil
}

// CloseDay derives the operative date from the clock, verifies the
// single-close invariant and persists the immutable journal.
func (s *cashService) CloseDay(ctx context.Context, closedBy string) (CashJournal, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return CashJournal{}, err
	}

	now := s.clock()
	date := domain.OperativeDateOf(now, s.location, s.cutoffHour)

	tables, err := s.tables.ListByLocal(ctx, localID)
	if err != nil {
		return CashJournal{}, mapRepositoryError(err, "table", "")
	}
	openCount := 0
	for _, table := range tables {
		if table.State == domain.TableStateOpen {
			openCount++
		}
	}
	if openCount > 0 {
		return CashJournal{}, TablesStillOpenError{Count: openCount}
	}

	exists, err := s.journals.ExistsForDate(ctx, localID, date)
	if err != nil {
		return CashJournal{}, mapRepositoryError(err, "cash journal", "")
	}
	if exists {
		return CashJournal{}, DayAlreadyClosedError{Date: date}
	}

	totals, err := s.aggregateWindow(ctx, localID, date)
	if err != nil {
		return CashJournal{}, err
	}

	journal := CashJournal{
		ID:                  s.newID(),
		LocalID:             localID,
		OperativeDate:       date,
		RealSales:           totals.realSales,
		InternalConsumption: totals.internalConsumption,
		Egresses:            totals.egresses,
		CashBalance:         totals.cashBalance,
		OrdersClosed:        totals.ordersClosed,
		ClosedAt:            now,
		ClosedBy:            strings.TrimSpace(closedBy),
	}

	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		return s.journals.Insert(txCtx, journal)
	})
	if err != nil {
		if isRepoConflict(err) {
			return CashJournal{}, DayAlreadyClosedError{Date: date}
		}
		return CashJournal{}, mapRepositoryError(err, "cash journal", journal.ID)
	}

	s.publish(ctx, DomainEvent{
		Type:       cashEventJournalClosed,
		LocalID:    localID,
		Subject:    journal.ID,
		OccurredAt: now,
		Metadata: map[string]any{
			"date":       string(date),
			"realSales":  journal.RealSales.String(),
			"ordersDone": journal.OrdersClosed,
		},
	})

	return journal, nil
}

func (s *cashService) ListJournals(ctx context.Context, from OperativeDate, to OperativeDate) ([]CashJournal, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := domain.ParseOperativeDate(string(from)); err != nil {
		return nil, ValidationError{Field: "from", Message: err.Error()}
	}
	if _, err := domain.ParseOperativeDate(string(to)); err != nil {
		return nil, ValidationError{Field: "to", Message: err.Error()}
	}

	journals, err := s.journals.ListInRange(ctx, localID, from, to)
	if err != nil {
		return nil, mapRepositoryError(err, "cash journal", "")
	}
	return journals, nil
}

type windowTotals struct {
	realSales           Money
	internalConsumption Money
	egresses            Money
	cashBalance         Money
	ordersClosed        int
	byMedium            map[PaymentMedium]Money
}

// aggregateWindow scans the closed orders and cash movements of an operative
// date window and folds them into the journal totals.
func (s *cashService) aggregateWindow(ctx context.Context, localID string, date OperativeDate) (windowTotals, error) {
	from, to := date.Window(s.location, s.cutoffHour)

	orders, err := s.orders.ListClosedInWindow(ctx, localID, from, to)
	if err != nil {
		return windowTotals{}, mapRepositoryError(err, "order", "")
	}
	movements, err := s.movements.ListInWindow(ctx, localID, from, to)
	if err != nil {
		return windowTotals{}, mapRepositoryError(err, "cash movement", "")
	}

	totals := windowTotals{
		ordersClosed: len(orders),
		byMedium:     make(map[PaymentMedium]Money),
	}

	var cashSales Money
	for _, order := range orders {
		for _, payment := range order.Payments {
			totals.byMedium[payment.Medium] += payment.Amount
			if payment.Medium == domain.PaymentOnAccount {
				totals.internalConsumption += payment.Amount
				continue
			}
			totals.realSales += payment.Amount
			if payment.Medium == domain.PaymentCash {
				cashSales += payment.Amount
			}
		}
	}
	for _, movement := range movements {
		totals.egresses += movement.Amount
	}
	totals.cashBalance = cashSales - totals.egresses

	return totals, nil
}

func (s *cashService) publish(ctx context.Context, event DomainEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger(ctx, "cash.event.publish.failed", map[string]any{
			"type":    event.Type,
			"subject": event.Subject,
			"error":   err.Error(),
		})
	}
}

func isRepoConflict(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}
