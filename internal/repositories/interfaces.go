package repositories

import (
	"context"
	"time"

	domain "github.com/comandas/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Tables() TableRepository
	Categories() CategoryRepository
	Products() ProductRepository
	Promotions() PromotionRepository
	Orders() OrderRepository
	StockMovements() StockMovementRepository
	CashMovements() CashMovementRepository
	CashJournals() CashJournalRepository
	Counters() CounterRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TableRepository stores the tables of each local.
type TableRepository interface {
	Insert(ctx context.Context, table domain.Table) error
	Update(ctx context.Context, table domain.Table) error
	Delete(ctx context.Context, localID string, tableID string) error
	FindByID(ctx context.Context, localID string, tableID string) (domain.Table, error)
	ListByLocal(ctx context.Context, localID string) ([]domain.Table, error)
	ExistsByNumber(ctx context.Context, localID string, number int) (bool, error)
}

// CategoryRepository stores catalog categories per local.
type CategoryRepository interface {
	Insert(ctx context.Context, category domain.Category) error
	Update(ctx context.Context, category domain.Category) error
	Delete(ctx context.Context, localID string, categoryID string) error
	FindByID(ctx context.Context, localID string, categoryID string) (domain.Category, error)
	ListByLocal(ctx context.Context, localID string) ([]domain.Category, error)
	// ExistsByName matches case-insensitively on the folded name.
	ExistsByName(ctx context.Context, localID string, nameFold string) (bool, error)
}

// ProductRepository stores catalog products per local.
type ProductRepository interface {
	Insert(ctx context.Context, product domain.Product) error
	Update(ctx context.Context, product domain.Product) error
	Delete(ctx context.Context, localID string, productID string) error
	FindByID(ctx context.Context, localID string, productID string) (domain.Product, error)
	FindByIDs(ctx context.Context, localID string, productIDs []string) (map[string]domain.Product, error)
	ListByLocal(ctx context.Context, localID string, filter ProductListFilter) ([]domain.Product, error)
	// ListByGroup returns every product of a variant group.
	ListByGroup(ctx context.Context, localID string, variantGroupID string) ([]domain.Product, error)
	// ListStructuralModifierIDs returns the ids of every structural modifier
	// product of the local.
	ListStructuralModifierIDs(ctx context.Context, localID string) ([]string, error)
	// ExistsByName matches case-insensitively on the folded name.
	ExistsByName(ctx context.Context, localID string, nameFold string) (bool, error)
}

// ProductListFilter narrows product listings.
type ProductListFilter struct {
	ActiveOnly bool
	CategoryID *string
	ExtrasOnly bool
}

// PromotionRepository stores promotion aggregates (strategy, criteria and
// scope embedded) per local.
type PromotionRepository interface {
	Insert(ctx context.Context, promotion domain.Promotion) error
	Update(ctx context.Context, promotion domain.Promotion) error
	FindByID(ctx context.Context, localID string, promotionID string) (domain.Promotion, error)
	ListByLocal(ctx context.Context, localID string) ([]domain.Promotion, error)
	ListActiveByLocal(ctx context.Context, localID string) ([]domain.Promotion, error)
	// ExistsByName matches case-insensitively on the folded name.
	ExistsByName(ctx context.Context, localID string, nameFold string) (bool, error)
}

// OrderRepository stores order aggregates with their embedded items and payments.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, localID string, orderID string) (domain.Order, error)
	// FindOpenByTable returns the single OPEN order of a table, not-found when
	// the table has none.
	FindOpenByTable(ctx context.Context, localID string, tableID string) (domain.Order, error)
	ListByTableAndState(ctx context.Context, localID string, tableID string, state domain.OrderState) ([]domain.Order, error)
	// ListClosedInWindow scans orders closed within [from, to).
	ListClosedInWindow(ctx context.Context, localID string, from time.Time, to time.Time) ([]domain.Order, error)
}

// StockMovementRepository appends immutable stock ledger rows.
type StockMovementRepository interface {
	Insert(ctx context.Context, movement domain.StockMovement) error
	InsertAll(ctx context.Context, movements []domain.StockMovement) error
	// ListByProduct returns movements for one product, newest first.
	ListByProduct(ctx context.Context, localID string, productID string, limit int) ([]domain.StockMovement, error)
}

// CashMovementRepository stores manual cash drawer movements.
type CashMovementRepository interface {
	Insert(ctx context.Context, movement domain.CashMovement) error
	ListInWindow(ctx context.Context, localID string, from time.Time, to time.Time) ([]domain.CashMovement, error)
}

// CashJournalRepository stores immutable close-of-day records.
type CashJournalRepository interface {
	// Insert fails with a conflict when a journal already exists for the
	// journal's (localID, operativeDate).
	Insert(ctx context.Context, journal domain.CashJournal) error
	ExistsForDate(ctx context.Context, localID string, date domain.OperativeDate) (bool, error)
	ListInRange(ctx context.Context, localID string, from domain.OperativeDate, to domain.OperativeDate) ([]domain.CashJournal, error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}
