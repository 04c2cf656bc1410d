package services

import (
	"context"
	"time"

	domain "github.com/comandas/api/internal/domain"
	"github.com/comandas/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Money                = domain.Money
	Percent              = domain.Percent
	OperativeDate        = domain.OperativeDate
	Table                = domain.Table
	TableState           = domain.TableState
	Category             = domain.Category
	Product              = domain.Product
	Order                = domain.Order
	OrderItem            = domain.OrderItem
	ExtraLine            = domain.ExtraLine
	Payment              = domain.Payment
	PaymentMedium        = domain.PaymentMedium
	DiscountKind         = domain.DiscountKind
	ManualDiscount       = domain.ManualDiscount
	AccountingSnapshot   = domain.AccountingSnapshot
	PromotionApplication = domain.PromotionApplication
	Promotion            = domain.Promotion
	PromotionState       = domain.PromotionState
	Strategy             = domain.Strategy
	ActivationCriterion  = domain.ActivationCriterion
	ScopeItem            = domain.ScopeItem
	StockMovement        = domain.StockMovement
	StockMovementKind    = domain.StockMovementKind
	CashMovement         = domain.CashMovement
	CashJournal          = domain.CashJournal
	DailyCashReport      = domain.DailyCashReport
	ProductListFilter    = repositories.ProductListFilter
)

// LocalContextProvider supplies the tenant of the current request. Every
// service operation is scoped to the local it returns.
type LocalContextProvider interface {
	CurrentLocalID(ctx context.Context) (string, error)
}

// EventPublisher emits domain events for out-of-process consumers (printing,
// reporting). Publish failures never abort the originating operation.
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
}

// DomainEvent is one emitted lifecycle notification.
type DomainEvent struct {
	Type       string
	LocalID    string
	Subject    string
	OccurredAt time.Time
	Metadata   map[string]any
}

// TableService manages the dining tables of a local.
type TableService interface {
	CreateTable(ctx context.Context, number int) (Table, error)
	ListTables(ctx context.Context) ([]TableSummary, error)
	DeleteTable(ctx context.Context, tableID string) error
}

// TableSummary pairs a table with its open order, when one exists.
type TableSummary struct {
	Table        Table
	OrderID      *string
	OrderNumber  *int64
	PendingTotal Money
	ItemCount    int
}

// CatalogService manages categories, products and the stock ledger of a local.
type CatalogService interface {
	CreateCategory(ctx context.Context, cmd UpsertCategoryCommand) (Category, error)
	UpdateCategory(ctx context.Context, cmd UpsertCategoryCommand) (Category, error)
	DeleteCategory(ctx context.Context, categoryID string) error
	ListCategories(ctx context.Context) ([]Category, error)

	CreateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
	UpdateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
	DeleteProduct(ctx context.Context, productID string) error
	GetProduct(ctx context.Context, productID string) (Product, error)
	ListProducts(ctx context.Context, filter ProductListFilter) ([]Product, error)

	AdjustStock(ctx context.Context, cmd StockAdjustCommand) (Product, error)
	ListStockMovements(ctx context.Context, productID string, limit int) ([]StockMovement, error)
}

// OrderService drives the order lifecycle of a table from open to close.
type OrderService interface {
	OpenTable(ctx context.Context, tableID string) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	GetOpenOrder(ctx context.Context, tableID string) (Order, error)
	AddItem(ctx context.Context, cmd AddItemCommand) (Order, error)
	ModifyQuantity(ctx context.Context, cmd ModifyQuantityCommand) (Order, error)
	RemoveItem(ctx context.Context, cmd RemoveItemCommand) (Order, error)
	ApplyLineDiscount(ctx context.Context, cmd LineDiscountCommand) (Order, error)
	ApplyOrderDiscount(ctx context.Context, cmd OrderDiscountCommand) (Order, error)
	Close(ctx context.Context, cmd CloseOrderCommand) (Order, error)
	Reopen(ctx context.Context, orderID string) (Order, error)
	Correct(ctx context.Context, cmd CorrectOrderCommand) (Order, error)
	KitchenSlip(ctx context.Context, orderID string) (KitchenSlip, error)
	Receipt(ctx context.Context, orderID string) (Receipt, error)
}

// PromotionService manages the automatic discount rules of a local.
type PromotionService interface {
	CreatePromotion(ctx context.Context, cmd UpsertPromotionCommand) (Promotion, error)
	UpdatePromotion(ctx context.Context, cmd UpsertPromotionCommand) (Promotion, error)
	SetPromotionState(ctx context.Context, promotionID string, state PromotionState) (Promotion, error)
	GetPromotion(ctx context.Context, promotionID string) (Promotion, error)
	ListPromotions(ctx context.Context) ([]Promotion, error)
}

// CashService registers drawer movements and closes the operative day.
type CashService interface {
	RegisterEgress(ctx context.Context, cmd RegisterEgressCommand) (CashMovement, error)
	DailyReport(ctx context.Context, date OperativeDate) (DailyCashReport, error)
	CloseDay(ctx context.Context, closedBy string) (CashJournal, error)
	ListJournals(ctx context.Context, from OperativeDate, to OperativeDate) ([]CashJournal, error)
}

// CounterService allocates per-local monotonic sequence values.
type CounterService interface {
	NextOrderNumber(ctx context.Context, localID string) (int64, error)
	NextEgressReceipt(ctx context.Context, localID string) (string, error)
}

// Command and DTO definitions ------------------------------------------------

type UpsertCategoryCommand struct {
	CategoryID         string
	Name               string
	Color              string
	Ordering           int
	AdmitsVariants     bool
	IsExtraCategory    bool
	ModifierCategoryID *string
}

type UpsertProductCommand struct {
	ProductID             string
	Name                  string
	Price                 Money
	Color                 string
	Active                bool
	CategoryID            *string
	VariantGroupID        *string
	StructuralCount       *int
	IsExtra               bool
	IsStructuralModifier  bool
	AdmitsExtras          bool
	RequiresConfiguration bool
	StockTracked          bool
}

type StockAdjustCommand struct {
	ProductID string
	Quantity  int
	Kind      StockMovementKind
	Reason    string
}

// ExtraRequest selects an extra product for an order line.
type ExtraRequest struct {
	ProductID string
	Quantity  int
}

type AddItemCommand struct {
	OrderID     string
	ProductID   string
	Quantity    int
	Observation string
	Extras      []ExtraRequest
}

type ModifyQuantityCommand struct {
	OrderID  string
	ItemID   string
	Quantity int
}

type RemoveItemCommand struct {
	OrderID string
	ItemID  string
}

// DiscountInput is an operator-entered manual discount.
type DiscountInput struct {
	Kind    DiscountKind
	Percent Percent
	Amount  Money
	Reason  string
	UserID  string
}

type LineDiscountCommand struct {
	OrderID  string
	ItemID   string
	Discount DiscountInput
}

type OrderDiscountCommand struct {
	OrderID  string
	Discount DiscountInput
}

// PaymentInput is one entry of the payment split at close.
type PaymentInput struct {
	Medium PaymentMedium
	Amount Money
}

type CloseOrderCommand struct {
	OrderID  string
	Payments []PaymentInput
}

// CorrectOrderCommand adjusts a CLOSED order without reopening it. Quantities
// maps item ids to their corrected quantity; Payments replaces the split.
type CorrectOrderCommand struct {
	OrderID    string
	Quantities map[string]int
	Payments   []PaymentInput
}

type UpsertPromotionCommand struct {
	PromotionID string
	Name        string
	Description string
	Priority    int
	State       PromotionState
	Strategy    Strategy
	Criteria    []ActivationCriterion
	Scope       []ScopeItem
}

type RegisterEgressCommand struct {
	Amount      Money
	Description string
	CreatedBy   string
}

// KitchenSlip is the read model printed for the kitchen: what to prepare,
// without prices.
type KitchenSlip struct {
	OrderID     string
	OrderNumber int64
	TableNumber int
	Lines       []KitchenLine
	PrintedAt   time.Time
}

type KitchenLine struct {
	Name        string
	Quantity    int
	Observation string
	Extras      []string
}

// Receipt is the customer-facing read model with priced lines and the payment
// split.
type Receipt struct {
	OrderID     string
	OrderNumber int64
	TableNumber int
	Lines       []ReceiptLine
	Totals      AccountingSnapshot
	Payments    []Payment
	IssuedAt    time.Time
}

type ReceiptLine struct {
	Name      string
	Quantity  int
	UnitPrice Money
	Extras    []ExtraLine
	Promotion *PromotionApplication
	Discount  Money
	Total     Money
}

// noopUnitOfWork runs the function without a transactional boundary.
type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
