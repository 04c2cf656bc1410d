package domain

import (
	"time"
)

// TableState tracks whether a table currently holds an open order.
type TableState string

const (
	// TableStateFree indicates no order is attached to the table.
	TableStateFree TableState = "FREE"
	// TableStateOpen indicates an open order is attached to the table.
	TableStateOpen TableState = "OPEN"
)

// Table is a physical table (or delivery slot) orders attach to.
type Table struct {
	ID        string
	LocalID   string
	Number    int
	State     TableState
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Category groups catalog products and configures variant behaviour.
type Category struct {
	ID       string
	LocalID  string
	Name     string
	Color    string
	Ordering int
	// AdmitsVariants marks categories whose products form variant groups.
	AdmitsVariants bool
	// IsExtraCategory marks categories holding extra (add-on) products.
	IsExtraCategory bool
	// ModifierCategoryID optionally points at the category whose products act
	// as structural modifiers for this one.
	ModifierCategoryID *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Product is a sellable catalog entry scoped to one local.
type Product struct {
	ID         string
	LocalID    string
	Name       string
	Price      Money
	Color      string
	Active     bool
	CategoryID *string
	// VariantGroupID links products that are variants of the same base item.
	VariantGroupID *string
	// StructuralCount is the number of structural units a variant carries
	// (for example patties in a burger). Nil when the product has no variant
	// structure.
	StructuralCount *int
	// IsExtra marks products that may be attached to an order line as extras.
	IsExtra bool
	// IsStructuralModifier marks extras that change the structure of the base
	// product instead of merely accompanying it.
	IsStructuralModifier bool
	// AdmitsExtras controls whether lines of this product accept extras.
	// Only products with AdmitsExtras and not IsExtra may carry extras.
	AdmitsExtras bool
	// RequiresConfiguration marks products the terminal must configure
	// (variant or modifier choice) before adding.
	RequiresConfiguration bool
	// StockTracked enables the stock ledger for this product.
	StockTracked bool
	// CurrentStock is the ledger balance. It may go negative: sales are never
	// blocked by stock.
	CurrentStock int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OrderState is the lifecycle state of an order aggregate.
type OrderState string

const (
	// OrderStateOpen marks a mutable order still attached to its table.
	OrderStateOpen OrderState = "OPEN"
	// OrderStateClosed marks a paid order with a frozen accounting snapshot.
	OrderStateClosed OrderState = "CLOSED"
)

// PaymentMedium enumerates the operator-entered payment media.
type PaymentMedium string

const (
	// PaymentCash is a cash payment.
	PaymentCash PaymentMedium = "CASH"
	// PaymentCard is a debit or credit card payment.
	PaymentCard PaymentMedium = "CARD"
	// PaymentTransfer is a bank transfer payment.
	PaymentTransfer PaymentMedium = "TRANSFER"
	// PaymentQR is a QR wallet payment.
	PaymentQR PaymentMedium = "QR"
	// PaymentOnAccount marks internal consumption (staff meals, owner use).
	// On-account amounts never count as real sales in the cash journal.
	PaymentOnAccount PaymentMedium = "ON_ACCOUNT"
)

// ValidPaymentMedium reports whether m is a known payment medium.
func ValidPaymentMedium(m PaymentMedium) bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentQR, PaymentOnAccount:
		return true
	}
	return false
}

// Payment records one payment medium and amount against a closed order.
type Payment struct {
	Medium PaymentMedium
	Amount Money
	PaidAt time.Time
}

// DiscountKind distinguishes percentage from fixed-amount manual discounts.
type DiscountKind string

const (
	// DiscountPercent applies a percentage of the discounted base.
	DiscountPercent DiscountKind = "PERCENT"
	// DiscountFixed subtracts a fixed amount, clamped to the base.
	DiscountFixed DiscountKind = "FIXED"
)

// ManualDiscount is an operator-entered discount on a line or on the whole
// order. Percent values carry up to two decimals.
type ManualDiscount struct {
	Kind DiscountKind
	// Percent is the percentage (0 < p <= 100) when Kind is DiscountPercent.
	Percent Percent
	// Amount is the fixed amount when Kind is DiscountFixed.
	Amount    Money
	Reason    string
	AppliedBy string
	AppliedAt time.Time
}

// ExtraLine is an extra product attached to an order line.
type ExtraLine struct {
	ProductID string
	Name      string
	UnitPrice Money
	Quantity  int
}

// PromotionApplication is the promotion outcome frozen onto an order line.
type PromotionApplication struct {
	PromotionID string
	Name        string
	// Discount is the total promotional discount on the line, already
	// multiplied across units.
	Discount Money
}

// OrderItem is one line of an order: a product at a frozen unit price plus
// optional extras, observation, promotion outcome and manual discount.
type OrderItem struct {
	ID          string
	ProductID   string
	Name        string
	UnitPrice   Money
	Quantity    int
	Observation string
	Extras      []ExtraLine
	Promotion   *PromotionApplication
	Discount    *ManualDiscount
	AddedAt     time.Time
}

// GrossTotal is the line total before any discount: (unit price + extras) * quantity.
func (it OrderItem) GrossTotal() Money {
	perUnit := it.UnitPrice
	for _, ex := range it.Extras {
		perUnit += ex.UnitPrice * Money(ex.Quantity)
	}
	return perUnit * Money(it.Quantity)
}

// ExtrasPerUnit is the extras surcharge carried by each unit of the line.
func (it OrderItem) ExtrasPerUnit() Money {
	var total Money
	for _, ex := range it.Extras {
		total += ex.UnitPrice * Money(ex.Quantity)
	}
	return total
}

// AccountingSnapshot is the frozen monetary summary written when an order
// closes. It is never recomputed while the order stays closed.
type AccountingSnapshot struct {
	Subtotal       Money
	PromoDiscount  Money
	LineDiscount   Money
	GlobalDiscount Money
	FinalTotal     Money
}

// Order is the aggregate root for one table service.
type Order struct {
	ID        string
	LocalID   string
	TableID   string
	Number    int64
	State     OrderState
	Items     []OrderItem
	Discount  *ManualDiscount
	Payments  []Payment
	Snapshot  *AccountingSnapshot
	OpenedAt  time.Time
	ClosedAt  *time.Time
	UpdatedAt time.Time
}

// Open reports whether the order still accepts mutations.
func (o Order) Open() bool { return o.State == OrderStateOpen }

// ItemByID returns the line with the given id, or nil.
func (o *Order) ItemByID(itemID string) *OrderItem {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return &o.Items[i]
		}
	}
	return nil
}

// StockMovementKind enumerates ledger movement causes.
type StockMovementKind string

const (
	// StockMovementSale records units consumed by closing an order.
	StockMovementSale StockMovementKind = "SALE"
	// StockMovementReopenOrder records units restored by reopening an order.
	StockMovementReopenOrder StockMovementKind = "REOPEN_ORDER"
	// StockMovementManualAdjustment records an operator adjustment.
	StockMovementManualAdjustment StockMovementKind = "MANUAL_ADJUSTMENT"
	// StockMovementGoodsReceipt records incoming merchandise.
	StockMovementGoodsReceipt StockMovementKind = "GOODS_RECEIPT"
)

// StockMovement is one immutable row of the per-product stock ledger.
type StockMovement struct {
	ID        string
	LocalID   string
	ProductID string
	// Quantity is signed: negative consumes stock, positive restores it.
	Quantity   int
	Kind       StockMovementKind
	Reason     string
	OrderID    *string
	OccurredAt time.Time
}

// CashMovementKind enumerates manual cash drawer movements.
type CashMovementKind string

const (
	// CashEgress is money taken out of the drawer (supplier payment, etc.).
	CashEgress CashMovementKind = "EGRESS"
)

// CashMovement records a manual drawer movement with its printed receipt number.
type CashMovement struct {
	ID            string
	LocalID       string
	Kind          CashMovementKind
	Amount        Money
	Description   string
	ReceiptNumber string
	CreatedBy     string
	CreatedAt     time.Time
}

// CashJournal is the immutable close-of-day record for one operative date.
type CashJournal struct {
	ID            string
	LocalID       string
	OperativeDate OperativeDate
	// RealSales excludes internal consumption.
	RealSales           Money
	InternalConsumption Money
	Egresses            Money
	// CashBalance is cash-medium sales minus egresses.
	CashBalance  Money
	OrdersClosed int
	ClosedAt     time.Time
	ClosedBy     string
}

// DailyCashReport is the non-persisted preview of a journal for one date.
type DailyCashReport struct {
	OperativeDate       OperativeDate
	RealSales           Money
	InternalConsumption Money
	Egresses            Money
	CashBalance         Money
	OrdersClosed        int
	ByMedium            map[PaymentMedium]Money
}
