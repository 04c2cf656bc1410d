package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/comandas/api/internal/domain"
	pfirestore "github.com/comandas/api/internal/platform/firestore"
	"github.com/comandas/api/internal/repositories"
)

const ordersCollection = "orders"

type orderDocument struct {
	ID        string                  `firestore:"-"`
	LocalID   string                  `firestore:"localId"`
	TableID   string                  `firestore:"tableId"`
	Number    int64                   `firestore:"number"`
	State     string                  `firestore:"state"`
	Items     []orderItemDocument     `firestore:"items"`
	Discount  *manualDiscountDocument `firestore:"discount,omitempty"`
	Payments  []paymentDocument       `firestore:"payments,omitempty"`
	Snapshot  *snapshotDocument       `firestore:"snapshot,omitempty"`
	OpenedAt  time.Time               `firestore:"openedAt"`
	ClosedAt  *time.Time              `firestore:"closedAt,omitempty"`
	UpdatedAt time.Time               `firestore:"updatedAt"`
}

type orderItemDocument struct {
	ID          string                  `firestore:"id"`
	ProductID   string                  `firestore:"productId"`
	Name        string                  `firestore:"name"`
	UnitPrice   int64                   `firestore:"unitPrice"`
	Quantity    int                     `firestore:"quantity"`
	Observation string                  `firestore:"observation,omitempty"`
	Extras      []extraLineDocument     `firestore:"extras,omitempty"`
	Promotion   *promoSnapshotDocument  `firestore:"promotion,omitempty"`
	Discount    *manualDiscountDocument `firestore:"discount,omitempty"`
	AddedAt     time.Time               `firestore:"addedAt"`
}

type extraLineDocument struct {
	ProductID string `firestore:"productId"`
	Name      string `firestore:"name"`
	UnitPrice int64  `firestore:"unitPrice"`
	Quantity  int    `firestore:"quantity"`
}

type promoSnapshotDocument struct {
	PromotionID string `firestore:"promotionId"`
	Name        string `firestore:"name"`
	Discount    int64  `firestore:"discount"`
}

type manualDiscountDocument struct {
	Kind      string    `firestore:"kind"`
	Percent   int64     `firestore:"percent,omitempty"`
	Amount    int64     `firestore:"amount,omitempty"`
	Reason    string    `firestore:"reason,omitempty"`
	AppliedBy string    `firestore:"appliedBy,omitempty"`
	AppliedAt time.Time `firestore:"appliedAt"`
}

type paymentDocument struct {
	Medium string    `firestore:"medium"`
	Amount int64     `firestore:"amount"`
	PaidAt time.Time `firestore:"paidAt"`
}

type snapshotDocument struct {
	Subtotal       int64 `firestore:"subtotal"`
	PromoDiscount  int64 `firestore:"promoDiscount"`
	LineDiscount   int64 `firestore:"lineDiscount"`
	GlobalDiscount int64 `firestore:"globalDiscount"`
	FinalTotal     int64 `firestore:"finalTotal"`
}

// OrderRepository persists order aggregates with items, payments and the
// accounting snapshot embedded in a single document.
type OrderRepository struct {
	base *pfirestore.BaseRepository[domain.Order]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository: firestore provider is required")
	}

	encoder := func(ctx context.Context, value domain.Order) (any, error) {
		return encodeOrderDocument(value), nil
	}
	decoder := func(ctx context.Context, snap *firestore.DocumentSnapshot) (domain.Order, error) {
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.Order{}, err
		}
		doc.ID = snap.Ref.ID
		return decodeOrderDocument(doc), nil
	}

	base := pfirestore.NewBaseRepository[domain.Order](provider, ordersCollection, encoder, decoder)
	return &OrderRepository{base: base}, nil
}

// Insert stores a new order document, failing on id collision.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	order.ID = strings.TrimSpace(order.ID)
	if order.ID == "" {
		return errors.New("order repository: id is required")
	}

	docRef, err := r.base.DocumentRef(ctx, order.ID)
	if err != nil {
		return err
	}
	if _, err := docRef.Create(ctx, encodeOrderDocument(order)); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// Update replaces the order document state.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	order.ID = strings.TrimSpace(order.ID)
	if order.ID == "" {
		return errors.New("order repository: id is required")
	}

	if _, err := r.base.Set(ctx, order.ID, order); err != nil {
		return err
	}
	return nil
}

// FindByID loads an order of the local.
func (r *OrderRepository) FindByID(ctx context.Context, localID string, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: id is required")
	}

	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if doc.Data.LocalID != strings.TrimSpace(localID) {
		return domain.Order{}, pfirestore.WrapError("orders.find", status.Errorf(codes.NotFound, "order %s not found", orderID))
	}
	return doc.Data, nil
}

// FindOpenByTable returns the single open order of a table.
func (r *OrderRepository) FindOpenByTable(ctx context.Context, localID string, tableID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	tableID = strings.TrimSpace(tableID)
	if tableID == "" {
		return domain.Order{}, errors.New("order repository: table id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("localId", "==", strings.TrimSpace(localID)).
			Where("tableId", "==", tableID).
			Where("state", "==", string(domain.OrderStateOpen)).
			Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.WrapError("orders.open_by_table", status.Errorf(codes.NotFound, "no open order on table %s", tableID))
	}
	return docs[0].Data, nil
}

// ListByTableAndState returns the table's orders in the given state, newest first.
func (r *OrderRepository) ListByTableAndState(ctx context.Context, localID string, tableID string, state domain.OrderState) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("localId", "==", strings.TrimSpace(localID)).
			Where("tableId", "==", strings.TrimSpace(tableID)).
			Where("state", "==", string(state)).
			OrderBy("openedAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, doc.Data)
	}
	return orders, nil
}

// ListClosedInWindow scans orders closed within [from, to), ordered by close time.
func (r *OrderRepository) ListClosedInWindow(ctx context.Context, localID string, from time.Time, to time.Time) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("localId", "==", strings.TrimSpace(localID)).
			Where("state", "==", string(domain.OrderStateClosed)).
			Where("closedAt", ">=", from.UTC()).
			Where("closedAt", "<", to.UTC()).
			OrderBy("closedAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, doc.Data)
	}
	return orders, nil
}

func encodeOrderDocument(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, encodeOrderItemDocument(item))
	}

	payments := make([]paymentDocument, 0, len(order.Payments))
	for _, payment := range order.Payments {
		payments = append(payments, paymentDocument{
			Medium: string(payment.Medium),
			Amount: int64(payment.Amount),
			PaidAt: payment.PaidAt.UTC(),
		})
	}

	var snapshot *snapshotDocument
	if order.Snapshot != nil {
		snapshot = &snapshotDocument{
			Subtotal:       int64(order.Snapshot.Subtotal),
			PromoDiscount:  int64(order.Snapshot.PromoDiscount),
			LineDiscount:   int64(order.Snapshot.LineDiscount),
			GlobalDiscount: int64(order.Snapshot.GlobalDiscount),
			FinalTotal:     int64(order.Snapshot.FinalTotal),
		}
	}

	return orderDocument{
		LocalID:   strings.TrimSpace(order.LocalID),
		TableID:   strings.TrimSpace(order.TableID),
		Number:    order.Number,
		State:     string(order.State),
		Items:     items,
		Discount:  encodeManualDiscountDocument(order.Discount),
		Payments:  payments,
		Snapshot:  snapshot,
		OpenedAt:  order.OpenedAt.UTC(),
		ClosedAt:  cloneTimePtr(order.ClosedAt),
		UpdatedAt: order.UpdatedAt.UTC(),
	}
}

func encodeOrderItemDocument(item domain.OrderItem) orderItemDocument {
	extras := make([]extraLineDocument, 0, len(item.Extras))
	for _, extra := range item.Extras {
		extras = append(extras, extraLineDocument{
			ProductID: extra.ProductID,
			Name:      extra.Name,
			UnitPrice: int64(extra.UnitPrice),
			Quantity:  extra.Quantity,
		})
	}

	var promotion *promoSnapshotDocument
	if item.Promotion != nil {
		promotion = &promoSnapshotDocument{
			PromotionID: item.Promotion.PromotionID,
			Name:        item.Promotion.Name,
			Discount:    int64(item.Promotion.Discount),
		}
	}

	return orderItemDocument{
		ID:          item.ID,
		ProductID:   item.ProductID,
		Name:        item.Name,
		UnitPrice:   int64(item.UnitPrice),
		Quantity:    item.Quantity,
		Observation: item.Observation,
		Extras:      extras,
		Promotion:   promotion,
		Discount:    encodeManualDiscountDocument(item.Discount),
		AddedAt:     item.AddedAt.UTC(),
	}
}

func encodeManualDiscountDocument(discount *domain.ManualDiscount) *manualDiscountDocument {
	if discount == nil {
		return nil
	}
	return &manualDiscountDocument{
		Kind:      string(discount.Kind),
		Percent:   int64(discount.Percent),
		Amount:    int64(discount.Amount),
		Reason:    discount.Reason,
		AppliedBy: discount.AppliedBy,
		AppliedAt: discount.AppliedAt.UTC(),
	}
}

func decodeOrderDocument(doc orderDocument) domain.Order {
	items := make([]domain.OrderItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, decodeOrderItemDocument(item))
	}

	payments := make([]domain.Payment, 0, len(doc.Payments))
	for _, payment := range doc.Payments {
		payments = append(payments, domain.Payment{
			Medium: domain.PaymentMedium(payment.Medium),
			Amount: domain.Money(payment.Amount),
			PaidAt: payment.PaidAt.UTC(),
		})
	}

	var snapshot *domain.AccountingSnapshot
	if doc.Snapshot != nil {
		snapshot = &domain.AccountingSnapshot{
			Subtotal:       domain.Money(doc.Snapshot.Subtotal),
			PromoDiscount:  domain.Money(doc.Snapshot.PromoDiscount),
			LineDiscount:   domain.Money(doc.Snapshot.LineDiscount),
			GlobalDiscount: domain.Money(doc.Snapshot.GlobalDiscount),
			FinalTotal:     domain.Money(doc.Snapshot.FinalTotal),
		}
	}

	return domain.Order{
		ID:        doc.ID,
		LocalID:   doc.LocalID,
		TableID:   doc.TableID,
		Number:    doc.Number,
		State:     domain.OrderState(doc.State),
		Items:     items,
		Discount:  decodeManualDiscountDocument(doc.Discount),
		Payments:  payments,
		Snapshot:  snapshot,
		OpenedAt:  doc.OpenedAt.UTC(),
		ClosedAt:  cloneTimePtr(doc.ClosedAt),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}
}

func decodeOrderItemDocument(doc orderItemDocument) domain.OrderItem {
	extras := make([]domain.ExtraLine, 0, len(doc.Extras))
	for _, extra := range doc.Extras {
		extras = append(extras, domain.ExtraLine{
			ProductID: extra.ProductID,
			Name:      extra.Name,
			UnitPrice: domain.Money(extra.UnitPrice),
			Quantity:  extra.Quantity,
		})
	}

	var promotion *domain.PromotionApplication
	if doc.Promotion != nil {
		promotion = &domain.PromotionApplication{
			PromotionID: doc.Promotion.PromotionID,
			Name:        doc.Promotion.Name,
			Discount:    domain.Money(doc.Promotion.Discount),
		}
	}

	return domain.OrderItem{
		ID:          doc.ID,
		ProductID:   doc.ProductID,
		Name:        doc.Name,
		UnitPrice:   domain.Money(doc.UnitPrice),
		Quantity:    doc.Quantity,
		Observation: doc.Observation,
		Extras:      extras,
		Promotion:   promotion,
		Discount:    decodeManualDiscountDocument(doc.Discount),
		AddedAt:     doc.AddedAt.UTC(),
	}
}

func decodeManualDiscountDocument(doc *manualDiscountDocument) *domain.ManualDiscount {
	if doc == nil {
		return nil
	}
	return &domain.ManualDiscount{
		Kind:      domain.DiscountKind(doc.Kind),
		Percent:   domain.Percent(doc.Percent),
		Amount:    domain.Money(doc.Amount),
		Reason:    doc.Reason,
		AppliedBy: doc.AppliedBy,
		AppliedAt: doc.AppliedAt.UTC(),
	}
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
