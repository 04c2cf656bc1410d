package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/comandas/api/internal/domain"
	"github.com/comandas/api/internal/repositories"
)

const (
	orderEventOpened    = "order.opened"
	orderEventClosed    = "order.closed"
	orderEventReopened  = "order.reopened"
	orderEventCorrected = "order.corrected"
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Tables      repositories.TableRepository
	Products    repositories.ProductRepository
	Promotions  repositories.PromotionRepository
	Movements   repositories.StockMovementRepository
	Counters    CounterService
	Local       LocalContextProvider
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Location    *time.Location
	Events      EventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	tables     repositories.TableRepository
	products   repositories.ProductRepository
	promotions repositories.PromotionRepository
	movements  repositories.StockMovementRepository
	counters   CounterService
	local      LocalContextProvider
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	engine     promotionEngine
	ledger     stockLedger
	events     EventPublisher
	logger     func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Tables == nil {
		return nil, errors.New("order service: table repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order service: product repository is required")
	}
	if deps.Promotions == nil {
		return nil, errors.New("order service: promotion repository is required")
	}
	if deps.Movements == nil {
		return nil, errors.New("order service: stock movement repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter service is required")
	}
	if deps.Local == nil {
		return nil, errors.New("order service: local context provider is required")
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

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:     deps.Orders,
		tables:     deps.Tables,
		products:   deps.Products,
		promotions: deps.Promotions,
		movements:  deps.Movements,
		counters:   deps.Counters,
		local:      deps.Local,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		engine: newPromotionEngine(deps.Location),
		ledger: stockLedger{newID: idGen},
		events: deps.Events,
		logger: logger,
	}, nil
}

// OpenTable returns the open order of the table, creating one when the table
// is free. Opening an already-open table is idempotent.
func (s *orderService) OpenTable(ctx context.Context, tableID string) (Order, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return Order{}, err
	}
	tableID = strings.TrimSpace(tableID)
	if tableID == "" {
		return Order{}, ValidationError{Field: "tableId", Message: "is required"}
	}

	table, err := s.tables.FindByID(ctx, localID, tableID)
	if err != nil {
		return Order{}, mapRepositoryError(err, "table", tableID)
	}

	existing, err := s.orders.FindOpenByTable(ctx, localID, tableID)
	if err == nil {
		return existing, nil
	}
	if !isRepoNotFound(err) {
		return Order{}, mapRepositoryError(err, "order", "")
	}

	number, err := s.counters.NextOrderNumber(ctx, localID)
	if err != nil {
		return Order{}, err
	}

	now := s.clock()
	order := Order{
		ID:        s.newID(),
		LocalID:   localID,
		TableID:   tableID,
		Number:    number,
		State:     domain.OrderStateOpen,
		OpenedAt:  now,
		UpdatedAt: now,
	}

	table.State = domain.TableStateOpen
	table.UpdatedAt = now

	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Insert(txCtx, order); err != nil {
			return mapRepositoryError(err, "order", order.ID)
		}
		if err := s.tables.Update(txCtx, table); err != nil {
			return mapRepositoryError(err, "table", tableID)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publish(ctx, DomainEvent{
		Type:       orderEventOpened,
		LocalID:    localID,
		Subject:    order.ID,
		OccurredAt: now,
		Metadata:   map[string]any{"table": table.Number, "number": order.Number},
	})

	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return Order{}, err
	}
	return s.findOrder(ctx, localID, orderID)
}

func (s *orderService) GetOpenOrder(ctx context.Context, tableID string) (Order, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return Order{}, err
	}
	tableID = strings.TrimSpace(tableID)
	if tableID == "" {
		return Order{}, ValidationError{Field: "tableId", Message: "is required"}
	}

	order, err := s.orders.FindOpenByTable(ctx, localID, tableID)
	if err != nil {
		return Order{}, mapRepositoryError(err, "order", "table "+tableID)
	}
	return order, nil
}

// AddItem appends a product line to an open order, running the variant
// normalizer and the promotion engine. A line identical to an existing one
// merges into it instead.
func (s *orderService) AddItem(ctx context.Context, cmd AddItemCommand) (Order, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return Order{}, err
	}

	order, err := s.findOrder(ctx, localID, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}
	if !order.Open() {
		return Order{}, fmt.Errorf("%w: order %s", ErrOrderImmutable, order.ID)
	}
	if cmd.Quantity < 1 {
		return Order{}, ValidationError{Field: "quantity", Message: "must be at least 1"}
	}

	product, err := s.products.FindByID(ctx, localID, strings.TrimSpace(cmd.ProductID))
	if err != nil {
		return Order{}, mapRepositoryError(err, "product", cmd.ProductID)
	}
	if !product.Active {
		return Order{}, ValidationError{Field: "productId", Message: "product is inactive"}
	}
	if product.IsExtra {
		return Order{}, ValidationError{Field: "productId", Message: "extras cannot be ordered as lines"}
	}

	extras, err := s.resolveExtras(ctx, localID, product, cmd.Extras)
	if err != nil {
		return Order{}, err
	}

	product, extras, err = s.normalizeSelection(ctx, localID, product, extras)
	if err != nil {
		return Order{}, err
	}

	now := s.clock()
	item := OrderItem{
		ID:          s.newID(),
		ProductID:   product.ID,
		Name:        product.Name,
		UnitPrice:   product.Price,
		Quantity:    cmd.Quantity,
		Observation: strings.TrimSpace(cmd.Observation),
		Extras:      extraLines(extras),
		AddedAt:     now,
	}

	promotions, categoryOf, err := s.loadPromotionContext(ctx, localID, &order, item.ProductID)
	if err != nil {
		return Order{}, err
	}

	if target := mergeTarget(&order, item); target != nil {
		target.Quantity += item.Quantity
		s.engine.Recompute(&order, promotions, categoryOf, now)
	} else {
		item.Promotion = s.engine.EvaluateLine(promotions, &order, item, categoryOf, now)
		order.Items = append(order.Items, item)
	}
	order.UpdatedAt = now

	if err := s.saveOrder(ctx, order); err != nil {
		return Order{}, err
	}
	return order, nil
}

func (s *orderService) ModifyQuantity(ctx context.Context, cmd ModifyQuantityCommand) (Order, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return Order{}, err
	}

	order, err := s.findOrder(ctx, localID, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}
	if !order.Open() {
		return Order{}, fmt.Errorf("%w: order %s", ErrOrderImmutable, order.ID)
	}
	if cmd.Quantity < 1 {
		return Order{}, ValidationError{Field: "quantity", Message: "must be at least 1"}
	}

	item := order.ItemByID(strings.TrimSpace(cmd.ItemID))
	if item == nil {
		return Order{}, NotFoundError{Kind: "order item", ID: cmd.ItemID}
	}
	item.Quantity = cmd.Quantity

	if err := s.recomputeAndSave(ctx, localID, &order); err != nil {
		return Order{}, err
	}
	return order, nil
}

func (s *orderService) RemoveItem(ctx context.Context, cmd RemoveItemCommand) (Order, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return Order{}, err
	}

	order, err := s.findOrder(ctx, localID, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}
	if !order.Open() {
		return Order{}, fmt.Errorf("%w: order %s", ErrOrderImmutable, order.ID)
	}

	itemID := strings.TrimSpace(cmd.ItemID)
	index := -1
	for i := range order.Items {
		if order.Items[i].ID == itemID {
			index = i
			break
		}
	}
	if index < 0 {
		return Order{}, NotFoundError{Kind: "order item", ID: cmd.ItemID}
	}
	order.Items = append(order.Items[:index], order.Items[index+1:]...)

	if err := s.recomputeAndSave(ctx, localID, &order); err != nil {
		return Order{}, err
	}
	return order, nil
}

func (s *orderService) ApplyLineDiscount(ctx context.Context, cmd LineDiscountCommand) (Order, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return Order{}, err
	}

	order, err := s.findOrder(ctx, localID, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}
	if !order.Open() {
		return Order{}, fmt.Errorf("%w: order %s", ErrOrderImmutable, order.ID)
	}

	item := order.ItemByID(strings.TrimSpace(cmd.ItemID))
	if item == nil {
		return Order{}, NotFoundError{Kind: "order item", ID: cmd.ItemID}
	}

	now := s.clock()
	discount, err := buildManualDiscount(cmd.Discount, now)
	if err != nil {
		return Order{}, err
	}

	amounts := ComputeLine(*item)
	base := amounts.Subtotal - amounts.PromoDiscount
	if discount.Kind == domain.DiscountFixed && discount.Amount > base {
		return Order{}, ValidationError{Field: "amount", Message: "discount exceeds line total"}
	}

	item.Discount = &discount
	order.UpdatedAt = now

	if err := s.saveOrder(ctx, order); err != nil {
		return Order{}, err
	}
	return order, nil
}

func (s *orderService) ApplyOrderDiscount(ctx context.Context, cmd OrderDiscountCommand) (Order, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return Order{}, err
	}

	order, err := s.findOrder(ctx, localID, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}
	if !order.Open() {
		return Order{}, fmt.Errorf("%w: order %s", ErrOrderImmutable, order.ID)
	}

	now := s.clock()
	discount, err := buildManualDiscount(cmd.Discount, now)
	if err != nil {
		return Order{}, err
	}

	if discount.Kind == domain.DiscountFixed {
		probe := order
		probe.Discount = nil
		base := ComputeSnapshot(probe).FinalTotal
		if discount.Amount > base {
			return Order{}, ValidationError{Field: "amount", Message: "discount exceeds order total"}
		}
	}

	order.Discount = &discount
	order.UpdatedAt = now

	if err := s.saveOrder(ctx, order); err != nil {
		return Order{}, err
	}
	return order, nil
}

// Close freezes the accounting snapshot, records the payment split, releases
// the table and decrements stock for tracked products.
func (s *orderService) Close(ctx context.Context, cmd CloseOrderCommand) (Order, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return Order{}, err
	}

	order, err := s.findOrder(ctx, localID, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}
	if !order.Open() {
		return Order{}, fmt.Errorf("%w: order %s", ErrOrderImmutable, order.ID)
	}

	now := s.clock()
	snapshot := ComputeSnapshot(order)

	payments, err := buildPayments(cmd.Payments, snapshot.FinalTotal, now)
	if err != nil {
		return Order{}, err
	}

	productsByID, err := s.loadOrderProducts(ctx, localID, order)
	if err != nil {
		return Order{}, err
	}
	updatedProducts, stockMovements := s.ledger.RecordSale(order, productsByID, now)

	table, err := s.tables.FindByID(ctx, localID, order.TableID)
	if err != nil {
		return Order{}, mapRepositoryError(err, "table", order.TableID)
	}
	table.State = domain.TableStateFree
	table.UpdatedAt = now

	order.State = domain.OrderStateClosed
	order.Payments = payments
	order.Snapshot = &snapshot
	order.ClosedAt = &now
	order.UpdatedAt = now

	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Update(txCtx, order); err != nil {
			return mapRepositoryError(err, "order", order.ID)
		}
		for _, product := range updatedProducts {
			if err := s.products.Update(txCtx, product); err != nil {
				return mapRepositoryError(err, "product", product.ID)
			}
		}
		if len(stockMovements) > 0 {
			if err := s.movements.InsertAll(txCtx, stockMovements); err != nil {
				return mapRepositoryError(err, "stock movement", "")
			}
		}
		if err := s.tables.Update(txCtx, table); err != nil {
			return mapRepositoryError(err, "table", table.ID)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publish(ctx, DomainEvent{
		Type:       orderEventClosed,
		LocalID:    localID,
		Subject:    order.ID,
		OccurredAt: now,
		Metadata: map[string]any{
			"number": order.Number,
			"total":  snapshot.FinalTotal.String(),
		},
	})

	return order, nil
}

// Reopen restores a closed order to the table, clearing the snapshot and the
// payment split and giving the consumed stock back.
func (s *orderService) Reopen(ctx context.Context, orderID string) (Order, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return Order{}, err
	}

	order, err := s.findOrder(ctx, localID, orderID)
	if err != nil {
		return Order{}, err
	}
	if order.State != domain.OrderStateClosed {
		return Order{}, ValidationError{Field: "orderId", Message: "order is not closed"}
	}

	if _, err := s.orders.FindOpenByTable(ctx, localID, order.TableID); err == nil {
		return Order{}, ValidationError{Field: "tableId", Message: "table already has an open order"}
	} else if !isRepoNotFound(err) {
		return Order{}, mapRepositoryError(err, "order", "")
	}

	now := s.clock()

	productsByID, err := s.loadOrderProducts(ctx, localID, order)
	if err != nil {
		return Order{}, err
	}
	updatedProducts, stockMovements := s.ledger.RevertSale(order, productsByID, now)

	table, err := s.tables.FindByID(ctx, localID, order.TableID)
	if err != nil {
		return Order{}, mapRepositoryError(err, "table", order.TableID)
	}
	table.State = domain.TableStateOpen
	table.UpdatedAt = now

	order.State = domain.OrderStateOpen
	order.Payments = nil
	order.Snapshot = nil
	order.ClosedAt = nil
	order.UpdatedAt = now

	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Update(txCtx, order); err != nil {
			return mapRepositoryError(err, "order", order.ID)
		}
		for _, product := range updatedProducts {
			if err := s.products.Update(txCtx, product); err != nil {
				return mapRepositoryError(err, "product", product.ID)
			}
		}
		if len(stockMovements) > 0 {
			if err := s.movements.InsertAll(txCtx, stockMovements); err != nil {
				return mapRepositoryError(err, "stock movement", "")
			}
		}
		if err := s.tables.Update(txCtx, table); err != nil {
			return mapRepositoryError(err, "table", table.ID)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publish(ctx, DomainEvent{
		Type:       orderEventReopened,
		LocalID:    localID,
		Subject:    order.ID,
		OccurredAt: now,
		Metadata:   map[string]any{"number": order.Number},
	})

	return order, nil
}

// Correct adjusts quantities and the payment split of a CLOSED order without
// reopening it. The snapshot is recomputed, the new split re-validated and
// stock deltas compensated.
func (s *orderService) Correct(ctx context.Context, cmd CorrectOrderCommand) (Order, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return Order{}, err
	}

	order, err := s.findOrder(ctx, localID, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}
	if order.State != domain.OrderStateClosed {
		return Order{}, ValidationError{Field: "orderId", Message: "order is not closed"}
	}

	deltas := make(map[string]int)
	for itemID, quantity := range cmd.Quantities {
		if quantity < 1 {
			return Order{}, ValidationError{Field: "quantity", Message: "must be at least 1"}
		}
		item := order.ItemByID(itemID)
		if item == nil {
			return Order{}, NotFoundError{Kind: "order item", ID: itemID}
		}
		deltas[item.ProductID] += quantity - item.Quantity
		item.Quantity = quantity
	}

	now := s.clock()

	promotions, categoryOf, err := s.loadPromotionContext(ctx, localID, &order, "")
	if err != nil {
		return Order{}, err
	}
	s.engine.Recompute(&order, promotions, categoryOf, now)

	snapshot := ComputeSnapshot(order)
	payments, err := buildPayments(cmd.Payments, snapshot.FinalTotal, now)
	if err != nil {
		return Order{}, err
	}

	productsByID, err := s.loadOrderProducts(ctx, localID, order)
	if err != nil {
		return Order{}, err
	}

	var updatedProducts []Product
	var stockMovements []StockMovement
	for productID, delta := range deltas {
		if delta == 0 {
			continue
		}
		product, ok := productsByID[productID]
		if !ok || !product.StockTracked {
			continue
		}
		product.CurrentStock -= delta
		product.UpdatedAt = now
		updatedProducts = append(updatedProducts, product)

		orderID := order.ID
		stockMovements = append(stockMovements, StockMovement{
			ID:         s.newID(),
			LocalID:    localID,
			ProductID:  productID,
			Quantity:   -delta,
			Kind:       domain.StockMovementManualAdjustment,
			Reason:     fmt.Sprintf("correction of order %d", order.Number),
			OrderID:    &orderID,
			OccurredAt: now,
		})
	}

	order.Payments = payments
	order.Snapshot = &snapshot
	order.UpdatedAt = now

	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Update(txCtx, order); err != nil {
			return mapRepositoryError(err, "order", order.ID)
		}
		for _, product := range updatedProducts {
			if err := s.products.Update(txCtx, product); err != nil {
				return mapRepositoryError(err, "product", product.ID)
			}
		}
		if len(stockMovements) > 0 {
			if err := s.movements.InsertAll(txCtx, stockMovements); err != nil {
				return mapRepositoryError(err, "stock movement", "")
			}
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publish(ctx, DomainEvent{
		Type:       orderEventCorrected,
		LocalID:    localID,
		Subject:    order.ID,
		OccurredAt: now,
		Metadata: map[string]any{
			"number": order.Number,
			"total":  snapshot.FinalTotal.String(),
		},
	})

	return order, nil
}

// KitchenSlip builds the kitchen read model of an order: lines with
// observations and extras, no prices.
func (s *orderService) KitchenSlip(ctx context.Context, orderID string) (KitchenSlip, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return KitchenSlip{}, err
	}

	order, err := s.findOrder(ctx, localID, orderID)
	if err != nil {
		return KitchenSlip{}, err
	}
	table, err := s.tables.FindByID(ctx, localID, order.TableID)
	if err != nil {
		return KitchenSlip{}, mapRepositoryError(err, "table", order.TableID)
	}

	slip := KitchenSlip{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		TableNumber: table.Number,
		PrintedAt:   s.clock(),
	}
	for _, item := range order.Items {
		line := KitchenLine{
			Name:        item.Name,
			Quantity:    item.Quantity,
			Observation: item.Observation,
		}
		for _, extra := range item.Extras {
			label := extra.Name
			if extra.Quantity > 1 {
				label = fmt.Sprintf("%dx %s", extra.Quantity, extra.Name)
			}
			line.Extras = append(line.Extras, label)
		}
		slip.Lines = append(slip.Lines, line)
	}
	return slip, nil
}

// Receipt builds the customer read model of an order with priced lines,
// discounts and the payment split.
func (s *orderService) Receipt(ctx context.Context, orderID string) (Receipt, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return Receipt{}, err
	}

	order, err := s.findOrder(ctx, localID, orderID)
	if err != nil {
		return Receipt{}, err
	}
	table, err := s.tables.FindByID(ctx, localID, order.TableID)
	if err != nil {
		return Receipt{}, mapRepositoryError(err, "table", order.TableID)
	}

	receipt := Receipt{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		TableNumber: table.Number,
		Payments:    order.Payments,
		IssuedAt:    s.clock(),
	}
	if order.Snapshot != nil {
		receipt.Totals = *order.Snapshot
	} else {
		receipt.Totals = ComputeSnapshot(order)
	}
	for _, item := range order.Items {
		amounts := ComputeLine(item)
		receipt.Lines = append(receipt.Lines, ReceiptLine{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Extras:    item.Extras,
			Promotion: item.Promotion,
			Discount:  amounts.PromoDiscount + amounts.ManualDiscount,
			Total:     amounts.Total,
		})
	}
	return receipt, nil
}

// Helpers --------------------------------------------------------------------

func (s *orderService) findOrder(ctx context.Context, localID, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, ValidationError{Field: "orderId", Message: "is required"}
	}
	order, err := s.orders.FindByID(ctx, localID, orderID)
	if err != nil {
		return Order{}, mapRepositoryError(err, "order", orderID)
	}
	return order, nil
}

func (s *orderService) saveOrder(ctx context.Context, order Order) error {
	return s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Update(txCtx, order); err != nil {
			return mapRepositoryError(err, "order", order.ID)
		}
		return nil
	})
}

func (s *orderService) recomputeAndSave(ctx context.Context, localID string, order *Order) error {
	promotions, categoryOf, err := s.loadPromotionContext(ctx, localID, order, "")
	if err != nil {
		return err
	}
	now := s.clock()
	s.engine.Recompute(order, promotions, categoryOf, now)
	order.UpdatedAt = now
	return s.saveOrder(ctx, *order)
}

// loadPromotionContext fetches the active promotions and the product-to-
// category index covering the order lines plus an optional extra product.
func (s *orderService) loadPromotionContext(ctx context.Context, localID string, order *Order, extraProductID string) ([]Promotion, map[string]string, error) {
	promotions, err := s.promotions.ListActiveByLocal(ctx, localID)
	if err != nil {
		return nil, nil, mapRepositoryError(err, "promotion", "")
	}

	ids := make([]string, 0, len(order.Items)+1)
	seen := make(map[string]bool)
	for _, item := range order.Items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}
	if extraProductID != "" && !seen[extraProductID] {
		ids = append(ids, extraProductID)
	}

	categoryOf := make(map[string]string, len(ids))
	if len(ids) > 0 {
		products, err := s.products.FindByIDs(ctx, localID, ids)
		if err != nil {
			return nil, nil, mapRepositoryError(err, "product", "")
		}
		for id, product := range products {
			if product.CategoryID != nil {
				categoryOf[id] = *product.CategoryID
			}
		}
	}
	return promotions, categoryOf, nil
}

func (s *orderService) loadOrderProducts(ctx context.Context, localID string, order Order) (map[string]Product, error) {
	ids := make([]string, 0, len(order.Items))
	seen := make(map[string]bool)
	for _, item := range order.Items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}
	if len(ids) == 0 {
		return map[string]Product{}, nil
	}

	products, err := s.products.FindByIDs(ctx, localID, ids)
	if err != nil {
		return nil, mapRepositoryError(err, "product", "")
	}
	return products, nil
}

// resolveExtras validates and resolves the requested extras against the
// catalog. Only products admitting extras may carry them.
func (s *orderService) resolveExtras(ctx context.Context, localID string, product Product, requests []ExtraRequest) ([]ExtraSelection, error) {
	if len(requests) == 0 {
		return nil, nil
	}
	if !product.AdmitsExtras {
		return nil, ValidationError{Field: "extras", Message: "product does not admit extras"}
	}

	ids := make([]string, 0, len(requests))
	for _, request := range requests {
		if request.Quantity < 1 {
			return nil, ValidationError{Field: "extras", Message: "extra quantity must be at least 1"}
		}
		ids = append(ids, strings.TrimSpace(request.ProductID))
	}

	resolved, err := s.products.FindByIDs(ctx, localID, ids)
	if err != nil {
		return nil, mapRepositoryError(err, "product", "")
	}

	extras := make([]ExtraSelection, 0, len(requests))
	for i, request := range requests {
		extra, ok := resolved[ids[i]]
		if !ok {
			return nil, NotFoundError{Kind: "product", ID: ids[i]}
		}
		if !extra.IsExtra {
			return nil, ValidationError{Field: "extras", Message: fmt.Sprintf("product %q is not an extra", extra.Name)}
		}
		extras = append(extras, ExtraSelection{Product: extra, Quantity: request.Quantity})
	}
	return extras, nil
}

// normalizeSelection runs the variant normalizer when the selection could
// involve structural modifiers.
func (s *orderService) normalizeSelection(ctx context.Context, localID string, product Product, extras []ExtraSelection) (Product, []ExtraSelection, error) {
	if product.VariantGroupID == nil || len(extras) == 0 {
		return product, extras, nil
	}

	structuralList, err := s.products.ListStructuralModifierIDs(ctx, localID)
	if err != nil {
		return Product{}, nil, mapRepositoryError(err, "product", "")
	}
	structuralIDs := make(map[string]bool, len(structuralList))
	for _, id := range structuralList {
		structuralIDs[id] = true
	}

	siblings, err := s.products.ListByGroup(ctx, localID, *product.VariantGroupID)
	if err != nil {
		return Product{}, nil, mapRepositoryError(err, "product", "")
	}

	normalized, remaining, _, err := NormalizeVariant(product, extras, siblings, structuralIDs)
	if err != nil {
		return Product{}, nil, err
	}
	return normalized, remaining, nil
}

func (s *orderService) publish(ctx context.Context, event DomainEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":    event.Type,
			"subject": event.Subject,
			"error":   err.Error(),
		})
	}
}

// mergeTarget finds an existing line functionally identical to the incoming
// one: same product, same extras multiset, same observation, neither carrying
// a manual discount.
func mergeTarget(order *Order, incoming OrderItem) *OrderItem {
	for i := range order.Items {
		existing := &order.Items[i]
		if existing.ProductID != incoming.ProductID {
			continue
		}
		if existing.Observation != incoming.Observation {
			continue
		}
		if existing.Discount != nil || incoming.Discount != nil {
			continue
		}
		if !sameExtras(existing.Extras, incoming.Extras) {
			continue
		}
		return existing
	}
	return nil
}

func sameExtras(a, b []ExtraLine) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, extra := range a {
		counts[extra.ProductID] += extra.Quantity
	}
	for _, extra := range b {
		counts[extra.ProductID] -= extra.Quantity
	}
	for _, count := range counts {
		if count != 0 {
			return false
		}
	}
	return true
}

func extraLines(extras []ExtraSelection) []ExtraLine {
	if len(extras) == 0 {
		return nil
	}
	lines := make([]ExtraLine, 0, len(extras))
	for _, extra := range extras {
		lines = append(lines, ExtraLine{
			ProductID: extra.Product.ID,
			Name:      extra.Product.Name,
			UnitPrice: extra.Product.Price,
			Quantity:  extra.Quantity,
		})
	}
	return lines
}

func buildManualDiscount(input DiscountInput, at time.Time) (ManualDiscount, error) {
	discount := ManualDiscount{
		Kind:      input.Kind,
		Reason:    strings.TrimSpace(input.Reason),
		AppliedBy: strings.TrimSpace(input.UserID),
		AppliedAt: at,
	}

	switch input.Kind {
	case domain.DiscountPercent:
		if input.Percent <= 0 || input.Percent > domain.Percent(10000) {
			return ManualDiscount{}, ValidationError{Field: "percent", Message: "must be between 0 and 100"}
		}
		discount.Percent = input.Percent
	case domain.DiscountFixed:
		if input.Amount <= 0 {
			return ManualDiscount{}, ValidationError{Field: "amount", Message: "must be positive"}
		}
		discount.Amount = input.Amount
	default:
		return ManualDiscount{}, ValidationError{Field: "kind", Message: fmt.Sprintf("unknown discount kind %q", input.Kind)}
	}
	return discount, nil
}

// buildPayments validates the payment split against the final total.
func buildPayments(inputs []PaymentInput, finalTotal Money, at time.Time) ([]Payment, error) {
	if len(inputs) == 0 {
		return nil, ValidationError{Field: "payments", Message: "at least one payment is required"}
	}

	payments := make([]Payment, 0, len(inputs))
	var sum Money
	for _, input := range inputs {
		if !domain.ValidPaymentMedium(input.Medium) {
			return nil, ValidationError{Field: "payments", Message: fmt.Sprintf("unknown payment medium %q", input.Medium)}
		}
		if input.Amount <= 0 {
			return nil, ValidationError{Field: "payments", Message: "payment amounts must be positive"}
		}
		sum += input.Amount
		payments = append(payments, Payment{
			Medium: input.Medium,
			Amount: input.Amount,
			PaidAt: at,
		})
	}

	if sum != finalTotal {
		return nil, PaymentMismatchError{Expected: finalTotal, Given: sum}
	}
	return payments, nil
}
