package services

import (
	"fmt"
	"time"

	domain "github.com/comandas/api/internal/domain"
)

// stockLedger turns order lifecycle transitions and manual adjustments into
// product stock updates plus immutable movement rows. It is pure: the caller
// persists both sides atomically.
type stockLedger struct {
	newID func() string
}

// RecordSale decrements stock for every tracked product sold by the order and
// emits one SALE movement per line. Products missing from the map are skipped
// so historical references never fail a close.
func (l stockLedger) RecordSale(order Order, productsByID map[string]Product, at time.Time) ([]Product, []StockMovement) {
	return l.applyOrder(order, productsByID, at, domain.StockMovementSale, -1)
}

// RevertSale restores the stock consumed by the order, emitting REOPEN_ORDER
// movements with positive quantities.
func (l stockLedger) RevertSale(order Order, productsByID map[string]Product, at time.Time) ([]Product, []StockMovement) {
	return l.applyOrder(order, productsByID, at, domain.StockMovementReopenOrder, 1)
}

func (l stockLedger) applyOrder(order Order, productsByID map[string]Product, at time.Time, kind StockMovementKind, sign int) ([]Product, []StockMovement) {
	updated := make(map[string]*Product)
	var movements []StockMovement

	for _, item := range order.Items {
		product, ok := productsByID[item.ProductID]
		if !ok || !product.StockTracked {
			continue
		}

		current, seen := updated[item.ProductID]
		if !seen {
			clone := product
			current = &clone
			updated[item.ProductID] = current
		}

		quantity := sign * item.Quantity
		current.CurrentStock += quantity
		current.UpdatedAt = at

		orderID := order.ID
		movements = append(movements, StockMovement{
			ID:         l.newID(),
			LocalID:    order.LocalID,
			ProductID:  item.ProductID,
			Quantity:   quantity,
			Kind:       kind,
			Reason:     fmt.Sprintf("order %d", order.Number),
			OrderID:    &orderID,
			OccurredAt: at,
		})
	}

	products := make([]Product, 0, len(updated))
	for _, item := range order.Items {
		if product, ok := updated[item.ProductID]; ok {
			products = append(products, *product)
			delete(updated, item.ProductID)
		}
	}
	return products, movements
}

// ManualAdjust applies a signed operator adjustment. Adjusting an untracked
// product activates tracking as part of the same change.
func (l stockLedger) ManualAdjust(product Product, quantity int, kind StockMovementKind, reason string, at time.Time) (Product, StockMovement, error) {
	if quantity == 0 {
		return Product{}, StockMovement{}, ValidationError{Field: "quantity", Message: "must not be zero"}
	}
	if kind != domain.StockMovementManualAdjustment && kind != domain.StockMovementGoodsReceipt {
		return Product{}, StockMovement{}, ValidationError{Field: "kind", Message: fmt.Sprintf("unknown stock movement kind %q", kind)}
	}

	product.StockTracked = true
	product.CurrentStock += quantity
	product.UpdatedAt = at

	movement := StockMovement{
		ID:         l.newID(),
		LocalID:    product.LocalID,
		ProductID:  product.ID,
		Quantity:   quantity,
		Kind:       kind,
		Reason:     reason,
		OccurredAt: at,
	}
	return product, movement, nil
}
