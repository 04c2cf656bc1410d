package services

import (
	domain "github.com/comandas/api/internal/domain"
)

// LineAmounts is the monetary breakdown of one order line.
type LineAmounts struct {
	Subtotal       Money
	PromoDiscount  Money
	ManualDiscount Money
	Total          Money
}

// ComputeLine derives the amounts of a line from its snapshots. The manual
// discount, when PERCENT, is taken against the promo-discounted base; FIXED
// discounts clamp so the line never goes negative.
func ComputeLine(item OrderItem) LineAmounts {
	amounts := LineAmounts{Subtotal: item.GrossTotal()}

	if item.Promotion != nil {
		amounts.PromoDiscount = item.Promotion.Discount
		if amounts.PromoDiscount > amounts.Subtotal {
			amounts.PromoDiscount = amounts.Subtotal
		}
	}

	afterPromo := amounts.Subtotal - amounts.PromoDiscount
	amounts.ManualDiscount = manualDiscountAmount(afterPromo, item.Discount)
	amounts.Total = afterPromo - amounts.ManualDiscount
	return amounts
}

// ComputeSnapshot aggregates the accounting snapshot of an order from its
// lines. Totals are always derived bottom-up, never assigned.
func ComputeSnapshot(order Order) AccountingSnapshot {
	var snapshot AccountingSnapshot
	var afterLines Money

	for _, item := range order.Items {
		amounts := ComputeLine(item)
		snapshot.Subtotal += amounts.Subtotal
		snapshot.PromoDiscount += amounts.PromoDiscount
		snapshot.LineDiscount += amounts.ManualDiscount
		afterLines += amounts.Total
	}

	snapshot.GlobalDiscount = manualDiscountAmount(afterLines, order.Discount)
	snapshot.FinalTotal = afterLines - snapshot.GlobalDiscount
	return snapshot
}

// manualDiscountAmount resolves a manual discount against its base. PERCENT
// rounds half-up to the cent; FIXED clamps to the base.
func manualDiscountAmount(base Money, discount *ManualDiscount) Money {
	if discount == nil || base <= 0 {
		return 0
	}
	switch discount.Kind {
	case domain.DiscountPercent:
		return domain.PercentOf(base, discount.Percent)
	case domain.DiscountFixed:
		if discount.Amount > base {
			return base
		}
		return discount.Amount
	}
	return 0
}
