package handlers

import (
	domain "github.com/comandas/api/internal/domain"
	"github.com/comandas/api/internal/services"
)

// Monetary values travel as decimal strings ("1250.50") in every payload so
// terminals never do float arithmetic on prices.

type orderPayload struct {
	ID       string             `json:"id"`
	TableID  string             `json:"table_id"`
	Number   int64              `json:"number"`
	State    string             `json:"state"`
	Items    []orderItemPayload `json:"items"`
	Discount *discountPayload   `json:"discount,omitempty"`
	Payments []paymentPayload   `json:"payments,omitempty"`
	Totals   *snapshotPayload   `json:"totals,omitempty"`
	OpenedAt string             `json:"opened_at"`
	ClosedAt string             `json:"closed_at,omitempty"`
}

type orderItemPayload struct {
	ID          string           `json:"id"`
	ProductID   string           `json:"product_id"`
	Name        string           `json:"name"`
	UnitPrice   string           `json:"unit_price"`
	Quantity    int              `json:"quantity"`
	Observation string           `json:"observation,omitempty"`
	Extras      []extraPayload   `json:"extras,omitempty"`
	Promotion   *promoPayload    `json:"promotion,omitempty"`
	Discount    *discountPayload `json:"discount,omitempty"`
}

type extraPayload struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

type promoPayload struct {
	PromotionID string `json:"promotion_id"`
	Name        string `json:"name"`
	Discount    string `json:"discount"`
}

type discountPayload struct {
	Kind      string `json:"kind"`
	Percent   string `json:"percent,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Reason    string `json:"reason,omitempty"`
	AppliedBy string `json:"applied_by,omitempty"`
}

type paymentPayload struct {
	Medium string `json:"medium"`
	Amount string `json:"amount"`
}

type snapshotPayload struct {
	Subtotal       string `json:"subtotal"`
	PromoDiscount  string `json:"promo_discount"`
	LineDiscount   string `json:"line_discount"`
	GlobalDiscount string `json:"global_discount"`
	FinalTotal     string `json:"final_total"`
}

func buildOrderPayload(order services.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, buildOrderItemPayload(item))
	}

	payments := make([]paymentPayload, 0, len(order.Payments))
	for _, payment := range order.Payments {
		payments = append(payments, paymentPayload{
			Medium: string(payment.Medium),
			Amount: payment.Amount.String(),
		})
	}

	return orderPayload{
		ID:       order.ID,
		TableID:  order.TableID,
		Number:   order.Number,
		State:    string(order.State),
		Items:    items,
		Discount: buildDiscountPayload(order.Discount),
		Payments: payments,
		Totals:   buildSnapshotPayload(order.Snapshot),
		OpenedAt: formatTime(order.OpenedAt),
		ClosedAt: formatTimePtr(order.ClosedAt),
	}
}

func buildOrderItemPayload(item services.OrderItem) orderItemPayload {
	extras := make([]extraPayload, 0, len(item.Extras))
	for _, extra := range item.Extras {
		extras = append(extras, extraPayload{
			ProductID: extra.ProductID,
			Name:      extra.Name,
			UnitPrice: extra.UnitPrice.String(),
			Quantity:  extra.Quantity,
		})
	}

	var promotion *promoPayload
	if item.Promotion != nil {
		promotion = &promoPayload{
			PromotionID: item.Promotion.PromotionID,
			Name:        item.Promotion.Name,
			Discount:    item.Promotion.Discount.String(),
		}
	}

	return orderItemPayload{
		ID:          item.ID,
		ProductID:   item.ProductID,
		Name:        item.Name,
		UnitPrice:   item.UnitPrice.String(),
		Quantity:    item.Quantity,
		Observation: item.Observation,
		Extras:      extras,
		Promotion:   promotion,
		Discount:    buildDiscountPayload(item.Discount),
	}
}

func buildDiscountPayload(discount *services.ManualDiscount) *discountPayload {
	if discount == nil {
		return nil
	}
	payload := &discountPayload{
		Kind:      string(discount.Kind),
		Reason:    discount.Reason,
		AppliedBy: discount.AppliedBy,
	}
	switch discount.Kind {
	case domain.DiscountPercent:
		payload.Percent = discount.Percent.String()
	case domain.DiscountFixed:
		payload.Amount = discount.Amount.String()
	}
	return payload
}

func buildSnapshotPayload(snapshot *services.AccountingSnapshot) *snapshotPayload {
	if snapshot == nil {
		return nil
	}
	return &snapshotPayload{
		Subtotal:       snapshot.Subtotal.String(),
		PromoDiscount:  snapshot.PromoDiscount.String(),
		LineDiscount:   snapshot.LineDiscount.String(),
		GlobalDiscount: snapshot.GlobalDiscount.String(),
		FinalTotal:     snapshot.FinalTotal.String(),
	}
}

// discountRequest is the operator-entered manual discount body shared by the
// line and order discount endpoints.
type discountRequest struct {
	Kind    string `json:"kind"`
	Percent string `json:"percent"`
	Amount  string `json:"amount"`
	Reason  string `json:"reason"`
	UserID  string `json:"user_id"`
}

func (req discountRequest) toInput() (services.DiscountInput, error) {
	input := services.DiscountInput{
		Kind:   domain.DiscountKind(req.Kind),
		Reason: req.Reason,
		UserID: req.UserID,
	}
	switch input.Kind {
	case domain.DiscountPercent:
		percent, err := parsePercent(req.Percent)
		if err != nil {
			return services.DiscountInput{}, err
		}
		input.Percent = percent
	case domain.DiscountFixed:
		amount, err := parseMoney(req.Amount)
		if err != nil {
			return services.DiscountInput{}, err
		}
		input.Amount = amount
	}
	return input, nil
}

type paymentRequest struct {
	Medium string `json:"medium"`
	Amount string `json:"amount"`
}

func parsePaymentInputs(raw []paymentRequest) ([]services.PaymentInput, error) {
	payments := make([]services.PaymentInput, 0, len(raw))
	for _, payment := range raw {
		amount, err := parseMoney(payment.Amount)
		if err != nil {
			return nil, err
		}
		payments = append(payments, services.PaymentInput{
			Medium: domain.PaymentMedium(payment.Medium),
			Amount: amount,
		})
	}
	return payments, nil
}
