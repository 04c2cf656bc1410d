package services

import (
	"slices"
	"time"

	domain "github.com/comandas/api/internal/domain"
)

// promotionEngine evaluates automatic discounts. It is pure: callers supply
// the order, the candidate promotions, a product-to-category index and the
// evaluation instant; the engine never touches a repository.
type promotionEngine struct {
	loc *time.Location
}

func newPromotionEngine(loc *time.Location) promotionEngine {
	if loc == nil {
		loc = time.UTC
	}
	return promotionEngine{loc: loc}
}

// promoContext is the evaluation context built fresh per operation.
type promoContext struct {
	now time.Time
	// presentQty holds the cumulative quantity per product id across every
	// line of the order, extras-carrying lines included.
	presentQty map[string]int
	subtotal   Money
}

// buildContext derives the context from the order plus an optional incoming
// line not yet appended.
func (e promotionEngine) buildContext(order *Order, incoming *OrderItem, now time.Time) promoContext {
	pctx := promoContext{
		now:        now.In(e.loc),
		presentQty: make(map[string]int),
	}
	for _, item := range order.Items {
		pctx.presentQty[item.ProductID] += item.Quantity
		pctx.subtotal += item.GrossTotal()
	}
	if incoming != nil {
		pctx.presentQty[incoming.ProductID] += incoming.Quantity
		pctx.subtotal += incoming.GrossTotal()
	}
	return pctx
}

// EvaluateLine resolves the winning promotion for a single line being added
// and returns its snapshot, or nil when no promotion applies. Lines carrying
// extras are bespoke and never evaluated.
func (e promotionEngine) EvaluateLine(promotions []Promotion, order *Order, line OrderItem, categoryOf map[string]string, now time.Time) *PromotionApplication {
	if len(line.Extras) > 0 {
		return nil
	}

	pctx := e.buildContext(order, &line, now)
	winner, discount := e.pickWinner(promotions, pctx, line.ProductID, categoryOf, line.UnitPrice, line.Quantity)
	if winner == nil {
		return nil
	}
	return &PromotionApplication{
		PromotionID: winner.ID,
		Name:        winner.Name,
		Discount:    discount,
	}
}

// Recompute clears every promotion snapshot on the order and reassigns them
// from scratch, aggregating quantities per product across lines.
func (e promotionEngine) Recompute(order *Order, promotions []Promotion, categoryOf map[string]string, now time.Time) {
	for i := range order.Items {
		order.Items[i].Promotion = nil
	}

	pctx := e.buildContext(order, nil, now)

	groups := make(map[string][]*OrderItem)
	groupOrder := make([]string, 0)
	for i := range order.Items {
		item := &order.Items[i]
		if len(item.Extras) > 0 {
			continue
		}
		if _, seen := groups[item.ProductID]; !seen {
			groupOrder = append(groupOrder, item.ProductID)
		}
		groups[item.ProductID] = append(groups[item.ProductID], item)
	}

	for _, productID := range groupOrder {
		items := groups[productID]
		e.applyToGroup(promotions, pctx, productID, categoryOf, items)
	}
}

// applyToGroup evaluates one product group and spreads the winning discount
// across its lines.
func (e promotionEngine) applyToGroup(promotions []Promotion, pctx promoContext, productID string, categoryOf map[string]string, items []*OrderItem) {
	cumulativeQty := 0
	for _, item := range items {
		cumulativeQty += item.Quantity
	}
	if cumulativeQty == 0 {
		return
	}

	// Lines of the same product share the add-time price snapshot.
	unitPrice := items[0].UnitPrice

	winner, totalDiscount := e.pickWinner(promotions, pctx, productID, categoryOf, unitPrice, cumulativeQty)
	if winner == nil {
		return
	}

	inCycle := cumulativeQty
	switch winner.Strategy.Kind {
	case domain.StrategyQuantityBundle:
		inCycle = (cumulativeQty / winner.Strategy.BundleTake) * winner.Strategy.BundleTake
	case domain.StrategyFixedPricePack:
		inCycle = (cumulativeQty / winner.Strategy.ActivateAt) * winner.Strategy.ActivateAt
	}
	if inCycle == 0 {
		return
	}

	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b *OrderItem) int {
		return b.Quantity - a.Quantity
	})

	remaining := inCycle
	assigned := make([]Money, len(sorted))
	for i, item := range sorted {
		units := item.Quantity
		if units > remaining {
			units = remaining
		}
		assigned[i] = Money(units)
		remaining -= units
		if remaining == 0 {
			break
		}
	}

	shares := domain.DistributeProportional(totalDiscount, assigned)
	for i, item := range sorted {
		if assigned[i] == 0 {
			continue
		}
		item.Promotion = &PromotionApplication{
			PromotionID: winner.ID,
			Name:        winner.Name,
			Discount:    shares[i],
		}
	}
}

// pickWinner returns the eligible promotion with the highest priority whose
// discount is strictly positive. Priority ties keep the first seen, which is
// stable within one pass.
func (e promotionEngine) pickWinner(promotions []Promotion, pctx promoContext, productID string, categoryOf map[string]string, unitPrice Money, qty int) (*Promotion, Money) {
	var winner *Promotion
	var winnerDiscount Money

	for i := range promotions {
		p := &promotions[i]
		if !e.eligible(*p, pctx, productID, categoryOf) {
			continue
		}
		discount := strategyDiscount(p.Strategy, unitPrice, qty)
		if discount <= 0 {
			continue
		}
		if winner == nil || p.Priority > winner.Priority {
			winner = p
			winnerDiscount = discount
		}
	}

	return winner, winnerDiscount
}

func (e promotionEngine) eligible(p Promotion, pctx promoContext, productID string, categoryOf map[string]string) bool {
	if p.State != domain.PromotionActive {
		return false
	}
	if len(p.Targets()) == 0 {
		return false
	}
	if !p.TargetsProduct(productID, categoryOf[productID]) {
		return false
	}
	for _, criterion := range p.Criteria {
		if !e.criterionMet(criterion, pctx) {
			return false
		}
	}
	if p.Strategy.Kind == domain.StrategyComboConditional {
		if e.triggerQuantity(p, pctx, categoryOf) < p.Strategy.MinTriggerQty {
			return false
		}
	}
	return true
}

// triggerQuantity returns the highest cumulative quantity any single product
// matched by the promotion's TRIGGER scope reaches in the order. The combo
// activates on one trigger product hitting the minimum; quantities of distinct
// trigger products never add up.
func (e promotionEngine) triggerQuantity(p Promotion, pctx promoContext, categoryOf map[string]string) int {
	best := 0
	for _, trigger := range p.Triggers() {
		for productID, qty := range pctx.presentQty {
			matched := false
			switch trigger.ReferenceKind {
			case domain.ReferenceProduct:
				matched = trigger.ReferenceID == productID
			case domain.ReferenceCategory:
				category := categoryOf[productID]
				matched = category != "" && trigger.ReferenceID == category
			}
			if matched && qty > best {
				best = qty
			}
		}
	}
	return best
}

func (e promotionEngine) criterionMet(c ActivationCriterion, pctx promoContext) bool {
	switch c.Kind {
	case domain.CriterionTemporal:
		return temporalMet(c, pctx.now)
	case domain.CriterionContent:
		for _, productID := range c.ProductIDs {
			if pctx.presentQty[productID] <= 0 {
				return false
			}
		}
		return true
	case domain.CriterionMinAmount:
		return pctx.subtotal >= c.MinAmount
	}
	return false
}

func temporalMet(c ActivationCriterion, now time.Time) bool {
	if c.DateFrom != nil && now.Before(*c.DateFrom) {
		return false
	}
	if c.DateTo != nil && now.After(*c.DateTo) {
		return false
	}
	if len(c.Weekdays) > 0 && !slices.Contains(c.Weekdays, now.Weekday()) {
		return false
	}
	if c.HourFrom != nil && c.HourTo != nil {
		minute := now.Hour()*60 + now.Minute()
		from, to := *c.HourFrom, *c.HourTo
		if from <= to {
			if minute < from || minute > to {
				return false
			}
		} else {
			// Wrapping range, e.g. happy hour 22:00-02:00.
			if minute < from && minute > to {
				return false
			}
		}
	}
	return true
}

// strategyDiscount computes the discount of a strategy for qty units priced
// at unitPrice, extras excluded. Divisions round half-up to the cent.
func strategyDiscount(s Strategy, unitPrice Money, qty int) Money {
	if qty <= 0 || unitPrice <= 0 {
		return 0
	}
	subtotal := unitPrice * Money(qty)

	switch s.Kind {
	case domain.StrategyDirectDiscount:
		if s.DiscountKind == domain.DiscountFixed {
			discount := s.Amount * Money(qty)
			if discount > subtotal {
				discount = subtotal
			}
			return discount
		}
		return domain.PercentOf(subtotal, s.Percent)

	case domain.StrategyQuantityBundle:
		if s.BundleTake <= 0 || s.BundlePay < 0 || s.BundlePay >= s.BundleTake {
			return 0
		}
		cycles := qty / s.BundleTake
		return Money(cycles) * Money(s.BundleTake-s.BundlePay) * unitPrice

	case domain.StrategyComboConditional:
		return domain.PercentOf(subtotal, s.BenefitPercent)

	case domain.StrategyFixedPricePack:
		if s.ActivateAt <= 0 {
			return 0
		}
		cycles := qty / s.ActivateAt
		discount := Money(cycles) * (Money(s.ActivateAt)*unitPrice - s.PackPrice)
		if discount < 0 {
			return 0
		}
		return discount
	}

	return 0
}
