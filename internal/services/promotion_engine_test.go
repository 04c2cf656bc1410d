package services

import (
	"testing"
	"time"

	domain "github.com/comandas/api/internal/domain"
)

func activePromotion(id string, priority int, strategy domain.Strategy, scope ...domain.ScopeItem) domain.Promotion {
	return domain.Promotion{
		ID:       id,
		LocalID:  "local-1",
		Name:     id,
		Priority: priority,
		State:    domain.PromotionActive,
		Strategy: strategy,
		Scope:    scope,
	}
}

func targetProduct(productID string) domain.ScopeItem {
	return domain.ScopeItem{ReferenceID: productID, ReferenceKind: domain.ReferenceProduct, Role: domain.RoleTarget}
}

func triggerProduct(productID string) domain.ScopeItem {
	return domain.ScopeItem{ReferenceID: productID, ReferenceKind: domain.ReferenceProduct, Role: domain.RoleTrigger}
}

func line(productID string, unitPrice domain.Money, qty int) domain.OrderItem {
	return domain.OrderItem{
		ID:        "line-" + productID,
		ProductID: productID,
		Name:      productID,
		UnitPrice: unitPrice,
		Quantity:  qty,
	}
}

func TestEvaluateLineDirectPercent(t *testing.T) {
	engine := newPromotionEngine(time.UTC)
	promo := activePromotion("happy-beer", 1, domain.Strategy{
		Kind:         domain.StrategyDirectDiscount,
		DiscountKind: domain.DiscountPercent,
		Percent:      2000,
	}, targetProduct("cerveza"))

	order := domain.Order{State: domain.OrderStateOpen}
	got := engine.EvaluateLine([]domain.Promotion{promo}, &order, line("cerveza", 2500, 1), nil, time.Now())
	if got == nil {
		t.Fatal("expected a promotion application")
	}
	if got.PromotionID != "happy-beer" {
		t.Fatalf("promotion id = %q, want happy-beer", got.PromotionID)
	}
	if got.Discount != 500 {
		t.Fatalf("discount = %d, want 500", got.Discount)
	}
}

func TestEvaluateLineSkipsInactiveAndExtras(t *testing.T) {
	engine := newPromotionEngine(time.UTC)
	promo := activePromotion("p", 1, domain.Strategy{
		Kind:         domain.StrategyDirectDiscount,
		DiscountKind: domain.DiscountPercent,
		Percent:      2000,
	}, targetProduct("cerveza"))
	promo.State = domain.PromotionInactive

	order := domain.Order{State: domain.OrderStateOpen}
	if got := engine.EvaluateLine([]domain.Promotion{promo}, &order, line("cerveza", 2500, 1), nil, time.Now()); got != nil {
		t.Fatalf("inactive promotion applied: %+v", got)
	}

	promo.State = domain.PromotionActive
	withExtras := line("cerveza", 2500, 1)
	withExtras.Extras = []domain.ExtraLine{{ProductID: "limon", Name: "Limón", UnitPrice: 100, Quantity: 1}}
	if got := engine.EvaluateLine([]domain.Promotion{promo}, &order, withExtras, nil, time.Now()); got != nil {
		t.Fatalf("line with extras got a promotion: %+v", got)
	}
}

func TestEvaluateLineComboRequiresTrigger(t *testing.T) {
	engine := newPromotionEngine(time.UTC)
	combo := activePromotion("torta-licuado", 1, domain.Strategy{
		Kind:           domain.StrategyComboConditional,
		MinTriggerQty:  1,
		BenefitPercent: 5000,
	}, targetProduct("licuado"), triggerProduct("torta"))

	// Without the trigger present the combo is silent.
	order := domain.Order{State: domain.OrderStateOpen}
	if got := engine.EvaluateLine([]domain.Promotion{combo}, &order, line("licuado", 1800, 1), nil, time.Now()); got != nil {
		t.Fatalf("combo applied without trigger: %+v", got)
	}

	// With a Torta already on the order the Licuado gets 50% off.
	order.Items = []domain.OrderItem{line("torta", 3200, 1)}
	got := engine.EvaluateLine([]domain.Promotion{combo}, &order, line("licuado", 1800, 1), nil, time.Now())
	if got == nil {
		t.Fatal("expected combo to apply")
	}
	if got.Discount != 900 {
		t.Fatalf("discount = %d, want 900", got.Discount)
	}
}

func TestEvaluateLineComboTriggerOnIncomingLine(t *testing.T) {
	engine := newPromotionEngine(time.UTC)
	combo := activePromotion("combo", 1, domain.Strategy{
		Kind:           domain.StrategyComboConditional,
		MinTriggerQty:  2,
		BenefitPercent: 5000,
	}, targetProduct("licuado"), triggerProduct("licuado"))

	// The incoming line itself can satisfy the trigger count.
	order := domain.Order{State: domain.OrderStateOpen}
	got := engine.EvaluateLine([]domain.Promotion{combo}, &order, line("licuado", 1800, 2), nil, time.Now())
	if got == nil {
		t.Fatal("expected combo to apply")
	}
	if got.Discount != 1800 {
		t.Fatalf("discount = %d, want 1800", got.Discount)
	}
}

func TestEvaluateLineComboTriggerPerProduct(t *testing.T) {
	engine := newPromotionEngine(time.UTC)
	combo := activePromotion("merienda", 1, domain.Strategy{
		Kind:           domain.StrategyComboConditional,
		MinTriggerQty:  2,
		BenefitPercent: 5000,
	}, targetProduct("licuado"), triggerProduct("torta"), triggerProduct("empanada"))

	// One Torta plus one Empanada never reaches the minimum; the quantities of
	// distinct trigger products do not add up.
	order := domain.Order{
		State: domain.OrderStateOpen,
		Items: []domain.OrderItem{line("torta", 3200, 1), line("empanada", 1200, 1)},
	}
	if got := engine.EvaluateLine([]domain.Promotion{combo}, &order, line("licuado", 1800, 1), nil, time.Now()); got != nil {
		t.Fatalf("combo applied with trigger quantity split across products: %+v", got)
	}

	// Two Tortas on a single trigger product activate the combo.
	order.Items = []domain.OrderItem{line("torta", 3200, 2), line("empanada", 1200, 1)}
	got := engine.EvaluateLine([]domain.Promotion{combo}, &order, line("licuado", 1800, 1), nil, time.Now())
	if got == nil {
		t.Fatal("expected combo once one trigger product reaches the minimum")
	}
	if got.Discount != 900 {
		t.Fatalf("discount = %d, want 900", got.Discount)
	}
}

func TestEvaluateLineComboCategoryTriggerPerProduct(t *testing.T) {
	engine := newPromotionEngine(time.UTC)
	combo := activePromotion("cafe-y-postre", 1, domain.Strategy{
		Kind:           domain.StrategyComboConditional,
		MinTriggerQty:  2,
		BenefitPercent: 2500,
	},
		targetProduct("flan"),
		domain.ScopeItem{ReferenceID: "cat-cafeteria", ReferenceKind: domain.ReferenceCategory, Role: domain.RoleTrigger},
	)
	categoryOf := map[string]string{
		"cortado":  "cat-cafeteria",
		"lagrima":  "cat-cafeteria",
		"cafe-dbl": "cat-cafeteria",
	}

	// Three cafeteria products with one unit each: no single product reaches
	// the minimum, so the category trigger stays silent.
	order := domain.Order{
		State: domain.OrderStateOpen,
		Items: []domain.OrderItem{line("cortado", 1500, 1), line("lagrima", 1400, 1), line("cafe-dbl", 1800, 1)},
	}
	if got := engine.EvaluateLine([]domain.Promotion{combo}, &order, line("flan", 2000, 1), categoryOf, time.Now()); got != nil {
		t.Fatalf("combo triggered by quantities spread across category members: %+v", got)
	}

	order.Items = []domain.OrderItem{line("cortado", 1500, 2)}
	if got := engine.EvaluateLine([]domain.Promotion{combo}, &order, line("flan", 2000, 1), categoryOf, time.Now()); got == nil {
		t.Fatal("expected combo once one category member reaches the minimum")
	}
}

func TestPickWinnerHighestPriorityWithPositiveDiscount(t *testing.T) {
	engine := newPromotionEngine(time.UTC)
	bundle := activePromotion("2x1", 10, domain.Strategy{
		Kind:       domain.StrategyQuantityBundle,
		BundleTake: 2,
		BundlePay:  1,
	}, targetProduct("cerveza"))
	direct := activePromotion("direct-10", 5, domain.Strategy{
		Kind:         domain.StrategyDirectDiscount,
		DiscountKind: domain.DiscountPercent,
		Percent:      1000,
	}, targetProduct("cerveza"))
	promotions := []domain.Promotion{bundle, direct}

	order := domain.Order{State: domain.OrderStateOpen}

	// Two units: the bundle wins on priority and forgives one unit.
	got := engine.EvaluateLine(promotions, &order, line("cerveza", 2500, 2), nil, time.Now())
	if got == nil || got.PromotionID != "2x1" {
		t.Fatalf("winner = %+v, want 2x1", got)
	}
	if got.Discount != 2500 {
		t.Fatalf("discount = %d, want 2500", got.Discount)
	}

	// One unit: the bundle yields zero, the direct discount takes over.
	got = engine.EvaluateLine(promotions, &order, line("cerveza", 2500, 1), nil, time.Now())
	if got == nil || got.PromotionID != "direct-10" {
		t.Fatalf("winner = %+v, want direct-10", got)
	}
	if got.Discount != 250 {
		t.Fatalf("discount = %d, want 250", got.Discount)
	}
}

func TestPickWinnerPriorityTieKeepsFirstSeen(t *testing.T) {
	engine := newPromotionEngine(time.UTC)
	first := activePromotion("first", 3, domain.Strategy{
		Kind:         domain.StrategyDirectDiscount,
		DiscountKind: domain.DiscountPercent,
		Percent:      1000,
	}, targetProduct("cafe"))
	second := activePromotion("second", 3, domain.Strategy{
		Kind:         domain.StrategyDirectDiscount,
		DiscountKind: domain.DiscountPercent,
		Percent:      2000,
	}, targetProduct("cafe"))

	order := domain.Order{State: domain.OrderStateOpen}
	got := engine.EvaluateLine([]domain.Promotion{first, second}, &order, line("cafe", 1000, 1), nil, time.Now())
	if got == nil || got.PromotionID != "first" {
		t.Fatalf("winner = %+v, want first", got)
	}
}

func TestStrategyDiscountFixedPricePack(t *testing.T) {
	strategy := domain.Strategy{
		Kind:       domain.StrategyFixedPricePack,
		ActivateAt: 2,
		PackPrice:  22000,
	}

	cases := []struct {
		qty  int
		want domain.Money
	}{
		{1, 0},
		{2, 4000},
		{3, 4000},
		{4, 8000},
	}
	for _, tc := range cases {
		if got := strategyDiscount(strategy, 13000, tc.qty); got != tc.want {
			t.Fatalf("qty %d: discount = %d, want %d", tc.qty, got, tc.want)
		}
	}
}

func TestStrategyDiscountFixedPerUnitClampsToSubtotal(t *testing.T) {
	strategy := domain.Strategy{
		Kind:         domain.StrategyDirectDiscount,
		DiscountKind: domain.DiscountFixed,
		Amount:       3000,
	}
	if got := strategyDiscount(strategy, 2500, 2); got != 5000 {
		t.Fatalf("discount = %d, want subtotal clamp 5000", got)
	}
	if got := strategyDiscount(strategy, 5000, 2); got != 6000 {
		t.Fatalf("discount = %d, want 6000", got)
	}
}

func TestStrategyDiscountPackNeverNegative(t *testing.T) {
	strategy := domain.Strategy{
		Kind:       domain.StrategyFixedPricePack,
		ActivateAt: 2,
		PackPrice:  30000,
	}
	if got := strategyDiscount(strategy, 13000, 2); got != 0 {
		t.Fatalf("discount = %d, want 0 for pack price above subtotal", got)
	}
}

func TestRecomputeSpreadsPackAcrossLines(t *testing.T) {
	engine := newPromotionEngine(time.UTC)
	pack := activePromotion("pack", 1, domain.Strategy{
		Kind:       domain.StrategyFixedPricePack,
		ActivateAt: 2,
		PackPrice:  22000,
	}, targetProduct("lomito"))

	plain := line("lomito", 13000, 2)
	plain.ID = "line-a"
	custom := line("lomito", 13000, 1)
	custom.ID = "line-b"
	custom.Observation = "sin cebolla"

	order := domain.Order{
		State: domain.OrderStateOpen,
		Items: []domain.OrderItem{plain, custom},
	}
	engine.Recompute(&order, []domain.Promotion{pack}, nil, time.Now())

	// Three cumulative units form one complete pack; the two-unit line absorbs
	// the whole cycle, the leftover unit pays full price.
	if order.Items[0].Promotion == nil {
		t.Fatal("expected promotion on the two-unit line")
	}
	if order.Items[0].Promotion.Discount != 4000 {
		t.Fatalf("line-a discount = %d, want 4000", order.Items[0].Promotion.Discount)
	}
	if order.Items[1].Promotion != nil {
		t.Fatalf("line-b should stay undiscounted, got %+v", order.Items[1].Promotion)
	}
}

func TestRecomputeDistributesBundleProportionally(t *testing.T) {
	engine := newPromotionEngine(time.UTC)
	bundle := activePromotion("2x1", 1, domain.Strategy{
		Kind:       domain.StrategyQuantityBundle,
		BundleTake: 2,
		BundlePay:  1,
	}, targetProduct("cerveza"))

	a := line("cerveza", 2500, 2)
	a.ID = "line-a"
	b := line("cerveza", 2500, 2)
	b.ID = "line-b"
	b.Observation = "bien fría"

	order := domain.Order{
		State: domain.OrderStateOpen,
		Items: []domain.OrderItem{a, b},
	}
	engine.Recompute(&order, []domain.Promotion{bundle}, nil, time.Now())

	// Four units, two cycles, 5000 total split evenly across the two lines.
	var total domain.Money
	for _, item := range order.Items {
		if item.Promotion == nil {
			t.Fatalf("line %s lost its promotion", item.ID)
		}
		total += item.Promotion.Discount
	}
	if total != 5000 {
		t.Fatalf("total discount = %d, want 5000", total)
	}
	if order.Items[0].Promotion.Discount != 2500 {
		t.Fatalf("line-a discount = %d, want 2500", order.Items[0].Promotion.Discount)
	}
}

func TestRecomputeClearsStaleSnapshots(t *testing.T) {
	engine := newPromotionEngine(time.UTC)

	stale := line("cerveza", 2500, 1)
	stale.Promotion = &domain.PromotionApplication{PromotionID: "gone", Name: "gone", Discount: 500}

	order := domain.Order{State: domain.OrderStateOpen, Items: []domain.OrderItem{stale}}
	engine.Recompute(&order, nil, nil, time.Now())

	if order.Items[0].Promotion != nil {
		t.Fatalf("stale snapshot survived: %+v", order.Items[0].Promotion)
	}
}

func TestTemporalCriterionWrappingHours(t *testing.T) {
	engine := newPromotionEngine(time.UTC)
	from := 22 * 60
	to := 2 * 60
	promo := activePromotion("happy-hour", 1, domain.Strategy{
		Kind:         domain.StrategyDirectDiscount,
		DiscountKind: domain.DiscountPercent,
		Percent:      2000,
	}, targetProduct("cerveza"))
	promo.Criteria = []domain.ActivationCriterion{{
		Kind:     domain.CriterionTemporal,
		HourFrom: &from,
		HourTo:   &to,
	}}

	order := domain.Order{State: domain.OrderStateOpen}
	promotions := []domain.Promotion{promo}

	at := func(hour, minute int) time.Time {
		return time.Date(2026, 3, 14, hour, minute, 0, 0, time.UTC)
	}

	if got := engine.EvaluateLine(promotions, &order, line("cerveza", 2500, 1), nil, at(23, 30)); got == nil {
		t.Fatal("23:30 should fall inside the wrapping range")
	}
	if got := engine.EvaluateLine(promotions, &order, line("cerveza", 2500, 1), nil, at(1, 15)); got == nil {
		t.Fatal("01:15 should fall inside the wrapping range")
	}
	if got := engine.EvaluateLine(promotions, &order, line("cerveza", 2500, 1), nil, at(15, 0)); got != nil {
		t.Fatalf("15:00 should fall outside the wrapping range, got %+v", got)
	}
}

func TestTemporalCriterionWeekdays(t *testing.T) {
	engine := newPromotionEngine(time.UTC)
	promo := activePromotion("martes", 1, domain.Strategy{
		Kind:         domain.StrategyDirectDiscount,
		DiscountKind: domain.DiscountPercent,
		Percent:      1000,
	}, targetProduct("pizza"))
	promo.Criteria = []domain.ActivationCriterion{{
		Kind:     domain.CriterionTemporal,
		Weekdays: []time.Weekday{time.Tuesday},
	}}

	order := domain.Order{State: domain.OrderStateOpen}
	tuesday := time.Date(2026, 3, 17, 20, 0, 0, 0, time.UTC)
	wednesday := tuesday.AddDate(0, 0, 1)

	if got := engine.EvaluateLine([]domain.Promotion{promo}, &order, line("pizza", 8000, 1), nil, tuesday); got == nil {
		t.Fatal("expected promotion on Tuesday")
	}
	if got := engine.EvaluateLine([]domain.Promotion{promo}, &order, line("pizza", 8000, 1), nil, wednesday); got != nil {
		t.Fatalf("promotion applied on Wednesday: %+v", got)
	}
}

func TestMinAmountCriterionIncludesIncomingLine(t *testing.T) {
	engine := newPromotionEngine(time.UTC)
	promo := activePromotion("big-spender", 1, domain.Strategy{
		Kind:         domain.StrategyDirectDiscount,
		DiscountKind: domain.DiscountPercent,
		Percent:      1000,
	}, targetProduct("postre"))
	promo.Criteria = []domain.ActivationCriterion{{
		Kind:      domain.CriterionMinAmount,
		MinAmount: 10000,
	}}

	order := domain.Order{
		State: domain.OrderStateOpen,
		Items: []domain.OrderItem{line("pizza", 8000, 1)},
	}

	// 8000 existing + 3000 incoming crosses the threshold.
	if got := engine.EvaluateLine([]domain.Promotion{promo}, &order, line("postre", 3000, 1), nil, time.Now()); got == nil {
		t.Fatal("expected promotion above the minimum amount")
	}

	order.Items = nil
	if got := engine.EvaluateLine([]domain.Promotion{promo}, &order, line("postre", 3000, 1), nil, time.Now()); got != nil {
		t.Fatalf("promotion applied below the minimum amount: %+v", got)
	}
}

func TestContentCriterionRequiresEveryProduct(t *testing.T) {
	engine := newPromotionEngine(time.UTC)
	promo := activePromotion("menu", 1, domain.Strategy{
		Kind:         domain.StrategyDirectDiscount,
		DiscountKind: domain.DiscountPercent,
		Percent:      1500,
	}, targetProduct("postre"))
	promo.Criteria = []domain.ActivationCriterion{{
		Kind:       domain.CriterionContent,
		ProductIDs: []string{"entrada", "principal"},
	}}

	order := domain.Order{
		State: domain.OrderStateOpen,
		Items: []domain.OrderItem{line("entrada", 4000, 1)},
	}
	if got := engine.EvaluateLine([]domain.Promotion{promo}, &order, line("postre", 3000, 1), nil, time.Now()); got != nil {
		t.Fatalf("promotion applied with the main course missing: %+v", got)
	}

	order.Items = append(order.Items, line("principal", 9000, 1))
	if got := engine.EvaluateLine([]domain.Promotion{promo}, &order, line("postre", 3000, 1), nil, time.Now()); got == nil {
		t.Fatal("expected promotion once every required product is present")
	}
}

func TestCategoryTargetAndTrigger(t *testing.T) {
	engine := newPromotionEngine(time.UTC)
	combo := activePromotion("postre-con-cafe", 1, domain.Strategy{
		Kind:           domain.StrategyComboConditional,
		MinTriggerQty:  1,
		BenefitPercent: 2500,
	},
		domain.ScopeItem{ReferenceID: "cat-postres", ReferenceKind: domain.ReferenceCategory, Role: domain.RoleTarget},
		domain.ScopeItem{ReferenceID: "cat-cafeteria", ReferenceKind: domain.ReferenceCategory, Role: domain.RoleTrigger},
	)
	categoryOf := map[string]string{
		"flan":      "cat-postres",
		"cortado":   "cat-cafeteria",
		"empanadas": "cat-cocina",
	}

	order := domain.Order{
		State: domain.OrderStateOpen,
		Items: []domain.OrderItem{line("cortado", 1500, 1)},
	}
	got := engine.EvaluateLine([]domain.Promotion{combo}, &order, line("flan", 2000, 1), categoryOf, time.Now())
	if got == nil {
		t.Fatal("expected category-scoped combo to apply")
	}
	if got.Discount != 500 {
		t.Fatalf("discount = %d, want 500", got.Discount)
	}

	order.Items = []domain.OrderItem{line("empanadas", 1200, 3)}
	if got := engine.EvaluateLine([]domain.Promotion{combo}, &order, line("flan", 2000, 1), categoryOf, time.Now()); got != nil {
		t.Fatalf("combo triggered by an unrelated category: %+v", got)
	}
}
