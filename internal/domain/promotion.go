package domain

import (
	"time"
)

// PromotionState toggles whether a promotion participates in evaluation.
type PromotionState string

const (
	// PromotionActive makes the promotion eligible for evaluation.
	PromotionActive PromotionState = "ACTIVE"
	// PromotionInactive removes the promotion from evaluation.
	PromotionInactive PromotionState = "INACTIVE"
)

// StrategyKind discriminates the promotion strategy variants.
type StrategyKind string

const (
	// StrategyDirectDiscount discounts every unit by a percentage or a fixed
	// amount per unit.
	StrategyDirectDiscount StrategyKind = "DIRECT_DISCOUNT"
	// StrategyQuantityBundle is the take-N-pay-M bundle.
	StrategyQuantityBundle StrategyKind = "QUANTITY_BUNDLE"
	// StrategyComboConditional discounts a target when a trigger product is
	// present in the order.
	StrategyComboConditional StrategyKind = "COMBO_CONDITIONAL"
	// StrategyFixedPricePack sells every complete pack of k units at a fixed
	// pack price.
	StrategyFixedPricePack StrategyKind = "FIXED_PRICE_PACK"
)

// Strategy is the tagged strategy variant. Kind selects which parameter set
// is meaningful; the rest stays at its zero value.
type Strategy struct {
	Kind StrategyKind

	// DirectDiscount.
	DiscountKind DiscountKind
	Percent      Percent
	Amount       Money

	// QuantityBundle: take BundleTake units, pay BundlePay.
	BundleTake int
	BundlePay  int

	// ComboConditional: requires a TRIGGER scope product with cumulative
	// quantity >= MinTriggerQty; discounts the target by BenefitPercent.
	MinTriggerQty  int
	BenefitPercent Percent

	// FixedPricePack: every complete group of ActivateAt units costs PackPrice.
	ActivateAt int
	PackPrice  Money
}

// CycleSize is the number of units one complete promo cycle spans. Direct
// and combo strategies apply to every unit, so their cycle is a single unit.
func (s Strategy) CycleSize() int {
	switch s.Kind {
	case StrategyQuantityBundle:
		return s.BundleTake
	case StrategyFixedPricePack:
		return s.ActivateAt
	default:
		return 1
	}
}

// CriterionKind discriminates the activation criterion variants.
type CriterionKind string

const (
	// CriterionTemporal restricts by date range, weekday set and hour range.
	CriterionTemporal CriterionKind = "TEMPORAL"
	// CriterionContent requires a set of products to be present in the order.
	CriterionContent CriterionKind = "CONTENT"
	// CriterionMinAmount requires a minimum order subtotal.
	CriterionMinAmount CriterionKind = "MIN_AMOUNT"
)

// ActivationCriterion is one AND-composed activation condition. Kind selects
// the meaningful fields.
type ActivationCriterion struct {
	Kind CriterionKind

	// Temporal. All parts optional; nil means unrestricted.
	DateFrom *time.Time
	DateTo   *time.Time
	Weekdays []time.Weekday
	// Hour range as minutes of day [HourFrom, HourTo]. A range with
	// HourFrom > HourTo wraps past midnight (happy hour 22:00-02:00).
	HourFrom *int
	HourTo   *int

	// Content: every listed product must be present in the order.
	ProductIDs []string

	// MinAmount: threshold against the current order subtotal.
	MinAmount Money
}

// ScopeRole distinguishes products a promotion discounts from products that
// merely activate it.
type ScopeRole string

const (
	// RoleTarget marks products the promotion discounts.
	RoleTarget ScopeRole = "TARGET"
	// RoleTrigger marks products whose presence activates a combo.
	RoleTrigger ScopeRole = "TRIGGER"
)

// ReferenceKind tells what a scope item points at.
type ReferenceKind string

const (
	// ReferenceProduct scopes a single product.
	ReferenceProduct ReferenceKind = "PRODUCT"
	// ReferenceCategory scopes every product of a category.
	ReferenceCategory ReferenceKind = "CATEGORY"
)

// ScopeItem is one row of a promotion's scope. ReferenceID is unique within
// a promotion.
type ScopeItem struct {
	ReferenceID   string
	ReferenceKind ReferenceKind
	Role          ScopeRole
}

// Promotion is the aggregate root of one automatic discount rule.
type Promotion struct {
	ID          string
	LocalID     string
	Name        string
	Description string
	// Priority resolves conflicts between eligible promotions; higher wins.
	Priority  int
	State     PromotionState
	Strategy  Strategy
	Criteria  []ActivationCriterion
	Scope     []ScopeItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Targets returns the scope items with role TARGET.
func (p Promotion) Targets() []ScopeItem {
	return p.scopeByRole(RoleTarget)
}

// Triggers returns the scope items with role TRIGGER.
func (p Promotion) Triggers() []ScopeItem {
	return p.scopeByRole(RoleTrigger)
}

func (p Promotion) scopeByRole(role ScopeRole) []ScopeItem {
	var items []ScopeItem
	for _, it := range p.Scope {
		if it.Role == role {
			items = append(items, it)
		}
	}
	return items
}

// TargetsProduct reports whether the product (with its category, which may be
// empty) is a TARGET of the promotion.
func (p Promotion) TargetsProduct(productID, categoryID string) bool {
	for _, it := range p.Scope {
		if it.Role != RoleTarget {
			continue
		}
		switch it.ReferenceKind {
		case ReferenceProduct:
			if it.ReferenceID == productID {
				return true
			}
		case ReferenceCategory:
			if categoryID != "" && it.ReferenceID == categoryID {
				return true
			}
		}
	}
	return false
}
