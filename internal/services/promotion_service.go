package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/comandas/api/internal/domain"
	"github.com/comandas/api/internal/platform/textutil"
	"github.com/comandas/api/internal/repositories"
)

// PromotionServiceDeps bundles collaborators required to construct the promotion service.
type PromotionServiceDeps struct {
	Promotions  repositories.PromotionRepository
	Products    repositories.ProductRepository
	Categories  repositories.CategoryRepository
	Local       LocalContextProvider
	Clock       func() time.Time
	IDGenerator func() string
}

type promotionService struct {
	promotions repositories.PromotionRepository
	products   repositories.ProductRepository
	categories repositories.CategoryRepository
	local      LocalContextProvider
	clock      func() time.Time
	newID      func() string
}

// NewPromotionService wires dependencies into a concrete PromotionService implementation.
func NewPromotionService(deps PromotionServiceDeps) (PromotionService, error) {
	if deps.Promotions == nil {
		return nil, errors.New("promotion service: promotion repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("promotion service: product repository is required")
	}
	if deps.Categories == nil {
		return nil, errors.New("promotion service: category repository is required")
	}
	if deps.Local == nil {
		return nil, errors.New("promotion service: local context provider is required")
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

	return &promotionService{
		promotions: deps.Promotions,
		products:   deps.Products,
		categories: deps.Categories,
		local:      deps.Local,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

func (s *promotionService) CreatePromotion(ctx context.Context, cmd UpsertPromotionCommand) (Promotion, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return Promotion{}, err
	}

	name := strings.TrimSpace(cmd.Name)
	if err := validatePromotion(name, cmd); err != nil {
		return Promotion{}, err
	}
	if err := s.checkScopeReferences(ctx, localID, cmd.Scope); err != nil {
		return Promotion{}, err
	}
	if err := s.checkName(ctx, localID, name); err != nil {
		return Promotion{}, err
	}

	now := s.clock()
	promotion := Promotion{
		ID:          s.newID(),
		LocalID:     localID,
		Name:        name,
		Description: strings.TrimSpace(cmd.Description),
		Priority:    cmd.Priority,
		State:       cmd.State,
		Strategy:    cmd.Strategy,
		Criteria:    cmd.Criteria,
		Scope:       cmd.Scope,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if promotion.State == "" {
		promotion.State = domain.PromotionActive
	}

	if err := s.promotions.Insert(ctx, promotion); err != nil {
		return Promotion{}, mapRepositoryError(err, "promotion", promotion.ID)
	}
	return promotion, nil
}

func (s *promotionService) UpdatePromotion(ctx context.Context, cmd UpsertPromotionCommand) (Promotion, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return Promotion{}, err
	}

	promotionID := strings.TrimSpace(cmd.PromotionID)
	if promotionID == "" {
		return Promotion{}, ValidationError{Field: "promotionId", Message: "is required"}
	}

	promotion, err := s.promotions.FindByID(ctx, localID, promotionID)
	if err != nil {
		return Promotion{}, mapRepositoryError(err, "promotion", promotionID)
	}

	name := strings.TrimSpace(cmd.Name)
	if err := validatePromotion(name, cmd); err != nil {
		return Promotion{}, err
	}
	if err := s.checkScopeReferences(ctx, localID, cmd.Scope); err != nil {
		return Promotion{}, err
	}
	if textutil.FoldName(name) != textutil.FoldName(promotion.Name) {
		if err := s.checkName(ctx, localID, name); err != nil {
			return Promotion{}, err
		}
	}

	promotion.Name = name
	promotion.Description = strings.TrimSpace(cmd.Description)
	promotion.Priority = cmd.Priority
	if cmd.State != "" {
		promotion.State = cmd.State
	}
	promotion.Strategy = cmd.Strategy
	promotion.Criteria = cmd.Criteria
	promotion.Scope = cmd.Scope
	promotion.UpdatedAt = s.clock()

	if err := s.promotions.Update(ctx, promotion); err != nil {
		return Promotion{}, mapRepositoryError(err, "promotion", promotionID)
	}
	return promotion, nil
}

func (s *promotionService) SetPromotionState(ctx context.Context, promotionID string, state PromotionState) (Promotion, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return Promotion{}, err
	}
	promotionID = strings.TrimSpace(promotionID)
	if promotionID == "" {
		return Promotion{}, ValidationError{Field: "promotionId", Message: "is required"}
	}
	if state != domain.PromotionActive && state != domain.PromotionInactive {
		return Promotion{}, ValidationError{Field: "state", Message: fmt.Sprintf("unknown promotion state %q", state)}
	}

	promotion, err := s.promotions.FindByID(ctx, localID, promotionID)
	if err != nil {
		return Promotion{}, mapRepositoryError(err, "promotion", promotionID)
	}

	promotion.State = state
	promotion.UpdatedAt = s.clock()

	if err := s.promotions.Update(ctx, promotion); err != nil {
		return Promotion{}, mapRepositoryError(err, "promotion", promotionID)
	}
	return promotion, nil
}

func (s *promotionService) GetPromotion(ctx context.Context, promotionID string) (Promotion, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return Promotion{}, err
	}
	promotionID = strings.TrimSpace(promotionID)
	if promotionID == "" {
		return Promotion{}, ValidationError{Field: "promotionId", Message: "is required"}
	}

	promotion, err := s.promotions.FindByID(ctx, localID, promotionID)
	if err != nil {
		return Promotion{}, mapRepositoryError(err, "promotion", promotionID)
	}
	return promotion, nil
}

func (s *promotionService) ListPromotions(ctx context.Context) ([]Promotion, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return nil, err
	}

	promotions, err := s.promotions.ListByLocal(ctx, localID)
	if err != nil {
		return nil, mapRepositoryError(err, "promotion", "")
	}
	return promotions, nil
}

func (s *promotionService) checkName(ctx context.Context, localID, name string) error {
	exists, err := s.promotions.ExistsByName(ctx, localID, textutil.FoldName(name))
	if err != nil {
		return mapRepositoryError(err, "promotion", "")
	}
	if exists {
		return ConflictingNameError{Kind: "promotion", Name: name}
	}
	return nil
}

// checkScopeReferences verifies every scope row points at an existing product
// or category of the local.
func (s *promotionService) checkScopeReferences(ctx context.Context, localID string, scope []ScopeItem) error {
	var productIDs []string
	for _, item := range scope {
		switch item.ReferenceKind {
		case domain.ReferenceProduct:
			productIDs = append(productIDs, item.ReferenceID)
		case domain.ReferenceCategory:
			if _, err := s.categories.FindByID(ctx, localID, item.ReferenceID); err != nil {
				return mapRepositoryError(err, "category", item.ReferenceID)
			}
		}
	}

	if len(productIDs) == 0 {
		return nil
	}
	resolved, err := s.products.FindByIDs(ctx, localID, productIDs)
	if err != nil {
		return mapRepositoryError(err, "product", "")
	}
	for _, id := range productIDs {
		if _, ok := resolved[id]; !ok {
			return NotFoundError{Kind: "product", ID: id}
		}
	}
	return nil
}

func validatePromotion(name string, cmd UpsertPromotionCommand) error {
	if name == "" {
		return ValidationError{Field: "name", Message: "is required"}
	}
	if cmd.Priority < 0 {
		return ValidationError{Field: "priority", Message: "must not be negative"}
	}
	if err := validateStrategy(cmd.Strategy); err != nil {
		return err
	}
	if err := validateCriteria(cmd.Criteria); err != nil {
		return err
	}
	return validateScope(cmd.Strategy, cmd.Scope)
}

func validateStrategy(strategy Strategy) error {
	switch strategy.Kind {
	case domain.StrategyDirectDiscount:
		switch strategy.DiscountKind {
		case domain.DiscountPercent:
			if strategy.Percent <= 0 || strategy.Percent > domain.Percent(10000) {
				return ValidationError{Field: "strategy.percent", Message: "must be between 0 and 100"}
			}
		case domain.DiscountFixed:
			if strategy.Amount <= 0 {
				return ValidationError{Field: "strategy.amount", Message: "must be positive"}
			}
		default:
			return ValidationError{Field: "strategy.discountKind", Message: fmt.Sprintf("unknown discount kind %q", strategy.DiscountKind)}
		}
	case domain.StrategyQuantityBundle:
		if strategy.BundleTake < 1 {
			return ValidationError{Field: "strategy.bundleTake", Message: "must be at least 1"}
		}
		if strategy.BundlePay < 0 || strategy.BundlePay >= strategy.BundleTake {
			return ValidationError{Field: "strategy.bundlePay", Message: "must be below the take count"}
		}
	case domain.StrategyComboConditional:
		if strategy.MinTriggerQty < 1 {
			return ValidationError{Field: "strategy.minTriggerQty", Message: "must be at least 1"}
		}
		if strategy.BenefitPercent <= 0 || strategy.BenefitPercent > domain.Percent(10000) {
			return ValidationError{Field: "strategy.benefitPercent", Message: "must be between 0 and 100"}
		}
	case domain.StrategyFixedPricePack:
		if strategy.ActivateAt < 2 {
			return ValidationError{Field: "strategy.activateAt", Message: "must be at least 2"}
		}
		if strategy.PackPrice <= 0 {
			return ValidationError{Field: "strategy.packPrice", Message: "must be positive"}
		}
	default:
		return ValidationError{Field: "strategy.kind", Message: fmt.Sprintf("unknown strategy kind %q", strategy.Kind)}
	}
	return nil
}

func validateCriteria(criteria []ActivationCriterion) error {
	for _, criterion := range criteria {
		switch criterion.Kind {
		case domain.CriterionTemporal:
			if criterion.DateFrom != nil && criterion.DateTo != nil && criterion.DateTo.Before(*criterion.DateFrom) {
				return ValidationError{Field: "criteria.dateTo", Message: "must not precede dateFrom"}
			}
			if (criterion.HourFrom == nil) != (criterion.HourTo == nil) {
				return ValidationError{Field: "criteria.hours", Message: "hour range requires both bounds"}
			}
			if criterion.HourFrom != nil && (*criterion.HourFrom < 0 || *criterion.HourFrom >= 24*60 || *criterion.HourTo < 0 || *criterion.HourTo >= 24*60) {
				return ValidationError{Field: "criteria.hours", Message: "hour bounds must fall within the day"}
			}
		case domain.CriterionContent:
			if len(criterion.ProductIDs) == 0 {
				return ValidationError{Field: "criteria.productIds", Message: "content criterion requires products"}
			}
		case domain.CriterionMinAmount:
			if criterion.MinAmount <= 0 {
				return ValidationError{Field: "criteria.minAmount", Message: "must be positive"}
			}
		default:
			return ValidationError{Field: "criteria.kind", Message: fmt.Sprintf("unknown criterion kind %q", criterion.Kind)}
		}
	}
	return nil
}

func validateScope(strategy Strategy, scope []ScopeItem) error {
	seen := make(map[string]bool, len(scope))
	targets := 0
	triggers := 0
	for _, item := range scope {
		if strings.TrimSpace(item.ReferenceID) == "" {
			return ValidationError{Field: "scope.referenceId", Message: "is required"}
		}
		if seen[item.ReferenceID] {
			return ValidationError{Field: "scope.referenceId", Message: fmt.Sprintf("duplicate reference %q", item.ReferenceID)}
		}
		seen[item.ReferenceID] = true

		if item.ReferenceKind != domain.ReferenceProduct && item.ReferenceKind != domain.ReferenceCategory {
			return ValidationError{Field: "scope.referenceKind", Message: fmt.Sprintf("unknown reference kind %q", item.ReferenceKind)}
		}
		switch item.Role {
		case domain.RoleTarget:
			targets++
		case domain.RoleTrigger:
			triggers++
		default:
			return ValidationError{Field: "scope.role", Message: fmt.Sprintf("unknown scope role %q", item.Role)}
		}
	}

	if targets == 0 {
		return ValidationError{Field: "scope", Message: "at least one TARGET is required"}
	}
	if strategy.Kind == domain.StrategyComboConditional && triggers == 0 {
		return ValidationError{Field: "scope", Message: "combo promotions require a TRIGGER"}
	}
	if strategy.Kind != domain.StrategyComboConditional && triggers > 0 {
		return ValidationError{Field: "scope", Message: "triggers are only valid for combo promotions"}
	}
	return nil
}
