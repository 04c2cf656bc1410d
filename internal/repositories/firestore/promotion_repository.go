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
	"github.com/comandas/api/internal/platform/textutil"
	"github.com/comandas/api/internal/repositories"
)

const promotionsCollection = "promotions"

type promotionDocument struct {
	ID          string                       `firestore:"-"`
	LocalID     string                       `firestore:"localId"`
	Name        string                       `firestore:"name"`
	NameFold    string                       `firestore:"nameFold"`
	Description string                       `firestore:"description,omitempty"`
	Priority    int                          `firestore:"priority"`
	State       string                       `firestore:"state"`
	Strategy    promotionStrategyDocument    `firestore:"strategy"`
	Criteria    []promotionCriterionDocument `firestore:"criteria,omitempty"`
	Scope       []promotionScopeDocument     `firestore:"scope"`
	CreatedAt   time.Time                    `firestore:"createdAt"`
	UpdatedAt   time.Time                    `firestore:"updatedAt"`
}

type promotionStrategyDocument struct {
	Kind           string `firestore:"kind"`
	DiscountKind   string `firestore:"discountKind,omitempty"`
	Percent        int64  `firestore:"percent,omitempty"`
	Amount         int64  `firestore:"amount,omitempty"`
	BundleTake     int    `firestore:"bundleTake,omitempty"`
	BundlePay      int    `firestore:"bundlePay,omitempty"`
	MinTriggerQty  int    `firestore:"minTriggerQty,omitempty"`
	BenefitPercent int64  `firestore:"benefitPercent,omitempty"`
	ActivateAt     int    `firestore:"activateAt,omitempty"`
	PackPrice      int64  `firestore:"packPrice,omitempty"`
}

type promotionCriterionDocument struct {
	Kind       string     `firestore:"kind"`
	DateFrom   *time.Time `firestore:"dateFrom,omitempty"`
	DateTo     *time.Time `firestore:"dateTo,omitempty"`
	Weekdays   []int      `firestore:"weekdays,omitempty"`
	HourFrom   *int       `firestore:"hourFrom,omitempty"`
	HourTo     *int       `firestore:"hourTo,omitempty"`
	ProductIDs []string   `firestore:"productIds,omitempty"`
	MinAmount  int64      `firestore:"minAmount,omitempty"`
}

type promotionScopeDocument struct {
	ReferenceID   string `firestore:"referenceId"`
	ReferenceKind string `firestore:"referenceKind"`
	Role          string `firestore:"role"`
}

// PromotionRepository persists promotion aggregates with strategy, criteria
// and scope embedded in a single document.
type PromotionRepository struct {
	base *pfirestore.BaseRepository[domain.Promotion]
}

// NewPromotionRepository constructs a Firestore-backed promotion repository.
func NewPromotionRepository(provider *pfirestore.Provider) (*PromotionRepository, error) {
	if provider == nil {
		return nil, errors.New("promotion repository: firestore provider is required")
	}

	encoder := func(ctx context.Context, value domain.Promotion) (any, error) {
		return encodePromotionDocument(value), nil
	}
	decoder := func(ctx context.Context, snap *firestore.DocumentSnapshot) (domain.Promotion, error) {
		var doc promotionDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.Promotion{}, err
		}
		doc.ID = snap.Ref.ID
		return decodePromotionDocument(doc), nil
	}

	base := pfirestore.NewBaseRepository[domain.Promotion](provider, promotionsCollection, encoder, decoder)
	return &PromotionRepository{base: base}, nil
}

// Insert stores a new promotion document, failing on id collision.
func (r *PromotionRepository) Insert(ctx context.Context, promotion domain.Promotion) error {
	if r == nil || r.base == nil {
		return errors.New("promotion repository not initialised")
	}
	promotion.ID = strings.TrimSpace(promotion.ID)
	if promotion.ID == "" {
		return errors.New("promotion repository: id is required")
	}

	docRef, err := r.base.DocumentRef(ctx, promotion.ID)
	if err != nil {
		return err
	}
	if _, err := docRef.Create(ctx, encodePromotionDocument(promotion)); err != nil {
		return pfirestore.WrapError("promotions.insert", err)
	}
	return nil
}

// Update replaces the promotion document state.
func (r *PromotionRepository) Update(ctx context.Context, promotion domain.Promotion) error {
	if r == nil || r.base == nil {
		return errors.New("promotion repository not initialised")
	}
	promotion.ID = strings.TrimSpace(promotion.ID)
	if promotion.ID == "" {
		return errors.New("promotion repository: id is required")
	}

	if _, err := r.base.Set(ctx, promotion.ID, promotion); err != nil {
		return err
	}
	return nil
}

// FindByID loads a promotion of the local.
func (r *PromotionRepository) FindByID(ctx context.Context, localID string, promotionID string) (domain.Promotion, error) {
	if r == nil || r.base == nil {
		return domain.Promotion{}, errors.New("promotion repository not initialised")
	}
	promotionID = strings.TrimSpace(promotionID)
	if promotionID == "" {
		return domain.Promotion{}, errors.New("promotion repository: id is required")
	}

	doc, err := r.base.Get(ctx, promotionID)
	if err != nil {
		return domain.Promotion{}, err
	}
	if doc.Data.LocalID != strings.TrimSpace(localID) {
		return domain.Promotion{}, pfirestore.WrapError("promotions.find", status.Errorf(codes.NotFound, "promotion %s not found", promotionID))
	}
	return doc.Data, nil
}

// ListByLocal returns every promotion of the local, highest priority first.
func (r *PromotionRepository) ListByLocal(ctx context.Context, localID string) ([]domain.Promotion, error) {
	return r.list(ctx, localID, false)
}

// ListActiveByLocal returns the promotions eligible for evaluation.
func (r *PromotionRepository) ListActiveByLocal(ctx context.Context, localID string) ([]domain.Promotion, error) {
	return r.list(ctx, localID, true)
}

func (r *PromotionRepository) list(ctx context.Context, localID string, activeOnly bool) ([]domain.Promotion, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("promotion repository not initialised")
	}
	localID = strings.TrimSpace(localID)
	if localID == "" {
		return nil, errors.New("promotion repository: local id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("localId", "==", localID)
		if activeOnly {
			q = q.Where("state", "==", string(domain.PromotionActive))
		}
		return q.OrderBy("priority", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	promotions := make([]domain.Promotion, 0, len(docs))
	for _, doc := range docs {
		promotions = append(promotions, doc.Data)
	}
	return promotions, nil
}

// ExistsByName matches case-insensitively against the stored folded name.
func (r *PromotionRepository) ExistsByName(ctx context.Context, localID string, nameFold string) (bool, error) {
	if r == nil || r.base == nil {
		return false, errors.New("promotion repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("localId", "==", strings.TrimSpace(localID)).
			Where("nameFold", "==", strings.TrimSpace(nameFold)).
			Limit(1)
	})
	if err != nil {
		return false, err
	}
	return len(docs) > 0, nil
}

func encodePromotionDocument(promotion domain.Promotion) promotionDocument {
	criteria := make([]promotionCriterionDocument, 0, len(promotion.Criteria))
	for _, criterion := range promotion.Criteria {
		criteria = append(criteria, encodeCriterionDocument(criterion))
	}

	scope := make([]promotionScopeDocument, 0, len(promotion.Scope))
	for _, item := range promotion.Scope {
		scope = append(scope, promotionScopeDocument{
			ReferenceID:   item.ReferenceID,
			ReferenceKind: string(item.ReferenceKind),
			Role:          string(item.Role),
		})
	}

	return promotionDocument{
		LocalID:     strings.TrimSpace(promotion.LocalID),
		Name:        promotion.Name,
		NameFold:    textutil.FoldName(promotion.Name),
		Description: promotion.Description,
		Priority:    promotion.Priority,
		State:       string(promotion.State),
		Strategy: promotionStrategyDocument{
			Kind:           string(promotion.Strategy.Kind),
			DiscountKind:   string(promotion.Strategy.DiscountKind),
			Percent:        int64(promotion.Strategy.Percent),
			Amount:         int64(promotion.Strategy.Amount),
			BundleTake:     promotion.Strategy.BundleTake,
			BundlePay:      promotion.Strategy.BundlePay,
			MinTriggerQty:  promotion.Strategy.MinTriggerQty,
			BenefitPercent: int64(promotion.Strategy.BenefitPercent),
			ActivateAt:     promotion.Strategy.ActivateAt,
			PackPrice:      int64(promotion.Strategy.PackPrice),
		},
		Criteria:  criteria,
		Scope:     scope,
		CreatedAt: promotion.CreatedAt.UTC(),
		UpdatedAt: promotion.UpdatedAt.UTC(),
	}
}

func encodeCriterionDocument(criterion domain.ActivationCriterion) promotionCriterionDocument {
	var weekdays []int
	for _, day := range criterion.Weekdays {
		weekdays = append(weekdays, int(day))
	}
	return promotionCriterionDocument{
		Kind:       string(criterion.Kind),
		DateFrom:   cloneTimePtr(criterion.DateFrom),
		DateTo:     cloneTimePtr(criterion.DateTo),
		Weekdays:   weekdays,
		HourFrom:   criterion.HourFrom,
		HourTo:     criterion.HourTo,
		ProductIDs: append([]string(nil), criterion.ProductIDs...),
		MinAmount:  int64(criterion.MinAmount),
	}
}

func decodePromotionDocument(doc promotionDocument) domain.Promotion {
	criteria := make([]domain.ActivationCriterion, 0, len(doc.Criteria))
	for _, criterion := range doc.Criteria {
		criteria = append(criteria, decodeCriterionDocument(criterion))
	}

	scope := make([]domain.ScopeItem, 0, len(doc.Scope))
	for _, item := range doc.Scope {
		scope = append(scope, domain.ScopeItem{
			ReferenceID:   item.ReferenceID,
			ReferenceKind: domain.ReferenceKind(item.ReferenceKind),
			Role:          domain.ScopeRole(item.Role),
		})
	}

	return domain.Promotion{
		ID:          doc.ID,
		LocalID:     doc.LocalID,
		Name:        doc.Name,
		Description: doc.Description,
		Priority:    doc.Priority,
		State:       domain.PromotionState(doc.State),
		Strategy: domain.Strategy{
			Kind:           domain.StrategyKind(doc.Strategy.Kind),
			DiscountKind:   domain.DiscountKind(doc.Strategy.DiscountKind),
			Percent:        domain.Percent(doc.Strategy.Percent),
			Amount:         domain.Money(doc.Strategy.Amount),
			BundleTake:     doc.Strategy.BundleTake,
			BundlePay:      doc.Strategy.BundlePay,
			MinTriggerQty:  doc.Strategy.MinTriggerQty,
			BenefitPercent: domain.Percent(doc.Strategy.BenefitPercent),
			ActivateAt:     doc.Strategy.ActivateAt,
			PackPrice:      domain.Money(doc.Strategy.PackPrice),
		},
		Criteria:  criteria,
		Scope:     scope,
		CreatedAt: doc.CreatedAt.UTC(),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}
}

func decodeCriterionDocument(doc promotionCriterionDocument) domain.ActivationCriterion {
	var weekdays []time.Weekday
	for _, day := range doc.Weekdays {
		weekdays = append(weekdays, time.Weekday(day))
	}
	return domain.ActivationCriterion{
		Kind:       domain.CriterionKind(doc.Kind),
		DateFrom:   cloneTimePtr(doc.DateFrom),
		DateTo:     cloneTimePtr(doc.DateTo),
		Weekdays:   weekdays,
		HourFrom:   doc.HourFrom,
		HourTo:     doc.HourTo,
		ProductIDs: append([]string(nil), doc.ProductIDs...),
		MinAmount:  domain.Money(doc.MinAmount),
	}
}

func cloneTimePtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	cloned := value.UTC()
	return &cloned
}

var _ repositories.PromotionRepository = (*PromotionRepository)(nil)
