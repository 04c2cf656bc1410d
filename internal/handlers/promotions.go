package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/comandas/api/internal/domain"
	"github.com/comandas/api/internal/platform/httpx"
	"github.com/comandas/api/internal/services"
)

// PromotionHandlers exposes the promotion rule administration endpoints.
type PromotionHandlers struct {
	promotions services.PromotionService
}

// NewPromotionHandlers constructs a promotion handler set.
func NewPromotionHandlers(svc services.PromotionService) *PromotionHandlers {
	return &PromotionHandlers{promotions: svc}
}

// Routes registers the promotion endpoints beneath /promotions.
func (h *PromotionHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{promotionId}", h.get)
	r.Put("/{promotionId}", h.update)
	r.Post("/{promotionId}/state", h.setState)
}

type strategyRequest struct {
	Kind           string `json:"kind"`
	DiscountKind   string `json:"discount_kind"`
	Percent        string `json:"percent"`
	Amount         string `json:"amount"`
	BundleTake     int    `json:"bundle_take"`
	BundlePay      int    `json:"bundle_pay"`
	MinTriggerQty  int    `json:"min_trigger_qty"`
	BenefitPercent string `json:"benefit_percent"`
	ActivateAt     int    `json:"activate_at"`
	PackPrice      string `json:"pack_price"`
}

type criterionRequest struct {
	Kind       string   `json:"kind"`
	DateFrom   string   `json:"date_from"`
	DateTo     string   `json:"date_to"`
	Weekdays   []int    `json:"weekdays"`
	HourFrom   *int     `json:"hour_from"`
	HourTo     *int     `json:"hour_to"`
	ProductIDs []string `json:"product_ids"`
	MinAmount  string   `json:"min_amount"`
}

type scopeRequest struct {
	ReferenceID   string `json:"reference_id"`
	ReferenceKind string `json:"reference_kind"`
	Role          string `json:"role"`
}

type promotionRequest struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Priority    int                `json:"priority"`
	State       string             `json:"state"`
	Strategy    strategyRequest    `json:"strategy"`
	Criteria    []criterionRequest `json:"criteria"`
	Scope       []scopeRequest     `json:"scope"`
}

func (req promotionRequest) toCommand(promotionID string) (services.UpsertPromotionCommand, error) {
	strategy := domain.Strategy{
		Kind:          domain.StrategyKind(req.Strategy.Kind),
		DiscountKind:  domain.DiscountKind(req.Strategy.DiscountKind),
		BundleTake:    req.Strategy.BundleTake,
		BundlePay:     req.Strategy.BundlePay,
		MinTriggerQty: req.Strategy.MinTriggerQty,
		ActivateAt:    req.Strategy.ActivateAt,
	}
	var err error
	if req.Strategy.Percent != "" {
		if strategy.Percent, err = parsePercent(req.Strategy.Percent); err != nil {
			return services.UpsertPromotionCommand{}, err
		}
	}
	if req.Strategy.Amount != "" {
		if strategy.Amount, err = parseMoney(req.Strategy.Amount); err != nil {
			return services.UpsertPromotionCommand{}, err
		}
	}
	if req.Strategy.BenefitPercent != "" {
		if strategy.BenefitPercent, err = parsePercent(req.Strategy.BenefitPercent); err != nil {
			return services.UpsertPromotionCommand{}, err
		}
	}
	if req.Strategy.PackPrice != "" {
		if strategy.PackPrice, err = parseMoney(req.Strategy.PackPrice); err != nil {
			return services.UpsertPromotionCommand{}, err
		}
	}

	criteria := make([]domain.ActivationCriterion, 0, len(req.Criteria))
	for _, raw := range req.Criteria {
		criterion := domain.ActivationCriterion{
			Kind:       domain.CriterionKind(raw.Kind),
			HourFrom:   raw.HourFrom,
			HourTo:     raw.HourTo,
			ProductIDs: raw.ProductIDs,
		}
		for _, day := range raw.Weekdays {
			criterion.Weekdays = append(criterion.Weekdays, time.Weekday(day))
		}
		if raw.DateFrom != "" {
			from, err := time.Parse(time.RFC3339, raw.DateFrom)
			if err != nil {
				return services.UpsertPromotionCommand{}, err
			}
			criterion.DateFrom = &from
		}
		if raw.DateTo != "" {
			to, err := time.Parse(time.RFC3339, raw.DateTo)
			if err != nil {
				return services.UpsertPromotionCommand{}, err
			}
			criterion.DateTo = &to
		}
		if raw.MinAmount != "" {
			if criterion.MinAmount, err = parseMoney(raw.MinAmount); err != nil {
				return services.UpsertPromotionCommand{}, err
			}
		}
		criteria = append(criteria, criterion)
	}

	scope := make([]domain.ScopeItem, 0, len(req.Scope))
	for _, raw := range req.Scope {
		scope = append(scope, domain.ScopeItem{
			ReferenceID:   raw.ReferenceID,
			ReferenceKind: domain.ReferenceKind(raw.ReferenceKind),
			Role:          domain.ScopeRole(raw.Role),
		})
	}

	return services.UpsertPromotionCommand{
		PromotionID: promotionID,
		Name:        req.Name,
		Description: req.Description,
		Priority:    req.Priority,
		State:       domain.PromotionState(req.State),
		Strategy:    strategy,
		Criteria:    criteria,
		Scope:       scope,
	}, nil
}

type promotionPayload struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Priority    int              `json:"priority"`
	State       string           `json:"state"`
	Strategy    map[string]any   `json:"strategy"`
	Criteria    []map[string]any `json:"criteria,omitempty"`
	Scope       []scopeRequest   `json:"scope"`
}

func buildPromotionPayload(promotion services.Promotion) promotionPayload {
	strategy := map[string]any{"kind": string(promotion.Strategy.Kind)}
	switch promotion.Strategy.Kind {
	case domain.StrategyDirectDiscount:
		strategy["discount_kind"] = string(promotion.Strategy.DiscountKind)
		if promotion.Strategy.DiscountKind == domain.DiscountPercent {
			strategy["percent"] = promotion.Strategy.Percent.String()
		} else {
			strategy["amount"] = promotion.Strategy.Amount.String()
		}
	case domain.StrategyQuantityBundle:
		strategy["bundle_take"] = promotion.Strategy.BundleTake
		strategy["bundle_pay"] = promotion.Strategy.BundlePay
	case domain.StrategyComboConditional:
		strategy["min_trigger_qty"] = promotion.Strategy.MinTriggerQty
		strategy["benefit_percent"] = promotion.Strategy.BenefitPercent.String()
	case domain.StrategyFixedPricePack:
		strategy["activate_at"] = promotion.Strategy.ActivateAt
		strategy["pack_price"] = promotion.Strategy.PackPrice.String()
	}

	criteria := make([]map[string]any, 0, len(promotion.Criteria))
	for _, criterion := range promotion.Criteria {
		entry := map[string]any{"kind": string(criterion.Kind)}
		if criterion.DateFrom != nil {
			entry["date_from"] = formatTime(*criterion.DateFrom)
		}
		if criterion.DateTo != nil {
			entry["date_to"] = formatTime(*criterion.DateTo)
		}
		if len(criterion.Weekdays) > 0 {
			days := make([]int, 0, len(criterion.Weekdays))
			for _, day := range criterion.Weekdays {
				days = append(days, int(day))
			}
			entry["weekdays"] = days
		}
		if criterion.HourFrom != nil {
			entry["hour_from"] = *criterion.HourFrom
		}
		if criterion.HourTo != nil {
			entry["hour_to"] = *criterion.HourTo
		}
		if len(criterion.ProductIDs) > 0 {
			entry["product_ids"] = criterion.ProductIDs
		}
		if criterion.MinAmount > 0 {
			entry["min_amount"] = criterion.MinAmount.String()
		}
		criteria = append(criteria, entry)
	}

	scope := make([]scopeRequest, 0, len(promotion.Scope))
	for _, item := range promotion.Scope {
		scope = append(scope, scopeRequest{
			ReferenceID:   item.ReferenceID,
			ReferenceKind: string(item.ReferenceKind),
			Role:          string(item.Role),
		})
	}

	return promotionPayload{
		ID:          promotion.ID,
		Name:        promotion.Name,
		Description: promotion.Description,
		Priority:    promotion.Priority,
		State:       string(promotion.State),
		Strategy:    strategy,
		Criteria:    criteria,
		Scope:       scope,
	}
}

func (h *PromotionHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	promotions, err := h.promotions.ListPromotions(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	payload := make([]promotionPayload, 0, len(promotions))
	for _, promotion := range promotions {
		payload = append(payload, buildPromotionPayload(promotion))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"promotions": payload})
}

func (h *PromotionHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	var req promotionRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	cmd, err := req.toCommand("")
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	promotion, err := h.promotions.CreatePromotion(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildPromotionPayload(promotion))
}

func (h *PromotionHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	promotion, err := h.promotions.GetPromotion(ctx, strings.TrimSpace(chi.URLParam(r, "promotionId")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildPromotionPayload(promotion))
}

func (h *PromotionHandlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	var req promotionRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	cmd, err := req.toCommand(strings.TrimSpace(chi.URLParam(r, "promotionId")))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	promotion, err := h.promotions.UpdatePromotion(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildPromotionPayload(promotion))
}

func (h *PromotionHandlers) setState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	var req struct {
		State string `json:"state"`
	}
	if !decodeRequest(w, r, &req) {
		return
	}

	promotion, err := h.promotions.SetPromotionState(ctx,
		strings.TrimSpace(chi.URLParam(r, "promotionId")),
		domain.PromotionState(req.State),
	)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildPromotionPayload(promotion))
}

func (h *PromotionHandlers) available(w http.ResponseWriter, r *http.Request) bool {
	if h.promotions != nil {
		return true
	}
	httpx.WriteError(r.Context(), w, httpx.NewError("service_unavailable", "promotion service not available", http.StatusServiceUnavailable))
	return false
}
