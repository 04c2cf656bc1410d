package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/comandas/api/internal/domain"
	"github.com/comandas/api/internal/platform/httpx"
	"github.com/comandas/api/internal/services"
)

// CatalogHandlers exposes category, product and stock ledger administration.
type CatalogHandlers struct {
	catalog services.CatalogService
}

// NewCatalogHandlers constructs a catalog handler set.
func NewCatalogHandlers(svc services.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{catalog: svc}
}

// Routes registers the catalog endpoints beneath /catalog.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/categories", h.listCategories)
	r.Post("/categories", h.createCategory)
	r.Put("/categories/{categoryId}", h.updateCategory)
	r.Delete("/categories/{categoryId}", h.deleteCategory)

	r.Get("/products", h.listProducts)
	r.Post("/products", h.createProduct)
	r.Get("/products/{productId}", h.getProduct)
	r.Put("/products/{productId}", h.updateProduct)
	r.Delete("/products/{productId}", h.deleteProduct)
	r.Post("/products/{productId}/stock", h.adjustStock)
	r.Get("/products/{productId}/stock-movements", h.listStockMovements)
}

type categoryRequest struct {
	Name               string  `json:"name"`
	Color              string  `json:"color"`
	Ordering           int     `json:"ordering"`
	AdmitsVariants     bool    `json:"admits_variants"`
	IsExtraCategory    bool    `json:"is_extra_category"`
	ModifierCategoryID *string `json:"modifier_category_id"`
}

type categoryPayload struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Color              string  `json:"color"`
	Ordering           int     `json:"ordering"`
	AdmitsVariants     bool    `json:"admits_variants"`
	IsExtraCategory    bool    `json:"is_extra_category"`
	ModifierCategoryID *string `json:"modifier_category_id,omitempty"`
}

func buildCategoryPayload(category services.Category) categoryPayload {
	return categoryPayload{
		ID:                 category.ID,
		Name:               category.Name,
		Color:              category.Color,
		Ordering:           category.Ordering,
		AdmitsVariants:     category.AdmitsVariants,
		IsExtraCategory:    category.IsExtraCategory,
		ModifierCategoryID: category.ModifierCategoryID,
	}
}

func (h *CatalogHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	categories, err := h.catalog.ListCategories(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	payload := make([]categoryPayload, 0, len(categories))
	for _, category := range categories {
		payload = append(payload, buildCategoryPayload(category))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"categories": payload})
}

func (h *CatalogHandlers) createCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	var req categoryRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	category, err := h.catalog.CreateCategory(ctx, services.UpsertCategoryCommand{
		Name:               req.Name,
		Color:              req.Color,
		Ordering:           req.Ordering,
		AdmitsVariants:     req.AdmitsVariants,
		IsExtraCategory:    req.IsExtraCategory,
		ModifierCategoryID: req.ModifierCategoryID,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildCategoryPayload(category))
}

func (h *CatalogHandlers) updateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	var req categoryRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	category, err := h.catalog.UpdateCategory(ctx, services.UpsertCategoryCommand{
		CategoryID:         strings.TrimSpace(chi.URLParam(r, "categoryId")),
		Name:               req.Name,
		Color:              req.Color,
		Ordering:           req.Ordering,
		AdmitsVariants:     req.AdmitsVariants,
		IsExtraCategory:    req.IsExtraCategory,
		ModifierCategoryID: req.ModifierCategoryID,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCategoryPayload(category))
}

func (h *CatalogHandlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	if err := h.catalog.DeleteCategory(ctx, strings.TrimSpace(chi.URLParam(r, "categoryId"))); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type productRequest struct {
	Name                  string  `json:"name"`
	Price                 string  `json:"price"`
	Color                 string  `json:"color"`
	Active                bool    `json:"active"`
	CategoryID            *string `json:"category_id"`
	VariantGroupID        *string `json:"variant_group_id"`
	StructuralCount       *int    `json:"structural_count"`
	IsExtra               bool    `json:"is_extra"`
	IsStructuralModifier  bool    `json:"is_structural_modifier"`
	AdmitsExtras          bool    `json:"admits_extras"`
	RequiresConfiguration bool    `json:"requires_configuration"`
	StockTracked          bool    `json:"stock_tracked"`
}

func (req productRequest) toCommand(productID string) (services.UpsertProductCommand, error) {
	price, err := parseMoney(req.Price)
	if err != nil {
		return services.UpsertProductCommand{}, err
	}
	return services.UpsertProductCommand{
		ProductID:             productID,
		Name:                  req.Name,
		Price:                 price,
		Color:                 req.Color,
		Active:                req.Active,
		CategoryID:            req.CategoryID,
		VariantGroupID:        req.VariantGroupID,
		StructuralCount:       req.StructuralCount,
		IsExtra:               req.IsExtra,
		IsStructuralModifier:  req.IsStructuralModifier,
		AdmitsExtras:          req.AdmitsExtras,
		RequiresConfiguration: req.RequiresConfiguration,
		StockTracked:          req.StockTracked,
	}, nil
}

type productPayload struct {
	ID                    string  `json:"id"`
	Name                  string  `json:"name"`
	Price                 string  `json:"price"`
	Color                 string  `json:"color,omitempty"`
	Active                bool    `json:"active"`
	CategoryID            *string `json:"category_id,omitempty"`
	VariantGroupID        *string `json:"variant_group_id,omitempty"`
	StructuralCount       *int    `json:"structural_count,omitempty"`
	IsExtra               bool    `json:"is_extra"`
	IsStructuralModifier  bool    `json:"is_structural_modifier"`
	AdmitsExtras          bool    `json:"admits_extras"`
	RequiresConfiguration bool    `json:"requires_configuration"`
	StockTracked          bool    `json:"stock_tracked"`
	CurrentStock          int     `json:"current_stock"`
}

func buildProductPayload(product services.Product) productPayload {
	return productPayload{
		ID:                    product.ID,
		Name:                  product.Name,
		Price:                 product.Price.String(),
		Color:                 product.Color,
		Active:                product.Active,
		CategoryID:            product.CategoryID,
		VariantGroupID:        product.VariantGroupID,
		StructuralCount:       product.StructuralCount,
		IsExtra:               product.IsExtra,
		IsStructuralModifier:  product.IsStructuralModifier,
		AdmitsExtras:          product.AdmitsExtras,
		RequiresConfiguration: product.RequiresConfiguration,
		StockTracked:          product.StockTracked,
		CurrentStock:          product.CurrentStock,
	}
}

func (h *CatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	filter := services.ProductListFilter{
		ActiveOnly: r.URL.Query().Get("active") == "true",
		ExtrasOnly: r.URL.Query().Get("extras") == "true",
	}
	if categoryID := strings.TrimSpace(r.URL.Query().Get("category_id")); categoryID != "" {
		filter.CategoryID = &categoryID
	}

	products, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	payload := make([]productPayload, 0, len(products))
	for _, product := range products {
		payload = append(payload, buildProductPayload(product))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"products": payload})
}

func (h *CatalogHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	var req productRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	cmd, err := req.toCommand("")
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	product, err := h.catalog.CreateProduct(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildProductPayload(product))
}

func (h *CatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	product, err := h.catalog.GetProduct(ctx, strings.TrimSpace(chi.URLParam(r, "productId")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductPayload(product))
}

func (h *CatalogHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	var req productRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	cmd, err := req.toCommand(strings.TrimSpace(chi.URLParam(r, "productId")))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	product, err := h.catalog.UpdateProduct(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductPayload(product))
}

func (h *CatalogHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	if err := h.catalog.DeleteProduct(ctx, strings.TrimSpace(chi.URLParam(r, "productId"))); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type stockAdjustRequest struct {
	Quantity int    `json:"quantity"`
	Kind     string `json:"kind"`
	Reason   string `json:"reason"`
}

func (h *CatalogHandlers) adjustStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	var req stockAdjustRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	product, err := h.catalog.AdjustStock(ctx, services.StockAdjustCommand{
		ProductID: strings.TrimSpace(chi.URLParam(r, "productId")),
		Quantity:  req.Quantity,
		Kind:      domain.StockMovementKind(req.Kind),
		Reason:    req.Reason,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductPayload(product))
}

func (h *CatalogHandlers) listStockMovements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a non-negative integer", http.StatusBadRequest))
			return
		}
		limit = parsed
	}

	movements, err := h.catalog.ListStockMovements(ctx, strings.TrimSpace(chi.URLParam(r, "productId")), limit)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	payload := make([]map[string]any, 0, len(movements))
	for _, movement := range movements {
		entry := map[string]any{
			"id":          movement.ID,
			"product_id":  movement.ProductID,
			"quantity":    movement.Quantity,
			"kind":        string(movement.Kind),
			"occurred_at": formatTime(movement.OccurredAt),
		}
		if movement.Reason != "" {
			entry["reason"] = movement.Reason
		}
		if movement.OrderID != nil {
			entry["order_id"] = *movement.OrderID
		}
		payload = append(payload, entry)
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"movements": payload})
}

func (h *CatalogHandlers) available(w http.ResponseWriter, r *http.Request) bool {
	if h.catalog != nil {
		return true
	}
	httpx.WriteError(r.Context(), w, httpx.NewError("service_unavailable", "catalog service not available", http.StatusServiceUnavailable))
	return false
}
