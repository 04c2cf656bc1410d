package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/comandas/api/internal/platform/textutil"
	"github.com/comandas/api/internal/repositories"
)

const (
	defaultProductColor = "#FFFFFF"

	catalogEventStockAdjusted = "stock.adjusted"
)

var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// CatalogServiceDeps bundles collaborators required to construct the catalog service.
type CatalogServiceDeps struct {
	Categories  repositories.CategoryRepository
	Products    repositories.ProductRepository
	Movements   repositories.StockMovementRepository
	Local       LocalContextProvider
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Events      EventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	categories repositories.CategoryRepository
	products   repositories.ProductRepository
	movements  repositories.StockMovementRepository
	local      LocalContextProvider
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	ledger     stockLedger
	events     EventPublisher
	logger     func(context.Context, string, map[string]any)
}

// NewCatalogService wires dependencies into a concrete CatalogService implementation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Categories == nil {
		return nil, errors.New("catalog service: category repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}
	if deps.Movements == nil {
		return nil, errors.New("catalog service: stock movement repository is required")
	}
	if deps.Local == nil {
		return nil, errors.New("catalog service: local context provider is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
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

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &catalogService{
		categories: deps.Categories,
		products:   deps.Products,
		movements:  deps.Movements,
		local:      deps.Local,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		ledger: stockLedger{newID: idGen},
		events: deps.Events,
		logger: logger,
	}, nil
}

func (s *catalogService) CreateCategory(ctx context.Context, cmd UpsertCategoryCommand) (Category, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return Category{}, err
	}

	name, color, err := validateNameAndColor(cmd.Name, cmd.Color)
	if err != nil {
		return Category{}, err
	}

	if err := s.checkCategoryName(ctx, localID, name); err != nil {
		return Category{}, err
	}

	now := s.clock()
	category := Category{
		ID:                 s.newID(),
		LocalID:            localID,
		Name:               name,
		Color:              color,
		Ordering:           cmd.Ordering,
		AdmitsVariants:     cmd.AdmitsVariants,
		IsExtraCategory:    cmd.IsExtraCategory,
		ModifierCategoryID: cmd.ModifierCategoryID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.categories.Insert(ctx, category); err != nil {
		return Category{}, mapRepositoryError(err, "category", category.ID)
	}
	return category, nil
}

func (s *catalogService) UpdateCategory(ctx context.Context, cmd UpsertCategoryCommand) (Category, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return Category{}, err
	}

	categoryID := strings.TrimSpace(cmd.CategoryID)
	if categoryID == "" {
		return Category{}, ValidationError{Field: "categoryId", Message: "is required"}
	}

	category, err := s.categories.FindByID(ctx, localID, categoryID)
	if err != nil {
		return Category{}, mapRepositoryError(err, "category", categoryID)
	}

	name, color, err := validateNameAndColor(cmd.Name, cmd.Color)
	if err != nil {
		return Category{}, err
	}

	if textutil.FoldName(name) != textutil.FoldName(category.Name) {
		if err := s.checkCategoryName(ctx, localID, name); err != nil {
			return Category{}, err
		}
	}

	category.Name = name
	category.Color = color
	category.Ordering = cmd.Ordering
	category.AdmitsVariants = cmd.AdmitsVariants
	category.IsExtraCategory = cmd.IsExtraCategory
	category.ModifierCategoryID = cmd.ModifierCategoryID
	category.UpdatedAt = s.clock()

	if err := s.categories.Update(ctx, category); err != nil {
		return Category{}, mapRepositoryError(err, "category", categoryID)
	}
	return category, nil
}

func (s *catalogService) DeleteCategory(ctx context.Context, categoryID string) error {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return err
	}
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return ValidationError{Field: "categoryId", Message: "is required"}
	}

	if _, err := s.categories.FindByID(ctx, localID, categoryID); err != nil {
		return mapRepositoryError(err, "category", categoryID)
	}

	products, err := s.products.ListByLocal(ctx, localID, ProductListFilter{CategoryID: &categoryID})
	if err != nil {
		return mapRepositoryError(err, "product", "")
	}
	if len(products) > 0 {
		return ValidationError{Field: "categoryId", Message: fmt.Sprintf("category still has %d products", len(products))}
	}

	if err := s.categories.Delete(ctx, localID, categoryID); err != nil {
		return mapRepositoryError(err, "category", categoryID)
	}
	return nil
}

func (s *catalogService) ListCategories(ctx context.Context) ([]Category, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return nil, err
	}

	categories, err := s.categories.ListByLocal(ctx, localID)
	if err != nil {
		return nil, mapRepositoryError(err, "category", "")
	}
	return categories, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return Product{}, err
	}

	name, color, err := validateNameAndColor(cmd.Name, cmd.Color)
	if err != nil {
		return Product{}, err
	}
	if err := validateProductShape(cmd); err != nil {
		return Product{}, err
	}

	if err := s.checkProductName(ctx, localID, name); err != nil {
		return Product{}, err
	}

	now := s.clock()
	product := Product{
		ID:                    s.newID(),
		LocalID:               localID,
		Name:                  name,
		Price:                 cmd.Price,
		Color:                 color,
		Active:                cmd.Active,
		CategoryID:            cmd.CategoryID,
		VariantGroupID:        cmd.VariantGroupID,
		StructuralCount:       cmd.StructuralCount,
		IsExtra:               cmd.IsExtra,
		IsStructuralModifier:  cmd.IsStructuralModifier,
		AdmitsExtras:          cmd.AdmitsExtras,
		RequiresConfiguration: cmd.RequiresConfiguration,
		StockTracked:          cmd.StockTracked,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.products.Insert(ctx, product); err != nil {
		return Product{}, mapRepositoryError(err, "product", product.ID)
	}
	return product, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return Product{}, err
	}

	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Product{}, ValidationError{Field: "productId", Message: "is required"}
	}

	product, err := s.products.FindByID(ctx, localID, productID)
	if err != nil {
		return Product{}, mapRepositoryError(err, "product", productID)
	}

	name, color, err := validateNameAndColor(cmd.Name, cmd.Color)
	if err != nil {
		return Product{}, err
	}
	if err := validateProductShape(cmd); err != nil {
		return Product{}, err
	}

	if textutil.FoldName(name) != textutil.FoldName(product.Name) {
		if err := s.checkProductName(ctx, localID, name); err != nil {
			return Product{}, err
		}
	}

	product.Name = name
	product.Price = cmd.Price
	product.Color = color
	product.Active = cmd.Active
	product.CategoryID = cmd.CategoryID
	product.VariantGroupID = cmd.VariantGroupID
	product.StructuralCount = cmd.StructuralCount
	product.IsExtra = cmd.IsExtra
	product.IsStructuralModifier = cmd.IsStructuralModifier
	product.AdmitsExtras = cmd.AdmitsExtras
	product.RequiresConfiguration = cmd.RequiresConfiguration
	product.StockTracked = cmd.StockTracked
	product.UpdatedAt = s.clock()

	if err := s.products.Update(ctx, product); err != nil {
		return Product{}, mapRepositoryError(err, "product", productID)
	}
	return product, nil
}

// DeleteProduct removes a product from the catalog. Historical order lines
// keep their snapshots, so deletion never orphans them.
func (s *catalogService) DeleteProduct(ctx context.Context, productID string) error {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return ValidationError{Field: "productId", Message: "is required"}
	}

	if _, err := s.products.FindByID(ctx, localID, productID); err != nil {
		return mapRepositoryError(err, "product", productID)
	}

	if err := s.products.Delete(ctx, localID, productID); err != nil {
		return mapRepositoryError(err, "product", productID)
	}
	return nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return Product{}, err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, ValidationError{Field: "productId", Message: "is required"}
	}

	product, err := s.products.FindByID(ctx, localID, productID)
	if err != nil {
		return Product{}, mapRepositoryError(err, "product", productID)
	}
	return product, nil
}

func (s *catalogService) ListProducts(ctx context.Context, filter ProductListFilter) ([]Product, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return nil, err
	}

	products, err := s.products.ListByLocal(ctx, localID, filter)
	if err != nil {
		return nil, mapRepositoryError(err, "product", "")
	}
	return products, nil
}

// AdjustStock applies an operator stock adjustment through the ledger,
// persisting the product update and the movement atomically.
func (s *catalogService) AdjustStock(ctx context.Context, cmd StockAdjustCommand) (Product, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return Product{}, err
	}

	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Product{}, ValidationError{Field: "productId", Message: "is required"}
	}

	product, err := s.products.FindByID(ctx, localID, productID)
	if err != nil {
		return Product{}, mapRepositoryError(err, "product", productID)
	}

	now := s.clock()
	updated, movement, err := s.ledger.ManualAdjust(product, cmd.Quantity, cmd.Kind, strings.TrimSpace(cmd.Reason), now)
	if err != nil {
		return Product{}, err
	}

	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.products.Update(txCtx, updated); err != nil {
			return mapRepositoryError(err, "product", productID)
		}
		if err := s.movements.Insert(txCtx, movement); err != nil {
			return mapRepositoryError(err, "stock movement", movement.ID)
		}
		return nil
	})
	if err != nil {
		return Product{}, err
	}

	s.publish(ctx, DomainEvent{
		Type:       catalogEventStockAdjusted,
		LocalID:    localID,
		Subject:    productID,
		OccurredAt: now,
		Metadata: map[string]any{
			"kind":     string(movement.Kind),
			"quantity": movement.Quantity,
			"stock":    updated.CurrentStock,
		},
	})

	return updated, nil
}

func (s *catalogService) ListStockMovements(ctx context.Context, productID string, limit int) ([]StockMovement, error) {
	localID, err := s.local.CurrentLocalID(ctx)
	if err != nil {
		return nil, err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, ValidationError{Field: "productId", Message: "is required"}
	}

	movements, err := s.movements.ListByProduct(ctx, localID, productID, limit)
	if err != nil {
		return nil, mapRepositoryError(err, "stock movement", "")
	}
	return movements, nil
}

func (s *catalogService) checkCategoryName(ctx context.Context, localID, name string) error {
	exists, err := s.categories.ExistsByName(ctx, localID, textutil.FoldName(name))
	if err != nil {
		return mapRepositoryError(err, "category", "")
	}
	if exists {
		return ConflictingNameError{Kind: "category", Name: name}
	}
	return nil
}

func (s *catalogService) checkProductName(ctx context.Context, localID, name string) error {
	exists, err := s.products.ExistsByName(ctx, localID, textutil.FoldName(name))
	if err != nil {
		return mapRepositoryError(err, "product", "")
	}
	if exists {
		return ConflictingNameError{Kind: "product", Name: name}
	}
	return nil
}

func (s *catalogService) publish(ctx context.Context, event DomainEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger(ctx, "catalog.event.publish.failed", map[string]any{
			"type":    event.Type,
			"subject": event.Subject,
			"error":   err.Error(),
		})
	}
}

// validateNameAndColor normalises the shared name/color pair of catalog
// entities. Colors default to white and are stored uppercase.
func validateNameAndColor(name, color string) (string, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", ValidationError{Field: "name", Message: "is required"}
	}

	color = strings.TrimSpace(color)
	if color == "" {
		color = defaultProductColor
	}
	if !hexColorPattern.MatchString(color) {
		return "", "", ValidationError{Field: "color", Message: fmt.Sprintf("invalid hex color %q", color)}
	}
	return name, strings.ToUpper(color), nil
}

func validateProductShape(cmd UpsertProductCommand) error {
	if cmd.Price <= 0 {
		return ValidationError{Field: "price", Message: "must be positive"}
	}
	if cmd.StructuralCount != nil && *cmd.StructuralCount < 1 {
		return ValidationError{Field: "structuralCount", Message: "must be at least 1"}
	}
	if cmd.IsExtra && cmd.AdmitsExtras {
		return ValidationError{Field: "admitsExtras", Message: "extras cannot admit extras"}
	}
	if cmd.IsStructuralModifier && !cmd.IsExtra {
		return ValidationError{Field: "isStructuralModifier", Message: "structural modifiers must be extras"}
	}
	if cmd.StructuralCount != nil && cmd.VariantGroupID == nil {
		return ValidationError{Field: "variantGroupId", Message: "structural count requires a variant group"}
	}
	return nil
}
