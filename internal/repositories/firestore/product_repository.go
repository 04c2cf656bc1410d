package firestore

import (
	"context"
	"errors"
	"sort"
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

const productsCollection = "products"

type productDocument struct {
	ID                    string    `firestore:"-"`
	LocalID               string    `firestore:"localId"`
	Name                  string    `firestore:"name"`
	NameFold              string    `firestore:"nameFold"`
	Price                 int64     `firestore:"price"`
	Color                 string    `firestore:"color,omitempty"`
	Active                bool      `firestore:"active"`
	CategoryID            *string   `firestore:"categoryId,omitempty"`
	VariantGroupID        *string   `firestore:"variantGroupId,omitempty"`
	StructuralCount       *int      `firestore:"structuralCount,omitempty"`
	IsExtra               bool      `firestore:"isExtra"`
	IsStructuralModifier  bool      `firestore:"isStructuralModifier"`
	AdmitsExtras          bool      `firestore:"admitsExtras"`
	RequiresConfiguration bool      `firestore:"requiresConfiguration"`
	StockTracked          bool      `firestore:"stockTracked"`
	CurrentStock          int       `firestore:"currentStock"`
	CreatedAt             time.Time `firestore:"createdAt"`
	UpdatedAt             time.Time `firestore:"updatedAt"`
}

// ProductRepository persists catalog products. Prices travel as integer
// centavos and the folded name supports case-insensitive uniqueness checks.
type ProductRepository struct {
	base *pfirestore.BaseRepository[domain.Product]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository: firestore provider is required")
	}

	encoder := func(ctx context.Context, value domain.Product) (any, error) {
		return encodeProductDocument(value), nil
	}
	decoder := func(ctx context.Context, snap *firestore.DocumentSnapshot) (domain.Product, error) {
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.Product{}, err
		}
		doc.ID = snap.Ref.ID
		return decodeProductDocument(doc), nil
	}

	base := pfirestore.NewBaseRepository[domain.Product](provider, productsCollection, encoder, decoder)
	return &ProductRepository{base: base}, nil
}

// Insert stores a new product document, failing on id collision.
func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	product.ID = strings.TrimSpace(product.ID)
	if product.ID == "" {
		return errors.New("product repository: id is required")
	}

	docRef, err := r.base.DocumentRef(ctx, product.ID)
	if err != nil {
		return err
	}
	if _, err := docRef.Create(ctx, encodeProductDocument(product)); err != nil {
		return pfirestore.WrapError("products.insert", err)
	}
	return nil
}

// Update replaces the product document state.
func (r *ProductRepository) Update(ctx context.Context, product domain.Product) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	product.ID = strings.TrimSpace(product.ID)
	if product.ID == "" {
		return errors.New("product repository: id is required")
	}

	if _, err := r.base.Set(ctx, product.ID, product); err != nil {
		return err
	}
	return nil
}

// Delete removes the product document.
func (r *ProductRepository) Delete(ctx context.Context, localID string, productID string) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	if _, err := r.findScoped(ctx, localID, productID, "products.delete"); err != nil {
		return err
	}
	return r.base.Delete(ctx, productID)
}

// FindByID loads a product of the local.
func (r *ProductRepository) FindByID(ctx context.Context, localID string, productID string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	return r.findScoped(ctx, localID, productID, "products.find")
}

// FindByIDs loads the requested products keyed by id. Missing ids are simply
// absent from the result.
func (r *ProductRepository) FindByIDs(ctx context.Context, localID string, productIDs []string) (map[string]domain.Product, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("product repository not initialised")
	}
	localID = strings.TrimSpace(localID)

	found := make(map[string]domain.Product, len(productIDs))
	for _, id := range productIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := found[id]; ok {
			continue
		}
		doc, err := r.base.Get(ctx, id)
		if err != nil {
			var repoErr repositories.RepositoryError
			if errors.As(err, &repoErr) && repoErr.IsNotFound() {
				continue
			}
			return nil, err
		}
		if doc.Data.LocalID != localID {
			continue
		}
		found[id] = doc.Data
	}
	return found, nil
}

// ListByLocal returns the products of the local matching the filter, ordered
// by folded name.
func (r *ProductRepository) ListByLocal(ctx context.Context, localID string, filter repositories.ProductListFilter) ([]domain.Product, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("product repository not initialised")
	}
	localID = strings.TrimSpace(localID)
	if localID == "" {
		return nil, errors.New("product repository: local id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("localId", "==", localID)
		if filter.ActiveOnly {
			q = q.Where("active", "==", true)
		}
		if filter.ExtrasOnly {
			q = q.Where("isExtra", "==", true)
		}
		if filter.CategoryID != nil {
			q = q.Where("categoryId", "==", strings.TrimSpace(*filter.CategoryID))
		}
		return q.OrderBy("nameFold", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, doc.Data)
	}
	return products, nil
}

// ListByGroup returns every product of a variant group.
func (r *ProductRepository) ListByGroup(ctx context.Context, localID string, variantGroupID string) ([]domain.Product, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("product repository not initialised")
	}
	variantGroupID = strings.TrimSpace(variantGroupID)
	if variantGroupID == "" {
		return nil, errors.New("product repository: variant group id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("localId", "==", strings.TrimSpace(localID)).
			Where("variantGroupId", "==", variantGroupID)
	})
	if err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, doc.Data)
	}
	return products, nil
}

// ListStructuralModifierIDs returns the sorted ids of every structural
// modifier product of the local.
func (r *ProductRepository) ListStructuralModifierIDs(ctx context.Context, localID string) ([]string, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("product repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("localId", "==", strings.TrimSpace(localID)).
			Where("isStructuralModifier", "==", true)
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

// ExistsByName matches case-insensitively against the stored folded name.
func (r *ProductRepository) ExistsByName(ctx context.Context, localID string, nameFold string) (bool, error) {
	if r == nil || r.base == nil {
		return false, errors.New("product repository not initialised")
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

func (r *ProductRepository) findScoped(ctx context.Context, localID string, productID string, op string) (domain.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, errors.New("product repository: id is required")
	}

	doc, err := r.base.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	if doc.Data.LocalID != strings.TrimSpace(localID) {
		return domain.Product{}, pfirestore.WrapError(op, status.Errorf(codes.NotFound, "product %s not found", productID))
	}
	return doc.Data, nil
}

func encodeProductDocument(product domain.Product) productDocument {
	return productDocument{
		LocalID:               strings.TrimSpace(product.LocalID),
		Name:                  product.Name,
		NameFold:              textutil.FoldName(product.Name),
		Price:                 int64(product.Price),
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
		CreatedAt:             product.CreatedAt.UTC(),
		UpdatedAt:             product.UpdatedAt.UTC(),
	}
}

func decodeProductDocument(doc productDocument) domain.Product {
	return domain.Product{
		ID:                    doc.ID,
		LocalID:               doc.LocalID,
		Name:                  doc.Name,
		Price:                 domain.Money(doc.Price),
		Color:                 doc.Color,
		Active:                doc.Active,
		CategoryID:            doc.CategoryID,
		VariantGroupID:        doc.VariantGroupID,
		StructuralCount:       doc.StructuralCount,
		IsExtra:               doc.IsExtra,
		IsStructuralModifier:  doc.IsStructuralModifier,
		AdmitsExtras:          doc.AdmitsExtras,
		RequiresConfiguration: doc.RequiresConfiguration,
		StockTracked:          doc.StockTracked,
		CurrentStock:          doc.CurrentStock,
		CreatedAt:             doc.CreatedAt.UTC(),
		UpdatedAt:             doc.UpdatedAt.UTC(),
	}
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)
