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

const categoriesCollection = "categories"

type categoryDocument struct {
	ID                 string    `firestore:"-"`
	LocalID            string    `firestore:"localId"`
	Name               string    `firestore:"name"`
	NameFold           string    `firestore:"nameFold"`
	Color              string    `firestore:"color"`
	Ordering           int       `firestore:"ordering"`
	AdmitsVariants     bool      `firestore:"admitsVariants"`
	IsExtraCategory    bool      `firestore:"isExtraCategory"`
	ModifierCategoryID *string   `firestore:"modifierCategoryId,omitempty"`
	CreatedAt          time.Time `firestore:"createdAt"`
	UpdatedAt          time.Time `firestore:"updatedAt"`
}

// CategoryRepository persists catalog categories. The folded name is stored
// alongside the display name so uniqueness checks run as equality queries.
type CategoryRepository struct {
	base *pfirestore.BaseRepository[domain.Category]
}

// NewCategoryRepository constructs a Firestore-backed category repository.
func NewCategoryRepository(provider *pfirestore.Provider) (*CategoryRepository, error) {
	if provider == nil {
		return nil, errors.New("category repository: firestore provider is required")
	}

	encoder := func(ctx context.Context, value domain.Category) (any, error) {
		return encodeCategoryDocument(value), nil
	}
	decoder := func(ctx context.Context, snap *firestore.DocumentSnapshot) (domain.Category, error) {
		var doc categoryDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.Category{}, err
		}
		doc.ID = snap.Ref.ID
		return decodeCategoryDocument(doc), nil
	}

	base := pfirestore.NewBaseRepository[domain.Category](provider, categoriesCollection, encoder, decoder)
	return &CategoryRepository{base: base}, nil
}

// Insert stores a new category document, failing on id collision.
func (r *CategoryRepository) Insert(ctx context.Context, category domain.Category) error {
	if r == nil || r.base == nil {
		return errors.New("category repository not initialised")
	}
	category.ID = strings.TrimSpace(category.ID)
	if category.ID == "" {
		return errors.New("category repository: id is required")
	}

	docRef, err := r.base.DocumentRef(ctx, category.ID)
	if err != nil {
		return err
	}
	if _, err := docRef.Create(ctx, encodeCategoryDocument(category)); err != nil {
		return pfirestore.WrapError("categories.insert", err)
	}
	return nil
}

// Update replaces the category document state.
func (r *CategoryRepository) Update(ctx context.Context, category domain.Category) error {
	if r == nil || r.base == nil {
		return errors.New("category repository not initialised")
	}
	category.ID = strings.TrimSpace(category.ID)
	if category.ID == "" {
		return errors.New("category repository: id is required")
	}

	if _, err := r.base.Set(ctx, category.ID, category); err != nil {
		return err
	}
	return nil
}

// Delete removes the category document.
func (r *CategoryRepository) Delete(ctx context.Context, localID string, categoryID string) error {
	if r == nil || r.base == nil {
		return errors.New("category repository not initialised")
	}
	if _, err := r.findScoped(ctx, localID, categoryID, "categories.delete"); err != nil {
		return err
	}
	return r.base.Delete(ctx, categoryID)
}

// FindByID loads a category of the local.
func (r *CategoryRepository) FindByID(ctx context.Context, localID string, categoryID string) (domain.Category, error) {
	if r == nil || r.base == nil {
		return domain.Category{}, errors.New("category repository not initialised")
	}
	return r.findScoped(ctx, localID, categoryID, "categories.find")
}

// ListByLocal returns every category of the local ordered for display.
func (r *CategoryRepository) ListByLocal(ctx context.Context, localID string) ([]domain.Category, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("category repository not initialised")
	}
	localID = strings.TrimSpace(localID)
	if localID == "" {
		return nil, errors.New("category repository: local id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("localId", "==", localID).OrderBy("ordering", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	categories := make([]domain.Category, 0, len(docs))
	for _, doc := range docs {
		categories = append(categories, doc.Data)
	}
	return categories, nil
}

// ExistsByName matches case-insensitively against the stored folded name.
func (r *CategoryRepository) ExistsByName(ctx context.Context, localID string, nameFold string) (bool, error) {
	if r == nil || r.base == nil {
		return false, errors.New("category repository not initialised")
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

func (r *CategoryRepository) findScoped(ctx context.Context, localID string, categoryID string, op string) (domain.Category, error) {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return domain.Category{}, errors.New("category repository: id is required")
	}

	doc, err := r.base.Get(ctx, categoryID)
	if err != nil {
		return domain.Category{}, err
	}
	if doc.Data.LocalID != strings.TrimSpace(localID) {
		return domain.Category{}, pfirestore.WrapError(op, status.Errorf(codes.NotFound, "category %s not found", categoryID))
	}
	return doc.Data, nil
}

func encodeCategoryDocument(category domain.Category) categoryDocument {
	return categoryDocument{
		LocalID:            strings.TrimSpace(category.LocalID),
		Name:               category.Name,
		NameFold:           textutil.FoldName(category.Name),
		Color:              category.Color,
		Ordering:           category.Ordering,
		AdmitsVariants:     category.AdmitsVariants,
		IsExtraCategory:    category.IsExtraCategory,
		ModifierCategoryID: category.ModifierCategoryID,
		CreatedAt:          category.CreatedAt.UTC(),
		UpdatedAt:          category.UpdatedAt.UTC(),
	}
}

func decodeCategoryDocument(doc categoryDocument) domain.Category {
	return domain.Category{
		ID:                 doc.ID,
		LocalID:            doc.LocalID,
		Name:               doc.Name,
		Color:              doc.Color,
		Ordering:           doc.Ordering,
		AdmitsVariants:     doc.AdmitsVariants,
		IsExtraCategory:    doc.IsExtraCategory,
		ModifierCategoryID: doc.ModifierCategoryID,
		CreatedAt:          doc.CreatedAt.UTC(),
		UpdatedAt:          doc.UpdatedAt.UTC(),
	}
}

var _ repositories.CategoryRepository = (*CategoryRepository)(nil)
