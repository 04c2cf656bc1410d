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
	"github.com/comandas/api/internal/repositories"
)

const tablesCollection = "tables"

type tableDocument struct {
	ID        string    `firestore:"-"`
	LocalID   string    `firestore:"localId"`
	Number    int       `firestore:"number"`
	State     string    `firestore:"state"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// TableRepository persists the tables of each local in a flat collection keyed
// by table id, with the local id carried as a field.
type TableRepository struct {
	base *pfirestore.BaseRepository[domain.Table]
}

// NewTableRepository constructs a Firestore-backed table repository.
func NewTableRepository(provider *pfirestore.Provider) (*TableRepository, error) {
	if provider == nil {
		return nil, errors.New("table repository: firestore provider is required")
	}

	encoder := func(ctx context.Context, value domain.Table) (any, error) {
		return encodeTableDocument(value), nil
	}
	decoder := func(ctx context.Context, snap *firestore.DocumentSnapshot) (domain.Table, error) {
		var doc tableDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.Table{}, err
		}
		doc.ID = snap.Ref.ID
		return decodeTableDocument(doc), nil
	}

	base := pfirestore.NewBaseRepository[domain.Table](provider, tablesCollection, encoder, decoder)
	return &TableRepository{base: base}, nil
}

// Insert stores a new table document, failing on id collision.
func (r *TableRepository) Insert(ctx context.Context, table domain.Table) error {
	if r == nil || r.base == nil {
		return errors.New("table repository not initialised")
	}
	table.ID = strings.TrimSpace(table.ID)
	if table.ID == "" {
		return errors.New("table repository: id is required")
	}

	docRef, err := r.base.DocumentRef(ctx, table.ID)
	if err != nil {
		return err
	}
	if _, err := docRef.Create(ctx, encodeTableDocument(table)); err != nil {
		return pfirestore.WrapError("tables.insert", err)
	}
	return nil
}

// Update replaces the table document state.
func (r *TableRepository) Update(ctx context.Context, table domain.Table) error {
	if r == nil || r.base == nil {
		return errors.New("table repository not initialised")
	}
	table.ID = strings.TrimSpace(table.ID)
	if table.ID == "" {
		return errors.New("table repository: id is required")
	}

	if _, err := r.base.Set(ctx, table.ID, table); err != nil {
		return err
	}
	return nil
}

// Delete removes the table document.
func (r *TableRepository) Delete(ctx context.Context, localID string, tableID string) error {
	if r == nil || r.base == nil {
		return errors.New("table repository not initialised")
	}
	if _, err := r.findScoped(ctx, localID, tableID, "tables.delete"); err != nil {
		return err
	}
	return r.base.Delete(ctx, tableID)
}

// FindByID loads a table of the local.
func (r *TableRepository) FindByID(ctx context.Context, localID string, tableID string) (domain.Table, error) {
	if r == nil || r.base == nil {
		return domain.Table{}, errors.New("table repository not initialised")
	}
	return r.findScoped(ctx, localID, tableID, "tables.find")
}

// ListByLocal returns every table of the local ordered by number.
func (r *TableRepository) ListByLocal(ctx context.Context, localID string) ([]domain.Table, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("table repository not initialised")
	}
	localID = strings.TrimSpace(localID)
	if localID == "" {
		return nil, errors.New("table repository: local id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("localId", "==", localID).OrderBy("number", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	tables := make([]domain.Table, 0, len(docs))
	for _, doc := range docs {
		tables = append(tables, doc.Data)
	}
	return tables, nil
}

// ExistsByNumber reports whether the local already holds a table with the number.
func (r *TableRepository) ExistsByNumber(ctx context.Context, localID string, number int) (bool, error) {
	if r == nil || r.base == nil {
		return false, errors.New("table repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("localId", "==", strings.TrimSpace(localID)).Where("number", "==", number).Limit(1)
	})
	if err != nil {
		return false, err
	}
	return len(docs) > 0, nil
}

func (r *TableRepository) findScoped(ctx context.Context, localID string, tableID string, op string) (domain.Table, error) {
	tableID = strings.TrimSpace(tableID)
	if tableID == "" {
		return domain.Table{}, errors.New("table repository: id is required")
	}

	doc, err := r.base.Get(ctx, tableID)
	if err != nil {
		return domain.Table{}, err
	}
	// A document of another local must look like a missing one.
	if doc.Data.LocalID != strings.TrimSpace(localID) {
		return domain.Table{}, pfirestore.WrapError(op, status.Errorf(codes.NotFound, "table %s not found", tableID))
	}
	return doc.Data, nil
}

func encodeTableDocument(table domain.Table) tableDocument {
	return tableDocument{
		LocalID:   strings.TrimSpace(table.LocalID),
		Number:    table.Number,
		State:     string(table.State),
		CreatedAt: table.CreatedAt.UTC(),
		UpdatedAt: table.UpdatedAt.UTC(),
	}
}

func decodeTableDocument(doc tableDocument) domain.Table {
	return domain.Table{
		ID:        doc.ID,
		LocalID:   doc.LocalID,
		Number:    doc.Number,
		State:     domain.TableState(doc.State),
		CreatedAt: doc.CreatedAt.UTC(),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}
}

var _ repositories.TableRepository = (*TableRepository)(nil)
