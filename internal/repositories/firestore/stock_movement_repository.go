package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/comandas/api/internal/domain"
	pfirestore "github.com/comandas/api/internal/platform/firestore"
	"github.com/comandas/api/internal/repositories"
)

const stockMovementsCollection = "stockMovements"

type stockMovementDocument struct {
	ID         string    `firestore:"-"`
	LocalID    string    `firestore:"localId"`
	ProductID  string    `firestore:"productId"`
	Quantity   int       `firestore:"quantity"`
	Kind       string    `firestore:"kind"`
	Reason     string    `firestore:"reason,omitempty"`
	OrderID    *string   `firestore:"orderId,omitempty"`
	OccurredAt time.Time `firestore:"occurredAt"`
}

// StockMovementRepository appends immutable stock ledger rows. Rows are only
// ever created, never updated.
type StockMovementRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[domain.StockMovement]
}

// NewStockMovementRepository constructs a Firestore-backed stock ledger.
func NewStockMovementRepository(provider *pfirestore.Provider) (*StockMovementRepository, error) {
	if provider == nil {
		return nil, errors.New("stock movement repository: firestore provider is required")
	}

	encoder := func(ctx context.Context, value domain.StockMovement) (any, error) {
		return encodeStockMovementDocument(value), nil
	}
	decoder := func(ctx context.Context, snap *firestore.DocumentSnapshot) (domain.StockMovement, error) {
		var doc stockMovementDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.StockMovement{}, err
		}
		doc.ID = snap.Ref.ID
		return decodeStockMovementDocument(doc), nil
	}

	base := pfirestore.NewBaseRepository[domain.StockMovement](provider, stockMovementsCollection, encoder, decoder)
	return &StockMovementRepository{provider: provider, base: base}, nil
}

// Insert appends one ledger row.
func (r *StockMovementRepository) Insert(ctx context.Context, movement domain.StockMovement) error {
	if r == nil || r.base == nil {
		return errors.New("stock movement repository not initialised")
	}
	movement.ID = strings.TrimSpace(movement.ID)
	if movement.ID == "" {
		return errors.New("stock movement repository: id is required")
	}

	docRef, err := r.base.DocumentRef(ctx, movement.ID)
	if err != nil {
		return err
	}
	if _, err := docRef.Create(ctx, encodeStockMovementDocument(movement)); err != nil {
		return pfirestore.WrapError("stock_movements.insert", err)
	}
	return nil
}

// InsertAll appends the rows in a single batched write.
func (r *StockMovementRepository) InsertAll(ctx context.Context, movements []domain.StockMovement) error {
	if r == nil || r.base == nil || r.provider == nil {
		return errors.New("stock movement repository not initialised")
	}
	if len(movements) == 0 {
		return nil
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	writer := client.BulkWriter(ctx)
	for _, movement := range movements {
		movement.ID = strings.TrimSpace(movement.ID)
		if movement.ID == "" {
			return errors.New("stock movement repository: id is required")
		}
		docRef, err := r.base.DocumentRef(ctx, movement.ID)
		if err != nil {
			return err
		}
		if _, err := writer.Create(docRef, encodeStockMovementDocument(movement)); err != nil {
			return pfirestore.WrapError("stock_movements.insert_all", err)
		}
	}
	writer.End()
	return nil
}

// ListByProduct returns movements for one product, newest first, up to limit.
func (r *StockMovementRepository) ListByProduct(ctx context.Context, localID string, productID string, limit int) ([]domain.StockMovement, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("stock movement repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, errors.New("stock movement repository: product id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("localId", "==", strings.TrimSpace(localID)).
			Where("productId", "==", productID).
			OrderBy("occurredAt", firestore.Desc)
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q
	})
	if err != nil {
		return nil, err
	}

	movements := make([]domain.StockMovement, 0, len(docs))
	for _, doc := range docs {
		movements = append(movements, doc.Data)
	}
	return movements, nil
}

func encodeStockMovementDocument(movement domain.StockMovement) stockMovementDocument {
	return stockMovementDocument{
		LocalID:    strings.TrimSpace(movement.LocalID),
		ProductID:  strings.TrimSpace(movement.ProductID),
		Quantity:   movement.Quantity,
		Kind:       string(movement.Kind),
		Reason:     movement.Reason,
		OrderID:    movement.OrderID,
		OccurredAt: movement.OccurredAt.UTC(),
	}
}

func decodeStockMovementDocument(doc stockMovementDocument) domain.StockMovement {
	return domain.StockMovement{
		ID:         doc.ID,
		LocalID:    doc.LocalID,
		ProductID:  doc.ProductID,
		Quantity:   doc.Quantity,
		Kind:       domain.StockMovementKind(doc.Kind),
		Reason:     doc.Reason,
		OrderID:    doc.OrderID,
		OccurredAt: doc.OccurredAt.UTC(),
	}
}

var _ repositories.StockMovementRepository = (*StockMovementRepository)(nil)
