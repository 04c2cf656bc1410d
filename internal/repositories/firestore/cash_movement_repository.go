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

const cashMovementsCollection = "cashMovements"

type cashMovementDocument struct {
	ID            string    `firestore:"-"`
	LocalID       string    `firestore:"localId"`
	Kind          string    `firestore:"kind"`
	Amount        int64     `firestore:"amount"`
	Description   string    `firestore:"description"`
	ReceiptNumber string    `firestore:"receiptNumber"`
	CreatedBy     string    `firestore:"createdBy,omitempty"`
	CreatedAt     time.Time `firestore:"createdAt"`
}

// CashMovementRepository persists manual cash drawer movements.
type CashMovementRepository struct {
	base *pfirestore.BaseRepository[domain.CashMovement]
}

// NewCashMovementRepository constructs a Firestore-backed cash movement repository.
func NewCashMovementRepository(provider *pfirestore.Provider) (*CashMovementRepository, error) {
	if provider == nil {
		return nil, errors.New("cash movement repository: firestore provider is required")
	}

	encoder := func(ctx context.Context, value domain.CashMovement) (any, error) {
		return encodeCashMovementDocument(value), nil
	}
	decoder := func(ctx context.Context, snap *firestore.DocumentSnapshot) (domain.CashMovement, error) {
		var doc cashMovementDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CashMovement{}, err
		}
		doc.ID = snap.Ref.ID
		return decodeCashMovementDocument(doc), nil
	}

	base := pfirestore.NewBaseRepository[domain.CashMovement](provider, cashMovementsCollection, encoder, decoder)
	return &CashMovementRepository{base: base}, nil
}

// Insert appends one cash movement.
func (r *CashMovementRepository) Insert(ctx context.Context, movement domain.CashMovement) error {
	if r == nil || r.base == nil {
		return errors.New("cash movement repository not initialised")
	}
	movement.ID = strings.TrimSpace(movement.ID)
	if movement.ID == "" {
		return errors.New("cash movement repository: id is required")
	}

	docRef, err := r.base.DocumentRef(ctx, movement.ID)
	if err != nil {
		return err
	}
	if _, err := docRef.Create(ctx, encodeCashMovementDocument(movement)); err != nil {
		return pfirestore.WrapError("cash_movements.insert", err)
	}
	return nil
}

// ListInWindow returns the movements created within [from, to).
func (r *CashMovementRepository) ListInWindow(ctx context.Context, localID string, from time.Time, to time.Time) ([]domain.CashMovement, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("cash movement repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("localId", "==", strings.TrimSpace(localID)).
			Where("createdAt", ">=", from.UTC()).
			Where("createdAt", "<", to.UTC()).
			OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	movements := make([]domain.CashMovement, 0, len(docs))
	for _, doc := range docs {
		movements = append(movements, doc.Data)
	}
	return movements, nil
}

func encodeCashMovementDocument(movement domain.CashMovement) cashMovementDocument {
	return cashMovementDocument{
		LocalID:       strings.TrimSpace(movement.LocalID),
		Kind:          string(movement.Kind),
		Amount:        int64(movement.Amount),
		Description:   movement.Description,
		ReceiptNumber: movement.ReceiptNumber,
		CreatedBy:     movement.CreatedBy,
		CreatedAt:     movement.CreatedAt.UTC(),
	}
}

func decodeCashMovementDocument(doc cashMovementDocument) domain.CashMovement {
	return domain.CashMovement{
		ID:            doc.ID,
		LocalID:       doc.LocalID,
		Kind:          domain.CashMovementKind(doc.Kind),
		Amount:        domain.Money(doc.Amount),
		Description:   doc.Description,
		ReceiptNumber: doc.ReceiptNumber,
		CreatedBy:     doc.CreatedBy,
		CreatedAt:     doc.CreatedAt.UTC(),
	}
}

var _ repositories.CashMovementRepository = (*CashMovementRepository)(nil)
