package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/comandas/api/internal/domain"
	pfirestore "github.com/comandas/api/internal/platform/firestore"
	"github.com/comandas/api/internal/repositories"
)

const cashJournalsCollection = "cashJournals"

type cashJournalDocument struct {
	ID                  string    `firestore:"-"`
	LocalID             string    `firestore:"localId"`
	OperativeDate       string    `firestore:"operativeDate"`
	RealSales           int64     `firestore:"realSales"`
	InternalConsumption int64     `firestore:"internalConsumption"`
	Egresses            int64     `firestore:"egresses"`
	CashBalance         int64     `firestore:"cashBalance"`
	OrdersClosed        int       `firestore:"ordersClosed"`
	ClosedAt            time.Time `firestore:"closedAt"`
	ClosedBy            string    `firestore:"closedBy"`
}

// CashJournalRepository persists immutable close-of-day records. The document
// id is derived from (local, operative date) so a second close of the same
// date collides at the storage layer.
type CashJournalRepository struct {
	base *pfirestore.BaseRepository[domain.CashJournal]
}

// NewCashJournalRepository constructs a Firestore-backed cash journal repository.
func NewCashJournalRepository(provider *pfirestore.Provider) (*CashJournalRepository, error) {
	if provider == nil {
		return nil, errors.New("cash journal repository: firestore provider is required")
	}

	encoder := func(ctx context.Context, value domain.CashJournal) (any, error) {
		return encodeCashJournalDocument(value), nil
	}
	decoder := func(ctx context.Context, snap *firestore.DocumentSnapshot) (domain.CashJournal, error) {
		var doc cashJournalDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CashJournal{}, err
		}
		doc.ID = snap.Ref.ID
		return decodeCashJournalDocument(doc), nil
	}

	base := pfirestore.NewBaseRepository[domain.CashJournal](provider, cashJournalsCollection, encoder, decoder)
	return &CashJournalRepository{base: base}, nil
}

// Insert stores the journal, failing with a conflict when the operative date
// was already closed.
func (r *CashJournalRepository) Insert(ctx context.Context, journal domain.CashJournal) error {
	if r == nil || r.base == nil {
		return errors.New("cash journal repository not initialised")
	}
	localID := strings.TrimSpace(journal.LocalID)
	if localID == "" {
		return errors.New("cash journal repository: local id is required")
	}
	if strings.TrimSpace(string(journal.OperativeDate)) == "" {
		return errors.New("cash journal repository: operative date is required")
	}

	docRef, err := r.base.DocumentRef(ctx, cashJournalDocID(localID, journal.OperativeDate))
	if err != nil {
		return err
	}
	if _, err := docRef.Create(ctx, encodeCashJournalDocument(journal)); err != nil {
		return pfirestore.WrapError("cash_journals.insert", err)
	}
	return nil
}

// ExistsForDate reports whether the operative date has already been closed.
func (r *CashJournalRepository) ExistsForDate(ctx context.Context, localID string, date domain.OperativeDate) (bool, error) {
	if r == nil || r.base == nil {
		return false, errors.New("cash journal repository not initialised")
	}

	_, err := r.base.Get(ctx, cashJournalDocID(strings.TrimSpace(localID), date))
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListInRange returns the journals with operative date in [from, to], newest first.
func (r *CashJournalRepository) ListInRange(ctx context.Context, localID string, from domain.OperativeDate, to domain.OperativeDate) ([]domain.CashJournal, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("cash journal repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("localId", "==", strings.TrimSpace(localID)).
			Where("operativeDate", ">=", string(from)).
			Where("operativeDate", "<=", string(to)).
			OrderBy("operativeDate", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	journals := make([]domain.CashJournal, 0, len(docs))
	for _, doc := range docs {
		journals = append(journals, doc.Data)
	}
	return journals, nil
}

func cashJournalDocID(localID string, date domain.OperativeDate) string {
	return fmt.Sprintf("local:%s:date:%s", localID, date)
}

func encodeCashJournalDocument(journal domain.CashJournal) cashJournalDocument {
	return cashJournalDocument{
		LocalID:             strings.TrimSpace(journal.LocalID),
		OperativeDate:       string(journal.OperativeDate),
		RealSales:           int64(journal.RealSales),
		InternalConsumption: int64(journal.InternalConsumption),
		Egresses:            int64(journal.Egresses),
		CashBalance:         int64(journal.CashBalance),
		OrdersClosed:        journal.OrdersClosed,
		ClosedAt:            journal.ClosedAt.UTC(),
		ClosedBy:            journal.ClosedBy,
	}
}

func decodeCashJournalDocument(doc cashJournalDocument) domain.CashJournal {
	return domain.CashJournal{
		ID:                  doc.ID,
		LocalID:             doc.LocalID,
		OperativeDate:       domain.OperativeDate(doc.OperativeDate),
		RealSales:           domain.Money(doc.RealSales),
		InternalConsumption: domain.Money(doc.InternalConsumption),
		Egresses:            domain.Money(doc.Egresses),
		CashBalance:         domain.Money(doc.CashBalance),
		OrdersClosed:        doc.OrdersClosed,
		ClosedAt:            doc.ClosedAt.UTC(),
		ClosedBy:            doc.ClosedBy,
	}
}

var _ repositories.CashJournalRepository = (*CashJournalRepository)(nil)
