package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	domain "github.com/comandas/api/internal/domain"
	"github.com/comandas/api/internal/platform/textutil"
	"github.com/comandas/api/internal/repositories"
)

// stubRepoError implements repositories.RepositoryError for tests.
type stubRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
	msg         string
}

func (e stubRepoError) Error() string       { return e.msg }
func (e stubRepoError) IsNotFound() bool    { return e.notFound }
func (e stubRepoError) IsConflict() bool    { return e.conflict }
func (e stubRepoError) IsUnavailable() bool { return e.unavailable }

func notFoundErr(kind string) error {
	return stubRepoError{notFound: true, msg: kind + " not found"}
}

func conflictErr(kind string) error {
	return stubRepoError{conflict: true, msg: kind + " already exists"}
}

// stubLocal always resolves the same tenant.
type stubLocal string

func (s stubLocal) CurrentLocalID(context.Context) (string, error) {
	return string(s), nil
}

// sequentialIDs returns deterministic ids id-1, id-2, ...
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// memTables -----------------------------------------------------------------

type memTables struct {
	tables map[string]domain.Table
}

func newMemTables(tables ...domain.Table) *memTables {
	m := &memTables{tables: make(map[string]domain.Table)}
	for _, table := range tables {
		m.tables[table.ID] = table
	}
	return m
}

func (m *memTables) Insert(_ context.Context, table domain.Table) error {
	if _, ok := m.tables[table.ID]; ok {
		return conflictErr("table")
	}
	m.tables[table.ID] = table
	return nil
}

func (m *memTables) Update(_ context.Context, table domain.Table) error {
	if _, ok := m.tables[table.ID]; !ok {
		return notFoundErr("table")
	}
	m.tables[table.ID] = table
	return nil
}

func (m *memTables) Delete(_ context.Context, localID, tableID string) error {
	table, ok := m.tables[tableID]
	if !ok || table.LocalID != localID {
		return notFoundErr("table")
	}
	delete(m.tables, tableID)
	return nil
}

func (m *memTables) FindByID(_ context.Context, localID, tableID string) (domain.Table, error) {
	table, ok := m.tables[tableID]
	if !ok || table.LocalID != localID {
		return domain.Table{}, notFoundErr("table")
	}
	return table, nil
}

func (m *memTables) ListByLocal(_ context.Context, localID string) ([]domain.Table, error) {
	var tables []domain.Table
	for _, table := range m.tables {
		if table.LocalID == localID {
			tables = append(tables, table)
		}
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Number < tables[j].Number })
	return tables, nil
}

func (m *memTables) ExistsByNumber(_ context.Context, localID string, number int) (bool, error) {
	for _, table := range m.tables {
		if table.LocalID == localID && table.Number == number {
			return true, nil
		}
	}
	return false, nil
}

// memCategories --------------------------------------------------------------

type memCategories struct {
	categories map[string]domain.Category
}

func newMemCategories(categories ...domain.Category) *memCategories {
	m := &memCategories{categories: make(map[string]domain.Category)}
	for _, category := range categories {
		m.categories[category.ID] = category
	}
	return m
}

func (m *memCategories) Insert(_ context.Context, category domain.Category) error {
	m.categories[category.ID] = category
	return nil
}

func (m *memCategories) Update(_ context.Context, category domain.Category) error {
	if _, ok := m.categories[category.ID]; !ok {
		return notFoundErr("category")
	}
	m.categories[category.ID] = category
	return nil
}

func (m *memCategories) Delete(_ context.Context, localID, categoryID string) error {
	category, ok := m.categories[categoryID]
	if !ok || category.LocalID != localID {
		return notFoundErr("category")
	}
	delete(m.categories, categoryID)
	return nil
}

func (m *memCategories) FindByID(_ context.Context, localID, categoryID string) (domain.Category, error) {
	category, ok := m.categories[categoryID]
	if !ok || category.LocalID != localID {
		return domain.Category{}, notFoundErr("category")
	}
	return category, nil
}

func (m *memCategories) ListByLocal(_ context.Context, localID string) ([]domain.Category, error) {
	var categories []domain.Category
	for _, category := range m.categories {
		if category.LocalID == localID {
			categories = append(categories, category)
		}
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Ordering < categories[j].Ordering })
	return categories, nil
}

func (m *memCategories) ExistsByName(_ context.Context, localID, nameFold string) (bool, error) {
	for _, category := range m.categories {
		if category.LocalID == localID && textutil.FoldName(category.Name) == nameFold {
			return true, nil
		}
	}
	return false, nil
}

// memProducts ----------------------------------------------------------------

type memProducts struct {
	products map[string]domain.Product
}

func newMemProducts(products ...domain.Product) *memProducts {
	m := &memProducts{products: make(map[string]domain.Product)}
	for _, product := range products {
		m.products[product.ID] = product
	}
	return m
}

func (m *memProducts) Insert(_ context.Context, product domain.Product) error {
	m.products[product.ID] = product
	return nil
}

func (m *memProducts) Update(_ context.Context, product domain.Product) error {
	if _, ok := m.products[product.ID]; !ok {
		return notFoundErr("product")
	}
	m.products[product.ID] = product
	return nil
}

func (m *memProducts) Delete(_ context.Context, localID, productID string) error {
	product, ok := m.products[productID]
	if !ok || product.LocalID != localID {
		return notFoundErr("product")
	}
	delete(m.products, productID)
	return nil
}

func (m *memProducts) FindByID(_ context.Context, localID, productID string) (domain.Product, error) {
	product, ok := m.products[productID]
	if !ok || product.LocalID != localID {
		return domain.Product{}, notFoundErr("product")
	}
	return product, nil
}

func (m *memProducts) FindByIDs(_ context.Context, localID string, productIDs []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product)
	for _, id := range productIDs {
		if product, ok := m.products[id]; ok && product.LocalID == localID {
			result[id] = product
		}
	}
	return result, nil
}

func (m *memProducts) ListByLocal(_ context.Context, localID string, filter repositories.ProductListFilter) ([]domain.Product, error) {
	var products []domain.Product
	for _, product := range m.products {
		if product.LocalID != localID {
			continue
		}
		if filter.ActiveOnly && !product.Active {
			continue
		}
		if filter.ExtrasOnly && !product.IsExtra {
			continue
		}
		if filter.CategoryID != nil {
			if product.CategoryID == nil || *product.CategoryID != *filter.CategoryID {
				continue
			}
		}
		products = append(products, product)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (m *memProducts) ListByGroup(_ context.Context, localID, variantGroupID string) ([]domain.Product, error) {
	var products []domain.Product
	for _, product := range m.products {
		if product.LocalID == localID && product.VariantGroupID != nil && *product.VariantGroupID == variantGroupID {
			products = append(products, product)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (m *memProducts) ListStructuralModifierIDs(_ context.Context, localID string) ([]string, error) {
	var ids []string
	for _, product := range m.products {
		if product.LocalID == localID && product.IsStructuralModifier {
			ids = append(ids, product.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memProducts) ExistsByName(_ context.Context, localID, nameFold string) (bool, error) {
	for _, product := range m.products {
		if product.LocalID == localID && textutil.FoldName(product.Name) == nameFold {
			return true, nil
		}
	}
	return false, nil
}

// memPromotions --------------------------------------------------------------

type memPromotions struct {
	promotions map[string]domain.Promotion
}

func newMemPromotions(promotions ...domain.Promotion) *memPromotions {
	m := &memPromotions{promotions: make(map[string]domain.Promotion)}
	for _, promotion := range promotions {
		m.promotions[promotion.ID] = promotion
	}
	return m
}

func (m *memPromotions) Insert(_ context.Context, promotion domain.Promotion) error {
	m.promotions[promotion.ID] = promotion
	return nil
}

func (m *memPromotions) Update(_ context.Context, promotion domain.Promotion) error {
	if _, ok := m.promotions[promotion.ID]; !ok {
		return notFoundErr("promotion")
	}
	m.promotions[promotion.ID] = promotion
	return nil
}

func (m *memPromotions) FindByID(_ context.Context, localID, promotionID string) (domain.Promotion, error) {
	promotion, ok := m.promotions[promotionID]
	if !ok || promotion.LocalID != localID {
		return domain.Promotion{}, notFoundErr("promotion")
	}
	return promotion, nil
}

func (m *memPromotions) ListByLocal(_ context.Context, localID string) ([]domain.Promotion, error) {
	var promotions []domain.Promotion
	for _, promotion := range m.promotions {
		if promotion.LocalID == localID {
			promotions = append(promotions, promotion)
		}
	}
	sort.Slice(promotions, func(i, j int) bool { return promotions[i].Name < promotions[j].Name })
	return promotions, nil
}

func (m *memPromotions) ListActiveByLocal(_ context.Context, localID string) ([]domain.Promotion, error) {
	var promotions []domain.Promotion
	for _, promotion := range m.promotions {
		if promotion.LocalID == localID && promotion.State == domain.PromotionActive {
			promotions = append(promotions, promotion)
		}
	}
	sort.Slice(promotions, func(i, j int) bool { return promotions[i].Name < promotions[j].Name })
	return promotions, nil
}

func (m *memPromotions) ExistsByName(_ context.Context, localID, nameFold string) (bool, error) {
	for _, promotion := range m.promotions {
		if promotion.LocalID == localID && textutil.FoldName(promotion.Name) == nameFold {
			return true, nil
		}
	}
	return false, nil
}

// memOrders ------------------------------------------------------------------

type memOrders struct {
	orders map[string]domain.Order
}

func newMemOrders(orders ...domain.Order) *memOrders {
	m := &memOrders{orders: make(map[string]domain.Order)}
	for _, order := range orders {
		m.orders[order.ID] = order
	}
	return m
}

func (m *memOrders) Insert(_ context.Context, order domain.Order) error {
	if _, ok := m.orders[order.ID]; ok {
		return conflictErr("order")
	}
	m.orders[order.ID] = order
	return nil
}

func (m *memOrders) Update(_ context.Context, order domain.Order) error {
	if _, ok := m.orders[order.ID]; !ok {
		return notFoundErr("order")
	}
	m.orders[order.ID] = order
	return nil
}

func (m *memOrders) FindByID(_ context.Context, localID, orderID string) (domain.Order, error) {
	order, ok := m.orders[orderID]
	if !ok || order.LocalID != localID {
		return domain.Order{}, notFoundErr("order")
	}
	return order, nil
}

func (m *memOrders) FindOpenByTable(_ context.Context, localID, tableID string) (domain.Order, error) {
	for _, order := range m.orders {
		if order.LocalID == localID && order.TableID == tableID && order.State == domain.OrderStateOpen {
			return order, nil
		}
	}
	return domain.Order{}, notFoundErr("order")
}

func (m *memOrders) ListByTableAndState(_ context.Context, localID, tableID string, state domain.OrderState) ([]domain.Order, error) {
	var orders []domain.Order
	for _, order := range m.orders {
		if order.LocalID == localID && order.TableID == tableID && order.State == state {
			orders = append(orders, order)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].Number < orders[j].Number })
	return orders, nil
}

func (m *memOrders) ListClosedInWindow(_ context.Context, localID string, from, to time.Time) ([]domain.Order, error) {
	var orders []domain.Order
	for _, order := range m.orders {
		if order.LocalID != localID || order.State != domain.OrderStateClosed || order.ClosedAt == nil {
			continue
		}
		closedAt := *order.ClosedAt
		if closedAt.Before(from) || !closedAt.Before(to) {
			continue
		}
		orders = append(orders, order)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].Number < orders[j].Number })
	return orders, nil
}

// memStockMovements ----------------------------------------------------------

type memStockMovements struct {
	movements []domain.StockMovement
}

func (m *memStockMovements) Insert(_ context.Context, movement domain.StockMovement) error {
	m.movements = append(m.movements, movement)
	return nil
}

func (m *memStockMovements) InsertAll(_ context.Context, movements []domain.StockMovement) error {
	m.movements = append(m.movements, movements...)
	return nil
}

func (m *memStockMovements) ListByProduct(_ context.Context, localID, productID string, limit int) ([]domain.StockMovement, error) {
	var movements []domain.StockMovement
	for i := len(m.movements) - 1; i >= 0; i-- {
		movement := m.movements[i]
		if movement.LocalID != localID || movement.ProductID != productID {
			continue
		}
		movements = append(movements, movement)
		if limit > 0 && len(movements) == limit {
			break
		}
	}
	return movements, nil
}

// memCashMovements -----------------------------------------------------------

type memCashMovements struct {
	movements []domain.CashMovement
}

func (m *memCashMovements) Insert(_ context.Context, movement domain.CashMovement) error {
	m.movements = append(m.movements, movement)
	return nil
}

func (m *memCashMovements) ListInWindow(_ context.Context, localID string, from, to time.Time) ([]domain.CashMovement, error) {
	var movements []domain.CashMovement
	for _, movement := range m.movements {
		if movement.LocalID != localID {
			continue
		}
		if movement.CreatedAt.Before(from) || !movement.CreatedAt.Before(to) {
			continue
		}
		movements = append(movements, movement)
	}
	return movements, nil
}

// memCashJournals ------------------------------------------------------------

type memCashJournals struct {
	journals []domain.CashJournal
}

func (m *memCashJournals) Insert(_ context.Context, journal domain.CashJournal) error {
	for _, existing := range m.journals {
		if existing.LocalID == journal.LocalID && existing.OperativeDate == journal.OperativeDate {
			return conflictErr("cash journal")
		}
	}
	m.journals = append(m.journals, journal)
	return nil
}

func (m *memCashJournals) ExistsForDate(_ context.Context, localID string, date domain.OperativeDate) (bool, error) {
	for _, journal := range m.journals {
		if journal.LocalID == localID && journal.OperativeDate == date {
			return true, nil
		}
	}
	return false, nil
}

func (m *memCashJournals) ListInRange(_ context.Context, localID string, from, to domain.OperativeDate) ([]domain.CashJournal, error) {
	var journals []domain.CashJournal
	for _, journal := range m.journals {
		if journal.LocalID != localID {
			continue
		}
		if strings.Compare(string(journal.OperativeDate), string(from)) < 0 {
			continue
		}
		if strings.Compare(string(journal.OperativeDate), string(to)) > 0 {
			continue
		}
		journals = append(journals, journal)
	}
	sort.Slice(journals, func(i, j int) bool {
		return journals[i].OperativeDate > journals[j].OperativeDate
	})
	return journals, nil
}

// memCounters ----------------------------------------------------------------

type memCounters struct {
	values map[string]int64
}

func newMemCounters() *memCounters {
	return &memCounters{values: make(map[string]int64)}
}

func (m *memCounters) Next(_ context.Context, counterID string, step int64) (int64, error) {
	if step <= 0 {
		step = 1
	}
	m.values[counterID] += step
	return m.values[counterID], nil
}

func (m *memCounters) Configure(_ context.Context, _ string, _ repositories.CounterConfig) error {
	return nil
}

// capturingPublisher ---------------------------------------------------------

type capturingPublisher struct {
	events []DomainEvent
	err    error
}

func (p *capturingPublisher) Publish(_ context.Context, event DomainEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}
