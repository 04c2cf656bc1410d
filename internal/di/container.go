package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/comandas/api/internal/platform/config"
	"github.com/comandas/api/internal/platform/tenant"
	"github.com/comandas/api/internal/repositories"
	"github.com/comandas/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
// Concrete implementations are assembled via dependency injection in
// NewContainer.
type Services struct {
	Tables     services.TableService
	Catalog    services.CatalogService
	Orders     services.OrderService
	Promotions services.PromotionService
	Cash       services.CashService
	Counters   services.CounterService
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// Option customises container construction.
type Option func(*containerOptions)

type containerOptions struct {
	events services.EventPublisher
	logger *zap.Logger
	clock  func() time.Time
}

// WithEventPublisher attaches the domain event publisher services emit to.
func WithEventPublisher(events services.EventPublisher) Option {
	return func(o *containerOptions) {
		o.events = events
	}
}

// WithLogger wires structured service logging.
func WithLogger(logger *zap.Logger) Option {
	return func(o *containerOptions) {
		o.logger = logger
	}
}

// WithClock injects a custom clock, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(o *containerOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// NewContainer constructs the runtime dependencies. Production wiring provides
// the Firestore registry, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	options := containerOptions{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	svc, err := buildServices(cfg, reg, options)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases repository clients and any other held resources.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(cfg config.Config, reg repositories.Registry, options containerOptions) (Services, error) {
	var svc Services

	local := tenant.ContextProvider{DefaultLocalID: cfg.Locale.DefaultLocalID}
	location := cfg.Locale.Location()
	logFn := serviceLogger(options.logger)

	counterSvc, err := services.NewCounterService(services.CounterServiceDeps{
		Repository:    reg.Counters(),
		ReceiptPrefix: cfg.Locale.ReceiptPrefix,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build counter service: %w", err)
	}
	svc.Counters = counterSvc

	tableSvc, err := services.NewTableService(services.TableServiceDeps{
		Tables:     reg.Tables(),
		Orders:     reg.Orders(),
		Local:      local,
		UnitOfWork: reg,
		Clock:      options.clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build table service: %w", err)
	}
	svc.Tables = tableSvc

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Categories: reg.Categories(),
		Products:   reg.Products(),
		Movements:  reg.StockMovements(),
		Local:      local,
		UnitOfWork: reg,
		Clock:      options.clock,
		Events:     options.events,
		Logger:     logFn,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     reg.Orders(),
		Tables:     reg.Tables(),
		Products:   reg.Products(),
		Promotions: reg.Promotions(),
		Movements:  reg.StockMovements(),
		Counters:   counterSvc,
		Local:      local,
		UnitOfWork: reg,
		Clock:      options.clock,
		Location:   location,
		Events:     options.events,
		Logger:     logFn,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	promotionSvc, err := services.NewPromotionService(services.PromotionServiceDeps{
		Promotions: reg.Promotions(),
		Products:   reg.Products(),
		Categories: reg.Categories(),
		Local:      local,
		Clock:      options.clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build promotion service: %w", err)
	}
	svc.Promotions = promotionSvc

	cashSvc, err := services.NewCashService(services.CashServiceDeps{
		Orders:     reg.Orders(),
		Tables:     reg.Tables(),
		Movements:  reg.CashMovements(),
		Journals:   reg.CashJournals(),
		Counters:   counterSvc,
		Local:      local,
		UnitOfWork: reg,
		Clock:      options.clock,
		Location:   location,
		CutoffHour: cfg.Locale.DayCutoffHour,
		Events:     options.events,
		Logger:     logFn,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cash service: %w", err)
	}
	svc.Cash = cashSvc

	return svc, nil
}

// serviceLogger adapts a zap logger to the event callback the services emit
// operational milestones through.
func serviceLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	if logger == nil {
		return nil
	}
	return func(_ context.Context, event string, fields map[string]any) {
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		logger.Info(event, zapFields...)
	}
}
