package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/comandas/api/internal/repositories"
)

type stubCounterRepo struct {
	mu           sync.Mutex
	nextFn       func(counterID string, step int64) (int64, error)
	configureFn  func(counterID string, cfg repositories.CounterConfig) error
	nextCalls    []string
	configCalls  []string
	lastConfigBy map[string]repositories.CounterConfig
}

func (s *stubCounterRepo) Next(_ context.Context, counterID string, step int64) (int64, error) {
	s.mu.Lock()
	s.nextCalls = append(s.nextCalls, counterID)
	s.mu.Unlock()
	if s.nextFn != nil {
		return s.nextFn(counterID, step)
	}
	return 1, nil
}

func (s *stubCounterRepo) Configure(_ context.Context, counterID string, cfg repositories.CounterConfig) error {
	s.mu.Lock()
	s.configCalls = append(s.configCalls, counterID)
	if s.lastConfigBy == nil {
		s.lastConfigBy = make(map[string]repositories.CounterConfig)
	}
	s.lastConfigBy[counterID] = cfg
	s.mu.Unlock()
	if s.configureFn != nil {
		return s.configureFn(counterID, cfg)
	}
	return nil
}

func TestNextOrderNumberScopesCounterPerLocal(t *testing.T) {
	repo := &stubCounterRepo{}
	service, err := NewCounterService(CounterServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("counter service: %v", err)
	}

	if _, err := service.NextOrderNumber(context.Background(), "local-1"); err != nil {
		t.Fatalf("next order number: %v", err)
	}
	if len(repo.nextCalls) != 1 || repo.nextCalls[0] != "local:local-1:orders" {
		t.Fatalf("next calls = %v, want local:local-1:orders", repo.nextCalls)
	}

	cfg, ok := repo.lastConfigBy["local:local-1:orders"]
	if !ok {
		t.Fatal("counter was never configured")
	}
	if cfg.Step != 1 || cfg.InitialValue == nil || *cfg.InitialValue != 1 {
		t.Fatalf("config = %+v, want step 1 starting at 1", cfg)
	}
}

func TestCounterConfiguredOncePerProcess(t *testing.T) {
	repo := &stubCounterRepo{}
	service, err := NewCounterService(CounterServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("counter service: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := service.NextOrderNumber(ctx, "local-1"); err != nil {
			t.Fatalf("next order number: %v", err)
		}
	}
	if len(repo.configCalls) != 1 {
		t.Fatalf("configure calls = %d, want 1", len(repo.configCalls))
	}
	if len(repo.nextCalls) != 3 {
		t.Fatalf("next calls = %d, want 3", len(repo.nextCalls))
	}
}

func TestNextEgressReceiptFormatting(t *testing.T) {
	value := int64(0)
	repo := &stubCounterRepo{
		nextFn: func(string, int64) (int64, error) {
			value++
			return value, nil
		},
	}
	service, err := NewCounterService(CounterServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("counter service: %v", err)
	}
	ctx := context.Background()

	receipt, err := service.NextEgressReceipt(ctx, "local-1")
	if err != nil {
		t.Fatalf("next receipt: %v", err)
	}
	if receipt != "EG-000001" {
		t.Fatalf("receipt = %q, want EG-000001", receipt)
	}

	receipt, err = service.NextEgressReceipt(ctx, "local-1")
	if err != nil {
		t.Fatalf("next receipt: %v", err)
	}
	if receipt != "EG-000002" {
		t.Fatalf("receipt = %q, want EG-000002", receipt)
	}
}

func TestNextEgressReceiptCustomPrefixAndPad(t *testing.T) {
	repo := &stubCounterRepo{
		nextFn: func(string, int64) (int64, error) { return 7, nil },
	}
	service, err := NewCounterService(CounterServiceDeps{
		Repository:       repo,
		ReceiptPrefix:    "EGR",
		ReceiptPadLength: 4,
	})
	if err != nil {
		t.Fatalf("counter service: %v", err)
	}

	receipt, err := service.NextEgressReceipt(context.Background(), "local-1")
	if err != nil {
		t.Fatalf("next receipt: %v", err)
	}
	if receipt != "EGR-0007" {
		t.Fatalf("receipt = %q, want EGR-0007", receipt)
	}
}

func TestCounterRequiresLocal(t *testing.T) {
	service, err := NewCounterService(CounterServiceDeps{Repository: &stubCounterRepo{}})
	if err != nil {
		t.Fatalf("counter service: %v", err)
	}

	_, err = service.NextOrderNumber(context.Background(), "  ")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestCounterErrorMapping(t *testing.T) {
	repo := &stubCounterRepo{
		nextFn: func(string, int64) (int64, error) {
			return 0, &repositories.CounterError{Code: repositories.CounterErrorExhausted, Message: "counter exhausted"}
		},
	}
	service, err := NewCounterService(CounterServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("counter service: %v", err)
	}

	_, err = service.NextOrderNumber(context.Background(), "local-1")
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("error = %v, want ErrTransient", err)
	}
}
