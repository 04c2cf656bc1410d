package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/comandas/api/internal/repositories"
)

const (
	counterScopeOrders = "orders"
	counterScopeEgress = "egress-receipts"
	defaultReceiptPad  = 6
)

// CounterServiceDeps bundles collaborators required to construct the counter service.
type CounterServiceDeps struct {
	Repository repositories.CounterRepository
	// ReceiptPrefix is printed in front of egress receipt numbers, e.g. "EG".
	ReceiptPrefix string
	// ReceiptPadLength is the zero-padded width of the receipt sequence.
	ReceiptPadLength int
}

type counterService struct {
	repository repositories.CounterRepository

	receiptPrefix string
	receiptPad    int

	configMu   sync.Mutex
	configured map[string]struct{}
}

// NewCounterService wires dependencies into a concrete CounterService implementation.
func NewCounterService(deps CounterServiceDeps) (CounterService, error) {
	if deps.Repository == nil {
		return nil, errors.New("counter service: repository is required")
	}

	prefix := strings.TrimSpace(deps.ReceiptPrefix)
	if prefix == "" {
		prefix = "EG"
	}

	pad := deps.ReceiptPadLength
	if pad <= 0 {
		pad = defaultReceiptPad
	}

	return &counterService{
		repository:    deps.Repository,
		receiptPrefix: prefix,
		receiptPad:    pad,
		configured:    make(map[string]struct{}),
	}, nil
}

// NextOrderNumber allocates the next monotonic order number of the local.
func (s *counterService) NextOrderNumber(ctx context.Context, localID string) (int64, error) {
	return s.next(ctx, localID, counterScopeOrders)
}

// NextEgressReceipt allocates the next egress receipt number of the local,
// formatted with the configured prefix and zero padding.
func (s *counterService) NextEgressReceipt(ctx context.Context, localID string) (string, error) {
	value, err := s.next(ctx, localID, counterScopeEgress)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%0*d", s.receiptPrefix, s.receiptPad, value), nil
}

func (s *counterService) next(ctx context.Context, localID, scope string) (int64, error) {
	localID = strings.TrimSpace(localID)
	if localID == "" {
		return 0, ValidationError{Field: "localId", Message: "is required"}
	}

	counterID := counterKey(localID, scope)
	if err := s.ensureConfigured(ctx, counterID); err != nil {
		return 0, err
	}

	value, err := s.repository.Next(ctx, counterID, 1)
	if err != nil {
		return 0, s.mapCounterError(err)
	}
	return value, nil
}

// ensureConfigured seeds the counter once per process so the first allocation
// starts at one.
func (s *counterService) ensureConfigured(ctx context.Context, counterID string) error {
	s.configMu.Lock()
	defer s.configMu.Unlock()

	if _, ok := s.configured[counterID]; ok {
		return nil
	}

	initial := int64(1)
	err := s.repository.Configure(ctx, counterID, repositories.CounterConfig{
		Step:         1,
		InitialValue: &initial,
	})
	if err != nil {
		return s.mapCounterError(err)
	}

	s.configured[counterID] = struct{}{}
	return nil
}

func (s *counterService) mapCounterError(err error) error {
	if err == nil {
		return nil
	}

	var counterErr *repositories.CounterError
	if errors.As(err, &counterErr) {
		switch counterErr.Code {
		case repositories.CounterErrorInvalidInput:
			return fmt.Errorf("%w: %v", ErrValidation, err)
		case repositories.CounterErrorExhausted:
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
	}

	return mapRepositoryError(err, "counter", "")
}

func counterKey(localID, scope string) string {
	return "local:" + localID + ":" + scope
}
