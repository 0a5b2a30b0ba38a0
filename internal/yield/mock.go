package yield

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockSource is an in-process Source that holds deposits in a
// receipt-keyed map and returns them unchanged on withdrawal. It stands
// in for a real yield facility in development and tests: principal is
// safe, and yield is whatever the sponsor attests at settlement time.
type MockSource struct {
	mu       sync.Mutex
	deposits map[string]decimal.Decimal

	// FailDeposits / FailWithdrawals force the next calls to fail with
	// the given error. Used by tests to exercise abort paths.
	FailDeposits    error
	FailWithdrawals error
}

// NewMockSource creates an empty simulated yield source.
func NewMockSource() *MockSource {
	return &MockSource{deposits: make(map[string]decimal.Decimal)}
}

func (s *MockSource) Deposit(_ context.Context, amount decimal.Decimal) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailDeposits != nil {
		return "", s.FailDeposits
	}
	if !amount.IsPositive() || !amount.IsInteger() {
		return "", ErrInvalidAmount
	}

	receipt := uuid.New().String()
	s.deposits[receipt] = amount
	return receipt, nil
}

func (s *MockSource) Withdraw(_ context.Context, receipt string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWithdrawals != nil {
		return decimal.Zero, s.FailWithdrawals
	}

	amount, ok := s.deposits[receipt]
	if !ok {
		return decimal.Zero, ErrUnknownReceipt
	}
	delete(s.deposits, receipt)
	return amount, nil
}

// Held returns the total principal currently on deposit.
func (s *MockSource) Held() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, amt := range s.deposits {
		total = total.Add(amt)
	}
	return total
}
