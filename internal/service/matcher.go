package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"payrecon/internal/domain"
	"payrecon/internal/repository"
)

// MatchMode selects how strictly a mutation must agree with an order.
type MatchMode string

const (
	// MatchModeAmountTolerance matches by correlation code alone and accepts
	// amounts within the configured tolerance to absorb bank rounding.
	MatchModeAmountTolerance MatchMode = "amount_tolerance"

	// MatchModeAccountExact narrows by the mutation's bank account and
	// requires the exact expected amount.
	MatchModeAccountExact MatchMode = "account_exact"
)

// DefaultAmountTolerance is the rounding allowance in MatchModeAmountTolerance.
var DefaultAmountTolerance = decimal.NewFromInt(1)

// ParseMatchMode converts a configuration string to a MatchMode.
func ParseMatchMode(s string) (MatchMode, error) {
	switch MatchMode(s) {
	case MatchModeAmountTolerance, MatchModeAccountExact:
		return MatchMode(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMatchMode, s)
	}
}

// OrderMatcher finds the CHECKING payment order a mutation pays for.
type OrderMatcher struct {
	orders    repository.PaymentOrderRepository
	mode      MatchMode
	tolerance decimal.Decimal
}

// NewOrderMatcher creates a new OrderMatcher.
func NewOrderMatcher(orders repository.PaymentOrderRepository, mode MatchMode, tolerance decimal.Decimal) *OrderMatcher {
	return &OrderMatcher{
		orders:    orders,
		mode:      mode,
		tolerance: tolerance.Abs(),
	}
}

// Find returns the single eligible order for code, or nil when none matches.
// More than one CHECKING order for the code is reported as ErrIntegrityViolation.
func (m *OrderMatcher) Find(ctx context.Context, code string, amount decimal.Decimal, bankAccountID string) (*domain.PaymentOrder, error) {
	narrowBy := ""
	if m.mode == MatchModeAccountExact {
		narrowBy = bankAccountID
	}

	candidates, err := m.orders.FindChecking(ctx, code, narrowBy)
	if err != nil {
		return nil, fmt.Errorf("find checking orders: %w", err)
	}

	switch len(candidates) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, fmt.Errorf("%w: %s has %d candidates", ErrIntegrityViolation, code, len(candidates))
	}

	order := candidates[0]
	if !m.amountMatches(order.ExpectedAmount, amount) {
		return nil, nil
	}

	return order, nil
}

func (m *OrderMatcher) amountMatches(expected, actual decimal.Decimal) bool {
	if m.mode == MatchModeAccountExact {
		return expected.Equal(actual)
	}
	return expected.Sub(actual).Abs().LessThanOrEqual(m.tolerance)
}
