package repository

import (
	"context"
	"time"

	"payrecon/internal/domain"
)

// PaymentOrderRepository defines the persistence operations for payment orders.
type PaymentOrderRepository interface {
	// FindChecking returns every CHECKING order with the given correlation code.
	// When bankAccountID is non-empty the result is narrowed to that account.
	FindChecking(ctx context.Context, code, bankAccountID string) ([]*domain.PaymentOrder, error)

	// GetLatestByCode retrieves the most recently created order for a code.
	GetLatestByCode(ctx context.Context, code string) (*domain.PaymentOrder, error)

	// MarkPaid moves the order from CHECKING to PAID in a single conditional
	// write. It returns false when the order was no longer CHECKING.
	MarkPaid(ctx context.Context, id, mutationID string, paidAt time.Time) (bool, error)
}
