package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"payrecon/internal/domain"
	"payrecon/internal/repository"
)

// PaymentOrderRepository is a PostgreSQL implementation of repository.PaymentOrderRepository.
type PaymentOrderRepository struct {
	q Querier
}

// NewPaymentOrderRepository creates a new PostgreSQL payment order repository.
func NewPaymentOrderRepository(db *sql.DB) *PaymentOrderRepository {
	return &PaymentOrderRepository{q: db}
}

// NewPaymentOrderRepositoryWithQuerier creates a payment order repository on any Querier.
func NewPaymentOrderRepositoryWithQuerier(q Querier) *PaymentOrderRepository {
	return &PaymentOrderRepository{q: q}
}

const paymentOrderColumns = `id, correlation_code, expected_amount, bank_account_id, status, matched_mutation_id, paid_at`

// FindChecking returns every CHECKING order with the given correlation code.
func (r *PaymentOrderRepository) FindChecking(ctx context.Context, code, bankAccountID string) ([]*domain.PaymentOrder, error) {
	query := `SELECT ` + paymentOrderColumns + `
		FROM payment_orders
		WHERE correlation_code = $1 AND status = $2`
	args := []any{code, string(domain.PaymentOrderStatusChecking)}

	if bankAccountID != "" {
		query += ` AND bank_account_id = $3`
		args = append(args, bankAccountID)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.PaymentOrder
	for rows.Next() {
		order, err := scanPaymentOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	return orders, rows.Err()
}

// GetLatestByCode retrieves the most recently created order for a code.
func (r *PaymentOrderRepository) GetLatestByCode(ctx context.Context, code string) (*domain.PaymentOrder, error) {
	query := `SELECT ` + paymentOrderColumns + `
		FROM payment_orders
		WHERE correlation_code = $1
		ORDER BY created_at DESC
		LIMIT 1`

	order, err := scanPaymentOrder(r.q.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return order, nil
}

// MarkPaid moves the order from CHECKING to PAID. The status predicate in the
// WHERE clause is what keeps two concurrent deliveries from both claiming it.
func (r *PaymentOrderRepository) MarkPaid(ctx context.Context, id, mutationID string, paidAt time.Time) (bool, error) {
	query := `
		UPDATE payment_orders
		SET status = $1, matched_mutation_id = $2, paid_at = $3
		WHERE id = $4 AND status = $5
	`

	result, err := r.q.ExecContext(ctx, query,
		string(domain.PaymentOrderStatusPaid),
		mutationID,
		paidAt,
		id,
		string(domain.PaymentOrderStatusChecking),
	)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected == 1, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaymentOrder(s rowScanner) (*domain.PaymentOrder, error) {
	var order domain.PaymentOrder
	var bankAccountID sql.NullString
	var matchedMutationID sql.NullString
	var paidAt sql.NullTime

	if err := s.Scan(
		&order.ID,
		&order.CorrelationCode,
		&order.ExpectedAmount,
		&bankAccountID,
		&order.Status,
		&matchedMutationID,
		&paidAt,
	); err != nil {
		return nil, err
	}

	order.BankAccountID = bankAccountID.String
	order.MatchedMutationID = matchedMutationID.String
	if paidAt.Valid {
		order.PaidAt = paidAt.Time
	}

	return &order, nil
}

// Ensure PaymentOrderRepository implements repository.PaymentOrderRepository.
var _ repository.PaymentOrderRepository = (*PaymentOrderRepository)(nil)
