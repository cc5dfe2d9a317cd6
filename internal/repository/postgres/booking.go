package postgres

import (
	"context"
	"database/sql"

	"payrecon/internal/domain"
	"payrecon/internal/repository"
)

// BookingRepository is a PostgreSQL implementation of repository.BookingRepository.
type BookingRepository struct {
	q Querier
}

// NewBookingRepository creates a new PostgreSQL booking repository.
func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{q: db}
}

// NewBookingRepositoryWithQuerier creates a booking repository on any Querier.
func NewBookingRepositoryWithQuerier(q Querier) *BookingRepository {
	return &BookingRepository{q: q}
}

// Confirm sets the booking with the given code to CONFIRMED.
func (r *BookingRepository) Confirm(ctx context.Context, bookingCode string) error {
	query := `UPDATE bookings SET status = $1 WHERE booking_code = $2`

	result, err := r.q.ExecContext(ctx, query, string(domain.BookingStatusConfirmed), bookingCode)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Ensure BookingRepository implements repository.BookingRepository.
var _ repository.BookingRepository = (*BookingRepository)(nil)
