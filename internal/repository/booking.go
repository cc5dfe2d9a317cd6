package repository

import "context"

// BookingRepository defines the persistence operations for bookings.
type BookingRepository interface {
	// Confirm sets the booking with the given code to CONFIRMED.
	// Returns ErrNotFound if no booking carries the code.
	Confirm(ctx context.Context, bookingCode string) error
}
