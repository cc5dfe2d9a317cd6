package domain

// BookingStatus represents the current status of a booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusRejected  BookingStatus = "REJECTED"
	BookingStatusCheckedIn BookingStatus = "CHECKED_IN"
)

// Booking is the reservation confirmed once its payment order is paid.
// BookingCode shares the correlation code format of its payment order.
type Booking struct {
	ID          string
	BookingCode string
	Status      BookingStatus
}
