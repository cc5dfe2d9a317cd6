package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentOrderStatus represents the current status of a payment order.
type PaymentOrderStatus string

const (
	PaymentOrderStatusChecking  PaymentOrderStatus = "CHECKING"
	PaymentOrderStatusPaid      PaymentOrderStatus = "PAID"
	PaymentOrderStatusExpired   PaymentOrderStatus = "EXPIRED"
	PaymentOrderStatusCancelled PaymentOrderStatus = "CANCELLED"
)

// PaymentOrder represents an expected incoming bank transfer for a booking.
// Only one order per correlation code may be CHECKING at a time.
type PaymentOrder struct {
	ID                string
	CorrelationCode   string
	ExpectedAmount    decimal.Decimal
	BankAccountID     string // Empty when the order accepts any account
	Status            PaymentOrderStatus
	MatchedMutationID string
	PaidAt            time.Time
}
