package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the money flow of a bank mutation relative to our account.
type Direction string

const (
	DirectionCredit Direction = "CREDIT"
	DirectionDebit  Direction = "DEBIT"
)

// MutationEvent is a single bank transaction reported by the aggregator.
// It is untrusted input and lives only for one reconciliation call.
type MutationEvent struct {
	ID            string
	ReferenceText string
	Amount        decimal.Decimal
	Direction     Direction
	BankAccountID string
	OccurredAt    time.Time
}
