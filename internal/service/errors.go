package service

import "errors"

var (
	// ErrAuthentication is returned when a delivery's signature is missing,
	// invalid, or no webhook secret is configured. The whole batch is rejected.
	ErrAuthentication = errors.New("webhook authentication failed")

	// ErrMalformedPayload is returned when a delivery body cannot be parsed.
	ErrMalformedPayload = errors.New("malformed webhook payload")

	// ErrIntegrityViolation is returned when more than one CHECKING order
	// carries the same correlation code.
	ErrIntegrityViolation = errors.New("multiple checking orders share a correlation code")

	// ErrInvalidMatchMode is returned when the configured match mode is unknown.
	ErrInvalidMatchMode = errors.New("invalid match mode")

	// ErrInvalidBookingCode is returned when a manual request carries no valid booking code.
	ErrInvalidBookingCode = errors.New("invalid booking code")

	// ErrInvalidAmount is returned when a manual request amount is not positive.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidCorrelationCode is returned when a lookup is made with an empty code.
	ErrInvalidCorrelationCode = errors.New("invalid correlation code")
)
