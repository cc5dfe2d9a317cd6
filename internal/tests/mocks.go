package tests

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"payrecon/internal/domain"
	"payrecon/internal/redis"
	"payrecon/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK PAYMENT ORDER REPOSITORY
// ──────────────────────────────────────────────

// MockPaymentOrderRepository is a mock implementation of PaymentOrderRepository.
// MarkPaid checks and updates status under one lock, like the conditional
// UPDATE it stands in for.
type MockPaymentOrderRepository struct {
	mu     sync.Mutex
	orders map[string]*domain.PaymentOrder

	// Counters for verification
	FindCheckingCallCount int32
	MarkPaidCallCount     int32
	PaidTransitions       int32

	// Error injection
	FindCheckingError error
	MarkPaidError     error

	// BeforeMarkPaid, if set, runs before the conditional write.
	BeforeMarkPaid func()
}

// NewMockPaymentOrderRepository creates a new mock payment order repository.
func NewMockPaymentOrderRepository() *MockPaymentOrderRepository {
	return &MockPaymentOrderRepository{
		orders: make(map[string]*domain.PaymentOrder),
	}
}

// AddOrder adds an order to the mock repository.
func (m *MockPaymentOrderRepository) AddOrder(order *domain.PaymentOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order
}

func (m *MockPaymentOrderRepository) FindChecking(ctx context.Context, code, bankAccountID string) ([]*domain.PaymentOrder, error) {
	atomic.AddInt32(&m.FindCheckingCallCount, 1)
	if m.FindCheckingError != nil {
		return nil, m.FindCheckingError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.PaymentOrder
	for _, o := range m.orders {
		if o.CorrelationCode != code || o.Status != domain.PaymentOrderStatusChecking {
			continue
		}
		if bankAccountID != "" && o.BankAccountID != bankAccountID {
			continue
		}
		copy := *o
		result = append(result, &copy)
	}
	return result, nil
}

func (m *MockPaymentOrderRepository) GetLatestByCode(ctx context.Context, code string) (*domain.PaymentOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.CorrelationCode == code {
			copy := *o
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockPaymentOrderRepository) MarkPaid(ctx context.Context, id, mutationID string, paidAt time.Time) (bool, error) {
	atomic.AddInt32(&m.MarkPaidCallCount, 1)
	if m.BeforeMarkPaid != nil {
		m.BeforeMarkPaid()
	}
	if m.MarkPaidError != nil {
		return false, m.MarkPaidError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != domain.PaymentOrderStatusChecking {
		return false, nil
	}
	o.Status = domain.PaymentOrderStatusPaid
	o.MatchedMutationID = mutationID
	o.PaidAt = paidAt
	atomic.AddInt32(&m.PaidTransitions, 1)
	return true, nil
}

// GetOrder returns the order by ID (for test assertions).
func (m *MockPaymentOrderRepository) GetOrder(id string) *domain.PaymentOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

// ──────────────────────────────────────────────
// MOCK BOOKING REPOSITORY
// ──────────────────────────────────────────────

// MockBookingRepository is a mock implementation of BookingRepository.
type MockBookingRepository struct {
	mu       sync.Mutex
	bookings map[string]*domain.Booking

	// Counters for verification
	ConfirmCallCount int32

	// Error injection
	ConfirmError error
}

// NewMockBookingRepository creates a new mock booking repository.
func NewMockBookingRepository() *MockBookingRepository {
	return &MockBookingRepository{
		bookings: make(map[string]*domain.Booking),
	}
}

// AddBooking adds a booking to the mock repository.
func (m *MockBookingRepository) AddBooking(booking *domain.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[booking.BookingCode] = booking
}

func (m *MockBookingRepository) Confirm(ctx context.Context, bookingCode string) error {
	atomic.AddInt32(&m.ConfirmCallCount, 1)
	if m.ConfirmError != nil {
		return m.ConfirmError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingCode]
	if !ok {
		return repository.ErrNotFound
	}
	b.Status = domain.BookingStatusConfirmed
	return nil
}

// GetBooking returns the booking by code (for test assertions).
func (m *MockBookingRepository) GetBooking(code string) *domain.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookings[code]
}

// ──────────────────────────────────────────────
// MOCK REVIEW RECORDER
// ──────────────────────────────────────────────

// MockReviewRecorder collects booking reviews in memory.
type MockReviewRecorder struct {
	mu      sync.Mutex
	reviews []redis.BookingReview

	AddError error
}

// NewMockReviewRecorder creates a new mock review recorder.
func NewMockReviewRecorder() *MockReviewRecorder {
	return &MockReviewRecorder{}
}

func (m *MockReviewRecorder) Add(ctx context.Context, review redis.BookingReview) error {
	if m.AddError != nil {
		return m.AddError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviews = append(m.reviews, review)
	return nil
}

func (m *MockReviewRecorder) List(ctx context.Context) ([]redis.BookingReview, error) {
	return m.Reviews(), nil
}

func (m *MockReviewRecorder) Resolve(ctx context.Context, correlationCode string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.reviews {
		if r.CorrelationCode == correlationCode {
			m.reviews = append(m.reviews[:i], m.reviews[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// Reviews returns a copy of the recorded reviews.
func (m *MockReviewRecorder) Reviews() []redis.BookingReview {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]redis.BookingReview(nil), m.reviews...)
}
