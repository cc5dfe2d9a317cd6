package tests

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"payrecon/internal/domain"
	"payrecon/internal/service"
)

// ──────────────────────────────────────────────
// RECONCILIATION ENGINE
// ──────────────────────────────────────────────

const testSecret = "webhook-secret"

type fixture struct {
	orders   *MockPaymentOrderRepository
	bookings *MockBookingRepository
	reviews  *MockReviewRecorder
	logs     *logtest.Hook
	recon    *service.Reconciler
}

func newFixture(mode service.MatchMode) *fixture {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	f := &fixture{
		orders:   NewMockPaymentOrderRepository(),
		bookings: NewMockBookingRepository(),
		reviews:  NewMockReviewRecorder(),
		logs:     hook,
	}
	f.recon = service.NewReconciler(service.ReconcilerConfig{
		Secret:          testSecret,
		MatchMode:       mode,
		AmountTolerance: service.DefaultAmountTolerance,
	}, f.orders, f.bookings, f.reviews, logger)

	f.orders.AddOrder(checkingOrder("order-1", 75000, ""))
	f.bookings.AddBooking(&domain.Booking{ID: "booking-1", BookingCode: testCode, Status: domain.BookingStatusPending})

	return f
}

func credit(id string, amount int64, description string) domain.MutationEvent {
	return domain.MutationEvent{
		ID:            id,
		ReferenceText: description,
		Amount:        decimal.NewFromInt(amount),
		Direction:     domain.DirectionCredit,
	}
}

func TestReconcile_EndToEndDelivery(t *testing.T) {
	t.Parallel()

	f := newFixture(service.MatchModeAmountTolerance)
	body := []byte(`{"mutations":[{"mutation_id":"mut-1","type":"CR","amount":75000,"description":"TRSF BK-1700000000-ab12cd"}]}`)

	summary, err := f.recon.HandleDelivery(context.Background(), body, service.SignPayload(body, testSecret))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Processed != 1 {
		t.Errorf("expected 1 processed, got %d", summary.Processed)
	}

	order := f.orders.GetOrder("order-1")
	if order.Status != domain.PaymentOrderStatusPaid {
		t.Errorf("expected order PAID, got %s", order.Status)
	}
	if order.MatchedMutationID != "mut-1" {
		t.Errorf("expected matched mutation mut-1, got %s", order.MatchedMutationID)
	}
	if order.PaidAt.IsZero() {
		t.Error("expected paid_at to be set")
	}
	if b := f.bookings.GetBooking(testCode); b.Status != domain.BookingStatusConfirmed {
		t.Errorf("expected booking CONFIRMED, got %s", b.Status)
	}
}

func TestReconcile_IdempotentRedelivery(t *testing.T) {
	t.Parallel()

	f := newFixture(service.MatchModeAmountTolerance)
	batch := []domain.MutationEvent{credit("mut-1", 75000, "TRSF BK-1700000000-ab12cd")}
	ctx := context.Background()

	first, err := f.recon.Reconcile(ctx, batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := f.recon.Reconcile(ctx, batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.Processed != 1 {
		t.Errorf("first delivery: expected 1 processed, got %d", first.Processed)
	}
	if second.Processed != 0 || second.Errors != 0 {
		t.Errorf("second delivery: expected 0 processed and 0 errors, got %d and %d", second.Processed, second.Errors)
	}
	if f.orders.PaidTransitions != 1 {
		t.Errorf("expected exactly 1 PAID transition, got %d", f.orders.PaidTransitions)
	}
	if f.bookings.ConfirmCallCount != 1 {
		t.Errorf("expected exactly 1 booking confirmation, got %d", f.bookings.ConfirmCallCount)
	}
}

func TestReconcile_ConcurrentClaimRace(t *testing.T) {
	t.Parallel()

	f := newFixture(service.MatchModeAmountTolerance)

	// Hold both calls at the conditional write until each has matched the order.
	var arrived sync.WaitGroup
	arrived.Add(2)
	f.orders.BeforeMarkPaid = func() {
		arrived.Done()
		arrived.Wait()
	}

	batch := []domain.MutationEvent{credit("mut-1", 75000, "TRSF BK-1700000000-ab12cd")}
	results := make([]*service.Summary, 2)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			summary, err := f.recon.Reconcile(context.Background(), batch)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			results[i] = summary
		}(i)
	}
	wg.Wait()

	if f.orders.MarkPaidCallCount != 2 {
		t.Fatalf("expected both calls to reach the conditional write, got %d", f.orders.MarkPaidCallCount)
	}
	if f.orders.PaidTransitions != 1 {
		t.Errorf("expected exactly 1 PAID transition, got %d", f.orders.PaidTransitions)
	}
	if f.bookings.ConfirmCallCount != 1 {
		t.Errorf("expected exactly 1 booking confirmation attempt, got %d", f.bookings.ConfirmCallCount)
	}

	processed, skipped := 0, 0
	for _, s := range results {
		if s == nil {
			continue
		}
		processed += s.Processed
		skipped += s.Skipped
		if s.Errors != 0 {
			t.Errorf("expected no errors, got %d", s.Errors)
		}
	}
	if processed != 1 || skipped != 1 {
		t.Errorf("expected 1 processed and 1 skipped across calls, got %d and %d", processed, skipped)
	}
}

func TestReconcile_RejectsBadSignatureWithoutSideEffects(t *testing.T) {
	t.Parallel()

	f := newFixture(service.MatchModeAmountTolerance)
	body := []byte(`[{"id":"mut-1","type":"CR","amount":75000,"description":"BK-1700000000-ab12cd"}]`)

	for _, sig := range []string{"", "deadbeef", service.SignPayload(body, "wrong-secret")} {
		_, err := f.recon.HandleDelivery(context.Background(), body, sig)
		if !errors.Is(err, service.ErrAuthentication) {
			t.Errorf("signature %q: expected ErrAuthentication, got %v", sig, err)
		}
	}

	if f.orders.FindCheckingCallCount != 0 || f.orders.MarkPaidCallCount != 0 {
		t.Error("expected no persistence calls for rejected delivery")
	}
	if f.orders.GetOrder("order-1").Status != domain.PaymentOrderStatusChecking {
		t.Error("order must stay CHECKING")
	}
}

func TestReconcile_RejectsWhenSecretNotConfigured(t *testing.T) {
	t.Parallel()

	logger, _ := logtest.NewNullLogger()
	recon := service.NewReconciler(service.ReconcilerConfig{MatchMode: service.MatchModeAmountTolerance},
		NewMockPaymentOrderRepository(), NewMockBookingRepository(), nil, logger)
	body := []byte(`[]`)

	_, err := recon.HandleDelivery(context.Background(), body, service.SignPayload(body, ""))
	if !errors.Is(err, service.ErrAuthentication) {
		t.Errorf("expected ErrAuthentication, got %v", err)
	}
}

func TestReconcile_MalformedBodyRejectsBatch(t *testing.T) {
	t.Parallel()

	f := newFixture(service.MatchModeAmountTolerance)
	body := []byte(`{"mutations": "nope"`)

	_, err := f.recon.HandleDelivery(context.Background(), body, service.SignPayload(body, testSecret))
	if !errors.Is(err, service.ErrMalformedPayload) {
		t.Errorf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestReconcile_SkipsDebitMutations(t *testing.T) {
	t.Parallel()

	f := newFixture(service.MatchModeAmountTolerance)
	debit := credit("mut-1", 75000, "TRSF BK-1700000000-ab12cd")
	debit.Direction = domain.DirectionDebit

	summary, err := f.recon.Reconcile(context.Background(), []domain.MutationEvent{debit})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Skipped != 1 || summary.Processed != 0 {
		t.Errorf("expected debit skipped, got %+v", summary)
	}
	if f.orders.FindCheckingCallCount != 0 {
		t.Error("debit must not reach the matcher")
	}
}

func TestReconcile_SkipsWithoutCorrelationOrMatch(t *testing.T) {
	t.Parallel()

	f := newFixture(service.MatchModeAmountTolerance)
	batch := []domain.MutationEvent{
		credit("mut-1", 75000, "salary october"),
		credit("mut-2", 75000, "TRSF BK-1699999999-zz99zz"),
		credit("mut-3", 90000, "TRSF BK-1700000000-ab12cd"),
	}

	summary, err := f.recon.Reconcile(context.Background(), batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Skipped != 3 || summary.Errors != 0 || summary.Processed != 0 {
		t.Errorf("expected 3 skipped, got %+v", summary)
	}
	if f.orders.GetOrder("order-1").Status != domain.PaymentOrderStatusChecking {
		t.Error("order must stay CHECKING")
	}
}

func TestReconcile_IntegrityViolationIsolatedPerMutation(t *testing.T) {
	t.Parallel()

	f := newFixture(service.MatchModeAmountTolerance)
	f.orders.AddOrder(checkingOrder("order-dup", 75000, ""))

	other := checkingOrder("order-2", 50000, "")
	other.CorrelationCode = "BK-1700000001-ef34gh"
	f.orders.AddOrder(other)
	f.bookings.AddBooking(&domain.Booking{ID: "booking-2", BookingCode: other.CorrelationCode, Status: domain.BookingStatusPending})

	batch := []domain.MutationEvent{
		credit("mut-1", 75000, "BK-1700000000-ab12cd"),
		credit("mut-2", 50000, "BK-1700000001-ef34gh"),
	}

	summary, err := f.recon.Reconcile(context.Background(), batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Errors != 1 || summary.Processed != 1 {
		t.Errorf("expected 1 error and 1 processed, got %+v", summary)
	}
	if f.orders.GetOrder("order-2").Status != domain.PaymentOrderStatusPaid {
		t.Error("sibling mutation should still be processed")
	}
}

func TestReconcile_PersistenceErrorIsolatedPerMutation(t *testing.T) {
	t.Parallel()

	f := newFixture(service.MatchModeAmountTolerance)
	f.orders.MarkPaidError = errors.New("connection refused")

	batch := []domain.MutationEvent{
		credit("mut-1", 75000, "BK-1700000000-ab12cd"),
		credit("mut-2", 10, "no code here"),
	}

	summary, err := f.recon.Reconcile(context.Background(), batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Errors != 1 || summary.Skipped != 1 {
		t.Errorf("expected 1 error and 1 skipped, got %+v", summary)
	}
	if f.bookings.ConfirmCallCount != 0 {
		t.Error("booking must not be touched when the order transition fails")
	}
}

func TestReconcile_BookingDesyncIsWarningNotError(t *testing.T) {
	t.Parallel()

	f := newFixture(service.MatchModeAmountTolerance)
	f.bookings.ConfirmError = errors.New("bookings table locked")

	summary, err := f.recon.Reconcile(context.Background(), []domain.MutationEvent{credit("mut-1", 75000, "BK-1700000000-ab12cd")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Processed != 1 || summary.Errors != 0 || summary.Warnings != 1 {
		t.Errorf("expected processed=1 errors=0 warnings=1, got %+v", summary)
	}
	if f.orders.GetOrder("order-1").Status != domain.PaymentOrderStatusPaid {
		t.Error("order transition must not be reverted")
	}

	reviews := f.reviews.Reviews()
	if len(reviews) != 1 || reviews[0].OrderID != "order-1" {
		t.Fatalf("expected one review for order-1, got %+v", reviews)
	}

	warned := false
	for _, entry := range f.logs.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warned = true
		}
	}
	if !warned {
		t.Error("expected a warning log entry")
	}
}

func TestReconcile_MissingBookingRecordsReview(t *testing.T) {
	t.Parallel()

	f := newFixture(service.MatchModeAmountTolerance)
	other := checkingOrder("order-2", 50000, "")
	other.CorrelationCode = "BK-1700000001-ef34gh"
	f.orders.AddOrder(other)

	summary, err := f.recon.Reconcile(context.Background(), []domain.MutationEvent{credit("mut-2", 50000, "BK-1700000001-ef34gh")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Processed != 1 || summary.Warnings != 1 {
		t.Errorf("expected processed=1 warnings=1, got %+v", summary)
	}
	if reviews := f.reviews.Reviews(); len(reviews) != 1 || reviews[0].Reason != "no booking with this code" {
		t.Errorf("unexpected reviews: %+v", reviews)
	}
}

func TestReconcile_ReviewFailureDoesNotAffectOutcome(t *testing.T) {
	t.Parallel()

	f := newFixture(service.MatchModeAmountTolerance)
	f.bookings.ConfirmError = errors.New("bookings table locked")
	f.reviews.AddError = errors.New("redis down")

	summary, err := f.recon.Reconcile(context.Background(), []domain.MutationEvent{credit("mut-1", 75000, "BK-1700000000-ab12cd")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Processed != 1 || summary.Errors != 0 {
		t.Errorf("expected processed=1 errors=0, got %+v", summary)
	}
}

func TestReconcile_AccountExactMode(t *testing.T) {
	t.Parallel()

	f := newFixture(service.MatchModeAccountExact)

	summary, err := f.recon.Reconcile(context.Background(), []domain.MutationEvent{credit("mut-1", 74999, "BK-1700000000-ab12cd")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Processed != 0 || summary.Skipped != 1 {
		t.Errorf("expected rounding difference to be skipped in exact mode, got %+v", summary)
	}
}

func TestReconcile_DeliveryCountsRejectedItemsAsErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(service.MatchModeAmountTolerance)
	body := []byte(`[{"id":"mut-1","type":"CR","amount":75000,"description":"BK-1700000000-ab12cd"},{"id":"mut-2","type":"CR","amount":"abc"}]`)

	summary, err := f.recon.HandleDelivery(context.Background(), body, service.SignPayload(body, testSecret))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Processed != 1 || summary.Errors != 1 {
		t.Errorf("expected processed=1 errors=1, got %+v", summary)
	}
}

func TestReconcile_CancelledContextStopsBatch(t *testing.T) {
	t.Parallel()

	f := newFixture(service.MatchModeAmountTolerance)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.recon.Reconcile(ctx, []domain.MutationEvent{credit("mut-1", 75000, "BK-1700000000-ab12cd")})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if f.orders.GetOrder("order-1").Status != domain.PaymentOrderStatusChecking {
		t.Error("order must stay CHECKING")
	}
}

func TestReconcileManual(t *testing.T) {
	t.Parallel()

	f := newFixture(service.MatchModeAmountTolerance)
	ctx := context.Background()

	if _, err := f.recon.ReconcileManual(ctx, "not-a-code", decimal.NewFromInt(75000)); !errors.Is(err, service.ErrInvalidBookingCode) {
		t.Errorf("expected ErrInvalidBookingCode, got %v", err)
	}
	if _, err := f.recon.ReconcileManual(ctx, testCode, decimal.Zero); !errors.Is(err, service.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}

	summary, err := f.recon.ReconcileManual(ctx, testCode, decimal.NewFromInt(75000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Processed != 1 {
		t.Errorf("expected 1 processed, got %d", summary.Processed)
	}
	if b := f.bookings.GetBooking(testCode); b.Status != domain.BookingStatusConfirmed {
		t.Errorf("expected booking CONFIRMED, got %s", b.Status)
	}
}
