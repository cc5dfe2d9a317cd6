package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"payrecon/internal/domain"
	"payrecon/internal/redis"
	"payrecon/internal/repository"
)

// ReviewRecorder stores paid orders whose booking could not be confirmed.
type ReviewRecorder interface {
	Add(ctx context.Context, review redis.BookingReview) error
}

// ReconcilerConfig is the immutable configuration of a Reconciler.
type ReconcilerConfig struct {
	Secret          string
	MatchMode       MatchMode
	AmountTolerance decimal.Decimal
}

// Summary is the outcome of one reconciliation run.
type Summary struct {
	Processed int
	Skipped   int
	Errors    int
	Warnings  int
}

type mutationOutcome int

const (
	outcomeSkipped mutationOutcome = iota
	outcomeProcessed
	outcomeProcessedWithWarning
	outcomeFailed
)

// Reconciler matches bank mutations to payment orders and confirms the
// linked bookings. It holds no state between calls and is safe for
// concurrent use.
type Reconciler struct {
	cfg      ReconcilerConfig
	matcher  *OrderMatcher
	orders   repository.PaymentOrderRepository
	bookings repository.BookingRepository
	reviews  ReviewRecorder
	logger   logrus.FieldLogger
	now      func() time.Time
}

// NewReconciler creates a new Reconciler. reviews may be nil.
func NewReconciler(
	cfg ReconcilerConfig,
	orders repository.PaymentOrderRepository,
	bookings repository.BookingRepository,
	reviews ReviewRecorder,
	logger logrus.FieldLogger,
) *Reconciler {
	return &Reconciler{
		cfg:      cfg,
		matcher:  NewOrderMatcher(orders, cfg.MatchMode, cfg.AmountTolerance),
		orders:   orders,
		bookings: bookings,
		reviews:  reviews,
		logger:   logger,
		now:      time.Now,
	}
}

// HandleDelivery authenticates a raw webhook body, normalizes it and
// reconciles every mutation in it. Only authentication and body parsing
// failures abort the batch.
func (r *Reconciler) HandleDelivery(ctx context.Context, rawBody []byte, signature string) (*Summary, error) {
	if r.cfg.Secret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", ErrAuthentication)
	}
	if signature == "" {
		return nil, fmt.Errorf("%w: missing signature", ErrAuthentication)
	}
	if !VerifySignature(rawBody, signature, r.cfg.Secret) {
		return nil, fmt.Errorf("%w: signature mismatch", ErrAuthentication)
	}

	events, rejected, err := DecodeMutations(rawBody)
	if err != nil {
		return nil, err
	}
	if rejected > 0 {
		r.logger.WithField("rejected", rejected).Warn("reconcile: dropped uninterpretable mutations")
	}

	summary, err := r.Reconcile(ctx, events)
	if summary != nil {
		summary.Errors += rejected
	}
	return summary, err
}

// ReconcileManual runs a synthetic credit for bookingCode through the same
// pipeline, without a signature. Callers must keep it off in production.
func (r *Reconciler) ReconcileManual(ctx context.Context, bookingCode string, amount decimal.Decimal) (*Summary, error) {
	code := ExtractReference(bookingCode)
	if code == "" {
		return nil, ErrInvalidBookingCode
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	return r.Reconcile(ctx, []domain.MutationEvent{{
		ID:            "manual-" + uuid.New().String(),
		ReferenceText: code,
		Amount:        amount,
		Direction:     domain.DirectionCredit,
		OccurredAt:    r.now(),
	}})
}

// Reconcile processes each mutation independently. A failing mutation is
// counted in Errors and never stops its siblings. The returned error is
// non-nil only when ctx ends before the batch completes.
func (r *Reconciler) Reconcile(ctx context.Context, events []domain.MutationEvent) (*Summary, error) {
	summary := &Summary{}

	for i := range events {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		switch r.reconcileMutation(ctx, &events[i]) {
		case outcomeProcessed:
			summary.Processed++
		case outcomeProcessedWithWarning:
			summary.Processed++
			summary.Warnings++
		case outcomeFailed:
			summary.Errors++
		default:
			summary.Skipped++
		}
	}

	r.logger.WithFields(logrus.Fields{
		"mutations": len(events),
		"processed": summary.Processed,
		"skipped":   summary.Skipped,
		"errors":    summary.Errors,
		"warnings":  summary.Warnings,
	}).Info("reconcile: batch complete")

	return summary, nil
}

func (r *Reconciler) reconcileMutation(ctx context.Context, ev *domain.MutationEvent) mutationOutcome {
	defer newrelic.FromContext(ctx).StartSegment("reconcile/mutation").End()

	log := r.logger.WithField("mutation_id", ev.ID)

	if ev.Direction != domain.DirectionCredit {
		log.Debug("reconcile: skipping non-credit mutation")
		return outcomeSkipped
	}

	code := ExtractReference(ev.ReferenceText)
	if code == "" {
		log.Debug("reconcile: no correlation code in description")
		return outcomeSkipped
	}
	log = log.WithField("correlation_code", code)

	order, err := r.matcher.Find(ctx, code, ev.Amount, ev.BankAccountID)
	if err != nil {
		log.WithError(err).Error("reconcile: order lookup failed")
		return outcomeFailed
	}
	if order == nil {
		log.WithField("amount", ev.Amount.String()).Info("reconcile: no eligible order")
		return outcomeSkipped
	}
	log = log.WithField("order_id", order.ID)

	claimed, err := r.orders.MarkPaid(ctx, order.ID, ev.ID, r.now())
	if err != nil {
		log.WithError(err).Error("reconcile: marking order paid failed")
		return outcomeFailed
	}
	if !claimed {
		log.Info("reconcile: order already claimed by another delivery")
		return outcomeSkipped
	}

	if err := r.bookings.Confirm(ctx, order.CorrelationCode); err != nil {
		reason := err.Error()
		if errors.Is(err, repository.ErrNotFound) {
			reason = "no booking with this code"
		}
		log.WithError(err).Warn("reconcile: order paid but booking not confirmed")
		r.recordReview(ctx, log, redis.BookingReview{
			OrderID:         order.ID,
			CorrelationCode: order.CorrelationCode,
			MutationID:      ev.ID,
			Reason:          reason,
			RecordedAt:      r.now(),
		})
		return outcomeProcessedWithWarning
	}

	log.Info("reconcile: order paid and booking confirmed")
	return outcomeProcessed
}

func (r *Reconciler) recordReview(ctx context.Context, log logrus.FieldLogger, review redis.BookingReview) {
	if r.reviews == nil {
		return
	}
	if err := r.reviews.Add(ctx, review); err != nil {
		log.WithError(err).Error("reconcile: failed to record booking review")
	}
}
