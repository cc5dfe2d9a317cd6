package redis

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const bookingReviewKey = "recon:review:bookings"

// BookingReview is a paid order whose booking could not be confirmed.
type BookingReview struct {
	OrderID         string    `json:"order_id"`
	CorrelationCode string    `json:"correlation_code"`
	MutationID      string    `json:"mutation_id"`
	Reason          string    `json:"reason"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// ReviewStore keeps the manual follow-up queue in a Redis hash keyed by
// correlation code, so repeated failures for one booking collapse into one entry.
type ReviewStore struct {
	client *redis.Client
}

// NewReviewStore creates a new ReviewStore.
func NewReviewStore(client *redis.Client) *ReviewStore {
	return &ReviewStore{client: client}
}

// Add records or replaces the review entry for a correlation code.
func (s *ReviewStore) Add(ctx context.Context, review BookingReview) error {
	data, err := json.Marshal(review)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, bookingReviewKey, review.CorrelationCode, data).Err()
}

// List returns all pending reviews, oldest first.
func (s *ReviewStore) List(ctx context.Context) ([]BookingReview, error) {
	entries, err := s.client.HGetAll(ctx, bookingReviewKey).Result()
	if err != nil {
		return nil, err
	}

	return decodeReviews(entries), nil
}

// decodeReviews turns raw hash values into reviews ordered oldest first.
// Entries that do not decode are skipped rather than failing the listing.
func decodeReviews(entries map[string]string) []BookingReview {
	reviews := make([]BookingReview, 0, len(entries))
	for _, raw := range entries {
		var review BookingReview
		if err := json.Unmarshal([]byte(raw), &review); err != nil {
			continue
		}
		reviews = append(reviews, review)
	}

	sort.Slice(reviews, func(i, j int) bool {
		if reviews[i].RecordedAt.Equal(reviews[j].RecordedAt) {
			return reviews[i].CorrelationCode < reviews[j].CorrelationCode
		}
		return reviews[i].RecordedAt.Before(reviews[j].RecordedAt)
	})

	return reviews
}

// Resolve removes the review for a correlation code.
// Returns false if there was nothing to remove.
func (s *ReviewStore) Resolve(ctx context.Context, correlationCode string) (bool, error) {
	n, err := s.client.HDel(ctx, bookingReviewKey, correlationCode).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
