package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"payrecon/internal/redis"
	"payrecon/internal/repository"
)

// ReviewQueue is the manual follow-up queue for paid orders whose booking
// was not confirmed.
type ReviewQueue interface {
	List(ctx context.Context) ([]redis.BookingReview, error)
	Resolve(ctx context.Context, correlationCode string) (bool, error)
}

// ReviewHandler handles HTTP requests for the booking review queue.
type ReviewHandler struct {
	queue ReviewQueue
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(queue ReviewQueue) *ReviewHandler {
	return &ReviewHandler{queue: queue}
}

// List handles GET /v1/reconciliation/reviews
func (h *ReviewHandler) List(c *gin.Context) {
	reviews, err := h.queue.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"reviews": reviews})
}

// Resolve handles DELETE /v1/reconciliation/reviews/:code
func (h *ReviewHandler) Resolve(c *gin.Context) {
	removed, err := h.queue.Resolve(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !removed {
		respondError(c, repository.ErrNotFound)
		return
	}

	c.Status(http.StatusNoContent)
}
