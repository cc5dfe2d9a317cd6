package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"payrecon/internal/repository"
	"payrecon/internal/service"
)

// PaymentOrderHandler exposes read access to payment orders for support staff.
type PaymentOrderHandler struct {
	orders repository.PaymentOrderRepository
}

// NewPaymentOrderHandler creates a new PaymentOrderHandler.
func NewPaymentOrderHandler(orders repository.PaymentOrderRepository) *PaymentOrderHandler {
	return &PaymentOrderHandler{orders: orders}
}

// PaymentOrderResponse is the HTTP response for payment order lookups.
type PaymentOrderResponse struct {
	ID                string     `json:"id"`
	CorrelationCode   string     `json:"correlation_code"`
	ExpectedAmount    string     `json:"expected_amount"`
	BankAccountID     string     `json:"bank_account_id,omitempty"`
	Status            string     `json:"status"`
	MatchedMutationID string     `json:"matched_mutation_id,omitempty"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`
}

// GetByCode handles GET /v1/payment-orders/:code
func (h *PaymentOrderHandler) GetByCode(c *gin.Context) {
	code := service.ExtractReference(c.Param("code"))
	if code == "" {
		respondError(c, service.ErrInvalidCorrelationCode)
		return
	}

	order, err := h.orders.GetLatestByCode(c.Request.Context(), code)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := PaymentOrderResponse{
		ID:                order.ID,
		CorrelationCode:   order.CorrelationCode,
		ExpectedAmount:    order.ExpectedAmount.String(),
		BankAccountID:     order.BankAccountID,
		Status:            string(order.Status),
		MatchedMutationID: order.MatchedMutationID,
	}
	if !order.PaidAt.IsZero() {
		paidAt := order.PaidAt
		resp.PaidAt = &paidAt
	}

	respondJSON(c, http.StatusOK, resp)
}
