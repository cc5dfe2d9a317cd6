package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"payrecon/internal/service"
)

// WebhookHandler handles bank mutation deliveries from the aggregator.
type WebhookHandler struct {
	reconciler      *service.Reconciler
	signatureHeader string
	maxBodyBytes    int64
	logger          logrus.FieldLogger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(reconciler *service.Reconciler, signatureHeader string, maxBodyBytes int64, logger logrus.FieldLogger) *WebhookHandler {
	return &WebhookHandler{
		reconciler:      reconciler,
		signatureHeader: signatureHeader,
		maxBodyBytes:    maxBodyBytes,
		logger:          logger,
	}
}

// DeliveryResponse is the HTTP response for a completed reconciliation run.
type DeliveryResponse struct {
	Success   bool `json:"success"`
	Processed int  `json:"processed"`
	Skipped   int  `json:"skipped"`
	Errors    int  `json:"errors,omitempty"`
	Warnings  int  `json:"warnings,omitempty"`
}

// TestDeliveryRequest is the HTTP request body for a manual reconciliation.
type TestDeliveryRequest struct {
	BookingCode string          `json:"bookingCode"`
	Amount      decimal.Decimal `json:"amount"`
}

// Receive handles POST /v1/webhooks/bank
func (h *WebhookHandler) Receive(c *gin.Context) {
	// The signature covers the exact bytes on the wire, so keep them unparsed.
	rawBody, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read request body"})
		return
	}

	ctx := h.requestContext(c)
	summary, err := h.reconciler.HandleDelivery(ctx, rawBody, c.GetHeader(h.signatureHeader))
	if err != nil {
		if errors.Is(err, service.ErrAuthentication) {
			h.logger.WithField("client_ip", c.ClientIP()).WithError(err).Warn("webhook: rejected delivery")
		}
		respondError(c, err)
		return
	}

	h.respondSummary(c, summary)
}

// TestDelivery handles POST /v1/webhooks/bank/test
func (h *WebhookHandler) TestDelivery(c *gin.Context) {
	var req TestDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	summary, err := h.reconciler.ReconcileManual(h.requestContext(c), req.BookingCode, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	h.respondSummary(c, summary)
}

func (h *WebhookHandler) respondSummary(c *gin.Context, summary *service.Summary) {
	if txn := nrgin.Transaction(c); txn != nil {
		txn.AddAttribute("reconcile.processed", summary.Processed)
		txn.AddAttribute("reconcile.skipped", summary.Skipped)
		txn.AddAttribute("reconcile.errors", summary.Errors)
	}

	respondJSON(c, http.StatusOK, DeliveryResponse{
		Success:   true,
		Processed: summary.Processed,
		Skipped:   summary.Skipped,
		Errors:    summary.Errors,
		Warnings:  summary.Warnings,
	})
}

// requestContext carries the New Relic transaction into the service layer.
func (h *WebhookHandler) requestContext(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	if txn := nrgin.Transaction(c); txn != nil {
		ctx = newrelic.NewContext(ctx, txn)
	}
	return ctx
}
