package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/swigpay/qr-payments-backend/internal/models"
	"github.com/swigpay/qr-payments-backend/internal/repositories"
	"github.com/swigpay/qr-payments-backend/internal/services"
)

// PaymentHandler handles payment-related HTTP requests
type PaymentHandler struct {
	paymentService  services.PaymentService
	callbackService services.CallbackService
	c2bService      services.C2BService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService services.PaymentService, callbackService services.CallbackService, c2bService services.C2BService) *PaymentHandler {
	return &PaymentHandler{
		paymentService:  paymentService,
		callbackService: callbackService,
		c2bService:      c2bService,
	}
}

// InitiatePayment handles POST /payments/initiate
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	var req models.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.paymentService.Initiate(c.Request.Context(), &req)
	switch {
	case errors.Is(err, models.ErrInvalidPhone) || errors.Is(err, models.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrUpstreamRejected):
		c.JSON(http.StatusBadRequest, gin.H{
			"payment_id": result.PaymentID,
			"status":     result.Status,
			"error":      "Failed to initiate payment",
		})
	case errors.Is(err, services.ErrUpstreamTransient):
		c.JSON(http.StatusBadGateway, gin.H{
			"payment_id": result.PaymentID,
			"status":     result.Status,
			"error":      "Payment network unavailable, please try again",
		})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	default:
		c.JSON(http.StatusOK, gin.H{
			"payment_id": result.PaymentID,
			"status":     result.Status,
			"message":    "STK push sent to your phone",
		})
	}
}

// GetPaymentStatus handles GET /payments/status/:paymentId
func (h *PaymentHandler) GetPaymentStatus(c *gin.Context) {
	paymentID := c.Param("paymentId")

	payment, err := h.paymentService.GetStatus(c.Request.Context(), paymentID)
	if errors.Is(err, repositories.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, models.PaymentStatusResponse{
		PaymentID:       payment.PaymentID,
		Status:          payment.Status,
		Amount:          payment.Amount,
		TransactionCode: payment.TransactionCode,
		CreatedAt:       payment.CreatedAt,
	})
}

// HandleCallback handles POST /payments/callback. Only malformed bodies get a
// non-2xx status; business-logic non-matches are reported in the payload so
// the upstream network does not retry them.
func (h *PaymentHandler) HandleCallback(c *gin.Context) {
	var envelope models.STKCallbackEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "malformed callback body"})
		return
	}

	outcome, err := h.callbackService.Process(c.Request.Context(), &envelope)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "error"})
		return
	}

	if outcome.Action == services.ActionIgnored {
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": outcome.Reason})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "callback processed"})
}

// HandleTimeout handles POST /payments/timeout, the Daraja timeout sink
func (h *PaymentHandler) HandleTimeout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// C2BValidation handles POST /payments/c2b/validation. The response is a
// fixed two-value protocol; even malformed payloads are answered with Reject.
func (h *PaymentHandler) C2BValidation(c *gin.Context) {
	var payload models.C2BPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusOK, models.C2BResponse{ResultCode: 1, ResultDesc: "Reject"})
		return
	}
	c.JSON(http.StatusOK, h.c2bService.Validate(c.Request.Context(), &payload))
}

// C2BConfirmation handles POST /payments/c2b/confirmation
func (h *PaymentHandler) C2BConfirmation(c *gin.Context) {
	var payload models.C2BPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusOK, models.C2BResponse{ResultCode: 1, ResultDesc: "Failed"})
		return
	}
	c.JSON(http.StatusOK, h.c2bService.Confirm(c.Request.Context(), &payload))
}

// GetPaymentHistory handles GET /payments/history
func (h *PaymentHandler) GetPaymentHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	payments, total, err := h.paymentService.History(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get payments: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": payments, "total": total})
}

// QuerySTKStatus handles GET /payments/stk-status/:checkoutRequestId
func (h *PaymentHandler) QuerySTKStatus(c *gin.Context) {
	result, err := h.paymentService.QueryUpstreamStatus(c.Request.Context(), c.Param("checkoutRequestId"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to query upstream status"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// RegisterC2BURLs handles POST /payments/register-c2b
func (h *PaymentHandler) RegisterC2BURLs(c *gin.Context) {
	result, err := h.paymentService.RegisterC2BURLs(c.Request.Context())
	if errors.Is(err, services.ErrUpstreamRejected) {
		c.JSON(http.StatusBadRequest, gin.H{"error": result.ResponseDescription})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to register C2B URLs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "C2B URLs registered successfully"})
}
