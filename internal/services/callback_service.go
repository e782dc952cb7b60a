package services

import (
	"context"
	"errors"
	"time"

	"github.com/swigpay/qr-payments-backend/internal/models"
	"github.com/swigpay/qr-payments-backend/internal/repositories"
	"golang.org/x/exp/slog"
)

// Compile-time check to ensure CallbackServiceImpl implements CallbackService
var _ CallbackService = (*CallbackServiceImpl)(nil)

type CallbackServiceImpl struct {
	paymentRepo repositories.PaymentRepository
	audit       AuditLogger
}

func NewCallbackService(paymentRepo repositories.PaymentRepository, audit AuditLogger) *CallbackServiceImpl {
	return &CallbackServiceImpl{
		paymentRepo: paymentRepo,
		audit:       audit,
	}
}

// Process correlates an STK Push result callback to its pending payment and
// applies the terminal transition. The payload is untrusted and arrives
// unordered, possibly duplicated or never: a missing or unknown correlation
// token and a transition on an already-terminal payment are all ignored, not
// errors. A result code of exactly zero denotes success; any other value,
// including an absent or unparsable one, denotes failure.
func (s *CallbackServiceImpl) Process(ctx context.Context, envelope *models.STKCallbackEnvelope) (CallbackOutcome, error) {
	stk := envelope.Body.StkCallback

	if stk.CheckoutRequestID == "" {
		slog.Warn("Callback without checkout request id ignored")
		return CallbackOutcome{Action: ActionIgnored, Reason: "missing checkout_request_id"}, nil
	}

	payment, err := s.paymentRepo.FindByCheckoutRequestID(ctx, stk.CheckoutRequestID)
	if errors.Is(err, repositories.ErrNotFound) {
		// Expected for retried callbacks and stale tokens; must never fail.
		slog.Info("Callback for unknown checkout request id ignored",
			"checkoutRequestId", stk.CheckoutRequestID)
		return CallbackOutcome{Action: ActionIgnored, Reason: "payment not found"}, nil
	}
	if err != nil {
		slog.Error("Callback lookup failed", "error", err,
			"checkoutRequestId", stk.CheckoutRequestID)
		return CallbackOutcome{}, err
	}

	status := models.StatusFailed
	transactionCode := ""
	if stk.ResultCodeInt() == 0 {
		status = models.StatusSuccess
		transactionCode = stk.ReceiptNumber()
	}

	applied, err := s.paymentRepo.Finalize(ctx, payment.PaymentID, status, transactionCode)
	if err != nil {
		slog.Error("Failed to finalize payment", "error", err, "paymentId", payment.PaymentID)
		return CallbackOutcome{}, err
	}
	if !applied {
		// Terminal states are never overwritten; late and duplicate
		// callbacks land here.
		slog.Info("Callback for finalized payment ignored",
			"paymentId", payment.PaymentID, "status", payment.Status)
		return CallbackOutcome{Action: ActionIgnored, Reason: "payment already finalized"}, nil
	}

	payment.Status = status
	payment.TransactionCode = transactionCode
	payment.UpdatedAt = time.Now().UTC()

	slog.Info("Payment finalized", "paymentId", payment.PaymentID,
		"status", status, "transactionCode", transactionCode)

	s.mirror(ctx, payment)

	return CallbackOutcome{Action: ActionApplied, Reason: stk.ResultDesc}, nil
}

// mirror forwards the finalized payment to the audit trail. Failures are
// logged and swallowed; the committed transition is never rolled back.
func (s *CallbackServiceImpl) mirror(ctx context.Context, payment *models.Payment) {
	if s.audit == nil || !s.audit.IsConfigured() {
		return
	}
	if err := s.audit.LogPayment(ctx, payment); err != nil {
		slog.Warn("Audit mirror failed", "error", err, "paymentId", payment.PaymentID)
	}
}
