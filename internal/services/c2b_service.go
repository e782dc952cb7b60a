package services

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/swigpay/qr-payments-backend/internal/models"
	"github.com/swigpay/qr-payments-backend/internal/repositories"
	"golang.org/x/exp/slog"
)

// Compile-time check to ensure C2BServiceImpl implements C2BService
var _ C2BService = (*C2BServiceImpl)(nil)

type C2BServiceImpl struct {
	paymentRepo repositories.PaymentRepository
	audit       AuditLogger
}

func NewC2BService(paymentRepo repositories.PaymentRepository, audit AuditLogger) *C2BServiceImpl {
	return &C2BServiceImpl{
		paymentRepo: paymentRepo,
		audit:       audit,
	}
}

// Validate decides whether an unsolicited inbound payment may proceed. The
// default policy accepts everything; duplicate suppression, reference-number
// and amount-limit checks plug in here.
func (s *C2BServiceImpl) Validate(ctx context.Context, payload *models.C2BPayload) models.C2BResponse {
	slog.Info("C2B validation accepted", "msisdn", payload.MSISDN,
		"amount", payload.TransAmount, "billRef", payload.BillRefNumber)
	return models.C2BResponse{ResultCode: 0, ResultDesc: "Accept"}
}

// Confirm materializes a completed inbound payment: a fresh payment record
// directly in success, with the upstream transaction reference as the
// settlement code and no correlation token. Confirmation has no retry
// semantics upstream, so failures are reported only through the result code,
// never as a generic error.
func (s *C2BServiceImpl) Confirm(ctx context.Context, payload *models.C2BPayload) models.C2BResponse {
	amount, err := strconv.ParseFloat(payload.TransAmount, 64)
	if err != nil {
		slog.Warn("C2B confirmation with unparsable amount",
			"amount", payload.TransAmount, "transId", payload.TransID)
		return models.C2BResponse{ResultCode: 1, ResultDesc: "Failed"}
	}

	payment := &models.Payment{
		PaymentID:       uuid.NewString(),
		PhoneNumber:     payload.MSISDN,
		Amount:          amount,
		Status:          models.StatusSuccess,
		TransactionCode: payload.TransID,
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		slog.Error("Failed to persist C2B payment", "error", err, "transId", payload.TransID)
		return models.C2BResponse{ResultCode: 1, ResultDesc: "Failed"}
	}

	slog.Info("C2B payment recorded", "paymentId", payment.PaymentID,
		"transId", payload.TransID, "amount", amount)

	if s.audit != nil && s.audit.IsConfigured() {
		if err := s.audit.LogPayment(ctx, payment); err != nil {
			slog.Warn("Audit mirror failed", "error", err, "paymentId", payment.PaymentID)
		}
	}

	return models.C2BResponse{ResultCode: 0, ResultDesc: "Success"}
}
