package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/swigpay/qr-payments-backend/internal/models"
	"github.com/swigpay/qr-payments-backend/internal/repositories"
	"github.com/swigpay/qr-payments-backend/pkg/mpesa"
	"golang.org/x/exp/slog"
)

// Compile-time check to ensure PaymentServiceImpl implements PaymentService
var _ PaymentService = (*PaymentServiceImpl)(nil)

type PaymentServiceImpl struct {
	paymentRepo     repositories.PaymentRepository
	pusher          Pusher
	confirmationURL string
	validationURL   string
}

func NewPaymentService(paymentRepo repositories.PaymentRepository, pusher Pusher, confirmationURL, validationURL string) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		paymentRepo:     paymentRepo,
		pusher:          pusher,
		confirmationURL: confirmationURL,
		validationURL:   validationURL,
	}
}

// Initiate validates the request, submits an STK push and persists the
// resulting record. Every submission attempt leaves exactly one record:
// pending when the upstream accepted, failed otherwise. A rejected submission
// is written directly in failed so it is never observably pending.
func (s *PaymentServiceImpl) Initiate(ctx context.Context, req *models.PaymentRequest) (*InitiateResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	paymentID := uuid.NewString()

	stk, pushErr := s.pusher.STKPush(ctx, req.Phone, req.Amount, paymentID)

	payment := &models.Payment{
		PaymentID:   paymentID,
		PhoneNumber: req.Phone,
		Amount:      req.Amount,
		Status:      models.StatusPending,
	}

	switch {
	case pushErr != nil:
		payment.Status = models.StatusFailed
	case !stk.Accepted:
		payment.Status = models.StatusFailed
	default:
		payment.CheckoutRequestID = stk.CheckoutRequestID
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		// A dropped record is unacceptable: the attempt would be unauditable.
		slog.Error("Failed to persist payment record", "error", err, "paymentId", paymentID)
		return nil, fmt.Errorf("persisting payment: %w", err)
	}

	if pushErr != nil {
		slog.Warn("STK push did not reach upstream", "error", pushErr, "paymentId", paymentID)
		return &InitiateResult{PaymentID: paymentID, Status: models.StatusFailed},
			fmt.Errorf("%w: %v", ErrUpstreamTransient, pushErr)
	}

	if !stk.Accepted {
		slog.Warn("STK push rejected", "paymentId", paymentID,
			"responseCode", stk.ResponseCode, "description", stk.ResponseDescription)
		return &InitiateResult{PaymentID: paymentID, Status: models.StatusFailed},
			fmt.Errorf("%w: %s", ErrUpstreamRejected, stk.ResponseDescription)
	}

	if stk.CheckoutRequestID == "" {
		// Accepted but no correlation token: the callback can never resolve
		// this record. Known limitation; the record stays pending.
		slog.Warn("STK push accepted without a checkout request id", "paymentId", paymentID)
	}

	slog.Info("Payment initiated", "paymentId", paymentID,
		"checkoutRequestId", stk.CheckoutRequestID, "amount", req.Amount)
	return &InitiateResult{PaymentID: paymentID, Status: "initiated"}, nil
}

// GetStatus retrieves a payment by its external identifier. A miss is a
// normal outcome, surfaced as repositories.ErrNotFound.
func (s *PaymentServiceImpl) GetStatus(ctx context.Context, paymentID string) (*models.Payment, error) {
	return s.paymentRepo.FindByPaymentID(ctx, paymentID)
}

// History returns the transaction ledger with pagination, newest first
func (s *PaymentServiceImpl) History(ctx context.Context, limit, offset int) ([]*models.Payment, int64, error) {
	payments, err := s.paymentRepo.FindAll(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.paymentRepo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// QueryUpstreamStatus asks Daraja about an STK push request directly
func (s *PaymentServiceImpl) QueryUpstreamStatus(ctx context.Context, checkoutRequestID string) (*mpesa.STKQueryResult, error) {
	result, err := s.pusher.QueryStatus(ctx, checkoutRequestID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamTransient, err)
	}
	return result, nil
}

// RegisterC2BURLs registers the configured validation and confirmation URLs
func (s *PaymentServiceImpl) RegisterC2BURLs(ctx context.Context) (*mpesa.RegisterResult, error) {
	result, err := s.pusher.RegisterC2BURLs(ctx, s.confirmationURL, s.validationURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamTransient, err)
	}
	if !result.Accepted {
		return result, fmt.Errorf("%w: %s", ErrUpstreamRejected, result.ResponseDescription)
	}
	slog.Info("C2B URLs registered", "confirmationUrl", s.confirmationURL, "validationUrl", s.validationURL)
	return result, nil
}
