package repositories

import (
	"context"
	"errors"

	"github.com/swigpay/qr-payments-backend/internal/models"
)

var (
	// ErrNotFound is returned when no record matches the lookup key
	ErrNotFound = errors.New("payment not found")
	// ErrDuplicate is returned when a create collides with an existing
	// paymentId or checkoutRequestId
	ErrDuplicate = errors.New("payment already exists")
)

// PaymentRepository defines the interface for payment persistence.
// Implementations must provide atomic create (duplicate keys are a detectable
// error, never a silent overwrite) and an atomic pending-to-terminal
// transition so that two concurrently delivered duplicate callbacks cannot
// both observe the transition.
type PaymentRepository interface {
	// Create inserts a new payment record. Returns ErrDuplicate on key collision.
	Create(ctx context.Context, payment *models.Payment) error

	// FindByPaymentID finds a payment by its externally visible identifier
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Payment, error)

	// FindByCheckoutRequestID finds a payment by the correlation token
	// assigned by the upstream network at initiation time
	FindByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.Payment, error)

	// Finalize transitions a pending payment to a terminal status, setting
	// the transaction code when non-empty. It reports whether the transition
	// was applied; false means the record was already terminal.
	Finalize(ctx context.Context, paymentID, status, transactionCode string) (bool, error)

	// FindAll returns payments sorted by creation time descending
	FindAll(ctx context.Context, limit, offset int) ([]*models.Payment, error)

	// Count counts all payments
	Count(ctx context.Context) (int64, error)
}
