package services

import (
	"context"
	"errors"

	"github.com/swigpay/qr-payments-backend/internal/models"
	"github.com/swigpay/qr-payments-backend/pkg/mpesa"
)

// Upstream failure kinds surfaced by the payment service. Handlers map these
// to response shapes at the boundary; no automatic retry is attempted.
var (
	// ErrUpstreamTransient covers timeouts and network failures talking to Daraja
	ErrUpstreamTransient = errors.New("upstream network unavailable")
	// ErrUpstreamRejected covers explicit rejections by Daraja
	ErrUpstreamRejected = errors.New("payment request rejected by upstream network")
)

// Callback outcomes
const (
	ActionApplied = "applied"
	ActionIgnored = "ignored"
)

// CallbackOutcome describes what a callback did to the ledger
type CallbackOutcome struct {
	Action string
	Reason string
}

// InitiateResult is the outcome of a payment initiation. PaymentID is set
// whenever a record was persisted, including rejected submissions.
type InitiateResult struct {
	PaymentID string
	Status    string
}

// PaymentService defines the interface for push payment operations
type PaymentService interface {
	// Initiate validates the request, submits an STK push and persists a
	// record regardless of the upstream outcome. A validation failure is the
	// only path that writes nothing.
	Initiate(ctx context.Context, req *models.PaymentRequest) (*InitiateResult, error)

	// GetStatus retrieves a payment by its external identifier
	GetStatus(ctx context.Context, paymentID string) (*models.Payment, error)

	// History returns the transaction ledger, newest first
	History(ctx context.Context, limit, offset int) ([]*models.Payment, int64, error)

	// QueryUpstreamStatus asks Daraja directly about an STK push request,
	// used by operators to reconcile orphaned pending payments
	QueryUpstreamStatus(ctx context.Context, checkoutRequestID string) (*mpesa.STKQueryResult, error)

	// RegisterC2BURLs registers the inbound-payment endpoint URLs upstream
	RegisterC2BURLs(ctx context.Context) (*mpesa.RegisterResult, error)
}

// CallbackService defines the interface for correlating asynchronous STK
// Push result callbacks back to their pending payments
type CallbackService interface {
	Process(ctx context.Context, envelope *models.STKCallbackEnvelope) (CallbackOutcome, error)
}

// C2BService defines the interface for the two-phase validate/confirm
// handshake used for customer-initiated payments
type C2BService interface {
	Validate(ctx context.Context, payload *models.C2BPayload) models.C2BResponse
	Confirm(ctx context.Context, payload *models.C2BPayload) models.C2BResponse
}

// AuthService defines the interface for admin authentication
type AuthService interface {
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error)
}

// AuditLogger mirrors completed payments to an external system of record.
// Implementations are best-effort; callers log and swallow failures.
type AuditLogger interface {
	IsConfigured() bool
	LogPayment(ctx context.Context, payment *models.Payment) error
}

// Pusher is the subset of the Daraja client the services depend on
type Pusher interface {
	STKPush(ctx context.Context, phone string, amount float64, reference string) (*mpesa.STKPushResult, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (*mpesa.STKQueryResult, error)
	RegisterC2BURLs(ctx context.Context, confirmationURL, validationURL string) (*mpesa.RegisterResult, error)
}
