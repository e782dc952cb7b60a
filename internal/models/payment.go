package models

import (
	"errors"
	"math"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Payment statuses. Pending is the only non-terminal state; success and
// failed are terminal and a record transitions at most once.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Amount bounds enforced at the boundary, in KES.
const (
	MinAmount = 1
	MaxAmount = 100000
)

var phonePattern = regexp.MustCompile(`^254[0-9]{9}$`)

var (
	ErrInvalidPhone  = errors.New("phone number must be in format 254XXXXXXXXX")
	ErrInvalidAmount = errors.New("amount must be between KES 1 and KES 100,000")
)

// Payment represents a payment transaction
type Payment struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	PaymentID         string             `bson:"paymentId" json:"payment_id"`
	PhoneNumber       string             `bson:"phoneNumber" json:"phone_number"`
	Amount            float64            `bson:"amount" json:"amount"`
	Status            string             `bson:"status" json:"status"`
	TransactionCode   string             `bson:"transactionCode,omitempty" json:"transaction_code,omitempty"`
	CheckoutRequestID string             `bson:"checkoutRequestId,omitempty" json:"checkout_request_id,omitempty"`
	CreatedAt         time.Time          `bson:"createdAt" json:"created_at"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updated_at"`
}

// IsTerminal reports whether the payment has reached a state from which no
// further transition is defined.
func (p *Payment) IsTerminal() bool {
	return p.Status == StatusSuccess || p.Status == StatusFailed
}

// PaymentRequest is the request body for initiating a payment
type PaymentRequest struct {
	Phone  string  `json:"phone" binding:"required"`
	Amount float64 `json:"amount" binding:"required"`
}

// Validate checks the phone and amount constraints and normalizes the amount
// to two decimal places. It never touches the network.
func (r *PaymentRequest) Validate() error {
	if !phonePattern.MatchString(r.Phone) {
		return ErrInvalidPhone
	}
	if r.Amount < MinAmount || r.Amount > MaxAmount {
		return ErrInvalidAmount
	}
	r.Amount = math.Round(r.Amount*100) / 100
	return nil
}

// PaymentStatusResponse is the response body for status queries
type PaymentStatusResponse struct {
	PaymentID       string    `json:"payment_id"`
	Status          string    `json:"status"`
	Amount          float64   `json:"amount"`
	TransactionCode string    `json:"transaction_code,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
