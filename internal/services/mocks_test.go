package services

import (
	"context"
	"sync"

	"github.com/swigpay/qr-payments-backend/internal/models"
	"github.com/swigpay/qr-payments-backend/internal/repositories"
	"github.com/swigpay/qr-payments-backend/pkg/mpesa"
)

// fakePaymentRepo is an in-memory PaymentRepository with the same atomicity
// semantics as the mongo implementation: duplicate-detecting create and a
// first-writer-wins pending-to-terminal transition.
type fakePaymentRepo struct {
	mu          sync.Mutex
	payments    map[string]*models.Payment // keyed by paymentId
	createErr   error
	findErr     error
	finalizeErr error
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: map[string]*models.Payment{}}
}

func (r *fakePaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.payments[payment.PaymentID]; ok {
		return repositories.ErrDuplicate
	}
	cp := *payment
	r.payments[payment.PaymentID] = &cp
	return nil
}

func (r *fakePaymentRepo) FindByPaymentID(ctx context.Context, paymentID string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	p, ok := r.payments[paymentID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePaymentRepo) FindByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, p := range r.payments {
		if p.CheckoutRequestID != "" && p.CheckoutRequestID == checkoutRequestID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakePaymentRepo) Finalize(ctx context.Context, paymentID, status, transactionCode string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalizeErr != nil {
		return false, r.finalizeErr
	}
	p, ok := r.payments[paymentID]
	if !ok || p.Status != models.StatusPending {
		return false, nil
	}
	p.Status = status
	if transactionCode != "" {
		p.TransactionCode = transactionCode
	}
	return true, nil
}

func (r *fakePaymentRepo) FindAll(ctx context.Context, limit, offset int) ([]*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Payment
	for _, p := range r.payments {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakePaymentRepo) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.payments)), nil
}

// get returns the stored record without copying, for assertions
func (r *fakePaymentRepo) get(paymentID string) *models.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.payments[paymentID]
}

// fakePusher is a canned-response Daraja client
type fakePusher struct {
	result    *mpesa.STKPushResult
	err       error
	pushCalls int
	lastRef   string
}

func (p *fakePusher) STKPush(ctx context.Context, phone string, amount float64, reference string) (*mpesa.STKPushResult, error) {
	p.pushCalls++
	p.lastRef = reference
	return p.result, p.err
}

func (p *fakePusher) QueryStatus(ctx context.Context, checkoutRequestID string) (*mpesa.STKQueryResult, error) {
	return &mpesa.STKQueryResult{CheckoutRequestID: checkoutRequestID, ResultCode: "0"}, nil
}

func (p *fakePusher) RegisterC2BURLs(ctx context.Context, confirmationURL, validationURL string) (*mpesa.RegisterResult, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &mpesa.RegisterResult{Accepted: true}, nil
}

// fakeAudit records mirrored payments and can be made to fail
type fakeAudit struct {
	mu     sync.Mutex
	err    error
	logged []*models.Payment
}

func (a *fakeAudit) IsConfigured() bool { return true }

func (a *fakeAudit) LogPayment(ctx context.Context, payment *models.Payment) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	cp := *payment
	a.logged = append(a.logged, &cp)
	return nil
}

func (a *fakeAudit) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.logged)
}
