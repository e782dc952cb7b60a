package services

import (
	"context"
	"errors"
	"testing"

	"github.com/swigpay/qr-payments-backend/internal/models"
)

func c2bPayload(transID, amount string) *models.C2BPayload {
	return &models.C2BPayload{
		TransactionType: "Pay Bill",
		TransID:         transID,
		TransAmount:     amount,
		MSISDN:          "254712345678",
		BillRefNumber:   "order-42",
	}
}

func TestValidate_DefaultPolicyAccepts(t *testing.T) {
	svc := NewC2BService(newFakePaymentRepo(), &fakeAudit{})

	resp := svc.Validate(context.Background(), c2bPayload("", "100.00"))
	if resp.ResultCode != 0 || resp.ResultDesc != "Accept" {
		t.Fatalf("expected {0, Accept}, got {%d, %s}", resp.ResultCode, resp.ResultDesc)
	}
}

func TestConfirm_CreatesSuccessBypassingPending(t *testing.T) {
	repo := newFakePaymentRepo()
	audit := &fakeAudit{}
	svc := NewC2BService(repo, audit)

	resp := svc.Confirm(context.Background(), c2bPayload("RKTQDM7W6S", "100.00"))
	if resp.ResultCode != 0 || resp.ResultDesc != "Success" {
		t.Fatalf("expected {0, Success}, got {%d, %s}", resp.ResultCode, resp.ResultDesc)
	}

	payments, _ := repo.FindAll(context.Background(), 10, 0)
	if len(payments) != 1 {
		t.Fatalf("expected 1 record, got %d", len(payments))
	}
	p := payments[0]
	if p.Status != models.StatusSuccess {
		t.Errorf("expected success, got %q", p.Status)
	}
	if p.TransactionCode != "RKTQDM7W6S" {
		t.Errorf("expected upstream reference as settlement code, got %q", p.TransactionCode)
	}
	if p.CheckoutRequestID != "" {
		t.Errorf("inbound payments must carry no correlation token, got %q", p.CheckoutRequestID)
	}
	if p.Amount != 100.00 {
		t.Errorf("expected amount 100.00, got %v", p.Amount)
	}
	if audit.count() != 1 {
		t.Errorf("expected 1 audit mirror call, got %d", audit.count())
	}
}

func TestConfirm_StoreFailureReturnsProtocolShapedFailure(t *testing.T) {
	repo := newFakePaymentRepo()
	repo.createErr = errors.New("write concern failed")
	svc := NewC2BService(repo, &fakeAudit{})

	resp := svc.Confirm(context.Background(), c2bPayload("RKTQDM7W6S", "100.00"))
	if resp.ResultCode != 1 || resp.ResultDesc != "Failed" {
		t.Fatalf("expected {1, Failed}, got {%d, %s}", resp.ResultCode, resp.ResultDesc)
	}
}

func TestConfirm_UnparsableAmountFails(t *testing.T) {
	svc := NewC2BService(newFakePaymentRepo(), &fakeAudit{})

	resp := svc.Confirm(context.Background(), c2bPayload("RKTQDM7W6S", "a lot"))
	if resp.ResultCode != 1 {
		t.Fatalf("expected result code 1, got %d", resp.ResultCode)
	}
}

func TestConfirm_AuditFailureDoesNotAffectResponse(t *testing.T) {
	repo := newFakePaymentRepo()
	svc := NewC2BService(repo, &fakeAudit{err: errors.New("notion down")})

	resp := svc.Confirm(context.Background(), c2bPayload("RKTQDM7W6S", "100.00"))
	if resp.ResultCode != 0 {
		t.Fatalf("audit failure leaked into the response: %+v", resp)
	}
	if n, _ := repo.Count(context.Background()); n != 1 {
		t.Errorf("expected the record to be kept, count=%d", n)
	}
}
