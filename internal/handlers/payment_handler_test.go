package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/swigpay/qr-payments-backend/internal/models"
	"github.com/swigpay/qr-payments-backend/internal/repositories"
	"github.com/swigpay/qr-payments-backend/internal/services"
	"github.com/swigpay/qr-payments-backend/pkg/mpesa"
)

// stubPaymentService returns canned results for the handler tests
type stubPaymentService struct {
	initiateResult *services.InitiateResult
	initiateErr    error
	payment        *models.Payment
	statusErr      error
}

func (s *stubPaymentService) Initiate(ctx context.Context, req *models.PaymentRequest) (*services.InitiateResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.initiateResult, s.initiateErr
}

func (s *stubPaymentService) GetStatus(ctx context.Context, paymentID string) (*models.Payment, error) {
	return s.payment, s.statusErr
}

func (s *stubPaymentService) History(ctx context.Context, limit, offset int) ([]*models.Payment, int64, error) {
	return []*models.Payment{s.payment}, 1, nil
}

func (s *stubPaymentService) QueryUpstreamStatus(ctx context.Context, checkoutRequestID string) (*mpesa.STKQueryResult, error) {
	return &mpesa.STKQueryResult{CheckoutRequestID: checkoutRequestID}, nil
}

func (s *stubPaymentService) RegisterC2BURLs(ctx context.Context) (*mpesa.RegisterResult, error) {
	return &mpesa.RegisterResult{Accepted: true}, nil
}

type stubCallbackService struct {
	outcome services.CallbackOutcome
	err     error
}

func (s *stubCallbackService) Process(ctx context.Context, envelope *models.STKCallbackEnvelope) (services.CallbackOutcome, error) {
	return s.outcome, s.err
}

type stubC2BService struct{}

func (s *stubC2BService) Validate(ctx context.Context, payload *models.C2BPayload) models.C2BResponse {
	return models.C2BResponse{ResultCode: 0, ResultDesc: "Accept"}
}

func (s *stubC2BService) Confirm(ctx context.Context, payload *models.C2BPayload) models.C2BResponse {
	return models.C2BResponse{ResultCode: 0, ResultDesc: "Success"}
}

func newTestRouter(h *PaymentHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/initiate", h.InitiatePayment)
	r.GET("/status/:paymentId", h.GetPaymentStatus)
	r.POST("/callback", h.HandleCallback)
	r.POST("/c2b/validation", h.C2BValidation)
	r.POST("/c2b/confirmation", h.C2BConfirmation)
	r.POST("/timeout", h.HandleTimeout)
	return r
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestInitiatePayment(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		h := NewPaymentHandler(&stubPaymentService{
			initiateResult: &services.InitiateResult{PaymentID: "p1", Status: "initiated"},
		}, &stubCallbackService{}, &stubC2BService{})

		w := doRequest(newTestRouter(h), http.MethodPost, "/initiate",
			`{"phone":"254712345678","amount":50}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
		}

		var body map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if body["payment_id"] != "p1" || body["status"] != "initiated" {
			t.Errorf("unexpected body: %v", body)
		}
	})

	t.Run("invalid phone", func(t *testing.T) {
		h := NewPaymentHandler(&stubPaymentService{}, &stubCallbackService{}, &stubC2BService{})
		w := doRequest(newTestRouter(h), http.MethodPost, "/initiate",
			`{"phone":"0712345678","amount":50}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})

	t.Run("upstream rejection", func(t *testing.T) {
		h := NewPaymentHandler(&stubPaymentService{
			initiateResult: &services.InitiateResult{PaymentID: "p1", Status: models.StatusFailed},
			initiateErr:    services.ErrUpstreamRejected,
		}, &stubCallbackService{}, &stubC2BService{})

		w := doRequest(newTestRouter(h), http.MethodPost, "/initiate",
			`{"phone":"254712345678","amount":50}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
		var body map[string]interface{}
		json.Unmarshal(w.Body.Bytes(), &body)
		if body["status"] != models.StatusFailed {
			t.Errorf("expected explicit failed status, got %v", body["status"])
		}
	})

	t.Run("upstream transient", func(t *testing.T) {
		h := NewPaymentHandler(&stubPaymentService{
			initiateResult: &services.InitiateResult{PaymentID: "p1", Status: models.StatusFailed},
			initiateErr:    services.ErrUpstreamTransient,
		}, &stubCallbackService{}, &stubC2BService{})

		w := doRequest(newTestRouter(h), http.MethodPost, "/initiate",
			`{"phone":"254712345678","amount":50}`)
		if w.Code != http.StatusBadGateway {
			t.Fatalf("status = %d, want 502", w.Code)
		}
	})
}

func TestGetPaymentStatus(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		h := NewPaymentHandler(&stubPaymentService{
			payment: &models.Payment{
				PaymentID: "p1", Status: models.StatusSuccess,
				Amount: 50, TransactionCode: "R123", CreatedAt: created,
			},
		}, &stubCallbackService{}, &stubC2BService{})

		w := doRequest(newTestRouter(h), http.MethodGet, "/status/p1", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var resp models.PaymentStatusResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding: %v", err)
		}
		if resp.Status != models.StatusSuccess || resp.TransactionCode != "R123" {
			t.Errorf("unexpected response: %+v", resp)
		}
	})

	t.Run("not found", func(t *testing.T) {
		h := NewPaymentHandler(&stubPaymentService{statusErr: repositories.ErrNotFound},
			&stubCallbackService{}, &stubC2BService{})
		w := doRequest(newTestRouter(h), http.MethodGet, "/status/unknown", "")
		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", w.Code)
		}
	})
}

func TestHandleCallback(t *testing.T) {
	t.Run("processed", func(t *testing.T) {
		h := NewPaymentHandler(&stubPaymentService{}, &stubCallbackService{
			outcome: services.CallbackOutcome{Action: services.ActionApplied},
		}, &stubC2BService{})

		w := doRequest(newTestRouter(h), http.MethodPost, "/callback",
			`{"Body":{"stkCallback":{"CheckoutRequestID":"X","ResultCode":0}}}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var body map[string]string
		json.Unmarshal(w.Body.Bytes(), &body)
		if body["status"] != "callback processed" {
			t.Errorf("unexpected body: %v", body)
		}
	})

	t.Run("ignored still returns 200", func(t *testing.T) {
		h := NewPaymentHandler(&stubPaymentService{}, &stubCallbackService{
			outcome: services.CallbackOutcome{Action: services.ActionIgnored, Reason: "payment not found"},
		}, &stubC2BService{})

		w := doRequest(newTestRouter(h), http.MethodPost, "/callback",
			`{"Body":{"stkCallback":{"CheckoutRequestID":"unknown","ResultCode":0}}}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var body map[string]string
		json.Unmarshal(w.Body.Bytes(), &body)
		if body["status"] != "ignored" || body["reason"] != "payment not found" {
			t.Errorf("unexpected body: %v", body)
		}
	})

	t.Run("malformed body is the only 400", func(t *testing.T) {
		h := NewPaymentHandler(&stubPaymentService{}, &stubCallbackService{},
			&stubC2BService{})
		w := doRequest(newTestRouter(h), http.MethodPost, "/callback", `{"Body":`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})
}

func TestC2BEndpointsKeepProtocolShape(t *testing.T) {
	h := NewPaymentHandler(&stubPaymentService{}, &stubCallbackService{}, &stubC2BService{})
	r := newTestRouter(h)

	t.Run("validation", func(t *testing.T) {
		w := doRequest(r, http.MethodPost, "/c2b/validation",
			`{"TransAmount":"100.00","MSISDN":"254712345678"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var resp models.C2BResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding: %v", err)
		}
		if resp.ResultCode != 0 || resp.ResultDesc != "Accept" {
			t.Errorf("unexpected response: %+v", resp)
		}
	})

	t.Run("validation rejects malformed with protocol shape", func(t *testing.T) {
		w := doRequest(r, http.MethodPost, "/c2b/validation", `not json`)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, must stay 200", w.Code)
		}
		var resp models.C2BResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.ResultCode != 1 || resp.ResultDesc != "Reject" {
			t.Errorf("unexpected response: %+v", resp)
		}
	})

	t.Run("confirmation", func(t *testing.T) {
		w := doRequest(r, http.MethodPost, "/c2b/confirmation",
			`{"TransID":"RKTQDM7W6S","TransAmount":"100.00","MSISDN":"254712345678"}`)
		var resp models.C2BResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding: %v", err)
		}
		if resp.ResultCode != 0 || resp.ResultDesc != "Success" {
			t.Errorf("unexpected response: %+v", resp)
		}
	})
}

func TestHandleTimeout(t *testing.T) {
	h := NewPaymentHandler(&stubPaymentService{}, &stubCallbackService{}, &stubC2BService{})
	w := doRequest(newTestRouter(h), http.MethodPost, "/timeout", `{}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["status"] != "received" {
		t.Errorf("unexpected body: %v", body)
	}
}
