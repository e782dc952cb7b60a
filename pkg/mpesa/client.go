package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"time"
)

const (
	sandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	productionBaseURL = "https://api.safaricom.co.ke"

	timestampLayout = "20060102150405"
)

// ErrTimeout marks transient upstream failures (timeouts, connection errors).
// Callers surface these without retrying.
var ErrTimeout = errors.New("mpesa: request timed out")

// Client talks to the Daraja API
type Client struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
	MockAPI        bool
	client         *http.Client
	now            func() time.Time
}

// STKPushResult is the outcome of an STK Push submission. Accepted means the
// upstream network acknowledged the request; the payment itself completes (or
// fails) later via the asynchronous callback.
type STKPushResult struct {
	Accepted            bool
	CheckoutRequestID   string
	MerchantRequestID   string
	ResponseCode        string
	ResponseDescription string
}

// STKQueryResult is the outcome of an STK Push status query
type STKQueryResult struct {
	ResponseCode      string `json:"ResponseCode"`
	ResultCode        string `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// RegisterResult is the outcome of a C2B URL registration
type RegisterResult struct {
	Accepted            bool
	ResponseDescription string
}

// NewClient creates a new Daraja client. environment selects the sandbox or
// production base URL.
func NewClient(environment, consumerKey, consumerSecret, shortCode, passkey, callbackURL string, mockAPI bool) *Client {
	baseURL := sandboxBaseURL
	if environment == "production" {
		baseURL = productionBaseURL
	}
	return &Client{
		BaseURL:        baseURL,
		ConsumerKey:    consumerKey,
		ConsumerSecret: consumerSecret,
		ShortCode:      shortCode,
		Passkey:        passkey,
		CallbackURL:    callbackURL,
		MockAPI:        mockAPI,
		client:         &http.Client{Timeout: 30 * time.Second},
		now:            time.Now,
	}
}

// AccessToken obtains a short-lived OAuth token using client credentials
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", err
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(c.ConsumerKey + ":" + c.ConsumerSecret))
	req.Header.Set("Authorization", "Basic "+credentials)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", wrapTransportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mpesa: auth request failed with status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("mpesa: decoding auth response: %w", err)
	}
	if body.AccessToken == "" {
		return "", errors.New("mpesa: auth response contained no access token")
	}
	return body.AccessToken, nil
}

// password derives the time-boxed request secret Daraja requires:
// base64(shortcode + passkey + timestamp). Valid only for the request window
// the upstream enforces around the embedded timestamp.
func (c *Client) password() (password, timestamp string) {
	timestamp = c.now().Format(timestampLayout)
	password = base64.StdEncoding.EncodeToString([]byte(c.ShortCode + c.Passkey + timestamp))
	return password, timestamp
}

// STKPush submits a push payment request. The returned CheckoutRequestID is
// the correlation token used to match the asynchronous result callback.
func (c *Client) STKPush(ctx context.Context, phone string, amount float64, reference string) (*STKPushResult, error) {
	if c.MockAPI {
		return c.mockSTKPush(reference)
	}

	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	password, timestamp := c.password()
	payload := map[string]interface{}{
		"BusinessShortCode": c.ShortCode,
		"Password":          password,
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            int(amount), // Daraja expects an integer
		"PartyA":            phone,
		"PartyB":            c.ShortCode,
		"PhoneNumber":       phone,
		"CallBackURL":       c.CallbackURL,
		"AccountReference":  reference,
		"TransactionDesc":   "Payment for order " + reference,
	}

	var body struct {
		CheckoutRequestID   string `json:"CheckoutRequestID"`
		MerchantRequestID   string `json:"MerchantRequestID"`
		ResponseCode        string `json:"ResponseCode"`
		ResponseDescription string `json:"ResponseDescription"`
		ErrorMessage        string `json:"errorMessage"`
	}
	status, err := c.postJSON(ctx, "/mpesa/stkpush/v1/processrequest", token, payload, &body)
	if err != nil {
		return nil, err
	}

	result := &STKPushResult{
		Accepted:            status == http.StatusOK && body.ResponseCode == "0",
		CheckoutRequestID:   body.CheckoutRequestID,
		MerchantRequestID:   body.MerchantRequestID,
		ResponseCode:        body.ResponseCode,
		ResponseDescription: body.ResponseDescription,
	}
	if !result.Accepted && result.ResponseDescription == "" {
		result.ResponseDescription = body.ErrorMessage
	}
	return result, nil
}

// QueryStatus asks Daraja for the current state of an STK Push request
func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (*STKQueryResult, error) {
	if c.MockAPI {
		return &STKQueryResult{
			ResponseCode:      "0",
			ResultCode:        "0",
			ResultDesc:        "The service request is processed successfully.",
			CheckoutRequestID: checkoutRequestID,
		}, nil
	}

	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	password, timestamp := c.password()
	payload := map[string]interface{}{
		"BusinessShortCode": c.ShortCode,
		"Password":          password,
		"Timestamp":         timestamp,
		"CheckoutRequestID": checkoutRequestID,
	}

	var result STKQueryResult
	if _, err := c.postJSON(ctx, "/mpesa/stkpushquery/v1/query", token, payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RegisterC2BURLs registers the validation and confirmation URLs with Daraja.
// One-time administrative call; no ongoing state.
func (c *Client) RegisterC2BURLs(ctx context.Context, confirmationURL, validationURL string) (*RegisterResult, error) {
	if c.MockAPI {
		return &RegisterResult{Accepted: true, ResponseDescription: "success"}, nil
	}

	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"ShortCode":       c.ShortCode,
		"ResponseType":    "Completed",
		"ConfirmationURL": confirmationURL,
		"ValidationURL":   validationURL,
	}

	var body struct {
		ResponseCode        string `json:"ResponseCode"`
		ResponseDescription string `json:"ResponseDescription"`
	}
	status, err := c.postJSON(ctx, "/mpesa/c2b/v1/registerurl", token, payload, &body)
	if err != nil {
		return nil, err
	}

	return &RegisterResult{
		Accepted:            status == http.StatusOK && body.ResponseCode == "0",
		ResponseDescription: body.ResponseDescription,
	}, nil
}

func (c *Client) postJSON(ctx context.Context, path, token string, payload, out interface{}) (int, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, wrapTransportErr(err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("mpesa: decoding response from %s: %w", path, err)
	}
	return resp.StatusCode, nil
}

// wrapTransportErr folds timeouts and connection failures into ErrTimeout so
// callers can classify them as transient without inspecting net internals.
func wrapTransportErr(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %v", ErrTimeout, urlErr.Err)
	}
	return fmt.Errorf("%w: %v", ErrTimeout, err)
}

// mockSTKPush mocks the STKPush method for local development without Daraja
// credentials, mirroring the sandbox's acceptance response.
func (c *Client) mockSTKPush(reference string) (*STKPushResult, error) {
	return &STKPushResult{
		Accepted:            true,
		CheckoutRequestID:   fmt.Sprintf("ws_CO_%s%06d", c.now().Format(timestampLayout), rand.Intn(1000000)),
		MerchantRequestID:   fmt.Sprintf("mock-%s", reference),
		ResponseCode:        "0",
		ResponseDescription: "Success. Request accepted for processing",
	}, nil
}
