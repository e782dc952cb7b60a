package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// STKCallback is the nested result object inside a Daraja STK Push callback.
// ResultCode is kept raw because the sandbox has been observed sending it as
// both a number and a string.
type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        json.RawMessage   `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

// CallbackMetadata is the optional list of name/value items attached to a
// successful callback. The MpesaReceiptNumber item carries the settlement code.
type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

// CallbackItem is a single metadata entry
type CallbackItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value,omitempty"`
}

// STKCallbackEnvelope is the outer JSON envelope Daraja posts to the callback URL
type STKCallbackEnvelope struct {
	Body struct {
		StkCallback STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

// ResultCodeInt parses the raw result code as an integer. Anything absent or
// unparsable maps to -1, which is treated as a failure code.
func (c *STKCallback) ResultCodeInt() int {
	raw := strings.TrimSpace(string(c.ResultCode))
	if raw == "" || raw == "null" {
		return -1
	}
	var n int
	if err := json.Unmarshal(c.ResultCode, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(c.ResultCode, &s); err == nil {
		if m, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return m
		}
	}
	return -1
}

// ReceiptNumber scans the metadata items for the MpesaReceiptNumber entry and
// returns its string value, or "" when absent.
func (c *STKCallback) ReceiptNumber() string {
	if c.CallbackMetadata == nil {
		return ""
	}
	for _, item := range c.CallbackMetadata.Item {
		if item.Name == "MpesaReceiptNumber" {
			if v, ok := item.Value.(string); ok {
				return v
			}
		}
	}
	return ""
}

// C2BPayload is the raw transaction posted by Daraja to the validation and
// confirmation URLs. TransID is only set on confirmation.
type C2BPayload struct {
	TransactionType   string `json:"TransactionType"`
	TransID           string `json:"TransID"`
	TransTime         string `json:"TransTime"`
	TransAmount       string `json:"TransAmount"`
	BusinessShortCode string `json:"BusinessShortCode"`
	BillRefNumber     string `json:"BillRefNumber"`
	InvoiceNumber     string `json:"InvoiceNumber"`
	OrgAccountBalance string `json:"OrgAccountBalance"`
	ThirdPartyTransID string `json:"ThirdPartyTransID"`
	MSISDN            string `json:"MSISDN"`
	FirstName         string `json:"FirstName"`
	MiddleName        string `json:"MiddleName"`
	LastName          string `json:"LastName"`
}

// C2BResponse is the fixed two-field response Daraja expects from the
// validation and confirmation URLs. No extension fields are permitted.
type C2BResponse struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}
