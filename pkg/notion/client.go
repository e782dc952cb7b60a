package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/swigpay/qr-payments-backend/internal/models"
)

const (
	baseURL    = "https://api.notion.com/v1"
	apiVersion = "2022-06-28"
)

// Client mirrors completed payments into a Notion database. It is a
// best-effort audit trail, never a source of truth: every failure is returned
// for logging and otherwise ignored by callers.
type Client struct {
	APIKey     string
	DatabaseID string
	client     *http.Client
}

// NewClient creates a new Notion client
func NewClient(apiKey, databaseID string) *Client {
	return &Client{
		APIKey:     apiKey,
		DatabaseID: databaseID,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// IsConfigured reports whether the integration has credentials
func (c *Client) IsConfigured() bool {
	return c.APIKey != "" && c.DatabaseID != ""
}

// LogPayment creates a page for the payment in the configured database.
// Unconfigured clients silently do nothing.
func (c *Client) LogPayment(ctx context.Context, payment *models.Payment) error {
	if !c.IsConfigured() {
		return nil
	}

	transactionCode := payment.TransactionCode
	if transactionCode == "" {
		transactionCode = "N/A"
	}

	page := map[string]interface{}{
		"parent": map[string]string{"database_id": c.DatabaseID},
		"properties": map[string]interface{}{
			"Payment ID": map[string]interface{}{
				"title": []map[string]interface{}{
					{"text": map[string]string{"content": payment.PaymentID}},
				},
			},
			"Phone Number": map[string]string{
				"phone_number": payment.PhoneNumber,
			},
			"Amount": map[string]float64{
				"number": payment.Amount,
			},
			"Transaction Code": map[string]interface{}{
				"rich_text": []map[string]interface{}{
					{"text": map[string]string{"content": transactionCode}},
				},
			},
			"Status": map[string]interface{}{
				"select": map[string]string{"name": capitalize(payment.Status)},
			},
			"Created At": map[string]interface{}{
				"date": map[string]string{"start": payment.CreatedAt.Format(time.RFC3339)},
			},
			"Updated At": map[string]interface{}{
				"date": map[string]string{"start": payment.UpdatedAt.Format(time.RFC3339)},
			},
		},
	}

	raw, err := json.Marshal(page)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/pages", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Notion-Version", apiVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notion: page create failed with status %d: %s", resp.StatusCode, body)
	}
	return nil
}

// capitalize matches the Notion select option names (Pending, Success, Failed)
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
