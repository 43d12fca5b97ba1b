package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"admissions_backend/platform/logger"
)

// SMSSender delivers short messages to parents.
type SMSSender interface {
	Send(ctx context.Context, phone, message string) error
}

// SMSClient is the HTTP client for the SMS gateway.
type SMSClient struct {
	httpClient *http.Client
	gatewayURL string
	apiKey     string
	senderID   string
	log        *logger.Logger
}

// NewSMSClient creates a new SMS gateway client.
func NewSMSClient(gatewayURL, apiKey, senderID string, timeout time.Duration, log *logger.Logger) *SMSClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SMSClient{
		httpClient: &http.Client{Timeout: timeout},
		gatewayURL: gatewayURL,
		apiKey:     apiKey,
		senderID:   senderID,
		log:        log,
	}
}

// Send submits one message to the gateway.
func (c *SMSClient) Send(ctx context.Context, phone, message string) error {
	raw, err := json.Marshal(map[string]any{
		"to":      phone,
		"from":    c.senderID,
		"message": message,
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gatewayURL, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("sms request failed", "error", err)
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Error("sms gateway error", "status", resp.StatusCode)
		return fmt.Errorf("sms gateway: status %d", resp.StatusCode)
	}
	return nil
}

// Compile-time check.
var _ SMSSender = (*SMSClient)(nil)
