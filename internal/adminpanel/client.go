// Package adminpanel provides the HTTP client for the admin-panel workflow
// service that runs the external admission approval workflow. It implements
// ports.AdminPanel for the enquiries module.
package adminpanel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"admissions_backend/internal/enquiries/ports"
	"admissions_backend/platform/logger"
)

// Client is the HTTP client for the admin-panel service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        *logger.Logger
}

// New creates a new admin-panel client.
func New(baseURL, apiKey string, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		log:        log,
	}
}

// TriggerAdmissionWorkflow (re)starts the external admission workflow.
func (c *Client) TriggerAdmissionWorkflow(ctx context.Context, enquiryNumber string, schoolID int64) error {
	return c.post(ctx, "/api/v1/admission-workflows/trigger", enquiryNumber, schoolID)
}

// DisableAdmissionWorkflow stops any workflow attached to the enquiry.
// Upstream treats disabling a missing workflow as a no-op.
func (c *Client) DisableAdmissionWorkflow(ctx context.Context, enquiryNumber string, schoolID int64) error {
	return c.post(ctx, "/api/v1/admission-workflows/disable", enquiryNumber, schoolID)
}

func (c *Client) post(ctx context.Context, path, enquiryNumber string, schoolID int64) error {
	raw, err := json.Marshal(map[string]any{
		"enquiryNumber": enquiryNumber,
		"schoolId":      schoolID,
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	reqURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("admin-panel request failed", "error", err, "url", reqURL)
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Error("admin-panel upstream error", "status", resp.StatusCode, "url", reqURL)
		return fmt.Errorf("upstream error: status %d", resp.StatusCode)
	}
	return nil
}

// Compile-time check that Client implements the admin-panel port.
var _ ports.AdminPanel = (*Client)(nil)
