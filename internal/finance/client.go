// Package finance provides the HTTP client for the external finance (fee)
// service. It implements ports.FinanceGateway for the enquiries module.
package finance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"admissions_backend/internal/enquiries/ports"
	"admissions_backend/platform/logger"
)

// Client is the HTTP client for the finance service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        *logger.Logger
}

// New creates a new finance service client.
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

// apiFee is the raw fee record returned by the finance service.
type apiFee struct {
	FeeID       int64  `json:"feeId"`
	FeeType     string `json:"feeType"`
	AmountPaise int64  `json:"amountPaise"`
	PaidPaise   int64  `json:"paidPaise"`
	Status      string `json:"status"`
}

// ListFees returns the student's fees for an academic year.
func (c *Client) ListFees(ctx context.Context, studentGlobalID, academicYearID int64) ([]ports.FeeRecord, error) {
	params := url.Values{}
	params.Set("studentId", fmt.Sprintf("%d", studentGlobalID))
	params.Set("academicYearId", fmt.Sprintf("%d", academicYearID))

	reqURL := fmt.Sprintf("%s/api/v1/fees?%s", c.baseURL, params.Encode())

	var apiFees []apiFee
	if err := c.doJSON(ctx, http.MethodGet, reqURL, nil, &apiFees); err != nil {
		return nil, err
	}

	fees := make([]ports.FeeRecord, 0, len(apiFees))
	for _, fee := range apiFees {
		fees = append(fees, ports.FeeRecord{
			FeeID:       fee.FeeID,
			FeeType:     fee.FeeType,
			AmountPaise: fee.AmountPaise,
			PaidPaise:   fee.PaidPaise,
		})
	}
	return fees, nil
}

// CreateFee raises a new fee record upstream.
func (c *Client) CreateFee(ctx context.Context, params ports.CreateFeeParams) error {
	body := map[string]any{
		"studentId":      params.StudentGlobalID,
		"schoolId":       params.SchoolID,
		"academicYearId": params.AcademicYearID,
		"gradeId":        params.GradeID,
		"feeType":        params.FeeType,
		"referenceNo":    params.EnquiryNumber,
	}
	reqURL := fmt.Sprintf("%s/api/v1/fees", c.baseURL)
	return c.doJSON(ctx, http.MethodPost, reqURL, body, nil)
}

// ListPendingFees returns the ids of fees with an outstanding balance.
func (c *Client) ListPendingFees(ctx context.Context, studentGlobalID, academicYearID int64) ([]int64, error) {
	fees, err := c.ListFees(ctx, studentGlobalID, academicYearID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(fees))
	for _, fee := range fees {
		if !fee.FullyPaid() {
			ids = append(ids, fee.FeeID)
		}
	}
	return ids, nil
}

// DeEnrollFee removes one fee record with a de-enrollment reason.
func (c *Client) DeEnrollFee(ctx context.Context, feeID int64, reasonID int) error {
	body := map[string]any{"reasonId": reasonID}
	reqURL := fmt.Sprintf("%s/api/v1/fees/%d/de-enroll", c.baseURL, feeID)
	return c.doJSON(ctx, http.MethodPost, reqURL, body, nil)
}

func (c *Client) doJSON(ctx context.Context, method, reqURL string, body any, out any) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, payload)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("finance request failed", "error", err, "url", reqURL)
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// Success - continue to decode
	case resp.StatusCode == http.StatusUnauthorized:
		c.log.Error("finance unauthorized", "status", resp.StatusCode)
		return fmt.Errorf("unauthorized: invalid API key")
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("not found: %s", reqURL)
	default:
		c.log.Error("finance upstream error", "status", resp.StatusCode, "url", reqURL)
		return fmt.Errorf("upstream error: status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.log.Error("finance decode failed", "error", err)
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Compile-time check that Client implements the gateway port.
var _ ports.FinanceGateway = (*Client)(nil)
