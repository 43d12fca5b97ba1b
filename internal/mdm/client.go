// Package mdm provides the HTTP client for the master-data service, the
// system of record for parents, students, schools and academic years. It
// implements ports.MasterData for the enquiries module.
package mdm

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

// Client is the HTTP client for the master-data service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        *logger.Logger
}

// New creates a new master-data client.
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

type apiIdentity struct {
	GlobalID int64 `json:"globalId"`
}

// ResolveParent resolves or creates the parent's global id. The upstream
// endpoint is an upsert keyed on the phone number.
func (c *Client) ResolveParent(ctx context.Context, params ports.ResolveParentParams) (*ports.GlobalIdentity, error) {
	body := map[string]any{
		"name":  params.Name,
		"phone": params.Phone,
		"email": params.Email,
	}
	reqURL := fmt.Sprintf("%s/api/v1/parents/resolve", c.baseURL)

	var identity apiIdentity
	found, err := c.doJSON(ctx, http.MethodPost, reqURL, body, &identity)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &ports.GlobalIdentity{GlobalID: identity.GlobalID}, nil
}

// ResolveStudent resolves or creates the student's global id.
func (c *Client) ResolveStudent(ctx context.Context, params ports.ResolveStudentParams) (*ports.GlobalIdentity, error) {
	body := map[string]any{
		"firstName": params.FirstName,
		"lastName":  params.LastName,
		"dob":       params.DOB.Format("2006-01-02"),
		"schoolId":  params.SchoolID,
	}
	reqURL := fmt.Sprintf("%s/api/v1/students/resolve", c.baseURL)

	var identity apiIdentity
	found, err := c.doJSON(ctx, http.MethodPost, reqURL, body, &identity)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &ports.GlobalIdentity{GlobalID: identity.GlobalID}, nil
}

type apiActiveStudent struct {
	StudentGlobalID int64  `json:"studentGlobalId"`
	EnrolmentNumber string `json:"enrolmentNumber"`
	SchoolID        int64  `json:"schoolId"`
}

// FindActiveStudent looks up an active enrolment by student identity.
// Returns nil when no active record exists.
func (c *Client) FindActiveStudent(ctx context.Context, firstName, lastName string, dob time.Time) (*ports.ActiveStudent, error) {
	params := url.Values{}
	params.Set("firstName", firstName)
	params.Set("lastName", lastName)
	params.Set("dob", dob.Format("2006-01-02"))

	reqURL := fmt.Sprintf("%s/api/v1/students/active?%s", c.baseURL, params.Encode())

	var student apiActiveStudent
	found, err := c.doJSON(ctx, http.MethodGet, reqURL, nil, &student)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &ports.ActiveStudent{
		StudentGlobalID: student.StudentGlobalID,
		EnrolmentNumber: student.EnrolmentNumber,
		SchoolID:        student.SchoolID,
	}, nil
}

// CurrentAcademicYearID returns the id of the academic year in progress.
func (c *Client) CurrentAcademicYearID(ctx context.Context) (int64, error) {
	reqURL := fmt.Sprintf("%s/api/v1/academic-years/current", c.baseURL)

	var year struct {
		ID int64 `json:"id"`
	}
	found, err := c.doJSON(ctx, http.MethodGet, reqURL, nil, &year)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("no current academic year configured upstream")
	}
	return year.ID, nil
}

// doJSON performs the request and decodes the response into out. The bool
// result is false when upstream answered 404, which callers map to their
// own "not found" semantics.
func (c *Client) doJSON(ctx context.Context, method, reqURL string, body any, out any) (bool, error) {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, payload)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("mdm request failed", "error", err, "url", reqURL)
		return false, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// Success - continue to decode
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode == http.StatusUnauthorized:
		c.log.Error("mdm unauthorized", "status", resp.StatusCode)
		return false, fmt.Errorf("unauthorized: invalid API key")
	default:
		c.log.Error("mdm upstream error", "status", resp.StatusCode, "url", reqURL)
		return false, fmt.Errorf("upstream error: status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.log.Error("mdm decode failed", "error", err)
			return false, fmt.Errorf("decode response: %w", err)
		}
	}
	return true, nil
}

// Compile-time check that Client implements the master-data port.
var _ ports.MasterData = (*Client)(nil)
