// Package client is a thin Go SDK for the RxDossier API server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Version is reported in the User-Agent header.
const Version = "0.1.0"

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("rxdossier: %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
}

// IsNotFound reports whether the server answered 404.
func (e *APIError) IsNotFound() bool { return e.StatusCode == http.StatusNotFound }

// IsRateLimited reports whether the server answered 429.
func (e *APIError) IsRateLimited() bool { return e.StatusCode == http.StatusTooManyRequests }

// Client calls the RxDossier API server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient validates the base URL and applies options.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("base URL scheme must be http or https, got %q", parsed.Scheme)
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		userAgent:  "rxdossier-go/" + Version,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type analysisRequest struct {
	DocumentID string      `json:"document_id"`
	Candidates []Candidate `json:"candidates"`
	Async      bool        `json:"async,omitempty"`
}

type analysisAccepted struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// SubmitAnalysis runs an enrichment synchronously and returns the
// report.
func (c *Client) SubmitAnalysis(ctx context.Context, documentID string, candidates []Candidate) (*Report, error) {
	var report Report
	err := c.do(ctx, http.MethodPost, "/api/v1/analyses", analysisRequest{
		DocumentID: documentID,
		Candidates: candidates,
	}, &report)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// SubmitAnalysisAsync queues the job and returns its ID.
func (c *Client) SubmitAnalysisAsync(ctx context.Context, documentID string, candidates []Candidate) (string, error) {
	var accepted analysisAccepted
	err := c.do(ctx, http.MethodPost, "/api/v1/analyses", analysisRequest{
		DocumentID: documentID,
		Candidates: candidates,
		Async:      true,
	}, &accepted)
	if err != nil {
		return "", err
	}
	return accepted.JobID, nil
}

// GetReport fetches a stored report by run ID.
func (c *Client) GetReport(ctx context.Context, runID string) (*Report, error) {
	var report Report
	if err := c.do(ctx, http.MethodGet, "/api/v1/reports/"+url.PathEscape(runID), nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// ListReports returns reports for a document, newest first.
func (c *Client) ListReports(ctx context.Context, documentID string, limit int) ([]*Report, error) {
	path := "/api/v1/reports?document_id=" + url.QueryEscape(documentID)
	if limit > 0 {
		path += "&limit=" + strconv.Itoa(limit)
	}
	var body struct {
		Reports []*Report `json:"reports"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}
	return body.Reports, nil
}

// ExportReport downloads a rendered report in the given format
// ("json" or "csv").
func (c *Client) ExportReport(ctx context.Context, runID, format string) ([]byte, error) {
	path := "/api/v1/reports/" + url.PathEscape(runID) + "/export?format=" + url.QueryEscape(format)
	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) do(ctx context.Context, method, path string, reqBody, respBody interface{}) error {
	resp, err := c.send(ctx, method, path, reqBody)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if respBody == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil || json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
		apiErr.Code = http.StatusText(resp.StatusCode)
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
