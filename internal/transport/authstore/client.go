// Package authstore talks to the authoritative job store's internal endpoints.
package authstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kailas-cloud/jobmatch/internal/domain"
)

// DefaultHeader carries the shared secret.
const DefaultHeader = "X-Internal-API-Key"

const maxErrorBody = 512

// Config holds store endpoints and credentials.
type Config struct {
	IntakeURL string
	JobsURL   string
	APIKey    string
	Header    string
	Timeout   time.Duration
}

// IntakeResponse is the store's reply to a batch intake.
type IntakeResponse struct {
	Message string           `json:"message"`
	Count   int              `json:"count"`
	Jobs    []domain.Posting `json:"jobs"`
}

// Client is an HTTP client for the store.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a store client. A zero Timeout means 10s.
func New(cfg Config) *Client {
	if cfg.Header == "" {
		cfg.Header = DefaultHeader
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// SubmitBatch posts postings to the intake endpoint and returns the accepted set with store ids.
// A 4xx reply wraps domain.ErrStoreRejected and an unreadable 2xx reply wraps
// domain.ErrStoreBadReply; everything else wraps domain.ErrStoreUnavailable.
func (c *Client) SubmitBatch(ctx context.Context, postings []domain.Posting) ([]domain.Posting, error) {
	body, err := json.Marshal(postings)
	if err != nil {
		return nil, fmt.Errorf("encode intake batch: %w", err)
	}

	var out IntakeResponse
	if err := c.do(ctx, http.MethodPost, c.cfg.IntakeURL, bytes.NewReader(body), &out); err != nil {
		return nil, err
	}
	if out.Count > 0 && out.Count != len(out.Jobs) {
		return nil, fmt.Errorf("intake reported %d saved but returned %d jobs: %w",
			out.Count, len(out.Jobs), domain.ErrStoreBadReply)
	}
	return out.Jobs, nil
}

// ListJobs returns every posting the store currently exposes.
func (c *Client) ListJobs(ctx context.Context) ([]domain.Posting, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.cfg.JobsURL, nil, &raw); err != nil {
		return nil, err
	}

	var jobs []domain.Posting
	if err := json.Unmarshal(raw, &jobs); err == nil {
		return jobs, nil
	}
	var wrapped struct {
		Jobs []domain.Posting `json:"jobs"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode job listing: %w: %w", domain.ErrStoreBadReply, err)
	}
	return wrapped.Jobs, nil
}

// HealthCheck lists jobs and discards the result.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.ListJobs(ctx)
	return err
}

func (c *Client) do(ctx context.Context, method, url string, body io.Reader, out any) error {
	if url == "" {
		return fmt.Errorf("%s: store url not configured: %w", method, domain.ErrStoreUnavailable)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set(c.cfg.Header, c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, url, domain.ErrStoreUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w: %w", url, domain.ErrStoreBadReply, err)
	}
	return nil
}

// StatusError is a non-2xx reply from the store.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("store returned %d", e.Code)
	}
	return fmt.Sprintf("store returned %d: %s", e.Code, e.Body)
}

// Unwrap maps client errors to rejection and the rest to unavailability.
func (e *StatusError) Unwrap() error {
	if e.Permanent() {
		return domain.ErrStoreRejected
	}
	return domain.ErrStoreUnavailable
}

// Permanent reports whether retrying cannot help. 408 and 429 are retried.
func (e *StatusError) Permanent() bool {
	return e.Code >= 400 && e.Code < 500 &&
		e.Code != http.StatusRequestTimeout && e.Code != http.StatusTooManyRequests
}
