// Package api is the HTTP boundary to the dataset-cleaning service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Service-reported job status values.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusError   = "error"
)

// ErrUnexpectedStatus wraps non-2xx responses from the service.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// SubmitResponse is the body returned by the upload endpoint.
type SubmitResponse struct {
	Message    string `json:"message"`
	Filename   string `json:"filename"`
	JobID      string `json:"job_id"`
	TotalNames int    `json:"total_names"`
}

// ProgressResponse is the body returned by the progress endpoint.
type ProgressResponse struct {
	Processed  int    `json:"processed"`
	Harmonized int    `json:"harmonized"`
	Total      int    `json:"total"`
	Status     string `json:"status"`
	Detail     string `json:"detail"`
}

// IntentRequest is the body sent to the payment-intent endpoint.
type IntentRequest struct {
	AmountCents  int64  `json:"amount_cents"`
	BillingName  string `json:"billing_name,omitempty"`
	BillingEmail string `json:"billing_email,omitempty"`
}

type intentResponse struct {
	ClientSecret string `json:"client_secret"`
}

// Client talks to the cleaning service. The base address is injected at
// construction; nothing here reads ambient environment.
type Client struct {
	base *url.URL
	http *http.Client
	log  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient injects a custom http.Client (useful for testing).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithLogger attaches a diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// NewClient constructs a Client for the given base address.
func NewClient(base string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api base %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api base %q: scheme and host are required", base)
	}
	c := &Client{
		base: u,
		http: &http.Client{Timeout: 30 * time.Second},
		log:  zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BaseURL returns the configured base address.
func (c *Client) BaseURL() string {
	return c.base.String()
}

func (c *Client) endpoint(parts ...string) string {
	u := *c.base
	u.Path = path.Join(append([]string{u.Path}, parts...)...)
	return u.String()
}

// SubmitCSV uploads the file as a multipart body and returns the created
// job. A non-2xx response or a malformed body is a submission failure.
func (c *Client) SubmitCSV(ctx context.Context, filename string, r io.Reader) (SubmitResponse, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return SubmitResponse{}, fmt.Errorf("submit: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return SubmitResponse{}, fmt.Errorf("submit: read %s: %w", filename, err)
	}
	if err := w.Close(); err != nil {
		return SubmitResponse{}, fmt.Errorf("submit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("api", "csv"), &body)
	if err != nil {
		return SubmitResponse{}, fmt.Errorf("submit: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	c.log.Debug("submitting file", zap.String("filename", filename))

	resp, err := c.http.Do(req)
	if err != nil {
		return SubmitResponse{}, fmt.Errorf("submit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SubmitResponse{}, fmt.Errorf("submit: %w: %s", ErrUnexpectedStatus, resp.Status)
	}

	var out SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return SubmitResponse{}, fmt.Errorf("submit: decode response: %w", err)
	}
	c.log.Debug("job created",
		zap.String("job_id", out.JobID),
		zap.String("filename", out.Filename),
		zap.Int("total_names", out.TotalNames))
	return out, nil
}

// JobProgress fetches the current progress for jobID. Each call is a single
// request/response exchange; callers own the polling cadence.
func (c *Client) JobProgress(ctx context.Context, jobID string) (ProgressResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("progress", jobID), nil)
	if err != nil {
		return ProgressResponse{}, fmt.Errorf("poll: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return ProgressResponse{}, fmt.Errorf("poll: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ProgressResponse{}, fmt.Errorf("poll: %w: %s", ErrUnexpectedStatus, resp.Status)
	}
	var out ProgressResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ProgressResponse{}, fmt.Errorf("poll: decode response: %w", err)
	}
	return out, nil
}

// DownloadURL returns the stable URL the artifact for locator can be
// fetched from. It does not perform the transfer.
func (c *Client) DownloadURL(locator string) string {
	return c.endpoint("download", locator)
}

// FetchResult downloads the artifact for locator into destPath and returns
// the number of bytes written. The bytes are written as-is; the client does
// not interpret them.
func (c *Client) FetchResult(ctx context.Context, locator, destPath string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DownloadURL(locator), nil)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("fetch %q: %w: %s", locator, ErrUnexpectedStatus, resp.Status)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("fetch: write %s: %w", destPath, err)
	}
	c.log.Debug("artifact fetched",
		zap.String("locator", locator),
		zap.String("dest", destPath),
		zap.Int64("bytes", n))
	return n, nil
}

// CreatePaymentIntent asks the service to create a payment intent and
// returns the gateway client secret used to confirm it.
func (c *Client) CreatePaymentIntent(ctx context.Context, in IntentRequest) (string, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("payment intent: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("api", "create-payment-intent"), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("payment intent: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("payment intent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("payment intent: %w: %s", ErrUnexpectedStatus, resp.Status)
	}
	var out intentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("payment intent: decode response: %w", err)
	}
	if out.ClientSecret == "" {
		return "", errors.New("payment intent: empty client secret")
	}
	return out.ClientSecret, nil
}

// Ping checks that the service base address answers HTTP at all. Any
// response counts; only transport failures are errors.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("service unreachable at %s: %w", c.base, err)
	}
	resp.Body.Close()
	return nil
}
