// Package hosting implements the file hosting service's HTTP API.
package hosting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/meigma/ferry/core"
)

// DefaultBaseURL is the API root used when none is configured.
const DefaultBaseURL = "https://api.openload.co/1/"

const defaultUserAgent = "ferry/1.0"

// Compile-time interface implementation check.
var _ core.Hosting = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// Client talks to the hosting service.
//
// Upload link requests are idempotent and go through a retrying client.
// Uploads are sent exactly once: the body is a one-pass stream and a
// cancelled stream must abort the transfer rather than trigger a retry.
type Client struct {
	baseURL    string
	creds      core.Credentials
	userAgent  string
	logger     *slog.Logger
	httpClient *http.Client

	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
	retry        *retryablehttp.Client
}

// New creates a Client for the given account.
func New(creds core.Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL:      DefaultBaseURL,
		creds:        creds,
		userAgent:    defaultUserAgent,
		logger:       slog.New(slog.DiscardHandler),
		httpClient:   &http.Client{},
		retryMax:     3,
		retryWaitMin: 500 * time.Millisecond,
		retryWaitMax: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = c.httpClient
	rc.Logger = c.logger
	rc.RetryMax = c.retryMax
	rc.RetryWaitMin = c.retryWaitMin
	rc.RetryWaitMax = c.retryWaitMax
	// Hand the final response back so the service's error envelope is decoded.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	c.retry = rc

	return c
}

// WithBaseURL sets the API root, e.g. "https://api.example.com/1/".
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient sets the underlying HTTP client for both requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger used for request retries.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRetry configures upload link retries. A negative max disables retries.
func WithRetry(maxRetries int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.retryMax = max(maxRetries, 0)
		c.retryWaitMin = waitMin
		c.retryWaitMax = waitMax
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// UploadLink requests a URL the next upload can be posted to.
func (c *Client) UploadLink(ctx context.Context, lr core.LinkRequest) (core.UploadLink, error) {
	if c.creds.Empty() {
		return core.UploadLink{}, core.ErrMissingCredentials
	}

	endpoint, err := c.endpoint("file/ul", linkQuery(c.creds, lr))
	if err != nil {
		return core.UploadLink{}, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return core.UploadLink{}, fmt.Errorf("build link request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.retry.Do(req)
	if err != nil {
		return core.UploadLink{}, fmt.Errorf("request upload link: %w", err)
	}
	defer resp.Body.Close()

	var link core.UploadLink
	if err := decodeResponse(resp, &link); err != nil {
		return core.UploadLink{}, err
	}
	if link.URL == "" {
		return core.UploadLink{}, fmt.Errorf("%w: upload link without url", core.ErrUnexpectedResponse)
	}

	c.logger.Debug("upload link issued", "valid_until", link.ValidUntil)
	return link, nil
}

// Upload posts body to uploadURL in a single attempt.
//
// An error wrapping core.ErrCancelled means the body stream was cancelled
// by its progress callback; any other error is a transport or service failure.
func (c *Client) Upload(ctx context.Context, uploadURL string, body io.Reader, length int64, contentType string) (*core.UploadResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, body)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.ContentLength = length
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, core.ErrCancelled) {
			return nil, err
		}
		return nil, fmt.Errorf("post upload: %w", err)
	}
	defer resp.Body.Close()

	var result core.UploadResult
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) endpoint(path string, query url.Values) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %w", c.baseURL, err)
	}
	u := base.JoinPath(path)
	u.RawQuery = query.Encode()
	return u.String(), nil
}

func linkQuery(creds core.Credentials, lr core.LinkRequest) url.Values {
	q := url.Values{}
	q.Set("login", creds.LoginID)
	q.Set("key", creds.LoginKey)
	if lr.Folder != "" {
		q.Set("folder", lr.Folder)
	}
	if lr.SHA1 != "" {
		q.Set("sha1", lr.SHA1)
	}
	if lr.HTTPOnly {
		q.Set("httponly", "true")
	}
	return q
}

// envelope is the wrapper every API response uses.
type envelope struct {
	Status int             `json:"status"`
	Msg    string          `json:"msg"`
	Result json.RawMessage `json:"result"`
}

// decodeResponse unpacks the envelope, maps its status to an error, and
// decodes the result into out.
func decodeResponse(resp *http.Response, out any) error {
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if statusErr := checkStatus(resp.StatusCode, http.StatusText(resp.StatusCode)); statusErr != nil {
			return statusErr
		}
		return fmt.Errorf("%w: decode body: %v", core.ErrUnexpectedResponse, err)
	}

	if err := checkStatus(env.Status, env.Msg); err != nil {
		return err
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return fmt.Errorf("%w: empty result", core.ErrUnexpectedResponse)
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("%w: decode result: %v", core.ErrUnexpectedResponse, err)
	}
	return nil
}
