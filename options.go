package ferry

import (
	"log/slog"
	"net/http"
	"time"
)

// ClientOption configures a Client.
type ClientOption func(*Client) error

// UploadOption configures an Upload operation.
type UploadOption func(*uploadConfig)

// BatchOption configures a Batch.
type BatchOption func(*Batch)

// uploadConfig holds configuration for Upload operations.
type uploadConfig struct {
	folder   string
	sha1     string
	checksum bool
	httpOnly bool
	progress ProgressCallback
}

// WithBaseURL sets the root URL of the hosting service's API.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) error {
		c.baseURL = u
		return nil
	}
}

// WithChunkSize sets the number of bytes sent between progress callbacks.
// It is also the granularity at which an upload can be cancelled.
func WithChunkSize(n int) ClientOption {
	return func(c *Client) error {
		if n < 1 {
			return errInvalidChunkSize(n)
		}
		c.chunkSize = n
		return nil
	}
}

// WithCredentials sets the account login id and key.
func WithCredentials(loginID, loginKey string) ClientOption {
	return func(c *Client) error {
		c.creds = Credentials{LoginID: loginID, LoginKey: loginKey}
		return nil
	}
}

// WithHosting replaces the hosting service implementation.
// Credentials and transport options are ignored when it is set.
func WithHosting(h Hosting) ClientOption {
	return func(c *Client) error {
		c.hosting = h
		return nil
	}
}

// WithHTTPClient sets the HTTP client used for all requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithLogger sets a logger for the client. By default, logging is disabled.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithTimeout bounds each HTTP request, including the time spent sending
// the upload body. Zero means no timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.timeout = d
		return nil
	}
}

// WithUserAgent sets a custom User-Agent header for API requests.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) error {
		c.userAgent = ua
		return nil
	}
}

// WithFolder uploads into the given folder instead of the home folder.
func WithFolder(folderID string) UploadOption {
	return func(c *uploadConfig) {
		c.folder = folderID
	}
}

// WithHTTPOnly requests a plain HTTP upload URL.
func WithHTTPOnly(httpOnly bool) UploadOption {
	return func(c *uploadConfig) {
		c.httpOnly = httpOnly
	}
}

// WithProgress sets a callback that observes, and may cancel, the upload.
func WithProgress(cb ProgressCallback) UploadOption {
	return func(c *uploadConfig) {
		c.progress = cb
	}
}

// WithSHA1 sets the expected SHA-1 of the file; the service rejects a mismatch.
func WithSHA1(sum string) UploadOption {
	return func(c *uploadConfig) {
		c.sha1 = sum
	}
}

// WithChecksum computes the file's SHA-1 locally and sends it as with WithSHA1.
// An explicit WithSHA1 value takes precedence.
func WithChecksum(enabled bool) UploadOption {
	return func(c *uploadConfig) {
		c.checksum = enabled
	}
}

// WithSink sets the receiver of per-job progress and terminal states.
func WithSink(sink Sink) BatchOption {
	return func(b *Batch) {
		if sink != nil {
			b.sink = sink
		}
	}
}

// WithBatchLogger sets the logger for the batch and its worker pool.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *Batch) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithUploadOptions applies opts to every upload in the batch.
func WithUploadOptions(opts ...UploadOption) BatchOption {
	return func(b *Batch) {
		b.uploadOpts = append(b.uploadOpts, opts...)
	}
}
