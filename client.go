package ferry

import (
	"context"
	"crypto/sha1" //nolint:gosec // SHA-1 is the digest the hosting service verifies
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/meigma/ferry/internal/hosting"
	"github.com/meigma/ferry/internal/progress"
)

// DefaultChunkSize is the upload chunk size used unless WithChunkSize is set.
const DefaultChunkSize = progress.DefaultChunkSize

// Client uploads files to the hosting service.
type Client struct {
	hosting   Hosting
	logger    *slog.Logger
	chunkSize int

	// configuration passed to the hosting transport
	creds      Credentials
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
}

// NewClient creates a new ferry client.
//
// Credentials are required unless a custom Hosting implementation is set
// with WithHosting.
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		logger:    slog.New(slog.DiscardHandler),
		chunkSize: DefaultChunkSize,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.hosting != nil {
		return c, nil
	}
	if c.creds.Empty() {
		return nil, ErrMissingCredentials
	}

	hc := c.httpClient
	if hc == nil {
		hc = &http.Client{}
	}
	if c.timeout > 0 {
		clone := *hc
		clone.Timeout = c.timeout
		hc = &clone
	}

	hostOpts := []hosting.Option{
		hosting.WithHTTPClient(hc),
		hosting.WithLogger(c.logger),
	}
	if c.baseURL != "" {
		hostOpts = append(hostOpts, hosting.WithBaseURL(c.baseURL))
	}
	if c.userAgent != "" {
		hostOpts = append(hostOpts, hosting.WithUserAgent(c.userAgent))
	}
	c.hosting = hosting.New(c.creds, hostOpts...)

	return c, nil
}

// UploadLink requests a one-shot upload URL without uploading anything.
// Only WithFolder, WithSHA1 and WithHTTPOnly apply.
func (c *Client) UploadLink(ctx context.Context, opts ...UploadOption) (UploadLink, error) {
	cfg := &uploadConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	link, err := c.hosting.UploadLink(ctx, cfg.linkRequest())
	if err != nil {
		return UploadLink{}, fmt.Errorf("upload link: %w", err)
	}
	return link, nil
}

// Upload reads the file at path and uploads it.
//
// The whole file is held in memory while it is sent. Progress is reported
// once per chunk; if the progress callback returns an error the transfer is
// aborted and Upload returns an error matching ErrCancelled.
func (c *Client) Upload(ctx context.Context, path string, opts ...UploadOption) (*UploadResult, error) {
	cfg := &uploadConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if cfg.checksum && cfg.sha1 == "" {
		sum := sha1.Sum(content) //nolint:gosec // required by the service
		cfg.sha1 = hex.EncodeToString(sum[:])
	}

	link, err := c.hosting.UploadLink(ctx, cfg.linkRequest())
	if err != nil {
		return nil, fmt.Errorf("upload link for %s: %w", path, err)
	}

	body, contentType, err := hosting.EncodeFile(filepath.Base(path), content)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", path, err)
	}

	stream := progress.NewStream(body, cfg.streamCallback(path), progress.WithChunkSize(c.chunkSize))
	c.logger.Debug("uploading file", "path", path, "size", len(content), "body", stream.Len())

	result, err := c.hosting.Upload(ctx, link.URL, stream, stream.Len(), contentType)
	if err != nil {
		// The transport may report the aborted body as a generic write
		// error; the stream knows whether it was cancelled.
		if cancelErr := stream.Err(); cancelErr != nil && !errors.Is(err, ErrCancelled) {
			err = cancelErr
		}
		return nil, fmt.Errorf("upload %s: %w", path, err)
	}

	c.logger.Debug("file uploaded", "path", path, "id", result.ID, "url", result.URL)
	return result, nil
}

func (cfg *uploadConfig) linkRequest() LinkRequest {
	return LinkRequest{
		Folder:   cfg.folder,
		SHA1:     cfg.sha1,
		HTTPOnly: cfg.httpOnly,
	}
}

// streamCallback adapts the upload's progress callback to the stream.
func (cfg *uploadConfig) streamCallback(path string) progress.Callback {
	if cfg.progress == nil {
		return nil
	}
	cb := cfg.progress
	return func(size, transferred int64) error {
		return cb(ProgressEvent{
			Path:             path,
			BytesTransferred: transferred,
			TotalBytes:       size,
		})
	}
}

func errInvalidChunkSize(n int) error {
	return fmt.Errorf("ferry: chunk size must be positive, got %d", n)
}
