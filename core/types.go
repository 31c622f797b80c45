// Package core provides the shared types and interfaces for ferry.
//
// This package exists to break import cycles between the root ferry package
// and internal implementation packages. The ferry package re-exports all
// public types from this package, so external users should import ferry
// directly, not ferry/core.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/meigma/ferry/internal/progress"
)

// Sentinel errors for common failure conditions.
var (
	// ErrBadRequest indicates the service rejected the request parameters (400).
	ErrBadRequest = errors.New("ferry: bad request")

	// ErrPermissionDenied indicates the credentials were rejected (403).
	ErrPermissionDenied = errors.New("ferry: permission denied")

	// ErrNotFound indicates the requested file or folder does not exist (404).
	ErrNotFound = errors.New("ferry: not found")

	// ErrUnavailableForLegalReasons indicates the resource is blocked (451).
	ErrUnavailableForLegalReasons = errors.New("ferry: unavailable for legal reasons")

	// ErrBandwidthExceeded indicates the account's bandwidth quota is used up (509).
	ErrBandwidthExceeded = errors.New("ferry: bandwidth usage exceeded")

	// ErrServer indicates any other server-side failure (>= 500).
	ErrServer = errors.New("ferry: server error")

	// ErrUnexpectedResponse indicates a response body that could not be decoded.
	ErrUnexpectedResponse = errors.New("ferry: unexpected response")

	// ErrMissingCredentials indicates no login id or key was configured.
	ErrMissingCredentials = errors.New("ferry: missing credentials")

	// ErrCancelled indicates an upload was aborted through its progress callback.
	ErrCancelled = progress.ErrCancelled
)

// APIError carries the status and message reported by the hosting service.
// It unwraps to one of the sentinel errors above.
type APIError struct {
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v (status %d)", e.Err, e.Status)
	}
	return fmt.Sprintf("%v (status %d): %s", e.Err, e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// Credentials identify the account on the hosting service.
type Credentials struct {
	LoginID  string
	LoginKey string
}

// Empty reports whether either half of the credentials is missing.
func (c Credentials) Empty() bool {
	return c.LoginID == "" || c.LoginKey == ""
}

// LinkRequest contains the parameters of an upload link request.
type LinkRequest struct {
	// Folder is the destination folder ID. Empty means the account's home folder.
	Folder string
	// SHA1 is the expected digest of the upload; the service rejects a mismatch.
	SHA1 string
	// HTTPOnly requests a plain HTTP upload URL.
	HTTPOnly bool
}

// UploadLink is a one-shot URL that accepts a single file upload.
type UploadLink struct {
	URL        string `json:"url"`
	ValidUntil string `json:"valid_until"`
}

// UploadResult describes a file stored by the hosting service.
type UploadResult struct {
	ContentType string `json:"content_type"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	SHA1        string `json:"sha1"`
	Size        string `json:"size"`
	URL         string `json:"url"`
}

// Hosting performs the remote API calls of an upload.
// This interface is implemented by internal/hosting.
type Hosting interface {
	// UploadLink requests a fresh upload URL.
	UploadLink(ctx context.Context, req LinkRequest) (UploadLink, error)

	// Upload streams body to the upload URL. length is sent as the
	// Content-Length and must match the bytes body yields.
	Upload(ctx context.Context, url string, body io.Reader, length int64, contentType string) (*UploadResult, error)
}
