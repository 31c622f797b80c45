package ferry

import (
	"errors"

	"github.com/meigma/ferry/core"
)

// Sentinel errors for common failure conditions.
// Re-exported from core package.
var (
	// ErrBadRequest indicates the service rejected the request parameters.
	ErrBadRequest = core.ErrBadRequest

	// ErrPermissionDenied indicates the credentials were rejected.
	ErrPermissionDenied = core.ErrPermissionDenied

	// ErrNotFound indicates the requested file or folder does not exist.
	ErrNotFound = core.ErrNotFound

	// ErrUnavailableForLegalReasons indicates the resource is blocked.
	ErrUnavailableForLegalReasons = core.ErrUnavailableForLegalReasons

	// ErrBandwidthExceeded indicates the account's bandwidth quota is used up.
	ErrBandwidthExceeded = core.ErrBandwidthExceeded

	// ErrServer indicates a server-side failure.
	ErrServer = core.ErrServer

	// ErrUnexpectedResponse indicates a response body that could not be decoded.
	ErrUnexpectedResponse = core.ErrUnexpectedResponse

	// ErrMissingCredentials indicates no login id or key was configured.
	ErrMissingCredentials = core.ErrMissingCredentials

	// ErrCancelled indicates an upload was aborted through its progress callback.
	ErrCancelled = core.ErrCancelled
)

// Batch errors.
var (
	// ErrJobNotFound indicates an unknown batch job ID.
	ErrJobNotFound = errors.New("ferry: job not found")

	// ErrBatchClosed indicates an Add after Close.
	ErrBatchClosed = errors.New("ferry: batch closed")

	// ErrCancelRequested is the callback error used when a job is cancelled
	// through Batch.Cancel or Batch.CancelAll.
	ErrCancelRequested = errors.New("ferry: cancel requested")
)

// APIError carries the status and message reported by the hosting service.
// Re-exported from core package.
type APIError = core.APIError
