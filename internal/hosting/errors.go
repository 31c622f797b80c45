package hosting

import (
	"net/http"

	"github.com/meigma/ferry/core"
)

// statusBandwidthExceeded is the non-standard status the service uses when
// an account runs out of bandwidth.
const statusBandwidthExceeded = 509

// checkStatus converts a status reported by the service into an error.
// Statuses without a mapping are treated as success.
func checkStatus(status int, msg string) error {
	var sentinel error
	switch {
	case status == http.StatusBadRequest:
		sentinel = core.ErrBadRequest
	case status == http.StatusForbidden:
		sentinel = core.ErrPermissionDenied
	case status == http.StatusNotFound:
		sentinel = core.ErrNotFound
	case status == http.StatusUnavailableForLegalReasons:
		sentinel = core.ErrUnavailableForLegalReasons
	case status == statusBandwidthExceeded:
		sentinel = core.ErrBandwidthExceeded
	case status >= http.StatusInternalServerError:
		sentinel = core.ErrServer
	default:
		return nil
	}
	return &core.APIError{Status: status, Message: msg, Err: sentinel}
}
