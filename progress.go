package ferry

// ProgressEvent represents a progress update during an upload.
type ProgressEvent struct {
	// Path is the local file being uploaded.
	Path string
	// BytesTransferred is the cumulative number of body bytes handed to the transport.
	BytesTransferred int64
	// TotalBytes is the size of the request body.
	TotalBytes int64
}

// Percent returns the completed share of the upload in the range [0, 100].
func (e ProgressEvent) Percent() float64 {
	if e.TotalBytes <= 0 {
		return 0
	}
	return float64(e.BytesTransferred) * 100 / float64(e.TotalBytes)
}

// ProgressCallback is called after every chunk of an upload.
// Returning a non-nil error cancels the upload at that chunk boundary.
// Implementations should be efficient as this may be called frequently.
type ProgressCallback func(event ProgressEvent) error
