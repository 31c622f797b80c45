package ferry

import "context"

// uploader is the part of Client a Batch depends on.
type uploader interface {
	Upload(ctx context.Context, path string, opts ...UploadOption) (*UploadResult, error)
}

// Compile-time interface implementation check.
var _ uploader = (*Client)(nil)
