package ferry

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"sync"
)

// fakeHosting is an in-memory Hosting that drains the upload body like a
// real transport would.
type fakeHosting struct {
	mu       sync.Mutex
	links    []LinkRequest
	uploads  map[string][]byte
	linkErr  error
	failName string
	// nilResult makes uploads succeed without returning a result.
	nilResult bool
	// gate, when set, blocks every upload until it is closed.
	gate chan struct{}
}

func newFakeHosting() *fakeHosting {
	return &fakeHosting{uploads: make(map[string][]byte)}
}

func (f *fakeHosting) UploadLink(_ context.Context, req LinkRequest) (UploadLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links = append(f.links, req)
	if f.linkErr != nil {
		return UploadLink{}, f.linkErr
	}
	return UploadLink{URL: "https://upload.example/uls/1"}, nil
}

func (f *fakeHosting) Upload(ctx context.Context, _ string, body io.Reader, length int64, contentType string) (*UploadResult, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) != length {
		return nil, errors.New("fake: length mismatch")
	}

	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, err
	}
	part, err := multipart.NewReader(bytes.NewReader(raw), params["boundary"]).NextPart()
	if err != nil {
		return nil, err
	}
	content, err := io.ReadAll(part)
	if err != nil {
		return nil, err
	}

	name := part.FileName()
	if name == f.failName {
		return nil, &APIError{Status: 509, Message: "bandwidth usage too high", Err: ErrBandwidthExceeded}
	}

	f.mu.Lock()
	f.uploads[name] = content
	f.mu.Unlock()

	if f.nilResult {
		return nil, nil
	}

	return &UploadResult{ID: "id-" + name, Name: name, URL: "https://files.example/f/" + name}, nil
}

func (f *fakeHosting) uploaded(name string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.uploads[name]
	return b, ok
}

func (f *fakeHosting) linkRequests() []LinkRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]LinkRequest(nil), f.links...)
}
