package hosting

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/ferry/core"
	"github.com/meigma/ferry/internal/progress"
)

var testCreds = core.Credentials{LoginID: "id123", LoginKey: "key456"}

func writeEnvelope(t *testing.T, w http.ResponseWriter, status int, msg string, result any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"msg":    msg,
		"result": result,
	}))
}

func newTestClient(srv *httptest.Server, opts ...Option) *Client {
	opts = append([]Option{
		WithBaseURL(srv.URL + "/1/"),
		WithHTTPClient(srv.Client()),
		WithRetry(2, time.Millisecond, 2*time.Millisecond),
	}, opts...)
	return New(testCreds, opts...)
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("creates client with defaults", func(t *testing.T) {
		t.Parallel()

		c := New(testCreds)
		require.NotNil(t, c)
		assert.Equal(t, DefaultBaseURL, c.baseURL)
		assert.Equal(t, "ferry/1.0", c.userAgent)
		assert.Equal(t, 3, c.retry.RetryMax)
	})

	t.Run("applies options", func(t *testing.T) {
		t.Parallel()

		hc := &http.Client{Timeout: time.Second}
		c := New(testCreds,
			WithBaseURL("http://localhost:9000/1/"),
			WithUserAgent("custom-agent/2.0"),
			WithHTTPClient(hc),
			WithRetry(-1, time.Millisecond, time.Millisecond),
		)
		assert.Equal(t, "http://localhost:9000/1/", c.baseURL)
		assert.Equal(t, "custom-agent/2.0", c.userAgent)
		assert.Same(t, hc, c.httpClient)
		assert.Same(t, hc, c.retry.HTTPClient)
		assert.Zero(t, c.retry.RetryMax)
	})

	t.Run("ignores empty values", func(t *testing.T) {
		t.Parallel()

		c := New(testCreds, WithBaseURL(""), WithUserAgent(""), WithHTTPClient(nil), WithLogger(nil))
		assert.Equal(t, DefaultBaseURL, c.baseURL)
		assert.Equal(t, "ferry/1.0", c.userAgent)
		assert.NotNil(t, c.httpClient)
		assert.NotNil(t, c.logger)
	})
}

func TestClient_UploadLink(t *testing.T) {
	t.Parallel()

	t.Run("sends credentials and options", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/1/file/ul", r.URL.Path)
			q := r.URL.Query()
			assert.Equal(t, "id123", q.Get("login"))
			assert.Equal(t, "key456", q.Get("key"))
			assert.Equal(t, "folder9", q.Get("folder"))
			assert.Equal(t, "abc", q.Get("sha1"))
			assert.Equal(t, "true", q.Get("httponly"))
			assert.Equal(t, "ferry/1.0", r.Header.Get("User-Agent"))

			writeEnvelope(t, w, 200, "OK", map[string]string{
				"url":         "https://upload.example/uls/xyz",
				"valid_until": "2017-08-19 19:06:46",
			})
		}))
		defer srv.Close()

		link, err := newTestClient(srv).UploadLink(context.Background(), core.LinkRequest{
			Folder:   "folder9",
			SHA1:     "abc",
			HTTPOnly: true,
		})
		require.NoError(t, err)
		assert.Equal(t, "https://upload.example/uls/xyz", link.URL)
		assert.Equal(t, "2017-08-19 19:06:46", link.ValidUntil)
	})

	t.Run("omits empty options", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.False(t, q.Has("folder"))
			assert.False(t, q.Has("sha1"))
			assert.False(t, q.Has("httponly"))
			writeEnvelope(t, w, 200, "OK", map[string]string{"url": "https://upload.example/u"})
		}))
		defer srv.Close()

		_, err := newTestClient(srv).UploadLink(context.Background(), core.LinkRequest{})
		require.NoError(t, err)
	})

	t.Run("missing credentials", func(t *testing.T) {
		t.Parallel()

		c := New(core.Credentials{LoginID: "only-id"})
		_, err := c.UploadLink(context.Background(), core.LinkRequest{})
		require.ErrorIs(t, err, core.ErrMissingCredentials)
	})

	t.Run("maps service status", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeEnvelope(t, w, 403, "Wrong login key", nil)
		}))
		defer srv.Close()

		_, err := newTestClient(srv).UploadLink(context.Background(), core.LinkRequest{})
		require.ErrorIs(t, err, core.ErrPermissionDenied)

		var apiErr *core.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 403, apiErr.Status)
		assert.Equal(t, "Wrong login key", apiErr.Message)
	})

	t.Run("retries transient server errors", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			writeEnvelope(t, w, 200, "OK", map[string]string{"url": "https://upload.example/u"})
		}))
		defer srv.Close()

		link, err := newTestClient(srv).UploadLink(context.Background(), core.LinkRequest{})
		require.NoError(t, err)
		assert.Equal(t, "https://upload.example/u", link.URL)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("gives up after retries", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			http.Error(w, "down for maintenance", http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := newTestClient(srv).UploadLink(context.Background(), core.LinkRequest{})
		require.ErrorIs(t, err, core.ErrServer)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "<html>not json</html>")
		}))
		defer srv.Close()

		_, err := newTestClient(srv).UploadLink(context.Background(), core.LinkRequest{})
		require.ErrorIs(t, err, core.ErrUnexpectedResponse)
	})

	t.Run("rejects link without url", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeEnvelope(t, w, 200, "OK", map[string]string{"valid_until": "soon"})
		}))
		defer srv.Close()

		_, err := newTestClient(srv).UploadLink(context.Background(), core.LinkRequest{})
		require.ErrorIs(t, err, core.ErrUnexpectedResponse)
	})
}

func TestClient_Upload(t *testing.T) {
	t.Parallel()

	t.Run("streams multipart body", func(t *testing.T) {
		t.Parallel()

		content := []byte(strings.Repeat("frame", 1000))
		body, contentType, err := EncodeFile("clip.bin", content)
		require.NoError(t, err)

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, int64(len(body)), r.ContentLength)

			file, header, err := r.FormFile(FileField)
			if !assert.NoError(t, err) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			defer file.Close()
			got, _ := io.ReadAll(file)
			assert.Equal(t, content, got)

			writeEnvelope(t, w, 200, "OK", core.UploadResult{
				ContentType: "application/octet-stream",
				ID:          "0yiQTPzi4Y4",
				Name:        header.Filename,
				SHA1:        "f2cb05663563ec1b7e75dbcd5b96d523cb78d80c",
				Size:        "5000",
				URL:         "https://files.example/f/0yiQTPzi4Y4/clip.bin",
			})
		}))
		defer srv.Close()

		var last int64
		stream := progress.NewStream(body, func(_, p int64) error {
			last = p
			return nil
		}, progress.WithChunkSize(512))

		result, err := newTestClient(srv).Upload(context.Background(), srv.URL+"/upload", stream, stream.Len(), contentType)
		require.NoError(t, err)
		assert.Equal(t, "0yiQTPzi4Y4", result.ID)
		assert.Equal(t, "clip.bin", result.Name)
		assert.Equal(t, "5000", result.Size)
		assert.Equal(t, stream.Len(), last)
	})

	t.Run("cancelled stream aborts the transfer", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.Copy(io.Discard, r.Body)
			writeEnvelope(t, w, 200, "OK", core.UploadResult{ID: "never"})
		}))
		defer srv.Close()

		body, contentType, err := EncodeFile("big.bin", make([]byte, 64*1024))
		require.NoError(t, err)

		abort := errors.New("user pressed cancel")
		calls := 0
		stream := progress.NewStream(body, func(_, _ int64) error {
			calls++
			if calls == 2 {
				return abort
			}
			return nil
		}, progress.WithChunkSize(4096))

		result, err := newTestClient(srv).Upload(context.Background(), srv.URL+"/upload", stream, stream.Len(), contentType)
		assert.Nil(t, result)
		require.ErrorIs(t, err, core.ErrCancelled)
		require.ErrorIs(t, stream.Err(), abort)
		assert.Equal(t, int64(2*4096), stream.Consumed())
	})

	t.Run("transport failure is not a cancellation", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		stream := progress.NewStream([]byte("data"), nil)
		_, err := New(testCreds).Upload(context.Background(), url+"/upload", stream, stream.Len(), "text/plain")
		require.Error(t, err)
		assert.NotErrorIs(t, err, core.ErrCancelled)
	})

	t.Run("service error status", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.Copy(io.Discard, r.Body)
			writeEnvelope(t, w, 509, "bandwidth usage too high (peak hours)", nil)
		}))
		defer srv.Close()

		stream := progress.NewStream([]byte("data"), nil)
		_, err := newTestClient(srv).Upload(context.Background(), srv.URL+"/upload", stream, stream.Len(), "text/plain")
		require.ErrorIs(t, err, core.ErrBandwidthExceeded)
	})
}
