// Package fakehosting provides an in-process fake of the hosting API for tests.
// It issues upload links at /1/file/ul and accepts multipart uploads at
// /upload, enforcing credentials and expected SHA-1 digests like the real
// service.
package fakehosting

import (
	"crypto/sha1" //nolint:gosec // the service's digest
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
)

// Default credentials accepted by a Service.
const (
	DefaultLoginID  = "testid"
	DefaultLoginKey = "testkey"
)

// Upload is a file received by the fake service.
type Upload struct {
	ID          string
	Name        string
	Folder      string
	SHA1        string
	ContentType string
	Size        int64
	Content     []byte
}

// Option configures a Service.
type Option func(*Service)

// WithCredentials sets the accepted login id and key.
func WithCredentials(loginID, loginKey string) Option {
	return func(s *Service) {
		s.loginID = loginID
		s.loginKey = loginKey
	}
}

// WithBlocked makes uploads of the named files fail with status 451.
func WithBlocked(names ...string) Option {
	return func(s *Service) {
		s.blocked = append(s.blocked, names...)
	}
}

// WithDiscard drops upload contents after hashing them.
func WithDiscard() Option {
	return func(s *Service) {
		s.discard = true
	}
}

// Service is an http.Handler implementing the fake API.
type Service struct {
	loginID  string
	loginKey string
	blocked  []string
	discard  bool

	mux *http.ServeMux
	seq atomic.Int64

	mu      sync.Mutex
	links   int
	uploads []Upload
}

// New creates a Service. Serve it with httptest.NewServer and use
// server.URL + "/1/" as the API root.
func New(opts ...Option) *Service {
	s := &Service{
		loginID:  DefaultLoginID,
		loginKey: DefaultLoginKey,
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mux.HandleFunc("GET /1/file/ul", s.handleLink)
	s.mux.HandleFunc("POST /upload", s.handleUpload)
	return s
}

func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Links returns the number of upload links issued.
func (s *Service) Links() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.links
}

// Uploads returns the files received so far, in arrival order.
func (s *Service) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.uploads)
}

// Lookup returns the last received file with the given name.
func (s *Service) Lookup(name string) (Upload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.uploads) - 1; i >= 0; i-- {
		if s.uploads[i].Name == name {
			return s.uploads[i], true
		}
	}
	return Upload{}, false
}

func writeEnvelope(w http.ResponseWriter, status int, msg string, result any) {
	w.Header().Set("Content-Type", "application/json")
	//nolint:errcheck // best effort
	json.NewEncoder(w).Encode(map[string]any{"status": status, "msg": msg, "result": result})
}

func (s *Service) handleLink(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("login") != s.loginID || q.Get("key") != s.loginKey {
		writeEnvelope(w, http.StatusForbidden, "Authentication failed", nil)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	next := url.URL{Scheme: scheme, Host: r.Host, Path: "/upload"}
	params := url.Values{}
	for _, key := range []string{"folder", "sha1"} {
		if v := q.Get(key); v != "" {
			params.Set(key, v)
		}
	}
	next.RawQuery = params.Encode()

	s.mu.Lock()
	s.links++
	s.mu.Unlock()

	writeEnvelope(w, http.StatusOK, "OK", map[string]string{
		"url":         next.String(),
		"valid_until": "2030-01-01 00:00:00",
	})
}

func (s *Service) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("upfile")
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, "missing upfile: "+err.Error(), nil)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeEnvelope(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	if slices.Contains(s.blocked, header.Filename) {
		writeEnvelope(w, http.StatusUnavailableForLegalReasons, "Unavailable For Legal Reasons", nil)
		return
	}

	sum := sha1.Sum(content) //nolint:gosec // the service's digest
	digest := hex.EncodeToString(sum[:])
	if want := r.URL.Query().Get("sha1"); want != "" && want != digest {
		writeEnvelope(w, http.StatusBadRequest, "sha1 mismatch", nil)
		return
	}

	up := Upload{
		ID:          fmt.Sprintf("f%04d", s.seq.Add(1)),
		Name:        header.Filename,
		Folder:      r.URL.Query().Get("folder"),
		SHA1:        digest,
		ContentType: header.Header.Get("Content-Type"),
		Size:        int64(len(content)),
	}
	if !s.discard {
		up.Content = content
	}

	s.mu.Lock()
	s.uploads = append(s.uploads, up)
	s.mu.Unlock()

	writeEnvelope(w, http.StatusOK, "OK", map[string]string{
		"content_type": up.ContentType,
		"id":           up.ID,
		"name":         up.Name,
		"sha1":         up.SHA1,
		"size":         strconv.FormatInt(up.Size, 10),
		"url":          "https://files.example/f/" + up.ID + "/" + up.Name,
	})
}
