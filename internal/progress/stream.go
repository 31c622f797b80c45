// Package progress provides a chunked, progress-reporting byte source for uploads.
package progress

import (
	"errors"
	"fmt"
	"io"
)

// DefaultChunkSize is the number of bytes handed out per read unless overridden.
const DefaultChunkSize = 1024 * 1024

// ErrCancelled is returned by reads once the progress callback has failed.
// The transfer consuming the stream must treat it as a hard abort.
var ErrCancelled = errors.New("upload cancelled")

// Callback is called after every chunk with the payload size and the
// cumulative number of bytes handed out. Returning an error cancels the stream.
type Callback func(size, progress int64) error

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithChunkSize sets the maximum number of bytes returned per chunk.
// Values below 1 are ignored.
func WithChunkSize(n int) StreamOption {
	return func(s *Stream) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// Stream hands out an in-memory payload in fixed-size chunks and reports
// progress after each one. It is not safe for concurrent use; a single
// transport write loop owns it for the lifetime of one upload attempt.
type Stream struct {
	buf       []byte
	size      int64
	consumed  int64
	chunkSize int
	callback  Callback

	// pending holds the unread tail of the last chunk served through Read.
	pending []byte
	// err is sticky: io.EOF after the terminal read, or a cancellation.
	err error
}

// NewStream creates a stream over a copy of buf. The callback may be nil.
func NewStream(buf []byte, callback Callback, opts ...StreamOption) *Stream {
	s := &Stream{
		buf:       append([]byte(nil), buf...),
		size:      int64(len(buf)),
		chunkSize: DefaultChunkSize,
		callback:  callback,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Len returns the total payload size.
func (s *Stream) Len() int64 {
	return s.size
}

// Consumed returns the number of bytes handed out so far.
func (s *Stream) Consumed() int64 {
	return s.consumed
}

// ChunkSize returns the maximum chunk length.
func (s *Stream) ChunkSize() int {
	return s.chunkSize
}

// Err returns the cancellation error if the stream was cancelled, nil otherwise.
func (s *Stream) Err() error {
	if s.err == nil || errors.Is(s.err, io.EOF) {
		return nil
	}
	return s.err
}

// ReadChunk returns the next chunk of at most ChunkSize bytes.
//
// The cursor advances before the callback runs, so the callback observes the
// post-read position. Once the payload is exhausted ReadChunk performs one
// terminal callback with progress equal to size and returns io.EOF. If the
// callback fails, the chunk is withheld and an error wrapping ErrCancelled
// is returned, now and on every later call.
func (s *Stream) ReadChunk() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}

	start := s.consumed
	end := min(start+int64(s.chunkSize), s.size)
	s.consumed = end

	if err := s.notify(); err != nil {
		s.err = err
		return nil, err
	}

	if end == start {
		s.err = io.EOF
		return nil, io.EOF
	}
	return s.buf[start:end:end], nil
}

// Read implements io.Reader on top of ReadChunk. A chunk larger than p is
// served across several calls without fetching a new chunk, so progress and
// cancellation still happen at chunk boundaries.
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(s.pending) == 0 {
		chunk, err := s.ReadChunk()
		if err != nil {
			return 0, err
		}
		s.pending = chunk
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *Stream) notify() (err error) {
	if s.callback == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: progress callback panicked: %v", ErrCancelled, r)
		}
	}()

	if cbErr := s.callback(s.size, s.consumed); cbErr != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, cbErr)
	}
	return nil
}
