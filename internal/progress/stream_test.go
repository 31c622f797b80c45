package progress

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	size     int64
	progress int64
}

func recorder(events *[]event) Callback {
	return func(size, progress int64) error {
		*events = append(*events, event{size, progress})
		return nil
	}
}

func TestStream_ChunkSequence(t *testing.T) {
	t.Parallel()

	const size = 2_500_000
	data := bytes.Repeat([]byte{0xab}, size)

	var events []event
	s := NewStream(data, recorder(&events))
	assert.Equal(t, int64(size), s.Len())
	assert.Equal(t, DefaultChunkSize, s.ChunkSize())

	var lengths []int
	for {
		chunk, err := s.ReadChunk()
		if errors.Is(err, io.EOF) {
			lengths = append(lengths, 0)
			break
		}
		require.NoError(t, err)
		lengths = append(lengths, len(chunk))
	}

	assert.Equal(t, []int{1048576, 1048576, 402848, 0}, lengths)
	assert.Equal(t, []event{
		{size, 1048576},
		{size, 2097152},
		{size, 2500000},
		{size, 2500000},
	}, events)
	assert.Equal(t, int64(size), s.Consumed())
}

func TestStream_ChunkCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		size      int
		chunkSize int
		want      int
	}{
		{name: "empty payload", size: 0, chunkSize: 4, want: 0},
		{name: "exact multiple", size: 12, chunkSize: 4, want: 3},
		{name: "remainder", size: 13, chunkSize: 4, want: 4},
		{name: "smaller than chunk", size: 3, chunkSize: 4, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var events []event
			s := NewStream(make([]byte, tt.size), recorder(&events), WithChunkSize(tt.chunkSize))

			chunks := 0
			for {
				chunk, err := s.ReadChunk()
				if errors.Is(err, io.EOF) {
					break
				}
				require.NoError(t, err)
				require.NotEmpty(t, chunk)
				chunks++
			}

			assert.Equal(t, tt.want, chunks)
			require.Len(t, events, tt.want+1)
			last := events[len(events)-1]
			assert.Equal(t, int64(tt.size), last.size)
			assert.Equal(t, int64(tt.size), last.progress)
		})
	}
}

func TestStream_Deterministic(t *testing.T) {
	t.Parallel()

	data := []byte("the quick brown fox jumps over the lazy dog")

	drain := func() [][]byte {
		s := NewStream(data, nil, WithChunkSize(5))
		var out [][]byte
		for {
			chunk, err := s.ReadChunk()
			if err != nil {
				require.ErrorIs(t, err, io.EOF)
				return out
			}
			out = append(out, chunk)
		}
	}

	assert.Equal(t, drain(), drain())
	assert.Equal(t, data, bytes.Join(drain(), nil))
}

func TestStream_CancelOnKthCallback(t *testing.T) {
	t.Parallel()

	for _, k := range []int{1, 2, 3} {
		calls := 0
		boom := errors.New("abort requested")
		s := NewStream(make([]byte, 100), func(_, _ int64) error {
			calls++
			if calls == k {
				return boom
			}
			return nil
		}, WithChunkSize(10))

		var err error
		for i := 0; i < k; i++ {
			_, err = s.ReadChunk()
		}

		require.ErrorIs(t, err, ErrCancelled, "k=%d", k)
		require.ErrorIs(t, err, boom, "k=%d", k)
		assert.Equal(t, int64(k*10), s.Consumed(), "k=%d", k)
		assert.ErrorIs(t, s.Err(), ErrCancelled)

		// Cancellation is sticky and the callback is not invoked again.
		_, err = s.ReadChunk()
		require.ErrorIs(t, err, ErrCancelled)
		assert.Equal(t, k, calls)
		assert.Equal(t, int64(k*10), s.Consumed())
	}
}

func TestStream_CallbackPanicCancels(t *testing.T) {
	t.Parallel()

	s := NewStream([]byte("payload"), func(_, _ int64) error {
		panic("widget gone")
	})

	chunk, err := s.ReadChunk()
	assert.Nil(t, chunk)
	require.ErrorIs(t, err, ErrCancelled)
	assert.Contains(t, err.Error(), "widget gone")
}

func TestStream_CopiesBuffer(t *testing.T) {
	t.Parallel()

	data := []byte("hello")
	s := NewStream(data, nil)
	data[0] = 'j'

	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestStream_Read(t *testing.T) {
	t.Parallel()

	t.Run("small buffers still report per chunk", func(t *testing.T) {
		t.Parallel()

		var events []event
		s := NewStream([]byte("0123456789"), recorder(&events), WithChunkSize(4))

		buf := make([]byte, 3)
		var got []byte
		for {
			n, err := s.Read(buf)
			got = append(got, buf[:n]...)
			if errors.Is(err, io.EOF) {
				break
			}
			require.NoError(t, err)
		}

		assert.Equal(t, []byte("0123456789"), got)
		assert.Equal(t, []event{{10, 4}, {10, 8}, {10, 10}, {10, 10}}, events)
	})

	t.Run("read all with nil callback", func(t *testing.T) {
		t.Parallel()

		data := bytes.Repeat([]byte("x"), 3*DefaultChunkSize+7)
		got, err := io.ReadAll(NewStream(data, nil))
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("cancellation surfaces through Read", func(t *testing.T) {
		t.Parallel()

		s := NewStream([]byte("0123456789"), func(_, progress int64) error {
			if progress > 4 {
				return errors.New("stop")
			}
			return nil
		}, WithChunkSize(4))

		_, err := io.ReadAll(s)
		require.ErrorIs(t, err, ErrCancelled)
		assert.Equal(t, int64(8), s.Consumed())
	})

	t.Run("zero length buffer", func(t *testing.T) {
		t.Parallel()

		s := NewStream([]byte("abc"), nil)
		n, err := s.Read(nil)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Zero(t, s.Consumed())
	})
}

func TestStream_ErrAfterEOF(t *testing.T) {
	t.Parallel()

	s := NewStream(nil, nil)
	_, err := s.ReadChunk()
	require.ErrorIs(t, err, io.EOF)
	assert.NoError(t, s.Err())

	_, err = s.ReadChunk()
	require.ErrorIs(t, err, io.EOF)
}
