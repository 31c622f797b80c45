package hosting

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filename string
		content  []byte
		wantType string
	}{
		{
			name:     "plain text",
			filename: "notes.txt",
			content:  []byte("hello world\n"),
			wantType: "text/plain; charset=utf-8",
		},
		{
			name:     "png header",
			filename: "image.png",
			content:  []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"),
			wantType: "image/png",
		},
		{
			name:     "quotes in filename",
			filename: `my "best" clip.mp4`,
			content:  []byte{0x00, 0x01, 0x02},
			wantType: "application/octet-stream",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			body, contentType, err := EncodeFile(tt.filename, tt.content)
			require.NoError(t, err)

			mediaType, params, err := mime.ParseMediaType(contentType)
			require.NoError(t, err)
			assert.Equal(t, "multipart/form-data", mediaType)

			r := multipart.NewReader(bytes.NewReader(body), params["boundary"])
			part, err := r.NextPart()
			require.NoError(t, err)
			assert.Equal(t, FileField, part.FormName())
			assert.Equal(t, tt.filename, part.FileName())
			assert.Equal(t, tt.wantType, part.Header.Get("Content-Type"))

			got, err := io.ReadAll(part)
			require.NoError(t, err)
			assert.Equal(t, tt.content, got)

			_, err = r.NextPart()
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}
