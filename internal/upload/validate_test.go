package upload

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_Validate(t *testing.T) {
	p := DefaultPolicy(0)

	tests := []struct {
		name    string
		header  FileHeader
		wantErr string
	}{
		{name: "pdf", header: FileHeader{Filename: "report.pdf", ContentType: "application/pdf", Size: 1024}},
		{name: "upper case extension", header: FileHeader{Filename: "PHOTO.JPG", ContentType: "image/jpeg", Size: 1}},
		{name: "webp", header: FileHeader{Filename: "a.webp", ContentType: "image/webp", Size: 1}},
		{name: "content type with params", header: FileHeader{Filename: "a.png", ContentType: "image/png; charset=binary", Size: 1}},
		{name: "exact max size", header: FileHeader{Filename: "a.pdf", ContentType: "application/pdf", Size: DefaultMaxFileSize}},
		{name: "missing filename", header: FileHeader{ContentType: "application/pdf"}, wantErr: "no file received"},
		{name: "bad extension", header: FileHeader{Filename: "virus.exe", ContentType: "application/pdf"}, wantErr: "extension .exe is not allowed"},
		{name: "no extension", header: FileHeader{Filename: "README", ContentType: "application/pdf"}, wantErr: "extension is required"},
		{name: "renamed executable", header: FileHeader{Filename: "virus.pdf", ContentType: "application/x-msdownload"}, wantErr: "MIME type is not allowed"},
		{name: "name too long", header: FileHeader{Filename: strings.Repeat("n", 97) + ".pdf", ContentType: "application/pdf"}, wantErr: "file name too long"},
		{name: "too large", header: FileHeader{Filename: "a.pdf", ContentType: "application/pdf", Size: DefaultMaxFileSize + 1}, wantErr: "file too large (max 10 MiB)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Validate(tt.header)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Contains(t, vErr.Error(), tt.wantErr)
		})
	}
}

func TestPolicy_Validate_NameLengthCountsCharacters(t *testing.T) {
	p := DefaultPolicy(0)
	// 96 two-byte runes + ".pdf" = 100 characters but 196 bytes.
	name := strings.Repeat("ñ", 96) + ".pdf"
	assert.NoError(t, p.Validate(FileHeader{Filename: name, ContentType: "application/pdf"}))
}

func TestImagePolicy_RejectsPDF(t *testing.T) {
	p := ImagePolicy(0)

	assert.Error(t, p.Validate(FileHeader{Filename: "a.pdf", ContentType: "application/pdf"}))
	assert.NoError(t, p.Validate(FileHeader{Filename: "a.png", ContentType: "image/png"}))
}

func TestPolicy_Sniff(t *testing.T) {
	t.Run("disabled returns reader untouched", func(t *testing.T) {
		p := DefaultPolicy(0)
		r := strings.NewReader("MZ anything")
		got, err := p.Sniff(r, "application/pdf")
		require.NoError(t, err)
		assert.Same(t, r, got)
	})

	t.Run("matching content replays bytes", func(t *testing.T) {
		p := DefaultPolicy(0)
		p.SniffContent = true
		content := "%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\n"
		got, err := p.Sniff(strings.NewReader(content), "application/pdf")
		require.NoError(t, err)
		b, err := io.ReadAll(got)
		require.NoError(t, err)
		assert.Equal(t, content, string(b))
	})

	t.Run("mismatch is a validation error", func(t *testing.T) {
		p := DefaultPolicy(0)
		p.SniffContent = true
		_, err := p.Sniff(strings.NewReader("MZ\x90\x00\x03\x00\x00\x00"), "application/pdf")
		var vErr *ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Contains(t, vErr.Error(), "content does not match")
	})
}

func TestValidateLabel(t *testing.T) {
	assert.NoError(t, ValidateLabel("titulo", "Q1 Report"))
	assert.NoError(t, ValidateLabel("titulo", strings.Repeat("x", MaxLabelLength)))
	assert.Error(t, ValidateLabel("titulo", ""))
	assert.ErrorContains(t, ValidateLabel("titulo", strings.Repeat("x", MaxLabelLength+1)), "between 1 and 200")
}

func TestMediaType(t *testing.T) {
	assert.Equal(t, "application/pdf", MediaType("Application/PDF"))
	assert.Equal(t, "image/png", MediaType("image/png; charset=binary"))
	assert.Equal(t, "", MediaType(""))
}
