package upload

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
)

const (
	// DefaultMaxFileSize is the reference upload limit (10 MiB).
	DefaultMaxFileSize int64 = 10 << 20
	// DefaultMaxNameLength bounds the client filename, in characters.
	DefaultMaxNameLength = 100
	// MaxLabelLength bounds titles and image names, in characters.
	MaxLabelLength = 200

	sniffLen = 3072
)

// ValidationError is returned for input the client must fix. Nothing has been written when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

var (
	// ErrNoFile means the multipart request carried no file.
	ErrNoFile = NewValidationError("file", "no file received")
	// ErrTooManyFiles means more than one file was sent in a single request.
	ErrTooManyFiles = NewValidationError("file", "too many files (max 1)")
	// ErrUnexpectedField means a file arrived under a field other than "file".
	ErrUnexpectedField = NewValidationError("file", "unexpected file field")
)

// FileHeader is what the validator knows about an incoming file; content is never inspected here.
type FileHeader struct {
	Filename    string
	ContentType string
	Size        int64
}

// Policy is an allow-list of extensions and declared content types plus size limits.
type Policy struct {
	AllowedExtensions   []string
	AllowedContentTypes []string
	MaxNameLength       int
	MaxFileSize         int64
	// SniffContent additionally compares the declared type with the detected one.
	SniffContent bool
}

// DefaultPolicy accepts PDFs and common web images.
func DefaultPolicy(maxFileSize int64) Policy {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return Policy{
		AllowedExtensions:   []string{".jpg", ".jpeg", ".png", ".webp", ".pdf"},
		AllowedContentTypes: []string{"image/jpeg", "image/png", "image/webp", "application/pdf"},
		MaxNameLength:       DefaultMaxNameLength,
		MaxFileSize:         maxFileSize,
	}
}

// ImagePolicy is DefaultPolicy without PDFs.
func ImagePolicy(maxFileSize int64) Policy {
	p := DefaultPolicy(maxFileSize)
	p.AllowedExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}
	p.AllowedContentTypes = []string{"image/jpeg", "image/png", "image/webp"}
	return p
}

// Validate checks the header against the policy.
func (p Policy) Validate(h FileHeader) error {
	if h.Filename == "" {
		return ErrNoFile
	}

	ext := Ext(h.Filename)
	if !slices.Contains(p.AllowedExtensions, ext) {
		if ext == "" {
			return NewValidationError("file", "file extension is required")
		}
		return NewValidationError("file", fmt.Sprintf("extension %s is not allowed", ext))
	}

	if !slices.Contains(p.AllowedContentTypes, MediaType(h.ContentType)) {
		return NewValidationError("file", "MIME type is not allowed")
	}

	if p.MaxNameLength > 0 && utf8.RuneCountInString(h.Filename) > p.MaxNameLength {
		return NewValidationError("file", fmt.Sprintf("file name too long (max %d characters)", p.MaxNameLength))
	}

	if p.MaxFileSize > 0 && h.Size > p.MaxFileSize {
		return NewValidationError("file", fmt.Sprintf("file too large (max %s)", humanize.IBytes(uint64(p.MaxFileSize))))
	}
	return nil
}

// Sniff detects the content type from the first bytes of r and rejects a mismatch with the
// declared type. The returned reader replays the consumed bytes. With SniffContent off it
// returns r untouched.
func (p Policy) Sniff(r io.Reader, declared string) (io.Reader, error) {
	if !p.SniffContent {
		return r, nil
	}
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("read file header: %w", err)
	}
	head = head[:n]

	detected := mimetype.Detect(head)
	if !detected.Is(MediaType(declared)) {
		return nil, NewValidationError("file", fmt.Sprintf("content does not match declared type (detected %s)", detected.String()))
	}
	return io.MultiReader(bytes.NewReader(head), r), nil
}

// ValidateLabel checks a title or image name: 1..MaxLabelLength characters.
func ValidateLabel(field, value string) error {
	n := utf8.RuneCountInString(value)
	if n < 1 || n > MaxLabelLength {
		return NewValidationError(field, fmt.Sprintf("%s must be between 1 and %d characters", field, MaxLabelLength))
	}
	return nil
}

// MediaType strips parameters and lower-cases a Content-Type header value.
func MediaType(contentType string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
