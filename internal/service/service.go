// Package service holds the upload, listing, deletion and login use cases.
// It only sees the storage and repository interfaces; backends are chosen in main.
package service

import (
	"context"
	"errors"
	"io"
	"time"

	"docvault/internal/model"
	"docvault/internal/repository"
	"docvault/internal/storage"
	"docvault/internal/upload"
)

var (
	// ErrNotFound is returned when the referenced record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStorage wraps blob store failures.
	ErrStorage = errors.New("storage error")
	// ErrRepository wraps metadata store failures.
	ErrRepository = errors.New("repository error")
	// ErrInvalidCredentials is returned by Login when no user matches.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const (
	// DefaultTitle is used when a document is uploaded without a title.
	DefaultTitle = "Sin Titulo"
	// DefaultImageName is used when an image is uploaded without a name.
	DefaultImageName = "Sin Nombre"

	defaultStorageTimeout = 30 * time.Second
)

// UploadInput is one file taken off a multipart request.
type UploadInput struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	Size        int64
	// Label is the document title or image name; empty means the default.
	Label string
}

func (in UploadInput) header() upload.FileHeader {
	return upload.FileHeader{Filename: in.Filename, ContentType: in.ContentType, Size: in.Size}
}

// DocumentUpload is the outcome of a successful document upload.
type DocumentUpload struct {
	Document  model.Document
	Namespace model.Namespace
	Size      int64
}

// ImageUpload is the outcome of a successful image upload.
type ImageUpload struct {
	Image model.Image
	Size  int64
}

// FileListing is the raw content of the blob store.
type FileListing struct {
	Files  []model.StoredFile `json:"files"`
	Total  int                `json:"total"`
	Images int                `json:"images"`
	PDFs   int                `json:"pdfs"`
}

// FileService defines the use cases exposed over HTTP.
type FileService interface {
	// UploadDocument validates, stores the blob, then inserts the row. If the insert
	// fails the blob is removed again.
	UploadDocument(ctx context.Context, in UploadInput) (*DocumentUpload, error)
	// UploadImage is UploadDocument for the images table, restricted to image types.
	UploadImage(ctx context.Context, in UploadInput) (*ImageUpload, error)

	ListDocuments(ctx context.Context) ([]model.Document, error)
	ListImages(ctx context.Context) ([]model.Image, error)
	// ListFiles enumerates the blob store directly, independent of metadata.
	ListFiles(ctx context.Context) (*FileListing, error)

	// DeleteDocument removes the blob then the row, and returns the removed record.
	DeleteDocument(ctx context.Context, id int64) (*model.Document, error)
	// DeleteImage removes the blob then the row, and returns the removed record.
	DeleteImage(ctx context.Context, id int64) (*model.Image, error)

	// Login checks a username/password pair.
	Login(ctx context.Context, username, password string) error
}

// Options configures a FileService.
type Options struct {
	Store       storage.Storage
	Metadata    repository.MetadataRepository
	Credentials repository.CredentialRepository

	DocumentPolicy upload.Policy
	ImagePolicy    upload.Policy
	// StorageTimeout bounds every blob store call; zero means 30s.
	StorageTimeout time.Duration
	// Metrics is optional.
	Metrics *Metrics
	// Now is overridable in tests.
	Now func() time.Time
}

type fileService struct {
	store     storage.Storage
	meta      repository.MetadataRepository
	creds     repository.CredentialRepository
	docPolicy upload.Policy
	imgPolicy upload.Policy
	timeout   time.Duration
	metrics   *Metrics
	now       func() time.Time
}

// NewFileService constructs a FileService.
func NewFileService(o Options) FileService {
	s := &fileService{
		store:     o.Store,
		meta:      o.Metadata,
		creds:     o.Credentials,
		docPolicy: o.DocumentPolicy,
		imgPolicy: o.ImagePolicy,
		timeout:   o.StorageTimeout,
		metrics:   o.Metrics,
		now:       o.Now,
	}
	if s.timeout <= 0 {
		s.timeout = defaultStorageTimeout
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}
