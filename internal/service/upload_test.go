package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docvault/internal/logging"
	"docvault/internal/model"
	repoMocks "docvault/internal/repository/mocks"
	"docvault/internal/storage"
	storeMocks "docvault/internal/storage/mocks"
	"docvault/internal/upload"
)

var fixedNow = time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)

type fixture struct {
	svc     FileService
	store   *storeMocks.MockStorage
	meta    *repoMocks.MockMetadataRepository
	creds   *repoMocks.MockCredentialRepository
	metrics *Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	f := &fixture{
		store:   new(storeMocks.MockStorage),
		meta:    new(repoMocks.MockMetadataRepository),
		creds:   new(repoMocks.MockCredentialRepository),
		metrics: m,
	}
	f.svc = NewFileService(Options{
		Store:          f.store,
		Metadata:       f.meta,
		Credentials:    f.creds,
		DocumentPolicy: upload.DefaultPolicy(upload.DefaultMaxFileSize),
		ImagePolicy:    upload.ImagePolicy(upload.DefaultMaxFileSize),
		StorageTimeout: time.Second,
		Metrics:        m,
		Now:            func() time.Time { return fixedNow },
	})
	return f
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := logging.L()
	logging.SetDefault(logging.New(&buf, "debug"))
	t.Cleanup(func() { logging.SetDefault(orig) })
	return &buf
}

// echoPut makes the storage mock answer like the local backend.
func echoPut(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) storage.ObjectInfo {
	n, _ := io.Copy(io.Discard, r)
	return storage.ObjectInfo{Key: key, URL: "/" + key, Size: n, ContentType: opt.ContentType}
}

func pdfInput(label string) UploadInput {
	return UploadInput{
		Reader:      strings.NewReader("%PDF-1.4 hello"),
		Filename:    "Informe Año.pdf",
		ContentType: "application/pdf",
		Size:        14,
		Label:       label,
	}
}

func TestUploadDocument_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var storedKey string
	f.store.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
		storedKey = key
		return strings.HasPrefix(key, "pdfs/") && strings.HasSuffix(key, "-Informe_Ano.pdf")
	}), mock.Anything, mock.MatchedBy(func(opt storage.PutObjectOptions) bool {
		return opt.ContentType == "application/pdf" && opt.Size == 14
	})).Return(echoPut, nil).Once()
	f.meta.On("InsertDocument", ctx, mock.MatchedBy(func(d *model.Document) bool {
		return d.Title == "Informe" && d.Status == model.StatusComplete && d.UploadedAt.Equal(fixedNow)
	})).Return(int64(42), nil).Once()

	res, err := f.svc.UploadDocument(ctx, pdfInput("Informe"))
	require.NoError(t, err)

	assert.Equal(t, int64(42), res.Document.ID)
	assert.Equal(t, model.NamespacePDFs, res.Namespace)
	assert.Equal(t, int64(14), res.Size)
	assert.Equal(t, "/"+storedKey, res.Document.URL)
	assert.Equal(t, strings.TrimPrefix(storedKey, "pdfs/"), res.Document.Filename)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.uploads.WithLabelValues("pdfs", "success")))
	f.store.AssertExpectations(t)
	f.meta.AssertExpectations(t)
}

func TestUploadDocument_ImageGoesToImagesWithDefaultTitle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "images/")
	}), mock.Anything, mock.Anything).Return(echoPut, nil).Once()
	f.meta.On("InsertDocument", ctx, mock.MatchedBy(func(d *model.Document) bool {
		return d.Title == DefaultTitle
	})).Return(int64(1), nil).Once()

	res, err := f.svc.UploadDocument(ctx, UploadInput{
		Reader:      strings.NewReader("png"),
		Filename:    "foto.PNG",
		ContentType: "image/png",
		Size:        3,
		Label:       "   ",
	})
	require.NoError(t, err)
	assert.Equal(t, model.NamespaceImages, res.Namespace)
	assert.Equal(t, DefaultTitle, res.Document.Title)
}

func TestUploadDocument_ValidationWritesNothing(t *testing.T) {
	tests := []struct {
		name string
		in   UploadInput
		want string
	}{
		{
			name: "disallowed extension",
			in:   UploadInput{Reader: strings.NewReader("x"), Filename: "virus.exe", ContentType: "application/pdf", Size: 1},
			want: "extension .exe is not allowed",
		},
		{
			name: "disallowed content type",
			in:   UploadInput{Reader: strings.NewReader("x"), Filename: "a.pdf", ContentType: "text/html", Size: 1},
			want: "MIME type is not allowed",
		},
		{
			name: "too large",
			in:   UploadInput{Reader: strings.NewReader("x"), Filename: "a.pdf", ContentType: "application/pdf", Size: upload.DefaultMaxFileSize + 1},
			want: "file too large",
		},
		{
			name: "title too long",
			in:   UploadInput{Reader: strings.NewReader("x"), Filename: "a.pdf", ContentType: "application/pdf", Size: 1, Label: strings.Repeat("t", 201)},
			want: "titulo must be between 1 and 200 characters",
		},
		{
			name: "no reader",
			in:   UploadInput{Filename: "a.pdf", ContentType: "application/pdf"},
			want: "no file received",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.UploadDocument(context.Background(), tt.in)

			var verr *upload.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Reason, tt.want)
			f.store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			f.meta.AssertNotCalled(t, "InsertDocument", mock.Anything, mock.Anything)
		})
	}
}

func TestUploadDocument_StorageFailureNeedsNoCompensation(t *testing.T) {
	f := newFixture(t)

	f.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(storage.ObjectInfo{}, errors.New("connection refused")).Once()

	_, err := f.svc.UploadDocument(context.Background(), pdfInput(""))
	assert.ErrorIs(t, err, ErrStorage)
	f.meta.AssertNotCalled(t, "InsertDocument", mock.Anything, mock.Anything)
	f.store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.uploads.WithLabelValues("pdfs", "storage_error")))
}

func TestUploadDocument_InsertFailureRemovesBlob(t *testing.T) {
	f := newFixture(t)
	logs := captureLogs(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var storedKey string
	f.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { storedKey = args.String(1) }).
		Return(echoPut, nil).Once()
	// The client disconnects while the insert is running; the rollback must still go through.
	f.meta.On("InsertDocument", ctx, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(int64(0), errors.New("UNIQUE constraint failed")).Once()
	f.store.On("Delete", mock.MatchedBy(func(c context.Context) bool { return c.Err() == nil }), mock.MatchedBy(func(key string) bool {
		return key == storedKey
	})).Return(nil).Once()

	_, err := f.svc.UploadDocument(ctx, pdfInput("Informe"))
	assert.ErrorIs(t, err, ErrRepository)
	f.store.AssertExpectations(t)
	assert.Contains(t, logs.String(), "stored blob removed")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.uploads.WithLabelValues("pdfs", "repository_error")))
}

func TestUploadDocument_RollbackFailureIsLoggedOnly(t *testing.T) {
	f := newFixture(t)
	logs := captureLogs(t)
	ctx := context.Background()

	f.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(echoPut, nil).Once()
	f.meta.On("InsertDocument", ctx, mock.Anything).Return(int64(0), errors.New("disk full")).Once()
	f.store.On("Delete", mock.Anything, mock.Anything).Return(errors.New("bucket unreachable")).Once()

	_, err := f.svc.UploadDocument(ctx, pdfInput(""))
	assert.ErrorIs(t, err, ErrRepository)
	assert.NotErrorIs(t, err, ErrStorage)
	assert.Contains(t, logs.String(), "rollback of stored blob failed")
	assert.Contains(t, logs.String(), "bucket unreachable")
}

func TestUpload_InvalidLabelCountsAsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	long := strings.Repeat("n", upload.MaxLabelLength+1)

	_, err := f.svc.UploadDocument(ctx, pdfInput(long))
	var verr *upload.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "titulo", verr.Field)

	_, err = f.svc.UploadImage(ctx, UploadInput{
		Reader: strings.NewReader("png"), Filename: "a.png", ContentType: "image/png", Size: 3, Label: long,
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "nombre", verr.Field)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.uploads.WithLabelValues("pdfs", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.uploads.WithLabelValues("images", "rejected")))
	f.store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUploadImage(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()

		f.store.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, "images/") && strings.HasSuffix(key, "-logo.webp")
		}), mock.Anything, mock.Anything).Return(echoPut, nil).Once()
		f.meta.On("InsertImage", ctx, mock.MatchedBy(func(img *model.Image) bool {
			return img.Name == DefaultImageName
		})).Return(int64(9), nil).Once()

		res, err := f.svc.UploadImage(ctx, UploadInput{
			Reader: strings.NewReader("webp"), Filename: "logo.webp", ContentType: "image/webp", Size: 4,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(9), res.Image.ID)
		assert.Equal(t, DefaultImageName, res.Image.Name)
		assert.Equal(t, fixedNow, res.Image.UploadedAt)
	})

	t.Run("pdf rejected", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.UploadImage(context.Background(), pdfInput(""))

		var verr *upload.ValidationError
		assert.ErrorAs(t, err, &verr)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.uploads.WithLabelValues("images", "rejected")))
	})

	t.Run("insert failure removes blob", func(t *testing.T) {
		f := newFixture(t)
		f.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(echoPut, nil).Once()
		f.meta.On("InsertImage", mock.Anything, mock.Anything).Return(int64(0), errors.New("locked")).Once()
		f.store.On("Delete", mock.Anything, mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, "images/")
		})).Return(nil).Once()

		_, err := f.svc.UploadImage(context.Background(), UploadInput{
			Reader: strings.NewReader("jpg"), Filename: "a.jpg", ContentType: "image/jpeg", Size: 3,
		})
		assert.ErrorIs(t, err, ErrRepository)
		f.store.AssertExpectations(t)
	})
}

func TestUpload_LocalStoreLeavesNoOrphan(t *testing.T) {
	mem := afero.NewMemMapFs()
	local, err := storage.NewLocal(mem, "uploads", "images", "pdfs")
	require.NoError(t, err)

	meta := new(repoMocks.MockMetadataRepository)
	meta.On("InsertDocument", mock.Anything, mock.Anything).Return(int64(0), errors.New("insert failed"))
	captureLogs(t)

	svc := NewFileService(Options{
		Store:          local,
		Metadata:       meta,
		DocumentPolicy: upload.DefaultPolicy(0),
		ImagePolicy:    upload.ImagePolicy(0),
	})

	_, err = svc.UploadDocument(context.Background(), pdfInput("x"))
	require.ErrorIs(t, err, ErrRepository)

	entries, err := afero.ReadDir(mem, "uploads/pdfs")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpload_ConcurrentSameNameGetDistinctKeys(t *testing.T) {
	mem := afero.NewMemMapFs()
	local, err := storage.NewLocal(mem, "uploads", "images", "pdfs")
	require.NoError(t, err)

	meta := new(repoMocks.MockMetadataRepository)
	meta.On("InsertDocument", mock.Anything, mock.Anything).Return(int64(1), nil)

	svc := NewFileService(Options{
		Store:          local,
		Metadata:       meta,
		DocumentPolicy: upload.DefaultPolicy(0),
		ImagePolicy:    upload.ImagePolicy(0),
	})

	const n = 8
	names := make(chan string, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			res, err := svc.UploadDocument(context.Background(), pdfInput(""))
			if err != nil {
				errs <- err
				return
			}
			names <- res.Document.Filename
		}()
	}

	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		select {
		case err := <-errs:
			t.Fatalf("upload failed: %v", err)
		case name := <-names:
			assert.False(t, seen[name], "duplicate filename %s", name)
			seen[name] = true
		}
	}

	entries, err := afero.ReadDir(mem, "uploads/pdfs")
	require.NoError(t, err)
	assert.Len(t, entries, n)
}
