package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"docvault/internal/logging"
	"docvault/internal/model"
	"docvault/internal/storage"
	"docvault/internal/upload"
)

const rollbackTimeout = 10 * time.Second

// stagedBlob is a blob written to the store whose metadata row does not exist yet.
// Either the row is committed or Rollback removes the blob.
type stagedBlob struct {
	store    storage.Storage
	key      string
	filename string
	info     storage.ObjectInfo
}

// Rollback deletes the staged blob. It ignores cancellation of ctx so cleanup still runs
// after the client has gone away.
func (b *stagedBlob) Rollback(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	return b.store.Delete(ctx, b.key)
}

func (s *fileService) UploadDocument(ctx context.Context, in UploadInput) (*DocumentUpload, error) {
	ns := model.NamespaceFor(upload.MediaType(in.ContentType))
	title, err := labelOrDefault("titulo", in.Label, DefaultTitle)
	if err != nil {
		s.metrics.observe(ns, err)
		return nil, err
	}

	blob, err := s.stage(ctx, s.docPolicy, ns, in)
	if err != nil {
		s.metrics.observe(ns, err)
		return nil, err
	}

	doc := model.Document{
		Title:      title,
		Filename:   blob.filename,
		URL:        blob.info.URL,
		Status:     model.StatusComplete,
		UploadedAt: s.now(),
	}
	id, err := s.meta.InsertDocument(ctx, &doc)
	if err != nil {
		s.compensate(ctx, blob, err)
		s.metrics.observe(ns, ErrRepository)
		return nil, fmt.Errorf("insert document: %w: %v", ErrRepository, err)
	}
	doc.ID = id
	s.metrics.observe(ns, nil)

	return &DocumentUpload{Document: doc, Namespace: ns, Size: blob.info.Size}, nil
}

func (s *fileService) UploadImage(ctx context.Context, in UploadInput) (*ImageUpload, error) {
	ns := model.NamespaceImages
	name, err := labelOrDefault("nombre", in.Label, DefaultImageName)
	if err != nil {
		s.metrics.observe(ns, err)
		return nil, err
	}

	blob, err := s.stage(ctx, s.imgPolicy, ns, in)
	if err != nil {
		s.metrics.observe(ns, err)
		return nil, err
	}

	img := model.Image{
		Name:       name,
		Filename:   blob.filename,
		URL:        blob.info.URL,
		UploadedAt: s.now(),
	}
	id, err := s.meta.InsertImage(ctx, &img)
	if err != nil {
		s.compensate(ctx, blob, err)
		s.metrics.observe(ns, ErrRepository)
		return nil, fmt.Errorf("insert image: %w: %v", ErrRepository, err)
	}
	img.ID = id
	s.metrics.observe(ns, nil)

	return &ImageUpload{Image: img, Size: blob.info.Size}, nil
}

// stage validates the input and writes the blob under a fresh storage name.
func (s *fileService) stage(ctx context.Context, policy upload.Policy, ns model.Namespace, in UploadInput) (*stagedBlob, error) {
	if in.Reader == nil {
		return nil, upload.ErrNoFile
	}
	if err := policy.Validate(in.header()); err != nil {
		return nil, err
	}
	r, err := policy.Sniff(in.Reader, in.ContentType)
	if err != nil {
		var verr *upload.ValidationError
		if errors.As(err, &verr) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	filename := upload.StorageName(in.Filename)
	key := ns.Key(filename)

	putCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	info, err := s.store.Put(putCtx, key, r, storage.PutObjectOptions{
		Size:        in.Size,
		ContentType: upload.MediaType(in.ContentType),
		Metadata: map[string]string{
			"original-filename": upload.SanitizeFilename(in.Filename),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store %s: %w: %v", key, ErrStorage, err)
	}
	return &stagedBlob{store: s.store, key: key, filename: filename, info: info}, nil
}

// compensate rolls the staged blob back after a failed insert. A rollback failure leaves an
// orphaned blob; it is logged and the insert error is what the caller sees.
func (s *fileService) compensate(ctx context.Context, blob *stagedBlob, cause error) {
	if err := blob.Rollback(ctx); err != nil {
		logging.Component("service").Error("rollback of stored blob failed",
			"key", blob.key,
			"cause", cause.Error(),
			"error", err.Error(),
		)
		return
	}
	logging.Component("service").Warn("metadata insert failed, stored blob removed",
		"key", blob.key,
		"cause", cause.Error(),
	)
}

func labelOrDefault(field, value, def string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return def, nil
	}
	if err := upload.ValidateLabel(field, value); err != nil {
		return "", err
	}
	return value, nil
}
