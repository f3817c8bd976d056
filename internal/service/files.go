package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"docvault/internal/model"
	"docvault/internal/repository"
	"docvault/internal/upload"
)

func (s *fileService) ListDocuments(ctx context.Context) ([]model.Document, error) {
	docs, err := s.meta.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w: %v", ErrRepository, err)
	}
	return docs, nil
}

func (s *fileService) ListImages(ctx context.Context) ([]model.Image, error) {
	imgs, err := s.meta.ListImages(ctx)
	if err != nil {
		return nil, fmt.Errorf("list images: %w: %v", ErrRepository, err)
	}
	return imgs, nil
}

func (s *fileService) ListFiles(ctx context.Context) (*FileListing, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out := &FileListing{Files: []model.StoredFile{}}
	for _, ns := range model.Namespaces {
		objs, err := s.store.List(ctx, string(ns)+"/")
		if err != nil {
			return nil, fmt.Errorf("list %s: %w: %v", ns, ErrStorage, err)
		}
		for _, o := range objs {
			out.Files = append(out.Files, model.StoredFile{
				Filename: path.Base(o.Key),
				Type:     ns.FileType(),
				URL:      o.URL,
			})
		}
		switch ns {
		case model.NamespaceImages:
			out.Images = len(objs)
		case model.NamespacePDFs:
			out.PDFs = len(objs)
		}
	}
	out.Total = len(out.Files)
	return out, nil
}

func (s *fileService) DeleteDocument(ctx context.Context, id int64) (*model.Document, error) {
	doc, err := s.meta.FindDocument(ctx, id)
	if err != nil {
		return nil, lookupError("document", id, err)
	}
	if err := s.deleteBlob(ctx, documentKey(doc)); err != nil {
		return nil, err
	}
	if err := s.meta.DeleteDocument(ctx, id); err != nil {
		return nil, lookupError("document", id, err)
	}
	return doc, nil
}

func (s *fileService) DeleteImage(ctx context.Context, id int64) (*model.Image, error) {
	img, err := s.meta.FindImage(ctx, id)
	if err != nil {
		return nil, lookupError("image", id, err)
	}
	if err := s.deleteBlob(ctx, model.NamespaceImages.Key(img.Filename)); err != nil {
		return nil, err
	}
	if err := s.meta.DeleteImage(ctx, id); err != nil {
		return nil, lookupError("image", id, err)
	}
	return img, nil
}

// deleteBlob removes the blob first so a storage failure leaves the row, and the file, in place.
func (s *fileService) deleteBlob(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w: %v", key, ErrStorage, err)
	}
	return nil
}

// documentKey recovers the blob key of a document from its URL, which ends with "<namespace>/<filename>".
func documentKey(doc *model.Document) string {
	for _, ns := range model.Namespaces {
		if key := ns.Key(doc.Filename); strings.HasSuffix(doc.URL, "/"+key) {
			return key
		}
	}
	if upload.Ext(doc.Filename) == ".pdf" {
		return model.NamespacePDFs.Key(doc.Filename)
	}
	return model.NamespaceImages.Key(doc.Filename)
}

func lookupError(kind string, id int64, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	return fmt.Errorf("%s %d: %w: %v", kind, id, ErrRepository, err)
}
