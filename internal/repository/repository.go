// Package repository contains data access layer abstractions.
// Implementations live in subpackages (sqlstore) and contain no business logic.
package repository

import (
	"context"
	"errors"

	"docvault/internal/model"
)

// ErrNotFound is returned when the referenced row does not exist.
var ErrNotFound = errors.New("record not found")

// MetadataRepository stores the records describing uploaded blobs.
// Lists are ordered newest first (upload time descending, id ascending on ties).
type MetadataRepository interface {
	// InsertDocument stores a document row and returns its new id.
	InsertDocument(ctx context.Context, doc *model.Document) (int64, error)
	// InsertImage stores an image row and returns its new id.
	InsertImage(ctx context.Context, img *model.Image) (int64, error)

	ListDocuments(ctx context.Context) ([]model.Document, error)
	ListImages(ctx context.Context) ([]model.Image, error)

	// FindDocument returns ErrNotFound when no row has the id.
	FindDocument(ctx context.Context, id int64) (*model.Document, error)
	// FindImage returns ErrNotFound when no row has the id.
	FindImage(ctx context.Context, id int64) (*model.Image, error)

	// DeleteDocument returns ErrNotFound when no row was deleted.
	DeleteDocument(ctx context.Context, id int64) error
	// DeleteImage returns ErrNotFound when no row was deleted.
	DeleteImage(ctx context.Context, id int64) error
}

// CredentialRepository backs the login check.
type CredentialRepository interface {
	// FindCredential looks a user up by exact (case-sensitive) username; ErrNotFound if absent.
	FindCredential(ctx context.Context, username string) (*model.Credential, error)
	// EnsureCredential inserts the credential unless the username already exists.
	EnsureCredential(ctx context.Context, cred model.Credential) error
}
