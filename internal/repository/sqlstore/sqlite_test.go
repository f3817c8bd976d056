package sqlstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/database/migration"
	"docvault/internal/model"
	"docvault/internal/repository"
)

func newSQLiteStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migration.EnsureMigrated(context.Background(), db, migration.SQLite, ":memory:"))
	return NewSQLite(db)
}

func TestSQLite_DocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	insert := func(title, filename string, at time.Time) int64 {
		id, err := s.InsertDocument(ctx, &model.Document{
			Title:      title,
			Filename:   filename,
			URL:        "/pdfs/" + filename,
			Status:     model.StatusComplete,
			UploadedAt: at,
		})
		require.NoError(t, err)
		return id
	}

	first := insert("first", "1-a.pdf", base)
	second := insert("second", "2-b.pdf", base.Add(time.Second))
	third := insert("third", "3-c.pdf", base.Add(time.Second))

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, []int64{second, third, first}, []int64{docs[0].ID, docs[1].ID, docs[2].ID})
	assert.Equal(t, base, docs[2].UploadedAt)

	got, err := s.FindDocument(ctx, third)
	require.NoError(t, err)
	assert.Equal(t, "third", got.Title)
	assert.Equal(t, model.StatusComplete, got.Status)

	require.NoError(t, s.DeleteDocument(ctx, third))
	assert.ErrorIs(t, s.DeleteDocument(ctx, third), repository.ErrNotFound)
	_, err = s.FindDocument(ctx, third)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSQLite_DuplicateFilenameRejected(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	img := &model.Image{Name: "n", Filename: "dup.png", URL: "/images/dup.png", UploadedAt: time.Now()}

	_, err := s.InsertImage(ctx, img)
	require.NoError(t, err)
	_, err = s.InsertImage(ctx, img)
	assert.Error(t, err)

	imgs, err := s.ListImages(ctx)
	require.NoError(t, err)
	assert.Len(t, imgs, 1)
}

func TestSQLite_Credentials(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	require.NoError(t, s.EnsureCredential(ctx, model.Credential{Username: "admin", Password: "one"}))
	require.NoError(t, s.EnsureCredential(ctx, model.Credential{Username: "admin", Password: "two"}))

	cred, err := s.FindCredential(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "one", cred.Password)

	_, err = s.FindCredential(ctx, "Admin")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
