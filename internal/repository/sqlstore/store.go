// Package sqlstore implements the repository interfaces on database/sql through sqlx,
// with queries built by squirrel. The same Store serves SQLite and PostgreSQL; only the
// placeholder format differs.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"docvault/internal/model"
	"docvault/internal/repository"
)

const (
	tableDocuments   = "documentos"
	tableImages      = "imagenes"
	tableCredentials = "usuarios"

	newestFirst = "fecha_subida DESC, id ASC"
)

// Store is a SQL implementation of repository.MetadataRepository and repository.CredentialRepository.
type Store struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

var (
	_ repository.MetadataRepository   = (*Store)(nil)
	_ repository.CredentialRepository = (*Store)(nil)
)

// NewSQLite wraps a database/sql handle opened with the sqlite3 driver.
func NewSQLite(db *sql.DB) *Store {
	return &Store{
		db: sqlx.NewDb(db, "sqlite3"),
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// NewPostgres wraps a database/sql handle opened with the pgx driver.
func NewPostgres(db *sql.DB) *Store {
	return &Store{
		db: sqlx.NewDb(db, "pgx"),
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

type documentRow struct {
	ID         int64     `db:"id"`
	Title      string    `db:"titulo"`
	Filename   string    `db:"filename"`
	URL        string    `db:"url"`
	Status     string    `db:"estado"`
	UploadedAt time.Time `db:"fecha_subida"`
}

func (r documentRow) toModel() model.Document {
	return model.Document{
		ID:         r.ID,
		Title:      r.Title,
		Filename:   r.Filename,
		URL:        r.URL,
		Status:     r.Status,
		UploadedAt: r.UploadedAt.UTC(),
	}
}

type imageRow struct {
	ID         int64     `db:"id"`
	Name       string    `db:"nombre"`
	Filename   string    `db:"filename"`
	URL        string    `db:"url"`
	UploadedAt time.Time `db:"fecha_subida"`
}

func (r imageRow) toModel() model.Image {
	return model.Image{
		ID:         r.ID,
		Name:       r.Name,
		Filename:   r.Filename,
		URL:        r.URL,
		UploadedAt: r.UploadedAt.UTC(),
	}
}

type credentialRow struct {
	ID       int64  `db:"id"`
	Username string `db:"username"`
	Password string `db:"password"`
}

var (
	documentColumns = []string{"id", "titulo", "filename", "url", "estado", "fecha_subida"}
	imageColumns    = []string{"id", "nombre", "filename", "url", "fecha_subida"}
)

// InsertDocument inserts a document row and returns the generated id.
func (s *Store) InsertDocument(ctx context.Context, doc *model.Document) (int64, error) {
	q, args, err := s.sb.Insert(tableDocuments).
		Columns("titulo", "filename", "url", "estado", "fecha_subida").
		Values(doc.Title, doc.Filename, doc.URL, doc.Status, doc.UploadedAt.UTC()).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}
	var id int64
	if err := s.db.QueryRowxContext(ctx, q, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// InsertImage inserts an image row and returns the generated id.
func (s *Store) InsertImage(ctx context.Context, img *model.Image) (int64, error) {
	q, args, err := s.sb.Insert(tableImages).
		Columns("nombre", "filename", "url", "fecha_subida").
		Values(img.Name, img.Filename, img.URL, img.UploadedAt.UTC()).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}
	var id int64
	if err := s.db.QueryRowxContext(ctx, q, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// ListDocuments returns every document, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]model.Document, error) {
	q, args, err := s.sb.Select(documentColumns...).From(tableDocuments).OrderBy(newestFirst).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	var rows []documentRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, q, args...); err != nil {
		return nil, err
	}
	out := make([]model.Document, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// ListImages returns every image, newest first.
func (s *Store) ListImages(ctx context.Context) ([]model.Image, error) {
	q, args, err := s.sb.Select(imageColumns...).From(tableImages).OrderBy(newestFirst).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	var rows []imageRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, q, args...); err != nil {
		return nil, err
	}
	out := make([]model.Image, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// FindDocument fetches a single document by id.
func (s *Store) FindDocument(ctx context.Context, id int64) (*model.Document, error) {
	q, args, err := s.sb.Select(documentColumns...).From(tableDocuments).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	var row documentRow
	if err := sqlx.GetContext(ctx, s.db, &row, q, args...); err != nil {
		return nil, notFound(err)
	}
	doc := row.toModel()
	return &doc, nil
}

// FindImage fetches a single image by id.
func (s *Store) FindImage(ctx context.Context, id int64) (*model.Image, error) {
	q, args, err := s.sb.Select(imageColumns...).From(tableImages).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	var row imageRow
	if err := sqlx.GetContext(ctx, s.db, &row, q, args...); err != nil {
		return nil, notFound(err)
	}
	img := row.toModel()
	return &img, nil
}

// DeleteDocument removes a document row.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, tableDocuments, id)
}

// DeleteImage removes an image row.
func (s *Store) DeleteImage(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, tableImages, id)
}

func (s *Store) deleteByID(ctx context.Context, table string, id int64) error {
	q, args, err := s.sb.Delete(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// FindCredential looks a credential up by exact username.
func (s *Store) FindCredential(ctx context.Context, username string) (*model.Credential, error) {
	q, args, err := s.sb.Select("id", "username", "password").From(tableCredentials).Where(sq.Eq{"username": username}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	var row credentialRow
	if err := sqlx.GetContext(ctx, s.db, &row, q, args...); err != nil {
		return nil, notFound(err)
	}
	return &model.Credential{ID: row.ID, Username: row.Username, Password: row.Password}, nil
}

// EnsureCredential inserts the credential; an existing username is left untouched.
func (s *Store) EnsureCredential(ctx context.Context, cred model.Credential) error {
	q, args, err := s.sb.Insert(tableCredentials).
		Columns("username", "password").
		Values(cred.Username, cred.Password).
		Suffix("ON CONFLICT (username) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	_, err = s.db.ExecContext(ctx, q, args...)
	return err
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}
