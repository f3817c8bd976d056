package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"docvault/internal/logging"
)

// localStorage implements Storage on a directory tree. Keys map to relative paths
// (e.g. "pdfs/<name>") and URLs to "/<key>", served by the static file routes.
type localStorage struct {
	fs afero.Fs
}

// LocalStorage is the disk-backed Storage plus static file access for the HTTP layer.
type LocalStorage interface {
	Storage
	// FileSystem exposes one top-level directory (namespace) read-only over HTTP.
	FileSystem(dir string) http.FileSystem
}

// NewLocal creates a Storage rooted at root on fsys and creates the given subdirectories.
// Use afero.NewOsFs() in production and afero.NewMemMapFs() in tests.
func NewLocal(fsys afero.Fs, root string, dirs ...string) (LocalStorage, error) {
	if root == "" {
		return nil, fmt.Errorf("upload directory is required")
	}
	if err := fsys.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	base := afero.NewBasePathFs(fsys, root)
	for _, d := range dirs {
		if err := base.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create %s directory: %w", d, err)
		}
	}
	return &localStorage{fs: base}, nil
}

// Put writes the object with O_EXCL so an existing file is never replaced.
func (l *localStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	name, err := cleanKey(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}

	f, err := l.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ObjectInfo{}, fmt.Errorf("%s: %w", key, ErrObjectExists)
		}
		return ObjectInfo{}, fmt.Errorf("create file: %w", err)
	}

	n, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = l.fs.Remove(name)
		return ObjectInfo{}, fmt.Errorf("write file: %w", copyErr)
	}

	info := ObjectInfo{
		Key:         name,
		URL:         "/" + name,
		Size:        n,
		ContentType: opt.ContentType,
	}
	if st, err := l.fs.Stat(name); err == nil {
		info.LastModified = st.ModTime()
	}
	return info, nil
}

// Delete removes the file. A file that is already gone counts as deleted.
func (l *localStorage) Delete(ctx context.Context, key string) error {
	name, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := l.fs.Remove(name); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logging.Component("storage").Warn("file already absent, continuing", "key", name)
			return nil
		}
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// List enumerates regular files directly under the prefix directory, sorted by name.
// A missing directory yields an empty list.
func (l *localStorage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	dir := strings.Trim(path.Clean("/"+prefix), "/")
	entries, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []ObjectInfo{}, nil
		}
		return nil, fmt.Errorf("read directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	out := make([]ObjectInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		key := path.Join(dir, e.Name())
		out = append(out, ObjectInfo{
			Key:          key,
			URL:          "/" + key,
			Size:         e.Size(),
			LastModified: e.ModTime(),
		})
	}
	return out, nil
}

// FileSystem serves dir through afero's http adapter.
func (l *localStorage) FileSystem(dir string) http.FileSystem {
	return afero.NewHttpFs(afero.NewBasePathFs(l.fs, dir))
}

// cleanKey rejects keys that would escape the root.
func cleanKey(key string) (string, error) {
	name := path.Clean("/" + key)
	if name == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return strings.TrimPrefix(name, "/"), nil
}
