// Package artifact persists pipeline artifacts as JSON documents on disk.
package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store provides read/write access to stage artifacts.
type Store interface {
	// WriteJSON atomically replaces the artifact at path with v.
	WriteJSON(ctx context.Context, path string, v any) error

	// ReadJSON decodes the artifact at path into v.
	// Returns ErrNotFound when no artifact exists there.
	ReadJSON(ctx context.Context, path string, v any) error

	// WriteWith atomically replaces the artifact at path with whatever fn
	// streams, for non-JSON artifacts like record files.
	WriteWith(ctx context.Context, path string, fn func(io.Writer) error) error

	// ReadWith streams the artifact at path through fn.
	ReadWith(ctx context.Context, path string, fn func(io.Reader) error) error

	// Exists reports whether an artifact is present at path.
	Exists(path string) bool
}

// FileStore implements Store on the local filesystem. Writes go through a
// temp file in the target directory and a rename, so readers never observe
// a half-written artifact.
type FileStore struct {
	indent   string
	fileMode os.FileMode
	dirMode  os.FileMode
}

// NewFileStore creates a file-backed artifact store.
func NewFileStore(opts ...Option) *FileStore {
	s := &FileStore{
		indent:   defaultIndent,
		fileMode: defaultFileMode,
		dirMode:  defaultDirMode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WriteJSON marshals v as indented JSON and atomically installs it.
func (s *FileStore) WriteJSON(ctx context.Context, path string, v any) error {
	return s.WriteWith(ctx, path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", s.indent)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
		}
		return nil
	})
}

// ReadJSON decodes the artifact at path into v.
func (s *FileStore) ReadJSON(ctx context.Context, path string, v any) error {
	return s.ReadWith(ctx, path, func(r io.Reader) error {
		if err := json.NewDecoder(r).Decode(v); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrCorruptArtifact, filepath.Base(path), err)
		}
		return nil
	})
}

// WriteWith streams fn into a temp file and renames it over path.
func (s *FileStore) WriteWith(ctx context.Context, path string, fn func(io.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, s.dirMode); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if err := fn(tmp); err != nil {
		return err
	}
	if err := tmp.Chmod(s.fileMode); err != nil {
		return fmt.Errorf("chmod artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("install artifact: %w", err)
	}
	return nil
}

// ReadWith opens the artifact at path and streams it through fn.
func (s *FileStore) ReadWith(ctx context.Context, path string, fn func(io.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	return fn(f)
}

// Exists reports whether a regular file is present at path.
func (s *FileStore) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
