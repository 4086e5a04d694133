package contentstore

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pockett/agreementflow/internal/models"
)

// FilesystemStore keeps artifacts under a single root directory on local
// disk. Paths are store-relative and slash-separated.
type FilesystemStore struct {
	root string
}

// NewFilesystemStore creates the root directory if needed.
func NewFilesystemStore(root string) (*FilesystemStore, error) {
	if root == "" {
		return nil, fmt.Errorf("content store root must be set")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create content store root %s: %w", root, err)
	}
	return &FilesystemStore{root: root}, nil
}

func (s *FilesystemStore) abs(p string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(p))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", models.NewStorageError("resolve", p, fmt.Errorf("path escapes store root"))
	}
	return filepath.Join(s.root, clean), nil
}

// Write stores data at path via a temp file and rename, so a concurrent
// reader sees either the old object or the new one, never a torn write.
func (s *FilesystemStore) Write(ctx context.Context, p string, data []byte) error {
	dest, err := s.abs(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return models.NewStorageError("write", p, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return models.NewStorageError("write", p, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return models.NewStorageError("write", p, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return models.NewStorageError("write", p, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		_ = os.Remove(tmp.Name())
		return models.NewStorageError("write", p, err)
	}
	return nil
}

func (s *FilesystemStore) Read(ctx context.Context, p string) ([]byte, error) {
	src, err := s.abs(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object %s: %w", p, models.ErrNotFound)
		}
		return nil, models.NewStorageError("read", p, err)
	}
	return data, nil
}

func (s *FilesystemStore) Exists(ctx context.Context, p string) (bool, error) {
	src, err := s.abs(p)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, models.NewStorageError("stat", p, err)
	}
	return true, nil
}

// Remove is idempotent: deleting an absent object is not an error.
func (s *FilesystemStore) Remove(ctx context.Context, p string) error {
	dest, err := s.abs(p)
	if err != nil {
		return err
	}
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return models.NewStorageError("remove", p, err)
	}
	return nil
}

func (s *FilesystemStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	dir, err := s.abs(prefix)
	if err != nil {
		return nil, err
	}
	var out []ObjectInfo
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		out = append(out, ObjectInfo{
			Path:    filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if walkErr != nil {
		return nil, models.NewStorageError("list", prefix, walkErr)
	}
	return out, nil
}
