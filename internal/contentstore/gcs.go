package contentstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/pockett/agreementflow/internal/models"
)

// GCSStore keeps artifacts in a Google Cloud Storage bucket. Artifact names
// embed a generation timestamp, so a precondition-failed write means the
// exact object already exists and the write can be treated as done.
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
}

// NewGCSStore creates a client against the given bucket.
func NewGCSStore(ctx context.Context, bucketName string) (*GCSStore, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("GCS bucket name must be set")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: client.Bucket(bucketName), name: bucketName}, nil
}

// Write uploads data with a does-not-exist precondition and a short retry
// loop for transient failures.
func (s *GCSStore) Write(ctx context.Context, p string, data []byte) error {
	const maxRetries = 4
	backoff := 1 * time.Second
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		err := s.writeOnce(ctx, p, data)
		if err == nil {
			return nil
		}
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == 412 {
			slog.Info("Object already exists, skipping upload.", "bucket", s.name, "object", p)
			return nil
		}
		lastErr = err
		slog.Warn("Upload failed, will retry.", "object", p, "attempt", i+1, "backoff", backoff.String(), "error", err)
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return models.NewStorageError("write", p, ctx.Err())
		}
	}
	return models.NewStorageError("write", p, lastErr)
}

func (s *GCSStore) writeOnce(ctx context.Context, p string, data []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, 50*time.Second)
	defer cancel()

	w := s.bucket.Object(p).If(storage.Conditions{DoesNotExist: true}).NewWriter(writeCtx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (s *GCSStore) Read(ctx context.Context, p string) ([]byte, error) {
	r, err := s.bucket.Object(p).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("object %s: %w", p, models.ErrNotFound)
		}
		return nil, models.NewStorageError("read", p, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, models.NewStorageError("read", p, err)
	}
	return data, nil
}

func (s *GCSStore) Exists(ctx context.Context, p string) (bool, error) {
	_, err := s.bucket.Object(p).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, models.NewStorageError("stat", p, err)
	}
	return true, nil
}

// Remove is idempotent, matching the filesystem store.
func (s *GCSStore) Remove(ctx context.Context, p string) error {
	if err := s.bucket.Object(p).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return models.NewStorageError("remove", p, err)
	}
	return nil
}

func (s *GCSStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	var out []ObjectInfo
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, models.NewStorageError("list", prefix, err)
		}
		out = append(out, ObjectInfo{
			Path:    attrs.Name,
			Size:    attrs.Size,
			ModTime: attrs.Updated,
		})
	}
	return out, nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
