package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
)

// DocumentStore persists captured document bytes locally and, when a bucket
// is configured, mirrors them to it. The returned location is the object
// URL when mirrored, otherwise the local path.
type DocumentStore struct {
	dir    string
	bucket *GCSBucket // nil in local mode
}

// NewDocumentStore creates a DocumentStore writing under dir.
func NewDocumentStore(dir string, bucket *GCSBucket) *DocumentStore {
	return &DocumentStore{dir: dir, bucket: bucket}
}

// SaveDocument writes the bytes to <dir>/<name> and optionally uploads
// them, returning the location to record against the row.
func (s *DocumentStore) SaveDocument(ctx context.Context, name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create document dir: %w", err)
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write document %s: %w", path, err)
	}
	if s.bucket == nil {
		return path, nil
	}
	url, err := s.bucket.Upload(ctx, s.bucket.DocumentKey(name), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("upload document %s: %w", name, err)
	}
	return url, nil
}

// GCSBucket uploads run artifacts under a run-dated key prefix
// (runs/<YYYY-MM-DD>/…).
type GCSBucket struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
	prefix string
}

// NewGCSBucket opens the named bucket. runDate determines the key prefix.
func NewGCSBucket(ctx context.Context, bucket string, runDate time.Time) (*GCSBucket, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return &GCSBucket{
		client: client,
		bucket: client.Bucket(bucket),
		name:   bucket,
		prefix: "runs/" + runDate.Format("2006-01-02"),
	}, nil
}

// Upload streams r into the object at key and returns its retrieval URL.
func (b *GCSBucket) Upload(ctx context.Context, key string, r io.Reader) (string, error) {
	w := b.bucket.Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("copy to gs://%s/%s: %w", b.name, key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize gs://%s/%s: %w", b.name, key, err)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", b.name, key), nil
}

// UploadFile uploads a local file to the object at key.
func (b *GCSBucket) UploadFile(ctx context.Context, key, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()
	return b.Upload(ctx, key, f)
}

// DocumentKey places a captured document under the run-dated prefix.
func (b *GCSBucket) DocumentKey(name string) string {
	return b.prefix + "/documents/" + name
}

// ExportKey places the export artifact under the run-dated prefix.
func (b *GCSBucket) ExportKey(name string) string {
	return b.prefix + "/" + name
}

// Close releases the underlying client.
func (b *GCSBucket) Close() error {
	return b.client.Close()
}

// ExportUploader ships the finished export artifact to the bucket. It is
// only wired on cloud deployments.
type ExportUploader struct {
	bucket *GCSBucket
	path   string
}

// NewExportUploader creates an ExportUploader for the local artifact at path.
func NewExportUploader(bucket *GCSBucket, path string) *ExportUploader {
	return &ExportUploader{bucket: bucket, path: path}
}

// Export uploads the artifact under the run-dated key.
func (u *ExportUploader) Export(ctx context.Context) error {
	_, err := u.bucket.UploadFile(ctx, u.bucket.ExportKey(filepath.Base(u.path)), u.path)
	return err
}
