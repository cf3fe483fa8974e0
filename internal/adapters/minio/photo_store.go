// Package minioadapter stores bench photos in an S3-compatible bucket.
package minioadapter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/samirrijal/baenkli/internal/core/domain"
	"github.com/samirrijal/baenkli/internal/pkg/config"
)

const publicReadPolicy = `{
  "Version": "2012-10-17",
  "Statement": [{
    "Effect": "Allow",
    "Principal": {"AWS": ["*"]},
    "Action": ["s3:GetObject"],
    "Resource": ["arn:aws:s3:::%s/*"]
  }]
}`

// PhotoStore implements ports.PhotoStore on top of minio-go.
type PhotoStore struct {
	client     *minio.Client
	bucket     string
	publicBase string
}

// New connects to the object store and makes sure the bucket exists and is
// publicly readable, so the returned URLs can be embedded directly.
func New(ctx context.Context, cfg config.StorageConfig) (*PhotoStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "minio client")
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.Wrapf(err, "check bucket %s", cfg.Bucket)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, errors.Wrapf(err, "create bucket %s", cfg.Bucket)
		}
		slog.Info("created photo bucket", "bucket", cfg.Bucket)
	}
	if err := client.SetBucketPolicy(ctx, cfg.Bucket, fmt.Sprintf(publicReadPolicy, cfg.Bucket)); err != nil {
		return nil, errors.Wrapf(err, "set policy on bucket %s", cfg.Bucket)
	}

	return &PhotoStore{
		client:     client,
		bucket:     cfg.Bucket,
		publicBase: publicBase(cfg),
	}, nil
}

func publicBase(cfg config.StorageConfig) string {
	if cfg.PublicURL != "" {
		return strings.TrimRight(cfg.PublicURL, "/")
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return scheme + "://" + cfg.Endpoint
}

// Upload writes body under key. size may be -1 when unknown.
func (s *PhotoStore) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return errors.Wrapf(err, "put object %s", key)
	}
	return nil
}

// PublicURL returns the link clients use to fetch key.
func (s *PhotoStore) PublicURL(key string) string {
	return s.publicBase + "/" + s.bucket + "/" + url.PathEscape(key)
}

// Remove deletes keys in one batch. Missing keys are not an error.
func (s *PhotoStore) Remove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	objects := make(chan minio.ObjectInfo, len(keys))
	for _, k := range keys {
		objects <- minio.ObjectInfo{Key: k}
	}
	close(objects)

	var failed []string
	for res := range s.client.RemoveObjects(ctx, s.bucket, objects, minio.RemoveObjectsOptions{}) {
		if res.Err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", res.ObjectName, res.Err))
		}
	}
	if len(failed) > 0 {
		return errors.Errorf("remove %d of %d objects failed: %s", len(failed), len(keys), strings.Join(failed, "; "))
	}
	return nil
}

// List returns every object whose key starts with prefix.
func (s *PhotoStore) List(ctx context.Context, prefix string) ([]domain.StoredObject, error) {
	var out []domain.StoredObject
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, "list objects")
		}
		out = append(out, domain.StoredObject{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	return out, nil
}

// Ping reports whether the bucket is reachable.
func (s *PhotoStore) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return errors.Wrap(err, "bucket exists")
	}
	if !ok {
		return errors.Errorf("bucket %s missing", s.bucket)
	}
	return nil
}
