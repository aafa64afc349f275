// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

func init() {
	Register(TypeMinio, NewMinio)
}

// Minio implements Backend against any S3-compatible store via
// minio-go. Project isolation is done with a bucket name prefix on the
// underlying store: bucket "reports" of project 7 lives in the real
// bucket "p--7--reports".
type Minio struct {
	client *minio.Client
	region string
}

// NewMinio creates a minio-backed storage backend.
func NewMinio(cfg Config) (Backend, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint required for minio backend")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Minio{client: client, region: cfg.Region}, nil
}

func projectBucketPrefix(projectID int64) string {
	return "p--" + strconv.FormatInt(projectID, 10) + "--"
}

func (m *Minio) realBucket(projectID int64, bucket string) string {
	return projectBucketPrefix(projectID) + bucket
}

func (m *Minio) ListBuckets(ctx context.Context, projectID int64) ([]BucketInfo, error) {
	all, err := m.client.ListBuckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	prefix := projectBucketPrefix(projectID)
	var out []BucketInfo
	for _, b := range all {
		if !strings.HasPrefix(b.Name, prefix) {
			continue
		}
		out = append(out, BucketInfo{
			Name:      strings.TrimPrefix(b.Name, prefix),
			CreatedAt: b.CreationDate,
		})
	}
	return out, nil
}

func (m *Minio) CreateBucket(ctx context.Context, projectID int64, bucket string) error {
	real := m.realBucket(projectID, bucket)

	exists, err := m.client.BucketExists(ctx, real)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if exists {
		return ErrBucketExists
	}

	if err := m.client.MakeBucket(ctx, real, minio.MakeBucketOptions{Region: m.region}); err != nil {
		switch minio.ToErrorResponse(err).Code {
		case "BucketAlreadyExists", "BucketAlreadyOwnedByYou":
			return ErrBucketExists
		}
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}

func (m *Minio) RemoveBucket(ctx context.Context, projectID int64, bucket string) error {
	real := m.realBucket(projectID, bucket)

	exists, err := m.client.BucketExists(ctx, real)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		return ErrBucketNotFound
	}

	if err := m.client.RemoveBucket(ctx, real); err != nil {
		if minio.ToErrorResponse(err).Code == "BucketNotEmpty" {
			return ErrBucketNotEmpty
		}
		return fmt.Errorf("remove bucket %s: %w", bucket, err)
	}
	return nil
}

func (m *Minio) BucketExists(ctx context.Context, projectID int64, bucket string) (bool, error) {
	exists, err := m.client.BucketExists(ctx, m.realBucket(projectID, bucket))
	if err != nil {
		return false, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	return exists, nil
}

func (m *Minio) ListObjects(ctx context.Context, projectID int64, bucket, prefix string) ([]ObjectInfo, error) {
	real := m.realBucket(projectID, bucket)

	var out []ObjectInfo
	for obj := range m.client.ListObjects(ctx, real, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			if minio.ToErrorResponse(obj.Err).Code == "NoSuchBucket" {
				return nil, ErrBucketNotFound
			}
			return nil, fmt.Errorf("list objects in %s: %w", bucket, obj.Err)
		}
		out = append(out, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			ETag:         obj.ETag,
			LastModified: obj.LastModified,
		})
	}
	return out, nil
}

func (m *Minio) Upload(ctx context.Context, projectID int64, bucket, key string, data io.Reader, size int64, contentType string) (string, error) {
	real := m.realBucket(projectID, bucket)

	info, err := m.client.PutObject(ctx, real, key, data, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchBucket" {
			return "", ErrBucketNotFound
		}
		return "", fmt.Errorf("upload %s/%s: %w", bucket, key, err)
	}
	return info.ETag, nil
}

func (m *Minio) Download(ctx context.Context, projectID int64, bucket, key string) (io.ReadCloser, error) {
	real := m.realBucket(projectID, bucket)

	// Stat first: GetObject defers errors to the first read.
	if _, err := m.client.StatObject(ctx, real, key, minio.StatObjectOptions{}); err != nil {
		return nil, mapObjectError(err, bucket, key)
	}

	obj, err := m.client.GetObject(ctx, real, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapObjectError(err, bucket, key)
	}
	return obj, nil
}

func (m *Minio) Delete(ctx context.Context, projectID int64, bucket, key string) error {
	real := m.realBucket(projectID, bucket)

	// Delete is idempotent: removing a missing key succeeds.
	if err := m.client.RemoveObject(ctx, real, key, minio.RemoveObjectOptions{}); err != nil {
		code := minio.ToErrorResponse(err).Code
		if code == "NoSuchKey" {
			return nil
		}
		if code == "NoSuchBucket" {
			return ErrBucketNotFound
		}
		return fmt.Errorf("delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (m *Minio) ObjectSize(ctx context.Context, projectID int64, bucket, key string) (int64, error) {
	info, err := m.client.StatObject(ctx, m.realBucket(projectID, bucket), key, minio.StatObjectOptions{})
	if err != nil {
		return 0, mapObjectError(err, bucket, key)
	}
	return info.Size, nil
}

func (m *Minio) Close() error {
	return nil
}

func mapObjectError(err error, bucket, key string) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey":
		return ErrObjectNotFound
	case "NoSuchBucket":
		return ErrBucketNotFound
	}
	return fmt.Errorf("object %s/%s: %w", bucket, key, err)
}
