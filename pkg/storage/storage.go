// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

// Package storage provides the object-store backends the gateway
// delegates bytes to. Backends are registered by type and constructed
// through the factory registry.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// Type identifies a backend implementation.
type Type string

const (
	TypeMinio  Type = "minio"
	TypeMemory Type = "memory"
)

// Sentinel errors. Callers branch on these; a backend never signals
// existence through generic error strings.
var (
	ErrBucketNotFound = errors.New("storage: bucket not found")
	ErrBucketExists   = errors.New("storage: bucket already exists")
	ErrBucketNotEmpty = errors.New("storage: bucket not empty")
	ErrObjectNotFound = errors.New("storage: object not found")
)

// Config holds backend connection settings.
type Config struct {
	Type      Type
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// BucketInfo describes a bucket as seen by one project.
type BucketInfo struct {
	Name      string
	CreatedAt time.Time
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// Backend is the object-store surface the gateway uses. Every bucket
// is scoped to a project; implementations keep projects isolated from
// each other.
type Backend interface {
	ListBuckets(ctx context.Context, projectID int64) ([]BucketInfo, error)
	CreateBucket(ctx context.Context, projectID int64, bucket string) error
	RemoveBucket(ctx context.Context, projectID int64, bucket string) error
	BucketExists(ctx context.Context, projectID int64, bucket string) (bool, error)
	ListObjects(ctx context.Context, projectID int64, bucket, prefix string) ([]ObjectInfo, error)
	Upload(ctx context.Context, projectID int64, bucket, key string, data io.Reader, size int64, contentType string) (etag string, err error)
	Download(ctx context.Context, projectID int64, bucket, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, projectID int64, bucket, key string) error
	ObjectSize(ctx context.Context, projectID int64, bucket, key string) (int64, error)
	Close() error
}

// Factory creates a Backend from config.
type Factory func(cfg Config) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[Type]Factory)
)

// Register adds a factory for a backend type.
func Register(t Type, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[t] = f
}

// New creates a Backend from config.
func New(cfg Config) (Backend, error) {
	registryMu.RLock()
	f, ok := registry[cfg.Type]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
	return f(cfg)
}
