// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

func init() {
	Register(TypeMemory, func(Config) (Backend, error) {
		return NewMemory(), nil
	})
}

type memObject struct {
	data         []byte
	etag         string
	lastModified time.Time
}

type memBucket struct {
	createdAt time.Time
	objects   map[string]memObject
}

// Memory is an in-memory Backend for tests and local development.
type Memory struct {
	mu       sync.RWMutex
	projects map[int64]map[string]*memBucket
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{projects: make(map[int64]map[string]*memBucket)}
}

func (m *Memory) bucket(projectID int64, bucket string) (*memBucket, bool) {
	buckets, ok := m.projects[projectID]
	if !ok {
		return nil, false
	}
	b, ok := buckets[bucket]
	return b, ok
}

func (m *Memory) ListBuckets(_ context.Context, projectID int64) ([]BucketInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []BucketInfo
	for name, b := range m.projects[projectID] {
		out = append(out, BucketInfo{Name: name, CreatedAt: b.createdAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) CreateBucket(_ context.Context, projectID int64, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.projects[projectID] == nil {
		m.projects[projectID] = make(map[string]*memBucket)
	}
	if _, exists := m.projects[projectID][bucket]; exists {
		return ErrBucketExists
	}
	m.projects[projectID][bucket] = &memBucket{
		createdAt: time.Now().UTC(),
		objects:   make(map[string]memObject),
	}
	return nil
}

func (m *Memory) RemoveBucket(_ context.Context, projectID int64, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bucket(projectID, bucket)
	if !ok {
		return ErrBucketNotFound
	}
	if len(b.objects) > 0 {
		return ErrBucketNotEmpty
	}
	delete(m.projects[projectID], bucket)
	return nil
}

func (m *Memory) BucketExists(_ context.Context, projectID int64, bucket string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.bucket(projectID, bucket)
	return ok, nil
}

func (m *Memory) ListObjects(_ context.Context, projectID int64, bucket, prefix string) ([]ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bucket(projectID, bucket)
	if !ok {
		return nil, ErrBucketNotFound
	}

	var out []ObjectInfo
	for key, obj := range b.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		out = append(out, ObjectInfo{
			Key:          key,
			Size:         int64(len(obj.data)),
			ETag:         obj.etag,
			LastModified: obj.lastModified,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *Memory) Upload(_ context.Context, projectID int64, bucket, key string, data io.Reader, size int64, _ string) (string, error) {
	buf, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read data: %w", err)
	}
	if size >= 0 && int64(len(buf)) != size {
		return "", fmt.Errorf("size mismatch: declared %d, read %d", size, len(buf))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bucket(projectID, bucket)
	if !ok {
		return "", ErrBucketNotFound
	}

	sum := md5.Sum(buf)
	etag := hex.EncodeToString(sum[:])
	b.objects[key] = memObject{
		data:         buf,
		etag:         etag,
		lastModified: time.Now().UTC(),
	}
	return etag, nil
}

func (m *Memory) Download(_ context.Context, projectID int64, bucket, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bucket(projectID, bucket)
	if !ok {
		return nil, ErrBucketNotFound
	}
	obj, ok := b.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (m *Memory) Delete(_ context.Context, projectID int64, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bucket(projectID, bucket)
	if !ok {
		return ErrBucketNotFound
	}
	delete(b.objects, key)
	return nil
}

func (m *Memory) ObjectSize(_ context.Context, projectID int64, bucket, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bucket(projectID, bucket)
	if !ok {
		return 0, ErrBucketNotFound
	}
	obj, ok := b.objects[key]
	if !ok {
		return 0, ErrObjectNotFound
	}
	return int64(len(obj.data)), nil
}

func (m *Memory) Close() error {
	return nil
}
