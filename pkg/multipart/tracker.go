// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

// Package multipart implements the multipart upload state machine.
// Upload state lives in a TTL'd cache (Redis in production, in-process
// for tests and local runs); assembled objects go to the storage
// backend only on completion.
package multipart

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/getcarrier/s3gw/pkg/s3api/s3consts"
	"github.com/getcarrier/s3gw/pkg/s3api/s3types"
	"github.com/getcarrier/s3gw/pkg/storage"
)

// UploadTTL is how long upload state survives without completion.
// Abandoned uploads are garbage-collected by expiry, which also
// resolves the abort-versus-late-part race.
const UploadTTL = 24 * time.Hour

var (
	// ErrNoSuchUpload indicates the upload id is unknown, expired, or
	// addressed with the wrong bucket/key.
	ErrNoSuchUpload = errors.New("multipart: no such upload")
	// ErrInvalidPartNumber indicates a part number outside 1..10000.
	ErrInvalidPartNumber = errors.New("multipart: invalid part number")
	// ErrInvalidPart indicates a completion request referencing a part
	// that was never uploaded or whose data has expired.
	ErrInvalidPart = errors.New("multipart: invalid part")
)

const keyPrefix = "s3:multipart:"

func metaKey(uploadID string) string {
	return keyPrefix + uploadID
}

func partKey(uploadID string, partNumber int) string {
	return keyPrefix + "part:" + uploadID + ":" + strconv.Itoa(partNumber)
}

// partMeta is the recorded state of one uploaded part. Parts are keyed
// by their stringified number in the metadata JSON.
type partMeta struct {
	ETag         string    `json:"etag"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// uploadMeta is the JSON document stored under s3:multipart:<id>.
type uploadMeta struct {
	UploadID  string              `json:"upload_id"`
	ProjectID int64               `json:"project_id"`
	Bucket    string              `json:"bucket"`
	Key       string              `json:"key"`
	Initiated time.Time           `json:"initiated"`
	Parts     map[string]partMeta `json:"parts"`
}

// Part describes an uploaded part.
type Part struct {
	Number       int
	ETag         string
	Size         int64
	LastModified time.Time
}

// Upload is the externally visible state of an in-progress upload.
type Upload struct {
	UploadID  string
	ProjectID int64
	Bucket    string
	Key       string
	Initiated time.Time
	Parts     []Part
}

// Completed is the result of a successful completion.
type Completed struct {
	Bucket string
	Key    string
	ETag   string
	Size   int64
}

// Tracker drives multipart uploads against a Store and a storage
// backend.
type Tracker struct {
	store   Store
	backend storage.Backend
	ttl     time.Duration
	now     func() time.Time
}

// NewTracker creates a multipart tracker.
func NewTracker(store Store, backend storage.Backend) *Tracker {
	return &Tracker{
		store:   store,
		backend: backend,
		ttl:     UploadTTL,
		now:     time.Now,
	}
}

// Create initiates a new upload. The target bucket must already exist.
func (t *Tracker) Create(ctx context.Context, projectID int64, bucket, key string) (*Upload, error) {
	exists, err := t.backend.BucketExists(ctx, projectID, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, storage.ErrBucketNotFound
	}

	meta := uploadMeta{
		UploadID:  uuid.NewString(),
		ProjectID: projectID,
		Bucket:    bucket,
		Key:       key,
		Initiated: t.now().UTC(),
		Parts:     make(map[string]partMeta),
	}
	if err := t.saveMeta(ctx, &meta); err != nil {
		return nil, err
	}
	return meta.toUpload(), nil
}

// UploadPart records one part of an upload. Part bytes are written
// before the metadata so a crash never leaves a recorded part without
// data. Re-uploading a part number overwrites it; concurrent uploads of
// the same number resolve last-writer-wins.
func (t *Tracker) UploadPart(ctx context.Context, projectID int64, uploadID, bucket, key string, partNumber int, data []byte) (string, error) {
	if partNumber < 1 || partNumber > s3consts.MaxPartID {
		return "", ErrInvalidPartNumber
	}

	meta, err := t.getMeta(ctx, projectID, uploadID, bucket, key)
	if err != nil {
		return "", err
	}

	if err := t.store.SetWithTTL(ctx, partKey(uploadID, partNumber), data, t.ttl); err != nil {
		return "", fmt.Errorf("store part %d: %w", partNumber, err)
	}

	sum := md5.Sum(data)
	etag := hex.EncodeToString(sum[:])
	meta.Parts[strconv.Itoa(partNumber)] = partMeta{
		ETag:         etag,
		Size:         int64(len(data)),
		LastModified: t.now().UTC(),
	}
	if err := t.saveMeta(ctx, meta); err != nil {
		return "", err
	}
	return etag, nil
}

// Complete assembles the requested parts into the final object,
// uploads it to the backend, and discards the upload state.
//
// The request body is the standard CompleteMultipartUpload XML. A body
// that fails to parse falls back to completing with every recorded
// part; a body that parses but names a missing part, or lists no parts
// at all, is an error.
func (t *Tracker) Complete(ctx context.Context, projectID int64, uploadID, bucket, key string, body []byte) (*Completed, error) {
	meta, err := t.getMeta(ctx, projectID, uploadID, bucket, key)
	if err != nil {
		return nil, err
	}

	partNumbers := t.requestedParts(body, meta)
	if len(partNumbers) == 0 {
		return nil, ErrInvalidPart
	}

	var assembled bytes.Buffer
	for _, n := range partNumbers {
		recorded, ok := meta.Parts[strconv.Itoa(n)]
		if !ok {
			return nil, ErrInvalidPart
		}
		data, err := t.store.GetBytes(ctx, partKey(uploadID, n))
		if err != nil {
			if errors.Is(err, ErrCacheMiss) {
				return nil, ErrInvalidPart
			}
			return nil, fmt.Errorf("load part %d: %w", n, err)
		}
		sum := md5.Sum(data)
		if recorded.ETag != hex.EncodeToString(sum[:]) {
			return nil, ErrInvalidPart
		}
		assembled.Write(data)
	}

	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	size := int64(assembled.Len())
	// The final ETag hashes the assembled payload; Upload drains the
	// buffer, so compute it first.
	finalSum := md5.Sum(assembled.Bytes())
	if _, err := t.backend.Upload(ctx, projectID, bucket, key, &assembled, size, contentType); err != nil {
		return nil, err
	}

	etag := hex.EncodeToString(finalSum[:]) + "-" + strconv.Itoa(len(partNumbers))

	t.cleanup(ctx, meta)

	return &Completed{
		Bucket: bucket,
		Key:    key,
		ETag:   etag,
		Size:   size,
	}, nil
}

// requestedParts extracts the ascending part-number list to complete
// with. Only a parse failure triggers the fallback to all recorded
// parts; a well-formed request naming missing parts, or an empty part
// list, must fail instead.
func (t *Tracker) requestedParts(body []byte, meta *uploadMeta) []int {
	var req s3types.CompleteMultipartUploadRequest
	if err := xml.Unmarshal(body, &req); err != nil {
		numbers := make([]int, 0, len(meta.Parts))
		for s := range meta.Parts {
			if n, err := strconv.Atoi(s); err == nil {
				numbers = append(numbers, n)
			}
		}
		sort.Ints(numbers)
		return numbers
	}

	numbers := make([]int, 0, len(req.Parts))
	for _, p := range req.Parts {
		numbers = append(numbers, p.PartNumber)
	}
	sort.Ints(numbers)
	return numbers
}

// Abort discards all state of an upload.
func (t *Tracker) Abort(ctx context.Context, projectID int64, uploadID, bucket, key string) error {
	meta, err := t.getMeta(ctx, projectID, uploadID, bucket, key)
	if err != nil {
		return err
	}
	t.cleanup(ctx, meta)
	return nil
}

// ListParts returns the upload with its parts sorted ascending.
func (t *Tracker) ListParts(ctx context.Context, projectID int64, uploadID, bucket, key string) (*Upload, error) {
	meta, err := t.getMeta(ctx, projectID, uploadID, bucket, key)
	if err != nil {
		return nil, err
	}
	return meta.toUpload(), nil
}

func (t *Tracker) getMeta(ctx context.Context, projectID int64, uploadID, bucket, key string) (*uploadMeta, error) {
	raw, err := t.store.GetBytes(ctx, metaKey(uploadID))
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, ErrNoSuchUpload
		}
		return nil, fmt.Errorf("load upload %s: %w", uploadID, err)
	}

	var meta uploadMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode upload %s: %w", uploadID, err)
	}

	// An upload id addressed through the wrong project, bucket, or key
	// is indistinguishable from a missing one.
	if meta.ProjectID != projectID || meta.Bucket != bucket || meta.Key != key {
		return nil, ErrNoSuchUpload
	}
	return &meta, nil
}

func (t *Tracker) saveMeta(ctx context.Context, meta *uploadMeta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode upload %s: %w", meta.UploadID, err)
	}
	if err := t.store.SetWithTTL(ctx, metaKey(meta.UploadID), raw, t.ttl); err != nil {
		return fmt.Errorf("store upload %s: %w", meta.UploadID, err)
	}
	return nil
}

func (t *Tracker) cleanup(ctx context.Context, meta *uploadMeta) {
	keys := make([]string, 0, len(meta.Parts)+1)
	for s := range meta.Parts {
		if n, err := strconv.Atoi(s); err == nil {
			keys = append(keys, partKey(meta.UploadID, n))
		}
	}
	keys = append(keys, metaKey(meta.UploadID))
	// Best effort: anything left behind expires with the TTL.
	_ = t.store.Delete(ctx, keys...)
}

func (m *uploadMeta) toUpload() *Upload {
	parts := make([]Part, 0, len(m.Parts))
	for s, p := range m.Parts {
		n, err := strconv.Atoi(s)
		if err != nil {
			continue
		}
		parts = append(parts, Part{
			Number:       n,
			ETag:         p.ETag,
			Size:         p.Size,
			LastModified: p.LastModified,
		})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].Number < parts[j].Number })

	return &Upload{
		UploadID:  m.UploadID,
		ProjectID: m.ProjectID,
		Bucket:    m.Bucket,
		Key:       m.Key,
		Initiated: m.Initiated,
		Parts:     parts,
	}
}
