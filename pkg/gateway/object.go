// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/getcarrier/s3gw/pkg/logger"
	"github.com/getcarrier/s3gw/pkg/s3api/s3consts"
	"github.com/getcarrier/s3gw/pkg/s3api/s3err"
	"github.com/getcarrier/s3gw/pkg/s3api/s3types"
	"github.com/getcarrier/s3gw/pkg/storage"
)

const defaultMaxKeys = 1000

// ListObjectsV2Handler serves GET /{bucket}. Requests without
// list-type=2 get the same v2 response shape.
func (s *Server) ListObjectsV2Handler(d *Data, w http.ResponseWriter) {
	q := d.Req.URL.Query()
	prefix := q.Get("prefix")
	delimiter := q.Get("delimiter")
	startAfter := q.Get("start-after")
	continuationToken := q.Get("continuation-token")

	maxKeys := defaultMaxKeys
	if raw := q.Get("max-keys"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeErrorWithMessage(w, d, s3err.ErrInvalidArgument, "Invalid max-keys value.")
			return
		}
		if n < maxKeys {
			maxKeys = n
		}
	}

	// The continuation token wins over start-after, as in S3.
	after := startAfter
	if continuationToken != "" {
		key, ok := decodeContinuationToken(continuationToken)
		if !ok {
			writeErrorWithMessage(w, d, s3err.ErrInvalidArgument, "Invalid continuation token.")
			return
		}
		after = key
	}

	objects, err := s.backend.ListObjects(d.Ctx, d.Auth.ProjectID, d.S3Info.Bucket, prefix)
	if err != nil {
		s.handleStorageError(w, d, err)
		return
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })

	result := s3types.ListBucketResult{
		Xmlns:             s3consts.S3Namespace,
		Name:              d.S3Info.Bucket,
		Prefix:            prefix,
		Delimiter:         delimiter,
		MaxKeys:           maxKeys,
		StartAfter:        startAfter,
		ContinuationToken: continuationToken,
		Contents:          []s3types.ObjectContent{},
	}

	seenPrefixes := make(map[string]bool)
	count := 0
	// max-keys=0 asks for an empty page; it is never reported as
	// truncated.
	if maxKeys > 0 {
		for _, obj := range objects {
			if after != "" && obj.Key <= after {
				continue
			}
			if count == maxKeys {
				result.IsTruncated = true
				break
			}

			// Keys sharing a segment up to the delimiter collapse into
			// one CommonPrefix.
			if delimiter != "" {
				rest := strings.TrimPrefix(obj.Key, prefix)
				if idx := strings.Index(rest, delimiter); idx >= 0 {
					common := prefix + rest[:idx+len(delimiter)]
					if !seenPrefixes[common] {
						seenPrefixes[common] = true
						result.CommonPrefixes = append(result.CommonPrefixes, s3types.CommonPrefix{Prefix: common})
						count++
						result.NextContinuationToken = encodeContinuationToken(obj.Key)
					}
					continue
				}
			}

			result.Contents = append(result.Contents, s3types.ObjectContent{
				Key:          obj.Key,
				LastModified: amzTime(obj.LastModified),
				ETag:         quoteETag(obj.ETag),
				Size:         obj.Size,
				StorageClass: s3consts.StorageClassStandard,
			})
			count++
			result.NextContinuationToken = encodeContinuationToken(obj.Key)
		}
	}

	result.KeyCount = count
	if !result.IsTruncated {
		result.NextContinuationToken = ""
	}

	writeResponse(w, d, http.StatusOK, result)
}

// PutObjectHandler serves PUT /{bucket}/{key}.
func (s *Server) PutObjectHandler(d *Data, w http.ResponseWriter) {
	body, err := readBody(d)
	if err != nil {
		writeErrorResponse(w, d, s3err.ErrInvalidRequest)
		return
	}

	contentType := d.Req.Header.Get("Content-Type")
	if contentType == "" {
		contentType = contentTypeForKey(d.S3Info.Key)
	}

	etag, err := s.backend.Upload(d.Ctx, d.Auth.ProjectID, d.S3Info.Bucket, d.S3Info.Key,
		bytes.NewReader(body), int64(len(body)), contentType)
	if err != nil {
		logger.Ctx(d.Ctx).Error().Err(err).
			Str("bucket", d.S3Info.Bucket).
			Str("key", d.S3Info.Key).
			Msg("put object")
		s.handleStorageError(w, d, err)
		return
	}

	w.Header().Set("ETag", quoteETag(etag))
	writeEmptyResponse(w, d, http.StatusOK)
}

// GetObjectHandler serves GET /{bucket}/{key}.
func (s *Server) GetObjectHandler(d *Data, w http.ResponseWriter) {
	info, err := s.statObject(d, d.S3Info.Bucket, d.S3Info.Key)
	if err != nil {
		s.handleStorageError(w, d, err)
		return
	}

	rc, err := s.backend.Download(d.Ctx, d.Auth.ProjectID, d.S3Info.Bucket, d.S3Info.Key)
	if err != nil {
		s.handleStorageError(w, d, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentTypeForKey(d.S3Info.Key))
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("ETag", quoteETag(info.ETag))
	w.Header().Set(s3consts.XAmzRequestID, d.RequestID)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		logger.Ctx(d.Ctx).Debug().Err(err).Msg("stream object body")
	}
}

// HeadObjectHandler serves HEAD /{bucket}/{key}.
func (s *Server) HeadObjectHandler(d *Data, w http.ResponseWriter) {
	info, err := s.statObject(d, d.S3Info.Bucket, d.S3Info.Key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) || errors.Is(err, storage.ErrBucketNotFound) {
			writeEmptyResponse(w, d, http.StatusNotFound)
			return
		}
		writeEmptyResponse(w, d, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentTypeForKey(d.S3Info.Key))
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("ETag", quoteETag(info.ETag))
	writeEmptyResponse(w, d, http.StatusOK)
}

// statObject finds the listing entry for one key. The listing doubles
// as the existence check: some backends report a zero size for keys
// that do not exist, and it carries the stored ETag.
func (s *Server) statObject(d *Data, bucket, key string) (*storage.ObjectInfo, error) {
	objects, err := s.backend.ListObjects(d.Ctx, d.Auth.ProjectID, bucket, key)
	if err != nil {
		return nil, err
	}
	for i := range objects {
		if objects[i].Key == key {
			return &objects[i], nil
		}
	}
	return nil, storage.ErrObjectNotFound
}

// DeleteObjectHandler serves DELETE /{bucket}/{key}. Deleting a key
// that does not exist succeeds.
func (s *Server) DeleteObjectHandler(d *Data, w http.ResponseWriter) {
	if err := s.backend.Delete(d.Ctx, d.Auth.ProjectID, d.S3Info.Bucket, d.S3Info.Key); err != nil {
		s.handleStorageError(w, d, err)
		return
	}
	writeEmptyResponse(w, d, http.StatusNoContent)
}

// DeleteObjectsHandler serves POST /{bucket}?delete (bulk delete).
func (s *Server) DeleteObjectsHandler(d *Data, w http.ResponseWriter) {
	body, err := readBody(d)
	if err != nil {
		writeErrorResponse(w, d, s3err.ErrInvalidRequest)
		return
	}

	var req s3types.DeleteRequest
	if err := xml.Unmarshal(body, &req); err != nil || len(req.Objects) == 0 {
		writeErrorWithMessage(w, d, s3err.ErrInvalidRequest, "Malformed Delete request body.")
		return
	}

	result := s3types.DeleteResult{Xmlns: s3consts.S3Namespace}
	for _, obj := range req.Objects {
		if err := s.backend.Delete(d.Ctx, d.Auth.ProjectID, d.S3Info.Bucket, obj.Key); err != nil {
			code := s3err.ErrInternalError
			if errors.Is(err, storage.ErrBucketNotFound) {
				code = s3err.ErrNoSuchBucket
			}
			result.Errors = append(result.Errors, s3types.DeleteError{
				Key:     obj.Key,
				Code:    code.Code(),
				Message: code.Description(),
			})
			continue
		}
		if !req.Quiet {
			result.Deleted = append(result.Deleted, s3types.DeletedObject{Key: obj.Key})
		}
	}

	writeResponse(w, d, http.StatusOK, result)
}

// CopyObjectHandler serves PUT /{bucket}/{key} with x-amz-copy-source.
// Like move, the copy is a download and re-upload bounded by the
// configured size limit.
func (s *Server) CopyObjectHandler(d *Data, w http.ResponseWriter) {
	srcBucket, srcKey, ok := parseCopySource(d.Req.Header.Get(s3consts.XAmzCopySource))
	if !ok {
		writeErrorWithMessage(w, d, s3err.ErrInvalidArgument, "Invalid copy source.")
		return
	}

	exists, err := s.backend.BucketExists(d.Ctx, d.Auth.ProjectID, srcBucket)
	if err != nil {
		s.handleStorageError(w, d, err)
		return
	}
	if !exists {
		writeErrorResponse(w, d, s3err.ErrNoSuchBucket)
		return
	}
	exists, err = s.backend.BucketExists(d.Ctx, d.Auth.ProjectID, d.S3Info.Bucket)
	if err != nil {
		s.handleStorageError(w, d, err)
		return
	}
	if !exists {
		writeErrorResponse(w, d, s3err.ErrNoSuchBucket)
		return
	}

	size, err := s.backend.ObjectSize(d.Ctx, d.Auth.ProjectID, srcBucket, srcKey)
	if err != nil {
		s.handleStorageError(w, d, err)
		return
	}
	if size > s.moveMaxSize {
		writeErrorResponse(w, d, s3err.ErrEntityTooLarge)
		return
	}

	rc, err := s.backend.Download(d.Ctx, d.Auth.ProjectID, srcBucket, srcKey)
	if err != nil {
		s.handleStorageError(w, d, err)
		return
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		logger.Ctx(d.Ctx).Error().Err(err).Msg("read copy source")
		writeErrorResponse(w, d, s3err.ErrInternalError)
		return
	}

	etag, err := s.backend.Upload(d.Ctx, d.Auth.ProjectID, d.S3Info.Bucket, d.S3Info.Key,
		bytes.NewReader(data), int64(len(data)), contentTypeForKey(d.S3Info.Key))
	if err != nil {
		s.handleStorageError(w, d, err)
		return
	}

	writeResponse(w, d, http.StatusOK, s3types.CopyObjectResult{
		Xmlns:        s3consts.S3Namespace,
		ETag:         quoteETag(etag),
		LastModified: amzTime(time.Now()),
	})
}

// parseCopySource splits an x-amz-copy-source header value into bucket
// and key. The value may be URL-encoded and may carry a leading slash.
func parseCopySource(src string) (bucket, key string, ok bool) {
	if decoded, err := url.QueryUnescape(src); err == nil {
		src = decoded
	}
	src = strings.TrimPrefix(src, "/")
	bucket, key, found := strings.Cut(src, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
