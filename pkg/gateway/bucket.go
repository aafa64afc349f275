// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/getcarrier/s3gw/pkg/logger"
	"github.com/getcarrier/s3gw/pkg/s3api/s3consts"
	"github.com/getcarrier/s3gw/pkg/s3api/s3err"
	"github.com/getcarrier/s3gw/pkg/s3api/s3types"
	"github.com/getcarrier/s3gw/pkg/storage"
)

// ListBucketsHandler serves GET /.
func (s *Server) ListBucketsHandler(d *Data, w http.ResponseWriter) {
	buckets, err := s.backend.ListBuckets(d.Ctx, d.Auth.ProjectID)
	if err != nil {
		logger.Ctx(d.Ctx).Error().Err(err).Msg("list buckets")
		s.handleStorageError(w, d, err)
		return
	}

	result := s3types.ListAllMyBucketsResult{
		Xmlns: s3consts.S3Namespace,
		Owner: s3types.BucketOwner{
			ID:          strconv.FormatInt(d.Auth.ProjectID, 10),
			DisplayName: d.Auth.Project.Name,
		},
	}
	for _, b := range buckets {
		result.Buckets.Buckets = append(result.Buckets.Buckets, s3types.BucketInfo{
			Name:         b.Name,
			CreationDate: amzTime(b.CreatedAt),
		})
	}

	writeResponse(w, d, http.StatusOK, result)
}

// CreateBucketHandler serves PUT /{bucket}.
func (s *Server) CreateBucketHandler(d *Data, w http.ResponseWriter) {
	bucket := d.S3Info.Bucket
	if !isValidBucketName(bucket) {
		writeErrorWithMessage(w, d, s3err.ErrInvalidArgument, "Invalid bucket name.")
		return
	}

	if err := s.backend.CreateBucket(d.Ctx, d.Auth.ProjectID, bucket); err != nil {
		if !errors.Is(err, storage.ErrBucketExists) {
			logger.Ctx(d.Ctx).Error().Err(err).Str("bucket", bucket).Msg("create bucket")
		}
		s.handleStorageError(w, d, err)
		return
	}

	w.Header().Set("Location", "/"+bucket)
	writeEmptyResponse(w, d, http.StatusOK)
}

// DeleteBucketHandler serves DELETE /{bucket}. The bucket must be empty.
func (s *Server) DeleteBucketHandler(d *Data, w http.ResponseWriter) {
	if err := s.backend.RemoveBucket(d.Ctx, d.Auth.ProjectID, d.S3Info.Bucket); err != nil {
		if !errors.Is(err, storage.ErrBucketNotFound) && !errors.Is(err, storage.ErrBucketNotEmpty) {
			logger.Ctx(d.Ctx).Error().Err(err).Str("bucket", d.S3Info.Bucket).Msg("delete bucket")
		}
		s.handleStorageError(w, d, err)
		return
	}
	writeEmptyResponse(w, d, http.StatusNoContent)
}

// HeadBucketHandler serves HEAD /{bucket}. Responses carry no body.
func (s *Server) HeadBucketHandler(d *Data, w http.ResponseWriter) {
	exists, err := s.backend.BucketExists(d.Ctx, d.Auth.ProjectID, d.S3Info.Bucket)
	if err != nil {
		logger.Ctx(d.Ctx).Error().Err(err).Str("bucket", d.S3Info.Bucket).Msg("head bucket")
		writeEmptyResponse(w, d, http.StatusInternalServerError)
		return
	}
	if !exists {
		writeEmptyResponse(w, d, http.StatusNotFound)
		return
	}
	writeEmptyResponse(w, d, http.StatusOK)
}

// GetBucketLocationHandler serves GET /{bucket}?location.
func (s *Server) GetBucketLocationHandler(d *Data, w http.ResponseWriter) {
	exists, err := s.backend.BucketExists(d.Ctx, d.Auth.ProjectID, d.S3Info.Bucket)
	if err != nil {
		s.handleStorageError(w, d, err)
		return
	}
	if !exists {
		writeErrorResponse(w, d, s3err.ErrNoSuchBucket)
		return
	}

	writeResponse(w, d, http.StatusOK, s3types.LocationConstraint{
		Xmlns: s3consts.S3Namespace,
	})
}

// MoveObjectsHandler serves the POST /move_objects extension: a
// server-side move implemented as download, re-upload, delete.
func (s *Server) MoveObjectsHandler(d *Data, w http.ResponseWriter) {
	info := d.S3Info

	for _, bucket := range []string{info.SrcBucket, info.DstBucket} {
		exists, err := s.backend.BucketExists(d.Ctx, d.Auth.ProjectID, bucket)
		if err != nil {
			s.handleStorageError(w, d, err)
			return
		}
		if !exists {
			writeErrorResponse(w, d, s3err.ErrNoSuchBucket)
			return
		}
	}

	size, err := s.backend.ObjectSize(d.Ctx, d.Auth.ProjectID, info.SrcBucket, info.SrcKey)
	if err != nil {
		s.handleStorageError(w, d, err)
		return
	}
	if size > s.moveMaxSize {
		writeErrorResponse(w, d, s3err.ErrEntityTooLarge)
		return
	}

	rc, err := s.backend.Download(d.Ctx, d.Auth.ProjectID, info.SrcBucket, info.SrcKey)
	if err != nil {
		s.handleStorageError(w, d, err)
		return
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		logger.Ctx(d.Ctx).Error().Err(err).Msg("read source object")
		writeErrorResponse(w, d, s3err.ErrInternalError)
		return
	}

	if _, err := s.backend.Upload(d.Ctx, d.Auth.ProjectID, info.DstBucket, info.DstKey,
		bytes.NewReader(data), int64(len(data)), contentTypeForKey(info.DstKey)); err != nil {
		s.handleStorageError(w, d, err)
		return
	}

	if err := s.backend.Delete(d.Ctx, d.Auth.ProjectID, info.SrcBucket, info.SrcKey); err != nil {
		// The copy landed; log the dangling source instead of failing.
		logger.Ctx(d.Ctx).Error().Err(err).
			Str("bucket", info.SrcBucket).
			Str("key", info.SrcKey).
			Msg("delete source after move")
	}

	writeResponse(w, d, http.StatusOK, s3types.MoveObjectsResult{
		Xmlns: s3consts.S3Namespace,
		Moved: 1,
	})
}
